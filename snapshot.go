package bwfs

import "strconv"

// formatIno and parseIno convert between a uint64 inode number and the
// stringified decimal form metadata.json uses for map keys. Go's
// encoding/json already renders integer map keys this way automatically, but
// the inode table is keyed as a string explicitly in the wire struct so the
// round trip is unambiguous regardless of map key type inference.
func formatIno(ino uint64) string {
	return strconv.FormatUint(ino, 10)
}

func parseIno(s string) (uint64, error) {
	return strconv.ParseUint(s, 10, 64)
}
