package bwfs

import "io/fs"

// Unix permission and type bits, used when translating an inode's 16-bit
// mode to and from the fuse/os representation. Kept from the same table the
// teacher uses for squashfs inodes: the bit layout is the same on every
// platform this runs on.
const (
	modeIFMT  = 0xf000
	modeIFREG = 0x8000
	modeIFDIR = 0x4000
	modeIFLNK = 0xa000

	modeISVTX = 0x200
	modeISGID = 0x400
	modeISUID = 0x800
)

// UnixToMode converts a raw 16-bit Unix mode (as stored on an INode) to an
// fs.FileMode, setting both the permission bits and the fs.Mode type bit.
func UnixToMode(mode uint16) fs.FileMode {
	res := fs.FileMode(mode & 0777)

	switch mode & modeIFMT {
	case modeIFDIR:
		res |= fs.ModeDir
	case modeIFLNK:
		res |= fs.ModeSymlink
	}

	if mode&modeISGID == modeISGID {
		res |= fs.ModeSetgid
	}
	if mode&modeISUID == modeISUID {
		res |= fs.ModeSetuid
	}
	if mode&modeISVTX == modeISVTX {
		res |= fs.ModeSticky
	}

	return res
}

// ModeToUnix is the inverse of UnixToMode, used when constructing an INode's
// stored mode field from a caller-supplied fs.FileMode (e.g. the mode
// argument of create/mkdir).
func ModeToUnix(mode fs.FileMode) uint16 {
	res := uint16(mode.Perm())

	switch {
	case mode&fs.ModeDir == fs.ModeDir:
		res |= modeIFDIR
	case mode&fs.ModeSymlink == fs.ModeSymlink:
		res |= modeIFLNK
	default:
		res |= modeIFREG
	}

	if mode&fs.ModeSetgid == fs.ModeSetgid {
		res |= modeISGID
	}
	if mode&fs.ModeSetuid == fs.ModeSetuid {
		res |= modeISUID
	}
	if mode&fs.ModeSticky == fs.ModeSticky {
		res |= modeISVTX
	}

	return res
}

// NormalizePermMode strips the Unix type bits out of a raw mode_t value (as
// received in a FUSE create/mkdir request's Mode field) by round-tripping it
// through UnixToMode and ModeToUnix, keeping only the permission and
// setuid/setgid/sticky bits an INode stores.
func NormalizePermMode(raw uint32) uint16 {
	return ModeToUnix(UnixToMode(uint16(raw))) &^ modeIFMT
}
