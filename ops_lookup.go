package bwfs

// Lookup resolves name in parent's directory list and returns the child
// inode's current attributes.
func (e *Engine) Lookup(parent uint64, name string) (*INode, error) {
	e.log.WithField("op", "lookup").WithField("parent", parent).WithField("name", name).Debug("enter")

	e.dirsMu.Lock()
	entries := e.dirs[parent]
	var childIno uint64
	found := false
	for _, ent := range entries {
		if ent.Name == name {
			childIno = ent.Ino
			found = true
			break
		}
	}
	e.dirsMu.Unlock()

	if !found {
		return nil, newErr("lookup", ENoEnt)
	}

	e.inodesMu.Lock()
	n, ok := e.inodes[childIno]
	e.inodesMu.Unlock()
	if !ok {
		return nil, newErr("lookup", ENoEnt)
	}
	return n, nil
}

// GetAttr returns the current attributes of ino.
func (e *Engine) GetAttr(ino uint64) (*INode, error) {
	e.inodesMu.Lock()
	n, ok := e.inodes[ino]
	e.inodesMu.Unlock()
	if !ok {
		return nil, newErr("getattr", ENoEnt)
	}
	return n, nil
}

// Open allocates a new handle mapped to ino. Flags are accepted but never
// enforced.
func (e *Engine) Open(ino uint64, flags uint32) (uint64, error) {
	e.inodesMu.Lock()
	_, ok := e.inodes[ino]
	e.inodesMu.Unlock()
	if !ok {
		return 0, newErr("open", ENoEnt)
	}

	h := e.allocHandle()
	e.openFilesMu.Lock()
	e.openFiles[h] = ino
	e.openFilesMu.Unlock()
	return h, nil
}

// OpenDir behaves like Open but fails ENOTDIR if ino is not a directory.
func (e *Engine) OpenDir(ino uint64, flags uint32) (uint64, error) {
	e.inodesMu.Lock()
	n, ok := e.inodes[ino]
	e.inodesMu.Unlock()
	if !ok {
		return 0, newErr("opendir", ENoEnt)
	}
	if !n.IsDir() {
		return 0, newErr("opendir", ENotDir)
	}

	h := e.allocHandle()
	e.openFilesMu.Lock()
	e.openFiles[h] = ino
	e.openFilesMu.Unlock()
	return h, nil
}

// Access reports whether ino exists; no permission bits are checked, per
// the Non-goal that access is always granted to any existing inode.
func (e *Engine) Access(ino uint64) error {
	e.inodesMu.Lock()
	_, ok := e.inodes[ino]
	e.inodesMu.Unlock()
	if !ok {
		return newErr("access", ENoEnt)
	}
	return nil
}

// ReadDir returns the entries of ino's directory list starting at offset.
// A missing directory yields an empty, successful reply rather than ENOENT.
func (e *Engine) ReadDir(ino uint64, offset int) ([]DirEntry, error) {
	e.dirsMu.Lock()
	defer e.dirsMu.Unlock()

	entries := e.dirs[ino]
	if offset >= len(entries) {
		return nil, nil
	}
	return entries[offset:], nil
}

// StatFsReply is the tuple returned by statfs.
type StatFsReply struct {
	TotalBlocks uint64
	FreeBlocks  uint64
	TotalInodes uint64
	FreeInodes  uint64
	BlockSize   uint32
	NameMax     uint32
	Fragment    uint32
}

// StatFs reports block and inode occupancy.
func (e *Engine) StatFs() StatFsReply {
	e.blockBitmapMu.Lock()
	total := e.blockBitmap.Size()
	free := 0
	for i := 0; i < total; i++ {
		if !e.blockBitmap.Get(i) {
			free++
		}
	}
	e.blockBitmapMu.Unlock()

	e.inodesMu.Lock()
	usedInodes := len(e.inodes)
	e.inodesMu.Unlock()

	e.inodeBitmapMu.Lock()
	totalInodes := e.inodeBitmap.Size()
	e.inodeBitmapMu.Unlock()

	b := uint32(e.storage.BytesPerBlock())
	return StatFsReply{
		TotalBlocks: uint64(total),
		FreeBlocks:  uint64(free),
		TotalInodes: uint64(totalInodes),
		FreeInodes:  uint64(totalInodes - usedInodes),
		BlockSize:   b,
		NameMax:     255,
		Fragment:    b,
	}
}
