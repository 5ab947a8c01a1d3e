package bwfs

// Create allocates a new regular-file inode named name inside parent,
// opens it, and returns its attributes alongside the new handle.
func (e *Engine) Create(parent uint64, name string, mode uint16, uid, gid uint32) (*INode, uint64, error) {
	e.inodesMu.Lock()
	p, ok := e.inodes[parent]
	if !ok {
		e.inodesMu.Unlock()
		return nil, 0, newErr("create", ENoEnt)
	}
	if !p.IsDir() {
		e.inodesMu.Unlock()
		return nil, 0, newErr("create", ENotDir)
	}

	e.dirsMu.Lock()
	for _, ent := range e.dirs[parent] {
		if ent.Name == name {
			e.dirsMu.Unlock()
			e.inodesMu.Unlock()
			return nil, 0, newErr("create", EExist)
		}
	}

	ino := e.allocIno()
	child := newINode(ino, RegularFile, mode, uid, gid)
	child.Atime, child.Mtime, child.Ctime = now(), now(), now()
	e.inodes[ino] = child

	e.dirs[parent] = append(e.dirs[parent], DirEntry{Ino: ino, Name: name, Type: RegularFile})
	e.dirsMu.Unlock()
	e.inodesMu.Unlock()

	h := e.allocHandle()
	e.openFilesMu.Lock()
	e.openFiles[h] = ino
	e.openFilesMu.Unlock()

	e.markDirty()
	return child, h, nil
}

// Mkdir allocates a new directory inode named name inside parent, seeded
// with "." and ".." entries, and increments parent's link count.
func (e *Engine) Mkdir(parent uint64, name string, mode uint16, uid, gid uint32) (*INode, error) {
	e.inodesMu.Lock()
	p, ok := e.inodes[parent]
	if !ok {
		e.inodesMu.Unlock()
		return nil, newErr("mkdir", ENoEnt)
	}
	if !p.IsDir() {
		e.inodesMu.Unlock()
		return nil, newErr("mkdir", ENotDir)
	}

	e.dirsMu.Lock()
	for _, ent := range e.dirs[parent] {
		if ent.Name == name {
			e.dirsMu.Unlock()
			e.inodesMu.Unlock()
			return nil, newErr("mkdir", EExist)
		}
	}

	ino := e.allocIno()
	child := newINode(ino, Directory, mode, uid, gid)
	child.NLink = 2
	child.Atime, child.Mtime, child.Ctime = now(), now(), now()
	e.inodes[ino] = child

	e.dirs[ino] = []DirEntry{
		{Ino: ino, Name: ".", Type: Directory},
		{Ino: parent, Name: "..", Type: Directory},
	}
	e.dirs[parent] = append(e.dirs[parent], DirEntry{Ino: ino, Name: name, Type: Directory})
	e.dirsMu.Unlock()

	p.NLink++
	e.inodesMu.Unlock()

	e.markDirty()
	return child, nil
}

// Unlink removes name from parent's directory list, decrements the target's
// link count, and, if it reaches zero, frees every directly-assigned block
// and drops the inode.
func (e *Engine) Unlink(parent uint64, name string) error {
	e.inodesMu.Lock()
	defer e.inodesMu.Unlock()

	e.dirsMu.Lock()
	entries := e.dirs[parent]
	idx := -1
	var targetIno uint64
	for i, ent := range entries {
		if ent.Name == name {
			idx = i
			targetIno = ent.Ino
			break
		}
	}
	if idx == -1 {
		e.dirsMu.Unlock()
		return newErr("unlink", ENoEnt)
	}
	e.dirs[parent] = append(entries[:idx], entries[idx+1:]...)
	e.dirsMu.Unlock()

	target, ok := e.inodes[targetIno]
	if !ok {
		return newErr("unlink", ENoEnt)
	}
	target.NLink--
	if target.NLink == 0 {
		e.blockBitmapMu.Lock()
		for i := 0; i < directBlocks; i++ {
			if phys, assigned := target.GetBlockNumber(i); assigned {
				e.blockBitmap.Clear(int(phys))
			}
		}
		e.blockBitmapMu.Unlock()
		delete(e.inodes, targetIno)
	}

	e.markDirty()
	return nil
}

// Rmdir requires the named entry to be an empty directory (only "." and
// ".." in its list), then removes it and decrements parent's link count.
// Directory inodes never own data blocks in this design, so none are freed.
func (e *Engine) Rmdir(parent uint64, name string) error {
	e.inodesMu.Lock()
	defer e.inodesMu.Unlock()

	e.dirsMu.Lock()
	entries := e.dirs[parent]
	idx := -1
	var targetIno uint64
	for i, ent := range entries {
		if ent.Name == name {
			idx = i
			targetIno = ent.Ino
			break
		}
	}
	if idx == -1 {
		e.dirsMu.Unlock()
		return newErr("rmdir", ENoEnt)
	}

	target, ok := e.inodes[targetIno]
	if !ok || !target.IsDir() {
		e.dirsMu.Unlock()
		return newErr("rmdir", ENoEnt)
	}

	if len(e.dirs[targetIno]) > 2 {
		e.dirsMu.Unlock()
		return newErr("rmdir", ENotEmpty)
	}

	e.dirs[parent] = append(entries[:idx], entries[idx+1:]...)
	delete(e.dirs, targetIno)
	e.dirsMu.Unlock()

	delete(e.inodes, targetIno)
	if p, ok := e.inodes[parent]; ok {
		p.NLink--
	}

	e.markDirty()
	return nil
}

// Rename moves the entry named name from parent to newParent under
// newName. No check is made for a colliding entry already at the
// destination — left as documented, undefined-but-not-crashing behaviour.
func (e *Engine) Rename(parent uint64, name string, newParent uint64, newName string) error {
	e.dirsMu.Lock()
	defer e.dirsMu.Unlock()

	entries := e.dirs[parent]
	idx := -1
	for i, ent := range entries {
		if ent.Name == name {
			idx = i
			break
		}
	}
	if idx == -1 {
		return newErr("rename", ENoEnt)
	}

	moved := entries[idx]
	e.dirs[parent] = append(entries[:idx], entries[idx+1:]...)
	moved.Name = newName
	e.dirs[newParent] = append(e.dirs[newParent], moved)

	e.markDirty()
	return nil
}
