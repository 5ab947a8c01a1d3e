package bwfs

// Flush is a no-op success; BWFS has no per-handle write buffer to drain.
func (e *Engine) Flush(ino uint64, fh uint64) error {
	return nil
}

// Fsync runs the sync-if-dirty snapshot procedure regardless of the
// datasync flag. Block data is already written to its image file by Write,
// so only the metadata snapshot can be pending.
func (e *Engine) Fsync(ino uint64, fh uint64, datasync bool) error {
	if err := e.syncIfDirty(); err != nil {
		return newErr("fsync", EIO)
	}
	return nil
}

// Release runs sync-if-dirty, then drops fh from the open-file table.
func (e *Engine) Release(ino uint64, fh uint64) error {
	if err := e.syncIfDirty(); err != nil {
		return newErr("release", EIO)
	}
	e.openFilesMu.Lock()
	delete(e.openFiles, fh)
	e.openFilesMu.Unlock()
	return nil
}

// ReleaseDir behaves identically to Release.
func (e *Engine) ReleaseDir(ino uint64, fh uint64) error {
	return e.Release(ino, fh)
}
