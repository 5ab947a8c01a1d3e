package bwfs

import (
	"syscall"
	"time"

	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/sirupsen/logrus"
)

// Dispatcher adapts the namespace engine to go-fuse's RawFileSystem
// contract. It is the only package-level type that imports go-fuse/v2/fuse;
// the engine itself returns only *FSError and never sees a fuse.Status.
// Methods not overridden here fall back to the embedded default
// implementation (locking, xattrs, symlinks — all out of scope).
type Dispatcher struct {
	fuse.RawFileSystem
	engine *Engine
	log    *logrus.Logger
}

func NewDispatcher(e *Engine) *Dispatcher {
	return &Dispatcher{
		RawFileSystem: fuse.NewDefaultRawFileSystem(),
		engine:        e,
		log:           logrus.StandardLogger(),
	}
}

// statusFor translates an *FSError into the fuse.Status wire value. A nil
// error becomes fuse.OK; any non-FSError becomes EIO.
func statusFor(err error) fuse.Status {
	if err == nil {
		return fuse.OK
	}
	fe, ok := err.(*FSError)
	if !ok {
		return fuse.Status(syscall.EIO)
	}
	switch fe.Code {
	case ENoEnt:
		return fuse.Status(syscall.ENOENT)
	case ENotDir:
		return fuse.Status(syscall.ENOTDIR)
	case EIsDir:
		return fuse.Status(syscall.EISDIR)
	case EExist:
		return fuse.Status(syscall.EEXIST)
	case ENotEmpty:
		return fuse.Status(syscall.ENOTEMPTY)
	case ENoSpc:
		return fuse.Status(syscall.ENOSPC)
	default:
		return fuse.Status(syscall.EIO)
	}
}

func (d *Dispatcher) fillAttr(attr *fuse.Attr, n *INode) {
	b := uint32(d.engine.storage.BytesPerBlock())
	attr.Ino = n.Ino
	attr.Size = n.Size
	attr.Blocks = (n.Size + uint64(b) - 1) / uint64(b)
	attr.Mode = n.UnixMode()
	attr.Nlink = n.NLink
	attr.Owner.Uid = n.Uid
	attr.Owner.Gid = n.Gid
	attr.Blksize = b
	attr.Atime = uint64(n.Atime.Unix())
	attr.Mtime = uint64(n.Mtime.Unix())
	attr.Ctime = uint64(n.Ctime.Unix())
}

func (d *Dispatcher) fillEntry(out *fuse.EntryOut, n *INode) {
	out.NodeId = n.Ino
	out.SetEntryTimeout(time.Second)
	out.SetAttrTimeout(time.Second)
	d.fillAttr(&out.Attr, n)
}

// direntMode returns the raw Unix type bits a fuse.DirEntryList entry needs
// to derive its d_type, with no permission bits set. Reuses mode.go's
// ModeToUnix table rather than re-deriving the type-bit switch here.
func direntMode(t FileType) uint32 {
	return uint32(ModeToUnix(t.Mode()))
}

func (d *Dispatcher) String() string { return "bwfs" }

func (d *Dispatcher) Lookup(cancel <-chan struct{}, header *fuse.InHeader, name string, out *fuse.EntryOut) fuse.Status {
	n, err := d.engine.Lookup(header.NodeId, name)
	if err != nil {
		return statusFor(err)
	}
	d.fillEntry(out, n)
	return fuse.OK
}

func (d *Dispatcher) GetAttr(cancel <-chan struct{}, input *fuse.GetAttrIn, out *fuse.AttrOut) fuse.Status {
	n, err := d.engine.GetAttr(input.NodeId)
	if err != nil {
		return statusFor(err)
	}
	out.SetTimeout(time.Second)
	d.fillAttr(&out.Attr, n)
	return fuse.OK
}

func (d *Dispatcher) Open(cancel <-chan struct{}, input *fuse.OpenIn, out *fuse.OpenOut) fuse.Status {
	h, err := d.engine.Open(input.NodeId, input.Flags)
	if err != nil {
		return statusFor(err)
	}
	out.Fh = h
	return fuse.OK
}

func (d *Dispatcher) OpenDir(cancel <-chan struct{}, input *fuse.OpenIn, out *fuse.OpenOut) fuse.Status {
	h, err := d.engine.OpenDir(input.NodeId, input.Flags)
	if err != nil {
		return statusFor(err)
	}
	out.Fh = h
	return fuse.OK
}

func (d *Dispatcher) Create(cancel <-chan struct{}, input *fuse.CreateIn, name string, out *fuse.CreateOut) fuse.Status {
	n, h, err := d.engine.Create(input.NodeId, name, NormalizePermMode(input.Mode), input.Uid, input.Gid)
	if err != nil {
		return statusFor(err)
	}
	d.fillEntry(&out.Entry, n)
	out.Open.Fh = h
	return fuse.OK
}

func (d *Dispatcher) Mkdir(cancel <-chan struct{}, input *fuse.MkdirIn, name string, out *fuse.EntryOut) fuse.Status {
	n, err := d.engine.Mkdir(input.NodeId, name, NormalizePermMode(input.Mode), input.Uid, input.Gid)
	if err != nil {
		return statusFor(err)
	}
	d.fillEntry(out, n)
	return fuse.OK
}

func (d *Dispatcher) Read(cancel <-chan struct{}, input *fuse.ReadIn, buf []byte) (fuse.ReadResult, fuse.Status) {
	data, err := d.engine.Read(input.NodeId, int64(input.Offset), int(input.Size))
	if err != nil {
		return nil, statusFor(err)
	}
	return fuse.ReadResultData(data), fuse.OK
}

func (d *Dispatcher) Write(cancel <-chan struct{}, input *fuse.WriteIn, data []byte) (uint32, fuse.Status) {
	n, err := d.engine.Write(input.NodeId, int64(input.Offset), data)
	if err != nil {
		return 0, statusFor(err)
	}
	return uint32(n), fuse.OK
}

func (d *Dispatcher) Unlink(cancel <-chan struct{}, header *fuse.InHeader, name string) fuse.Status {
	return statusFor(d.engine.Unlink(header.NodeId, name))
}

func (d *Dispatcher) Rmdir(cancel <-chan struct{}, header *fuse.InHeader, name string) fuse.Status {
	return statusFor(d.engine.Rmdir(header.NodeId, name))
}

func (d *Dispatcher) Rename(cancel <-chan struct{}, input *fuse.RenameIn, oldName string, newName string) fuse.Status {
	return statusFor(d.engine.Rename(input.NodeId, oldName, input.Newdir, newName))
}

func (d *Dispatcher) ReadDir(cancel <-chan struct{}, input *fuse.ReadIn, out *fuse.DirEntryList) fuse.Status {
	entries, err := d.engine.ReadDir(input.NodeId, int(input.Offset))
	if err != nil {
		return statusFor(err)
	}
	for _, ent := range entries {
		if !out.Add(0, ent.Name, ent.Ino, direntMode(ent.Type)) {
			break
		}
	}
	return fuse.OK
}

func (d *Dispatcher) Flush(cancel <-chan struct{}, input *fuse.FlushIn) fuse.Status {
	return statusFor(d.engine.Flush(input.NodeId, input.Fh))
}

func (d *Dispatcher) Fsync(cancel <-chan struct{}, input *fuse.FsyncIn) fuse.Status {
	return statusFor(d.engine.Fsync(input.NodeId, input.Fh, input.FsyncFlags != 0))
}

func (d *Dispatcher) Access(cancel <-chan struct{}, input *fuse.AccessIn) fuse.Status {
	return statusFor(d.engine.Access(input.NodeId))
}

func (d *Dispatcher) StatFs(cancel <-chan struct{}, input *fuse.InHeader, out *fuse.StatfsOut) fuse.Status {
	r := d.engine.StatFs()
	out.St.Blocks = r.TotalBlocks
	out.St.Bfree = r.FreeBlocks
	out.St.Bavail = r.FreeBlocks
	out.St.Files = r.TotalInodes
	out.St.Ffree = r.FreeInodes
	out.St.Bsize = r.BlockSize
	out.St.NameLen = r.NameMax
	out.St.Frsize = r.Fragment
	return fuse.OK
}

func (d *Dispatcher) Release(cancel <-chan struct{}, input *fuse.ReleaseIn) {
	_ = d.engine.Release(input.NodeId, input.Fh)
}

func (d *Dispatcher) ReleaseDir(input *fuse.ReleaseIn) {
	_ = d.engine.ReleaseDir(input.NodeId, input.Fh)
}
