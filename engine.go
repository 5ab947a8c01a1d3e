package bwfs

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Engine is the namespace engine: the in-memory tables behind the storage
// façade, plus the locks that guard each of them. Lock acquisition always
// follows the same prefix of this order, top to bottom, to avoid deadlock:
// inodes, directories, storage, block bitmap, inode bitmap, next-inode,
// next-handle, open-files, dirty flag.
type Engine struct {
	storage   *BlockStorage
	storageMu sync.Mutex

	inodes   map[uint64]*INode
	inodesMu sync.Mutex

	dirs   map[uint64][]DirEntry
	dirsMu sync.Mutex

	blockBitmap   *Bitmap
	blockBitmapMu sync.Mutex

	inodeBitmap   *Bitmap
	inodeBitmapMu sync.Mutex

	nextIno   uint64
	nextInoMu sync.Mutex

	nextHandle   uint64
	nextHandleMu sync.Mutex

	openFiles   map[uint64]uint64 // handle -> ino
	openFilesMu sync.Mutex

	dirty   bool
	dirtyMu sync.Mutex

	metadataPath string
	log          *logrus.Logger
}

// snapshot is the JSON-serialisable shape of metadata.json.
type snapshot struct {
	Inodes      map[string]*INode     `json:"inodes"`
	Directories map[string][]DirEntry `json:"directories"`
	BlockBitmap *Bitmap               `json:"block_bitmap"`
	InodeBitmap *Bitmap               `json:"inode_bitmap"`
	NextIno     uint64                `json:"next_ino"`
}

// NewEngine loads metadataPath if it exists, else builds a fresh filesystem:
// both bitmaps all-free except block 0 (superblock reservation), and a root
// directory inode 1 owned by uid/gid 0, mode 0755, containing "." and "..".
func NewEngine(storage *BlockStorage, totalInodes int, metadataPath string, opts ...Option) (*Engine, error) {
	e := &Engine{
		storage:      storage,
		openFiles:    make(map[uint64]uint64),
		metadataPath: metadataPath,
		log:          logrus.StandardLogger(),
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}

	if data, err := os.ReadFile(metadataPath); err == nil {
		var snap snapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			return nil, wrapErr("load", EIO, err)
		}
		e.inodes = make(map[uint64]*INode, len(snap.Inodes))
		for k, v := range snap.Inodes {
			ino, perr := parseIno(k)
			if perr != nil {
				return nil, wrapErr("load", EIO, perr)
			}
			e.inodes[ino] = v
		}
		e.dirs = make(map[uint64][]DirEntry, len(snap.Directories))
		for k, v := range snap.Directories {
			ino, perr := parseIno(k)
			if perr != nil {
				return nil, wrapErr("load", EIO, perr)
			}
			e.dirs[ino] = v
		}
		e.blockBitmap = snap.BlockBitmap
		e.inodeBitmap = snap.InodeBitmap
		e.nextIno = snap.NextIno
		// self-heal: older images may not have reserved block 0
		e.blockBitmap.Set(0)
		e.log.WithField("path", metadataPath).Info("loaded existing metadata snapshot")
		return e, nil
	}

	e.inodes = make(map[uint64]*INode)
	e.dirs = make(map[uint64][]DirEntry)
	e.blockBitmap = NewBitmap(storage.TotalBlocks())
	e.blockBitmap.Set(0)
	e.inodeBitmap = NewBitmap(totalInodes)

	root := newINode(1, Directory, 0755, 0, 0)
	root.NLink = 2
	e.inodes[1] = root
	e.inodeBitmap.Set(1)
	e.dirs[1] = []DirEntry{
		{Ino: 1, Name: ".", Type: Directory},
		{Ino: 1, Name: "..", Type: Directory},
	}
	e.nextIno = 2

	e.log.Info("initialised fresh filesystem")
	return e, nil
}

func (e *Engine) markDirty() {
	e.dirtyMu.Lock()
	e.dirty = true
	e.dirtyMu.Unlock()
}

// Save forces an unconditional metadata.json write, bypassing the dirty
// check. Used by mkfsbwfs to produce the initial snapshot of a filesystem
// that has had no mutating operation run against it yet.
func (e *Engine) Save() error {
	e.markDirty()
	return e.syncIfDirty()
}

// syncIfDirty implements the "sync-if-dirty" procedure: if the dirty flag is
// clear, it does nothing. Otherwise it clones every table under its own
// lock, releases all locks, and only then serialises and writes
// metadata.json — no lock is held across disk I/O.
func (e *Engine) syncIfDirty() error {
	e.dirtyMu.Lock()
	if !e.dirty {
		e.dirtyMu.Unlock()
		return nil
	}
	e.dirtyMu.Unlock()

	snap := e.cloneForSnapshot()

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return wrapErr("fsync", EIO, err)
	}
	if err := os.WriteFile(e.metadataPath, data, 0644); err != nil {
		return wrapErr("fsync", EIO, err)
	}

	e.dirtyMu.Lock()
	e.dirty = false
	e.dirtyMu.Unlock()
	return nil
}

func (e *Engine) cloneForSnapshot() snapshot {
	e.inodesMu.Lock()
	inodes := make(map[string]*INode, len(e.inodes))
	for k, v := range e.inodes {
		cp := *v
		inodes[formatIno(k)] = &cp
	}
	e.inodesMu.Unlock()

	e.dirsMu.Lock()
	dirs := make(map[string][]DirEntry, len(e.dirs))
	for k, v := range e.dirs {
		cp := make([]DirEntry, len(v))
		copy(cp, v)
		dirs[formatIno(k)] = cp
	}
	e.dirsMu.Unlock()

	e.blockBitmapMu.Lock()
	blockBitmap := e.blockBitmap.Clone()
	e.blockBitmapMu.Unlock()

	e.inodeBitmapMu.Lock()
	inodeBitmap := e.inodeBitmap.Clone()
	e.inodeBitmapMu.Unlock()

	e.nextInoMu.Lock()
	nextIno := e.nextIno
	e.nextInoMu.Unlock()

	return snapshot{
		Inodes:      inodes,
		Directories: dirs,
		BlockBitmap: blockBitmap,
		InodeBitmap: inodeBitmap,
		NextIno:     nextIno,
	}
}

func (e *Engine) allocIno() uint64 {
	e.nextInoMu.Lock()
	ino := e.nextIno
	e.nextIno++
	e.nextInoMu.Unlock()

	e.inodeBitmapMu.Lock()
	e.inodeBitmap.Set(int(ino))
	e.inodeBitmapMu.Unlock()

	return ino
}

func (e *Engine) allocHandle() uint64 {
	e.nextHandleMu.Lock()
	defer e.nextHandleMu.Unlock()
	h := e.nextHandle + 1
	e.nextHandle = h
	return h
}

func now() time.Time { return time.Now() }
