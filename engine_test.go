package bwfs

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func newTestEngine(t *testing.T, totalBlocks int) (*Engine, string) {
	t.Helper()
	dir := t.TempDir()
	s, err := NewBlockStorage(dir, 800, 800, totalBlocks, "BWFS")
	if err != nil {
		t.Fatalf("NewBlockStorage: %v", err)
	}
	e, err := NewEngine(s, 256, filepath.Join(dir, "metadata.json"))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e, dir
}

func TestFreshFilesystemRoot(t *testing.T) {
	e, _ := newTestEngine(t, 64)

	root, err := e.GetAttr(1)
	if err != nil {
		t.Fatalf("getattr(1): %v", err)
	}
	if !root.IsDir() || root.UnixMode()&0777 != 0755 || root.NLink != 2 {
		t.Fatalf("unexpected root attrs: mode=%o nlink=%d dir=%v", root.UnixMode(), root.NLink, root.IsDir())
	}

	entries, err := e.ReadDir(1, 0)
	if err != nil {
		t.Fatalf("readdir(1): %v", err)
	}
	if len(entries) != 2 || entries[0].Name != "." || entries[1].Name != ".." {
		t.Fatalf("expected exactly [. ..], got %+v", entries)
	}
}

func TestCreateWriteReadLookup(t *testing.T) {
	e, _ := newTestEngine(t, 64)

	child, _, err := e.Create(1, "hello", 0644, 0, 0)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if child.Ino != 2 {
		t.Fatalf("expected new inode 2, got %d", child.Ino)
	}

	n, err := e.Write(child.Ino, 0, []byte("hi\n"))
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 bytes written, got %d", n)
	}

	data, err := e.Read(child.Ino, 0, 8)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(data, []byte("hi\n")) {
		t.Fatalf("expected %q, got %q", "hi\n", data)
	}

	attr, err := e.GetAttr(child.Ino)
	if err != nil {
		t.Fatalf("getattr: %v", err)
	}
	if attr.Size != 3 {
		t.Fatalf("expected size 3, got %d", attr.Size)
	}

	found, err := e.Lookup(1, "hello")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if found.Ino != child.Ino {
		t.Fatalf("lookup returned ino %d, expected %d", found.Ino, child.Ino)
	}
}

func TestWriteSpansMultipleBlocks(t *testing.T) {
	e, _ := newTestEngine(t, 64)
	child, _, err := e.Create(1, "big", 0644, 0, 0)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	b := e.storage.BytesPerBlock()
	full := bytes.Repeat([]byte{0xAA}, b)
	if _, err := e.Write(child.Ino, 0, full); err != nil {
		t.Fatalf("write full block: %v", err)
	}

	got, err := e.Read(child.Ino, 0, b)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, full) {
		t.Fatal("read back did not match the written full block")
	}

	if _, err := e.Write(child.Ino, int64(b), []byte("Z")); err != nil {
		t.Fatalf("write second block: %v", err)
	}
	attr, err := e.GetAttr(child.Ino)
	if err != nil {
		t.Fatalf("getattr: %v", err)
	}
	if attr.Size != uint64(b)+1 {
		t.Fatalf("expected size %d, got %d", b+1, attr.Size)
	}
}

func TestMkdirRmdirLinkCount(t *testing.T) {
	e, _ := newTestEngine(t, 64)

	_, err := e.Mkdir(1, "d", 0755, 0, 0)
	if err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	root, _ := e.GetAttr(1)
	if root.NLink != 3 {
		t.Fatalf("expected root nlink 3 after mkdir, got %d", root.NLink)
	}

	if err := e.Rmdir(1, "d"); err != nil {
		t.Fatalf("rmdir: %v", err)
	}
	root, _ = e.GetAttr(1)
	if root.NLink != 2 {
		t.Fatalf("expected root nlink back to 2 after rmdir, got %d", root.NLink)
	}

	if err := e.Rmdir(1, "d"); err == nil {
		t.Fatal("expected second rmdir to fail with ENOENT")
	} else if fe, ok := err.(*FSError); !ok || fe.Code != ENoEnt {
		t.Fatalf("expected ENOENT, got %v", err)
	}
}

func TestRmdirNotEmpty(t *testing.T) {
	e, _ := newTestEngine(t, 64)
	if _, err := e.Mkdir(1, "d", 0755, 0, 0); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if _, err := e.Mkdir(2, "inner", 0755, 0, 0); err != nil {
		t.Fatalf("mkdir inner: %v", err)
	}
	if err := e.Rmdir(1, "d"); err == nil {
		t.Fatal("expected ENOTEMPTY")
	} else if fe, ok := err.(*FSError); !ok || fe.Code != ENotEmpty {
		t.Fatalf("expected ENOTEMPTY, got %v", err)
	}
}

func TestWriteReturnsENOSPCWhenBitmapFull(t *testing.T) {
	// total_blocks=2: block 0 is reserved, only block 1 is allocatable.
	e, _ := newTestEngine(t, 2)
	child, _, err := e.Create(1, "a", 0644, 0, 0)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	b := e.storage.BytesPerBlock()
	if _, err := e.Write(child.Ino, 0, bytes.Repeat([]byte{1}, b)); err != nil {
		t.Fatalf("first write should succeed: %v", err)
	}

	_, err = e.Write(child.Ino, int64(b), bytes.Repeat([]byte{1}, b))
	if err == nil {
		t.Fatal("expected second write to fail with ENOSPC")
	}
	if fe, ok := err.(*FSError); !ok || fe.Code != ENoSpc {
		t.Fatalf("expected ENOSPC, got %v", err)
	}
}

func TestBlockZeroNeverAllocated(t *testing.T) {
	e, _ := newTestEngine(t, 8)
	if !e.blockBitmap.Get(0) {
		t.Fatal("block 0 must be reserved immediately after construction")
	}
	for i := 0; i < 8; i++ {
		idx, ok := e.blockBitmap.Allocate()
		if !ok {
			break
		}
		if idx == 0 {
			t.Fatal("allocate must never return block 0")
		}
	}
}

func TestSnapshotIdempotence(t *testing.T) {
	e, dir := newTestEngine(t, 8)
	if _, _, err := e.Create(1, "a", 0644, 0, 0); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := e.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}

	first, err := os.ReadFile(filepath.Join(dir, "metadata.json"))
	if err != nil {
		t.Fatalf("reading snapshot: %v", err)
	}

	reloaded, err := NewEngine(e.storage, 256, filepath.Join(dir, "metadata.json"))
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if err := reloaded.Save(); err != nil {
		t.Fatalf("save after reload: %v", err)
	}

	second, err := os.ReadFile(filepath.Join(dir, "metadata.json"))
	if err != nil {
		t.Fatalf("reading second snapshot: %v", err)
	}

	if !bytes.Equal(first, second) {
		t.Fatal("expected byte-identical metadata.json across a load-then-save with no intervening mutation")
	}
}

func TestCrashWithoutSyncLosesUnflushedState(t *testing.T) {
	e, dir := newTestEngine(t, 8)
	if _, _, err := e.Create(1, "a", 0644, 0, 0); err != nil {
		t.Fatalf("create: %v", err)
	}
	// No Fsync/Release call here: simulate a crash before close-to-close sync.

	reloaded, err := NewEngine(e.storage, 256, filepath.Join(dir, "metadata.json"))
	if err != nil {
		t.Fatalf("reload after crash: %v", err)
	}
	if _, err := reloaded.Lookup(1, "a"); err == nil {
		t.Fatal("expected the unsynced create to be absent after reload")
	}
}

