// Command mountbwfs verifies a filesystem's on-disk fingerprint and mounts
// it at the given mountpoint via go-fuse.
package main

import (
	"flag"
	"log"
	"os"
	"path/filepath"

	"github.com/blackwhitefs/bwfs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

func main() {
	configPath := flag.String("c", "", "path to the BWFS INI configuration file")
	allowOther := flag.Bool("o", false, "allow access by non-owner users")
	foreground := flag.Bool("f", false, "keep the process in the foreground (always true in this implementation)")
	flag.Parse()
	_ = foreground

	if *configPath == "" {
		log.Fatal("mountbwfs: -c <config> is required")
	}
	if flag.NArg() < 1 {
		log.Fatal("mountbwfs: <mountpoint> is required")
	}
	mountpoint := flag.Arg(0)

	cfg, err := bwfs.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("mountbwfs: %v", err)
	}

	if _, err := os.Stat(cfg.StoragePath); err != nil {
		log.Fatalf("mountbwfs: storage path %s does not exist, did you run mkfs.bwfs?", cfg.StoragePath)
	}

	storage, err := bwfs.NewBlockStorage(cfg.StoragePath, cfg.BlockWidth, cfg.BlockHeight, cfg.TotalBlocks, cfg.Fingerprint)
	if err != nil {
		log.Fatalf("mountbwfs: %v", err)
	}

	ok, err := storage.VerifyFingerprint()
	if err != nil {
		log.Fatalf("mountbwfs: reading fingerprint: %v", err)
	}
	if !ok {
		log.Fatalf("mountbwfs: fingerprint mismatch: storage at %s does not carry fingerprint %q", cfg.StoragePath, cfg.Fingerprint)
	}

	metadataPath := filepath.Join(cfg.StoragePath, "metadata.json")
	engine, err := bwfs.NewEngine(storage, cfg.TotalInodes, metadataPath)
	if err != nil {
		log.Fatalf("mountbwfs: %v", err)
	}

	dispatcher := bwfs.NewDispatcher(engine)

	server, err := fuse.NewServer(dispatcher, mountpoint, &fuse.MountOptions{
		AllowOther: *allowOther,
		Name:       cfg.Name,
		FsName:     "bwfs",
	})
	if err != nil {
		log.Fatalf("mountbwfs: mounting at %s: %v", mountpoint, err)
	}

	log.Printf("mountbwfs: %q mounted at %s", cfg.Name, mountpoint)
	server.Serve()
}
