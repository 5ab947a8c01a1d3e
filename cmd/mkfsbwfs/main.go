// Command mkfsbwfs initialises a fresh BWFS filesystem: writes the
// fingerprint to block 0, pre-initialises a handful of blocks, and writes
// the first metadata.json snapshot.
package main

import (
	"flag"
	"log"
	"path/filepath"

	"github.com/blackwhitefs/bwfs"
)

func main() {
	configPath := flag.String("c", "", "path to the BWFS INI configuration file")
	flag.Parse()

	if *configPath == "" {
		log.Fatal("mkfsbwfs: -c <config> is required")
	}

	cfg, err := bwfs.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("mkfsbwfs: %v", err)
	}

	storage, err := bwfs.NewBlockStorage(cfg.StoragePath, cfg.BlockWidth, cfg.BlockHeight, cfg.TotalBlocks, cfg.Fingerprint)
	if err != nil {
		log.Fatalf("mkfsbwfs: %v", err)
	}

	init := cfg.TotalBlocks
	if init > 10 {
		init = 10
	}
	for i := 0; i < init; i++ {
		if err := storage.Init(uint32(i)); err != nil {
			log.Fatalf("mkfsbwfs: initialising block %d: %v", i, err)
		}
	}

	if err := storage.WriteFingerprint(); err != nil {
		log.Fatalf("mkfsbwfs: writing fingerprint: %v", err)
	}

	metadataPath := filepath.Join(cfg.StoragePath, "metadata.json")
	engine, err := bwfs.NewEngine(storage, cfg.TotalInodes, metadataPath)
	if err != nil {
		log.Fatalf("mkfsbwfs: %v", err)
	}
	if err := engine.Save(); err != nil {
		log.Fatalf("mkfsbwfs: writing initial metadata.json: %v", err)
	}

	log.Printf("mkfsbwfs: initialised %q at %s (%d blocks, %d inodes)", cfg.Name, cfg.StoragePath, cfg.TotalBlocks, cfg.TotalInodes)
}
