package bwfs

import (
	"fmt"
	"strings"

	"gopkg.in/ini.v1"
)

// Config is the parsed form of the INI configuration file described in the
// external interfaces: one [filesystem] section and an optional [network]
// section of up to nine distributed node addresses.
type Config struct {
	Name string

	BlockWidth  int
	BlockHeight int
	TotalBlocks int
	TotalInodes int

	StoragePath string
	Fingerprint string
	TCPPort     int

	DistributedNodes []string
}

// LoadConfig parses path as an INI document and applies the documented
// defaults for every optional key.
func LoadConfig(path string) (*Config, error) {
	f, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("bwfs: loading config: %w", err)
	}

	fs := f.Section("filesystem")

	name := fs.Key("name").String()
	if name == "" {
		return nil, fmt.Errorf("bwfs: config missing required 'name' field")
	}

	storagePath := fs.Key("storage_path").String()
	if storagePath == "" {
		return nil, fmt.Errorf("bwfs: config missing required 'storage_path' field")
	}

	totalBlocks, err := fs.Key("total_blocks").Int()
	if err != nil || totalBlocks <= 0 {
		return nil, fmt.Errorf("bwfs: config missing or invalid required 'total_blocks' field")
	}

	cfg := &Config{
		Name:        name,
		BlockWidth:  fs.Key("block_width").MustInt(1000),
		BlockHeight: fs.Key("block_height").MustInt(1000),
		TotalBlocks: totalBlocks,
		TotalInodes: fs.Key("total_inodes").MustInt(1024),
		StoragePath: storagePath,
		Fingerprint: strings.TrimSpace(fs.Key("fingerprint").MustString("BWFS")),
		TCPPort:     fs.Key("tcp_port").MustInt(9000),
	}

	net := f.Section("network")
	for i := 1; i <= 9; i++ {
		key := fmt.Sprintf("node%d", i)
		if net.HasKey(key) {
			cfg.DistributedNodes = append(cfg.DistributedNodes, net.Key(key).String())
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the dimension and count invariants spec.md §6 requires.
func (c *Config) Validate() error {
	if c.BlockWidth <= 0 || c.BlockWidth > 1000 || c.BlockHeight <= 0 || c.BlockHeight > 1000 {
		return fmt.Errorf("bwfs: block dimensions must not exceed 1000x1000 pixels")
	}
	if (c.BlockWidth*c.BlockHeight)%8 != 0 {
		return fmt.Errorf("bwfs: block_width * block_height must be divisible by 8")
	}
	if c.TotalBlocks <= 0 {
		return fmt.Errorf("bwfs: total_blocks must be greater than 0")
	}
	if c.TotalInodes <= 0 {
		return fmt.Errorf("bwfs: total_inodes must be greater than 0")
	}
	return nil
}
