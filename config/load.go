package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// FileName is the name of the configuration file looked up by Load and
// FindAndLoad.
const FileName = "esch.toml"

// File represents an esch.toml file.
type File struct {
	GC    GCSection    `toml:"gc"`
	Log   LogSection   `toml:"log"`
	Alloc AllocSection `toml:"alloc"`

	// Path is the absolute path of the loaded file (set at load time).
	Path string `toml:"-"`
}

// GCSection configures the collector. Nil fields keep the collector's
// defaults.
type GCSection struct {
	InitialSlots  *int  `toml:"initial_slot_count"`
	GrowthEnabled *bool `toml:"growth_enabled"`
}

// LogSection configures the logger.
type LogSection struct {
	Console   bool   `toml:"console"`
	Verbosity int    `toml:"verbosity"`
	Name      string `toml:"name"`
}

// AllocSection configures the allocator.
type AllocSection struct {
	Limit int64 `toml:"limit"`
}

// Load parses esch.toml from the given directory.
func Load(dir string) (*File, error) {
	return LoadFile(filepath.Join(dir, FileName))
}

// LoadFile parses the named file. Unknown keys are rejected.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var f File
	dec := toml.NewDecoder(bytes.NewReader(data))
	md, err := dec.Decode(&f)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown key %q in %s", undecoded[0].String(), path)
	}

	f.Path, err = filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", path, err)
	}

	// Defaults
	if f.Log.Name == "" {
		f.Log.Name = "esch"
	}

	return &f, nil
}

// FindAndLoad walks up from startDir to find an esch.toml file, then loads
// and returns it. Returns nil if no file is found.
func FindAndLoad(startDir string) (*File, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, nil
		}
		dir = parent
	}
}

// Apply copies the collector tunables present in the file into c.
func (f *File) Apply(c *Config) error {
	if f.GC.InitialSlots != nil {
		if err := c.SetInt(KeyInitialSlots, *f.GC.InitialSlots); err != nil {
			return err
		}
	}
	if f.GC.GrowthEnabled != nil {
		if err := c.SetBool(KeyGrowth, *f.GC.GrowthEnabled); err != nil {
			return err
		}
	}
	return nil
}
