// Package manifest handles yarn.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// FileName is the manifest file looked up in project directories.
const FileName = "yarn.toml"

// Storage drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

// Manifest represents a yarn.toml project configuration.
type Manifest struct {
	Project Project       `toml:"project"`
	Program ProgramConfig `toml:"program"`
	Storage StorageConfig `toml:"storage"`
	Runtime RuntimeConfig `toml:"runtime"`
	Log     LogConfig     `toml:"log"`

	// Dir is the directory containing the yarn.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// ProgramConfig locates the compiled dialogue.
type ProgramConfig struct {
	Files []string `toml:"files"`
	Start string   `toml:"start"`
}

// StorageConfig selects where variables are kept.
type StorageConfig struct {
	Driver string `toml:"driver"`
	Path   string `toml:"path"`
}

// RuntimeConfig tunes the VM.
type RuntimeConfig struct {
	StepLimit int  `toml:"step-limit"`
	Trace     bool `toml:"trace"`
}

// LogConfig configures commonlog.
type LogConfig struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Load parses a yarn.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	return m, nil
}

// Parse decodes manifest content, applies defaults and validates it.
// Dir is left empty.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	md, err := toml.Decode(string(data), &m)
	if err != nil {
		return nil, err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown key %q", undecoded[0].String())
	}

	// Defaults
	if m.Program.Start == "" {
		m.Program.Start = "Start"
	}
	if m.Storage.Driver == "" {
		m.Storage.Driver = DriverMemory
	}
	if m.Storage.Driver == DriverSQLite && m.Storage.Path == "" {
		m.Storage.Path = filepath.Join(".yarn", "variables.db")
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks values the decoder cannot.
func (m *Manifest) Validate() error {
	switch m.Storage.Driver {
	case DriverMemory, DriverSQLite:
	default:
		return fmt.Errorf("storage driver %q must be %q or %q", m.Storage.Driver, DriverMemory, DriverSQLite)
	}
	if m.Runtime.StepLimit < 0 {
		return fmt.Errorf("runtime step-limit must not be negative, got %d", m.Runtime.StepLimit)
	}
	return nil
}

// FindAndLoad walks up from startDir to find a yarn.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// ProgramPaths returns absolute paths for the configured program files.
func (m *Manifest) ProgramPaths() []string {
	var paths []string
	for _, f := range m.Program.Files {
		paths = append(paths, m.resolve(f))
	}
	return paths
}

// StoragePath returns the absolute path of the SQLite database.
func (m *Manifest) StoragePath() string {
	if m.Storage.Path == ":memory:" {
		return m.Storage.Path
	}
	return m.resolve(m.Storage.Path)
}

// LogFilePath returns the absolute log file path, or "" for stderr.
func (m *Manifest) LogFilePath() string {
	if m.Log.File == "" {
		return ""
	}
	return m.resolve(m.Log.File)
}

func (m *Manifest) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.Dir, p)
}
