package bytecode

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Extension of compiled program files.
const CompiledExt = ".yarnc"

// LoadFile reads a program, choosing the decoder by file extension:
// .yarnc (compiled), .yaml/.yml or .json (program documents).
func LoadFile(path string) (*Program, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == CompiledExt {
		return ReadFile(path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("bytecode: read %s: %w", path, err)
	}

	var p *Program
	switch ext {
	case ".yaml", ".yml":
		p, err = ParseYAML(data)
	case ".json":
		p, err = ParseJSON(data)
	default:
		return nil, fmt.Errorf("bytecode: unsupported program file extension %q (use %s, .yaml or .json)", ext, CompiledExt)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if p.Name == "" {
		p.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return p, nil
}

// LoadFiles loads and merges several program files into one program.
func LoadFiles(paths ...string) (*Program, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("bytecode: no program files given")
	}
	merged, err := LoadFile(paths[0])
	if err != nil {
		return nil, err
	}
	for _, path := range paths[1:] {
		p, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		if err := merged.Merge(p); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	return merged, nil
}
