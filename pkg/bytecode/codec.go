package bytecode

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"

	"github.com/fxamacker/cbor/v2"
)

// ProgramMagic identifies compiled program files: "YRNC" (Yarn Compiled).
var ProgramMagic = []byte{'Y', 'R', 'N', 'C'}

// cborEncMode uses canonical mode so equal programs encode identically.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("bytecode: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// MarshalProgram encodes a program for storage/transport.
// Format:
//
//	[magic:4] [version:2] [cbor body:...]
func MarshalProgram(p *Program) ([]byte, error) {
	body, err := cborEncMode.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("bytecode: marshal program: %w", err)
	}
	buf := make([]byte, 0, len(body)+6)
	buf = append(buf, ProgramMagic...)
	buf = binary.BigEndian.AppendUint16(buf, p.Version)
	buf = append(buf, body...)
	return buf, nil
}

// UnmarshalProgram decodes and validates a program produced by MarshalProgram.
func UnmarshalProgram(data []byte) (*Program, error) {
	if len(data) < 6 {
		return nil, fmt.Errorf("bytecode: program too short: need at least 6 bytes, got %d", len(data))
	}
	if !bytes.Equal(data[:4], ProgramMagic) {
		return nil, fmt.Errorf("bytecode: invalid program magic: expected %q, got %q", ProgramMagic, data[:4])
	}
	version := binary.BigEndian.Uint16(data[4:6])
	if version > ProgramVersion {
		return nil, fmt.Errorf("bytecode: program version %d is newer than supported version %d", version, ProgramVersion)
	}

	var p Program
	if err := cbor.Unmarshal(data[6:], &p); err != nil {
		return nil, fmt.Errorf("bytecode: unmarshal program: %w", err)
	}
	if p.Version != version {
		return nil, fmt.Errorf("bytecode: header version %d does not match body version %d", version, p.Version)
	}
	p.ensureMaps()
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("bytecode: %w", err)
	}
	return &p, nil
}

// WriteFile writes a compiled program to path.
func WriteFile(path string, p *Program) error {
	data, err := MarshalProgram(p)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("bytecode: write %s: %w", path, err)
	}
	return nil
}

// ReadFile reads a compiled program from path.
func ReadFile(path string) (*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("bytecode: read %s: %w", path, err)
	}
	return UnmarshalProgram(data)
}

// ensureMaps replaces nil maps left by decoding so callers can add to them.
func (p *Program) ensureMaps() {
	if p.Nodes == nil {
		p.Nodes = make(map[string]*Node)
	}
	if p.Strings == nil {
		p.Strings = make(map[string]string)
	}
	if p.LineInfo == nil {
		p.LineInfo = make(map[string]LineInfo)
	}
	for _, n := range p.Nodes {
		if n != nil && n.Labels == nil {
			n.Labels = make(map[string]int)
		}
	}
}
