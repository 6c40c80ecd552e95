package bytecode

import (
	"errors"
	"fmt"
	"sort"
)

// ProgramVersion is the current compiled program format version.
// Increment when making incompatible changes to the format.
const ProgramVersion uint16 = 1

// ErrNodeNotFound is returned when a node name is not part of a program.
var ErrNodeNotFound = errors.New("node not found")

// SourceLocation maps an instruction index to a source line for debugging.
type SourceLocation struct {
	Instruction int    `cbor:"1,keyasint"`
	Line        uint32 `cbor:"2,keyasint"`
}

// Node is a named, independently addressable instruction sequence.
type Node struct {
	Name         string           `cbor:"1,keyasint"`
	Instructions []Instruction    `cbor:"2,keyasint"`
	Labels       map[string]int   `cbor:"3,keyasint,omitempty"` // label -> instruction index
	Tags         []string         `cbor:"4,keyasint,omitempty"`
	SourceText   string           `cbor:"5,keyasint,omitempty"`
	SourceMap    []SourceLocation `cbor:"6,keyasint,omitempty"`
}

// LabelTarget resolves a jump label to an instruction index.
func (n *Node) LabelTarget(label string) (int, bool) {
	idx, ok := n.Labels[label]
	return idx, ok
}

// SourceLine returns the source line for an instruction index.
// Returns 0 if no mapping exists.
func (n *Node) SourceLine(instruction int) uint32 {
	// Find the nearest mapping at or before the instruction
	for i := len(n.SourceMap) - 1; i >= 0; i-- {
		if n.SourceMap[i].Instruction <= instruction {
			return n.SourceMap[i].Line
		}
	}
	return 0
}

// LineInfo is per-line metadata carried alongside the string table.
type LineInfo struct {
	Node string   `cbor:"1,keyasint,omitempty"`
	Line uint32   `cbor:"2,keyasint,omitempty"`
	Tags []string `cbor:"3,keyasint,omitempty"`
}

// Program is the immutable output of the dialogue compiler: nodes keyed by
// name plus a string table keyed by line ID.
type Program struct {
	Version  uint16              `cbor:"1,keyasint"`
	Name     string              `cbor:"2,keyasint,omitempty"`
	Nodes    map[string]*Node    `cbor:"3,keyasint"`
	Strings  map[string]string   `cbor:"4,keyasint,omitempty"`
	LineInfo map[string]LineInfo `cbor:"5,keyasint,omitempty"`
}

// NewProgram creates an empty program with the current version.
func NewProgram(name string) *Program {
	return &Program{
		Version:  ProgramVersion,
		Name:     name,
		Nodes:    make(map[string]*Node),
		Strings:  make(map[string]string),
		LineInfo: make(map[string]LineInfo),
	}
}

// AddNode adds a node. Fails if a node with the same name exists.
func (p *Program) AddNode(n *Node) error {
	if n == nil || n.Name == "" {
		return errors.New("node must have a name")
	}
	if _, exists := p.Nodes[n.Name]; exists {
		return fmt.Errorf("duplicate node %q", n.Name)
	}
	if p.Nodes == nil {
		p.Nodes = make(map[string]*Node)
	}
	p.Nodes[n.Name] = n
	return nil
}

// AddString adds a line template. Fails if the ID is already present.
func (p *Program) AddString(id, text string) error {
	if _, exists := p.Strings[id]; exists {
		return fmt.Errorf("duplicate line id %q", id)
	}
	if p.Strings == nil {
		p.Strings = make(map[string]string)
	}
	p.Strings[id] = text
	return nil
}

// NodeExists reports whether name is a node of the program.
func (p *Program) NodeExists(name string) bool {
	if p == nil {
		return false
	}
	_, ok := p.Nodes[name]
	return ok
}

// Node returns the named node.
func (p *Program) Node(name string) (*Node, error) {
	if p != nil {
		if n, ok := p.Nodes[name]; ok {
			return n, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrNodeNotFound, name)
}

// LineTemplate returns the display template for a line ID.
func (p *Program) LineTemplate(id string) (string, bool) {
	if p == nil {
		return "", false
	}
	s, ok := p.Strings[id]
	return s, ok
}

// NodeNames returns all node names in sorted order.
func (p *Program) NodeNames() []string {
	if p == nil {
		return nil
	}
	names := make([]string, 0, len(p.Nodes))
	for name := range p.Nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TextForNode returns the source text recorded for a node, if any.
func (p *Program) TextForNode(name string) (string, bool) {
	n, err := p.Node(name)
	if err != nil || n.SourceText == "" {
		return "", false
	}
	return n.SourceText, true
}

// Merge copies the nodes and strings of other into p. Nothing is copied if
// any node name or line ID collides.
func (p *Program) Merge(other *Program) error {
	if other == nil {
		return nil
	}
	for name := range other.Nodes {
		if p.NodeExists(name) {
			return fmt.Errorf("merge: duplicate node %q", name)
		}
	}
	for id := range other.Strings {
		if _, exists := p.Strings[id]; exists {
			return fmt.Errorf("merge: duplicate line id %q", id)
		}
	}
	if p.Nodes == nil {
		p.Nodes = make(map[string]*Node)
	}
	if p.Strings == nil {
		p.Strings = make(map[string]string)
	}
	if p.LineInfo == nil {
		p.LineInfo = make(map[string]LineInfo)
	}
	for name, n := range other.Nodes {
		p.Nodes[name] = n
	}
	for id, s := range other.Strings {
		p.Strings[id] = s
	}
	for id, info := range other.LineInfo {
		p.LineInfo[id] = info
	}
	return nil
}

// ValidationError reports a malformed instruction.
type ValidationError struct {
	Node        string
	Instruction int
	Err         error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("node %q instruction %d: %v", e.Node, e.Instruction, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Validate checks that every instruction is well formed and that every
// jump label resolves. The VM relies on a validated program.
func (p *Program) Validate() error {
	if p.Version > ProgramVersion {
		return fmt.Errorf("program version %d is newer than supported version %d", p.Version, ProgramVersion)
	}
	for _, name := range p.NodeNames() {
		n := p.Nodes[name]
		if n == nil {
			return fmt.Errorf("node %q is nil", name)
		}
		if n.Name != name {
			return fmt.Errorf("node %q is registered under %q", n.Name, name)
		}
		for label, idx := range n.Labels {
			// A label may point one past the end to mean "fall off the node".
			if idx < 0 || idx > len(n.Instructions) {
				return fmt.Errorf("node %q: label %q targets %d outside 0..%d", name, label, idx, len(n.Instructions))
			}
		}
		for i, in := range n.Instructions {
			if err := in.validate(); err != nil {
				return &ValidationError{Node: name, Instruction: i, Err: err}
			}
			if in.Op.IsJump() {
				if _, ok := n.Labels[in.Str(0)]; !ok {
					return &ValidationError{Node: name, Instruction: i, Err: fmt.Errorf("unknown label %q", in.Str(0))}
				}
			}
		}
	}
	return nil
}
