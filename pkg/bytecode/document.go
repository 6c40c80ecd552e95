package bytecode

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/chazu/yarnvm/pkg/value"
)

// Program documents are a readable assembly form of a compiled program,
// used for fixtures, tooling and hand-written dialogue:
//
//	name: demo
//	strings:
//	  line:hello: "Hello, {0}!"
//	nodes:
//	  Start:
//	    tags: [intro]
//	    code:
//	      - [PushVariable, $name]
//	      - [RunLine, line:hello, 1]
//	      - label: done
//	      - Stop
//
// A code entry is an opcode name, a sequence of opcode name and operands,
// or a mapping placing a label. Operand types follow the opcode table.

type document struct {
	Name     string                  `yaml:"name,omitempty" json:"name,omitempty"`
	Strings  map[string]string       `yaml:"strings,omitempty" json:"strings,omitempty"`
	LineInfo map[string]documentLine `yaml:"lineInfo,omitempty" json:"lineInfo,omitempty"`
	Nodes    map[string]documentNode `yaml:"nodes" json:"nodes"`
}

type documentLine struct {
	Node string   `yaml:"node,omitempty" json:"node,omitempty"`
	Line uint32   `yaml:"line,omitempty" json:"line,omitempty"`
	Tags []string `yaml:"tags,omitempty" json:"tags,omitempty"`
}

type documentNode struct {
	Tags   []string `yaml:"tags,omitempty" json:"tags,omitempty"`
	Source string   `yaml:"source,omitempty" json:"source,omitempty"`
	Code   []any    `yaml:"code" json:"code"`
	// Lines pairs an instruction index with its source line.
	Lines [][2]uint32 `yaml:"lines,omitempty" json:"lines,omitempty"`
}

// documentSchema is the JSON Schema every document must satisfy before it
// is assembled.
const documentSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["nodes"],
  "additionalProperties": false,
  "properties": {
    "name": {"type": "string"},
    "strings": {"type": "object", "additionalProperties": {"type": "string"}},
    "lineInfo": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "additionalProperties": false,
        "properties": {
          "node": {"type": "string"},
          "line": {"type": "integer", "minimum": 0},
          "tags": {"type": "array", "items": {"type": "string"}}
        }
      }
    },
    "nodes": {"type": "object", "additionalProperties": {"$ref": "#/definitions/node"}}
  },
  "definitions": {
    "node": {
      "type": "object",
      "required": ["code"],
      "additionalProperties": false,
      "properties": {
        "tags": {"type": "array", "items": {"type": "string"}},
        "source": {"type": "string"},
        "code": {"type": "array", "items": {"$ref": "#/definitions/entry"}},
        "lines": {
          "type": "array",
          "items": {
            "type": "array",
            "minItems": 2,
            "maxItems": 2,
            "items": {"type": "integer", "minimum": 0}
          }
        }
      }
    },
    "entry": {
      "oneOf": [
        {"type": "string"},
        {"type": "array", "minItems": 1, "items": [{"type": "string"}]},
        {
          "type": "object",
          "required": ["label"],
          "additionalProperties": false,
          "properties": {"label": {"type": "string"}}
        }
      ]
    }
  }
}`

var documentSchemaLoader = gojsonschema.NewStringLoader(documentSchema)

// SchemaError lists every schema violation found in a document.
type SchemaError struct {
	Problems []string
}

func (e *SchemaError) Error() string {
	return "invalid program document: " + strings.Join(e.Problems, "; ")
}

func validateDocument(raw any) error {
	result, err := gojsonschema.Validate(documentSchemaLoader, gojsonschema.NewGoLoader(raw))
	if err != nil {
		return fmt.Errorf("invalid program document: %w", err)
	}
	if result.Valid() {
		return nil
	}
	problems := make([]string, 0, len(result.Errors()))
	for _, re := range result.Errors() {
		problems = append(problems, re.String())
	}
	return &SchemaError{Problems: problems}
}

// ParseYAML assembles a program from a YAML document.
func ParseYAML(data []byte) (*Program, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("bytecode: parse yaml: %w", err)
	}
	if err := validateDocument(raw); err != nil {
		return nil, err
	}
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("bytecode: parse yaml: %w", err)
	}
	return doc.assemble()
}

// ParseJSON assembles a program from a JSON document.
func ParseJSON(data []byte) (*Program, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("bytecode: parse json: %w", err)
	}
	if err := validateDocument(raw); err != nil {
		return nil, err
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("bytecode: parse json: %w", err)
	}
	return doc.assemble()
}

func (d *document) assemble() (*Program, error) {
	p := NewProgram(d.Name)
	for id, text := range d.Strings {
		p.Strings[id] = text
	}
	for id, info := range d.LineInfo {
		p.LineInfo[id] = LineInfo{Node: info.Node, Line: info.Line, Tags: info.Tags}
	}
	for name, dn := range d.Nodes {
		b := NewNodeBuilder(name).Tags(dn.Tags...).Source(dn.Source)
		for i, entry := range dn.Code {
			if err := assembleEntry(b, entry); err != nil {
				return nil, fmt.Errorf("bytecode: node %q entry %d: %w", name, i, err)
			}
		}
		n, err := b.Build()
		if err != nil {
			return nil, fmt.Errorf("bytecode: %w", err)
		}
		for _, pair := range dn.Lines {
			n.SourceMap = append(n.SourceMap, SourceLocation{Instruction: int(pair[0]), Line: pair[1]})
		}
		if err := p.AddNode(n); err != nil {
			return nil, fmt.Errorf("bytecode: %w", err)
		}
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("bytecode: %w", err)
	}
	return p, nil
}

func assembleEntry(b *NodeBuilder, entry any) error {
	switch e := entry.(type) {
	case string:
		op, err := ParseOpcode(e)
		if err != nil {
			return err
		}
		b.Emit(op)
		return nil

	case []any:
		if len(e) == 0 {
			return fmt.Errorf("empty instruction")
		}
		name, ok := e[0].(string)
		if !ok {
			return fmt.Errorf("instruction must start with an opcode name, got %T", e[0])
		}
		op, err := ParseOpcode(name)
		if err != nil {
			return err
		}
		info := GetOpcodeInfo(op)
		kinds := append(append([]OperandKind{}, info.Required...), info.Optional...)
		args := e[1:]
		if len(args) > len(kinds) {
			return fmt.Errorf("%s takes at most %d operands, got %d", info.Name, len(kinds), len(args))
		}
		operands := make([]Operand, 0, len(args))
		for i, arg := range args {
			o, err := convertOperand(kinds[i], arg)
			if err != nil {
				return fmt.Errorf("%s operand %d: %w", info.Name, i, err)
			}
			operands = append(operands, o)
		}
		b.Emit(op, operands...)
		return nil

	case map[string]any:
		label, ok := e["label"].(string)
		if !ok {
			return fmt.Errorf("mapping entries must be {label: name}")
		}
		b.Label(label)
		return nil
	}
	return fmt.Errorf("unsupported code entry %T", entry)
}

func convertOperand(kind OperandKind, arg any) (Operand, error) {
	switch kind {
	case OperandValue:
		v, ok := value.FromAny(arg)
		if !ok {
			return Operand{}, fmt.Errorf("unsupported literal %T", arg)
		}
		return ValueOperand(v), nil

	case OperandString:
		switch a := arg.(type) {
		case string:
			return StringOperand(a), nil
		case int, float64, bool:
			v, _ := value.FromAny(a)
			return StringOperand(v.AsString()), nil
		}
		return Operand{}, fmt.Errorf("expected a name, got %T", arg)

	case OperandInt:
		switch a := arg.(type) {
		case int:
			return IntOperand(a), nil
		case float64:
			if a != math.Trunc(a) {
				return Operand{}, fmt.Errorf("expected an integer, got %v", a)
			}
			return IntOperand(int(a)), nil
		}
		return Operand{}, fmt.Errorf("expected an integer, got %T", arg)

	case OperandBool:
		if a, ok := arg.(bool); ok {
			return BoolOperand(a), nil
		}
		return Operand{}, fmt.Errorf("expected a bool, got %T", arg)
	}
	return Operand{}, fmt.Errorf("unknown operand kind %s", kind)
}

// toDocument is the inverse of assemble.
func (p *Program) toDocument() *document {
	d := &document{
		Name:  p.Name,
		Nodes: make(map[string]documentNode, len(p.Nodes)),
	}
	if len(p.Strings) > 0 {
		d.Strings = p.Strings
	}
	if len(p.LineInfo) > 0 {
		d.LineInfo = make(map[string]documentLine, len(p.LineInfo))
		for id, info := range p.LineInfo {
			d.LineInfo[id] = documentLine{Node: info.Node, Line: info.Line, Tags: info.Tags}
		}
	}
	for name, n := range p.Nodes {
		labelsAt := make(map[int][]string)
		for label, idx := range n.Labels {
			labelsAt[idx] = append(labelsAt[idx], label)
		}
		for _, labels := range labelsAt {
			sort.Strings(labels)
		}
		code := make([]any, 0, len(n.Instructions)+len(n.Labels))
		for i, in := range n.Instructions {
			for _, label := range labelsAt[i] {
				code = append(code, map[string]any{"label": label})
			}
			code = append(code, instructionEntry(in))
		}
		for _, label := range labelsAt[len(n.Instructions)] {
			code = append(code, map[string]any{"label": label})
		}
		var lines [][2]uint32
		for _, loc := range n.SourceMap {
			lines = append(lines, [2]uint32{uint32(loc.Instruction), loc.Line})
		}
		d.Nodes[name] = documentNode{Tags: n.Tags, Source: n.SourceText, Code: code, Lines: lines}
	}
	return d
}

func instructionEntry(in Instruction) any {
	if len(in.Operands) == 0 {
		return in.Op.String()
	}
	entry := make([]any, 0, len(in.Operands)+1)
	entry = append(entry, in.Op.String())
	for _, o := range in.Operands {
		switch o.Kind {
		case OperandValue:
			entry = append(entry, o.Value.Interface())
		case OperandString:
			entry = append(entry, o.Str)
		case OperandInt:
			entry = append(entry, o.Int)
		case OperandBool:
			entry = append(entry, o.Bool)
		}
	}
	return entry
}

// EncodeYAML renders the program as a YAML document accepted by ParseYAML.
func (p *Program) EncodeYAML() ([]byte, error) {
	return yaml.Marshal(p.toDocument())
}

// EncodeJSON renders the program as a JSON document accepted by ParseJSON.
func (p *Program) EncodeJSON() ([]byte, error) {
	return json.MarshalIndent(p.toDocument(), "", "  ")
}
