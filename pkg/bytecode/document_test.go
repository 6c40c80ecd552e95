package bytecode

import (
	"errors"
	"strings"
	"testing"

	"github.com/chazu/yarnvm/pkg/value"
)

const demoYAML = `
name: demo
strings:
  "line:hello": "Hello, {0}!"
  "line:bye": "Bye."
lineInfo:
  "line:hello":
    node: Start
    line: 2
    tags: [greeting]
nodes:
  Start:
    tags: [intro]
    source: "Hello, {$name}!"
    code:
      - [PushVariable, $name]
      - [RunLine, "line:hello", 1]
      - [PushValue, 2]
      - [PushValue, 3]
      - [CallFunction, Add, 2]
      - [StoreVariable, $sum]
      - [PushVariable, $sum]
      - [JumpIfFalse, skip]
      - [JumpToNode, End]
      - label: skip
      - Stop
  End:
    code:
      - [RunLine, "line:bye"]
      - Return
`

func TestParseYAML(t *testing.T) {
	p, err := ParseYAML([]byte(demoYAML))
	if err != nil {
		t.Fatalf("ParseYAML: %v", err)
	}
	if p.Name != "demo" {
		t.Errorf("Name = %q", p.Name)
	}
	start, err := p.Node("Start")
	if err != nil {
		t.Fatal(err)
	}
	if len(start.Instructions) != 10 {
		t.Fatalf("Start has %d instructions, want 10", len(start.Instructions))
	}
	if idx, ok := start.LabelTarget("skip"); !ok || idx != 9 {
		t.Errorf("skip label = %d, %v", idx, ok)
	}
	line := start.Instructions[1]
	if line.Op != OpRunLine || line.Str(0) != "line:hello" || line.Int(1) != 1 {
		t.Errorf("unexpected RunLine: %s", line)
	}
	lit := start.Instructions[2].Literal(0)
	if lit.Kind() != value.KindNumber || lit.Float() != 2 {
		t.Errorf("literal = %#v", lit)
	}
	if end, _ := p.Node("End"); end.Instructions[1].Op != OpEndNode {
		t.Errorf("Return should assemble to EndNode, got %s", end.Instructions[1].Op)
	}
	if info := p.LineInfo["line:hello"]; info.Node != "Start" || info.Line != 2 {
		t.Errorf("LineInfo = %+v", info)
	}
	if text, _ := p.TextForNode("Start"); text != "Hello, {$name}!" {
		t.Errorf("source = %q", text)
	}
}

func TestParseJSON(t *testing.T) {
	doc := `{
  "nodes": {
    "Start": {
      "code": [
        ["PushValue", true],
        ["AddOption", "line:a", "A", true, 0],
        ["AddOption", "line:b", "B"],
        "ShowOptions"
      ]
    }
  }
}`
	p, err := ParseJSON([]byte(doc))
	if err != nil {
		t.Fatalf("ParseJSON: %v", err)
	}
	start, _ := p.Node("Start")
	opt := start.Instructions[1]
	if !opt.Bool(2) || opt.Int(3) != 0 || opt.Str(1) != "A" {
		t.Errorf("unexpected option %s", opt)
	}
	if !start.Instructions[0].Literal(0).Boolean() {
		t.Error("expected true literal")
	}
}

func TestDocumentErrors(t *testing.T) {
	tests := []struct {
		name   string
		doc    string
		schema bool
	}{
		{"missing nodes", `name: x`, true},
		{"unknown key", "nodes: {}\nextra: 1", true},
		{"bad entry", "nodes:\n  A:\n    code:\n      - 42", true},
		{"unknown opcode", "nodes:\n  A:\n    code:\n      - Frob", false},
		{"bad operand", "nodes:\n  A:\n    code:\n      - [CallFunction, Add, many]", false},
		{"fractional argc", "nodes:\n  A:\n    code:\n      - [CallFunction, Add, 1.5]", false},
		{"too many operands", "nodes:\n  A:\n    code:\n      - [Stop, now]", false},
		{"missing label", "nodes:\n  A:\n    code:\n      - [Jump, nowhere]", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseYAML([]byte(tt.doc))
			if err == nil {
				t.Fatal("expected error")
			}
			var se *SchemaError
			if got := errors.As(err, &se); got != tt.schema {
				t.Errorf("schema error = %v, want %v (%v)", got, tt.schema, err)
			}
		})
	}
}

func TestEncodeDocumentRoundTrip(t *testing.T) {
	p := sampleProgram(t)

	y, err := p.EncodeYAML()
	if err != nil {
		t.Fatalf("EncodeYAML: %v", err)
	}
	fromYAML, err := ParseYAML(y)
	if err != nil {
		t.Fatalf("ParseYAML(EncodeYAML()): %v\n%s", err, y)
	}
	j, err := p.EncodeJSON()
	if err != nil {
		t.Fatalf("EncodeJSON: %v", err)
	}
	fromJSON, err := ParseJSON(j)
	if err != nil {
		t.Fatalf("ParseJSON(EncodeJSON()): %v\n%s", err, j)
	}

	// Disassembly is a stable, order-independent view of a program.
	want := p.Disassemble()
	if got := fromYAML.Disassemble(); got != want {
		t.Errorf("YAML round trip differs:\n%s\nwant:\n%s", got, want)
	}
	if got := fromJSON.Disassemble(); got != want {
		t.Errorf("JSON round trip differs:\n%s\nwant:\n%s", got, want)
	}
	if !strings.Contains(string(y), "label: loop") {
		t.Errorf("expected label entry in YAML:\n%s", y)
	}
}
