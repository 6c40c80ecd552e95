package lsp

import (
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/chazu/yarnvm/pkg/bytecode"
)

// document is an open editor buffer and the result of assembling it.
type document struct {
	uri     string
	text    string
	program *bytecode.Program // nil when the text does not assemble
	err     error
}

func parseDocument(uri, text string) *document {
	doc := &document{uri: uri, text: text}
	var p *bytecode.Program
	var err error
	switch strings.ToLower(path.Ext(uri)) {
	case ".json":
		p, err = bytecode.ParseJSON([]byte(text))
	default:
		p, err = bytecode.ParseYAML([]byte(text))
	}
	if err != nil {
		doc.err = err
		return doc
	}
	doc.program = p
	return doc
}

// ---------------------------------------------------------------------------
// Diagnostics
// ---------------------------------------------------------------------------

var (
	yamlLinePattern = regexp.MustCompile(`line (\d+)`)
	nodePattern     = regexp.MustCompile(`node "([^"]+)"`)
)

func (d *document) diagnostics() []protocol.Diagnostic {
	diagnostics := []protocol.Diagnostic{}
	if d.err != nil {
		var schemaErr *bytecode.SchemaError
		if errors.As(d.err, &schemaErr) {
			for _, problem := range schemaErr.Problems {
				diagnostics = append(diagnostics, diagnostic(0, protocol.DiagnosticSeverityError, problem))
			}
			return diagnostics
		}
		return append(diagnostics, diagnostic(d.errorLine(), protocol.DiagnosticSeverityError, d.err.Error()))
	}
	return append(diagnostics, d.warnings()...)
}

// errorLine guesses the 0-based line an assembly error refers to.
func (d *document) errorLine() int {
	var syntaxErr *json.SyntaxError
	if errors.As(d.err, &syntaxErr) {
		return offsetLine(d.text, int(syntaxErr.Offset))
	}
	msg := d.err.Error()
	if m := nodePattern.FindStringSubmatch(msg); m != nil {
		if line, ok := d.keyLine(m[1], 0); ok {
			return line
		}
	}
	if m := yamlLinePattern.FindStringSubmatch(msg); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			return n - 1
		}
	}
	return 0
}

// warnings reports references that assemble but would fail at run time.
func (d *document) warnings() []protocol.Diagnostic {
	var out []protocol.Diagnostic
	p := d.program
	for _, name := range p.NodeNames() {
		start, _ := d.keyLine(name, 0)
		for _, in := range p.Nodes[name].Instructions {
			switch in.Op {
			case bytecode.OpAddOption:
				out = d.checkLine(out, in.Str(0), start)
				out = d.checkNode(out, in.Str(1), start)
			case bytecode.OpRunLine:
				out = d.checkLine(out, in.Str(0), start)
			case bytecode.OpJumpToNode:
				if in.HasOperand(0) {
					out = d.checkNode(out, in.Str(0), start)
				}
			}
		}
	}
	return out
}

func (d *document) checkNode(out []protocol.Diagnostic, target string, from int) []protocol.Diagnostic {
	if d.program.NodeExists(target) {
		return out
	}
	return append(out, diagnostic(d.mentionLine(target, from), protocol.DiagnosticSeverityWarning,
		fmt.Sprintf("node %q does not exist", target)))
}

func (d *document) checkLine(out []protocol.Diagnostic, id string, from int) []protocol.Diagnostic {
	if _, ok := d.program.LineTemplate(id); ok {
		return out
	}
	return append(out, diagnostic(d.mentionLine(id, from), protocol.DiagnosticSeverityWarning,
		fmt.Sprintf("line %q has no text in the string table", id)))
}

func diagnostic(line int, severity protocol.DiagnosticSeverity, msg string) protocol.Diagnostic {
	source := lspName
	return protocol.Diagnostic{
		Range:    lineRange(line),
		Severity: &severity,
		Source:   &source,
		Message:  msg,
	}
}

// ---------------------------------------------------------------------------
// Locating things in the text
// ---------------------------------------------------------------------------

// definitionLine finds where a node is declared or a line ID is given
// its text.
func (d *document) definitionLine(word string) (int, bool) {
	if d.program == nil {
		return 0, false
	}
	if !d.program.NodeExists(word) {
		if _, ok := d.program.LineTemplate(word); !ok {
			return 0, false
		}
	}
	return d.keyLine(word, 0)
}

// keyLine returns the first line at or after from where key appears as a
// mapping key in either YAML (key:) or JSON ("key":) form.
func (d *document) keyLine(key string, from int) (int, bool) {
	lines := strings.Split(d.text, "\n")
	for i := from; i < len(lines); i++ {
		t := strings.TrimSpace(lines[i])
		for _, k := range []string{key, strconv.Quote(key), "'" + key + "'"} {
			if strings.HasPrefix(t, k) && strings.HasPrefix(strings.TrimSpace(t[len(k):]), ":") {
				return i, true
			}
		}
	}
	return 0, false
}

// mentionLine returns the first line at or after from containing s, or
// from itself.
func (d *document) mentionLine(s string, from int) int {
	lines := strings.Split(d.text, "\n")
	for i := from; i < len(lines); i++ {
		if strings.Contains(lines[i], s) {
			return i
		}
	}
	return from
}

func offsetLine(text string, offset int) int {
	if offset > len(text) {
		offset = len(text)
	}
	return strings.Count(text[:offset], "\n")
}

func lineRange(line int) protocol.Range {
	return protocol.Range{
		Start: protocol.Position{Line: protocol.UInteger(line), Character: 0},
		End:   protocol.Position{Line: protocol.UInteger(line + 1), Character: 0},
	}
}

// --- Text extraction helpers ---

func isNameRune(ch rune) bool {
	return unicode.IsLetter(ch) || unicode.IsDigit(ch) || ch == '_' || ch == '$' || ch == ':' || ch == '.' || ch == '-'
}

// extractPrefix returns the word fragment before the cursor for completion.
func extractPrefix(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	col := int(pos.Character)
	if col > len(line) {
		col = len(line)
	}

	start := col
	for start > 0 && isNameRune(rune(line[start-1])) {
		start--
	}
	return line[start:col]
}

// extractWord returns the full name under the cursor. A trailing colon
// (a YAML key) is not part of the name.
func extractWord(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	col := int(pos.Character)
	if col > len(line) {
		col = len(line)
	}

	start := col
	for start > 0 && isNameRune(rune(line[start-1])) {
		start--
	}
	end := col
	for end < len(line) && isNameRune(rune(line[end])) {
		end++
	}
	return strings.TrimRight(line[start:end], ":")
}
