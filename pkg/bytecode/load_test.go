package bytecode

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTemp(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFiles(t *testing.T) {
	dir := t.TempDir()
	a := writeTemp(t, dir, "intro.yaml", `
strings: {"line:a": "A"}
nodes:
  Start:
    code:
      - [RunLine, "line:a"]
      - [JumpToNode, Shop]
`)
	b := writeTemp(t, dir, "shop.json", `{"strings": {"line:b": "B"}, "nodes": {"Shop": {"code": [["RunLine", "line:b"], "Stop"]}}}`)

	p, err := LoadFiles(a, b)
	if err != nil {
		t.Fatalf("LoadFiles: %v", err)
	}
	if p.Name != "intro" {
		t.Errorf("Name = %q, want file base name", p.Name)
	}
	if !p.NodeExists("Start") || !p.NodeExists("Shop") {
		t.Errorf("nodes = %v", p.NodeNames())
	}
	if s, _ := p.LineTemplate("line:b"); s != "B" {
		t.Errorf("line:b = %q", s)
	}
}

func TestLoadFileErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := LoadFile(writeTemp(t, dir, "x.txt", "")); err == nil {
		t.Error("expected unsupported extension error")
	}
	if _, err := LoadFile(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected read error")
	}
	if _, err := LoadFiles(); err == nil {
		t.Error("expected error for no files")
	}

	dup := writeTemp(t, dir, "dup.yaml", "nodes:\n  Start:\n    code: [Stop]\n")
	if _, err := LoadFiles(dup, dup); err == nil {
		t.Error("expected duplicate node error")
	}
}
