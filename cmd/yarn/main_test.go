package main

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/yarnvm/dialogue"
	"github.com/chazu/yarnvm/manifest"
	"github.com/chazu/yarnvm/pkg/bytecode"
	"github.com/chazu/yarnvm/pkg/value"
	"github.com/chazu/yarnvm/storage"
	"github.com/chazu/yarnvm/vm"
)

func tavernProgram(t *testing.T) *bytecode.Program {
	t.Helper()
	p := bytecode.NewProgram("tavern")
	nodes := []*bytecode.NodeBuilder{
		bytecode.NewNodeBuilder("Start").
			Tags("inn").
			Line("hello", 0).
			PushText("loud").
			Command("play music {0}", 1).
			Option("shop", "Shop").
			Option("leave", "Leave").
			ShowOptions(),
		bytecode.NewNodeBuilder("Shop").
			Line("wares", 0).
			Stop(),
		bytecode.NewNodeBuilder("Leave").
			Line("bye", 0).
			Stop(),
	}
	for _, b := range nodes {
		if err := p.AddNode(b.MustBuild()); err != nil {
			t.Fatalf("AddNode: %v", err)
		}
	}
	for id, text := range map[string]string{
		"hello": "Hello",
		"shop":  "Visit the shop",
		"leave": "Leave",
		"wares": "Swords and shields",
		"bye":   "Bye",
	} {
		p.AddString(id, text)
	}
	return p
}

func newTavern(t *testing.T) *dialogue.Dialogue {
	t.Helper()
	d := dialogue.New(storage.NewMemory())
	if err := d.Load(tavernProgram(t)); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return d
}

func TestRunDialogue(t *testing.T) {
	d := newTavern(t)
	var out bytes.Buffer
	if err := runDialogue(d, "Start", strings.NewReader("x\n9\n2\n"), &out); err != nil {
		t.Fatalf("runDialogue: %v", err)
	}

	got := out.String()
	for _, want := range []string{
		"Hello\n",
		"<<play music loud>>\n",
		"  1) Visit the shop\n  2) Leave\n",
		"Bye\n",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
	if n := strings.Count(got, "Choose a number from 1 to 2"); n != 2 {
		t.Errorf("re-prompted %d times, want 2:\n%s", n, got)
	}
	if strings.Contains(got, "Swords") {
		t.Error("took the wrong branch")
	}
	if d.VisitCount("Leave") != 1 || d.VisitCount("Start") != 1 {
		t.Errorf("visits Start=%d Leave=%d", d.VisitCount("Start"), d.VisitCount("Leave"))
	}
}

func TestRunDialogueInputClosed(t *testing.T) {
	d := newTavern(t)
	var out bytes.Buffer
	err := runDialogue(d, "Start", strings.NewReader(""), &out)
	if !errors.Is(err, errInputClosed) {
		t.Fatalf("expected errInputClosed, got %v", err)
	}
	if d.State() != vm.Stopped {
		t.Errorf("state = %s, want stopped", d.State())
	}
}

func TestRunDialogueUnknownStart(t *testing.T) {
	d := newTavern(t)
	if err := runDialogue(d, "Cellar", strings.NewReader(""), &bytes.Buffer{}); err == nil {
		t.Fatal("expected an error for a missing start node")
	}
}

func TestProgramFiles(t *testing.T) {
	if got, err := programFiles([]string{"a.yaml"}, nil); err != nil || len(got) != 1 || got[0] != "a.yaml" {
		t.Errorf("explicit files = %v, %v", got, err)
	}
	if _, err := programFiles(nil, nil); !errors.Is(err, errNoProgramFiles) {
		t.Errorf("expected errNoProgramFiles, got %v", err)
	}

	m := &manifest.Manifest{Dir: "/proj"}
	m.Program.Files = []string{"story.yarnc", "/abs/extra.json"}
	got, err := programFiles(nil, m)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{filepath.Join("/proj", "story.yarnc"), "/abs/extra.json"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("manifest files = %v, want %v", got, want)
	}
}

func TestLoadProgramFromDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tavern.yarnc")
	if err := bytecode.WriteFile(path, tavernProgram(t)); err != nil {
		t.Fatal(err)
	}
	p, err := loadProgram([]string{path}, nil)
	if err != nil {
		t.Fatalf("loadProgram: %v", err)
	}
	if !p.NodeExists("Leave") {
		t.Error("loaded program lost a node")
	}
}

func TestOpenStorage(t *testing.T) {
	vars, closer, err := openStorage("", nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := vars.(*storage.MemoryStorage); !ok {
		t.Errorf("default storage is %T, want memory", vars)
	}
	closer()

	dir := t.TempDir()
	m := &manifest.Manifest{Dir: dir}
	m.Storage.Driver = manifest.DriverSQLite
	m.Storage.Path = filepath.Join("state", "vars.db")

	vars, closer, err = openStorage("", m)
	if err != nil {
		t.Fatalf("openStorage: %v", err)
	}
	vars.Set("$gold", value.Number(5))
	if err := closer(); err != nil {
		t.Fatal(err)
	}

	// The -storage override reaches the same file directly.
	vars, closer, err = openStorage(filepath.Join(dir, "state", "vars.db"), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer closer()
	var out bytes.Buffer
	writeVariables(&out, vars)
	if out.String() != "$gold = 5 (number)\n" {
		t.Errorf("variables = %q", out.String())
	}
}

func TestWriteVariablesEmpty(t *testing.T) {
	var out bytes.Buffer
	writeVariables(&out, storage.NewMemory())
	if out.String() != "(no variables)\n" {
		t.Errorf("got %q", out.String())
	}
}

func TestExportProgram(t *testing.T) {
	p := tavernProgram(t)
	tests := []struct {
		format  string
		prefix  string
		wantErr bool
	}{
		{"yaml", "name: tavern", false},
		{"JSON", "{", false},
		{"toml", "", true},
	}
	for _, tt := range tests {
		data, err := exportProgram(p, tt.format)
		if tt.wantErr {
			if err == nil {
				t.Errorf("%s: expected error", tt.format)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%s: %v", tt.format, err)
		}
		if !strings.HasPrefix(strings.TrimSpace(string(data)), tt.prefix) {
			t.Errorf("%s export starts %q", tt.format, string(data[:min(len(data), 20)]))
		}
	}
}

func TestWriteNodes(t *testing.T) {
	var out bytes.Buffer
	writeNodes(&out, tavernProgram(t))
	want := "Leave\t2 instructions\n" +
		"Shop\t2 instructions\n" +
		"Start\t6 instructions\t#inn\n"
	if out.String() != want {
		t.Errorf("nodes:\n%s\nwant:\n%s", out.String(), want)
	}
}

func TestDefaultOutput(t *testing.T) {
	p := tavernProgram(t)
	if got := defaultOutput(p, nil); got != "tavern.yarnc" {
		t.Errorf("defaultOutput = %q", got)
	}
	m := &manifest.Manifest{}
	m.Project.Name = "inn"
	if got := defaultOutput(p, m); got != "inn.yarnc" {
		t.Errorf("defaultOutput with manifest = %q", got)
	}
}
