package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/chazu/yarnvm/dialogue"
	"github.com/chazu/yarnvm/manifest"
	"github.com/chazu/yarnvm/pkg/bytecode"
	"github.com/chazu/yarnvm/pkg/value"
	"github.com/chazu/yarnvm/storage"
	"github.com/chazu/yarnvm/vm"
)

var errNoProgramFiles = errors.New("no program files given and no [program].files in yarn.toml")

// programFiles returns the files named on the command line, or the
// manifest's program files when there are none.
func programFiles(args []string, m *manifest.Manifest) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}
	if m != nil && len(m.Program.Files) > 0 {
		return m.ProgramPaths(), nil
	}
	return nil, errNoProgramFiles
}

func loadProgram(args []string, m *manifest.Manifest) (*bytecode.Program, error) {
	files, err := programFiles(args, m)
	if err != nil {
		return nil, err
	}
	p, err := bytecode.LoadFiles(files...)
	if err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	log.Infof("loaded %d nodes from %s", len(p.Nodes), strings.Join(files, ", "))
	return p, nil
}

// openStorage picks variable storage: the -storage override, then the
// manifest's sqlite driver, then memory. The returned closer is never nil.
func openStorage(override string, m *manifest.Manifest) (vm.VariableStorage, func() error, error) {
	path := override
	if path == "" && m != nil && m.Storage.Driver == manifest.DriverSQLite {
		path = m.StoragePath()
	}
	if path == "" {
		return storage.NewMemory(), func() error { return nil }, nil
	}

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create storage directory: %w", err)
		}
	}
	s, err := storage.OpenSQLite(path)
	if err != nil {
		return nil, nil, err
	}
	log.Infof("variables stored in %s", path)
	return s, s.Close, nil
}

// ---------------------------------------------------------------------------
// Subcommands
// ---------------------------------------------------------------------------

// handleRunCommand processes the `yarn run` subcommand.
func handleRunCommand(args []string, m *manifest.Manifest, opts globalOptions) {
	p, err := loadProgram(args, m)
	if err != nil {
		fatalf("%v", err)
	}
	vars, closeStorage, err := openStorage(opts.storage, m)
	if err != nil {
		fatalf("%v", err)
	}
	defer closeStorage()

	var dopts []dialogue.Option
	if opts.stepLimit > 0 {
		dopts = append(dopts, dialogue.WithStepLimit(opts.stepLimit))
	}
	if opts.trace {
		dopts = append(dopts, dialogue.WithTrace(os.Stderr))
	}
	d := dialogue.New(vars, dopts...)
	if err := d.Load(p); err != nil {
		fatalf("%v", err)
	}

	start := opts.start
	if start == "" {
		start = dialogue.DefaultStartNode
	}
	if err := runDialogue(d, start, os.Stdin, os.Stdout); err != nil {
		closeStorage()
		fatalf("%v", err)
	}
}

// handleDumpCommand processes the `yarn dump` subcommand.
func handleDumpCommand(args []string, m *manifest.Manifest) {
	p, err := loadProgram(args, m)
	if err != nil {
		fatalf("%v", err)
	}
	fmt.Print(p.Disassemble())
}

// handleNodesCommand processes the `yarn nodes` subcommand.
func handleNodesCommand(args []string, m *manifest.Manifest) {
	p, err := loadProgram(args, m)
	if err != nil {
		fatalf("%v", err)
	}
	writeNodes(os.Stdout, p)
}

func writeNodes(w io.Writer, p *bytecode.Program) {
	for _, name := range p.NodeNames() {
		n := p.Nodes[name]
		if len(n.Tags) > 0 {
			fmt.Fprintf(w, "%s\t%d instructions\t#%s\n", name, len(n.Instructions), strings.Join(n.Tags, " #"))
		} else {
			fmt.Fprintf(w, "%s\t%d instructions\n", name, len(n.Instructions))
		}
	}
}

// handleCompileCommand processes the `yarn compile` subcommand.
// Usage:
//
//	yarn compile -o out.yarnc a.yaml b.json
func handleCompileCommand(args []string, m *manifest.Manifest) {
	fs := flag.NewFlagSet("compile", flag.ExitOnError)
	output := fs.String("o", "", "Output path (default <project>.yarnc)")
	fs.Parse(args)

	p, err := loadProgram(fs.Args(), m)
	if err != nil {
		fatalf("%v", err)
	}
	out := *output
	if out == "" {
		out = defaultOutput(p, m)
	}
	if err := bytecode.WriteFile(out, p); err != nil {
		fatalf("%v", err)
	}
	fmt.Printf("Wrote %s (%d nodes, %d lines)\n", out, len(p.Nodes), len(p.Strings))
}

func defaultOutput(p *bytecode.Program, m *manifest.Manifest) string {
	name := p.Name
	if m != nil && m.Project.Name != "" {
		name = m.Project.Name
	}
	if name == "" {
		name = "program"
	}
	return name + bytecode.CompiledExt
}

// handleExportCommand processes the `yarn export` subcommand.
// Usage:
//
//	yarn export -format json -o story.json story.yarnc
func handleExportCommand(args []string, m *manifest.Manifest) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	format := fs.String("format", "yaml", "Document format: yaml or json")
	output := fs.String("o", "", "Output path (default stdout)")
	fs.Parse(args)

	p, err := loadProgram(fs.Args(), m)
	if err != nil {
		fatalf("%v", err)
	}
	data, err := exportProgram(p, *format)
	if err != nil {
		fatalf("%v", err)
	}
	if *output == "" {
		os.Stdout.Write(data)
		return
	}
	if err := os.WriteFile(*output, data, 0o644); err != nil {
		fatalf("%v", err)
	}
}

func exportProgram(p *bytecode.Program, format string) ([]byte, error) {
	switch strings.ToLower(format) {
	case "yaml", "yml":
		return p.EncodeYAML()
	case "json":
		return p.EncodeJSON()
	default:
		return nil, fmt.Errorf("unknown export format %q (use yaml or json)", format)
	}
}

// handleVarsCommand processes the `yarn vars` subcommand.
func handleVarsCommand(args []string, m *manifest.Manifest, opts globalOptions) {
	fs := flag.NewFlagSet("vars", flag.ExitOnError)
	clearVars := fs.Bool("clear", false, "Remove every stored variable")
	fs.Parse(args)

	vars, closeStorage, err := openStorage(opts.storage, m)
	if err != nil {
		fatalf("%v", err)
	}
	defer closeStorage()

	if *clearVars {
		vars.Clear()
		fmt.Println("Cleared stored variables")
		return
	}
	writeVariables(os.Stdout, vars)
}

type snapshotter interface {
	Snapshot() map[string]value.Value
}

func writeVariables(w io.Writer, vars vm.VariableStorage) {
	s, ok := vars.(snapshotter)
	if !ok {
		fmt.Fprintln(w, "(storage cannot be listed)")
		return
	}
	snap := s.Snapshot()
	if len(snap) == 0 {
		fmt.Fprintln(w, "(no variables)")
		return
	}
	names := make([]string, 0, len(snap))
	for name := range snap {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		v := snap[name]
		fmt.Fprintf(w, "%s = %s (%s)\n", name, v, v.Kind())
	}
}
