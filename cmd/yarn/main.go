// Yarn CLI - runs, inspects and compiles dialogue programs
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/tliron/commonlog"

	"github.com/chazu/yarnvm/manifest"

	_ "github.com/tliron/commonlog/simple"
)

var log = commonlog.GetLogger("yarn.cli")

// globalOptions carries the flags shared by every subcommand.
type globalOptions struct {
	start     string
	storage   string
	trace     bool
	stepLimit int
}

func main() {
	verbosity := flag.Int("v", 0, "Log verbosity (0 = errors only, 1 = warnings, 2 = info, 3 = debug)")
	dir := flag.String("C", ".", "Directory to search for yarn.toml")
	start := flag.String("start", "", "Node to start from (default from yarn.toml, else Start)")
	storagePath := flag.String("storage", "", "SQLite database for variables (overrides yarn.toml)")
	trace := flag.Bool("trace", false, "Trace every executed instruction to stderr")
	stepLimit := flag.Int("step-limit", 0, "Instructions allowed between suspensions (0 = default)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: yarn [options] <command> [args...]\n\n")
		fmt.Fprintf(os.Stderr, "Runs compiled dialogue programs (.yarnc, .yaml, .json).\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  run [files...]                  Play a dialogue in the terminal\n")
		fmt.Fprintf(os.Stderr, "  dump [files...]                 Print the disassembly\n")
		fmt.Fprintf(os.Stderr, "  nodes [files...]                List node names and tags\n")
		fmt.Fprintf(os.Stderr, "  compile -o out.yarnc [files...] Write a compiled program\n")
		fmt.Fprintf(os.Stderr, "  export [-format yaml|json] [-o file] [files...]\n")
		fmt.Fprintf(os.Stderr, "                                  Write a program document\n")
		fmt.Fprintf(os.Stderr, "  vars [-clear]                   Show or clear stored variables\n")
		fmt.Fprintf(os.Stderr, "  serve [-addr :4567] [files...]  Serve dialogue sessions over HTTP (Connect/JSON)\n")
		fmt.Fprintf(os.Stderr, "  lsp                             Start the program document language server on stdio\n")
		fmt.Fprintf(os.Stderr, "\nWithout files, commands use [program].files from yarn.toml.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	m, err := manifest.FindAndLoad(*dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading manifest: %v\n", err)
		os.Exit(1)
	}

	configureLogging(*verbosity, m)

	opts := globalOptions{
		start:     *start,
		storage:   *storagePath,
		trace:     *trace,
		stepLimit: *stepLimit,
	}
	if m != nil {
		log.Infof("using manifest %s/%s", m.Dir, manifest.FileName)
		if opts.start == "" {
			opts.start = m.Program.Start
		}
		if !opts.trace {
			opts.trace = m.Runtime.Trace
		}
		if opts.stepLimit == 0 {
			opts.stepLimit = m.Runtime.StepLimit
		}
	}

	switch args[0] {
	case "run":
		handleRunCommand(args[1:], m, opts)
	case "dump":
		handleDumpCommand(args[1:], m)
	case "nodes":
		handleNodesCommand(args[1:], m)
	case "compile":
		handleCompileCommand(args[1:], m)
	case "export":
		handleExportCommand(args[1:], m)
	case "vars":
		handleVarsCommand(args[1:], m, opts)
	case "serve":
		handleServeCommand(args[1:], m, opts)
	case "lsp":
		handleLspCommand()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
		flag.Usage()
		os.Exit(2)
	}
}

// configureLogging applies the -v flag, falling back to the manifest's
// [log] table.
func configureLogging(verbosity int, m *manifest.Manifest) {
	var path *string
	if m != nil {
		if verbosity == 0 {
			verbosity = m.Log.Verbosity
		}
		if file := m.LogFilePath(); file != "" {
			path = &file
		}
	}
	commonlog.Configure(verbosity, path)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
