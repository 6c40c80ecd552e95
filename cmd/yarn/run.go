package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chazu/yarnvm/dialogue"
	"github.com/chazu/yarnvm/vm"
)

var errInputClosed = errors.New("input closed while waiting for a choice")

// runDialogue plays d from start until the dialogue completes, writing
// lines, commands and options to out and reading option choices from in.
func runDialogue(d *dialogue.Dialogue, start string, in io.Reader, out io.Writer) error {
	if err := d.Start(start); err != nil {
		return err
	}
	scanner := bufio.NewScanner(in)

	for {
		res, err := d.Next()
		if errors.Is(err, dialogue.ErrComplete) {
			return nil
		}
		if err != nil {
			return err
		}

		switch r := res.(type) {
		case *vm.LineResult:
			fmt.Fprintln(out, d.FormatLine(r))
		case *vm.CommandResult:
			fmt.Fprintf(out, "<<%s>>\n", r.Text)
		case *vm.OptionsResult:
			index, err := promptOption(d, r.Options, scanner, out)
			if err != nil {
				d.Stop()
				return err
			}
			if err := d.Choose(index); err != nil {
				return err
			}
		case *vm.NodeCompleteResult:
			if r.Ends() {
				log.Debugf("dialogue ended in %s", r.Node)
			} else {
				log.Debugf("%s -> %s", r.Node, r.NextNode)
			}
		}
	}
}

// promptOption lists options numbered from 1 and reads until the user
// picks a valid one. It returns the option's index.
func promptOption(d *dialogue.Dialogue, options []vm.Option, scanner *bufio.Scanner, out io.Writer) (int, error) {
	for i, o := range options {
		fmt.Fprintf(out, "  %d) %s\n", i+1, d.FormatOption(o))
	}
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return 0, err
			}
			return 0, errInputClosed
		}
		n, err := strconv.Atoi(strings.TrimSpace(scanner.Text()))
		if err != nil || n < 1 || n > len(options) {
			fmt.Fprintf(out, "Choose a number from 1 to %d\n", len(options))
			continue
		}
		return options[n-1].Index, nil
	}
}
