package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chazu/yarnvm/dialogue"
	"github.com/chazu/yarnvm/manifest"
	"github.com/chazu/yarnvm/server"
)

// handleServeCommand processes the `yarn serve` subcommand.
// Usage:
//
//	yarn serve                        # serve yarn.toml's program on :4567
//	yarn serve -addr :8080 story.yarnc
func handleServeCommand(args []string, m *manifest.Manifest, opts globalOptions) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := fs.String("addr", ":4567", "Listen address")
	fs.Parse(args)

	p, err := loadProgram(fs.Args(), m)
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
	sessions, err := dialogue.NewSessionStore(p, vars, dopts...)
	if err != nil {
		closeStorage()
		fatalf("%v", err)
	}

	srv := server.New(sessions)
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
		log.Notice("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Errorf("shutdown: %s", err)
		}
	}()

	if err := srv.ListenAndServe(*addr); err != nil {
		closeStorage()
		fatalf("server: %v", err)
	}
}
