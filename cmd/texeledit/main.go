// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: cmd/texeledit/main.go
// Summary: Terminal viewer/editor built on the chunked viewport renderer.
// Usage: texeledit [-log file] [-wrap] [-no-index] <file>

package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/gdamore/tcell/v2"
	"golang.org/x/term"

	"github.com/framegrace/texeledit/config"
	"github.com/framegrace/texeledit/editor"
	"github.com/framegrace/texeledit/internal/devshell"
	"github.com/framegrace/texeledit/scheduler"
	"github.com/framegrace/texeledit/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	fs := flag.NewFlagSet("texeledit", flag.ContinueOnError)
	logPath := fs.String("log", "", "File to append logs to (default: discard)")
	wrap := fs.Bool("wrap", false, "Wrap long lines")
	noIndex := fs.Bool("no-index", false, "Do not use the on-disk line index for search")
	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: texeledit [flags] <file>")
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
		return errors.New("texeledit needs an interactive terminal")
	}

	// The screen owns the terminal; logs must not go to it.
	log.SetOutput(io.Discard)
	if *logPath != "" {
		f, err := os.OpenFile(*logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log: %w", err)
		}
		defer f.Close()
		log.SetOutput(f)
	}

	cfgStore, err := config.Open()
	if err != nil {
		log.Printf("Config: using defaults: %v", err)
	}
	cfg := cfgStore.Config()
	opts := editor.OptionsFromConfig(cfg)
	if *wrap {
		opts.Surface.Wrap = true
	}
	if *noIndex {
		opts.UseIndex = false
	}

	var lines *store.LineStore
	if opts.UseIndex {
		if path, err := config.IndexPath(cfg); err != nil {
			log.Printf("[LINE_STORE] No index path: %v", err)
		} else if lines, err = store.Open(path); err != nil {
			log.Printf("[LINE_STORE] Index disabled: %v", err)
			lines = nil
		} else {
			defer lines.Close()
		}
	}

	return devshell.Run(func(screen tcell.Screen, args []string) (devshell.App, error) {
		e := editor.New(screen, scheduler.New(scheduler.RealClock()), opts)
		if lines != nil {
			e.AttachLineIndex(lines)
		}
		if err := e.Open(args[0]); err != nil {
			e.Close()
			return nil, err
		}
		return e, nil
	}, fs.Args())
}
