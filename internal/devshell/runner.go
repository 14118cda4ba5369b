// Copyright 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: internal/devshell/runner.go
// Summary: Runs an app on a local tcell screen with a cooperative scheduler.
//
// Architecture:
//
//	Everything the app does happens on the event loop goroutine. After
//	each event the loop pumps the app's scheduler once and draws. When the
//	app still has work queued, or a timer pending, the loop arms a wake-up
//	that posts an interrupt event, so time-sliced work interleaves with
//	input instead of blocking it.

package devshell

import (
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
)

// App is a screen application driven by the runner.
type App interface {
	// HandleKey processes a key press and returns true to quit.
	HandleKey(*tcell.EventKey) bool
	HandleResize()
	// Pump runs queued work once. It returns how long the loop may wait
	// before pumping again; ok is false when nothing is pending.
	Pump() (wait time.Duration, ok bool)
	Draw()
}

// Builder constructs an App on an initialized screen, optionally using CLI
// args.
type Builder func(screen tcell.Screen, args []string) (App, error)

var screenFactory = tcell.NewScreen

// SetScreenFactory overrides the screen factory used by Run. Passing nil restores the default.
func SetScreenFactory(factory func() (tcell.Screen, error)) {
	if factory == nil {
		screenFactory = tcell.NewScreen
		return
	}
	screenFactory = factory
}

// Run executes the app built by builder inside a local tcell screen until
// the app quits or Ctrl-C is pressed.
func Run(builder Builder, args []string) error {
	screen, err := screenFactory()
	if err != nil {
		return fmt.Errorf("init screen: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("screen init: %w", err)
	}
	defer screen.Fini()
	screen.Clear()
	screen.EnableMouse()
	defer screen.DisableMouse()
	screen.EnablePaste() // Enable bracketed paste support

	app, err := builder(screen, args)
	if err != nil {
		return err
	}
	if c, ok := app.(interface{ Close() }); ok {
		defer c.Close()
	}

	var wake *time.Timer
	defer func() {
		if wake != nil {
			wake.Stop()
		}
	}()
	interrupt := func() { _ = screen.PostEvent(tcell.NewEventInterrupt(nil)) }

	step := func() {
		wait, ok := app.Pump()
		app.Draw()
		if wake != nil {
			wake.Stop()
			wake = nil
		}
		if ok {
			wake = time.AfterFunc(wait, interrupt)
		}
	}

	step()

	var pasteBuffer []byte
	var inPaste bool

	for {
		ev := screen.PollEvent()
		if ev == nil {
			return nil
		}
		switch tev := ev.(type) {
		case *tcell.EventInterrupt:
		case *tcell.EventResize:
			screen.Sync()
			app.HandleResize()
		case *tcell.EventPaste:
			// Bracketed paste event from tcell
			if tev.Start() {
				inPaste = true
				pasteBuffer = nil
			} else if tev.End() {
				inPaste = false
				if ph, ok := app.(interface{ HandlePaste([]byte) }); ok && len(pasteBuffer) > 0 {
					ph.HandlePaste(pasteBuffer)
				}
				pasteBuffer = nil
			}
		case *tcell.EventKey:
			if tev.Key() == tcell.KeyCtrlC {
				return nil
			}
			if inPaste {
				// Collect paste data
				if tev.Key() == tcell.KeyRune {
					pasteBuffer = append(pasteBuffer, []byte(string(tev.Rune()))...)
				} else if tev.Key() == tcell.KeyEnter || tev.Key() == 10 { // KeyEnter (CR) or LF
					pasteBuffer = append(pasteBuffer, '\n')
				}
				continue
			}
			if app.HandleKey(tev) {
				return nil
			}
		case *tcell.EventMouse:
			if mh, ok := app.(interface{ HandleMouse(*tcell.EventMouse) }); ok {
				mh.HandleMouse(tev)
			}
		}
		step()
	}
}
