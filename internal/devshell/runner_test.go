// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: internal/devshell/runner_test.go
// Summary: Exercises devshell runner behaviour to ensure the standalone harness remains reliable.
// Usage: Executed during `go test` to guard against regressions.

package devshell_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/framegrace/texeledit/internal/devshell"
)

type stubApp struct {
	mu       sync.Mutex
	draws    int
	pumps    int
	resizes  int
	keys     []*tcell.EventKey
	pastes   []string
	work     int // pumps that still report pending work
	closed   bool
	quitRune rune
}

func (a *stubApp) HandleKey(ev *tcell.EventKey) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.keys = append(a.keys, ev)
	return ev.Key() == tcell.KeyRune && ev.Rune() == a.quitRune
}

func (a *stubApp) HandleResize() {
	a.mu.Lock()
	a.resizes++
	a.mu.Unlock()
}

func (a *stubApp) HandlePaste(data []byte) {
	a.mu.Lock()
	a.pastes = append(a.pastes, string(data))
	a.mu.Unlock()
}

func (a *stubApp) Pump() (time.Duration, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pumps++
	if a.work > 0 {
		a.work--
		return time.Millisecond, true
	}
	return 0, false
}

func (a *stubApp) Draw() {
	a.mu.Lock()
	a.draws++
	a.mu.Unlock()
}

func (a *stubApp) Close() {
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()
}

func (a *stubApp) snapshot() (draws, pumps, resizes int, keys []*tcell.EventKey, pastes []string, closed bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.draws, a.pumps, a.resizes, append([]*tcell.EventKey(nil), a.keys...), append([]string(nil), a.pastes...), a.closed
}

func startRun(t *testing.T, app *stubApp) (tcell.SimulationScreen, chan error) {
	t.Helper()
	screen := tcell.NewSimulationScreen("UTF-8")
	devshell.SetScreenFactory(func() (tcell.Screen, error) {
		return screen, nil
	})
	t.Cleanup(func() { devshell.SetScreenFactory(nil) })

	errCh := make(chan error, 1)
	go func() {
		errCh <- devshell.Run(func(s tcell.Screen, args []string) (devshell.App, error) {
			if s != screen || len(args) != 1 || args[0] != "doc.txt" {
				return nil, errors.New("unexpected builder arguments")
			}
			return app, nil
		}, []string{"doc.txt"})
	}()
	return screen, errCh
}

func waitExit(t *testing.T, errCh chan error) {
	t.Helper()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("run returned error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("run did not exit")
	}
}

func TestRunHandlesInputAndShutdown(t *testing.T) {
	app := &stubApp{quitRune: 'q'}
	screen, errCh := startRun(t, app)

	waitFor(func() bool {
		draws, _, _, _, _, _ := app.snapshot()
		return draws > 0
	}, 500*time.Millisecond, t, "initial draw")

	screen.PostEvent(tcell.NewEventKey(tcell.KeyRune, 'x', 0))
	waitFor(func() bool {
		_, _, _, keys, _, _ := app.snapshot()
		return len(keys) > 0 && keys[0].Rune() == 'x'
	}, 500*time.Millisecond, t, "key press to be handled")

	screen.PostEvent(tcell.NewEventResize(50, 12))
	waitFor(func() bool {
		_, _, resizes, _, _, _ := app.snapshot()
		return resizes > 0
	}, 500*time.Millisecond, t, "resize event to be handled")

	screen.PostEvent(tcell.NewEventPaste(true))
	screen.PostEvent(tcell.NewEventKey(tcell.KeyRune, 'a', 0))
	screen.PostEvent(tcell.NewEventKey(tcell.KeyEnter, 0, 0))
	screen.PostEvent(tcell.NewEventKey(tcell.KeyRune, 'b', 0))
	screen.PostEvent(tcell.NewEventPaste(false))
	waitFor(func() bool {
		_, _, _, _, pastes, _ := app.snapshot()
		return len(pastes) == 1 && pastes[0] == "a\nb"
	}, 500*time.Millisecond, t, "paste to be delivered")
	if _, _, _, keys, _, _ := app.snapshot(); len(keys) != 1 {
		t.Errorf("expected pasted keys withheld from HandleKey, got %d keys", len(keys))
	}

	screen.PostEvent(tcell.NewEventKey(tcell.KeyRune, 'q', 0))
	waitExit(t, errCh)
	if _, _, _, _, _, closed := app.snapshot(); !closed {
		t.Error("expected the app closed on exit")
	}
}

func TestRunExitsOnCtrlC(t *testing.T) {
	app := &stubApp{}
	screen, errCh := startRun(t, app)
	waitFor(func() bool {
		draws, _, _, _, _, _ := app.snapshot()
		return draws > 0
	}, 500*time.Millisecond, t, "initial draw")
	screen.PostEvent(tcell.NewEventKey(tcell.KeyCtrlC, 0, 0))
	waitExit(t, errCh)
}

func TestRunPumpsPendingWork(t *testing.T) {
	app := &stubApp{work: 5}
	screen, errCh := startRun(t, app)

	// No input: the wake-up timer alone keeps pumping until work runs out.
	waitFor(func() bool {
		_, pumps, _, _, _, _ := app.snapshot()
		return pumps >= 6
	}, time.Second, t, "pending work to be pumped")

	screen.PostEvent(tcell.NewEventKey(tcell.KeyCtrlC, 0, 0))
	waitExit(t, errCh)
}

func TestRunBuilderError(t *testing.T) {
	screen := tcell.NewSimulationScreen("UTF-8")
	devshell.SetScreenFactory(func() (tcell.Screen, error) { return screen, nil })
	defer devshell.SetScreenFactory(nil)

	want := errors.New("boom")
	err := devshell.Run(func(tcell.Screen, []string) (devshell.App, error) { return nil, want }, nil)
	if !errors.Is(err, want) {
		t.Fatalf("expected builder error, got %v", err)
	}
}

func waitFor(cond func() bool, timeout time.Duration, t *testing.T, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for %s", msg)
}
