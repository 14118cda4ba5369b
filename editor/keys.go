// Copyright 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: editor/keys.go
// Summary: Keyboard, mouse and paste handling.

package editor

import (
	"log"
	"strconv"
	"strings"

	"github.com/gdamore/tcell/v2"

	"github.com/framegrace/texeledit/search"
)

const wheelStep = 3

// prompt collects a line of input on the status line.
type prompt struct {
	label string
	text  []rune
	run   func(string)
}

func (e *Editor) openPrompt(label string, run func(string)) {
	e.prompt = &prompt{label: label, run: run}
}

func (e *Editor) handlePromptKey(ev *tcell.EventKey) {
	p := e.prompt
	switch ev.Key() {
	case tcell.KeyEscape:
		e.prompt = nil
	case tcell.KeyEnter:
		e.prompt = nil
		p.run(string(p.text))
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		if len(p.text) > 0 {
			p.text = p.text[:len(p.text)-1]
		}
	case tcell.KeyRune:
		p.text = append(p.text, ev.Rune())
	}
}

func (e *Editor) startSearch(regexp bool) {
	label := "Find: "
	if regexp {
		label = "Find regexp: "
	}
	e.openPrompt(label, func(pattern string) {
		q := search.Query{Pattern: pattern, Regexp: regexp, CaseSensitive: e.opts.CaseSensitive}
		if err := e.Search(q); err != nil {
			e.setMessage("%v", err)
		}
	})
}

func (e *Editor) startGoTo() {
	e.openPrompt("Go to line: ", func(s string) {
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err == nil {
			err = e.GoToLine(n - 1)
		}
		if err != nil {
			e.setMessage("%v", err)
		}
	})
}

// HandleKey processes a key event. It returns true when the editor should
// quit.
func (e *Editor) HandleKey(ev *tcell.EventKey) bool {
	if e.prompt != nil {
		e.handlePromptKey(ev)
		return false
	}
	e.message = ""
	extend := ev.Modifiers()&tcell.ModShift != 0
	var err error

	switch ev.Key() {
	case tcell.KeyCtrlQ:
		return true
	case tcell.KeyCtrlS:
		err = e.Save()
	case tcell.KeyCtrlF:
		e.startSearch(false)
	case tcell.KeyCtrlR:
		e.startSearch(true)
	case tcell.KeyCtrlG:
		e.startGoTo()
	case tcell.KeyF3:
		if extend {
			e.PreviousMatch()
		} else {
			e.NextMatch()
		}
	case tcell.KeyCtrlN:
		e.NextMatch()
	case tcell.KeyCtrlP:
		e.PreviousMatch()
	case tcell.KeyF9:
		err = e.ToggleBreakpoint(e.cursor.Line)
	case tcell.KeyF5:
		err = e.SetExecutionLine(e.cursor.Line)
	case tcell.KeyF6:
		err = e.SetExecutionLine(-1)
	case tcell.KeyCtrlL:
		err = e.HighlightLine(e.cursor.Line)
	case tcell.KeyCtrlW:
		e.SelectWord()
	case tcell.KeyEscape:
		e.clearSelection()
		e.ClearSearch()
	case tcell.KeyLeft:
		e.MoveLeft(extend)
	case tcell.KeyRight:
		e.MoveRight(extend)
	case tcell.KeyUp:
		e.MoveLines(-1, extend)
	case tcell.KeyDown:
		e.MoveLines(1, extend)
	case tcell.KeyPgUp:
		e.MoveLines(-e.surface.ClientHeight(), extend)
	case tcell.KeyPgDn:
		e.MoveLines(e.surface.ClientHeight(), extend)
	case tcell.KeyHome:
		e.MoveLineStart(extend)
	case tcell.KeyEnd:
		e.MoveLineEnd(extend)
	case tcell.KeyEnter:
		err = e.InsertText("\n")
	case tcell.KeyTab:
		err = e.InsertText("\t")
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		err = e.DeleteBackward()
	case tcell.KeyDelete:
		err = e.DeleteForward()
	case tcell.KeyRune:
		err = e.InsertText(string(ev.Rune()))
	}
	if err != nil {
		log.Printf("[EDITOR] Key %s: %v", ev.Name(), err)
		e.setMessage("%v", err)
	}
	return false
}

// HandleMouse scrolls on wheel events and places the cursor on clicks.
func (e *Editor) HandleMouse(ev *tcell.EventMouse) {
	buttons := ev.Buttons()
	switch {
	case buttons&tcell.WheelUp != 0:
		e.surface.ScrollBy(-wheelStep)
		e.renderer.ScheduleRepaint()
	case buttons&tcell.WheelDown != 0:
		e.surface.ScrollBy(wheelStep)
		e.renderer.ScheduleRepaint()
	case buttons&tcell.Button1 != 0:
		x, y := ev.Position()
		if p, ok := e.surface.PositionAt(x, y); ok {
			e.moveTo(p, ev.Modifiers()&tcell.ModShift != 0)
		}
	}
}

// HandlePaste inserts pasted text at the cursor.
func (e *Editor) HandlePaste(data []byte) {
	if err := e.InsertText(string(data)); err != nil {
		e.setMessage("%v", err)
	}
}

// HandleResize re-lays the viewport after the screen size changed.
func (e *Editor) HandleResize() {
	e.renderer.Resize()
	e.surface.ScrollBy(0)
}
