package ui

import (
	"fmt"
	"os"
)

// Notifier signals the visitor that a reply arrived while they were not
// looking. Tests substitute a counter.
type Notifier interface {
	Notify()
}

// TerminalBell rings the terminal's bell. Most emulators translate this
// to the desktop notification sound or a visual flash.
type TerminalBell struct{}

func (TerminalBell) Notify() {
	fmt.Fprint(os.Stderr, "\a")
}
