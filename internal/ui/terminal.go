package ui

import (
	"os"

	"golang.org/x/term"
)

const (
	defaultTerminalWidth  = 120
	defaultTerminalHeight = 40
)

// GetTerminalSize returns the size of the terminal on stdout. Non-TTY
// output gets a fixed default size.
func GetTerminalSize() (width, height int) {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return defaultTerminalWidth, defaultTerminalHeight
	}
	width, height, err := term.GetSize(fd)
	if err != nil || width <= 0 || height <= 0 {
		return defaultTerminalWidth, defaultTerminalHeight
	}
	return width, height
}
