// Package colors provides ANSI terminal styling for CLI output. Codes
// are suppressed automatically when the output is not a terminal.
package colors

import (
	"os"

	"github.com/mattn/go-isatty"
)

type COLOR string

const (
	RESET  COLOR = "\033[0m"
	RED    COLOR = "\033[31m"
	GREEN  COLOR = "\033[32m"
	YELLOW COLOR = "\033[33m"
	BLUE   COLOR = "\033[34m"
	PURPLE COLOR = "\033[35m"
	CYAN   COLOR = "\033[36m"
	GREY   COLOR = "\033[90m"
	BOLD   COLOR = "\033[1m"
)

// enabled gates emission of escape codes; it is off when stdout is not
// a terminal, and can be forced either way.
var enabled = isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())

// Enable forces colored output on or off.
func Enable(on bool) {
	enabled = on
}

// Enabled reports whether escape codes are emitted.
func Enabled() bool {
	return enabled
}

func (c COLOR) code() string {
	if !enabled {
		return ""
	}
	return string(c)
}

func reset() string {
	if !enabled {
		return ""
	}
	return string(RESET)
}
