// Package cli contains helper functions related to flag parsing and logging.
package cli

import (
	"os"

	cli "github.com/peterebden/go-cli-init/v5/flags"
	clilogging "github.com/peterebden/go-cli-init/v5/logging"
	"golang.org/x/term"
)

// StdErrIsATerminal is true if the process' stderr is an interactive TTY.
var StdErrIsATerminal = term.IsTerminal(int(os.Stderr.Fd()))

// StdOutIsATerminal is true if the process' stdout is an interactive TTY.
var StdOutIsATerminal = term.IsTerminal(int(os.Stdout.Fd()))

// ShowColouredOutput is true if we should embellish output with ANSI colours.
var ShowColouredOutput = StdErrIsATerminal

// A Verbosity is used as a flag to define logging verbosity.
type Verbosity = clilogging.Verbosity

// InitLogging initialises logging backends at the given verbosity.
func InitLogging(verbosity Verbosity) {
	clilogging.InitLogging(verbosity)
}

// ParseFlagsOrDie parses the app's flags and dies if unsuccessful.
// Also dies if any unexpected arguments are passed.
func ParseFlagsOrDie(appname string, data interface{}) {
	cli.ParseFlagsOrDie(appname, data, nil)
}
