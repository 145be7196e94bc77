// Package commands provides the command interface and implementations.
package commands

import (
	"context"
	"flag"
	"fmt"
	"io"

	"go.uber.org/zap"

	"taskboard/internal/config"
	"taskboard/internal/errs"
	"taskboard/internal/exitcode"
	"taskboard/internal/session"
)

// Command defines the interface for CLI commands.
type Command interface {
	// Name returns the primary command name.
	Name() string

	// Aliases returns alternative names for the command.
	Aliases() []string

	// Synopsis returns a short description for help output.
	Synopsis() string

	// Usage returns the usage string for help output.
	Usage() string

	// NeedsAuth returns true if the command requires a signed-in session.
	// Commands like help, version, login, logout return false.
	NeedsAuth() bool

	// RegisterFlags registers command-specific flags.
	RegisterFlags(fs *flag.FlagSet)

	// Run executes the command.
	// cfg is always provided (config dir, paths, settings).
	// sess is nil if NeedsAuth() returns false, otherwise already started.
	// args contains positional arguments after flag parsing.
	// Returns exit code.
	Run(ctx context.Context, cfg *config.Config, sess *session.Session, args []string, out, errOut io.Writer) int
}

// fail reports err to the user and returns its exit code.
func fail(sess *session.Session, errOut io.Writer, err error) int {
	if sess != nil {
		sess.Log.Debug("command failed", zap.Error(err))
	}
	fmt.Fprintf(errOut, "error: %s\n", errs.Message(err))
	return exitcode.For(err)
}
