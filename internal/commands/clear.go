package commands

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"taskboard/internal/config"
	"taskboard/internal/errs"
	"taskboard/internal/exitcode"
	"taskboard/internal/session"
)

const clearPrompt = "Do you really want to delete all tasks? [y/N] "

func init() {
	Register(&ClearCmd{})
}

// ClearCmd implements the clear command.
type ClearCmd struct {
	yes bool
	in  io.Reader
}

// SetYes sets the --yes flag (for testing).
func (c *ClearCmd) SetYes(yes bool) {
	c.yes = yes
}

// SetInput overrides the confirmation input (for testing).
func (c *ClearCmd) SetInput(r io.Reader) {
	c.in = r
}

func (c *ClearCmd) Name() string      { return "clear" }
func (c *ClearCmd) Aliases() []string { return nil }
func (c *ClearCmd) Synopsis() string  { return "Delete all tasks" }
func (c *ClearCmd) Usage() string     { return "taskboard clear [--yes]" }
func (c *ClearCmd) NeedsAuth() bool   { return true }

func (c *ClearCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.BoolVar(&c.yes, "yes", false, "")
	fs.BoolVar(&c.yes, "y", false, "")
}

func (c *ClearCmd) Run(ctx context.Context, cfg *config.Config, sess *session.Session, args []string, out, errOut io.Writer) int {
	if len(args) > 0 {
		fmt.Fprintf(errOut, "error: unexpected argument: %s\n", args[0])
		return exitcode.UserError
	}

	confirm := func() bool {
		if c.yes {
			return true
		}
		in := c.in
		if in == nil {
			in = os.Stdin
		}
		fmt.Fprint(errOut, clearPrompt)
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && line == "" {
			return false
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true
		}
		return false
	}

	res, err := sess.Sync.ClearAll(ctx, confirm)
	if errors.Is(err, errs.ErrNotConfirmed) {
		if !cfg.Quiet {
			fmt.Fprintln(out, "cancelled")
		}
		return exitcode.UserError
	}
	if err != nil {
		if len(res.Failed) > 0 {
			fmt.Fprintf(errOut, "error: %d of %d tasks could not be deleted\n",
				len(res.Failed), res.Deleted+len(res.Failed))
			return exitcode.For(err)
		}
		return fail(sess, errOut, err)
	}

	if !cfg.Quiet {
		fmt.Fprintf(out, "deleted %d tasks\n", res.Deleted)
	}
	return exitcode.Success
}
