package commands

import (
	"context"
	"flag"
	"fmt"
	"io"

	"taskboard/internal/config"
	"taskboard/internal/exitcode"
	"taskboard/internal/session"
)

func init() {
	Register(&DoneCmd{})
}

// DoneCmd implements the done command. It flips the completion state.
type DoneCmd struct {
	period string
}

// SetPeriod sets the period flag (for testing).
func (c *DoneCmd) SetPeriod(period string) {
	c.period = period
}

func (c *DoneCmd) Name() string      { return "done" }
func (c *DoneCmd) Aliases() []string { return []string{"toggle"} }
func (c *DoneCmd) Synopsis() string  { return "Toggle a task's completed state" }
func (c *DoneCmd) Usage() string     { return "taskboard done [--period <p>] <n>" }
func (c *DoneCmd) NeedsAuth() bool   { return true }

func (c *DoneCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.period, "period", "all", "")
	fs.StringVar(&c.period, "p", "all", "")
}

func (c *DoneCmd) Run(ctx context.Context, cfg *config.Config, sess *session.Session, args []string, out, errOut io.Writer) int {
	task, code := resolveRef(sess, c.period, args, errOut)
	if code != exitcode.Success {
		return code
	}

	if err := sess.Sync.ToggleTask(ctx, task); err != nil {
		return fail(sess, errOut, err)
	}

	if !cfg.Quiet {
		fmt.Fprintln(out, "ok")
	}
	return exitcode.Success
}
