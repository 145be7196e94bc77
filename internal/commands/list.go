package commands

import (
	"context"
	"flag"
	"fmt"
	"io"

	"taskboard/internal/config"
	"taskboard/internal/exitcode"
	"taskboard/internal/output"
	"taskboard/internal/session"
	"taskboard/internal/tasksync"
)

func init() {
	Register(&ListCmd{})
}

// ListCmd implements the list command.
// Handles both `taskboard` (no args) and `taskboard list --period <p>`.
type ListCmd struct {
	period string
}

// SetPeriod sets the period flag (for testing).
func (c *ListCmd) SetPeriod(period string) {
	c.period = period
}

func (c *ListCmd) Name() string      { return "list" }
func (c *ListCmd) Aliases() []string { return []string{"ls"} }
func (c *ListCmd) Synopsis() string  { return "List tasks" }
func (c *ListCmd) Usage() string     { return "taskboard list [--period today|week|month|all]" }
func (c *ListCmd) NeedsAuth() bool   { return true }

func (c *ListCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.period, "period", "all", "")
	fs.StringVar(&c.period, "p", "all", "")
}

func (c *ListCmd) Run(ctx context.Context, cfg *config.Config, sess *session.Session, args []string, out, errOut io.Writer) int {
	if len(args) > 0 {
		fmt.Fprintf(errOut, "error: unexpected argument: %s\n", args[0])
		return exitcode.UserError
	}
	period, err := tasksync.ParsePeriod(c.period)
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	}

	sess.Sync.SetPeriod(period)
	view := sess.Sync.View()

	output.FormatHeader(out, sess.Sync.Title())
	if len(view) == 0 && !cfg.Quiet {
		fmt.Fprintln(out, "no tasks found")
	}
	for i, task := range view {
		output.FormatTask(out, i+1, task)
	}
	counts := sess.Sync.Counts()
	output.FormatCounts(out, counts.Completed, counts.Pending, counts.Total)
	output.FormatNotice(errOut, sess.Sync.Notice())
	return exitcode.Success
}
