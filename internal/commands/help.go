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
	Register(&HelpCmd{})
}

// HelpCmd implements the help command.
type HelpCmd struct{}

func (c *HelpCmd) Name() string      { return "help" }
func (c *HelpCmd) Aliases() []string { return nil }
func (c *HelpCmd) Synopsis() string  { return "Print usage" }
func (c *HelpCmd) Usage() string     { return "taskboard help" }
func (c *HelpCmd) NeedsAuth() bool   { return false }

func (c *HelpCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *HelpCmd) Run(ctx context.Context, cfg *config.Config, sess *session.Session, args []string, out, errOut io.Writer) int {
	fmt.Fprint(out, helpText)
	fmt.Fprintln(out, "\nCommands:")
	DefaultRegistry.Summary(out)
	return exitcode.Success
}

const helpText = `Usage:
  taskboard                                          List all tasks
  taskboard list [common flags] [--period <p>]       List tasks (today, week, month, all)
  taskboard add [common flags] [--due YYYY-MM-DD] [--city <city>] <title...>
  taskboard done [common flags] [--period <p>] <n>   Toggle task n of the view
  taskboard rm [common flags] [--period <p>] <n>     Delete task n of the view
  taskboard clear [common flags] [--yes]             Delete all tasks
  taskboard where [common flags] [--notify]          Show (and send) the current location
  taskboard login [common flags]
  taskboard logout [common flags]
  taskboard help
  taskboard version

Common flags:
  --config <dir>   Override config directory
  --quiet          Suppress informational output
  --debug          Print debug logs to stderr

Settings are read from settings.yaml in the config directory and
TASKBOARD_* environment variables.
`
