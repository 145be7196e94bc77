package commands

import (
	"context"
	"flag"
	"fmt"
	"io"

	"go.uber.org/zap"

	"taskboard/internal/config"
	"taskboard/internal/exitcode"
	"taskboard/internal/session"
)

func init() {
	Register(&WhereCmd{})
}

// WhereCmd implements the where command.
type WhereCmd struct {
	notify bool
}

// SetNotify sets the --notify flag (for testing).
func (c *WhereCmd) SetNotify(notify bool) {
	c.notify = notify
}

func (c *WhereCmd) Name() string      { return "where" }
func (c *WhereCmd) Aliases() []string { return []string{"location"} }
func (c *WhereCmd) Synopsis() string  { return "Show the current location" }
func (c *WhereCmd) Usage() string     { return "taskboard where [--notify]" }
func (c *WhereCmd) NeedsAuth() bool   { return true }

func (c *WhereCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.BoolVar(&c.notify, "notify", false, "")
}

func (c *WhereCmd) Run(ctx context.Context, cfg *config.Config, sess *session.Session, args []string, out, errOut io.Writer) int {
	if len(args) > 0 {
		fmt.Fprintf(errOut, "error: unexpected argument: %s\n", args[0])
		return exitcode.UserError
	}

	if !c.notify {
		fmt.Fprintln(out, sess.Resolver.Display(ctx))
		return exitcode.Success
	}

	snap, err := sess.Resolver.GetLocation(ctx)
	if err != nil {
		return fail(sess, errOut, err)
	}
	fmt.Fprintln(out, snap.Display())

	if err := sess.Notifier.LocationUpdated(ctx, sess.Identity.CurrentUser(), snap); err != nil {
		sess.Log.Debug("location webhook failed", zap.Error(err))
		fmt.Fprintln(errOut, "error: location could not be sent")
		return exitcode.For(err)
	}
	if !cfg.Quiet {
		fmt.Fprintln(out, "ok")
	}
	return exitcode.Success
}
