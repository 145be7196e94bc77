package commands

import (
	"bytes"
	"context"
	"flag"
	"io"
	"strings"
	"testing"

	"taskboard/internal/config"
	"taskboard/internal/session"
)

type stubCmd struct {
	name    string
	aliases []string
}

func (c stubCmd) Name() string                { return c.name }
func (c stubCmd) Aliases() []string           { return c.aliases }
func (c stubCmd) Synopsis() string            { return "stub " + c.name }
func (c stubCmd) Usage() string               { return c.name }
func (c stubCmd) NeedsAuth() bool             { return false }
func (c stubCmd) RegisterFlags(*flag.FlagSet) {}
func (c stubCmd) Run(context.Context, *config.Config, *session.Session, []string, io.Writer, io.Writer) int {
	return 0
}

func TestRegistry_RegisterAndFind(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(stubCmd{name: "rm", aliases: []string{"delete"}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := r.Find("delete"); !ok {
		t.Error("expected alias to resolve")
	}
	if err := r.Register(stubCmd{name: "delete"}); err == nil {
		t.Error("expected duplicate name to be rejected")
	}
	if err := r.Register(stubCmd{}); err == nil {
		t.Error("expected empty name to be rejected")
	}
}

func TestRegistry_Summary(t *testing.T) {
	r := NewRegistry()
	_ = r.Register(stubCmd{name: "where", aliases: []string{"location"}})
	_ = r.Register(stubCmd{name: "add"})

	var buf bytes.Buffer
	r.Summary(&buf)

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %q", buf.String())
	}
	if !strings.HasPrefix(lines[0], "  add ") || !strings.HasSuffix(lines[0], "stub add") {
		t.Errorf("unexpected first line: %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "  where|location ") {
		t.Errorf("unexpected second line: %q", lines[1])
	}
}
