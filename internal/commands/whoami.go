package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"time"

	"taskr/internal/exitcode"
	"taskr/internal/output"
)

func init() {
	Register(&WhoamiCmd{})
	Register(&RefreshCmd{})
}

// WhoamiCmd implements the whoami command.
type WhoamiCmd struct{}

func (c *WhoamiCmd) Name() string      { return "whoami" }
func (c *WhoamiCmd) Aliases() []string { return []string{"status"} }
func (c *WhoamiCmd) Synopsis() string  { return "Show the signed-in user" }
func (c *WhoamiCmd) Usage() string     { return "taskr whoami" }
func (c *WhoamiCmd) NeedsAuth() bool   { return true }

func (c *WhoamiCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *WhoamiCmd) Run(ctx context.Context, env *Env, args []string, out, errOut io.Writer) int {
	user := env.Session.CurrentUser()
	if user == nil {
		fmt.Fprintln(errOut, "error: not logged in (run: taskr login)")
		return exitcode.AuthError
	}
	expires, _ := env.Session.ExpiresAt()
	output.FormatUser(out, user, expires, env.Clock())
	return exitcode.Success
}

// RefreshCmd implements the refresh command.
type RefreshCmd struct{}

func (c *RefreshCmd) Name() string      { return "refresh" }
func (c *RefreshCmd) Aliases() []string { return nil }
func (c *RefreshCmd) Synopsis() string  { return "Renew the session token" }
func (c *RefreshCmd) Usage() string     { return "taskr refresh" }
func (c *RefreshCmd) NeedsAuth() bool   { return true }

func (c *RefreshCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *RefreshCmd) Run(ctx context.Context, env *Env, args []string, out, errOut io.Writer) int {
	if err := env.Session.RefreshToken(ctx); err != nil {
		return fail(errOut, err)
	}
	if !env.Config.Quiet {
		if expires, ok := env.Session.ExpiresAt(); ok {
			fmt.Fprintf(out, "ok, valid until %s\n", expires.Local().Format(time.DateTime))
		} else {
			fmt.Fprintln(out, "ok")
		}
	}
	return exitcode.Success
}
