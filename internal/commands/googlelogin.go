package commands

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"

	"taskr/internal/backend/googletasks"
	"taskr/internal/exitcode"
)

func init() {
	Register(&GoogleLoginCmd{})
}

// GoogleLoginCmd connects taskr to a Google account for mirroring.
type GoogleLoginCmd struct{}

func (c *GoogleLoginCmd) Name() string      { return "google-login" }
func (c *GoogleLoginCmd) Aliases() []string { return nil }
func (c *GoogleLoginCmd) Synopsis() string  { return "Authenticate with Google Tasks for mirroring" }
func (c *GoogleLoginCmd) Usage() string     { return "taskr google-login [common flags]" }
func (c *GoogleLoginCmd) NeedsAuth() bool   { return false }

func (c *GoogleLoginCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *GoogleLoginCmd) Run(ctx context.Context, env *Env, args []string, out, errOut io.Writer) int {
	cfg := env.Config
	if !cfg.HasOAuthClient() {
		printOAuthClientHelp(errOut, cfg.Dir)
		return exitcode.AuthError
	}

	if cfg.HasGoogleToken() && googletasks.TokenValid(ctx, cfg) {
		if !cfg.Quiet {
			fmt.Fprintln(out, "already logged in")
		}
		return exitcode.Success
	}

	if err := googletasks.Authorize(ctx, cfg, errOut); err != nil {
		if errors.Is(err, googletasks.ErrNoOAuthClient) {
			printOAuthClientHelp(errOut, cfg.Dir)
			return exitcode.AuthError
		}
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.AuthError
	}

	if !cfg.Quiet {
		fmt.Fprintln(out, "ok")
	}
	return exitcode.Success
}

func printOAuthClientHelp(errOut io.Writer, dir string) {
	fmt.Fprintf(errOut, "error: oauth_client.json not found in %s\n\n", dir)
	fmt.Fprintln(errOut, "To mirror tasks into Google Tasks, you need OAuth credentials:")
	fmt.Fprintln(errOut, "")
	fmt.Fprintln(errOut, "1. Go to https://console.cloud.google.com/apis/credentials")
	fmt.Fprintln(errOut, "2. Create a project (or select an existing one)")
	fmt.Fprintln(errOut, "3. Enable the Google Tasks API:")
	fmt.Fprintln(errOut, "   https://console.cloud.google.com/apis/library/tasks.googleapis.com")
	fmt.Fprintln(errOut, "4. Create OAuth 2.0 credentials:")
	fmt.Fprintln(errOut, "   - Click 'Create Credentials' > 'OAuth client ID'")
	fmt.Fprintln(errOut, "   - Choose 'Desktop app' as application type")
	fmt.Fprintln(errOut, "   - Download the JSON file")
	fmt.Fprintln(errOut, "5. Save it as:")
	fmt.Fprintf(errOut, "   %s/oauth_client.json\n", dir)
	fmt.Fprintln(errOut, "")
	fmt.Fprintln(errOut, "Then run 'taskr google-login' again.")
}
