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

	"taskr/internal/config"
	"taskr/internal/exitcode"
	"taskr/internal/session"
)

func init() {
	Register(&LoginCmd{})
	Register(&RegisterCmd{})
}

// credentialFlags are shared by login and register.
type credentialFlags struct {
	email         string
	password      string
	passwordStdin bool
}

func (f *credentialFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.email, "email", "", "")
	fs.StringVar(&f.email, "e", "", "")
	fs.StringVar(&f.password, "password", "", "")
	fs.BoolVar(&f.passwordStdin, "password-stdin", false, "")
}

// resolve fills in email and password from flags, stdin and the
// environment, in that order.
func (f *credentialFlags) resolve(env *Env) (email, password string, err error) {
	email = strings.TrimSpace(f.email)
	if email == "" {
		email = strings.TrimSpace(os.Getenv(config.EnvEmail))
	}

	password = f.password
	if f.passwordStdin {
		if f.password != "" {
			return "", "", errors.New("--password and --password-stdin are mutually exclusive")
		}
		if password, err = readPassword(env.Stdin); err != nil {
			return "", "", err
		}
	}
	if password == "" {
		password = os.Getenv(config.EnvPassword)
	}

	if email == "" {
		return "", "", errors.New("email required")
	}
	if password == "" {
		return "", "", errors.New("password required")
	}
	return email, password, nil
}

// readPassword reads the first line of r.
func readPassword(r io.Reader) (string, error) {
	if r == nil {
		return "", errors.New("no password on stdin")
	}
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// LoginCmd implements the login command.
type LoginCmd struct {
	creds credentialFlags
}

func (c *LoginCmd) Name() string      { return "login" }
func (c *LoginCmd) Aliases() []string { return nil }
func (c *LoginCmd) Synopsis() string  { return "Sign in to the task backend" }
func (c *LoginCmd) Usage() string {
	return "taskr login [--email <email>] [--password <pw> | --password-stdin]"
}
func (c *LoginCmd) NeedsAuth() bool { return false }

func (c *LoginCmd) RegisterFlags(fs *flag.FlagSet) { c.creds.register(fs) }

func (c *LoginCmd) Run(ctx context.Context, env *Env, args []string, out, errOut io.Writer) int {
	if len(args) > 0 {
		fmt.Fprintf(errOut, "error: unexpected argument: %s\n", args[0])
		return exitcode.UserError
	}

	if env.Session.IsAuthenticated() {
		if !env.Config.Quiet {
			fmt.Fprintln(out, "already logged in")
		}
		return exitcode.Success
	}

	email, password, err := c.creds.resolve(env)
	if err != nil {
		return fail(errOut, invalid(err))
	}

	resp, err := env.Session.Login(ctx, session.Credentials{Email: email, Password: password})
	if err != nil {
		return fail(errOut, err)
	}
	env.Log().Info("logged in", "user", resp.User.Email)

	if !env.Config.Quiet {
		fmt.Fprintln(out, "ok")
	}
	return exitcode.Success
}

// RegisterCmd implements the register command.
type RegisterCmd struct {
	name  string
	creds credentialFlags
}

func (c *RegisterCmd) Name() string      { return "register" }
func (c *RegisterCmd) Aliases() []string { return []string{"signup"} }
func (c *RegisterCmd) Synopsis() string  { return "Create an account and sign in" }
func (c *RegisterCmd) Usage() string {
	return "taskr register --name <name> [--email <email>] [--password <pw> | --password-stdin]"
}
func (c *RegisterCmd) NeedsAuth() bool { return false }

func (c *RegisterCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.name, "name", "", "")
	fs.StringVar(&c.name, "n", "", "")
	c.creds.register(fs)
}

func (c *RegisterCmd) Run(ctx context.Context, env *Env, args []string, out, errOut io.Writer) int {
	name := strings.TrimSpace(c.name)
	if name == "" {
		name = strings.TrimSpace(strings.Join(args, " "))
	}
	if name == "" {
		fmt.Fprintln(errOut, "error: name required")
		return exitcode.UserError
	}

	email, password, err := c.creds.resolve(env)
	if err != nil {
		return fail(errOut, invalid(err))
	}

	if env.Session.IsAuthenticated() {
		// A new account replaces the current session.
		if err := env.Session.Logout(ctx); err != nil {
			return fail(errOut, err)
		}
	}

	resp, err := env.Session.Register(ctx, session.Registration{Name: name, Email: email, Password: password})
	if err != nil {
		return fail(errOut, err)
	}
	env.Log().Info("registered", "user", resp.User.Email)

	if !env.Config.Quiet {
		fmt.Fprintln(out, "ok")
	}
	return exitcode.Success
}
