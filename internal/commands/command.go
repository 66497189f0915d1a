// Package commands provides the command interface and implementations.
package commands

import (
	"context"
	"flag"
	"io"
	"log/slog"
	"time"

	"taskr/internal/config"
	"taskr/internal/drafts"
	"taskr/internal/logging"
	"taskr/internal/service"
	"taskr/internal/session"
	"taskr/internal/storage"
)

// Mirror is a task destination outside the REST backend.
type Mirror interface {
	// EnsureList returns the id of the list titled title, creating it when
	// missing.
	EnsureList(ctx context.Context, title string) (string, error)

	// Push copies task into the list.
	Push(ctx context.Context, listID string, task service.Task) error
}

// Env carries the dependencies a command may use.
type Env struct {
	Config *config.Config
	Logger *slog.Logger

	// Session is always set outside of unit tests.
	Session *session.Manager

	// Tasks talks to the REST backend through the session.
	Tasks service.Service

	Drafts *drafts.Store

	// Store backs Session and Drafts. Closed by Close.
	Store storage.Store

	// OpenMirror connects to the mirror destination. Nil when unavailable.
	OpenMirror func(ctx context.Context) (Mirror, error)

	// Stdin feeds --password-stdin. Nil reads nothing.
	Stdin io.Reader

	// Now defaults to time.Now.
	Now func() time.Time
}

// Clock returns the current time.
func (e *Env) Clock() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// Log returns the logger, discarding output when none is set.
func (e *Env) Log() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return logging.Discard()
}

// Close releases the session and the store.
func (e *Env) Close() error {
	if e.Session != nil {
		_ = e.Session.Close()
	}
	if e.Store != nil {
		return e.Store.Close()
	}
	return nil
}

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

	// NeedsAuth returns true if the command requires a stored session.
	// Commands like help, version, login, logout return false.
	NeedsAuth() bool

	// RegisterFlags registers command-specific flags.
	RegisterFlags(fs *flag.FlagSet)

	// Run executes the command.
	// env.Config is always provided.
	// args contains positional arguments after flag parsing.
	// Returns exit code.
	Run(ctx context.Context, env *Env, args []string, out, errOut io.Writer) int
}
