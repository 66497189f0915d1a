// Package cli wires configuration, storage, the session and the backend
// client together and dispatches command lines to commands.
package cli

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"

	"taskr/internal/backend/googletasks"
	"taskr/internal/backend/restapi"
	"taskr/internal/commands"
	"taskr/internal/config"
	"taskr/internal/drafts"
	"taskr/internal/interceptor"
	"taskr/internal/logging"
	"taskr/internal/session"
	"taskr/internal/storage"
)

// NewEnv opens the state database in the config directory and builds the
// session manager and the REST client on top of it.
func NewEnv(ctx context.Context, cfg *config.Config, errOut io.Writer) (*commands.Env, error) {
	level := "warn"
	if cfg.Debug {
		level = "debug"
	}
	logger := logging.New(level, cfg.LogFormat, errOut)

	if err := cfg.EnsureDir(); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}
	store, err := storage.OpenSQLite(cfg.StatePath())
	if err != nil {
		return nil, err
	}

	mgr, err := session.New(session.Options{
		BaseURL:    cfg.APIURL,
		HTTPClient: &http.Client{Timeout: cfg.Timeout},
		Store:      store,
		Leeway:     cfg.RefreshLeeway,
		Logger:     logger,
		OnExpired: func(err error) {
			logger.Warn("session expired", "error", err)
		},
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	client := interceptor.NewClient(mgr, interceptor.Options{
		Timeout:   cfg.Timeout,
		Session:   mgr,
		Navigator: newHintNavigator(errOut),
		Logger:    logger,
	})

	return &commands.Env{
		Config:  cfg,
		Logger:  logger,
		Session: mgr,
		Tasks:   restapi.New(cfg.APIURL, client, cfg.Timeout),
		Drafts:  drafts.New(store),
		Store:   store,
		OpenMirror: func(ctx context.Context) (commands.Mirror, error) {
			return googletasks.New(ctx, cfg)
		},
		Stdin: os.Stdin,
	}, nil
}

// hintNavigator turns interceptor redirects into one-line hints, once per
// route.
type hintNavigator struct {
	mu   sync.Mutex
	w    io.Writer
	seen map[string]bool
}

func newHintNavigator(w io.Writer) *hintNavigator {
	return &hintNavigator{w: w, seen: make(map[string]bool)}
}

func (n *hintNavigator) Navigate(route, returnURL string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.seen[route] {
		return
	}
	n.seen[route] = true

	switch route {
	case interceptor.RouteLogin:
		fmt.Fprintln(n.w, "hint: run: taskr login")
	case interceptor.RouteUnauthorized:
		fmt.Fprintln(n.w, "hint: permission denied")
	case interceptor.RouteNotFound:
		fmt.Fprintln(n.w, "hint: the requested resource does not exist")
	}
}
