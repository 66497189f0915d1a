// Package interceptor builds the HTTP client used for resource calls. The
// client attaches the session's bearer token, retries once after renewing a
// rejected token and routes 401, 403 and 404 responses to a Navigator.
package interceptor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"taskr/internal/logging"
	"taskr/internal/session"
)

// Routes passed to Navigator.Navigate.
const (
	RouteLogin        = "/login"
	RouteUnauthorized = "/unauthorized"
	RouteNotFound     = "/not-found"
)

// Navigator is told where the user should go after a failed request.
// returnURL is set only for RouteLogin.
type Navigator interface {
	Navigate(route, returnURL string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(route, returnURL string)

func (f NavigatorFunc) Navigate(route, returnURL string) { f(route, returnURL) }

// Session is the part of session.Manager the interceptors drive.
type Session interface {
	RefreshToken(ctx context.Context) error
	Logout(ctx context.Context) error
}

// Options configures NewClient.
type Options struct {
	// Base is the underlying transport. Defaults to http.DefaultTransport.
	Base http.RoundTripper

	// Timeout is the client timeout. Zero means none.
	Timeout time.Duration

	// Session is refreshed on 401 and logged out when that fails.
	// Optional.
	Session Session

	// Navigator receives redirects. Optional.
	Navigator Navigator

	// ReturnURL derives the login return URL from the failed request.
	// Defaults to the request path.
	ReturnURL func(*http.Request) string

	Logger *slog.Logger
}

// NewClient returns a client whose requests carry tokens from src.
//
// The chain, outermost first: status routing, retry-on-401, bearer token,
// base transport.
func NewClient(src oauth2.TokenSource, opts Options) *http.Client {
	base := opts.Base
	if base == nil {
		base = http.DefaultTransport
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	returnURL := opts.ReturnURL
	if returnURL == nil {
		returnURL = func(r *http.Request) string { return r.URL.Path }
	}

	var rt http.RoundTripper = &oauth2.Transport{Source: src, Base: base}
	if opts.Session != nil {
		rt = &retryTransport{next: rt, session: opts.Session, logger: logger}
	}
	rt = &statusTransport{
		next:      rt,
		session:   opts.Session,
		navigator: opts.Navigator,
		returnURL: returnURL,
		logger:    logger,
	}

	return &http.Client{Transport: rt, Timeout: opts.Timeout}
}

// retryTransport renews the session once when a replayable request is
// rejected with 401.
type retryTransport struct {
	next    http.RoundTripper
	session Session
	logger  *slog.Logger
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.next.RoundTrip(req)
	if err != nil || resp.StatusCode != http.StatusUnauthorized || !replayable(req) {
		return resp, err
	}

	if err := t.session.RefreshToken(req.Context()); err != nil {
		t.logger.Debug("refresh after 401 failed", "url", req.URL.Path, "error", err)
		return resp, nil
	}

	retry := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return resp, nil
		}
		retry.Body = body
	}
	drain(resp)

	t.logger.Debug("retrying with renewed token", "method", req.Method, "url", req.URL.Path)
	return t.next.RoundTrip(retry)
}

func replayable(req *http.Request) bool {
	return req.Body == nil || req.Body == http.NoBody || req.GetBody != nil
}

// statusTransport routes auth and not-found failures. Responses are passed
// through unchanged.
type statusTransport struct {
	next      http.RoundTripper
	session   Session
	navigator Navigator
	returnURL func(*http.Request) string
	logger    *slog.Logger
}

func (t *statusTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.next.RoundTrip(req)
	if err != nil {
		if errors.Is(err, session.ErrSessionExpired) || errors.Is(err, session.ErrNotAuthenticated) {
			t.navigate(RouteLogin, t.returnURL(req))
		}
		return nil, err
	}

	t.logger.Debug("http",
		"method", req.Method,
		"url", req.URL.Path,
		"status", resp.StatusCode,
		"took", time.Since(start).Round(time.Millisecond),
	)

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		if t.session != nil {
			if err := t.session.Logout(req.Context()); err != nil {
				t.logger.Warn("logout after 401 failed", "error", err)
			}
		}
		t.navigate(RouteLogin, t.returnURL(req))
	case http.StatusForbidden:
		t.navigate(RouteUnauthorized, "")
	case http.StatusNotFound:
		t.navigate(RouteNotFound, "")
	}
	return resp, nil
}

func (t *statusTransport) navigate(route, returnURL string) {
	if t.navigator != nil {
		t.navigator.Navigate(route, returnURL)
	}
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
	resp.Body.Close()
}
