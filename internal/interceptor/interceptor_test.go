package interceptor_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"golang.org/x/oauth2"

	"taskr/internal/interceptor"
	"taskr/internal/session"
	"taskr/internal/storage"
	"taskr/internal/testutil"
)

type navigation struct {
	route     string
	returnURL string
}

type recorder struct {
	mu   sync.Mutex
	seen []navigation
}

func (r *recorder) Navigate(route, returnURL string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, navigation{route, returnURL})
}

func (r *recorder) all() []navigation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]navigation(nil), r.seen...)
}

// swappableSource returns whatever token was set last.
type swappableSource struct {
	mu    sync.Mutex
	token string
	err   error
}

func (s *swappableSource) set(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

func (s *swappableSource) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return &oauth2.Token{AccessToken: s.token, TokenType: "Bearer"}, nil
}

type stubSession struct {
	refreshes  int
	logouts    int
	refreshErr error
	onRefresh  func()
}

func (s *stubSession) RefreshToken(context.Context) error {
	s.refreshes++
	if s.refreshErr != nil {
		return s.refreshErr
	}
	if s.onRefresh != nil {
		s.onRefresh()
	}
	return nil
}

func (s *stubSession) Logout(context.Context) error {
	s.logouts++
	return nil
}

func statusServer(t *testing.T, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_AttachesBearerToken(t *testing.T) {
	headers := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers <- r.Header.Get("Authorization")
	}))
	defer srv.Close()

	client := interceptor.NewClient(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "abc"}), interceptor.Options{})
	resp, err := client.Get(srv.URL + "/tasks")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()

	if got := <-headers; got != "Bearer abc" {
		t.Errorf("expected bearer header, got %q", got)
	}
}

func TestClient_RoutesByStatus(t *testing.T) {
	cases := []struct {
		status int
		want   []navigation
	}{
		{http.StatusOK, nil},
		{http.StatusBadRequest, nil},
		{http.StatusUnauthorized, []navigation{{interceptor.RouteLogin, "/api/tasks/7"}}},
		{http.StatusForbidden, []navigation{{interceptor.RouteUnauthorized, ""}}},
		{http.StatusNotFound, []navigation{{interceptor.RouteNotFound, ""}}},
		{http.StatusInternalServerError, nil},
	}

	for _, tc := range cases {
		srv := statusServer(t, tc.status)
		nav := &recorder{}
		client := interceptor.NewClient(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "abc"}), interceptor.Options{
			Navigator: nav,
		})

		resp, err := client.Get(srv.URL + "/api/tasks/7")
		if err != nil {
			t.Fatalf("%d: unexpected error: %v", tc.status, err)
		}
		resp.Body.Close()

		if resp.StatusCode != tc.status {
			t.Errorf("%d: response not passed through, got %d", tc.status, resp.StatusCode)
		}
		got := nav.all()
		if len(got) != len(tc.want) {
			t.Fatalf("%d: expected %v, got %v", tc.status, tc.want, got)
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Errorf("%d: expected %v, got %v", tc.status, tc.want[i], got[i])
			}
		}
	}
}

func TestClient_401LogsOut(t *testing.T) {
	srv := statusServer(t, http.StatusUnauthorized)
	sess := &stubSession{refreshErr: session.ErrSessionExpired}
	nav := &recorder{}
	client := interceptor.NewClient(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "abc"}), interceptor.Options{
		Session:   sess,
		Navigator: nav,
	})

	resp, err := client.Get(srv.URL + "/tasks")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", resp.StatusCode)
	}
	if sess.refreshes != 1 {
		t.Errorf("expected one refresh attempt, got %d", sess.refreshes)
	}
	if sess.logouts != 1 {
		t.Errorf("expected logout, got %d", sess.logouts)
	}
	if got := nav.all(); len(got) != 1 || got[0].route != interceptor.RouteLogin {
		t.Errorf("expected login redirect, got %v", got)
	}
}

func TestClient_RetriesOnceWithRenewedToken(t *testing.T) {
	var (
		mu     sync.Mutex
		bodies []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, string(b))
		mu.Unlock()
		if r.Header.Get("Authorization") != "Bearer fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	src := &swappableSource{token: "stale"}
	sess := &stubSession{onRefresh: func() { src.set("fresh") }}
	nav := &recorder{}
	client := interceptor.NewClient(src, interceptor.Options{Session: sess, Navigator: nav})

	resp, err := client.Post(srv.URL+"/tasks", "application/json", strings.NewReader(`{"title":"x"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Errorf("expected 201 after retry, got %d", resp.StatusCode)
	}
	if sess.refreshes != 1 || sess.logouts != 0 {
		t.Errorf("expected one refresh and no logout, got %d/%d", sess.refreshes, sess.logouts)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(bodies) != 2 || bodies[1] != `{"title":"x"}` {
		t.Errorf("expected body replayed, got %q", bodies)
	}
	if got := nav.all(); len(got) != 0 {
		t.Errorf("expected no redirect, got %v", got)
	}
}

func TestClient_TokenSourceErrorRedirects(t *testing.T) {
	srv := statusServer(t, http.StatusOK)
	nav := &recorder{}
	src := &swappableSource{err: session.ErrNotAuthenticated}
	client := interceptor.NewClient(src, interceptor.Options{Navigator: nav})

	_, err := client.Get(srv.URL + "/tasks")
	if !errors.Is(err, session.ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
	if got := nav.all(); len(got) != 1 || got[0].route != interceptor.RouteLogin {
		t.Errorf("expected login redirect, got %v", got)
	}
}

func TestClient_RejectedSessionEndsLoggedOut(t *testing.T) {
	fb := testutil.NewFakeBackend(t)
	fb.AddUser("Ada", "ada@example.com", "pw")

	mgr, err := session.New(session.Options{BaseURL: fb.URL(), Store: storage.NewMemory()})
	if err != nil {
		t.Fatal(err)
	}
	defer mgr.Close()
	if _, err := mgr.Login(context.Background(), session.Credentials{Email: "ada@example.com", Password: "pw"}); err != nil {
		t.Fatal(err)
	}

	nav := &recorder{}
	client := interceptor.NewClient(mgr, interceptor.Options{Session: mgr, Navigator: nav})

	fb.SetRejectTokens(true)
	resp, err := client.Get(fb.URL() + "/tasks")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", resp.StatusCode)
	}
	if mgr.IsAuthenticated() {
		t.Error("expected session to be cleared")
	}
	if fb.Calls("POST /api/auth/refresh-token") != 1 {
		t.Errorf("expected one refresh, got %d", fb.Calls("POST /api/auth/refresh-token"))
	}
	if got := nav.all(); len(got) != 1 || got[0] != (navigation{interceptor.RouteLogin, "/api/tasks"}) {
		t.Errorf("expected login redirect, got %v", got)
	}
}
