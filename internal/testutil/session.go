package testutil

import (
	"encoding/json"
	"testing"

	"taskr/internal/session"
	"taskr/internal/storage"
)

// SignedInStore returns a memory store holding a session for user, as if
// login had succeeded. The token has no expiry, so no renewal timer runs.
func SignedInStore(t testing.TB, user session.User, token string) *storage.Memory {
	t.Helper()

	raw, err := json.Marshal(user)
	if err != nil {
		t.Fatalf("failed to encode user: %v", err)
	}
	store := storage.NewMemory()
	for k, v := range map[string]string{
		storage.KeyAuthToken:    token,
		storage.KeyRefreshToken: "refresh-" + token,
		storage.KeyUserData:     string(raw),
	} {
		if err := store.Set(k, v); err != nil {
			t.Fatalf("failed to seed store: %v", err)
		}
	}
	return store
}

// NewSession creates a Manager for baseURL over store and closes it when
// the test ends.
func NewSession(t testing.TB, baseURL string, store storage.Store) *session.Manager {
	t.Helper()

	mgr, err := session.New(session.Options{BaseURL: baseURL, Store: store})
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	t.Cleanup(func() { _ = mgr.Close() })
	return mgr
}
