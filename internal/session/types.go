package session

import "errors"

// Auth endpoints, relative to the API base URL.
const (
	LoginPath    = "/auth/login"
	RegisterPath = "/auth/register"
	RefreshPath  = "/auth/refresh-token"
	LogoutPath   = "/auth/logout"
)

var (
	// ErrNotAuthenticated is returned when an operation needs a session and
	// none is stored.
	ErrNotAuthenticated = errors.New("not logged in")

	// ErrSessionExpired is returned when the session could not be renewed.
	// The session has been torn down by the time it is returned.
	ErrSessionExpired = errors.New("your session has expired, please log in again")
)

// User is the authenticated account.
type User struct {
	ID    string   `json:"id"`
	Email string   `json:"email"`
	Name  string   `json:"name"`
	Roles []string `json:"roles,omitempty"`
}

// Credentials are exchanged for a session on login.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Registration creates an account and a session.
type Registration struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse is returned by login, register and refresh.
type AuthResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
	User         User   `json:"user"`
	// ExpiresIn is the access token lifetime in seconds.
	ExpiresIn int64 `json:"expiresIn"`
}

type refreshRequest struct {
	Token        string `json:"token,omitempty"`
	RefreshToken string `json:"refreshToken"`
}
