// Package exitcode defines exit codes for the CLI.
package exitcode

const (
	// Success indicates successful completion.
	Success = 0

	// UserError indicates a user error (bad args, validation, not found).
	UserError = 1

	// AuthError indicates an auth/session error (not logged in, expired
	// session, forbidden).
	AuthError = 2

	// BackendError indicates a backend/API/network error.
	BackendError = 3
)
