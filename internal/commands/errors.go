package commands

import (
	"errors"
	"fmt"
	"io"

	"taskr/internal/drafts"
	"taskr/internal/envelope"
	"taskr/internal/exitcode"
	"taskr/internal/service"
	"taskr/internal/session"
)

// userError marks bad arguments and failed local validation.
type userError struct{ err error }

func (e userError) Error() string { return e.err.Error() }
func (e userError) Unwrap() error { return e.err }

// usageError returns a formatted user error.
func usageError(format string, args ...any) error {
	return userError{fmt.Errorf(format, args...)}
}

// invalid marks err as a user error. nil stays nil.
func invalid(err error) error {
	if err == nil {
		return nil
	}
	return userError{err}
}

// fail prints err and returns the exit code for it.
func fail(errOut io.Writer, err error) int {
	code := classify(err)
	switch {
	case errors.Is(err, session.ErrNotAuthenticated):
		fmt.Fprintln(errOut, "error: not logged in (run: taskr login)")
	case errors.Is(err, session.ErrSessionExpired):
		fmt.Fprintf(errOut, "error: %v (run: taskr login)\n", err)
	case code == exitcode.AuthError:
		fmt.Fprintf(errOut, "error: auth error: %v\n", err)
	case code == exitcode.BackendError:
		fmt.Fprintf(errOut, "error: backend error: %v\n", err)
	default:
		fmt.Fprintf(errOut, "error: %v\n", err)
	}
	return code
}

// classify maps err to an exit code.
func classify(err error) int {
	var ue userError
	var ie *service.InvalidInputError
	switch {
	case err == nil:
		return exitcode.Success
	case errors.As(err, &ue),
		errors.As(err, &ie),
		errors.Is(err, service.ErrTaskIDRequired),
		errors.Is(err, drafts.ErrNotFound):
		return exitcode.UserError
	case errors.Is(err, session.ErrNotAuthenticated),
		errors.Is(err, session.ErrSessionExpired):
		return exitcode.AuthError
	}

	switch status := envelope.StatusCode(err); {
	case envelope.IsUnauthorized(err), envelope.IsForbidden(err):
		return exitcode.AuthError
	case envelope.IsNotFound(err), status >= 400 && status < 500:
		return exitcode.UserError
	}
	return exitcode.BackendError
}
