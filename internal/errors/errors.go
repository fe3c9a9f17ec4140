package errors

import (
	stderrors "errors"
	"fmt"
	"os"

	"github.com/julianstephens/habitsync/internal/logger"
)

var (
	// ErrNotInitialized is returned when the local database has not been created yet
	ErrNotInitialized = stderrors.New("storage not initialized")
	// ErrNoUser is returned when a command needs a user and none was configured
	ErrNoUser = stderrors.New("no user configured")
	// ErrNoRemote is returned when a sync is requested without a remote store
	ErrNoRemote = stderrors.New("no remote store configured")
)

var hints = []struct {
	err  error
	hint string
}{
	{ErrNotInitialized, "run 'habitsync init' first"},
	{ErrNoUser, "pass --user, set HABITSYNC_USER, or set user in config.toml"},
	{ErrNoRemote, "set HABITSYNC_REMOTE_DSN, remote_dsn in config.toml, or run 'habitsync remote set'"},
}

// Format formats an error message with a consistent "Error: " prefix
// and appends a hint when the error matches a known failure class.
func Format(err error) string {
	if err == nil {
		return ""
	}
	msg := fmt.Sprintf("Error: %v", err)
	for _, h := range hints {
		if stderrors.Is(err, h.err) {
			msg += fmt.Sprintf(" (hint: %s)", h.hint)
			break
		}
	}
	return msg
}

// Fatal logs an error and exits the program with exit code 1
func Fatal(err error) {
	if err != nil {
		logger.Error("command failed", "error", err)
		fmt.Fprintf(os.Stderr, "%s\n", Format(err))
		os.Exit(1)
	}
}
