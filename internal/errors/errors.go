package errors

import (
	stderrors "errors"
	"fmt"
	"io"

	"github.com/julianstephens/quitlog/internal/logger"
)

// LocalStorageError reports a failed read or write against the on-device
// store. It is fatal to the operation that triggered it and is never retried.
type LocalStorageError struct {
	Op  string
	Err error
}

func (e *LocalStorageError) Error() string {
	return fmt.Sprintf("local storage: %s: %v", e.Op, e.Err)
}

func (e *LocalStorageError) Unwrap() error { return e.Err }

// Local wraps err as a LocalStorageError. A nil err stays nil.
func Local(op string, err error) error {
	if err == nil {
		return nil
	}
	var local *LocalStorageError
	if stderrors.As(err, &local) {
		return err
	}
	return &LocalStorageError{Op: op, Err: err}
}

// RemoteUnavailableError reports a failed call to the remote store. The sync
// layer absorbs it into the queue; it never reaches the user as a failure.
type RemoteUnavailableError struct {
	Op  string
	Err error
}

func (e *RemoteUnavailableError) Error() string {
	return fmt.Sprintf("remote unavailable: %s: %v", e.Op, e.Err)
}

func (e *RemoteUnavailableError) Unwrap() error { return e.Err }

// Remote wraps err as a RemoteUnavailableError. A nil err stays nil.
func Remote(op string, err error) error {
	if err == nil {
		return nil
	}
	var remote *RemoteUnavailableError
	if stderrors.As(err, &remote) {
		return err
	}
	return &RemoteUnavailableError{Op: op, Err: err}
}

// IsLocal reports whether err is, or wraps, a LocalStorageError.
func IsLocal(err error) bool {
	var local *LocalStorageError
	return stderrors.As(err, &local)
}

// IsRemote reports whether err is, or wraps, a RemoteUnavailableError.
func IsRemote(err error) bool {
	var remote *RemoteUnavailableError
	return stderrors.As(err, &remote)
}

// Format formats an error message with a consistent "Error: " prefix
func Format(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("Error: %v", err)
}

// Formatf formats an error message with a consistent "Error: " prefix using a format string
func Formatf(format string, args ...interface{}) string {
	return fmt.Sprintf("Error: "+format, args...)
}

// Report logs err, prints it to w and returns the process exit code. A nil
// error reports nothing and yields 0.
func Report(w io.Writer, err error) int {
	if err == nil {
		return 0
	}
	logger.Error("Command execution failed", "error", err)
	fmt.Fprintf(w, "%s\n", Format(err))
	return 1
}
