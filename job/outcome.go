package job

import (
	"errors"
	"fmt"
)

// Reason classifies a failed run. Reasons are string valued so that they can be written
// verbatim to the run log.
type Reason string

const (
	CredentialMissing   Reason = "CREDENTIAL_MISSING"
	DependencyMissing   Reason = "DEPENDENCY_MISSING"
	NoConnectivity      Reason = "NO_CONNECTIVITY"
	AuthFailed          Reason = "AUTH_FAILED"
	SheetNotFound       Reason = "SHEET_NOT_FOUND"
	PermissionDenied    Reason = "PERMISSION_DENIED"
	PartialWriteFailure Reason = "PARTIAL_WRITE_FAILURE"
	AlreadyRunning      Reason = "ALREADY_RUNNING"
	Unknown             Reason = "UNKNOWN"
)

var exitCodes = map[Reason]int{
	Unknown:             1,
	CredentialMissing:   2,
	DependencyMissing:   3,
	NoConnectivity:      4,
	AuthFailed:          5,
	SheetNotFound:       6,
	PermissionDenied:    7,
	PartialWriteFailure: 8,
	AlreadyRunning:      9,
}

// Sentinel errors returned by Authenticator/Client/Remote implementations so that the job
// can classify failures without knowing the remote API.
var (
	ErrAuthFailed       = errors.New("authentication failed")
	ErrSheetNotFound    = errors.New("spreadsheet not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrLocked           = errors.New("lock held by another process")
)

// Outcome is the result of a single run. A zero Reason is success.
type Outcome struct {
	Reason Reason
	Err    error
}

func (o Outcome) Ok() bool {
	return o.Reason == ""
}

// ExitCode returns 0 for a successful run and a distinct non-zero code for each failure reason.
func (o Outcome) ExitCode() int {
	if o.Ok() {
		return 0
	}

	if code, ok := exitCodes[o.Reason]; ok {
		return code
	}

	return exitCodes[Unknown]
}

func (o Outcome) String() string {
	if o.Ok() {
		return "SUCCESS"
	}

	return fmt.Sprintf("FAILURE: %v", o.Reason)
}

type failure struct {
	reason Reason
	err    error
}

func (f *failure) Error() string {
	return fmt.Sprintf("%v (%v)", f.reason, f.err)
}

func (f *failure) Unwrap() error {
	return f.err
}

func fail(reason Reason, format string, args ...any) error {
	return &failure{
		reason: reason,
		err:    fmt.Errorf(format, args...),
	}
}

func outcome(err error) Outcome {
	if err == nil {
		return Outcome{}
	}

	var f *failure
	if errors.As(err, &f) {
		return Outcome{Reason: f.reason, Err: f.err}
	}

	return Outcome{Reason: Unknown, Err: err}
}

// classify maps remote API errors onto a failure reason.
func classify(err error, otherwise Reason) Reason {
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return PermissionDenied

	case errors.Is(err, ErrSheetNotFound):
		return SheetNotFound

	case errors.Is(err, ErrAuthFailed):
		return AuthFailed

	default:
		return otherwise
	}
}
