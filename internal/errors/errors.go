// Package errors provides structured error types for the devterm core.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure modes.
var (
	// Launch problems: the external tool never ran to completion.
	ErrExecutionFailure   = errors.New("execution failure")
	ErrExecutableNotFound = fmt.Errorf("%w: executable not found", ErrExecutionFailure)
	ErrBadWorkingDir      = fmt.Errorf("%w: invalid working directory", ErrExecutionFailure)
	ErrPermissionDenied   = fmt.Errorf("%w: permission denied", ErrExecutionFailure)
	ErrTimeout            = fmt.Errorf("%w: operation timed out", ErrExecutionFailure)
	ErrCanceled           = fmt.Errorf("%w: operation canceled", ErrExecutionFailure)

	ErrNotFound          = errors.New("project not found")
	ErrDuplicateName     = errors.New("project name already registered")
	ErrInvalidPath       = errors.New("invalid project path")
	ErrManifestMissing   = errors.New("manifest not found")
	ErrManifestParse     = errors.New("manifest parse error")
	ErrMalformedOutput   = errors.New("malformed tool output")
	ErrBusy              = errors.New("operation already in progress")
	ErrRolledBack        = errors.New("self-update rolled back")
	ErrSwapUnrecoverable = errors.New("self-update swap failed and backup could not be restored")
	ErrPrecondition      = errors.New("self-update precondition failed")
	ErrInvalidInput      = errors.New("invalid input")
	ErrUnsupported       = errors.New("unsupported for this toolchain")
)

// NotFoundError reports a registry lookup miss.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("project %q not found", e.Name) }

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// DuplicateNameError reports a registration under a name that is taken.
type DuplicateNameError struct {
	Name     string
	Existing string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("project %q already registered at %s", e.Name, e.Existing)
}

func (e *DuplicateNameError) Unwrap() error { return ErrDuplicateName }

// ManifestParseError reports a manifest that exists but cannot be decoded.
type ManifestParseError struct {
	Path string
	Err  error
}

func (e *ManifestParseError) Error() string {
	return fmt.Sprintf("parsing manifest %s: %v", e.Path, e.Err)
}

func (e *ManifestParseError) Unwrap() []error { return []error{ErrManifestParse, e.Err} }

// MalformedOutputError reports a successful tool run whose stdout did not
// have the expected shape. Raw holds the unparsed output.
type MalformedOutputError struct {
	Intent string
	Raw    []byte
	Err    error
}

func (e *MalformedOutputError) Error() string {
	return fmt.Sprintf("%s: malformed output (%d bytes): %v", e.Intent, len(e.Raw), e.Err)
}

func (e *MalformedOutputError) Unwrap() []error { return []error{ErrMalformedOutput, e.Err} }

// BusyError reports an exclusivity violation on a resource.
type BusyError struct {
	Resource string
}

func (e *BusyError) Error() string {
	return fmt.Sprintf("%s: operation already in progress", e.Resource)
}

func (e *BusyError) Unwrap() error { return ErrBusy }

// FatalSwapError is the only unrecoverable condition: the swap failed and
// restoring the backup failed too. The installation may have no valid binary.
type FatalSwapError struct {
	BinaryPath string
	BackupPath string
	SwapErr    error
	RestoreErr error
}

func (e *FatalSwapError) Error() string {
	return fmt.Sprintf("swap into %s failed (%v) and restore from %s failed (%v): manual intervention required",
		e.BinaryPath, e.SwapErr, e.BackupPath, e.RestoreErr)
}

func (e *FatalSwapError) Unwrap() []error {
	return []error{ErrSwapUnrecoverable, e.SwapErr, e.RestoreErr}
}

// IsExecutionFailure returns true if err signals that a tool could not be launched
// or was killed before it could report a result.
func IsExecutionFailure(err error) bool {
	return errors.Is(err, ErrExecutionFailure)
}

// IsRetryable returns true if the error is likely transient and worth retrying.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsNotFound returns true if err is a registry miss.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsBusy returns true if err is an exclusivity violation.
func IsBusy(err error) bool {
	return errors.Is(err, ErrBusy)
}
