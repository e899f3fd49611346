package ui

import (
	"errors"
	"fmt"
)

// ErrorType defines the category of error for proper handling
type ErrorType int

const (
	ErrorTypeUserCancelled ErrorType = iota // Ctrl+C, 'q' - silent exit
	ErrorTypeValidation                     // Bad flags or manifest - show error, no usage
	ErrorTypeAPI                            // Network/API - show error, no usage
	ErrorTypeFileSystem                     // Missing or unreadable paths
	ErrorTypeConfiguration                  // Config issues
	ErrorTypeAuth                           // Not logged in or session expired
	ErrorTypeUploadFailed                   // One or more files ended in error
	ErrorTypeInternal                       // Unexpected
)

// UIError carries how an error should be presented between Bubbletea and Cobra.
type UIError struct {
	Err           error
	Type          ErrorType
	SuppressUsage bool // Don't show Cobra usage message
	SilentExit    bool // Already rendered in the UI; exit non-zero without printing
}

func (e *UIError) Error() string {
	return e.Err.Error()
}

func (e *UIError) Unwrap() error {
	return e.Err
}

// ExitCode is the process exit status for the error
func (e *UIError) ExitCode() int {
	switch e.Type {
	case ErrorTypeUserCancelled:
		return 130
	case ErrorTypeAuth:
		return 3
	case ErrorTypeUploadFailed:
		return 2
	default:
		return 1
	}
}

// ExitCode returns the exit status for any error returned by a command
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var uiErr *UIError
	if errors.As(err, &uiErr) {
		return uiErr.ExitCode()
	}
	return 1
}

func newError(errType ErrorType, err error) *UIError {
	return &UIError{Err: err, Type: errType, SuppressUsage: true}
}

func NewUserCancelledError() *UIError {
	e := newError(ErrorTypeUserCancelled, fmt.Errorf("cancelled by user"))
	e.SilentExit = true
	return e
}

func NewValidationError(err error) *UIError {
	return newError(ErrorTypeValidation, err)
}

func NewAPIError(err error) *UIError {
	return newError(ErrorTypeAPI, err)
}

func NewFileSystemError(err error) *UIError {
	return newError(ErrorTypeFileSystem, err)
}

func NewConfigurationError(err error) *UIError {
	return newError(ErrorTypeConfiguration, err)
}

func NewAuthError(err error) *UIError {
	return newError(ErrorTypeAuth, err)
}

// NewUploadFailedError reports a finished run where some files failed
func NewUploadFailedError(failed, total int) *UIError {
	return newError(ErrorTypeUploadFailed, fmt.Errorf("%d of %d files failed to upload", failed, total))
}

func NewInternalError(err error) *UIError {
	return newError(ErrorTypeInternal, err)
}
