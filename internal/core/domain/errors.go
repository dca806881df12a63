package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a domain error with a structured error code.
type DomainError struct {
	Code    string // Error code (e.g., "IW-SNAP-4040")
	Message string // Human-readable message
	Details string // Optional additional details
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Details != "" {
		msg += ": " + e.Details
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is() support; two DomainErrors match by code.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new DomainError with the given code and message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		Cause:   e.Cause,
	}
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		Cause:   cause,
	}
}

// IsDomainError checks if an error is a DomainError with the given code.
// If code is empty, it only checks if the error is a DomainError.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		if code == "" {
			return true
		}
		return de.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error if it's a DomainError.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// Precondition errors. These are always returned to the caller.
var (
	// ErrNoActiveProject indicates an operation needs a project context and none is set.
	ErrNoActiveProject = NewDomainError("IW-PROJ-4000", "no active project")

	// ErrDocumentNotLoaded indicates the target document is not materialized in memory.
	ErrDocumentNotLoaded = NewDomainError("IW-DOC-4040", "document not loaded")

	// ErrSnapshotNotFound indicates no local or remote snapshot has the given id.
	ErrSnapshotNotFound = NewDomainError("IW-SNAP-4040", "snapshot not found")

	// ErrSnapshotMismatch indicates the snapshot belongs to a different document.
	ErrSnapshotMismatch = NewDomainError("IW-SNAP-4090", "snapshot belongs to a different document")

	// ErrEmptySnapshot indicates the snapshot carries nothing restorable for the target.
	ErrEmptySnapshot = NewDomainError("IW-SNAP-4220", "nothing to restore")

	// ErrSnapshotImmutable indicates an attempt to rewrite captured content.
	ErrSnapshotImmutable = NewDomainError("IW-SNAP-4091", "snapshot content is immutable")

	// ErrInvalidArgument indicates a malformed identifier or parameter.
	ErrInvalidArgument = NewDomainError("IW-ARG-4000", "invalid argument")
)

// Content errors.
var (
	// ErrMalformedContent indicates serialized document content failed to parse.
	ErrMalformedContent = NewDomainError("IW-SER-4000", "malformed document content")
)

// Infrastructure errors.
var (
	// ErrStorage indicates the local store failed.
	ErrStorage = NewDomainError("IW-STOR-5000", "local storage error")

	// ErrRemote indicates a remote gateway call failed.
	ErrRemote = NewDomainError("IW-RMT-5020", "remote request failed")

	// ErrRemoteNotFound indicates the remote authority has no such entity.
	ErrRemoteNotFound = NewDomainError("IW-RMT-4040", "remote entity not found")
)
