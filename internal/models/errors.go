package models

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrReceiptNotFound = errors.New("receipt not found")
	// ErrStatusConflict is returned by conditional transitions when the row is no
	// longer in one of the expected statuses.
	ErrStatusConflict = errors.New("session status changed concurrently")
	ErrReceiptClaimed = errors.New("receipt already claimed by a verified session")
	// ErrSessionClosed is a state error: the session no longer accepts input.
	ErrSessionClosed = errors.New("session is closed")
)

// ReceiptClaimedError carries the session that already holds the receipt.
type ReceiptClaimedError struct {
	SessionID string
}

func (e *ReceiptClaimedError) Error() string {
	return fmt.Sprintf("receipt already claimed by session %s", e.SessionID)
}

func (e *ReceiptClaimedError) Unwrap() error { return ErrReceiptClaimed }

// ValidationError is a caller-fixable input problem. It is never persisted.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
