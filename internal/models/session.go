package models

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

type SessionStatus string

const (
	SessionStatusPending  SessionStatus = "pending"
	SessionStatusDeclared SessionStatus = "declared"
	SessionStatusVerified SessionStatus = "verified"
	SessionStatusFailed   SessionStatus = "failed"
	SessionStatusExpired  SessionStatus = "expired"
	SessionStatusCanceled SessionStatus = "canceled"
)

// AwaitingStatuses are the only non-terminal statuses.
var AwaitingStatuses = []SessionStatus{SessionStatusPending, SessionStatusDeclared}

func (s SessionStatus) IsTerminal() bool {
	return !lo.Contains(AwaitingStatuses, s)
}

// Session is a customer's declared intent to pay for one item.
type Session struct {
	ID          string
	AmountMinor int64
	// Receivers is the acceptable-receiver set captured at creation. It is never
	// re-read from the registry afterwards.
	Receivers         []string
	DeclaredReference *string
	Metadata          map[string]any
	Status            SessionStatus
	ResolvedReceiptID *string
	ResolutionNote    *string
	CreatedAt         time.Time
	ExpiresAt         time.Time
	UpdatedAt         time.Time
}

func (s *Session) HasReference() bool {
	return s != nil && s.DeclaredReference != nil && *s.DeclaredReference != ""
}

func (s *Session) Reference() string {
	return lo.FromPtr(s.DeclaredReference)
}

func (s *Session) ResolvedReceipt() string {
	return lo.FromPtr(s.ResolvedReceiptID)
}

func (s *Session) Note() string {
	return lo.FromPtr(s.ResolutionNote)
}

type SessionCreateInput struct {
	AmountMinor int64
	Metadata    map[string]any
}

// NormalizeReference trims surrounding whitespace and uppercases a provider
// transaction reference.
func NormalizeReference(ref string) string {
	return strings.ToUpper(strings.TrimSpace(ref))
}

var referencePattern = regexp.MustCompile(`^[A-Z0-9]{4,64}$`)

// ValidateReference normalizes ref and checks it looks like a provider
// transaction id.
func ValidateReference(ref string) (string, error) {
	norm := NormalizeReference(ref)
	if norm == "" {
		return "", NewValidationError("reference", "is required")
	}
	if !referencePattern.MatchString(norm) {
		return "", NewValidationError("reference", "must be 4-64 letters or digits")
	}
	return norm, nil
}

// NewID returns a time-sortable identifier.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}
