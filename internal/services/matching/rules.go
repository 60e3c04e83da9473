package matching

import (
	"context"
	"fmt"
	"time"

	"github.com/BearBump/PayTrack/internal/models"
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

const (
	DefaultLead  = time.Hour
	DefaultGrace = 15 * time.Minute
)

// Window bounds the acceptable receipt event time around a session's
// lifetime: [created_at - Lead, expires_at + Grace], both ends inclusive.
type Window struct {
	Lead  time.Duration
	Grace time.Duration
}

func DefaultWindow() Window {
	return Window{Lead: DefaultLead, Grace: DefaultGrace}
}

func (w Window) Contains(s *models.Session, at time.Time) bool {
	from := s.CreatedAt.Add(-w.Lead)
	to := s.ExpiresAt.Add(w.Grace)
	return !at.Before(from) && !at.After(to)
}

// CheckRules runs the store-free rules in order and stops at the first
// failure. A Verified result still has to pass the exclusivity check.
func CheckRules(s *models.Session, rc *models.Receipt, w Window) Verdict {
	ref := models.NormalizeReference(s.Reference())
	if ref == "" || ref != models.NormalizeReference(rc.Reference) {
		return rejected(s.ID, rc.ID, RuleReference, "reference mismatch")
	}
	if s.AmountMinor != rc.AmountMinor {
		return rejected(s.ID, rc.ID, RuleAmount,
			fmt.Sprintf("amount mismatch: expected %d got %d", s.AmountMinor, rc.AmountMinor))
	}
	if !lo.Contains(s.Receivers, rc.ReceiverID) {
		return rejected(s.ID, rc.ID, RuleReceiver, "receiver not authorized for this session")
	}
	if !w.Contains(s, rc.EventTime) {
		return rejected(s.ID, rc.ID, RuleTimeWindow, "outside valid time window")
	}
	return verified(s.ID, rc.ID)
}

type ClaimLookup interface {
	VerifiedClaimant(ctx context.Context, receiptID, exceptSessionID string) (string, bool, error)
}

// Evaluate is CheckRules followed by the exclusivity lookup, which runs last.
func Evaluate(ctx context.Context, s *models.Session, rc *models.Receipt, w Window, claims ClaimLookup) (Verdict, error) {
	v := CheckRules(s, rc, w)
	if !v.IsVerified() {
		return v, nil
	}

	other, ok, err := claims.VerifiedClaimant(ctx, rc.ID, s.ID)
	if err != nil {
		return Verdict{}, errors.Wrap(err, "lookup receipt claimant")
	}
	if ok {
		return rejected(s.ID, rc.ID, RuleExclusivity, claimedReason(other)), nil
	}
	return v, nil
}
