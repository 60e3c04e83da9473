// Package memstore is a process-local session/receipt store. It backs the
// processes when no database is configured and keeps the same conditional
// transition semantics as the Postgres store.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/BearBump/PayTrack/internal/models"
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

type Store struct {
	mu sync.Mutex

	sessions    map[string]*models.Session
	receipts    map[string]*models.Receipt
	receiptsRef map[string]string

	now func() time.Time
}

func New() *Store {
	return &Store{
		sessions:    make(map[string]*models.Session),
		receipts:    make(map[string]*models.Receipt),
		receiptsRef: make(map[string]string),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) Close() {}

func (s *Store) CreateSession(ctx context.Context, in *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[in.ID]; ok {
		return errors.Errorf("session %s already exists", in.ID)
	}
	s.sessions[in.ID] = cloneSession(in)
	return nil
}

func (s *Store) GetSession(ctx context.Context, id string) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, models.ErrSessionNotFound
	}
	return cloneSession(sess), nil
}

func (s *Store) DeclareReference(ctx context.Context, id, reference string, now time.Time) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, models.ErrSessionNotFound
	}
	if sess.Status.IsTerminal() || !now.Before(sess.ExpiresAt) {
		return nil, models.ErrSessionClosed
	}
	ref := models.NormalizeReference(reference)
	sess.DeclaredReference = &ref
	sess.Status = models.SessionStatusDeclared
	sess.UpdatedAt = s.now()
	return cloneSession(sess), nil
}

func (s *Store) CancelSession(ctx context.Context, id, note string) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, models.ErrSessionNotFound
	}
	if sess.Status.IsTerminal() {
		return nil, models.ErrSessionClosed
	}
	sess.Status = models.SessionStatusCanceled
	if note != "" {
		sess.ResolutionNote = lo.ToPtr(note)
	}
	sess.UpdatedAt = s.now()
	return cloneSession(sess), nil
}

func (s *Store) ListAwaitingSessionsByReference(ctx context.Context, reference string) ([]*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ref := models.NormalizeReference(reference)
	var out []*models.Session
	for _, sess := range s.sessions {
		if sess.Status.IsTerminal() || sess.Reference() != ref {
			continue
		}
		out = append(out, cloneSession(sess))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) VerifiedClaimant(ctx context.Context, receiptID, exceptSessionID string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.claimantLocked(receiptID, exceptSessionID)
	return id, ok, nil
}

func (s *Store) claimantLocked(receiptID, exceptSessionID string) (string, bool) {
	for _, sess := range s.sessions {
		if sess.ID == exceptSessionID || sess.Status != models.SessionStatusVerified {
			continue
		}
		if lo.FromPtr(sess.ResolvedReceiptID) == receiptID {
			return sess.ID, true
		}
	}
	return "", false
}

// MarkSessionVerified re-checks exclusivity, the prior status and the
// declared reference under the store lock, so two racing resolutions cannot
// both verify one receipt and a re-declared session is never verified
// against its old reference.
func (s *Store) MarkSessionVerified(ctx context.Context, sessionID, receiptID, note string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rc, ok := s.receipts[receiptID]
	if !ok {
		return models.ErrReceiptNotFound
	}
	if other, ok := s.claimantLocked(receiptID, sessionID); ok {
		return &models.ReceiptClaimedError{SessionID: other}
	}
	sess, ok := s.sessions[sessionID]
	if !ok {
		return models.ErrSessionNotFound
	}
	if sess.Status.IsTerminal() || sess.Reference() != rc.Reference {
		return models.ErrStatusConflict
	}
	sess.Status = models.SessionStatusVerified
	sess.ResolvedReceiptID = lo.ToPtr(receiptID)
	sess.ResolutionNote = lo.ToPtr(note)
	sess.UpdatedAt = s.now()
	return nil
}

func (s *Store) MarkSessionFailed(ctx context.Context, sessionID, note string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return models.ErrSessionNotFound
	}
	if sess.Status.IsTerminal() {
		return models.ErrStatusConflict
	}
	sess.Status = models.SessionStatusFailed
	sess.ResolutionNote = lo.ToPtr(note)
	sess.UpdatedAt = s.now()
	return nil
}

func (s *Store) ExpireSessions(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, sess := range s.sessions {
		if sess.Status.IsTerminal() || !sess.ExpiresAt.Before(now) {
			continue
		}
		sess.Status = models.SessionStatusExpired
		sess.UpdatedAt = s.now()
		n++
	}
	return n, nil
}

// ListDeclaredSessionIDs pages through declared sessions that carry a
// reference, ordered by id.
func (s *Store) ListDeclaredSessionIDs(ctx context.Context, afterID string, limit int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []string
	for _, sess := range s.sessions {
		if sess.Status == models.SessionStatusDeclared && sess.HasReference() && sess.ID > afterID {
			ids = append(ids, sess.ID)
		}
	}
	sort.Strings(ids)
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (s *Store) CreateOrGetReceipt(ctx context.Context, in *models.Receipt) (*models.Receipt, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ref := models.NormalizeReference(in.Reference)
	if id, ok := s.receiptsRef[ref]; ok {
		return cloneReceipt(s.receipts[id]), false, nil
	}
	rc := cloneReceipt(in)
	rc.Reference = ref
	s.receipts[rc.ID] = rc
	s.receiptsRef[ref] = rc.ID
	return cloneReceipt(rc), true, nil
}

func (s *Store) GetReceipt(ctx context.Context, id string) (*models.Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rc, ok := s.receipts[id]
	if !ok {
		return nil, models.ErrReceiptNotFound
	}
	return cloneReceipt(rc), nil
}

func (s *Store) GetReceiptByReference(ctx context.Context, reference string) (*models.Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.receiptsRef[models.NormalizeReference(reference)]
	if !ok {
		return nil, models.ErrReceiptNotFound
	}
	return cloneReceipt(s.receipts[id]), nil
}

func cloneSession(in *models.Session) *models.Session {
	out := *in
	out.Receivers = append([]string(nil), in.Receivers...)
	if in.Metadata != nil {
		out.Metadata = make(map[string]any, len(in.Metadata))
		for k, v := range in.Metadata {
			out.Metadata[k] = v
		}
	}
	if in.DeclaredReference != nil {
		out.DeclaredReference = lo.ToPtr(*in.DeclaredReference)
	}
	if in.ResolvedReceiptID != nil {
		out.ResolvedReceiptID = lo.ToPtr(*in.ResolvedReceiptID)
	}
	if in.ResolutionNote != nil {
		out.ResolutionNote = lo.ToPtr(*in.ResolutionNote)
	}
	return &out
}

func cloneReceipt(in *models.Receipt) *models.Receipt {
	out := *in
	if in.SenderID != nil {
		out.SenderID = lo.ToPtr(*in.SenderID)
	}
	return &out
}
