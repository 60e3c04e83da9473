package pgpayments

import (
	"context"
	"time"

	"github.com/BearBump/PayTrack/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

const sessionColumns = `
  id, amount_minor, receivers, declared_reference, metadata, status,
  resolved_receipt_id, resolution_note, created_at, expires_at, updated_at`

func awaitingStatuses() []string {
	return lo.Map(models.AwaitingStatuses, func(s models.SessionStatus, _ int) string { return string(s) })
}

func (s *Storage) CreateSession(ctx context.Context, in *models.Session) error {
	_, err := s.db.Exec(ctx, `
INSERT INTO tracking_sessions (
  id, amount_minor, receivers, declared_reference, metadata, status,
  resolved_receipt_id, resolution_note, created_at, expires_at, updated_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
`, in.ID, in.AmountMinor, in.Receivers, in.DeclaredReference, in.Metadata, string(in.Status),
		in.ResolvedReceiptID, in.ResolutionNote, in.CreatedAt.UTC(), in.ExpiresAt.UTC(), in.UpdatedAt.UTC())
	if err != nil {
		return errors.Wrap(err, "insert session")
	}
	return nil
}

func (s *Storage) GetSession(ctx context.Context, id string) (*models.Session, error) {
	row := s.db.QueryRow(ctx, `SELECT`+sessionColumns+` FROM tracking_sessions WHERE id = $1`, id)
	sess, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrSessionNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select session")
	}
	return sess, nil
}

// DeclareReference records the customer's reference while the session is
// still awaiting and not past its deadline.
func (s *Storage) DeclareReference(ctx context.Context, id, reference string, now time.Time) (*models.Session, error) {
	row := s.db.QueryRow(ctx, `
UPDATE tracking_sessions
SET
  declared_reference = $2,
  status = 'declared',
  updated_at = now()
WHERE id = $1 AND status = ANY($3) AND expires_at > $4
RETURNING`+sessionColumns, id, models.NormalizeReference(reference), awaitingStatuses(), now.UTC())
	sess, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, s.transitionMiss(ctx, id, models.ErrSessionClosed)
	}
	if err != nil {
		return nil, errors.Wrap(err, "declare reference")
	}
	return sess, nil
}

func (s *Storage) CancelSession(ctx context.Context, id, note string) (*models.Session, error) {
	row := s.db.QueryRow(ctx, `
UPDATE tracking_sessions
SET
  status = 'canceled',
  resolution_note = COALESCE(NULLIF($2, ''), resolution_note),
  updated_at = now()
WHERE id = $1 AND status = ANY($3)
RETURNING`+sessionColumns, id, note, awaitingStatuses())
	sess, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, s.transitionMiss(ctx, id, models.ErrSessionClosed)
	}
	if err != nil {
		return nil, errors.Wrap(err, "cancel session")
	}
	return sess, nil
}

func (s *Storage) ListAwaitingSessionsByReference(ctx context.Context, reference string) ([]*models.Session, error) {
	rows, err := s.db.Query(ctx, `SELECT`+sessionColumns+`
FROM tracking_sessions
WHERE declared_reference = $1 AND status = ANY($2)
ORDER BY created_at, id
`, models.NormalizeReference(reference), awaitingStatuses())
	if err != nil {
		return nil, errors.Wrap(err, "select awaiting sessions")
	}
	defer rows.Close()

	var out []*models.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan session")
		}
		out = append(out, sess)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

func (s *Storage) VerifiedClaimant(ctx context.Context, receiptID, exceptSessionID string) (string, bool, error) {
	return verifiedClaimant(ctx, s.db, receiptID, exceptSessionID)
}

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func verifiedClaimant(ctx context.Context, q queryRower, receiptID, exceptSessionID string) (string, bool, error) {
	var other string
	err := q.QueryRow(ctx, `
SELECT id FROM tracking_sessions
WHERE resolved_receipt_id = $1 AND status = 'verified' AND id <> $2
ORDER BY updated_at
LIMIT 1
`, receiptID, exceptSessionID).Scan(&other)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrap(err, "select verified claimant")
	}
	return other, true, nil
}

// MarkSessionVerified locks the receipt row so that concurrent attempts to
// claim the same receipt serialize, re-checks exclusivity, then moves the
// session to verified only if it is still awaiting and still declares the
// receipt's reference.
func (s *Storage) MarkSessionVerified(ctx context.Context, sessionID, receiptID, note string) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var reference string
	err = tx.QueryRow(ctx, `SELECT reference FROM payment_receipts WHERE id = $1 FOR UPDATE`, receiptID).Scan(&reference)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.ErrReceiptNotFound
	}
	if err != nil {
		return errors.Wrap(err, "lock receipt")
	}

	other, claimed, err := verifiedClaimant(ctx, tx, receiptID, sessionID)
	if err != nil {
		return err
	}
	if claimed {
		return &models.ReceiptClaimedError{SessionID: other}
	}

	tag, err := tx.Exec(ctx, `
UPDATE tracking_sessions
SET
  status = 'verified',
  resolved_receipt_id = $2,
  resolution_note = $3,
  updated_at = now()
WHERE id = $1 AND status = ANY($4) AND declared_reference = $5
`, sessionID, receiptID, note, awaitingStatuses(), reference)
	if err != nil {
		return errors.Wrap(err, "update session (verified)")
	}
	if tag.RowsAffected() == 0 {
		return s.transitionMiss(ctx, sessionID, models.ErrStatusConflict)
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit tx")
	}
	return nil
}

func (s *Storage) MarkSessionFailed(ctx context.Context, sessionID, note string) error {
	tag, err := s.db.Exec(ctx, `
UPDATE tracking_sessions
SET
  status = 'failed',
  resolution_note = $2,
  updated_at = now()
WHERE id = $1 AND status = ANY($3)
`, sessionID, note, awaitingStatuses())
	if err != nil {
		return errors.Wrap(err, "update session (failed)")
	}
	if tag.RowsAffected() == 0 {
		return s.transitionMiss(ctx, sessionID, models.ErrStatusConflict)
	}
	return nil
}

// ExpireSessions moves every awaiting session past its deadline to expired in
// a single statement.
func (s *Storage) ExpireSessions(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `
UPDATE tracking_sessions
SET
  status = 'expired',
  updated_at = now()
WHERE status = ANY($1) AND expires_at < $2
`, awaitingStatuses(), now.UTC())
	if err != nil {
		return 0, errors.Wrap(err, "expire sessions")
	}
	return tag.RowsAffected(), nil
}

func (s *Storage) ListDeclaredSessionIDs(ctx context.Context, afterID string, limit int) ([]string, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	rows, err := s.db.Query(ctx, `
SELECT id
FROM tracking_sessions
WHERE status = 'declared' AND declared_reference IS NOT NULL AND id > $1
ORDER BY id
LIMIT $2
`, afterID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "select declared sessions")
	}
	defer rows.Close()

	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, errors.Wrap(err, "collect ids")
	}
	return ids, nil
}

// transitionMiss tells a missing session apart from one that is no longer in
// the expected status.
func (s *Storage) transitionMiss(ctx context.Context, id string, conflict error) error {
	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM tracking_sessions WHERE id = $1)`, id).Scan(&exists); err != nil {
		return errors.Wrap(err, "check session exists")
	}
	if !exists {
		return models.ErrSessionNotFound
	}
	return conflict
}

func scanSession(row pgx.Row) (*models.Session, error) {
	var (
		sess   models.Session
		status string
	)
	if err := row.Scan(
		&sess.ID, &sess.AmountMinor, &sess.Receivers, &sess.DeclaredReference, &sess.Metadata, &status,
		&sess.ResolvedReceiptID, &sess.ResolutionNote, &sess.CreatedAt, &sess.ExpiresAt, &sess.UpdatedAt,
	); err != nil {
		return nil, err
	}
	sess.Status = models.SessionStatus(status)
	return &sess, nil
}
