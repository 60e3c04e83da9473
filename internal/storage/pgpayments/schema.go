package pgpayments

import (
	"context"

	"github.com/pkg/errors"
)

func (s *Storage) initSchema(ctx context.Context) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS payment_receipts (
  id TEXT PRIMARY KEY,
  reference TEXT NOT NULL,
  amount_minor BIGINT NOT NULL CHECK (amount_minor > 0),
  receiver_id TEXT NOT NULL,
  sender_id TEXT NULL,
  event_time TIMESTAMPTZ NOT NULL,
  ingested_at TIMESTAMPTZ NOT NULL,
  UNIQUE (reference)
)`,
		`
CREATE TABLE IF NOT EXISTS tracking_sessions (
  id TEXT PRIMARY KEY,
  amount_minor BIGINT NOT NULL CHECK (amount_minor > 0),
  receivers TEXT[] NOT NULL,
  declared_reference TEXT NULL,
  metadata JSONB NULL,
  status TEXT NOT NULL,
  resolved_receipt_id TEXT NULL REFERENCES payment_receipts(id),
  resolution_note TEXT NULL,
  created_at TIMESTAMPTZ NOT NULL,
  expires_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL,
  CHECK ((status = 'verified') = (resolved_receipt_id IS NOT NULL))
)`,
		`CREATE INDEX IF NOT EXISTS idx_tracking_sessions_reference ON tracking_sessions(declared_reference) WHERE declared_reference IS NOT NULL`,
		`CREATE INDEX IF NOT EXISTS idx_tracking_sessions_status_expires_at ON tracking_sessions(status, expires_at)`,
		`CREATE INDEX IF NOT EXISTS idx_tracking_sessions_resolved_receipt ON tracking_sessions(resolved_receipt_id) WHERE status = 'verified'`,
	}

	for _, q := range stmts {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return errors.Wrap(err, "init schema")
		}
	}
	return nil
}
