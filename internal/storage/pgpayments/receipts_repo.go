package pgpayments

import (
	"context"

	"github.com/BearBump/PayTrack/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

const receiptColumns = `
  id, reference, amount_minor, receiver_id, sender_id, event_time, ingested_at`

// CreateOrGetReceipt inserts a receipt unless its reference is already known,
// in which case the stored receipt is returned unchanged with isNew=false.
func (s *Storage) CreateOrGetReceipt(ctx context.Context, in *models.Receipt) (*models.Receipt, bool, error) {
	row := s.db.QueryRow(ctx, `
INSERT INTO payment_receipts (
  id, reference, amount_minor, receiver_id, sender_id, event_time, ingested_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (reference) DO NOTHING
RETURNING`+receiptColumns,
		in.ID, models.NormalizeReference(in.Reference), in.AmountMinor, in.ReceiverID, in.SenderID,
		in.EventTime.UTC(), in.IngestedAt.UTC())
	rc, err := scanReceipt(row)
	if err == nil {
		return rc, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, errors.Wrap(err, "insert receipt")
	}

	existing, err := s.GetReceiptByReference(ctx, in.Reference)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (s *Storage) GetReceipt(ctx context.Context, id string) (*models.Receipt, error) {
	rc, err := scanReceipt(s.db.QueryRow(ctx, `SELECT`+receiptColumns+` FROM payment_receipts WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrReceiptNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select receipt")
	}
	return rc, nil
}

func (s *Storage) GetReceiptByReference(ctx context.Context, reference string) (*models.Receipt, error) {
	rc, err := scanReceipt(s.db.QueryRow(ctx, `SELECT`+receiptColumns+` FROM payment_receipts WHERE reference = $1`,
		models.NormalizeReference(reference)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrReceiptNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select receipt by reference")
	}
	return rc, nil
}

func scanReceipt(row pgx.Row) (*models.Receipt, error) {
	var rc models.Receipt
	if err := row.Scan(
		&rc.ID, &rc.Reference, &rc.AmountMinor, &rc.ReceiverID, &rc.SenderID, &rc.EventTime, &rc.IngestedAt,
	); err != nil {
		return nil, err
	}
	return &rc, nil
}
