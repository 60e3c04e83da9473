package models

import "time"

// Receipt is one observed incoming payment, derived from one SMS notification.
// Receipts are immutable once stored.
type Receipt struct {
	ID          string
	Reference   string
	AmountMinor int64
	ReceiverID  string
	SenderID    *string
	// EventTime is the payment time reported by the provider, not the ingestion time.
	EventTime  time.Time
	IngestedAt time.Time
}

type ReceiptCreateInput struct {
	Reference   string
	AmountMinor int64
	ReceiverID  string
	SenderID    *string
	EventTime   time.Time
}
