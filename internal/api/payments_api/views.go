package payments_api

import (
	"time"

	"github.com/BearBump/PayTrack/internal/models"
)

type sessionView struct {
	ID                string         `json:"id"`
	AmountMinor       int64          `json:"amount_minor"`
	Receivers         []string       `json:"receivers"`
	DeclaredReference string         `json:"declared_reference,omitempty"`
	Metadata          map[string]any `json:"metadata,omitempty"`
	Status            string         `json:"status"`
	ResolvedReceiptID string         `json:"resolved_receipt_id,omitempty"`
	ResolutionNote    string         `json:"resolution_note,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	ExpiresAt         time.Time      `json:"expires_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

func toSessionView(s *models.Session) sessionView {
	return sessionView{
		ID:                s.ID,
		AmountMinor:       s.AmountMinor,
		Receivers:         s.Receivers,
		DeclaredReference: s.Reference(),
		Metadata:          s.Metadata,
		Status:            string(s.Status),
		ResolvedReceiptID: s.ResolvedReceipt(),
		ResolutionNote:    s.Note(),
		CreatedAt:         s.CreatedAt,
		ExpiresAt:         s.ExpiresAt,
		UpdatedAt:         s.UpdatedAt,
	}
}

// toCustomerSessionView hides why a session did not verify: failed is
// reported as processing and the resolution note is dropped.
func toCustomerSessionView(s *models.Session) sessionView {
	v := toSessionView(s)
	v.ResolutionNote = ""
	if s.Status == models.SessionStatusFailed {
		v.Status = statusProcessing
	}
	return v
}

type receiptView struct {
	ID          string    `json:"id"`
	Reference   string    `json:"reference"`
	AmountMinor int64     `json:"amount_minor"`
	ReceiverID  string    `json:"receiver_id"`
	SenderID    *string   `json:"sender_id,omitempty"`
	EventTime   time.Time `json:"event_time"`
	IngestedAt  time.Time `json:"ingested_at"`
}

func toReceiptView(rc *models.Receipt) receiptView {
	if rc == nil {
		return receiptView{}
	}
	return receiptView{
		ID:          rc.ID,
		Reference:   rc.Reference,
		AmountMinor: rc.AmountMinor,
		ReceiverID:  rc.ReceiverID,
		SenderID:    rc.SenderID,
		EventTime:   rc.EventTime,
		IngestedAt:  rc.IngestedAt,
	}
}
