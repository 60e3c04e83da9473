package messages

import "time"

// SessionVerified is emitted once per session that moves to verified.
type SessionVerified struct {
	SessionID  string         `json:"session_id"`
	ReceiptID  string         `json:"receipt_id"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	VerifiedAt time.Time      `json:"verified_at"`
}
