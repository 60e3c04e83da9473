package messages

import "time"

// SMSReceived is published by the SMS relay for every notification that
// arrives on one of the receiver handsets. Either Text or the parsed fields
// are set.
type SMSReceived struct {
	ReceiverID string    `json:"receiver_id"`
	Text       string    `json:"text,omitempty"`
	ReceivedAt time.Time `json:"received_at"`

	Reference   string     `json:"reference,omitempty"`
	AmountMinor int64      `json:"amount_minor,omitempty"`
	SenderID    *string    `json:"sender_id,omitempty"`
	EventTime   *time.Time `json:"event_time,omitempty"`
}

func (m SMSReceived) IsRaw() bool {
	return m.Text != ""
}
