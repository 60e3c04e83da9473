package matching

import "fmt"

type Kind string

const (
	KindVerified     Kind = "verified"
	KindRejected     Kind = "rejected"
	KindInconclusive Kind = "inconclusive"
)

// Rule names the check that produced a rejection.
type Rule string

const (
	RuleReference   Rule = "reference"
	RuleAmount      Rule = "amount"
	RuleReceiver    Rule = "receiver"
	RuleTimeWindow  Rule = "time_window"
	RuleExclusivity Rule = "exclusivity"
)

const (
	ReasonNoReceipt   = "no matching receipt yet"
	ReasonNoReference = "no reference declared yet"
	NoteVerified      = "verified"
)

type Verdict struct {
	SessionID string `json:"session_id"`
	ReceiptID string `json:"receipt_id,omitempty"`
	Kind      Kind   `json:"kind"`
	Rule      Rule   `json:"rule,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

func (v Verdict) IsVerified() bool     { return v.Kind == KindVerified }
func (v Verdict) IsRejected() bool     { return v.Kind == KindRejected }
func (v Verdict) IsInconclusive() bool { return v.Kind == KindInconclusive }

func verified(sessionID, receiptID string) Verdict {
	return Verdict{SessionID: sessionID, ReceiptID: receiptID, Kind: KindVerified, Reason: NoteVerified}
}

func rejected(sessionID, receiptID string, rule Rule, reason string) Verdict {
	return Verdict{SessionID: sessionID, ReceiptID: receiptID, Kind: KindRejected, Rule: rule, Reason: reason}
}

func inconclusive(sessionID, reason string) Verdict {
	return Verdict{SessionID: sessionID, Kind: KindInconclusive, Reason: reason}
}

func claimedReason(otherSessionID string) string {
	return fmt.Sprintf("transaction-reference already claimed by session %s", otherSessionID)
}
