// Package smsparser extracts payment fields from mobile-money SMS
// notifications. It performs no I/O.
package smsparser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultOffset is the wall clock used by the providers when printing times.
const DefaultOffset = 6 * time.Hour

var (
	reReference = regexp.MustCompile(`(?i)\b(?:trx\s*id|txn\s*id|transaction\s*id)\s*[:#\-]?\s*([A-Z0-9]{6,20})\b`)
	reAmount    = regexp.MustCompile(`(?i)(?:received\s+(?:tk|bdt|৳)|amount\s*:\s*(?:tk|bdt|৳))\s*\.?\s*([\d,]+(?:\.\d+)?)`)
	reAnyTaka   = regexp.MustCompile(`(?i)(?:tk|bdt|৳)\s*\.?\s*([\d,]+(?:\.\d+)?)`)
	reSender    = regexp.MustCompile(`(?i)(?:\bfrom|sender\s*:)\s*(\+?\d{11,13})\b`)
	reTime      = regexp.MustCompile(`(\d{1,2})/(\d{1,2})/(\d{4})\s+(\d{1,2}):(\d{2})(?::(\d{2}))?`)
)

type Parsed struct {
	Reference   string
	AmountMinor int64
	SenderID    *string
	EventTime   time.Time
}

// ParseError names the field that could not be extracted.
type ParseError struct {
	Field   string
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %s", e.Field, e.Message)
}

type Parser struct {
	loc *time.Location
}

// New returns a parser that reads SMS times in loc. A nil loc means UTC+06:00.
func New(loc *time.Location) *Parser {
	if loc == nil {
		loc = time.FixedZone("UTC+06", int(DefaultOffset.Seconds()))
	}
	return &Parser{loc: loc}
}

func (p *Parser) Parse(raw string) (Parsed, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return Parsed{}, &ParseError{Field: "text", Message: "empty"}
	}

	var out Parsed

	m := reReference.FindStringSubmatch(text)
	if m == nil {
		return Parsed{}, &ParseError{Field: "reference", Message: "no transaction id found"}
	}
	out.Reference = strings.ToUpper(m[1])

	amount, err := p.amount(text)
	if err != nil {
		return Parsed{}, err
	}
	out.AmountMinor = amount

	if m := reSender.FindStringSubmatch(text); m != nil {
		sender := m[1]
		out.SenderID = &sender
	}

	at, err := p.eventTime(text)
	if err != nil {
		return Parsed{}, err
	}
	out.EventTime = at

	return out, nil
}

func (p *Parser) amount(text string) (int64, error) {
	m := reAmount.FindStringSubmatch(text)
	if m == nil {
		m = reAnyTaka.FindStringSubmatch(text)
	}
	if m == nil {
		return 0, &ParseError{Field: "amount", Message: "no amount found"}
	}
	return ToMinor(m[1])
}

// ToMinor converts a decimal taka string such as "1,234.50" to poisha.
func ToMinor(s string) (int64, error) {
	d, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(s), ",", ""))
	if err != nil {
		return 0, &ParseError{Field: "amount", Message: fmt.Sprintf("not a number: %q", s)}
	}
	minor := d.Shift(2)
	if !minor.IsInteger() {
		return 0, &ParseError{Field: "amount", Message: "more than two decimal places"}
	}
	if !minor.IsPositive() {
		return 0, &ParseError{Field: "amount", Message: "must be positive"}
	}
	if !minor.BigInt().IsInt64() {
		return 0, &ParseError{Field: "amount", Message: "too large"}
	}
	return minor.IntPart(), nil
}

func (p *Parser) eventTime(text string) (time.Time, error) {
	m := reTime.FindStringSubmatch(text)
	if m == nil {
		return time.Time{}, &ParseError{Field: "event_time", Message: "no timestamp found"}
	}
	n := make([]int, 6)
	for i := range n {
		if m[i+1] == "" {
			continue
		}
		v, err := strconv.Atoi(m[i+1])
		if err != nil {
			return time.Time{}, &ParseError{Field: "event_time", Message: err.Error()}
		}
		n[i] = v
	}
	day, month, year, hour, minute, second := n[0], n[1], n[2], n[3], n[4], n[5]
	if month < 1 || month > 12 || day < 1 || day > 31 || hour > 23 || minute > 59 || second > 59 {
		return time.Time{}, &ParseError{Field: "event_time", Message: fmt.Sprintf("out of range: %q", m[0])}
	}
	at := time.Date(year, time.Month(month), day, hour, minute, second, 0, p.loc)
	if at.Day() != day {
		return time.Time{}, &ParseError{Field: "event_time", Message: fmt.Sprintf("no such date: %q", m[0])}
	}
	return at.UTC(), nil
}
