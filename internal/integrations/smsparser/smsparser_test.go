package smsparser

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParse_BKash(t *testing.T) {
	p := New(nil)
	got, err := p.Parse("You have received Tk 1,500.00 from 01712345678. Ref 77. Fee Tk 0.00. Balance Tk 12,034.50. TrxID cju0pzq3u6 at 30/10/2025 13:45")
	require.NoError(t, err)
	require.Equal(t, "CJU0PZQ3U6", got.Reference)
	require.EqualValues(t, 150000, got.AmountMinor)
	require.NotNil(t, got.SenderID)
	require.Equal(t, "01712345678", *got.SenderID)
	require.Equal(t, time.Date(2025, 10, 30, 7, 45, 0, 0, time.UTC), got.EventTime)
}

func TestParse_Nagad(t *testing.T) {
	p := New(time.UTC)
	got, err := p.Parse("Money Received.\nAmount: Tk 500\nSender: 01811111111\nRef: N/A\nTxnID: 73ABCD12\nBalance: Tk 1,500.00\n7/3/2026 09:05:30")
	require.NoError(t, err)
	require.Equal(t, "73ABCD12", got.Reference)
	require.EqualValues(t, 50000, got.AmountMinor)
	require.Equal(t, "01811111111", *got.SenderID)
	require.Equal(t, time.Date(2026, 3, 7, 9, 5, 30, 0, time.UTC), got.EventTime)
}

func TestParse_SenderOptional(t *testing.T) {
	got, err := New(time.UTC).Parse("Cash In Tk 200.50 successful. TrxID AB12CD34EF at 01/01/2026 00:00")
	require.NoError(t, err)
	require.Nil(t, got.SenderID)
	require.EqualValues(t, 20050, got.AmountMinor)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		field string
	}{
		{name: "empty", text: "   ", field: "text"},
		{name: "no reference", text: "You have received Tk 10.00 at 01/01/2026 10:00", field: "reference"},
		{name: "no amount", text: "TrxID AB12CD34EF at 01/01/2026 10:00", field: "amount"},
		{name: "sub-poisha amount", text: "You have received Tk 10.005. TrxID AB12CD34EF at 01/01/2026 10:00", field: "amount"},
		{name: "no time", text: "You have received Tk 10.00. TrxID AB12CD34EF", field: "event_time"},
		{name: "impossible date", text: "You have received Tk 10.00. TrxID AB12CD34EF at 31/02/2026 10:00", field: "event_time"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(time.UTC).Parse(tt.text)
			var pe *ParseError
			require.True(t, errors.As(err, &pe), "got %v", err)
			require.Equal(t, tt.field, pe.Field)
		})
	}
}

func TestToMinor(t *testing.T) {
	v, err := ToMinor("1,234.5")
	require.NoError(t, err)
	require.EqualValues(t, 123450, v)

	_, err = ToMinor("0.00")
	require.Error(t, err)
	_, err = ToMinor("abc")
	require.Error(t, err)

	v, err = ToMinor("92233720368547758.07")
	require.NoError(t, err)
	require.EqualValues(t, int64(math.MaxInt64), v)
}

func TestToMinor_Overflow(t *testing.T) {
	for _, in := range []string{"92233720368547758.08", "184467440737095516.17", "1e30"} {
		_, err := ToMinor(in)
		var pe *ParseError
		require.ErrorAs(t, err, &pe, in)
		require.Equal(t, "amount", pe.Field)
	}
}
