package bootstrap

import (
	"context"
	"testing"
	"time"

	"github.com/BearBump/PayTrack/config"
	"github.com/BearBump/PayTrack/internal/integrations/fulfillment"
	"github.com/BearBump/PayTrack/internal/services/matching"
	"github.com/BearBump/PayTrack/internal/storage/memstore"
	"github.com/stretchr/testify/require"
)

type nopPublisher struct{}

func (nopPublisher) PublishJSON(ctx context.Context, topic, key string, v any) error { return nil }

func TestDefaults(t *testing.T) {
	s := Defaults(&config.Config{})
	require.Equal(t, ":8080", s.HTTPAddr)
	require.Equal(t, "sms.received", s.SMSTopic)
	require.Equal(t, time.Hour, s.SessionValidity)
	require.Equal(t, matching.DefaultWindow(), s.Window)
	require.Equal(t, 10, s.SubmitLimitPerMin)
	require.Equal(t, 5*time.Minute, s.SweepInterval)

	s = Defaults(&config.Config{PayTrack: config.PayTrackConfig{
		SessionValiditySeconds: 600,
		ReceiptGraceSeconds:    60,
		WorkerConcurrency:      8,
	}})
	require.Equal(t, 10*time.Minute, s.SessionValidity)
	require.Equal(t, time.Minute, s.Window.Grace)
	require.Equal(t, matching.DefaultLead, s.Window.Lead)
	require.Equal(t, 8, s.SweepConcurrency)
}

func TestOpenStore_InMemoryWithoutDatabase(t *testing.T) {
	st, closeFn, err := OpenStore(context.Background(), &config.Config{}, time.Second, nil)
	require.NoError(t, err)
	defer closeFn()
	_, ok := st.(*memstore.Store)
	require.True(t, ok)
}

func TestNewFulfiller(t *testing.T) {
	cfg := &config.Config{}
	s := Defaults(cfg)

	_, ok := NewFulfiller(cfg, s, nil, nil).(*fulfillment.LogSink)
	require.True(t, ok)

	cfg.PayTrack.FulfillmentWebhookURL = "http://127.0.0.1:1/hook"
	multi, ok := NewFulfiller(cfg, s, nopPublisher{}, nil).(fulfillment.Multi)
	require.True(t, ok)
	require.Len(t, multi, 2)
}

func TestNewParser_Offset(t *testing.T) {
	p := NewParser(&config.Config{PayTrack: config.PayTrackConfig{SMSTimezoneOffsetMinutes: 0}})
	got, err := p.Parse("Cash In Tk 200.50 successful. TrxID AB12CD34EF at 01/01/2026 06:00")
	require.NoError(t, err)
	require.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), got.EventTime.UTC())

	p = NewParser(&config.Config{PayTrack: config.PayTrackConfig{SMSTimezoneOffsetMinutes: 60}})
	got, err = p.Parse("Cash In Tk 200.50 successful. TrxID AB12CD34EF at 01/01/2026 06:00")
	require.NoError(t, err)
	require.Equal(t, time.Date(2026, 1, 1, 5, 0, 0, 0, time.UTC), got.EventTime.UTC())
}
