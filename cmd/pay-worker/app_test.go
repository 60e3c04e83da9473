package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/BearBump/PayTrack/config"
	"github.com/BearBump/PayTrack/internal/bootstrap"
	"github.com/BearBump/PayTrack/internal/integrations/fulfillment/kafkasink"
	"github.com/BearBump/PayTrack/internal/models"
	"github.com/BearBump/PayTrack/internal/services/sweeper"
	"github.com/BearBump/PayTrack/internal/storage/memstore"
	"github.com/stretchr/testify/require"
)

func writeSwagger(t *testing.T) string {
	t.Helper()
	sw := filepath.Join(t.TempDir(), "worker.swagger.json")
	require.NoError(t, os.WriteFile(sw, []byte(`{"swagger":"2.0"}`), 0o600))
	return sw
}

func memFactories(st *memstore.Store, closed *bool) workerFactories {
	return workerFactories{
		newStorage: func(ctx context.Context, cfg *config.Config) (bootstrap.Store, func(), error) {
			return st, func() { *closed = true }, nil
		},
		newPublisher: func(cfg *config.Config) (kafkasink.Publisher, func()) {
			return nil, nil
		},
	}
}

func testConfig() *config.Config {
	return &config.Config{PayTrack: config.PayTrackConfig{
		WorkerHTTPAddr:             "127.0.0.1:0",
		WorkerSweepIntervalSeconds: 3600,
	}}
}

func TestDefaultWorkerFactories_Publisher(t *testing.T) {
	f := defaultWorkerFactories(nil)

	pub, closeFn := f.newPublisher(&config.Config{})
	require.Nil(t, pub)
	require.Nil(t, closeFn)

	pub, closeFn = f.newPublisher(&config.Config{Kafka: config.KafkaConfig{Host: "localhost", Port: 9092}})
	require.NotNil(t, pub)
	closeFn()
}

func TestRunPayWorker_ContextCanceled(t *testing.T) {
	closed := false
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := RunPayWorker(ctx, testConfig(), memFactories(memstore.New(), &closed), workerOpts{swaggerPath: writeSwagger(t)}, nil)
	require.ErrorIs(t, err, context.Canceled)
	require.True(t, closed)
}

func TestRunPayWorker_TriggerSweepsAndReportsStats(t *testing.T) {
	st := memstore.New()
	past := time.Now().UTC().Add(-2 * time.Hour)
	require.NoError(t, st.CreateSession(context.Background(), &models.Session{
		ID: "s-old", AmountMinor: 100, Receivers: []string{"R1"},
		Status: models.SessionStatusPending, CreatedAt: past, ExpiresAt: past.Add(time.Hour), UpdatedAt: past,
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addrCh := make(chan string, 1)
	var sw *sweeper.Sweeper
	closed := false
	opts := workerOpts{
		swaggerPath: writeSwagger(t),
		onListen:    func(addr string) { addrCh <- addr },
		onReady:     func(s *sweeper.Sweeper) { sw = s },
	}
	errCh := make(chan error, 1)
	go func() { errCh <- RunPayWorker(ctx, testConfig(), memFactories(st, &closed), opts, nil) }()
	base := "http://" + <-addrCh
	require.NotNil(t, sw)

	resp, err := http.Post(base+"/trigger", "application/json", nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/stats")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		var stats sweeper.Stats
		if json.NewDecoder(resp.Body).Decode(&stats) != nil {
			return false
		}
		return stats.TotalExpired == 1
	}, 5*time.Second, 20*time.Millisecond)

	got, err := st.GetSession(context.Background(), "s-old")
	require.NoError(t, err)
	require.Equal(t, models.SessionStatusExpired, got.Status)

	resp, err = http.Get(base + "/config")
	require.NoError(t, err)
	var cfgOut map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&cfgOut))
	_ = resp.Body.Close()
	require.EqualValues(t, 3600, cfgOut["sweepIntervalSeconds"])

	for _, path := range []string{"/healthz", "/readyz", "/metrics", "/swagger.json"} {
		resp, err := http.Get(base + path)
		require.NoError(t, err)
		_ = resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode, path)
	}

	cancel()
	require.ErrorIs(t, <-errCh, context.Canceled)
	require.True(t, closed)
}
