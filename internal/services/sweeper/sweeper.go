package sweeper

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BearBump/PayTrack/internal/logger"
	"github.com/BearBump/PayTrack/internal/metrics"
	"github.com/BearBump/PayTrack/internal/models"
	"github.com/BearBump/PayTrack/internal/services/matching"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type Repository interface {
	ExpireSessions(ctx context.Context, now time.Time) (int64, error)
	ListDeclaredSessionIDs(ctx context.Context, afterID string, limit int) ([]string, error)
}

type Resolver interface {
	ResolveForSession(ctx context.Context, sessionID string) (matching.Verdict, error)
}

type Report struct {
	Expired      int           `json:"expired_count"`
	Verified     int           `json:"verified_count"`
	Failed       int           `json:"failed_count"`
	StillPending int           `json:"still_pending_count"`
	Errors       int           `json:"error_count"`
	StartedAt    time.Time     `json:"started_at"`
	Duration     time.Duration `json:"duration_ns"`
}

// Sweeper expires overdue sessions and retries every declared one. Sweeps
// are idempotent and may overlap.
type Sweeper struct {
	repo     Repository
	resolver Resolver
	log      *zap.SugaredLogger
	metrics  *metrics.Metrics
	now      func() time.Time

	interval    time.Duration
	batchSize   int
	concurrency int

	triggerCh chan struct{}

	startedAtUnixNano   int64
	lastSweepUnixNano   atomic.Int64
	lastTriggerUnixNano atomic.Int64
	totalSweeps         atomic.Int64
	totalExpired        atomic.Int64
	totalVerified       atomic.Int64
	totalFailed         atomic.Int64
	totalErrors         atomic.Int64
	inFlight            atomic.Int64
	mu                  sync.Mutex
	lastError           string
	lastReport          *Report
}

func New(repo Repository, resolver Resolver, log *zap.SugaredLogger) *Sweeper {
	return &Sweeper{
		repo:              repo,
		resolver:          resolver,
		log:               logger.OrNop(log),
		now:               func() time.Time { return time.Now().UTC() },
		interval:          5 * time.Minute,
		batchSize:         100,
		concurrency:       4,
		triggerCh:         make(chan struct{}, 1),
		startedAtUnixNano: time.Now().UTC().UnixNano(),
	}
}

func (s *Sweeper) WithSettings(interval time.Duration, batchSize, concurrency int) *Sweeper {
	if interval > 0 {
		s.interval = interval
	}
	if batchSize > 0 {
		s.batchSize = batchSize
	}
	if concurrency > 0 {
		s.concurrency = concurrency
	}
	return s
}

func (s *Sweeper) WithMetrics(m *metrics.Metrics) *Sweeper {
	s.metrics = m
	return s
}

// Trigger forces an immediate sweep (best-effort, non-blocking).
func (s *Sweeper) Trigger() {
	s.lastTriggerUnixNano.Store(time.Now().UTC().UnixNano())
	select {
	case s.triggerCh <- struct{}{}:
	default:
	}
}

func (s *Sweeper) Run(ctx context.Context) error {
	t := time.NewTicker(s.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			s.runOnce(ctx)
		case <-s.triggerCh:
			s.runOnce(ctx)
		}
	}
}

func (s *Sweeper) runOnce(ctx context.Context) {
	rep, err := s.Sweep(ctx)
	if err != nil {
		s.log.Errorw("sweep_failed", "err", err)
		return
	}
	s.log.Infow("sweep_done",
		"expired", rep.Expired, "verified", rep.Verified, "failed", rep.Failed,
		"still_pending", rep.StillPending, "errors", rep.Errors, "duration", rep.Duration)
}

// Sweep runs the expiry phase and then the retry phase. It only returns an
// error when the expiry phase cannot run; per-session failures are counted
// and logged.
func (s *Sweeper) Sweep(ctx context.Context) (Report, error) {
	start := s.now()
	s.lastSweepUnixNano.Store(start.UnixNano())
	rep := Report{StartedAt: start}

	expired, err := s.repo.ExpireSessions(ctx, start)
	if err != nil {
		s.recordError(err)
		return rep, errors.Wrap(err, "expire sessions")
	}
	rep.Expired = int(expired)

	var (
		verified, failed, pending, errs atomic.Int64
		after                           string
	)
	for {
		ids, err := s.repo.ListDeclaredSessionIDs(ctx, after, s.batchSize)
		if err != nil {
			s.log.Errorw("list_declared_sessions", "after", after, "err", err)
			s.recordError(err)
			errs.Add(1)
			break
		}
		if len(ids) == 0 {
			break
		}

		sem := make(chan struct{}, s.concurrency)
		var wg sync.WaitGroup
		for _, id := range ids {
			sem <- struct{}{}
			wg.Add(1)
			s.inFlight.Add(1)
			go func(id string) {
				defer func() {
					s.inFlight.Add(-1)
					<-sem
					wg.Done()
				}()

				v, err := s.resolver.ResolveForSession(ctx, id)
				switch {
				case errors.Is(err, models.ErrSessionClosed):
					// expired or canceled since it was listed
				case err != nil:
					s.log.Errorw("sweep_resolve_failed", "session_id", id, "err", err)
					s.recordError(err)
					errs.Add(1)
					pending.Add(1)
				case v.IsVerified():
					verified.Add(1)
				case v.IsRejected():
					failed.Add(1)
				default:
					pending.Add(1)
				}
			}(id)
		}
		wg.Wait()

		after = ids[len(ids)-1]
		if len(ids) < s.batchSize || ctx.Err() != nil {
			break
		}
	}

	rep.Verified = int(verified.Load())
	rep.Failed = int(failed.Load())
	rep.StillPending = int(pending.Load())
	rep.Errors = int(errs.Load())
	rep.Duration = s.now().Sub(start)

	s.totalSweeps.Add(1)
	s.totalExpired.Add(int64(rep.Expired))
	s.totalVerified.Add(int64(rep.Verified))
	s.totalFailed.Add(int64(rep.Failed))
	s.mu.Lock()
	s.lastReport = &rep
	s.mu.Unlock()
	s.metrics.ObserveSweep(rep.Duration, rep.Expired, rep.Verified, rep.Failed, rep.StillPending, rep.Errors)

	return rep, nil
}

func (s *Sweeper) recordError(err error) {
	s.totalErrors.Add(1)
	s.mu.Lock()
	s.lastError = err.Error()
	s.mu.Unlock()
}

type Stats struct {
	StartedAt     time.Time  `json:"startedAt"`
	LastSweepAt   *time.Time `json:"lastSweepAt,omitempty"`
	LastTriggerAt *time.Time `json:"lastTriggerAt,omitempty"`
	TotalSweeps   int64      `json:"totalSweeps"`
	TotalExpired  int64      `json:"totalExpired"`
	TotalVerified int64      `json:"totalVerified"`
	TotalFailed   int64      `json:"totalFailed"`
	TotalErrors   int64      `json:"totalErrors"`
	InFlight      int64      `json:"inFlight"`
	LastError     string     `json:"lastError,omitempty"`
	LastReport    *Report    `json:"lastReport,omitempty"`
}

func (s *Sweeper) Stats() Stats {
	st := Stats{
		StartedAt:     time.Unix(0, s.startedAtUnixNano).UTC(),
		TotalSweeps:   s.totalSweeps.Load(),
		TotalExpired:  s.totalExpired.Load(),
		TotalVerified: s.totalVerified.Load(),
		TotalFailed:   s.totalFailed.Load(),
		TotalErrors:   s.totalErrors.Load(),
		InFlight:      s.inFlight.Load(),
	}
	if n := s.lastSweepUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastSweepAt = &t
	}
	if n := s.lastTriggerUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastTriggerAt = &t
	}
	s.mu.Lock()
	st.LastError = s.lastError
	if s.lastReport != nil {
		r := *s.lastReport
		st.LastReport = &r
	}
	s.mu.Unlock()
	return st
}

type Settings struct {
	Interval    time.Duration `json:"interval"`
	BatchSize   int           `json:"batchSize"`
	Concurrency int           `json:"concurrency"`
}

func (s *Sweeper) Settings() Settings {
	return Settings{Interval: s.interval, BatchSize: s.batchSize, Concurrency: s.concurrency}
}
