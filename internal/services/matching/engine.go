package matching

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/BearBump/PayTrack/internal/logger"
	"github.com/BearBump/PayTrack/internal/metrics"
	"github.com/BearBump/PayTrack/internal/models"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const defaultFulfillmentTimeout = 10 * time.Second

type Repository interface {
	ClaimLookup
	GetSession(ctx context.Context, id string) (*models.Session, error)
	GetReceipt(ctx context.Context, id string) (*models.Receipt, error)
	GetReceiptByReference(ctx context.Context, reference string) (*models.Receipt, error)
	ListAwaitingSessionsByReference(ctx context.Context, reference string) ([]*models.Session, error)
	// MarkSessionVerified and MarkSessionFailed only move a session that is
	// still awaiting; otherwise they return models.ErrStatusConflict.
	// MarkSessionVerified also requires the session to still declare the
	// receipt's reference.
	MarkSessionVerified(ctx context.Context, sessionID, receiptID, note string) error
	MarkSessionFailed(ctx context.Context, sessionID, note string) error
}

// Fulfiller is notified once per session that becomes verified.
type Fulfiller interface {
	Notify(ctx context.Context, sessionID, receiptID string, metadata map[string]any) error
}

// Engine is the single place where sessions and receipts are matched. The
// submission, ingestion and sweep paths all go through it.
type Engine struct {
	repo      Repository
	fulfiller Fulfiller
	log       *zap.SugaredLogger
	metrics   *metrics.Metrics

	window             Window
	fulfillmentTimeout time.Duration

	wg sync.WaitGroup
}

func New(repo Repository, fulfiller Fulfiller, log *zap.SugaredLogger) *Engine {
	return &Engine{
		repo:               repo,
		fulfiller:          fulfiller,
		log:                logger.OrNop(log),
		window:             DefaultWindow(),
		fulfillmentTimeout: defaultFulfillmentTimeout,
	}
}

func (e *Engine) WithWindow(w Window) *Engine {
	e.window = w
	return e
}

func (e *Engine) WithMetrics(m *metrics.Metrics) *Engine {
	e.metrics = m
	return e
}

func (e *Engine) WithFulfillmentTimeout(d time.Duration) *Engine {
	if d > 0 {
		e.fulfillmentTimeout = d
	}
	return e
}

func (e *Engine) Window() Window { return e.window }

// ResolveForSession decides a single session against the receipt carrying its
// declared reference. Sessions that are already verified or failed report
// their stored outcome without being re-evaluated.
func (e *Engine) ResolveForSession(ctx context.Context, sessionID string) (Verdict, error) {
	s, err := e.repo.GetSession(ctx, sessionID)
	if err != nil {
		return Verdict{}, err
	}

	switch s.Status {
	case models.SessionStatusVerified, models.SessionStatusFailed:
		return storedVerdict(s), nil
	case models.SessionStatusExpired, models.SessionStatusCanceled:
		return Verdict{}, errors.Wrapf(models.ErrSessionClosed, "session %s is %s", s.ID, s.Status)
	}

	if !s.HasReference() {
		return inconclusive(s.ID, ReasonNoReference), nil
	}

	rc, err := e.repo.GetReceiptByReference(ctx, s.Reference())
	if errors.Is(err, models.ErrReceiptNotFound) {
		return inconclusive(s.ID, ReasonNoReceipt), nil
	}
	if err != nil {
		return Verdict{}, errors.Wrap(err, "get receipt by reference")
	}

	return e.apply(ctx, s, rc)
}

// ResolveForReceipt tries every awaiting session that declared the receipt's
// reference, oldest first. A failure on one session does not stop the rest;
// the returned error combines the per-session failures.
func (e *Engine) ResolveForReceipt(ctx context.Context, receiptID string) ([]Verdict, error) {
	rc, err := e.repo.GetReceipt(ctx, receiptID)
	if err != nil {
		return nil, err
	}

	sessions, err := e.repo.ListAwaitingSessionsByReference(ctx, rc.Reference)
	if err != nil {
		return nil, errors.Wrap(err, "list awaiting sessions")
	}

	out := make([]Verdict, 0, len(sessions))
	var errs error
	for _, s := range sessions {
		v, err := e.apply(ctx, s, rc)
		if err != nil {
			e.log.Errorw("resolve_session_failed", "session_id", s.ID, "receipt_id", rc.ID, "err", err)
			errs = multierr.Append(errs, errors.Wrapf(err, "session %s", s.ID))
			continue
		}
		out = append(out, v)
	}
	return out, errs
}

// apply evaluates one pair and commits the outcome. Losing a race on the
// conditional transition is not an error: the session is re-read and its
// current outcome reported.
func (e *Engine) apply(ctx context.Context, s *models.Session, rc *models.Receipt) (Verdict, error) {
	v, err := Evaluate(ctx, s, rc, e.window, e.repo)
	if err != nil {
		return Verdict{}, err
	}

	if v.IsVerified() {
		err := e.repo.MarkSessionVerified(ctx, s.ID, rc.ID, NoteVerified)
		switch {
		case err == nil:
			e.observe(v)
			e.log.Infow("session_verified", "session_id", s.ID, "receipt_id", rc.ID, "reference", rc.Reference)
			e.fulfill(ctx, s, rc)
			return v, nil
		case errors.Is(err, models.ErrStatusConflict):
			return e.current(ctx, s.ID)
		case errors.Is(err, models.ErrReceiptClaimed):
			other := ""
			var claimed *models.ReceiptClaimedError
			if errors.As(err, &claimed) {
				other = claimed.SessionID
			}
			v = rejected(s.ID, rc.ID, RuleExclusivity, claimedReason(other))
		default:
			return Verdict{}, errors.Wrap(err, "mark session verified")
		}
	}

	if err := e.repo.MarkSessionFailed(ctx, s.ID, v.Reason); err != nil {
		if errors.Is(err, models.ErrStatusConflict) {
			return e.current(ctx, s.ID)
		}
		return Verdict{}, errors.Wrap(err, "mark session failed")
	}
	e.observe(v)
	e.log.Warnw("session_rejected", "session_id", s.ID, "receipt_id", rc.ID, "rule", v.Rule, "reason", v.Reason)
	return v, nil
}

func (e *Engine) current(ctx context.Context, sessionID string) (Verdict, error) {
	s, err := e.repo.GetSession(ctx, sessionID)
	if err != nil {
		return Verdict{}, errors.Wrap(err, "reload session")
	}
	e.log.Infow("session_resolved_concurrently", "session_id", s.ID, "status", s.Status)
	return storedVerdict(s), nil
}

// storedVerdict reports the persisted outcome of a session.
func storedVerdict(s *models.Session) Verdict {
	switch s.Status {
	case models.SessionStatusVerified:
		return Verdict{SessionID: s.ID, ReceiptID: s.ResolvedReceipt(), Kind: KindVerified, Reason: s.Note()}
	case models.SessionStatusFailed:
		return Verdict{SessionID: s.ID, Kind: KindRejected, Reason: s.Note()}
	default:
		return inconclusive(s.ID, fmt.Sprintf("session is %s", s.Status))
	}
}

// fulfill runs the notification after the verified transition has committed.
// Its failures are logged and never affect the verdict.
func (e *Engine) fulfill(ctx context.Context, s *models.Session, rc *models.Receipt) {
	if e.fulfiller == nil {
		return
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				e.log.Errorw("fulfillment_panic", "session_id", s.ID, "panic", r)
				e.metrics.ObserveFulfillmentError()
			}
		}()

		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.fulfillmentTimeout)
		defer cancel()

		if err := e.fulfiller.Notify(fctx, s.ID, rc.ID, s.Metadata); err != nil {
			e.log.Errorw("fulfillment_failed", "session_id", s.ID, "receipt_id", rc.ID, "err", err)
			e.metrics.ObserveFulfillmentError()
		}
	}()
}

// Wait blocks until in-flight fulfillment notifications finish.
func (e *Engine) Wait() {
	e.wg.Wait()
}

func (e *Engine) observe(v Verdict) {
	e.metrics.ObserveVerdict(string(v.Kind), string(v.Rule))
}
