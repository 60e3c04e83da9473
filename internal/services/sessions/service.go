package sessions

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/BearBump/PayTrack/internal/cache"
	"github.com/BearBump/PayTrack/internal/logger"
	"github.com/BearBump/PayTrack/internal/models"
	"github.com/BearBump/PayTrack/internal/services/matching"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const DefaultValidity = time.Hour

// ErrRateLimited is returned when a session receives too many reference
// submissions within a minute.
var ErrRateLimited = errors.New("too many submissions")

type Repository interface {
	CreateSession(ctx context.Context, s *models.Session) error
	GetSession(ctx context.Context, id string) (*models.Session, error)
	DeclareReference(ctx context.Context, id, reference string, now time.Time) (*models.Session, error)
	CancelSession(ctx context.Context, id, note string) (*models.Session, error)
}

type Resolver interface {
	ResolveForSession(ctx context.Context, sessionID string) (matching.Verdict, error)
}

type Registry interface {
	ListActive() []string
}

type SubmitResult struct {
	Session *models.Session
	Verdict matching.Verdict
}

type Service struct {
	repo     Repository
	resolver Resolver
	registry Registry
	log      *zap.SugaredLogger

	cache    cache.BytesCache
	cacheTTL time.Duration

	limiter     cache.Limiter
	submitLimit int64

	validity time.Duration
	now      func() time.Time
}

func New(repo Repository, resolver Resolver, registry Registry, log *zap.SugaredLogger) *Service {
	return &Service{
		repo:     repo,
		resolver: resolver,
		registry: registry,
		log:      logger.OrNop(log),
		validity: DefaultValidity,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithCache enables caching of terminal sessions. A nil cache or a zero TTL
// disables it.
func (s *Service) WithCache(c cache.BytesCache, ttl time.Duration) *Service {
	s.cache = c
	s.cacheTTL = ttl
	return s
}

func (s *Service) WithLimiter(l cache.Limiter, perMinute int) *Service {
	s.limiter = l
	s.submitLimit = int64(perMinute)
	return s
}

func (s *Service) WithValidity(d time.Duration) *Service {
	if d > 0 {
		s.validity = d
	}
	return s
}

// CreateSession opens a pending session. The acceptable receivers are copied
// from the registry now and never re-read.
func (s *Service) CreateSession(ctx context.Context, in models.SessionCreateInput) (*models.Session, error) {
	if in.AmountMinor <= 0 {
		return nil, models.NewValidationError("amount_minor", "must be positive")
	}
	active := s.registry.ListActive()
	if len(active) == 0 {
		return nil, errors.New("no active receivers configured")
	}

	now := s.now()
	sess := &models.Session{
		ID:          models.NewID(),
		AmountMinor: in.AmountMinor,
		Receivers:   active,
		Metadata:    in.Metadata,
		Status:      models.SessionStatusPending,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.validity),
		UpdatedAt:   now,
	}
	if err := s.repo.CreateSession(ctx, sess); err != nil {
		return nil, err
	}
	s.log.Infow("session_created", "session_id", sess.ID, "amount_minor", sess.AmountMinor, "receivers", sess.Receivers)
	return sess, nil
}

// GetSession serves terminal sessions from the cache when enabled; they never
// change again.
func (s *Service) GetSession(ctx context.Context, id string) (*models.Session, error) {
	if s.cacheEnabled() {
		b, ok, err := s.cache.Get(ctx, sessionKey(id))
		if err == nil && ok {
			var sess models.Session
			if json.Unmarshal(b, &sess) == nil && sess.ID == id {
				return &sess, nil
			}
		}
	}

	sess, err := s.repo.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	s.remember(ctx, sess)
	return sess, nil
}

// SubmitReference records the customer's transaction reference and tries to
// resolve the session immediately.
func (s *Service) SubmitReference(ctx context.Context, id, reference string) (SubmitResult, error) {
	ref, err := models.ValidateReference(reference)
	if err != nil {
		return SubmitResult{}, err
	}

	if s.limiter != nil && s.submitLimit > 0 {
		allowed, n, err := s.limiter.Allow(ctx, submitKey(id), s.submitLimit, time.Minute)
		switch {
		case err != nil:
			s.log.Warnw("submit_rate_limit_unavailable", "session_id", id, "err", err)
		case !allowed:
			s.log.Warnw("submit_rate_limited", "session_id", id, "count", n)
			return SubmitResult{}, ErrRateLimited
		}
	}

	if _, err := s.repo.DeclareReference(ctx, id, ref, s.now()); err != nil {
		return SubmitResult{}, err
	}
	s.log.Infow("reference_declared", "session_id", id, "reference", ref)

	v, err := s.resolver.ResolveForSession(ctx, id)
	if err != nil {
		return SubmitResult{}, errors.Wrap(err, "resolve session")
	}

	sess, err := s.repo.GetSession(ctx, id)
	if err != nil {
		return SubmitResult{}, err
	}
	s.remember(ctx, sess)
	return SubmitResult{Session: sess, Verdict: v}, nil
}

// CancelSession is the manual admin transition out of pending or declared.
func (s *Service) CancelSession(ctx context.Context, id, note string) (*models.Session, error) {
	sess, err := s.repo.CancelSession(ctx, id, note)
	if err != nil {
		return nil, err
	}
	s.log.Infow("session_canceled", "session_id", id, "note", note)
	s.remember(ctx, sess)
	return sess, nil
}

func (s *Service) cacheEnabled() bool {
	return s.cache != nil && s.cacheTTL > 0
}

func (s *Service) remember(ctx context.Context, sess *models.Session) {
	if !s.cacheEnabled() || !sess.Status.IsTerminal() {
		return
	}
	b, err := json.Marshal(sess)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, sessionKey(sess.ID), b, s.cacheTTL); err != nil {
		s.log.Debugw("session_cache_set_failed", "session_id", sess.ID, "err", err)
	}
}

func sessionKey(id string) string {
	return fmt.Sprintf("session:%s:terminal", id)
}

func submitKey(id string) string {
	return fmt.Sprintf("rl:submit:%s", id)
}
