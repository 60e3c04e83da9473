package ingestion

import (
	"context"
	"strings"
	"time"

	"github.com/BearBump/PayTrack/internal/broker/messages"
	"github.com/BearBump/PayTrack/internal/integrations/smsparser"
	"github.com/BearBump/PayTrack/internal/logger"
	"github.com/BearBump/PayTrack/internal/metrics"
	"github.com/BearBump/PayTrack/internal/models"
	"github.com/BearBump/PayTrack/internal/services/matching"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type Repository interface {
	CreateOrGetReceipt(ctx context.Context, in *models.Receipt) (*models.Receipt, bool, error)
}

type Registry interface {
	IsRecognized(receiverID string) bool
}

type Resolver interface {
	ResolveForReceipt(ctx context.Context, receiptID string) ([]matching.Verdict, error)
}

type Parser interface {
	Parse(raw string) (smsparser.Parsed, error)
}

type Result struct {
	Receipt  *models.Receipt    `json:"receipt"`
	IsNew    bool               `json:"is_new"`
	Verdicts []matching.Verdict `json:"verdicts"`
}

type Service struct {
	repo     Repository
	registry Registry
	resolver Resolver
	parser   Parser
	log      *zap.SugaredLogger
	metrics  *metrics.Metrics
	now      func() time.Time
}

func New(repo Repository, registry Registry, resolver Resolver, parser Parser, log *zap.SugaredLogger) *Service {
	return &Service{
		repo:     repo,
		registry: registry,
		resolver: resolver,
		parser:   parser,
		log:      logger.OrNop(log),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) WithMetrics(m *metrics.Metrics) *Service {
	s.metrics = m
	return s
}

// Ingest stores one observed payment. A reference that is already known
// returns the stored receipt with IsNew=false and triggers nothing. A new
// receipt is matched against awaiting sessions before returning; matching
// failures are logged and left to the sweep.
func (s *Service) Ingest(ctx context.Context, in models.ReceiptCreateInput) (Result, error) {
	rc, err := s.validate(in)
	if err != nil {
		s.metrics.ObserveReceipt("invalid")
		return Result{}, err
	}

	stored, isNew, err := s.repo.CreateOrGetReceipt(ctx, rc)
	if err != nil {
		return Result{}, errors.Wrap(err, "store receipt")
	}

	res := Result{Receipt: stored, IsNew: isNew, Verdicts: []matching.Verdict{}}
	if !isNew {
		s.metrics.ObserveReceipt("duplicate")
		s.log.Infow("receipt_duplicate", "receipt_id", stored.ID, "reference", stored.Reference)
		return res, nil
	}
	s.metrics.ObserveReceipt("new")
	s.log.Infow("receipt_ingested", "receipt_id", stored.ID, "reference", stored.Reference,
		"amount_minor", stored.AmountMinor, "receiver_id", stored.ReceiverID)

	verdicts, err := s.resolver.ResolveForReceipt(ctx, stored.ID)
	if err != nil {
		s.log.Errorw("resolve_for_receipt_failed", "receipt_id", stored.ID, "err", err)
	}
	if verdicts != nil {
		res.Verdicts = verdicts
	}
	return res, nil
}

// IngestRaw parses an SMS text received on receiverID and ingests it.
func (s *Service) IngestRaw(ctx context.Context, text, receiverID string) (Result, error) {
	parsed, err := s.parser.Parse(text)
	if err != nil {
		s.metrics.ObserveReceipt("invalid")
		var pe *smsparser.ParseError
		if errors.As(err, &pe) {
			return Result{}, models.NewValidationError(pe.Field, pe.Message)
		}
		return Result{}, models.NewValidationError("text", err.Error())
	}
	return s.Ingest(ctx, models.ReceiptCreateInput{
		Reference:   parsed.Reference,
		AmountMinor: parsed.AmountMinor,
		ReceiverID:  receiverID,
		SenderID:    parsed.SenderID,
		EventTime:   parsed.EventTime,
	})
}

// HandleSMS ingests one relay message in either raw or parsed form.
func (s *Service) HandleSMS(ctx context.Context, msg messages.SMSReceived) (Result, error) {
	if msg.IsRaw() {
		return s.IngestRaw(ctx, msg.Text, msg.ReceiverID)
	}
	in := models.ReceiptCreateInput{
		Reference:   msg.Reference,
		AmountMinor: msg.AmountMinor,
		ReceiverID:  msg.ReceiverID,
		SenderID:    msg.SenderID,
	}
	if msg.EventTime != nil {
		in.EventTime = *msg.EventTime
	}
	return s.Ingest(ctx, in)
}

func (s *Service) validate(in models.ReceiptCreateInput) (*models.Receipt, error) {
	ref, err := models.ValidateReference(in.Reference)
	if err != nil {
		return nil, err
	}
	if in.AmountMinor <= 0 {
		return nil, models.NewValidationError("amount_minor", "must be positive")
	}
	receiver := strings.TrimSpace(in.ReceiverID)
	if receiver == "" {
		return nil, models.NewValidationError("receiver_id", "is required")
	}
	if !s.registry.IsRecognized(receiver) {
		return nil, models.NewValidationError("receiver_id", "is not a recognized receiver")
	}
	if in.EventTime.IsZero() {
		return nil, models.NewValidationError("event_time", "is required")
	}

	var sender *string
	if in.SenderID != nil && strings.TrimSpace(*in.SenderID) != "" {
		v := strings.TrimSpace(*in.SenderID)
		sender = &v
	}

	return &models.Receipt{
		ID:          models.NewID(),
		Reference:   ref,
		AmountMinor: in.AmountMinor,
		ReceiverID:  receiver,
		SenderID:    sender,
		EventTime:   in.EventTime.UTC(),
		IngestedAt:  s.now(),
	}, nil
}
