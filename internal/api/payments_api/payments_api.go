package payments_api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/BearBump/PayTrack/internal/logger"
	"github.com/BearBump/PayTrack/internal/models"
	"github.com/BearBump/PayTrack/internal/services/ingestion"
	"github.com/BearBump/PayTrack/internal/services/sessions"
	"github.com/BearBump/PayTrack/internal/services/sweeper"
	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	messageVerified   = "payment verified"
	messageProcessing = "your payment is still being processed"
	statusProcessing  = "processing"
)

type SessionService interface {
	CreateSession(ctx context.Context, in models.SessionCreateInput) (*models.Session, error)
	GetSession(ctx context.Context, id string) (*models.Session, error)
	SubmitReference(ctx context.Context, id, reference string) (sessions.SubmitResult, error)
	CancelSession(ctx context.Context, id, note string) (*models.Session, error)
}

type IngestionService interface {
	Ingest(ctx context.Context, in models.ReceiptCreateInput) (ingestion.Result, error)
	IngestRaw(ctx context.Context, text, receiverID string) (ingestion.Result, error)
}

type Sweeper interface {
	Sweep(ctx context.Context) (sweeper.Report, error)
}

type PaymentsAPI struct {
	sessions SessionService
	ingest   IngestionService
	sweeper  Sweeper
	log      *zap.SugaredLogger
}

func New(sessions SessionService, ingest IngestionService, sw Sweeper, log *zap.SugaredLogger) *PaymentsAPI {
	return &PaymentsAPI{sessions: sessions, ingest: ingest, sweeper: sw, log: logger.OrNop(log)}
}

// Mount registers the /v1 routes on r.
func (a *PaymentsAPI) Mount(r chi.Router) {
	r.Route("/v1", func(r chi.Router) {
		r.Post("/sessions", a.createSession)
		r.Get("/sessions/{id}", a.getSession)
		r.Post("/sessions/{id}/reference", a.submitReference)
		r.Post("/sessions/{id}/cancel", a.cancelSession)
		r.Post("/receipts", a.ingestReceipt)
		r.Post("/sweep", a.sweep)
		r.Get("/admin/sessions/{id}", a.getSessionDetail)
	})
}

type createSessionRequest struct {
	AmountMinor int64          `json:"amount_minor"`
	Metadata    map[string]any `json:"metadata"`
}

func (a *PaymentsAPI) createSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if !a.decode(w, r, &req) {
		return
	}
	s, err := a.sessions.CreateSession(r.Context(), models.SessionCreateInput{
		AmountMinor: req.AmountMinor,
		Metadata:    req.Metadata,
	})
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSessionView(s))
}

func (a *PaymentsAPI) getSession(w http.ResponseWriter, r *http.Request) {
	s, err := a.sessions.GetSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCustomerSessionView(s))
}

// getSessionDetail is the operator view, including failed status and the
// resolution note.
func (a *PaymentsAPI) getSessionDetail(w http.ResponseWriter, r *http.Request) {
	s, err := a.sessions.GetSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionView(s))
}

type submitReferenceRequest struct {
	Reference string `json:"reference"`
}

type submitReferenceResponse struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
	Message   string `json:"message"`
}

// submitReference is customer facing: anything short of verified is reported
// as still processing so rule failures do not leak.
func (a *PaymentsAPI) submitReference(w http.ResponseWriter, r *http.Request) {
	var req submitReferenceRequest
	if !a.decode(w, r, &req) {
		return
	}
	id := chi.URLParam(r, "id")
	res, err := a.sessions.SubmitReference(r.Context(), id, req.Reference)
	if err != nil {
		a.writeError(w, err)
		return
	}

	out := submitReferenceResponse{SessionID: id, Status: statusProcessing, Message: messageProcessing}
	if res.Session != nil && res.Session.Status == models.SessionStatusVerified {
		out.Status = string(models.SessionStatusVerified)
		out.Message = messageVerified
	}
	writeJSON(w, http.StatusOK, out)
}

type cancelSessionRequest struct {
	Note string `json:"note"`
}

func (a *PaymentsAPI) cancelSession(w http.ResponseWriter, r *http.Request) {
	var req cancelSessionRequest
	if r.ContentLength != 0 && !a.decode(w, r, &req) {
		return
	}
	s, err := a.sessions.CancelSession(r.Context(), chi.URLParam(r, "id"), req.Note)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionView(s))
}

type ingestReceiptRequest struct {
	RawText     string     `json:"raw_text"`
	ReceiverID  string     `json:"receiver_id"`
	Reference   string     `json:"reference"`
	AmountMinor int64      `json:"amount_minor"`
	SenderID    *string    `json:"sender_id"`
	EventTime   *time.Time `json:"event_time"`
}

type ingestReceiptResponse struct {
	Receipt  receiptView `json:"receipt"`
	IsNew    bool        `json:"is_new"`
	Verdicts any         `json:"verdicts"`
}

func (a *PaymentsAPI) ingestReceipt(w http.ResponseWriter, r *http.Request) {
	var req ingestReceiptRequest
	if !a.decode(w, r, &req) {
		return
	}

	var (
		res ingestion.Result
		err error
	)
	if req.RawText != "" {
		res, err = a.ingest.IngestRaw(r.Context(), req.RawText, req.ReceiverID)
	} else {
		in := models.ReceiptCreateInput{
			Reference:   req.Reference,
			AmountMinor: req.AmountMinor,
			ReceiverID:  req.ReceiverID,
			SenderID:    req.SenderID,
		}
		if req.EventTime != nil {
			in.EventTime = *req.EventTime
		}
		res, err = a.ingest.Ingest(r.Context(), in)
	}
	if err != nil {
		a.writeError(w, err)
		return
	}

	status := http.StatusOK
	if res.IsNew {
		status = http.StatusCreated
	}
	writeJSON(w, status, ingestReceiptResponse{
		Receipt:  toReceiptView(res.Receipt),
		IsNew:    res.IsNew,
		Verdicts: res.Verdicts,
	})
}

func (a *PaymentsAPI) sweep(w http.ResponseWriter, r *http.Request) {
	if a.sweeper == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "sweeper not wired"})
		return
	}
	rep, err := a.sweeper.Sweep(r.Context())
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (a *PaymentsAPI) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "malformed json body"})
		return false
	}
	return true
}

type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func (a *PaymentsAPI) writeError(w http.ResponseWriter, err error) {
	var ve *models.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: ve.Error(), Field: ve.Field})
	case errors.Is(err, models.ErrSessionNotFound), errors.Is(err, models.ErrReceiptNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
	case errors.Is(err, models.ErrSessionClosed), errors.Is(err, models.ErrStatusConflict):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error()})
	case errors.Is(err, sessions.ErrRateLimited):
		writeJSON(w, http.StatusTooManyRequests, errorBody{Error: err.Error()})
	default:
		a.log.Errorw("request_failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
