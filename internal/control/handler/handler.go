// Package handler exposes Control intake and result lookup over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"efti-gate/internal/control/models"
	"efti-gate/internal/control/service"
	dErrors "efti-gate/pkg/domain-errors"
	"efti-gate/pkg/platform/httputil"
	"efti-gate/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks

// Service defines the control operations the HTTP surface needs.
type Service interface {
	CreateUILControl(ctx context.Context, q service.UILQuery) (*models.Result, error)
	CreateIdentifiersControl(ctx context.Context, q service.IdentifiersQuery) (*models.Result, error)
	GetResult(ctx context.Context, requestID string) (*models.Result, error)
	SendNote(ctx context.Context, requestID, message string) error
}

// Handler wires control endpoints to the control service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts control endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/v1/controls", func(r chi.Router) {
		r.Post("/uil", h.HandleCreateUIL)
		r.Post("/identifiers", h.HandleCreateIdentifiers)
		r.Get("/{requestId}", h.HandleGetResult)
		r.Post("/{requestId}/notes", h.HandleSendNote)
	})
}

// HandleCreateUIL handles POST /v1/controls/uil.
func (h *Handler) HandleCreateUIL(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[UILRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	res, err := h.service.CreateUILControl(ctx, req.toQuery())
	if err != nil {
		h.logFailure(ctx, "uil control failed", requestID, err, "gate_id", req.GateID)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "uil control accepted",
		"request_id", requestID,
		"control_request_id", res.RequestID,
		"gate_id", req.GateID,
		"status", res.Status,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, createdStatus(res), FromResult(res))
}

// HandleCreateIdentifiers handles POST /v1/controls/identifiers.
func (h *Handler) HandleCreateIdentifiers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[IdentifiersRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	res, err := h.service.CreateIdentifiersControl(ctx, req.toQuery())
	if err != nil {
		h.logFailure(ctx, "identifiers control failed", requestID, err)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "identifiers control accepted",
		"request_id", requestID,
		"control_request_id", res.RequestID,
		"gates", len(req.parsedGates),
		"status", res.Status,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, createdStatus(res), FromResult(res))
}

// HandleGetResult handles GET /v1/controls/{requestId}.
func (h *Handler) HandleGetResult(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	controlID := strings.TrimSpace(chi.URLParam(r, "requestId"))
	if controlID == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, string(models.ErrRequestIDMissing)))
		return
	}

	res, err := h.service.GetResult(ctx, controlID)
	if err != nil {
		h.logFailure(ctx, "result lookup failed", requestcontext.RequestID(ctx), err, "control_request_id", controlID)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromResult(res))
}

// HandleSendNote handles POST /v1/controls/{requestId}/notes.
func (h *Handler) HandleSendNote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	controlID := strings.TrimSpace(chi.URLParam(r, "requestId"))
	if controlID == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, string(models.ErrRequestIDMissing)))
		return
	}

	req, ok := httputil.DecodeAndPrepare[NoteRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	if err := h.service.SendNote(ctx, controlID, req.Message); err != nil {
		h.logFailure(ctx, "note failed", requestID, err, "control_request_id", controlID)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "note sent",
		"request_id", requestID,
		"control_request_id", controlID,
	)
	httputil.WriteJSON(w, http.StatusAccepted, map[string]string{"requestId": controlID})
}

// logFailure keeps client mistakes at debug level.
func (h *Handler) logFailure(ctx context.Context, msg, requestID string, err error, attrs ...any) {
	args := append([]any{"request_id", requestID, "error", err}, attrs...)
	switch dErrors.CodeOf(err) {
	case dErrors.CodeValidation, dErrors.CodeNotFound, dErrors.CodeBadRequest:
		h.logger.DebugContext(ctx, msg, args...)
	default:
		h.logger.ErrorContext(ctx, msg, args...)
	}
}

// createdStatus is 202 while legs are still in flight.
func createdStatus(res *models.Result) int {
	if res.Status == models.StatusPending {
		return http.StatusAccepted
	}
	return http.StatusOK
}
