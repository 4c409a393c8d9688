// Package httptransport is the thin HTTP layer over the registry services.
// Handlers decode, delegate, and encode; every decision belongs to the
// services underneath.
package httptransport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/unstoppabledomains/nomulus/internal/registry/models"
	"github.com/unstoppabledomains/nomulus/internal/registry/transfer"
	dErrors "github.com/unstoppabledomains/nomulus/pkg/domain-errors"
	"github.com/unstoppabledomains/nomulus/pkg/platform/httputil"
	"github.com/unstoppabledomains/nomulus/pkg/requestcontext"
)

// TransferService is the transfer surface the handlers need.
type TransferService interface {
	Request(ctx context.Context, params transfer.RequestParams) (transfer.TransferResult, error)
	Approve(ctx context.Context, params transfer.ResolveParams) (transfer.TransferResult, error)
	Reject(ctx context.Context, params transfer.ResolveParams) (transfer.TransferResult, error)
	Cancel(ctx context.Context, params transfer.ResolveParams) (transfer.TransferResult, error)
	Get(ctx context.Context, key models.Key) (models.Resource, error)
}

// PollService is the poll surface the handlers need.
type PollService interface {
	Pending(ctx context.Context, registrarID string) ([]models.PollMessage, error)
	Ack(ctx context.Context, registrarID, messageID string) error
}

// Handler serves the registry's HTTP API.
type Handler struct {
	transfers TransferService
	polls     PollService
	logger    *slog.Logger
}

// NewHandler builds the handler set.
func NewHandler(transfers TransferService, polls PollService, logger *slog.Logger) *Handler {
	return &Handler{transfers: transfers, polls: polls, logger: logger}
}

func (h *Handler) handleGetResource(w http.ResponseWriter, r *http.Request) {
	key, err := targetFromRequest(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	res, err := h.transfers.Get(r.Context(), key)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResourceDTO(res))
}

func (h *Handler) handleTransferRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	key, err := targetFromRequest(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var body transferRequestDTO
	if err := decodeBody(r, &body); err != nil {
		httputil.WriteError(w, err)
		return
	}

	params := transfer.RequestParams{
		Target:             key,
		GainingRegistrarID: requestcontext.RegistrarID(ctx),
		AuthInfo:           body.AuthInfo,
		PeriodYears:        body.PeriodYears,
		Superuser:          requestcontext.Superuser(ctx),
	}
	if body.Fee != nil {
		fee := models.NewMoney(body.Fee.Amount, body.Fee.Currency)
		params.Fee = &fee
	}
	if body.PendingSeconds != nil {
		d := time.Duration(*body.PendingSeconds) * time.Second
		params.PendingPeriod = &d
	}

	result, err := h.transfers.Request(ctx, params)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toTransferResponseDTO(result))
}

func (h *Handler) handleTransferResolve(resolve func(context.Context, transfer.ResolveParams) (transfer.TransferResult, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		key, err := targetFromRequest(r)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		var body resolveRequestDTO
		if err := decodeBody(r, &body); err != nil {
			httputil.WriteError(w, err)
			return
		}

		result, err := resolve(ctx, transfer.ResolveParams{
			Target:      key,
			RegistrarID: requestcontext.RegistrarID(ctx),
			AuthInfo:    body.AuthInfo,
			Superuser:   requestcontext.Superuser(ctx),
		})
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, toTransferResponseDTO(result))
	}
}

func (h *Handler) handlePollList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	msgs, err := h.polls.Pending(ctx, requestcontext.RegistrarID(ctx))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"messages": toPollMessageDTOs(msgs),
	})
}

func (h *Handler) handlePollAck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	messageID := chi.URLParam(r, "id")
	if err := h.polls.Ack(ctx, requestcontext.RegistrarID(ctx), messageID); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeServiceError logs unexpected failures and maps every service error
// onto the shared JSON envelope.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, "request failed",
			slog.String("path", r.URL.Path),
			slog.String("request_id", requestcontext.RequestID(ctx)),
			slog.Any("error", err))
	}
	httputil.WriteError(w, err)
}

// targetFromRequest resolves the {kind}/{id} route parameters to a store
// key. Only transferable kinds are addressable.
func targetFromRequest(r *http.Request) (models.Key, error) {
	id := chi.URLParam(r, "id")
	if id == "" {
		return models.Key{}, dErrors.New(dErrors.CodeBadRequest, "resource id is required")
	}
	switch chi.URLParam(r, "kind") {
	case "domains":
		return models.Key{Kind: models.KindDomain, ID: id}, nil
	case "contacts":
		return models.Key{Kind: models.KindContact, ID: id}, nil
	default:
		return models.Key{}, dErrors.New(dErrors.CodeBadRequest, "unknown resource kind")
	}
}

// decodeBody decodes an optional JSON body. A missing or empty body leaves
// v at its zero value.
func decodeBody(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return dErrors.New(dErrors.CodeBadRequest, "invalid request body")
}
