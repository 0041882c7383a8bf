package interfaces

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/mpaulose/budgetsync/internal/auth"
	"github.com/mpaulose/budgetsync/internal/budget/application"
	"github.com/mpaulose/budgetsync/internal/budget/domain"
	budgeterrors "github.com/mpaulose/budgetsync/internal/budget/errors"
)

type EventServiceInterface interface {
	ApplyBatch(ctx context.Context, actorUserID string, events []application.BatchEvent) ([]application.BatchResult, error)
	GetEvents(ctx context.Context, budgetID, userID string, afterSequence int64, count int) ([]domain.Event, int64, error)
}

type EventHandler struct {
	service      EventServiceInterface
	respondJSON  func(w http.ResponseWriter, status int, payload interface{})
	respondError func(w http.ResponseWriter, status int, message string, errors ...[]string)
}

func NewEventHandler(
	service EventServiceInterface,
	respondJSON func(w http.ResponseWriter, status int, payload interface{}),
	respondError func(w http.ResponseWriter, status int, message string, errors ...[]string),
) *EventHandler {
	if service == nil || respondJSON == nil || respondError == nil {
		panic("Service and response functions must not be nil")
	}
	return &EventHandler{
		service:      service,
		respondJSON:  respondJSON,
		respondError: respondError,
	}
}

// HandleBatch ingests one batch of offline events. The response always mirrors
// the batch entry for entry; per-event failures are reported in their result
// records, not as an HTTP error.
func (h *EventHandler) HandleBatch(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		h.respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		h.respondError(w, http.StatusBadRequest, "Validation errors occurred", budgeterrors.Codes(err))
		return
	}

	results, err := h.service.ApplyBatch(r.Context(), userID, req.Events)
	if err != nil {
		writeError(w, h.respondError, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"events": results,
	})
}

// HandleSync serves one page of the pull sync feed for a budget, from the
// client's cursor onwards.
func (h *EventHandler) HandleSync(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		h.respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	budgetID := r.URL.Query().Get("budgetId")
	if budgetID == "" {
		h.respondError(w, http.StatusBadRequest, "Missing budgetId parameter")
		return
	}
	var key int64
	if raw := r.URL.Query().Get("key"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 0 {
			h.respondError(w, http.StatusBadRequest, "Invalid key parameter")
			return
		}
		key = parsed
	}
	count, _ := strconv.Atoi(r.URL.Query().Get("count"))

	events, nextKey, err := h.service.GetEvents(r.Context(), budgetID, userID, key, count)
	if err != nil {
		writeError(w, h.respondError, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"budgetId": budgetID,
		"key":      key,
		"nextKey":  nextKey,
		"events":   events,
	})
}
