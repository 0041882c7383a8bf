package interfaces

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/mpaulose/budgetsync/internal/auth"
	"github.com/mpaulose/budgetsync/internal/budget/application"
	"github.com/mpaulose/budgetsync/internal/budget/domain"
	budgeterrors "github.com/mpaulose/budgetsync/internal/budget/errors"
)

type BudgetServiceInterface interface {
	CreateBudget(ctx context.Context, cmd application.CreateBudgetCommand) (domain.Event, error)
	AddParticipant(ctx context.Context, cmd application.AddParticipantCommand) (domain.Event, error)
	RemoveParticipant(ctx context.Context, cmd application.RemoveParticipantCommand) (domain.Event, error)
	GetBudget(ctx context.Context, budgetID, userID string) (domain.Budget, error)
	GetBudgetsOfParticipant(ctx context.Context, userID string, page, count int) ([]domain.Budget, error)
	GetCategoriesOfBudget(ctx context.Context, budgetID, userID string) ([]domain.Category, error)
	GetExpensesOfBudget(ctx context.Context, budgetID, userID string, page, count int) ([]domain.Expense, error)
	GetParticipantsOfBudget(ctx context.Context, budgetID, userID string) ([]domain.Participant, error)
}

type BudgetHandler struct {
	service      BudgetServiceInterface
	respondJSON  func(w http.ResponseWriter, status int, payload interface{})
	respondError func(w http.ResponseWriter, status int, message string, errors ...[]string)
}

func NewBudgetHandler(
	service BudgetServiceInterface,
	respondJSON func(w http.ResponseWriter, status int, payload interface{}),
	respondError func(w http.ResponseWriter, status int, message string, errors ...[]string),
) *BudgetHandler {
	if service == nil || respondJSON == nil || respondError == nil {
		panic("Service and response functions must not be nil")
	}
	return &BudgetHandler{
		service:      service,
		respondJSON:  respondJSON,
		respondError: respondError,
	}
}

func (h *BudgetHandler) CreateBudget(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		h.respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	var req CreateBudgetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		h.respondError(w, http.StatusBadRequest, "Validation errors occurred", budgeterrors.Codes(err))
		return
	}

	accepted, err := h.service.CreateBudget(r.Context(), application.CreateBudgetCommand{
		ID:          req.ID,
		ActorUserID: userID,
		Title:       req.Title,
		Details:     req.Details,
		When:        req.When,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, map[string]interface{}{
		"status": "success",
		"data":   syncRecord(accepted),
	})
}

func (h *BudgetHandler) GetBudgets(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		h.respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	page, count := pagingParams(r)
	budgets, err := h.service.GetBudgetsOfParticipant(r.Context(), userID, page, count)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "success",
		"data":   budgets,
	})
}

func (h *BudgetHandler) GetBudget(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		h.respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	budget, err := h.service.GetBudget(r.Context(), r.PathValue("budgetID"), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "success",
		"data":   budget,
	})
}

func (h *BudgetHandler) GetCategories(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		h.respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	categories, err := h.service.GetCategoriesOfBudget(r.Context(), r.PathValue("budgetID"), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "success",
		"data":   categories,
	})
}

func (h *BudgetHandler) GetExpenses(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		h.respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	page, count := pagingParams(r)
	expenses, err := h.service.GetExpensesOfBudget(r.Context(), r.PathValue("budgetID"), userID, page, count)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "success",
		"data":   expenses,
	})
}

func (h *BudgetHandler) GetParticipants(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		h.respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	participants, err := h.service.GetParticipantsOfBudget(r.Context(), r.PathValue("budgetID"), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "success",
		"data":   participants,
	})
}

func (h *BudgetHandler) AddParticipant(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		h.respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	var req AddParticipantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		h.respondError(w, http.StatusBadRequest, "Validation errors occurred", budgeterrors.Codes(err))
		return
	}

	accepted, err := h.service.AddParticipant(r.Context(), application.AddParticipantCommand{
		BudgetID:    r.PathValue("budgetID"),
		ActorUserID: userID,
		UserID:      req.UserID,
		When:        req.When,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, map[string]interface{}{
		"status": "success",
		"data":   syncRecord(accepted),
	})
}

func (h *BudgetHandler) RemoveParticipant(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		h.respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	when := time.Now().UnixMilli()
	if raw := r.URL.Query().Get("when"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed <= 0 {
			h.respondError(w, http.StatusBadRequest, "Invalid when parameter")
			return
		}
		when = parsed
	}

	accepted, err := h.service.RemoveParticipant(r.Context(), application.RemoveParticipantCommand{
		BudgetID:    r.PathValue("budgetID"),
		ActorUserID: userID,
		UserID:      r.PathValue("userID"),
		When:        when,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "success",
		"data":   syncRecord(accepted),
	})
}

func (h *BudgetHandler) writeError(w http.ResponseWriter, err error) {
	writeError(w, h.respondError, err)
}

// syncRecord is the client-facing summary of an accepted mutation: the same
// shape batch ingestion reports per event.
func syncRecord(event domain.Event) application.BatchResult {
	return application.BatchResult{
		Event:    string(event.Type),
		ID:       event.RecordID,
		BudgetID: event.BudgetID,
		Version:  event.Version(),
	}
}

func pagingParams(r *http.Request) (page, count int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	count, _ = strconv.Atoi(r.URL.Query().Get("count"))
	return page, count
}

func statusForError(err error) int {
	switch {
	case budgeterrors.IsValidationError(err):
		return http.StatusBadRequest
	case budgeterrors.IsAuthorizationError(err):
		return http.StatusForbidden
	case budgeterrors.IsNotFoundError(err):
		return http.StatusNotFound
	case budgeterrors.IsConflictError(err):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, respondError func(w http.ResponseWriter, status int, message string, errors ...[]string), err error) {
	status := statusForError(err)
	if status == http.StatusInternalServerError {
		respondError(w, status, "Internal server error")
		return
	}
	respondError(w, status, http.StatusText(status), budgeterrors.Codes(err))
}
