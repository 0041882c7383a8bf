package interfaces

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/mpaulose/budgetsync/internal/auth"
	"github.com/mpaulose/budgetsync/internal/budget/application"
	"github.com/mpaulose/budgetsync/internal/budget/infrastructure"
)

func newTestHandlers() (*BudgetHandler, *EventHandler, *application.Service) {
	service := application.NewService(infrastructure.NewMemoryStore(), nil)
	return NewBudgetHandler(service, respondJSON, respondError),
		NewEventHandler(service, respondJSON, respondError),
		service
}

func authedRequest(method, target, userID string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	return req.WithContext(auth.WithUserID(req.Context(), userID))
}

func createBudgetViaHandler(t *testing.T, handler *BudgetHandler, userID string) string {
	t.Helper()
	budgetID := uuid.NewString()
	req := authedRequest(http.MethodPost, "/api/budgets", userID, CreateBudgetRequest{
		ID:    budgetID,
		Title: "Groceries",
		When:  time.Now().UnixMilli(),
	})
	w := httptest.NewRecorder()
	handler.CreateBudget(w, req)
	assert.Equal(t, http.StatusCreated, w.Result().StatusCode)
	return budgetID
}

func TestCreateBudgetHandler(t *testing.T) {
	handler, _, _ := newTestHandlers()
	budgetID := uuid.NewString()

	req := authedRequest(http.MethodPost, "/api/budgets", "alice", CreateBudgetRequest{
		ID:    budgetID,
		Title: "Groceries",
		When:  time.Now().UnixMilli(),
	})
	w := httptest.NewRecorder()
	handler.CreateBudget(w, req)

	res := w.Result()
	defer res.Body.Close()
	assert.Equal(t, http.StatusCreated, res.StatusCode)

	var response struct {
		Status string                  `json:"status"`
		Data   application.BatchResult `json:"data"`
	}
	assert.NoError(t, json.NewDecoder(res.Body).Decode(&response))
	assert.Equal(t, "success", response.Status)
	assert.Equal(t, "budget.create", response.Data.Event)
	assert.Equal(t, budgetID, response.Data.BudgetID)
	if assert.NotNil(t, response.Data.Version) {
		assert.Equal(t, 1, *response.Data.Version)
	}
}

func TestCreateBudgetHandler_Validation(t *testing.T) {
	handler, _, _ := newTestHandlers()

	req := authedRequest(http.MethodPost, "/api/budgets", "alice", CreateBudgetRequest{
		ID:    "not-a-uuid",
		Title: "",
		When:  0,
	})
	w := httptest.NewRecorder()
	handler.CreateBudget(w, req)

	res := w.Result()
	defer res.Body.Close()
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	var response map[string]interface{}
	assert.NoError(t, json.NewDecoder(res.Body).Decode(&response))
	assert.Len(t, response["errors"], 3)
}

func TestCreateBudgetHandler_Unauthorized(t *testing.T) {
	handler, _, _ := newTestHandlers()

	req := httptest.NewRequest(http.MethodPost, "/api/budgets", bytes.NewBufferString("{}"))
	w := httptest.NewRecorder()
	handler.CreateBudget(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Result().StatusCode)
}

func TestGetBudgetHandler_ForbiddenForNonParticipant(t *testing.T) {
	handler, _, _ := newTestHandlers()
	budgetID := createBudgetViaHandler(t, handler, "alice")

	req := authedRequest(http.MethodGet, "/api/budgets/"+budgetID, "mallory", nil)
	req.SetPathValue("budgetID", budgetID)
	w := httptest.NewRecorder()
	handler.GetBudget(w, req)

	res := w.Result()
	defer res.Body.Close()
	assert.Equal(t, http.StatusForbidden, res.StatusCode)

	var response map[string]interface{}
	assert.NoError(t, json.NewDecoder(res.Body).Decode(&response))
	assert.Equal(t, []interface{}{"NOT_PARTICIPANT"}, response["errors"])
}

func TestAddAndRemoveParticipantHandlers(t *testing.T) {
	handler, _, _ := newTestHandlers()
	budgetID := createBudgetViaHandler(t, handler, "alice")

	req := authedRequest(http.MethodPost, fmt.Sprintf("/api/budgets/%s/participants", budgetID), "alice", AddParticipantRequest{
		UserID: "bob",
		When:   time.Now().UnixMilli(),
	})
	req.SetPathValue("budgetID", budgetID)
	w := httptest.NewRecorder()
	handler.AddParticipant(w, req)
	assert.Equal(t, http.StatusCreated, w.Result().StatusCode)

	// Adding the same user again conflicts.
	req = authedRequest(http.MethodPost, fmt.Sprintf("/api/budgets/%s/participants", budgetID), "alice", AddParticipantRequest{
		UserID: "bob",
		When:   time.Now().UnixMilli(),
	})
	req.SetPathValue("budgetID", budgetID)
	w = httptest.NewRecorder()
	handler.AddParticipant(w, req)

	res := w.Result()
	defer res.Body.Close()
	assert.Equal(t, http.StatusConflict, res.StatusCode)

	var response map[string]interface{}
	assert.NoError(t, json.NewDecoder(res.Body).Decode(&response))
	assert.Equal(t, []interface{}{"PARTICIPANT_EXISTS"}, response["errors"])

	req = authedRequest(http.MethodDelete, fmt.Sprintf("/api/budgets/%s/participants/bob", budgetID), "bob", nil)
	req.SetPathValue("budgetID", budgetID)
	req.SetPathValue("userID", "bob")
	w = httptest.NewRecorder()
	handler.RemoveParticipant(w, req)
	assert.Equal(t, http.StatusOK, w.Result().StatusCode)
}

func TestGetBudgetsHandler(t *testing.T) {
	handler, _, _ := newTestHandlers()
	createBudgetViaHandler(t, handler, "alice")
	createBudgetViaHandler(t, handler, "alice")

	req := authedRequest(http.MethodGet, "/api/budgets?page=1&count=10", "alice", nil)
	w := httptest.NewRecorder()
	handler.GetBudgets(w, req)

	res := w.Result()
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	var response struct {
		Data []map[string]interface{} `json:"data"`
	}
	assert.NoError(t, json.NewDecoder(res.Body).Decode(&response))
	assert.Len(t, response.Data, 2)
}
