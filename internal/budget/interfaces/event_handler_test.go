package interfaces

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/mpaulose/budgetsync/internal/budget/application"
)

func TestHandleBatch(t *testing.T) {
	budgetHandler, eventHandler, _ := newTestHandlers()
	budgetID := createBudgetViaHandler(t, budgetHandler, "alice")
	now := time.Now().UnixMilli()
	categoryID := uuid.NewString()

	name := "Food"
	allocate := "250.00"
	badVersion := 9
	req := authedRequest(http.MethodPost, "/api/events", "alice", BatchRequest{
		Events: []application.BatchEvent{
			{Event: "category.add", BudgetID: budgetID, ID: categoryID, When: now + 1, Name: &name, Allocate: &allocate},
			{Event: "category.edit", BudgetID: budgetID, ID: categoryID, When: now + 2, Version: &badVersion, Name: &name},
		},
	})
	w := httptest.NewRecorder()
	eventHandler.HandleBatch(w, req)

	res := w.Result()
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	var response struct {
		Events []application.BatchResult `json:"events"`
	}
	assert.NoError(t, json.NewDecoder(res.Body).Decode(&response))
	if assert.Len(t, response.Events, 2) {
		assert.Empty(t, response.Events[0].Errors)
		assert.Equal(t, []string{"VERSION_MISMATCH"}, response.Events[1].Errors)
	}
}

func TestHandleBatch_EmptyBody(t *testing.T) {
	_, eventHandler, _ := newTestHandlers()

	req := authedRequest(http.MethodPost, "/api/events", "alice", BatchRequest{})
	w := httptest.NewRecorder()
	eventHandler.HandleBatch(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Result().StatusCode)
}

func TestHandleSync(t *testing.T) {
	budgetHandler, eventHandler, _ := newTestHandlers()
	budgetID := createBudgetViaHandler(t, budgetHandler, "alice")
	now := time.Now().UnixMilli()

	// Bob joins so he may read the feed.
	req := authedRequest(http.MethodPost, fmt.Sprintf("/api/budgets/%s/participants", budgetID), "alice", AddParticipantRequest{
		UserID: "bob",
		When:   now + 1,
	})
	req.SetPathValue("budgetID", budgetID)
	w := httptest.NewRecorder()
	budgetHandler.AddParticipant(w, req)
	assert.Equal(t, http.StatusCreated, w.Result().StatusCode)

	req = authedRequest(http.MethodGet, fmt.Sprintf("/api/events?budgetId=%s&key=0", budgetID), "bob", nil)
	w = httptest.NewRecorder()
	eventHandler.HandleSync(w, req)

	res := w.Result()
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	var response struct {
		BudgetID string                   `json:"budgetId"`
		Key      int64                    `json:"key"`
		NextKey  int64                    `json:"nextKey"`
		Events   []map[string]interface{} `json:"events"`
	}
	assert.NoError(t, json.NewDecoder(res.Body).Decode(&response))
	assert.Equal(t, budgetID, response.BudgetID)
	assert.Equal(t, int64(0), response.Key)
	// create, creator join, bob join — all by alice.
	assert.Len(t, response.Events, 3)
	assert.Equal(t, int64(3), response.NextKey)

	// Nothing new after the cursor: nextKey sticks to the client's key.
	req = authedRequest(http.MethodGet, fmt.Sprintf("/api/events?budgetId=%s&key=3", budgetID), "bob", nil)
	w = httptest.NewRecorder()
	eventHandler.HandleSync(w, req)

	res = w.Result()
	defer res.Body.Close()
	assert.NoError(t, json.NewDecoder(res.Body).Decode(&response))
	assert.Empty(t, response.Events)
	assert.Equal(t, int64(3), response.NextKey)
}

func TestHandleSync_MissingBudgetID(t *testing.T) {
	_, eventHandler, _ := newTestHandlers()

	req := authedRequest(http.MethodGet, "/api/events", "alice", nil)
	w := httptest.NewRecorder()
	eventHandler.HandleSync(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Result().StatusCode)
}
