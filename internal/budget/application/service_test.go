package application

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/mpaulose/budgetsync/internal/budget/domain"
	"github.com/mpaulose/budgetsync/internal/budget/infrastructure"
	budgeterrors "github.com/mpaulose/budgetsync/internal/budget/errors"
)

func newTestService() (*Service, *infrastructure.MemoryStore) {
	store := infrastructure.NewMemoryStore()
	return NewService(store, nil), store
}

func createTestBudget(t *testing.T, service *Service, creator string, when int64) string {
	t.Helper()
	budgetID := uuid.NewString()
	_, err := service.CreateBudget(context.Background(), CreateBudgetCommand{
		ID:          budgetID,
		ActorUserID: creator,
		Title:       "Groceries",
		When:        when,
	})
	assert.NoError(t, err)
	return budgetID
}

func TestCreateBudget(t *testing.T) {
	service, store := newTestService()
	now := time.Now().UnixMilli()
	budgetID := uuid.NewString()

	accepted, err := service.CreateBudget(context.Background(), CreateBudgetCommand{
		ID:          budgetID,
		ActorUserID: "alice",
		Title:       "Groceries",
		When:        now,
	})
	assert.NoError(t, err)
	assert.Equal(t, domain.EventCreateBudget, accepted.Type)
	assert.Equal(t, int64(1), accepted.Sequence)
	if assert.NotNil(t, accepted.Version()) {
		assert.Equal(t, 1, *accepted.Version())
	}

	// The creator becomes the first participant, recorded in the log.
	log := store.Events(budgetID)
	if assert.Len(t, log, 2) {
		assert.Equal(t, domain.EventAddParticipant, log[1].Type)
		assert.Equal(t, "alice", log[1].RecordID)
		assert.Equal(t, int64(2), log[1].Sequence)
	}

	participants, err := service.GetParticipantsOfBudget(context.Background(), budgetID, "alice")
	assert.NoError(t, err)
	assert.Equal(t, []domain.Participant{{BudgetID: budgetID, UserID: "alice"}}, participants)
}

func TestCreateBudget_DuplicateID(t *testing.T) {
	service, _ := newTestService()
	now := time.Now().UnixMilli()
	budgetID := createTestBudget(t, service, "alice", now)

	_, err := service.CreateBudget(context.Background(), CreateBudgetCommand{
		ID:          budgetID,
		ActorUserID: "bob",
		Title:       "Duplicate",
		When:        now,
	})
	assert.True(t, budgeterrors.IsConflictError(err))
	assert.Equal(t, []string{budgeterrors.CodeBudgetExists}, budgeterrors.Codes(err))
}

func TestEditBudget_IncrementsVersion(t *testing.T) {
	service, _ := newTestService()
	now := time.Now().UnixMilli()
	budgetID := createTestBudget(t, service, "alice", now)

	title := "Household"
	accepted, err := service.EditBudget(context.Background(), EditBudgetCommand{
		ID:          budgetID,
		ActorUserID: "alice",
		Title:       &title,
		Version:     1,
		When:        now + 1,
	})
	assert.NoError(t, err)
	assert.Equal(t, domain.EventEditBudget, accepted.Type)
	if assert.NotNil(t, accepted.Version()) {
		assert.Equal(t, 2, *accepted.Version())
	}

	budget, err := service.GetBudget(context.Background(), budgetID, "alice")
	assert.NoError(t, err)
	assert.Equal(t, "Household", budget.Title)
	assert.Equal(t, 2, budget.Version)
}

func TestEditBudget_VersionMismatchLeavesBudgetUnchanged(t *testing.T) {
	service, store := newTestService()
	now := time.Now().UnixMilli()
	budgetID := createTestBudget(t, service, "alice", now)

	title := "Household"
	_, err := service.EditBudget(context.Background(), EditBudgetCommand{
		ID:          budgetID,
		ActorUserID: "alice",
		Title:       &title,
		Version:     7,
		When:        now + 1,
	})
	assert.True(t, budgeterrors.IsConflictError(err))
	assert.Equal(t, []string{budgeterrors.CodeVersionMismatch}, budgeterrors.Codes(err))

	budget, err := service.GetBudget(context.Background(), budgetID, "alice")
	assert.NoError(t, err)
	assert.Equal(t, "Groceries", budget.Title)
	assert.Equal(t, 1, budget.Version)

	// The rejected mutation must not have appended anything.
	assert.Len(t, store.Events(budgetID), 2)
}

func TestDeleteBudget_OnlyCreator(t *testing.T) {
	service, _ := newTestService()
	now := time.Now().UnixMilli()
	budgetID := createTestBudget(t, service, "alice", now)

	_, err := service.AddParticipant(context.Background(), AddParticipantCommand{
		BudgetID:    budgetID,
		ActorUserID: "alice",
		UserID:      "bob",
		When:        now + 1,
	})
	assert.NoError(t, err)

	_, err = service.DeleteBudget(context.Background(), DeleteBudgetCommand{
		ID:          budgetID,
		ActorUserID: "bob",
		Version:     1,
		When:        now + 2,
	})
	assert.True(t, budgeterrors.IsAuthorizationError(err))
	assert.Equal(t, []string{budgeterrors.CodeNotCreator}, budgeterrors.Codes(err))

	accepted, err := service.DeleteBudget(context.Background(), DeleteBudgetCommand{
		ID:          budgetID,
		ActorUserID: "alice",
		Version:     1,
		When:        now + 3,
	})
	assert.NoError(t, err)
	assert.Equal(t, domain.EventDeleteBudget, accepted.Type)

	// Soft-deleted budgets vanish from reads but their log survives.
	_, err = service.GetBudget(context.Background(), budgetID, "alice")
	assert.True(t, budgeterrors.IsNotFoundError(err))
}

func TestAddParticipant_Limit(t *testing.T) {
	service, _ := newTestService()
	now := time.Now().UnixMilli()
	budgetID := createTestBudget(t, service, "alice", now)

	for i := 0; i < domain.MaxParticipantsPerBudget-1; i++ {
		_, err := service.AddParticipant(context.Background(), AddParticipantCommand{
			BudgetID:    budgetID,
			ActorUserID: "alice",
			UserID:      uuid.NewString(),
			When:        now + 1,
		})
		assert.NoError(t, err)
	}

	_, err := service.AddParticipant(context.Background(), AddParticipantCommand{
		BudgetID:    budgetID,
		ActorUserID: "alice",
		UserID:      "one-too-many",
		When:        now + 2,
	})
	assert.Equal(t, []string{budgeterrors.CodeParticipantLimitReached}, budgeterrors.Codes(err))
}

func TestRemoveParticipant_SelfAllowedOthersNeedCreator(t *testing.T) {
	service, _ := newTestService()
	now := time.Now().UnixMilli()
	budgetID := createTestBudget(t, service, "alice", now)

	for _, userID := range []string{"bob", "carol"} {
		_, err := service.AddParticipant(context.Background(), AddParticipantCommand{
			BudgetID:    budgetID,
			ActorUserID: "alice",
			UserID:      userID,
			When:        now + 1,
		})
		assert.NoError(t, err)
	}

	_, err := service.RemoveParticipant(context.Background(), RemoveParticipantCommand{
		BudgetID:    budgetID,
		ActorUserID: "bob",
		UserID:      "carol",
		When:        now + 2,
	})
	assert.Equal(t, []string{budgeterrors.CodeNotCreator}, budgeterrors.Codes(err))

	accepted, err := service.RemoveParticipant(context.Background(), RemoveParticipantCommand{
		BudgetID:    budgetID,
		ActorUserID: "bob",
		UserID:      "bob",
		When:        now + 3,
	})
	assert.NoError(t, err)
	assert.Equal(t, domain.EventRemoveParticipant, accepted.Type)

	participants, err := service.GetParticipantsOfBudget(context.Background(), budgetID, "alice")
	assert.NoError(t, err)
	assert.Len(t, participants, 2)
}

// A participant who was removed can still land mutations dated inside their
// membership window; mutations dated after the removal are denied.
func TestMembershipWindowGovernsLateMutations(t *testing.T) {
	service, store := newTestService()
	now := time.Now().UnixMilli()
	budgetID := createTestBudget(t, service, "alice", now)

	repos := store.Repos()
	seedMembershipEvent(t, repos, budgetID, domain.EventAddParticipant, "bob", now+10)
	seedMembershipEvent(t, repos, budgetID, domain.EventRemoveParticipant, "bob", now+20)

	title := "Renamed offline"
	edit := func(when int64) error {
		_, err := service.EditBudget(context.Background(), EditBudgetCommand{
			ID:          budgetID,
			ActorUserID: "bob",
			Title:       &title,
			Version:     1,
			When:        when,
		})
		return err
	}

	assert.Equal(t, []string{budgeterrors.CodeNotParticipant}, budgeterrors.Codes(edit(now+5)), "dated before the add")
	assert.Equal(t, []string{budgeterrors.CodeNotParticipant}, budgeterrors.Codes(edit(now+25)), "dated after the remove")
	assert.NoError(t, edit(now+15), "dated inside the membership window")
}

func seedMembershipEvent(t *testing.T, repos domain.Repositories, budgetID string, eventType domain.EventType, userID string, serverCreatedAt int64) {
	t.Helper()
	_, err := repos.Events.Append(context.Background(), domain.Event{
		ID:              uuid.NewString(),
		BudgetID:        budgetID,
		Type:            eventType,
		RecordID:        userID,
		ActorUserID:     "alice",
		When:            serverCreatedAt,
		ServerCreatedAt: serverCreatedAt,
	})
	assert.NoError(t, err)
}

func TestGetEvents_ExcludesOwnAndAdvancesCursor(t *testing.T) {
	service, _ := newTestService()
	now := time.Now().UnixMilli()
	budgetID := createTestBudget(t, service, "alice", now)

	_, err := service.AddParticipant(context.Background(), AddParticipantCommand{
		BudgetID:    budgetID,
		ActorUserID: "alice",
		UserID:      "bob",
		When:        now + 1,
	})
	assert.NoError(t, err)

	title := "Household"
	_, err = service.EditBudget(context.Background(), EditBudgetCommand{
		ID:          budgetID,
		ActorUserID: "alice",
		Title:       &title,
		Version:     1,
		When:        now + 2,
	})
	assert.NoError(t, err)

	// Bob sees everything alice did: create, two participant adds, one edit.
	events, nextKey, err := service.GetEvents(context.Background(), budgetID, "bob", 0, 0)
	assert.NoError(t, err)
	assert.Len(t, events, 4)
	assert.Equal(t, int64(4), nextKey)
	for i := 1; i < len(events); i++ {
		assert.Greater(t, events[i].Sequence, events[i-1].Sequence)
	}

	// Nothing new: the cursor does not move.
	events, nextKey, err = service.GetEvents(context.Background(), budgetID, "bob", 4, 0)
	assert.NoError(t, err)
	assert.Empty(t, events)
	assert.Equal(t, int64(4), nextKey)

	// Alice never sees her own writes in the feed.
	events, nextKey, err = service.GetEvents(context.Background(), budgetID, "alice", 0, 0)
	assert.NoError(t, err)
	assert.Empty(t, events)
	assert.Equal(t, int64(0), nextKey)
}

func TestGetEvents_RequiresCurrentMembership(t *testing.T) {
	service, _ := newTestService()
	now := time.Now().UnixMilli()
	budgetID := createTestBudget(t, service, "alice", now)

	_, _, err := service.GetEvents(context.Background(), budgetID, "mallory", 0, 0)
	assert.Equal(t, []string{budgeterrors.CodeNotParticipant}, budgeterrors.Codes(err))

	_, _, err = service.GetEvents(context.Background(), uuid.NewString(), "alice", 0, 0)
	assert.Equal(t, []string{budgeterrors.CodeBudgetNotExists}, budgeterrors.Codes(err))
}

func TestExpenseLifecycle(t *testing.T) {
	service, _ := newTestService()
	now := time.Now().UnixMilli()
	budgetID := createTestBudget(t, service, "alice", now)

	categoryID := uuid.NewString()
	_, err := service.AddCategory(context.Background(), AddCategoryCommand{
		ID:          categoryID,
		BudgetID:    budgetID,
		ActorUserID: "alice",
		Name:        "Food",
		Allocate:    "250.00",
		When:        now + 1,
	})
	assert.NoError(t, err)

	expenseID := uuid.NewString()
	accepted, err := service.AddExpense(context.Background(), AddExpenseCommand{
		ID:          expenseID,
		BudgetID:    budgetID,
		ActorUserID: "alice",
		CategoryID:  categoryID,
		Date:        "2026-08-30",
		Amount:      "12.50",
		When:        now + 2,
	})
	assert.NoError(t, err)
	assert.Equal(t, domain.EventAddExpense, accepted.Type)

	// The expense cannot reference a category of another budget.
	otherBudget := createTestBudget(t, service, "alice", now+3)
	_, err = service.AddExpense(context.Background(), AddExpenseCommand{
		ID:          uuid.NewString(),
		BudgetID:    otherBudget,
		ActorUserID: "alice",
		CategoryID:  categoryID,
		Date:        "2026-08-30",
		Amount:      "5.00",
		When:        now + 4,
	})
	assert.Equal(t, []string{budgeterrors.CodeNotCategoryOfBudget}, budgeterrors.Codes(err))

	amount := "15.00"
	edited, err := service.EditExpense(context.Background(), EditExpenseCommand{
		ID:          expenseID,
		BudgetID:    budgetID,
		ActorUserID: "alice",
		Amount:      &amount,
		Version:     1,
		When:        now + 5,
	})
	assert.NoError(t, err)
	if assert.NotNil(t, edited.Version()) {
		assert.Equal(t, 2, *edited.Version())
	}

	_, err = service.DeleteExpense(context.Background(), DeleteExpenseCommand{
		ID:          expenseID,
		BudgetID:    budgetID,
		ActorUserID: "alice",
		Version:     2,
		When:        now + 6,
	})
	assert.NoError(t, err)

	expenses, err := service.GetExpensesOfBudget(context.Background(), budgetID, "alice", 1, 10)
	assert.NoError(t, err)
	assert.Empty(t, expenses)
}
