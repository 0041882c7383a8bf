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

func TestPolicy_UnknownBudget(t *testing.T) {
	store := infrastructure.NewMemoryStore()
	policy := NewPolicy(store.Repos().Lookup)
	now := time.Now().UnixMilli()
	budgetID := uuid.NewString()

	assert.NoError(t, policy.CanAddBudget(context.Background(), budgetID))

	notExists := []string{budgeterrors.CodeBudgetNotExists}
	assert.Equal(t, notExists, budgeterrors.Codes(policy.CanEditBudget(context.Background(), budgetID, "alice", now)))
	assert.Equal(t, notExists, budgeterrors.Codes(policy.CanDeleteBudget(context.Background(), budgetID, "alice")))
	assert.Equal(t, notExists, budgeterrors.Codes(policy.CanAddParticipant(context.Background(), budgetID, "bob")))
	assert.Equal(t, notExists, budgeterrors.Codes(policy.CanReadBudget(context.Background(), budgetID, "alice")))
}

func TestPolicy_SoftDeletedBudgetIsGone(t *testing.T) {
	store := infrastructure.NewMemoryStore()
	policy := NewPolicy(store.Repos().Lookup)
	budgetID := uuid.NewString()

	_, err := store.Repos().Budgets.Insert(context.Background(), domain.Budget{
		ID:        budgetID,
		Title:     "Old",
		CreatedBy: "alice",
		Version:   1,
		IsDeleted: true,
	})
	assert.NoError(t, err)

	// A deleted budget neither blocks reuse of checks nor accepts mutations.
	assert.NoError(t, policy.CanAddBudget(context.Background(), budgetID))
	assert.Equal(t, []string{budgeterrors.CodeBudgetNotExists},
		budgeterrors.Codes(policy.CanDeleteBudget(context.Background(), budgetID, "alice")))
}

func TestPolicy_CategoryChecks(t *testing.T) {
	store := infrastructure.NewMemoryStore()
	policy := NewPolicy(store.Repos().Lookup)
	service := NewService(store, nil)
	now := time.Now().UnixMilli()
	budgetID := createTestBudget(t, service, "alice", now)

	categoryID := uuid.NewString()
	assert.Equal(t, []string{budgeterrors.CodeCategoryNotExists},
		budgeterrors.Codes(policy.CanEditCategory(context.Background(), budgetID, "alice", now+1, categoryID)))

	_, err := service.AddCategory(context.Background(), AddCategoryCommand{
		ID:          categoryID,
		BudgetID:    budgetID,
		ActorUserID: "alice",
		Name:        "Food",
		Allocate:    "100.00",
		When:        now + 1,
	})
	assert.NoError(t, err)

	assert.Equal(t, []string{budgeterrors.CodeCategoryExists},
		budgeterrors.Codes(policy.CanAddCategory(context.Background(), budgetID, "alice", now+2, categoryID)))
	assert.NoError(t, policy.CanEditCategory(context.Background(), budgetID, "alice", now+2, categoryID))
	assert.NoError(t, policy.CanDeleteCategory(context.Background(), budgetID, "alice", now+2, categoryID))
}

func TestPolicy_RemoveParticipant(t *testing.T) {
	store := infrastructure.NewMemoryStore()
	policy := NewPolicy(store.Repos().Lookup)
	service := NewService(store, nil)
	now := time.Now().UnixMilli()
	budgetID := createTestBudget(t, service, "alice", now)

	assert.Equal(t, []string{budgeterrors.CodeNotParticipant},
		budgeterrors.Codes(policy.CanRemoveParticipant(context.Background(), budgetID, "ghost", "alice")))

	_, err := service.AddParticipant(context.Background(), AddParticipantCommand{
		BudgetID:    budgetID,
		ActorUserID: "alice",
		UserID:      "bob",
		When:        now + 1,
	})
	assert.NoError(t, err)

	assert.NoError(t, policy.CanRemoveParticipant(context.Background(), budgetID, "bob", "bob"), "self removal")
	assert.NoError(t, policy.CanRemoveParticipant(context.Background(), budgetID, "bob", "alice"), "creator removal")
	assert.Equal(t, []string{budgeterrors.CodeNotCreator},
		budgeterrors.Codes(policy.CanRemoveParticipant(context.Background(), budgetID, "alice", "bob")))
}
