package infrastructure

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mpaulose/budgetsync/internal/budget/domain"
)

func TestMemoryStore_RollbackOnError(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.RunInTransaction(ctx, func(repos domain.Repositories) error {
		if _, err := repos.Budgets.Insert(ctx, domain.Budget{ID: "b-1", Title: "Groceries", CreatedBy: "alice", Version: 1}); err != nil {
			return err
		}
		if _, err := repos.Events.Append(ctx, domain.Event{ID: "e-1", BudgetID: "b-1", Type: domain.EventCreateBudget}); err != nil {
			return err
		}
		return boom
	})
	assert.Equal(t, boom, err)

	budget, err := store.Repos().Budgets.GetByID(ctx, "b-1")
	assert.NoError(t, err)
	assert.Nil(t, budget)
	assert.Empty(t, store.Events("b-1"))

	// The sequence counter rolled back too: the next append starts at 1.
	err = store.RunInTransaction(ctx, func(repos domain.Repositories) error {
		event, err := repos.Events.Append(ctx, domain.Event{ID: "e-2", BudgetID: "b-1", Type: domain.EventCreateBudget})
		assert.Equal(t, int64(1), event.Sequence)
		return err
	})
	assert.NoError(t, err)
}
