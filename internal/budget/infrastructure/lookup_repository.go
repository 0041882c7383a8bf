package infrastructure

import (
	"context"
	"database/sql"
	"errors"

	"github.com/mpaulose/budgetsync/internal/budget/domain"
)

// LookupRepository serves the policy's existence, creator and membership
// questions with narrow indexed queries.
type LookupRepository struct {
	db querier
}

func NewLookupRepository(db *sql.DB) *LookupRepository {
	return &LookupRepository{db: db}
}

func (r *LookupRepository) BudgetExists(ctx context.Context, budgetID string) (bool, error) {
	var isDeleted bool
	err := r.db.QueryRowContext(ctx,
		"SELECT is_deleted FROM budgets WHERE id = $1", budgetID).Scan(&isDeleted)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return !isDeleted, nil
}

func (r *LookupRepository) IsCreatorOfBudget(ctx context.Context, budgetID, userID string) (bool, error) {
	return r.exists(ctx,
		"SELECT EXISTS(SELECT 1 FROM budgets WHERE id = $1 AND created_by = $2)", budgetID, userID)
}

func (r *LookupRepository) CategoryExists(ctx context.Context, categoryID string) (bool, error) {
	return r.exists(ctx,
		"SELECT EXISTS(SELECT 1 FROM categories WHERE id = $1)", categoryID)
}

func (r *LookupRepository) IsCategoryOfBudget(ctx context.Context, budgetID, categoryID string) (bool, error) {
	return r.exists(ctx,
		"SELECT EXISTS(SELECT 1 FROM categories WHERE id = $1 AND budget_id = $2)", categoryID, budgetID)
}

func (r *LookupRepository) ExpenseExists(ctx context.Context, expenseID string) (bool, error) {
	return r.exists(ctx,
		"SELECT EXISTS(SELECT 1 FROM expenses WHERE id = $1)", expenseID)
}

func (r *LookupRepository) IsParticipantOfBudget(ctx context.Context, budgetID, userID string) (bool, error) {
	return r.exists(ctx,
		"SELECT EXISTS(SELECT 1 FROM participants WHERE budget_id = $1 AND user_id = $2)", budgetID, userID)
}

func (r *LookupRepository) CountBudgetParticipants(ctx context.Context, budgetID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM participants WHERE budget_id = $1", budgetID).Scan(&count)
	return count, err
}

// WasParticipantAtTime reconstructs point-in-time membership from the event
// log: the latest participant.add and participant.remove server timestamps
// for the pair, combined by the pure membership rule. Served by the
// (budget_id, record_id, type, server_created_at) index, not a log scan.
func (r *LookupRepository) WasParticipantAtTime(ctx context.Context, budgetID, userID string, atMillis int64) (bool, error) {
	lastAdded, err := r.lastParticipantEvent(ctx, budgetID, userID, domain.EventAddParticipant)
	if err != nil {
		return false, err
	}
	lastRemoved, err := r.lastParticipantEvent(ctx, budgetID, userID, domain.EventRemoveParticipant)
	if err != nil {
		return false, err
	}
	return domain.WasParticipantAt(lastAdded, lastRemoved, atMillis), nil
}

func (r *LookupRepository) lastParticipantEvent(ctx context.Context, budgetID, userID string, t domain.EventType) (*int64, error) {
	var at int64
	err := r.db.QueryRowContext(ctx,
		`SELECT server_created_at FROM accepted_events
		 WHERE budget_id = $1 AND record_id = $2 AND type = $3
		 ORDER BY server_created_at DESC
		 LIMIT 1`,
		budgetID, userID, string(t),
	).Scan(&at)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &at, nil
}

func (r *LookupRepository) exists(ctx context.Context, query string, args ...any) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&exists)
	return exists, err
}
