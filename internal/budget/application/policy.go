package application

import (
	"context"

	"github.com/mpaulose/budgetsync/internal/budget/domain"
	budgeterrors "github.com/mpaulose/budgetsync/internal/budget/errors"
)

// Policy is the stateless authorization layer consulted before every
// mutation. Each check either returns nil or a typed error carrying a stable
// code. Existence and uniqueness checks here are a fast path only; the
// storage constraints remain the source of truth under concurrent inserts.
type Policy struct {
	lookup domain.LookupRepository
}

func NewPolicy(lookup domain.LookupRepository) *Policy {
	return &Policy{lookup: lookup}
}

func (p *Policy) budgetExists(ctx context.Context, budgetID string) error {
	exists, err := p.lookup.BudgetExists(ctx, budgetID)
	if err != nil {
		return budgeterrors.NewInternalError(err)
	}
	if !exists {
		return budgeterrors.NewNotFoundError(budgeterrors.CodeBudgetNotExists)
	}
	return nil
}

func (p *Policy) wasParticipant(ctx context.Context, budgetID, userID string, atMillis int64) error {
	ok, err := p.lookup.WasParticipantAtTime(ctx, budgetID, userID, atMillis)
	if err != nil {
		return budgeterrors.NewInternalError(err)
	}
	if !ok {
		return budgeterrors.NewAuthorizationError(budgeterrors.CodeNotParticipant)
	}
	return nil
}

func (p *Policy) isCreator(ctx context.Context, budgetID, userID string) error {
	ok, err := p.lookup.IsCreatorOfBudget(ctx, budgetID, userID)
	if err != nil {
		return budgeterrors.NewInternalError(err)
	}
	if !ok {
		return budgeterrors.NewAuthorizationError(budgeterrors.CodeNotCreator)
	}
	return nil
}

// CanAddBudget fails when the client-generated id is already taken.
func (p *Policy) CanAddBudget(ctx context.Context, budgetID string) error {
	exists, err := p.lookup.BudgetExists(ctx, budgetID)
	if err != nil {
		return budgeterrors.NewInternalError(err)
	}
	if exists {
		return budgeterrors.NewConflictError(budgeterrors.CodeBudgetExists)
	}
	return nil
}

// CanEditBudget requires the budget to exist and the actor to have been a
// participant at the instant the edit happened on the client.
func (p *Policy) CanEditBudget(ctx context.Context, budgetID, actorUserID string, atMillis int64) error {
	if err := p.budgetExists(ctx, budgetID); err != nil {
		return err
	}
	return p.wasParticipant(ctx, budgetID, actorUserID, atMillis)
}

// CanDeleteBudget allows only the original creator to delete.
func (p *Policy) CanDeleteBudget(ctx context.Context, budgetID, actorUserID string) error {
	if err := p.budgetExists(ctx, budgetID); err != nil {
		return err
	}
	return p.isCreator(ctx, budgetID, actorUserID)
}

// CanAddParticipant enforces the active-membership cap and uniqueness of the
// target user within the budget.
func (p *Policy) CanAddParticipant(ctx context.Context, budgetID, userID string) error {
	if err := p.budgetExists(ctx, budgetID); err != nil {
		return err
	}
	count, err := p.lookup.CountBudgetParticipants(ctx, budgetID)
	if err != nil {
		return budgeterrors.NewInternalError(err)
	}
	if count >= domain.MaxParticipantsPerBudget {
		return budgeterrors.NewAuthorizationError(budgeterrors.CodeParticipantLimitReached)
	}
	active, err := p.lookup.IsParticipantOfBudget(ctx, budgetID, userID)
	if err != nil {
		return budgeterrors.NewInternalError(err)
	}
	if active {
		return budgeterrors.NewConflictError(budgeterrors.CodeParticipantExists)
	}
	return nil
}

// CanRemoveParticipant lets any participant remove themselves; removing
// someone else requires creator rights.
func (p *Policy) CanRemoveParticipant(ctx context.Context, budgetID, targetUserID, actorUserID string) error {
	if err := p.budgetExists(ctx, budgetID); err != nil {
		return err
	}
	active, err := p.lookup.IsParticipantOfBudget(ctx, budgetID, targetUserID)
	if err != nil {
		return budgeterrors.NewInternalError(err)
	}
	if !active {
		return budgeterrors.NewAuthorizationError(budgeterrors.CodeNotParticipant)
	}
	if actorUserID != targetUserID {
		return p.isCreator(ctx, budgetID, actorUserID)
	}
	return nil
}

func (p *Policy) CanAddCategory(ctx context.Context, budgetID, actorUserID string, atMillis int64, categoryID string) error {
	if err := p.budgetExists(ctx, budgetID); err != nil {
		return err
	}
	exists, err := p.lookup.CategoryExists(ctx, categoryID)
	if err != nil {
		return budgeterrors.NewInternalError(err)
	}
	if exists {
		return budgeterrors.NewConflictError(budgeterrors.CodeCategoryExists)
	}
	return p.wasParticipant(ctx, budgetID, actorUserID, atMillis)
}

func (p *Policy) CanEditCategory(ctx context.Context, budgetID, actorUserID string, atMillis int64, categoryID string) error {
	if err := p.budgetExists(ctx, budgetID); err != nil {
		return err
	}
	exists, err := p.lookup.CategoryExists(ctx, categoryID)
	if err != nil {
		return budgeterrors.NewInternalError(err)
	}
	if !exists {
		return budgeterrors.NewNotFoundError(budgeterrors.CodeCategoryNotExists)
	}
	return p.wasParticipant(ctx, budgetID, actorUserID, atMillis)
}

func (p *Policy) CanDeleteCategory(ctx context.Context, budgetID, actorUserID string, atMillis int64, categoryID string) error {
	return p.CanEditCategory(ctx, budgetID, actorUserID, atMillis, categoryID)
}

func (p *Policy) CanAddExpense(ctx context.Context, budgetID, actorUserID string, atMillis int64, expenseID, categoryID string) error {
	if err := p.budgetExists(ctx, budgetID); err != nil {
		return err
	}
	if err := p.wasParticipant(ctx, budgetID, actorUserID, atMillis); err != nil {
		return err
	}
	ofBudget, err := p.lookup.IsCategoryOfBudget(ctx, budgetID, categoryID)
	if err != nil {
		return budgeterrors.NewInternalError(err)
	}
	if !ofBudget {
		return budgeterrors.NewAuthorizationError(budgeterrors.CodeNotCategoryOfBudget)
	}
	exists, err := p.lookup.ExpenseExists(ctx, expenseID)
	if err != nil {
		return budgeterrors.NewInternalError(err)
	}
	if exists {
		return budgeterrors.NewConflictError(budgeterrors.CodeExpenseExists)
	}
	return nil
}

func (p *Policy) CanEditExpense(ctx context.Context, budgetID, actorUserID string, atMillis int64, expenseID string) error {
	if err := p.budgetExists(ctx, budgetID); err != nil {
		return err
	}
	exists, err := p.lookup.ExpenseExists(ctx, expenseID)
	if err != nil {
		return budgeterrors.NewInternalError(err)
	}
	if !exists {
		return budgeterrors.NewNotFoundError(budgeterrors.CodeExpenseNotExists)
	}
	return p.wasParticipant(ctx, budgetID, actorUserID, atMillis)
}

func (p *Policy) CanDeleteExpense(ctx context.Context, budgetID, actorUserID string, atMillis int64, expenseID string) error {
	return p.CanEditExpense(ctx, budgetID, actorUserID, atMillis, expenseID)
}

// CanReadBudget gates snapshot reads and the sync feed: the budget must exist
// and the requester must currently be a participant.
func (p *Policy) CanReadBudget(ctx context.Context, budgetID, userID string) error {
	if err := p.budgetExists(ctx, budgetID); err != nil {
		return err
	}
	active, err := p.lookup.IsParticipantOfBudget(ctx, budgetID, userID)
	if err != nil {
		return budgeterrors.NewInternalError(err)
	}
	if !active {
		return budgeterrors.NewAuthorizationError(budgeterrors.CodeNotParticipant)
	}
	return nil
}
