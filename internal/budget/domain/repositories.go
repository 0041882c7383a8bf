package domain

import "context"

// BudgetRepository persists budget aggregates. Conditional writes take the
// version the client last saw; zero matched rows surfaces as a
// VERSION_MISMATCH conflict because the store cannot tell a missing row from
// a stale one.
type BudgetRepository interface {
	Insert(ctx context.Context, budget Budget) (Budget, error)
	GetByID(ctx context.Context, id string) (*Budget, error)
	UpdateWithVersion(ctx context.Context, id string, patch BudgetPatch, expectedVersion int, newLastModified int64) (Budget, error)
	GetBudgetsOfParticipant(ctx context.Context, userID string, limit, offset int) ([]Budget, error)
}

type CategoryRepository interface {
	Insert(ctx context.Context, category Category) (Category, error)
	GetByID(ctx context.Context, id string) (*Category, error)
	UpdateWithVersion(ctx context.Context, id string, patch CategoryPatch, expectedVersion int, newLastModified int64) (Category, error)
	DeleteWithVersion(ctx context.Context, id string, expectedVersion int) error
	GetBudgetCategories(ctx context.Context, budgetID string) ([]Category, error)
}

type ExpenseRepository interface {
	Insert(ctx context.Context, expense Expense) (Expense, error)
	GetByID(ctx context.Context, id string) (*Expense, error)
	UpdateWithVersion(ctx context.Context, id string, patch ExpensePatch, expectedVersion int, newLastModified int64) (Expense, error)
	DeleteWithVersion(ctx context.Context, id string, expectedVersion int) error
	GetBudgetExpenses(ctx context.Context, budgetID string, limit, offset int) ([]Expense, error)
}

type ParticipantRepository interface {
	Insert(ctx context.Context, participant Participant) (Participant, error)
	Delete(ctx context.Context, budgetID, userID string) error
	GetBudgetParticipants(ctx context.Context, budgetID string) ([]Participant, error)
}

// EventRepository is the append-only log. Append stamps the event with the
// next sequence for its budget; the assignment is atomic with respect to
// concurrent appends for the same budget. Events are never updated or
// deleted.
type EventRepository interface {
	Append(ctx context.Context, event Event) (Event, error)
	ReadAfter(ctx context.Context, budgetID, excludeUserID string, afterSequence int64, limit int) ([]Event, error)
}

// LookupRepository answers the point-in-time and existence questions the
// authorization policy asks. All checks are fast-path reads; uniqueness is
// ultimately guaranteed by storage constraints, not by these lookups.
type LookupRepository interface {
	BudgetExists(ctx context.Context, budgetID string) (bool, error)
	IsCreatorOfBudget(ctx context.Context, budgetID, userID string) (bool, error)
	CategoryExists(ctx context.Context, categoryID string) (bool, error)
	IsCategoryOfBudget(ctx context.Context, budgetID, categoryID string) (bool, error)
	ExpenseExists(ctx context.Context, expenseID string) (bool, error)
	IsParticipantOfBudget(ctx context.Context, budgetID, userID string) (bool, error)
	CountBudgetParticipants(ctx context.Context, budgetID string) (int, error)
	WasParticipantAtTime(ctx context.Context, budgetID, userID string, atMillis int64) (bool, error)
}

// Repositories bundles every store the mutation service touches. Inside
// RunInTransaction all of them are bound to the same database transaction.
type Repositories struct {
	Budgets      BudgetRepository
	Categories   CategoryRepository
	Expenses     ExpenseRepository
	Participants ParticipantRepository
	Events       EventRepository
	Lookup       LookupRepository
}

// Store hands out repositories and runs transactional units of work. A
// returned error from fn rolls the whole unit back; the aggregate mutation
// and its event append always share one unit.
type Store interface {
	Repos() Repositories
	RunInTransaction(ctx context.Context, fn func(repos Repositories) error) error
}
