package infrastructure

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mpaulose/budgetsync/internal/budget/domain"
	budgeterrors "github.com/mpaulose/budgetsync/internal/budget/errors"
)

const budgetColumns = "id, title, details, created_by, version, offline_last_modified, server_created_at, is_deleted"

type BudgetRepository struct {
	db querier
}

func NewBudgetRepository(db *sql.DB) *BudgetRepository {
	return &BudgetRepository{db: db}
}

func (r *BudgetRepository) Insert(ctx context.Context, budget domain.Budget) (domain.Budget, error) {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO budgets (id, title, details, created_by, version, offline_last_modified, server_created_at, is_deleted)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		budget.ID, budget.Title, budget.Details, budget.CreatedBy,
		budget.Version, budget.OfflineLastModified, budget.ServerCreatedAt, budget.IsDeleted,
	)
	if err != nil {
		return domain.Budget{}, mapUniqueViolation(err, budgeterrors.CodeBudgetExists)
	}
	return budget, nil
}

func (r *BudgetRepository) GetByID(ctx context.Context, id string) (*domain.Budget, error) {
	row := r.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT %s FROM budgets WHERE id = $1", budgetColumns), id)
	budget, err := scanBudget(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &budget, nil
}

// UpdateWithVersion is the conditional write of the concurrency guard: the
// row only changes when its stored version equals expectedVersion, and the
// version advances by exactly one. No returned row means mismatch (or a
// vanished aggregate, indistinguishable from here).
func (r *BudgetRepository) UpdateWithVersion(ctx context.Context, id string, patch domain.BudgetPatch, expectedVersion int, newLastModified int64) (domain.Budget, error) {
	query := "UPDATE budgets SET version = version + 1, offline_last_modified = $1"
	args := []any{newLastModified}

	if patch.Title != nil {
		args = append(args, *patch.Title)
		query += fmt.Sprintf(", title = $%d", len(args))
	}
	if patch.Details != nil {
		args = append(args, *patch.Details)
		query += fmt.Sprintf(", details = $%d", len(args))
	}
	if patch.IsDeleted != nil {
		args = append(args, *patch.IsDeleted)
		query += fmt.Sprintf(", is_deleted = $%d", len(args))
	}

	args = append(args, id, expectedVersion)
	query += fmt.Sprintf(" WHERE id = $%d AND version = $%d RETURNING %s", len(args)-1, len(args), budgetColumns)

	budget, err := scanBudget(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Budget{}, budgeterrors.NewConflictError(budgeterrors.CodeVersionMismatch)
	}
	if err != nil {
		return domain.Budget{}, err
	}
	return budget, nil
}

func (r *BudgetRepository) GetBudgetsOfParticipant(ctx context.Context, userID string, limit, offset int) ([]domain.Budget, error) {
	rows, err := r.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT %s FROM budgets b
		 JOIN participants p ON p.budget_id = b.id
		 WHERE p.user_id = $1 AND b.is_deleted = FALSE
		 ORDER BY b.server_created_at
		 LIMIT $2 OFFSET $3`, prefixColumns("b", budgetColumns)),
		userID, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	budgets := make([]domain.Budget, 0)
	for rows.Next() {
		budget, err := scanBudget(rows)
		if err != nil {
			return nil, err
		}
		budgets = append(budgets, budget)
	}
	return budgets, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBudget(row rowScanner) (domain.Budget, error) {
	var budget domain.Budget
	err := row.Scan(
		&budget.ID, &budget.Title, &budget.Details, &budget.CreatedBy,
		&budget.Version, &budget.OfflineLastModified, &budget.ServerCreatedAt, &budget.IsDeleted,
	)
	return budget, err
}
