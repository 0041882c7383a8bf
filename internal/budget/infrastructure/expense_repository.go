package infrastructure

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mpaulose/budgetsync/internal/budget/domain"
	budgeterrors "github.com/mpaulose/budgetsync/internal/budget/errors"
)

const expenseColumns = "id, budget_id, category_id, date, amount, note, created_by, version, offline_last_modified, server_created_at"

type ExpenseRepository struct {
	db querier
}

func NewExpenseRepository(db *sql.DB) *ExpenseRepository {
	return &ExpenseRepository{db: db}
}

func (r *ExpenseRepository) Insert(ctx context.Context, expense domain.Expense) (domain.Expense, error) {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO expenses (id, budget_id, category_id, date, amount, note, created_by, version, offline_last_modified, server_created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		expense.ID, expense.BudgetID, expense.CategoryID, expense.Date, expense.Amount,
		expense.Note, expense.CreatedBy, expense.Version, expense.OfflineLastModified, expense.ServerCreatedAt,
	)
	if err != nil {
		return domain.Expense{}, mapUniqueViolation(err, budgeterrors.CodeExpenseExists)
	}
	return expense, nil
}

func (r *ExpenseRepository) GetByID(ctx context.Context, id string) (*domain.Expense, error) {
	row := r.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT %s FROM expenses WHERE id = $1", expenseColumns), id)
	expense, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &expense, nil
}

func (r *ExpenseRepository) UpdateWithVersion(ctx context.Context, id string, patch domain.ExpensePatch, expectedVersion int, newLastModified int64) (domain.Expense, error) {
	query := "UPDATE expenses SET version = version + 1, offline_last_modified = $1"
	args := []any{newLastModified}

	if patch.Date != nil {
		args = append(args, *patch.Date)
		query += fmt.Sprintf(", date = $%d", len(args))
	}
	if patch.Amount != nil {
		args = append(args, *patch.Amount)
		query += fmt.Sprintf(", amount = $%d", len(args))
	}
	if patch.Note != nil {
		args = append(args, *patch.Note)
		query += fmt.Sprintf(", note = $%d", len(args))
	}

	args = append(args, id, expectedVersion)
	query += fmt.Sprintf(" WHERE id = $%d AND version = $%d RETURNING %s", len(args)-1, len(args), expenseColumns)

	expense, err := scanExpense(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Expense{}, budgeterrors.NewConflictError(budgeterrors.CodeVersionMismatch)
	}
	if err != nil {
		return domain.Expense{}, err
	}
	return expense, nil
}

func (r *ExpenseRepository) DeleteWithVersion(ctx context.Context, id string, expectedVersion int) error {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM expenses WHERE id = $1 AND version = $2", id, expectedVersion)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return budgeterrors.NewConflictError(budgeterrors.CodeVersionMismatch)
	}
	return nil
}

func (r *ExpenseRepository) GetBudgetExpenses(ctx context.Context, budgetID string, limit, offset int) ([]domain.Expense, error) {
	rows, err := r.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT %s FROM expenses WHERE budget_id = $1
		 ORDER BY date DESC, server_created_at DESC
		 LIMIT $2 OFFSET $3`, expenseColumns),
		budgetID, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	expenses := make([]domain.Expense, 0)
	for rows.Next() {
		expense, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		expenses = append(expenses, expense)
	}
	return expenses, rows.Err()
}

func scanExpense(row rowScanner) (domain.Expense, error) {
	var expense domain.Expense
	err := row.Scan(
		&expense.ID, &expense.BudgetID, &expense.CategoryID, &expense.Date, &expense.Amount,
		&expense.Note, &expense.CreatedBy, &expense.Version, &expense.OfflineLastModified, &expense.ServerCreatedAt,
	)
	return expense, err
}
