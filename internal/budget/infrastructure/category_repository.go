package infrastructure

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mpaulose/budgetsync/internal/budget/domain"
	budgeterrors "github.com/mpaulose/budgetsync/internal/budget/errors"
)

const categoryColumns = "id, budget_id, name, allocate, created_by, version, offline_last_modified, server_created_at"

type CategoryRepository struct {
	db querier
}

func NewCategoryRepository(db *sql.DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

func (r *CategoryRepository) Insert(ctx context.Context, category domain.Category) (domain.Category, error) {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (id, budget_id, name, allocate, created_by, version, offline_last_modified, server_created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		category.ID, category.BudgetID, category.Name, category.Allocate,
		category.CreatedBy, category.Version, category.OfflineLastModified, category.ServerCreatedAt,
	)
	if err != nil {
		return domain.Category{}, mapUniqueViolation(err, budgeterrors.CodeCategoryExists)
	}
	return category, nil
}

func (r *CategoryRepository) GetByID(ctx context.Context, id string) (*domain.Category, error) {
	row := r.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT %s FROM categories WHERE id = $1", categoryColumns), id)
	category, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &category, nil
}

func (r *CategoryRepository) UpdateWithVersion(ctx context.Context, id string, patch domain.CategoryPatch, expectedVersion int, newLastModified int64) (domain.Category, error) {
	query := "UPDATE categories SET version = version + 1, offline_last_modified = $1"
	args := []any{newLastModified}

	if patch.Name != nil {
		args = append(args, *patch.Name)
		query += fmt.Sprintf(", name = $%d", len(args))
	}
	if patch.Allocate != nil {
		args = append(args, *patch.Allocate)
		query += fmt.Sprintf(", allocate = $%d", len(args))
	}

	args = append(args, id, expectedVersion)
	query += fmt.Sprintf(" WHERE id = $%d AND version = $%d RETURNING %s", len(args)-1, len(args), categoryColumns)

	category, err := scanCategory(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Category{}, budgeterrors.NewConflictError(budgeterrors.CodeVersionMismatch)
	}
	if err != nil {
		return domain.Category{}, err
	}
	return category, nil
}

func (r *CategoryRepository) DeleteWithVersion(ctx context.Context, id string, expectedVersion int) error {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM categories WHERE id = $1 AND version = $2", id, expectedVersion)
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

func (r *CategoryRepository) GetBudgetCategories(ctx context.Context, budgetID string) ([]domain.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		fmt.Sprintf("SELECT %s FROM categories WHERE budget_id = $1 ORDER BY server_created_at", categoryColumns),
		budgetID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := make([]domain.Category, 0)
	for rows.Next() {
		category, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		categories = append(categories, category)
	}
	return categories, rows.Err()
}

func scanCategory(row rowScanner) (domain.Category, error) {
	var category domain.Category
	err := row.Scan(
		&category.ID, &category.BudgetID, &category.Name, &category.Allocate,
		&category.CreatedBy, &category.Version, &category.OfflineLastModified, &category.ServerCreatedAt,
	)
	return category, err
}
