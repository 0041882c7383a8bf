package infrastructure

import (
	"context"
	"database/sql"

	"github.com/mpaulose/budgetsync/internal/budget/domain"
	budgeterrors "github.com/mpaulose/budgetsync/internal/budget/errors"
)

type ParticipantRepository struct {
	db querier
}

func NewParticipantRepository(db *sql.DB) *ParticipantRepository {
	return &ParticipantRepository{db: db}
}

func (r *ParticipantRepository) Insert(ctx context.Context, participant domain.Participant) (domain.Participant, error) {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO participants (budget_id, user_id) VALUES ($1, $2)",
		participant.BudgetID, participant.UserID,
	)
	if err != nil {
		return domain.Participant{}, mapUniqueViolation(err, budgeterrors.CodeParticipantExists)
	}
	return participant, nil
}

func (r *ParticipantRepository) Delete(ctx context.Context, budgetID, userID string) error {
	_, err := r.db.ExecContext(ctx,
		"DELETE FROM participants WHERE budget_id = $1 AND user_id = $2",
		budgetID, userID,
	)
	return err
}

func (r *ParticipantRepository) GetBudgetParticipants(ctx context.Context, budgetID string) ([]domain.Participant, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT budget_id, user_id FROM participants WHERE budget_id = $1 ORDER BY user_id",
		budgetID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	participants := make([]domain.Participant, 0)
	for rows.Next() {
		var participant domain.Participant
		if err := rows.Scan(&participant.BudgetID, &participant.UserID); err != nil {
			return nil, err
		}
		participants = append(participants, participant)
	}
	return participants, rows.Err()
}
