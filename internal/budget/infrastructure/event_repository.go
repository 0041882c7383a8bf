package infrastructure

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/mpaulose/budgetsync/internal/budget/domain"
)

type EventRepository struct {
	db querier
}

func NewEventRepository(db *sql.DB) *EventRepository {
	return &EventRepository{db: db}
}

// Append stamps the event with the next per-budget sequence and inserts it.
// The counter row is atomically incremented by the same statement flow inside
// the caller's transaction, so concurrent appends for one budget serialize on
// the counter row lock and sequences stay strictly increasing.
func (r *EventRepository) Append(ctx context.Context, event domain.Event) (domain.Event, error) {
	data, err := marshalEventData(event.Data)
	if err != nil {
		return domain.Event{}, err
	}

	err = r.db.QueryRowContext(ctx,
		`WITH next AS (
			INSERT INTO budget_sequences (budget_id, last_sequence)
			VALUES ($2, 1)
			ON CONFLICT (budget_id)
			DO UPDATE SET last_sequence = budget_sequences.last_sequence + 1
			RETURNING last_sequence
		)
		INSERT INTO accepted_events (id, sequence_no, budget_id, type, record_id, user_id, occurred_at, server_created_at, data)
		SELECT $1, next.last_sequence, $2, $3, $4, $5, $6, $7, $8 FROM next
		RETURNING sequence_no`,
		event.ID, event.BudgetID, string(event.Type), event.RecordID,
		event.ActorUserID, event.When, event.ServerCreatedAt, data,
	).Scan(&event.Sequence)
	if err != nil {
		return domain.Event{}, err
	}
	return event, nil
}

func (r *EventRepository) ReadAfter(ctx context.Context, budgetID, excludeUserID string, afterSequence int64, limit int) ([]domain.Event, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, sequence_no, budget_id, type, record_id, user_id, occurred_at, server_created_at, data
		 FROM accepted_events
		 WHERE budget_id = $1 AND user_id <> $2 AND sequence_no > $3
		 ORDER BY sequence_no ASC
		 LIMIT $4`,
		budgetID, excludeUserID, afterSequence, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]domain.Event, 0)
	for rows.Next() {
		var event domain.Event
		var eventType string
		var data []byte
		if err := rows.Scan(
			&event.ID, &event.Sequence, &event.BudgetID, &eventType, &event.RecordID,
			&event.ActorUserID, &event.When, &event.ServerCreatedAt, &data,
		); err != nil {
			return nil, err
		}
		event.Type = domain.EventType(eventType)
		event.Data, err = domain.DecodeEventData(event.Type, data)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

func marshalEventData(data domain.EventData) ([]byte, error) {
	if data == nil {
		return nil, nil
	}
	return json.Marshal(data)
}
