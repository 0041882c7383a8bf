package application

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/mpaulose/budgetsync/internal/budget/domain"
	budgeterrors "github.com/mpaulose/budgetsync/internal/budget/errors"
	"github.com/mpaulose/budgetsync/internal/metrics"
)

// Bounds on one uploaded batch of offline events.
const (
	MinBatchSize = 1
	MaxBatchSize = 25
)

var decimalPattern = regexp.MustCompile(`^\d+(\.\d+)?$`)

// BatchEvent is one client event as uploaded: a type tag plus the loose
// per-type fields. It is validated against its type's schema before being
// dispatched to the mutation service.
type BatchEvent struct {
	Event    string  `json:"event"`
	BudgetID string  `json:"budgetId"`
	ID       string  `json:"id,omitempty"`
	When     int64   `json:"when"`
	Version  *int    `json:"version,omitempty"`
	UserID   *string `json:"userId,omitempty"`

	Title      *string `json:"title,omitempty"`
	Details    *string `json:"details,omitempty"`
	Name       *string `json:"name,omitempty"`
	Allocate   *string `json:"allocate,omitempty"`
	CategoryID *string `json:"categoryId,omitempty"`
	Date       *string `json:"date,omitempty"`
	Amount     *string `json:"amount,omitempty"`
	Note       *string `json:"note,omitempty"`
}

// BatchResult mirrors one input event: either a success summary with the
// resulting version, or a failure summary with error codes. A failure never
// affects the other entries.
type BatchResult struct {
	Event    string   `json:"event"`
	ID       string   `json:"id,omitempty"`
	BudgetID string   `json:"budgetId,omitempty"`
	Version  *int     `json:"version,omitempty"`
	Errors   []string `json:"errors,omitempty"`
}

// ApplyBatch ingests a client-submitted list of offline events for one
// budget: sort ascending by client time so in-batch creates precede their
// edits, then apply strictly sequentially. Each event is isolated — a
// validation, authorization or version failure becomes its failure record
// and the rest of the batch continues.
func (s *Service) ApplyBatch(ctx context.Context, actorUserID string, events []BatchEvent) ([]BatchResult, error) {
	if len(events) < MinBatchSize || len(events) > MaxBatchSize {
		return nil, budgeterrors.NewValidationError(
			fmt.Sprintf("events: batch must contain between %d and %d events", MinBatchSize, MaxBatchSize))
	}

	sorted := make([]BatchEvent, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].When < sorted[j].When
	})

	metrics.BatchSize.Observe(float64(len(sorted)))

	results := make([]BatchResult, 0, len(sorted))
	for _, event := range sorted {
		results = append(results, s.applyOne(ctx, actorUserID, event))
	}
	return results, nil
}

func (s *Service) applyOne(ctx context.Context, actorUserID string, event BatchEvent) BatchResult {
	accepted, err := s.dispatch(ctx, actorUserID, event)
	if err != nil {
		if _, ok := err.(*budgeterrors.InternalError); ok {
			slog.Error("batch event failed with internal error",
				"error", err,
				"event_type", event.Event,
				"budget_id", event.BudgetID,
			)
		}
		metrics.EventsRejected.WithLabelValues(event.Event).Inc()
		return BatchResult{
			Event:    event.Event,
			ID:       event.ID,
			BudgetID: event.BudgetID,
			Errors:   budgeterrors.Codes(err),
		}
	}
	return BatchResult{
		Event:    string(accepted.Type),
		ID:       accepted.RecordID,
		BudgetID: accepted.BudgetID,
		Version:  accepted.Version(),
	}
}

// dispatch validates the event against its schema variant and routes it to
// the matching mutation. Budget creation and participant changes go through
// their dedicated endpoints, not the offline batch.
func (s *Service) dispatch(ctx context.Context, actorUserID string, event BatchEvent) (domain.Event, error) {
	if err := validateCommon(event); err != nil {
		return domain.Event{}, err
	}

	switch domain.EventType(event.Event) {
	case domain.EventEditBudget:
		if err := validate(event, needsVersion); err != nil {
			return domain.Event{}, err
		}
		return s.EditBudget(ctx, EditBudgetCommand{
			ID:          event.BudgetID,
			ActorUserID: actorUserID,
			Title:       event.Title,
			Details:     event.Details,
			Version:     *event.Version,
			When:        event.When,
		})

	case domain.EventDeleteBudget:
		if err := validate(event, needsVersion); err != nil {
			return domain.Event{}, err
		}
		return s.DeleteBudget(ctx, DeleteBudgetCommand{
			ID:          event.BudgetID,
			ActorUserID: actorUserID,
			Version:     *event.Version,
			When:        event.When,
		})

	case domain.EventAddCategory:
		if err := validate(event, needsID, needsName, needsAllocate); err != nil {
			return domain.Event{}, err
		}
		return s.AddCategory(ctx, AddCategoryCommand{
			ID:          event.ID,
			BudgetID:    event.BudgetID,
			ActorUserID: actorUserID,
			Name:        *event.Name,
			Allocate:    *event.Allocate,
			When:        event.When,
		})

	case domain.EventEditCategory:
		if err := validate(event, needsID, needsVersion, optionalAllocate); err != nil {
			return domain.Event{}, err
		}
		return s.EditCategory(ctx, EditCategoryCommand{
			ID:          event.ID,
			BudgetID:    event.BudgetID,
			ActorUserID: actorUserID,
			Name:        event.Name,
			Allocate:    event.Allocate,
			Version:     *event.Version,
			When:        event.When,
		})

	case domain.EventDeleteCategory:
		if err := validate(event, needsID, needsVersion); err != nil {
			return domain.Event{}, err
		}
		return s.DeleteCategory(ctx, DeleteCategoryCommand{
			ID:          event.ID,
			BudgetID:    event.BudgetID,
			ActorUserID: actorUserID,
			Version:     *event.Version,
			When:        event.When,
		})

	case domain.EventAddExpense:
		if err := validate(event, needsID, needsCategoryID, needsDate, needsAmount); err != nil {
			return domain.Event{}, err
		}
		return s.AddExpense(ctx, AddExpenseCommand{
			ID:          event.ID,
			BudgetID:    event.BudgetID,
			ActorUserID: actorUserID,
			CategoryID:  *event.CategoryID,
			Date:        *event.Date,
			Amount:      *event.Amount,
			Note:        event.Note,
			When:        event.When,
		})

	case domain.EventEditExpense:
		if err := validate(event, needsID, needsVersion, optionalDate, optionalAmount); err != nil {
			return domain.Event{}, err
		}
		return s.EditExpense(ctx, EditExpenseCommand{
			ID:          event.ID,
			BudgetID:    event.BudgetID,
			ActorUserID: actorUserID,
			Date:        event.Date,
			Amount:      event.Amount,
			Note:        event.Note,
			Version:     *event.Version,
			When:        event.When,
		})

	case domain.EventDeleteExpense:
		if err := validate(event, needsID, needsVersion); err != nil {
			return domain.Event{}, err
		}
		return s.DeleteExpense(ctx, DeleteExpenseCommand{
			ID:          event.ID,
			BudgetID:    event.BudgetID,
			ActorUserID: actorUserID,
			Version:     *event.Version,
			When:        event.When,
		})

	default:
		return domain.Event{}, budgeterrors.NewValidationError(budgeterrors.CodeUnsupportedEvent)
	}
}

// Per-field checks, composed per event type. Each appends its problems so a
// failure record reports everything wrong with the event at once.

type fieldCheck func(event BatchEvent, errs *budgeterrors.ValidationErrors)

func validateCommon(event BatchEvent) error {
	errs := &budgeterrors.ValidationErrors{}
	if _, err := uuid.Parse(event.BudgetID); err != nil {
		errs.Add(budgeterrors.NewFieldValidationError("budgetId", "must be a uuid"))
	}
	if event.When <= 0 {
		errs.Add(budgeterrors.NewFieldValidationError("when", "must be positive epoch millis"))
	}
	if errs.HasErrors() {
		return errs
	}
	return nil
}

func validate(event BatchEvent, checks ...fieldCheck) error {
	errs := &budgeterrors.ValidationErrors{}
	for _, check := range checks {
		check(event, errs)
	}
	if errs.HasErrors() {
		return errs
	}
	return nil
}

func needsID(event BatchEvent, errs *budgeterrors.ValidationErrors) {
	if event.ID == "" {
		errs.Add(budgeterrors.NewFieldValidationError("id", "is required"))
	}
}

func needsVersion(event BatchEvent, errs *budgeterrors.ValidationErrors) {
	if event.Version == nil || *event.Version < 0 {
		errs.Add(budgeterrors.NewFieldValidationError("version", "must be a non-negative integer"))
	}
}

func needsName(event BatchEvent, errs *budgeterrors.ValidationErrors) {
	if event.Name == nil || *event.Name == "" {
		errs.Add(budgeterrors.NewFieldValidationError("name", "is required"))
	}
}

func needsAllocate(event BatchEvent, errs *budgeterrors.ValidationErrors) {
	if event.Allocate == nil || !decimalPattern.MatchString(*event.Allocate) {
		errs.Add(budgeterrors.NewFieldValidationError("allocate", "must be a decimal string"))
	}
}

func optionalAllocate(event BatchEvent, errs *budgeterrors.ValidationErrors) {
	if event.Allocate != nil && !decimalPattern.MatchString(*event.Allocate) {
		errs.Add(budgeterrors.NewFieldValidationError("allocate", "must be a decimal string"))
	}
}

func needsCategoryID(event BatchEvent, errs *budgeterrors.ValidationErrors) {
	if event.CategoryID == nil || *event.CategoryID == "" {
		errs.Add(budgeterrors.NewFieldValidationError("categoryId", "is required"))
	}
}

func needsDate(event BatchEvent, errs *budgeterrors.ValidationErrors) {
	if event.Date == nil || !isISODate(*event.Date) {
		errs.Add(budgeterrors.NewFieldValidationError("date", "must be an ISO date (YYYY-MM-DD)"))
	}
}

func optionalDate(event BatchEvent, errs *budgeterrors.ValidationErrors) {
	if event.Date != nil && !isISODate(*event.Date) {
		errs.Add(budgeterrors.NewFieldValidationError("date", "must be an ISO date (YYYY-MM-DD)"))
	}
}

func needsAmount(event BatchEvent, errs *budgeterrors.ValidationErrors) {
	if event.Amount == nil || !decimalPattern.MatchString(*event.Amount) {
		errs.Add(budgeterrors.NewFieldValidationError("amount", "must be a decimal string"))
	}
}

func optionalAmount(event BatchEvent, errs *budgeterrors.ValidationErrors) {
	if event.Amount != nil && !decimalPattern.MatchString(*event.Amount) {
		errs.Add(budgeterrors.NewFieldValidationError("amount", "must be a decimal string"))
	}
}

func isISODate(value string) bool {
	_, err := time.Parse("2006-01-02", value)
	return err == nil
}
