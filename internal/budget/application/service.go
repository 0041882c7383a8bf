package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/mpaulose/budgetsync/internal/budget/domain"
	budgeterrors "github.com/mpaulose/budgetsync/internal/budget/errors"
	"github.com/mpaulose/budgetsync/internal/metrics"
)

// MaxSyncResults is the hard cap on one page of the sync feed.
const MaxSyncResults = 100

// EventPublisher receives every accepted event after its transaction has
// committed. Publication is best effort and never fails a mutation.
type EventPublisher interface {
	Publish(event domain.Event) error
}

// Service is the mutation service: one entry point per event type, each
// running authorize → mutate aggregate + append event in one transaction →
// return the appended event as the synchronization record.
type Service struct {
	store     domain.Store
	policy    *Policy
	publisher EventPublisher
}

func NewService(store domain.Store, publisher EventPublisher) *Service {
	return &Service{
		store:     store,
		policy:    NewPolicy(store.Repos().Lookup),
		publisher: publisher,
	}
}

type CreateBudgetCommand struct {
	ID          string
	ActorUserID string
	Title       string
	Details     *string
	When        int64
}

type EditBudgetCommand struct {
	ID          string
	ActorUserID string
	Title       *string
	Details     *string
	Version     int
	When        int64
}

type DeleteBudgetCommand struct {
	ID          string
	ActorUserID string
	Version     int
	When        int64
}

type AddParticipantCommand struct {
	BudgetID    string
	ActorUserID string
	UserID      string
	When        int64
}

type RemoveParticipantCommand struct {
	BudgetID    string
	ActorUserID string
	UserID      string
	When        int64
}

type AddCategoryCommand struct {
	ID          string
	BudgetID    string
	ActorUserID string
	Name        string
	Allocate    string
	When        int64
}

type EditCategoryCommand struct {
	ID          string
	BudgetID    string
	ActorUserID string
	Name        *string
	Allocate    *string
	Version     int
	When        int64
}

type DeleteCategoryCommand struct {
	ID          string
	BudgetID    string
	ActorUserID string
	Version     int
	When        int64
}

type AddExpenseCommand struct {
	ID          string
	BudgetID    string
	ActorUserID string
	CategoryID  string
	Date        string
	Amount      string
	Note        *string
	When        int64
}

type EditExpenseCommand struct {
	ID          string
	BudgetID    string
	ActorUserID string
	Date        *string
	Amount      *string
	Note        *string
	Version     int
	When        int64
}

type DeleteExpenseCommand struct {
	ID          string
	BudgetID    string
	ActorUserID string
	Version     int
	When        int64
}

// CreateBudget inserts the budget, makes the creator its first participant
// and appends both events, all in one transaction.
func (s *Service) CreateBudget(ctx context.Context, cmd CreateBudgetCommand) (domain.Event, error) {
	if err := s.policy.CanAddBudget(ctx, cmd.ID); err != nil {
		return domain.Event{}, err
	}

	var accepted domain.Event
	err := s.store.RunInTransaction(ctx, func(repos domain.Repositories) error {
		budget, err := repos.Budgets.Insert(ctx, domain.Budget{
			ID:                  cmd.ID,
			Title:               cmd.Title,
			Details:             cmd.Details,
			CreatedBy:           cmd.ActorUserID,
			Version:             1,
			OfflineLastModified: cmd.When,
			ServerCreatedAt:     time.Now().UnixMilli(),
		})
		if err != nil {
			return err
		}
		accepted, err = repos.Events.Append(ctx, domain.NewCreateBudgetEvent(budget))
		if err != nil {
			return err
		}
		_, err = s.insertParticipant(ctx, repos, budget.ID, budget.CreatedBy, budget.CreatedBy, cmd.When)
		return err
	})
	return s.finish(accepted, err)
}

// EditBudget updates the mutable fields under optimistic locking.
func (s *Service) EditBudget(ctx context.Context, cmd EditBudgetCommand) (domain.Event, error) {
	if err := s.policy.CanEditBudget(ctx, cmd.ID, cmd.ActorUserID, cmd.When); err != nil {
		return domain.Event{}, err
	}

	var accepted domain.Event
	err := s.store.RunInTransaction(ctx, func(repos domain.Repositories) error {
		budget, err := repos.Budgets.UpdateWithVersion(ctx, cmd.ID, domain.BudgetPatch{
			Title:   cmd.Title,
			Details: cmd.Details,
		}, cmd.Version, cmd.When)
		if err != nil {
			return err
		}
		accepted, err = repos.Events.Append(ctx, domain.NewEditBudgetEvent(budget, cmd.ActorUserID, cmd.Title, cmd.Details, cmd.When))
		return err
	})
	return s.finish(accepted, err)
}

// DeleteBudget soft-deletes: the row stays, flagged, so the log and the
// aggregate history remain resolvable.
func (s *Service) DeleteBudget(ctx context.Context, cmd DeleteBudgetCommand) (domain.Event, error) {
	if err := s.policy.CanDeleteBudget(ctx, cmd.ID, cmd.ActorUserID); err != nil {
		return domain.Event{}, err
	}

	deleted := true
	var accepted domain.Event
	err := s.store.RunInTransaction(ctx, func(repos domain.Repositories) error {
		budget, err := repos.Budgets.UpdateWithVersion(ctx, cmd.ID, domain.BudgetPatch{
			IsDeleted: &deleted,
		}, cmd.Version, cmd.When)
		if err != nil {
			return err
		}
		accepted, err = repos.Events.Append(ctx, domain.NewDeleteBudgetEvent(budget, cmd.ActorUserID, cmd.When))
		return err
	})
	return s.finish(accepted, err)
}

func (s *Service) AddParticipant(ctx context.Context, cmd AddParticipantCommand) (domain.Event, error) {
	if err := s.policy.CanAddParticipant(ctx, cmd.BudgetID, cmd.UserID); err != nil {
		return domain.Event{}, err
	}

	var accepted domain.Event
	err := s.store.RunInTransaction(ctx, func(repos domain.Repositories) error {
		var err error
		accepted, err = s.insertParticipant(ctx, repos, cmd.BudgetID, cmd.ActorUserID, cmd.UserID, cmd.When)
		return err
	})
	return s.finish(accepted, err)
}

func (s *Service) RemoveParticipant(ctx context.Context, cmd RemoveParticipantCommand) (domain.Event, error) {
	if err := s.policy.CanRemoveParticipant(ctx, cmd.BudgetID, cmd.UserID, cmd.ActorUserID); err != nil {
		return domain.Event{}, err
	}

	var accepted domain.Event
	err := s.store.RunInTransaction(ctx, func(repos domain.Repositories) error {
		if err := repos.Participants.Delete(ctx, cmd.BudgetID, cmd.UserID); err != nil {
			return err
		}
		var err error
		accepted, err = repos.Events.Append(ctx, domain.NewRemoveParticipantEvent(cmd.ActorUserID, domain.Participant{
			BudgetID: cmd.BudgetID,
			UserID:   cmd.UserID,
		}, cmd.When))
		return err
	})
	return s.finish(accepted, err)
}

func (s *Service) AddCategory(ctx context.Context, cmd AddCategoryCommand) (domain.Event, error) {
	if err := s.policy.CanAddCategory(ctx, cmd.BudgetID, cmd.ActorUserID, cmd.When, cmd.ID); err != nil {
		return domain.Event{}, err
	}

	var accepted domain.Event
	err := s.store.RunInTransaction(ctx, func(repos domain.Repositories) error {
		category, err := repos.Categories.Insert(ctx, domain.Category{
			ID:                  cmd.ID,
			BudgetID:            cmd.BudgetID,
			Name:                cmd.Name,
			Allocate:            cmd.Allocate,
			CreatedBy:           cmd.ActorUserID,
			Version:             1,
			OfflineLastModified: cmd.When,
			ServerCreatedAt:     time.Now().UnixMilli(),
		})
		if err != nil {
			return err
		}
		accepted, err = repos.Events.Append(ctx, domain.NewAddCategoryEvent(category))
		return err
	})
	return s.finish(accepted, err)
}

func (s *Service) EditCategory(ctx context.Context, cmd EditCategoryCommand) (domain.Event, error) {
	if err := s.policy.CanEditCategory(ctx, cmd.BudgetID, cmd.ActorUserID, cmd.When, cmd.ID); err != nil {
		return domain.Event{}, err
	}

	var accepted domain.Event
	err := s.store.RunInTransaction(ctx, func(repos domain.Repositories) error {
		category, err := repos.Categories.UpdateWithVersion(ctx, cmd.ID, domain.CategoryPatch{
			Name:     cmd.Name,
			Allocate: cmd.Allocate,
		}, cmd.Version, cmd.When)
		if err != nil {
			return err
		}
		accepted, err = repos.Events.Append(ctx, domain.NewEditCategoryEvent(category, cmd.ActorUserID, cmd.Name, cmd.Allocate, cmd.When))
		return err
	})
	return s.finish(accepted, err)
}

// DeleteCategory hard-deletes the row; the terminal event keeps the log
// mutation-complete after the aggregate is gone.
func (s *Service) DeleteCategory(ctx context.Context, cmd DeleteCategoryCommand) (domain.Event, error) {
	if err := s.policy.CanDeleteCategory(ctx, cmd.BudgetID, cmd.ActorUserID, cmd.When, cmd.ID); err != nil {
		return domain.Event{}, err
	}

	var accepted domain.Event
	err := s.store.RunInTransaction(ctx, func(repos domain.Repositories) error {
		if err := repos.Categories.DeleteWithVersion(ctx, cmd.ID, cmd.Version); err != nil {
			return err
		}
		var err error
		accepted, err = repos.Events.Append(ctx, domain.NewDeleteCategoryEvent(cmd.BudgetID, cmd.ID, cmd.ActorUserID, cmd.Version, cmd.When))
		return err
	})
	return s.finish(accepted, err)
}

func (s *Service) AddExpense(ctx context.Context, cmd AddExpenseCommand) (domain.Event, error) {
	if err := s.policy.CanAddExpense(ctx, cmd.BudgetID, cmd.ActorUserID, cmd.When, cmd.ID, cmd.CategoryID); err != nil {
		return domain.Event{}, err
	}

	var accepted domain.Event
	err := s.store.RunInTransaction(ctx, func(repos domain.Repositories) error {
		expense, err := repos.Expenses.Insert(ctx, domain.Expense{
			ID:                  cmd.ID,
			BudgetID:            cmd.BudgetID,
			CategoryID:          cmd.CategoryID,
			Date:                cmd.Date,
			Amount:              cmd.Amount,
			Note:                cmd.Note,
			CreatedBy:           cmd.ActorUserID,
			Version:             1,
			OfflineLastModified: cmd.When,
			ServerCreatedAt:     time.Now().UnixMilli(),
		})
		if err != nil {
			return err
		}
		accepted, err = repos.Events.Append(ctx, domain.NewAddExpenseEvent(expense))
		return err
	})
	return s.finish(accepted, err)
}

func (s *Service) EditExpense(ctx context.Context, cmd EditExpenseCommand) (domain.Event, error) {
	if err := s.policy.CanEditExpense(ctx, cmd.BudgetID, cmd.ActorUserID, cmd.When, cmd.ID); err != nil {
		return domain.Event{}, err
	}

	var accepted domain.Event
	err := s.store.RunInTransaction(ctx, func(repos domain.Repositories) error {
		expense, err := repos.Expenses.UpdateWithVersion(ctx, cmd.ID, domain.ExpensePatch{
			Date:   cmd.Date,
			Amount: cmd.Amount,
			Note:   cmd.Note,
		}, cmd.Version, cmd.When)
		if err != nil {
			return err
		}
		accepted, err = repos.Events.Append(ctx, domain.NewEditExpenseEvent(expense, cmd.ActorUserID, cmd.Date, cmd.Amount, cmd.Note, cmd.When))
		return err
	})
	return s.finish(accepted, err)
}

func (s *Service) DeleteExpense(ctx context.Context, cmd DeleteExpenseCommand) (domain.Event, error) {
	if err := s.policy.CanDeleteExpense(ctx, cmd.BudgetID, cmd.ActorUserID, cmd.When, cmd.ID); err != nil {
		return domain.Event{}, err
	}

	var accepted domain.Event
	err := s.store.RunInTransaction(ctx, func(repos domain.Repositories) error {
		if err := repos.Expenses.DeleteWithVersion(ctx, cmd.ID, cmd.Version); err != nil {
			return err
		}
		var err error
		accepted, err = repos.Events.Append(ctx, domain.NewDeleteExpenseEvent(cmd.BudgetID, cmd.ID, cmd.ActorUserID, cmd.Version, cmd.When))
		return err
	})
	return s.finish(accepted, err)
}

// GetEvents serves one page of the sync feed: events of the budget after
// afterSequence, never including the requester's own writes, ascending by
// sequence, capped at MaxSyncResults. The second return value is the next
// cursor; it equals afterSequence when the page is empty.
func (s *Service) GetEvents(ctx context.Context, budgetID, userID string, afterSequence int64, count int) ([]domain.Event, int64, error) {
	if err := s.policy.CanReadBudget(ctx, budgetID, userID); err != nil {
		return nil, afterSequence, err
	}
	if afterSequence < 0 {
		afterSequence = 0
	}
	if count <= 0 || count > MaxSyncResults {
		count = MaxSyncResults
	}
	events, err := s.store.Repos().Events.ReadAfter(ctx, budgetID, userID, afterSequence, count)
	if err != nil {
		return nil, afterSequence, budgeterrors.NewInternalError(err)
	}
	nextKey := afterSequence
	if len(events) > 0 {
		nextKey = events[len(events)-1].Sequence
	}
	metrics.SyncEventsServed.Add(float64(len(events)))
	return events, nextKey, nil
}

func (s *Service) GetBudget(ctx context.Context, budgetID, userID string) (domain.Budget, error) {
	if err := s.policy.CanReadBudget(ctx, budgetID, userID); err != nil {
		return domain.Budget{}, err
	}
	budget, err := s.store.Repos().Budgets.GetByID(ctx, budgetID)
	if err != nil {
		return domain.Budget{}, budgeterrors.NewInternalError(err)
	}
	if budget == nil || budget.IsDeleted {
		return domain.Budget{}, budgeterrors.NewNotFoundError(budgeterrors.CodeBudgetNotExists)
	}
	return *budget, nil
}

func (s *Service) GetBudgetsOfParticipant(ctx context.Context, userID string, page, count int) ([]domain.Budget, error) {
	limit, offset := pageBounds(page, count)
	budgets, err := s.store.Repos().Budgets.GetBudgetsOfParticipant(ctx, userID, limit, offset)
	if err != nil {
		return nil, budgeterrors.NewInternalError(err)
	}
	return budgets, nil
}

func (s *Service) GetCategoriesOfBudget(ctx context.Context, budgetID, userID string) ([]domain.Category, error) {
	if err := s.policy.CanReadBudget(ctx, budgetID, userID); err != nil {
		return nil, err
	}
	categories, err := s.store.Repos().Categories.GetBudgetCategories(ctx, budgetID)
	if err != nil {
		return nil, budgeterrors.NewInternalError(err)
	}
	return categories, nil
}

func (s *Service) GetExpensesOfBudget(ctx context.Context, budgetID, userID string, page, count int) ([]domain.Expense, error) {
	if err := s.policy.CanReadBudget(ctx, budgetID, userID); err != nil {
		return nil, err
	}
	limit, offset := pageBounds(page, count)
	expenses, err := s.store.Repos().Expenses.GetBudgetExpenses(ctx, budgetID, limit, offset)
	if err != nil {
		return nil, budgeterrors.NewInternalError(err)
	}
	return expenses, nil
}

func (s *Service) GetParticipantsOfBudget(ctx context.Context, budgetID, userID string) ([]domain.Participant, error) {
	if err := s.policy.CanReadBudget(ctx, budgetID, userID); err != nil {
		return nil, err
	}
	participants, err := s.store.Repos().Participants.GetBudgetParticipants(ctx, budgetID)
	if err != nil {
		return nil, budgeterrors.NewInternalError(err)
	}
	return participants, nil
}

// insertParticipant inserts the membership row and its event; shared by
// budget creation and the explicit add-participant operation.
func (s *Service) insertParticipant(ctx context.Context, repos domain.Repositories, budgetID, actorUserID, userID string, when int64) (domain.Event, error) {
	participant, err := repos.Participants.Insert(ctx, domain.Participant{
		BudgetID: budgetID,
		UserID:   userID,
	})
	if err != nil {
		return domain.Event{}, err
	}
	return repos.Events.Append(ctx, domain.NewAddParticipantEvent(actorUserID, participant, when))
}

// finish is the shared tail of every mutation: count it, publish it, and
// normalize unexpected failures into the internal taxonomy.
func (s *Service) finish(accepted domain.Event, err error) (domain.Event, error) {
	if err != nil {
		if budgeterrors.IsConflictError(err) {
			metrics.VersionConflicts.Inc()
			return domain.Event{}, err
		}
		if budgeterrors.IsAuthorizationError(err) || budgeterrors.IsNotFoundError(err) || budgeterrors.IsValidationError(err) {
			return domain.Event{}, err
		}
		return domain.Event{}, budgeterrors.NewInternalError(err)
	}

	metrics.EventsApplied.WithLabelValues(string(accepted.Type)).Inc()
	if s.publisher != nil {
		if perr := s.publisher.Publish(accepted); perr != nil {
			slog.Warn("failed to publish accepted event",
				"error", perr,
				"event_type", accepted.Type,
				"budget_id", accepted.BudgetID,
			)
		}
	}
	return accepted, nil
}

func pageBounds(page, count int) (limit, offset int) {
	if count <= 0 || count > MaxSyncResults {
		count = MaxSyncResults
	}
	if page < 1 {
		page = 1
	}
	return count, (page - 1) * count
}
