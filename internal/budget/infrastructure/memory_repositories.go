package infrastructure

import (
	"context"
	"sort"
	"sync"

	"github.com/mpaulose/budgetsync/internal/budget/domain"
	budgeterrors "github.com/mpaulose/budgetsync/internal/budget/errors"
)

// MemoryStore is an in-memory implementation of domain.Store used in unit
// tests. It honors the same semantics as the Postgres store: duplicate ids
// surface as conflicts, conditional writes fail on a version mismatch, and a
// failed transaction leaves no partial state behind.
type MemoryStore struct {
	mu    sync.Mutex
	state *memoryState
}

type memoryState struct {
	budgets      map[string]domain.Budget
	categories   map[string]domain.Category
	expenses     map[string]domain.Expense
	participants map[string]map[string]bool
	events       map[string][]domain.Event
	sequences    map[string]int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: newMemoryState()}
}

func newMemoryState() *memoryState {
	return &memoryState{
		budgets:      make(map[string]domain.Budget),
		categories:   make(map[string]domain.Category),
		expenses:     make(map[string]domain.Expense),
		participants: make(map[string]map[string]bool),
		events:       make(map[string][]domain.Event),
		sequences:    make(map[string]int64),
	}
}

func (s *MemoryStore) Repos() domain.Repositories {
	return domain.Repositories{
		Budgets:      &memoryBudgets{store: s},
		Categories:   &memoryCategories{store: s},
		Expenses:     &memoryExpenses{store: s},
		Participants: &memoryParticipants{store: s},
		Events:       &memoryEvents{store: s},
		Lookup:       &memoryLookup{store: s},
	}
}

// RunInTransaction snapshots the state before fn and restores the snapshot if
// fn fails, giving the same all-or-nothing behavior as a database rollback.
func (s *MemoryStore) RunInTransaction(ctx context.Context, fn func(repos domain.Repositories) error) error {
	s.mu.Lock()
	snapshot := s.state.clone()
	s.mu.Unlock()

	if err := fn(s.Repos()); err != nil {
		s.mu.Lock()
		s.state = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

// Events returns a copy of the full log for one budget, in sequence order.
func (s *MemoryStore) Events(budgetID string) []domain.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	events := make([]domain.Event, len(s.state.events[budgetID]))
	copy(events, s.state.events[budgetID])
	return events
}

func (st *memoryState) clone() *memoryState {
	next := newMemoryState()
	for id, b := range st.budgets {
		next.budgets[id] = b
	}
	for id, c := range st.categories {
		next.categories[id] = c
	}
	for id, e := range st.expenses {
		next.expenses[id] = e
	}
	for budgetID, users := range st.participants {
		members := make(map[string]bool, len(users))
		for userID := range users {
			members[userID] = true
		}
		next.participants[budgetID] = members
	}
	for budgetID, log := range st.events {
		events := make([]domain.Event, len(log))
		copy(events, log)
		next.events[budgetID] = events
	}
	for budgetID, seq := range st.sequences {
		next.sequences[budgetID] = seq
	}
	return next
}

type memoryBudgets struct {
	store *MemoryStore
}

func (r *memoryBudgets) Insert(_ context.Context, budget domain.Budget) (domain.Budget, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.state.budgets[budget.ID]; ok {
		return domain.Budget{}, budgeterrors.NewConflictError(budgeterrors.CodeBudgetExists)
	}
	r.store.state.budgets[budget.ID] = budget
	return budget, nil
}

func (r *memoryBudgets) GetByID(_ context.Context, id string) (*domain.Budget, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	budget, ok := r.store.state.budgets[id]
	if !ok {
		return nil, nil
	}
	return &budget, nil
}

func (r *memoryBudgets) UpdateWithVersion(_ context.Context, id string, patch domain.BudgetPatch, expectedVersion int, newLastModified int64) (domain.Budget, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	budget, ok := r.store.state.budgets[id]
	if !ok || budget.Version != expectedVersion {
		return domain.Budget{}, budgeterrors.NewConflictError(budgeterrors.CodeVersionMismatch)
	}
	if patch.Title != nil {
		budget.Title = *patch.Title
	}
	if patch.Details != nil {
		budget.Details = patch.Details
	}
	if patch.IsDeleted != nil {
		budget.IsDeleted = *patch.IsDeleted
	}
	budget.Version++
	budget.OfflineLastModified = newLastModified
	r.store.state.budgets[id] = budget
	return budget, nil
}

func (r *memoryBudgets) GetBudgetsOfParticipant(_ context.Context, userID string, limit, offset int) ([]domain.Budget, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	budgets := make([]domain.Budget, 0)
	for _, budget := range r.store.state.budgets {
		if budget.IsDeleted || !r.store.state.participants[budget.ID][userID] {
			continue
		}
		budgets = append(budgets, budget)
	}
	sort.Slice(budgets, func(i, j int) bool {
		return budgets[i].ServerCreatedAt < budgets[j].ServerCreatedAt
	})
	return page(budgets, limit, offset), nil
}

type memoryCategories struct {
	store *MemoryStore
}

func (r *memoryCategories) Insert(_ context.Context, category domain.Category) (domain.Category, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.state.categories[category.ID]; ok {
		return domain.Category{}, budgeterrors.NewConflictError(budgeterrors.CodeCategoryExists)
	}
	r.store.state.categories[category.ID] = category
	return category, nil
}

func (r *memoryCategories) GetByID(_ context.Context, id string) (*domain.Category, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	category, ok := r.store.state.categories[id]
	if !ok {
		return nil, nil
	}
	return &category, nil
}

func (r *memoryCategories) UpdateWithVersion(_ context.Context, id string, patch domain.CategoryPatch, expectedVersion int, newLastModified int64) (domain.Category, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	category, ok := r.store.state.categories[id]
	if !ok || category.Version != expectedVersion {
		return domain.Category{}, budgeterrors.NewConflictError(budgeterrors.CodeVersionMismatch)
	}
	if patch.Name != nil {
		category.Name = *patch.Name
	}
	if patch.Allocate != nil {
		category.Allocate = *patch.Allocate
	}
	category.Version++
	category.OfflineLastModified = newLastModified
	r.store.state.categories[id] = category
	return category, nil
}

func (r *memoryCategories) DeleteWithVersion(_ context.Context, id string, expectedVersion int) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	category, ok := r.store.state.categories[id]
	if !ok || category.Version != expectedVersion {
		return budgeterrors.NewConflictError(budgeterrors.CodeVersionMismatch)
	}
	delete(r.store.state.categories, id)
	return nil
}

func (r *memoryCategories) GetBudgetCategories(_ context.Context, budgetID string) ([]domain.Category, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	categories := make([]domain.Category, 0)
	for _, category := range r.store.state.categories {
		if category.BudgetID == budgetID {
			categories = append(categories, category)
		}
	}
	sort.Slice(categories, func(i, j int) bool {
		return categories[i].ServerCreatedAt < categories[j].ServerCreatedAt
	})
	return categories, nil
}

type memoryExpenses struct {
	store *MemoryStore
}

func (r *memoryExpenses) Insert(_ context.Context, expense domain.Expense) (domain.Expense, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.state.expenses[expense.ID]; ok {
		return domain.Expense{}, budgeterrors.NewConflictError(budgeterrors.CodeExpenseExists)
	}
	r.store.state.expenses[expense.ID] = expense
	return expense, nil
}

func (r *memoryExpenses) GetByID(_ context.Context, id string) (*domain.Expense, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	expense, ok := r.store.state.expenses[id]
	if !ok {
		return nil, nil
	}
	return &expense, nil
}

func (r *memoryExpenses) UpdateWithVersion(_ context.Context, id string, patch domain.ExpensePatch, expectedVersion int, newLastModified int64) (domain.Expense, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	expense, ok := r.store.state.expenses[id]
	if !ok || expense.Version != expectedVersion {
		return domain.Expense{}, budgeterrors.NewConflictError(budgeterrors.CodeVersionMismatch)
	}
	if patch.Date != nil {
		expense.Date = *patch.Date
	}
	if patch.Amount != nil {
		expense.Amount = *patch.Amount
	}
	if patch.Note != nil {
		expense.Note = patch.Note
	}
	expense.Version++
	expense.OfflineLastModified = newLastModified
	r.store.state.expenses[id] = expense
	return expense, nil
}

func (r *memoryExpenses) DeleteWithVersion(_ context.Context, id string, expectedVersion int) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	expense, ok := r.store.state.expenses[id]
	if !ok || expense.Version != expectedVersion {
		return budgeterrors.NewConflictError(budgeterrors.CodeVersionMismatch)
	}
	delete(r.store.state.expenses, id)
	return nil
}

func (r *memoryExpenses) GetBudgetExpenses(_ context.Context, budgetID string, limit, offset int) ([]domain.Expense, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	expenses := make([]domain.Expense, 0)
	for _, expense := range r.store.state.expenses {
		if expense.BudgetID == budgetID {
			expenses = append(expenses, expense)
		}
	}
	sort.Slice(expenses, func(i, j int) bool {
		if expenses[i].Date != expenses[j].Date {
			return expenses[i].Date > expenses[j].Date
		}
		return expenses[i].ServerCreatedAt > expenses[j].ServerCreatedAt
	})
	return page(expenses, limit, offset), nil
}

type memoryParticipants struct {
	store *MemoryStore
}

func (r *memoryParticipants) Insert(_ context.Context, participant domain.Participant) (domain.Participant, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	members := r.store.state.participants[participant.BudgetID]
	if members == nil {
		members = make(map[string]bool)
		r.store.state.participants[participant.BudgetID] = members
	}
	if members[participant.UserID] {
		return domain.Participant{}, budgeterrors.NewConflictError(budgeterrors.CodeParticipantExists)
	}
	members[participant.UserID] = true
	return participant, nil
}

func (r *memoryParticipants) Delete(_ context.Context, budgetID, userID string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	delete(r.store.state.participants[budgetID], userID)
	return nil
}

func (r *memoryParticipants) GetBudgetParticipants(_ context.Context, budgetID string) ([]domain.Participant, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	participants := make([]domain.Participant, 0)
	for userID := range r.store.state.participants[budgetID] {
		participants = append(participants, domain.Participant{BudgetID: budgetID, UserID: userID})
	}
	sort.Slice(participants, func(i, j int) bool {
		return participants[i].UserID < participants[j].UserID
	})
	return participants, nil
}

type memoryEvents struct {
	store *MemoryStore
}

func (r *memoryEvents) Append(_ context.Context, event domain.Event) (domain.Event, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.state.sequences[event.BudgetID]++
	event.Sequence = r.store.state.sequences[event.BudgetID]
	r.store.state.events[event.BudgetID] = append(r.store.state.events[event.BudgetID], event)
	return event, nil
}

func (r *memoryEvents) ReadAfter(_ context.Context, budgetID, excludeUserID string, afterSequence int64, limit int) ([]domain.Event, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	events := make([]domain.Event, 0)
	for _, event := range r.store.state.events[budgetID] {
		if event.Sequence <= afterSequence || event.ActorUserID == excludeUserID {
			continue
		}
		events = append(events, event)
		if len(events) == limit {
			break
		}
	}
	return events, nil
}

type memoryLookup struct {
	store *MemoryStore
}

func (r *memoryLookup) BudgetExists(_ context.Context, budgetID string) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	budget, ok := r.store.state.budgets[budgetID]
	return ok && !budget.IsDeleted, nil
}

func (r *memoryLookup) IsCreatorOfBudget(_ context.Context, budgetID, userID string) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	budget, ok := r.store.state.budgets[budgetID]
	return ok && budget.CreatedBy == userID, nil
}

func (r *memoryLookup) CategoryExists(_ context.Context, categoryID string) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	_, ok := r.store.state.categories[categoryID]
	return ok, nil
}

func (r *memoryLookup) IsCategoryOfBudget(_ context.Context, budgetID, categoryID string) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	category, ok := r.store.state.categories[categoryID]
	return ok && category.BudgetID == budgetID, nil
}

func (r *memoryLookup) ExpenseExists(_ context.Context, expenseID string) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	_, ok := r.store.state.expenses[expenseID]
	return ok, nil
}

func (r *memoryLookup) IsParticipantOfBudget(_ context.Context, budgetID, userID string) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return r.store.state.participants[budgetID][userID], nil
}

func (r *memoryLookup) CountBudgetParticipants(_ context.Context, budgetID string) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return len(r.store.state.participants[budgetID]), nil
}

func (r *memoryLookup) WasParticipantAtTime(_ context.Context, budgetID, userID string, atMillis int64) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var lastAdded, lastRemoved *int64
	for _, event := range r.store.state.events[budgetID] {
		if event.RecordID != userID {
			continue
		}
		at := event.ServerCreatedAt
		switch event.Type {
		case domain.EventAddParticipant:
			if lastAdded == nil || at > *lastAdded {
				lastAdded = &at
			}
		case domain.EventRemoveParticipant:
			if lastRemoved == nil || at > *lastRemoved {
				lastRemoved = &at
			}
		}
	}
	return domain.WasParticipantAt(lastAdded, lastRemoved, atMillis), nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit < len(items) {
		items = items[:limit]
	}
	return items
}
