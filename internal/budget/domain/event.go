package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType tags every accepted event. The string values are the wire values
// clients send and receive.
type EventType string

const (
	EventCreateBudget EventType = "budget.create"
	EventEditBudget   EventType = "budget.edit"
	EventDeleteBudget EventType = "budget.delete"

	EventAddParticipant    EventType = "participant.add"
	EventRemoveParticipant EventType = "participant.remove"

	EventAddCategory    EventType = "category.add"
	EventEditCategory   EventType = "category.edit"
	EventDeleteCategory EventType = "category.delete"

	EventAddExpense    EventType = "expense.add"
	EventEditExpense   EventType = "expense.edit"
	EventDeleteExpense EventType = "expense.delete"
)

// Event is one accepted, immutable entry of the per-budget log. Sequence is
// assigned by the event store and strictly increases within a budget. When is
// the client-asserted instant of the mutation; ServerCreatedAt the server
// instant the event was accepted.
type Event struct {
	ID              string    `json:"id"`
	Sequence        int64     `json:"sequence"`
	BudgetID        string    `json:"budgetId"`
	Type            EventType `json:"event"`
	RecordID        string    `json:"recordId"`
	ActorUserID     string    `json:"actorId"`
	When            int64     `json:"when"`
	ServerCreatedAt int64     `json:"-"`
	Data            EventData `json:"data,omitempty"`
}

// EventData is a closed union: exactly one variant per event type that
// carries a payload. The payload is a snapshot of the post-mutation state
// (including the resulting version) so a remote client can reconstruct the
// record without a follow-up fetch. Participant events carry no payload.
type EventData interface {
	eventData()
}

type CreateBudgetData struct {
	Title   string  `json:"title"`
	Details *string `json:"details,omitempty"`
	Version int     `json:"version"`
}

type EditBudgetData struct {
	Title   *string `json:"title,omitempty"`
	Details *string `json:"details,omitempty"`
	Version int     `json:"version"`
}

type DeleteBudgetData struct {
	Version int `json:"version"`
}

type AddCategoryData struct {
	Name     string `json:"name"`
	Allocate string `json:"allocate"`
	Version  int    `json:"version"`
}

type EditCategoryData struct {
	Name     *string `json:"name,omitempty"`
	Allocate *string `json:"allocate,omitempty"`
	Version  int     `json:"version"`
}

type DeleteCategoryData struct {
	Version int `json:"version"`
}

type AddExpenseData struct {
	CategoryID string  `json:"categoryId"`
	Date       string  `json:"date"`
	Amount     string  `json:"amount"`
	Note       *string `json:"note,omitempty"`
	Version    int     `json:"version"`
}

type EditExpenseData struct {
	Date    *string `json:"date,omitempty"`
	Amount  *string `json:"amount,omitempty"`
	Note    *string `json:"note,omitempty"`
	Version int     `json:"version"`
}

type DeleteExpenseData struct {
	Version int `json:"version"`
}

func (CreateBudgetData) eventData()   {}
func (EditBudgetData) eventData()     {}
func (DeleteBudgetData) eventData()   {}
func (AddCategoryData) eventData()    {}
func (EditCategoryData) eventData()   {}
func (DeleteCategoryData) eventData() {}
func (AddExpenseData) eventData()     {}
func (EditExpenseData) eventData()    {}
func (DeleteExpenseData) eventData()  {}

// Version extracts the resulting aggregate version from a payload, or nil for
// payload-free events.
func (e Event) Version() *int {
	var v int
	switch data := e.Data.(type) {
	case CreateBudgetData:
		v = data.Version
	case EditBudgetData:
		v = data.Version
	case DeleteBudgetData:
		v = data.Version
	case AddCategoryData:
		v = data.Version
	case EditCategoryData:
		v = data.Version
	case DeleteCategoryData:
		v = data.Version
	case AddExpenseData:
		v = data.Version
	case EditExpenseData:
		v = data.Version
	case DeleteExpenseData:
		v = data.Version
	default:
		return nil
	}
	return &v
}

// DecodeEventData rebuilds the typed payload from its stored JSON form.
func DecodeEventData(t EventType, raw []byte) (EventData, error) {
	if len(raw) == 0 || t == EventAddParticipant || t == EventRemoveParticipant {
		return nil, nil
	}
	switch t {
	case EventCreateBudget:
		var d CreateBudgetData
		err := json.Unmarshal(raw, &d)
		return d, err
	case EventEditBudget:
		var d EditBudgetData
		err := json.Unmarshal(raw, &d)
		return d, err
	case EventDeleteBudget:
		var d DeleteBudgetData
		err := json.Unmarshal(raw, &d)
		return d, err
	case EventAddCategory:
		var d AddCategoryData
		err := json.Unmarshal(raw, &d)
		return d, err
	case EventEditCategory:
		var d EditCategoryData
		err := json.Unmarshal(raw, &d)
		return d, err
	case EventDeleteCategory:
		var d DeleteCategoryData
		err := json.Unmarshal(raw, &d)
		return d, err
	case EventAddExpense:
		var d AddExpenseData
		err := json.Unmarshal(raw, &d)
		return d, err
	case EventEditExpense:
		var d EditExpenseData
		err := json.Unmarshal(raw, &d)
		return d, err
	case EventDeleteExpense:
		var d DeleteExpenseData
		err := json.Unmarshal(raw, &d)
		return d, err
	default:
		return nil, fmt.Errorf("unknown event type %q", t)
	}
}

func newEvent(t EventType, budgetID, actorUserID, recordID string, when int64, data EventData) Event {
	now := time.Now().UnixMilli()
	return Event{
		ID:              uuid.NewString(),
		BudgetID:        budgetID,
		Type:            t,
		RecordID:        recordID,
		ActorUserID:     actorUserID,
		When:            when,
		ServerCreatedAt: now,
		Data:            data,
	}
}

// Event builders. Each takes the post-mutation aggregate state so the log
// stays authoritative about resulting versions and fields.

func NewCreateBudgetEvent(b Budget) Event {
	return newEvent(EventCreateBudget, b.ID, b.CreatedBy, b.ID, b.OfflineLastModified, CreateBudgetData{
		Title:   b.Title,
		Details: b.Details,
		Version: b.Version,
	})
}

func NewEditBudgetEvent(b Budget, actorUserID string, title, details *string, when int64) Event {
	return newEvent(EventEditBudget, b.ID, actorUserID, b.ID, when, EditBudgetData{
		Title:   title,
		Details: details,
		Version: b.Version,
	})
}

func NewDeleteBudgetEvent(b Budget, actorUserID string, when int64) Event {
	return newEvent(EventDeleteBudget, b.ID, actorUserID, b.ID, when, DeleteBudgetData{
		Version: b.Version,
	})
}

func NewAddParticipantEvent(actorUserID string, p Participant, when int64) Event {
	return newEvent(EventAddParticipant, p.BudgetID, actorUserID, p.UserID, when, nil)
}

func NewRemoveParticipantEvent(actorUserID string, p Participant, when int64) Event {
	return newEvent(EventRemoveParticipant, p.BudgetID, actorUserID, p.UserID, when, nil)
}

func NewAddCategoryEvent(c Category) Event {
	return newEvent(EventAddCategory, c.BudgetID, c.CreatedBy, c.ID, c.OfflineLastModified, AddCategoryData{
		Name:     c.Name,
		Allocate: c.Allocate,
		Version:  c.Version,
	})
}

func NewEditCategoryEvent(c Category, actorUserID string, name, allocate *string, when int64) Event {
	return newEvent(EventEditCategory, c.BudgetID, actorUserID, c.ID, when, EditCategoryData{
		Name:     name,
		Allocate: allocate,
		Version:  c.Version,
	})
}

func NewDeleteCategoryEvent(budgetID, categoryID, actorUserID string, version int, when int64) Event {
	return newEvent(EventDeleteCategory, budgetID, actorUserID, categoryID, when, DeleteCategoryData{
		Version: version,
	})
}

func NewAddExpenseEvent(e Expense) Event {
	return newEvent(EventAddExpense, e.BudgetID, e.CreatedBy, e.ID, e.OfflineLastModified, AddExpenseData{
		CategoryID: e.CategoryID,
		Date:       e.Date,
		Amount:     e.Amount,
		Note:       e.Note,
		Version:    e.Version,
	})
}

func NewEditExpenseEvent(e Expense, actorUserID string, date, amount, note *string, when int64) Event {
	return newEvent(EventEditExpense, e.BudgetID, actorUserID, e.ID, when, EditExpenseData{
		Date:    date,
		Amount:  amount,
		Note:    note,
		Version: e.Version,
	})
}

func NewDeleteExpenseEvent(budgetID, expenseID, actorUserID string, version int, when int64) Event {
	return newEvent(EventDeleteExpense, budgetID, actorUserID, expenseID, when, DeleteExpenseData{
		Version: version,
	})
}
