package domain

// MaxParticipantsPerBudget caps active membership of a single budget.
const MaxParticipantsPerBudget = 10

// Participant links a user to a budget. There are no stored join/leave
// timestamps: membership at any instant is derived from the event log.
type Participant struct {
	BudgetID string `json:"budgetId"`
	UserID   string `json:"userId"`
}

// WasParticipantAt decides point-in-time membership from the server
// timestamps of the latest participant.add and participant.remove events for
// one (budget, user) pair. A user is a member at atMillis when they joined at
// or before that instant and had not left yet; a re-add after a removal makes
// the removal irrelevant. Ordering is strictly by timestamp, never by
// insertion order.
func WasParticipantAt(lastAdded, lastRemoved *int64, atMillis int64) bool {
	if lastAdded == nil || *lastAdded > atMillis {
		return false
	}
	if lastRemoved == nil || *lastRemoved < *lastAdded {
		return true
	}
	return *lastRemoved > atMillis
}
