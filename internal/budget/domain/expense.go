package domain

// Expense is a single spend recorded under a category of the same budget.
// Date is an ISO date (YYYY-MM-DD), amount a decimal-as-string.
type Expense struct {
	ID                  string  `json:"id"`
	BudgetID            string  `json:"budgetId"`
	CategoryID          string  `json:"categoryId"`
	Date                string  `json:"date"`
	Amount              string  `json:"amount"`
	Note                *string `json:"note,omitempty"`
	CreatedBy           string  `json:"createdBy"`
	Version             int     `json:"version"`
	OfflineLastModified int64   `json:"offlineLastModified"`
	ServerCreatedAt     int64   `json:"-"`
}

type ExpensePatch struct {
	Date   *string
	Amount *string
	Note   *string
}
