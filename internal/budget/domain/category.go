package domain

// Category groups expenses inside a budget. The allocate field is a
// decimal-as-string so currency amounts never touch floating point.
type Category struct {
	ID                  string `json:"id"`
	BudgetID            string `json:"budgetId"`
	Name                string `json:"name"`
	Allocate            string `json:"allocate"`
	CreatedBy           string `json:"createdBy"`
	Version             int    `json:"version"`
	OfflineLastModified int64  `json:"offlineLastModified"`
	ServerCreatedAt     int64  `json:"-"`
}

type CategoryPatch struct {
	Name     *string
	Allocate *string
}
