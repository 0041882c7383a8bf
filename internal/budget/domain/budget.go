package domain

// Budget is the top-level aggregate shared between participants. Its id is
// generated by the client that created it and must be globally unique.
type Budget struct {
	ID                  string  `json:"id"`
	Title               string  `json:"title"`
	Details             *string `json:"details,omitempty"`
	CreatedBy           string  `json:"createdBy"`
	Version             int     `json:"version"`
	OfflineLastModified int64   `json:"offlineLastModified"`
	ServerCreatedAt     int64   `json:"-"`
	IsDeleted           bool    `json:"-"`
}

// BudgetPatch carries the mutable fields of a budget. Nil fields are left
// untouched by an update.
type BudgetPatch struct {
	Title     *string
	Details   *string
	IsDeleted *bool
}
