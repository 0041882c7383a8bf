package interfaces

import (
	"github.com/google/uuid"

	"github.com/mpaulose/budgetsync/internal/budget/application"
	budgeterrors "github.com/mpaulose/budgetsync/internal/budget/errors"
)

type CreateBudgetRequest struct {
	ID      string  `json:"id"`
	Title   string  `json:"title"`
	Details *string `json:"details,omitempty"`
	When    int64   `json:"when"`
}

func (r CreateBudgetRequest) Validate() error {
	errs := &budgeterrors.ValidationErrors{}
	if _, err := uuid.Parse(r.ID); err != nil {
		errs.Add(budgeterrors.NewFieldValidationError("id", "must be a uuid"))
	}
	if r.Title == "" {
		errs.Add(budgeterrors.NewFieldValidationError("title", "is required"))
	}
	if r.When <= 0 {
		errs.Add(budgeterrors.NewFieldValidationError("when", "must be positive epoch millis"))
	}
	if errs.HasErrors() {
		return errs
	}
	return nil
}

type AddParticipantRequest struct {
	UserID string `json:"userId"`
	When   int64  `json:"when"`
}

func (r AddParticipantRequest) Validate() error {
	errs := &budgeterrors.ValidationErrors{}
	if r.UserID == "" {
		errs.Add(budgeterrors.NewFieldValidationError("userId", "is required"))
	}
	if r.When <= 0 {
		errs.Add(budgeterrors.NewFieldValidationError("when", "must be positive epoch millis"))
	}
	if errs.HasErrors() {
		return errs
	}
	return nil
}

type BatchRequest struct {
	Events []application.BatchEvent `json:"events"`
}

func (r BatchRequest) Validate() error {
	if len(r.Events) == 0 {
		return budgeterrors.NewFieldValidationError("events", "is required")
	}
	return nil
}
