package board

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"kanban/internal/models"
	"kanban/internal/storage/sqlite"
)

// MaxStatusNameLength bounds column names.
const MaxStatusNameLength = 100

// ListStatuses returns the project's columns in board order.
func (s *Service) ListStatuses(ctx context.Context, who Identity, projectID int64) ([]models.Status, error) {
	if _, err := s.authorize(ctx, who, projectID); err != nil {
		return nil, err
	}
	return s.store.ListStatuses(ctx, projectID)
}

// Status returns a single column of a project the caller belongs to.
func (s *Service) Status(ctx context.Context, who Identity, statusID int64) (models.Status, error) {
	st, err := s.store.GetStatus(ctx, statusID)
	if err != nil {
		return models.Status{}, translate(err)
	}
	if _, err := s.authorize(ctx, who, st.ProjectID); err != nil {
		return models.Status{}, err
	}
	return st, nil
}

// CreateStatus inserts a column at the 1-based position order. Columns at or
// after it move one place right; order 0 appends.
func (s *Service) CreateStatus(ctx context.Context, who Identity, projectID int64, name string, order int) (models.Status, error) {
	if _, err := s.authorize(ctx, who, projectID); err != nil {
		return models.Status{}, err
	}
	name, err := validateStatus(name, order)
	if err != nil {
		return models.Status{}, err
	}
	st, err := s.store.InsertStatus(ctx, projectID, name, order)
	if errors.Is(err, sqlite.ErrConflict) {
		return models.Status{}, duplicateStatus()
	}
	return st, err
}

// EditStatus renames and/or moves a column. Nil arguments keep the current value.
func (s *Service) EditStatus(ctx context.Context, who Identity, statusID int64, name *string, order *int) (models.Status, error) {
	current, err := s.Status(ctx, who, statusID)
	if err != nil {
		return models.Status{}, err
	}
	newName, newOrder := current.Name, current.Order
	if name != nil {
		newName = *name
	}
	if order != nil {
		newOrder = *order
	}
	if newName, err = validateStatus(newName, newOrder); err != nil {
		return models.Status{}, err
	}
	st, err := s.store.UpdateStatus(ctx, statusID, newName, newOrder)
	if errors.Is(err, sqlite.ErrConflict) {
		return models.Status{}, duplicateStatus()
	}
	return st, translate(err)
}

// DeleteStatus removes a column; its tasks keep existing with no status.
func (s *Service) DeleteStatus(ctx context.Context, who Identity, statusID int64) (models.Status, error) {
	st, err := s.Status(ctx, who, statusID)
	if err != nil {
		return models.Status{}, err
	}
	return st, translate(s.store.DeleteStatus(ctx, statusID))
}

func validateStatus(name string, order int) (string, error) {
	verr := &ValidationError{}
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		verr.add("name", "This field is required.")
	case utf8.RuneCountInString(name) > MaxStatusNameLength:
		verr.add("name", "Ensure this value has at most 100 characters.")
	}
	if order < 0 {
		verr.add("order", "Ensure this value is greater than or equal to 0.")
	}
	return name, verr.orNil()
}

func duplicateStatus() error {
	return invalid("name", "A status with this name already exists in the project.")
}
