package board

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"kanban/internal/models"
	"kanban/internal/storage/sqlite"
)

// MaxTaskTitleLength bounds task titles.
const MaxTaskTitleLength = 255

// TaskInput holds the fields for a new task.
type TaskInput struct {
	Title       string
	Description string
	StatusID    *int64
	AssigneeIDs []int64
	Deadline    *time.Time
}

// TaskPatch holds a partial task update. Nil fields are left untouched;
// ClearStatus and ClearDeadline reset the optional fields to none.
type TaskPatch struct {
	Title         *string
	Description   *string
	StatusID      *int64
	ClearStatus   bool
	AssigneeIDs   *[]int64
	Deadline      *time.Time
	ClearDeadline bool
}

// TaskFilter narrows ListTasks. Zero fields are ignored.
type TaskFilter struct {
	ProjectID  int64
	StatusID   int64
	AssigneeID int64
}

// CreateTask adds a task to a project. The status and every assignee must
// belong to that project.
func (s *Service) CreateTask(ctx context.Context, who Identity, projectID int64, in TaskInput) (models.Task, error) {
	if _, err := s.authorize(ctx, who, projectID); err != nil {
		return models.Task{}, err
	}
	t := models.Task{
		ProjectID:   projectID,
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		StatusID:    in.StatusID,
		AssigneeIDs: uniqueIDs(in.AssigneeIDs),
		Deadline:    in.Deadline,
	}
	if err := s.validateTask(ctx, t); err != nil {
		return models.Task{}, err
	}
	created, err := s.store.CreateTask(ctx, t)
	if err != nil {
		return models.Task{}, err
	}
	s.logger.Info("task created",
		slog.Int64("task_id", created.ID), slog.Int64("project_id", projectID))
	return created, nil
}

// Task returns a task from one of the caller's projects.
func (s *Service) Task(ctx context.Context, who Identity, taskID int64) (models.Task, error) {
	t, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return models.Task{}, translate(err)
	}
	if _, err := s.authorize(ctx, who, t.ProjectID); err != nil {
		return models.Task{}, err
	}
	return t, nil
}

// EditTask applies a partial update, validating as CreateTask does.
func (s *Service) EditTask(ctx context.Context, who Identity, taskID int64, patch TaskPatch) (models.Task, error) {
	t, err := s.Task(ctx, who, taskID)
	if err != nil {
		return models.Task{}, err
	}

	if patch.Title != nil {
		t.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Description != nil {
		t.Description = strings.TrimSpace(*patch.Description)
	}
	switch {
	case patch.ClearStatus:
		t.StatusID = nil
	case patch.StatusID != nil:
		t.StatusID = patch.StatusID
	}
	if patch.AssigneeIDs != nil {
		t.AssigneeIDs = uniqueIDs(*patch.AssigneeIDs)
	}
	switch {
	case patch.ClearDeadline:
		t.Deadline = nil
	case patch.Deadline != nil:
		t.Deadline = patch.Deadline
	}

	if err := s.validateTask(ctx, t); err != nil {
		return models.Task{}, err
	}
	updated, err := s.store.UpdateTask(ctx, t)
	return updated, translate(err)
}

// MoveTask puts a task into another column of the same project. The last
// write wins; there is no transition graph.
func (s *Service) MoveTask(ctx context.Context, who Identity, taskID, statusID int64) (models.Task, error) {
	t, err := s.Task(ctx, who, taskID)
	if err != nil {
		return models.Task{}, err
	}
	st, err := s.store.GetStatus(ctx, statusID)
	if err != nil {
		return models.Task{}, translate(err)
	}
	if st.ProjectID != t.ProjectID {
		return models.Task{}, ErrStatusNotInProject
	}
	if err := s.store.SetTaskStatus(ctx, taskID, &st.ID); err != nil {
		return models.Task{}, translate(err)
	}
	s.logger.Debug("task moved", slog.Int64("task_id", taskID), slog.Int64("status_id", statusID))
	t.StatusID = &st.ID
	return t, nil
}

// DeleteTask removes a task.
func (s *Service) DeleteTask(ctx context.Context, who Identity, taskID int64) (models.Task, error) {
	t, err := s.Task(ctx, who, taskID)
	if err != nil {
		return models.Task{}, err
	}
	return t, translate(s.store.DeleteTask(ctx, taskID))
}

// ListTasks returns tasks from the caller's projects only. A ProjectID the
// caller is not a member of fails with ErrForbidden.
func (s *Service) ListTasks(ctx context.Context, who Identity, filter TaskFilter) ([]models.Task, error) {
	var projectIDs []int64
	if filter.ProjectID != 0 {
		if _, err := s.authorize(ctx, who, filter.ProjectID); err != nil {
			return nil, err
		}
		projectIDs = []int64{filter.ProjectID}
	} else {
		ids, err := s.store.MemberProjectIDs(ctx, who.UserID)
		if err != nil {
			return nil, err
		}
		projectIDs = ids
	}
	return s.store.ListTasks(ctx, models.TaskFilter{
		ProjectIDs: projectIDs,
		StatusID:   filter.StatusID,
		AssigneeID: filter.AssigneeID,
	})
}

// validateTask checks field limits and that the status and assignees belong
// to the task's project.
func (s *Service) validateTask(ctx context.Context, t models.Task) error {
	verr := &ValidationError{}
	switch {
	case t.Title == "":
		verr.add("title", "This field is required.")
	case utf8.RuneCountInString(t.Title) > MaxTaskTitleLength:
		verr.add("title", "Ensure this value has at most 255 characters.")
	}

	if t.StatusID != nil {
		st, err := s.store.GetStatus(ctx, *t.StatusID)
		switch {
		case errors.Is(err, sqlite.ErrNotFound), err == nil && st.ProjectID != t.ProjectID:
			verr.add("status", "Select a valid choice. That choice is not one of the available choices.")
		case err != nil:
			return err
		}
	}

	for _, id := range t.AssigneeIDs {
		ok, err := s.store.IsMember(ctx, t.ProjectID, id)
		if err != nil {
			return err
		}
		if !ok {
			verr.add("assigned_users", "Select a valid choice. Only project members can be assigned.")
			break
		}
	}
	return verr.orNil()
}
