// Package board implements project membership, status ordering and the task
// lifecycle on top of the entity store. Every call takes the acting Identity
// explicitly and checks project membership before reading or writing.
package board

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"kanban/internal/models"
	"kanban/internal/storage/sqlite"
)

// Store is the persistence surface the services need.
type Store interface {
	GetUser(ctx context.Context, id int64) (models.User, error)
	GetUserByUsername(ctx context.Context, username string) (models.User, error)

	CreateProject(ctx context.Context, name, inviteToken string, ownerID int64) (models.Project, error)
	GetProject(ctx context.Context, id int64) (models.Project, error)
	GetProjectByInviteToken(ctx context.Context, token string) (models.Project, error)
	ListProjectsForUser(ctx context.Context, userID int64) ([]models.Project, error)
	MemberProjectIDs(ctx context.Context, userID int64) ([]int64, error)
	DeleteProject(ctx context.Context, id int64) error

	AddMember(ctx context.Context, projectID, userID int64) (bool, error)
	RemoveMember(ctx context.Context, projectID, userID int64) error
	IsMember(ctx context.Context, projectID, userID int64) (bool, error)
	ListMembers(ctx context.Context, projectID int64) ([]models.User, error)

	ListStatuses(ctx context.Context, projectID int64) ([]models.Status, error)
	GetStatus(ctx context.Context, id int64) (models.Status, error)
	InsertStatus(ctx context.Context, projectID int64, name string, position int) (models.Status, error)
	UpdateStatus(ctx context.Context, id int64, name string, position int) (models.Status, error)
	DeleteStatus(ctx context.Context, id int64) error

	CreateTask(ctx context.Context, t models.Task) (models.Task, error)
	GetTask(ctx context.Context, id int64) (models.Task, error)
	UpdateTask(ctx context.Context, t models.Task) (models.Task, error)
	SetTaskStatus(ctx context.Context, id int64, statusID *int64) error
	DeleteTask(ctx context.Context, id int64) error
	ListTasks(ctx context.Context, filter models.TaskFilter) ([]models.Task, error)
}

// Identity is the authenticated caller.
type Identity struct {
	UserID   int64
	Username string
}

// Service groups the membership, status and task operations.
type Service struct {
	store    Store
	logger   *slog.Logger
	newToken func() string
}

// New constructs a Service. A nil logger falls back to slog.Default.
func New(store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger, newToken: newInviteToken}
}

// Board is everything the project page renders.
type Board struct {
	Project  models.Project
	Owner    *models.User
	Statuses []models.Status
	Tasks    []models.Task
	Members  []models.User
}

// Column groups the tasks that sit in one status.
type Column struct {
	Status *models.Status
	Tasks  []models.Task
}

// Columns returns the board's columns in order. Tasks without a status are
// collected in a leading column whose Status is nil.
func (b Board) Columns() []Column {
	columns := make([]Column, 0, len(b.Statuses)+1)
	index := make(map[int64]int, len(b.Statuses))
	columns = append(columns, Column{})
	for i := range b.Statuses {
		index[b.Statuses[i].ID] = len(columns)
		columns = append(columns, Column{Status: &b.Statuses[i]})
	}
	for _, t := range b.Tasks {
		pos := 0
		if t.StatusID != nil {
			if i, ok := index[*t.StatusID]; ok {
				pos = i
			}
		}
		columns[pos].Tasks = append(columns[pos].Tasks, t)
	}
	return columns
}

// Member looks up a member by id.
func (b Board) Member(id int64) (models.User, bool) {
	for _, m := range b.Members {
		if m.ID == id {
			return m, true
		}
	}
	return models.User{}, false
}

// Board loads a project page for a member.
func (s *Service) Board(ctx context.Context, who Identity, projectID int64) (Board, error) {
	project, err := s.authorize(ctx, who, projectID)
	if err != nil {
		return Board{}, err
	}
	statuses, err := s.store.ListStatuses(ctx, projectID)
	if err != nil {
		return Board{}, err
	}
	tasks, err := s.store.ListTasks(ctx, models.TaskFilter{ProjectIDs: []int64{projectID}})
	if err != nil {
		return Board{}, err
	}
	members, err := s.store.ListMembers(ctx, projectID)
	if err != nil {
		return Board{}, err
	}

	b := Board{Project: project, Statuses: statuses, Tasks: tasks, Members: members}
	if project.OwnerID != nil {
		if owner, ok := b.Member(*project.OwnerID); ok {
			b.Owner = &owner
		}
	}
	return b, nil
}

// authorize loads the project and fails with ErrForbidden unless the caller is a member.
func (s *Service) authorize(ctx context.Context, who Identity, projectID int64) (models.Project, error) {
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return models.Project{}, translate(err)
	}
	ok, err := s.store.IsMember(ctx, projectID, who.UserID)
	if err != nil {
		return models.Project{}, err
	}
	if !ok {
		s.logger.Debug("non-member access denied",
			slog.Int64("project_id", projectID), slog.Int64("user_id", who.UserID))
		return models.Project{}, ErrForbidden
	}
	return project, nil
}

// translate maps store sentinels onto the package's errors.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sqlite.ErrNotFound):
		return fmt.Errorf("%w: %s", ErrNotFound, strings.TrimSuffix(err.Error(), ": "+sqlite.ErrNotFound.Error()))
	default:
		return err
	}
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
