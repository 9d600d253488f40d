package board

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"kanban/internal/models"
	"kanban/internal/storage/sqlite"
)

// MaxProjectNameLength bounds project names.
const MaxProjectNameLength = 255

func newInviteToken() string {
	return uuid.NewString()
}

// CreateProject creates a project owned by the caller, who becomes its first member.
func (s *Service) CreateProject(ctx context.Context, who Identity, name string) (models.Project, error) {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return models.Project{}, invalid("name", "This field is required.")
	case utf8.RuneCountInString(name) > MaxProjectNameLength:
		return models.Project{}, invalid("name", "Ensure this value has at most 255 characters.")
	}

	project, err := s.store.CreateProject(ctx, name, s.newToken(), who.UserID)
	if err != nil {
		return models.Project{}, err
	}
	s.logger.Info("project created",
		slog.Int64("project_id", project.ID), slog.Int64("owner_id", who.UserID))
	return project, nil
}

// Project returns a project the caller is a member of.
func (s *Service) Project(ctx context.Context, who Identity, projectID int64) (models.Project, error) {
	return s.authorize(ctx, who, projectID)
}

// ListProjects returns the caller's projects.
func (s *Service) ListProjects(ctx context.Context, who Identity) ([]models.Project, error) {
	return s.store.ListProjectsForUser(ctx, who.UserID)
}

// Members lists a project's members.
func (s *Service) Members(ctx context.Context, who Identity, projectID int64) ([]models.User, error) {
	if _, err := s.authorize(ctx, who, projectID); err != nil {
		return nil, err
	}
	return s.store.ListMembers(ctx, projectID)
}

// IsMember reports whether userID belongs to projectID.
func (s *Service) IsMember(ctx context.Context, projectID, userID int64) (bool, error) {
	return s.store.IsMember(ctx, projectID, userID)
}

// JoinByInviteToken adds the caller to projectID when token matches the
// project's invite token. A mismatch changes nothing and returns
// ErrInvalidInviteToken.
func (s *Service) JoinByInviteToken(ctx context.Context, who Identity, projectID int64, token string) (JoinResult, error) {
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return 0, translate(err)
	}
	if !strings.EqualFold(strings.TrimSpace(token), project.InviteToken) {
		return 0, ErrInvalidInviteToken
	}
	return s.join(ctx, project.ID, who.UserID)
}

// JoinByCode resolves an invite token typed by the caller and joins its project.
func (s *Service) JoinByCode(ctx context.Context, who Identity, token string) (models.Project, JoinResult, error) {
	token = strings.ToLower(strings.TrimSpace(token))
	if _, err := uuid.Parse(token); err != nil {
		return models.Project{}, 0, ErrInvalidInviteToken
	}
	project, err := s.store.GetProjectByInviteToken(ctx, token)
	if errors.Is(err, sqlite.ErrNotFound) {
		return models.Project{}, 0, ErrInvalidInviteToken
	}
	if err != nil {
		return models.Project{}, 0, err
	}
	res, err := s.join(ctx, project.ID, who.UserID)
	if err != nil {
		return models.Project{}, 0, err
	}
	return project, res, nil
}

// AddMemberByUsername lets any member add another user by username.
func (s *Service) AddMemberByUsername(ctx context.Context, who Identity, projectID int64, username string) (JoinResult, error) {
	if _, err := s.authorize(ctx, who, projectID); err != nil {
		return 0, err
	}
	user, err := s.store.GetUserByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, sqlite.ErrNotFound) {
		return 0, ErrUserNotFound
	}
	if err != nil {
		return 0, err
	}
	return s.join(ctx, projectID, user.ID)
}

// RemoveMember removes userID from the project. Only the owner may do this,
// and not to themselves.
func (s *Service) RemoveMember(ctx context.Context, who Identity, projectID, userID int64) error {
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return translate(err)
	}
	if !project.OwnedBy(who.UserID) {
		return ErrNotOwner
	}
	if userID == who.UserID {
		return ErrCannotRemoveSelf
	}
	if err := s.store.RemoveMember(ctx, projectID, userID); err != nil {
		return translate(err)
	}
	s.logger.Info("member removed",
		slog.Int64("project_id", projectID), slog.Int64("user_id", userID))
	return nil
}

// DeleteProject removes a project and everything in it. Owner only.
func (s *Service) DeleteProject(ctx context.Context, who Identity, projectID int64) error {
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return translate(err)
	}
	if !project.OwnedBy(who.UserID) {
		return ErrNotOwner
	}
	if err := s.store.DeleteProject(ctx, projectID); err != nil {
		return translate(err)
	}
	s.logger.Info("project deleted", slog.Int64("project_id", projectID))
	return nil
}

func (s *Service) join(ctx context.Context, projectID, userID int64) (JoinResult, error) {
	created, err := s.store.AddMember(ctx, projectID, userID)
	if err != nil {
		return 0, err
	}
	if !created {
		return AlreadyMember, nil
	}
	s.logger.Info("member joined",
		slog.Int64("project_id", projectID), slog.Int64("user_id", userID))
	return Joined, nil
}
