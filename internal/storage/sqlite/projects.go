package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"kanban/internal/models"
)

const projectColumns = `p.id, p.name, p.invite_token, p.owner_id, p.created_at`

// CreateProject inserts a project and its owner's membership in one transaction.
func (s *Store) CreateProject(ctx context.Context, name, inviteToken string, ownerID int64) (models.Project, error) {
	if strings.TrimSpace(name) == "" {
		return models.Project{}, fmt.Errorf("project name must not be empty")
	}

	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `INSERT INTO projects(name, invite_token, owner_id) VALUES(?, ?, ?)`,
			strings.TrimSpace(name), inviteToken, ownerID)
		if isUniqueViolation(err) {
			return fmt.Errorf("invite token: %w", ErrConflict)
		}
		if err != nil {
			return fmt.Errorf("insert project: %w", err)
		}
		if id, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("project id: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO memberships(project_id, user_id) VALUES(?, ?)`, id, ownerID); err != nil {
			return fmt.Errorf("insert owner membership: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.Project{}, err
	}
	return s.GetProject(ctx, id)
}

// GetProject fetches a single project by id.
func (s *Store) GetProject(ctx context.Context, id int64) (models.Project, error) {
	return scanProject(s.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects p WHERE p.id = ?`, id))
}

// GetProjectByInviteToken resolves an invite token to its project.
func (s *Store) GetProjectByInviteToken(ctx context.Context, token string) (models.Project, error) {
	return scanProject(s.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects p WHERE p.invite_token = ?`, token))
}

// ListProjectsForUser returns the projects userID is a member of, newest first.
func (s *Store) ListProjectsForUser(ctx context.Context, userID int64) ([]models.Project, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+projectColumns+` FROM projects p
        JOIN memberships m ON m.project_id = p.id
        WHERE m.user_id = ?
        ORDER BY p.created_at DESC, p.id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var projects []models.Project
	for rows.Next() {
		var (
			p     models.Project
			owner sql.NullInt64
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.InviteToken, &owner, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		p.OwnerID = int64Ptr(owner)
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// MemberProjectIDs returns the ids of every project userID belongs to.
func (s *Store) MemberProjectIDs(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT project_id FROM memberships WHERE user_id = ? ORDER BY project_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteProject removes a project along with its memberships, statuses and tasks.
func (s *Store) DeleteProject(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("project: %w", ErrNotFound)
	}
	return nil
}

// AddMember creates the membership unless it already exists. created reports
// whether a new row was written.
func (s *Store) AddMember(ctx context.Context, projectID, userID int64) (created bool, err error) {
	res, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO memberships(project_id, user_id) VALUES(?, ?)`, projectID, userID)
	if err != nil {
		return false, fmt.Errorf("insert membership: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// RemoveMember deletes the membership and drops the user's assignments on the
// project's tasks.
func (s *Store) RemoveMember(ctx context.Context, projectID, userID int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM memberships WHERE project_id = ? AND user_id = ?`, projectID, userID)
		if err != nil {
			return fmt.Errorf("delete membership: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return fmt.Errorf("membership: %w", ErrNotFound)
		}
		_, err = tx.ExecContext(ctx, `DELETE FROM task_assignees
            WHERE user_id = ? AND task_id IN (SELECT id FROM tasks WHERE project_id = ?)`, userID, projectID)
		if err != nil {
			return fmt.Errorf("delete assignments: %w", err)
		}
		return nil
	})
}

// IsMember reports whether userID belongs to projectID.
func (s *Store) IsMember(ctx context.Context, projectID, userID int64) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memberships WHERE project_id = ? AND user_id = ?`, projectID, userID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check membership: %w", err)
	}
	return n > 0, nil
}

// ListMembers returns the project's members ordered by username.
func (s *Store) ListMembers(ctx context.Context, projectID int64) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT u.id, u.username, u.password_hash, u.created_at FROM users u
        JOIN memberships m ON m.user_id = u.id
        WHERE m.project_id = ?
        ORDER BY u.username`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func scanProject(row *sql.Row) (models.Project, error) {
	var (
		p     models.Project
		owner sql.NullInt64
	)
	err := row.Scan(&p.ID, &p.Name, &p.InviteToken, &owner, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Project{}, fmt.Errorf("project: %w", ErrNotFound)
	}
	if err != nil {
		return models.Project{}, fmt.Errorf("get project: %w", err)
	}
	p.OwnerID = int64Ptr(owner)
	return p, nil
}
