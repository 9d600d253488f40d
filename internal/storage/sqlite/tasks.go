package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"kanban/internal/models"
)

const taskColumns = `id, project_id, title, description, status_id, deadline, created_at, updated_at`

// CreateTask inserts a task together with its assignees.
func (s *Store) CreateTask(ctx context.Context, t models.Task) (models.Task, error) {
	if strings.TrimSpace(t.Title) == "" {
		return models.Task{}, fmt.Errorf("task title must not be empty")
	}

	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `INSERT INTO tasks(project_id, title, description, status_id, deadline)
            VALUES(?, ?, ?, ?, ?)`,
			t.ProjectID, strings.TrimSpace(t.Title), strings.TrimSpace(t.Description), nullableInt64(t.StatusID), nullableTime(t.Deadline))
		if err != nil {
			return fmt.Errorf("insert task: %w", err)
		}
		if id, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("task id: %w", err)
		}
		return replaceAssignees(ctx, tx, id, t.AssigneeIDs)
	})
	if err != nil {
		return models.Task{}, err
	}
	return s.GetTask(ctx, id)
}

// GetTask retrieves a task and its assignees by id.
func (s *Store) GetTask(ctx context.Context, id int64) (models.Task, error) {
	t, err := scanTask(s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id))
	if err != nil {
		return models.Task{}, err
	}
	assignees, err := loadAssignees(ctx, s.db, `SELECT task_id, user_id FROM task_assignees WHERE task_id = ? ORDER BY user_id`, id)
	if err != nil {
		return models.Task{}, err
	}
	t.AssigneeIDs = assignees[id]
	return t, nil
}

// UpdateTask overwrites the editable fields of t.ID and replaces its assignees.
func (s *Store) UpdateTask(ctx context.Context, t models.Task) (models.Task, error) {
	if strings.TrimSpace(t.Title) == "" {
		return models.Task{}, fmt.Errorf("task title must not be empty")
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE tasks SET title = ?, description = ?, status_id = ?, deadline = ?,
            updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
			strings.TrimSpace(t.Title), strings.TrimSpace(t.Description), nullableInt64(t.StatusID), nullableTime(t.Deadline), t.ID)
		if err != nil {
			return fmt.Errorf("update task: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return fmt.Errorf("task: %w", ErrNotFound)
		}
		return replaceAssignees(ctx, tx, t.ID, t.AssigneeIDs)
	})
	if err != nil {
		return models.Task{}, err
	}
	return s.GetTask(ctx, t.ID)
}

// SetTaskStatus moves a task to statusID, or to no status when statusID is nil.
func (s *Store) SetTaskStatus(ctx context.Context, id int64, statusID *int64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE tasks SET status_id = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		nullableInt64(statusID), id)
	if err != nil {
		return fmt.Errorf("move task: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("task: %w", ErrNotFound)
	}
	return nil
}

// DeleteTask removes a task by id.
func (s *Store) DeleteTask(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("task: %w", ErrNotFound)
	}
	return nil
}

// ListTasks returns the tasks of filter.ProjectIDs, oldest first. An empty
// project set yields no tasks.
func (s *Store) ListTasks(ctx context.Context, filter models.TaskFilter) ([]models.Task, error) {
	if len(filter.ProjectIDs) == 0 {
		return nil, nil
	}

	where := []string{`project_id IN (` + placeholders(len(filter.ProjectIDs)) + `)`}
	args := int64Args(filter.ProjectIDs)
	if filter.StatusID != 0 {
		where = append(where, `status_id = ?`)
		args = append(args, filter.StatusID)
	}
	if filter.AssigneeID != 0 {
		where = append(where, `id IN (SELECT task_id FROM task_assignees WHERE user_id = ?)`)
		args = append(args, filter.AssigneeID)
	}

	tasks, err := queryTasks(ctx, s.db, `SELECT `+taskColumns+` FROM tasks WHERE `+strings.Join(where, " AND ")+
		` ORDER BY created_at, id`, args...)
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return tasks, nil
	}

	assignees, err := loadAssignees(ctx, s.db, `SELECT a.task_id, a.user_id FROM task_assignees a
        JOIN tasks t ON t.id = a.task_id
        WHERE t.project_id IN (`+placeholders(len(filter.ProjectIDs))+`) ORDER BY a.user_id`,
		int64Args(filter.ProjectIDs)...)
	if err != nil {
		return nil, err
	}
	for i := range tasks {
		tasks[i].AssigneeIDs = assignees[tasks[i].ID]
	}
	return tasks, nil
}

func queryTasks(ctx context.Context, q queryer, query string, args ...any) ([]models.Task, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		t, err := scanTaskRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func loadAssignees(ctx context.Context, q queryer, query string, args ...any) (map[int64][]int64, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list assignees: %w", err)
	}
	defer rows.Close()

	out := make(map[int64][]int64)
	for rows.Next() {
		var taskID, userID int64
		if err := rows.Scan(&taskID, &userID); err != nil {
			return nil, fmt.Errorf("scan assignee: %w", err)
		}
		out[taskID] = append(out[taskID], userID)
	}
	return out, rows.Err()
}

func replaceAssignees(ctx context.Context, tx *sql.Tx, taskID int64, userIDs []int64) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM task_assignees WHERE task_id = ?`, taskID); err != nil {
		return fmt.Errorf("clear assignees: %w", err)
	}
	for _, userID := range userIDs {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO task_assignees(task_id, user_id) VALUES(?, ?)`, taskID, userID); err != nil {
			return fmt.Errorf("insert assignee: %w", err)
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTaskRow(row rowScanner) (models.Task, error) {
	var (
		t        models.Task
		status   sql.NullInt64
		deadline sql.NullTime
	)
	if err := row.Scan(&t.ID, &t.ProjectID, &t.Title, &t.Description, &status, &deadline, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return models.Task{}, err
	}
	t.StatusID = int64Ptr(status)
	if deadline.Valid {
		d := deadline.Time
		t.Deadline = &d
	}
	return t, nil
}

func scanTask(row *sql.Row) (models.Task, error) {
	t, err := scanTaskRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Task{}, fmt.Errorf("task: %w", ErrNotFound)
	}
	if err != nil {
		return models.Task{}, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

func nullableTime(v *time.Time) sql.NullTime {
	if v == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: v.UTC(), Valid: true}
}
