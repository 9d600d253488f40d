package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"kanban/internal/models"
)

// Status positions within a project are kept dense (1..n). Every write below
// shifts neighbours inside the same transaction so that invariant holds.

// ListStatuses returns the project's columns in board order.
func (s *Store) ListStatuses(ctx context.Context, projectID int64) ([]models.Status, error) {
	return listStatuses(ctx, s.db, projectID)
}

// GetStatus fetches a status by id.
func (s *Store) GetStatus(ctx context.Context, id int64) (models.Status, error) {
	return getStatus(ctx, s.db, id)
}

// InsertStatus creates a column at position, clamped to [1, n+1]. A position
// of zero or less appends at the end.
func (s *Store) InsertStatus(ctx context.Context, projectID int64, name string, position int) (models.Status, error) {
	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		n, err := countStatuses(ctx, tx, projectID)
		if err != nil {
			return err
		}
		if position <= 0 || position > n+1 {
			position = n + 1
		}
		if _, err := tx.ExecContext(ctx, `UPDATE statuses SET position = position + 1
            WHERE project_id = ? AND position >= ?`, projectID, position); err != nil {
			return fmt.Errorf("shift statuses: %w", err)
		}
		res, err := tx.ExecContext(ctx, `INSERT INTO statuses(project_id, name, position) VALUES(?, ?, ?)`, projectID, name, position)
		if isUniqueViolation(err) {
			return fmt.Errorf("status %q: %w", name, ErrConflict)
		}
		if err != nil {
			return fmt.Errorf("insert status: %w", err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("status id: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.Status{}, err
	}
	return s.GetStatus(ctx, id)
}

// UpdateStatus renames a column and moves it to position, clamped to [1, n].
func (s *Store) UpdateStatus(ctx context.Context, id int64, name string, position int) (models.Status, error) {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := getStatus(ctx, tx, id)
		if err != nil {
			return err
		}
		n, err := countStatuses(ctx, tx, current.ProjectID)
		if err != nil {
			return err
		}
		if position <= 0 || position > n {
			position = n
		}

		switch {
		case position < current.Order:
			_, err = tx.ExecContext(ctx, `UPDATE statuses SET position = position + 1
                WHERE project_id = ? AND position >= ? AND position < ?`, current.ProjectID, position, current.Order)
		case position > current.Order:
			_, err = tx.ExecContext(ctx, `UPDATE statuses SET position = position - 1
                WHERE project_id = ? AND position > ? AND position <= ?`, current.ProjectID, current.Order, position)
		}
		if err != nil {
			return fmt.Errorf("shift statuses: %w", err)
		}

		_, err = tx.ExecContext(ctx, `UPDATE statuses SET name = ?, position = ? WHERE id = ?`, name, position, id)
		if isUniqueViolation(err) {
			return fmt.Errorf("status %q: %w", name, ErrConflict)
		}
		if err != nil {
			return fmt.Errorf("update status: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.Status{}, err
	}
	return s.GetStatus(ctx, id)
}

// DeleteStatus removes a column. Tasks in it fall back to no status through
// the ON DELETE SET NULL foreign key; later columns close the gap.
func (s *Store) DeleteStatus(ctx context.Context, id int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := getStatus(ctx, tx, id)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM statuses WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete status: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE statuses SET position = position - 1
            WHERE project_id = ? AND position > ?`, current.ProjectID, current.Order); err != nil {
			return fmt.Errorf("shift statuses: %w", err)
		}
		return nil
	})
}

func listStatuses(ctx context.Context, q queryer, projectID int64) ([]models.Status, error) {
	rows, err := q.QueryContext(ctx, `SELECT id, project_id, name, position FROM statuses
        WHERE project_id = ? ORDER BY position, id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list statuses: %w", err)
	}
	defer rows.Close()

	var statuses []models.Status
	for rows.Next() {
		var st models.Status
		if err := rows.Scan(&st.ID, &st.ProjectID, &st.Name, &st.Order); err != nil {
			return nil, fmt.Errorf("scan status: %w", err)
		}
		statuses = append(statuses, st)
	}
	return statuses, rows.Err()
}

func getStatus(ctx context.Context, q queryer, id int64) (models.Status, error) {
	var st models.Status
	err := q.QueryRowContext(ctx, `SELECT id, project_id, name, position FROM statuses WHERE id = ?`, id).
		Scan(&st.ID, &st.ProjectID, &st.Name, &st.Order)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Status{}, fmt.Errorf("status: %w", ErrNotFound)
	}
	if err != nil {
		return models.Status{}, fmt.Errorf("get status: %w", err)
	}
	return st, nil
}

func countStatuses(ctx context.Context, q queryer, projectID int64) (int, error) {
	var n int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM statuses WHERE project_id = ?`, projectID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count statuses: %w", err)
	}
	return n, nil
}
