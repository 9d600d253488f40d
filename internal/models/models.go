package models

import "time"

// User is a registered account that can own and join projects.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Project is a board shared by its members.
type Project struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	InviteToken string    `json:"invite_token"`
	OwnerID     *int64    `json:"owner_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// OwnedBy reports whether userID owns the project.
func (p Project) OwnedBy(userID int64) bool {
	return p.OwnerID != nil && *p.OwnerID == userID
}

// Status is an ordered board column. Order is the 1-based column position.
type Status struct {
	ID        int64  `json:"id"`
	ProjectID int64  `json:"project_id"`
	Name      string `json:"name"`
	Order     int    `json:"order"`
}

// Task is a single card on the board.
type Task struct {
	ID          int64      `json:"id"`
	ProjectID   int64      `json:"project_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	StatusID    *int64     `json:"status_id"`
	AssigneeIDs []int64    `json:"assignee_ids"`
	Deadline    *time.Time `json:"deadline"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// HasStatus reports whether the task sits in the given column.
func (t Task) HasStatus(statusID int64) bool {
	return t.StatusID != nil && *t.StatusID == statusID
}

// TaskFilter narrows task listings. ProjectIDs is required by the store;
// zero-valued fields are ignored.
type TaskFilter struct {
	ProjectIDs []int64
	StatusID   int64
	AssigneeID int64
}
