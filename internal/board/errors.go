package board

import (
	"errors"
	"sort"
	"strings"
)

// Sentinel errors for handlers to map to responses.
var (
	ErrNotFound           = errors.New("not found")
	ErrForbidden          = errors.New("not a member of this project")
	ErrNotOwner           = errors.New("only the project owner can do this")
	ErrCannotRemoveSelf   = errors.New("the owner cannot remove themselves")
	ErrInvalidInviteToken = errors.New("invite code does not match any project")
	ErrUserNotFound       = errors.New("no user with that username")
	ErrStatusNotInProject = errors.New("status belongs to another project")
)

// JoinResult tells callers what a join or add-member call did.
type JoinResult int

const (
	// Joined means a new membership was created.
	Joined JoinResult = iota + 1
	// AlreadyMember means the membership existed and nothing changed.
	AlreadyMember
)

func (r JoinResult) String() string {
	switch r {
	case Joined:
		return "joined"
	case AlreadyMember:
		return "already a member"
	default:
		return "unknown"
	}
}

// ValidationError carries per-field messages for re-rendering a form.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func invalid(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

// add records a message for field, keeping the first one.
func (e *ValidationError) add(field, message string) {
	if e.Fields == nil {
		e.Fields = map[string]string{}
	}
	if _, ok := e.Fields[field]; !ok {
		e.Fields[field] = message
	}
}

func (e *ValidationError) orNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}
