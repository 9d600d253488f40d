package board

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func columnNames(t *testing.T, f fixture, who Identity, projectID int64) []string {
	t.Helper()
	statuses, err := f.svc.ListStatuses(context.Background(), who, projectID)
	if err != nil {
		t.Fatalf("list statuses: %v", err)
	}
	names := make([]string, len(statuses))
	for i, st := range statuses {
		if st.Order != i+1 {
			t.Fatalf("status %q has order %d at index %d", st.Name, st.Order, i)
		}
		names[i] = st.Name
	}
	return names
}

func sameNames(a, b []string) bool {
	return strings.Join(a, ",") == strings.Join(b, ",")
}

func TestCreateStatus_InsertAtOrder(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	alice := f.user(t, "alice")
	p := f.project(t, alice, "P")

	f.status(t, alice, p.ID, "Todo")
	f.status(t, alice, p.ID, "Done")
	st, err := f.svc.CreateStatus(ctx, alice, p.ID, "Doing", 2)
	if err != nil {
		t.Fatalf("insert at 2: %v", err)
	}
	if st.Order != 2 {
		t.Errorf("order = %d, want 2", st.Order)
	}
	if got := columnNames(t, f, alice, p.ID); !sameNames(got, []string{"Todo", "Doing", "Done"}) {
		t.Fatalf("columns = %v", got)
	}
}

func TestCreateStatus_Validation(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	alice := f.user(t, "alice")
	p := f.project(t, alice, "P")
	f.status(t, alice, p.ID, "Todo")

	_, err := f.svc.CreateStatus(ctx, alice, p.ID, "Todo", 0)
	fieldError(t, err, "name")
	_, err = f.svc.CreateStatus(ctx, alice, p.ID, "", 0)
	fieldError(t, err, "name")
	_, err = f.svc.CreateStatus(ctx, alice, p.ID, strings.Repeat("s", MaxStatusNameLength+1), 0)
	fieldError(t, err, "name")
	_, err = f.svc.CreateStatus(ctx, alice, p.ID, "Later", -1)
	fieldError(t, err, "order")

	if got := columnNames(t, f, alice, p.ID); !sameNames(got, []string{"Todo"}) {
		t.Fatalf("rejected inserts changed columns: %v", got)
	}

	// Names are unique per project only.
	q := f.project(t, alice, "Q")
	if _, err := f.svc.CreateStatus(ctx, alice, q.ID, "Todo", 0); err != nil {
		t.Fatalf("same name in other project: %v", err)
	}
}

func TestEditStatus(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	alice := f.user(t, "alice")
	mallory := f.user(t, "mallory")
	p := f.project(t, alice, "P")
	todo := f.status(t, alice, p.ID, "Todo")
	f.status(t, alice, p.ID, "Doing")
	done := f.status(t, alice, p.ID, "Done")

	first := 1
	if _, err := f.svc.EditStatus(ctx, alice, done.ID, nil, &first); err != nil {
		t.Fatalf("move: %v", err)
	}
	if got := columnNames(t, f, alice, p.ID); !sameNames(got, []string{"Done", "Todo", "Doing"}) {
		t.Fatalf("after move: %v", got)
	}

	name := "Backlog"
	st, err := f.svc.EditStatus(ctx, alice, todo.ID, &name, nil)
	if err != nil {
		t.Fatalf("rename: %v", err)
	}
	if st.Name != "Backlog" || st.Order != 2 {
		t.Fatalf("renamed = %+v", st)
	}

	dup := "Doing"
	_, err = f.svc.EditStatus(ctx, alice, todo.ID, &dup, nil)
	fieldError(t, err, "name")

	if _, err := f.svc.EditStatus(ctx, mallory, todo.ID, &name, nil); !errors.Is(err, ErrForbidden) {
		t.Fatalf("non-member edit err = %v, want ErrForbidden", err)
	}
	if _, err := f.svc.EditStatus(ctx, alice, 9999, &name, nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing status err = %v, want ErrNotFound", err)
	}
}

func TestDeleteStatus_TasksKeepExisting(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	alice := f.user(t, "alice")
	p := f.project(t, alice, "P")
	todo := f.status(t, alice, p.ID, "Todo")
	f.status(t, alice, p.ID, "Done")

	task, err := f.svc.CreateTask(ctx, alice, p.ID, TaskInput{Title: "T", StatusID: &todo.ID})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}

	deleted, err := f.svc.DeleteStatus(ctx, alice, todo.ID)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if deleted.ProjectID != p.ID {
		t.Errorf("deleted status project = %d", deleted.ProjectID)
	}
	if got := columnNames(t, f, alice, p.ID); !sameNames(got, []string{"Done"}) {
		t.Fatalf("columns = %v", got)
	}
	got, err := f.svc.Task(ctx, alice, task.ID)
	if err != nil {
		t.Fatalf("task gone: %v", err)
	}
	if got.StatusID != nil {
		t.Fatalf("status = %d, want none", *got.StatusID)
	}
}
