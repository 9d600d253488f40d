package board

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestCreateProject(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	alice := f.user(t, "alice")

	p := f.project(t, alice, "  Launch  ")
	if p.Name != "Launch" || !p.OwnedBy(alice.UserID) || p.InviteToken == "" {
		t.Fatalf("project = %+v", p)
	}
	ok, err := f.svc.IsMember(ctx, p.ID, alice.UserID)
	if err != nil || !ok {
		t.Fatalf("owner membership = %v, %v", ok, err)
	}

	other := f.project(t, alice, "Second")
	if other.InviteToken == p.InviteToken {
		t.Error("invite tokens must be unique")
	}

	_, err = f.svc.CreateProject(ctx, alice, "   ")
	fieldError(t, err, "name")
	_, err = f.svc.CreateProject(ctx, alice, strings.Repeat("x", MaxProjectNameLength+1))
	fieldError(t, err, "name")

	projects, err := f.svc.ListProjects(ctx, alice)
	if err != nil || len(projects) != 2 {
		t.Fatalf("projects = %v, %v", projects, err)
	}
}

func TestJoinByInviteToken(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	p := f.project(t, alice, "P")

	res, err := f.svc.JoinByInviteToken(ctx, bob, p.ID, "not-the-token")
	if !errors.Is(err, ErrInvalidInviteToken) {
		t.Fatalf("bad token err = %v", err)
	}
	if ok, _ := f.svc.IsMember(ctx, p.ID, bob.UserID); ok {
		t.Fatal("bad token must not grant membership")
	}

	res, err = f.svc.JoinByInviteToken(ctx, bob, p.ID, strings.ToUpper(p.InviteToken))
	if err != nil || res != Joined {
		t.Fatalf("join = %v, %v", res, err)
	}
	res, err = f.svc.JoinByInviteToken(ctx, bob, p.ID, p.InviteToken)
	if err != nil || res != AlreadyMember {
		t.Fatalf("rejoin = %v, %v", res, err)
	}
	members, err := f.svc.Members(ctx, bob, p.ID)
	if err != nil || len(members) != 2 {
		t.Fatalf("members = %v, %v", members, err)
	}

	if _, err := f.svc.JoinByInviteToken(ctx, bob, 9999, p.InviteToken); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing project err = %v", err)
	}
}

func TestJoinByInviteToken_TokenOfOtherProject(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	p := f.project(t, alice, "P")
	q := f.project(t, alice, "Q")

	if _, err := f.svc.JoinByInviteToken(ctx, bob, p.ID, q.InviteToken); !errors.Is(err, ErrInvalidInviteToken) {
		t.Fatalf("err = %v, want ErrInvalidInviteToken", err)
	}
}

func TestJoinByCode(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	p := f.project(t, alice, "P")

	for _, code := range []string{"", "garbage", "00000000-0000-0000-0000-000000000000"} {
		if _, _, err := f.svc.JoinByCode(ctx, bob, code); !errors.Is(err, ErrInvalidInviteToken) {
			t.Fatalf("code %q err = %v, want ErrInvalidInviteToken", code, err)
		}
	}

	got, res, err := f.svc.JoinByCode(ctx, bob, "  "+p.InviteToken+" ")
	if err != nil || res != Joined || got.ID != p.ID {
		t.Fatalf("join = %+v, %v, %v", got, res, err)
	}
	_, res, err = f.svc.JoinByCode(ctx, bob, p.InviteToken)
	if err != nil || res != AlreadyMember {
		t.Fatalf("rejoin = %v, %v", res, err)
	}
}

func TestAddMemberByUsername(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	carol := f.user(t, "carol")
	p := f.project(t, alice, "P")

	if _, err := f.svc.AddMemberByUsername(ctx, carol, p.ID, "bob"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("non-member add err = %v, want ErrForbidden", err)
	}
	if _, err := f.svc.AddMemberByUsername(ctx, alice, p.ID, "nobody"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("unknown user err = %v, want ErrUserNotFound", err)
	}

	res, err := f.svc.AddMemberByUsername(ctx, alice, p.ID, "bob")
	if err != nil || res != Joined {
		t.Fatalf("add = %v, %v", res, err)
	}
	// Any member may add others, not only the owner.
	res, err = f.svc.AddMemberByUsername(ctx, bob, p.ID, "carol")
	if err != nil || res != Joined {
		t.Fatalf("member add = %v, %v", res, err)
	}
	res, err = f.svc.AddMemberByUsername(ctx, bob, p.ID, "alice")
	if err != nil || res != AlreadyMember {
		t.Fatalf("re-add = %v, %v", res, err)
	}
}

func TestRemoveMember(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	p := f.project(t, alice, "P")
	f.join(t, bob, p)

	task, err := f.svc.CreateTask(ctx, alice, p.ID, TaskInput{Title: "T", AssigneeIDs: []int64{bob.UserID, alice.UserID}})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}

	if err := f.svc.RemoveMember(ctx, bob, p.ID, alice.UserID); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("non-owner remove err = %v, want ErrNotOwner", err)
	}
	if err := f.svc.RemoveMember(ctx, alice, p.ID, alice.UserID); !errors.Is(err, ErrCannotRemoveSelf) {
		t.Fatalf("self remove err = %v, want ErrCannotRemoveSelf", err)
	}
	if err := f.svc.RemoveMember(ctx, alice, p.ID, bob.UserID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := f.svc.RemoveMember(ctx, alice, p.ID, bob.UserID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second remove err = %v, want ErrNotFound", err)
	}

	if _, err := f.svc.Board(ctx, bob, p.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("removed member board err = %v, want ErrForbidden", err)
	}
	got, err := f.svc.Task(ctx, alice, task.ID)
	if err != nil {
		t.Fatalf("task: %v", err)
	}
	if len(got.AssigneeIDs) != 1 || got.AssigneeIDs[0] != alice.UserID {
		t.Fatalf("assignees = %v, want only alice", got.AssigneeIDs)
	}
}

func TestDeleteProject(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	p := f.project(t, alice, "P")
	f.join(t, bob, p)

	if err := f.svc.DeleteProject(ctx, bob, p.ID); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("non-owner delete err = %v, want ErrNotOwner", err)
	}
	if err := f.svc.DeleteProject(ctx, alice, p.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := f.svc.Project(ctx, alice, p.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("deleted project err = %v, want ErrNotFound", err)
	}
	projects, err := f.svc.ListProjects(ctx, bob)
	if err != nil || len(projects) != 0 {
		t.Fatalf("bob projects = %v, %v", projects, err)
	}
}
