package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"kanban/internal/storage/sqlite"
	"kanban/internal/validation"
)

func testHasher() *Hasher {
	return NewHasher(Argon2Params{Memory: 1024, Iterations: 1, Parallelism: 1})
}

func setupService(t *testing.T) *Service {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "auth.db"), nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return NewService(store, testHasher(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestHasher_HashAndVerify(t *testing.T) {
	h := testHasher()
	encoded, err := h.Hash("correct horse")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !strings.HasPrefix(encoded, "$argon2id$v=19$m=1024,t=1,p=1$") {
		t.Fatalf("unexpected encoding %q", encoded)
	}
	if !h.Verify("correct horse", encoded) {
		t.Error("correct password rejected")
	}
	if h.Verify("wrong horse", encoded) {
		t.Error("wrong password accepted")
	}

	again, err := h.Hash("correct horse")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if again == encoded {
		t.Error("hashes must be salted")
	}
}

func TestHasher_VerifyUsesEncodedParams(t *testing.T) {
	encoded, err := NewHasher(Argon2Params{Memory: 2048, Iterations: 2, Parallelism: 1}).Hash("pw")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !testHasher().Verify("pw", encoded) {
		t.Fatal("hash made with other parameters should still verify")
	}
}

func TestHasher_VerifyRejectsGarbage(t *testing.T) {
	h := testHasher()
	for _, encoded := range []string{"", "plain", "$argon2i$v=19$m=1,t=1,p=1$a$b", "$argon2id$v=1$m=1,t=1,p=1$a$b"} {
		if h.Verify("pw", encoded) {
			t.Errorf("Verify accepted %q", encoded)
		}
	}
}

func TestRegister(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, Registration{Username: " alice ", Password: "password1", PasswordConfirm: "password1"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.Username != "alice" || user.PasswordHash == "password1" {
		t.Fatalf("user = %+v", user)
	}

	_, err = svc.Register(ctx, Registration{Username: "alice", Password: "password2", PasswordConfirm: "password2"})
	if !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("duplicate err = %v, want ErrUsernameTaken", err)
	}
}

func TestRegister_Validation(t *testing.T) {
	svc := setupService(t)
	cases := []struct {
		name  string
		reg   Registration
		field string
	}{
		{"missing username", Registration{Password: "password1", PasswordConfirm: "password1"}, "username"},
		{"bad characters", Registration{Username: "bad name!", Password: "password1", PasswordConfirm: "password1"}, "username"},
		{"short password", Registration{Username: "bob", Password: "short", PasswordConfirm: "short"}, "password"},
		{"mismatch", Registration{Username: "bob", Password: "password1", PasswordConfirm: "password2"}, "password_confirm"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), tc.reg)
			fields, ok := validation.Messages(err)
			if !ok {
				t.Fatalf("err = %v, want validation errors", err)
			}
			if _, ok := fields[tc.field]; !ok {
				t.Fatalf("fields = %v, want %q", fields, tc.field)
			}
		})
	}
}

func TestAuthenticate(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()
	registered, err := svc.Register(ctx, Registration{Username: "alice", Password: "password1", PasswordConfirm: "password1"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	user, err := svc.Authenticate(ctx, "alice", "password1")
	if err != nil || user.ID != registered.ID {
		t.Fatalf("authenticate = %+v, %v", user, err)
	}
	if _, err := svc.Authenticate(ctx, "alice", "nope"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password err = %v", err)
	}
	if _, err := svc.Authenticate(ctx, "nobody", "password1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown user err = %v", err)
	}

	loaded, err := svc.User(ctx, registered.ID)
	if err != nil || loaded.Username != "alice" {
		t.Fatalf("user = %+v, %v", loaded, err)
	}
}

func TestSessionRoundTrip(t *testing.T) {
	store, err := NewCookieStore(SessionOptions{Secret: "s3cret"})
	if err != nil {
		t.Fatalf("cookie store: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	sess, err := store.Get(req, SessionName)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if _, ok := SessionUserID(sess); ok {
		t.Fatal("new session should be anonymous")
	}
	Login(sess, 7)
	if err := sess.Save(req, rec); err != nil {
		t.Fatalf("save: %v", err)
	}

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || !cookies[0].HttpOnly || cookies[0].SameSite != http.SameSiteLaxMode {
		t.Fatalf("cookies = %+v", cookies)
	}

	// A second store with the same secret can read the cookie.
	other, err := NewCookieStore(SessionOptions{Secret: "s3cret"})
	if err != nil {
		t.Fatalf("cookie store: %v", err)
	}
	next := httptest.NewRequest(http.MethodGet, "/", nil)
	next.AddCookie(cookies[0])
	restored, err := other.Get(next, SessionName)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if id, ok := SessionUserID(restored); !ok || id != 7 {
		t.Fatalf("user id = %d, %v", id, ok)
	}

	Logout(restored)
	if _, ok := SessionUserID(restored); ok {
		t.Fatal("logout should clear the user")
	}
	if restored.Options.MaxAge >= 0 {
		t.Fatal("logout should expire the cookie")
	}
}

func TestNewCookieStore_RandomKeysWithoutSecret(t *testing.T) {
	a, err := NewCookieStore(SessionOptions{})
	if err != nil {
		t.Fatalf("cookie store: %v", err)
	}
	b, err := NewCookieStore(SessionOptions{})
	if err != nil {
		t.Fatalf("cookie store: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	sess, _ := a.Get(req, SessionName)
	Login(sess, 1)
	if err := sess.Save(req, rec); err != nil {
		t.Fatalf("save: %v", err)
	}

	next := httptest.NewRequest(http.MethodGet, "/", nil)
	next.AddCookie(rec.Result().Cookies()[0])
	restored, _ := b.Get(next, SessionName)
	if _, ok := SessionUserID(restored); ok {
		t.Fatal("a store with different keys must not trust the cookie")
	}
}
