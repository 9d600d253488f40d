package validation

import (
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
)

type signup struct {
	Username string `form:"username" validate:"required,max=10,username"`
	Password string `json:"password" validate:"required,min=4"`
	Confirm  string `form:"confirm" validate:"eqfield=Password"`
}

func TestMessages(t *testing.T) {
	v := New()
	err := v.Struct(signup{Username: "no spaces", Password: "abc", Confirm: "x"})
	fields, ok := Messages(err)
	if !ok {
		t.Fatalf("err = %v, want validation errors", err)
	}

	want := map[string]string{
		"username": "Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters.",
		"password": "Ensure this value has at least 4 characters.",
		"confirm":  "The two password fields didn't match.",
	}
	for field, msg := range want {
		if fields[field] != msg {
			t.Errorf("%s = %q, want %q", field, fields[field], msg)
		}
	}
	if len(fields) != 3 {
		t.Errorf("fields = %v", fields)
	}
}

func TestMessages_Valid(t *testing.T) {
	if err := New().Struct(signup{Username: "a.b@c+d-e", Password: "abcd", Confirm: "abcd"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestMessages_NotValidation(t *testing.T) {
	if _, ok := Messages(errors.New("boom")); ok {
		t.Fatal("plain errors are not validation errors")
	}
	if _, ok := Messages(nil); ok {
		t.Fatal("nil is not a validation error")
	}
}

func TestConfigure(t *testing.T) {
	v := validator.New()
	if err := Configure(v); err != nil {
		t.Fatalf("configure: %v", err)
	}
	if err := v.Var("bad name", "username"); err == nil {
		t.Fatal("username rule not registered")
	}
	if err := v.Var("ok.name", "username"); err != nil {
		t.Fatalf("valid username rejected: %v", err)
	}
}
