package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestValidationError_Error_SortedByField(t *testing.T) {
	err := &ValidationError{Fields: map[string]string{
		"password_confirmation": "does not match with 'password' field",
		"email":                 "must be unique",
	}}

	want := "validation failed: email: must be unique, password_confirmation: does not match with 'password' field"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestValidationError_ErrorsAs(t *testing.T) {
	wrapped := fmt.Errorf("create user: %w", &ValidationError{Fields: map[string]string{"email": "required"}})

	var vErr *ValidationError
	if !errors.As(wrapped, &vErr) {
		t.Fatal("expected errors.As to find ValidationError")
	}
	if vErr.Fields["email"] != "required" {
		t.Errorf("Fields[email] = %q, want %q", vErr.Fields["email"], "required")
	}
}

func TestAPIError_Error(t *testing.T) {
	err := NewInvalidCredentialsError()
	if got := err.Error(); got != "[INVALID_CREDENTIALS] invalid credentials" {
		t.Errorf("Error() = %q", got)
	}
}

func TestPage_Normalize(t *testing.T) {
	tests := []struct {
		name string
		in   Page
		want Page
	}{
		{"ゼロ値はデフォルト件数", Page{}, Page{Limit: DefaultPageLimit}},
		{"上限を超える件数は丸める", Page{Limit: 1000, Offset: 10}, Page{Limit: MaxPageLimit, Offset: 10}},
		{"負のオフセットは0", Page{Limit: 10, Offset: -5}, Page{Limit: 10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.in.Normalize(); got != tt.want {
				t.Errorf("Normalize() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestUser_PasswordHashNotSerialized(t *testing.T) {
	u := &User{Base: Base{ID: 1}, Email: "a@x.com", PasswordHash: "$pbkdf2-sha256$..."}
	if u.RecordID() != 1 {
		t.Errorf("RecordID() = %d, want 1", u.RecordID())
	}
	if u.PasswordHashValue() != "$pbkdf2-sha256$..." {
		t.Errorf("PasswordHashValue() = %q", u.PasswordHashValue())
	}

	b, err := json.Marshal(u)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if strings.Contains(string(b), "pbkdf2") || strings.Contains(string(b), "password") {
		t.Errorf("serialized user should not contain the password hash: %s", b)
	}
}
