package library

import (
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestUserCheckPassword(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("GenerateFromPassword: %v", err)
	}
	u := User{PasswordHash: string(hash)}

	if !u.CheckPassword("correct horse") {
		t.Fatal("expected matching password to verify")
	}
	if u.CheckPassword("wrong") {
		t.Fatal("expected mismatched password to fail")
	}
}

func TestPermissionKindAtLeast(t *testing.T) {
	if !PermissionAdmin.AtLeast(PermissionWrite) {
		t.Fatal("admin should satisfy write requirement")
	}
	if PermissionRead.AtLeast(PermissionWrite) {
		t.Fatal("read should not satisfy write requirement")
	}
}
