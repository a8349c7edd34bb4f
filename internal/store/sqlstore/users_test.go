package sqlstore

import (
	"errors"
	"testing"

	"github.com/nlagree/cryptochat/internal/models"
	"github.com/nlagree/cryptochat/internal/store"
)

func TestCreateUser(t *testing.T) {
	SetupTestDB(t)
	defer TeardownTestDB()

	user := createTestUser(t, "alice")
	if user.ID == 0 {
		t.Error("Expected non-zero user ID")
	}

	fetched, err := testStore.GetUserByUsername("alice")
	if err != nil {
		t.Fatalf("GetUserByUsername failed: %v", err)
	}
	if fetched.ID != user.ID || fetched.PublicKey != "pub-alice" {
		t.Errorf("Fetched user mismatch: %+v", fetched)
	}
}

func TestCreateUserDuplicateUsername(t *testing.T) {
	SetupTestDB(t)
	defer TeardownTestDB()

	createTestUser(t, "alice")
	err := testStore.CreateUser(&models.User{Username: "alice", Email: "other@example.com", Password: "x"})
	if err == nil {
		t.Error("Expected error for duplicate username")
	}
}

func TestGetUserByIDNotFound(t *testing.T) {
	SetupTestDB(t)
	defer TeardownTestDB()

	if _, err := testStore.GetUserByID(999); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestListUsersExcludesCaller(t *testing.T) {
	SetupTestDB(t)
	defer TeardownTestDB()

	alice := createTestUser(t, "alice")
	createTestUser(t, "bob")
	createTestUser(t, "carol")

	users, err := testStore.ListUsers(alice.ID)
	if err != nil {
		t.Fatalf("ListUsers failed: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("Expected 2 users, got %d", len(users))
	}
	for _, u := range users {
		if u.ID == alice.ID {
			t.Error("Caller should be excluded from listing")
		}
		if u.PrivateKey != "" {
			t.Error("Listing must not expose private keys")
		}
	}
}

func TestSetTwoFactor(t *testing.T) {
	SetupTestDB(t)
	defer TeardownTestDB()

	alice := createTestUser(t, "alice")
	if err := testStore.SetTwoFactor(alice.ID, "SECRET123", true); err != nil {
		t.Fatalf("SetTwoFactor failed: %v", err)
	}

	fetched, _ := testStore.GetUserByID(alice.ID)
	if !fetched.TwoFactorEnabled || fetched.TwoFactorSecret != "SECRET123" {
		t.Errorf("Two-factor state not persisted: %+v", fetched)
	}

	if err := testStore.SetTwoFactor(999, "x", false); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for unknown user, got %v", err)
	}
}
