package sqlstore

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/nlagree/cryptochat/internal/store"
)

func TestCreateConversation(t *testing.T) {
	SetupTestDB(t)
	defer TeardownTestDB()

	alice := createTestUser(t, "alice")
	bob := createTestUser(t, "bob")

	conv, err := testStore.CreateConversation(alice.ID, bob.ID)
	if err != nil {
		t.Fatalf("CreateConversation failed: %v", err)
	}
	if conv.ID == 0 {
		t.Error("Expected non-zero conversation ID")
	}
	if !conv.Has(alice.ID) || !conv.Has(bob.ID) {
		t.Errorf("Participant set wrong: %+v", conv)
	}
}

func TestCreateConversationDuplicatePair(t *testing.T) {
	SetupTestDB(t)
	defer TeardownTestDB()

	alice := createTestUser(t, "alice")
	bob := createTestUser(t, "bob")

	if _, err := testStore.CreateConversation(alice.ID, bob.ID); err != nil {
		t.Fatalf("CreateConversation failed: %v", err)
	}

	// Same pair, both orders.
	if _, err := testStore.CreateConversation(alice.ID, bob.ID); !errors.Is(err, store.ErrConversationExists) {
		t.Errorf("Expected ErrConversationExists, got %v", err)
	}
	if _, err := testStore.CreateConversation(bob.ID, alice.ID); !errors.Is(err, store.ErrConversationExists) {
		t.Errorf("Expected ErrConversationExists for reversed pair, got %v", err)
	}
}

func TestCreateConversationSelf(t *testing.T) {
	SetupTestDB(t)
	defer TeardownTestDB()

	alice := createTestUser(t, "alice")
	if _, err := testStore.CreateConversation(alice.ID, alice.ID); err == nil {
		t.Error("Expected error for a conversation with oneself")
	}
}

func TestCreateConversationConcurrent(t *testing.T) {
	SetupTestDB(t)
	defer TeardownTestDB()

	alice := createTestUser(t, "alice")
	bob := createTestUser(t, "bob")

	const n = 8
	errs := make(chan error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := testStore.CreateConversation(alice.ID, bob.ID)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var created, exists int
	for err := range errs {
		switch {
		case err == nil:
			created++
		case errors.Is(err, store.ErrConversationExists):
			exists++
		default:
			t.Errorf("Unexpected error: %v", err)
		}
	}
	if created != 1 {
		t.Errorf("Expected exactly 1 successful creation, got %d", created)
	}
	if exists != n-1 {
		t.Errorf("Expected %d ErrConversationExists, got %d", n-1, exists)
	}
}

func TestIsParticipant(t *testing.T) {
	SetupTestDB(t)
	defer TeardownTestDB()

	alice := createTestUser(t, "alice")
	bob := createTestUser(t, "bob")
	eve := createTestUser(t, "eve")

	conv, _ := testStore.CreateConversation(alice.ID, bob.ID)

	for _, tc := range []struct {
		userID int
		want   bool
	}{
		{alice.ID, true},
		{bob.ID, true},
		{eve.ID, false},
	} {
		got, err := testStore.IsParticipant(conv.ID, tc.userID)
		if err != nil {
			t.Fatalf("IsParticipant failed: %v", err)
		}
		if got != tc.want {
			t.Errorf("IsParticipant(%d, %d) = %v, want %v", conv.ID, tc.userID, got, tc.want)
		}
	}
}

func TestListConversations(t *testing.T) {
	SetupTestDB(t)
	defer TeardownTestDB()

	alice := createTestUser(t, "alice")
	bob := createTestUser(t, "bob")
	carol := createTestUser(t, "carol")

	convBob, _ := testStore.CreateConversation(alice.ID, bob.ID)
	testStore.CreateConversation(alice.ID, carol.ID)

	for i := 0; i < 3; i++ {
		_, err := testStore.CreateMessage(alice.ID, bob.ID, convBob.ID,
			fmt.Sprintf("ct-%d", i), fmt.Sprintf("ct-cu-%d", i))
		if err != nil {
			t.Fatalf("CreateMessage failed: %v", err)
		}
	}

	summaries, err := testStore.ListConversations(alice.ID, 1, 20)
	if err != nil {
		t.Fatalf("ListConversations failed: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("Expected 2 conversations, got %d", len(summaries))
	}

	// Most recently active conversation first.
	first := summaries[0]
	if first.RecipientUsername != "bob" {
		t.Errorf("Expected bob's conversation first, got %s", first.RecipientUsername)
	}
	if first.RecipientPublicKey != "pub-bob" {
		t.Errorf("Expected recipient public key, got %q", first.RecipientPublicKey)
	}
	if first.TotalMessages != 3 || len(first.Messages) != 3 {
		t.Errorf("Expected 3 messages, got total=%d len=%d", first.TotalMessages, len(first.Messages))
	}
	if first.HasMore {
		t.Error("Expected hasMore=false when all messages fit one page")
	}

	// Slice comes back in chronological order.
	for i := 1; i < len(first.Messages); i++ {
		if first.Messages[i].CreatedAt.Before(first.Messages[i-1].CreatedAt) {
			t.Error("Messages not in chronological order")
		}
	}
}

func TestListConversationsPagination(t *testing.T) {
	SetupTestDB(t)
	defer TeardownTestDB()

	alice := createTestUser(t, "alice")
	bob := createTestUser(t, "bob")
	conv, _ := testStore.CreateConversation(alice.ID, bob.ID)

	const total, pageSize = 5, 2
	for i := 0; i < total; i++ {
		if _, err := testStore.CreateMessage(alice.ID, bob.ID, conv.ID,
			fmt.Sprintf("ct-%d", i), fmt.Sprintf("ct-cu-%d", i)); err != nil {
			t.Fatalf("CreateMessage failed: %v", err)
		}
	}

	seen := make(map[int]bool)
	for page := 1; page <= 3; page++ {
		summaries, err := testStore.ListConversations(alice.ID, page, pageSize)
		if err != nil {
			t.Fatalf("ListConversations(page=%d) failed: %v", page, err)
		}
		sum := summaries[0]

		for _, m := range sum.Messages {
			if seen[m.ID] {
				t.Errorf("Message %d returned on more than one page", m.ID)
			}
			seen[m.ID] = true
		}

		wantMore := total > page*pageSize
		if sum.HasMore != wantMore {
			t.Errorf("page %d: hasMore = %v, want %v", page, sum.HasMore, wantMore)
		}
	}
	if len(seen) != total {
		t.Errorf("Expected all %d messages across pages, saw %d", total, len(seen))
	}
}
