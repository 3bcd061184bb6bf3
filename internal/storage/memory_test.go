package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xaenox/tempo-bot/internal/models"
)

func TestMemoryStorage_ThreadRoundTrip(t *testing.T) {
	t.Parallel()

	store := NewMemoryStorage()
	ctx := context.Background()

	if _, err := store.GetThread(ctx, 1, "asst-1"); !errors.Is(err, ErrThreadNotFound) {
		t.Fatalf("expected ErrThreadNotFound, got %v", err)
	}

	thread := &models.Thread{ID: "thread-1", UserID: 1, AssistantID: "asst-1"}
	if err := store.SaveThread(ctx, thread); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := store.GetThread(ctx, 1, "asst-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "thread-1" {
		t.Errorf("expected thread-1, got %q", got)
	}

	// Same user, different assistant: separate mapping.
	if _, err := store.GetThread(ctx, 1, "asst-2"); !errors.Is(err, ErrThreadNotFound) {
		t.Errorf("expected ErrThreadNotFound for other assistant, got %v", err)
	}
}

func TestMemoryStorage_UpsertUserIdempotent(t *testing.T) {
	t.Parallel()

	store := NewMemoryStorage()
	ctx := context.Background()

	if err := store.UpsertUser(ctx, &models.User{ID: 7, Username: "old"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.UpsertUser(ctx, &models.User{ID: 7, Username: "new"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	store.mu.RLock()
	defer store.mu.RUnlock()
	if len(store.users) != 1 {
		t.Errorf("expected one user record, got %d", len(store.users))
	}
	if store.users[7].Username != "new" {
		t.Errorf("expected updated username, got %q", store.users[7].Username)
	}
}

func TestMemoryStorage_MessagesOrderedByCreation(t *testing.T) {
	t.Parallel()

	store := NewMemoryStorage()
	ctx := context.Background()
	base := time.Now()

	// Appended out of order on purpose; listing must sort by created_at.
	entries := []*models.MessageLogEntry{
		{ID: "b", ThreadID: "thread-1", Sender: models.SenderAssistant, Content: "second", CreatedAt: base.Add(time.Second)},
		{ID: "a", ThreadID: "thread-1", Sender: models.SenderUser, Content: "first", CreatedAt: base},
	}
	for _, entry := range entries {
		if err := store.AppendMessage(ctx, entry); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	listed, err := store.ListThreadMessages(ctx, "thread-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(listed))
	}
	if listed[0].Content != "first" || listed[1].Content != "second" {
		t.Errorf("expected creation order, got %q then %q", listed[0].Content, listed[1].Content)
	}
}

func TestMemoryStorage_SaveAnalysis(t *testing.T) {
	t.Parallel()

	store := NewMemoryStorage()
	cue := 8
	analysis := &models.Analysis{Qualified: true, Interest: 6, RespondCue: &cue}

	if err := store.SaveAnalysis(context.Background(), 1, "thread-1", analysis); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	store.mu.RLock()
	defer store.mu.RUnlock()
	if len(store.analyses) != 1 {
		t.Fatalf("expected one analysis, got %d", len(store.analyses))
	}
	if store.analyses[0].RespondCue == nil || *store.analyses[0].RespondCue != 8 {
		t.Errorf("expected respond cue 8, got %v", store.analyses[0].RespondCue)
	}
	// No stage computes response time yet; its filler stays null.
	if store.analyses[0].ResponseTime != nil {
		t.Errorf("expected nil response time, got %d", *store.analyses[0].ResponseTime)
	}
}
