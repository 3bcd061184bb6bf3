package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/xaenox/tempo-bot/internal/models"
)

type threadKey struct {
	userID      int64
	assistantID string
}

type MemoryStorage struct {
	mu       sync.RWMutex
	users    map[int64]*models.User
	threads  map[threadKey]*models.Thread
	messages map[string][]*models.MessageLogEntry
	analyses []*models.Analysis
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		users:    make(map[int64]*models.User),
		threads:  make(map[threadKey]*models.Thread),
		messages: make(map[string][]*models.MessageLogEntry),
	}
}

func (s *MemoryStorage) UpsertUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.users[user.ID]; ok {
		existing.FirstName = user.FirstName
		existing.LastName = user.LastName
		existing.Username = user.Username
		return nil
	}

	copied := *user
	if copied.CreatedAt.IsZero() {
		copied.CreatedAt = time.Now()
	}
	s.users[user.ID] = &copied
	return nil
}

func (s *MemoryStorage) GetThread(ctx context.Context, userID int64, assistantID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if thread, ok := s.threads[threadKey{userID, assistantID}]; ok {
		return thread.ID, nil
	}
	return "", ErrThreadNotFound
}

func (s *MemoryStorage) SaveThread(ctx context.Context, thread *models.Thread) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *thread
	now := time.Now()
	if copied.CreatedAt.IsZero() {
		copied.CreatedAt = now
	}
	copied.LastUsedAt = now
	s.threads[threadKey{thread.UserID, thread.AssistantID}] = &copied
	return nil
}

func (s *MemoryStorage) UpdateThreadLastUsed(ctx context.Context, userID int64, assistantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if thread, ok := s.threads[threadKey{userID, assistantID}]; ok {
		thread.LastUsedAt = time.Now()
	}
	return nil
}

func (s *MemoryStorage) AppendMessage(ctx context.Context, entry *models.MessageLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *entry
	if copied.CreatedAt.IsZero() {
		copied.CreatedAt = time.Now()
	}
	s.messages[entry.ThreadID] = append(s.messages[entry.ThreadID], &copied)
	return nil
}

func (s *MemoryStorage) ListThreadMessages(ctx context.Context, threadID string) ([]*models.MessageLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]*models.MessageLogEntry, len(s.messages[threadID]))
	copy(entries, s.messages[threadID])
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})
	return entries, nil
}

func (s *MemoryStorage) SaveAnalysis(ctx context.Context, userID int64, threadID string, analysis *models.Analysis) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *analysis
	s.analyses = append(s.analyses, &copied)
	return nil
}

func (s *MemoryStorage) Close() error {
	return nil
}
