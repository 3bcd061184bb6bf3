package storage

import (
	"context"
	"errors"

	"github.com/xaenox/tempo-bot/internal/models"
)

// ErrThreadNotFound is returned by GetThread when no mapping exists yet.
var ErrThreadNotFound = errors.New("thread not found")

type Storage interface {
	UpsertUser(ctx context.Context, user *models.User) error
	AppendMessage(ctx context.Context, entry *models.MessageLogEntry) error
	ListThreadMessages(ctx context.Context, threadID string) ([]*models.MessageLogEntry, error)
	SaveAnalysis(ctx context.Context, userID int64, threadID string, analysis *models.Analysis) error
	Close() error

	// Embed ThreadStorage interface
	ThreadStorage
}

// ThreadStorage persists the (user, assistant) -> thread id mapping.
type ThreadStorage interface {
	GetThread(ctx context.Context, userID int64, assistantID string) (string, error)
	SaveThread(ctx context.Context, thread *models.Thread) error
	UpdateThreadLastUsed(ctx context.Context, userID int64, assistantID string) error
}
