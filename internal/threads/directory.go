package threads

import (
	"context"
	"errors"
	"fmt"

	"github.com/xaenox/tempo-bot/internal/models"
	"github.com/xaenox/tempo-bot/internal/storage"
	"go.uber.org/zap"
)

// ErrThreadCreationFailed is returned when the remote service could not
// create a thread. No mapping is persisted in that case.
var ErrThreadCreationFailed = errors.New("thread creation failed")

// ThreadCreator is the slice of the assistant API the directory needs.
type ThreadCreator interface {
	CreateThread(ctx context.Context, seedText string) (string, error)
}

// Directory maps each (user, assistant) pair to its durable conversation
// thread, creating the remote thread on first use.
type Directory struct {
	store   storage.ThreadStorage
	creator ThreadCreator
	logger  *zap.Logger
}

func NewDirectory(store storage.ThreadStorage, creator ThreadCreator, logger *zap.Logger) *Directory {
	return &Directory{
		store:   store,
		creator: creator,
		logger:  logger,
	}
}

// GetOrCreate returns the thread id for (userID, assistantID), creating a
// remote thread seeded with seedText when none exists yet. The seed becomes
// the thread's first message, so callers must not append it again.
func (d *Directory) GetOrCreate(ctx context.Context, userID int64, assistantID, seedText string) (string, bool, error) {
	threadID, err := d.store.GetThread(ctx, userID, assistantID)
	if err == nil {
		if err := d.store.UpdateThreadLastUsed(ctx, userID, assistantID); err != nil {
			d.logger.Warn("Failed to touch thread",
				zap.Error(err),
				zap.Int64("user_id", userID),
				zap.String("assistant_id", assistantID))
		}
		return threadID, false, nil
	}
	if !errors.Is(err, storage.ErrThreadNotFound) {
		return "", false, fmt.Errorf("failed to look up thread: %w", err)
	}

	threadID, err = d.creator.CreateThread(ctx, seedText)
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrThreadCreationFailed, err)
	}

	thread := &models.Thread{
		ID:          threadID,
		UserID:      userID,
		AssistantID: assistantID,
	}
	if err := d.store.SaveThread(ctx, thread); err != nil {
		// A concurrent turn for the same pair may have won the write; the
		// store keeps whichever mapping landed last. Not fatal.
		d.logger.Warn("Failed to persist thread mapping",
			zap.Error(err),
			zap.Int64("user_id", userID),
			zap.String("assistant_id", assistantID),
			zap.String("thread_id", threadID))
	}

	return threadID, true, nil
}
