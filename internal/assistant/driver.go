package assistant

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// NoReplySentinel is returned when a thread holds no assistant message after
// a run. Treated as a valid (if unhelpful) reply, not an error.
const NoReplySentinel = "no assistant response found"

// Run statuses still considered in flight.
var activeStatuses = map[string]struct{}{
	"queued":      {},
	"started":     {},
	"in_progress": {},
}

// Driver drives one assistant turn to completion: optionally append the user
// message, start a run, poll its status a bounded number of times, then fetch
// the newest reply. The poll loop is a latency cap, not a completion wait:
// after pollAttempts active observations the driver proceeds regardless.
type Driver struct {
	api          API
	pollAttempts int
	pollInterval time.Duration
	logger       *zap.Logger
}

func NewDriver(api API, pollAttempts int, pollInterval time.Duration, logger *zap.Logger) *Driver {
	return &Driver{
		api:          api,
		pollAttempts: pollAttempts,
		pollInterval: pollInterval,
		logger:       logger,
	}
}

// StartNewTurn runs an assistant against a freshly created thread, whose seed
// message was attached at creation time.
func (d *Driver) StartNewTurn(ctx context.Context, threadID, assistantID string) (string, error) {
	return d.runAndFetch(ctx, threadID, assistantID)
}

// ContinueTurn appends text as a user message to an existing thread, then
// runs the assistant.
func (d *Driver) ContinueTurn(ctx context.Context, threadID, assistantID, text string) (string, error) {
	if err := d.api.AppendMessage(ctx, threadID, text); err != nil {
		return "", fmt.Errorf("failed to append message to thread %s: %w", threadID, err)
	}
	return d.runAndFetch(ctx, threadID, assistantID)
}

func (d *Driver) runAndFetch(ctx context.Context, threadID, assistantID string) (string, error) {
	runID, err := d.api.StartRun(ctx, threadID, assistantID)
	if err != nil {
		return "", fmt.Errorf("failed to start run on thread %s: %w", threadID, err)
	}

	if err := d.waitForRun(ctx, threadID, runID); err != nil {
		return "", err
	}

	reply, err := d.api.LatestReply(ctx, threadID)
	if err != nil {
		return "", fmt.Errorf("failed to fetch reply from thread %s: %w", threadID, err)
	}
	if reply == "" {
		d.logger.Warn("No assistant reply in thread after run",
			zap.String("thread_id", threadID),
			zap.String("run_id", runID))
		return NoReplySentinel, nil
	}
	return reply, nil
}

// waitForRun polls the run status up to pollAttempts times, sleeping
// pollInterval between active observations. Any non-active status ends the
// wait; so does exhausting the attempt budget.
func (d *Driver) waitForRun(ctx context.Context, threadID, runID string) error {
	for attempt := 1; ; attempt++ {
		status, err := d.api.RunStatus(ctx, threadID, runID)
		if err != nil {
			return fmt.Errorf("failed to query run %s status: %w", runID, err)
		}

		if _, active := activeStatuses[status]; !active {
			if status != "completed" {
				d.logger.Warn("Run ended in non-completed status",
					zap.String("run_id", runID),
					zap.String("status", status))
			}
			return nil
		}

		if attempt >= d.pollAttempts {
			d.logger.Warn("Run still active after poll budget, proceeding",
				zap.String("run_id", runID),
				zap.String("status", status),
				zap.Int("attempts", attempt))
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d.pollInterval):
		}
	}
}
