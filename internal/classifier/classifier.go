package classifier

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/xaenox/tempo-bot/internal/models"
	"go.uber.org/zap"
)

// ErrMalformedAnalysis is returned by parseAnalysis when the analyzer's reply
// carries none of the recognized labels. Callers substitute defaults and
// proceed; losing an analysis is preferable to losing a user-facing reply.
var ErrMalformedAnalysis = errors.New("malformed analysis reply")

// Labels the analyzer assistant is prompted to emit, one per line,
// order independent. Missing labels default per defaultAnalysis.
const (
	labelQualified = "qualified"
	labelInterest  = "interest"
	labelCue       = "respond_cue"
)

const defaultInterest = 5

// TurnRunner drives one assistant turn; satisfied by assistant.Driver.
type TurnRunner interface {
	StartNewTurn(ctx context.Context, threadID, assistantID string) (string, error)
	ContinueTurn(ctx context.Context, threadID, assistantID, text string) (string, error)
}

// ThreadDirectory resolves the analyzer's per-user thread.
type ThreadDirectory interface {
	GetOrCreate(ctx context.Context, userID int64, assistantID, seedText string) (string, bool, error)
}

// AnalysisStore persists analyzer signals for offline analytics.
type AnalysisStore interface {
	SaveAnalysis(ctx context.Context, userID int64, threadID string, analysis *models.Analysis) error
}

// Classifier runs each coalesced message through a fixed analyzer assistant
// and parses its labelled-line reply into structured signals.
type Classifier struct {
	directory   ThreadDirectory
	runner      TurnRunner
	store       AnalysisStore
	assistantID string
	logger      *zap.Logger
}

func New(directory ThreadDirectory, runner TurnRunner, store AnalysisStore, assistantID string, logger *zap.Logger) *Classifier {
	return &Classifier{
		directory:   directory,
		runner:      runner,
		store:       store,
		assistantID: assistantID,
		logger:      logger,
	}
}

// Analyze drives text through the analyzer assistant and returns the parsed
// signals. A malformed reply yields defaults (qualified, no cue) rather than
// an error; only remote failures propagate.
func (c *Classifier) Analyze(ctx context.Context, userID int64, text string) (*models.Analysis, error) {
	threadID, isNew, err := c.directory.GetOrCreate(ctx, userID, c.assistantID, text)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve analyzer thread: %w", err)
	}

	var reply string
	if isNew {
		reply, err = c.runner.StartNewTurn(ctx, threadID, c.assistantID)
	} else {
		reply, err = c.runner.ContinueTurn(ctx, threadID, c.assistantID, text)
	}
	if err != nil {
		return nil, fmt.Errorf("analyzer run failed: %w", err)
	}

	analysis, err := parseAnalysis(reply)
	if err != nil {
		c.logger.Error("Failed to parse analyzer reply, using defaults",
			zap.Error(err),
			zap.Int64("user_id", userID),
			zap.String("reply", reply))
		analysis = defaultAnalysis()
	}

	return analysis, nil
}

// PersistSignals records the analyzer's verdict keyed by the primary
// assistant's thread. Fire-and-forget: failures are logged, never returned.
func (c *Classifier) PersistSignals(ctx context.Context, userID int64, primaryThreadID string, analysis *models.Analysis) {
	if err := c.store.SaveAnalysis(ctx, userID, primaryThreadID, analysis); err != nil {
		c.logger.Error("Failed to save analysis",
			zap.Error(err),
			zap.Int64("user_id", userID),
			zap.String("thread_id", primaryThreadID))
	}
}

func defaultAnalysis() *models.Analysis {
	return &models.Analysis{
		Qualified: true,
		Interest:  defaultInterest,
	}
}

// parseAnalysis reads the analyzer's "label: value" lines. Labels may appear
// in any order; unrecognized lines are ignored; missing labels default.
func parseAnalysis(reply string) (*models.Analysis, error) {
	analysis := defaultAnalysis()
	found := false

	for _, line := range strings.Split(reply, "\n") {
		label, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		label = strings.ToLower(strings.TrimSpace(label))
		value = strings.TrimSpace(value)

		switch label {
		case labelQualified:
			qualified, err := strconv.ParseBool(strings.ToLower(value))
			if err != nil {
				continue
			}
			analysis.Qualified = qualified
			found = true
		case labelInterest:
			interest, err := strconv.Atoi(value)
			if err != nil {
				continue
			}
			analysis.Interest = interest
			found = true
		case labelCue:
			cue, err := strconv.Atoi(value)
			if err != nil {
				continue
			}
			analysis.RespondCue = &cue
			found = true
		}
	}

	if !found {
		return nil, ErrMalformedAnalysis
	}
	return analysis, nil
}
