package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xaenox/tempo-bot/internal/models"
	"go.uber.org/zap"
)

// Transport delivers replies back to the chat front-end.
type Transport interface {
	Send(userID int64, text string) error
}

// Analyzer is the pre-processing stage; satisfied by classifier.Classifier.
type Analyzer interface {
	Analyze(ctx context.Context, userID int64, text string) (*models.Analysis, error)
	PersistSignals(ctx context.Context, userID int64, threadID string, analysis *models.Analysis)
}

// TurnRunner drives one assistant turn; satisfied by assistant.Driver.
type TurnRunner interface {
	StartNewTurn(ctx context.Context, threadID, assistantID string) (string, error)
	ContinueTurn(ctx context.Context, threadID, assistantID, text string) (string, error)
}

// ThreadDirectory resolves per-(user, assistant) threads.
type ThreadDirectory interface {
	GetOrCreate(ctx context.Context, userID int64, assistantID, seedText string) (string, bool, error)
}

// Store is the slice of storage the orchestrator writes to directly.
type Store interface {
	UpsertUser(ctx context.Context, user *models.User) error
	AppendMessage(ctx context.Context, entry *models.MessageLogEntry) error
}

type Config struct {
	// Debounce is the quiet period after which buffered input becomes a turn.
	Debounce time.Duration
	// CuePad is added on top of the analyzer's respond cue before delivery.
	CuePad time.Duration
	// DefaultCue is used when the analyzer supplied no respond cue.
	DefaultCue time.Duration
	// PrimaryAssistantID names the conversational assistant.
	PrimaryAssistantID string
}

// userState is the mutable heart of a session: the message buffer and the
// cancellation handle of the pending debounce timer. Guarded by
// Orchestrator.mu; at most one live timer per user.
type userState struct {
	buffer []models.BufferedMessage
	cancel context.CancelFunc
}

// Orchestrator coalesces rapid-fire inbound messages per user behind a
// debounce timer and drives each coalesced turn through the analyzer, the
// primary assistant, and the cue-delayed delivery.
type Orchestrator struct {
	cfg       Config
	directory ThreadDirectory
	runner    TurnRunner
	analyzer  Analyzer
	store     Store
	transport Transport
	logger    *zap.Logger

	mu    sync.Mutex
	users map[int64]*userState
}

func NewOrchestrator(cfg Config, directory ThreadDirectory, runner TurnRunner, analyzer Analyzer, store Store, transport Transport, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg,
		directory: directory,
		runner:    runner,
		analyzer:  analyzer,
		store:     store,
		transport: transport,
		logger:    logger,
		users:     make(map[int64]*userState),
	}
}

// HandleMessage buffers one inbound message and (re)starts the user's
// debounce timer. All messages arriving within a rolling Debounce window
// collapse into exactly one downstream turn.
func (o *Orchestrator) HandleMessage(user *models.User, text string) {
	o.mu.Lock()
	state, ok := o.users[user.ID]
	if !ok {
		state = &userState{}
		o.users[user.ID] = state
	}

	state.buffer = append(state.buffer, models.BufferedMessage{
		UserID:     user.ID,
		Text:       text,
		ReceivedAt: time.Now(),
	})

	// Restart the debounce window: cancel the pending timer, if any, and
	// start a fresh one. A cancelled timer never drains the buffer.
	if state.cancel != nil {
		state.cancel()
	}
	timerCtx, cancel := context.WithCancel(context.Background())
	state.cancel = cancel
	o.mu.Unlock()

	go o.waitDebounce(timerCtx, user.ID)

	// User bookkeeping is independent of debounce state and must not block
	// buffering; it runs after the critical section.
	if err := o.store.UpsertUser(context.Background(), user); err != nil {
		o.logger.Error("Failed to upsert user",
			zap.Error(err),
			zap.Int64("user_id", user.ID))
	}
}

func (o *Orchestrator) waitDebounce(timerCtx context.Context, userID int64) {
	timer := time.NewTimer(o.cfg.Debounce)
	defer timer.Stop()

	select {
	case <-timerCtx.Done():
		return
	case <-timer.C:
	}

	o.drain(timerCtx, userID)
}

// drain atomically reads and clears the buffer, then hands the concatenated
// text to the turn pipeline. The lock covers only the buffer swap, never the
// pipeline, so new inbound messages for the same user are not blocked while
// a previous turn is still in flight downstream.
func (o *Orchestrator) drain(timerCtx context.Context, userID int64) {
	o.mu.Lock()
	state, ok := o.users[userID]
	if !ok {
		o.mu.Unlock()
		o.logger.Error("Session state missing at debounce fire",
			zap.Int64("user_id", userID))
		return
	}
	if timerCtx.Err() != nil {
		// Cancellation landed between the timer firing and this point; a
		// newer message owns the window now.
		o.mu.Unlock()
		return
	}
	buffered := state.buffer
	state.buffer = nil
	if state.cancel != nil {
		state.cancel() // timer already fired; release the context
	}
	state.cancel = nil
	o.mu.Unlock()

	if len(buffered) == 0 {
		return
	}

	texts := make([]string, len(buffered))
	for i, msg := range buffered {
		texts[i] = msg.Text
	}
	o.processTurn(context.Background(), userID, strings.Join(texts, "\n"))
}

func (o *Orchestrator) processTurn(ctx context.Context, userID int64, text string) {
	turnID := uuid.New().String()
	logger := o.logger.With(
		zap.String("turn_id", turnID),
		zap.Int64("user_id", userID))

	analysis, err := o.analyzer.Analyze(ctx, userID, text)
	if err != nil {
		// Losing an analysis is preferable to losing a user-facing reply.
		logger.Error("Analyzer stage failed, using defaults", zap.Error(err))
		analysis = &models.Analysis{Qualified: true}
	}

	threadID, isNew, err := o.directory.GetOrCreate(ctx, userID, o.cfg.PrimaryAssistantID, text)
	if err != nil {
		logger.Error("Failed to resolve primary thread", zap.Error(err))
		o.apologize(userID, logger)
		return
	}

	o.appendLog(ctx, threadID, models.SenderUser, text, logger)

	var reply string
	if isNew {
		reply, err = o.runner.StartNewTurn(ctx, threadID, o.cfg.PrimaryAssistantID)
	} else {
		reply, err = o.runner.ContinueTurn(ctx, threadID, o.cfg.PrimaryAssistantID, text)
	}
	if err != nil {
		logger.Error("Primary assistant turn failed", zap.Error(err))
		o.apologize(userID, logger)
		return
	}

	o.analyzer.PersistSignals(ctx, userID, threadID, analysis)

	if !analysis.Qualified {
		logger.Info("Turn marked not qualified to respond, delivering anyway",
			zap.Int("interest", analysis.Interest))
	}

	cue := o.cfg.DefaultCue
	if analysis.RespondCue != nil {
		cue = time.Duration(*analysis.RespondCue) * time.Second
	} else {
		logger.Warn("Analyzer supplied no respond cue, using default delay")
	}

	o.scheduleDelivery(cue, func() {
		if err := o.transport.Send(userID, reply); err != nil {
			logger.Error("Failed to deliver reply", zap.Error(err))
			return
		}
		o.appendLog(context.Background(), threadID, models.SenderAssistant, reply, logger)
	})
}

func (o *Orchestrator) appendLog(ctx context.Context, threadID, sender, content string, logger *zap.Logger) {
	entry := &models.MessageLogEntry{
		ID:       uuid.New().String(),
		ThreadID: threadID,
		Sender:   sender,
		Content:  content,
		Type:     "text",
	}
	if err := o.store.AppendMessage(ctx, entry); err != nil {
		logger.Error("Failed to log message",
			zap.Error(err),
			zap.String("thread_id", threadID),
			zap.String("sender", sender))
	}
}

func (o *Orchestrator) apologize(userID int64, logger *zap.Logger) {
	const apology = "Sorry, I couldn't put together a reply just now. Please try again in a moment."
	if err := o.transport.Send(userID, apology); err != nil {
		logger.Error("Failed to send apology", zap.Error(err))
	}
}
