package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/xaenox/tempo-bot/internal/models"
	"github.com/xaenox/tempo-bot/internal/storage"
	"go.uber.org/zap"
)

// Orchestrator consumes inbound (user, text) messages. The bot is handed one
// at Start time because the orchestrator in turn delivers replies through
// the bot's Send.
type Orchestrator interface {
	HandleMessage(user *models.User, text string)
}

// HistoryStore is the read side of the message log, used by /history.
type HistoryStore interface {
	GetThread(ctx context.Context, userID int64, assistantID string) (string, error)
	ListThreadMessages(ctx context.Context, threadID string) ([]*models.MessageLogEntry, error)
}

const historyLimit = 5

type Bot struct {
	api                *tgbotapi.BotAPI
	orchestrator       Orchestrator
	history            HistoryStore
	primaryAssistantID string
	logger             *zap.Logger
}

func New(token string, history HistoryStore, primaryAssistantID string, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	return &Bot{
		api:                api,
		history:            history,
		primaryAssistantID: primaryAssistantID,
		logger:             logger,
	}, nil
}

func (b *Bot) Start(orchestrator Orchestrator) error {
	b.orchestrator = orchestrator
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for update := range updates {
		if update.Message == nil {
			continue
		}

		go b.handleMessage(update.Message)
	}

	return nil
}

func (b *Bot) handleMessage(message *tgbotapi.Message) {
	if message.From == nil {
		return
	}

	if message.IsCommand() {
		b.handleCommand(message)
		return
	}

	// Get content from message; media arrives with its caption as text
	content := message.Text
	if message.Caption != "" {
		content = message.Caption
	}
	if content == "" {
		b.logger.Info("Ignoring message without text",
			zap.Int64("user_id", message.From.ID))
		return
	}

	user := &models.User{
		ID:        message.From.ID,
		FirstName: message.From.FirstName,
		LastName:  message.From.LastName,
		Username:  message.From.UserName,
	}

	b.orchestrator.HandleMessage(user, content)
}

func (b *Bot) handleCommand(message *tgbotapi.Message) {
	switch message.Command() {
	case "start":
		b.handleStart(message)
	case "help":
		b.handleHelp(message)
	case "history":
		b.handleHistory(message)
	default:
		b.sendMessage(message.Chat.ID, "Unknown command. Use /help to see available commands.")
	}
}

func (b *Bot) handleStart(message *tgbotapi.Message) {
	welcome := `Hi! I'm here whenever you want to talk. 💬

Just send me a message, or several. I'll wait until you're done typing before I answer.`

	b.sendMessage(message.Chat.ID, welcome)
}

func (b *Bot) handleHelp(message *tgbotapi.Message) {
	help := `Available commands:
/start - Start the bot
/help - Show this help message
/history - Show our recent messages

Send me messages like you would a friend. If you send several in a row,
I'll read them together and reply once.`

	b.sendMessage(message.Chat.ID, help)
}

func (b *Bot) handleHistory(message *tgbotapi.Message) {
	ctx := context.Background()

	threadID, err := b.history.GetThread(ctx, message.From.ID, b.primaryAssistantID)
	if errors.Is(err, storage.ErrThreadNotFound) {
		b.sendMessage(message.Chat.ID, "We haven't talked yet. Say hi!")
		return
	}
	if err != nil {
		b.logger.Error("Failed to look up thread for history",
			zap.Error(err),
			zap.Int64("user_id", message.From.ID))
		b.sendMessage(message.Chat.ID, "Sorry, I couldn't retrieve our conversation. Please try again later.")
		return
	}

	entries, err := b.history.ListThreadMessages(ctx, threadID)
	if err != nil {
		b.logger.Error("Failed to list thread messages",
			zap.Error(err),
			zap.String("thread_id", threadID))
		b.sendMessage(message.Chat.ID, "Sorry, I couldn't retrieve our conversation. Please try again later.")
		return
	}

	b.sendMessage(message.Chat.ID, historyReply(entries, historyLimit))
}

// historyReply renders the newest entries, oldest first. Entries arrive in
// created_at order from the store.
func historyReply(entries []*models.MessageLogEntry, limit int) string {
	if len(entries) == 0 {
		return "We haven't talked yet. Say hi!"
	}
	if len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}

	var sb strings.Builder
	sb.WriteString("Our recent messages:\n")
	for _, entry := range entries {
		label := "You"
		if entry.Sender == models.SenderAssistant {
			label = "Me"
		}
		sb.WriteString(fmt.Sprintf("\n%s: %s", label, entry.Content))
	}
	return sb.String()
}

// Send delivers a reply to the user. Private chats share the user's id as
// the chat id.
func (b *Bot) Send(userID int64, text string) error {
	msg := tgbotapi.NewMessage(userID, text)
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}
