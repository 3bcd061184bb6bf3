package bot

import (
	"strings"
	"testing"

	"github.com/xaenox/tempo-bot/internal/models"
)

func entry(sender, content string) *models.MessageLogEntry {
	return &models.MessageLogEntry{Sender: sender, Content: content}
}

func TestHistoryReply_Empty(t *testing.T) {
	t.Parallel()

	got := historyReply(nil, historyLimit)
	if !strings.Contains(got, "haven't talked yet") {
		t.Errorf("expected the empty-history greeting, got %q", got)
	}
}

func TestHistoryReply_LabelsBothSides(t *testing.T) {
	t.Parallel()

	got := historyReply([]*models.MessageLogEntry{
		entry(models.SenderUser, "hello"),
		entry(models.SenderAssistant, "hi there"),
	}, historyLimit)

	if !strings.Contains(got, "You: hello") {
		t.Errorf("expected the user line, got %q", got)
	}
	if !strings.Contains(got, "Me: hi there") {
		t.Errorf("expected the assistant line, got %q", got)
	}
}

func TestHistoryReply_KeepsNewestInOrder(t *testing.T) {
	t.Parallel()

	entries := []*models.MessageLogEntry{
		entry(models.SenderUser, "one"),
		entry(models.SenderAssistant, "two"),
		entry(models.SenderUser, "three"),
	}

	got := historyReply(entries, 2)
	if strings.Contains(got, "one") {
		t.Errorf("oldest entry should fall outside the limit, got %q", got)
	}
	if !strings.Contains(got, "two") || !strings.Contains(got, "three") {
		t.Errorf("expected the two newest entries, got %q", got)
	}
	if strings.Index(got, "two") > strings.Index(got, "three") {
		t.Errorf("entries must render oldest first, got %q", got)
	}
}
