package models

import "time"

// User represents a chat user known to the bot
type User struct {
	ID        int64     `json:"id"`
	FirstName string    `json:"first_name,omitempty"`
	LastName  string    `json:"last_name,omitempty"`
	Username  string    `json:"username,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Thread pairs a user with the remote conversation thread backing their
// history with one assistant. At most one thread per (user, assistant).
type Thread struct {
	ID          string    `json:"id"`
	UserID      int64     `json:"user_id"`
	AssistantID string    `json:"assistant_id"`
	CreatedAt   time.Time `json:"created_at"`
	LastUsedAt  time.Time `json:"last_used_at"`
}

// Sender values for message log entries
const (
	SenderUser      = "user"
	SenderAssistant = "assistant"
)

// MessageLogEntry is one persisted line of a thread's conversation history.
// Consumers reconstructing history rely on CreatedAt ordering.
type MessageLogEntry struct {
	ID        string    `json:"id"`
	ThreadID  string    `json:"thread_id"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
}

// BufferedMessage is one inbound message waiting out the debounce window.
// It lives only inside the per-user session state and is destroyed when
// the buffer is drained into a turn.
type BufferedMessage struct {
	UserID     int64     `json:"user_id"`
	Text       string    `json:"text"`
	ReceivedAt time.Time `json:"received_at"`
}

// Analysis holds the analyzer assistant's verdict on a coalesced message.
// RespondCue is nil when the analyzer did not suggest a delay. ResponseTime
// is an analytics field no stage computes yet; it is persisted as its null
// filler so the stored rows keep a stable shape.
type Analysis struct {
	Qualified    bool `json:"qualified"`
	Interest     int  `json:"interest"`
	ResponseTime *int `json:"response_time,omitempty"`
	RespondCue   *int `json:"respond_cue,omitempty"`
}
