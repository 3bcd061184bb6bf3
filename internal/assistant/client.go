package assistant

import (
	"context"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

// ErrRemoteCall marks failures talking to the remote assistant service.
var ErrRemoteCall = errors.New("remote assistant call failed")

// API is the narrow slice of the remote assistant service the bot needs:
// threads are created already seeded with their first message, runs are
// started against a named assistant and polled, and the newest assistant
// reply is fetched per thread.
type API interface {
	CreateThread(ctx context.Context, seedText string) (string, error)
	AppendMessage(ctx context.Context, threadID, text string) error
	StartRun(ctx context.Context, threadID, assistantID string) (string, error)
	RunStatus(ctx context.Context, threadID, runID string) (string, error)
	// LatestReply returns the most recent assistant message in the thread,
	// or "" if the thread has none.
	LatestReply(ctx context.Context, threadID string) (string, error)
}

type OpenAIClient struct {
	client *openai.Client
}

func NewOpenAIClient(apiKey string) *OpenAIClient {
	return &OpenAIClient{client: openai.NewClient(apiKey)}
}

func (c *OpenAIClient) CreateThread(ctx context.Context, seedText string) (string, error) {
	thread, err := c.client.CreateThread(ctx, openai.ThreadRequest{
		Messages: []openai.ThreadMessage{
			{
				Role:    openai.ThreadMessageRoleUser,
				Content: seedText,
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: create thread: %v", ErrRemoteCall, err)
	}
	return thread.ID, nil
}

func (c *OpenAIClient) AppendMessage(ctx context.Context, threadID, text string) error {
	_, err := c.client.CreateMessage(ctx, threadID, openai.MessageRequest{
		Role:    string(openai.ThreadMessageRoleUser),
		Content: text,
	})
	if err != nil {
		return fmt.Errorf("%w: append message: %v", ErrRemoteCall, err)
	}
	return nil
}

func (c *OpenAIClient) StartRun(ctx context.Context, threadID, assistantID string) (string, error) {
	run, err := c.client.CreateRun(ctx, threadID, openai.RunRequest{
		AssistantID: assistantID,
	})
	if err != nil {
		return "", fmt.Errorf("%w: start run: %v", ErrRemoteCall, err)
	}
	return run.ID, nil
}

func (c *OpenAIClient) RunStatus(ctx context.Context, threadID, runID string) (string, error) {
	run, err := c.client.RetrieveRun(ctx, threadID, runID)
	if err != nil {
		return "", fmt.Errorf("%w: run status: %v", ErrRemoteCall, err)
	}
	return string(run.Status), nil
}

func (c *OpenAIClient) LatestReply(ctx context.Context, threadID string) (string, error) {
	list, err := c.client.ListMessage(ctx, threadID, nil, nil, nil, nil, nil)
	if err != nil {
		return "", fmt.Errorf("%w: list messages: %v", ErrRemoteCall, err)
	}

	// The API returns messages most recent first.
	for _, msg := range list.Messages {
		if msg.Role != openai.ChatMessageRoleAssistant {
			continue
		}
		for _, part := range msg.Content {
			if part.Text != nil {
				return part.Text.Value, nil
			}
		}
	}
	return "", nil
}
