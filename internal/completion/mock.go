package completion

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// EchoClient provides deterministic local replies when no API key is
// configured. It lets the full webhook path run in development.
type EchoClient struct{}

func NewEchoClient() *EchoClient { return &EchoClient{} }

func (c *EchoClient) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	select {
	case <-ctx.Done():
		return openai.ChatCompletionResponse{}, ctx.Err()
	default:
	}

	last := ""
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == openai.ChatMessageRoleUser {
			last = strings.TrimSpace(req.Messages[i].Content)
			break
		}
	}
	text := "I am listening."
	if last != "" {
		text = fmt.Sprintf("I heard you: %s", last)
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: text}},
		},
	}, nil
}
