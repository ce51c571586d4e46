package conversation

import (
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Turn is one conversation message tagged with its speaker role. Using the
// upstream message type directly means histories can be sent to the
// completion API without conversion.
type Turn = openai.ChatCompletionMessage

// Speaker roles, re-exported so callers do not import the API client package.
const (
	RoleSystem    = openai.ChatMessageRoleSystem
	RoleUser      = openai.ChatMessageRoleUser
	RoleAssistant = openai.ChatMessageRoleAssistant
)

// UserTurn builds a user-authored turn.
func UserTurn(content string) Turn {
	return Turn{Role: RoleUser, Content: content}
}

// AssistantTurn builds an assistant-authored turn.
func AssistantTurn(content string) Turn {
	return Turn{Role: RoleAssistant, Content: content}
}

func systemTurn(content string) Turn {
	return Turn{Role: RoleSystem, Content: content}
}

// Usage is the per-user bookkeeping consulted by the quota/rate policy.
// MessageCount only grows for unpaid users and is never reset; Paid is
// monotonic one-way within the process lifetime.
type Usage struct {
	MessageCount  int
	LastMessageAt time.Time // zero until the user's first accepted message
	Paid          bool
}
