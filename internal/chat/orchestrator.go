// Package chat runs the per-message workflow: gate the message, maintain
// conversation state, call the completion gateway, and produce the outbound
// text. Nothing above this package ever sees an error from a single
// message's processing.
package chat

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/softreply/sophia/internal/conversation"
	"github.com/softreply/sophia/internal/observability"
	"github.com/softreply/sophia/internal/policy"
)

// InboundMessage is one text message delivered by the transport layer.
type InboundMessage struct {
	UserID     int64
	ChatID     int64
	Text       string
	ReceivedAt time.Time
}

// OutboundReply is what the transport should tell the user.
type OutboundReply struct {
	ChatID int64
	Text   string
}

// Generator produces a reply for a conversation history.
type Generator interface {
	Generate(ctx context.Context, history []conversation.Turn) (string, error)
}

// Typing emits the best-effort "composing" hint before a generation call.
type Typing interface {
	SendTyping(chatID int64)
}

const (
	quotaExceededText = "💕 You've reached your free limit. Subscribe with /subscribe to continue!"
	fallbackText      = "Oops! I'm having a moment. Try again later 💔"
)

func rateLimitedText(seconds int) string {
	if seconds == 1 {
		return "Slow down baby 😘 Try again in 1 second."
	}
	return fmt.Sprintf("Slow down baby 😘 Try again in %d seconds.", seconds)
}

// Orchestrator owns the per-message state machine.
type Orchestrator struct {
	store       *conversation.Store
	gen         Generator
	typing      Typing
	metrics     *observability.Metrics
	payments    Payments
	freeLimit   int
	minInterval time.Duration

	now func() time.Time
}

func NewOrchestrator(
	store *conversation.Store,
	gen Generator,
	typing Typing,
	payments Payments,
	metrics *observability.Metrics,
	freeLimit int,
	minInterval time.Duration,
) *Orchestrator {
	return &Orchestrator{
		store:       store,
		gen:         gen,
		typing:      typing,
		payments:    payments,
		metrics:     metrics,
		freeLimit:   freeLimit,
		minInterval: minInterval,
		now:         time.Now,
	}
}

// HandleMessage processes one inbound message and always returns a reply.
// Policy rejections produce their specific refusal texts without mutating any
// state; generation failures produce the fixed fallback text while the quota
// slot stays consumed.
func (o *Orchestrator) HandleMessage(ctx context.Context, msg InboundMessage) (reply OutboundReply) {
	reply = OutboundReply{ChatID: msg.ChatID, Text: fallbackText}
	defer func() {
		if r := recover(); r != nil {
			log.Printf("message from user %d: unexpected panic: %v", msg.UserID, r)
			reply.Text = fallbackText
		}
	}()

	// Per-user serialization: without it two concurrent messages from the
	// same user could both pass the quota check.
	unlock := o.store.Lock(msg.UserID)
	defer unlock()

	now := msg.ReceivedAt
	if now.IsZero() {
		now = o.now()
	}

	usage := o.store.Usage(msg.UserID)
	decision := policy.Evaluate(usage, now, o.freeLimit, o.minInterval)
	switch decision.Verdict {
	case policy.QuotaExceeded:
		o.countOutcome(string(decision.Verdict))
		reply.Text = quotaExceededText
		return reply
	case policy.RateLimited:
		o.countOutcome(string(decision.Verdict))
		reply.Text = rateLimitedText(decision.SecondsRemaining)
		return reply
	}

	o.store.IncrementMessageCount(msg.UserID)
	o.store.RecordMessageTime(msg.UserID, now)
	o.store.AppendTurn(msg.UserID, conversation.UserTurn(msg.Text))
	o.setKnownUsers()

	if o.typing != nil {
		o.typing.SendTyping(msg.ChatID)
	}

	started := time.Now()
	text, err := o.gen.Generate(ctx, o.store.History(msg.UserID))
	if err != nil {
		// The user turn stays dangling and the quota slot stays spent:
		// free retries on upstream failures would let a user drain the
		// upstream budget at no cost.
		log.Printf("completion for user %d failed: %v", msg.UserID, err)
		o.countOutcome("upstream_failed")
		reply.Text = fallbackText
		return reply
	}
	if o.metrics != nil {
		o.metrics.ObserveCompletionLatency(time.Since(started))
	}
	o.countOutcome(string(policy.Allowed))

	o.store.AppendTurn(msg.UserID, conversation.AssistantTurn(text))
	reply.Text = text
	return reply
}

func (o *Orchestrator) countOutcome(outcome string) {
	if o.metrics == nil {
		return
	}
	o.metrics.MessageOutcomes.WithLabelValues(outcome).Inc()
}

func (o *Orchestrator) setKnownUsers() {
	if o.metrics == nil {
		return
	}
	o.metrics.KnownUsers.Set(float64(o.store.KnownUsers()))
}
