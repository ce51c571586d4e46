package httpapi

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/softreply/sophia/internal/chat"
	"github.com/softreply/sophia/internal/config"
	"github.com/softreply/sophia/internal/observability"
	"github.com/softreply/sophia/internal/payment"
	"github.com/softreply/sophia/internal/telegram"
)

// MessageHandler is the orchestrator surface the webhook needs.
type MessageHandler interface {
	HandleMessage(ctx context.Context, msg chat.InboundMessage) chat.OutboundReply
	HandleStart(chatID int64) chat.OutboundReply
	HandleSubscribe(ctx context.Context, userID, chatID int64) chat.OutboundReply
}

// Sender delivers outbound replies. *telegram.Bot satisfies it.
type Sender interface {
	Send(chatID int64, text string) error
}

// PaymentSink applies payment webhook events. *payment.Ledger satisfies it.
type PaymentSink interface {
	ApplyEvent(evt payment.Event)
}

type Server struct {
	cfg      config.Config
	handler  MessageHandler
	sender   Sender
	payments PaymentSink
	metrics  *observability.Metrics
}

func New(cfg config.Config, handler MessageHandler, sender Sender, payments PaymentSink, metrics *observability.Metrics) *Server {
	return &Server{
		cfg:      cfg,
		handler:  handler,
		sender:   sender,
		payments: payments,
		metrics:  metrics,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Post(s.cfg.WebhookPath(), s.handleTelegramUpdate)
	r.Post("/paypal/webhook", s.handlePaymentWebhook)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

// handleTelegramUpdate processes one webhook delivery. Processing failures
// never surface as HTTP errors: Telegram retries non-2xx responses, and a
// redelivered update would just double-charge the user's quota.
func (s *Server) handleTelegramUpdate(w http.ResponseWriter, r *http.Request) {
	update, err := telegram.ParseUpdate(r.Body)
	if err != nil {
		log.Printf("telegram webhook: %v", err)
		respondJSON(w, http.StatusBadRequest, map[string]any{"ok": false})
		return
	}

	msg := update.Message
	if msg == nil || msg.From == nil || msg.Chat == nil {
		respondJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	var reply chat.OutboundReply
	switch {
	case msg.IsCommand():
		switch msg.Command() {
		case "start":
			reply = s.handler.HandleStart(msg.Chat.ID)
		case "subscribe":
			reply = s.handler.HandleSubscribe(r.Context(), msg.From.ID, msg.Chat.ID)
		default:
			// Unknown commands are dropped, same as non-text updates.
			respondJSON(w, http.StatusOK, map[string]any{"ok": true})
			return
		}
	case msg.Text != "":
		var receivedAt time.Time
		if msg.Date != 0 {
			receivedAt = time.Unix(int64(msg.Date), 0)
		}
		reply = s.handler.HandleMessage(r.Context(), chat.InboundMessage{
			UserID:     msg.From.ID,
			ChatID:     msg.Chat.ID,
			Text:       msg.Text,
			ReceivedAt: receivedAt,
		})
	default:
		respondJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if err := s.sender.Send(reply.ChatID, reply.Text); err != nil {
		log.Printf("reply to chat %d failed: %v", reply.ChatID, err)
	}
	respondJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handlePaymentWebhook(w http.ResponseWriter, r *http.Request) {
	var evt payment.Event
	if err := json.NewDecoder(r.Body).Decode(&evt); err != nil {
		log.Printf("payment webhook: decode failed: %v", err)
		respondJSON(w, http.StatusBadRequest, map[string]any{"ok": false})
		return
	}
	s.payments.ApplyEvent(evt)
	respondJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
