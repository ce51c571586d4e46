// Package telegram wraps the Bot API: webhook lifecycle, reply delivery, and
// the typing indicator.
package telegram

import (
	"encoding/json"
	"fmt"
	"io"
	"log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type Bot struct {
	api *tgbotapi.BotAPI
}

func New(token string) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram auth: %w", err)
	}
	return &Bot{api: api}, nil
}

// Username is the bot account name reported by getMe.
func (b *Bot) Username() string {
	return b.api.Self.UserName
}

// Send delivers a text reply to a chat.
func (b *Bot) Send(chatID int64, text string) error {
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		return fmt.Errorf("send to chat %d: %w", chatID, err)
	}
	return nil
}

// SendTyping emits the "typing" indicator. Best effort: a failure is logged
// and otherwise ignored, it must never affect the reply path.
func (b *Bot) SendTyping(chatID int64) {
	if _, err := b.api.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)); err != nil {
		log.Printf("typing hint for chat %d failed: %v", chatID, err)
	}
}

// RegisterWebhook points Telegram at the public webhook URL.
func (b *Bot) RegisterWebhook(webhookURL string) error {
	wh, err := tgbotapi.NewWebhook(webhookURL)
	if err != nil {
		return fmt.Errorf("build webhook config: %w", err)
	}
	if _, err := b.api.Request(wh); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}
	return nil
}

// RemoveWebhook deregisters the webhook on shutdown so Telegram stops
// delivering updates to a dead endpoint.
func (b *Bot) RemoveWebhook() error {
	if _, err := b.api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		return fmt.Errorf("delete webhook: %w", err)
	}
	return nil
}

// ParseUpdate decodes one webhook delivery body.
func ParseUpdate(r io.Reader) (tgbotapi.Update, error) {
	var update tgbotapi.Update
	if err := json.NewDecoder(r).Decode(&update); err != nil {
		return tgbotapi.Update{}, fmt.Errorf("decode update: %w", err)
	}
	return update, nil
}
