package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	openai "github.com/sashabaranov/go-openai"

	"github.com/softreply/sophia/internal/chat"
	"github.com/softreply/sophia/internal/completion"
	"github.com/softreply/sophia/internal/config"
	"github.com/softreply/sophia/internal/conversation"
	"github.com/softreply/sophia/internal/httpapi"
	"github.com/softreply/sophia/internal/observability"
	"github.com/softreply/sophia/internal/payment"
	"github.com/softreply/sophia/internal/telegram"
)

func main() {
	// Optional .env for local development; real deployments set the
	// environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)
	store := conversation.NewStore(cfg.PersonaPrompt, cfg.HistoryWindowSize)

	var client completion.Client
	if cfg.OpenAIAPIKey != "" {
		client = openai.NewClient(cfg.OpenAIAPIKey)
		log.Printf("completion client: openai (%s)", cfg.CompletionModel)
	} else {
		client = completion.NewEchoClient()
		log.Printf("completion client: echo (no OPENAI_API_KEY set)")
	}
	gateway := completion.NewGateway(client, completion.Config{
		Model:          cfg.CompletionModel,
		Temperature:    cfg.Temperature,
		MaxTokens:      cfg.MaxTokens,
		MaxRetries:     cfg.MaxRetries,
		RetryBackoff:   cfg.RetryBackoff,
		RequestTimeout: cfg.RequestTimeout,
	})
	gateway.OnRetry = func(attempt int, err error) {
		metrics.CompletionRetries.Inc()
		log.Printf("completion attempt %d failed, retrying: %v", attempt, err)
	}

	paypal := payment.NewClient(payment.ClientConfig{
		ClientID:     cfg.PayPalClientID,
		ClientSecret: cfg.PayPalClientSecret,
		Environment:  cfg.PayPalEnvironment,
		ReturnURL:    cfg.PaymentReturnURL,
		CancelURL:    cfg.PaymentCancelURL,
	})
	if !paypal.Configured() {
		log.Printf("paypal credentials not set; /subscribe will list plans without checkout links")
	}
	ledger := payment.NewLedger(store, metrics)

	bot, err := telegram.New(cfg.BotToken)
	if err != nil {
		log.Fatalf("telegram init failed: %v", err)
	}
	log.Printf("telegram bot authorized as @%s", bot.Username())

	orchestrator := chat.NewOrchestrator(
		store,
		gateway,
		bot,
		paypal,
		metrics,
		cfg.FreeMessageLimit,
		cfg.MinMessageInterval,
	)

	api := httpapi.New(cfg, orchestrator, bot, ledger, metrics)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	if cfg.ExternalURL != "" {
		if err := bot.RegisterWebhook(cfg.WebhookURL()); err != nil {
			log.Fatalf("webhook registration failed: %v", err)
		}
		log.Printf("telegram webhook set to %s", cfg.WebhookURL())
	} else {
		log.Printf("EXTERNAL_URL not set; skipping webhook registration")
	}

	go func() {
		log.Printf("server listening on %s", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("shutdown signal received")

	if cfg.ExternalURL != "" {
		if err := bot.RemoveWebhook(); err != nil {
			log.Printf("webhook removal failed: %v", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}

	log.Printf("shutdown complete")
}
