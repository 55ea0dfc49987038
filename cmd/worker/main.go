package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/novadesk/triage/internal/classifier"
	"github.com/novadesk/triage/internal/config"
	"github.com/novadesk/triage/internal/kb"
	"github.com/novadesk/triage/internal/llm"
	"github.com/novadesk/triage/internal/pipeline"
	"github.com/novadesk/triage/internal/pkg/distlock"
	"github.com/novadesk/triage/internal/pkg/httpretry"
	"github.com/novadesk/triage/internal/pkg/logger"
	"github.com/novadesk/triage/internal/priority"
	"github.com/novadesk/triage/internal/repository/postgres"
	"github.com/novadesk/triage/internal/router"
	"github.com/novadesk/triage/internal/sentiment"
)

func main() {
	log.Println("Triage pipeline worker starting")

	cfg, err := config.Load("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger.SetLevel(logger.ParseLevel(cfg.Logging.Level))
	if cfg.Logging.RedactPII != nil {
		logger.SetRedactPII(*cfg.Logging.RedactPII)
	}

	db, err := postgres.Open(cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.MaxLifetime())

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 10*time.Second)
	if err := db.PingContext(pingCtx); err != nil {
		cancelPing()
		log.Fatalf("Database unreachable: %v", err)
	}
	cancelPing()
	log.Println("Connected to database")

	ticketRepo := postgres.NewTicketRepo(db)
	agentRepo := postgres.NewAgentRepo(db)
	ruleRepo := postgres.NewRuleRepo(db)
	categoryRepo := postgres.NewCategoryRepo(db)
	jobRepo := postgres.NewJobRepo(db)

	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			log.Printf("WARNING: Redis unreachable, falling back to in-process cache: %v", err)
			redisClient = nil
		} else {
			log.Printf("Connected to Redis at %s", cfg.Redis.Addr)
		}
	}

	chat, embedder := buildAIClients(cfg)

	var cache classifier.Cache
	if redisClient != nil {
		cache = classifier.NewRedisCache(redisClient, cfg.AI.CacheTTL())
	} else {
		cache = classifier.NewMemoryCache(cfg.AI.CacheTTL())
	}

	kbService := kb.NewService(kb.NewStore(), embedder, chat, cfg.KB)
	coordinator := pipeline.NewCoordinator(pipeline.Deps{
		Tickets:    ticketRepo,
		Agents:     agentRepo,
		Rules:      ruleRepo,
		Categories: categoryRepo,
		Suggester:  kbService,
		Classifier: classifier.New(chat, cache, cfg.Pipeline.ClassifyMaxChars),
		Sentiment:  sentiment.New(chat, cfg.Pipeline.SentimentMaxChars),
		Scorer:     priority.New(nil),
		Router:     router.New(),
	}, *cfg)

	pool := pipeline.NewPool(jobRepo, coordinator, cfg.Pipeline)
	if err := pool.Start(); err != nil {
		log.Fatalf("Failed to start worker pool: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	slaLock := distlock.NewLock(redisClient, db, "triage:sla-scan", 2*cfg.Pipeline.SLAScanInterval())
	scanner := pipeline.NewSLAScanner(ticketRepo, jobRepo, slaLock, cfg.Pipeline.SLAScanInterval())
	go scanner.Run(ctx)

	resetLock := distlock.NewLock(redisClient, db, "triage:daily-reset", time.Hour)
	daily := pipeline.NewDailyReset(agentRepo, resetLock)
	go daily.Run(ctx)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Printf("Received %s, shutting down", sig)

	cancel()
	pool.Stop()
	log.Println("Worker stopped")
}

// buildAIClients wires the configured chat and embedding backends. Either
// may be nil; downstream components fall back to rule-based behavior.
func buildAIClients(cfg *config.Config) (llm.ChatProvider, llm.Embedder) {
	switch cfg.AI.Provider {
	case "openai":
		if cfg.AI.OpenAI.APIKey == "" {
			log.Println("WARNING: OpenAI provider selected but no API key set, AI disabled")
			return nil, nil
		}
		httpClient := httpretry.NewRetryClient(&http.Client{Timeout: cfg.AI.Timeout()}, cfg.AI.MaxRetries)
		client := llm.NewOpenAIClient(cfg.AI.OpenAI.APIKey, cfg.AI.OpenAI.BaseURL,
			cfg.AI.OpenAI.Model, cfg.AI.OpenAI.EmbeddingModel, llm.WithHTTPClient(httpClient))
		log.Printf("AI provider: openai (%s)", cfg.AI.OpenAI.Model)
		return client, client
	case "bedrock":
		client, err := llm.NewBedrockClient(context.Background(), cfg.AI.Bedrock.Region, cfg.AI.Bedrock.ModelID)
		if err != nil {
			log.Printf("WARNING: Bedrock init failed, AI disabled: %v", err)
			return nil, nil
		}
		log.Printf("AI provider: bedrock (%s)", cfg.AI.Bedrock.ModelID)
		// Bedrock has no embedding path here; similarity search degrades
		// unless an OpenAI-compatible embedder is also configured.
		if cfg.AI.OpenAI.APIKey != "" {
			httpClient := httpretry.NewRetryClient(&http.Client{Timeout: cfg.AI.Timeout()}, cfg.AI.MaxRetries)
			embedder := llm.NewOpenAIClient(cfg.AI.OpenAI.APIKey, cfg.AI.OpenAI.BaseURL,
				cfg.AI.OpenAI.Model, cfg.AI.OpenAI.EmbeddingModel, llm.WithHTTPClient(httpClient))
			return client, embedder
		}
		return client, nil
	case "":
		log.Println("AI disabled, using rule-based classification and sentiment")
		return nil, nil
	default:
		log.Printf("WARNING: unknown AI provider %q, AI disabled", cfg.AI.Provider)
		return nil, nil
	}
}
