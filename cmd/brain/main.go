// Command brain runs the Brain conversational orchestration platform:
// a Slack Events API webhook, a scheduler for timed/recurring
// announcements, a retention sweep, and a health endpoint, all sharing
// one process-wide set of engines. Wiring shape follows the teacher's
// cmd/tarsy/main.go: load config, open the database, build every layer
// once, register routes, and run until signaled to stop.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sony/gobreaker"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/codeready-toolchain/brain/pkg/adminconfig"
	"github.com/codeready-toolchain/brain/pkg/announcement"
	"github.com/codeready-toolchain/brain/pkg/bgtask"
	"github.com/codeready-toolchain/brain/pkg/brain"
	"github.com/codeready-toolchain/brain/pkg/chatclient"
	"github.com/codeready-toolchain/brain/pkg/cleanup"
	"github.com/codeready-toolchain/brain/pkg/config"
	"github.com/codeready-toolchain/brain/pkg/database"
	"github.com/codeready-toolchain/brain/pkg/decision"
	"github.com/codeready-toolchain/brain/pkg/execution"
	"github.com/codeready-toolchain/brain/pkg/featureflag"
	"github.com/codeready-toolchain/brain/pkg/guardrail"
	"github.com/codeready-toolchain/brain/pkg/handlers"
	"github.com/codeready-toolchain/brain/pkg/identity"
	"github.com/codeready-toolchain/brain/pkg/ingress"
	"github.com/codeready-toolchain/brain/pkg/llm"
	"github.com/codeready-toolchain/brain/pkg/llm/anthropic"
	"github.com/codeready-toolchain/brain/pkg/llm/langchain"
	"github.com/codeready-toolchain/brain/pkg/masking"
	"github.com/codeready-toolchain/brain/pkg/memory"
	"github.com/codeready-toolchain/brain/pkg/metrics"
	"github.com/codeready-toolchain/brain/pkg/post"
	"github.com/codeready-toolchain/brain/pkg/scheduler"
	"github.com/codeready-toolchain/brain/pkg/slack"
	"github.com/codeready-toolchain/brain/pkg/state"
	"github.com/codeready-toolchain/brain/pkg/store"
	"github.com/codeready-toolchain/brain/pkg/sysinfo"
	"github.com/codeready-toolchain/brain/pkg/understanding"
	"github.com/codeready-toolchain/brain/pkg/vectorstore"
	"github.com/codeready-toolchain/brain/pkg/version"
	"github.com/redis/go-redis/v9"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to load .env file", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		slog.Error("brain: fatal startup error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	slog.Info("starting brain", "version", version.Full())

	configDir := getEnvOrDefault("BRAIN_CONFIG_DIR", "./config")
	cfg, err := config.Initialize(ctx, configDir)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	dbCfg, err := database.LoadConfigFromEnv()
	if err != nil {
		return fmt.Errorf("load database config: %w", err)
	}
	dbClient, err := database.NewClient(ctx, dbCfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer dbClient.Close()

	var rdb *redis.Client
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: addr})
		defer rdb.Close()
	}

	st := store.New(dbClient)
	idStore := identity.New(dbClient)
	vecStore := vectorstore.New(dbClient)
	adminCfg := adminconfig.New(dbClient, rdb)
	flags := featureflag.New(dbClient, rdb, map[string]bool{"brain_enabled": true})
	warnings := sysinfo.New()

	llmClient, embeddingModel, err := buildLLMClient(cfg, warnings)
	if err != nil {
		return fmt.Errorf("build llm client: %w", err)
	}

	maskingSvc := masking.NewService(cfg.Capabilities, masking.LogMaskingConfig{Enabled: true, PatternGroup: "pii"})

	guardrailEngine, err := guardrail.New(cfg.Guardrail)
	if err != nil {
		return fmt.Errorf("build guardrail engine: %w", err)
	}

	memLoader := memory.NewLoader(st, idStore, vecStore)
	stateManager := state.New(st)
	understandingEngine := understanding.New(cfg.Capabilities, llmClient, cfg.Defaults.UnderstandingLLM)
	decisionEngine := decision.New(cfg.Capabilities)

	execRegistry := execution.NewRegistry()
	handlers.Register(execRegistry, handlers.Deps{Store: st})
	execEngine := execution.New(execRegistry, cfg.Capabilities)

	var chatSender *slack.Service
	if token := os.Getenv(getEnvOrDefault("BRAIN_CHAT_TOKEN_ENV", "SLACK_BOT_TOKEN")); token != "" {
		chatSender = slack.NewService(slack.ServiceConfig{Token: token})
	}
	rateLimitedChat := chatclient.New(chatSender, cfg.RateLimit)

	announcementEngine := announcement.New(st, rateLimitedChat, llmClient, cfg.Announcement)
	postEngine := post.New(st, rateLimitedChat, maskingSvc)

	tenantResolver := staticTenantResolver{tenantID: getEnvOrDefault("BRAIN_TENANT_ID", "default")}
	ingressSvc := ingress.New(tenantResolver, idStore, st)

	b := brain.New(brain.Deps{
		Ingress:        ingressSvc,
		Memory:         memLoader,
		State:          stateManager,
		Understanding:  understandingEngine,
		Decision:       decisionEngine,
		Guardrail:      guardrailEngine,
		Execution:      execEngine,
		Post:           postEngine,
		Announcement:   announcementEngine,
		Store:          st,
		Capabilities:   cfg.Capabilities,
		Masking:        maskingSvc,
		LLM:            llmClient,
		EmbeddingModel: embeddingModel,
	})

	tasks := bgtask.New()
	bgCtx := tasks.Start(ctx)

	cleanupSvc := cleanup.NewService(cfg.Retention, st)
	cleanupSvc.Start(bgCtx)
	defer cleanupSvc.Stop()

	sched := scheduler.New(st, announcementEngine, cfg.Announcement, nil)
	tasks.Go(bgCtx, "scheduler", sched.Run)

	pool := newIngestPool(b, cfg.Ingest)
	tasks.Go(bgCtx, "ingest-pool", pool.Run)

	router := buildRouter(pool, dbClient, llmClient, tasks, adminCfg, flags, warnings, tenantResolver.tenantID)
	srv := &http.Server{
		Addr:    ":" + getEnvOrDefault("PORT", "8080"),
		Handler: router,
	}

	serveErrCh := make(chan error, 1)
	go func() {
		slog.Info("brain: listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErrCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("brain: shutdown signal received")
	case err := <-serveErrCh:
		tasks.Stop()
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("brain: graceful shutdown failed", "error", err)
	}
	tasks.Stop()
	return nil
}

// buildLLMClient selects the backend named by cfg.Defaults.LLMProvider,
// wraps it in the circuit breaker every upstream LLM call goes through,
// and returns the embedding model name handlers should request by.
func buildLLMClient(cfg *config.Config, warnings *sysinfo.Service) (llm.Client, string, error) {
	providerName := cfg.Defaults.LLMProvider
	provider, err := cfg.GetLLMProvider(providerName)
	if err != nil {
		return nil, "", fmt.Errorf("resolve default llm provider %q: %w", providerName, err)
	}

	apiKey := os.Getenv(provider.APIKeyEnv)

	var inner llm.Client
	switch provider.Backend {
	case config.LLMBackendAnthropic:
		inner, err = anthropic.NewFromAPIKey(apiKey, provider.Model)
		if err != nil {
			return nil, "", fmt.Errorf("build anthropic client: %w", err)
		}
	case config.LLMBackendLangChain:
		var opts []openai.Option
		opts = append(opts, openai.WithModel(provider.Model))
		if apiKey != "" {
			opts = append(opts, openai.WithToken(apiKey))
		}
		if provider.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(provider.BaseURL))
		}
		model, err := openai.New(opts...)
		if err != nil {
			return nil, "", fmt.Errorf("build langchain openai model: %w", err)
		}
		var embedder langchain.Embedder
		if e, embedErr := embeddings.NewEmbedder(model); embedErr != nil {
			slog.Warn("langchain: embedder construction failed, embeddings disabled", "error", embedErr)
		} else {
			embedder = e
		}
		inner, err = langchain.New(model, embedder)
		if err != nil {
			return nil, "", fmt.Errorf("build langchain client: %w", err)
		}
	default:
		return nil, "", fmt.Errorf("unknown llm backend %q", provider.Backend)
	}

	breakerCfg := llm.DefaultBreakerConfig(providerName)
	if provider.BreakerMaxRequests > 0 {
		breakerCfg.MaxRequestsHalfOpen = provider.BreakerMaxRequests
	}
	breakerCfg.OnStateChange = func(name string, from, to gobreaker.State) {
		if to == gobreaker.StateOpen {
			metrics.RecordCircuitBreakerTrip()
			warnings.AddWarning(sysinfo.CategoryLLMCircuit, "LLM circuit breaker open", "consecutive failures exceeded threshold", name)
		} else if to == gobreaker.StateClosed {
			warnings.ClearBySource(sysinfo.CategoryLLMCircuit, name)
		}
	}
	return llm.NewBreakingClient(inner, breakerCfg), provider.Model, nil
}

// ingestPool drains inbound webhook deliveries through a fixed number of
// workers, per cfg.Ingest, so a burst of Slack traffic queues instead of
// spawning unbounded goroutines. Deliveries that arrive once the queue is
// full are dropped with a log line rather than blocking the HTTP handler.
type ingestPool struct {
	brain *brain.Brain
	cfg   *config.IngestConfig
	queue chan ingress.RawDelivery
}

func newIngestPool(b *brain.Brain, cfg *config.IngestConfig) *ingestPool {
	if cfg == nil {
		cfg = config.DefaultIngestConfig()
	}
	return &ingestPool{brain: b, cfg: cfg, queue: make(chan ingress.RawDelivery, cfg.QueueDepth)}
}

// Enqueue queues raw for processing, returning false if the queue is full.
func (p *ingestPool) Enqueue(raw ingress.RawDelivery) bool {
	select {
	case p.queue <- raw:
		return true
	default:
		return false
	}
}

// Run drains the queue with cfg.WorkerCount workers until ctx is cancelled,
// then waits up to cfg.GracefulShutdownTimeout for in-flight work to drain.
func (p *ingestPool) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for i := 0; i < p.cfg.WorkerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.worker(ctx)
		}()
	}

	<-ctx.Done()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(p.cfg.GracefulShutdownTimeout):
		slog.Warn("ingest pool: graceful shutdown timed out with workers still draining")
	}
	return nil
}

func (p *ingestPool) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case raw := <-p.queue:
			reqCtx, cancel := context.WithTimeout(context.Background(), p.cfg.PerUserTimeout+brain.RequestDeadline)
			if _, err := p.brain.Handle(reqCtx, raw); err != nil {
				slog.Error("brain: webhook handling failed", "room_id", raw.RoomID, "error", err)
			}
			cancel()
		}
	}
}

// staticTenantResolver maps every chat org id to one configured tenant.
// This schema carries no normalized tenants table (tenant_id is a
// free-form, RLS-enforced column) and this deployment runs single-tenant;
// a multi-tenant deployment supplies its own ingress.TenantResolver
// backed by whatever workspace directory it manages.
type staticTenantResolver struct {
	tenantID string
}

func (r staticTenantResolver) ResolveTenant(_ context.Context, _ string) (string, error) {
	return r.tenantID, nil
}

func buildRouter(pool *ingestPool, dbClient *database.Client, llmClient llm.Client, tasks *bgtask.Tracker, adminCfg *adminconfig.Store, flags *featureflag.Store, warnings *sysinfo.Service, defaultTenantID string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", healthHandler(dbClient, llmClient, tasks, adminCfg, warnings, defaultTenantID))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.POST("/webhook/slack", slackWebhookHandler(pool, flags, defaultTenantID))

	return router
}

func healthHandler(dbClient *database.Client, llmClient llm.Client, tasks *bgtask.Tracker, adminCfg *adminconfig.Store, warnings *sysinfo.Service, defaultTenantID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		dbHealth, err := database.Health(c.Request.Context(), dbClient.DB())
		status := http.StatusOK
		dbStatus := "ok"
		if err != nil {
			status = http.StatusServiceUnavailable
			dbStatus = err.Error()
		}

		breakerState := "n/a"
		if bc, ok := llmClient.(*llm.BreakingClient); ok {
			breakerState = bc.State().String()
		}

		var operatorAccountID string
		if ac, err := adminCfg.Get(c.Request.Context(), defaultTenantID); err == nil {
			operatorAccountID = ac.OperatorAccountID
		}

		c.JSON(status, gin.H{
			"status":           dbStatus,
			"database":         dbHealth,
			"llm_breaker":      breakerState,
			"background_jobs":  tasks.Running(),
			"operator_account": operatorAccountID,
			"warnings":         warnings.Warnings(),
			"version":          version.Full(),
		})
	}
}

// slackEventPayload is the subset of the Slack Events API envelope the
// webhook needs: the one-time URL verification handshake, and inbound
// message events.
type slackEventPayload struct {
	Type      string `json:"type"`
	Challenge string `json:"challenge"`
	TeamID    string `json:"team_id"`
	Event     struct {
		Type        string `json:"type"`
		Channel     string `json:"channel"`
		User        string `json:"user"`
		Text        string `json:"text"`
		TS          string `json:"ts"`
		ChannelType string `json:"channel_type"`
	} `json:"event"`
}

func slackWebhookHandler(pool *ingestPool, flags *featureflag.Store, tenantID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var payload slackEventPayload
		if err := c.ShouldBindJSON(&payload); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
			return
		}

		if payload.Type == "url_verification" {
			c.JSON(http.StatusOK, gin.H{"challenge": payload.Challenge})
			return
		}
		if payload.Type != "event_callback" || payload.Event.Type != "message" {
			c.Status(http.StatusOK)
			return
		}
		if payload.Event.User == "" || payload.Event.Text == "" {
			c.Status(http.StatusOK)
			return
		}

		if enabled, err := flags.IsEnabled(c.Request.Context(), tenantID, "brain_enabled"); err == nil && !enabled {
			c.Status(http.StatusOK)
			return
		}

		raw := ingress.RawDelivery{
			ChatOrgID:     payload.TeamID,
			ChatAccountID: payload.Event.User,
			RoomID:        payload.Event.Channel,
			Text:          payload.Event.Text,
			WebhookID:     payload.TeamID + ":" + payload.Event.Channel + ":" + payload.Event.TS,
			ReceivedAt:    time.Now().UTC(),
			DirectMention: payload.Event.ChannelType == "im",
		}

		// Slack expects a 200 within 3s regardless of queue state; a
		// dropped delivery still gets retried by Slack on its own backoff.
		if !pool.Enqueue(raw) {
			slog.Warn("ingest pool: queue full, dropping delivery", "room_id", raw.RoomID)
		}
		c.Status(http.StatusOK)
	}
}

func getEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
