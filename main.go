package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"studygroup-service/internal/ai"
	"studygroup-service/internal/config"
	"studygroup-service/internal/db"
	"studygroup-service/internal/handlers"
	"studygroup-service/internal/health"
	"studygroup-service/internal/logging"
	"studygroup-service/internal/middleware"
	"studygroup-service/internal/observability"
	"studygroup-service/internal/rabbitmq"
	"studygroup-service/internal/repositories"
	"studygroup-service/internal/services"
	"studygroup-service/internal/session"
	"studygroup-service/internal/telemetry"
)

type stores struct {
	groups   repositories.GroupRepository
	messages repositories.GroupMessageRepository
	students repositories.StudentRepository
	accounts repositories.AccountRepository
}

func main() {
	cfg := config.Load()
	if err := logging.Init(cfg.LogLevel); err != nil {
		panic(err)
	}
	defer logging.Sync()
	log := logging.Log

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, cfg.OTLPEndpoint, cfg.ServiceName, cfg.Environment)
	if err != nil {
		log.Fatal("failed to init tracing", zap.Error(err))
	}

	checks := map[string]health.Checker{}
	var st stores
	switch cfg.StorageBackend {
	case config.StorageMemory:
		mem := repositories.NewMemoryStore()
		st = stores{groups: mem, messages: mem, students: mem, accounts: mem}
		log.Info("using in-memory storage")
	case config.StoragePostgres:
		database, err := db.Connect(ctx, cfg.DatabaseDSN)
		if err != nil {
			log.Fatal("failed to connect to db", zap.Error(err))
		}
		defer database.Close()
		studentRepo := repositories.NewStudentRepo(database)
		st = stores{
			groups:   repositories.NewGroupRepo(database),
			messages: repositories.NewGroupMessageRepo(database),
			students: studentRepo,
			accounts: studentRepo,
		}
		checks["postgres"] = database.PingContext
	default:
		log.Fatal("unknown storage backend", zap.String("backend", cfg.StorageBackend))
	}

	var sessions session.Store
	if cfg.RedisURL != "" {
		redisStore, err := session.NewRedisStore(cfg.RedisURL, cfg.SessionTTL)
		if err != nil {
			log.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer redisStore.Close()
		sessions = redisStore
		checks["redis"] = redisStore.Ping
	} else {
		sessions = session.NewMemoryStore(cfg.SessionTTL)
		log.Info("using in-memory sessions")
	}

	var gen ai.Generator = ai.Unconfigured{}
	gemini, err := ai.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.AITimeout)
	switch {
	case err == nil:
		gen = gemini
		log.Info("gemini client ready", zap.String("model", cfg.GeminiModel))
	case errors.Is(err, ai.ErrNotConfigured):
		log.Warn("GEMINI_API_KEY not set, assistant will answer with the fallback reply")
	default:
		log.Fatal("failed to create gemini client", zap.Error(err))
	}

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AuditExchange)
	defer publisher.Close()
	log.Info("audit publisher",
		zap.String("mode", rabbitmq.PublisherMode(publisher)),
		zap.String("noop_reason", rabbitmq.PublisherNoopReason(publisher)),
	)
	audit := telemetry.NewAuditEmitter(publisher, cfg.AuditRoutingKey, cfg.ServiceName, cfg.Environment)

	accountSvc := services.NewAccountService(st.accounts, st.students, sessions)
	groupSvc := services.NewGroupService(st.groups)
	messageSvc := services.NewMessageService(st.groups, st.messages)
	assistantSvc := services.NewAssistantService(messageSvc, ai.NewAssistant(gen))
	suggestionSvc := services.NewSuggestionService(st.students, st.groups, ai.NewSuggester(gen))

	if cfg.SeedDemoData {
		if _, err := services.NewSeeder(accountSvc, st.students, st.groups, st.messages).Seed(ctx); err != nil {
			log.Fatal("failed to seed demo data", zap.Error(err))
		}
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(
		gin.Recovery(),
		otelgin.Middleware(cfg.ServiceName),
		observability.RequestIDMiddleware(),
		observability.RequestLogger(),
		observability.HTTPMetricsMiddleware(),
	)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	handlers.RegisterDebugRoutes(router, audit, cfg.DebugRoutes)

	handlers.Routes{
		Auth:        handlers.NewAuthHandler(accountSvc, audit),
		Groups:      handlers.NewGroupHandler(groupSvc, audit),
		Messages:    handlers.NewMessageHandler(messageSvc, assistantSvc, audit),
		Suggestions: handlers.NewSuggestionHandler(suggestionSvc, audit),
		RequireAuth: middleware.AuthMiddleware(accountSvc),
		Limit:       middleware.RateLimitPerMinute(cfg.AIRatePerMinute),
	}.Register(router.Group("/api"))

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
	}).Handler(router)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           corsHandler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	healthSrv := health.NewServer(cfg.ServiceName, checks)
	grpcLis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		log.Fatal("failed to listen for grpc", zap.Error(err))
	}
	go func() {
		if err := healthSrv.Serve(ctx, grpcLis); err != nil {
			log.Error("grpc health server stopped", zap.Error(err))
		}
	}()

	go func() {
		log.Info("http server listening", zap.String("addr", srv.Addr), zap.String("grpc_port", cfg.GRPCPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
	healthSrv.Shutdown()
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Warn("tracing shutdown", zap.Error(err))
	}
}
