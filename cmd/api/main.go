package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/estatedesk/backend/internal/api/handlers"
	"github.com/estatedesk/backend/internal/auth"
	redisCache "github.com/estatedesk/backend/internal/cache/redis"
	"github.com/estatedesk/backend/internal/chat"
	"github.com/estatedesk/backend/internal/ingestion"
	"github.com/estatedesk/backend/internal/leads"
	"github.com/estatedesk/backend/internal/llm"
	"github.com/estatedesk/backend/internal/metrics"
	"github.com/estatedesk/backend/internal/middleware/authguard"
	"github.com/estatedesk/backend/internal/middleware/ratelimit"
	"github.com/estatedesk/backend/internal/middleware/security"
	"github.com/estatedesk/backend/internal/pipeline"
	"github.com/estatedesk/backend/internal/properties"
	"github.com/estatedesk/backend/internal/relay"
	"github.com/estatedesk/backend/internal/settings"
	"github.com/estatedesk/backend/internal/storage/sqlite"
	"github.com/estatedesk/backend/pkg/config"
	appLogger "github.com/estatedesk/backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting EstateDesk API Server")

	metrics.Init()

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	if err := sqliteClient.InitSchema(); err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}
	if err := sqliteClient.VerifySchema(); err != nil {
		if sqlite.IsSchemaMismatch(err) {
			appLogger.Fatal("Database file predates the current schema; back it up and delete it to re-initialize",
				zap.String("path", cfg.SQLite.Path), zap.Error(err))
		}
		appLogger.Fatal("Schema verification failed", zap.Error(err))
	}

	var extractionCache ingestion.Cache
	if cfg.Redis.Enabled {
		redisClient, err := redisCache.NewClient(
			cfg.Redis.Host,
			cfg.Redis.Port,
			cfg.Redis.Password,
			cfg.Redis.DB,
			time.Duration(cfg.Redis.TTLHours)*time.Hour,
		)
		if err != nil {
			appLogger.Warn("Redis unavailable, extraction caching disabled", zap.Error(err))
		} else {
			defer redisClient.Close()
			extractionCache = redisClient
		}
	}

	llmClient := llm.NewClient(cfg.LLM)
	relayClient := relay.NewClient(cfg.Relay)
	normalizer := ingestion.NewNormalizer(llmClient, relayClient, extractionCache, cfg.LLM.MaxInputChars)

	leadService := leads.NewService(sqliteClient, sqliteClient)
	pipelineService := pipeline.NewService(sqliteClient)
	propertyService := properties.NewService(sqliteClient, cfg.Server.AppBaseURL)
	settingsService := settings.NewService(sqliteClient)
	authService := auth.NewService(sqliteClient, cfg.Auth, pipelineService, settingsService)
	chatService := chat.NewService(chat.NewManager(), llmClient, sqliteClient, sqliteClient, leadService)

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, PATCH, DELETE, OPTIONS",
	}))
	app.Use(security.Headers(security.HeadersConfig{}))
	app.Use(metrics.Middleware())

	limiter := ratelimit.New(ratelimit.Config{MaxRequestsPerMinute: 240})
	defer limiter.Stop()
	app.Use(limiter.Middleware())

	authHandler := handlers.NewAuthHandler(authService)
	propertyHandler := handlers.NewPropertyHandler(propertyService)
	ingestHandler := handlers.NewIngestHandler(normalizer, llmClient, sqliteClient)
	leadHandler := handlers.NewLeadHandler(leadService)
	pipelineHandler := handlers.NewPipelineHandler(pipelineService)
	chatHandler := handlers.NewChatHandler(chatService)
	relayHandler := handlers.NewRelayHandler(relayClient)
	settingsHandler := handlers.NewSettingsHandler(settingsService)
	wsHandler := handlers.NewWebSocketHandler(chatService)

	guard := authguard.New(authService)

	api := app.Group("/api/v1")

	api.Post("/auth/signup", authHandler.SignUp)
	api.Post("/auth/signin", authHandler.SignIn)
	api.Post("/auth/signout", guard, authHandler.SignOut)
	api.Get("/auth/me", guard, authHandler.Me)
	api.Post("/auth/reset/request", authHandler.RequestPasswordReset)
	api.Post("/auth/reset", authHandler.ResetPassword)

	api.Get("/properties", guard, propertyHandler.List)
	api.Post("/properties", guard, propertyHandler.Create)
	api.Get("/properties/:id", guard, propertyHandler.Get)
	api.Put("/properties/:id", guard, propertyHandler.Update)
	api.Delete("/properties/:id", guard, propertyHandler.Delete)
	api.Patch("/properties/:id/status", guard, propertyHandler.SetStatus)
	api.Get("/properties/:id/share", guard, propertyHandler.Share)

	api.Post("/ingest", guard, ingestHandler.Ingest)
	api.Post("/ingest/voice", guard, ingestHandler.IngestVoice)

	api.Get("/leads", guard, leadHandler.List)
	api.Post("/leads", guard, leadHandler.Create)
	api.Get("/leads/:id", guard, leadHandler.Get)
	api.Put("/leads/:id", guard, leadHandler.Update)
	api.Post("/leads/:id/notes", guard, leadHandler.AddNote)
	api.Patch("/leads/:id/priority", guard, leadHandler.SetPriority)
	api.Patch("/leads/:id/due-date", guard, leadHandler.SetDueDate)
	api.Patch("/leads/:id/financing", guard, leadHandler.SetFinancing)
	api.Patch("/leads/:id/stage", guard, pipelineHandler.ReassignLead)
	api.Post("/leads/:id/archive", guard, pipelineHandler.ArchiveLead)

	api.Get("/pipeline/board", guard, pipelineHandler.Board)
	api.Get("/pipeline/stages", guard, pipelineHandler.ListStages)
	api.Post("/pipeline/stages", guard, pipelineHandler.AddStage)
	api.Delete("/pipeline/stages/:id", guard, pipelineHandler.DeleteStage)
	api.Patch("/pipeline/stages/:id", guard, pipelineHandler.RenameStage)
	api.Post("/pipeline/rename-jobs/:jobId/resume", guard, pipelineHandler.ResumeRename)

	// Chat widget routes: session start needs the agent token (the widget
	// is served from the dashboard's public listing page with a scoped
	// token); message and form routes key on the session id.
	api.Post("/chat/sessions", guard, chatHandler.StartSession)
	api.Post("/chat/messages", chatHandler.SendMessage)
	api.Post("/chat/contact", chatHandler.SubmitContactForm)
	api.Delete("/chat/sessions/:id", chatHandler.EndSession)

	api.Get("/relay", relayHandler.Fetch)

	api.Get("/settings", guard, settingsHandler.Get)
	api.Put("/settings", guard, settingsHandler.Save)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/chat", websocket.New(wsHandler.HandleConnection))

	app.Get("/metrics", metrics.MetricsHandler())

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	app.Shutdown()
	appLogger.Info("Server stopped")
}
