package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"opsdesk/internal/config"
	"opsdesk/internal/database"
	"opsdesk/internal/handlers"
	"opsdesk/internal/jobs"
	"opsdesk/internal/logging"
	"opsdesk/internal/middleware"
	"opsdesk/internal/services"
	"opsdesk/pkg/auth"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/fsnotify/fsnotify"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// Initialize structured logging (JSON in production, text in dev)
	logging.Init()

	log.Println("🚀 Starting OpsDesk Server...")

	// Load .env file (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️  No .env file found or error loading it: %v", err)
	} else {
		log.Println("✅ .env file loaded successfully")
	}

	// Load configuration
	cfg := config.Load()
	log.Printf("📋 Configuration loaded (Port: %s, Env: %s)", cfg.Port, cfg.Environment)

	// Connect to MongoDB
	log.Println("🔗 Connecting to MongoDB...")
	mongoDB, err := database.NewMongoDB(cfg.MongoURI)
	if err != nil {
		log.Fatalf("❌ Failed to connect to MongoDB: %v", err)
	}
	defer mongoDB.Close(context.Background())
	log.Println("✅ MongoDB connected successfully")

	if err := mongoDB.Initialize(context.Background()); err != nil {
		log.Fatalf("❌ Failed to initialize database: %v", err)
	}

	// Connect to Redis (optional - distributed locking across instances)
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		log.Println("🔗 Connecting to Redis...")
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Printf("⚠️ Invalid REDIS_URL: %v (falling back to in-process locks)", err)
		} else {
			client := redis.NewClient(opt)
			pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := client.Ping(pingCtx).Err(); err != nil {
				log.Printf("⚠️ Failed to connect to Redis: %v (falling back to in-process locks)", err)
			} else {
				redisClient = client
				defer redisClient.Close()
				log.Println("✅ Redis connected successfully")
			}
			cancel()
		}
	} else {
		log.Println("⚠️ REDIS_URL not set - using in-process locks (single instance only)")
	}

	locks := services.NewKeyedLocks(redisClient)

	// Load quota ceiling history (compiled-in defaults if no file configured)
	ceilings, err := config.LoadCeilingHistory(cfg.QuotaConfigPath)
	if err != nil {
		log.Fatalf("❌ Failed to load quota ceiling history: %v", err)
	}
	log.Printf("📋 Quota ceiling history loaded (current: %d messages/month)", ceilings.Current())

	// Initialize Prometheus metrics
	metrics := services.InitMetrics()
	log.Println("✅ Prometheus metrics initialized")

	// Core services
	store := services.NewDocumentStore(mongoDB)
	changeFeed := services.NewChangeFeed(mongoDB, store, metrics)
	dateKeys := services.NewDateKeyService(store, locks)
	ledger := services.NewUsageLedgerService(store, locks, ceilings)
	generator := services.NewGenerationService(cfg)
	feedback := services.NewFeedbackService(store, generator, cfg.ProfileCacheTTL)
	log.Println("✅ Services initialized")

	// Watch the quota config file for ceiling raises (no restart required)
	if cfg.QuotaConfigPath != "" {
		go watchCeilingHistory(cfg.QuotaConfigPath, ledger)
	}

	// Initialize authentication
	var jwtAuth *auth.LocalJWTAuth
	if cfg.JWTSecret == "" {
		if cfg.Environment == "production" {
			log.Fatal("❌ CRITICAL SECURITY ERROR: JWT_SECRET is required in production. Generate with: openssl rand -hex 64")
		}
		log.Println("⚠️  JWT_SECRET not set - authentication disabled (development mode)")
	} else {
		jwtAuth, err = auth.NewLocalJWTAuth(cfg.JWTSecret, cfg.AccessTokenExpiry)
		if err != nil {
			log.Fatalf("❌ Failed to initialize JWT authentication: %v", err)
		}
		log.Printf("✅ JWT authentication initialized (access: %v)", cfg.AccessTokenExpiry)
	}

	// Background jobs
	scheduler, err := jobs.NewScheduler()
	if err != nil {
		log.Fatalf("❌ Failed to create job scheduler: %v", err)
	}
	migrationJob := jobs.NewUsageMigrationJob(ledger)
	reportJob := jobs.NewUsageReportJob(store)
	if err := scheduler.Register("usage_migration", "0 3 * * *", migrationJob.Run); err != nil {
		log.Fatalf("❌ Failed to register usage migration job: %v", err)
	}
	if err := scheduler.Register("usage_report", "0 * * * *", reportJob.Run); err != nil {
		log.Fatalf("❌ Failed to register usage report job: %v", err)
	}
	scheduler.Start()
	defer func() {
		if err := scheduler.Stop(); err != nil {
			log.Printf("⚠️ Failed to stop scheduler: %v", err)
		}
	}()

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(mongoDB)
	authHandler := handlers.NewAuthHandler(cfg, jwtAuth)
	deliveryHandler := handlers.NewDeliveryHandler(store, dateKeys)
	balanceHandler := handlers.NewBalanceHandler(store)
	assistantHandler := handlers.NewAssistantHandler(ledger, feedback, generator, metrics)
	exportHandler := handlers.NewExportHandler(store)
	wsHandler := handlers.NewWebSocketHandler(changeFeed, metrics)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "OpsDesk v1.0",
		ReadTimeout:  120 * time.Second,
		WriteTimeout: 120 * time.Second, // drafts from slow providers can take a while
		IdleTimeout:  120 * time.Second,
		BodyLimit:    4 * 1024 * 1024,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New())

	// Prometheus metrics middleware
	prometheus := fiberprometheus.New("opsdesk")
	prometheus.RegisterAt(app, "/metrics")
	app.Use(prometheus.Middleware)
	log.Println("📊 Prometheus metrics endpoint enabled at /metrics")

	// CORS configuration with environment-based origins
	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		allowedOrigins = "http://localhost:5173,http://localhost:3000"
		log.Println("⚠️  ALLOWED_ORIGINS not set, using development defaults")
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization",
		AllowCredentials: allowedOrigins != "*",
	}))
	log.Printf("🔒 [SECURITY] CORS allowed origins: %s", allowedOrigins)

	// Global API rate limiter - first line of DDoS defense
	app.Use("/api", middleware.GlobalAPIRateLimiter())
	log.Println("🛡️  [RATE-LIMIT] Global API rate limiter enabled")

	// Routes

	// Health check (public)
	app.Get("/health", healthHandler.Check)

	api := app.Group("/api")

	// Authentication (public)
	api.Post("/auth/login", authHandler.Login)

	// Everything below requires an operator token
	api.Use(middleware.AuthMiddleware(jwtAuth))

	deliveries := api.Group("/deliveries")
	deliveries.Get("/", deliveryHandler.List)
	deliveries.Post("/", deliveryHandler.Create)
	deliveries.Get("/export", exportHandler.Deliveries) // Must be before /:id to avoid route conflict
	deliveries.Get("/:id", deliveryHandler.Get)
	deliveries.Put("/:id", deliveryHandler.Update)
	deliveries.Delete("/:id", deliveryHandler.Delete)

	balances := api.Group("/balances")
	balances.Get("/", balanceHandler.List)
	balances.Post("/", balanceHandler.Create)
	balances.Get("/:id", balanceHandler.Get)
	balances.Put("/:id", balanceHandler.Update)
	balances.Delete("/:id", balanceHandler.Delete)

	assistant := api.Group("/assistant", middleware.AssistantRateLimiter())
	assistant.Post("/draft", assistantHandler.Draft)
	assistant.Post("/feedback", assistantHandler.Feedback)
	assistant.Get("/usage", assistantHandler.Usage)

	// WebSocket live snapshots (browser clients pass the token as ?token=)
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/collections/:name", middleware.AuthMiddleware(jwtAuth), websocket.New(wsHandler.Handle))

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		log.Println("🛑 Shutting down server...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("⚠️ Server shutdown error: %v", err)
		}
	}()

	log.Printf("🌐 Server listening on port %s", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("❌ Server error: %v", err)
	}
	log.Println("✅ Server stopped")
}

// watchCeilingHistory reloads the quota ceiling file whenever it changes.
// A broken edit keeps the last good history in place.
func watchCeilingHistory(path string, ledger *services.UsageLedgerService) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("⚠️ Failed to create quota config watcher: %v", err)
		return
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		log.Printf("⚠️ Failed to watch quota config %s: %v", path, err)
		return
	}
	log.Printf("👀 Watching quota config: %s", path)

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			history, err := config.LoadCeilingHistory(path)
			if err != nil {
				log.Printf("⚠️ Ignoring quota config change, reload failed: %v", err)
				continue
			}
			ledger.ReloadCeilings(history)
			log.Printf("🔄 Quota ceiling history reloaded (current: %d messages/month)", history.Current())
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Printf("⚠️ Quota config watcher error: %v", err)
		}
	}
}
