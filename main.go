package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"quest-ledger/config"
	"quest-ledger/handlers"
	"quest-ledger/middleware"
	"quest-ledger/services"
	"quest-ledger/utils"
	"quest-ledger/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config:", err)
	}

	catalog, err := services.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		log.Fatal("failed to load quest catalog:", err)
	}

	var store services.KVStore
	if cfg.DatabaseURL == "" {
		log.Println("⚠️  DATABASE_URL not set, using in-memory store (data is lost on restart)")
		store = services.NewMemoryStore()
	} else {
		gormStore, err := services.OpenGormStore(cfg.DatabaseURL)
		if err != nil {
			log.Fatal(err)
		}
		store = gormStore
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("Store close error: %v", err)
		}
	}()

	ledger := services.NewQuestLedger(store, catalog, cfg.StoreTimeout)
	health := services.NewStoreHealth(store)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	jobs := workers.LedgerJobs{
		Health:           health,
		HealthInterval:   cfg.HealthInterval,
		ProbeTimeout:     cfg.StoreTimeout,
		SnapshotInterval: cfg.SnapshotInterval,
	}
	if cfg.R2.Enabled() {
		r2Client, err := utils.NewR2Client(ctx, cfg.R2)
		if err != nil {
			log.Fatal("failed to initialize R2 client:", err)
		}
		jobs.Snapshots = services.NewSnapshotExporter(store, r2Client, cfg.R2.Bucket)
	} else {
		log.Println("⚠️  R2 not configured, ledger snapshots disabled")
	}
	sched, err := jobs.Start(ctx)
	if err != nil {
		log.Fatal(err)
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 64 * 1024,
	})

	app.Use(middleware.RequestContextMiddleware())
	app.Use(cors.New(cors.Config{
		AllowOrigins:  cfg.Origins(),
		AllowMethods:  "GET,POST,OPTIONS",
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization, X-Request-ID",
		ExposeHeaders: "Content-Length, Content-Type, X-Request-ID",
		MaxAge:        86400, // 24 hours
	}))
	app.Use(middleware.GatewayAuthMiddleware(cfg.APIToken, "/api/health"))

	handlers.SetupQuestRoutes(app, ledger, health)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("✅ Server running on http://localhost:%s", cfg.Port)
	log.Printf("✅ Quest catalog loaded (%d quests)", len(catalog.Quests()))
	log.Printf("✅ CORS configured for origins: %s", cfg.Origins())

	<-ctx.Done()
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	if err := sched.Shutdown(); err != nil {
		log.Printf("Scheduler shutdown error: %v", err)
	}
}
