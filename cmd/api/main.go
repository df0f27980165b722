package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/xelth-com/eckdesk/internal/ai"
	"github.com/xelth-com/eckdesk/internal/config"
	"github.com/xelth-com/eckdesk/internal/database"
	"github.com/xelth-com/eckdesk/internal/feed"
	"github.com/xelth-com/eckdesk/internal/handlers"
	"github.com/xelth-com/eckdesk/internal/models"
	"github.com/xelth-com/eckdesk/internal/notify"
	"github.com/xelth-com/eckdesk/internal/reporting"
	"github.com/xelth-com/eckdesk/internal/services/requests"
	"github.com/xelth-com/eckdesk/internal/storage"
	"github.com/xelth-com/eckdesk/internal/storage/cloudinary"
	"github.com/xelth-com/eckdesk/internal/websocket"
)

// reportRetryDelay is the pause before the shared report aggregator resubscribes
// after a failed snapshot load
const reportRetryDelay = 5 * time.Second

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// 2. Initialize database (Detects Embedded vs External automatically)
	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	// Note: db.Close() is called manually in shutdown handler below

	// 3. Auto-Migrate Schema (Critical for Zero-Config)
	log.Println("🚀 Synchronizing database schema...")
	if err := db.Migrate(); err != nil {
		log.Printf("⚠️ Migration warning: %v\n", err)
	} else {
		log.Println("✅ Schema synchronized successfully")
	}

	ctx, cancel := context.WithCancel(context.Background())

	// 4. Request store and live feed
	store := requests.NewGormStore(db.DB)
	requestFeed := feed.New(store)
	if err := feed.RegisterHooks(db.DB, requestFeed); err != nil {
		log.Fatalf("Failed to register feed hooks: %v", err)
	}

	// 5. External services, each optional
	var files storage.FileStore = storage.Disabled{}
	if cfg.Cloudinary.Enabled() {
		client, err := cloudinary.NewClient(cloudinary.Config{
			CloudName:    cfg.Cloudinary.CloudName,
			UploadPreset: cfg.Cloudinary.UploadPreset,
			APIKey:       cfg.Cloudinary.APIKey,
			APISecret:    cfg.Cloudinary.APISecret,
		})
		if err != nil {
			log.Printf("⚠️ File host: %v", err)
		} else {
			files = client
			log.Println("☁️ File host: Cloudinary enabled")
		}
	} else {
		log.Println("⚠️ File host: not configured, attachments disabled")
	}

	var notifier notify.Notifier = notify.Nop{}
	if cfg.Telegram.Enabled() {
		tg, err := notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID, cfg.BaseURL)
		if err != nil {
			log.Printf("⚠️ Telegram: %v", err)
		} else {
			notifier = tg
			log.Println("✅ Telegram: technician notifications enabled")
		}
	}

	var generator ai.Generator
	var gemini *ai.GeminiClient
	if cfg.Gemini.APIKey != "" {
		gemini, err = ai.NewGeminiClient(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model)
		if err != nil {
			log.Printf("⚠️ Assistant: %v", err)
		} else {
			generator = gemini
			log.Printf("✅ Assistant: %s ready", cfg.Gemini.Model)
		}
	} else {
		log.Println("⚠️ Assistant: GEMINI_API_KEY not set, replies will apologise")
	}

	// 6. Services
	requestService := requests.NewService(store, files, notifier)
	assistant := ai.NewAssistant(generator, ai.NewGormChatStore(db.DB))

	hub := websocket.NewHub()
	go hub.Run(ctx)
	requestService.OnEvent(func(e models.RequestEvent) {
		hub.Broadcast(websocket.Event{
			Type:      websocket.TypeRequestChanged,
			RequestID: e.RequestID,
			Action:    e.Action,
		})
	})

	reports := reporting.NewAggregator(cfg.Reports.CacheSize, cfg.Reports.CacheTTL)
	go keepReportsLive(ctx, requestFeed, reports)

	// 7. Set up HTTP router
	router := handlers.NewRouter(handlers.Deps{
		Config:    cfg,
		DB:        db.DB,
		Pinger:    db,
		Requests:  requestService,
		Reports:   reports,
		Feed:      requestFeed,
		Hub:       hub,
		Assistant: assistant,
	})

	// 8. Start server with graceful shutdown
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Channel to listen for shutdown signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	// Start server in goroutine
	go func() {
		log.Printf("🚀 Service desk (%s) starting on port %s", cfg.NodeEnv, cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for shutdown signal
	sig := <-shutdown
	log.Printf("\n⚠️  Received signal: %v. Shutting down gracefully...\n", sig)

	// Create context with timeout for graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	// Shutdown HTTP server
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	// Stop websocket sessions and feed subscribers
	cancel()
	requestFeed.Close()

	if gemini != nil {
		gemini.Close()
	}

	// Close database (this also stops embedded PostgreSQL)
	log.Println("🛑 Closing database connection...")
	if err := db.Close(); err != nil {
		log.Printf("Database close error: %v", err)
	}

	log.Println("✅ Shutdown complete")
}

// keepReportsLive feeds the shared aggregator behind the REST report endpoints.
// A failed load ends the subscription, so it is renewed after a pause.
func keepReportsLive(ctx context.Context, f *feed.Feed, agg *reporting.Aggregator) {
	for {
		failed := make(chan error, 1)
		unsubscribe := f.Subscribe(agg.Update, func(err error) { failed <- err })

		select {
		case <-ctx.Done():
			unsubscribe()
			return
		case err := <-failed:
			log.Printf("⚠️ Report feed failed, resubscribing in %s: %v", reportRetryDelay, err)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(reportRetryDelay):
		}
	}
}
