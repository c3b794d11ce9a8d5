package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/pep299/news-chat/internal/config"
	"github.com/pep299/news-chat/internal/handlers"
)

var (
	Version   string = "dev"
	Commit    string = "unknown"
	BuildTime string = "unknown"
)

func main() {
	var (
		showHelp    = flag.Bool("help", false, "Show help message")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showHelp {
		fmt.Printf("News Chat Server\n\n")
		fmt.Printf("Usage: %s [options]\n\n", os.Args[0])
		fmt.Printf("Options:\n")
		flag.PrintDefaults()
		fmt.Printf("\nEnvironment Variables:\n")
		fmt.Printf("  NEWS_API_KEY          newsapi.org key (or news-api-key.txt)\n")
		fmt.Printf("  GEMINI_API_KEY        Gemini API key (or gemini-api-key.txt)\n")
		fmt.Printf("  PORT                  Server port (default: 3084)\n")
		fmt.Printf("  HOST                  Server host (default: 0.0.0.0)\n")
		fmt.Printf("  NEWS_PROVIDER         newsapi or rss (default: newsapi)\n")
		fmt.Printf("  SESSION_STORE         memory, redis or cloud-storage (default: memory)\n")
		fmt.Printf("  SESSION_PRUNE_SCHEDULE Cron spec for session pruning (default: @every 10m)\n")
		os.Exit(0)
	}

	if *showVersion {
		fmt.Printf("News Chat Server\n")
		fmt.Printf("Version: %s\n", Version)
		fmt.Printf("Commit: %s\n", Commit)
		fmt.Printf("Build Time: %s\n", BuildTime)
		os.Exit(0)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if !cfg.HasNewsKey() && cfg.NewsProvider == config.ProviderNewsAPI {
		log.Println("⚠️ NEWS_API_KEY is not set. News search will report it until configured.")
	}
	if !cfg.HasGeminiKey() {
		log.Println("⚠️ GEMINI_API_KEY is not set. Summaries and chat are disabled.")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Create server
	server, err := handlers.NewServer(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}
	defer server.Close()

	httpServer := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      server.SetupRoutes(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Session pruning
	c := cron.New()
	_, err = c.AddFunc(cfg.SessionPruneSchedule, func() {
		removed, err := server.PruneSessions(ctx)
		if err != nil {
			log.Printf("❌ Session pruning failed: %v", err)
			return
		}
		if removed > 0 {
			log.Printf("🧹 Pruned %d sessions", removed)
		}
	})
	if err != nil {
		log.Fatalf("Invalid SESSION_PRUNE_SCHEDULE %q: %v", cfg.SessionPruneSchedule, err)
	}
	log.Printf("📅 Scheduled session pruning with cron: %s", cfg.SessionPruneSchedule)
	c.Start()

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start server
	go func() {
		log.Printf("🚀 News chat server: http://%s", cfg.Addr())
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	log.Println("🛑 Shutting down server...")

	// Cancel background tasks
	cancel()

	// Stop cron scheduler and wait for a running prune
	<-c.Stop().Done()

	// Shutdown HTTP server
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("✅ Server stopped")
}
