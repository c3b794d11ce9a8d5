package newschat

import (
	"context"
	"log"
	"net/http"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"

	"github.com/pep299/news-chat/internal/config"
	"github.com/pep299/news-chat/internal/handlers"
)

var (
	initOnce sync.Once
	router   http.Handler
	initErr  error
)

func init() {
	functions.HTTP("NewsChat", NewsChat)
}

// NewsChat serves the full API from a single Cloud Function.
// The server is built on the first request and reused by the instance.
func NewsChat(w http.ResponseWriter, r *http.Request) {
	initOnce.Do(func() {
		cfg, err := config.Load()
		if err != nil {
			initErr = err
			return
		}
		server, err := handlers.NewServer(context.Background(), cfg)
		if err != nil {
			initErr = err
			return
		}
		router = server.SetupRoutes()
		log.Printf("✅ Registered NewsChat (store: %s, provider: %s)", cfg.SessionStore, cfg.NewsProvider)
	})
	if initErr != nil {
		log.Printf("❌ Failed to initialize: %v", initErr)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	router.ServeHTTP(w, r)
}
