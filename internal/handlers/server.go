package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/pep299/news-chat/internal/aggregator"
	"github.com/pep299/news-chat/internal/chat"
	"github.com/pep299/news-chat/internal/config"
	"github.com/pep299/news-chat/internal/extractor"
	"github.com/pep299/news-chat/internal/gemini"
	"github.com/pep299/news-chat/internal/lotto"
	"github.com/pep299/news-chat/internal/metrics"
	"github.com/pep299/news-chat/internal/news"
	"github.com/pep299/news-chat/internal/store"
)

// maxBodyBytes limits JSON request bodies.
const maxBodyBytes = 1 << 20

// Server holds the HTTP server and its dependencies
type Server struct {
	config       *config.Config
	service      *chat.Service
	geminiClient *gemini.Client
	picker       *lotto.Picker
	store        store.Store
	metrics      *metrics.Metrics
	limiter      *clientLimiter
}

// NewServer creates a new HTTP server with the session store selected by cfg
func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	st, err := store.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating session store: %w", err)
	}
	return newServer(cfg, st, prometheus.NewRegistry()), nil
}

func newServer(cfg *config.Config, st store.Store, reg *prometheus.Registry) *Server {
	m := metrics.New(reg)

	ext := extractor.New(
		extractor.WithCache(cfg.ExtractCacheSize, cfg.ExtractCacheTTL()),
		extractor.WithMetrics(m),
	)
	geminiClient := gemini.NewClient(cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiBaseURL, m)

	return &Server{
		config:       cfg,
		service:      chat.NewService(newSearcher(cfg, m), aggregator.New(ext), geminiClient, st),
		geminiClient: geminiClient,
		picker:       lotto.NewPicker(nil),
		store:        st,
		metrics:      m,
		limiter:      newClientLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
	}
}

func newSearcher(cfg *config.Config, m *metrics.Metrics) news.Searcher {
	if cfg.NewsProvider == config.ProviderRSS {
		return news.NewFeedClient(cfg.NewsRSSSearchURL, m)
	}
	return news.NewNewsAPIClient(cfg.NewsAPIKey, cfg.NewsAPIBaseURL, cfg.NewsLanguage, m)
}

// Service exposes the chat service to the command line and scheduler.
func (s *Server) Service() *chat.Service {
	return s.service
}

// PruneSessions drops expired sessions; it is run on a schedule.
func (s *Server) PruneSessions(ctx context.Context) (int, error) {
	return s.service.PruneSessions(ctx)
}

// Close releases the session store
func (s *Server) Close() error {
	return s.store.Close()
}

// SetupRoutes configures HTTP routes
func (s *Server) SetupRoutes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.corsMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.metricsMiddleware)

	// Preflight for every path
	r.Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(s.rateLimitMiddleware)

	api.HandleFunc("/health", s.healthHandler).Methods(http.MethodGet)
	api.HandleFunc("/test-gemini", s.testGeminiHandler).Methods(http.MethodGet)

	// Stateless news chat
	api.HandleFunc("/news", s.newsHandler).Methods(http.MethodGet)
	api.HandleFunc("/summarize", s.summarizeHandler).Methods(http.MethodPost)
	api.HandleFunc("/chat", s.chatHandler).Methods(http.MethodPost)

	// Stored sessions
	api.HandleFunc("/sessions", s.createSessionHandler).Methods(http.MethodPost)
	api.HandleFunc("/sessions", s.listSessionsHandler).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}", s.getSessionHandler).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}", s.deleteSessionHandler).Methods(http.MethodDelete)
	api.HandleFunc("/sessions/{id}/summarize", s.resummarizeHandler).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/chat", s.sessionChatHandler).Methods(http.MethodPost)

	api.HandleFunc("/lotto", s.lottoHandler).Methods(http.MethodPost)

	return r
}
