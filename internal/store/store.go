package store

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/pep299/news-chat/internal/config"
	"github.com/pep299/news-chat/internal/model"
)

// Store persists chat sessions.
type Store interface {
	Get(ctx context.Context, id string) (*model.Session, error)
	Save(ctx context.Context, session *model.Session) error
	Delete(ctx context.Context, id string) error
	// List returns up to limit sessions, most recently updated first.
	List(ctx context.Context, limit int) ([]*model.Session, error)
	// Prune drops expired sessions and everything beyond model.MaxListSessions.
	// It returns how many sessions were removed.
	Prune(ctx context.Context) (int, error)
	Close() error
}

// ErrNotFound is returned when a session does not exist or has expired.
var ErrNotFound = errors.New("session not found")

// New creates the backend selected by cfg.SessionStore.
func New(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.SessionStore {
	case config.StoreMemory:
		return NewMemoryStore(cfg.SessionTTL()), nil
	case config.StoreRedis:
		s, err := NewRedisStore(ctx, cfg.RedisURL, cfg.SessionTTL())
		if err != nil {
			return nil, fmt.Errorf("creating redis store: %w", err)
		}
		return s, nil
	case config.StoreCloudStorage:
		s, err := NewCloudStorageStore(ctx, cfg.SessionBucket, cfg.SessionTTL())
		if err != nil {
			return nil, fmt.Errorf("creating cloud storage store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported session store: %s", cfg.SessionStore)
	}
}

// clampLimit maps a requested page size onto 1..model.MaxListSessions.
func clampLimit(limit int) int {
	if limit <= 0 || limit > model.MaxListSessions {
		return model.MaxListSessions
	}
	return limit
}

func sortNewestFirst(sessions []*model.Session) {
	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
	})
}
