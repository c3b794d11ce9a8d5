package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/pep299/news-chat/internal/model"
)

const cloudStoragePrefix = "sessions/"

// CloudStorageStore keeps sessions as JSON objects in a Cloud Storage bucket.
// Objects carry no TTL of their own; expiry is UpdatedAt plus the store TTL.
type CloudStorageStore struct {
	client     *storage.Client
	bucketName string
	ttl        time.Duration
	prefix     string
	now        func() time.Time
}

// NewCloudStorageStore creates a new Cloud Storage session store
func NewCloudStorageStore(ctx context.Context, bucketName string, ttl time.Duration, opts ...option.ClientOption) (*CloudStorageStore, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating storage client: %w", err)
	}

	return &CloudStorageStore{
		client:     client,
		bucketName: bucketName,
		ttl:        ttl,
		prefix:     cloudStoragePrefix,
		now:        time.Now,
	}, nil
}

func (s *CloudStorageStore) objectName(id string) string {
	return s.prefix + id + ".json"
}

func (s *CloudStorageStore) expired(session *model.Session) bool {
	return s.now().After(session.UpdatedAt.Add(s.ttl))
}

// Get retrieves a session from Cloud Storage
func (s *CloudStorageStore) Get(ctx context.Context, id string) (*model.Session, error) {
	session, err := s.read(ctx, s.objectName(id))
	if err != nil {
		return nil, err
	}

	if s.expired(session) {
		if err := s.Delete(ctx, id); err != nil {
			log.Printf("Warning: failed to delete expired session %s: %v", id, err)
		}
		return nil, ErrNotFound
	}
	return session, nil
}

func (s *CloudStorageStore) read(ctx context.Context, objectName string) (*model.Session, error) {
	reader, err := s.client.Bucket(s.bucketName).Object(objectName).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("opening object reader: %w", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("reading object data: %w", err)
	}

	var session model.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("unmarshaling session: %w", err)
	}
	return &session, nil
}

// Save stores a session in Cloud Storage
func (s *CloudStorageStore) Save(ctx context.Context, session *model.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshaling session: %w", err)
	}

	writer := s.client.Bucket(s.bucketName).Object(s.objectName(session.ID)).NewWriter(ctx)
	writer.ContentType = "application/json"

	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return fmt.Errorf("writing object data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("closing object writer: %w", err)
	}
	return nil
}

// Delete removes a session from Cloud Storage
func (s *CloudStorageStore) Delete(ctx context.Context, id string) error {
	err := s.client.Bucket(s.bucketName).Object(s.objectName(id)).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("deleting object: %w", err)
	}
	return nil
}

// List returns live sessions, newest first
func (s *CloudStorageStore) List(ctx context.Context, limit int) ([]*model.Session, error) {
	live, _, err := s.scan(ctx)
	if err != nil {
		return nil, err
	}
	if limit = clampLimit(limit); len(live) > limit {
		live = live[:limit]
	}
	return live, nil
}

// Prune deletes expired session objects and the oldest beyond the list cap
func (s *CloudStorageStore) Prune(ctx context.Context) (int, error) {
	live, expired, err := s.scan(ctx)
	if err != nil {
		return 0, err
	}

	doomed := expired
	for _, session := range live[min(len(live), model.MaxListSessions):] {
		doomed = append(doomed, session.ID)
	}

	removed := 0
	for _, id := range doomed {
		if err := s.Delete(ctx, id); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// scan reads every session object and splits live sessions (newest first)
// from the ids of expired ones.
func (s *CloudStorageStore) scan(ctx context.Context) ([]*model.Session, []string, error) {
	it := s.client.Bucket(s.bucketName).Objects(ctx, &storage.Query{Prefix: s.prefix})

	var live []*model.Session
	var expired []string
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("listing objects: %w", err)
		}
		if !strings.HasSuffix(attrs.Name, ".json") {
			continue
		}

		session, err := s.read(ctx, attrs.Name)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		if s.expired(session) {
			expired = append(expired, session.ID)
			continue
		}
		live = append(live, session)
	}

	sortNewestFirst(live)
	return live, expired, nil
}

// Close closes the Cloud Storage client
func (s *CloudStorageStore) Close() error {
	return s.client.Close()
}
