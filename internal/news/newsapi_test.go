package news

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pep299/news-chat/internal/model"
)

func newsAPIArticles(n int) []map[string]interface{} {
	articles := make([]map[string]interface{}, n)
	for i := range articles {
		articles[i] = map[string]interface{}{
			"title":       fmt.Sprintf("기사 %d", i),
			"description": fmt.Sprintf("설명 %d", i),
			"url":         fmt.Sprintf("https://news.example.com/%d", i),
			"publishedAt": "2026-01-29T14:03:12Z",
			"source":      map[string]string{"name": "연합뉴스"},
		}
	}
	return articles
}

func TestNewsAPISearchSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/everything", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "반도체", q.Get("q"))
		assert.Equal(t, "10", q.Get("pageSize"))
		assert.Equal(t, "ko", q.Get("language"))
		assert.Equal(t, "publishedAt", q.Get("sortBy"))
		assert.Equal(t, "test-key", q.Get("apiKey"))
		assert.Contains(t, r.Header.Get("User-Agent"), "NewsChatBot")

		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":   "ok",
			"articles": newsAPIArticles(3),
		})
	}))
	defer server.Close()

	client := NewNewsAPIClient("test-key", server.URL, "ko", nil)
	articles, err := client.Search(context.Background(), "  반도체 ")
	require.NoError(t, err)
	require.Len(t, articles, 3)

	assert.Equal(t, model.Article{
		Title:       "기사 0",
		Description: "설명 0",
		URL:         "https://news.example.com/0",
		PublishedAt: "2026-01-29",
		SourceName:  "연합뉴스",
	}, articles[0])
}

func TestNewsAPISearchCapsResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":   "ok",
			"articles": newsAPIArticles(25),
		})
	}))
	defer server.Close()

	articles, err := NewNewsAPIClient("k", server.URL, "ko", nil).Search(context.Background(), "경제")
	require.NoError(t, err)
	assert.Len(t, articles, model.MaxArticles)
	assert.Equal(t, "기사 9", articles[9].Title)
}

func TestNewsAPISearchTruncatesKeyword(t *testing.T) {
	var got string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.Query().Get("q")
		json.NewEncoder(w).Encode(map[string]interface{}{"status": "ok"})
	}))
	defer server.Close()

	_, err := NewNewsAPIClient("k", server.URL, "ko", nil).Search(context.Background(), strings.Repeat("가", 300))
	require.NoError(t, err)
	assert.Equal(t, model.MaxKeywordChars, model.RuneLen(got))
}

func TestNewsAPISearchFailures(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"status":"error","code":"apiKeyInvalid","message":"Your API key is invalid."}`))
	}))
	defer upstream.Close()

	upstreamNoMessage := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"error"}`))
	}))
	defer upstreamNoMessage.Close()

	garbage := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>gateway</html>`))
	}))
	defer garbage.Close()

	closed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	closedURL := closed.URL
	closed.Close()

	tests := []struct {
		name    string
		baseURL string
		kind    model.Kind
		message string
	}{
		{"api error", upstream.URL, model.UpstreamError, "Your API key is invalid."},
		{"api error without message", upstreamNoMessage.URL, model.UpstreamError, msgUpstream},
		{"unparseable body", garbage.URL, model.ParseFailure, msgParse},
		{"connection refused", closedURL, model.TransportFailure, msgTransport},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewNewsAPIClient("k", tt.baseURL, "ko", nil).Search(context.Background(), "반도체")
			require.Error(t, err)
			assert.Equal(t, tt.kind, model.KindOf(err))
			assert.Equal(t, tt.message, model.MessageOf(err))
		})
	}
}

func TestNewsAPISearchTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client := NewNewsAPIClient("k", server.URL, "ko", nil)
	client.httpClient.Timeout = 50 * time.Millisecond

	_, err := client.Search(context.Background(), "반도체")
	require.Error(t, err)
	assert.Equal(t, model.TransportFailure, model.KindOf(err))
	assert.Equal(t, msgTimeout, model.MessageOf(err))
}

func TestNewsAPISearchWithoutKeyMakesNoRequest(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer server.Close()

	_, err := NewNewsAPIClient("", server.URL, "ko", nil).Search(context.Background(), "반도체")
	require.Error(t, err)
	assert.Equal(t, model.ConfigurationMissing, model.KindOf(err))
	assert.Equal(t, msgMissingKey, model.MessageOf(err))
	assert.Zero(t, hits.Load())
}

func TestNewsAPISearchEmptyKeyword(t *testing.T) {
	_, err := NewNewsAPIClient("k", "http://unused", "ko", nil).Search(context.Background(), "   ")
	require.Error(t, err)
	assert.Equal(t, model.ValidationFailure, model.KindOf(err))
	assert.Equal(t, msgEmptyKeyword, model.MessageOf(err))
}

func TestDatePart(t *testing.T) {
	assert.Equal(t, "2026-01-29", datePart("2026-01-29T14:03:12Z"))
	assert.Equal(t, "2026-01-29", datePart("2026-01-29"))
	assert.Equal(t, "", datePart(""))
}
