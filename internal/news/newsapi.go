package news

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/pep299/news-chat/internal/metrics"
	"github.com/pep299/news-chat/internal/model"
)

const newsAPIUserAgent = "NewsChatBot/1.0 (https://github.com/local; contact@example.com)"

// NewsAPIClient searches the newsapi.org "everything" endpoint.
type NewsAPIClient struct {
	apiKey     string
	baseURL    string
	language   string
	httpClient *http.Client
	metrics    *metrics.Metrics
}

// NewNewsAPIClient creates a new newsapi.org client
func NewNewsAPIClient(apiKey, baseURL, language string, m *metrics.Metrics) *NewsAPIClient {
	return &NewsAPIClient{
		apiKey:   apiKey,
		baseURL:  baseURL,
		language: language,
		metrics:  m,
		httpClient: &http.Client{
			Timeout: Timeout,
		},
	}
}

type newsAPIResponse struct {
	Status   string           `json:"status"`
	Code     string           `json:"code"`
	Message  string           `json:"message"`
	Articles []newsAPIArticle `json:"articles"`
}

type newsAPIArticle struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	PublishedAt string `json:"publishedAt"`
	Source      struct {
		Name string `json:"name"`
	} `json:"source"`
}

// Search returns up to model.MaxArticles articles, newest first.
func (c *NewsAPIClient) Search(ctx context.Context, keyword string) ([]model.Article, error) {
	keyword, err := NormalizeKeyword(keyword)
	if err != nil {
		return nil, err
	}
	if c.apiKey == "" {
		return nil, model.NewError(model.ConfigurationMissing, msgMissingKey)
	}

	articles, err := c.search(ctx, keyword)
	c.metrics.ObserveUpstream("newsapi", err)
	return articles, err
}

func (c *NewsAPIClient) search(ctx context.Context, keyword string) ([]model.Article, error) {
	ctx, cancel := context.WithTimeout(ctx, Timeout)
	defer cancel()

	query := url.Values{}
	query.Set("q", keyword)
	query.Set("pageSize", fmt.Sprint(model.MaxArticles))
	query.Set("language", c.language)
	query.Set("sortBy", "publishedAt")
	query.Set("apiKey", c.apiKey)
	endpoint := c.baseURL + "/v2/everything?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, model.WrapError(model.TransportFailure, msgTransport, err)
	}
	req.Header.Set("User-Agent", newsAPIUserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, transportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(err)
	}

	var data newsAPIResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, model.WrapError(model.ParseFailure, msgParse, err)
	}

	if data.Status == "error" {
		message := data.Message
		if message == "" {
			message = msgUpstream
		}
		return nil, model.WrapError(model.UpstreamError, message, fmt.Errorf("status %d code %s", resp.StatusCode, data.Code))
	}

	return normalizeArticles(data.Articles), nil
}

func normalizeArticles(raw []newsAPIArticle) []model.Article {
	if len(raw) > model.MaxArticles {
		raw = raw[:model.MaxArticles]
	}
	articles := make([]model.Article, 0, len(raw))
	for _, a := range raw {
		articles = append(articles, model.Article{
			Title:       a.Title,
			Description: a.Description,
			URL:         a.URL,
			PublishedAt: datePart(a.PublishedAt),
			SourceName:  a.Source.Name,
		})
	}
	return articles
}

// datePart keeps the YYYY-MM-DD prefix of an ISO-8601 timestamp.
func datePart(publishedAt string) string {
	if len(publishedAt) > 10 {
		return publishedAt[:10]
	}
	return publishedAt
}
