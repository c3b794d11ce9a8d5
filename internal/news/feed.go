package news

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/pep299/news-chat/internal/extractor"
	"github.com/pep299/news-chat/internal/metrics"
	"github.com/pep299/news-chat/internal/model"
)

// FeedClient searches an RSS search feed such as Google News.
// It needs no credential.
type FeedClient struct {
	searchURL  string // contains one %s for the escaped keyword
	httpClient *http.Client
	userAgent  string
	metrics    *metrics.Metrics
}

// NewFeedClient creates a new RSS search client
func NewFeedClient(searchURL string, m *metrics.Metrics) *FeedClient {
	return &FeedClient{
		searchURL: searchURL,
		httpClient: &http.Client{
			Timeout: Timeout,
		},
		userAgent: newsAPIUserAgent,
		metrics:   m,
	}
}

// Search fetches the search feed and maps its items to articles.
func (c *FeedClient) Search(ctx context.Context, keyword string) ([]model.Article, error) {
	keyword, err := NormalizeKeyword(keyword)
	if err != nil {
		return nil, err
	}

	articles, err := c.fetch(ctx, keyword)
	c.metrics.ObserveUpstream("rss", err)
	return articles, err
}

func (c *FeedClient) fetch(ctx context.Context, keyword string) ([]model.Article, error) {
	ctx, cancel := context.WithTimeout(ctx, Timeout)
	defer cancel()

	feedURL := fmt.Sprintf(c.searchURL, url.QueryEscape(keyword))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, model.WrapError(model.TransportFailure, msgTransport, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, transportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, model.WrapError(model.UpstreamError, msgUpstream, fmt.Errorf("unexpected status code: %d", resp.StatusCode))
	}

	feed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		return nil, model.WrapError(model.ParseFailure, msgParse, err)
	}

	return itemsToArticles(feed.Items), nil
}

// itemsToArticles sorts items newest first and keeps model.MaxArticles of them.
func itemsToArticles(items []*gofeed.Item) []model.Article {
	sorted := make([]*gofeed.Item, 0, len(items))
	for _, item := range items {
		if item != nil {
			sorted = append(sorted, item)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return publishedTime(sorted[i]).After(publishedTime(sorted[j]))
	})
	if len(sorted) > model.MaxArticles {
		sorted = sorted[:model.MaxArticles]
	}

	articles := make([]model.Article, 0, len(sorted))
	for _, item := range sorted {
		title, source := splitSource(model.SafeText(item.Title))
		if item.Author != nil && item.Author.Name != "" {
			source = item.Author.Name
		}
		article := model.Article{
			Title:       title,
			Description: extractor.StripHTML(item.Description),
			URL:         item.Link,
			SourceName:  source,
		}
		if t := publishedTime(item); !t.IsZero() {
			article.PublishedAt = t.Format("2006-01-02")
		}
		articles = append(articles, article)
	}
	return articles
}

func publishedTime(item *gofeed.Item) time.Time {
	if item.PublishedParsed != nil {
		return *item.PublishedParsed
	}
	if item.UpdatedParsed != nil {
		return *item.UpdatedParsed
	}
	return time.Time{}
}

// splitSource splits "Headline - Publisher" as used by news search feeds.
func splitSource(title string) (string, string) {
	idx := strings.LastIndex(title, " - ")
	if idx <= 0 {
		return title, ""
	}
	return strings.TrimSpace(title[:idx]), strings.TrimSpace(title[idx+3:])
}
