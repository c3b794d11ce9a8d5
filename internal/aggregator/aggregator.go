package aggregator

import (
	"context"
	"fmt"
	"log"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/pep299/news-chat/internal/model"
)

// TextExtractor returns the visible text of a page, or "" when it cannot.
type TextExtractor interface {
	Extract(ctx context.Context, rawURL string) string
}

// Aggregator merges article metadata with scraped page text.
type Aggregator struct {
	extractor TextExtractor
}

// New creates a new Aggregator
func New(extractor TextExtractor) *Aggregator {
	return &Aggregator{extractor: extractor}
}

// Aggregate extracts every article concurrently and returns one document per
// article in input order. A failed extraction falls back to the description.
func (a *Aggregator) Aggregate(ctx context.Context, keyword string, articles []model.Article) []model.ExtractedDocument {
	articles = model.CapArticles(articles)
	docs := make([]model.ExtractedDocument, len(articles))
	scraped := make([]bool, len(articles))

	var g errgroup.Group
	for i, article := range articles {
		g.Go(func() error {
			docs[i], scraped[i] = a.document(ctx, article)
			return nil
		})
	}
	_ = g.Wait()

	pages := 0
	for _, ok := range scraped {
		if ok {
			pages++
		}
	}
	log.Printf("aggregated %q: %d articles, %d pages extracted", keyword, len(docs), pages)

	return docs
}

// document merges one article; the bool reports whether page text was found.
func (a *Aggregator) document(ctx context.Context, article model.Article) (model.ExtractedDocument, bool) {
	if article.URL == "" {
		return model.ExtractedDocument{
			Title: article.Title,
			Text:  model.Truncate(model.SafeText(article.Description), model.MaxDocumentChars),
		}, false
	}

	extracted := a.extractor.Extract(ctx, article.URL)
	merged := model.SafeText(strings.Join([]string{article.Title, article.Description, extracted}, "\n"))
	return model.ExtractedDocument{
		Title: article.Title,
		URL:   article.URL,
		Text:  model.Truncate(merged, model.MaxDocumentChars),
	}, extracted != ""
}

// BuildContext renders documents as the numbered article bundle fed to the model.
func BuildContext(docs []model.ExtractedDocument) string {
	parts := make([]string, len(docs))
	for i, d := range docs {
		parts[i] = fmt.Sprintf("#%d %s\nURL: %s\nCONTENT:\n%s\n", i+1, d.Title, d.URL, d.Text)
	}
	return strings.Join(parts, "\n---\n")
}
