package model

// MaxArticles is the most articles a single search may carry.
const MaxArticles = 10

// MaxDocumentChars caps the merged text of one ExtractedDocument.
const MaxDocumentChars = 8000

// Article is one normalized news search hit.
type Article struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	PublishedAt string `json:"publishedAt"` // YYYY-MM-DD or empty
	SourceName  string `json:"sourceName"`
}

// ExtractedDocument is an article merged with whatever page text could be scraped.
type ExtractedDocument struct {
	Title string `json:"title"`
	URL   string `json:"url"`
	Text  string `json:"text"`
}

// CapArticles returns at most MaxArticles articles, keeping order.
func CapArticles(articles []Article) []Article {
	if len(articles) > MaxArticles {
		return articles[:MaxArticles]
	}
	return articles
}
