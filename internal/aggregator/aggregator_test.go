package aggregator

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pep299/news-chat/internal/extractor"
	"github.com/pep299/news-chat/internal/model"
)

type fakeExtractor struct {
	mu    sync.Mutex
	pages map[string]string
	delay map[string]time.Duration
	calls []string
}

func (f *fakeExtractor) Extract(ctx context.Context, rawURL string) string {
	f.mu.Lock()
	f.calls = append(f.calls, rawURL)
	delay := f.delay[rawURL]
	text := f.pages[rawURL]
	f.mu.Unlock()

	time.Sleep(delay)
	return text
}

func TestAggregatePreservesOrderAndCount(t *testing.T) {
	fake := &fakeExtractor{
		pages: map[string]string{
			"https://a.example.com": "본문 A",
			"https://b.example.com": "본문 B",
			"https://c.example.com": "본문 C",
		},
		// the first article finishes last
		delay: map[string]time.Duration{"https://a.example.com": 30 * time.Millisecond},
	}
	articles := []model.Article{
		{Title: "A", Description: "설명 A", URL: "https://a.example.com"},
		{Title: "B", Description: "설명 B", URL: "https://b.example.com"},
		{Title: "C", Description: "설명 C", URL: "https://c.example.com"},
	}

	docs := New(fake).Aggregate(context.Background(), "키워드", articles)

	require.Len(t, docs, 3)
	assert.Equal(t, model.ExtractedDocument{Title: "A", URL: "https://a.example.com", Text: "A 설명 A 본문 A"}, docs[0])
	assert.Equal(t, "B 설명 B 본문 B", docs[1].Text)
	assert.Equal(t, "C 설명 C 본문 C", docs[2].Text)
}

func TestAggregateArticleWithoutURL(t *testing.T) {
	fake := &fakeExtractor{}
	docs := New(fake).Aggregate(context.Background(), "키워드", []model.Article{
		{Title: "제목", Description: "  요약\n문장  "},
	})

	require.Len(t, docs, 1)
	assert.Equal(t, "", docs[0].URL)
	assert.Equal(t, "요약 문장", docs[0].Text)
	assert.Empty(t, fake.calls)
}

func TestAggregateCapsDescriptionWithoutURL(t *testing.T) {
	fake := &fakeExtractor{}
	docs := New(fake).Aggregate(context.Background(), "키워드", []model.Article{
		{Title: "제목", Description: strings.Repeat("가", 12000)},
	})

	require.Len(t, docs, 1)
	assert.Equal(t, model.MaxDocumentChars, model.RuneLen(docs[0].Text))
	assert.Empty(t, fake.calls)
}

func TestAggregateCapsInputAndText(t *testing.T) {
	long := strings.Repeat("가", 20000)
	fake := &fakeExtractor{pages: map[string]string{}}
	articles := make([]model.Article, 14)
	for i := range articles {
		u := fmt.Sprintf("https://news.example.com/%d", i)
		articles[i] = model.Article{Title: fmt.Sprintf("기사 %d", i), URL: u}
		fake.pages[u] = long
	}

	docs := New(fake).Aggregate(context.Background(), "키워드", articles)

	require.Len(t, docs, model.MaxArticles)
	assert.Len(t, fake.calls, model.MaxArticles)
	for i, d := range docs {
		assert.Equal(t, fmt.Sprintf("기사 %d", i), d.Title)
		assert.Equal(t, model.MaxDocumentChars, model.RuneLen(d.Text))
	}
}

func TestAggregateUnreachableArticlesFallBackToDescriptions(t *testing.T) {
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	base := down.URL
	down.Close()

	articles := []model.Article{
		{Title: "반도체 수출 증가", Description: "3개월 연속 증가", URL: base + "/1"},
		{Title: "HBM 경쟁", Description: "메모리 업계 경쟁 심화", URL: base + "/2"},
		{Title: "장비 투자", Description: "설비 투자 확대", URL: base + "/3"},
	}

	docs := New(extractor.New()).Aggregate(context.Background(), "반도체", articles)

	require.Len(t, docs, 3)
	assert.Equal(t, "반도체 수출 증가 3개월 연속 증가", docs[0].Text)
	assert.Equal(t, "HBM 경쟁 메모리 업계 경쟁 심화", docs[1].Text)
	assert.Equal(t, "장비 투자 설비 투자 확대", docs[2].Text)
}

func TestBuildContext(t *testing.T) {
	docs := []model.ExtractedDocument{
		{Title: "첫 기사", URL: "https://a.example.com", Text: "내용1"},
		{Title: "둘째 기사", URL: "", Text: "내용2"},
	}

	expected := "#1 첫 기사\nURL: https://a.example.com\nCONTENT:\n내용1\n" +
		"\n---\n" +
		"#2 둘째 기사\nURL: \nCONTENT:\n내용2\n"
	assert.Equal(t, expected, BuildContext(docs))
	assert.Equal(t, "", BuildContext(nil))
}
