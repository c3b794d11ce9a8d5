package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pep299/news-chat/internal/aggregator"
	"github.com/pep299/news-chat/internal/gemini"
	"github.com/pep299/news-chat/internal/model"
	"github.com/pep299/news-chat/internal/store"
)

type fakeSearcher struct {
	articles []model.Article
	err      error
}

func (f *fakeSearcher) Search(ctx context.Context, keyword string) ([]model.Article, error) {
	return f.articles, f.err
}

type fakeExtractor struct{}

func (fakeExtractor) Extract(ctx context.Context, rawURL string) string {
	return "본문 " + rawURL
}

type fakeGenerator struct {
	mu       sync.Mutex
	noKey    bool
	text     string
	err      error
	requests []gemini.GenerateRequest
	started  chan struct{}
	release  chan struct{}

	// checkCtx reports a cancelled context after release
	checkCtx bool
}

func (f *fakeGenerator) HasKey() bool { return !f.noKey }

func (f *fakeGenerator) Generate(ctx context.Context, req gemini.GenerateRequest) (string, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}
	if f.checkCtx {
		if err := ctx.Err(); err != nil {
			return "", err
		}
	}
	return f.text, f.err
}

func (f *fakeGenerator) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *fakeGenerator) lastPrompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1].UserPrompt
}

// recordingStore remembers the state of every saved session.
type recordingStore struct {
	*store.MemoryStore
	mu     sync.Mutex
	states []model.SessionState
}

func (r *recordingStore) Save(ctx context.Context, session *model.Session) error {
	r.mu.Lock()
	r.states = append(r.states, session.State)
	r.mu.Unlock()
	return r.MemoryStore.Save(ctx, session)
}

func sampleArticles() []model.Article {
	return []model.Article{
		{Title: "반도체 수출 증가", Description: "3개월 연속 증가", URL: "https://news.example.com/1", PublishedAt: "2026-01-29", SourceName: "연합뉴스"},
		{Title: "HBM 경쟁", Description: "메모리 경쟁", URL: "https://news.example.com/2", PublishedAt: "2026-01-28", SourceName: "한국경제"},
	}
}

func newTestService(searcher *fakeSearcher, gen *fakeGenerator) (*Service, *recordingStore) {
	st := &recordingStore{MemoryStore: store.NewMemoryStore(time.Hour)}
	svc := NewService(searcher, aggregator.New(fakeExtractor{}), gen, st)
	return svc, st
}

func TestSummarize(t *testing.T) {
	gen := &fakeGenerator{text: "요약 결과"}
	svc, _ := newTestService(&fakeSearcher{}, gen)

	text, err := svc.Summarize(context.Background(), "  반도체\n", sampleArticles(), "gemini-2.5-pro")
	require.NoError(t, err)
	assert.Equal(t, "요약 결과", text)

	require.Equal(t, 1, gen.calls())
	req := gen.requests[0]
	assert.Equal(t, summarizerInstruction, req.SystemInstruction)
	assert.Equal(t, "gemini-2.5-pro", req.Model)
	assert.True(t, strings.HasPrefix(req.UserPrompt, "키워드: 반도체\n\n요청:\n"))
	assert.Contains(t, req.UserPrompt, "자료(기사들):\n#1 반도체 수출 증가\nURL: https://news.example.com/1\nCONTENT:\n")
	assert.Contains(t, req.UserPrompt, "\n---\n#2 HBM 경쟁")
}

func TestSummarizeValidation(t *testing.T) {
	gen := &fakeGenerator{}
	svc, _ := newTestService(&fakeSearcher{}, gen)

	_, err := svc.Summarize(context.Background(), " ", sampleArticles(), "")
	assert.Equal(t, msgSummarizeInput, model.MessageOf(err))

	_, err = svc.Summarize(context.Background(), "반도체", nil, "")
	assert.Equal(t, model.ValidationFailure, model.KindOf(err))
	assert.Zero(t, gen.calls())
}

func TestWithoutGenerationKeyNothingIsCalled(t *testing.T) {
	gen := &fakeGenerator{noKey: true}
	svc, _ := newTestService(&fakeSearcher{}, gen)

	_, err := svc.Summarize(context.Background(), "반도체", sampleArticles(), "")
	assert.Equal(t, model.ConfigurationMissing, model.KindOf(err))
	assert.Equal(t, gemini.MissingKeyMessage, model.MessageOf(err))

	_, err = svc.Chat(context.Background(), ChatRequest{Keyword: "반도체", Articles: sampleArticles(), UserMessage: "질문"})
	assert.Equal(t, model.ConfigurationMissing, model.KindOf(err))
	assert.Zero(t, gen.calls())
}

func TestChatWithoutArticlesIsRejected(t *testing.T) {
	gen := &fakeGenerator{text: "답변"}
	svc, _ := newTestService(&fakeSearcher{}, gen)

	_, err := svc.Chat(context.Background(), ChatRequest{Keyword: "반도체", UserMessage: "핵심 쟁점은?"})
	assert.Equal(t, model.ValidationFailure, model.KindOf(err))
	assert.Equal(t, msgNoArticles, model.MessageOf(err))

	_, err = svc.Chat(context.Background(), ChatRequest{Articles: sampleArticles(), UserMessage: " \n "})
	assert.Equal(t, msgChatInput, model.MessageOf(err))
	assert.Zero(t, gen.calls())
}

func TestChatPrompt(t *testing.T) {
	gen := &fakeGenerator{text: "답변"}
	svc, _ := newTestService(&fakeSearcher{}, gen)

	history := make([]model.ChatTurn, 30)
	for i := range history {
		role := model.RoleUser
		if i%2 == 1 {
			role = model.RoleAssistant
		}
		history[i] = model.ChatTurn{Role: role, Text: fmt.Sprintf("메시지%02d", i)}
	}

	answer, err := svc.Chat(context.Background(), ChatRequest{
		Keyword:     "반도체",
		Articles:    sampleArticles(),
		History:     history,
		UserMessage: "투자자 관점 리스크는?",
	})
	require.NoError(t, err)
	assert.Equal(t, "답변", answer)

	req := gen.requests[0]
	assert.Equal(t, chatInstruction, req.SystemInstruction)
	prompt := req.UserPrompt
	assert.Contains(t, prompt, "#1 반도체 수출 증가 (연합뉴스 2026-01-29)\n3개월 연속 증가\nURL:https://news.example.com/1\n")
	assert.Contains(t, prompt, "USER: 메시지10\nASSISTANT: 메시지11")
	assert.Contains(t, prompt, "ASSISTANT: 메시지29\n\n사용자 질문:\n투자자 관점 리스크는?")
	assert.NotContains(t, prompt, "메시지09")
	assert.Equal(t, model.MaxHistoryTurns, strings.Count(prompt, "메시지"))
}

func TestStartSession(t *testing.T) {
	gen := &fakeGenerator{text: "요약"}
	svc, st := newTestService(&fakeSearcher{articles: sampleArticles()}, gen)
	svc.newID = func() string { return "session-1" }

	session, err := svc.StartSession(context.Background(), " 반도체 ", "")
	require.NoError(t, err)
	assert.Equal(t, "session-1", session.ID)
	assert.Equal(t, "반도체", session.Keyword)
	assert.Equal(t, "요약", session.Summary)
	assert.Equal(t, model.StateDone, session.State)
	assert.Equal(t, []model.SessionState{model.StateExtracting, model.StateGenerating, model.StateDone}, st.states)

	stored, err := svc.GetSession(context.Background(), "session-1")
	require.NoError(t, err)
	assert.Equal(t, "요약", stored.Summary)
	assert.Len(t, stored.Articles, 2)
}

func TestStartSessionSearchFailures(t *testing.T) {
	gen := &fakeGenerator{text: "요약"}

	svc, st := newTestService(&fakeSearcher{}, gen)
	_, err := svc.StartSession(context.Background(), "없는키워드", "")
	assert.Equal(t, model.UpstreamError, model.KindOf(err))
	assert.Equal(t, msgNoResults, model.MessageOf(err))
	assert.Empty(t, st.states)

	upstream := model.NewError(model.TransportFailure, "뉴스 서버 연결 실패")
	svc, st = newTestService(&fakeSearcher{err: upstream}, gen)
	_, err = svc.StartSession(context.Background(), "반도체", "")
	assert.ErrorIs(t, err, upstream)
	assert.Empty(t, st.states)
	assert.Zero(t, gen.calls())
}

func TestStartSessionGenerationFailureKeepsSession(t *testing.T) {
	gen := &fakeGenerator{err: model.NewError(model.UpstreamError, "Gemini: quota")}
	svc, _ := newTestService(&fakeSearcher{articles: sampleArticles()}, gen)

	session, err := svc.StartSession(context.Background(), "반도체", "")
	require.Error(t, err)
	require.NotNil(t, session)
	assert.Equal(t, "Gemini: quota", model.MessageOf(err))
	assert.Equal(t, model.StateFailed, session.State)
	assert.Empty(t, session.Summary)

	stored, err := svc.GetSession(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StateFailed, stored.State)
}

func TestSendMessage(t *testing.T) {
	gen := &fakeGenerator{text: "요약"}
	svc, _ := newTestService(&fakeSearcher{articles: sampleArticles()}, gen)
	session, err := svc.StartSession(context.Background(), "반도체", "")
	require.NoError(t, err)

	gen.text = "답변입니다"
	updated, answer, err := svc.SendMessage(context.Background(), session.ID, "핵심 쟁점만 3줄로", "")
	require.NoError(t, err)
	assert.Equal(t, "답변입니다", answer)
	require.Len(t, updated.Chat, 2)
	assert.Equal(t, model.RoleUser, updated.Chat[0].Role)
	assert.Equal(t, model.RoleAssistant, updated.Chat[1].Role)
	assert.Contains(t, gen.lastPrompt(), "대화 기록:\n\n\n사용자 질문:\n핵심 쟁점만 3줄로")

	_, _, err = svc.SendMessage(context.Background(), session.ID, "다른 관점은?", "")
	require.NoError(t, err)
	assert.Contains(t, gen.lastPrompt(), "USER: 핵심 쟁점만 3줄로\nASSISTANT: 답변입니다\n\n사용자 질문:\n다른 관점은?")
}

func TestSendMessageFailureKeepsUserTurn(t *testing.T) {
	gen := &fakeGenerator{text: "요약"}
	svc, _ := newTestService(&fakeSearcher{articles: sampleArticles()}, gen)
	session, err := svc.StartSession(context.Background(), "반도체", "")
	require.NoError(t, err)

	gen.err = errors.New("boom")
	_, _, err = svc.SendMessage(context.Background(), session.ID, "질문", "")
	require.Error(t, err)

	stored, err := svc.GetSession(context.Background(), session.ID)
	require.NoError(t, err)
	require.Len(t, stored.Chat, 1)
	assert.Equal(t, "질문", stored.Chat[0].Text)
}

func TestSessionNotFound(t *testing.T) {
	svc, _ := newTestService(&fakeSearcher{}, &fakeGenerator{})

	_, _, err := svc.SendMessage(context.Background(), "missing", "질문", "")
	assert.Equal(t, model.NotFound, model.KindOf(err))
	assert.Equal(t, msgSessionMissing, model.MessageOf(err))

	_, err = svc.Resummarize(context.Background(), "missing", "")
	assert.Equal(t, model.NotFound, model.KindOf(err))

	_, err = svc.GetSession(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestResummarizeSharesConcurrentCalls(t *testing.T) {
	gen := &fakeGenerator{text: "첫 요약"}
	svc, _ := newTestService(&fakeSearcher{articles: sampleArticles()}, gen)
	session, err := svc.StartSession(context.Background(), "반도체", "")
	require.NoError(t, err)

	gen.text = "새 요약"
	gen.started = make(chan struct{}, 2)
	gen.release = make(chan struct{})

	var wg sync.WaitGroup
	results := make([]*model.Session, 2)
	errs := make([]error, 2)
	run := func(i int) {
		defer wg.Done()
		results[i], errs[i] = svc.Resummarize(context.Background(), session.ID, "")
	}

	wg.Add(1)
	go run(0)
	<-gen.started

	wg.Add(1)
	go run(1)
	// let the second caller join the in-flight call
	time.Sleep(50 * time.Millisecond)
	close(gen.release)
	wg.Wait()

	assert.Equal(t, 2, gen.calls())
	for i := range results {
		require.NoError(t, errs[i])
		assert.Equal(t, "새 요약", results[i].Summary)
	}
	assert.NotSame(t, results[0], results[1])
}

func TestResummarizeSurvivesFirstCallerCancel(t *testing.T) {
	gen := &fakeGenerator{text: "첫 요약"}
	svc, _ := newTestService(&fakeSearcher{articles: sampleArticles()}, gen)
	session, err := svc.StartSession(context.Background(), "반도체", "")
	require.NoError(t, err)

	gen.text = "새 요약"
	gen.checkCtx = true
	gen.started = make(chan struct{}, 2)
	gen.release = make(chan struct{})

	firstCtx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	var joined *model.Session
	var joinedErr error

	wg.Add(2)
	go func() {
		defer wg.Done()
		svc.Resummarize(firstCtx, session.ID, "")
	}()
	<-gen.started
	go func() {
		defer wg.Done()
		joined, joinedErr = svc.Resummarize(context.Background(), session.ID, "")
	}()
	time.Sleep(50 * time.Millisecond)
	cancel()
	close(gen.release)
	wg.Wait()

	require.NoError(t, joinedErr)
	assert.Equal(t, "새 요약", joined.Summary)
	assert.Equal(t, model.StateDone, joined.State)
}

func TestSessionLocksAreStriped(t *testing.T) {
	svc, _ := newTestService(&fakeSearcher{}, &fakeGenerator{})

	assert.Same(t, svc.lockFor("session-a"), svc.lockFor("session-a"))
	distinct := map[*sync.Mutex]bool{}
	for i := 0; i < 1000; i++ {
		distinct[svc.lockFor(fmt.Sprintf("session-%d", i))] = true
	}
	assert.LessOrEqual(t, len(distinct), lockStripes)

	unlock := svc.lock("session-a")
	done := make(chan struct{})
	go func() {
		svc.lock("session-a")()
		close(done)
	}()
	select {
	case <-done:
		t.Fatal("second lock on the same session did not wait")
	case <-time.After(20 * time.Millisecond):
	}
	unlock()
	<-done
}

func TestListAndDeleteSessions(t *testing.T) {
	gen := &fakeGenerator{text: "요약"}
	svc, _ := newTestService(&fakeSearcher{articles: sampleArticles()}, gen)

	first, err := svc.StartSession(context.Background(), "반도체", "")
	require.NoError(t, err)
	second, err := svc.StartSession(context.Background(), "환율", "")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	sessions, err := svc.ListSessions(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, second.ID, sessions[0].ID)

	require.NoError(t, svc.DeleteSession(context.Background(), first.ID))
	sessions, err = svc.ListSessions(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, sessions, 1)

	pruned, err := svc.PruneSessions(context.Background())
	require.NoError(t, err)
	assert.Zero(t, pruned)
}
