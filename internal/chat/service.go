package chat

import (
	"context"
	"errors"
	"hash/fnv"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/pep299/news-chat/internal/aggregator"
	"github.com/pep299/news-chat/internal/gemini"
	"github.com/pep299/news-chat/internal/model"
	"github.com/pep299/news-chat/internal/news"
	"github.com/pep299/news-chat/internal/store"
)

const (
	msgSummarizeInput = "keyword/articles가 필요해요."
	msgChatInput      = "userMessage가 필요해요."
	msgNoArticles     = "먼저 키워드로 뉴스를 검색해 주세요."
	msgNoResults      = "뉴스를 찾지 못했어요."
	msgSessionMissing = "세션을 찾을 수 없어요."
	msgStoreFailure   = "세션 저장소 오류"
)

// lockStripes bounds the per-session mutexes; ids hash onto a fixed set.
const lockStripes = 64

// Generator produces text for a prompt. *gemini.Client implements it.
type Generator interface {
	Generate(ctx context.Context, req gemini.GenerateRequest) (string, error)
	HasKey() bool
}

// Aggregator merges articles with their page text.
type Aggregator interface {
	Aggregate(ctx context.Context, keyword string, articles []model.Article) []model.ExtractedDocument
}

// ChatRequest is one stateless chat call.
type ChatRequest struct {
	Keyword     string
	Articles    []model.Article
	History     []model.ChatTurn
	UserMessage string
	Model       string
}

// Service runs search, summary and chat, statelessly or over stored sessions.
type Service struct {
	searcher   news.Searcher
	aggregator Aggregator
	generator  Generator
	store      store.Store

	flight singleflight.Group
	locks  [lockStripes]sync.Mutex
	newID  func() string
}

// NewService creates a new chat service
func NewService(searcher news.Searcher, agg Aggregator, gen Generator, st store.Store) *Service {
	return &Service{
		searcher:   searcher,
		aggregator: agg,
		generator:  gen,
		store:      st,
		newID:      uuid.NewString,
	}
}

// Search finds articles for keyword.
func (s *Service) Search(ctx context.Context, keyword string) ([]model.Article, error) {
	return s.searcher.Search(ctx, keyword)
}

// Summarize extracts the articles and asks the model for a structured summary.
func (s *Service) Summarize(ctx context.Context, keyword string, articles []model.Article, modelName string) (string, error) {
	keyword = model.Truncate(model.SafeText(keyword), model.MaxKeywordChars)
	articles = model.CapArticles(articles)
	if keyword == "" || len(articles) == 0 {
		return "", model.NewError(model.ValidationFailure, msgSummarizeInput)
	}
	if !s.generator.HasKey() {
		return "", model.NewError(model.ConfigurationMissing, gemini.MissingKeyMessage)
	}

	docs := s.aggregator.Aggregate(ctx, keyword, articles)
	return s.generator.Generate(ctx, gemini.GenerateRequest{
		SystemInstruction: summarizerInstruction,
		UserPrompt:        summaryPrompt(keyword, aggregator.BuildContext(docs)),
		Model:             modelName,
	})
}

// Chat answers a question grounded only in the given articles.
func (s *Service) Chat(ctx context.Context, req ChatRequest) (string, error) {
	question := model.Truncate(model.SafeText(req.UserMessage), model.MaxMessageChars)
	if question == "" {
		return "", model.NewError(model.ValidationFailure, msgChatInput)
	}
	articles := model.CapArticles(req.Articles)
	if len(articles) == 0 {
		return "", model.NewError(model.ValidationFailure, msgNoArticles)
	}
	if !s.generator.HasKey() {
		return "", model.NewError(model.ConfigurationMissing, gemini.MissingKeyMessage)
	}

	keyword := model.Truncate(model.SafeText(req.Keyword), model.MaxKeywordChars)
	return s.generator.Generate(ctx, gemini.GenerateRequest{
		SystemInstruction: chatInstruction,
		UserPrompt:        chatPrompt(keyword, articles, model.RecentTurns(req.History), question),
		Model:             req.Model,
	})
}

// StartSession searches keyword, stores a new session and summarizes it.
// When only the summary fails, the failed session is returned with the error.
func (s *Service) StartSession(ctx context.Context, keyword, modelName string) (*model.Session, error) {
	keyword, err := news.NormalizeKeyword(keyword)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	session := &model.Session{
		ID:        s.newID(),
		Keyword:   keyword,
		Chat:      []model.ChatTurn{},
		State:     model.StateFetchingArticles,
		CreatedAt: now,
		UpdatedAt: now,
	}

	articles, err := s.searcher.Search(ctx, keyword)
	if err != nil {
		return nil, err
	}
	if len(articles) == 0 {
		return nil, model.NewError(model.UpstreamError, msgNoResults)
	}
	session.Articles = model.CapArticles(articles)

	unlock := s.lock(session.ID)
	defer unlock()

	if err := s.runSummary(ctx, session, modelName); err != nil {
		if session.State == model.StateFailed {
			return session, err
		}
		return nil, err
	}
	return session, nil
}

// Resummarize reruns the summary of an existing session. Concurrent calls for
// the same session share one generation and one write. The shared call is not
// cancelled with the caller that started it; upstream timeouts still apply.
func (s *Service) Resummarize(ctx context.Context, id, modelName string) (*model.Session, error) {
	ctx = context.WithoutCancel(ctx)
	v, err, _ := s.flight.Do(id, func() (interface{}, error) {
		unlock := s.lock(id)
		defer unlock()

		session, err := s.load(ctx, id)
		if err != nil {
			return nil, err
		}
		err = s.runSummary(ctx, session, modelName)
		return session, err
	})

	session, _ := v.(*model.Session)
	if session == nil {
		return nil, err
	}
	// singleflight hands every caller the same value
	return session.Clone(), err
}

// SendMessage appends a user turn, asks the model and appends its answer.
// On failure the user turn stays in the history.
func (s *Service) SendMessage(ctx context.Context, id, message, modelName string) (*model.Session, string, error) {
	question := model.Truncate(model.SafeText(message), model.MaxMessageChars)
	if question == "" {
		return nil, "", model.NewError(model.ValidationFailure, msgChatInput)
	}

	unlock := s.lock(id)
	defer unlock()

	session, err := s.load(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if len(session.Articles) == 0 {
		return session, "", model.NewError(model.ValidationFailure, msgNoArticles)
	}

	history := session.Chat
	session.AppendTurn(model.RoleUser, question)
	if err := s.save(ctx, session); err != nil {
		return nil, "", err
	}

	answer, err := s.Chat(ctx, ChatRequest{
		Keyword:     session.Keyword,
		Articles:    session.Articles,
		History:     history,
		UserMessage: question,
		Model:       modelName,
	})
	if err != nil {
		log.Printf("chat failed session=%s: %v", id, err)
		return session, "", err
	}

	session.AppendTurn(model.RoleAssistant, answer)
	if err := s.save(ctx, session); err != nil {
		return nil, "", err
	}
	return session, answer, nil
}

// GetSession returns a stored session.
func (s *Service) GetSession(ctx context.Context, id string) (*model.Session, error) {
	return s.load(ctx, id)
}

// ListSessions returns up to limit sessions, newest first.
func (s *Service) ListSessions(ctx context.Context, limit int) ([]*model.Session, error) {
	sessions, err := s.store.List(ctx, limit)
	if err != nil {
		return nil, model.WrapError(model.KindUnknown, msgStoreFailure, err)
	}
	return sessions, nil
}

// DeleteSession removes a session. Unknown ids are not an error.
func (s *Service) DeleteSession(ctx context.Context, id string) error {
	unlock := s.lock(id)
	defer unlock()

	if err := s.store.Delete(ctx, id); err != nil {
		return model.WrapError(model.KindUnknown, msgStoreFailure, err)
	}
	return nil
}

// PruneSessions removes expired and overflowing sessions.
func (s *Service) PruneSessions(ctx context.Context) (int, error) {
	return s.store.Prune(ctx)
}

// runSummary walks the summary state machine, saving after every transition.
func (s *Service) runSummary(ctx context.Context, session *model.Session, modelName string) error {
	session.State = model.StateExtracting
	if err := s.save(ctx, session); err != nil {
		return err
	}

	if !s.generator.HasKey() {
		return s.fail(ctx, session, model.NewError(model.ConfigurationMissing, gemini.MissingKeyMessage))
	}
	docs := s.aggregator.Aggregate(ctx, session.Keyword, session.Articles)

	session.State = model.StateGenerating
	if err := s.save(ctx, session); err != nil {
		return err
	}

	summary, err := s.generator.Generate(ctx, gemini.GenerateRequest{
		SystemInstruction: summarizerInstruction,
		UserPrompt:        summaryPrompt(session.Keyword, aggregator.BuildContext(docs)),
		Model:             modelName,
	})
	if err != nil {
		return s.fail(ctx, session, err)
	}

	session.Summary = summary
	session.State = model.StateDone
	return s.save(ctx, session)
}

func (s *Service) fail(ctx context.Context, session *model.Session, cause error) error {
	log.Printf("summary failed session=%s: %v", session.ID, cause)
	session.Summary = ""
	session.State = model.StateFailed
	if err := s.save(ctx, session); err != nil {
		return err
	}
	return cause
}

func (s *Service) load(ctx context.Context, id string) (*model.Session, error) {
	session, err := s.store.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, model.WrapError(model.NotFound, msgSessionMissing, err)
	}
	if err != nil {
		return nil, model.WrapError(model.KindUnknown, msgStoreFailure, err)
	}
	return session, nil
}

func (s *Service) save(ctx context.Context, session *model.Session) error {
	session.UpdatedAt = time.Now()
	if err := s.store.Save(ctx, session); err != nil {
		return model.WrapError(model.KindUnknown, msgStoreFailure, err)
	}
	return nil
}

// lock serializes read-modify-write cycles on one session within this process.
func (s *Service) lock(id string) func() {
	mu := s.lockFor(id)
	mu.Lock()
	return mu.Unlock
}

func (s *Service) lockFor(id string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(id))
	return &s.locks[h.Sum32()%lockStripes]
}
