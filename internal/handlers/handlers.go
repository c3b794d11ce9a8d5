package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/GoogleCloudPlatform/functions-framework-go/funcframework"
	"github.com/gorilla/mux"

	"github.com/pep299/news-chat/internal/chat"
	"github.com/pep299/news-chat/internal/lotto"
	"github.com/pep299/news-chat/internal/model"
)

type summarizeRequest struct {
	Keyword  string          `json:"keyword"`
	Articles []model.Article `json:"articles"`
	Model    string          `json:"model"`
}

type chatRequest struct {
	Keyword     string           `json:"keyword"`
	Articles    []model.Article  `json:"articles"`
	Messages    []model.ChatTurn `json:"messages"`
	UserMessage string           `json:"userMessage"`
	Model       string           `json:"model"`
}

type createSessionRequest struct {
	Keyword string `json:"keyword"`
	Model   string `json:"model"`
}

type sessionChatRequest struct {
	Message string `json:"message"`
	Model   string `json:"model"`
}

type lottoRequest struct {
	Include numberList `json:"include"`
	Exclude numberList `json:"exclude"`
	Sets    int        `json:"sets"`
	Sort    string     `json:"sort"`
}

// numberList accepts either a JSON number array or free text such as "3, 7 12".
type numberList []int

func (n *numberList) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		*n = lotto.ParseNumbers(text)
		return nil
	}
	var nums []int
	if err := json.Unmarshal(data, &nums); err != nil {
		return err
	}
	*n = nums
	return nil
}

// healthHandler provides health check endpoint
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{OK: true, Port: s.config.Port})
}

// testGeminiHandler checks the generation credential with a one line prompt
func (s *Server) testGeminiHandler(w http.ResponseWriter, r *http.Request) {
	text, err := s.geminiClient.Ping(r.Context())
	if err != nil {
		writeJSON(w, http.StatusOK, model.Failure(err))
		return
	}
	writeJSON(w, http.StatusOK, model.Success(text))
}

// newsHandler searches articles for ?q=
func (s *Server) newsHandler(w http.ResponseWriter, r *http.Request) {
	articles, err := s.service.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeJSON(w, http.StatusOK, model.ArticlesFailure(err))
		return
	}
	writeJSON(w, http.StatusOK, model.ArticlesSuccess(articles))
}

// summarizeHandler summarizes the articles a client already holds
func (s *Server) summarizeHandler(w http.ResponseWriter, r *http.Request) {
	var req summarizeRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeInvalidJSON(w)
		return
	}

	text, err := s.service.Summarize(r.Context(), req.Keyword, req.Articles, req.Model)
	if err != nil {
		s.logFailure(r, "summarize", err)
		writeJSON(w, http.StatusOK, model.Failure(err))
		return
	}
	writeJSON(w, http.StatusOK, model.Success(text))
}

// chatHandler answers a question over the articles and history a client sends
func (s *Server) chatHandler(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeInvalidJSON(w)
		return
	}

	text, err := s.service.Chat(r.Context(), chat.ChatRequest{
		Keyword:     req.Keyword,
		Articles:    req.Articles,
		History:     req.Messages,
		UserMessage: req.UserMessage,
		Model:       req.Model,
	})
	if err != nil {
		s.logFailure(r, "chat", err)
		writeJSON(w, http.StatusOK, model.Failure(err))
		return
	}
	writeJSON(w, http.StatusOK, model.Success(text))
}

// createSessionHandler searches a keyword and summarizes it into a new session
func (s *Server) createSessionHandler(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeInvalidJSON(w)
		return
	}

	session, err := s.service.StartSession(r.Context(), req.Keyword, req.Model)
	s.writeSession(w, r, session, err)
}

func (s *Server) listSessionsHandler(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	sessions, err := s.service.ListSessions(r.Context(), limit)
	if err != nil {
		s.logFailure(r, "list sessions", err)
		writeJSON(w, http.StatusOK, apiResponse{OK: false, Message: model.MessageOf(err)})
		return
	}
	if sessions == nil {
		sessions = []*model.Session{}
	}
	writeJSON(w, http.StatusOK, sessionsResponse{OK: true, Sessions: sessions})
}

func (s *Server) getSessionHandler(w http.ResponseWriter, r *http.Request) {
	session, err := s.service.GetSession(r.Context(), mux.Vars(r)["id"])
	s.writeSession(w, r, session, err)
}

func (s *Server) deleteSessionHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteSession(r.Context(), mux.Vars(r)["id"]); err != nil {
		s.logFailure(r, "delete session", err)
		writeJSON(w, failureStatus(err), apiResponse{OK: false, Message: model.MessageOf(err)})
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{OK: true})
}

func (s *Server) resummarizeHandler(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeInvalidJSON(w)
		return
	}

	session, err := s.service.Resummarize(r.Context(), mux.Vars(r)["id"], req.Model)
	s.writeSession(w, r, session, err)
}

func (s *Server) sessionChatHandler(w http.ResponseWriter, r *http.Request) {
	var req sessionChatRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeInvalidJSON(w)
		return
	}

	session, answer, err := s.service.SendMessage(r.Context(), mux.Vars(r)["id"], req.Message, req.Model)
	if err != nil {
		s.logFailure(r, "session chat", err)
		writeJSON(w, failureStatus(err), apiResponse{OK: false, Message: model.MessageOf(err), Session: session})
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{OK: true, Text: answer, Session: session})
}

// lottoHandler draws lottery number sets
func (s *Server) lottoHandler(w http.ResponseWriter, r *http.Request) {
	var req lottoRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeInvalidJSON(w)
		return
	}

	sets, err := s.picker.Generate(lotto.Options{
		Include: req.Include,
		Exclude: req.Exclude,
		Sets:    req.Sets,
		Sort:    req.Sort,
	})
	if err != nil {
		writeJSON(w, http.StatusOK, apiResponse{OK: false, Message: model.MessageOf(err)})
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{OK: true, Sets: sets, Text: lotto.FormatSets(sets)})
}

// writeSession reports a session result. A session returned together with an
// error (a failed summary) is still included.
func (s *Server) writeSession(w http.ResponseWriter, r *http.Request, session *model.Session, err error) {
	if err != nil {
		s.logFailure(r, "session", err)
		writeJSON(w, failureStatus(err), apiResponse{OK: false, Message: model.MessageOf(err), Session: session})
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{OK: true, Session: session})
}

func (s *Server) logFailure(r *http.Request, op string, err error) {
	logger := log.New(funcframework.LogWriter(r.Context()), "", 0)
	logger.Printf("%s failed: %v", op, err)
}
