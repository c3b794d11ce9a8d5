package model

import (
	"slices"
	"time"
)

// Chat limits
const (
	MaxHistoryTurns = 20
	MaxKeywordChars = 120
	MaxMessageChars = 1000
	MaxListSessions = 50
)

// Chat roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// SessionState tracks where a session is in the summarize flow.
type SessionState string

const (
	StateIdle             SessionState = "idle"
	StateFetchingArticles SessionState = "fetching-articles"
	StateExtracting       SessionState = "extracting"
	StateGenerating       SessionState = "generating"
	StateDone             SessionState = "done"
	StateFailed           SessionState = "failed"
)

// ChatTurn is one message of the running conversation.
type ChatTurn struct {
	Role string    `json:"role"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// Session is the active keyword search result set plus its chat history.
type Session struct {
	ID        string       `json:"id"`
	Keyword   string       `json:"keyword"`
	Articles  []Article    `json:"articles"`
	Summary   string       `json:"summary"`
	Chat      []ChatTurn   `json:"chat"`
	State     SessionState `json:"state"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// AppendTurn appends a chat turn stamped with the current time.
func (s *Session) AppendTurn(role, text string) ChatTurn {
	turn := ChatTurn{Role: role, Text: text, At: time.Now()}
	s.Chat = append(s.Chat, turn)
	s.UpdatedAt = turn.At
	return turn
}

// RecentTurns returns the last MaxHistoryTurns turns of history.
func RecentTurns(history []ChatTurn) []ChatTurn {
	if len(history) > MaxHistoryTurns {
		return history[len(history)-MaxHistoryTurns:]
	}
	return history
}

// Clone returns a copy that shares no slices with s.
func (s *Session) Clone() *Session {
	c := *s
	c.Articles = slices.Clone(s.Articles)
	c.Chat = slices.Clone(s.Chat)
	return &c
}
