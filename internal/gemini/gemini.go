package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/pep299/news-chat/internal/metrics"
	"github.com/pep299/news-chat/internal/model"
)

const (
	// DefaultBaseURL is the Gemini v1beta models endpoint.
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta/models"
	// DefaultModel is used when neither the request nor the client names a model.
	DefaultModel = "gemini-2.5-flash"

	// PingPrompt asks for a one line connectivity answer.
	PingPrompt = "한 줄로 '연결 성공' 이라고만 답해."

	temperature     = 0.3
	maxOutputTokens = 4096
	userAgent       = "NewsChatBot/1.0 (local dev)"
)

// MissingKeyMessage is reported when no API key is configured.
const MissingKeyMessage = "GEMINI_API_KEY가 설정되지 않았어요. gemini-api-key.txt 또는 환경변수로 넣어 주세요."

const (
	msgPingMissingKey = "gemini-api-key.txt에 키가 없어요."
	msgEmpty          = "Gemini 응답이 비어 있어요."
)

// Client handles Gemini API operations
type Client struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	metrics    *metrics.Metrics
}

// NewClient creates a new Gemini API client. Empty model and baseURL fall
// back to the defaults.
func NewClient(apiKey, model, baseURL string, m *metrics.Metrics) *Client {
	if model == "" {
		model = DefaultModel
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		apiKey:  apiKey,
		model:   model,
		baseURL: baseURL,
		metrics: m,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// GenerateRequest is one single-turn generation call.
type GenerateRequest struct {
	SystemInstruction string
	UserPrompt        string
	Model             string // optional override
}

// geminiRequest represents the request structure for Gemini API
type geminiRequest struct {
	Contents         []geminiContent  `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

// geminiResponse represents the response structure from Gemini API
type geminiResponse struct {
	Candidates []geminiCandidate `json:"candidates"`
	Error      *geminiError      `json:"error"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason"`
}

type geminiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// Model returns the model used when a request does not name one.
func (c *Client) Model() string {
	return c.model
}

// HasKey reports whether the client can call the API at all.
func (c *Client) HasKey() bool {
	return c.apiKey != ""
}

// Generate sends one prompt and returns the concatenated text of the first candidate.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	if c.apiKey == "" {
		return "", model.NewError(model.ConfigurationMissing, MissingKeyMessage)
	}

	text, err := c.generate(ctx, req)
	c.metrics.ObserveUpstream("gemini", err)
	return text, err
}

// Ping checks connectivity and credentials with a trivial prompt.
func (c *Client) Ping(ctx context.Context) (string, error) {
	if c.apiKey == "" {
		return "", model.NewError(model.ConfigurationMissing, msgPingMissingKey)
	}
	return c.Generate(ctx, GenerateRequest{UserPrompt: PingPrompt})
}

func (c *Client) generate(ctx context.Context, req GenerateRequest) (string, error) {
	modelName := req.Model
	if modelName == "" {
		modelName = c.model
	}

	body, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{
			{
				Role:  "user",
				Parts: []geminiPart{{Text: buildPrompt(req.SystemInstruction, req.UserPrompt)}},
			},
		},
		GenerationConfig: generationConfig{
			Temperature:     temperature,
			MaxOutputTokens: maxOutputTokens,
		},
	})
	if err != nil {
		return "", model.WrapError(model.ParseFailure, "Gemini 요청 생성 실패", err)
	}

	endpoint := fmt.Sprintf("%s/%s:generateContent?key=%s", c.baseURL, url.PathEscape(modelName), url.QueryEscape(c.apiKey))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", model.WrapError(model.TransportFailure, "Gemini 연결 실패: "+err.Error(), err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		detail := connectionDetail(err)
		log.Printf("[Gemini] connection error: %s", detail)
		return "", model.WrapError(model.TransportFailure, "Gemini 연결 실패: "+detail, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		detail := connectionDetail(err)
		return "", model.WrapError(model.TransportFailure, "Gemini 연결 실패: "+detail, err)
	}

	var data geminiResponse
	parseErr := json.Unmarshal(raw, &data)

	if resp.StatusCode != http.StatusOK {
		message := upstreamMessage(data.Error, resp.StatusCode)
		log.Printf("[Gemini] API error status=%d: %s", resp.StatusCode, message)
		return "", model.NewError(model.UpstreamError, "Gemini: "+message)
	}

	if parseErr != nil {
		log.Printf("[Gemini] unparseable response: %s", model.Truncate(string(raw), 200))
		return "", model.WrapError(model.ParseFailure, "Gemini 응답 파싱 실패: "+parseErr.Error(), parseErr)
	}

	text := candidateText(data)
	if text == "" {
		return "", emptyResponseError(data)
	}
	return text, nil
}

// buildPrompt folds the system instruction into the single user turn.
func buildPrompt(system, user string) string {
	if system == "" {
		return user
	}
	return "SYSTEM:\n" + system + "\n\n" + user
}

func candidateText(data geminiResponse) string {
	if len(data.Candidates) == 0 {
		return ""
	}
	var text string
	for _, part := range data.Candidates[0].Content.Parts {
		text += part.Text
	}
	return text
}

func upstreamMessage(apiErr *geminiError, status int) string {
	switch {
	case apiErr != nil && apiErr.Message != "":
		return apiErr.Message
	case apiErr != nil && apiErr.Status != "":
		return apiErr.Status
	default:
		return fmt.Sprintf("HTTP %d", status)
	}
}

func emptyResponseError(data geminiResponse) error {
	if data.Error != nil && data.Error.Message != "" {
		return model.NewError(model.UpstreamError, data.Error.Message)
	}
	if len(data.Candidates) > 0 && data.Candidates[0].FinishReason != "" {
		reason := data.Candidates[0].FinishReason
		log.Printf("[Gemini] empty response finishReason=%s", reason)
		return model.NewError(model.UpstreamError, fmt.Sprintf("%s (finishReason: %s)", msgEmpty, reason))
	}
	return model.NewError(model.UpstreamError, msgEmpty)
}

// connectionDetail drops the request URL, which carries the API key.
func connectionDetail(err error) string {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err.Error()
	}
	return err.Error()
}
