package model

import "errors"

// GenerationResult is the uniform envelope for summarize and chat responses.
type GenerationResult struct {
	OK      bool   `json:"ok"`
	Text    string `json:"text,omitempty"`
	Message string `json:"message,omitempty"`
}

// ArticlesResult is the envelope returned by the news search endpoint.
type ArticlesResult struct {
	OK       bool      `json:"ok"`
	Articles []Article `json:"articles,omitempty"`
	Message  string    `json:"message,omitempty"`
}

// Success wraps generated text.
func Success(text string) GenerationResult {
	return GenerationResult{OK: true, Text: text}
}

// Failure converts any error into a failed envelope.
func Failure(err error) GenerationResult {
	return GenerationResult{OK: false, Message: MessageOf(err)}
}

// ArticlesSuccess wraps a search result.
func ArticlesSuccess(articles []Article) ArticlesResult {
	if articles == nil {
		articles = []Article{}
	}
	return ArticlesResult{OK: true, Articles: articles}
}

// ArticlesFailure converts a search error into a failed envelope.
func ArticlesFailure(err error) ArticlesResult {
	return ArticlesResult{OK: false, Message: MessageOf(err)}
}

// MessageOf returns the user facing message carried by err.
func MessageOf(err error) string {
	if err == nil {
		return ""
	}
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return err.Error()
}
