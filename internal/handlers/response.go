package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/pep299/news-chat/internal/model"
)

const msgInvalidJSON = "요청 JSON이 올바르지 않아요."

// apiResponse is the envelope for every endpoint that is not a plain
// GenerationResult or ArticlesResult.
type apiResponse struct {
	OK      bool           `json:"ok"`
	Message string         `json:"message,omitempty"`
	Text    string         `json:"text,omitempty"`
	Session *model.Session `json:"session,omitempty"`
	Sets    [][]int        `json:"sets,omitempty"`
}

type sessionsResponse struct {
	OK       bool             `json:"ok"`
	Sessions []*model.Session `json:"sessions"`
}

type healthResponse struct {
	OK   bool   `json:"ok"`
	Port string `json:"port"`
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

// failureStatus maps an error onto an HTTP status. Reported failures use 200
// with ok=false; only unknown sessions get their own status.
func failureStatus(err error) int {
	if model.IsKind(err, model.NotFound) {
		return http.StatusNotFound
	}
	return http.StatusOK
}

// decodeBody reads a JSON body into v. An empty body leaves v untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func writeInvalidJSON(w http.ResponseWriter) {
	writeJSON(w, http.StatusBadRequest, apiResponse{OK: false, Message: msgInvalidJSON})
}
