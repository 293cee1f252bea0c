package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/IqDevHose/grandm-qrcode/internal/platform/requestctx"
)

// Error is a failed request as reported to menu clients.
type Error struct {
	Code    string
	Message string
	Status  int
}

// envelope is the wire form of Error. Correlation ids are taken from the request context so a
// client report can be matched with server logs and the session's snapshot stream.
type envelope struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Status    int    `json:"status"`
	RequestID string `json:"request_id,omitempty"`
	TraceID   string `json:"trace_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// NewError constructs an Error. A zero status means 500.
func NewError(code, message string, status int) Error {
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return Error{
		Code:    truncate(code, 80),
		Message: truncate(message, 512),
		Status:  status,
	}
}

// WriteError writes err as a JSON envelope.
func WriteError(ctx context.Context, w http.ResponseWriter, err Error) {
	status := err.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}
	WriteJSON(w, status, envelope{
		Error:     err.Code,
		Message:   err.Message,
		Status:    status,
		RequestID: truncate(middleware.GetReqID(ctx), 80),
		TraceID:   truncate(requestctx.TraceID(ctx), 64),
		SessionID: truncate(requestctx.SessionID(ctx), 64),
	})
}

// WriteJSON encodes payload with the given status code. HTML is not escaped so Arabic labels and
// markup-bearing descriptions reach the client as written.
func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(payload)
}

// truncate flattens line breaks and cuts value to at most limit bytes without splitting a rune.
func truncate(value string, limit int) string {
	value = strings.TrimSpace(strings.NewReplacer("\n", " ", "\r", " ").Replace(value))
	if len(value) <= limit {
		return value
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(value[cut]) {
		cut--
	}
	return value[:cut]
}
