package response

import (
	"encoding/json"
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// The portal backend answers with bare JSON documents and FastAPI style
// {"detail": ...} errors. The envelope form is kept for the admin gateway.

type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *envError   `json:"error,omitempty"`
	Meta    meta        `json:"meta"`
}

type envError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

type meta struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

type detailBody struct {
	Detail interface{} `json:"detail"`
}

// ValidationIssue is one entry of a 422 detail list.
type ValidationIssue struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

func JSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	writeJSON(w, r, status, data)
}

func Detail(w http.ResponseWriter, r *http.Request, status int, detail string) {
	writeJSON(w, r, status, detailBody{Detail: detail})
}

func Validation(w http.ResponseWriter, r *http.Request, issues []ValidationIssue) {
	writeJSON(w, r, http.StatusUnprocessableEntity, detailBody{Detail: issues})
}

func Error(w http.ResponseWriter, r *http.Request, status int, code, message string, details interface{}) {
	writeJSON(w, r, status, envelope{
		Success: false,
		Error:   &envError{Code: code, Message: message, Details: details},
		Meta:    meta{RequestID: requestID(r), Timestamp: time.Now().UTC()},
	})
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Request-Id", requestID(r))
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func requestID(r *http.Request) string {
	id := chimiddleware.GetReqID(r.Context())
	if id == "" {
		id = r.Header.Get("X-Request-Id")
	}
	if id == "" {
		id = "req-unknown"
	}
	return id
}
