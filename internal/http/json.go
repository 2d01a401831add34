package httpx

import (
	"bytes"
	"encoding/json"
	"net/http"

	apperrors "github.com/pdsapp/pds/internal/errors"
)

// apiError is the JSON error envelope shared by the auth endpoints.
type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// ErrorParams describes a JSON error response. ErrCode is a stable machine
// readable code; Err's text is shown to the client for 4xx and 503 only.
// A zero Code or ErrCode is derived from Err's AppError code.
type ErrorParams struct {
	Code    int
	ErrCode string
	Err     error
}

// WriteJSON encodes v before touching the response so an encoding failure
// still yields a clean 500.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	_, _ = buf.WriteTo(w)
}

// WriteError writes the error envelope. Server-side failures are reported by
// status text so internal details stay in the logs.
func WriteError(w http.ResponseWriter, p ErrorParams) {
	if p.Code == 0 {
		p.Code = apperrors.HTTPStatus(p.Err)
	}
	if p.ErrCode == "" {
		p.ErrCode = string(apperrors.CodeOf(p.Err))
	}
	msg := http.StatusText(p.Code)
	if p.Err != nil && (p.Code < http.StatusInternalServerError || p.Code == http.StatusServiceUnavailable) {
		msg = apperrors.UserMessage(p.Err, p.Err.Error())
	}
	WriteJSON(w, p.Code, apiError{Error: p.ErrCode, Message: msg})
}
