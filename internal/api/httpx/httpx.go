package httpx

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	jsoniter "github.com/json-iterator/go"

	"github.com/baharkarakas/circulation-backend/internal/services"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const maxBody = 1 << 20

type APIError struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, status int, code, msg string, details any) {
	WriteJSON(w, status, APIError{
		Error:   msg,
		Code:    code,
		Details: details,
	})
}

// StatusFor maps a service error kind onto an HTTP status.
func StatusFor(err error) int {
	if errors.Is(err, services.ErrAccountNotApproved) {
		return http.StatusForbidden
	}
	switch services.KindOf(err) {
	case services.KindValidation:
		return http.StatusBadRequest
	case services.KindUnauthenticated:
		return http.StatusUnauthorized
	case services.KindForbidden:
		return http.StatusForbidden
	case services.KindNotFound:
		return http.StatusNotFound
	case services.KindPrecondition:
		return http.StatusConflict
	case services.KindUnavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// WriteServiceError renders err with its stable code and message. Unknown errors are
// logged and hidden behind a generic 500.
func WriteServiceError(w http.ResponseWriter, err error) {
	var se *services.Error
	if errors.As(err, &se) {
		WriteError(w, StatusFor(err), se.Code, se.Message, se.Details)
		return
	}
	slog.Error("unhandled error", "err", err)
	WriteError(w, http.StatusInternalServerError, "internal_error", "internal error", nil)
}

// Decode reads a JSON body into v, rejecting unknown fields.
func Decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// WriteBadBody reports an undecodable request body.
func WriteBadBody(w http.ResponseWriter, err error) {
	WriteError(w, http.StatusBadRequest, "invalid_body", "request body is not valid JSON", err.Error())
}

// Page reads limit/offset query parameters, ignoring malformed values.
func Page(r *http.Request) services.Page {
	var p services.Page
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			p.Limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			p.Offset = n
		}
	}
	return p
}
