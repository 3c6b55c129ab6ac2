package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"securedocs/internal/domain"
	"securedocs/internal/logging"
)

// HandlerWithError lets handlers return an error that is turned into a {"detail": ...} response.
type HandlerWithError func(w http.ResponseWriter, r *http.Request) error

type errorResponse struct {
	Detail string `json:"detail"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return domain.Detailed(domain.ErrInvalidInput, "Invalid request body")
	}
	return nil
}

type errorMapping struct {
	kind   error
	status int
	detail string
}

// Checked in order; the first match wins.
var errorMappings = []errorMapping{
	{domain.ErrUnauthenticated, http.StatusUnauthorized, "Could not validate credentials"},
	{domain.ErrInvalidCredentials, http.StatusUnauthorized, "Incorrect email, password, or user type"},
	{domain.ErrEmailNotVerified, http.StatusUnauthorized, "Email not verified"},
	{domain.ErrLockedOut, http.StatusTooManyRequests, "Too many failed login attempts. Try again later"},
	{domain.ErrForbidden, http.StatusForbidden, "Not enough permissions"},
	{domain.ErrGrantNotFound, http.StatusNotFound, "Invalid download link or access denied"},
	{domain.ErrGrantExpired, http.StatusGone, "Download link has expired"},
	{domain.ErrGrantConsumed, http.StatusGone, "Download link has already been used"},
	{domain.ErrStoredFileMissing, http.StatusNotFound, "File not found on server"},
	{domain.ErrNotFound, http.StatusNotFound, "Not found"},
	{domain.ErrEmailTaken, http.StatusBadRequest, "Email already registered"},
	{domain.ErrInvalidToken, http.StatusBadRequest, "Invalid verification token"},
	{domain.ErrUnsupportedType, http.StatusBadRequest, "File type not allowed"},
	{domain.ErrTooLarge, http.StatusBadRequest, "File too large"},
	{domain.ErrInvalidInput, http.StatusBadRequest, "Invalid request"},
}

// publicError picks the status and the client-facing message for err.
func publicError(err error) (int, string) {
	for _, m := range errorMappings {
		if !errors.Is(err, m.kind) {
			continue
		}
		detail := m.detail
		var de *domain.DetailedError
		if errors.As(err, &de) && de.Detail != "" {
			detail = de.Detail
		}
		return m.status, detail
	}
	return http.StatusInternalServerError, "Internal server error"
}

// wrap adapts h to http.Handler, logging unexpected errors with the request id.
func wrap(log logging.Logger, h HandlerWithError) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := h(w, r)
		if err == nil {
			return
		}
		status, detail := publicError(err)
		reqID := middleware.GetReqID(r.Context())
		if status >= http.StatusInternalServerError {
			log.Error(r.Context(), "request failed", "request_id", reqID, "path", r.URL.Path, "error", err)
		} else {
			log.Debug(r.Context(), "request rejected", "request_id", reqID, "path", r.URL.Path, "status", status, "error", err)
		}
		if status == http.StatusUnauthorized {
			w.Header().Set("WWW-Authenticate", "Bearer")
		}
		writeJSON(w, status, errorResponse{Detail: detail})
	}
}
