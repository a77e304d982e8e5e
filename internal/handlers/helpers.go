package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/bobmcallan/optiwealth-portal/internal/analytics"
	"github.com/bobmcallan/optiwealth-portal/internal/client"
	"github.com/bobmcallan/optiwealth-portal/internal/common"
	"github.com/bobmcallan/optiwealth-portal/internal/disclosure"
	"github.com/bobmcallan/optiwealth-portal/internal/session"
	"github.com/bobmcallan/optiwealth-portal/internal/workflow"
	"github.com/go-chi/chi/v5"
)

// RequireMethod validates that the HTTP request uses the specified method.
// Returns true if the method matches, false otherwise (and writes error response).
func RequireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method || (method == http.MethodGet && r.Method == http.MethodHead) {
		return true
	}
	WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
	return false
}

// WriteJSON writes a JSON response with the specified status code and data.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(data)
}

// WriteError writes a standard error JSON response.
func WriteError(w http.ResponseWriter, statusCode int, message string) error {
	return WriteJSON(w, statusCode, map[string]string{
		"status": "error",
		"error":  message,
	})
}

// DecodeJSON reads a JSON request body into dst. Unknown fields are rejected.
func DecodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("request body is empty")
		}
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// pathID parses the chi URL parameter name as a positive int64.
func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return id, nil
}

// StatusFor maps a domain error to its HTTP status.
func StatusFor(err error) int {
	var verrs workflow.ValidationErrors
	var apiErr *client.APIError
	isAPIErr := errors.As(err, &apiErr)
	switch {
	case errors.As(err, &verrs), errors.Is(err, workflow.ErrUnknownSymbol),
		errors.Is(err, session.ErrTooManyWidgets):
		return http.StatusBadRequest
	case isAPIErr && (apiErr.StatusCode == http.StatusBadRequest || apiErr.StatusCode == http.StatusUnprocessableEntity):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrNotFound), errors.Is(err, client.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, client.ErrNotFound), errors.Is(err, disclosure.ErrUnknownSection),
		errors.Is(err, session.ErrUnknownPage):
		return http.StatusNotFound
	case errors.Is(err, workflow.ErrNoView), errors.Is(err, workflow.ErrNotReady),
		errors.Is(err, workflow.ErrAnalysisPending), errors.Is(err, workflow.ErrNoHoldings),
		errors.Is(err, workflow.ErrStaleView):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case isAPIErr, errors.Is(err, client.ErrUnavailable),
		errors.Is(err, client.ErrBadResponse), errors.Is(err, analytics.ErrInvalidPayload):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// writeDomainError writes err with the status StatusFor picks. Validation
// failures also list the rejected fields.
func writeDomainError(w http.ResponseWriter, logger *common.Logger, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error().Err(err).Int("status", status).Msg("request failed")
	}

	var verrs workflow.ValidationErrors
	if errors.As(err, &verrs) {
		WriteJSON(w, status, map[string]interface{}{
			"status": "error",
			"error":  err.Error(),
			"fields": []workflow.ValidationError(verrs),
		})
		return
	}
	WriteError(w, status, errorMessage(err))
}

// errorMessage is the user-facing text for err. Backend error bodies are
// surfaced as-is when short.
func errorMessage(err error) string {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		body := strings.TrimSpace(apiErr.Body)
		if body != "" && len(body) <= 200 && !strings.HasPrefix(body, "{") && !strings.HasPrefix(body, "<") {
			return body
		}
		return fmt.Sprintf("backend returned %d", apiErr.StatusCode)
	}
	return err.Error()
}
