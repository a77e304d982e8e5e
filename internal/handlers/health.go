package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/bobmcallan/optiwealth-portal/internal/common"
)

// HealthStats reports live counters shown by the health endpoint.
type HealthStats func() (sessions, symbols int)

// HealthHandler handles health check requests.
type HealthHandler struct {
	logger     *common.Logger
	apiURL     string
	stats      HealthStats
	httpClient *http.Client
}

// NewHealthHandler creates a new health handler. With a non-empty apiURL
// the response also reports whether the backend answers its own health check.
func NewHealthHandler(logger *common.Logger, apiURL string, stats HealthStats) *HealthHandler {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	return &HealthHandler{
		logger:     logger,
		apiURL:     apiURL,
		stats:      stats,
		httpClient: &http.Client{Timeout: 3 * time.Second},
	}
}

// ServeHTTP handles GET /api/health.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	body := map[string]interface{}{"status": "ok"}
	if h.stats != nil {
		sessions, symbols := h.stats()
		body["sessions"] = sessions
		body["symbols"] = symbols
	}
	if h.apiURL != "" {
		body["backend"] = h.checkBackend(r.Context())
	}
	WriteJSON(w, http.StatusOK, body)
}

// checkBackend returns "ok" or "down". The backend's /health route requires
// a logged-in user, so any non-5xx reply counts as up.
func (h *HealthHandler) checkBackend(ctx context.Context) string {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.apiURL+"/health", nil)
	if err != nil {
		return "down"
	}
	resp, err := h.httpClient.Do(req)
	if err != nil {
		h.logger.Debug().Err(err).Msg("backend health check failed")
		return "down"
	}
	defer resp.Body.Close()
	if resp.StatusCode < http.StatusInternalServerError {
		return "ok"
	}
	return "down"
}
