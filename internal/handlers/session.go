package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/bobmcallan/optiwealth-portal/internal/client"
	"github.com/bobmcallan/optiwealth-portal/internal/common"
	"github.com/bobmcallan/optiwealth-portal/internal/session"
	"github.com/bobmcallan/optiwealth-portal/internal/workflow"
)

type sessionKey struct{}

// SessionFrom returns the session Require attached to ctx.
func SessionFrom(ctx context.Context) *session.Session {
	s, _ := ctx.Value(sessionKey{}).(*session.Session)
	return s
}

// CookieOptions configure the session cookie. The cookie has no Max-Age;
// the server-side idle TTL decides when a session ends.
type CookieOptions struct {
	Name   string
	Secure bool
}

// SessionHandler handles login, logout and session lookup.
type SessionHandler struct {
	logger   *common.Logger
	sessions *session.Manager
	client   *client.Client
	cookie   CookieOptions
}

// NewSessionHandler creates a session handler.
func NewSessionHandler(logger *common.Logger, sessions *session.Manager, c *client.Client, cookie CookieOptions) *SessionHandler {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	if cookie.Name == "" {
		cookie.Name = "optiwealth_session"
	}
	return &SessionHandler{logger: logger, sessions: sessions, client: c, cookie: cookie}
}

type userResponse struct {
	User      client.User `json:"user"`
	CreatedAt time.Time   `json:"created_at"`
	LastSeen  time.Time   `json:"last_seen"`
}

func newUserResponse(s *session.Session) userResponse {
	return userResponse{User: s.User, CreatedAt: s.CreatedAt, LastSeen: s.LastSeen()}
}

// Login handles POST /api/session/login.
func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	var creds client.Credentials
	if err := DecodeJSON(r, &creds); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	creds.Email = strings.TrimSpace(creds.Email)
	if err := requireFields("email", creds.Email, "password", creds.Password); err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	s, err := h.sessions.Login(r.Context(), creds)
	if err != nil {
		if errors.Is(err, client.ErrUnauthorized) {
			WriteError(w, http.StatusUnauthorized, "invalid email or password")
			return
		}
		writeDomainError(w, h.logger, err)
		return
	}

	h.setCookie(w, s.ID)
	WriteJSON(w, http.StatusOK, newUserResponse(s))
}

// Register handles POST /api/session/register. It creates the account but
// does not log in.
func (h *SessionHandler) Register(w http.ResponseWriter, r *http.Request) {
	var reg client.Registration
	if err := DecodeJSON(r, &reg); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	reg.Username = strings.TrimSpace(reg.Username)
	reg.Email = strings.TrimSpace(reg.Email)
	if err := requireFields("username", reg.Username, "email", reg.Email, "password", reg.Password); err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	user, err := h.client.Register(r.Context(), reg)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusCreated, map[string]interface{}{"user": user})
}

// Logout handles POST /api/session/logout. Logging out without a session
// still clears the cookie.
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(h.cookie.Name); err == nil && c.Value != "" {
		if err := h.sessions.Destroy(r.Context(), c.Value); err != nil {
			h.logger.Warn().Err(err).Msg("logout failed to release session")
		}
	}
	h.clearCookie(w)
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Current handles GET /api/session.
func (h *SessionHandler) Current(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, newUserResponse(SessionFrom(r.Context())))
}

// Require rejects requests without a live session and attaches the session
// to the request context.
func (h *SessionHandler) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(h.cookie.Name)
		if err != nil || c.Value == "" {
			WriteError(w, http.StatusUnauthorized, "not logged in")
			return
		}
		s, err := h.sessions.Get(r.Context(), c.Value)
		if err != nil {
			h.clearCookie(w)
			WriteError(w, http.StatusUnauthorized, "session expired")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, s)))
	})
}

func (h *SessionHandler) setCookie(w http.ResponseWriter, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *SessionHandler) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// requireFields takes name, value pairs and reports every blank value.
func requireFields(pairs ...string) error {
	var missing workflow.ValidationErrors
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i+1] == "" {
			missing = append(missing, workflow.ValidationError{Field: pairs[i], Message: "is required"})
		}
	}
	if len(missing) > 0 {
		return missing
	}
	return nil
}
