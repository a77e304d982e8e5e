// Package session maps portal session cookies to the per-user state of the
// portfolio page: the backend token, the analytics cache, the workflow and
// the typeahead and disclosure models.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bobmcallan/optiwealth-portal/internal/analytics"
	"github.com/bobmcallan/optiwealth-portal/internal/client"
	"github.com/bobmcallan/optiwealth-portal/internal/disclosure"
	"github.com/bobmcallan/optiwealth-portal/internal/typeahead"
	"github.com/bobmcallan/optiwealth-portal/internal/workflow"
)

// PortfolioPage is the page whose sections the workflow owns.
const PortfolioPage = "portfolio"

// HoldingSymbolWidget is the add-holding form's symbol input.
const HoldingSymbolWidget = "holding-symbol"

// MaxWidgets bounds the typeahead widgets one session may create.
const MaxWidgets = 16

var (
	// ErrUnknownPage is returned for a page with no disclosure sections.
	ErrUnknownPage = errors.New("unknown page")
	// ErrTooManyWidgets is returned once a session holds MaxWidgets widgets.
	ErrTooManyWidgets = errors.New("too many typeahead widgets")
)

// Session is one logged-in browser session.
type Session struct {
	ID        string
	User      client.User
	CreatedAt time.Time

	token     string
	backend   *client.UserClient
	analytics *analytics.Store
	workflow  *workflow.Workflow
	props     typeahead.Props

	mu       sync.Mutex
	lastSeen time.Time
	widgets  map[string]*typeahead.Controller
}

// Backend is the authenticated API client for the session's user.
func (s *Session) Backend() *client.UserClient {
	return s.backend
}

// Analytics is the session's analytics cache.
func (s *Session) Analytics() *analytics.Store {
	return s.analytics
}

// Workflow is the session's portfolio page state.
func (s *Session) Workflow() *workflow.Workflow {
	return s.workflow
}

// Typeahead returns the controller for widget, creating it on first use.
// The holding form's input is the workflow's own controller.
func (s *Session) Typeahead(widget string) (*typeahead.Controller, error) {
	if widget == HoldingSymbolWidget {
		return s.workflow.SymbolInput(), nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.widgets[widget]; ok {
		return c, nil
	}
	if len(s.widgets) >= MaxWidgets {
		return nil, fmt.Errorf("%w: %q", ErrTooManyWidgets, widget)
	}
	c := typeahead.New(s.props)
	s.widgets[widget] = c
	return c, nil
}

// Sections returns the disclosure model of page.
func (s *Session) Sections(page string) (*disclosure.Model, error) {
	if page != PortfolioPage {
		return nil, ErrUnknownPage
	}
	return s.workflow.Sections(), nil
}

// LastSeen is when the session was last used.
func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) expired(now time.Time, ttl time.Duration) bool {
	return ttl > 0 && now.Sub(s.LastSeen()) > ttl
}

// close releases everything the session cached.
func (s *Session) close(ctx context.Context) error {
	s.workflow.Close()
	return s.analytics.Clear(ctx)
}
