package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bobmcallan/optiwealth-portal/internal/analytics"
	"github.com/bobmcallan/optiwealth-portal/internal/client"
	"github.com/bobmcallan/optiwealth-portal/internal/common"
	"github.com/bobmcallan/optiwealth-portal/internal/disclosure"
	"github.com/bobmcallan/optiwealth-portal/internal/storage"
	"github.com/bobmcallan/optiwealth-portal/internal/symbols"
	"github.com/bobmcallan/optiwealth-portal/internal/typeahead"
	"github.com/bobmcallan/optiwealth-portal/internal/workflow"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// ErrNotFound is returned for unknown or expired session ids.
var ErrNotFound = errors.New("session not found")

// Options configure a Manager.
type Options struct {
	Client     *client.Client
	Storage    storage.KeyValueStorage
	Symbols    *symbols.Index
	TTL        time.Duration
	MaxMatches int
	// Strict makes disclosure models panic on unknown section names.
	Strict bool
	Logger *common.Logger
}

// Manager owns all live sessions. Sessions expire after TTL without use.
type Manager struct {
	opts   Options
	logger *common.Logger
	now    func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session

	cron *cron.Cron
}

// NewManager creates an empty session manager.
func NewManager(opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	return &Manager{
		opts:     opts,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Login authenticates against the backend and starts a session.
func (m *Manager) Login(ctx context.Context, creds client.Credentials) (*Session, error) {
	res, err := m.opts.Client.Login(ctx, creds)
	if err != nil {
		return nil, err
	}
	s := m.create(res.User, res.Token)
	m.logger.Info().Str("session_id", s.ID).Int64("user_id", res.User.ID).Msg("session started")
	return s, nil
}

func (m *Manager) create(user client.User, token string) *Session {
	id := uuid.NewString()
	now := m.now()
	backend := m.opts.Client.As(token)
	// Entries live until invalidated; Destroy clears the scope when the
	// session ends.
	store := analytics.NewStore(m.opts.Storage, id, 0, m.logger)
	props := typeahead.Props{Catalog: m.opts.Symbols, MaxMatches: m.opts.MaxMatches}

	s := &Session{
		ID:        id,
		User:      user,
		CreatedAt: now,
		token:     token,
		backend:   backend,
		analytics: store,
		workflow: workflow.New(workflow.Deps{
			Backend:    backend,
			Cache:      store,
			Symbols:    m.opts.Symbols,
			Sections:   disclosure.New(m.opts.Strict),
			MaxMatches: m.opts.MaxMatches,
			Logger:     m.logger,
		}),
		props:    props,
		lastSeen: now,
		widgets:  make(map[string]*typeahead.Controller),
	}

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()
	return s
}

// Get returns a live session and extends its lifetime. An expired session
// is destroyed and reported as missing.
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}

	now := m.now()
	if s.expired(now, m.opts.TTL) {
		if err := m.Destroy(ctx, id); err != nil {
			m.logger.Warn().Str("session_id", id).Err(err).Msg("failed to release expired session")
		}
		return nil, ErrNotFound
	}
	s.touch(now)
	return s, nil
}

// Destroy ends a session and drops everything cached for it. Destroying an
// unknown id is not an error.
func (m *Manager) Destroy(ctx context.Context, id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return nil
	}

	m.opts.Client.Forget(s.token)
	if err := s.close(ctx); err != nil {
		return fmt.Errorf("release session %s: %w", id, err)
	}
	m.logger.Info().Str("session_id", id).Msg("session ended")
	return nil
}

// Sweep destroys every expired session and returns how many were removed.
func (m *Manager) Sweep(ctx context.Context) int {
	now := m.now()
	var expired []string
	m.mu.RLock()
	for id, s := range m.sessions {
		if s.expired(now, m.opts.TTL) {
			expired = append(expired, id)
		}
	}
	m.mu.RUnlock()

	for _, id := range expired {
		if err := m.Destroy(ctx, id); err != nil {
			m.logger.Warn().Str("session_id", id).Err(err).Msg("sweep failed to release session")
		}
	}
	if len(expired) > 0 {
		m.logger.Debug().Int("expired", len(expired)).Msg("session sweep")
	}
	return len(expired)
}

// Count returns the number of live sessions, including expired ones not yet
// swept.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Start runs Sweep on schedule ("@every 1m", a cron spec, ...).
func (m *Manager) Start(schedule string) error {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		m.Sweep(context.Background())
	})
	if err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	c.Start()
	m.cron = c
	m.logger.Info().Str("schedule", schedule).Msg("session sweeper started")
	return nil
}

// Stop halts the sweeper and destroys all sessions.
func (m *Manager) Stop(ctx context.Context) {
	if m.cron != nil {
		<-m.cron.Stop().Done()
		m.cron = nil
	}

	m.mu.RLock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.RUnlock()
	for _, id := range ids {
		if err := m.Destroy(ctx, id); err != nil {
			m.logger.Warn().Str("session_id", id).Err(err).Msg("shutdown failed to release session")
		}
	}
	m.logger.Info().Int("sessions", len(ids)).Msg("session manager stopped")
}
