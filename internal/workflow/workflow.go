// Package workflow drives the portfolio page: loading a portfolio, running
// and caching its analytics, and applying holding mutations so that cached
// analytics never outlive the holdings they were computed from.
//
// A Workflow belongs to one session. Its state changes happen under a single
// mutex; backend calls run outside it and re-check on completion that the
// view they were issued for is still the one open.
package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/bobmcallan/optiwealth-portal/internal/analytics"
	"github.com/bobmcallan/optiwealth-portal/internal/client"
	"github.com/bobmcallan/optiwealth-portal/internal/common"
	"github.com/bobmcallan/optiwealth-portal/internal/disclosure"
	"github.com/bobmcallan/optiwealth-portal/internal/symbols"
	"github.com/bobmcallan/optiwealth-portal/internal/typeahead"
	"golang.org/x/sync/errgroup"
)

// Backend is the subset of the OptiWealth API the workflow uses.
type Backend interface {
	ListPortfolios(ctx context.Context) ([]client.Portfolio, error)
	GetPortfolio(ctx context.Context, id int64) (*client.Portfolio, error)
	CreatePortfolio(ctx context.Context, name string) (*client.Portfolio, error)
	DeletePortfolio(ctx context.Context, id int64) error
	ListHoldings(ctx context.Context, portfolioID int64) ([]client.Holding, error)
	AddHolding(ctx context.Context, portfolioID int64, in client.HoldingInput) (*client.Holding, error)
	UpdateHolding(ctx context.Context, portfolioID, holdingID int64, in client.HoldingInput) (*client.Holding, error)
	DeleteHolding(ctx context.Context, portfolioID, holdingID int64) error
	Analyze(ctx context.Context, portfolioID int64) (json.RawMessage, error)
}

// Deps are the collaborators of a Workflow.
type Deps struct {
	Backend    Backend
	Cache      *analytics.Store
	Symbols    *symbols.Index
	Sections   *disclosure.Model
	MaxMatches int
	Logger     *common.Logger
}

// Workflow is the portfolio page state of one session.
type Workflow struct {
	backend  Backend
	cache    *analytics.Store
	symbols  *symbols.Index
	sections *disclosure.Model
	input    *typeahead.Controller
	logger   *common.Logger

	mu        sync.Mutex
	view      *view
	nextToken uint64
}

// New creates a workflow with no portfolio open.
func New(d Deps) *Workflow {
	logger := d.Logger
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	sections := d.Sections
	if sections == nil {
		sections = disclosure.New(false)
	}
	return &Workflow{
		backend:  d.Backend,
		cache:    d.Cache,
		symbols:  d.Symbols,
		sections: sections,
		input:    typeahead.New(typeahead.Props{Catalog: d.Symbols, MaxMatches: d.MaxMatches}),
		logger:   logger,
	}
}

// SymbolInput is the add-holding form's symbol typeahead.
func (w *Workflow) SymbolInput() *typeahead.Controller {
	return w.input
}

// Sections is the disclosure state of the portfolio page.
func (w *Workflow) Sections() *disclosure.Model {
	return w.sections
}

// current returns the open view if it still carries token.
func (w *Workflow) current(token uint64) *view {
	if w.view == nil || w.view.token != token {
		return nil
	}
	return w.view
}

// Open loads portfolio id as a fresh page: sections and the symbol input are
// reset, and analytics come from the cache when present.
func (w *Workflow) Open(ctx context.Context, id int64) error {
	w.mu.Lock()
	w.nextToken++
	token := w.nextToken
	w.view = &view{token: token, portfolioID: id, phase: PhaseLoading, analytics: NoAnalytics}
	w.mu.Unlock()

	w.sections.Reset()
	w.input.Reset()

	var portfolio *client.Portfolio
	var holdings []client.Holding
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := w.backend.GetPortfolio(gctx, id)
		if err != nil {
			return fmt.Errorf("load portfolio %d: %w", id, err)
		}
		portfolio = p
		return nil
	})
	g.Go(func() error {
		hs, err := w.backend.ListHoldings(gctx, id)
		if err != nil {
			return fmt.Errorf("load holdings of portfolio %d: %w", id, err)
		}
		holdings = hs
		return nil
	})
	err := g.Wait()

	var entry *analytics.Entry
	if err == nil {
		if e, ok := w.cache.Get(ctx, id); ok {
			entry = &e
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	v := w.current(token)
	if v == nil {
		return ErrStaleView
	}
	if err != nil {
		v.phase = PhaseFailed
		v.lastErr = err.Error()
		w.logger.Warn().Int64("portfolio_id", id).Err(err).Msg("portfolio load failed")
		return err
	}
	v.phase = PhaseReady
	v.portfolio = portfolio
	v.holdings = holdings
	if entry != nil {
		v.analytics = Cached
		v.entry = entry
	}
	w.logger.Debug().
		Int64("portfolio_id", id).
		Int("holdings", len(holdings)).
		Str("analytics", string(v.analytics)).
		Msg("portfolio opened")
	return nil
}

// Close leaves the portfolio page. Calls still in flight for the view will
// not be applied.
func (w *Workflow) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.view = nil
}

// Analyze shows analytics for the open portfolio, fetching them only when
// the cache has none.
func (w *Workflow) Analyze(ctx context.Context) error {
	return w.analyze(ctx, false)
}

// Reanalyze always fetches fresh analytics and replaces the cached report.
func (w *Workflow) Reanalyze(ctx context.Context) error {
	return w.analyze(ctx, true)
}

func (w *Workflow) analyze(ctx context.Context, refresh bool) error {
	w.mu.Lock()
	v := w.view
	switch {
	case v == nil:
		w.mu.Unlock()
		return ErrNoView
	case v.phase != PhaseReady:
		w.mu.Unlock()
		return ErrNotReady
	case v.analytics == Fetching:
		w.mu.Unlock()
		return ErrAnalysisPending
	case len(v.holdings) == 0:
		w.mu.Unlock()
		return ErrNoHoldings
	}
	v.analytics = Fetching
	v.lastErr = ""
	v.analysisSeq++
	token, seq, id := v.token, v.analysisSeq, v.portfolioID
	w.mu.Unlock()

	fetch := func(ctx context.Context) (json.RawMessage, error) {
		return w.backend.Analyze(ctx, id)
	}
	var entry analytics.Entry
	var err error
	if refresh {
		entry, err = w.cache.Refresh(ctx, id, fetch)
	} else {
		entry, err = w.cache.FetchOrUse(ctx, id, fetch)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	v = w.current(token)
	if v == nil || v.analysisSeq != seq {
		w.logger.Debug().Int64("portfolio_id", id).Msg("analytics result arrived for a view no longer shown")
		return ErrStaleView
	}
	if err != nil {
		v.analytics = FetchFailed
		v.lastErr = err.Error()
		w.logger.Warn().Int64("portfolio_id", id).Err(err).Msg("analytics fetch failed")
		return err
	}
	v.analytics = Cached
	v.entry = &entry
	return nil
}

// ClearAnalysis drops the open portfolio's cached analytics.
func (w *Workflow) ClearAnalysis(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	v := w.view
	if v == nil {
		return ErrNoView
	}
	if err := w.cache.Invalidate(ctx, v.portfolioID); err != nil {
		return err
	}
	w.resetAnalyticsLocked(v)
	return nil
}

// resetAnalyticsLocked returns v to NoAnalytics and orphans any fetch in
// flight for it.
func (w *Workflow) resetAnalyticsLocked(v *view) {
	v.analytics = NoAnalytics
	v.entry = nil
	v.analysisSeq++
}

// readyFor returns the token and portfolio of a loaded view. A non-zero
// want must match the open portfolio.
func (w *Workflow) readyFor(want int64) (uint64, int64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	v := w.view
	if v == nil {
		return 0, 0, ErrNoView
	}
	if want != 0 && v.portfolioID != want {
		return 0, 0, fmt.Errorf("%w: portfolio %d is open, not %d", ErrStaleView, v.portfolioID, want)
	}
	if v.phase != PhaseReady {
		return 0, 0, ErrNotReady
	}
	return v.token, v.portfolioID, nil
}

// resolveSymbol maps user input to the canonical symbol.
func (w *Workflow) resolveSymbol(s string) (symbols.Symbol, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ValidationErrors{{Field: "symbol", Message: "is required"}}
	}
	canonical, ok := w.symbols.Lookup(s)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownSymbol, s)
	}
	return canonical, nil
}

// AddHolding adds a position to the open portfolio. A blank form symbol uses
// the symbol input's current text.
func (w *Workflow) AddHolding(ctx context.Context, form HoldingForm) (*client.Holding, error) {
	return w.AddHoldingIn(ctx, 0, form)
}

// AddHoldingIn is AddHolding that fails with ErrStaleView unless portfolioID
// is the open portfolio. A zero portfolioID accepts whichever is open.
func (w *Workflow) AddHoldingIn(ctx context.Context, portfolioID int64, form HoldingForm) (*client.Holding, error) {
	if err := check(form); err != nil {
		return nil, err
	}
	if strings.TrimSpace(form.Symbol) == "" {
		form.Symbol = w.input.State().Query
	}
	sym, err := w.resolveSymbol(form.Symbol)
	if err != nil {
		return nil, err
	}
	token, id, err := w.readyFor(portfolioID)
	if err != nil {
		return nil, err
	}

	h, err := w.backend.AddHolding(ctx, id, client.HoldingInput{Symbol: sym, Quantity: form.Quantity, AvgCost: form.AvgCost})
	if err != nil {
		w.recordError(token, err)
		return nil, err
	}
	if err := w.afterMutation(ctx, token, id); err != nil {
		return h, err
	}
	w.input.Reset()
	return h, nil
}

// UpdateHolding changes the amounts of a position in the open portfolio.
func (w *Workflow) UpdateHolding(ctx context.Context, holdingID int64, form UpdateForm) (*client.Holding, error) {
	return w.UpdateHoldingIn(ctx, 0, holdingID, form)
}

// UpdateHoldingIn is UpdateHolding pinned to portfolioID, as AddHoldingIn.
func (w *Workflow) UpdateHoldingIn(ctx context.Context, portfolioID, holdingID int64, form UpdateForm) (*client.Holding, error) {
	if err := check(form); err != nil {
		return nil, err
	}
	token, id, err := w.readyFor(portfolioID)
	if err != nil {
		return nil, err
	}

	h, err := w.backend.UpdateHolding(ctx, id, holdingID, client.HoldingInput{Quantity: form.Quantity, AvgCost: form.AvgCost})
	if err != nil {
		w.recordError(token, err)
		return nil, err
	}
	return h, w.afterMutation(ctx, token, id)
}

// DeleteHolding removes a position from the open portfolio.
func (w *Workflow) DeleteHolding(ctx context.Context, holdingID int64) error {
	return w.DeleteHoldingIn(ctx, 0, holdingID)
}

// DeleteHoldingIn is DeleteHolding pinned to portfolioID, as AddHoldingIn.
func (w *Workflow) DeleteHoldingIn(ctx context.Context, portfolioID, holdingID int64) error {
	token, id, err := w.readyFor(portfolioID)
	if err != nil {
		return err
	}
	if err := w.backend.DeleteHolding(ctx, id, holdingID); err != nil {
		w.recordError(token, err)
		return err
	}
	return w.afterMutation(ctx, token, id)
}

// afterMutation invalidates the portfolio's analytics before anything else
// can read them, then reloads its holdings into the view.
func (w *Workflow) afterMutation(ctx context.Context, token uint64, id int64) error {
	w.mu.Lock()
	if err := w.cache.Invalidate(ctx, id); err != nil {
		w.mu.Unlock()
		return err
	}
	if v := w.current(token); v != nil {
		w.resetAnalyticsLocked(v)
		v.lastErr = ""
	}
	w.mu.Unlock()

	holdings, err := w.backend.ListHoldings(ctx, id)

	w.mu.Lock()
	defer w.mu.Unlock()
	v := w.current(token)
	if v == nil {
		return nil
	}
	if err != nil {
		v.lastErr = fmt.Sprintf("reload holdings: %v", err)
		return fmt.Errorf("reload holdings of portfolio %d: %w", id, err)
	}
	v.holdings = holdings
	return nil
}

func (w *Workflow) recordError(token uint64, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if v := w.current(token); v != nil {
		v.lastErr = err.Error()
	}
}

// ListPortfolios returns the user's portfolios.
func (w *Workflow) ListPortfolios(ctx context.Context) ([]client.Portfolio, error) {
	return w.backend.ListPortfolios(ctx)
}

// CreatePortfolio creates an empty portfolio.
func (w *Workflow) CreatePortfolio(ctx context.Context, name string) (*client.Portfolio, error) {
	name = strings.TrimSpace(name)
	if err := check(portfolioForm{Name: name}); err != nil {
		return nil, err
	}
	return w.backend.CreatePortfolio(ctx, name)
}

// DeletePortfolio deletes a portfolio, drops its cached analytics and closes
// it if it is open.
func (w *Workflow) DeletePortfolio(ctx context.Context, id int64) error {
	if err := w.backend.DeletePortfolio(ctx, id); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.cache.Invalidate(ctx, id); err != nil {
		return err
	}
	if w.view != nil && w.view.portfolioID == id {
		w.view = nil
	}
	return nil
}

// Snapshot returns the render-ready state.
func (w *Workflow) Snapshot() Snapshot {
	w.mu.Lock()
	snap := Snapshot{Holdings: []client.Holding{}}
	if v := w.view; v != nil {
		snap.Open = true
		snap.PortfolioID = v.portfolioID
		snap.Phase = v.phase
		snap.Portfolio = v.portfolio
		snap.Analytics = v.analytics
		snap.LastError = v.lastErr
		if v.holdings != nil {
			snap.Holdings = append([]client.Holding(nil), v.holdings...)
		}
		if v.entry != nil {
			snap.Report = v.entry.Payload
			at := v.entry.StoredAt
			snap.AnalyzedAt = &at
		}
	}
	w.mu.Unlock()

	if snap.Report != nil {
		if s, err := analytics.Summarize(snap.Report); err == nil {
			snap.Summary = &s
		}
	}
	snap.Sections = w.sections.Snapshot()
	snap.SymbolInput = w.input.View()
	return snap
}
