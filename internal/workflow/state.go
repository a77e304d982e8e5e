package workflow

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/bobmcallan/optiwealth-portal/internal/analytics"
	"github.com/bobmcallan/optiwealth-portal/internal/client"
	"github.com/bobmcallan/optiwealth-portal/internal/disclosure"
	"github.com/bobmcallan/optiwealth-portal/internal/typeahead"
)

var (
	ErrNoView          = errors.New("no portfolio is open")
	ErrNotReady        = errors.New("portfolio is still loading")
	ErrAnalysisPending = errors.New("analysis already in progress")
	ErrNoHoldings      = errors.New("add holdings before analyzing")
	ErrUnknownSymbol   = errors.New("symbol is not in the symbol list")
	// ErrStaleView is returned when a call completed after the user moved to
	// another portfolio or changed this one; its result was not applied.
	ErrStaleView = errors.New("portfolio view changed while the request was in flight")
)

// Phase is the load state of the open portfolio.
type Phase string

const (
	PhaseLoading Phase = "loading"
	PhaseReady   Phase = "ready"
	PhaseFailed  Phase = "load-failed"
)

// AnalyticsState is the analytics sub-state of a ready portfolio.
type AnalyticsState string

const (
	NoAnalytics AnalyticsState = "none"
	Fetching    AnalyticsState = "fetching"
	Cached      AnalyticsState = "cached"
	FetchFailed AnalyticsState = "failed"
)

// view is the open portfolio. token identifies it for the lifetime of one
// Open; analysisSeq tags analytics fetches so that a result from before a
// mutation or clear is not applied.
type view struct {
	token       uint64
	portfolioID int64
	phase       Phase
	portfolio   *client.Portfolio
	holdings    []client.Holding
	analytics   AnalyticsState
	entry       *analytics.Entry
	analysisSeq uint64
	lastErr     string
}

// Snapshot is the render-ready state of the workflow.
type Snapshot struct {
	Open        bool                      `json:"open"`
	PortfolioID int64                     `json:"portfolio_id,omitempty"`
	Phase       Phase                     `json:"phase,omitempty"`
	Portfolio   *client.Portfolio         `json:"portfolio,omitempty"`
	Holdings    []client.Holding          `json:"holdings"`
	Analytics   AnalyticsState            `json:"analytics,omitempty"`
	Report      json.RawMessage           `json:"report,omitempty"`
	Summary     *analytics.Summary        `json:"summary,omitempty"`
	AnalyzedAt  *time.Time                `json:"analyzed_at,omitempty"`
	LastError   string                    `json:"last_error,omitempty"`
	Sections    []disclosure.SectionState `json:"sections"`
	SymbolInput typeahead.View            `json:"symbol_input"`
}
