package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bobmcallan/optiwealth-portal/internal/analytics"
	"github.com/bobmcallan/optiwealth-portal/internal/client"
	"github.com/bobmcallan/optiwealth-portal/internal/common"
	"github.com/bobmcallan/optiwealth-portal/internal/config"
	"github.com/bobmcallan/optiwealth-portal/internal/disclosure"
	"github.com/bobmcallan/optiwealth-portal/internal/storage/badger"
	"github.com/bobmcallan/optiwealth-portal/internal/symbols"
	"github.com/bobmcallan/optiwealth-portal/internal/typeahead"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	backend  *fakeBackend
	store    *analytics.Store
	workflow *Workflow
}

func holding(id int64, sym string, qty int64) client.Holding {
	return client.Holding{ID: id, Symbol: sym, Quantity: decimal.NewFromInt(qty), AvgCost: decimal.NewFromInt(100)}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	m, err := badger.NewManager(common.NewSilentLogger(), &config.BadgerConfig{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })

	backend := newFakeBackend()
	backend.addPortfolio(3, "Growth", holding(31, "TCS", 5))
	backend.addPortfolio(5, "Income", holding(51, "INFY", 10))
	backend.addPortfolio(7, "Core", holding(71, "RELIANCE", 2), holding(72, "TATAMOTORS", 8))
	backend.addPortfolio(9, "Empty")

	store := analytics.NewStore(m.KeyValueStorage(), "sess-test", time.Hour, nil)
	idx := symbols.NewIndex([]symbols.Symbol{"TCS", "INFY", "RELIANCE", "TATAMOTORS", "TATASTEEL"})
	w := New(Deps{
		Backend:  backend,
		Cache:    store,
		Symbols:  idx,
		Sections: disclosure.New(false),
	})
	return &fixture{backend: backend, store: store, workflow: w}
}

func qty(n int64) decimal.Decimal { return decimal.NewFromInt(n) }

func TestOpen_LoadsPortfolioAndHoldings(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.workflow.Open(context.Background(), 7))

	snap := f.workflow.Snapshot()
	assert.True(t, snap.Open)
	assert.Equal(t, PhaseReady, snap.Phase)
	assert.Equal(t, "Core", snap.Portfolio.Name)
	assert.Len(t, snap.Holdings, 2)
	assert.Equal(t, NoAnalytics, snap.Analytics)
	assert.Nil(t, snap.Report)
}

func TestOpen_UsesCachedAnalytics(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.store.Put(ctx, 7, []byte(`{"portfolio":{"profit":42}}`))
	require.NoError(t, err)

	require.NoError(t, f.workflow.Open(ctx, 7))
	snap := f.workflow.Snapshot()
	assert.Equal(t, Cached, snap.Analytics)
	assert.JSONEq(t, `{"portfolio":{"profit":42}}`, string(snap.Report))
	require.NotNil(t, snap.Summary)
	assert.Equal(t, "42.00", analytics.Format(snap.Summary.Profit))
	assert.Equal(t, 0, f.backend.analyzeCalls)
}

func TestOpen_NotFound(t *testing.T) {
	f := newFixture(t)
	err := f.workflow.Open(context.Background(), 404)
	require.Error(t, err)
	assert.True(t, errors.Is(err, client.ErrNotFound))

	snap := f.workflow.Snapshot()
	assert.Equal(t, PhaseFailed, snap.Phase)
	assert.NotEmpty(t, snap.LastError)
	assert.ErrorIs(t, f.workflow.Analyze(context.Background()), ErrNotReady)
}

func TestOpen_ResetsSectionsAndInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.workflow.Open(ctx, 7))
	_, err := f.workflow.Sections().Toggle(disclosure.Risk)
	require.NoError(t, err)
	f.workflow.SymbolInput().SetQuery("TA")

	require.NoError(t, f.workflow.Open(ctx, 5))
	for _, s := range f.workflow.Snapshot().Sections {
		assert.True(t, s.Expanded, s.Name)
	}
	assert.Empty(t, f.workflow.SymbolInput().View().Query)
}

func TestAnalyze_FetchesThenCaches(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.workflow.Open(ctx, 7))

	require.NoError(t, f.workflow.Analyze(ctx))
	assert.Equal(t, Cached, f.workflow.Snapshot().Analytics)
	_, ok := f.store.Get(ctx, 7)
	assert.True(t, ok)

	require.NoError(t, f.workflow.Analyze(ctx))
	assert.Equal(t, 1, f.backend.analyzeCalls, "second analyze should be served from cache")

	require.NoError(t, f.workflow.Reanalyze(ctx))
	assert.Equal(t, 2, f.backend.analyzeCalls, "reanalyze always fetches")
}

func TestAnalyze_RequiresView(t *testing.T) {
	f := newFixture(t)
	assert.ErrorIs(t, f.workflow.Analyze(context.Background()), ErrNoView)
}

func TestAnalyze_RejectsEmptyPortfolio(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.workflow.Open(ctx, 9))
	assert.ErrorIs(t, f.workflow.Analyze(ctx), ErrNoHoldings)
	assert.Equal(t, 0, f.backend.analyzeCalls)
}

func TestAnalyze_FailureIsRecoverable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.workflow.Open(ctx, 7))

	boom := errors.New("analytics service down")
	f.backend.onAnalyze = func(context.Context, int64) error { return boom }
	assert.ErrorIs(t, f.workflow.Analyze(ctx), boom)

	snap := f.workflow.Snapshot()
	assert.Equal(t, FetchFailed, snap.Analytics)
	assert.Contains(t, snap.LastError, "analytics service down")
	_, ok := f.store.Get(ctx, 7)
	assert.False(t, ok, "failed fetch must not populate the cache")

	f.backend.onAnalyze = nil
	require.NoError(t, f.workflow.Analyze(ctx))
	snap = f.workflow.Snapshot()
	assert.Equal(t, Cached, snap.Analytics)
	assert.Empty(t, snap.LastError)
}

func TestAnalyze_PendingRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.workflow.Open(ctx, 7))

	started := make(chan struct{})
	release := make(chan struct{})
	f.backend.onAnalyze = func(context.Context, int64) error {
		close(started)
		<-release
		return nil
	}

	done := make(chan error, 1)
	go func() { done <- f.workflow.Analyze(ctx) }()
	<-started

	assert.Equal(t, Fetching, f.workflow.Snapshot().Analytics)
	assert.ErrorIs(t, f.workflow.Analyze(ctx), ErrAnalysisPending)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, Cached, f.workflow.Snapshot().Analytics)
}

// Portfolio 7 has cached analytics; adding a holding to it leaves the cache
// empty for 7 before AddHolding returns.
func TestAddHolding_InvalidatesCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.workflow.Open(ctx, 7))
	require.NoError(t, f.workflow.Analyze(ctx))
	_, ok := f.store.Get(ctx, 7)
	require.True(t, ok)

	h, err := f.workflow.AddHolding(ctx, HoldingForm{Symbol: "tatasteel", Quantity: qty(4), AvgCost: qty(120)})
	require.NoError(t, err)
	assert.Equal(t, "TATASTEEL", h.Symbol)

	_, ok = f.store.Get(ctx, 7)
	assert.False(t, ok, "cache must be invalidated after a successful add")

	snap := f.workflow.Snapshot()
	assert.Equal(t, NoAnalytics, snap.Analytics)
	assert.Nil(t, snap.Report)
	assert.Len(t, snap.Holdings, 3)
}

func TestAddHolding_LeavesOtherPortfoliosCached(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.Put(ctx, 5, []byte(`{"id":5}`))

	require.NoError(t, f.workflow.Open(ctx, 7))
	_, err := f.workflow.AddHolding(ctx, HoldingForm{Symbol: "TCS", Quantity: qty(1), AvgCost: qty(1)})
	require.NoError(t, err)

	_, ok := f.store.Get(ctx, 5)
	assert.True(t, ok)
}

func TestAddHolding_UsesSymbolInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.workflow.Open(ctx, 7))

	in := f.workflow.SymbolInput()
	in.SetQuery("infy")
	in.MoveHighlight(typeahead.Next)
	_, ok := in.Commit()
	require.True(t, ok)

	h, err := f.workflow.AddHolding(ctx, HoldingForm{Quantity: qty(3), AvgCost: qty(1500)})
	require.NoError(t, err)
	assert.Equal(t, "INFY", h.Symbol)
	assert.Empty(t, in.View().Query, "symbol input is cleared after a successful add")
}

func TestAddHolding_FailureKeepsState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.workflow.Open(ctx, 7))
	require.NoError(t, f.workflow.Analyze(ctx))
	f.workflow.SymbolInput().SetQuery("TCS")

	boom := &client.APIError{StatusCode: 500, Body: "db down"}
	f.backend.onMutation = func() error { return boom }

	_, err := f.workflow.AddHolding(ctx, HoldingForm{Quantity: qty(1), AvgCost: qty(1)})
	require.Error(t, err)

	_, ok := f.store.Get(ctx, 7)
	assert.True(t, ok, "failed mutation must not invalidate")
	snap := f.workflow.Snapshot()
	assert.Equal(t, Cached, snap.Analytics)
	assert.Len(t, snap.Holdings, 2)
	assert.Equal(t, "TCS", snap.SymbolInput.Query)
	assert.Contains(t, snap.LastError, "db down")
}

func TestAddHolding_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.workflow.Open(ctx, 7))

	_, err := f.workflow.AddHolding(ctx, HoldingForm{Symbol: "TCS", Quantity: qty(0), AvgCost: qty(-1)})
	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	fields := map[string]string{}
	for _, v := range verrs {
		fields[v.Field] = v.Message
	}
	assert.Equal(t, "must be greater than 0", fields["quantity"])
	assert.Equal(t, "must be at least 0", fields["avg_cost"])

	_, err = f.workflow.AddHolding(ctx, HoldingForm{Symbol: "NOPE", Quantity: qty(1), AvgCost: qty(1)})
	assert.ErrorIs(t, err, ErrUnknownSymbol)

	_, err = f.workflow.AddHolding(ctx, HoldingForm{Quantity: qty(1), AvgCost: qty(1)})
	require.ErrorAs(t, err, &verrs)
	assert.Equal(t, "symbol", verrs[0].Field)
}

func TestAddHolding_DecimalPrecisionPreserved(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.workflow.Open(ctx, 9))

	cost := decimal.RequireFromString("357.0625")
	h, err := f.workflow.AddHolding(ctx, HoldingForm{Symbol: "TCS", Quantity: decimal.RequireFromString("0.5"), AvgCost: cost})
	require.NoError(t, err)
	assert.True(t, h.AvgCost.Equal(cost))
}

func TestUpdateAndDeleteHolding_Invalidate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.workflow.Open(ctx, 7))

	require.NoError(t, f.workflow.Analyze(ctx))
	_, err := f.workflow.UpdateHolding(ctx, 71, UpdateForm{Quantity: qty(9), AvgCost: qty(2500)})
	require.NoError(t, err)
	_, ok := f.store.Get(ctx, 7)
	assert.False(t, ok)
	assert.Equal(t, NoAnalytics, f.workflow.Snapshot().Analytics)

	require.NoError(t, f.workflow.Analyze(ctx))
	require.NoError(t, f.workflow.DeleteHolding(ctx, 72))
	_, ok = f.store.Get(ctx, 7)
	assert.False(t, ok)
	assert.Len(t, f.workflow.Snapshot().Holdings, 1)
}

func TestUpdateHolding_NotFoundDoesNotInvalidate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.workflow.Open(ctx, 7))
	require.NoError(t, f.workflow.Analyze(ctx))

	_, err := f.workflow.UpdateHolding(ctx, 999, UpdateForm{Quantity: qty(1), AvgCost: qty(1)})
	assert.ErrorIs(t, err, client.ErrNotFound)
	_, ok := f.store.Get(ctx, 7)
	assert.True(t, ok)
}

func TestMutation_RequiresReadyView(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.workflow.AddHolding(ctx, HoldingForm{Symbol: "TCS", Quantity: qty(1), AvgCost: qty(1)})
	assert.ErrorIs(t, err, ErrNoView)
	assert.ErrorIs(t, f.workflow.DeleteHolding(ctx, 1), ErrNoView)
}

// Another request opened portfolio 5 after a mutation for portfolio 7 made
// sure 7 was open: the mutation must not land in 5.
func TestMutationIn_RejectsOtherOpenPortfolio(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.workflow.Open(ctx, 5))

	_, err := f.workflow.AddHoldingIn(ctx, 7, HoldingForm{Symbol: "TCS", Quantity: qty(1), AvgCost: qty(1)})
	assert.ErrorIs(t, err, ErrStaleView)
	_, err = f.workflow.UpdateHoldingIn(ctx, 7, 51, UpdateForm{Quantity: qty(2), AvgCost: qty(1)})
	assert.ErrorIs(t, err, ErrStaleView)
	assert.ErrorIs(t, f.workflow.DeleteHoldingIn(ctx, 7, 51), ErrStaleView)

	hs, err := f.backend.ListHoldings(ctx, 5)
	require.NoError(t, err)
	require.Len(t, hs, 1)
	assert.True(t, hs[0].Quantity.Equal(qty(10)))
	hs, err = f.backend.ListHoldings(ctx, 7)
	require.NoError(t, err)
	assert.Len(t, hs, 2)

	_, err = f.workflow.AddHoldingIn(ctx, 5, HoldingForm{Symbol: "TCS", Quantity: qty(1), AvgCost: qty(1)})
	require.NoError(t, err)
	assert.Len(t, f.workflow.Snapshot().Holdings, 2)
}

// A fetch for portfolio 3 is in flight when the user opens portfolio 5: its
// result must not appear in portfolio 5's view.
func TestAnalyze_NavigationDiscardsLateResult(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.workflow.Open(ctx, 3))
	f.backend.setReport(3, `{"portfolio":{"profit":3}}`)

	started := make(chan struct{})
	release := make(chan struct{})
	f.backend.onAnalyze = func(_ context.Context, id int64) error {
		if id == 3 {
			close(started)
			<-release
		}
		return nil
	}

	done := make(chan error, 1)
	go func() { done <- f.workflow.Analyze(ctx) }()
	<-started

	require.NoError(t, f.workflow.Open(ctx, 5))
	close(release)
	assert.ErrorIs(t, <-done, ErrStaleView)

	snap := f.workflow.Snapshot()
	assert.Equal(t, int64(5), snap.PortfolioID)
	assert.Equal(t, NoAnalytics, snap.Analytics)
	assert.Nil(t, snap.Report)

	// The result still belongs to portfolio 3 and is cached under its id.
	entry, ok := f.store.Get(ctx, 3)
	require.True(t, ok)
	assert.JSONEq(t, `{"portfolio":{"profit":3}}`, string(entry.Payload))
	_, ok = f.store.Get(ctx, 5)
	assert.False(t, ok)
}

func TestAnalyze_MutationDuringFetchDiscardsResult(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.workflow.Open(ctx, 7))

	started := make(chan struct{})
	release := make(chan struct{})
	f.backend.onAnalyze = func(context.Context, int64) error {
		close(started)
		<-release
		return nil
	}

	done := make(chan error, 1)
	go func() { done <- f.workflow.Analyze(ctx) }()
	<-started

	_, err := f.workflow.AddHolding(ctx, HoldingForm{Symbol: "TCS", Quantity: qty(1), AvgCost: qty(1)})
	require.NoError(t, err)
	close(release)
	assert.ErrorIs(t, <-done, ErrStaleView)

	_, ok := f.store.Get(ctx, 7)
	assert.False(t, ok, "pre-mutation analytics must not be cached")
	assert.Equal(t, NoAnalytics, f.workflow.Snapshot().Analytics)
}

func TestClearAnalysis(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	assert.ErrorIs(t, f.workflow.ClearAnalysis(ctx), ErrNoView)

	require.NoError(t, f.workflow.Open(ctx, 7))
	require.NoError(t, f.workflow.Analyze(ctx))
	require.NoError(t, f.workflow.ClearAnalysis(ctx))

	_, ok := f.store.Get(ctx, 7)
	assert.False(t, ok)
	assert.Equal(t, NoAnalytics, f.workflow.Snapshot().Analytics)
}

func TestPortfolioCRUD(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.workflow.CreatePortfolio(ctx, "  Retirement ")
	require.NoError(t, err)
	assert.Equal(t, "Retirement", p.Name)

	_, err = f.workflow.CreatePortfolio(ctx, "   ")
	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Equal(t, "name", verrs[0].Field)

	list, err := f.workflow.ListPortfolios(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 5)

	require.NoError(t, f.workflow.Open(ctx, 7))
	f.store.Put(ctx, 7, []byte(`{}`))
	require.NoError(t, f.workflow.DeletePortfolio(ctx, 7))
	assert.False(t, f.workflow.Snapshot().Open, "deleting the open portfolio closes it")
	_, ok := f.store.Get(ctx, 7)
	assert.False(t, ok)
}

func TestClose(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.workflow.Open(ctx, 7))
	f.workflow.Close()

	snap := f.workflow.Snapshot()
	assert.False(t, snap.Open)
	assert.NotNil(t, snap.Holdings)
	assert.Len(t, snap.Sections, len(disclosure.Sections))
}

func TestParseDecimal(t *testing.T) {
	d, err := ParseDecimal("quantity", " 12.5 ")
	require.NoError(t, err)
	assert.Equal(t, "12.5", d.String())

	_, err = ParseDecimal("quantity", "")
	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Equal(t, "is required", verrs[0].Message)

	_, err = ParseDecimal("avg_cost", "12,5")
	require.ErrorAs(t, err, &verrs)
	assert.Equal(t, "avg_cost", verrs[0].Field)
}
