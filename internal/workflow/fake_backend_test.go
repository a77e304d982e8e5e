package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"

	"github.com/bobmcallan/optiwealth-portal/internal/client"
)

// fakeBackend is an in-memory OptiWealth backend. Hooks, when set, run
// before the default behavior and may block or fail the call.
type fakeBackend struct {
	mu         sync.Mutex
	portfolios map[int64]*client.Portfolio
	holdings   map[int64][]client.Holding
	reports    map[int64]json.RawMessage
	nextID     int64

	analyzeCalls int
	listCalls    int

	onAnalyze  func(ctx context.Context, id int64) error
	onMutation func() error
	onLoad     func(id int64) error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		portfolios: make(map[int64]*client.Portfolio),
		holdings:   make(map[int64][]client.Holding),
		reports:    make(map[int64]json.RawMessage),
		nextID:     100,
	}
}

func (f *fakeBackend) addPortfolio(id int64, name string, hs ...client.Holding) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.portfolios[id] = &client.Portfolio{ID: id, Name: name}
	f.holdings[id] = hs
	f.reports[id] = json.RawMessage(`{"portfolio":{"profit":1}}`)
}

func (f *fakeBackend) setReport(id int64, report string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports[id] = json.RawMessage(report)
}

func (f *fakeBackend) ListPortfolios(context.Context) ([]client.Portfolio, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]client.Portfolio, 0, len(f.portfolios))
	for _, p := range f.portfolios {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeBackend) GetPortfolio(_ context.Context, id int64) (*client.Portfolio, error) {
	if f.onLoad != nil {
		if err := f.onLoad(id); err != nil {
			return nil, err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.portfolios[id]
	if !ok {
		return nil, &client.APIError{StatusCode: 404, Body: "not found"}
	}
	cp := *p
	return &cp, nil
}

func (f *fakeBackend) CreatePortfolio(_ context.Context, name string) (*client.Portfolio, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	p := &client.Portfolio{ID: f.nextID, Name: name}
	f.portfolios[p.ID] = p
	cp := *p
	return &cp, nil
}

func (f *fakeBackend) DeletePortfolio(_ context.Context, id int64) error {
	if f.onMutation != nil {
		if err := f.onMutation(); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.portfolios[id]; !ok {
		return &client.APIError{StatusCode: 404, Body: "not found"}
	}
	delete(f.portfolios, id)
	delete(f.holdings, id)
	return nil
}

func (f *fakeBackend) ListHoldings(_ context.Context, id int64) ([]client.Holding, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if _, ok := f.portfolios[id]; !ok {
		return nil, &client.APIError{StatusCode: 404, Body: "not found"}
	}
	return append([]client.Holding(nil), f.holdings[id]...), nil
}

func (f *fakeBackend) AddHolding(_ context.Context, id int64, in client.HoldingInput) (*client.Holding, error) {
	if f.onMutation != nil {
		if err := f.onMutation(); err != nil {
			return nil, err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	h := client.Holding{ID: f.nextID, Symbol: in.Symbol, Quantity: in.Quantity, AvgCost: in.AvgCost, PortfolioID: id}
	f.holdings[id] = append(f.holdings[id], h)
	return &h, nil
}

func (f *fakeBackend) UpdateHolding(_ context.Context, id, holdingID int64, in client.HoldingInput) (*client.Holding, error) {
	if f.onMutation != nil {
		if err := f.onMutation(); err != nil {
			return nil, err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, h := range f.holdings[id] {
		if h.ID == holdingID {
			h.Quantity, h.AvgCost = in.Quantity, in.AvgCost
			f.holdings[id][i] = h
			return &h, nil
		}
	}
	return nil, &client.APIError{StatusCode: 404, Body: "holding not found"}
}

func (f *fakeBackend) DeleteHolding(_ context.Context, id, holdingID int64) error {
	if f.onMutation != nil {
		if err := f.onMutation(); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	hs := f.holdings[id]
	for i, h := range hs {
		if h.ID == holdingID {
			f.holdings[id] = append(hs[:i:i], hs[i+1:]...)
			return nil
		}
	}
	return &client.APIError{StatusCode: 404, Body: "holding not found"}
}

func (f *fakeBackend) Analyze(ctx context.Context, id int64) (json.RawMessage, error) {
	if f.onAnalyze != nil {
		if err := f.onAnalyze(ctx, id); err != nil {
			return nil, err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.analyzeCalls++
	r, ok := f.reports[id]
	if !ok {
		return nil, errors.New("no report")
	}
	return r, nil
}
