package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
)

const (
	testToken  = "tok-asha"
	testReport = `{"portfolio":{"portfolioValue":23153.4,"totalCost":20664.72,"profit":2488.68,"holdings":[{"symbol":"TCS"}]},"riskMetrics":{"maxDrawdown":null},"forecasts":{"TCS":{"trend":"up"}}}`
)

type fakeHolding struct {
	ID       int64   `json:"id"`
	Symbol   string  `json:"symbol"`
	Quantity float64 `json:"quantity"`
	AvgCost  float64 `json:"avgCost"`
}

// fakeOptiWealth is an in-memory stand-in for the OptiWealth REST API.
type fakeOptiWealth struct {
	mu           sync.Mutex
	portfolios   map[int64]string
	holdings     map[int64][]fakeHolding
	nextID       int64
	analyzeCalls int
	failAnalyze  bool
}

func newFakeOptiWealth(t *testing.T) (*fakeOptiWealth, *httptest.Server) {
	t.Helper()
	f := &fakeOptiWealth{
		portfolios: map[int64]string{1: "Long term", 2: "Empty"},
		holdings: map[int64][]fakeHolding{
			1: {{ID: 11, Symbol: "TCS", Quantity: 5, AvgCost: 3200.5}},
		},
		nextID: 100,
	}
	srv := httptest.NewServer(f.routes())
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeOptiWealth) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		var creds map[string]string
		json.NewDecoder(r.Body).Decode(&creds)
		if creds["password"] != "secret" {
			http.Error(w, "Invalid credentials", http.StatusUnauthorized)
			return
		}
		writeFake(w, map[string]interface{}{
			"user":  map[string]interface{}{"id": 4, "username": "asha", "email": creds["email"]},
			"token": testToken,
		})
	})
	mux.HandleFunc("POST /auth/register", func(w http.ResponseWriter, r *http.Request) {
		var reg map[string]string
		json.NewDecoder(r.Body).Decode(&reg)
		writeFake(w, map[string]interface{}{"id": 9, "username": reg["username"], "email": reg["email"]})
	})

	authed := http.NewServeMux()
	authed.HandleFunc("GET /api/portfolios", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		out := []map[string]interface{}{}
		for id, name := range f.portfolios {
			out = append(out, map[string]interface{}{"id": id, "name": name})
		}
		writeFake(w, out)
	})
	authed.HandleFunc("POST /api/portfolios", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		defer f.mu.Unlock()
		f.nextID++
		f.portfolios[f.nextID] = body["name"]
		writeFake(w, map[string]interface{}{"id": f.nextID, "name": body["name"]})
	})
	authed.HandleFunc("GET /api/portfolios/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := pathInt(r, "id")
		f.mu.Lock()
		defer f.mu.Unlock()
		name, ok := f.portfolios[id]
		if !ok {
			http.Error(w, "Portfolio not found", http.StatusNotFound)
			return
		}
		writeFake(w, map[string]interface{}{"id": id, "name": name})
	})
	authed.HandleFunc("DELETE /api/portfolios/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.portfolios, pathInt(r, "id"))
		w.Write([]byte("Portfolio deleted successfully"))
	})
	authed.HandleFunc("GET /api/portfolios/{id}/holdings", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		hs := f.holdings[pathInt(r, "id")]
		if hs == nil {
			hs = []fakeHolding{}
		}
		writeFake(w, hs)
	})
	authed.HandleFunc("POST /api/portfolios/{id}/holdings", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "bad body", http.StatusBadRequest)
			return
		}
		qty, _ := strconv.ParseFloat(body["quantity"], 64)
		cost, _ := strconv.ParseFloat(body["avgCost"], 64)
		id := pathInt(r, "id")
		f.mu.Lock()
		defer f.mu.Unlock()
		f.nextID++
		h := fakeHolding{ID: f.nextID, Symbol: body["symbol"], Quantity: qty, AvgCost: cost}
		f.holdings[id] = append(f.holdings[id], h)
		writeFake(w, h)
	})
	authed.HandleFunc("PUT /api/holdings/{id}", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		id := pathInt(r, "id")
		f.mu.Lock()
		defer f.mu.Unlock()
		for pid, hs := range f.holdings {
			for i := range hs {
				if hs[i].ID == id {
					hs[i].Quantity, _ = strconv.ParseFloat(body["quantity"], 64)
					hs[i].AvgCost, _ = strconv.ParseFloat(body["avgCost"], 64)
					f.holdings[pid] = hs
					writeFake(w, hs[i])
					return
				}
			}
		}
		http.Error(w, "Holding not found", http.StatusNotFound)
	})
	authed.HandleFunc("DELETE /api/holdings/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := pathInt(r, "id")
		f.mu.Lock()
		defer f.mu.Unlock()
		for pid, hs := range f.holdings {
			for i := range hs {
				if hs[i].ID == id {
					f.holdings[pid] = append(hs[:i:i], hs[i+1:]...)
					w.Write([]byte("Holding deleted successfully"))
					return
				}
			}
		}
		http.Error(w, "Holding not found", http.StatusNotFound)
	})
	authed.HandleFunc("POST /api/analytics/{id}/analyze", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.analyzeCalls++
		if f.failAnalyze {
			http.Error(w, "analytics service unavailable", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(testReport))
	})
	authed.HandleFunc("GET /api/top-picks", func(w http.ResponseWriter, r *http.Request) {
		writeFake(w, []map[string]interface{}{{"id": 1, "symbol": "INFY", "score": 8.5}})
	})
	authed.HandleFunc("GET /api/market/price/{symbol}", func(w http.ResponseWriter, r *http.Request) {
		writeFake(w, map[string]interface{}{"symbol": r.PathValue("symbol"), "price": 1520.25})
	})

	mux.Handle("/api/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+testToken {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		authed.ServeHTTP(w, r)
	}))
	return mux
}

func (f *fakeOptiWealth) setFailAnalyze(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failAnalyze = fail
}

func (f *fakeOptiWealth) analyzeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.analyzeCalls
}

func pathInt(r *http.Request, name string) int64 {
	n, _ := strconv.ParseInt(r.PathValue(name), 10, 64)
	return n
}

func writeFake(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
