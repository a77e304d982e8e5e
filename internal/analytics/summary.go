package analytics

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Summary is the headline view of an analytics report. Fields the report
// leaves null or omits are invalid NullDecimals.
type Summary struct {
	PortfolioValue decimal.NullDecimal `json:"portfolio_value"`
	TotalCost      decimal.NullDecimal `json:"total_cost"`
	Profit         decimal.NullDecimal `json:"profit"`
	ProfitPercent  decimal.NullDecimal `json:"profit_percent"`
	SharpeRatio    decimal.NullDecimal `json:"sharpe_ratio"`
	Volatility     decimal.NullDecimal `json:"volatility"`
	ValueAtRisk95  decimal.NullDecimal `json:"value_at_risk_95"`
	MaxDrawdown    decimal.NullDecimal `json:"max_drawdown"`
	Holdings       int                 `json:"holdings"`
	Forecasts      int                 `json:"forecasts"`
}

type report struct {
	Portfolio struct {
		PortfolioValue decimal.NullDecimal `json:"portfolioValue"`
		TotalCost      decimal.NullDecimal `json:"totalCost"`
		Profit         decimal.NullDecimal `json:"profit"`
		ProfitPercent  decimal.NullDecimal `json:"profitPercent"`
		SharpeRatio    decimal.NullDecimal `json:"sharpeRatio"`
		Holdings       []json.RawMessage   `json:"holdings"`
	} `json:"portfolio"`
	RiskMetrics struct {
		PortfolioVolatility decimal.NullDecimal `json:"portfolioVolatility"`
		ValueAtRisk95       decimal.NullDecimal `json:"valueAtRisk95"`
		MaxDrawdown         decimal.NullDecimal `json:"maxDrawdown"`
	} `json:"riskMetrics"`
	Forecasts json.RawMessage `json:"forecasts"`
}

// Summarize extracts the headline numbers from a report payload. The payload
// itself is not modified or re-encoded.
func Summarize(payload json.RawMessage) (Summary, error) {
	var r report
	if err := json.Unmarshal(payload, &r); err != nil {
		return Summary{}, fmt.Errorf("decode analytics report: %w", err)
	}
	return Summary{
		PortfolioValue: r.Portfolio.PortfolioValue,
		TotalCost:      r.Portfolio.TotalCost,
		Profit:         r.Portfolio.Profit,
		ProfitPercent:  r.Portfolio.ProfitPercent,
		SharpeRatio:    r.Portfolio.SharpeRatio,
		Volatility:     r.RiskMetrics.PortfolioVolatility,
		ValueAtRisk95:  r.RiskMetrics.ValueAtRisk95,
		MaxDrawdown:    r.RiskMetrics.MaxDrawdown,
		Holdings:       len(r.Portfolio.Holdings),
		Forecasts:      countForecasts(r.Forecasts),
	}, nil
}

// forecasts is a list or a symbol-keyed object depending on backend version.
func countForecasts(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}
	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err == nil {
		return len(list)
	}
	var byKey map[string]json.RawMessage
	if err := json.Unmarshal(raw, &byKey); err == nil {
		return len(byKey)
	}
	return 0
}

// Format renders d with two decimals, or "-" when absent.
func Format(d decimal.NullDecimal) string {
	if !d.Valid {
		return "-"
	}
	return d.Decimal.StringFixed(2)
}
