package tui

import (
	"fmt"
	"strings"

	"github.com/bobmcallan/optiwealth-portal/internal/analytics"
	"github.com/bobmcallan/optiwealth-portal/internal/workflow"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	headerStyle   = lipgloss.NewStyle().Bold(true).Underline(true)
	cursorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	profitStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	lossStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	dropdownStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	pageStyle     = lipgloss.NewStyle().Padding(1, 2)
)

func (m Model) View() string {
	var body string
	switch m.screen {
	case screenList:
		body = m.viewList()
	case screenPortfolio:
		body = m.viewPortfolio()
	case screenForm:
		body = m.viewForm()
	case screenPicks:
		body = m.viewPicks()
	}

	var footer []string
	if m.err != "" {
		footer = append(footer, errorStyle.Render(m.err))
	}
	if m.status != "" {
		footer = append(footer, statusStyle.Render(m.status))
	}
	if m.busy {
		footer = append(footer, mutedStyle.Render("working..."))
	}
	footer = append(footer, mutedStyle.Render(m.help()))

	return pageStyle.Render(body + "\n\n" + strings.Join(footer, "\n"))
}

func (m Model) help() string {
	switch m.screen {
	case screenPortfolio:
		return "a analyze · r re-run · c clear · n new holding · x delete · 1-5 sections · esc back · q quit"
	case screenForm:
		return "type to search · ↑/↓ highlight · enter select · tab next field · esc back"
	case screenPicks:
		return "esc back · q quit"
	}
	return "↑/↓ move · enter open · t top picks · g reload · q quit"
}

func (m Model) viewList() string {
	var b strings.Builder
	title := "Portfolios"
	if m.user != "" {
		title += mutedStyle.Render("  " + m.user)
	}
	b.WriteString(titleStyle.Render(title) + "\n\n")
	if len(m.portfolios) == 0 {
		b.WriteString(mutedStyle.Render("No portfolios yet."))
		return b.String()
	}
	for i, p := range m.portfolios {
		line := fmt.Sprintf("%-4d %s", p.ID, p.Name)
		if i == m.listCursor {
			b.WriteString(cursorStyle.Render("> "+line) + "\n")
		} else {
			b.WriteString("  " + line + "\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m Model) viewPortfolio() string {
	s := m.snap
	var b strings.Builder

	name := fmt.Sprintf("Portfolio %d", s.PortfolioID)
	if s.Portfolio != nil {
		name = s.Portfolio.Name
	}
	b.WriteString(titleStyle.Render(name) + "\n\n")

	b.WriteString(headerStyle.Render("Holdings") + "\n")
	if len(s.Holdings) == 0 {
		b.WriteString(mutedStyle.Render("No holdings. Press n to add one.") + "\n")
	}
	for i, h := range s.Holdings {
		line := fmt.Sprintf("%-12s %10s @ %10s", h.Symbol, h.Quantity.String(), h.AvgCost.StringFixed(2))
		if i == m.holdingCursor {
			b.WriteString(cursorStyle.Render("> "+line) + "\n")
		} else {
			b.WriteString("  " + line + "\n")
		}
	}

	b.WriteString("\n" + headerStyle.Render("Analytics") + "  " + analyticsLabel(s) + "\n")
	if s.Summary != nil {
		b.WriteString(renderSummary(*s.Summary))
	}

	b.WriteString("\n" + headerStyle.Render("Sections") + "\n")
	for i, sec := range s.Sections {
		mark := "▸"
		if sec.Expanded {
			mark = "▾"
		}
		b.WriteString(fmt.Sprintf("%d %s %s\n", i+1, mark, sec.Name))
	}
	return strings.TrimRight(b.String(), "\n")
}

func analyticsLabel(s workflow.Snapshot) string {
	switch s.Analytics {
	case workflow.Cached:
		if s.AnalyzedAt != nil {
			return statusStyle.Render("cached " + s.AnalyzedAt.Format("15:04:05"))
		}
		return statusStyle.Render("cached")
	case workflow.Fetching:
		return mutedStyle.Render("running...")
	case workflow.FetchFailed:
		msg := "failed"
		if s.LastError != "" {
			msg += ": " + s.LastError
		}
		return errorStyle.Render(msg)
	}
	return mutedStyle.Render("not run (press a)")
}

func renderSummary(sum analytics.Summary) string {
	profit := analytics.Format(sum.Profit)
	style := profitStyle
	if sum.Profit.Valid && sum.Profit.Decimal.IsNegative() {
		style = lossStyle
	}
	rows := []string{
		fmt.Sprintf("  Value      %s", analytics.Format(sum.PortfolioValue)),
		fmt.Sprintf("  Cost       %s", analytics.Format(sum.TotalCost)),
		fmt.Sprintf("  Profit     %s (%s%%)", style.Render(profit), analytics.Format(sum.ProfitPercent)),
		fmt.Sprintf("  Sharpe     %s", analytics.Format(sum.SharpeRatio)),
		fmt.Sprintf("  Volatility %s", analytics.Format(sum.Volatility)),
		fmt.Sprintf("  Drawdown   %s", analytics.Format(sum.MaxDrawdown)),
	}
	return strings.Join(rows, "\n") + "\n"
}

func (m Model) viewForm() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Add holding") + "\n\n")
	b.WriteString(m.inputs[fieldSymbol].View() + "\n")

	v := m.snap.SymbolInput
	if v.Open {
		var rows []string
		for i, sym := range v.Matches {
			if i == v.Highlight {
				rows = append(rows, cursorStyle.Render("> "+sym))
			} else {
				rows = append(rows, "  "+sym)
			}
		}
		if v.Notice != "" {
			rows = append(rows, mutedStyle.Render(v.Notice))
		}
		b.WriteString(dropdownStyle.Render(strings.Join(rows, "\n")) + "\n")
	} else if v.NoResults {
		b.WriteString(mutedStyle.Render("  "+v.Notice) + "\n")
	}

	b.WriteString(m.inputs[fieldQuantity].View() + "\n")
	b.WriteString(m.inputs[fieldCost].View())
	return b.String()
}

func (m Model) viewPicks() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Top picks") + "\n\n")
	if len(m.topPicks) == 0 {
		b.WriteString(mutedStyle.Render("No picks available."))
		return b.String()
	}
	for _, p := range m.topPicks {
		score := "-"
		if p.Score != nil {
			score = fmt.Sprintf("%.1f", *p.Score)
		}
		b.WriteString(fmt.Sprintf("%-12s %-28s score %s\n", p.Symbol, p.CompanyName, score))
	}
	return strings.TrimRight(b.String(), "\n")
}
