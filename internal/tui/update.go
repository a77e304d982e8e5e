package tui

import (
	"errors"
	"strings"

	"github.com/bobmcallan/optiwealth-portal/internal/disclosure"
	"github.com/bobmcallan/optiwealth-portal/internal/typeahead"
	"github.com/bobmcallan/optiwealth-portal/internal/workflow"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case portfoliosMsg:
		m.busy = false
		if msg.err != nil {
			m.err = msg.err.Error()
			return m, nil
		}
		m.err = ""
		m.portfolios = msg.list
		if m.listCursor >= len(m.portfolios) {
			m.listCursor = max(len(m.portfolios)-1, 0)
		}
		return m, nil

	case picksMsg:
		m.busy = false
		if msg.err != nil {
			m.err = msg.err.Error()
			return m, nil
		}
		m.err = ""
		m.topPicks = msg.picks
		return m, nil

	case opMsg:
		return m.finishOp(msg), nil

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) && (m.screen != screenForm || msg.String() == "ctrl+c") {
			return m, tea.Quit
		}
		switch m.screen {
		case screenList:
			return m.updateList(msg)
		case screenPortfolio:
			return m.updatePortfolio(msg)
		case screenForm:
			return m.updateForm(msg)
		case screenPicks:
			if key.Matches(msg, keys.Back) {
				m.screen = screenList
			}
		}
	}
	return m, nil
}

func (m Model) finishOp(msg opMsg) Model {
	m.busy = false
	m.snap = m.wf.Snapshot()
	if m.holdingCursor >= len(m.snap.Holdings) {
		m.holdingCursor = max(len(m.snap.Holdings)-1, 0)
	}
	if msg.err != nil {
		m.err = describe(msg.err)
		m.status = ""
		return m
	}
	m.err = ""
	switch msg.action {
	case "open":
		m.screen = screenPortfolio
		m.holdingCursor = 0
		m.status = ""
	case "add":
		m.screen = screenPortfolio
		m.resetForm()
		m.status = "holding added, analysis cleared"
	case "delete":
		m.status = "holding deleted, analysis cleared"
	case "analyze":
		m.status = "analysis ready"
	case "clear":
		m.status = "analysis cleared"
	}
	return m
}

func (m Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Up):
		if m.listCursor > 0 {
			m.listCursor--
		}
	case key.Matches(msg, keys.Down):
		if m.listCursor < len(m.portfolios)-1 {
			m.listCursor++
		}
	case key.Matches(msg, keys.Select):
		if m.busy || len(m.portfolios) == 0 {
			return m, nil
		}
		id := m.portfolios[m.listCursor].ID
		m.busy = true
		return m, runOp("open", func() error { return m.wf.Open(m.ctx, id) })
	case key.Matches(msg, keys.Reload):
		m.busy = true
		return m, fetchPortfolios(m.ctx, m.wf)
	case key.Matches(msg, keys.ShowPicks):
		if m.picks == nil {
			return m, nil
		}
		m.screen = screenPicks
		m.busy = true
		return m, fetchPicks(m.ctx, m.picks)
	}
	return m, nil
}

func (m Model) updatePortfolio(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.busy {
		return m, nil
	}
	switch {
	case key.Matches(msg, keys.Back):
		m.wf.Close()
		m.snap = m.wf.Snapshot()
		m.screen = screenList
		m.status = ""
		m.err = ""
		return m, fetchPortfolios(m.ctx, m.wf)
	case key.Matches(msg, keys.Up):
		if m.holdingCursor > 0 {
			m.holdingCursor--
		}
	case key.Matches(msg, keys.Down):
		if m.holdingCursor < len(m.snap.Holdings)-1 {
			m.holdingCursor++
		}
	case key.Matches(msg, keys.Analyze):
		m.busy = true
		m.status = "analyzing..."
		return m, runOp("analyze", func() error { return m.wf.Analyze(m.ctx) })
	case key.Matches(msg, keys.Refresh):
		m.busy = true
		m.status = "re-running analysis..."
		return m, runOp("analyze", func() error { return m.wf.Reanalyze(m.ctx) })
	case key.Matches(msg, keys.Clear):
		m.busy = true
		return m, runOp("clear", func() error { return m.wf.ClearAnalysis(m.ctx) })
	case key.Matches(msg, keys.Delete):
		if len(m.snap.Holdings) == 0 {
			return m, nil
		}
		id := m.snap.Holdings[m.holdingCursor].ID
		m.busy = true
		return m, runOp("delete", func() error { return m.wf.DeleteHolding(m.ctx, id) })
	case key.Matches(msg, keys.Toggle):
		i := int(msg.String()[0] - '1')
		if i >= 0 && i < len(disclosure.Sections) {
			m.wf.Sections().Toggle(disclosure.Sections[i])
			m.snap = m.wf.Snapshot()
		}
	case key.Matches(msg, keys.AddNew):
		m.screen = screenForm
		m.err = ""
		m.status = ""
		m.focusField(fieldSymbol)
		m.wf.SymbolInput().Focus()
		m.snap = m.wf.Snapshot()
	}
	return m, nil
}

func (m Model) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.busy {
		return m, nil
	}
	input := m.wf.SymbolInput()

	if m.focus == fieldSymbol {
		switch {
		case key.Matches(msg, formKeys.Down):
			input.MoveHighlight(typeahead.Next)
			m.snap = m.wf.Snapshot()
			return m, nil
		case key.Matches(msg, formKeys.Up):
			input.MoveHighlight(typeahead.Previous)
			m.snap = m.wf.Snapshot()
			return m, nil
		case key.Matches(msg, formKeys.Enter):
			// Enter commits the highlighted match, or moves on when the
			// list is closed.
			if sym, ok := input.Commit(); ok {
				m.inputs[fieldSymbol].SetValue(sym)
				m.inputs[fieldSymbol].CursorEnd()
			} else if input.View().Open {
				return m, nil
			}
			m.snap = m.wf.Snapshot()
			m.focusField(fieldQuantity)
			return m, nil
		case key.Matches(msg, formKeys.Esc):
			if input.View().Open {
				input.Dismiss()
				m.snap = m.wf.Snapshot()
				return m, nil
			}
		}
	}

	switch {
	case key.Matches(msg, formKeys.Esc):
		m.screen = screenPortfolio
		m.err = ""
		input.Dismiss()
		m.snap = m.wf.Snapshot()
		return m, nil
	case key.Matches(msg, formKeys.Tab):
		if m.focus == fieldSymbol {
			input.Dismiss()
		}
		next := (m.focus + 1) % fieldCount
		if msg.String() == "shift+tab" {
			next = (m.focus + fieldCount - 1) % fieldCount
		}
		m.focusField(next)
		if next == fieldSymbol {
			input.Focus()
		}
		m.snap = m.wf.Snapshot()
		return m, nil
	case key.Matches(msg, formKeys.Enter):
		if m.focus != fieldCost {
			m.focusField(m.focus + 1)
			return m, nil
		}
		return m.submitForm()
	}

	var cmd tea.Cmd
	before := m.inputs[m.focus].Value()
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	if m.focus == fieldSymbol && m.inputs[fieldSymbol].Value() != before {
		input.SetQuery(m.inputs[fieldSymbol].Value())
		m.snap = m.wf.Snapshot()
	}
	return m, cmd
}

func (m Model) submitForm() (tea.Model, tea.Cmd) {
	q, err := workflow.ParseDecimal("quantity", m.inputs[fieldQuantity].Value())
	if err != nil {
		m.err = describe(err)
		m.focusField(fieldQuantity)
		return m, nil
	}
	c, err := workflow.ParseDecimal("avg_cost", m.inputs[fieldCost].Value())
	if err != nil {
		m.err = describe(err)
		return m, nil
	}
	form := workflow.HoldingForm{
		Symbol:   strings.TrimSpace(m.inputs[fieldSymbol].Value()),
		Quantity: q,
		AvgCost:  c,
	}
	m.busy = true
	m.err = ""
	return m, runOp("add", func() error {
		_, err := m.wf.AddHolding(m.ctx, form)
		return err
	})
}

func (m *Model) focusField(i int) {
	for j := range m.inputs {
		if j == i {
			m.inputs[j].Focus()
		} else {
			m.inputs[j].Blur()
		}
	}
	m.focus = i
}

func (m *Model) resetForm() {
	for i := range m.inputs {
		m.inputs[i].SetValue("")
		m.inputs[i].Blur()
	}
	m.focus = fieldSymbol
}

// describe turns workflow errors into one status line.
func describe(err error) string {
	switch {
	case errors.Is(err, workflow.ErrNoHoldings):
		return "add a holding before running analysis"
	case errors.Is(err, workflow.ErrUnknownSymbol):
		return "pick a symbol from the list"
	}
	return err.Error()
}
