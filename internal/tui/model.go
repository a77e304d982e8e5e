// Package tui is the terminal client: the portfolio list, the portfolio page
// with its analytics sections, and the add-holding form with a symbol
// typeahead, all driven through the same workflow the portal serves.
package tui

import (
	"context"

	"github.com/bobmcallan/optiwealth-portal/internal/client"
	"github.com/bobmcallan/optiwealth-portal/internal/workflow"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

type screen int

const (
	screenList screen = iota
	screenPortfolio
	screenForm
	screenPicks
)

// Form fields in tab order.
const (
	fieldSymbol = iota
	fieldQuantity
	fieldCost
	fieldCount
)

// PicksFunc fetches the backend's top picks.
type PicksFunc func(ctx context.Context) ([]client.TopPick, error)

// Options configure a Model.
type Options struct {
	Workflow *workflow.Workflow
	Picks    PicksFunc
	User     string
}

type Model struct {
	ctx   context.Context
	wf    *workflow.Workflow
	picks PicksFunc
	user  string

	screen screen
	busy   bool
	status string
	err    string

	// Data
	portfolios []client.Portfolio
	topPicks   []client.TopPick
	snap       workflow.Snapshot

	// UI state
	listCursor    int
	holdingCursor int
	width         int

	// Form
	inputs []textinput.Model
	focus  int
}

// Messages

type portfoliosMsg struct {
	list []client.Portfolio
	err  error
}

// opMsg reports a finished workflow call; the page is re-read from the
// workflow's snapshot afterwards.
type opMsg struct {
	action string
	err    error
}

type picksMsg struct {
	picks []client.TopPick
	err   error
}

func NewModel(ctx context.Context, opts Options) Model {
	inputs := make([]textinput.Model, fieldCount)
	for i := range inputs {
		ti := textinput.New()
		ti.CharLimit = 32
		ti.Width = 24
		inputs[i] = ti
	}
	inputs[fieldSymbol].Placeholder = opts.Workflow.SymbolInput().View().Placeholder
	inputs[fieldSymbol].Prompt = "Symbol   "
	inputs[fieldQuantity].Placeholder = "10"
	inputs[fieldQuantity].Prompt = "Quantity "
	inputs[fieldCost].Placeholder = "2450.50"
	inputs[fieldCost].Prompt = "Avg cost "

	return Model{
		ctx:    ctx,
		wf:     opts.Workflow,
		picks:  opts.Picks,
		user:   opts.User,
		screen: screenList,
		inputs: inputs,
		snap:   opts.Workflow.Snapshot(),
	}
}

func (m Model) Init() tea.Cmd {
	return fetchPortfolios(m.ctx, m.wf)
}

// Commands

func fetchPortfolios(ctx context.Context, wf *workflow.Workflow) tea.Cmd {
	return func() tea.Msg {
		list, err := wf.ListPortfolios(ctx)
		return portfoliosMsg{list, err}
	}
}

func runOp(action string, op func() error) tea.Cmd {
	return func() tea.Msg {
		return opMsg{action: action, err: op()}
	}
}

func fetchPicks(ctx context.Context, picks PicksFunc) tea.Cmd {
	return func() tea.Msg {
		list, err := picks(ctx)
		return picksMsg{list, err}
	}
}
