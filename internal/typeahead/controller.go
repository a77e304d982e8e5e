package typeahead

import (
	"fmt"
	"strings"
	"sync"

	"github.com/bobmcallan/optiwealth-portal/internal/symbols"
)

// DefaultPlaceholder is shown in an empty input.
const DefaultPlaceholder = "Search stock symbol..."

// Props configures an embeddable symbol input. The committed symbol, and every
// text change, are reported through OnChange only.
type Props struct {
	Value       string
	OnChange    func(value string)
	Catalog     *symbols.Index
	Placeholder string
	MaxMatches  int
}

// View is the render-ready state of a widget.
type View struct {
	Query       string           `json:"query"`
	Placeholder string           `json:"placeholder"`
	Open        bool             `json:"open"`
	Matches     []symbols.Symbol `json:"matches"`
	Highlight   int              `json:"highlight"`
	Truncated   bool             `json:"truncated"`
	NoResults   bool             `json:"no_results"`
	Notice      string           `json:"notice,omitempty"`
}

// Controller owns the state of one input widget. It is safe for concurrent
// use; callers that need a consistent read-modify sequence should hold their
// own lock around it.
type Controller struct {
	mu          sync.Mutex
	reducer     Reducer
	state       State
	onChange    func(string)
	placeholder string
}

// New creates a controller seeded with props.Value. The widget starts closed
// even when the seed value has matches: it has not been focused yet.
func New(props Props) *Controller {
	c := &Controller{
		reducer:     Reducer{Index: props.Catalog, MaxMatches: props.MaxMatches},
		onChange:    props.OnChange,
		placeholder: props.Placeholder,
	}
	if c.placeholder == "" {
		c.placeholder = DefaultPlaceholder
	}
	c.state = c.reducer.withQuery(props.Value)
	c.state.Open = false
	return c
}

// Dispatch applies an event and notifies OnChange when the value changed.
// It returns the committed symbol, if the event committed one.
func (c *Controller) Dispatch(e Event) (symbols.Symbol, bool) {
	c.mu.Lock()
	next, effect := c.reducer.Reduce(c.state, e)
	c.state = next
	onChange := c.onChange
	c.mu.Unlock()

	// Notify outside the lock so the callback may read the controller.
	if onChange != nil && (effect.QueryChanged || effect.Committed != "") {
		onChange(next.Query)
	}
	return effect.Committed, effect.Committed != ""
}

// SetQuery replaces the query and recomputes the matches.
func (c *Controller) SetQuery(text string) {
	c.Dispatch(SetQuery(text))
}

// MoveHighlight moves the keyboard highlight, clamped to the match list.
func (c *Controller) MoveHighlight(d Direction) {
	c.Dispatch(Move(d))
}

// Commit selects the highlighted match.
func (c *Controller) Commit() (symbols.Symbol, bool) {
	return c.Dispatch(Commit())
}

// CommitExplicit selects sym as if its row had been clicked.
func (c *Controller) CommitExplicit(sym symbols.Symbol) (symbols.Symbol, bool) {
	return c.Dispatch(CommitSymbol(sym))
}

// Dismiss closes the widget without changing the query.
func (c *Controller) Dismiss() {
	c.Dispatch(Dismiss())
}

// Focus re-opens the widget when the current query has matches.
func (c *Controller) Focus() {
	c.Dispatch(Focus())
}

// Hover highlights the row at i.
func (c *Controller) Hover(i int) {
	c.Dispatch(Hover(i))
}

// Reset clears the query.
func (c *Controller) Reset() {
	c.Dispatch(Reset())
}

// State returns a copy of the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.state
	s.Matches = append([]symbols.Symbol(nil), c.state.Matches...)
	return s
}

// View returns the render-ready state.
func (c *Controller) View() View {
	s := c.State()
	v := View{
		Query:       s.Query,
		Placeholder: c.placeholder,
		Open:        s.Open,
		Matches:     s.Matches,
		Highlight:   s.Highlight,
		Truncated:   s.Truncated,
		NoResults:   len(s.Matches) == 0 && strings.TrimSpace(s.Query) != "",
	}
	if v.Matches == nil {
		v.Matches = []symbols.Symbol{}
	}
	if s.Open {
		v.Notice = Notice(len(s.Matches), c.reducer.limit())
	}
	return v
}

// Notice is the header line of an open match list, e.g.
// "50 symbols found (showing first 50)". A list filled to limit carries the
// "showing first" suffix whether or not more matches exist.
func Notice(count, limit int) string {
	plural := "s"
	if count == 1 {
		plural = ""
	}
	msg := fmt.Sprintf("%d symbol%s found", count, plural)
	if limit > 0 && count >= limit {
		msg += fmt.Sprintf(" (showing first %d)", limit)
	}
	return msg
}
