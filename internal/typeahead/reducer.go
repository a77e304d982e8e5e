// Package typeahead implements symbol search-as-you-type as a pure reducer
// over a symbols.Index, plus a Controller that adapts it to widget props.
//
// The reducer never performs I/O: every event is resolved synchronously
// against the in-memory index.
package typeahead

import (
	"strings"

	"github.com/bobmcallan/optiwealth-portal/internal/symbols"
)

// DefaultMaxMatches caps the match list shown to the user.
const DefaultMaxMatches = 50

// NoHighlight is the Highlight value when no row is selected.
const NoHighlight = -1

// Direction is a keyboard highlight movement.
type Direction int

const (
	Next Direction = iota
	Previous
)

// ParseDirection maps "next"/"down" and "previous"/"prev"/"up".
func ParseDirection(s string) (Direction, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "next", "down":
		return Next, true
	case "previous", "prev", "up":
		return Previous, true
	}
	return Next, false
}

// State is everything one widget instance knows. Matches is derived from
// Query and the index; it is never edited in place.
type State struct {
	Query     string
	Matches   []symbols.Symbol
	Truncated bool
	Highlight int
	Open      bool
}

// Initial returns the state of a fresh, empty widget.
func Initial() State {
	return State{Highlight: NoHighlight}
}

// EventKind enumerates the inputs the reducer understands.
type EventKind int

const (
	EventSetQuery EventKind = iota
	EventMove
	EventCommit
	EventCommitSymbol
	EventDismiss
	EventFocus
	EventHover
	EventReset
)

// Event is one user interaction.
type Event struct {
	Kind      EventKind
	Text      string
	Direction Direction
	Symbol    symbols.Symbol
	Index     int
}

// SetQuery replaces the query text.
func SetQuery(text string) Event { return Event{Kind: EventSetQuery, Text: text} }

// Move shifts the keyboard highlight.
func Move(d Direction) Event { return Event{Kind: EventMove, Direction: d} }

// Commit selects the highlighted match.
func Commit() Event { return Event{Kind: EventCommit} }

// CommitSymbol selects a clicked match directly.
func CommitSymbol(s symbols.Symbol) Event { return Event{Kind: EventCommitSymbol, Symbol: s} }

// Dismiss closes the match list (Escape, blur, click outside).
func Dismiss() Event { return Event{Kind: EventDismiss} }

// Focus re-opens the match list if there is anything to show.
func Focus() Event { return Event{Kind: EventFocus} }

// Hover moves the highlight to the row under the pointer.
func Hover(i int) Event { return Event{Kind: EventHover, Index: i} }

// Reset clears the widget back to its initial state.
func Reset() Event { return Event{Kind: EventReset} }

// Effect reports what a reduction means for the widget's owner.
type Effect struct {
	// QueryChanged is set when the text value differs from before.
	QueryChanged bool
	// Committed holds the selected symbol when the event committed one.
	Committed symbols.Symbol
}

// Reducer resolves events against an index.
type Reducer struct {
	Index      *symbols.Index
	MaxMatches int
}

func (r Reducer) limit() int {
	if r.MaxMatches <= 0 {
		return DefaultMaxMatches
	}
	return r.MaxMatches
}

// withQuery recomputes everything derived from q. Highlight always resets
// because the new match list may be shorter or reordered.
func (r Reducer) withQuery(q string) State {
	matches, truncated := r.Index.Search(q, r.limit())
	return State{
		Query:     q,
		Matches:   matches,
		Truncated: truncated,
		Highlight: NoHighlight,
		Open:      len(matches) > 0,
	}
}

func (r Reducer) commit(s State, sym symbols.Symbol) (State, Effect) {
	next := r.withQuery(sym)
	next.Open = false
	return next, Effect{QueryChanged: sym != s.Query, Committed: sym}
}

// Reduce applies e to s and returns the next state. s is not modified.
func (r Reducer) Reduce(s State, e Event) (State, Effect) {
	switch e.Kind {
	case EventSetQuery:
		return r.withQuery(e.Text), Effect{QueryChanged: e.Text != s.Query}

	case EventMove:
		if !s.Open || len(s.Matches) == 0 {
			return s, Effect{}
		}
		last := len(s.Matches) - 1
		switch e.Direction {
		case Next:
			if s.Highlight < last {
				s.Highlight++
			}
		case Previous:
			if s.Highlight > 0 {
				s.Highlight--
			} else {
				s.Highlight = 0
			}
		}
		return s, Effect{}

	case EventCommit:
		if !s.Open || s.Highlight < 0 || s.Highlight >= len(s.Matches) {
			return s, Effect{}
		}
		return r.commit(s, s.Matches[s.Highlight])

	case EventCommitSymbol:
		if strings.TrimSpace(e.Symbol) == "" {
			return s, Effect{}
		}
		return r.commit(s, e.Symbol)

	case EventDismiss:
		s.Open = false
		s.Highlight = NoHighlight
		return s, Effect{}

	case EventFocus:
		if strings.TrimSpace(s.Query) != "" && len(s.Matches) > 0 {
			s.Open = true
		}
		return s, Effect{}

	case EventHover:
		if s.Open && e.Index >= 0 && e.Index < len(s.Matches) {
			s.Highlight = e.Index
		}
		return s, Effect{}

	case EventReset:
		return Initial(), Effect{QueryChanged: s.Query != ""}
	}
	return s, Effect{}
}
