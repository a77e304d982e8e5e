// Package disclosure tracks which collapsible report sections of a page are
// expanded. State is per page load: every section starts expanded.
package disclosure

import (
	"errors"
	"fmt"
	"sync"
)

// Section names shown on the portfolio page.
const (
	Insights       = "insights"
	Risk           = "risk"
	Forecasts      = "forecasts"
	Optimization   = "optimization"
	HoldingsDetail = "holdings-detail"
)

// Sections lists every known section in display order.
var Sections = []string{Insights, Risk, Forecasts, Optimization, HoldingsDetail}

// ErrUnknownSection is returned for a section name outside Sections.
var ErrUnknownSection = errors.New("unknown section")

// Known reports whether name is one of Sections.
func Known(name string) bool {
	for _, s := range Sections {
		if s == name {
			return true
		}
	}
	return false
}

// Model is the disclosure state of one page. Safe for concurrent use.
type Model struct {
	mu       sync.Mutex
	strict   bool
	expanded map[string]bool
}

// New returns a model with every section expanded. A strict model panics on
// unknown section names instead of returning ErrUnknownSection; the portal
// enables it in dev mode.
func New(strict bool) *Model {
	m := &Model{strict: strict}
	m.Reset()
	return m
}

// Reset re-initializes all sections to expanded, as on a fresh page load.
func (m *Model) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expanded = make(map[string]bool, len(Sections))
	for _, s := range Sections {
		m.expanded[s] = true
	}
}

func (m *Model) check(name string) error {
	if _, ok := m.expanded[name]; ok {
		return nil
	}
	err := fmt.Errorf("%w: %q", ErrUnknownSection, name)
	if m.strict {
		panic(err)
	}
	return err
}

// Toggle flips the section and returns its new state.
func (m *Model) Toggle(name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(name); err != nil {
		return false, err
	}
	m.expanded[name] = !m.expanded[name]
	return m.expanded[name], nil
}

// IsExpanded reports the section's current state.
func (m *Model) IsExpanded(name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(name); err != nil {
		return false, err
	}
	return m.expanded[name], nil
}

// SectionState is one row of a Snapshot.
type SectionState struct {
	Name     string `json:"name"`
	Expanded bool   `json:"expanded"`
}

// Snapshot returns every section's state in display order.
func (m *Model) Snapshot() []SectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SectionState, 0, len(Sections))
	for _, s := range Sections {
		out = append(out, SectionState{Name: s, Expanded: m.expanded[s]})
	}
	return out
}
