package handlers

import (
	"fmt"
	"net/http"

	"github.com/bobmcallan/optiwealth-portal/internal/common"
	"github.com/bobmcallan/optiwealth-portal/internal/disclosure"
	"github.com/go-chi/chi/v5"
)

// SectionsHandler serves the collapsible report sections of a page.
type SectionsHandler struct {
	logger *common.Logger
}

// NewSectionsHandler creates a sections handler.
func NewSectionsHandler(logger *common.Logger) *SectionsHandler {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	return &SectionsHandler{logger: logger}
}

// List handles GET /api/sections/{page}.
func (h *SectionsHandler) List(w http.ResponseWriter, r *http.Request) {
	page := chi.URLParam(r, "page")
	m, err := SessionFrom(r.Context()).Sections(page)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"page": page, "sections": m.Snapshot()})
}

// Toggle handles POST /api/sections/{page}/{section}/toggle.
func (h *SectionsHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	page := chi.URLParam(r, "page")
	name := chi.URLParam(r, "section")
	m, err := SessionFrom(r.Context()).Sections(page)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	// Names come from the client; a strict model would panic on them.
	if !disclosure.Known(name) {
		writeDomainError(w, h.logger, fmt.Errorf("%w: %q", disclosure.ErrUnknownSection, name))
		return
	}
	expanded, err := m.Toggle(name)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, disclosure.SectionState{Name: name, Expanded: expanded})
}
