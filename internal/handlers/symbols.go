package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/bobmcallan/optiwealth-portal/internal/common"
	"github.com/bobmcallan/optiwealth-portal/internal/session"
	"github.com/bobmcallan/optiwealth-portal/internal/symbols"
	"github.com/bobmcallan/optiwealth-portal/internal/typeahead"
)

const maxSearchLimit = 500

// SymbolsHandler serves symbol search and the per-session typeahead widgets.
type SymbolsHandler struct {
	logger     *common.Logger
	index      *symbols.Index
	maxMatches int
}

// NewSymbolsHandler creates a symbols handler. maxMatches is the default
// search limit.
func NewSymbolsHandler(logger *common.Logger, index *symbols.Index, maxMatches int) *SymbolsHandler {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	if maxMatches <= 0 {
		maxMatches = typeahead.DefaultMaxMatches
	}
	return &SymbolsHandler{logger: logger, index: index, maxMatches: maxMatches}
}

type searchResponse struct {
	Query     string           `json:"query"`
	Matches   []symbols.Symbol `json:"matches"`
	Truncated bool             `json:"truncated"`
	Notice    string           `json:"notice,omitempty"`
}

// Search handles GET /api/symbols?q=&limit=. It holds no state.
func (h *SymbolsHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	limit := h.maxMatches
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxSearchLimit {
			WriteError(w, http.StatusBadRequest, fmt.Sprintf("limit must be between 1 and %d", maxSearchLimit))
			return
		}
		limit = n
	}

	matches, truncated := h.index.Search(query, limit)
	resp := searchResponse{Query: query, Matches: matches, Truncated: truncated}
	if resp.Matches == nil {
		resp.Matches = []symbols.Symbol{}
	}
	if len(matches) > 0 {
		resp.Notice = typeahead.Notice(len(matches), limit)
	}
	WriteJSON(w, http.StatusOK, resp)
}

// TypeaheadRequest is one widget interaction.
type TypeaheadRequest struct {
	Widget    string `json:"widget"`
	Event     string `json:"event"`
	Text      string `json:"text,omitempty"`
	Direction string `json:"direction,omitempty"`
	Symbol    string `json:"symbol,omitempty"`
	Index     *int   `json:"index,omitempty"`
}

type typeaheadResponse struct {
	Widget    string         `json:"widget"`
	View      typeahead.View `json:"view"`
	Committed string         `json:"committed,omitempty"`
}

// Typeahead handles POST /api/typeahead. An empty event only reads the
// widget's view.
func (h *SymbolsHandler) Typeahead(w http.ResponseWriter, r *http.Request) {
	var req TypeaheadRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Widget == "" {
		req.Widget = session.HoldingSymbolWidget
	}

	ctrl, err := SessionFrom(r.Context()).Typeahead(req.Widget)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	resp := typeaheadResponse{Widget: req.Widget}
	if strings.TrimSpace(req.Event) != "" {
		e, err := parseEvent(req)
		if err != nil {
			WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		if sym, ok := ctrl.Dispatch(e); ok {
			resp.Committed = sym
		}
	}
	resp.View = ctrl.View()
	WriteJSON(w, http.StatusOK, resp)
}

func parseEvent(req TypeaheadRequest) (typeahead.Event, error) {
	switch strings.ToLower(strings.TrimSpace(req.Event)) {
	case "set_query", "input":
		return typeahead.SetQuery(req.Text), nil
	case "move":
		d, ok := typeahead.ParseDirection(req.Direction)
		if !ok {
			return typeahead.Event{}, fmt.Errorf("unknown direction %q", req.Direction)
		}
		return typeahead.Move(d), nil
	case "commit":
		return typeahead.Commit(), nil
	case "select":
		if strings.TrimSpace(req.Symbol) == "" {
			return typeahead.Event{}, fmt.Errorf("select needs a symbol")
		}
		return typeahead.CommitSymbol(req.Symbol), nil
	case "hover":
		if req.Index == nil {
			return typeahead.Event{}, fmt.Errorf("hover needs an index")
		}
		return typeahead.Hover(*req.Index), nil
	case "dismiss":
		return typeahead.Dismiss(), nil
	case "focus":
		return typeahead.Focus(), nil
	case "reset":
		return typeahead.Reset(), nil
	}
	return typeahead.Event{}, fmt.Errorf("unknown event %q", req.Event)
}
