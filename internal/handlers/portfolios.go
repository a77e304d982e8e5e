package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/bobmcallan/optiwealth-portal/internal/common"
	"github.com/bobmcallan/optiwealth-portal/internal/workflow"
)

// PortfolioHandler serves the portfolio list, the portfolio page and its
// holdings and analytics. Every route acts on the session's workflow.
type PortfolioHandler struct {
	logger *common.Logger
}

// NewPortfolioHandler creates a portfolio handler.
func NewPortfolioHandler(logger *common.Logger) *PortfolioHandler {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	return &PortfolioHandler{logger: logger}
}

func workflowFrom(r *http.Request) *workflow.Workflow {
	return SessionFrom(r.Context()).Workflow()
}

// ensureOpen opens portfolio id unless it is already the ready view.
func ensureOpen(ctx context.Context, wf *workflow.Workflow, id int64) error {
	snap := wf.Snapshot()
	if snap.Open && snap.PortfolioID == id && snap.Phase == workflow.PhaseReady {
		return nil
	}
	return wf.Open(ctx, id)
}

// List handles GET /api/portfolios.
func (h *PortfolioHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := workflowFrom(r).ListPortfolios(r.Context())
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"portfolios": list})
}

type createPortfolioRequest struct {
	Name string `json:"name"`
}

// Create handles POST /api/portfolios.
func (h *PortfolioHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createPortfolioRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	p, err := workflowFrom(r).CreatePortfolio(r.Context(), req.Name)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusCreated, map[string]interface{}{"portfolio": p})
}

// Get handles GET /api/portfolios/{id}. It opens the portfolio as a fresh
// page: sections expand, the symbol input clears and analytics come from the
// cache if present. ?keep=1 returns the open page as it stands.
func (h *PortfolioHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	wf := workflowFrom(r)
	if r.URL.Query().Get("keep") == "1" {
		err = ensureOpen(r.Context(), wf, id)
	} else {
		err = wf.Open(r.Context(), id)
	}
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, wf.Snapshot())
}

// Delete handles DELETE /api/portfolios/{id}.
func (h *PortfolioHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := workflowFrom(r).DeletePortfolio(r.Context(), id); err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// AddHolding handles POST /api/portfolios/{id}/holdings. A blank symbol
// uses the text of the page's holding-symbol widget.
func (h *PortfolioHandler) AddHolding(w http.ResponseWriter, r *http.Request) {
	var form workflow.HoldingForm
	if err := DecodeJSON(r, &form); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.mutate(w, r, http.StatusCreated, func(ctx context.Context, wf *workflow.Workflow, id int64) error {
		_, err := wf.AddHoldingIn(ctx, id, form)
		return err
	})
}

// UpdateHolding handles PUT /api/portfolios/{id}/holdings/{holdingID}.
func (h *PortfolioHandler) UpdateHolding(w http.ResponseWriter, r *http.Request) {
	holdingID, err := pathID(r, "holdingID")
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	var form workflow.UpdateForm
	if err := DecodeJSON(r, &form); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.mutate(w, r, http.StatusOK, func(ctx context.Context, wf *workflow.Workflow, id int64) error {
		_, err := wf.UpdateHoldingIn(ctx, id, holdingID, form)
		return err
	})
}

// DeleteHolding handles DELETE /api/portfolios/{id}/holdings/{holdingID}.
func (h *PortfolioHandler) DeleteHolding(w http.ResponseWriter, r *http.Request) {
	holdingID, err := pathID(r, "holdingID")
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.mutate(w, r, http.StatusOK, func(ctx context.Context, wf *workflow.Workflow, id int64) error {
		return wf.DeleteHoldingIn(ctx, id, holdingID)
	})
}

// Analyze handles POST /api/portfolios/{id}/analyze. Cached analytics are
// reused unless ?refresh=1 is given.
func (h *PortfolioHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	refresh := r.URL.Query().Get("refresh") == "1" || strings.EqualFold(r.URL.Query().Get("refresh"), "true")
	h.mutate(w, r, http.StatusOK, func(ctx context.Context, wf *workflow.Workflow, _ int64) error {
		if refresh {
			return wf.Reanalyze(ctx)
		}
		return wf.Analyze(ctx)
	})
}

// ClearAnalytics handles DELETE /api/portfolios/{id}/analytics.
func (h *PortfolioHandler) ClearAnalytics(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, http.StatusOK, func(ctx context.Context, wf *workflow.Workflow, _ int64) error {
		return wf.ClearAnalysis(ctx)
	})
}

// mutate runs op against portfolio {id}, opening it first when another
// page is shown, and answers with the resulting page snapshot.
func (h *PortfolioHandler) mutate(w http.ResponseWriter, r *http.Request, status int, op func(context.Context, *workflow.Workflow, int64) error) {
	id, err := pathID(r, "id")
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	wf := workflowFrom(r)
	if err := ensureOpen(r.Context(), wf, id); err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	if err := op(r.Context(), wf, id); err != nil {
		h.logger.Debug().Str("path", r.URL.Path).Int64("portfolio_id", id).Err(err).Msg("portfolio operation failed")
		writeDomainError(w, h.logger, err)
		return
	}
	WriteJSON(w, status, wf.Snapshot())
}
