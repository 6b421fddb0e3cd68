package web

import (
	"net/http"

	"golang.org/x/sync/errgroup"

	"assetdesk/internal/models"
)

type dashboardResponse struct {
	Summary  *models.DashboardSummary `json:"summary"`
	ByState  []models.StateCount      `json:"byState"`
	LoansDue []models.LoanDue         `json:"loansDue"`
}

// handleDashboard fans out to the three aggregate endpoints and joins
// all-or-nothing: a failure in any leg fails the whole render.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	var out dashboardResponse
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		summary, err := s.gw.Summary(ctx)
		if err != nil {
			return err
		}
		out.Summary = summary
		return nil
	})
	g.Go(func() error {
		counts, err := s.gw.CountByState(ctx)
		if err != nil {
			return err
		}
		out.ByState = counts
		return nil
	})
	g.Go(func() error {
		due, err := s.gw.LoansDue(ctx)
		if err != nil {
			return err
		}
		out.LoansDue = due
		return nil
	})
	if err := g.Wait(); err != nil {
		respondGatewayError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, out)
}
