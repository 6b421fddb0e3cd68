package web

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"assetdesk/internal/report"
)

type reportListing struct {
	Slug  string `json:"slug"`
	Title string `json:"title"`
	Kind  string `json:"kind"`
}

func (s *Server) handleListReports(w http.ResponseWriter, _ *http.Request) {
	defs := s.catalog.List()
	out := make([]reportListing, 0, len(defs))
	for _, d := range defs {
		out = append(out, reportListing{Slug: d.Slug, Title: d.Title, Kind: string(d.Kind)})
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleDownloadReport(w http.ResponseWriter, r *http.Request) {
	def, ok := s.catalog.Lookup(chi.URLParam(r, "slug"))
	if !ok {
		respondError(w, http.StatusNotFound, errors.New("unknown report"))
		return
	}

	var data report.Dataset
	var err error
	switch def.Kind {
	case report.KindLoans:
		data.Loans, err = s.gw.ListLoans(r.Context())
	default:
		data.Resources, err = s.gw.ListResources(r.Context())
	}
	if err != nil {
		respondGatewayError(w, err)
		return
	}

	export := report.Render(def, data, time.Now())
	if export.CSV == "" {
		respondError(w, http.StatusNotFound, errors.New("no data to export"))
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(export.CSV))
}
