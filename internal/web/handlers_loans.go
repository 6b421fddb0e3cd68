package web

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"assetdesk/internal/filter"
	"assetdesk/internal/models"
)

func (s *Server) handleListLoans(w http.ResponseWriter, r *http.Request) {
	loans, err := s.gw.ListLoans(r.Context())
	if err != nil {
		respondGatewayError(w, err)
		return
	}

	search := r.URL.Query().Get("search")
	var state *models.LoanState
	if raw := r.URL.Query().Get("estado"); raw != "" {
		parsed, ok := models.ParseLoanState(raw)
		if !ok {
			respondValidation(w, map[string]string{"estado": fmt.Sprintf("unknown state %q", raw)})
			return
		}
		state = &parsed
	}
	respondJSON(w, http.StatusOK, filter.FilterLoans(loans, search, state))
}

func validateLoan(l models.Loan) map[string]string {
	fields := map[string]string{}
	if l.ResourceID == 0 {
		fields["recursoId"] = "a resource must be selected"
	}
	if strings.TrimSpace(l.Requester) == "" {
		fields["solicitante"] = "required"
	}
	if strings.TrimSpace(l.LoanDate) == "" {
		fields["fechaPrestamo"] = "required"
	}
	if filter.DateRangeInvalid(l.LoanDate, l.ReturnDate) {
		fields["fechaDevolucion"] = "return date precedes loan date"
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}

func (s *Server) handleCreateLoan(w http.ResponseWriter, r *http.Request) {
	guard := s.guardFor(r)
	if guard != nil && !guard.Begin() {
		respondError(w, http.StatusConflict, errors.New("duplicate submission"))
		return
	}

	var loan models.Loan
	if err := decodeJSON(r, &loan); err != nil {
		if guard != nil {
			guard.Fail()
		}
		respondError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	// Validation failures must never reach the backend.
	if fields := validateLoan(loan); fields != nil {
		if guard != nil {
			guard.Fail()
		}
		respondValidation(w, fields)
		return
	}

	created, err := s.gw.SaveLoan(r.Context(), loan)
	if err != nil {
		if guard != nil {
			guard.Fail()
		}
		respondGatewayError(w, err)
		return
	}
	if guard != nil {
		guard.Succeed()
	}
	respondJSON(w, http.StatusCreated, created)
}

type returnLoanRequest struct {
	ResourceID int `json:"recursoId"`
}

func (s *Server) handleReturnLoan(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id == 0 {
		respondError(w, http.StatusBadRequest, errors.New("invalid loan id"))
		return
	}
	var req returnLoanRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	if req.ResourceID == 0 {
		respondValidation(w, map[string]string{"recursoId": "required"})
		return
	}

	result, err := s.gw.ReturnLoan(r.Context(), id, req.ResourceID)
	if err != nil {
		respondGatewayError(w, err)
		return
	}
	if !result.OK {
		respondError(w, http.StatusConflict, errors.New("backend rejected the state transition"))
		return
	}
	respondJSON(w, http.StatusOK, result)
}
