package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"assetdesk/internal/filter"
	"assetdesk/internal/models"
)

const maxUploadBytes = 32 << 20

func (s *Server) handleListResources(w http.ResponseWriter, r *http.Request) {
	resources, err := s.gw.ListResources(r.Context())
	if err != nil {
		respondGatewayError(w, err)
		return
	}

	search := r.URL.Query().Get("search")
	var state *models.ResourceState
	if raw := r.URL.Query().Get("estado"); raw != "" {
		parsed, ok := models.ParseResourceState(raw)
		if !ok {
			respondValidation(w, map[string]string{"estado": fmt.Sprintf("unknown state %q", raw)})
			return
		}
		state = &parsed
	}
	respondJSON(w, http.StatusOK, filter.FilterResources(resources, search, state))
}

func (s *Server) handleGetResource(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, errors.New("invalid resource id"))
		return
	}

	resource, err := s.gw.ResourceByID(r.Context(), id)
	if err != nil {
		respondGatewayError(w, err)
		return
	}
	documents, err := s.gw.DocumentsByResource(r.Context(), id)
	if err != nil {
		respondGatewayError(w, err)
		return
	}
	history, err := s.gw.HistoryByResource(r.Context(), id)
	if err != nil {
		respondGatewayError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"resource":  resource,
		"documents": documents,
		"history":   history,
	})
}

func validateResource(res models.Resource) map[string]string {
	fields := map[string]string{}
	if strings.TrimSpace(res.Model) == "" {
		fields["modelo"] = "required"
	}
	if strings.TrimSpace(res.Serial) == "" {
		fields["numeroSerie"] = "required"
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}

type createdResource struct {
	Resource  *models.Resource  `json:"resource"`
	Documents []models.Document `json:"documents,omitempty"`
	Warnings  []string          `json:"warnings,omitempty"`
}

func (s *Server) handleCreateResource(w http.ResponseWriter, r *http.Request) {
	guard := s.guardFor(r)
	if guard != nil && !guard.Begin() {
		respondError(w, http.StatusConflict, errors.New("duplicate submission"))
		return
	}

	res, isMultipart, err := readResourcePayload(r)
	if err != nil {
		if guard != nil {
			guard.Fail()
		}
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if fields := validateResource(res); fields != nil {
		if guard != nil {
			guard.Fail()
		}
		respondValidation(w, fields)
		return
	}

	created, err := s.gw.SaveResource(r.Context(), res)
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

	out := createdResource{Resource: created}
	if isMultipart && r.MultipartForm != nil {
		for _, hdr := range r.MultipartForm.File["documents"] {
			f, err := hdr.Open()
			if err != nil {
				out.Warnings = append(out.Warnings, fmt.Sprintf("%s: %v", hdr.Filename, err))
				continue
			}
			doc, err := s.gw.UploadDocument(r.Context(), created.ID, hdr.Filename, f)
			f.Close()
			if err != nil {
				s.log.Warn().Err(err).Str("file", hdr.Filename).Msg("document upload failed")
				out.Warnings = append(out.Warnings, fmt.Sprintf("%s: upload failed", hdr.Filename))
				continue
			}
			out.Documents = append(out.Documents, *doc)
		}
	}

	respondJSON(w, http.StatusCreated, out)
}

// readResourcePayload accepts either a JSON body or a multipart form
// whose "resource" field carries the JSON and whose "documents" parts
// carry attachments.
func readResourcePayload(r *http.Request) (models.Resource, bool, error) {
	var res models.Resource
	ct := r.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "multipart/form-data") {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			return res, true, fmt.Errorf("parse multipart form: %w", err)
		}
		raw := r.FormValue("resource")
		if raw == "" {
			return res, true, errors.New("missing resource field")
		}
		if err := json.Unmarshal([]byte(raw), &res); err != nil {
			return res, true, fmt.Errorf("decode resource field: %w", err)
		}
		return res, true, nil
	}
	if err := decodeJSON(r, &res); err != nil {
		return res, false, fmt.Errorf("decode request: %w", err)
	}
	return res, false, nil
}

func (s *Server) handleUpdateResource(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id == 0 {
		respondError(w, http.StatusBadRequest, errors.New("invalid resource id"))
		return
	}

	var res models.Resource
	if err := decodeJSON(r, &res); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	res.ID = id
	if fields := validateResource(res); fields != nil {
		respondValidation(w, fields)
		return
	}

	updated, err := s.gw.UpdateResource(r.Context(), res)
	if err != nil {
		respondGatewayError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}
