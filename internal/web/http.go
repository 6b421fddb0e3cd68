package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"assetdesk/internal/gateway"
)

func decodeJSON(r *http.Request, dest any) error {
	if r.Body == nil {
		return errors.New("request body required")
	}
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dest)
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}
	respondJSON(w, status, map[string]any{"error": err.Error()})
}

// respondValidation reports field-scoped validation failures.
func respondValidation(w http.ResponseWriter, fields map[string]string) {
	respondJSON(w, http.StatusUnprocessableEntity, map[string]any{
		"error":  "validation failed",
		"fields": fields,
	})
}

// respondGatewayError maps backend failures onto the response: a clean
// not-found stays 404, any other upstream failure surfaces as 502 with
// the upstream status echoed.
func respondGatewayError(w http.ResponseWriter, err error) {
	if errors.Is(err, gateway.ErrNotFound) {
		respondError(w, http.StatusNotFound, errors.New("not found"))
		return
	}
	var te *gateway.TransportError
	if errors.As(err, &te) {
		respondJSON(w, http.StatusBadGateway, map[string]any{
			"error":          "backend request failed",
			"upstreamStatus": te.Status,
		})
		return
	}
	respondError(w, http.StatusBadGateway, fmt.Errorf("backend unreachable: %w", err))
}
