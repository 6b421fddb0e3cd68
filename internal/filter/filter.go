// Package filter implements in-memory narrowing of resource and loan
// collections as the UI types into search boxes or picks a state. All
// functions are pure: they never mutate their inputs and preserve the
// order of the slices they are given.
package filter

import (
	"strings"

	"assetdesk/internal/models"
)

// FilterResources returns the resources whose model or serial number
// contains text (case-insensitive) and whose state matches state. An
// empty text matches everything; a nil state skips the state check.
func FilterResources(in []models.Resource, text string, state *models.ResourceState) []models.Resource {
	needle := strings.ToLower(strings.TrimSpace(text))
	out := make([]models.Resource, 0, len(in))
	for _, r := range in {
		if needle != "" &&
			!strings.Contains(strings.ToLower(r.Model), needle) &&
			!strings.Contains(strings.ToLower(r.Serial), needle) {
			continue
		}
		if state != nil && !state.Equal(r.State) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// FilterLoans returns the loans whose resource model or requester
// contains text (case-insensitive) and whose state matches state.
// Loans without an embedded resource match on requester only.
func FilterLoans(in []models.Loan, text string, state *models.LoanState) []models.Loan {
	needle := strings.ToLower(strings.TrimSpace(text))
	out := make([]models.Loan, 0, len(in))
	for _, l := range in {
		if needle != "" {
			model := ""
			if l.Resource != nil {
				model = l.Resource.Model
			}
			if !strings.Contains(strings.ToLower(model), needle) &&
				!strings.Contains(strings.ToLower(l.Requester), needle) {
				continue
			}
		}
		if state != nil && !state.Equal(l.State) {
			continue
		}
		out = append(out, l)
	}
	return out
}

// DateRangeInvalid reports whether a from/to pair of ISO dates
// (YYYY-MM-DD) forms an unusable range: both present and to before
// from. ISO dates compare correctly as strings.
func DateRangeInvalid(from, to string) bool {
	return from != "" && to != "" && to < from
}
