package filter

import (
	"fmt"
	"strings"

	"assetdesk/internal/models"
)

// ResourceLabel renders the display text used by the resource picker.
func ResourceLabel(r models.Resource) string {
	return fmt.Sprintf("%s (N° Serie: %s)", r.Model, r.Serial)
}

// Suggestions returns the resources whose picker label contains text,
// case-insensitively. Empty text returns the full list.
func Suggestions(in []models.Resource, text string) []models.Resource {
	needle := strings.ToLower(strings.TrimSpace(text))
	if needle == "" {
		return append([]models.Resource(nil), in...)
	}
	out := make([]models.Resource, 0, len(in))
	for _, r := range in {
		if strings.Contains(strings.ToLower(ResourceLabel(r)), needle) {
			out = append(out, r)
		}
	}
	return out
}

// ResolveSelection maps free text typed into the picker to a resource
// id. The match is an exact, case-insensitive comparison against the
// label; anything else yields 0, the unbound sentinel.
func ResolveSelection(in []models.Resource, text string) int {
	want := strings.ToLower(strings.TrimSpace(text))
	if want == "" {
		return 0
	}
	for _, r := range in {
		if strings.ToLower(ResourceLabel(r)) == want {
			return r.ID
		}
	}
	return 0
}

// CheckSelection reports whether the picker is in an invalid state:
// text present but no resource bound to it.
func CheckSelection(text string, id int) bool {
	return strings.TrimSpace(text) != "" && id == 0
}
