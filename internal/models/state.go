package models

import "strings"

// ResourceState is the closed set of resource lifecycle states. The backend
// stores states as free text with inconsistent casing, so every comparison
// must go through ParseResourceState / Equal instead of raw string equality.
type ResourceState string

const (
	ResourceInStorage     ResourceState = "bodega"
	ResourceAssigned      ResourceState = "asignado"
	ResourceLoaned        ResourceState = "prestado"
	ResourceInMaintenance ResourceState = "mantenimiento"
	ResourceRetired       ResourceState = "eliminado"
)

var resourceStates = []ResourceState{
	ResourceInStorage,
	ResourceAssigned,
	ResourceLoaned,
	ResourceInMaintenance,
	ResourceRetired,
}

// ParseResourceState normalizes a wire value into a known state. The second
// return is false for values outside the closed set; the raw value is still
// returned so callers can round-trip unknown states untouched.
func ParseResourceState(raw string) (ResourceState, bool) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	// The backend sometimes stores the storage state as "en bodega".
	normalized = strings.TrimPrefix(normalized, "en ")
	for _, s := range resourceStates {
		if normalized == string(s) {
			return s, true
		}
	}
	return ResourceState(raw), false
}

// Equal reports whether the wire value raw denotes this state.
func (s ResourceState) Equal(raw string) bool {
	parsed, ok := ParseResourceState(raw)
	return ok && parsed == s
}

// LoanState is the closed set of loan lifecycle states.
type LoanState string

const (
	LoanActive   LoanState = "activo"
	LoanOverdue  LoanState = "atrasado"
	LoanReturned LoanState = "devuelto"
)

var loanStates = []LoanState{LoanActive, LoanOverdue, LoanReturned}

// ParseLoanState normalizes a wire value into a known loan state.
func ParseLoanState(raw string) (LoanState, bool) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	for _, s := range loanStates {
		if normalized == string(s) {
			return s, true
		}
	}
	return LoanState(raw), false
}

// Equal reports whether the wire value raw denotes this state.
func (s LoanState) Equal(raw string) bool {
	parsed, ok := ParseLoanState(raw)
	return ok && parsed == s
}
