package models

// DashboardSummary holds the server-computed headline counts.
type DashboardSummary struct {
	TotalResources       int `json:"recursosTotales"`
	LoanedResources      int `json:"recursosPrestados"`
	MaintenanceResources int `json:"recursosMantenimiento"`
	RetiredResources     int `json:"recursosEliminado"`
}

// StateCount is one slice of the per-state breakdown, percentage included.
type StateCount struct {
	State      string  `json:"estado"`
	Count      int     `json:"cantidad"`
	Percentage float64 `json:"porcentaje"`
}

// LoanDue is a loan approaching (or past) its return date, as computed by
// the backend for the dashboard.
type LoanDue struct {
	LoanID      int      `json:"prestamoId"`
	RequestedBy string   `json:"solicitadoPor"`
	DueMessage  string   `json:"mensajeVencimiento"`
	ReturnDate  string   `json:"fechaDevolucion"`
	Resource    Resource `json:"recurso"`
}
