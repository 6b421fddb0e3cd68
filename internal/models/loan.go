package models

// Loan is a time-bounded assignment of a resource to a requester. The backend
// may denormalize the resource snapshot into the response for display.
type Loan struct {
	ID         int       `json:"idPrestamo,omitempty"`
	ResourceID int       `json:"recursoId"`
	LoanDate   string    `json:"fechaPrestamo"`
	ReturnDate string    `json:"fechaDevolucion"`
	Requester  string    `json:"solicitante"`
	State      string    `json:"estado"`
	Resource   *Resource `json:"resource,omitempty"`
}

// HistoryEntry records a state change of a resource. Read-only from this
// side; displayed most recent first.
type HistoryEntry struct {
	ID         int    `json:"idHistorial,omitempty"`
	ResourceID int    `json:"recursoId"`
	ChangedAt  string `json:"fechaCambioEstado"`
	Action     string `json:"accion"`
	Detail     string `json:"descripcion"`
}
