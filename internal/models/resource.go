package models

// Resource is a trackable physical asset. Field names on the wire follow the
// backend's contract; the id is zero until the backend assigns one.
type Resource struct {
	ID             int    `json:"idRecurso,omitempty"`
	Model          string `json:"modelo"`
	Description    string `json:"descripcion"`
	Serial         string `json:"numeroSerie"`
	PurchaseDate   string `json:"fechaCompra"`
	WarrantyExpiry string `json:"fechaVencimientoGarantia"`
	State          string `json:"estado"`
	UserEmail      string `json:"emailUsuario"`
	Category       string `json:"categoria"`
}

// Document is a file attached to a resource. Created only as a side effect of
// uploading during resource creation; never updated client-side.
type Document struct {
	ID         int    `json:"id,omitempty"`
	Key        string `json:"key"`
	Filename   string `json:"nombreArchivo"`
	URL        string `json:"url"`
	MIMEType   string `json:"tipoMime"`
	UploadedAt string `json:"fechaCarga"`
	ResourceID int    `json:"recursoId,omitempty"`
}
