package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"assetdesk/internal/config"
	"assetdesk/internal/filter"
	"assetdesk/internal/gateway"
	"assetdesk/internal/models"
	"assetdesk/internal/report"
)

// stubGateway satisfies Gateway with canned data and call recording.
type stubGateway struct {
	resources []models.Resource
	loans     []models.Loan
	documents []models.Document
	history   []models.HistoryEntry
	summary   *models.DashboardSummary
	byState   []models.StateCount
	loansDue  []models.LoanDue

	err         error
	uploadErr   error
	saveCalls   int
	uploadCalls int
	returnOK    bool
}

func (g *stubGateway) ListResources(context.Context) ([]models.Resource, error) {
	return g.resources, g.err
}

func (g *stubGateway) ResourceByID(_ context.Context, id int) (*models.Resource, error) {
	if g.err != nil {
		return nil, g.err
	}
	for i := range g.resources {
		if g.resources[i].ID == id {
			return &g.resources[i], nil
		}
	}
	return nil, gateway.ErrNotFound
}

func (g *stubGateway) SaveResource(_ context.Context, r models.Resource) (*models.Resource, error) {
	g.saveCalls++
	if g.err != nil {
		return nil, g.err
	}
	r.ID = 100
	return &r, nil
}

func (g *stubGateway) UpdateResource(_ context.Context, r models.Resource) (*models.Resource, error) {
	if g.err != nil {
		return nil, g.err
	}
	return &r, nil
}

func (g *stubGateway) UploadDocument(_ context.Context, resourceID int, filename string, file io.Reader) (*models.Document, error) {
	g.uploadCalls++
	if g.uploadErr != nil {
		return nil, g.uploadErr
	}
	return &models.Document{ID: g.uploadCalls, Filename: filename, ResourceID: resourceID}, nil
}

func (g *stubGateway) DocumentsByResource(context.Context, int) ([]models.Document, error) {
	return g.documents, g.err
}

func (g *stubGateway) ListLoans(context.Context) ([]models.Loan, error) {
	return g.loans, g.err
}

func (g *stubGateway) SaveLoan(_ context.Context, l models.Loan) (*models.Loan, error) {
	g.saveCalls++
	if g.err != nil {
		return nil, g.err
	}
	l.ID = 200
	return &l, nil
}

func (g *stubGateway) ReturnLoan(_ context.Context, loanID, _ int) (gateway.LoanStateResult, error) {
	if g.err != nil {
		return gateway.LoanStateResult{}, g.err
	}
	if !g.returnOK {
		return gateway.LoanStateResult{OK: false}, nil
	}
	return gateway.LoanStateResult{OK: true, Updated: &models.Loan{ID: loanID, State: "Devuelto"}}, nil
}

func (g *stubGateway) HistoryByResource(context.Context, int) ([]models.HistoryEntry, error) {
	return g.history, g.err
}

func (g *stubGateway) Summary(context.Context) (*models.DashboardSummary, error) {
	return g.summary, g.err
}

func (g *stubGateway) CountByState(context.Context) ([]models.StateCount, error) {
	return g.byState, g.err
}

func (g *stubGateway) LoansDue(context.Context) ([]models.LoanDue, error) {
	return g.loansDue, g.err
}

func testServer(t *testing.T, gw Gateway) *Server {
	t.Helper()
	cat, err := report.NewCatalog("")
	if err != nil {
		t.Fatal(err)
	}
	return &Server{
		gw:      gw,
		catalog: cat,
		cfg:     config.Config{},
		log:     zerolog.Nop(),
		guards:  filter.NewGuardSet(guardRetention),
	}
}

func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestListResourcesFiltered(t *testing.T) {
	gw := &stubGateway{resources: []models.Resource{
		{ID: 1, Model: "Dell Latitude", Serial: "SN-1", State: "Bodega"},
		{ID: 2, Model: "HP ProBook", Serial: "SN-2", State: "Asignado"},
	}}
	s := testServer(t, gw)

	rec := httptest.NewRecorder()
	s.handleListResources(rec, httptest.NewRequest("GET", "/api/resources?search=dell&estado=bodega", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got []models.Resource
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != 1 {
		t.Errorf("got %+v", got)
	}
}

func TestListResourcesUnknownState(t *testing.T) {
	s := testServer(t, &stubGateway{})
	rec := httptest.NewRecorder()
	s.handleListResources(rec, httptest.NewRequest("GET", "/api/resources?estado=perdido", nil))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", rec.Code)
	}
}

func TestListResourcesGatewayDown(t *testing.T) {
	gw := &stubGateway{err: &gateway.TransportError{Status: 503, Body: "down"}}
	s := testServer(t, gw)
	rec := httptest.NewRecorder()
	s.handleListResources(rec, httptest.NewRequest("GET", "/api/resources", nil))
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "503") {
		t.Errorf("upstream status missing from body: %s", rec.Body.String())
	}
}

func TestGetResourceAggregates(t *testing.T) {
	gw := &stubGateway{
		resources: []models.Resource{{ID: 1, Model: "Dell"}},
		documents: []models.Document{{ID: 5, Filename: "factura.pdf"}},
		history:   []models.HistoryEntry{{ID: 9, ChangedAt: "2024-01-01"}},
	}
	s := testServer(t, gw)

	req := withURLParam(httptest.NewRequest("GET", "/api/resources/1", nil), "id", "1")
	rec := httptest.NewRecorder()
	s.handleGetResource(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var got struct {
		Resource  models.Resource       `json:"resource"`
		Documents []models.Document     `json:"documents"`
		History   []models.HistoryEntry `json:"history"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.Resource.ID != 1 || len(got.Documents) != 1 || len(got.History) != 1 {
		t.Errorf("got %+v", got)
	}
}

func TestGetResourceNotFound(t *testing.T) {
	s := testServer(t, &stubGateway{})
	req := withURLParam(httptest.NewRequest("GET", "/api/resources/7", nil), "id", "7")
	rec := httptest.NewRecorder()
	s.handleGetResource(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestCreateResourceValidation(t *testing.T) {
	gw := &stubGateway{}
	s := testServer(t, gw)

	body := strings.NewReader(`{"modelo":"","numeroSerie":""}`)
	req := httptest.NewRequest("POST", "/api/resources", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.handleCreateResource(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
	if gw.saveCalls != 0 {
		t.Errorf("gateway called %d times on invalid input", gw.saveCalls)
	}
	if !strings.Contains(rec.Body.String(), "modelo") || !strings.Contains(rec.Body.String(), "numeroSerie") {
		t.Errorf("field-scoped messages missing: %s", rec.Body.String())
	}
}

func TestCreateResourceJSON(t *testing.T) {
	gw := &stubGateway{}
	s := testServer(t, gw)

	body := strings.NewReader(`{"modelo":"Dell","numeroSerie":"SN-9"}`)
	req := httptest.NewRequest("POST", "/api/resources", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.handleCreateResource(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var got createdResource
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.Resource == nil || got.Resource.ID != 100 {
		t.Errorf("got %+v", got)
	}
}

func multipartResource(t *testing.T, resourceJSON string, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("resource", resourceJSON); err != nil {
		t.Fatal(err)
	}
	for name, content := range files {
		part, err := mw.CreateFormFile("documents", name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := part.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

func TestCreateResourceMultipartWarnings(t *testing.T) {
	gw := &stubGateway{uploadErr: errors.New("storage rejected the file")}
	s := testServer(t, gw)

	buf, ct := multipartResource(t, `{"modelo":"Dell","numeroSerie":"SN-9"}`, map[string]string{"factura.pdf": "bytes"})
	req := httptest.NewRequest("POST", "/api/resources", buf)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	s.handleCreateResource(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 despite upload failure: %s", rec.Code, rec.Body.String())
	}
	var got createdResource
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.Resource == nil {
		t.Fatal("created resource missing")
	}
	if len(got.Warnings) != 1 || !strings.Contains(got.Warnings[0], "factura.pdf") {
		t.Errorf("warnings = %v", got.Warnings)
	}
}

func TestCreateResourceIdempotencyKey(t *testing.T) {
	gw := &stubGateway{}
	s := testServer(t, gw)

	send := func() *httptest.ResponseRecorder {
		body := strings.NewReader(`{"modelo":"Dell","numeroSerie":"SN-9"}`)
		req := httptest.NewRequest("POST", "/api/resources", body)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Idempotency-Key", "form-1")
		rec := httptest.NewRecorder()
		s.handleCreateResource(rec, req)
		return rec
	}

	if rec := send(); rec.Code != http.StatusCreated {
		t.Fatalf("first submit: status = %d", rec.Code)
	}
	if rec := send(); rec.Code != http.StatusConflict {
		t.Fatalf("second submit: status = %d, want 409", rec.Code)
	}
	if gw.saveCalls != 1 {
		t.Errorf("gateway received %d create calls, want 1", gw.saveCalls)
	}
}

func TestCreateLoanValidation(t *testing.T) {
	gw := &stubGateway{}
	s := testServer(t, gw)

	body := strings.NewReader(`{"recursoId":1,"solicitante":"ana@example.com","fechaPrestamo":"2025-07-10","fechaDevolucion":"2025-07-09","estado":"Activo"}`)
	req := httptest.NewRequest("POST", "/api/loans", body)
	rec := httptest.NewRecorder()
	s.handleCreateLoan(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
	if gw.saveCalls != 0 {
		t.Errorf("gateway received %d calls for an invalid range", gw.saveCalls)
	}
	if !strings.Contains(rec.Body.String(), "fechaDevolucion") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestCreateLoanUnselectedResource(t *testing.T) {
	gw := &stubGateway{}
	s := testServer(t, gw)
	body := strings.NewReader(`{"recursoId":0,"solicitante":"ana@example.com","fechaPrestamo":"2025-07-01","fechaDevolucion":"","estado":"Activo"}`)
	rec := httptest.NewRecorder()
	s.handleCreateLoan(rec, httptest.NewRequest("POST", "/api/loans", body))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
	if gw.saveCalls != 0 {
		t.Error("gateway should not be called for unbound resource")
	}
}

func TestReturnLoan(t *testing.T) {
	gw := &stubGateway{returnOK: true}
	s := testServer(t, gw)

	req := withURLParam(httptest.NewRequest("POST", "/api/loans/10/return", strings.NewReader(`{"recursoId":1}`)), "id", "10")
	rec := httptest.NewRecorder()
	s.handleReturnLoan(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var got gateway.LoanStateResult
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if !got.OK || got.Updated == nil || got.Updated.State != "Devuelto" {
		t.Errorf("got %+v", got)
	}
}

func TestReturnLoanRejected(t *testing.T) {
	s := testServer(t, &stubGateway{returnOK: false})
	req := withURLParam(httptest.NewRequest("POST", "/api/loans/10/return", strings.NewReader(`{"recursoId":1}`)), "id", "10")
	rec := httptest.NewRecorder()
	s.handleReturnLoan(rec, req)
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

func TestDashboardAllOrNothing(t *testing.T) {
	gw := &stubGateway{
		summary:  &models.DashboardSummary{TotalResources: 10},
		byState:  []models.StateCount{{State: "Bodega", Count: 6, Percentage: 60}},
		loansDue: []models.LoanDue{{LoanID: 5}},
	}
	s := testServer(t, gw)

	rec := httptest.NewRecorder()
	s.handleDashboard(rec, httptest.NewRequest("GET", "/api/dashboard", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got dashboardResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.Summary == nil || got.Summary.TotalResources != 10 || len(got.ByState) != 1 || len(got.LoansDue) != 1 {
		t.Errorf("got %+v", got)
	}

	gw.err = fmt.Errorf("backend offline")
	rec = httptest.NewRecorder()
	s.handleDashboard(rec, httptest.NewRequest("GET", "/api/dashboard", nil))
	if rec.Code != http.StatusBadGateway {
		t.Errorf("partial failure should fail the whole render, status = %d", rec.Code)
	}
}

func TestListReports(t *testing.T) {
	s := testServer(t, &stubGateway{})
	rec := httptest.NewRecorder()
	s.handleListReports(rec, httptest.NewRequest("GET", "/api/reports", nil))
	var got []reportListing
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 9 {
		t.Errorf("catalog listed %d reports, want 9", len(got))
	}
}

func TestDownloadReport(t *testing.T) {
	gw := &stubGateway{resources: []models.Resource{
		{ID: 1, Model: "Dell", Serial: "SN-1", State: "Bodega"},
	}}
	s := testServer(t, gw)

	req := withURLParam(httptest.NewRequest("GET", "/api/reports/recursos-bodega/download", nil), "slug", "recursos-bodega")
	rec := httptest.NewRecorder()
	s.handleDownloadReport(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("Content-Type = %q", ct)
	}
	cd := rec.Header().Get("Content-Disposition")
	if !strings.Contains(cd, "Recursos_En_Bodega_") || !strings.Contains(cd, ".csv") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if !strings.Contains(rec.Body.String(), `"Dell"`) {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestDownloadReportNoData(t *testing.T) {
	s := testServer(t, &stubGateway{})
	req := withURLParam(httptest.NewRequest("GET", "/api/reports/prestamos-activos/download", nil), "slug", "prestamos-activos")
	rec := httptest.NewRecorder()
	s.handleDownloadReport(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "no data to export") {
		t.Errorf("body = %s", rec.Body.String())
	}
	if rec.Header().Get("Content-Disposition") != "" {
		t.Error("no attachment header expected for empty exports")
	}
}

func TestDownloadReportUnknownSlug(t *testing.T) {
	s := testServer(t, &stubGateway{})
	req := withURLParam(httptest.NewRequest("GET", "/api/reports/nope/download", nil), "slug", "nope")
	rec := httptest.NewRecorder()
	s.handleDownloadReport(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
