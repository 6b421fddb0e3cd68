// Package gateway is the typed client for the remote inventory
// backend. It owns no data: every call is a REST round trip, with
// backend quirks (singleton arrays, bare booleans) adapted here so the
// rest of the service sees regular Go shapes.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"assetdesk/internal/models"
)

// ErrNotFound reports that the backend holds no record for the id.
var ErrNotFound = errors.New("gateway: not found")

// TransportError carries a non-2xx backend response unmodified.
type TransportError struct {
	Status int
	Body   string
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.Status, e.Body)
}

type tokenKey struct{}

// WithToken returns a context that authenticates backend calls with
// the given bearer token.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

func tokenFrom(ctx context.Context) string {
	tok, _ := ctx.Value(tokenKey{}).(string)
	return tok
}

// Client talks to the inventory backend.
type Client struct {
	base string
	http *http.Client
}

// New builds a Client for the backend at base. Requests are traced and
// give up after timeout.
func New(base string, timeout time.Duration) *Client {
	return &Client{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if tok := tokenFrom(ctx); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return &TransportError{Status: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, "", out)
}

func (c *Client) sendJSON(ctx context.Context, method, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode %s %s: %w", method, path, err)
	}
	return c.do(ctx, method, path, bytes.NewReader(payload), "application/json", out)
}

// ListResources fetches the full resource catalog.
func (c *Client) ListResources(ctx context.Context) ([]models.Resource, error) {
	var out []models.Resource
	if err := c.getJSON(ctx, "/resource/findAll", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ResourceByID fetches one resource. The backend answers with a zero-
// or one-element array; an empty array maps to ErrNotFound.
func (c *Client) ResourceByID(ctx context.Context, id int) (*models.Resource, error) {
	var out []models.Resource
	if err := c.getJSON(ctx, fmt.Sprintf("/resource/findById/%d", id), &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return &out[0], nil
}

// SaveResource creates a resource and returns the stored record.
func (c *Client) SaveResource(ctx context.Context, r models.Resource) (*models.Resource, error) {
	var out models.Resource
	if err := c.sendJSON(ctx, http.MethodPost, "/resource/save", r, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateResource replaces an existing resource. The id must already be
// assigned.
func (c *Client) UpdateResource(ctx context.Context, r models.Resource) (*models.Resource, error) {
	if r.ID == 0 {
		return nil, fmt.Errorf("update resource: missing id")
	}
	var out models.Resource
	if err := c.sendJSON(ctx, http.MethodPut, fmt.Sprintf("/resource/update/%d", r.ID), r, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UploadDocument attaches a file to a resource via the backend's
// multipart endpoint.
func (c *Client) UploadDocument(ctx context.Context, resourceID int, filename string, file io.Reader) (*models.Document, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("upload document: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("upload document: %w", err)
	}
	if err := mw.WriteField("recursoId", fmt.Sprintf("%d", resourceID)); err != nil {
		return nil, fmt.Errorf("upload document: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("upload document: %w", err)
	}
	var out models.Document
	if err := c.do(ctx, http.MethodPost, "/document/saveDocument", &buf, mw.FormDataContentType(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DocumentsByResource lists the files attached to a resource.
func (c *Client) DocumentsByResource(ctx context.Context, resourceID int) ([]models.Document, error) {
	var out []models.Document
	if err := c.getJSON(ctx, fmt.Sprintf("/document/by-resource/%d", resourceID), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListLoans fetches every loan, active and historical.
func (c *Client) ListLoans(ctx context.Context) ([]models.Loan, error) {
	var out []models.Loan
	if err := c.getJSON(ctx, "/loan/findAll", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SaveLoan registers a new loan.
func (c *Client) SaveLoan(ctx context.Context, l models.Loan) (*models.Loan, error) {
	var out models.Loan
	if err := c.sendJSON(ctx, http.MethodPost, "/loan/saveLoan", l, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// LoanStateResult reports a return operation. Updated carries the loan
// as stored after the transition when the backend confirmed it; it is
// nil when the confirmation round trip could not locate the loan.
type LoanStateResult struct {
	OK      bool
	Updated *models.Loan
}

type loanStateRequest struct {
	LoanID     int `json:"prestamoId"`
	ResourceID int `json:"recursoId"`
}

// ReturnLoan marks a loan returned. The backend answers with a bare
// boolean; on success the stored loan is re-fetched so callers see the
// post-transition record instead of guessing at it.
func (c *Client) ReturnLoan(ctx context.Context, loanID, resourceID int) (LoanStateResult, error) {
	var ok bool
	req := loanStateRequest{LoanID: loanID, ResourceID: resourceID}
	if err := c.sendJSON(ctx, http.MethodPut, "/loan/updateLoanByState", req, &ok); err != nil {
		return LoanStateResult{}, err
	}
	if !ok {
		return LoanStateResult{OK: false}, nil
	}
	res := LoanStateResult{OK: true}
	loans, err := c.ListLoans(ctx)
	if err != nil {
		// The transition itself succeeded; report it without the record.
		return res, nil
	}
	for i := range loans {
		if loans[i].ID == loanID {
			res.Updated = &loans[i]
			break
		}
	}
	return res, nil
}

// HistoryByResource returns a resource's state changes, most recent
// first.
func (c *Client) HistoryByResource(ctx context.Context, resourceID int) ([]models.HistoryEntry, error) {
	var out []models.HistoryEntry
	if err := c.getJSON(ctx, fmt.Sprintf("/historical-resource/findById/%d", resourceID), &out); err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ChangedAt > out[j].ChangedAt
	})
	return out, nil
}

// Summary fetches the dashboard's headline counters.
func (c *Client) Summary(ctx context.Context) (*models.DashboardSummary, error) {
	var out models.DashboardSummary
	if err := c.getJSON(ctx, "/dashboard/findAll", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CountByState fetches the per-state breakdown with percentages.
func (c *Client) CountByState(ctx context.Context) ([]models.StateCount, error) {
	var out []models.StateCount
	if err := c.getJSON(ctx, "/dashboard/countByEstadoConPorcentaje", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// LoansDue fetches loans at or past their return date.
func (c *Client) LoansDue(ctx context.Context) ([]models.LoanDue, error) {
	var out []models.LoanDue
	if err := c.getJSON(ctx, "/dashboard/findLoanDue", &out); err != nil {
		return nil, err
	}
	return out, nil
}
