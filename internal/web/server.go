// Package web is the HTTP surface: route wiring, session gating and
// the handlers that adapt browser requests onto the backend gateway.
package web

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"assetdesk/internal/config"
	"assetdesk/internal/filter"
	"assetdesk/internal/gateway"
	"assetdesk/internal/models"
	"assetdesk/internal/report"
	"assetdesk/internal/session"
	"assetdesk/internal/telemetry"
)

// Gateway is the slice of the backend client the handlers consume.
type Gateway interface {
	ListResources(ctx context.Context) ([]models.Resource, error)
	ResourceByID(ctx context.Context, id int) (*models.Resource, error)
	SaveResource(ctx context.Context, r models.Resource) (*models.Resource, error)
	UpdateResource(ctx context.Context, r models.Resource) (*models.Resource, error)
	UploadDocument(ctx context.Context, resourceID int, filename string, file io.Reader) (*models.Document, error)
	DocumentsByResource(ctx context.Context, resourceID int) ([]models.Document, error)
	ListLoans(ctx context.Context) ([]models.Loan, error)
	SaveLoan(ctx context.Context, l models.Loan) (*models.Loan, error)
	ReturnLoan(ctx context.Context, loanID, resourceID int) (gateway.LoanStateResult, error)
	HistoryByResource(ctx context.Context, resourceID int) ([]models.HistoryEntry, error)
	Summary(ctx context.Context) (*models.DashboardSummary, error)
	CountByState(ctx context.Context) ([]models.StateCount, error)
	LoansDue(ctx context.Context) ([]models.LoanDue, error)
}

var _ Gateway = (*gateway.Client)(nil)

// Server wires dependencies and configuration for the HTTP handlers.
type Server struct {
	gw       Gateway
	sessions *session.Manager
	catalog  *report.Catalog
	cfg      config.Config
	log      zerolog.Logger

	// guards deduplicates form submissions keyed by Idempotency-Key.
	guards *filter.GuardSet
}

// guardRetention bounds how long an idle Idempotency-Key keeps its
// guard before the set reclaims it.
const guardRetention = 30 * time.Minute

// New initialises the HTTP layer.
func New(gw Gateway, sessions *session.Manager, catalog *report.Catalog, cfg config.Config, log zerolog.Logger) (*Server, error) {
	if gw == nil {
		return nil, errors.New("gateway is required")
	}
	if sessions == nil {
		return nil, errors.New("session manager is required")
	}
	if catalog == nil {
		return nil, errors.New("report catalog is required")
	}
	return &Server{
		gw:       gw,
		sessions: sessions,
		catalog:  catalog,
		cfg:      cfg,
		log:      log,
		guards:   filter.NewGuardSet(guardRetention),
	}, nil
}

// Routes constructs the chi router containing all endpoints.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(telemetry.RequestLogger(s.log, "assetdesk"))

	allowed := s.cfg.AllowedOrigins
	if len(allowed) == 0 {
		allowed = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowed,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token", "Idempotency-Key"},
		ExposedHeaders:   []string{"Link", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           int((10 * time.Minute).Seconds()),
	}))

	rate := s.cfg.RateLimit
	if rate <= 0 {
		rate = 300
	}
	r.Use(httprate.Limit(rate, time.Minute))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	r.Method("GET", "/metrics", promhttp.Handler())

	r.Route("/auth", func(r chi.Router) {
		r.Get("/login", s.handleLogin)
		r.Get("/callback", s.handleCallback)
		r.Get("/logout", s.handleLogout)
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(s.sessions.Authenticated)

		r.Get("/me", s.handleMe)

		r.Route("/resources", func(r chi.Router) {
			r.Get("/", s.handleListResources)
			r.Post("/", s.handleCreateResource)
			r.Get("/{id}", s.handleGetResource)
			r.Put("/{id}", s.handleUpdateResource)
		})

		r.Route("/loans", func(r chi.Router) {
			r.Get("/", s.handleListLoans)
			r.Post("/", s.handleCreateLoan)
			r.Post("/{id}/return", s.handleReturnLoan)
		})

		r.Get("/dashboard", s.handleDashboard)

		r.Route("/reports", func(r chi.Router) {
			r.Get("/", s.handleListReports)
			r.Get("/{slug}/download", s.handleDownloadReport)
		})
	})

	return r
}

// guardFor returns the submission guard for an idempotency key, or nil
// when the client sent none.
func (s *Server) guardFor(r *http.Request) *filter.SubmitGuard {
	key := r.Header.Get("Idempotency-Key")
	if key == "" {
		return nil
	}
	return s.guards.Get(key)
}
