package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"assetdesk/internal/config"
	"assetdesk/internal/gateway"
	"assetdesk/internal/report"
	"assetdesk/internal/session"
	"assetdesk/internal/telemetry"
	"assetdesk/internal/web"
)

const serviceName = "assetdesk"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "assetdesk",
		Short:         "Inventory and loan tracking front end",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newServeCommand())
	cmd.AddCommand(newReportCommand())
	return cmd
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}
}

func serve() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ValidateOIDC(); err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	cleanup, err := telemetry.Init(ctx, serviceName, cfg.OTLPEndpoint)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := cleanup(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown tracing")
		}
	}()

	sessions, err := session.NewManager(ctx, session.Options{
		Issuer:          cfg.OIDCIssuer,
		ClientID:        cfg.OIDCClientID,
		ClientSecret:    cfg.OIDCClientSecret,
		RedirectURL:     cfg.OIDCRedirectURL,
		PostLogoutURL:   cfg.OIDCPostLogoutURL,
		Scopes:          cfg.OIDCScopes,
		AuthLocale:      cfg.OIDCAuthLocale,
		RenewalLeadTime: cfg.TokenRenewalLeadTime,
		SessionTTL:      cfg.SessionTTL,
		CookieDomain:    cfg.CookieDomain,
		CookieSecure:    cfg.CookieSecure,
	}, log.Logger)
	if err != nil {
		return fmt.Errorf("init sessions: %w", err)
	}

	catalog, err := report.NewCatalog(cfg.ReportCatalogPath)
	if err != nil {
		return fmt.Errorf("load report catalog: %w", err)
	}

	gw := gateway.New(cfg.BackendBaseURL, cfg.BackendTimeout)
	server, err := web.New(gw, sessions, catalog, cfg, log.Logger)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("starting assetdesk")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errs <- err
		}
	}()

	select {
	case err := <-errs:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown server: %w", err)
	}
	return nil
}

func newReportCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "report <slug>",
		Short: "Export a report to a CSV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			_ = godotenv.Load()

			cfg, err := config.Load(ctx)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			catalog, err := report.NewCatalog(cfg.ReportCatalogPath)
			if err != nil {
				return fmt.Errorf("load report catalog: %w", err)
			}
			def, ok := catalog.Lookup(args[0])
			if !ok {
				return fmt.Errorf("unknown report %q", args[0])
			}

			// Operator exports authenticate with a static token.
			if tok := os.Getenv("BACKEND_TOKEN"); tok != "" {
				ctx = gateway.WithToken(ctx, tok)
			}
			gw := gateway.New(cfg.BackendBaseURL, cfg.BackendTimeout)

			var data report.Dataset
			switch def.Kind {
			case report.KindLoans:
				data.Loans, err = gw.ListLoans(ctx)
			default:
				data.Resources, err = gw.ListResources(ctx)
			}
			if err != nil {
				return err
			}

			export := report.Render(def, data, time.Now())
			if export.CSV == "" {
				return fmt.Errorf("no data to export")
			}
			if output == "" {
				output = export.Filename
			}
			if err := os.WriteFile(output, []byte(export.CSV), 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", output)
			return nil
		},
	}

	cmd.Flags().StringVar(&output, "output", "", "Destination CSV file (defaults to the report's download name)")
	return cmd
}
