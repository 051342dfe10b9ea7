package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/AI2HU/gsnweb/internal/api"
	"github.com/AI2HU/gsnweb/internal/gsn"
	"github.com/AI2HU/gsnweb/internal/logger"
	"github.com/AI2HU/gsnweb/internal/scheduler"
)

var (
	apiPort          string
	apiHost          string
	corsOrigin       string
	publicURL        string
	cleanupSpec      string
	sessionRetention time.Duration
)

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the gsnweb REST API server",
	Long: `Start the REST API used by the GSN web UI:
- OAuth2 login against GSN (login, callback, logout)
- Sensor list and sensor data, proxied to GSN with the query size limit applied
- Settings (read-only, secret masked), health and Prometheus metrics`,
	Args: cobra.NoArgs,
	RunE: runAPI,
}

func init() {
	apiCmd.Flags().StringVarP(&apiPort, "port", "p", "8000", "Port to run the API server on")
	apiCmd.Flags().StringVarP(&apiHost, "host", "H", "0.0.0.0", "Host to bind the API server to")
	apiCmd.Flags().StringVarP(&corsOrigin, "cors-origin", "c", "", "CORS origin to allow (default is the origin of GSN.WEBUI_URL, use '*' for all origins)")
	apiCmd.Flags().StringVar(&publicURL, "public-url", "", "URL browsers reach this server at, used for the OAuth2 callback (default is derived from the request)")
	apiCmd.Flags().StringVar(&cleanupSpec, "cleanup-schedule", scheduler.DefaultCleanupSpec, "cron expression of the expired session cleanup")
	apiCmd.Flags().DurationVar(&sessionRetention, "session-retention", scheduler.DefaultRetention, "how long sessions are kept after their token expired")
}

func runAPI(cmd *cobra.Command, args []string) error {
	cfg := currentSettings()
	if err := cfg.Validate(); err != nil {
		return err
	}

	selectedCORSOrigin := corsOrigin
	if selectedCORSOrigin == "" {
		selectedCORSOrigin = originOf(cfg.GSN.WebUIURL)
	}

	out := cmd.OutOrStdout()
	address := net.JoinHostPort(apiHost, apiPort)

	fmt.Fprintln(out, FormatHeader("🚀 Starting gsnweb API Server"))
	fmt.Fprintln(out, FormatHeader("============================"))
	fmt.Fprintln(out, FormatLabelValue("Address:", address))
	fmt.Fprintln(out, FormatLabelValue("CORS Origin:", selectedCORSOrigin))
	fmt.Fprintln(out, FormatLabelValue("GSN (local):", cfg.GSN.ServiceURLLocal))
	fmt.Fprintln(out, FormatLabelValue("Web UI:", cfg.GSN.WebUIURL))
	fmt.Fprintln(out, FormatLabelValue("Max query size:", fmt.Sprint(cfg.GSN.MaxQuerySize)))
	fmt.Fprintln(out)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := openDatabase(cfg.Default())
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	if err := database.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Disconnect(context.Background())

	if err := database.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	fmt.Fprintln(out, FormatSuccess("✅ Database connection successful!"))

	sched := scheduler.New(database, sessionRetention)
	if err := sched.Start(ctx, cleanupSpec); err != nil {
		return err
	}
	defer sched.Stop()

	server := api.NewServer(database, gsn.New(cfg.GSN), cfg, selectedCORSOrigin)
	if err := server.SetPublicURL(publicURL); err != nil {
		return err
	}
	httpServer := &http.Server{
		Addr:              address,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	fmt.Fprintln(out, "🌐 API Server is running!")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "📚 Available Endpoints:")
	fmt.Fprintln(out, "    GET    /api/v1/health                 - Health check")
	fmt.Fprintln(out, "    GET    /api/v1/settings               - Active settings")
	fmt.Fprintln(out, "    GET    /api/v1/auth/login             - Log in with GSN")
	fmt.Fprintln(out, "    GET    /api/v1/auth/callback          - OAuth2 callback")
	fmt.Fprintln(out, "    POST   /api/v1/auth/logout            - Log out")
	fmt.Fprintln(out, "    GET    /api/v1/sensors                - List sensors")
	fmt.Fprintln(out, "    GET    /api/v1/sensors/:name/data     - Sensor data (from, to, size)")
	fmt.Fprintln(out, "    GET    /metrics                       - Prometheus metrics")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Press Ctrl+C to stop the server")

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	fmt.Fprintln(out, "\n🛑 Shutting down API server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed: %v", err)
		return err
	}
	return nil
}
