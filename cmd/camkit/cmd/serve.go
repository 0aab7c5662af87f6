package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/camkit/internal/server"
	"github.com/MeKo-Tech/camkit/internal/version"
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server for remote camera control",
	Long: `Start an HTTP server that exposes one camera session.

The server provides the following endpoints:
  GET      /health             - Health check endpoint
  POST     /camera/start       - Open the camera
  POST     /camera/stop        - Close the camera
  POST     /camera/picture     - Take a picture and wait for it
  GET|PUT  /camera/config      - Read or change the camera configuration
  GET      /camera/ratios      - Aspect ratios of the open camera
  POST     /camera/barcode     - Toggle barcode detection
  POST     /camera/orientation - Report a device rotation in degrees
  GET      /ws/events          - Listener events over WebSocket
  GET      /metrics            - Prometheus metrics

Examples:
  camkit serve
  camkit serve --port 8080
  camkit serve --host 0.0.0.0 --port 3000 --start`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}

		host := cfg.Server.Host
		if cmd.Flags().Changed("host") {
			host, _ = cmd.Flags().GetString("host")
		}

		port := cfg.Server.Port
		if cmd.Flags().Changed("port") {
			port, _ = cmd.Flags().GetInt("port")
		}

		corsOrigin := cfg.Server.CORSOrigin
		if cmd.Flags().Changed("cors-origin") {
			corsOrigin, _ = cmd.Flags().GetString("cors-origin")
		}

		timeout := cfg.Server.TimeoutSec
		if cmd.Flags().Changed("timeout") {
			timeout, _ = cmd.Flags().GetInt("timeout")
		}

		shutdownTimeout := cfg.Server.ShutdownTimeout
		if cmd.Flags().Changed("shutdown-timeout") {
			shutdownTimeout, _ = cmd.Flags().GetInt("shutdown-timeout")
		}

		if port < 1 || port > 65535 {
			return fmt.Errorf("invalid port number: %d (must be between 1 and 65535)", port)
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Session metrics share the default registry served on /metrics.
		st, err := buildStack(cfg, nil)
		if err != nil {
			return fmt.Errorf("failed to initialize camera: %w", err)
		}

		camServer, err := server.NewServer(server.Config{
			Host:       host,
			Port:       port,
			CORSOrigin: corsOrigin,
			TimeoutSec: timeout,
			Version:    version.Version,
		}, server.Deps{
			Controller: st.ctrl,
			Loop:       st.loop,
			Sensor:     st.sensor,
			Logger:     slog.Default(),
		})
		if err != nil {
			_ = st.Close()
			return fmt.Errorf("failed to initialize server: %w", err)
		}

		if startNow, _ := cmd.Flags().GetBool("start"); startNow {
			if err := st.start(ctx); err != nil {
				slog.Warn("Camera did not open", "error", err)
			}
		}

		mux := http.NewServeMux()
		camServer.SetupRoutes(mux)

		httpServer := &http.Server{
			Addr:              fmt.Sprintf("%s:%d", host, port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}

		go func() {
			slog.Info("Starting camera server", "host", host, "port", port)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("Server error", "error", err)
				cancel()
			}
		}()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
		defer signal.Stop(sigChan)

		select {
		case sig := <-sigChan:
			slog.Info("Received shutdown signal", "signal", sig.String())
		case <-ctx.Done():
			slog.Info("Context cancelled, initiating shutdown")
		}

		slog.Info("Starting graceful shutdown", "timeout", fmt.Sprintf("%ds", shutdownTimeout))

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(shutdownTimeout)*time.Second)
		defer shutdownCancel()

		slog.Info("Shutting down HTTP server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server shutdown error", "error", err)
		} else {
			slog.Info("HTTP server shutdown completed")
		}

		// Stops the camera, saves the state file and ends the control thread.
		slog.Info("Releasing camera")
		if err := st.Close(); err != nil {
			slog.Error("Camera cleanup error", "error", err)
		} else {
			slog.Info("Camera cleanup completed")
		}

		slog.Info("Graceful shutdown completed")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("host", "H", "localhost", "server host")
	serveCmd.Flags().IntP("port", "p", 8080, "server port")
	serveCmd.Flags().String("cors-origin", "*", "CORS allowed origins")
	serveCmd.Flags().Int("timeout", 30, "control call and picture timeout in seconds")
	serveCmd.Flags().Int("shutdown-timeout", 10, "shutdown timeout in seconds")
	serveCmd.Flags().Bool("start", false, "open the camera before accepting requests")
}
