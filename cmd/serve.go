package cmd

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"canvas-image-relay/modules/common/logger"
	"canvas-image-relay/modules/common/response"
	generateimage "canvas-image-relay/modules/generate-image"
	"canvas-image-relay/modules/relay"
)

var servePort string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP relay server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&servePort, "port", "p", "", "listen port (default: PORT env or 5000)")
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cfg)
	if err != nil {
		return err
	}
	defer a.shutdown()

	port := cfg.Port
	if servePort != "" {
		port = servePort
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := a.hub.Run(ctx); err != nil {
			log.Error().Msgf("❌ [Relay] Subscription stopped, delivering to local sessions only: %v", err)
		}
	}()

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           newRouter(a),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Msgf("🚀 Canvas Image Relay starting on port %s", port)
		log.Info().Msgf("🎨 Generate: POST http://localhost:%s/generate-image", port)
		log.Info().Msgf("📡 Relay WebSocket: ws://localhost:%s/ws?socketId=...", port)
		log.Info().Msgf("❤️  Health check: http://localhost:%s/health", port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		log.Info().Msg("🛑 Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Msgf("⚠️  Graceful shutdown failed: %v", err)
		}
	}
	return nil
}

func newRouter(a *app) *mux.Router {
	r := mux.NewRouter()
	r.Use(response.EnableCORS)
	r.Use(logger.Middleware)

	r.HandleFunc("/", healthCheck).Methods("GET")
	r.HandleFunc("/health", healthCheck).Methods("GET")

	generateimage.NewGenerateImageHandler(a.service).RegisterRoutes(r)
	relay.NewHandler(a.hub).RegisterRoutes(r)
	return r
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	response.WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "canvas-image-relay",
	})
}
