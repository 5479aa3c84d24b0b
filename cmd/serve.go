package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lodgescout/resolver-cli/internal/pipeline"
)

var servePort int

// shutdownTimeout bounds how long in-flight requests get to drain.
const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the admin HTTP surface",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: buildRouter(ctx, env),
		}

		zap.L().Info("starting server", zap.Int("port", port))
		return runServer(ctx, srv)
	},
}

// buildRouter assembles the admin HTTP surface. env may be nil in tests
// that only exercise the health endpoint.
func buildRouter(ctx context.Context, env *pipelineEnv) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/status", func(w http.ResponseWriter, req *http.Request) {
		locality := req.URL.Query().Get("location")
		if err := pipeline.ValidateLocality(locality); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		data, err := env.Pipeline.Status(locality)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		if data == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no cache for locality"})
			return
		}
		writeJSON(w, http.StatusOK, data)
	})

	r.Get("/runs", func(w http.ResponseWriter, req *http.Request) {
		locality := req.URL.Query().Get("location")
		if err := pipeline.ValidateLocality(locality); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		runs, err := env.Store.ListRuns(req.Context(), locality, 100)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"location": locality, "logs": runs})
	})

	r.Post("/collect-contacts", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			Location string `json:"location"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		if err := pipeline.ValidateLocality(body.Location); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}

		// Resolution runs in the background; poll /status for progress.
		go func() {
			data, err := env.Pipeline.Run(ctx, body.Location)
			if err != nil {
				zap.L().Error("serve: resolution failed",
					zap.String("locality", body.Location), zap.Error(err))
				return
			}
			zap.L().Info("serve: resolution complete",
				zap.String("locality", data.CurrentLocation),
				zap.Int("organizations", len(data.Organizations)))
		}()

		writeJSON(w, http.StatusAccepted, map[string]string{
			"status":   "accepted",
			"location": body.Location,
		})
	})

	return r
}

// runServer serves until ctx is cancelled, then drains in-flight requests
// under a fresh bounded context: the signal context is already done when
// shutdown starts, so it cannot be the shutdown deadline.
func runServer(ctx context.Context, srv *http.Server) error {
	go func() {
		<-ctx.Done()
		zap.L().Info("shutting down server")
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return eris.Wrap(err, "server listen")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
