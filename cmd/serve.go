package main

import (
	"context"
	"encoding/json"
	"errors"
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

	"github.com/patou-app/moderation-cli/internal/engine"
	"github.com/patou-app/moderation-cli/internal/model"
	"github.com/patou-app/moderation-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the moderation HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newRouter(e, cfg.Server.AllowedOrigins),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx) //nolint:errcheck
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

// newRouter builds the HTTP API.
func newRouter(e *env, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/stats", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, e.Metrics.Snapshot())
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/evaluate", handleEvaluate(e))
		r.Get("/review", handleReviewList(e))
		r.Post("/overrides", handleCreateOverride(e))
		r.Get("/events/{trackID}", handleTrackEvents(e))
	})

	return r
}

func handleEvaluate(e *env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			TrackID   string `json:"track_id"`
			ProfileID string `json:"profile_id"`
			Source    string `json:"source"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.TrackID == "" {
			writeError(w, http.StatusBadRequest, "track_id is required")
			return
		}
		if req.Source == "" {
			req.Source = "api"
		}

		result, err := e.Engine.Evaluate(r.Context(), req.TrackID, req.ProfileID, req.Source)
		if err != nil {
			var auditErr *engine.AuditError
			if errors.As(err, &auditErr) {
				// Decision reached; audit failure is logged, not surfaced.
				zap.L().Error("decision not audited", zap.String("track_id", req.TrackID), zap.Error(err))
			} else {
				zap.L().Error("evaluation failed", zap.String("track_id", req.TrackID), zap.Error(err))
				writeError(w, http.StatusBadGateway, "evaluation failed")
				return
			}
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func handleReviewList(e *env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		events, err := e.Store.ListEventsInReview(r.Context(), 100)
		if err != nil {
			zap.L().Error("review list failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "review list failed")
			return
		}
		if events == nil {
			events = []model.ModerationEvent{}
		}
		writeJSON(w, http.StatusOK, events)
	}
}

func handleCreateOverride(e *env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Scope    string `json:"scope"`
			Type     string `json:"type"`
			Value    string `json:"value"`
			Decision string `json:"decision"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Type == "" {
			req.Type = model.OverrideTypeTrack
		}
		if req.Type != model.OverrideTypeTrack && req.Type != model.OverrideTypeArtist {
			writeError(w, http.StatusBadRequest, "type must be track or artist")
			return
		}
		if req.Value == "" {
			writeError(w, http.StatusBadRequest, "value is required")
			return
		}
		decision := model.Decision(req.Decision)
		if !decision.ValidOverride() {
			writeError(w, http.StatusBadRequest, "decision must be allow or block")
			return
		}

		o, err := e.Store.CreateOverride(r.Context(), req.Scope, req.Type, req.Value, decision)
		if err != nil {
			zap.L().Error("create override failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "create override failed")
			return
		}
		writeJSON(w, http.StatusCreated, o)
	}
}

func handleTrackEvents(e *env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		trackID := chi.URLParam(r, "trackID")
		events, err := e.Store.ListEvents(r.Context(), store.EventFilter{TrackID: trackID, Limit: 100})
		if err != nil {
			zap.L().Error("events list failed", zap.String("track_id", trackID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "events list failed")
			return
		}
		if events == nil {
			events = []model.ModerationEvent{}
		}
		writeJSON(w, http.StatusOK, events)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
