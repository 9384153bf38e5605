package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hireloop/talent-cli/internal/model"
	"github.com/hireloop/talent-cli/internal/pipeline"
	"github.com/hireloop/talent-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API for stage invocations and snapshot reads",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newRouter(env),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// newRouter builds the API routes.
func newRouter(env *pipelineEnv) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Actor-ID", "X-Org-ID"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/v1/stages/{stage}", handleInvokeStage(env))
	r.Get("/v1/snapshots/{stage}", handleGetSnapshot(env))
	r.Get("/v1/snapshots/{stage}/history", handleSnapshotHistory(env))

	return r
}

// invokeRequest is the POST body for a stage invocation.
type invokeRequest struct {
	Role      string            `json:"role_id"`
	Candidate string            `json:"candidate_id"`
	OrgID     string            `json:"org_id"`
	Context   map[string]string `json:"context"`
}

func handleInvokeStage(env *pipelineEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind, err := model.ParseStageKind(chi.URLParam(r, "stage"))
		if err != nil {
			writeError(w, http.StatusNotFound, "UNKNOWN_STAGE", err.Error())
			return
		}

		var req invokeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", "invalid request body")
			return
		}
		if req.Role == "" {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", "role_id is required")
			return
		}

		org := req.OrgID
		if org == "" {
			org = cfg.Pipeline.OrgID
		}

		outcome, err := env.Executor.Execute(r.Context(), pipeline.Request{
			Stage:   kind,
			Entity:  model.EntityPair{RoleID: req.Role, CandidateID: req.Candidate},
			Actor:   r.Header.Get("X-Actor-ID"),
			OrgID:   org,
			Context: req.Context,
		})
		if err != nil {
			zap.L().Error("stage invocation errored",
				zap.String("stage", string(kind)),
				zap.Error(err),
			)
			writeError(w, http.StatusInternalServerError, "INTERNAL", "stage invocation failed")
			return
		}

		writeJSON(w, outcomeStatus(outcome), newOutcomeView(outcome))
	}
}

// outcomeStatus maps a terminal outcome to an HTTP status.
func outcomeStatus(o *pipeline.Outcome) int {
	switch {
	case o.Completed():
		return http.StatusOK
	case o.Code == pipeline.CodeUnauthenticated:
		return http.StatusUnauthorized
	case strings.HasPrefix(o.Code, pipeline.CodeMissingDependency):
		return http.StatusConflict
	case o.Code == pipeline.CodeQuotaExhausted, o.Code == pipeline.CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusBadGateway
	}
}

func handleGetSnapshot(env *pipelineEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind, err := model.ParseStageKind(chi.URLParam(r, "stage"))
		if err != nil {
			writeError(w, http.StatusNotFound, "UNKNOWN_STAGE", err.Error())
			return
		}
		entity := pipeline.SnapshotEntity(kind, model.EntityPair{
			RoleID:      r.URL.Query().Get("role_id"),
			CandidateID: r.URL.Query().Get("candidate_id"),
		})
		if entity.RoleID == "" {
			writeError(w, http.StatusBadRequest, "INVALID_QUERY", "role_id is required")
			return
		}

		snap, err := env.Store.LatestSnapshot(r.Context(), kind, entity)
		if errors.Is(err, store.ErrSnapshotNotFound) {
			writeError(w, http.StatusNotFound, "SNAPSHOT_NOT_FOUND", "no snapshot for this stage and entity")
			return
		}
		if err != nil {
			zap.L().Error("snapshot read failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "INTERNAL", "snapshot read failed")
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

func handleSnapshotHistory(env *pipelineEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind, err := model.ParseStageKind(chi.URLParam(r, "stage"))
		if err != nil {
			writeError(w, http.StatusNotFound, "UNKNOWN_STAGE", err.Error())
			return
		}
		entity := pipeline.SnapshotEntity(kind, model.EntityPair{
			RoleID:      r.URL.Query().Get("role_id"),
			CandidateID: r.URL.Query().Get("candidate_id"),
		})
		if entity.RoleID == "" {
			writeError(w, http.StatusBadRequest, "INVALID_QUERY", "role_id is required")
			return
		}

		limit := 50
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				writeError(w, http.StatusBadRequest, "INVALID_QUERY", "limit must be a positive integer")
				return
			}
			limit = n
		}

		history, err := env.Store.SnapshotHistory(r.Context(), kind, entity, limit)
		if err != nil {
			zap.L().Error("snapshot history read failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "INTERNAL", "snapshot history read failed")
			return
		}
		writeJSON(w, http.StatusOK, history)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"success": false,
		"code":    code,
		"message": message,
	})
}
