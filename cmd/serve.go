package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/meridian-group/decision-cli/internal/model"
	"github.com/meridian-group/decision-cli/internal/monitoring"
	"github.com/meridian-group/decision-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if cfg.Monitoring.Enabled {
			checker := monitoring.NewChecker(
				monitoring.NewCollector(env.st),
				monitoring.NewAlerter(cfg.Monitoring),
				cfg.Monitoring,
			)
			go checker.Run(ctx)
		}

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.RealIP)
		r.Use(middleware.Recoverer)
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.Server.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
		}))

		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Route("/api", func(r chi.Router) {
			r.Post("/analyses", env.handleAnalyze)
			r.Get("/sessions", env.handleListSessions)
			r.Get("/sessions/{id}", env.handleGetSession)
			r.Delete("/sessions/{id}", env.handleDeleteSession)
			r.Post("/feedback", env.handleFeedback)
			r.Get("/feedback/report", env.handleFeedbackReport)
			r.Get("/deadletters", env.handleDeadLetters)
			r.Get("/metrics", env.handleMetrics)
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: r,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
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

// handleAnalyze runs an analysis and streams progress over SSE, finishing
// with a "result" event carrying the full outcome.
func (e *env) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Input string `json:"input"`
		Mode  string `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Input == "" {
		writeError(w, http.StatusBadRequest, "input is required")
		return
	}
	mode := model.RunMode(req.Mode)
	if mode == "" {
		mode = model.ModeForward
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	orch, err := e.orchestratorFor(mode, func(ev model.ProgressEvent) {
		writeSSE(w, "progress", ev)
		flusher.Flush()
	})
	if err != nil {
		writeSSE(w, "error", map[string]string{"error": err.Error()})
		flusher.Flush()
		return
	}

	outcome, err := orch.Run(r.Context(), req.Input, mode)
	if err != nil {
		writeSSE(w, "error", map[string]string{
			"error":  err.Error(),
			"run_id": outcome.Run.ID,
		})
		flusher.Flush()
		return
	}

	writeSSE(w, "result", outcome)
	flusher.Flush()
}

func (e *env) handleListSessions(w http.ResponseWriter, r *http.Request) {
	filter := store.SessionFilter{
		Status: model.RunStatus(r.URL.Query().Get("status")),
		Limit:  queryInt(r, "limit", 50),
		Offset: queryInt(r, "offset", 0),
	}
	sessions, err := e.st.ListSessions(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

func (e *env) handleGetSession(w http.ResponseWriter, r *http.Request) {
	run, err := e.st.GetSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (e *env) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := e.st.DeleteSession(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (e *env) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var rec model.FeedbackRecord
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if rec.DecisionID == "" {
		writeError(w, http.StatusBadRequest, "decision_id is required")
		return
	}
	if rec.Rating < 1 || rec.Rating > 5 {
		writeError(w, http.StatusBadRequest, "rating must be 1-5")
		return
	}
	e.learner.RecordFeedback(r.Context(), rec)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "recorded"})
}

func (e *env) handleFeedbackReport(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, e.learner.FeedbackReport())
}

func (e *env) handleDeadLetters(w http.ResponseWriter, r *http.Request) {
	letters, err := e.st.ListDeadLetters(r.Context(), queryInt(r, "limit", 100))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"dead_letters": letters})
}

func (e *env) handleMetrics(w http.ResponseWriter, r *http.Request) {
	lookback := queryInt(r, "lookback_hours", cfg.Monitoring.LookbackWindowHours)
	snap, err := monitoring.NewCollector(e.st).Collect(r.Context(), lookback)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("encode response failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeSSE(w http.ResponseWriter, event string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		zap.L().Warn("encode sse payload failed", zap.Error(err))
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}
