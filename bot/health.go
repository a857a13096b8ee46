package bot

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/staffgate/core/logger"
)

// healthServer exposes a liveness endpoint for container orchestration. It
// reports degraded (but still 200) when a database ping fails, so a flaky
// database does not get the process restarted.
type healthServer struct {
	srv         *http.Server
	personnelDB *sqlx.DB
	metaDB      *sqlx.DB
}

func newHealthServer(listen string, personnelDB, metaDB *sqlx.DB) *healthServer {
	h := &healthServer{
		personnelDB: personnelDB,
		metaDB:      metaDB,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.handle)
	h.srv = &http.Server{
		Addr:              listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return h
}

func (h *healthServer) Start() {
	go func() {
		if err := h.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.L.With("component", "health").Error("health server failed",
				slog.String("event", "health"),
				slog.String("err", err.Error()),
			)
		}
	}()
	logger.L.With("component", "health").Info("health endpoint up",
		slog.String("event", "health"),
		slog.String("listen", h.srv.Addr),
	)
}

func (h *healthServer) Stop(ctx context.Context) {
	shutdownCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_ = h.srv.Shutdown(shutdownCtx)
}

func (h *healthServer) handle(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := map[string]string{
		"status":    "ok",
		"personnel": pingStatus(ctx, h.personnelDB),
		"meta":      pingStatus(ctx, h.metaDB),
	}
	if status["personnel"] != "ok" || status["meta"] != "ok" {
		status["status"] = "degraded"
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(status)
}

func pingStatus(ctx context.Context, db *sqlx.DB) string {
	if db == nil {
		return "absent"
	}
	if err := db.PingContext(ctx); err != nil {
		return "down"
	}
	return "ok"
}
