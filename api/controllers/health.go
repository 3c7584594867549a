package controllers

import (
	"context"
	"net/http"

	"github.com/harborlane/clienteling-core/api/responses"
	"github.com/harborlane/clienteling-core/pkg/config"
	"github.com/harborlane/clienteling-core/pkg/logger"
)

// Pinger is the connectivity check an optional dependency exposes.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Clienteling-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

func HealthReady(cfg *config.Config, logg *logger.Logger, cache Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Clienteling-Env", cfg.App.Env)

		checks := map[string]string{}
		healthy := true

		if cache != nil {
			if err := cache.Ping(r.Context()); err != nil {
				checks["redis"] = "unreachable"
				healthy = false
				if logg != nil {
					logg.Error(r.Context(), "redis readiness check failed", err)
				}
			} else {
				checks["redis"] = "ok"
			}
		}

		status := map[string]any{"status": "ready", "checks": checks}
		if !healthy {
			responses.WriteSuccessStatus(w, http.StatusServiceUnavailable, status)
			return
		}
		responses.WriteSuccess(w, status)
	}
}
