package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/shopmesh/shopmesh-client/api/responses"
	"github.com/shopmesh/shopmesh-client/pkg/config"
	pkgerrors "github.com/shopmesh/shopmesh-client/pkg/errors"
	"github.com/shopmesh/shopmesh-client/pkg/logger"
)

const envHeader = "X-ShopMesh-Env"

// Pinger is the health-check surface of a dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings the local database and redis when wired. A nil pinger
// means the dependency is intentionally absent (memory fallback, redis off)
// and does not fail readiness.
func HealthReady(cfg *config.Config, logg *logger.Logger, pingers map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		checks := map[string]string{}
		for name, pinger := range pingers {
			if pinger == nil {
				checks[name] = "disabled"
				continue
			}
			if err := pinger.Ping(ctx); err != nil {
				checks[name] = "down"
				responses.WriteError(ctx, logg, w,
					pkgerrors.Wrap(pkgerrors.CodeDependency, err, "dependency not ready").
						WithDetails(map[string]any{"dependency": name}))
				return
			}
			checks[name] = "up"
		}

		checks["status"] = "ready"
		responses.WriteSuccess(w, checks)
	}
}
