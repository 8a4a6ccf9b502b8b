package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/rfm-dashboard/api/responses"
	"github.com/angelmondragon/rfm-dashboard/pkg/config"
	pkgerrors "github.com/angelmondragon/rfm-dashboard/pkg/errors"
	"github.com/angelmondragon/rfm-dashboard/pkg/logger"
)

const envHeader = "X-RFM-Env"

// Pinger is a dependency probed by the readiness check.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady reports ready once the dataset source answers. A nil pinger
// means the source has nothing to probe.
func HealthReady(cfg *config.Config, logg *logger.Logger, source Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		w.Header().Set(envHeader, cfg.App.Env)
		if source != nil {
			if err := source.Ping(ctx); err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "dataset source not ready").
					WithDetails(map[string]any{"source": cfg.Dataset.Source}))
				return
			}
		}
		responses.WriteSuccess(w, map[string]string{"status": "ready", "source": cfg.Dataset.Source})
	}
}
