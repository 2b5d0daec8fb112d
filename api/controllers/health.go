package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/marketplace-checkout/api/responses"
	"github.com/angelmondragon/marketplace-checkout/pkg/config"
	pkgerrors "github.com/angelmondragon/marketplace-checkout/pkg/errors"
	"github.com/angelmondragon/marketplace-checkout/pkg/logger"
)

// Pinger is anything the readiness probe can check.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Checkout-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady reports ready only when the persistence backend answers.
func HealthReady(cfg *config.Config, store Pinger, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Checkout-Env", cfg.App.Env)
		if store != nil {
			if err := store.Ping(r.Context()); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persistence unavailable"))
				return
			}
		}
		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
