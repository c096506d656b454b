package controllers

import (
	"net/http"

	"github.com/crumbhaus/bakehouse-backend/api/responses"
	"github.com/crumbhaus/bakehouse-backend/pkg/config"
	"github.com/crumbhaus/bakehouse-backend/pkg/db"
	pkgerrors "github.com/crumbhaus/bakehouse-backend/pkg/errors"
)

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Bakehouse-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

func HealthReady(cfg *config.Config, client *db.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Bakehouse-Env", cfg.App.Env)
		if err := client.Ping(r.Context()); err != nil {
			responses.WriteError(r.Context(), nil, w,
				pkgerrors.Wrap(pkgerrors.CodeDependency, err, "database unreachable"))
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
