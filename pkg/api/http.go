package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"flux/pkg/api/handlers"
	"flux/pkg/respond"
	"flux/pkg/telemetry"
)

// Handler returns the versioned API router. Operational endpoints
// (healthz/readyz/metrics/docs) are mounted by the app, not here.
func Handler(rsp *respond.Responder) http.Handler {
	r := mux.NewRouter()
	r.Use(telemetry.Middleware)

	v1 := r.PathPrefix("/v1").Subrouter()
	handlers.RegisterConversations(v1)
	handlers.RegisterPersonas(v1)
	handlers.RegisterChat(v1, rsp)
	return r
}
