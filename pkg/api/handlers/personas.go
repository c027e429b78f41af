package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"flux/pkg/personas"
	"flux/pkg/utils"
)

// RegisterPersonas registers the persona listing route.
func RegisterPersonas(r *mux.Router) {
	r.HandleFunc("/personas", listPersonas).Methods(http.MethodGet)
}

// listPersonas handles GET /personas. The registry is static configuration,
// so every persona is always "online".
func listPersonas(w http.ResponseWriter, r *http.Request) {
	out := make(map[string]any, len(personas.All()))
	for _, p := range personas.All() {
		out[p.Key] = map[string]string{
			"name":   p.DisplayName(),
			"role":   p.Role,
			"model":  p.Model,
			"status": "online",
		}
	}
	_ = utils.JSONWrite(w, http.StatusOK, map[string]any{"personas": out})
}
