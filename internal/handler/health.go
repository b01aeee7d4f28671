package handler

import "net/http"

// ConnectionCounter reports how many chat clients are connected.
type ConnectionCounter interface {
	Len() int
}

type healthResponse struct {
	Status      string `json:"status"`
	Connections int    `json:"connections"`
}

// HandleHealth is the liveness probe.
//
// HTTP: GET /healthz
func HandleHealth(hub ConnectionCounter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Connections: hub.Len()})
	}
}
