package handlers

import (
	"net/http"

	"github.com/gmelo/transferapi/internal/handlers/render"
)

func handleHealth(pinger pinger) http.Handler {
	type response struct {
		Status   string `json:"status"`
		Database string `json:"database"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := pinger.Ping(r.Context()); err != nil {
			render.JSONWithStatus(w, response{Status: "degraded", Database: "down"}, http.StatusServiceUnavailable)
			return
		}

		render.JSON(w, response{Status: "ok", Database: "up"})
	})
}
