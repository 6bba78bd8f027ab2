package controller

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/watchroom/server/pkg/metrics"
)

func (c *controller) GetMux() http.Handler {
	r := chi.NewRouter()

	r.Use(c.requestIdMw)
	r.Use(c.requestLoggingMw)

	r.HandleFunc("/ws/room/{room-id}", c.JoinRoom)

	r.Post("/api/room", c.CreateRoom)
	r.Get("/api/room/{room-id}/history", c.GetChatHistory)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	return r
}
