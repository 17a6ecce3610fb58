// Package remote exposes the controller over HTTP: start and stop runs,
// press manual keys and stream telemetry snapshots over a websocket.
package remote

import (
	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/gwillem/oscillator/pkg/control"
	"github.com/gwillem/oscillator/pkg/motion"
)

// Controller is the part of control.Controller the HTTP surface drives.
type Controller interface {
	Snapshot() motion.Snapshot
	Settings() motion.Settings
	Submit(cmd control.Command) error
	Press(a motion.Action)
	Release(a motion.Action)
}

// NewRouter creates the Chi router with all routes and middleware.
func NewRouter(ctrl Controller, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(Logger(logger))
	r.Use(Recovery(logger))

	h := NewHandler(ctrl, logger)

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", h.Status)
		r.Get("/ws", h.Stream)

		r.Group(func(r chi.Router) {
			r.Use(RequireJSON)
			r.Post("/oscillate", h.Oscillate)
			r.Post("/rotate", h.Rotate)
			r.Post("/manual", h.Manual)
			r.Post("/stop", h.Stop)
			r.Post("/pause", h.Pause)
			r.Post("/input/{action}", h.Press)
		})
		r.Delete("/input/{action}", h.Release)
	})

	return r
}
