package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(recoverMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { writeMessage(w, http.StatusOK, "ok") })
	r.Get("/readyz", func(w http.ResponseWriter, _ *http.Request) { writeMessage(w, http.StatusOK, "ready") })

	r.Route("/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(identityMiddleware)

			r.Route("/lessons", func(r chi.Router) {
				r.Post("/", handler.createLesson)
				r.Get("/{lesson_id}", handler.getLesson)
				r.Put("/{lesson_id}", handler.updateLesson)
				r.Delete("/{lesson_id}", handler.deleteLesson)
			})
			r.Get("/commands/{command_id}", handler.getCommandOutcome)
			r.Get("/ws", handler.serveWS)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(identityMiddleware)
			r.Get("/dead-letters", handler.listDeadLetters)
		})
	})
	return r
}
