package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(app *App) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/", app.HomeHandler)
	r.Get("/healthz", HealthHandler)

	r.Route("/api", func(r chi.Router) {
		r.Post("/upload-video", app.UploadVideoHandler)
		r.Post("/chat", app.ChatHandler)
		r.Get("/session/{id}", app.GetSessionHandler)
		r.Delete("/session/{id}", app.DeleteSessionHandler)
	})

	fileServer := http.FileServer(http.Dir(app.StaticDir))
	r.Handle("/static/*", http.StripPrefix("/static/", fileServer))

	return r
}
