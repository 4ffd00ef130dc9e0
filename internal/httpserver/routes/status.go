package routes

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MrSnakeDoc/hasu/internal/httpserver/deps"
	"github.com/MrSnakeDoc/hasu/internal/httpserver/handlers"
)

func init() { Register(registerStatus, middleware.NoCache) }

func registerStatus(r chi.Router, d deps.Deps) {
	r.Get("/status", handlers.Status(d))
	r.Get("/rendered", handlers.Rendered(d))
}
