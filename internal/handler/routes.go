package handler

import (
	"github.com/gofiber/fiber/v3"

	"cinesphere/internal/middleware"
)

// RegisterRoutes mounts the API under /api/v1.
func RegisterRoutes(app fiber.Router, movies *MovieHandler, me *MeHandler) {
	api := app.Group("/api/v1")
	api.Get("/health", movies.Health)
	api.Get("/genres", movies.Genres)
	api.Get("/movies/trending", movies.Trending)
	api.Get("/movies/search", movies.Search)
	api.Get("/movies/:id/details", movies.Details)
	api.Get("/providers/link", movies.ProviderLink)

	user := api.Group("/me", middleware.RequireUser())
	user.Get("/profile", me.GetProfile)
	user.Put("/profile", me.UpdateProfile)
	user.Get("/watchlist", me.GetWatchlist)
	user.Post("/watchlist", me.ToggleWatchlist)
	user.Delete("/watchlist/:movieId", me.RemoveFromWatchlist)
	user.Get("/feed", me.Feed)
	user.Post("/search", me.Search)
	user.Get("/recommendations", me.Recommendations)
	user.Get("/browse", me.Browse)
	user.Put("/selection", me.Select)
	user.Get("/selection", me.GetSelection)
	user.Get("/events", me.Events)
	user.Delete("/session", me.EndSession)
}
