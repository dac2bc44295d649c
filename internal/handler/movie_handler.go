package handler

import (
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v3"

	"cinesphere/internal/catalog"
	"cinesphere/internal/service"
)

const maxQueryLength = 200

// MovieHandler serves the public catalog endpoints.
type MovieHandler struct {
	svc *service.MovieService
}

// NewMovieHandler creates a new MovieHandler.
func NewMovieHandler(svc *service.MovieService) *MovieHandler {
	return &MovieHandler{svc: svc}
}

// Health returns service health status.
// @Summary Health check
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func (h *MovieHandler) Health(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"service": "cinesphere",
	})
}

// Genres lists the genres available for favourites and browsing.
// @Summary List genres
// @Tags movies
// @Produce json
// @Success 200 {array} string
// @Router /genres [get]
func (h *MovieHandler) Genres(c fiber.Ctx) error {
	return c.JSON(catalog.Genres())
}

// Trending returns today's trending movies.
// @Summary Trending movies
// @Tags movies
// @Produce json
// @Success 200 {array} models.Movie
// @Failure 502 {object} ErrorResponse
// @Router /movies/trending [get]
func (h *MovieHandler) Trending(c fiber.Ctx) error {
	movies, err := h.svc.Trending(c.Context())
	if err != nil {
		slog.Error("failed to load trending movies", "error", err)
		return c.Status(fiber.StatusBadGateway).JSON(ErrorResponse{Error: "failed to retrieve movies"})
	}
	return c.JSON(movies)
}

// Search searches movies by title. An empty query returns trending movies.
// @Summary Search movies
// @Tags movies
// @Produce json
// @Param q query string false "Search text"
// @Success 200 {array} models.Movie
// @Failure 400 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /movies/search [get]
func (h *MovieHandler) Search(c fiber.Ctx) error {
	q := c.Query("q")
	if len(q) > maxQueryLength {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "query too long"})
	}
	movies, err := h.svc.Search(c.Context(), q)
	if err != nil {
		slog.Error("failed to search movies", "query", q, "error", err)
		return c.Status(fiber.StatusBadGateway).JSON(ErrorResponse{Error: "failed to retrieve movies"})
	}
	return c.JSON(movies)
}

// Details returns the aggregated detail bundle for a movie.
// @Summary Movie details
// @Tags movies
// @Produce json
// @Param id path int true "TMDB movie ID"
// @Success 200 {object} models.MovieDetailBundle
// @Failure 400 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /movies/{id}/details [get]
func (h *MovieHandler) Details(c fiber.Ctx) error {
	id := fiber.Params[int](c, "id")
	if id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid movie id"})
	}
	bundle, err := h.svc.Details(c.Context(), id)
	if err != nil {
		return respondError(c, err, "failed to load movie details")
	}
	return c.JSON(bundle)
}

// ProviderLink returns an external URL for watching a title on a provider.
// @Summary Watch link
// @Tags movies
// @Produce json
// @Param provider query string false "Provider name"
// @Param title query string true "Movie title"
// @Param year query string false "Release year"
// @Success 200 {object} map[string]string
// @Failure 400 {object} ErrorResponse
// @Router /providers/link [get]
func (h *MovieHandler) ProviderLink(c fiber.Ctx) error {
	title := strings.TrimSpace(c.Query("title"))
	if title == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "title is required"})
	}
	url := h.svc.ProviderLink(c.Query("provider"), title, c.Query("year"))
	return c.JSON(fiber.Map{"url": url})
}
