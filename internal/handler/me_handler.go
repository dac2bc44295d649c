package handler

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v3"

	"cinesphere/internal/middleware"
	"cinesphere/internal/models"
	"cinesphere/internal/service"
)

const eventKeepAlive = 15 * time.Second

// MeHandler serves the signed-in user's endpoints.
type MeHandler struct {
	sessions *service.SessionManager
	library  *service.LibraryService
}

// NewMeHandler creates a new MeHandler.
func NewMeHandler(sessions *service.SessionManager, library *service.LibraryService) *MeHandler {
	return &MeHandler{sessions: sessions, library: library}
}

// FeedResponse is the current movie feed of a session.
type FeedResponse struct {
	Query     string         `json:"query"`
	Searching bool           `json:"searching"`
	Error     string         `json:"error,omitempty"`
	Movies    []models.Movie `json:"movies"`
}

func (h *MeHandler) session(c fiber.Ctx) (*service.Session, error) {
	return h.sessions.Get(c.Context(), middleware.UserID(c))
}

// GetProfile returns the user's profile, creating the default one on first use.
// @Summary Get profile
// @Tags me
// @Produce json
// @Success 200 {object} models.UserProfile
// @Router /me/profile [get]
func (h *MeHandler) GetProfile(c fiber.Ctx) error {
	if _, err := h.session(c); err != nil {
		return respondError(c, err, "failed to open session")
	}
	p, err := h.library.Profile(c.Context(), middleware.UserID(c))
	if err != nil {
		return respondError(c, err, "failed to load profile")
	}
	return c.JSON(p)
}

// UpdateProfile applies a partial profile update.
// @Summary Update profile
// @Tags me
// @Accept json
// @Produce json
// @Param body body models.ProfileUpdate true "Fields to change"
// @Success 200 {object} models.UserProfile
// @Failure 400 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /me/profile [put]
func (h *MeHandler) UpdateProfile(c fiber.Ctx) error {
	var req models.ProfileUpdate
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, err)
	}
	p, err := h.library.UpdateProfile(c.Context(), middleware.UserID(c), req)
	if err != nil {
		return respondError(c, err, "failed to update profile")
	}
	return c.JSON(p)
}

// GetWatchlist returns every watchlist entry.
// @Summary Get watchlist
// @Tags me
// @Produce json
// @Success 200 {array} models.WatchlistEntry
// @Router /me/watchlist [get]
func (h *MeHandler) GetWatchlist(c fiber.Ctx) error {
	entries, err := h.library.Watchlist(c.Context(), middleware.UserID(c))
	if err != nil {
		return respondError(c, err, "failed to load watchlist")
	}
	return c.JSON(entries)
}

// ToggleWatchlist adds a movie, changes its status, or removes it when the status is unchanged.
// @Summary Toggle watchlist entry
// @Tags me
// @Accept json
// @Produce json
// @Param body body models.ToggleWatchlistRequest true "Movie and status"
// @Success 200 {object} models.WatchlistEntry
// @Success 204
// @Failure 400 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /me/watchlist [post]
func (h *MeHandler) ToggleWatchlist(c fiber.Ctx) error {
	var req models.ToggleWatchlistRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, err)
	}
	entry, err := h.library.ToggleWatchlist(c.Context(), middleware.UserID(c), req)
	if err != nil {
		return respondError(c, err, "failed to update watchlist")
	}
	if entry == nil {
		return c.SendStatus(fiber.StatusNoContent)
	}
	return c.JSON(entry)
}

// RemoveFromWatchlist deletes a movie from the watchlist.
// @Summary Remove watchlist entry
// @Tags me
// @Param movieId path int true "TMDB movie ID"
// @Success 204
// @Failure 400 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /me/watchlist/{movieId} [delete]
func (h *MeHandler) RemoveFromWatchlist(c fiber.Ctx) error {
	id := fiber.Params[int](c, "movieId")
	if id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid movie id"})
	}
	if err := h.library.RemoveFromWatchlist(c.Context(), middleware.UserID(c), id); err != nil {
		return respondError(c, err, "failed to update watchlist")
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Feed returns the session's current movie feed.
// @Summary Current feed
// @Tags me
// @Produce json
// @Success 200 {object} FeedResponse
// @Router /me/feed [get]
func (h *MeHandler) Feed(c fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return respondError(c, err, "failed to open session")
	}
	st := s.Snapshot()
	return c.JSON(FeedResponse{Query: st.Query, Searching: st.Searching, Error: st.FeedError, Movies: st.Feed})
}

// Search schedules a debounced feed search.
// @Summary Search feed
// @Tags me
// @Accept json
// @Produce json
// @Param body body models.SearchRequest true "Query"
// @Success 202 {object} map[string]any
// @Failure 400 {object} ErrorResponse
// @Router /me/search [post]
func (h *MeHandler) Search(c fiber.Ctx) error {
	var req models.SearchRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, err)
	}
	s, err := h.session(c)
	if err != nil {
		return respondError(c, err, "failed to open session")
	}
	gen := s.Search(req.Query)
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"query": req.Query, "generation": gen})
}

// Recommendations ranks the feed for the user.
// @Summary Recommendations
// @Tags me
// @Produce json
// @Success 200 {array} models.RankedMovie
// @Router /me/recommendations [get]
func (h *MeHandler) Recommendations(c fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return respondError(c, err, "failed to open session")
	}
	return c.JSON(s.Recommendations())
}

// Browse filters the feed by genre.
// @Summary Browse feed
// @Tags me
// @Produce json
// @Param genre query string false "Genre name; empty for all"
// @Success 200 {array} models.Movie
// @Router /me/browse [get]
func (h *MeHandler) Browse(c fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return respondError(c, err, "failed to open session")
	}
	return c.JSON(s.Browse(c.Query("genre")))
}

// Select opens a movie in the detail view. Details load in the background.
// @Summary Select movie
// @Tags me
// @Accept json
// @Produce json
// @Param body body models.SelectionRequest true "Movie"
// @Success 202 {object} details.State
// @Failure 400 {object} ErrorResponse
// @Router /me/selection [put]
func (h *MeHandler) Select(c fiber.Ctx) error {
	var req models.SelectionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, err)
	}
	s, err := h.session(c)
	if err != nil {
		return respondError(c, err, "failed to open session")
	}
	return c.Status(fiber.StatusAccepted).JSON(s.Select(req.MovieID))
}

// GetSelection returns the detail view state.
// @Summary Current selection
// @Tags me
// @Produce json
// @Success 200 {object} details.State
// @Router /me/selection [get]
func (h *MeHandler) GetSelection(c fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return respondError(c, err, "failed to open session")
	}
	return c.JSON(s.Selection())
}

// Events streams session snapshots as server-sent events.
// @Summary Session events
// @Tags me
// @Produce text/event-stream
// @Success 200
// @Router /me/events [get]
func (h *MeHandler) Events(c fiber.Ctx) error {
	uid := middleware.UserID(c)
	sub, err := h.sessions.Subscribe(c.Context(), uid)
	if err != nil {
		return respondError(c, err, "failed to open session")
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	return c.SendStreamWriter(func(w *bufio.Writer) {
		defer sub.Cancel()
		ticker := time.NewTicker(eventKeepAlive)
		defer ticker.Stop()
		for {
			select {
			case st, ok := <-sub.C():
				if !ok {
					return
				}
				if err := writeEvent(w, "state", st); err != nil {
					slog.Debug("event stream closed", "user_id", uid, "error", err)
					return
				}
			case <-ticker.C:
				if _, err := io.WriteString(w, ": ping\n\n"); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	})
}

func writeEvent(w *bufio.Writer, name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data); err != nil {
		return err
	}
	return w.Flush()
}

// EndSession closes the user's session and its event streams.
// @Summary End session
// @Tags me
// @Success 204
// @Router /me/session [delete]
func (h *MeHandler) EndSession(c fiber.Ctx) error {
	h.sessions.End(middleware.UserID(c))
	return c.SendStatus(fiber.StatusNoContent)
}
