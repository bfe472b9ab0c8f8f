package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/castfund/backend/internal/services"
)

type VideoHandler struct {
	funding   *services.FundingService
	catalog   *services.CatalogService
	validator *RequestValidator
	logger    *slog.Logger
}

func NewVideoHandler(funding *services.FundingService, catalog *services.CatalogService, logger *slog.Logger) *VideoHandler {
	return &VideoHandler{
		funding:   funding,
		catalog:   catalog,
		validator: NewRequestValidator(),
		logger:    logger,
	}
}

type voteVideoRequest struct {
	EpisodeID string `json:"episodeId" validate:"required"`
	Amount    int64  `json:"amount" validate:"required,gt=0"`
}

type createSeriesRequest struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"max=5000"`
	CoverURL    string `json:"coverUrl" validate:"omitempty,url"`
}

type createEpisodeRequest struct {
	SeriesID      string `json:"seriesId" validate:"required"`
	Title         string `json:"title" validate:"required,max=200"`
	URL           string `json:"url" validate:"omitempty,url"`
	VotesRequired int64  `json:"votesRequired" validate:"gte=0"`
}

// Vote funds an episode
// @Summary Cast funding vote
// @Description Debits amount from the caller and adds it to the episode. The vote that reaches the threshold releases the episode.
// @Tags Videos
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body voteVideoRequest true "Funding vote"
// @Success 200 {object} services.FundingResult
// @Failure 400 {object} ErrorResponse
// @Failure 402 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /videos/vote [post]
func (h *VideoHandler) Vote(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req voteVideoRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		writeError(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	result, err := h.funding.CastVote(r.Context(), userID, req.EpisodeID, req.Amount)
	if err != nil {
		sendServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// CreateSeries
// @Summary Create series
// @Tags Videos
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body createSeriesRequest true "Series"
// @Success 201 {object} models.Series
// @Failure 400 {object} ErrorResponse
// @Router /videos/series [post]
func (h *VideoHandler) CreateSeries(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req createSeriesRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		writeError(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	series, err := h.catalog.CreateSeries(r.Context(), userID, req.Title, req.Description, req.CoverURL)
	if err != nil {
		sendServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, series)
}

// CreateEpisode
// @Summary Create episode
// @Description Adds a FUNDING episode to one of the caller's series. votesRequired of 0 takes the server default.
// @Tags Videos
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body createEpisodeRequest true "Episode"
// @Success 201 {object} models.Episode
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /videos [post]
func (h *VideoHandler) CreateEpisode(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req createEpisodeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		writeError(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	episode, err := h.catalog.CreateEpisode(r.Context(), userID, req.SeriesID, req.Title, req.URL, req.VotesRequired)
	if err != nil {
		sendServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, episode)
}

// Workspace
// @Summary Author workspace
// @Tags Videos
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Series
// @Router /videos/workspace [get]
func (h *VideoHandler) Workspace(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	series, err := h.catalog.Workspace(r.Context(), userID)
	if err != nil {
		sendServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, series)
}

// Series
// @Summary Series details
// @Tags Videos
// @Produce json
// @Security BearerAuth
// @Param id path string true "Series ID"
// @Success 200 {object} models.Series
// @Failure 404 {object} ErrorResponse
// @Router /videos/series/{id} [get]
func (h *VideoHandler) Series(w http.ResponseWriter, r *http.Request) {
	series, err := h.catalog.Series(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		sendServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, series)
}

// Episode
// @Summary Episode details
// @Tags Videos
// @Produce json
// @Security BearerAuth
// @Param id path string true "Episode ID"
// @Success 200 {object} models.Episode
// @Failure 404 {object} ErrorResponse
// @Router /videos/{id} [get]
func (h *VideoHandler) Episode(w http.ResponseWriter, r *http.Request) {
	episode, err := h.catalog.Episode(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		sendServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, episode)
}
