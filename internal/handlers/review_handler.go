package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/castfund/backend/internal/models"
	"github.com/castfund/backend/internal/services"
)

type ReviewHandler struct {
	reviews   *services.ReviewService
	validator *RequestValidator
	logger    *slog.Logger
}

func NewReviewHandler(reviews *services.ReviewService, logger *slog.Logger) *ReviewHandler {
	return &ReviewHandler{
		reviews:   reviews,
		validator: NewRequestValidator(),
		logger:    logger,
	}
}

type createReviewRequest struct {
	VideoID string `json:"videoId" validate:"required"`
	Type    string `json:"type" validate:"required,oneof=POSITIVE NEGATIVE"`
	Content string `json:"content" validate:"required,min=10,max=2000"`
}

type voteReviewRequest struct {
	ReviewID string `json:"reviewId" validate:"required"`
	IsCancel bool   `json:"isCancel"`
}

// Create posts a paid review
// @Summary Post review
// @Description Charges the review fee and opens a POSITIVE or NEGATIVE review on an episode
// @Tags Interactions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body createReviewRequest true "Review"
// @Success 201 {object} models.Review
// @Failure 400 {object} ErrorResponse
// @Failure 402 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /interactions/review [post]
func (h *ReviewHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req createReviewRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		writeError(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	review, err := h.reviews.CreateReview(r.Context(), userID, req.VideoID, models.ReviewKind(req.Type), req.Content)
	if err != nil {
		sendServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, review)
}

// Vote
// @Summary Vote on review
// @Description One execute and one cancel vote per account. The vote that crosses a threshold settles the review.
// @Tags Interactions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body voteReviewRequest true "Review vote"
// @Success 200 {object} services.VoteResult
// @Failure 402 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /interactions/vote-review [post]
func (h *ReviewHandler) Vote(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req voteReviewRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		writeError(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	result, err := h.reviews.Vote(r.Context(), userID, req.ReviewID, req.IsCancel)
	if err != nil {
		sendServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// List
// @Summary Episode reviews
// @Tags Interactions
// @Produce json
// @Security BearerAuth
// @Param episodeId path string true "Episode ID"
// @Success 200 {array} models.Review
// @Failure 404 {object} ErrorResponse
// @Router /interactions/video/{episodeId}/reviews [get]
func (h *ReviewHandler) List(w http.ResponseWriter, r *http.Request) {
	reviews, err := h.reviews.ListReviews(r.Context(), chi.URLParam(r, "episodeId"))
	if err != nil {
		sendServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, reviews)
}
