package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/castfund/backend/internal/models"
	"github.com/castfund/backend/internal/services"
)

func TestReviewHandler(t *testing.T) {
	env := newTestEnv(t)
	ep := env.episode(t, "author", 1000)

	body := map[string]any{"videoId": ep.ID, "type": "POSITIVE", "content": "A confident, well paced pilot."}

	w := env.do(t, http.MethodPost, "/api/v1/interactions/review", "critic", body)
	assert.Equal(t, http.StatusPaymentRequired, w.Code)

	env.fund(t, "critic", 200)
	w = env.do(t, http.MethodPost, "/api/v1/interactions/review", "critic", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	review := decode[models.Review](t, w)
	assert.Equal(t, models.ReviewOpen, review.State)

	env.fund(t, "v1", 5)
	env.fund(t, "v2", 5)

	w = env.do(t, http.MethodPost, "/api/v1/interactions/vote-review", "v1", map[string]any{"reviewId": review.ID})
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[services.VoteResult](t, w).Settled)

	w = env.do(t, http.MethodPost, "/api/v1/interactions/vote-review", "v1", map[string]any{"reviewId": review.ID})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/interactions/vote-review", "v2", map[string]any{"reviewId": review.ID})
	require.Equal(t, http.StatusOK, w.Code)
	res := decode[services.VoteResult](t, w)
	assert.True(t, res.Settled)
	assert.Equal(t, models.ReviewExecuted, res.Review.State)

	w = env.do(t, http.MethodPost, "/api/v1/interactions/vote-review", "v2", map[string]any{"reviewId": review.ID, "isCancel": true})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/interactions/video/"+ep.ID+"/reviews", "anyone", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.Review](t, w), 1)
}

func TestReviewHandler_Validation(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/interactions/review", "critic",
		map[string]any{"videoId": "ep", "type": "NEUTRAL", "content": "too short"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	resp := decode[ErrorResponse](t, w)
	assert.Contains(t, resp.Details, "type")
	assert.Contains(t, resp.Details, "content")

	w = env.do(t, http.MethodGet, "/api/v1/interactions/video/missing/reviews", "anyone", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
