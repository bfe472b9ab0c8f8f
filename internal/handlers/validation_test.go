package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestValidator_ReviewRequest(t *testing.T) {
	rv := NewRequestValidator()

	t.Run("valid", func(t *testing.T) {
		err := rv.Validate(&createReviewRequest{
			VideoID: "ep-1",
			Type:    "NEGATIVE",
			Content: "The pacing falls apart in act two.",
		})
		assert.NoError(t, err)
	})

	t.Run("every field wrong", func(t *testing.T) {
		err := rv.Validate(&createReviewRequest{Type: "MIXED", Content: "short"})
		require.Error(t, err)

		var fieldErrs validator.ValidationErrors
		require.True(t, errors.As(err, &fieldErrs))
		assert.Len(t, fieldErrs, 3)
	})

	t.Run("fields are named as in JSON", func(t *testing.T) {
		err := rv.Validate(&createReviewRequest{
			VideoID: "ep-1",
			Type:    "POSITIVE",
			Content: strings.Repeat("a", 2001),
		})
		var fieldErrs validator.ValidationErrors
		require.True(t, errors.As(err, &fieldErrs))
		assert.Equal(t, "content", fieldErrs[0].Field())
		assert.Equal(t, "max", fieldErrs[0].Tag())
	})
}

func TestWriteError(t *testing.T) {
	t.Run("plain", func(t *testing.T) {
		w := httptest.NewRecorder()
		writeError(w, "Something went wrong", http.StatusInternalServerError, nil)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

		var resp ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "Something went wrong", resp.Error)
		assert.Nil(t, resp.Details)
	})

	t.Run("field problems", func(t *testing.T) {
		rv := NewRequestValidator()
		tests := []struct {
			name  string
			req   any
			field string
			want  string
		}{
			{"vote amount", &voteVideoRequest{EpisodeID: "ep-1", Amount: -3}, "amount", "must be greater than 0"},
			{"missing episode", &voteVideoRequest{Amount: 5}, "episodeId", "is required"},
			{"review type", &createReviewRequest{VideoID: "ep", Type: "MIXED", Content: "long enough text"}, "type", "must be one of POSITIVE, NEGATIVE"},
			{"review length", &createReviewRequest{VideoID: "ep", Type: "POSITIVE", Content: "short"}, "content", "must be at least 10 characters"},
			{"deposit limit", &depositRequest{Amount: 1_000_000_001}, "amount", "must be at most 1000000000"},
			{"cover url", &createSeriesRequest{Title: "Pilot", CoverURL: "not a url"}, "coverUrl", "must be a valid URL"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				w := httptest.NewRecorder()
				writeError(w, "Validation failed", http.StatusBadRequest, rv.Validate(tt.req))

				var resp ErrorResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
				assert.Equal(t, "Validation failed", resp.Error)
				assert.Equal(t, tt.want, resp.Details[tt.field])
			})
		}
	})

	t.Run("non validation error carries no details", func(t *testing.T) {
		w := httptest.NewRecorder()
		writeError(w, "Bad", http.StatusBadRequest, errors.New("boom"))

		var resp ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Nil(t, resp.Details)
	})
}
