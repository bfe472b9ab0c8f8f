package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/castfund/backend/internal/config"
	"github.com/castfund/backend/internal/events"
	"github.com/castfund/backend/internal/models"
	"github.com/castfund/backend/internal/store"
)

type CatalogService struct {
	ledger  *LedgerService
	economy *config.EconomyConfig
}

func NewCatalogService(ledger *LedgerService, economy *config.EconomyConfig) *CatalogService {
	return &CatalogService{ledger: ledger, economy: economy}
}

func (s *CatalogService) CreateSeries(ctx context.Context, authorID, title, description, coverURL string) (*models.Series, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("%w: empty title", ErrInvalidInput)
	}

	series := &models.Series{
		ID:          uuid.NewString(),
		AuthorID:    authorID,
		Title:       title,
		Description: description,
		CoverURL:    coverURL,
	}
	err := s.ledger.execute(ctx, "series_create", func(tx store.Tx, out *Outbox) error {
		if err := tx.InsertSeries(ctx, series); err != nil {
			return err
		}
		out.Add(events.New(events.SeriesCreated, events.Keys{
			Accounts: []string{authorID},
			SeriesID: series.ID,
		}, SeriesPayload{SeriesID: series.ID, Title: series.Title}))
		return nil
	})
	if err != nil {
		return nil, err
	}
	series.Episodes = []models.Episode{}
	return series, nil
}

// CreateEpisode adds a FUNDING episode to one of the author's series.
// votesRequired of zero takes the configured default.
func (s *CatalogService) CreateEpisode(ctx context.Context, authorID, seriesID, title, videoURL string, votesRequired int64) (*models.Episode, error) {
	if votesRequired < 0 {
		return nil, ErrInvalidAmount
	}
	if votesRequired == 0 {
		votesRequired = s.economy.DefaultVotesRequired
	}

	series, err := s.ledger.store.GetSeries(ctx, seriesID)
	if err != nil {
		return nil, storeError(err)
	}
	if series.AuthorID != authorID {
		return nil, fmt.Errorf("series %s: %w", seriesID, ErrForbidden)
	}

	episode := &models.Episode{
		ID:            uuid.NewString(),
		SeriesID:      seriesID,
		AuthorID:      authorID,
		Title:         strings.TrimSpace(title),
		URL:           videoURL,
		VotesRequired: votesRequired,
		State:         models.EpisodeFunding,
	}
	err = s.ledger.execute(ctx, "episode_create", func(tx store.Tx, out *Outbox) error {
		if err := tx.InsertEpisode(ctx, episode); err != nil {
			return err
		}
		out.Add(events.New(events.VideoStatusUpdated, events.Keys{
			Accounts:  []string{authorID},
			EpisodeID: episode.ID,
			SeriesID:  seriesID,
		}, episodePayload(episode)))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return episode, nil
}

// Workspace lists the author's series with their episodes.
func (s *CatalogService) Workspace(ctx context.Context, authorID string) ([]models.Series, error) {
	return s.ledger.store.ListSeriesByAuthor(ctx, authorID)
}

func (s *CatalogService) Series(ctx context.Context, seriesID string) (*models.Series, error) {
	sr, err := s.ledger.store.GetSeries(ctx, seriesID)
	return sr, storeError(err)
}

func (s *CatalogService) Episode(ctx context.Context, episodeID string) (*models.Episode, error) {
	e, err := s.ledger.store.GetEpisode(ctx, episodeID)
	return e, storeError(err)
}
