package services

import (
	"context"
	"fmt"
	"time"

	"github.com/castfund/backend/internal/events"
	"github.com/castfund/backend/internal/models"
	"github.com/castfund/backend/internal/store"
)

type FundingResult struct {
	Episode     models.Episode     `json:"episode"`
	Transaction models.Transaction `json:"transaction"`
	Released    bool               `json:"released"`
}

// FundingService moves coins from voters into an episode until it reaches
// its threshold. The FUNDING→RELEASED transition happens at most once.
type FundingService struct {
	ledger *LedgerService
}

func NewFundingService(ledger *LedgerService) *FundingService {
	return &FundingService{ledger: ledger}
}

// CastVote debits amount from the voter and adds it to the episode. Votes on
// a released episode are rejected with ErrEpisodeAlreadyFunded.
func (s *FundingService) CastVote(ctx context.Context, accountID, episodeID string, amount int64) (*FundingResult, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	var result FundingResult
	err := s.ledger.execute(ctx, "funding_vote", func(tx store.Tx, out *Outbox) error {
		result = FundingResult{}

		episode, err := tx.LockEpisode(ctx, episodeID)
		if err != nil {
			return err
		}
		if episode.IsReleased() {
			return fmt.Errorf("episode %s: %w", episodeID, ErrEpisodeAlreadyFunded)
		}

		txn, err := s.ledger.ApplyDeltaTx(ctx, tx, out, Delta{
			AccountID: accountID,
			Amount:    -amount,
			Kind:      models.KindFundingVote,
			Reference: episodeID,
		})
		if err != nil {
			return err
		}

		episode.CollectedFunds += amount
		if episode.CollectedFunds >= episode.VotesRequired {
			now := time.Now().UTC()
			episode.State = models.EpisodeReleased
			episode.ReleasedAt = &now
			result.Released = true
		}
		if err := tx.UpdateEpisode(ctx, episode); err != nil {
			return err
		}

		if result.Released {
			out.settled = append(out.settled, settlement{
				entity: "episode", id: episode.ID, state: string(models.EpisodeReleased), amount: episode.CollectedFunds,
			})
		}
		out.Add(events.New(events.VideoStatusUpdated, events.Keys{
			Accounts:  []string{episode.AuthorID},
			EpisodeID: episode.ID,
			SeriesID:  episode.SeriesID,
		}, episodePayload(episode)))

		result.Episode = *episode
		result.Transaction = *txn
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Released {
		s.ledger.logger.Info("[FUNDING] episode released",
			"episode_id", episodeID, "collected", result.Episode.CollectedFunds, "required", result.Episode.VotesRequired)
	}
	return &result, nil
}
