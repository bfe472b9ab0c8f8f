package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/castfund/backend/internal/config"
	"github.com/castfund/backend/internal/events"
	"github.com/castfund/backend/internal/models"
	"github.com/castfund/backend/internal/store"
)

type VoteResult struct {
	Review  models.Review `json:"review"`
	Settled bool          `json:"settled"`
}

// ReviewService runs paid critic reviews. A review collects execute and
// cancel votes and settles exactly once: cancel is checked first, then
// execute. Lock order inside a vote is review, episode, accounts.
type ReviewService struct {
	ledger  *LedgerService
	economy *config.EconomyConfig
}

func NewReviewService(ledger *LedgerService, economy *config.EconomyConfig) *ReviewService {
	return &ReviewService{ledger: ledger, economy: economy}
}

// CreateReview charges the review fee first. Without the fee nothing is
// created.
func (s *ReviewService) CreateReview(ctx context.Context, criticID, episodeID string, kind models.ReviewKind, content string) (*models.Review, error) {
	if kind != models.ReviewPositive && kind != models.ReviewNegative {
		return nil, fmt.Errorf("%w: review type %q", ErrInvalidInput, kind)
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: empty review", ErrInvalidInput)
	}
	if _, err := s.ledger.store.GetEpisode(ctx, episodeID); err != nil {
		return nil, storeError(err)
	}

	review := &models.Review{
		ID:        uuid.NewString(),
		EpisodeID: episodeID,
		CriticID:  criticID,
		Kind:      kind,
		Content:   content,
		State:     models.ReviewOpen,
	}
	err := s.ledger.execute(ctx, "review_create", func(tx store.Tx, out *Outbox) error {
		if s.economy.ReviewFee > 0 {
			if _, err := s.ledger.ApplyDeltaTx(ctx, tx, out, Delta{
				AccountID: criticID,
				Amount:    -s.economy.ReviewFee,
				Kind:      models.KindReviewFee,
				Reference: review.ID,
			}); err != nil {
				return err
			}
		}
		r := *review
		if err := tx.InsertReview(ctx, &r); err != nil {
			return err
		}
		*review = r

		out.Add(events.New(events.NewReviewPosted, events.Keys{
			Accounts:  []string{criticID},
			EpisodeID: episodeID,
			ReviewID:  review.ID,
		}, reviewPayload(review)))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return review, nil
}

// Vote records one execute or cancel vote per voter and charges the vote
// cost. The vote that crosses a threshold settles the review in the same
// unit of work.
func (s *ReviewService) Vote(ctx context.Context, voterID, reviewID string, isCancel bool) (*VoteResult, error) {
	kind := models.VoteExecute
	if isCancel {
		kind = models.VoteCancel
	}

	var result VoteResult
	err := s.ledger.execute(ctx, "review_vote", func(tx store.Tx, out *Outbox) error {
		result = VoteResult{}

		review, err := tx.LockReview(ctx, reviewID)
		if err != nil {
			return err
		}
		if !review.IsOpen() {
			return fmt.Errorf("review %s is %s: %w", reviewID, review.State, ErrReviewAlreadySettled)
		}

		err = tx.InsertReviewVote(ctx, &models.ReviewVote{ReviewID: reviewID, VoterID: voterID, Kind: kind})
		if errors.Is(err, store.ErrDuplicate) {
			return fmt.Errorf("%s vote on review %s by %s: %w", kind, reviewID, voterID, ErrDuplicateVote)
		}
		if err != nil {
			return err
		}

		if isCancel {
			review.CancelVotes++
		} else {
			review.CurrentVotes++
		}

		var next models.ReviewState
		switch {
		case review.CancelVotes >= s.economy.CancelThreshold:
			next = models.ReviewCanceled
		case review.CurrentVotes >= s.economy.ExecuteThreshold:
			next = models.ReviewExecuted
		}

		var episode *models.Episode
		if next == models.ReviewExecuted {
			if episode, err = tx.LockEpisode(ctx, review.EpisodeID); err != nil {
				return err
			}
			if _, err := lockAccounts(ctx, tx, voterID, review.CriticID, episode.AuthorID); err != nil {
				return err
			}
		}

		if s.economy.VoteCost > 0 {
			if _, err := s.ledger.ApplyDeltaTx(ctx, tx, out, Delta{
				AccountID: voterID,
				Amount:    -s.economy.VoteCost,
				Kind:      models.KindReviewVote,
				Reference: reviewID,
			}); err != nil {
				return err
			}
		}

		switch next {
		case models.ReviewCanceled:
			s.cancel(review, out)
		case models.ReviewExecuted:
			if err := s.executeReview(ctx, tx, out, review, episode); err != nil {
				return err
			}
		}

		if err := tx.UpdateReview(ctx, review); err != nil {
			return err
		}

		out.Add(events.New(events.ReviewVoteUpdated, events.Keys{
			Accounts:  []string{voterID, review.CriticID},
			EpisodeID: review.EpisodeID,
			ReviewID:  review.ID,
		}, reviewPayload(review)))

		result.Review = *review
		result.Settled = next != ""
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *ReviewService) cancel(review *models.Review, out *Outbox) {
	now := time.Now().UTC()
	review.State = models.ReviewCanceled
	review.SettledAt = &now

	out.settled = append(out.settled, settlement{entity: "review", id: review.ID, state: string(models.ReviewCanceled)})
	out.Add(events.New(events.ReviewCanceled, events.Keys{
		Accounts:  []string{review.CriticID},
		EpisodeID: review.EpisodeID,
		ReviewID:  review.ID,
	}, reviewPayload(review)))
}

// executeReview applies the settlement side effects. A NEGATIVE review
// drains critic reputation × stake from the episode, capped at what the
// episode holds, and pays it to the critic. A POSITIVE review rewards the
// author. Both reward the critic's reputation.
func (s *ReviewService) executeReview(ctx context.Context, tx store.Tx, out *Outbox, review *models.Review, episode *models.Episode) error {
	now := time.Now().UTC()
	review.State = models.ReviewExecuted
	review.SettledAt = &now

	keys := events.Keys{
		Accounts:  []string{review.CriticID, episode.AuthorID},
		EpisodeID: episode.ID,
		ReviewID:  review.ID,
		SeriesID:  episode.SeriesID,
	}

	switch review.Kind {
	case models.ReviewNegative:
		critic, err := tx.LockAccount(ctx, review.CriticID)
		if err != nil {
			return err
		}
		impact := critic.Reputation * s.economy.NegativeStakeMultiplier
		if impact < 0 {
			impact = 0
		}
		drained := min(impact, episode.CollectedFunds)

		if drained > 0 {
			episode.CollectedFunds -= drained
			if err := tx.UpdateEpisode(ctx, episode); err != nil {
				return err
			}
			if _, err := s.ledger.ApplyDeltaTx(ctx, tx, out, Delta{
				AccountID: review.CriticID,
				Amount:    drained,
				Kind:      models.KindReviewDrain,
				Reference: review.ID,
			}); err != nil {
				return err
			}
		}
		review.ImpactAmount = drained

		out.Add(events.New(events.VideoFundsStolen, keys, FundsStolenPayload{
			EpisodeID:      episode.ID,
			ReviewID:       review.ID,
			CriticID:       review.CriticID,
			Impact:         impact,
			Amount:         drained,
			CollectedFunds: episode.CollectedFunds,
		}))
		out.Add(events.New(events.VideoStatusUpdated, keys, episodePayload(episode)))

	case models.ReviewPositive:
		reward := s.economy.AuthorReputationReward
		review.ImpactAmount = reward
		if reward > 0 {
			if _, err := s.ledger.ApplyDeltaTx(ctx, tx, out, Delta{
				AccountID:       episode.AuthorID,
				ReputationDelta: reward,
				Kind:            models.KindReviewReward,
				Reference:       review.ID,
			}); err != nil {
				return err
			}
		}
		author, err := tx.LockAccount(ctx, episode.AuthorID)
		if err != nil {
			return err
		}
		out.Add(events.New(events.AuthorReputationBoosted, keys, ReputationPayload{
			AccountID:  episode.AuthorID,
			ReviewID:   review.ID,
			Delta:      reward,
			Reputation: author.Reputation,
		}))
	}

	if reward := s.economy.CriticReputationReward; reward > 0 {
		if _, err := s.ledger.ApplyDeltaTx(ctx, tx, out, Delta{
			AccountID:       review.CriticID,
			ReputationDelta: reward,
			Kind:            models.KindReviewReward,
			Reference:       review.ID,
		}); err != nil {
			return err
		}
	}

	out.settled = append(out.settled, settlement{
		entity: "review", id: review.ID, state: string(models.ReviewExecuted), amount: review.ImpactAmount,
	})
	return nil
}

// ListReviews returns an episode's reviews newest first.
func (s *ReviewService) ListReviews(ctx context.Context, episodeID string) ([]models.Review, error) {
	if _, err := s.ledger.store.GetEpisode(ctx, episodeID); err != nil {
		return nil, storeError(err)
	}
	return s.ledger.store.ListReviews(ctx, episodeID)
}
