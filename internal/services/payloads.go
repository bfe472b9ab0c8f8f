package services

import "github.com/castfund/backend/internal/models"

type BalancePayload struct {
	AccountID  string `json:"accountId"`
	Balance    int64  `json:"balance"`
	Reputation int64  `json:"reputation"`
}

type TransactionPayload struct {
	TransactionID string                   `json:"transactionId"`
	Amount        int64                    `json:"amount"`
	Status        models.TransactionStatus `json:"status"`
}

type EpisodeStatusPayload struct {
	EpisodeID      string              `json:"episodeId"`
	SeriesID       string              `json:"seriesId"`
	Status         models.EpisodeState `json:"status"`
	CollectedFunds int64               `json:"collectedFunds"`
	VotesRequired  int64               `json:"votesRequired"`
	Progress       int                 `json:"progress"`
}

type SeriesPayload struct {
	SeriesID string `json:"seriesId"`
	Title    string `json:"title"`
}

type ReviewPayload struct {
	ReviewID     string             `json:"reviewId"`
	EpisodeID    string             `json:"episodeId"`
	CriticID     string             `json:"criticId"`
	Kind         models.ReviewKind  `json:"type"`
	State        models.ReviewState `json:"state"`
	CurrentVotes int64              `json:"currentVotes"`
	CancelVotes  int64              `json:"cancelVotes"`
}

type FundsStolenPayload struct {
	EpisodeID      string `json:"episodeId"`
	ReviewID       string `json:"reviewId"`
	CriticID       string `json:"criticId"`
	Impact         int64  `json:"impact"`
	Amount         int64  `json:"amount"`
	CollectedFunds int64  `json:"collectedFunds"`
}

type ReputationPayload struct {
	AccountID  string `json:"accountId"`
	ReviewID   string `json:"reviewId"`
	Delta      int64  `json:"delta"`
	Reputation int64  `json:"reputation"`
}

func reviewPayload(r *models.Review) ReviewPayload {
	return ReviewPayload{
		ReviewID:     r.ID,
		EpisodeID:    r.EpisodeID,
		CriticID:     r.CriticID,
		Kind:         r.Kind,
		State:        r.State,
		CurrentVotes: r.CurrentVotes,
		CancelVotes:  r.CancelVotes,
	}
}

func episodePayload(e *models.Episode) EpisodeStatusPayload {
	return EpisodeStatusPayload{
		EpisodeID:      e.ID,
		SeriesID:       e.SeriesID,
		Status:         e.State,
		CollectedFunds: e.CollectedFunds,
		VotesRequired:  e.VotesRequired,
		Progress:       e.Progress(),
	}
}
