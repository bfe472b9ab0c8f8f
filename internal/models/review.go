package models

import (
	"time"
)

type ReviewKind string

const (
	ReviewPositive ReviewKind = "POSITIVE"
	ReviewNegative ReviewKind = "NEGATIVE"
)

type ReviewState string

const (
	ReviewOpen     ReviewState = "OPEN"
	ReviewExecuted ReviewState = "EXECUTED"
	ReviewCanceled ReviewState = "CANCELED"
)

type VoteKind string

const (
	VoteExecute VoteKind = "execute"
	VoteCancel  VoteKind = "cancel"
)

// Review is a critic's paid verdict on an episode. It settles at most once.
type Review struct {
	ID           string      `json:"id" db:"id"`
	EpisodeID    string      `json:"episode_id" db:"episode_id"`
	CriticID     string      `json:"critic_id" db:"critic_id"`
	Kind         ReviewKind  `json:"type" db:"kind"`
	Content      string      `json:"content" db:"content"`
	CurrentVotes int64       `json:"current_votes" db:"current_votes"`
	CancelVotes  int64       `json:"cancel_votes" db:"cancel_votes"`
	State        ReviewState `json:"state" db:"state"`
	ImpactAmount int64       `json:"impact_amount" db:"impact_amount"`
	Version      int         `json:"version" db:"version"`
	CreatedAt    time.Time   `json:"created_at" db:"created_at"`
	SettledAt    *time.Time  `json:"settled_at,omitempty" db:"settled_at"`
}

func (r *Review) IsOpen() bool {
	return r.State == ReviewOpen
}

// ReviewVote is unique per (ReviewID, VoterID, Kind).
type ReviewVote struct {
	ReviewID  string    `json:"review_id" db:"review_id"`
	VoterID   string    `json:"voter_id" db:"voter_id"`
	Kind      VoteKind  `json:"kind" db:"kind"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
