// Package events fans state-change notifications out to live stream
// connections.
//
// Delivery is at-least-once to connections that are live when the event is
// published. Nothing is stored for disconnected clients: a reconnecting
// client receives CONNECTED and treats its whole cache as stale.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	Connected               Type = "CONNECTED"
	BalanceUpdated          Type = "BALANCE_UPDATED"
	TransactionSuccess      Type = "TRANSACTION_SUCCESS"
	TransactionFailed       Type = "TRANSACTION_FAILED"
	VideoStatusUpdated      Type = "VIDEO_STATUS_UPDATED"
	SeriesCreated           Type = "SERIES_CREATED"
	UserLogout              Type = "USER_LOGOUT"
	NewReviewPosted         Type = "NEW_REVIEW_POSTED"
	ReviewVoteUpdated       Type = "REVIEW_VOTE_UPDATED"
	ReviewCanceled          Type = "REVIEW_CANCELED"
	VideoFundsStolen        Type = "VIDEO_FUNDS_STOLEN"
	AuthorReputationBoosted Type = "AUTHOR_REPUTATION_BOOSTED"
)

// Keys names the entities an event is about.
type Keys struct {
	Accounts  []string `json:"accounts,omitempty"`
	EpisodeID string   `json:"episodeId,omitempty"`
	ReviewID  string   `json:"reviewId,omitempty"`
	SeriesID  string   `json:"seriesId,omitempty"`
}

type Event struct {
	ID   string    `json:"id"`
	Type Type      `json:"type"`
	Keys Keys      `json:"entityKeys"`
	Data any       `json:"data,omitempty"`
	At   time.Time `json:"at"`
}

func New(t Type, keys Keys, data any) Event {
	return Event{
		ID:   uuid.NewString(),
		Type: t,
		Keys: keys,
		Data: data,
		At:   time.Now().UTC(),
	}
}

func AccountKey(id string) string { return "account:" + id }
func EpisodeKey(id string) string { return "episode:" + id }
func ReviewKey(id string) string  { return "review:" + id }
func SeriesKey(id string) string  { return "series:" + id }

// interest lists the subscription keys this event matches.
func (e Event) interest() []string {
	out := make([]string, 0, len(e.Keys.Accounts)+3)
	for _, a := range e.Keys.Accounts {
		out = append(out, AccountKey(a))
	}
	if e.Keys.EpisodeID != "" {
		out = append(out, EpisodeKey(e.Keys.EpisodeID))
	}
	if e.Keys.ReviewID != "" {
		out = append(out, ReviewKey(e.Keys.ReviewID))
	}
	if e.Keys.SeriesID != "" {
		out = append(out, SeriesKey(e.Keys.SeriesID))
	}
	return out
}

// Publisher accepts events after the state they describe is committed.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}
