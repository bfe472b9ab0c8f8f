package syncclient

import (
	"github.com/castfund/backend/internal/events"
)

const (
	KeyWalletBalance      = "wallet.balance"
	KeyWalletTransactions = "wallet.transactions"
	KeyWorkspace          = "videos.workspace"
)

func SeriesKey(seriesID string) string   { return "videos.details:" + seriesID }
func EpisodeKey(episodeID string) string { return "episode:" + episodeID }
func ReviewsKey(episodeID string) string { return "interactions.reviews:" + episodeID }

// KeysFor lists the cache entries an event makes stale.
func KeysFor(t events.Type, k events.Keys) []string {
	var out []string
	add := func(keys ...string) { out = append(out, keys...) }

	episode := func() {
		if k.EpisodeID != "" {
			add(EpisodeKey(k.EpisodeID))
		}
		if k.SeriesID != "" {
			add(SeriesKey(k.SeriesID))
		}
		add(KeyWorkspace)
	}
	reviews := func() {
		if k.EpisodeID != "" {
			add(ReviewsKey(k.EpisodeID))
		}
	}

	switch t {
	case events.BalanceUpdated, events.TransactionSuccess, events.TransactionFailed:
		add(KeyWalletBalance, KeyWalletTransactions)
	case events.VideoStatusUpdated:
		episode()
	case events.SeriesCreated:
		if k.SeriesID != "" {
			add(SeriesKey(k.SeriesID))
		}
		add(KeyWorkspace)
	case events.NewReviewPosted, events.ReviewVoteUpdated, events.ReviewCanceled:
		reviews()
	case events.VideoFundsStolen:
		episode()
		reviews()
	case events.AuthorReputationBoosted:
		reviews()
		add(KeyWalletBalance)
	}
	return out
}
