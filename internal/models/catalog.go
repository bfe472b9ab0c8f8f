package models

import (
	"time"
)

type EpisodeState string

const (
	EpisodeFunding  EpisodeState = "FUNDING"
	EpisodeReleased EpisodeState = "RELEASED"
)

// Series groups the episodes of one author.
type Series struct {
	ID          string    `json:"id" db:"id"`
	AuthorID    string    `json:"author_id" db:"author_id"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description,omitempty" db:"description"`
	CoverURL    string    `json:"cover_url,omitempty" db:"cover_url"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	Episodes    []Episode `json:"episodes,omitempty" db:"-"`
}

// TotalEarnings sums the collected funds of all loaded episodes.
func (s *Series) TotalEarnings() int64 {
	var total int64
	for _, e := range s.Episodes {
		total += e.CollectedFunds
	}
	return total
}

// Episode is the funding unit: it stays FUNDING until CollectedFunds reaches
// VotesRequired and then moves to RELEASED once.
type Episode struct {
	ID             string       `json:"id" db:"id"`
	SeriesID       string       `json:"series_id" db:"series_id"`
	AuthorID       string       `json:"author_id" db:"author_id"`
	Title          string       `json:"title" db:"title"`
	URL            string       `json:"url" db:"url"`
	VotesRequired  int64        `json:"votes_required" db:"votes_required"`
	CollectedFunds int64        `json:"collected_funds" db:"collected_funds"`
	State          EpisodeState `json:"state" db:"state"`
	Version        int          `json:"version" db:"version"`
	CreatedAt      time.Time    `json:"created_at" db:"created_at"`
	ReleasedAt     *time.Time   `json:"released_at,omitempty" db:"released_at"`
}

func (e *Episode) IsReleased() bool {
	return e.State == EpisodeReleased
}

// Progress is the funded share in percent, capped at 100.
func (e *Episode) Progress() int {
	if e.VotesRequired <= 0 {
		return 100
	}
	p := e.CollectedFunds * 100 / e.VotesRequired
	if p > 100 {
		p = 100
	}
	return int(p)
}
