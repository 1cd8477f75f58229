package models

import (
	"time"

	"github.com/google/uuid"
)

// User is a registered player account backed by a Telegram identity.
type User struct {
	ID          uuid.UUID
	TelegramID  int64
	Nickname    string
	Rating      float64
	RD          float64
	Volatility  float64
	GamesPlayed int
	CreatedAt   time.Time
}

// RatingChange describes one player's rating movement after a rated match.
type RatingChange struct {
	Nickname  string `json:"nickname"`
	OldRating int    `json:"old_rating"`
	NewRating int    `json:"new_rating"`
}

// RatingChanges pairs both sides' movements for a settled rated match.
type RatingChanges struct {
	P0 RatingChange `json:"p0"`
	P1 RatingChange `json:"p1"`
}

// LeaderboardEntry is one row of the public rating table.
type LeaderboardEntry struct {
	Rank        int    `json:"rank"`
	Nickname    string `json:"nickname"`
	Rating      int    `json:"rating"`
	GamesPlayed int    `json:"games_played"`
}
