package users

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/google/uuid"

	"github.com/avbelov/squadduel/internal/models"
	"github.com/avbelov/squadduel/internal/rating"
)

var (
	ErrBadNickname   = errors.New("users: nickname must be 3-20 latin letters, digits, _ or -")
	ErrNicknameTaken = errors.New("users: nickname already taken")
	ErrAlreadyExists = errors.New("users: telegram account already registered")

	nicknamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,20}$`)
)

// App wraps account registration, lookup and rating maintenance.
type App struct {
	repo *Repository
}

func NewApp(repo *Repository) *App {
	return &App{repo: repo}
}

// GetByTelegramID returns the account bound to a Telegram identity, or
// ErrNotFound when none exists yet.
func (a *App) GetByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	return a.repo.GetByTelegramID(ctx, telegramID)
}

// Register creates an account for a Telegram identity under a chosen
// nickname. Nicknames are globally unique and restricted to a safe alphabet.
func (a *App) Register(ctx context.Context, telegramID int64, nickname string) (*models.User, error) {
	if !nicknamePattern.MatchString(nickname) {
		return nil, ErrBadNickname
	}
	if _, err := a.repo.GetByTelegramID(ctx, telegramID); err == nil {
		return nil, ErrAlreadyExists
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	taken, err := a.repo.NicknameTaken(ctx, nickname)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrNicknameTaken
	}

	p := rating.NewPlayer()
	return a.repo.Create(ctx, &models.User{
		ID:         uuid.New(),
		TelegramID: telegramID,
		Nickname:   nickname,
		Rating:     p.Rating,
		RD:         p.RD,
		Volatility: p.Volatility,
	})
}

// RecordResult rates a finished head-to-head match. outcomeP0 is player
// zero's score: 1 win, 0 loss, 0.5 draw. Both accounts are updated atomically
// and the public before/after numbers are returned.
func (a *App) RecordResult(ctx context.Context, nickP0, nickP1 string, outcomeP0 float64) (*models.RatingChanges, error) {
	u0, err := a.repo.GetByNickname(ctx, nickP0)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", nickP0, err)
	}
	u1, err := a.repo.GetByNickname(ctx, nickP1)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", nickP1, err)
	}

	p0 := rating.Player{Rating: u0.Rating, RD: u0.RD, Volatility: u0.Volatility}
	p1 := rating.Player{Rating: u1.Rating, RD: u1.RD, Volatility: u1.Volatility}
	n0, n1 := rating.Duel(p0, p1, outcomeP0)

	err = a.repo.applyMatchResult(ctx,
		ratedResult{nickname: nickP0, rating: n0.Rating, rd: n0.RD, volatility: n0.Volatility},
		ratedResult{nickname: nickP1, rating: n1.Rating, rd: n1.RD, volatility: n1.Volatility},
	)
	if err != nil {
		return nil, err
	}

	return &models.RatingChanges{
		P0: models.RatingChange{Nickname: nickP0, OldRating: round(u0.Rating), NewRating: round(n0.Rating)},
		P1: models.RatingChange{Nickname: nickP1, OldRating: round(u1.Rating), NewRating: round(n1.Rating)},
	}, nil
}

// RatingOf returns the public rating of one account.
func (a *App) RatingOf(ctx context.Context, nickname string) (int, error) {
	u, err := a.repo.GetByNickname(ctx, nickname)
	if err != nil {
		return 0, err
	}
	return round(u.Rating), nil
}

// Leaderboard returns the rating table shown in the lobby.
func (a *App) Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	return a.repo.Leaderboard(ctx, limit)
}

func round(r float64) int {
	return int(r + 0.5)
}
