package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/avbelov/squadduel/internal/models"
	"github.com/avbelov/squadduel/internal/sqlutil"
)

var ErrNotFound = errors.New("users: not found")

// Repository provides Postgres persistence for player accounts.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const userColumns = `id, telegram_id, nickname, rating, rd, volatility, games_played, created_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.TelegramID, &u.Nickname, &u.Rating, &u.RD, &u.Volatility, &u.GamesPlayed, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

// Create inserts a new account with the default rating triple.
func (r *Repository) Create(ctx context.Context, u *models.User) (*models.User, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO users (id, telegram_id, nickname, rating, rd, volatility, games_played)
		VALUES ($1, $2, $3, $4, $5, $6, 0)
		RETURNING `+userColumns,
		u.ID, u.TelegramID, u.Nickname, u.Rating, u.RD, u.Volatility)
	return scanUser(row)
}

// GetByTelegramID fetches the account bound to a Telegram identity.
func (r *Repository) GetByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE telegram_id = $1`, telegramID)
	return scanUser(row)
}

// GetByNickname fetches an account by its unique nickname.
func (r *Repository) GetByNickname(ctx context.Context, nickname string) (*models.User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE nickname = $1`, nickname)
	return scanUser(row)
}

// NicknameTaken reports whether a nickname is already in use.
func (r *Repository) NicknameTaken(ctx context.Context, nickname string) (bool, error) {
	var taken bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE nickname = $1)`, nickname).Scan(&taken)
	return taken, err
}

// ratedResult is one side of a settled rated match.
type ratedResult struct {
	nickname   string
	rating     float64
	rd         float64
	volatility float64
}

// applyMatchResult persists both players' new ratings and bumps their game
// counters in a single transaction.
func (r *Repository) applyMatchResult(ctx context.Context, a, b ratedResult) error {
	return sqlutil.Run(ctx, r.pool, func(tx pgx.Tx) error {
		for _, res := range []ratedResult{a, b} {
			tag, err := tx.Exec(ctx, `
				UPDATE users
				SET rating = $2, rd = $3, volatility = $4, games_played = games_played + 1
				WHERE nickname = $1`,
				res.nickname, res.rating, res.rd, res.volatility)
			if err != nil {
				return fmt.Errorf("update rating for %s: %w", res.nickname, err)
			}
			if tag.RowsAffected() == 0 {
				return fmt.Errorf("update rating for %s: %w", res.nickname, ErrNotFound)
			}
		}
		return nil
	})
}

// Leaderboard returns the top rated accounts, best first.
func (r *Repository) Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT nickname, rating, games_played
		FROM users
		ORDER BY rating DESC, games_played DESC, nickname
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query leaderboard: %w", err)
	}
	defer rows.Close()

	var out []models.LeaderboardEntry
	for rows.Next() {
		var (
			e      models.LeaderboardEntry
			rating float64
		)
		if err := rows.Scan(&e.Nickname, &rating, &e.GamesPlayed); err != nil {
			return nil, fmt.Errorf("scan leaderboard row: %w", err)
		}
		e.Rank = len(out) + 1
		e.Rating = int(rating + 0.5)
		out = append(out, e)
	}
	return out, rows.Err()
}
