// Package engine runs the game: the lobby of idle players and open offers,
// every live match with its turn clocks, and the post-match rematch
// handshake. All state lives in memory behind one mutex; clock callbacks
// re-enter through the same lock and carry a token so a fire that lost the
// race against a player action is dropped.
package engine

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/avbelov/squadduel/internal/catalog"
	"github.com/avbelov/squadduel/internal/events"
	"github.com/avbelov/squadduel/internal/guess"
	"github.com/avbelov/squadduel/internal/match"
	"github.com/avbelov/squadduel/internal/models"
)

// Broadcaster delivers game events to clients, usually through JetStream.
type Broadcaster interface {
	Publish(ctx context.Context, env events.Envelope) error
}

// Presence answers whether a connection is still attached to a gateway.
type Presence interface {
	Connected(connID string) bool
}

// UserDirectory is the slice of the accounts service the engine needs.
type UserDirectory interface {
	RatingOf(ctx context.Context, nickname string) (int, error)
	RecordResult(ctx context.Context, nickP0, nickP1 string, outcomeP0 float64) (*models.RatingChanges, error)
	Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error)
}

// Config tunes engine behavior.
type Config struct {
	RoundPause      time.Duration
	Limits          match.Limits
	GuessThreshold  float64
	LeaderboardSize int
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		RoundPause:      10 * time.Second,
		Limits:          match.DefaultLimits,
		GuessThreshold:  guess.DefaultThreshold,
		LeaderboardSize: 100,
	}
}

// Engine owns all lobby and match state.
type Engine struct {
	mu    sync.Mutex
	clock clockwork.Clock
	rng   *rand.Rand
	cfg   Config

	cat  *catalog.Catalog
	eval *guess.Evaluator

	users    UserDirectory
	presence Presence
	bus      Broadcaster

	// Base context for work the clocks initiate.
	ctx context.Context

	idle    map[string]string // connID -> nickname
	offers  map[string]*offer
	live    map[uuid.UUID]*session
	byConn  map[string]uuid.UUID // participant or spectator -> match
	rematch map[uuid.UUID]*rematchState

	tokenSeq uint64
}

type offer struct {
	ID       string
	ConnID   string
	Nickname string
	Rating   int
	Settings models.MatchSettings
}

// New builds an engine. The context bounds all work the engine starts on its
// own, such as rating updates after a turn clock fires.
func New(ctx context.Context, clock clockwork.Clock, rng *rand.Rand, cfg Config, cat *catalog.Catalog, users UserDirectory, presence Presence, bus Broadcaster) *Engine {
	return &Engine{
		clock:    clock,
		rng:      rng,
		cfg:      cfg,
		cat:      cat,
		eval:     guess.NewEvaluator(cfg.GuessThreshold),
		users:    users,
		presence: presence,
		bus:      bus,
		ctx:      ctx,
		idle:     make(map[string]string),
		offers:   make(map[string]*offer),
		live:     make(map[uuid.UUID]*session),
		byConn:   make(map[string]uuid.UUID),
		rematch:  make(map[uuid.UUID]*rematchState),
	}
}

// Catalog exposes the loaded item catalog for read-only use by the gateway.
func (e *Engine) Catalog() *catalog.Catalog {
	return e.cat
}

func (e *Engine) nextToken() uint64 {
	e.tokenSeq++
	return e.tokenSeq
}

// publish sends an event, tolerating bus failures; a lost event degrades the
// client view but never the game state.
func (e *Engine) publish(env events.Envelope) {
	if err := e.bus.Publish(e.ctx, env); err != nil {
		log.Error().Err(err).Str("event_type", string(env.Type)).Msg("publish event")
	}
}
