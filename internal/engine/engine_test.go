package engine

import (
	"context"
	"encoding/json"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avbelov/squadduel/internal/catalog"
	"github.com/avbelov/squadduel/internal/events"
	"github.com/avbelov/squadduel/internal/models"
)

type fakeBus struct {
	mu   sync.Mutex
	sent []events.Envelope
}

func (b *fakeBus) Publish(_ context.Context, env events.Envelope) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, env)
	return nil
}

func (b *fakeBus) byType(t events.Type) []events.Envelope {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []events.Envelope
	for _, env := range b.sent {
		if env.Type == t {
			out = append(out, env)
		}
	}
	return out
}

type fakePresence struct {
	gone map[string]bool
}

func (p *fakePresence) Connected(connID string) bool {
	return !p.gone[connID]
}

type fakeUsers struct {
	recorded int
}

func (u *fakeUsers) RatingOf(context.Context, string) (int, error) { return 1500, nil }

func (u *fakeUsers) RecordResult(_ context.Context, nickP0, nickP1 string, _ float64) (*models.RatingChanges, error) {
	u.recorded++
	return &models.RatingChanges{
		P0: models.RatingChange{Nickname: nickP0, OldRating: 1500, NewRating: 1510},
		P1: models.RatingChange{Nickname: nickP1, OldRating: 1500, NewRating: 1490},
	}, nil
}

func (u *fakeUsers) Leaderboard(context.Context, int) ([]models.LeaderboardEntry, error) {
	return nil, nil
}

type fixture struct {
	engine   *Engine
	clock    *clockwork.FakeClock
	bus      *fakeBus
	users    *fakeUsers
	presence *fakePresence
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	csv := "Andre Onana,United\nMarcus Rashford,United\n" +
		"Mohamed Salah,Liverpool\nVirgil van Dijk,Liverpool\n" +
		"Erling Haaland,City\nPhil Foden,City\n"
	path := filepath.Join(t.TempDir(), "epl.csv")
	require.NoError(t, os.WriteFile(path, []byte(csv), 0o644))
	cat, err := catalog.Load(map[string]string{"epl": path})
	require.NoError(t, err)

	f := &fixture{
		clock:    clockwork.NewFakeClock(),
		bus:      &fakeBus{},
		users:    &fakeUsers{},
		presence: &fakePresence{gone: map[string]bool{}},
	}
	f.engine = New(context.Background(), f.clock, rand.New(rand.NewPCG(5, 9)), DefaultConfig(), cat, f.users, f.presence, f.bus)
	return f
}

func duelSettings() models.MatchSettings {
	return models.MatchSettings{League: "epl", Rounds: 3, TimeBankSec: 60}
}

// startDuel gets alice and bob into a live match and returns its session.
func startDuel(t *testing.T, f *fixture) (uuid.UUID, *session) {
	t.Helper()
	f.engine.AddIdle("c-alice", "alice")
	f.engine.AddIdle("c-bob", "bob")
	require.True(t, f.engine.CreateOffer("c-alice", duelSettings()).OK)

	offers := f.engine.offersPayload().Offers
	require.Len(t, offers, 1)
	require.True(t, f.engine.JoinOffer("c-bob", offers[0].OfferID).OK)

	require.Len(t, f.engine.live, 1)
	for id, s := range f.engine.live {
		return id, s
	}
	return uuid.Nil, nil
}

func TestPracticeOccupancy(t *testing.T) {
	f := newFixture(t)
	f.engine.AddIdle("c1", "solo")

	res := f.engine.StartPractice("c1", models.MatchSettings{League: "epl", Rounds: 1})
	require.True(t, res.OK)

	// Already in a match: no second occupancy.
	res = f.engine.StartPractice("c1", models.MatchSettings{League: "epl", Rounds: 1})
	assert.Equal(t, ReasonNotIdle, res.Reason)
	assert.Len(t, f.engine.live, 1)
}

func TestJoinOfferGuards(t *testing.T) {
	f := newFixture(t)
	f.engine.AddIdle("c-alice", "alice")
	f.engine.AddIdle("c-bob", "bob")
	require.True(t, f.engine.CreateOffer("c-alice", duelSettings()).OK)
	offerID := f.engine.offersPayload().Offers[0].OfferID

	assert.Equal(t, ReasonSelfJoin, f.engine.JoinOffer("c-alice", offerID).Reason)
	assert.Equal(t, ReasonNotFound, f.engine.JoinOffer("c-bob", "no-such-offer").Reason)

	// Creator vanished between listing and joining.
	f.presence.gone["c-alice"] = true
	res := f.engine.JoinOffer("c-bob", offerID)
	assert.Equal(t, ReasonCreatorGone, res.Reason)
	assert.Empty(t, f.engine.offers)
}

func TestOfferCreatorLeavesIdlePool(t *testing.T) {
	f := newFixture(t)
	f.engine.AddIdle("c-alice", "alice")
	f.engine.AddIdle("c-bob", "bob")

	require.True(t, f.engine.CreateOffer("c-alice", duelSettings()).OK)
	assert.NotContains(t, f.engine.idle, "c-alice")
	require.Len(t, f.engine.offers, 1)

	// Holding an open offer blocks every other occupancy.
	assert.Equal(t, ReasonNotIdle, f.engine.CreateOffer("c-alice", duelSettings()).Reason)
	assert.Len(t, f.engine.offers, 1)
	assert.Equal(t, ReasonNotIdle, f.engine.StartPractice("c-alice", models.MatchSettings{League: "epl", Rounds: 1}).Reason)

	require.True(t, f.engine.CreateOffer("c-bob", duelSettings()).OK)
	var aliceOfferID string
	for id, o := range f.engine.offers {
		if o.ConnID == "c-alice" {
			aliceOfferID = id
		}
	}
	assert.Equal(t, ReasonNotIdle, f.engine.JoinOffer("c-bob", aliceOfferID).Reason)

	// Cancelling restores the idle slot.
	require.True(t, f.engine.CancelOffer("c-alice").OK)
	assert.Contains(t, f.engine.idle, "c-alice")
	assert.Len(t, f.engine.offers, 1)
}

func TestDuelGuessPassesTurn(t *testing.T) {
	f := newFixture(t)
	_, s := startDuel(t, f)
	m := s.machine.M

	owner := m.TurnOwner
	ownerConn := m.Participants[owner].ConnID
	otherConn := m.Participants[1-owner].ConnID

	assert.Equal(t, ReasonOutOfTurn, f.engine.SubmitGuess(otherConn, m.RoundItems[0].PrimaryName).Reason)

	require.True(t, f.engine.SubmitGuess(ownerConn, m.RoundItems[0].PrimaryName).OK)
	assert.Equal(t, 1-owner, m.TurnOwner)
	assert.Len(t, m.Named, 1)

	results := f.bus.byType(events.TypeGuessResult)
	require.NotEmpty(t, results)
	assert.Equal(t, []string{ownerConn}, results[len(results)-1].Recipients)
}

func TestWrongGuessKeepsClock(t *testing.T) {
	f := newFixture(t)
	_, s := startDuel(t, f)
	m := s.machine.M

	tokenBefore := s.turnToken
	deadlineBefore := s.turnDeadline
	ownerConn := m.Participants[m.TurnOwner].ConnID

	require.True(t, f.engine.SubmitGuess(ownerConn, "definitely nobody").OK)
	assert.Equal(t, tokenBefore, s.turnToken)
	assert.Equal(t, deadlineBefore, s.turnDeadline)
	assert.Empty(t, m.Named)
}

func TestStaleTurnClockIgnored(t *testing.T) {
	f := newFixture(t)
	matchID, s := startDuel(t, f)
	m := s.machine.M

	oldToken := s.turnToken
	ownerConn := m.Participants[m.TurnOwner].ConnID
	require.True(t, f.engine.SubmitGuess(ownerConn, m.RoundItems[0].PrimaryName).OK)

	// The superseded clock fires late: nothing may change.
	historyBefore := len(m.History)
	f.engine.onTurnClockFired(matchID, oldToken)
	assert.Len(t, m.History, historyBefore)
	assert.Equal(t, models.MatchStatusRoundInProgress, m.Status)
}

func TestTurnExpirySettlesRound(t *testing.T) {
	f := newFixture(t)
	matchID, s := startDuel(t, f)
	m := s.machine.M
	loser := m.TurnOwner

	f.engine.onTurnClockFired(matchID, s.turnToken)
	require.Len(t, m.History, 1)
	assert.Equal(t, models.RoundEndTimeout, m.History[0].EndReason)
	assert.Equal(t, 1.0, m.Scores[1-loser])
	assert.Equal(t, models.MatchStatusRoundSettling, m.Status)
	assert.NotZero(t, s.pauseToken)
}

func TestSkipPauseNeedsBothInDuel(t *testing.T) {
	f := newFixture(t)
	matchID, s := startDuel(t, f)
	m := s.machine.M

	f.engine.onTurnClockFired(matchID, s.turnToken)
	require.Equal(t, models.MatchStatusRoundSettling, m.Status)

	require.True(t, f.engine.SkipPause(m.Participants[0].ConnID).OK)
	assert.Equal(t, models.MatchStatusRoundSettling, m.Status)

	require.True(t, f.engine.SkipPause(m.Participants[1].ConnID).OK)
	assert.Equal(t, models.MatchStatusRoundInProgress, m.Status)
	assert.Equal(t, 1, m.RoundIndex)
}

func TestSkipPauseSoloIsImmediate(t *testing.T) {
	f := newFixture(t)
	f.engine.AddIdle("c1", "solo")
	require.True(t, f.engine.StartPractice("c1", models.MatchSettings{League: "epl", Rounds: 2}).OK)

	var s *session
	var matchID uuid.UUID
	for id, sess := range f.engine.live {
		matchID, s = id, sess
	}
	f.engine.onTurnClockFired(matchID, s.turnToken)

	require.True(t, f.engine.SkipPause("c1").OK)
	assert.Equal(t, models.MatchStatusRoundInProgress, s.machine.M.Status)
}

func TestDisconnectTerminatesWithoutRating(t *testing.T) {
	f := newFixture(t)
	_, s := startDuel(t, f)
	m := s.machine.M

	f.presence.gone["c-alice"] = true
	f.engine.Disconnect("c-alice")

	assert.Empty(t, f.engine.live)
	assert.Equal(t, models.TerminationDisconnect, m.Termination)
	assert.Zero(t, f.users.recorded, "walkovers are never rated")

	// The survivor is back in the lobby, the leaver is not.
	assert.Contains(t, f.engine.idle, "c-bob")
	assert.NotContains(t, f.engine.idle, "c-alice")
	assert.Empty(t, f.engine.rematch)
}

func TestRatedFinishReturnsPlayersToIdleAndOffersRematch(t *testing.T) {
	f := newFixture(t)
	matchID, s := startDuel(t, f)
	m := s.machine.M

	// Same side loses two straight rounds of three: 2-0 is unreachable.
	first := m.TurnOwner
	require.True(t, f.engine.Surrender(m.Participants[first].ConnID).OK)
	f.engine.onPauseClockFired(matchID, s.pauseToken)
	require.Equal(t, first, m.TurnOwner, "round loser opens the next round")
	require.True(t, f.engine.Surrender(m.Participants[first].ConnID).OK)
	f.engine.onPauseClockFired(matchID, s.pauseToken)

	assert.Equal(t, models.TerminationScoreUnreachable, m.Termination)
	assert.Equal(t, 1, f.users.recorded)
	assert.Empty(t, f.engine.live)
	assert.Contains(t, f.engine.idle, "c-alice")
	assert.Contains(t, f.engine.idle, "c-bob")
	require.Len(t, f.engine.rematch, 1)

	ended := f.bus.byType(events.TypeMatchEnded)
	require.Len(t, ended, 1)
}

func TestRematchHandshake(t *testing.T) {
	f := newFixture(t)
	matchID, s := startDuel(t, f)
	m := s.machine.M

	first := m.TurnOwner
	require.True(t, f.engine.Surrender(m.Participants[first].ConnID).OK)
	f.engine.onPauseClockFired(matchID, s.pauseToken)
	require.True(t, f.engine.Surrender(m.Participants[first].ConnID).OK)
	f.engine.onPauseClockFired(matchID, s.pauseToken)
	require.Len(t, f.engine.rematch, 1)

	require.True(t, f.engine.RequestRematch("c-alice").OK)
	assert.Empty(t, f.engine.live, "one vote does not start anything")

	require.True(t, f.engine.RequestRematch("c-bob").OK)
	assert.Empty(t, f.engine.rematch)
	require.Len(t, f.engine.live, 1)

	for _, next := range f.engine.live {
		nm := next.machine.M
		assert.Equal(t, "alice", nm.Participants[0].Nickname, "seats are preserved")
		assert.Equal(t, "bob", nm.Participants[1].Nickname)
		assert.Equal(t, m.Settings, nm.Settings)
	}
	assert.NotEmpty(t, f.bus.byType(events.TypeRematchStarted))
}

func TestRematchCollapsesWhenOneSideLeaves(t *testing.T) {
	f := newFixture(t)
	matchID, s := startDuel(t, f)
	m := s.machine.M

	first := m.TurnOwner
	require.True(t, f.engine.Surrender(m.Participants[first].ConnID).OK)
	f.engine.onPauseClockFired(matchID, s.pauseToken)
	require.True(t, f.engine.Surrender(m.Participants[first].ConnID).OK)
	f.engine.onPauseClockFired(matchID, s.pauseToken)
	require.Len(t, f.engine.rematch, 1)

	require.True(t, f.engine.LeavePostMatch("c-alice").OK)
	assert.Empty(t, f.engine.rematch)
	assert.Equal(t, ReasonNoRematch, f.engine.RequestRematch("c-bob").Reason)
	assert.NotEmpty(t, f.bus.byType(events.TypeRematchDeclined))
}

func TestSpectateAndUnspectate(t *testing.T) {
	f := newFixture(t)
	matchID, s := startDuel(t, f)

	f.engine.AddIdle("c-carol", "carol")
	require.True(t, f.engine.Spectate("c-carol", matchID).OK)
	assert.Contains(t, s.spectators, "c-carol")
	assert.NotContains(t, f.engine.idle, "c-carol")

	snaps := f.bus.byType(events.TypeMatchSnapshot)
	require.Len(t, snaps, 1)
	assert.Equal(t, []string{"c-carol"}, snaps[0].Recipients)

	// Spectators cannot act in the match.
	assert.Equal(t, ReasonNotInMatch, f.engine.SubmitGuess("c-carol", "onana").Reason)

	require.True(t, f.engine.Unspectate("c-carol").OK)
	assert.Contains(t, f.engine.idle, "c-carol")
	assert.Empty(t, s.spectators)
}

func TestLobbyListsSpectatableDuels(t *testing.T) {
	f := newFixture(t)
	matchID, _ := startDuel(t, f)

	stats := f.engine.statsPayload()
	require.Len(t, stats.Matches, 1)
	assert.Equal(t, matchID.String(), stats.Matches[0].MatchID)
	assert.Equal(t, []string{"alice", "bob"}, stats.Matches[0].Participants)

	// Practice matches are reachable by id only, never listed.
	f.engine.AddIdle("c-solo", "solo")
	require.True(t, f.engine.StartPractice("c-solo", models.MatchSettings{League: "epl", Rounds: 1}).OK)
	stats = f.engine.statsPayload()
	assert.Len(t, stats.Matches, 1)
	assert.Equal(t, 2, stats.LiveMatches)
	assert.Equal(t, 2, stats.InDuelCount)
	assert.Equal(t, 1, stats.PracticeCount)
	assert.Equal(t, 0, stats.SpectatorCount)

	f.engine.AddIdle("c-carol", "carol")
	require.True(t, f.engine.Spectate("c-carol", matchID).OK)
	stats = f.engine.statsPayload()
	assert.Equal(t, 1, stats.SpectatorCount)
	assert.Equal(t, 4, stats.OnlineCount)
	assert.Equal(t, 0, stats.IdleCount)
}

func TestSpectatorEventNamesSmallAudience(t *testing.T) {
	f := newFixture(t)
	matchID, _ := startDuel(t, f)

	f.engine.AddIdle("c-carol", "carol")
	require.True(t, f.engine.Spectate("c-carol", matchID).OK)

	changed := f.bus.byType(events.TypeSpectatorsChanged)
	require.NotEmpty(t, changed)
	var p events.SpectatorsChangedPayload
	require.NoError(t, json.Unmarshal(changed[len(changed)-1].Payload, &p))
	assert.Equal(t, 1, p.Count)
	assert.Equal(t, []string{"carol"}, p.Names)
}

func TestPauseClockAdvancesRound(t *testing.T) {
	f := newFixture(t)
	matchID, s := startDuel(t, f)
	m := s.machine.M

	f.engine.onTurnClockFired(matchID, s.turnToken)
	require.Equal(t, models.MatchStatusRoundSettling, m.Status)

	f.engine.onPauseClockFired(matchID, s.pauseToken)
	assert.Equal(t, models.MatchStatusRoundInProgress, m.Status)
	assert.Equal(t, 1, m.RoundIndex)
	assert.NotZero(t, s.turnToken)

	started := f.bus.byType(events.TypeRoundStarted)
	assert.Len(t, started, 2)
}

func TestFinalRoundPausesBeforeMatchEnd(t *testing.T) {
	f := newFixture(t)
	matchID, s := startDuel(t, f)
	m := s.machine.M

	first := m.TurnOwner
	require.True(t, f.engine.Surrender(m.Participants[first].ConnID).OK)
	f.engine.onPauseClockFired(matchID, s.pauseToken)
	require.True(t, f.engine.Surrender(m.Participants[first].ConnID).OK)

	// 2-0 after two of three rounds ends the match, but only once the pause
	// after the last settle has run its course.
	assert.Contains(t, f.engine.live, matchID)
	assert.Equal(t, models.MatchStatusRoundSettling, m.Status)
	assert.NotZero(t, s.pauseToken)
	assert.Empty(t, f.bus.byType(events.TypeMatchEnded))

	f.engine.onPauseClockFired(matchID, s.pauseToken)
	assert.NotContains(t, f.engine.live, matchID)
	assert.Equal(t, models.TerminationScoreUnreachable, m.Termination)
	assert.Len(t, f.bus.byType(events.TypeMatchEnded), 1)
}

func TestSkipVotesEndFinishedMatchEarly(t *testing.T) {
	f := newFixture(t)
	matchID, s := startDuel(t, f)
	m := s.machine.M

	first := m.TurnOwner
	require.True(t, f.engine.Surrender(m.Participants[first].ConnID).OK)
	f.engine.onPauseClockFired(matchID, s.pauseToken)
	require.True(t, f.engine.Surrender(m.Participants[first].ConnID).OK)

	require.True(t, f.engine.SkipPause(m.Participants[0].ConnID).OK)
	require.True(t, f.engine.SkipPause(m.Participants[1].ConnID).OK)
	assert.NotContains(t, f.engine.live, matchID)
	assert.Equal(t, models.TerminationScoreUnreachable, m.Termination)
}

func TestTurnDeadlineTracksBudget(t *testing.T) {
	f := newFixture(t)
	_, s := startDuel(t, f)
	m := s.machine.M

	want := f.clock.Now().Add(60 * time.Second)
	assert.Equal(t, want, s.turnDeadline)

	f.clock.Advance(10 * time.Second)
	ownerConn := m.Participants[m.TurnOwner].ConnID
	require.True(t, f.engine.SubmitGuess(ownerConn, m.RoundItems[0].PrimaryName).OK)

	// Next owner still has a full bank; the guesser spent ten seconds.
	assert.Equal(t, 50*time.Second, m.TimeBudgets[1-m.TurnOwner])
	assert.Equal(t, 60*time.Second, m.TimeBudgets[m.TurnOwner])
	assert.Equal(t, f.clock.Now().Add(60*time.Second), s.turnDeadline)
}
