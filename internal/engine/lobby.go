package engine

import (
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/avbelov/squadduel/internal/events"
	"github.com/avbelov/squadduel/internal/match"
	"github.com/avbelov/squadduel/internal/models"
)

// AddIdle places an authenticated connection into the idle pool and pushes
// the lobby view to it.
func (e *Engine) AddIdle(connID, nickname string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.idle[connID] = nickname
	e.publishLobbyStats()
	e.publish(events.New(events.TypeOfferListUpdated, events.LobbySubject, []string{connID}, e.offersPayload()))
	e.publishLeaderboardTo([]string{connID})
}

// StartPractice moves an idle player straight into a solo match. A player
// holding an open offer is not idle and must cancel it first.
func (e *Engine) StartPractice(connID string, req models.MatchSettings) Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	nickname, ok := e.idle[connID]
	if !ok {
		return Rejected(ReasonNotIdle)
	}
	settings, cause := match.ResolveSettings(e.cat, models.ModePractice, req, e.cfg.Limits)
	if cause != "" {
		return BadSettings(cause)
	}

	e.startMatch(models.ModePractice, []models.Participant{{ConnID: connID, Nickname: nickname}}, settings, nil)
	return Ok()
}

// CreateOffer posts an open challenge to the lobby. The creator leaves the
// idle pool while the offer stands, so a second offer, a practice start or a
// spectate all reject until it is cancelled or taken.
func (e *Engine) CreateOffer(connID string, req models.MatchSettings) Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	nickname, ok := e.idle[connID]
	if !ok {
		return Rejected(ReasonNotIdle)
	}
	settings, cause := match.ResolveSettings(e.cat, models.ModeCompetitive, req, e.cfg.Limits)
	if cause != "" {
		return BadSettings(cause)
	}

	rating, err := e.users.RatingOf(e.ctx, nickname)
	if err != nil {
		log.Warn().Err(err).Str("nickname", nickname).Msg("load rating for offer")
	}

	delete(e.idle, connID)
	o := &offer{
		ID:       uuid.NewString(),
		ConnID:   connID,
		Nickname: nickname,
		Rating:   rating,
		Settings: settings,
	}
	e.offers[o.ID] = o
	e.publishOffers()
	e.publishLobbyStats()
	return Ok()
}

// CancelOffer withdraws the player's open challenge and returns them to the
// idle pool.
func (e *Engine) CancelOffer(connID string) Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	o, ok := e.takeOwnOffer(connID)
	if !ok {
		return Rejected(ReasonNotFound)
	}
	e.idle[connID] = o.Nickname
	e.publishOffers()
	e.publishLobbyStats()
	return Ok()
}

// JoinOffer accepts an open challenge and starts the duel, creator as
// player zero and joiner as player one.
func (e *Engine) JoinOffer(connID, offerID string) Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	nickname, ok := e.idle[connID]
	if !ok {
		return Rejected(ReasonNotIdle)
	}
	o, ok := e.offers[offerID]
	if !ok {
		return Rejected(ReasonNotFound)
	}
	if o.ConnID == connID {
		return Rejected(ReasonSelfJoin)
	}
	if !e.presence.Connected(o.ConnID) {
		delete(e.offers, offerID)
		e.publishOffers()
		return Rejected(ReasonCreatorGone)
	}

	delete(e.offers, offerID)

	participants := []models.Participant{
		{ConnID: o.ConnID, Nickname: o.Nickname},
		{ConnID: connID, Nickname: nickname},
	}
	e.startMatch(models.ModeCompetitive, participants, o.Settings, nil)
	return Ok()
}

// Spectate attaches an idle player to a live match as a viewer and sends
// them the current state.
func (e *Engine) Spectate(connID string, matchID uuid.UUID) Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	nickname, ok := e.idle[connID]
	if !ok {
		return Rejected(ReasonNotIdle)
	}
	s, ok := e.live[matchID]
	if !ok {
		return Rejected(ReasonNotFound)
	}

	delete(e.idle, connID)
	s.spectators[connID] = nickname
	e.byConn[connID] = matchID

	e.publish(events.New(events.TypeMatchSnapshot, matchID.String(), []string{connID}, e.snapshotPayload(s)))
	e.publish(events.New(events.TypeSpectatorsChanged, matchID.String(), s.recipients(), s.spectatorsPayload()))
	e.publishLobbyStats()
	return Ok()
}

// Unspectate detaches a viewer and returns them to the idle pool.
func (e *Engine) Unspectate(connID string) Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	matchID, ok := e.byConn[connID]
	if !ok {
		return Rejected(ReasonNotInMatch)
	}
	s, ok := e.live[matchID]
	if !ok {
		return Rejected(ReasonNotInMatch)
	}
	nickname, ok := s.spectators[connID]
	if !ok {
		return Rejected(ReasonNotInMatch)
	}

	delete(s.spectators, connID)
	delete(e.byConn, connID)
	e.idle[connID] = nickname

	e.publish(events.New(events.TypeSpectatorsChanged, matchID.String(), s.recipients(), s.spectatorsPayload()))
	e.publishLobbyStats()
	e.publish(events.New(events.TypeOfferListUpdated, events.LobbySubject, []string{connID}, e.offersPayload()))
	return Ok()
}

// takeOwnOffer removes and returns the connection's open offer, if any.
// Callers decide whether the creator goes back to the idle pool.
func (e *Engine) takeOwnOffer(connID string) (*offer, bool) {
	for id, o := range e.offers {
		if o.ConnID == connID {
			delete(e.offers, id)
			return o, true
		}
	}
	return nil, false
}

func (e *Engine) offersPayload() events.OfferListPayload {
	list := make([]events.Offer, 0, len(e.offers))
	for _, o := range e.offers {
		list = append(list, events.Offer{
			OfferID:     o.ID,
			Nickname:    o.Nickname,
			Rating:      o.Rating,
			League:      o.Settings.League,
			Rounds:      o.Settings.Rounds,
			TimeBankSec: o.Settings.TimeBankSec,
			Categories:  o.Settings.SelectedCategories,
		})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].OfferID < list[j].OfferID })
	return events.OfferListPayload{Offers: list}
}

func (e *Engine) publishOffers() {
	e.publish(events.New(events.TypeOfferListUpdated, events.LobbySubject, nil, e.offersPayload()))
}

func (e *Engine) statsPayload() events.LobbyStatsPayload {
	matches := make([]events.LiveMatch, 0, len(e.live))
	var inDuel, inPractice, spectating int
	for id, s := range e.live {
		m := s.machine.M
		spectating += len(s.spectators)
		if !m.Competitive() {
			inPractice += len(m.Participants)
			continue
		}
		inDuel += len(m.Participants)
		names := make([]string, 0, len(m.Participants))
		for _, p := range m.Participants {
			names = append(names, p.Nickname)
		}
		matches = append(matches, events.LiveMatch{
			MatchID:      id.String(),
			Participants: names,
			Scores:       append([]float64(nil), m.Scores...),
			RoundIndex:   m.RoundIndex,
		})
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].MatchID < matches[j].MatchID })
	return events.LobbyStatsPayload{
		OnlineCount:    len(e.idle) + len(e.byConn) + len(e.offers),
		IdleCount:      len(e.idle),
		OpenOffers:     len(e.offers),
		InDuelCount:    inDuel,
		PracticeCount:  inPractice,
		SpectatorCount: spectating,
		LiveMatches:    len(e.live),
		Matches:        matches,
	}
}

func (e *Engine) publishLobbyStats() {
	e.publish(events.New(events.TypeLobbyStats, events.LobbySubject, nil, e.statsPayload()))
}

func (e *Engine) publishLeaderboardTo(recipients []string) {
	entries, err := e.users.Leaderboard(e.ctx, e.cfg.LeaderboardSize)
	if err != nil {
		log.Error().Err(err).Msg("load leaderboard")
		return
	}
	e.publish(events.New(events.TypeLeaderboard, events.LobbySubject, recipients,
		events.LeaderboardPayload{Entries: entries}))
}
