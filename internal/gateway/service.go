package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/avbelov/squadduel/internal/auth"
	"github.com/avbelov/squadduel/internal/engine"
	"github.com/avbelov/squadduel/internal/users"
)

// Service is the bridge between WebSocket clients and the game engine. It
// runs the Telegram auth handshake, enforces one session per account and
// routes authenticated messages to engine operations.
type Service struct {
	ctx       context.Context
	manager   *ConnectionManager
	engine    *engine.Engine
	users     *users.App
	validator *auth.Validator

	mu       sync.Mutex
	sessions map[int64]string // telegram ID -> conn ID
	pending  map[string]int64 // conn ID awaiting a nickname -> telegram ID
}

func NewService(ctx context.Context, manager *ConnectionManager, eng *engine.Engine, usersApp *users.App, validator *auth.Validator) *Service {
	s := &Service{
		ctx:       ctx,
		manager:   manager,
		engine:    eng,
		users:     usersApp,
		validator: validator,
		sessions:  make(map[int64]string),
		pending:   make(map[string]int64),
	}
	manager.SetHandler(s)
	return s
}

// HandleConnect greets a fresh connection with the auth challenge.
func (s *Service) HandleConnect(c *Connection) {
	s.manager.SendTo(c.ID, MsgAuthRequest, struct{}{})
}

// HandleDisconnect cleans up a dropped connection everywhere.
func (s *Service) HandleDisconnect(c *Connection) {
	s.mu.Lock()
	delete(s.pending, c.ID)
	if c.Authed && s.sessions[c.TelegramID] == c.ID {
		delete(s.sessions, c.TelegramID)
	}
	s.mu.Unlock()

	if c.Authed {
		s.engine.Disconnect(c.ID)
	}
}

// HandleMessage dispatches one inbound frame. Anything but the auth
// handshake requires an authenticated connection.
func (s *Service) HandleMessage(c *Connection, data []byte) {
	var frame inboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		log.Debug().Err(err).Str("connection_id", c.ID).Msg("malformed client frame")
		return
	}

	switch frame.Type {
	case MsgLogin:
		s.handleLogin(c, frame.Payload)
		return
	case MsgSetNickname:
		s.handleSetNickname(c, frame.Payload)
		return
	}

	if !c.Authed {
		s.manager.SendTo(c.ID, MsgAuthFailed, authFailedPayload{Reason: "not_authenticated"})
		return
	}
	s.handleGameMessage(c, frame)
}

func (s *Service) handleGameMessage(c *Connection, frame inboundFrame) {
	var res engine.Result
	switch frame.Type {
	case MsgStartPractice:
		var p matchSettingsPayload
		if !s.decode(c, frame, &p) {
			return
		}
		res = s.engine.StartPractice(c.ID, p)

	case MsgCreateOffer:
		var p matchSettingsPayload
		if !s.decode(c, frame, &p) {
			return
		}
		res = s.engine.CreateOffer(c.ID, p)

	case MsgCancelOffer:
		res = s.engine.CancelOffer(c.ID)

	case MsgJoinOffer:
		var p joinOfferPayload
		if !s.decode(c, frame, &p) {
			return
		}
		res = s.engine.JoinOffer(c.ID, p.OfferID)

	case MsgSpectate:
		var p spectatePayload
		if !s.decode(c, frame, &p) {
			return
		}
		matchID, err := uuid.Parse(p.MatchID)
		if err != nil {
			res = engine.Rejected(engine.ReasonNotFound)
		} else {
			res = s.engine.Spectate(c.ID, matchID)
		}

	case MsgUnspectate:
		res = s.engine.Unspectate(c.ID)

	case MsgGuess:
		var p guessPayload
		if !s.decode(c, frame, &p) {
			return
		}
		res = s.engine.SubmitGuess(c.ID, p.Text)

	case MsgSurrender:
		res = s.engine.Surrender(c.ID)

	case MsgSkipPause:
		res = s.engine.SkipPause(c.ID)

	case MsgRematch:
		res = s.engine.RequestRematch(c.ID)

	case MsgLeavePost:
		res = s.engine.LeavePostMatch(c.ID)

	default:
		log.Debug().Str("type", frame.Type).Str("connection_id", c.ID).Msg("unknown client message type")
		return
	}

	s.manager.SendTo(c.ID, MsgOpResult, opResultPayload{Op: frame.Type, OK: res.OK, Reason: res.Reason})
}

func (s *Service) decode(c *Connection, frame inboundFrame, v any) bool {
	if err := json.Unmarshal(frame.Payload, v); err != nil {
		log.Debug().Err(err).Str("type", frame.Type).Str("connection_id", c.ID).Msg("malformed payload")
		s.manager.SendTo(c.ID, MsgOpResult, opResultPayload{Op: frame.Type, Reason: "bad_payload"})
		return false
	}
	return true
}

// handleLogin is step one of the handshake: verify Telegram init data and
// either finish auth or ask for a nickname on first visit.
func (s *Service) handleLogin(c *Connection, payload json.RawMessage) {
	var p loginPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		s.manager.SendTo(c.ID, MsgAuthFailed, authFailedPayload{Reason: "bad_payload"})
		return
	}

	tgUser, err := s.validator.Validate(p.InitData, time.Now())
	if err != nil {
		log.Warn().Err(err).Str("connection_id", c.ID).Msg("init data validation failed")
		s.manager.SendTo(c.ID, MsgAuthFailed, authFailedPayload{Reason: "invalid_init_data"})
		return
	}

	account, err := s.users.GetByTelegramID(s.ctx, tgUser.ID)
	if errors.Is(err, users.ErrNotFound) {
		s.mu.Lock()
		s.pending[c.ID] = tgUser.ID
		s.mu.Unlock()
		s.manager.SendTo(c.ID, MsgNicknameRequired, struct{}{})
		return
	}
	if err != nil {
		log.Error().Err(err).Int64("telegram_id", tgUser.ID).Msg("load account")
		s.manager.SendTo(c.ID, MsgAuthFailed, authFailedPayload{Reason: "internal_error"})
		return
	}

	s.completeAuth(c, tgUser.ID, account.Nickname)
}

// handleSetNickname is step two for first-time players.
func (s *Service) handleSetNickname(c *Connection, payload json.RawMessage) {
	var p setNicknamePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		s.manager.SendTo(c.ID, MsgAuthFailed, authFailedPayload{Reason: "bad_payload"})
		return
	}

	s.mu.Lock()
	tgID, ok := s.pending[c.ID]
	s.mu.Unlock()
	if !ok {
		s.manager.SendTo(c.ID, MsgAuthFailed, authFailedPayload{Reason: "login_first"})
		return
	}

	account, err := s.users.Register(s.ctx, tgID, p.Nickname)
	switch {
	case errors.Is(err, users.ErrBadNickname):
		s.manager.SendTo(c.ID, MsgAuthFailed, authFailedPayload{Reason: "bad_nickname"})
		return
	case errors.Is(err, users.ErrNicknameTaken):
		s.manager.SendTo(c.ID, MsgAuthFailed, authFailedPayload{Reason: "nickname_taken"})
		return
	case err != nil:
		log.Error().Err(err).Int64("telegram_id", tgID).Msg("register account")
		s.manager.SendTo(c.ID, MsgAuthFailed, authFailedPayload{Reason: "internal_error"})
		return
	}

	s.mu.Lock()
	delete(s.pending, c.ID)
	s.mu.Unlock()

	s.completeAuth(c, tgID, account.Nickname)
}

// completeAuth finishes the handshake: evicts any previous session of the
// same account, marks the connection authenticated and parks it in the lobby.
func (s *Service) completeAuth(c *Connection, telegramID int64, nickname string) {
	s.mu.Lock()
	old, hadOld := s.sessions[telegramID]
	s.sessions[telegramID] = c.ID
	s.mu.Unlock()

	if hadOld && old != c.ID {
		log.Info().
			Int64("telegram_id", telegramID).
			Str("old_connection_id", old).
			Msg("evicting previous session")
		s.manager.Close(old)
	}

	c.TelegramID = telegramID
	c.Nickname = nickname
	c.Authed = true

	rating, err := s.users.RatingOf(s.ctx, nickname)
	if err != nil {
		log.Warn().Err(err).Str("nickname", nickname).Msg("load rating")
	}
	s.manager.SendTo(c.ID, MsgAuthOK, authOKPayload{Nickname: nickname, Rating: rating})

	cat := s.engine.Catalog()
	leagues := make(map[string][]string, len(cat.Leagues()))
	for _, league := range cat.Leagues() {
		leagues[league] = cat.Categories(league)
	}
	s.manager.SendTo(c.ID, MsgCatalog, catalogPayload{Leagues: leagues})

	s.engine.AddIdle(c.ID, nickname)
}
