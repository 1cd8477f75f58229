package gateway

import (
	"encoding/json"

	"github.com/avbelov/squadduel/internal/models"
)

// Client-to-server message types.
const (
	MsgLogin         = "login"
	MsgSetNickname   = "set_nickname"
	MsgStartPractice = "start_practice"
	MsgCreateOffer   = "create_offer"
	MsgCancelOffer   = "cancel_offer"
	MsgJoinOffer     = "join_offer"
	MsgSpectate      = "spectate"
	MsgUnspectate    = "unspectate"
	MsgGuess         = "guess"
	MsgSurrender     = "surrender"
	MsgSkipPause     = "skip_pause"
	MsgRematch       = "rematch"
	MsgLeavePost     = "leave_post_match"
)

// Server-to-client direct message types. Game events travel as their event
// type names instead.
const (
	MsgAuthRequest      = "auth_request"
	MsgAuthOK           = "auth_ok"
	MsgNicknameRequired = "auth_nickname_required"
	MsgAuthFailed       = "auth_failed"
	MsgOpResult         = "op_result"
	MsgCatalog          = "catalog"
)

// inboundFrame is the shape of every client-to-server message.
type inboundFrame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type loginPayload struct {
	InitData string `json:"init_data"`
}

type setNicknamePayload struct {
	Nickname string `json:"nickname"`
}

// matchSettingsPayload reuses the model's json field names.
type matchSettingsPayload = models.MatchSettings

type joinOfferPayload struct {
	OfferID string `json:"offer_id"`
}

type spectatePayload struct {
	MatchID string `json:"match_id"`
}

type guessPayload struct {
	Text string `json:"text"`
}

type authOKPayload struct {
	Nickname string `json:"nickname"`
	Rating   int    `json:"rating"`
}

type authFailedPayload struct {
	Reason string `json:"reason"`
}

// catalogPayload lists the playable leagues and their categories so the
// client can build its settings screen.
type catalogPayload struct {
	Leagues map[string][]string `json:"leagues"`
}

// opResultPayload acknowledges one client operation.
type opResultPayload struct {
	Op     string `json:"op"`
	OK     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
}
