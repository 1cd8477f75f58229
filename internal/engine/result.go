package engine

// Result is the outcome of a player-initiated operation. Rejections are
// expected gameplay outcomes, not errors; the reason is a stable code the
// client can translate.
type Result struct {
	OK     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
}

// Rejection reason codes.
const (
	ReasonBusy         = "busy"
	ReasonNotFound     = "not_found"
	ReasonNotIdle      = "not_idle"
	ReasonSelfJoin     = "self_join"
	ReasonCreatorGone  = "creator_gone"
	ReasonOutOfTurn    = "out_of_turn"
	ReasonNotInMatch   = "not_in_match"
	ReasonNotPaused    = "not_paused"
	ReasonNotPlaying   = "not_playing"
	ReasonOpponentLeft = "opponent_left"
	ReasonNoRematch    = "no_rematch"
)

// Ok is the successful result.
func Ok() Result {
	return Result{OK: true}
}

// Rejected wraps a refusal reason.
func Rejected(reason string) Result {
	return Result{Reason: reason}
}

// BadSettings signals invalid match settings with the specific cause.
func BadSettings(cause string) Result {
	return Result{Reason: cause}
}
