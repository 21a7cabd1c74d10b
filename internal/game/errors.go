package game

import (
	"errors"
	"fmt"
)

var (
	ErrRoomNotFound      = errors.New("room not found")
	ErrInvalidPhase      = errors.New("invalid phase for action")
	ErrNotEnoughPlayers  = errors.New("not enough players")
	ErrAlreadyVoted      = errors.New("already voted")
	ErrSelfVoteForbidden = errors.New("voting for yourself is forbidden this round")
	ErrSelfVoteRequired  = errors.New("you must vote for yourself this round")
	ErrRoomFull          = errors.New("room full")
	ErrEmptyAnswer       = errors.New("answer is empty")
	ErrMissingPlayer     = errors.New("player id is required")

	// These are InvalidPhase-class rejections with a more precise reason.
	ErrNotHost       = fmt.Errorf("%w: not host", ErrInvalidPhase)
	ErrNotInRoom     = fmt.Errorf("%w: player not in room", ErrInvalidPhase)
	ErrNotEligible   = fmt.Errorf("%w: only players who answered may vote", ErrInvalidPhase)
	ErrInvalidTarget = fmt.Errorf("%w: vote target is not on the ballot", ErrInvalidPhase)
)

// Reason maps an error to the code sent in command-rejected events.
// More specific errors are checked before the ones they wrap.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrRoomNotFound):
		return "room_not_found"
	case errors.Is(err, ErrNotHost):
		return "not_host"
	case errors.Is(err, ErrNotInRoom):
		return "not_in_room"
	case errors.Is(err, ErrNotEligible):
		return "not_eligible"
	case errors.Is(err, ErrInvalidTarget):
		return "invalid_target"
	case errors.Is(err, ErrInvalidPhase):
		return "invalid_phase"
	case errors.Is(err, ErrNotEnoughPlayers):
		return "not_enough_players"
	case errors.Is(err, ErrAlreadyVoted):
		return "already_voted"
	case errors.Is(err, ErrSelfVoteForbidden):
		return "self_vote_forbidden"
	case errors.Is(err, ErrSelfVoteRequired):
		return "self_vote_required"
	case errors.Is(err, ErrRoomFull):
		return "room_full"
	case errors.Is(err, ErrEmptyAnswer):
		return "empty_answer"
	case errors.Is(err, ErrMissingPlayer):
		return "missing_player"
	default:
		return "internal"
	}
}
