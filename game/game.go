package game

import (
	"time"

	"github.com/festivo/gamehub/admission"
)

// Type identifies one of the party mini-games. Each {event, Type} pair owns
// an independent session.
type Type string

const (
	TypeBingo       Type = "bingo"
	TypeRaffle      Type = "raffle"
	TypeImpostor    Type = "impostor"
	TypeConfessions Type = "confessions"
	TypeTrivia      Type = "trivia"
)

// ParseType maps a URL path segment to a game type.
func ParseType(s string) (Type, bool) {
	switch Type(s) {
	case TypeBingo, TypeRaffle, TypeImpostor, TypeConfessions, TypeTrivia:
		return Type(s), true
	}
	return "", false
}

// Status is a game-type-specific lifecycle value ("waiting", "playing", ...).
type Status string

// Require guards a mutation against the session's current status and
// returns IllegalTransitionError when the operation is out of place.
func Require(current Status, op string, allowed ...Status) error {
	for _, s := range allowed {
		if current == s {
			return nil
		}
	}
	return &IllegalTransitionError{Op: op, Status: current}
}

// Participant is one guest inside a session.
type Participant struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	JoinedAt time.Time `json:"joinedAt"`
}

// Broadcaster pushes the current session snapshot to every subscriber of
// an {event, game} pair. Defined here to break the import cycle with the
// broadcast package.
type Broadcaster interface {
	Publish(eventID string, gameType Type)
}

// NopBroadcaster is the test double used across machine tests.
type NopBroadcaster struct{}

func (NopBroadcaster) Publish(string, Type) {}

// ViewSource builds the two broadcast projections of a session. Both are
// pure functions of the canonical record; the canonical record is never
// mutated to hide fields.
type ViewSource interface {
	// FullView is the admin/big-screen projection, photo refs included.
	FullView(eventID string) any
	// LightView is the participant projection; photo payloads are reduced
	// to presence flags to keep frames small.
	LightView(eventID string) any
}

// ParticipantRemover lets the transport layer evict a participant whose
// stream connection dropped. Implementations broadcast exactly once when
// a participant was actually removed.
type ParticipantRemover interface {
	RemoveParticipant(eventID, participantID string) bool
}

// CheckAdmission enforces the plan ceiling for a resource. Administrators
// bypass the check entirely.
func CheckAdmission(tier admission.Tier, res admission.Resource, count int, admin bool) error {
	if admin {
		return nil
	}
	d := admission.Check(tier, res, count)
	if !d.Allowed {
		return &QuotaExceededError{Resource: string(res), Count: count, Limit: d.Limit}
	}
	return nil
}
