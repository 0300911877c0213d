package entity

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// EventVersion is bumped whenever the envelope changes shape.
const EventVersion = 1

const (
	EventMoveMade       = "move_made"
	EventPlayerJoined   = "player_joined"
	EventPlayerResigned = "player_resigned"
)

// Event is the envelope published on a game topic after every authoritative change.
// State is always a full snapshot, so receivers replace their copy instead of merging.
type Event struct {
	ID        string         `json:"id"`
	Version   int            `json:"version"`
	Kind      string         `json:"kind"`
	Code      string         `json:"code"`
	Revision  int64          `json:"revision"`
	State     *Snapshot      `json:"state"`
	Metadata  map[string]any `json:"metadata"`
	CreatedAt time.Time      `json:"created_at"`
}

func NewEvent(kind string, game *Game, metadata map[string]any, now time.Time) *Event {
	if metadata == nil {
		metadata = map[string]any{}
	}

	return &Event{
		ID:        uuid.NewString(),
		Version:   EventVersion,
		Kind:      kind,
		Code:      game.Code,
		Revision:  game.Revision,
		State:     game.Snapshot(),
		Metadata:  metadata,
		CreatedAt: now,
	}
}

// TopicName - the broadcast topic owned by a game.
func TopicName(code string) string {
	return "game." + strings.ToUpper(code)
}
