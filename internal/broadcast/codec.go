package broadcast

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rocketscienceinc/nines-backend/internal/entity"
)

var ErrUnsupportedVersion = errors.New("unsupported event version")

func Encode(event *entity.Event) ([]byte, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}

	return payload, nil
}

// Decode parses an event envelope and refuses versions this build does not understand.
func Decode(payload []byte) (*entity.Event, error) {
	var event entity.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}

	if event.Version != entity.EventVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, event.Version)
	}

	return &event, nil
}
