package broadcast

import (
	"sync"

	"github.com/rocketscienceinc/nines-backend/internal/entity"
)

// Mirror keeps a subscriber's copy of one game. Every event carries the full snapshot,
// so a newer revision replaces the copy wholesale and older or repeated ones are ignored.
type Mirror struct {
	mu       sync.RWMutex
	snapshot *entity.Snapshot
}

func NewMirror() *Mirror {
	return &Mirror{}
}

// Load installs a snapshot from a point read unless a newer one is already held.
func (that *Mirror) Load(snapshot *entity.Snapshot) bool {
	if snapshot == nil {
		return false
	}

	that.mu.Lock()
	defer that.mu.Unlock()

	if that.snapshot != nil && snapshot.Revision < that.snapshot.Revision {
		return false
	}

	that.snapshot = snapshot

	return true
}

// Apply replaces the held snapshot when event is newer.
func (that *Mirror) Apply(event *entity.Event) bool {
	if event == nil || event.State == nil {
		return false
	}

	that.mu.Lock()
	defer that.mu.Unlock()

	if that.snapshot != nil && event.Revision <= that.snapshot.Revision {
		return false
	}

	that.snapshot = event.State

	return true
}

func (that *Mirror) Snapshot() *entity.Snapshot {
	that.mu.RLock()
	defer that.mu.RUnlock()

	return that.snapshot
}

// Revision - revision of the held snapshot, -1 if none.
func (that *Mirror) Revision() int64 {
	that.mu.RLock()
	defer that.mu.RUnlock()

	if that.snapshot == nil {
		return -1
	}

	return that.snapshot.Revision
}
