package cooldown

import (
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/axleway/llmgate/internal/core/domain"
	"github.com/axleway/llmgate/pkg/eventbus"
)

// Tracker is an in-memory, ephemeral map of endpoint-id to cooldown
// expiry. Parking is a fast-failover hint, not a durability concern: a
// process restart clears it, and cross-process consistency is not
// required since each gateway instance only observes its own failures.
type Tracker struct {
	entries *xsync.Map[string, *parkEntry]
	bus     *eventbus.EventBus[domain.CooldownEvent]
}

// SetEventBus attaches a bus that Park/Clear publish CooldownEvents to.
// Optional: a Tracker with no bus attached behaves exactly as before.
func (t *Tracker) SetEventBus(bus *eventbus.EventBus[domain.CooldownEvent]) {
	t.bus = bus
}

func (t *Tracker) publish(endpointID string, parked bool, reason string, d time.Duration) {
	if t.bus == nil {
		return
	}
	t.bus.PublishAsync(domain.CooldownEvent{
		EndpointID: endpointID,
		Parked:     parked,
		Reason:     reason,
		Duration:   d,
		At:         time.Now(),
	})
}

type parkEntry struct {
	expiryNano int64 // atomic, unix nanos
	reason     string
}

func NewTracker() *Tracker {
	return &Tracker{
		entries: xsync.NewMap[string, *parkEntry](),
	}
}

// Park sets the endpoint's expiry to now+d, overwriting any prior entry.
func (t *Tracker) Park(id string, d time.Duration, reason string) {
	expiry := time.Now().Add(d).UnixNano()
	entry, loaded := t.entries.LoadOrStore(id, &parkEntry{expiryNano: expiry, reason: reason})
	if loaded {
		atomic.StoreInt64(&entry.expiryNano, expiry)
		entry.reason = reason
	}
	t.publish(id, true, reason, d)
}

// IsParked reports whether id is currently parked. An expired entry is
// removed as a side effect of the check.
func (t *Tracker) IsParked(id string) bool {
	entry, ok := t.entries.Load(id)
	if !ok {
		return false
	}
	if time.Now().UnixNano() >= atomic.LoadInt64(&entry.expiryNano) {
		t.entries.Delete(id)
		return false
	}
	return true
}

// Remaining returns the seconds left on id's cooldown, or 0 if unparked.
func (t *Tracker) Remaining(id string) time.Duration {
	entry, ok := t.entries.Load(id)
	if !ok {
		return 0
	}
	remaining := time.Unix(0, atomic.LoadInt64(&entry.expiryNano)).Sub(time.Now())
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (t *Tracker) Clear(id string) {
	t.entries.Delete(id)
	t.publish(id, false, "cleared", 0)
}

func (t *Tracker) ClearAll() {
	t.entries.Clear()
}

// Snapshot returns remaining cooldown seconds per currently-parked
// endpoint, clearing any expired entries it encounters.
func (t *Tracker) Snapshot() map[string]time.Duration {
	out := make(map[string]time.Duration)
	now := time.Now().UnixNano()

	t.entries.Range(func(id string, entry *parkEntry) bool {
		expiry := atomic.LoadInt64(&entry.expiryNano)
		if now >= expiry {
			t.entries.Delete(id)
			return true
		}
		out[id] = time.Unix(0, expiry).Sub(time.Now())
		return true
	})

	return out
}
