package parking

import (
	"sync"
	"time"
)

// Gate text reported before the device has said anything.
const initialGateStatus = "Ready"

// Store holds the live parking snapshot.
// All access goes through the mutex; readers always get a full copy.
type Store struct {
	mu       sync.RWMutex
	snapshot Snapshot
	now      func() time.Time
	onChange func(Snapshot)
}

// NewStore creates a store with every slot free and no device connected.
func NewStore(totalSlots int) *Store {
	return newStoreWithClock(totalSlots, time.Now)
}

func newStoreWithClock(totalSlots int, now func() time.Time) *Store {
	if totalSlots < 0 {
		totalSlots = 0
	}
	slots := make([]Slot, totalSlots)
	for i := range slots {
		slots[i] = Slot{ID: i + 1, Status: StatusFree}
	}
	return &Store{
		now: now,
		snapshot: Snapshot{
			AvailableSlots: totalSlots,
			TotalSlots:     totalSlots,
			Slots:          slots,
			EntryGate:      initialGateStatus,
			ExitGate:       initialGateStatus,
			LastUpdated:    EpochTime{now()},
			Connected:      false,
		},
	}
}

// OnChange registers fn to receive a copy of the snapshot after every mutation.
// fn is called outside the lock and must not block for long.
func (s *Store) OnChange(fn func(Snapshot)) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot.clone()
}

// Apply folds one parsed update into the snapshot and reports whether anything changed.
// NoOp and out-of-range slot updates leave the snapshot untouched, timestamp included.
// Available counts are stored as reported; range checking is the device's job.
func (s *Store) Apply(u Update) bool {
	s.mu.Lock()
	switch u.Kind {
	case AvailableCount:
		s.snapshot.AvailableSlots = u.Count
	case SlotUpdate:
		// Device ids are 1-based; this is the only place they become indexes.
		idx := u.SlotID - 1
		if idx < 0 || idx >= len(s.snapshot.Slots) {
			s.mu.Unlock()
			return false
		}
		s.snapshot.Slots[idx].Status = u.Status
	case EntryGate:
		s.snapshot.EntryGate = u.Text
	case ExitGate:
		s.snapshot.ExitGate = u.Text
	default:
		s.mu.Unlock()
		return false
	}
	s.snapshot.LastUpdated = EpochTime{s.now()}
	s.snapshot.Connected = true
	snap, notify := s.snapshot.clone(), s.onChange
	s.mu.Unlock()

	if notify != nil {
		notify(snap)
	}
	return true
}

func (s *Store) SetConnected(connected bool) {
	s.mu.Lock()
	if s.snapshot.Connected == connected {
		s.mu.Unlock()
		return
	}
	s.snapshot.Connected = connected
	snap, notify := s.snapshot.clone(), s.onChange
	s.mu.Unlock()

	if notify != nil {
		notify(snap)
	}
}
