package parking

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

type SlotStatus string

const (
	StatusFree     SlotStatus = "Free"
	StatusOccupied SlotStatus = "Occupied"
)

type Slot struct {
	ID     int        `json:"id"`
	Status SlotStatus `json:"status"`
}

// Snapshot is the complete parking state handed to readers.
// Values returned by Store are copies and safe to keep.
type Snapshot struct {
	AvailableSlots int       `json:"available_slots"`
	TotalSlots     int       `json:"total_slots"`
	Slots          []Slot    `json:"slots"`
	EntryGate      string    `json:"entry_gate"`
	ExitGate       string    `json:"exit_gate"`
	LastUpdated    EpochTime `json:"last_updated"`
	Connected      bool      `json:"connected"`
}

func (s Snapshot) clone() Snapshot {
	c := s
	c.Slots = make([]Slot, len(s.Slots))
	copy(c.Slots, s.Slots)
	return c
}

// EpochTime serializes as fractional unix seconds.
type EpochTime struct {
	time.Time
}

func (t EpochTime) MarshalJSON() ([]byte, error) {
	secs := float64(t.UnixNano()) / float64(time.Second)
	return []byte(strconv.FormatFloat(secs, 'f', 6, 64)), nil
}

func (t *EpochTime) UnmarshalJSON(data []byte) error {
	secs, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("invalid epoch time %q: %w", string(data), err)
	}
	whole, frac := math.Modf(secs)
	t.Time = time.Unix(int64(whole), int64(math.Round(frac*1e6))*int64(time.Microsecond))
	return nil
}

type UpdateKind uint8

const (
	NoOp UpdateKind = iota
	AvailableCount
	SlotUpdate
	EntryGate
	ExitGate
)

func (k UpdateKind) String() string {
	switch k {
	case AvailableCount:
		return "available_count"
	case SlotUpdate:
		return "slot_status"
	case EntryGate:
		return "entry_gate"
	case ExitGate:
		return "exit_gate"
	default:
		return "noop"
	}
}

// Update is one parsed device line. Only the fields belonging to Kind are set.
// SlotID is 1-based, exactly as printed by the device.
type Update struct {
	Kind   UpdateKind
	Count  int
	SlotID int
	Status SlotStatus
	Text   string
}

func NoOpUpdate() Update { return Update{Kind: NoOp} }

func AvailableCountUpdate(n int) Update { return Update{Kind: AvailableCount, Count: n} }

func SlotStatusUpdate(id int, status SlotStatus) Update {
	return Update{Kind: SlotUpdate, SlotID: id, Status: status}
}

func EntryGateUpdate(text string) Update { return Update{Kind: EntryGate, Text: text} }

func ExitGateUpdate(text string) Update { return Update{Kind: ExitGate, Text: text} }
