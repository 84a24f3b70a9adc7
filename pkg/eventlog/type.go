package eventlog

// Event is one connection lifecycle transition of the serial bridge.
// Occupancy itself is never stored.
type Event struct {
	ID        int64  `json:"id" db:"id"`
	Timestamp int64  `json:"timestamp" db:"timestamp"`
	Kind      string `json:"kind" db:"kind"`
	Port      string `json:"port" db:"port"`
	Detail    string `json:"detail" db:"detail"`
}
