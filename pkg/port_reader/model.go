package port_reader

import (
	"io"
	"sync"
	"time"

	"github.com/NotCoffee418/parking_bridge/pkg/lineparser"
	"github.com/NotCoffee418/parking_bridge/pkg/parking"
	"go.uber.org/atomic"
)

// Serial settings of the sensor controller firmware.
const (
	DefaultBaudrate    uint = 115200
	DefaultReadTimeout      = time.Second
	DefaultSettleDelay      = 2 * time.Second
	DefaultIdleBackoff      = time.Second
)

type State int32

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Lifecycle event kinds passed to an EventRecorder.
const (
	EventConnected     = "connected"
	EventConnectFailed = "connect_failed"
	EventDisconnected  = "disconnected"
	EventIOError       = "io_error"
)

// EventRecorder receives connection lifecycle events. Implementations must not block.
type EventRecorder interface {
	RecordEvent(kind, port, detail string)
}

// Opener creates device handles. Reads on the returned handle must give up
// after readTimeout when the device is silent.
type Opener interface {
	Open(port string, baudrate uint, readTimeout time.Duration) (io.ReadWriteCloser, error)
}

type Options struct {
	Baudrate    uint
	ReadTimeout time.Duration
	SettleDelay time.Duration
	IdleBackoff time.Duration
	Opener      Opener
	Events      EventRecorder
}

type Ack struct {
	Port    string
	Message string
}

// Manager owns the one device handle of the process and the ingestion loop reading from it.
type Manager struct {
	store  *parking.Store
	parser *lineparser.Parser
	opts   Options

	// stateMu serializes connect, disconnect, teardown and stop.
	stateMu  sync.Mutex
	stopped  bool
	stopOnce sync.Once
	state    *atomic.Int32
	port     *atomic.String

	// The loop holds the read side for one read attempt and the apply of
	// its line, so taking the write side waits for both to finish.
	handleMu   sync.RWMutex
	handle     io.ReadWriteCloser
	lines      *lineReader
	generation uint64

	loopActive *atomic.Bool
	loopStarts *atomic.Int32
	stop       chan struct{}
	loopDone   chan struct{}
}
