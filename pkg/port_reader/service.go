package port_reader

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/NotCoffee418/parking_bridge/pkg/lineparser"
	"github.com/NotCoffee418/parking_bridge/pkg/parking"
	"github.com/rs/zerolog/log"
	"go.uber.org/atomic"
)

// NewManager creates a disconnected manager. Zero option values take the
// firmware defaults, except SettleDelay which stays zero. A nil Opener opens
// real serial ports.
func NewManager(store *parking.Store, parser *lineparser.Parser, opts Options) *Manager {
	if opts.Baudrate == 0 {
		opts.Baudrate = DefaultBaudrate
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = DefaultReadTimeout
	}
	if opts.SettleDelay < 0 {
		opts.SettleDelay = 0
	}
	if opts.IdleBackoff <= 0 {
		opts.IdleBackoff = DefaultIdleBackoff
	}
	if opts.Opener == nil {
		opts.Opener = SerialOpener{}
	}

	return &Manager{
		store:      store,
		parser:     parser,
		opts:       opts,
		state:      atomic.NewInt32(int32(Disconnected)),
		port:       atomic.NewString(""),
		loopActive: atomic.NewBool(false),
		loopStarts: atomic.NewInt32(0),
		stop:       make(chan struct{}),
		loopDone:   make(chan struct{}),
	}
}

func (m *Manager) State() State {
	return State(m.state.Load())
}

// Port returns the port of the open handle, or "" when disconnected.
func (m *Manager) Port() string {
	return m.port.Load()
}

// Connect replaces any open handle with a new one on port and makes sure the
// ingestion loop is running. Concurrent Connect and Disconnect calls are serialized.
func (m *Manager) Connect(ctx context.Context, port string) (Ack, error) {
	if port == "" {
		return Ack{}, &ConnectionError{Op: "connect", Err: ErrNoPort}
	}

	m.stateMu.Lock()
	defer m.stateMu.Unlock()

	select {
	case <-m.stop:
		return Ack{}, &ConnectionError{Op: "connect", Port: port, Err: ErrStopped}
	default:
	}

	m.state.Store(int32(Connecting))

	if old, oldPort := m.detach(); old != nil {
		if err := old.Close(); err != nil {
			log.Warn().Err(err).Str("port", oldPort).Msg("Could not close previous serial port")
		}
		m.record(EventDisconnected, oldPort, "replaced by new connection")
	}

	handle, err := m.opts.Opener.Open(port, m.opts.Baudrate, m.opts.ReadTimeout)
	if err != nil {
		return Ack{}, m.failConnect(port, err)
	}

	// The controller resets when the port opens; give it time before trusting its output.
	if err := m.wait(ctx, m.opts.SettleDelay); err != nil {
		handle.Close()
		return Ack{}, m.failConnect(port, err)
	}

	m.attach(handle, port)
	m.state.Store(int32(Connected))
	m.store.SetConnected(true)
	m.ensureLoop()

	log.Info().Str("port", port).Uint("baudrate", m.opts.Baudrate).Msg("Connected to parking controller")
	m.record(EventConnected, port, "")
	return Ack{Port: port, Message: fmt.Sprintf("Connected to %s", port)}, nil
}

// Disconnect closes the open handle. Disconnecting while already disconnected is not an error.
// A failing close is reported, but the handle is discarded either way.
func (m *Manager) Disconnect() (Ack, error) {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()

	handle, port := m.detach()
	m.state.Store(int32(Disconnected))
	m.store.SetConnected(false)

	if handle == nil {
		return Ack{Message: "Already disconnected"}, nil
	}

	if err := handle.Close(); err != nil {
		log.Warn().Err(err).Str("port", port).Msg("Error while closing serial port")
		m.record(EventDisconnected, port, err.Error())
		return Ack{}, &ConnectionError{Op: "disconnect", Port: port, Err: err}
	}

	log.Info().Str("port", port).Msg("Disconnected from parking controller")
	m.record(EventDisconnected, port, "")
	return Ack{Port: port, Message: "Disconnected"}, nil
}

// Stop ends the ingestion loop, waits for it to exit and closes the handle.
// The manager refuses new connections afterwards.
func (m *Manager) Stop() {
	// Closed before taking stateMu so a Connect waiting out the settle delay gives up.
	m.stopOnce.Do(func() { close(m.stop) })

	m.stateMu.Lock()
	if m.stopped {
		m.stateMu.Unlock()
		return
	}
	m.stopped = true
	running := m.loopActive.Load()
	m.stateMu.Unlock()

	if running {
		<-m.loopDone
	}

	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	if handle, port := m.detach(); handle != nil {
		if err := handle.Close(); err != nil {
			log.Warn().Err(err).Str("port", port).Msg("Error while closing serial port")
		}
		m.record(EventDisconnected, port, "shutdown")
	}
	m.state.Store(int32(Disconnected))
	m.store.SetConnected(false)
}

// reportFailure is how the ingestion loop signals a broken handle.
// Failures of a handle that has since been replaced are ignored.
func (m *Manager) reportFailure(generation uint64, cause error) {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()

	m.handleMu.Lock()
	if m.handle == nil || m.generation != generation {
		m.handleMu.Unlock()
		return
	}
	handle := m.handle
	m.handle, m.lines = nil, nil
	m.handleMu.Unlock()

	port := m.port.Swap("")
	m.state.Store(int32(Disconnected))
	m.store.SetConnected(false)

	if err := handle.Close(); err != nil {
		log.Debug().Err(err).Str("port", port).Msg("Close after read failure")
	}
	log.Warn().Err(cause).Str("port", port).Msg("Error reading serial data, connection dropped")
	m.record(EventIOError, port, cause.Error())
}

func (m *Manager) failConnect(port string, cause error) error {
	m.state.Store(int32(Disconnected))
	m.store.SetConnected(false)
	log.Warn().Err(cause).Str("port", port).Msg("Could not connect to parking controller")
	m.record(EventConnectFailed, port, cause.Error())
	return &ConnectionError{Op: "connect", Port: port, Err: cause}
}

// attach installs a freshly opened handle. Caller holds stateMu.
func (m *Manager) attach(handle io.ReadWriteCloser, port string) {
	m.handleMu.Lock()
	m.generation++
	m.handle = handle
	m.lines = newLineReader(handle, m.opts.ReadTimeout)
	m.handleMu.Unlock()
	m.port.Store(port)
}

// detach takes the handle away from the loop, waiting for an in-flight read.
// Caller holds stateMu and becomes responsible for closing the result.
func (m *Manager) detach() (io.ReadWriteCloser, string) {
	m.handleMu.Lock()
	handle := m.handle
	m.handle, m.lines = nil, nil
	m.handleMu.Unlock()
	return handle, m.port.Swap("")
}

// wait sleeps for d unless ctx is cancelled or the manager stops first.
func (m *Manager) wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-m.stop:
		return ErrStopped
	}
}

func (m *Manager) record(kind, port, detail string) {
	if m.opts.Events != nil {
		m.opts.Events.RecordEvent(kind, port, detail)
	}
}
