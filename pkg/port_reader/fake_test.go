package port_reader

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"sync"
	"time"

	"go.uber.org/atomic"
)

// fakeDevice behaves like a serial handle with timed reads.
type fakeDevice struct {
	chunks    chan []byte
	failures  chan error
	hangup    chan struct{}
	closed    chan struct{}
	closeOnce sync.Once
	closeErr  error
	closes    *atomic.Int32
	timeout   time.Duration
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{
		chunks:   make(chan []byte, 32),
		failures: make(chan error, 1),
		hangup:   make(chan struct{}),
		closed:   make(chan struct{}),
		closes:   atomic.NewInt32(0),
		timeout:  testReadTimeout,
	}
}

func (d *fakeDevice) Read(p []byte) (int, error) {
	timer := time.NewTimer(d.timeout)
	defer timer.Stop()

	select {
	case b := <-d.chunks:
		return copy(p, b), nil
	case err := <-d.failures:
		return 0, err
	case <-d.hangup:
		return 0, io.EOF
	case <-d.closed:
		return 0, os.ErrClosed
	case <-timer.C:
		return 0, io.EOF
	}
}

func (d *fakeDevice) Write(p []byte) (int, error) { return len(p), nil }

func (d *fakeDevice) Close() error {
	d.closes.Inc()
	d.closeOnce.Do(func() { close(d.closed) })
	return d.closeErr
}

func (d *fakeDevice) send(s string) { d.chunks <- []byte(s) }

func (d *fakeDevice) isClosed() bool {
	select {
	case <-d.closed:
		return true
	default:
		return false
	}
}

type fakeOpener struct {
	mu      sync.Mutex
	devices map[string]*fakeDevice
	// fresh, when set, creates a new device for every open.
	fresh  bool
	opened []*fakeDevice
}

func newFakeOpener(devices map[string]*fakeDevice) *fakeOpener {
	return &fakeOpener{devices: devices}
}

func (o *fakeOpener) Open(port string, _ uint, _ time.Duration) (io.ReadWriteCloser, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.fresh {
		d := newFakeDevice()
		o.opened = append(o.opened, d)
		return d, nil
	}
	d, ok := o.devices[port]
	if !ok {
		return nil, fmt.Errorf("could not open port %s: %w", port, fs.ErrNotExist)
	}
	o.opened = append(o.opened, d)
	return d, nil
}

func (o *fakeOpener) openHandles() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := 0
	for _, d := range o.opened {
		if !d.isClosed() {
			n++
		}
	}
	return n
}

type recordedEvent struct {
	kind, port, detail string
}

type fakeRecorder struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *fakeRecorder) RecordEvent(kind, port, detail string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{kind, port, detail})
}

func (r *fakeRecorder) kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]string, 0, len(r.events))
	for _, e := range r.events {
		kinds = append(kinds, e.kind)
	}
	return kinds
}
