package port_reader

import (
	"bytes"
	"errors"
	"io"
	"time"

	"github.com/rs/zerolog/log"
)

// Longest partial line kept while waiting for a newline.
const maxLineLength = 4096

// ensureLoop starts the ingestion loop unless it already runs.
func (m *Manager) ensureLoop() {
	if !m.loopActive.CompareAndSwap(false, true) {
		return
	}
	m.loopStarts.Inc()
	go m.ingest()
}

// ingest reads device lines into the store until Stop.
// I/O errors drop the connection but never end the loop.
func (m *Manager) ingest() {
	defer close(m.loopDone)
	log.Debug().Msg("Ingestion loop started")

	for {
		select {
		case <-m.stop:
			log.Debug().Msg("Stop signal received, ingestion loop exiting")
			return
		default:
		}

		m.handleMu.RLock()
		if m.handle == nil {
			m.handleMu.RUnlock()
			m.idle()
			continue
		}
		generation := m.generation
		line, ok, err := m.lines.next()
		if err != nil {
			m.handleMu.RUnlock()
			m.reportFailure(generation, err)
			continue
		}
		// Applied before releasing the handle, so a concurrent disconnect
		// cannot be followed by a stale line marking the store connected.
		if ok {
			m.apply(line)
		}
		m.handleMu.RUnlock()
	}
}

func (m *Manager) apply(line string) {
	update := m.parser.Parse(line)
	if m.store.Apply(update) {
		log.Debug().Str("line", line).Stringer("update", update.Kind).Msg("Applied device line")
	}
}

func (m *Manager) idle() {
	timer := time.NewTimer(m.opts.IdleBackoff)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-m.stop:
	}
}

// lineReader splits a timed-read handle into newline terminated lines.
type lineReader struct {
	src     io.Reader
	buf     []byte
	pending []byte
	// Set after an overlong line was dropped, until its newline arrives.
	discarding bool
	// An empty read returning sooner than this is a hang-up, not a timeout.
	minIdle time.Duration
}

func newLineReader(src io.Reader, readTimeout time.Duration) *lineReader {
	return &lineReader{
		src:     src,
		buf:     make([]byte, 256),
		minIdle: readTimeout / 2,
	}
}

// next returns the next complete line, reading from the device at most once.
// ok is false when the read ended without completing a line.
func (r *lineReader) next() (line string, ok bool, err error) {
	if line, ok := r.take(); ok {
		return line, true, nil
	}

	start := time.Now()
	n, err := r.src.Read(r.buf)
	if n > 0 {
		r.pending = append(r.pending, r.buf[:n]...)
		r.skipDiscarded()
	}
	// Timed out reads come back empty, as io.EOF from os.File.
	if err != nil && !errors.Is(err, io.EOF) {
		return "", false, err
	}
	if n == 0 && time.Since(start) < r.minIdle {
		return "", false, ErrDeviceGone
	}

	if line, ok := r.take(); ok {
		return line, true, nil
	}
	if len(r.pending) > maxLineLength {
		log.Debug().Int("bytes", len(r.pending)).Msg("Discarding overlong device line")
		r.pending = r.pending[:0]
		r.discarding = true
	}
	return "", false, nil
}

// skipDiscarded drops the rest of an overlong line, through its newline.
func (r *lineReader) skipDiscarded() {
	if !r.discarding {
		return
	}
	idx := bytes.IndexByte(r.pending, '\n')
	if idx < 0 {
		r.pending = r.pending[:0]
		return
	}
	r.pending = append(r.pending[:0], r.pending[idx+1:]...)
	r.discarding = false
}

func (r *lineReader) take() (string, bool) {
	idx := bytes.IndexByte(r.pending, '\n')
	if idx < 0 {
		return "", false
	}
	line := string(r.pending[:idx])
	r.pending = append(r.pending[:0], r.pending[idx+1:]...)
	return line, true
}
