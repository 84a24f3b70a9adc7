package port_reader

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/NotCoffee418/parking_bridge/pkg/lineparser"
	"github.com/NotCoffee418/parking_bridge/pkg/parking"
	"github.com/creack/pty"
	"github.com/stretchr/testify/require"
)

// chunkReader hands out one chunk per Read, then times out.
type chunkReader struct {
	chunks []string
	err    error
	delay  time.Duration
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if len(r.chunks) == 0 {
		if r.err != nil {
			return 0, r.err
		}
		time.Sleep(r.delay)
		return 0, io.EOF
	}
	n := copy(p, r.chunks[0])
	r.chunks = r.chunks[1:]
	return n, nil
}

func TestLineReader_SplitsLines(t *testing.T) {
	src := &chunkReader{
		chunks: []string{"Slot 1: Fr", "ee\nSlot 2: Occupied\nAvail", "able Slots: 1\n"},
		delay:  20 * time.Millisecond,
	}
	r := newLineReader(src, 20*time.Millisecond)

	var lines []string
	for i := 0; i < 8; i++ {
		line, ok, err := r.next()
		require.NoError(t, err)
		if ok {
			lines = append(lines, line)
		}
	}
	require.Equal(t, []string{"Slot 1: Free", "Slot 2: Occupied", "Available Slots: 1"}, lines)
}

func TestLineReader_TimeoutIsNotAnError(t *testing.T) {
	r := newLineReader(&chunkReader{delay: 20 * time.Millisecond}, 20*time.Millisecond)

	line, ok, err := r.next()
	require.NoError(t, err)
	require.False(t, ok)
	require.Empty(t, line)
}

func TestLineReader_InstantEmptyReadIsHangUp(t *testing.T) {
	r := newLineReader(&chunkReader{}, time.Second)

	_, _, err := r.next()
	require.ErrorIs(t, err, ErrDeviceGone)
}

func TestLineReader_PassesErrorsThrough(t *testing.T) {
	ioErr := errors.New("input/output error")
	r := newLineReader(&chunkReader{err: ioErr}, time.Second)

	_, _, err := r.next()
	require.ErrorIs(t, err, ioErr)
}

func overlongChunks(tail string) []string {
	long := strings.Repeat("x", maxLineLength+10)
	var chunks []string
	for i := 0; i < len(long); i += 200 {
		end := i + 200
		if end > len(long) {
			end = len(long)
		}
		chunks = append(chunks, long[i:end])
	}
	return append(chunks, tail)
}

func readAllLines(t *testing.T, r *lineReader, attempts int) []string {
	t.Helper()
	var lines []string
	for i := 0; i < attempts; i++ {
		line, ok, err := r.next()
		require.NoError(t, err)
		if ok {
			lines = append(lines, line)
		}
	}
	return lines
}

func TestLineReader_DropsOverlongLines(t *testing.T) {
	src := &chunkReader{
		chunks: overlongChunks("xxxx\nExit Gate: Open\n"),
		delay:  10 * time.Millisecond,
	}
	attempts := len(src.chunks) + 2
	r := newLineReader(src, 10*time.Millisecond)

	require.Equal(t, []string{"Exit Gate: Open"}, readAllLines(t, r, attempts))
}

func TestLineReader_DropsTailOfOverlongLine(t *testing.T) {
	// The tail looks like a valid slot line but belongs to the dropped one.
	src := &chunkReader{
		chunks: append(overlongChunks("xx Slot 2: Occu"), "pied\nSlot 1: Free\n"),
		delay:  10 * time.Millisecond,
	}
	attempts := len(src.chunks) + 2
	r := newLineReader(src, 10*time.Millisecond)

	require.Equal(t, []string{"Slot 1: Free"}, readAllLines(t, r, attempts))
	require.False(t, r.discarding)
}

func TestLineReader_KeepsRemainderAcrossTakes(t *testing.T) {
	r := newLineReader(bytes.NewReader(nil), time.Second)
	r.pending = []byte("a\nb\nc")

	line, ok := r.take()
	require.True(t, ok)
	require.Equal(t, "a", line)
	line, ok = r.take()
	require.True(t, ok)
	require.Equal(t, "b", line)
	_, ok = r.take()
	require.False(t, ok)
	require.Equal(t, "c", string(r.pending))
}

// A pseudo-terminal stands in for the controller: the test writes to the
// master side, the manager opens the slave path with the real serial driver.
func TestSerialOpener_PseudoTerminal(t *testing.T) {
	master, slave, err := pty.Open()
	require.NoError(t, err)
	t.Cleanup(func() { master.Close(); slave.Close() })

	check, err := SerialOpener{}.Open(slave.Name(), DefaultBaudrate, 100*time.Millisecond)
	if err != nil {
		t.Skipf("pseudo-terminal does not accept serial settings: %v", err)
	}
	require.NoError(t, check.Close())

	store := parking.NewStore(3)
	events := &fakeRecorder{}
	m := NewManager(store, lineparser.NewParser(3), Options{
		ReadTimeout: 100 * time.Millisecond,
		SettleDelay: 10 * time.Millisecond,
		IdleBackoff: 10 * time.Millisecond,
		Events:      events,
	})
	t.Cleanup(m.Stop)

	_, err = m.Connect(context.Background(), slave.Name())
	require.NoError(t, err)

	_, err = master.Write([]byte("Slot 1: Occupied\r\nEntry Gate: Open\r\n"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		snap := store.Snapshot()
		return snap.Slots[0].Status == parking.StatusOccupied && snap.EntryGate == "Open"
	}, waitFor, tick)

	// Unplugging the controller hangs up the slave side.
	require.NoError(t, master.Close())

	require.Eventually(t, func() bool {
		return !store.Snapshot().Connected && m.State() == Disconnected
	}, waitFor, tick)
	require.Contains(t, events.kinds(), EventIOError)
	require.True(t, m.loopActive.Load())
}
