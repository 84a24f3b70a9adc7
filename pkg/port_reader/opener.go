package port_reader

import (
	"fmt"
	"io"
	"time"

	"github.com/jacobsa/go-serial/serial"
)

// SerialOpener opens real serial ports.
type SerialOpener struct{}

// Open configures 8N1 with timed reads: a read returns as soon as any byte
// arrives, or empty once readTimeout passes. The driver only supports
// timeouts in steps of 100ms up to 25.5s.
func (SerialOpener) Open(port string, baudrate uint, readTimeout time.Duration) (io.ReadWriteCloser, error) {
	options := serial.OpenOptions{
		PortName:              port,
		BaudRate:              baudrate,
		DataBits:              8,
		StopBits:              1,
		ParityMode:            serial.PARITY_NONE,
		MinimumReadSize:       0,
		InterCharacterTimeout: uint(readTimeout / time.Millisecond),
	}

	handle, err := serial.Open(options)
	if err != nil {
		return nil, fmt.Errorf("could not open port %s: %w", port, err)
	}
	return handle, nil
}
