package port_reader

import (
	"errors"
	"fmt"
)

var (
	ErrNoPort     = errors.New("no port specified")
	ErrStopped    = errors.New("connection manager stopped")
	ErrDeviceGone = errors.New("device reported readiness to read but returned no data (device disconnected?)")
)

// ConnectionError is returned by Connect and Disconnect.
// Its message is meant to be shown to the user as is.
type ConnectionError struct {
	Op   string
	Port string
	Err  error
}

func (e *ConnectionError) Error() string {
	if e.Port == "" {
		return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s failed: %v", e.Op, e.Port, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}
