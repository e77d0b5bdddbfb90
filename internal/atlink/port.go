package atlink

import (
	"time"

	"github.com/tarm/serial"
)

// Port is the byte-stream side of the modem link. *serial.Port satisfies it.
type Port interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Flush() error
}

// OpenPort opens the modem serial device. The read timeout paces the
// receive loop; keep it well below the link inactivity window.
func OpenPort(name string, baud int, readTimeout time.Duration) (*serial.Port, error) {
	config := &serial.Config{
		Name:        name,
		Baud:        baud,
		ReadTimeout: readTimeout,
	}
	return serial.OpenPort(config)
}
