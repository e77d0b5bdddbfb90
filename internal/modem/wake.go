package modem

// WakeLine drives the module's wake input as a digital output.
type WakeLine interface {
	Set(value int) error
	Close() error
}
