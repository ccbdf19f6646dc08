package link

import (
	"time"
)

// Port is the serial peripheral the link talks over.
// Received bytes are not read from the Port, they are pushed with Link.Receive.
type Port interface {
	Write(p []byte) (int, error)
	SetBaudRate(baud int) error
	SetEnabled(enabled bool) error
	// Flush discards pending received bytes.
	Flush() error
	SetBufferSize(rx, tx int) error
}

// Pull is the pull resistor mode of an input pin.
type Pull int

// Pull modes.
const (
	PullNone Pull = iota
	PullUp
	PullDown
)

// Pin is a GPIO line sharing the serial rx or tx pad.
type Pin interface {
	Get() bool
	Set(high bool)
	SetPull(Pull)
}

type nopPin struct{}

func (nopPin) Get() bool    { return true }
func (nopPin) Set(bool)     {}
func (nopPin) SetPull(Pull) {}

// NopPin always reads high and ignores writes. Used when the line reset
// sequence has no GPIO to drive.
var NopPin Pin = nopPin{}

// Clock is the time source of the link.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time                         { return time.Now() }
func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// SystemClock is the Clock based on package time.
var SystemClock Clock = systemClock{}

// Timing defines the intervals of the protocol.
type Timing struct {
	// Interval separates handshake messages and data frames.
	Interval time.Duration
	// AckTimeout is how long to wait for the hub to ACK the advertisement.
	AckTimeout time.Duration
	// RetryDelay separates handshake attempts.
	RetryDelay time.Duration
	// NackTimeout is the longest silence tolerated between NACKs while streaming.
	NackTimeout time.Duration
	// ExtModeWindow is how long an EXT_MODE applies to the next message.
	ExtModeWindow time.Duration
	// ResetPulse is how long tx is held low in Idle.
	ResetPulse time.Duration
	// Poll is the step of busy waits on hardware lines.
	Poll time.Duration
}

// DefaultTiming is the timing expected by hubs.
var DefaultTiming = Timing{
	Interval:      10 * time.Millisecond,
	AckTimeout:    200 * time.Millisecond,
	RetryDelay:    500 * time.Millisecond,
	NackTimeout:   200 * time.Millisecond,
	ExtModeWindow: 200 * time.Millisecond,
	ResetPulse:    200 * time.Millisecond,
	Poll:          time.Millisecond,
}

const (
	// HandshakeBaud is the line speed during handshake.
	HandshakeBaud = 2400
	// MaxBaud is the speed advertised and the upper bound of negotiation.
	MaxBaud = 115200
	// BufferSize is the serial rx and tx buffer size.
	BufferSize = 132
	// SeqMax is the largest inbound sequence number before wrapping to 0.
	SeqMax = 99999

	rxQueueSize = 64
)

// State is the connection state.
type State int32

// Connection states.
const (
	StateIdle State = iota
	StateHandshake
	StateStreaming
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateHandshake:
		return "handshake"
	case StateStreaming:
		return "streaming"
	}
	return "unknown"
}
