package lpf2

// DecodeResult is the outcome of Decoder.Decode.
type DecodeResult int

const (
	// Decoded means a complete, verified message is available from Message.
	Decoded DecodeResult = iota
	// NeedData means all buffered bytes are consumed.
	NeedData
	// DecodeError means a checksum mismatch, the message is dropped.
	DecodeError
)

func (r DecodeResult) String() string {
	switch r {
	case Decoded:
		return "decoded"
	case NeedData:
		return "need-data"
	}
	return "error"
}

type decodeState int

const (
	stateHead1    decodeState = iota // waiting for header byte
	stateHead2                       // waiting for INFO type byte
	statePayload                     // collecting payload
	stateChecksum                    // waiting for checksum
)

const (
	minBufSize    = 32
	shrinkAbove   = 256
	minGrowthStep = 4
)

// Decoder reassembles messages from a byte stream delivered in any chunks.
type Decoder struct {
	state decodeState
	buf   []byte
	off   int
	size  int

	head1    byte
	acquired int
	msg      *Message
}

// NewDecoder creates a Decoder.
func NewDecoder() *Decoder {
	return &Decoder{buf: make([]byte, minBufSize)}
}

// Reset drops the partial message and all buffered bytes.
func (d *Decoder) Reset() {
	d.state = stateHead1
	d.off, d.size = 0, 0
}

// Message returns the last decoded message.
func (d *Decoder) Message() *Message {
	return d.msg
}

// Cap returns the working buffer size.
func (d *Decoder) Cap() int {
	return len(d.buf)
}

// Buffered returns the number of bytes not decoded yet.
func (d *Decoder) Buffered() int {
	return d.size
}

// Feed appends received bytes.
func (d *Decoder) Feed(p []byte) {
	if len(p) == 0 {
		return
	}
	if d.buf == nil {
		d.buf = make([]byte, minBufSize)
	}
	if d.remain() < len(p) && d.off > 0 {
		d.compact()
	}
	if rem := d.remain(); rem < len(p) {
		incr := len(p) - rem
		if incr < minGrowthStep {
			incr = minGrowthStep
		}
		buf := make([]byte, len(d.buf)+incr)
		copy(buf, d.buf[:d.off+d.size])
		d.buf = buf
	}
	copy(d.buf[d.off+d.size:], p)
	d.size += len(p)
}

// Decode consumes buffered bytes until a message completes or bytes run out.
func (d *Decoder) Decode() DecodeResult {
	for d.size > 0 {
		switch d.state {
		case stateHead1:
			if d.decodeHead1() {
				return Decoded
			}
		case stateHead2:
			d.decodeHead2()
		case statePayload:
			d.decodePayload()
		case stateChecksum:
			res := d.decodeChecksum()
			if len(d.buf) > shrinkAbove {
				d.shrink()
			}
			return res
		}
	}
	return NeedData
}

func (d *Decoder) decodeHead1() bool {
	head1 := d.fetch()
	switch kind := Kind(head1 >> 6); kind {
	case KindSys:
		d.msg = NewSys(SysType(head1 & 7))
		return true
	case KindInfo:
		d.head1 = head1
		d.state = stateHead2
	default:
		d.startPayload(head1)
	}
	return false
}

func (d *Decoder) decodeHead2() {
	d.startPayload(d.head1, d.fetch())
}

func (d *Decoder) startPayload(head ...byte) {
	size := 1 << ((head[0] >> 3) & 7)
	d.msg = &Message{buf: make([]byte, len(head)+size+1), headLen: len(head)}
	copy(d.msg.buf, head)
	d.acquired = 0
	d.state = statePayload
}

func (d *Decoder) decodePayload() {
	p := d.msg.Payload()
	n := copy(p[d.acquired:], d.buf[d.off:d.off+d.size])
	d.consume(n)
	d.acquired += n
	if d.acquired == len(p) {
		d.state = stateChecksum
	}
}

func (d *Decoder) decodeChecksum() DecodeResult {
	d.msg.buf[len(d.msg.buf)-1] = d.fetch()
	d.state = stateHead1
	if d.msg.Verify() {
		return Decoded
	}
	return DecodeError
}

func (d *Decoder) fetch() byte {
	b := d.buf[d.off]
	d.consume(1)
	return b
}

func (d *Decoder) consume(n int) {
	d.off += n
	d.size -= n
	if d.size == 0 {
		d.off = 0
	}
}

func (d *Decoder) remain() int {
	return len(d.buf) - d.off - d.size
}

func (d *Decoder) compact() {
	if d.off > 0 {
		copy(d.buf, d.buf[d.off:d.off+d.size])
		d.off = 0
	}
}

func (d *Decoder) shrink() {
	d.compact()
	n := d.size
	if n < minBufSize {
		n = minBufSize
	}
	if n < len(d.buf) {
		buf := make([]byte, n)
		copy(buf, d.buf[:d.size])
		d.buf = buf
	}
}
