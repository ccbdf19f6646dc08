package lpf2

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
)

// Kind is the message kind in header bits 7..6.
type Kind byte

// Message kinds.
const (
	KindSys  Kind = 0
	KindCmd  Kind = 1
	KindInfo Kind = 2
	KindData Kind = 3
)

// SysType is the type of a SYS message.
type SysType byte

// System message types.
const (
	SysSync SysType = 0
	SysNack SysType = 2
	SysAck  SysType = 4
)

// CmdType is the type of a CMD message.
type CmdType byte

// Command types.
const (
	CmdDeviceType CmdType = 0
	CmdModes      CmdType = 1
	CmdSpeed      CmdType = 2
	CmdSelect     CmdType = 3
	CmdWrite      CmdType = 4
	CmdExtMode    CmdType = 6
	CmdVersion    CmdType = 7
)

// InfoType is the type of an INFO message, stored in the second header byte.
type InfoType byte

// Info types.
const (
	InfoName    InfoType = 0
	InfoRaw     InfoType = 1
	InfoPct     InfoType = 2
	InfoSI      InfoType = 3
	InfoUnit    InfoType = 4
	InfoMapping InfoType = 5
	InfoCombi   InfoType = 6
	InfoFormat  InfoType = 0x80
)

const (
	// ModePlus8 is the flag in INFO header 2 addressing modes 8..15.
	ModePlus8 byte = 0x20
	// MaxDataLen is the largest payload a message carries.
	MaxDataLen = 1 << 7
)

func (k Kind) String() string {
	switch k {
	case KindSys:
		return "SYS"
	case KindCmd:
		return "CMD"
	case KindInfo:
		return "INFO"
	default:
		return "DATA"
	}
}

// Message is an encoded LPF2 message. The payload is always 1<<e bytes.
type Message struct {
	buf     []byte
	headLen int
}

// PayloadSize returns the length exponent and payload capacity for n bytes.
func PayloadSize(n int) (exp byte, size int) {
	for size = 1; size < n && exp < 7; size <<= 1 {
		exp++
	}
	return
}

func newFramed(kind Kind, low byte, head2 []byte, n int) *Message {
	exp, size := PayloadSize(n)
	headLen := 1 + len(head2)
	m := &Message{buf: make([]byte, headLen+size+1), headLen: headLen}
	m.buf[0] = byte(kind)<<6 | exp<<3 | low&7
	copy(m.buf[1:], head2)
	return m
}

// NewSys creates a single byte SYS message.
func NewSys(t SysType) *Message {
	return &Message{buf: []byte{byte(t)}, headLen: 1}
}

// NewCmd creates a CMD message with room for n payload bytes.
func NewCmd(t CmdType, n int) *Message {
	return newFramed(KindCmd, byte(t), nil, n)
}

// NewInfo creates an INFO message for mode 0..15.
func NewInfo(t InfoType, mode, n int) *Message {
	head2 := byte(t)
	if mode >= 8 {
		head2 |= ModePlus8
	}
	return newFramed(KindInfo, byte(mode), []byte{head2}, n)
}

// NewData creates a DATA message, only the low 3 bits of mode are encoded.
func NewData(mode, n int) *Message {
	return newFramed(KindData, byte(mode), nil, n)
}

// Kind returns the message kind.
func (m *Message) Kind() Kind {
	return Kind(m.buf[0] >> 6)
}

// SubType returns the SYS/CMD type or the INFO type, 0 for DATA.
func (m *Message) SubType() byte {
	switch m.Kind() {
	case KindSys, KindCmd:
		return m.buf[0] & 7
	case KindInfo:
		return m.buf[1] &^ ModePlus8
	}
	return 0
}

// Is checks kind and sub type together.
func (m *Message) Is(kind Kind, subType byte) bool {
	return m.Kind() == kind && m.SubType() == subType
}

// IsSys checks for a SYS message of type t.
func (m *Message) IsSys(t SysType) bool {
	return m.Is(KindSys, byte(t))
}

// IsCmd checks for a CMD message of type t.
func (m *Message) IsCmd(t CmdType) bool {
	return m.Is(KindCmd, byte(t))
}

// Mode returns the mode of INFO and DATA messages.
func (m *Message) Mode() int {
	switch m.Kind() {
	case KindInfo:
		mode := int(m.buf[0] & 7)
		if m.buf[1]&ModePlus8 != 0 {
			mode += 8
		}
		return mode
	case KindData:
		return int(m.buf[0] & 7)
	}
	return 0
}

// DataLen returns the payload capacity, 0 for SYS.
func (m *Message) DataLen() int {
	if m.Kind() == KindSys {
		return 0
	}
	return 1 << ((m.buf[0] >> 3) & 7)
}

// Payload returns the payload bytes, nil for SYS.
func (m *Message) Payload() []byte {
	if m.Kind() == KindSys {
		return nil
	}
	return m.buf[m.headLen : len(m.buf)-1]
}

// Bytes returns the encoded message.
func (m *Message) Bytes() []byte {
	return m.buf
}

// Len returns the encoded length.
func (m *Message) Len() int {
	return len(m.buf)
}

// Checksum calculates the checksum over all bytes but the last.
func Checksum(b []byte) byte {
	crc := byte(0xff)
	for _, c := range b {
		crc ^= c
	}
	return crc
}

// Seal stores the checksum. It must be called after the payload is written.
func (m *Message) Seal() *Message {
	if m.Kind() != KindSys {
		last := len(m.buf) - 1
		m.buf[last] = Checksum(m.buf[:last])
	}
	return m
}

// Verify checks the stored checksum.
func (m *Message) Verify() bool {
	if m.Kind() == KindSys {
		return true
	}
	last := len(m.buf) - 1
	return m.buf[last] == Checksum(m.buf[:last])
}

// String implements fmt.Stringer.
func (m *Message) String() string {
	return fmt.Sprintf("%s/%d [% x]", m.Kind(), m.SubType(), m.buf)
}

// Hex returns the encoded message as hex string.
func (m *Message) Hex() string {
	return hex.EncodeToString(m.buf)
}

func (m *Message) slice(off, size int) ([]byte, error) {
	if m.Kind() == KindSys {
		return nil, ErrSysMessage
	}
	p := m.Payload()
	if off < 0 || off+size > len(p) {
		return nil, &OutOfRangeError{Offset: off, Size: size, Len: len(p)}
	}
	return p[off : off+size], nil
}

// Uint8 reads a byte, 0 when not accessible.
func (m *Message) Uint8(off int) uint8 {
	if b, err := m.slice(off, 1); err == nil {
		return b[0]
	}
	return 0
}

// Int8 reads a signed byte.
func (m *Message) Int8(off int) int8 {
	return int8(m.Uint8(off))
}

// Uint16 reads a little endian uint16.
func (m *Message) Uint16(off int) uint16 {
	if b, err := m.slice(off, 2); err == nil {
		return binary.LittleEndian.Uint16(b)
	}
	return 0
}

// Int16 reads a little endian int16.
func (m *Message) Int16(off int) int16 {
	return int16(m.Uint16(off))
}

// Uint32 reads a little endian uint32.
func (m *Message) Uint32(off int) uint32 {
	if b, err := m.slice(off, 4); err == nil {
		return binary.LittleEndian.Uint32(b)
	}
	return 0
}

// Int32 reads a little endian int32.
func (m *Message) Int32(off int) int32 {
	return int32(m.Uint32(off))
}

// Float32 reads a little endian IEEE-754 float.
func (m *Message) Float32(off int) float32 {
	return math.Float32frombits(m.Uint32(off))
}

// PutUint8 writes a byte.
func (m *Message) PutUint8(off int, v uint8) error {
	b, err := m.slice(off, 1)
	if err != nil {
		return err
	}
	b[0] = v
	return nil
}

// PutInt8 writes a signed byte.
func (m *Message) PutInt8(off int, v int8) error {
	return m.PutUint8(off, uint8(v))
}

// PutUint16 writes a little endian uint16.
func (m *Message) PutUint16(off int, v uint16) error {
	b, err := m.slice(off, 2)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(b, v)
	return nil
}

// PutInt16 writes a little endian int16.
func (m *Message) PutInt16(off int, v int16) error {
	return m.PutUint16(off, uint16(v))
}

// PutUint32 writes a little endian uint32.
func (m *Message) PutUint32(off int, v uint32) error {
	b, err := m.slice(off, 4)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(b, v)
	return nil
}

// PutInt32 writes a little endian int32.
func (m *Message) PutInt32(off int, v int32) error {
	return m.PutUint32(off, uint32(v))
}

// PutFloat32 writes a little endian IEEE-754 float.
func (m *Message) PutFloat32(off int, v float32) error {
	return m.PutUint32(off, math.Float32bits(v))
}

// PutUint8s writes consecutive bytes.
func (m *Message) PutUint8s(off int, vals ...uint8) error {
	b, err := m.slice(off, len(vals))
	if err != nil {
		return err
	}
	copy(b, vals)
	return nil
}

// PutUint32s writes consecutive little endian uint32 values.
func (m *Message) PutUint32s(off int, vals ...uint32) error {
	for n, v := range vals {
		if err := m.PutUint32(off+n*4, v); err != nil {
			return err
		}
	}
	return nil
}

// PutFloat32s writes consecutive floats.
func (m *Message) PutFloat32s(off int, vals ...float32) error {
	for n, v := range vals {
		if err := m.PutFloat32(off+n*4, v); err != nil {
			return err
		}
	}
	return nil
}

// PutString writes s truncated to the payload, zero terminated when room is left.
func (m *Message) PutString(off int, s string) error {
	if m.Kind() == KindSys {
		return ErrSysMessage
	}
	p := m.Payload()
	if off < 0 || off > len(p) {
		return &OutOfRangeError{Offset: off, Size: len(s), Len: len(p)}
	}
	n := copy(p[off:], s)
	if off+n < len(p) {
		p[off+n] = 0
	}
	return nil
}

// StringAt reads a zero terminated string from off.
func (m *Message) StringAt(off int) string {
	p := m.Payload()
	if off < 0 || off >= len(p) {
		return ""
	}
	p = p[off:]
	for n, c := range p {
		if c == 0 {
			return string(p[:n])
		}
	}
	return string(p)
}
