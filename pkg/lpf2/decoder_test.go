package lpf2

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func testStream() [][]byte {
	name := NewInfo(InfoName, 10, 5)
	name.PutString(0, "LIGHT")
	speed := NewCmd(CmdSpeed, 4)
	speed.PutUint32(0, 115200)
	data := NewData(2, 6)
	data.PutValues(0, Int16, 1, -2, 3)
	return [][]byte{
		NewSys(SysNack).Bytes(),
		name.Seal().Bytes(),
		speed.Seal().Bytes(),
		NewSys(SysAck).Bytes(),
		data.Seal().Bytes(),
	}
}

func decodeAll(t *testing.T, d *Decoder, chunks ...[]byte) (msgs [][]byte) {
	for _, chunk := range chunks {
		d.Feed(chunk)
		for {
			res := d.Decode()
			if res == NeedData {
				break
			}
			require.Equal(t, Decoded, res)
			msgs = append(msgs, d.Message().Bytes())
		}
	}
	return
}

func TestDecoderChunking(t *testing.T) {
	expected := testStream()
	var stream []byte
	for _, b := range expected {
		stream = append(stream, b...)
	}

	testCases := []struct {
		name  string
		split func([]byte) [][]byte
	}{
		{
			name:  "whole",
			split: func(b []byte) [][]byte { return [][]byte{b} },
		},
		{
			name: "byte by byte",
			split: func(b []byte) [][]byte {
				chunks := make([][]byte, len(b))
				for n := range b {
					chunks[n] = b[n : n+1]
				}
				return chunks
			},
		},
		{
			name: "uneven",
			split: func(b []byte) (chunks [][]byte) {
				for n, size := 0, 1; n < len(b); size = size%5 + 1 {
					end := n + size
					if end > len(b) {
						end = len(b)
					}
					chunks = append(chunks, b[n:end])
					n = end
				}
				return
			},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, expected, decodeAll(t, NewDecoder(), tc.split(stream)...))
		})
	}

	for at := 1; at < len(stream); at++ {
		require.Equal(t, expected, decodeAll(t, NewDecoder(), stream[:at], stream[at:]), "split at %d", at)
	}
}

func TestDecoderChecksumError(t *testing.T) {
	msg := NewInfo(InfoUnit, 4, 3)
	msg.PutString(0, "CM")
	encoded := msg.Seal().Bytes()
	// the second INFO header byte, payload and checksum keep the frame intact.
	for n := 1; n < len(encoded); n++ {
		for bit := uint(0); bit < 8; bit++ {
			corrupted := append([]byte(nil), encoded...)
			corrupted[n] ^= 1 << bit
			d := NewDecoder()
			d.Feed(corrupted)
			require.Equal(t, DecodeError, d.Decode(), "byte %d bit %d", n, bit)
		}
	}
	for bit := uint(0); bit < 3; bit++ {
		corrupted := append([]byte(nil), encoded...)
		corrupted[0] ^= 1 << bit
		d := NewDecoder()
		d.Feed(corrupted)
		require.Equal(t, DecodeError, d.Decode(), "head bit %d", bit)
	}
}

func TestDecoderRecoversAfterError(t *testing.T) {
	good := NewCmd(CmdSelect, 1)
	good.PutUint8(0, 3)
	good.Seal()
	bad := append([]byte(nil), good.Bytes()...)
	bad[2] ^= 0xff

	d := NewDecoder()
	d.Feed(bad)
	d.Feed(good.Bytes())
	require.Equal(t, DecodeError, d.Decode())
	require.Equal(t, Decoded, d.Decode())
	require.True(t, d.Message().IsCmd(CmdSelect))
	require.Equal(t, uint8(3), d.Message().Uint8(0))

	d.Feed(good.Bytes()[:2])
	require.Equal(t, NeedData, d.Decode())
	d.Reset()
	require.Equal(t, 0, d.Buffered())
	d.Feed(good.Bytes())
	require.Equal(t, Decoded, d.Decode())
}

func TestDecoderBufferSize(t *testing.T) {
	d := NewDecoder()
	require.Equal(t, 32, d.Cap())
	d.Feed(make([]byte, 30))
	require.Equal(t, 32, d.Cap())
	d.Feed([]byte{0, 0, 0})
	require.Equal(t, 36, d.Cap())
	d.Feed(make([]byte, 10))
	require.Equal(t, 43, d.Cap())

	// consumed bytes are compacted before growing.
	d = NewDecoder()
	d.Feed(make([]byte, 32))
	for n := 0; n < 30; n++ {
		require.Equal(t, Decoded, d.Decode())
	}
	d.Feed(make([]byte, 20))
	require.Equal(t, 32, d.Cap())
	require.Equal(t, 22, d.Buffered())
}

func TestDecoderShrink(t *testing.T) {
	var stream []byte
	for n := 0; n < 3; n++ {
		msg := NewData(n, MaxDataLen)
		msg.PutUint8(0, byte(n))
		stream = append(stream, msg.Seal().Bytes()...)
	}
	d := NewDecoder()
	d.Feed(stream)
	require.Equal(t, 390, d.Cap())

	require.Equal(t, Decoded, d.Decode())
	require.Equal(t, 260, d.Cap())
	require.Equal(t, Decoded, d.Decode())
	require.Equal(t, 130, d.Cap())
	require.Equal(t, Decoded, d.Decode())
	require.Equal(t, 130, d.Cap())
	require.Equal(t, 2, d.Message().Mode())
	require.Equal(t, NeedData, d.Decode())
}
