package network

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const testMagic = uint32(0xD9B4BEF9)

func TestRoundTrip(t *testing.T) {
	msg := NewMessage(testMagic, "ping", []byte{7, 0, 0, 0, 0, 0, 0, 0})

	buf := NewFrameBuffer()
	require.NoError(t, EncodeMessage(buf, msg))
	_, _ = buf.Write([]byte("REMAINDER"))

	got, err := DecodeMessage(buf, testMagic)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, msg.Command, got.Command)
	require.Equal(t, msg.Payload, got.Payload)

	rest := buf.DrainToSlice()
	require.Equal(t, "REMAINDER", string(rest))
}

func TestPartialInputAcrossTwoWrites(t *testing.T) {
	msg := NewMessage(testMagic, "version", []byte("hello world"))
	buf := NewFrameBuffer()
	enc := NewFrameBuffer()
	require.NoError(t, EncodeMessage(enc, msg))
	full := enc.DrainToSlice()

	for split := 1; split < len(full); split++ {
		b := NewFrameBuffer()
		_, _ = b.Write(full[:split])

		got, err := DecodeMessage(b, testMagic)
		require.NoError(t, err)
		require.Nil(t, got, "split at %d should be incomplete", split)

		_, _ = b.Write(full[split:])
		got, err = DecodeMessage(b, testMagic)
		require.NoError(t, err)
		require.NotNil(t, got, "split at %d should complete", split)
		require.Equal(t, msg.Payload, got.Payload)
		require.Equal(t, 0, b.Len())
	}
}

func TestFragmentedFramingInThreeChunks(t *testing.T) {
	msg := NewMessage(testMagic, "ping", []byte{7, 0, 0, 0, 0, 0, 0, 0})
	enc := NewFrameBuffer()
	require.NoError(t, EncodeMessage(enc, msg))
	full := enc.DrainToSlice()

	chunks := [][]byte{full[:1], full[1:4], full[4:]}
	buf := NewFrameBuffer()
	var decoded []*Message
	for _, c := range chunks {
		_, _ = buf.Write(c)
		for {
			m, err := DecodeMessage(buf, testMagic)
			require.NoError(t, err)
			if m == nil {
				break
			}
			decoded = append(decoded, m)
		}
	}
	require.Len(t, decoded, 1)
	require.Equal(t, msg.Payload, decoded[0].Payload)
	require.Equal(t, 0, buf.Len())
}

func TestBadMagicIsFatal(t *testing.T) {
	msg := NewMessage(testMagic, "ping", nil)
	enc := NewFrameBuffer()
	require.NoError(t, EncodeMessage(enc, msg))
	full := enc.DrainToSlice()

	buf := NewFrameBuffer()
	_, _ = buf.Write(full)
	_, err := DecodeMessage(buf, testMagic+1)
	require.Error(t, err)
	k, ok := KindOf(err)
	require.True(t, ok)
	require.Equal(t, KindMisbehaving, k)
}

func TestChecksumMismatchIsFatal(t *testing.T) {
	msg := NewMessage(testMagic, "ping", []byte{1, 2, 3, 4})
	msg.Checksum = 0xdeadbeef
	enc := NewFrameBuffer()
	require.NoError(t, EncodeMessage(enc, msg))
	full := enc.DrainToSlice()

	buf := NewFrameBuffer()
	_, _ = buf.Write(full)
	_, err := DecodeMessage(buf, testMagic)
	require.Error(t, err)
}

func TestOversizedLengthIsFatal(t *testing.T) {
	buf := NewFrameBuffer()
	var header [headerSize]byte
	header[0], header[1], header[2], header[3] = 0xf9, 0xbe, 0xb4, 0xd9
	copy(header[4:], "ping")
	header[4+commandSize] = 0xff
	header[4+commandSize+1] = 0xff
	header[4+commandSize+2] = 0xff
	header[4+commandSize+3] = 0x7f
	_, _ = buf.Write(header[:])

	_, err := DecodeMessage(buf, testMagic)
	require.Error(t, err)
}
