package payload

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPingEncodeDecode(t *testing.T) {
	p := &Ping{Nonce: 7}
	got, err := DecodePing(p.Encode())
	require.NoError(t, err)
	require.Equal(t, p, got)
}

func TestDecodePingWrongSize(t *testing.T) {
	_, err := DecodePing([]byte{1, 2, 3})
	require.Error(t, err)
}

func TestVerackMustBeEmpty(t *testing.T) {
	_, err := DecodeVerack([]byte{1})
	require.Error(t, err)

	v, err := DecodeVerack(nil)
	require.NoError(t, err)
	require.NotNil(t, v)
}
