package sip

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransportKindNames(t *testing.T) {
	assert.Equal(t, "TCP", Stream.String())
	assert.Equal(t, "UDP", Datagram.String())
	assert.Equal(t, "tcp", Stream.Network())
	assert.Equal(t, "udp", Datagram.Network())
	assert.Equal(t, "UNKNOWN", TransportKind(7).String())
	assert.False(t, TransportKind(7).Valid())
	assert.Equal(t, []TransportKind{Stream, Datagram}, TransportKinds())
}

func TestParseTransportKind(t *testing.T) {
	k, err := ParseTransportKind("tcp")
	require.NoError(t, err)
	assert.Equal(t, Stream, k)

	k, err = ParseTransportKind(" UDP ")
	require.NoError(t, err)
	assert.Equal(t, Datagram, k)

	_, err = ParseTransportKind("sctp")
	assert.ErrorIs(t, err, ErrTransportNotSupported)
}

func TestWrapStackErrorKeepsSentinel(t *testing.T) {
	err := WrapStackError(ErrObjectInUse, "creating provider")
	assert.ErrorIs(t, err, ErrObjectInUse)
	assert.Contains(t, err.Error(), "creating provider")
}
