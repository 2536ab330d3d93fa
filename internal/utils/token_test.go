package utils

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewResetToken(t *testing.T) {
	raw, err := NewResetToken()
	require.NoError(t, err)
	require.Len(t, raw, 64) // 32 bytes hex-encoded

	_, err = hex.DecodeString(raw)
	require.NoError(t, err)

	other, err := NewResetToken()
	require.NoError(t, err)
	require.NotEqual(t, raw, other)
}

func TestNewSessionID(t *testing.T) {
	sid, err := NewSessionID()
	require.NoError(t, err)
	require.Len(t, sid, 64)

	other, err := NewSessionID()
	require.NoError(t, err)
	require.NotEqual(t, sid, other)
}

func TestHashToken(t *testing.T) {
	d1 := HashToken("some-raw-token")
	require.Len(t, d1, 64) // SHA-256 hex digest

	// Deterministic, and never the identity function.
	require.Equal(t, d1, HashToken("some-raw-token"))
	require.NotEqual(t, "some-raw-token", d1)
	require.NotEqual(t, d1, HashToken("some-raw-token2"))
}
