package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id, err := GenerateID()
		require.NoError(t, err)
		require.Len(t, id, IDLength)
		for _, r := range id {
			assert.Contains(t, idAlphabet, string(r))
		}
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestHaversineDistance(t *testing.T) {
	// Berlin Alexanderplatz to Brandenburger Tor, roughly 2.5km.
	d := HaversineDistance(52.5219, 13.4132, 52.5163, 13.3777)
	assert.InDelta(t, 2480, d, 150)
	assert.Zero(t, HaversineDistance(1, 1, 1, 1))
}

func TestDistanceBetween(t *testing.T) {
	lat, lng := 52.5, 13.4
	assert.Nil(t, DistanceBetween(&lat, nil, &lat, &lng))

	d := DistanceBetween(&lat, &lng, &lat, &lng)
	require.NotNil(t, d)
	assert.Equal(t, 0.0, *d)
}

func TestTokenRoundTrip(t *testing.T) {
	token, err := GenerateToken("secret", "user-1", time.Hour)
	require.NoError(t, err)

	claims, err := VerifyToken("secret", token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)

	_, err = VerifyToken("other", token)
	assert.Error(t, err)

	expired, err := GenerateToken("secret", "user-1", -time.Minute)
	require.NoError(t, err)
	_, err = VerifyToken("secret", expired)
	assert.Error(t, err)
}
