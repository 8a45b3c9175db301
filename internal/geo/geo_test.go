package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistanceMeters(t *testing.T) {
	t.Run("zero at same point", func(t *testing.T) {
		d, err := DistanceMeters(-6.2001, 106.8167, -6.2001, 106.8167)
		require.NoError(t, err)
		assert.Equal(t, 0.0, d)
	})

	t.Run("known distance", func(t *testing.T) {
		// Jakarta Monas to Istiqlal mosque, roughly 700m.
		d, err := DistanceMeters(-6.1754, 106.8272, -6.1702, 106.8311)
		require.NoError(t, err)
		assert.InDelta(t, 720, d, 80)
	})

	t.Run("rejects bad latitude", func(t *testing.T) {
		_, err := DistanceMeters(91, 0, 0, 0)
		assert.ErrorIs(t, err, ErrInvalidCoordinate)
	})

	t.Run("rejects bad longitude", func(t *testing.T) {
		_, err := DistanceMeters(0, 0, 0, -180.5)
		assert.ErrorIs(t, err, ErrInvalidCoordinate)
	})
}

func TestIsWithinRadius(t *testing.T) {
	centerLat, centerLng := -6.2001, 106.8167

	t.Run("center is within any positive radius", func(t *testing.T) {
		check, err := IsWithinRadius(centerLat, centerLng, centerLat, centerLng, 1)
		require.NoError(t, err)
		assert.True(t, check.Within)
		assert.Equal(t, 0.0, check.DistanceMeters)
	})

	t.Run("just outside radius", func(t *testing.T) {
		// ~111m north of center.
		lat := centerLat + 0.001
		check, err := IsWithinRadius(lat, centerLng, centerLat, centerLng, 100)
		require.NoError(t, err)
		assert.False(t, check.Within)
		assert.Greater(t, check.DistanceMeters, 100.0)
	})

	t.Run("inside radius", func(t *testing.T) {
		lat := centerLat + 0.001
		check, err := IsWithinRadius(lat, centerLng, centerLat, centerLng, 150)
		require.NoError(t, err)
		assert.True(t, check.Within)
	})
}
