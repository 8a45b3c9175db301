package qrtoken

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueVerifyRoundTrip(t *testing.T) {
	issuer := NewIssuer("test-key", "pickup-test")
	expires := time.Now().Add(time.Hour)

	token, err := issuer.Issue("req-123", expires)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	payload, err := issuer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "req-123", payload.RequestID)
	assert.WithinDuration(t, expires, payload.ExpiresAt, time.Second)
}

func TestVerifyExpired(t *testing.T) {
	issuer := NewIssuer("test-key", "pickup-test")

	token, err := issuer.Issue("req-123", time.Now().Add(-time.Minute))
	require.NoError(t, err)

	payload, err := issuer.Verify(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
	// Claims stay recoverable so the caller can tell which request the
	// stale token belonged to.
	assert.Equal(t, "req-123", payload.RequestID)
}

func TestVerifyMalformed(t *testing.T) {
	issuer := NewIssuer("test-key", "pickup-test")

	t.Run("garbage", func(t *testing.T) {
		_, err := issuer.Verify("not-a-token")
		assert.ErrorIs(t, err, ErrMalformedToken)
	})

	t.Run("wrong key", func(t *testing.T) {
		other := NewIssuer("other-key", "pickup-test")
		token, err := other.Issue("req-123", time.Now().Add(time.Hour))
		require.NoError(t, err)
		_, err = issuer.Verify(token)
		assert.ErrorIs(t, err, ErrMalformedToken)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		other := NewIssuer("test-key", "someone-else")
		token, err := other.Issue("req-123", time.Now().Add(time.Hour))
		require.NoError(t, err)
		_, err = issuer.Verify(token)
		assert.ErrorIs(t, err, ErrMalformedToken)
	})
}

func TestRenderPNG(t *testing.T) {
	png, err := RenderPNG("some-token-content", 128)
	require.NoError(t, err)
	assert.NotEmpty(t, png)
	// PNG magic bytes.
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, png[:4])
}
