package crypto

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"infolio/internal/common/errors"
)

func TestNewEncryptor(t *testing.T) {
	tests := []struct {
		name      string
		key       string
		wantError bool
	}{
		{name: "32 character key", key: "0123456789abcdef0123456789abcdef"},
		{name: "short key", key: "short"},
		{name: "long key", key: strings.Repeat("a", 64)},
		{name: "empty key", key: "", wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc, err := NewEncryptor(tt.key)
			if tt.wantError {
				require.Error(t, err)
				assert.Nil(t, enc)
				assert.True(t, errors.IsType(err, errors.ErrTypeValidation))
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, enc)
		})
	}
}

func TestEncryptor_RoundTrip(t *testing.T) {
	enc, err := NewEncryptor("token-encryption-passphrase")
	require.NoError(t, err)

	for _, plaintext := range []string{"rt-123", "a rotated refresh token with spaces", strings.Repeat("x", 4096)} {
		sealed, err := enc.Encrypt(plaintext)
		require.NoError(t, err)
		assert.NotEqual(t, plaintext, sealed)

		opened, err := enc.Decrypt(sealed)
		require.NoError(t, err)
		assert.Equal(t, plaintext, opened)
	}
}

func TestEncryptor_RandomNonce(t *testing.T) {
	enc, err := NewEncryptor("k")
	require.NoError(t, err)

	a, err := enc.Encrypt("same")
	require.NoError(t, err)
	b, err := enc.Encrypt("same")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestEncryptor_EmptyValues(t *testing.T) {
	enc, err := NewEncryptor("k")
	require.NoError(t, err)

	sealed, err := enc.Encrypt("")
	require.NoError(t, err)
	assert.Empty(t, sealed)

	opened, err := enc.Decrypt("")
	require.NoError(t, err)
	assert.Empty(t, opened)
}

func TestEncryptor_DeterministicKey(t *testing.T) {
	a, err := NewEncryptor("shared-passphrase")
	require.NoError(t, err)
	b, err := NewEncryptor("shared-passphrase")
	require.NoError(t, err)

	sealed, err := a.Encrypt("refresh")
	require.NoError(t, err)

	opened, err := b.Decrypt(sealed)
	require.NoError(t, err)
	assert.Equal(t, "refresh", opened)
}

func TestEncryptor_DecryptFailures(t *testing.T) {
	enc, err := NewEncryptor("right-key")
	require.NoError(t, err)
	other, err := NewEncryptor("wrong-key")
	require.NoError(t, err)

	sealed, err := enc.Encrypt("secret")
	require.NoError(t, err)

	t.Run("wrong key", func(t *testing.T) {
		_, err := other.Decrypt(sealed)
		assert.Error(t, err)
	})

	t.Run("not base64", func(t *testing.T) {
		_, err := enc.Decrypt("%%%")
		assert.Error(t, err)
	})

	t.Run("too short", func(t *testing.T) {
		_, err := enc.Decrypt(base64.StdEncoding.EncodeToString([]byte("abc")))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "too short")
	})

	t.Run("tampered", func(t *testing.T) {
		raw, err := base64.StdEncoding.DecodeString(sealed)
		require.NoError(t, err)
		raw[len(raw)-1] ^= 0xff

		_, err = enc.Decrypt(base64.StdEncoding.EncodeToString(raw))
		assert.Error(t, err)
	})
}
