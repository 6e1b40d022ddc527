package secrets

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantive/binance-mcp/pkg/schema"
)

func testCipher(t *testing.T) *AESCipher {
	t.Helper()
	key := make([]byte, KeySize)
	for i := range key {
		key[i] = byte(i)
	}
	c, err := NewAESCipher(key)
	require.NoError(t, err)
	return c
}

func TestAESCipher_RoundTrip(t *testing.T) {
	c := testCipher(t)

	for _, secret := range []string{"sk-secret-123", "", "binance-api-key-with-长度"} {
		ct, err := c.Encrypt([]byte(secret))
		require.NoError(t, err)

		pt, err := c.Decrypt(ct)
		require.NoError(t, err)
		assert.Equal(t, []byte(secret), pt)
	}
}

func TestAESCipher_CiphertextIsNotPlaintext(t *testing.T) {
	c := testCipher(t)

	ct, err := c.Encrypt([]byte("plaintext-value"))
	require.NoError(t, err)
	assert.NotContains(t, string(ct), "plaintext-value")
	assert.Greater(t, len(ct), len("plaintext-value"))
}

func TestAESCipher_UniqueNonces(t *testing.T) {
	c := testCipher(t)

	ct1, err := c.Encrypt([]byte("same-value"))
	require.NoError(t, err)
	ct2, err := c.Encrypt([]byte("same-value"))
	require.NoError(t, err)

	// Same plaintext must produce different ciphertext (random nonce).
	assert.False(t, bytes.Equal(ct1, ct2))
}

func TestAESCipher_TamperDetection(t *testing.T) {
	c := testCipher(t)

	ct, err := c.Encrypt([]byte("hidden"))
	require.NoError(t, err)

	// Flipping any single byte must fail decryption, never return garbage.
	for i := range ct {
		tampered := make([]byte, len(ct))
		copy(tampered, ct)
		tampered[i] ^= 0x01

		_, err := c.Decrypt(tampered)
		require.Error(t, err, "byte %d", i)
		var ve *schema.VaultError
		require.True(t, errors.As(err, &ve))
		assert.Equal(t, schema.ErrCodeDecryption, ve.Code)
	}
}

func TestAESCipher_WrongKeyCannotDecrypt(t *testing.T) {
	key1 := make([]byte, KeySize)
	key2 := make([]byte, KeySize)
	key2[0] = 0xFF

	c1, err := NewAESCipher(key1)
	require.NoError(t, err)
	c2, err := NewAESCipher(key2)
	require.NoError(t, err)

	ct, err := c1.Encrypt([]byte("hidden"))
	require.NoError(t, err)

	_, err = c2.Decrypt(ct)
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeDecryption, schema.CodeOf(err))
}

func TestAESCipher_TruncatedCiphertext(t *testing.T) {
	c := testCipher(t)

	_, err := c.Decrypt([]byte("short"))
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeDecryption, schema.CodeOf(err))
}

func TestNewAESCipher_InvalidKeyLength(t *testing.T) {
	_, err := NewAESCipher([]byte("too-short"))
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeKeyMissing, schema.CodeOf(err))
}
