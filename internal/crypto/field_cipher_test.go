package crypto

import (
	"bytes"
	"errors"
	"testing"

	"github.com/MKhiriev/phi-guard/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustKey(t *testing.T) models.KeyMaterial {
	t.Helper()
	key, err := GenerateKey()
	require.NoError(t, err)
	return key
}

func TestFieldCipher_RoundTrip(t *testing.T) {
	c := NewFieldCipher()
	key := mustKey(t)

	tests := []struct {
		name      string
		plaintext []byte
	}{
		{name: "short", plaintext: []byte("a")},
		{name: "text", plaintext: []byte("Patient reports headaches since March.")},
		{name: "binary", plaintext: []byte{0x00, 0xFF, 0x10, 0x00}},
		{name: "large", plaintext: bytes.Repeat([]byte("x"), 64*1024)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			field, err := c.Encrypt(tt.plaintext, key)
			require.NoError(t, err)
			assert.Len(t, field, models.HeaderSize+len(tt.plaintext))

			got, err := c.Decrypt(field, key)
			require.NoError(t, err)
			assert.Equal(t, tt.plaintext, got)
		})
	}
}

func TestFieldCipher_EmptyPlaintext(t *testing.T) {
	c := NewFieldCipher()
	key := mustKey(t)

	field, err := c.Encrypt(nil, key)
	require.NoError(t, err)
	assert.Len(t, field, models.HeaderSize)
	assert.Empty(t, field.Ciphertext())

	got, err := c.Decrypt(field, key)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestFieldCipher_NonDeterministic(t *testing.T) {
	c := NewFieldCipher()
	key := mustKey(t)
	p := []byte("same input")

	a, err := c.Encrypt(p, key)
	require.NoError(t, err)
	b, err := c.Encrypt(p, key)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a.Nonce(), b.Nonce())

	pa, err := c.Decrypt(a, key)
	require.NoError(t, err)
	pb, err := c.Decrypt(b, key)
	require.NoError(t, err)
	assert.Equal(t, p, pa)
	assert.Equal(t, p, pb)
}

func TestFieldCipher_EveryBitFlipFails(t *testing.T) {
	c := NewFieldCipher()
	key := mustKey(t)

	field, err := c.Encrypt([]byte("AHV 756.1234.5678.97"), key)
	require.NoError(t, err)

	for i := 0; i < len(field)*8; i++ {
		tampered := bytes.Clone(field)
		tampered[i/8] ^= 1 << (i % 8)

		_, err := c.Decrypt(tampered, key)
		require.ErrorIs(t, err, ErrAuthenticationFailed, "bit %d (byte %d) flip was not detected", i, i/8)
	}
}

func TestFieldCipher_WrongKeyFails(t *testing.T) {
	c := NewFieldCipher()

	field, err := c.Encrypt([]byte("secret"), mustKey(t))
	require.NoError(t, err)

	_, err = c.Decrypt(field, mustKey(t))
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
}

func TestFieldCipher_TruncatedPayload(t *testing.T) {
	c := NewFieldCipher()
	key := mustKey(t)

	for _, n := range []int{0, 1, 12, 27} {
		_, err := c.Decrypt(make([]byte, n), key)
		assert.ErrorIs(t, err, ErrAuthenticationFailed, "len %d", n)
	}
}

func TestFieldCipher_KeyLength(t *testing.T) {
	c := NewFieldCipher()

	for _, n := range []int{0, 16, 24, 31, 33, 64} {
		key := make(models.KeyMaterial, n)

		_, err := c.Encrypt([]byte("x"), key)
		assert.ErrorIs(t, err, ErrInvalidKeyLength, "encrypt with %d-byte key", n)

		_, err = c.Decrypt(make([]byte, models.HeaderSize+1), key)
		assert.ErrorIs(t, err, ErrInvalidKeyLength, "decrypt with %d-byte key", n)
	}

	_, err := c.Encrypt([]byte("x"), make(models.KeyMaterial, KeySize))
	assert.NoError(t, err)
}

func TestFieldCipher_NonceUniqueness(t *testing.T) {
	c := NewFieldCipher()
	key := mustKey(t)

	const n = 10_000
	seen := make(map[string]struct{}, n)
	for i := 0; i < n; i++ {
		field, err := c.Encrypt([]byte("x"), key)
		require.NoError(t, err)

		nonce := string(field.Nonce())
		_, dup := seen[nonce]
		require.False(t, dup, "nonce collision after %d encryptions", i)
		seen[nonce] = struct{}{}
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy pool empty") }

func TestFieldCipher_RandomSourceFailure(t *testing.T) {
	c := &fieldCipher{random: failingReader{}}

	_, err := c.Encrypt([]byte("x"), make(models.KeyMaterial, KeySize))
	assert.ErrorIs(t, err, ErrRandomSource)
}

func TestFieldCipher_LayoutMatchesGCM(t *testing.T) {
	// A fixed nonce makes the output reproducible against crypto/cipher.
	nonce := bytes.Repeat([]byte{0x07}, models.NonceSize)
	c := &fieldCipher{random: bytes.NewReader(nonce)}
	key := make(models.KeyMaterial, KeySize)

	field, err := c.Encrypt([]byte("layout"), key)
	require.NoError(t, err)

	gcm, err := newGCM(key)
	require.NoError(t, err)
	sealed := gcm.Seal(nil, nonce, []byte("layout"), nil)

	assert.Equal(t, nonce, field.Nonce())
	assert.Equal(t, sealed[len(sealed)-models.TagSize:], field.Tag())
	assert.Equal(t, sealed[:len(sealed)-models.TagSize], field.Ciphertext())
}
