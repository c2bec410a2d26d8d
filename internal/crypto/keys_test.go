package crypto

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateKey_LengthAndRandomness(t *testing.T) {
	k1, err := GenerateKey()
	require.NoError(t, err)
	k2, err := GenerateKey()
	require.NoError(t, err)

	assert.Len(t, k1, KeySize)
	assert.Len(t, k2, KeySize)
	assert.False(t, bytes.Equal(k1, k2))
}

func TestGenerateKey_RandomFailure(t *testing.T) {
	_, err := generateKey(failingReader{})
	assert.ErrorIs(t, err, ErrRandomSource)
}

func TestParseKey(t *testing.T) {
	valid := bytes.Repeat([]byte{0x42}, KeySize)

	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{name: "valid", input: base64.StdEncoding.EncodeToString(valid)},
		{name: "valid with whitespace", input: " " + base64.StdEncoding.EncodeToString(valid) + "\n"},
		{name: "not base64", input: "%%%", wantErr: ErrInvalidKeyEncoding},
		{name: "16 bytes", input: base64.StdEncoding.EncodeToString(valid[:16]), wantErr: ErrInvalidKeyLength},
		{name: "empty", input: "", wantErr: ErrInvalidKeyLength},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := ParseKey(tt.input)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, valid, []byte(key))
			assert.Equal(t, base64.StdEncoding.EncodeToString(valid), EncodeKey(key))
		})
	}
}

func TestDeriveKey(t *testing.T) {
	salt := bytes.Repeat([]byte{0xAB}, 16)

	k1 := DeriveKey("correct horse battery staple", salt)
	k2 := DeriveKey("correct horse battery staple", salt)
	k3 := DeriveKey("correct horse battery staple", bytes.Repeat([]byte{0x01}, 16))

	assert.Len(t, k1, KeySize)
	assert.Equal(t, k1, k2)
	assert.NotEqual(t, k1, k3)
	assert.NoError(t, ValidateKey(k1))
}

func TestKeyMaterial_Redacted(t *testing.T) {
	key := bytes.Repeat([]byte{0x61}, KeySize)
	km, err := ParseKey(base64.StdEncoding.EncodeToString(key))
	require.NoError(t, err)

	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%s", km))
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%v", km))
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%#v", km))
	assert.NotContains(t, fmt.Sprint(km), "aaaa")
}
