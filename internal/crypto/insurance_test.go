package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashInsuranceNumber(t *testing.T) {
	got, err := HashInsuranceNumber("756.1234.5678.97")
	require.NoError(t, err)
	assert.Equal(t, "934b94dc8167cf6aca3fd740aacc59f15bec054f391bc961dd6228fb87f09519", got)

	again, err := HashInsuranceNumber("  756.1234.5678.97 ")
	require.NoError(t, err)
	assert.Equal(t, got, again)
}

func TestHashInsuranceNumber_InvalidFormat(t *testing.T) {
	for _, in := range []string{"", "7561234567897", "756-1234-5678-97", "756.1234.5678.9", "abc.defg.hijk.lm"} {
		_, err := HashInsuranceNumber(in)
		assert.ErrorIs(t, err, ErrInvalidInsuranceNumber, in)
	}
}
