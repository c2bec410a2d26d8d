package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConstants(t *testing.T) {
	assert.True(t, AnonymizationEnabled)
	assert.True(t, AuditEnabled)
	assert.Equal(t, 0.8, ReviewThreshold)
}

func TestIsSensitiveEntity(t *testing.T) {
	for _, name := range []string{EntityPatient, EntitySession, EntityTranscript, EntityAudioRecord, EntityReviewItem} {
		assert.True(t, IsSensitiveEntity(name), name)
	}
	for _, name := range []string{"", "Invoice", "patient", EntityEncryptionKeyVersion} {
		assert.False(t, IsSensitiveEntity(name), name)
	}
}

func TestRequiresReview(t *testing.T) {
	assert.True(t, RequiresReview(0))
	assert.True(t, RequiresReview(0.5))
	assert.True(t, RequiresReview(0.7999))
	assert.False(t, RequiresReview(0.8))
	assert.False(t, RequiresReview(0.95))
	assert.False(t, RequiresReview(1))
}
