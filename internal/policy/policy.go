// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package policy holds the compliance controls that are fixed at compile
// time. None of them is read from configuration or the environment.
package policy

const (
	// AnonymizationEnabled is always true. Free text is never persisted
	// without an anonymized variant.
	AnonymizationEnabled = true

	// AuditEnabled is always true. Every committed mutation has exactly one
	// audit record.
	AuditEnabled = true

	// ReviewThreshold is the confidence below which an anonymization result
	// is routed to human review.
	ReviewThreshold = 0.8
)

// Entity names handled specially by the audit recorder.
const (
	EntityPatient              = "Patient"
	EntitySession              = "Session"
	EntityTranscript           = "Transcript"
	EntityAudioRecord          = "AudioRecord"
	EntityReviewItem           = "AnonymizationReviewItem"
	EntityEncryptionKeyVersion = "EncryptionKeyVersion"
)

var sensitiveEntities = map[string]struct{}{
	EntityPatient:     {},
	EntitySession:     {},
	EntityTranscript:  {},
	EntityAudioRecord: {},
	EntityReviewItem:  {},
}

// IsSensitiveEntity reports whether every audit record of the entity type is
// flagged as containing sensitive data, whichever fields changed.
func IsSensitiveEntity(entityName string) bool {
	_, ok := sensitiveEntities[entityName]
	return ok
}

// RequiresReview reports whether an anonymization confidence has to go to
// the review queue.
func RequiresReview(confidence float64) bool {
	return confidence < ReviewThreshold
}
