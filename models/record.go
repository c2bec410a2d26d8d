// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package models

import "time"

// FieldInput is one field of an inbound mutation, tagged by the caller.
//
// FreeText fields must carry an anonymized variant and a confidence score
// supplied by the external PII detector. FreeText implies Sensitive.
//
// InsuranceNumber marks a Swiss insurance number (AHV). The number is stored
// encrypted and the write path adds a plaintext lookup field holding its hash,
// named by LookupHashFieldName.
type FieldInput struct {
	Name            string   `json:"name"`
	Value           *string  `json:"value"`
	Sensitive       bool     `json:"sensitive"`
	FreeText        bool     `json:"free_text,omitempty"`
	InsuranceNumber bool     `json:"insurance_number,omitempty"`
	AnonymizedText  *string  `json:"anonymized_text,omitempty"`
	Confidence      *float64 `json:"confidence,omitempty"`
	DetectedSpans   []string `json:"detected_spans,omitempty"`
}

// LookupHashFieldName is the name of the lookup field derived from an
// insurance number field.
func LookupHashFieldName(name string) string {
	return name + "_hash"
}

// IsSensitive reports whether the value has to be encrypted at rest.
func (f FieldInput) IsSensitive() bool {
	return f.Sensitive || f.FreeText
}

// MutationRequest is a domain mutation submitted to the write path.
//
// DisableAnonymization exists only so that a caller asking for it can be
// recorded as a security violation. It never changes behaviour.
type MutationRequest struct {
	EntityName           string       `json:"entity_name"`
	EntityID             string       `json:"entity_id"`
	Action               AuditAction  `json:"action"`
	Actor                string       `json:"-"`
	Fields               []FieldInput `json:"fields"`
	DisableAnonymization bool         `json:"disable_anonymization,omitempty"`
}

// StoredField is the at-rest form of a field. Value holds plaintext for
// non-sensitive fields and an EncryptedField for sensitive ones.
type StoredField struct {
	Name       string         `json:"name"`
	Sensitive  bool           `json:"sensitive"`
	FreeText   bool           `json:"free_text,omitempty"`
	Null       bool           `json:"null,omitempty"`
	Value      []byte         `json:"value,omitempty"`
	Anonymized EncryptedField `json:"anonymized,omitempty"`
}

// ProtectedRecord is a persisted entity with its fields encrypted.
//
// KeyVersion is the id of the key every encrypted field was sealed with,
// empty when the record holds no encrypted field.
type ProtectedRecord struct {
	EntityName string        `json:"entity_name"`
	EntityID   string        `json:"entity_id"`
	KeyVersion string        `json:"key_version"`
	Version    int64         `json:"version"`
	Fields     []StoredField `json:"fields"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

// Field returns the stored field called name.
func (r *ProtectedRecord) Field(name string) (StoredField, bool) {
	for _, f := range r.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return StoredField{}, false
}

// HasEncryptedFields reports whether any field or anonymized variant is sealed.
func (r *ProtectedRecord) HasEncryptedFields() bool {
	for _, f := range r.Fields {
		if (f.Sensitive && !f.Null) || len(f.Anonymized) > 0 {
			return true
		}
	}
	return false
}

// SourceID is the reference used by review items pointing at this record.
func (r *ProtectedRecord) SourceID() string {
	return SourceRecordID(r.EntityName, r.EntityID)
}

// SourceRecordID builds the "entity/id" reference of a record.
func SourceRecordID(entityName, entityID string) string {
	return entityName + "/" + entityID
}

// RecordRef is a cursor position over protected records.
type RecordRef struct {
	EntityName string
	EntityID   string
}

// PlainField is a decrypted field.
type PlainField struct {
	Name           string  `json:"name"`
	Value          *string `json:"value"`
	Sensitive      bool    `json:"sensitive"`
	FreeText       bool    `json:"free_text,omitempty"`
	AnonymizedText *string `json:"anonymized_text,omitempty"`
}

// PlainRecord is a decrypted view of a ProtectedRecord. It must never be
// logged or persisted.
type PlainRecord struct {
	EntityName string       `json:"entity_name"`
	EntityID   string       `json:"entity_id"`
	Version    int64        `json:"version"`
	KeyVersion string       `json:"key_version"`
	Fields     []PlainField `json:"fields"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

// MutationResult is returned from a committed mutation. Audit is nil when
// the mutation was a no-op update.
type MutationResult struct {
	Record      *ProtectedRecord `json:"record,omitempty"`
	Audit       *AuditRecord     `json:"audit,omitempty"`
	ReviewItems []ReviewItem     `json:"review_items,omitempty"`
}
