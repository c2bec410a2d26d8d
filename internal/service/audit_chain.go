// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package service

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"slices"
	"strings"

	"github.com/MKhiriev/phi-guard/internal/policy"
	"github.com/MKhiriev/phi-guard/models"
)

// GenesisHash is the previous hash of the first record of the chain.
var GenesisHash = strings.Repeat("0", sha256.Size*2)

// canonicalRecord fixes field order and encoding of the hashed content.
// The timestamp is the stored, monotonic one in Unix microseconds.
type canonicalRecord struct {
	ID                    string   `json:"id"`
	Seq                   int64    `json:"seq"`
	EntityName            string   `json:"entity_name"`
	EntityID              string   `json:"entity_id"`
	Action                string   `json:"action"`
	ChangedFieldNames     []string `json:"changed_field_names"`
	ContainsSensitiveData bool     `json:"contains_sensitive_data"`
	Actor                 string   `json:"actor"`
	TimestampMicros       int64    `json:"timestamp_us"`
	PreviousHash          string   `json:"previous_hash"`
}

// ComputeRecordHash returns hex(SHA-256) of the canonical JSON of rec
// without its SelfHash.
func ComputeRecordHash(rec models.AuditRecord) string {
	names := rec.ChangedFieldNames
	if names == nil {
		names = []string{}
	}

	// marshalling strings, ints and bools cannot fail
	b, _ := json.Marshal(canonicalRecord{
		ID:                    rec.ID,
		Seq:                   rec.Seq,
		EntityName:            rec.EntityName,
		EntityID:              rec.EntityID,
		Action:                string(rec.Action),
		ChangedFieldNames:     names,
		ContainsSensitiveData: rec.ContainsSensitiveData,
		Actor:                 rec.Actor,
		TimestampMicros:       rec.Timestamp.UnixMicro(),
		PreviousHash:          rec.PreviousHash,
	})

	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Diff turns before and after snapshots into explicit change events.
//
// Create reports every non-null field, Delete reports none and
// SecurityViolation reports every field named in After. For Update a field
// missing on one side counts as null there, and a field present on both
// sides changes when its value or one of its tags differs.
func Diff(m models.AuditMutation) []models.FieldChange {
	switch m.Action {
	case models.ActionDelete:
		return []models.FieldChange{}
	case models.ActionCreate, models.ActionSecurityViolation:
		changes := make([]models.FieldChange, 0, len(m.After))
		for _, f := range m.After {
			if f.Value == nil && m.Action == models.ActionCreate {
				continue
			}
			changes = append(changes, models.FieldChange{Name: f.Name, New: f.Value, Sensitive: f.Sensitive})
		}
		return changes
	}

	before := make(map[string]models.FieldSnapshot, len(m.Before))
	for _, f := range m.Before {
		before[f.Name] = f
	}

	changes := make([]models.FieldChange, 0)
	seen := make(map[string]struct{}, len(m.After))
	for _, a := range m.After {
		seen[a.Name] = struct{}{}
		b, existed := before[a.Name]
		if equalValue(b.Value, a.Value) && (!existed || sameTags(b, a)) {
			continue
		}
		changes = append(changes, models.FieldChange{
			Name: a.Name, Old: b.Value, New: a.Value, Sensitive: a.Sensitive || b.Sensitive,
		})
	}
	for _, b := range m.Before {
		if _, ok := seen[b.Name]; ok || b.Value == nil {
			continue
		}
		changes = append(changes, models.FieldChange{Name: b.Name, Old: b.Value, Sensitive: b.Sensitive})
	}

	return changes
}

func sameTags(a, b models.FieldSnapshot) bool {
	return a.Sensitive == b.Sensitive && a.FreeText == b.FreeText
}

func equalValue(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// changedFieldNames returns the sorted names of changes.
func changedFieldNames(changes []models.FieldChange) []string {
	names := make([]string, 0, len(changes))
	for _, c := range changes {
		names = append(names, c.Name)
	}
	slices.Sort(names)
	return slices.Compact(names)
}

// containsSensitiveData applies the entity policy and the field tags. A
// delete is sensitive when any deleted field was.
func containsSensitiveData(m models.AuditMutation, changes []models.FieldChange) bool {
	if policy.IsSensitiveEntity(m.EntityName) {
		return true
	}
	for _, c := range changes {
		if c.Sensitive {
			return true
		}
	}
	if m.Action == models.ActionDelete {
		for _, f := range m.Before {
			if f.Sensitive {
				return true
			}
		}
	}
	return false
}

// chainVerifier checks records one by one in chain order.
type chainVerifier struct {
	prevHash string
	prevSeq  int64
	prevTS   int64
	count    int
}

func newChainVerifier() *chainVerifier {
	return &chainVerifier{prevHash: GenesisHash}
}

func (v *chainVerifier) next(rec models.AuditRecord) error {
	switch {
	case rec.Seq != v.prevSeq+1:
		return &ChainError{Seq: rec.Seq, Reason: "sequence gap"}
	case rec.PreviousHash != v.prevHash:
		return &ChainError{Seq: rec.Seq, Reason: "previous hash does not match predecessor"}
	case ComputeRecordHash(rec) != rec.SelfHash:
		return &ChainError{Seq: rec.Seq, Reason: "self hash does not match content"}
	case v.count > 0 && rec.Timestamp.UnixMicro() <= v.prevTS:
		return &ChainError{Seq: rec.Seq, Reason: "timestamp does not increase"}
	}

	v.prevHash = rec.SelfHash
	v.prevSeq = rec.Seq
	v.prevTS = rec.Timestamp.UnixMicro()
	v.count++
	return nil
}

// VerifyChain checks a complete chain starting at genesis.
func VerifyChain(records []models.AuditRecord) error {
	v := newChainVerifier()
	for _, rec := range records {
		if err := v.next(rec); err != nil {
			return err
		}
	}
	return nil
}
