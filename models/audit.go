// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package models

import "time"

// AuditAction is the kind of change an audit record describes.
type AuditAction string

const (
	ActionCreate            AuditAction = "Create"
	ActionUpdate            AuditAction = "Update"
	ActionDelete            AuditAction = "Delete"
	ActionSecurityViolation AuditAction = "SecurityViolation"
)

// Valid reports whether a is one of the known actions.
func (a AuditAction) Valid() bool {
	switch a {
	case ActionCreate, ActionUpdate, ActionDelete, ActionSecurityViolation:
		return true
	}
	return false
}

// AuditRecord is one link of the append-only, hash-chained audit trail.
//
// SelfHash covers every other field, PreviousHash included. ChangedFieldNames
// holds names only; values never enter the audit trail.
type AuditRecord struct {
	ID                    string      `json:"id"`
	Seq                   int64       `json:"seq"`
	EntityName            string      `json:"entity_name"`
	EntityID              string      `json:"entity_id"`
	Action                AuditAction `json:"action"`
	ChangedFieldNames     []string    `json:"changed_field_names"`
	ContainsSensitiveData bool        `json:"contains_sensitive_data"`
	Actor                 string      `json:"actor"`
	Timestamp             time.Time   `json:"timestamp"`
	PreviousHash          string      `json:"previous_hash"`
	SelfHash              string      `json:"self_hash"`
}

// FieldSnapshot is the state of a single field at one side of a mutation.
// A nil Value is a null field. Sensitive and FreeText are the field's tags;
// retagging a field is a change even when its value stays the same.
type FieldSnapshot struct {
	Name      string
	Value     *string
	Sensitive bool
	FreeText  bool
}

// FieldChange is an explicit change event produced by the write path.
type FieldChange struct {
	Name      string
	Old       *string
	New       *string
	Sensitive bool
}

// AuditMutation is the input of the change audit recorder.
type AuditMutation struct {
	EntityName string
	EntityID   string
	Action     AuditAction
	Actor      string
	Before     []FieldSnapshot
	After      []FieldSnapshot
}

// AuditQuery filters the audit log. Zero values mean "any". AfterSeq pages
// through the chain in order.
type AuditQuery struct {
	AfterSeq   int64      `json:"after_seq,omitempty"`
	EntityName string     `json:"entity_name,omitempty"`
	EntityID   string     `json:"entity_id,omitempty"`
	Actor      string     `json:"actor,omitempty"`
	From       *time.Time `json:"from,omitempty"`
	To         *time.Time `json:"to,omitempty"`
	Limit      uint64     `json:"limit,omitempty"`
}

// AuditStatistics aggregates the audit log.
type AuditStatistics struct {
	Total     int64                 `json:"total"`
	Sensitive int64                 `json:"sensitive"`
	ByAction  map[AuditAction]int64 `json:"by_action"`
}

// ChainVerification is the outcome of walking the full audit chain.
type ChainVerification struct {
	Records  int    `json:"records"`
	Valid    bool   `json:"valid"`
	BrokenAt int64  `json:"broken_at,omitempty"`
	Reason   string `json:"reason,omitempty"`
	LastHash string `json:"last_hash,omitempty"`
}
