// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package models

import "time"

// ReviewStatus is the state of an anonymization review item.
type ReviewStatus string

const (
	ReviewPending      ReviewStatus = "Pending"
	ReviewInReview     ReviewStatus = "InReview"
	ReviewApproved     ReviewStatus = "Approved"
	ReviewRejected     ReviewStatus = "Rejected"
	ReviewWhitelisted  ReviewStatus = "Whitelisted"
	ReviewAutoApproved ReviewStatus = "AutoApproved"
)

// Valid reports whether s is a known status.
func (s ReviewStatus) Valid() bool {
	switch s {
	case ReviewPending, ReviewInReview, ReviewApproved, ReviewRejected, ReviewWhitelisted, ReviewAutoApproved:
		return true
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s ReviewStatus) Terminal() bool {
	switch s {
	case ReviewApproved, ReviewWhitelisted, ReviewAutoApproved:
		return true
	}
	return false
}

// ReviewItem is a low-confidence anonymization result awaiting a human.
// SourceRecordID refers to the protected record by id only.
type ReviewItem struct {
	ID             string       `json:"id"`
	SourceRecordID string       `json:"source_record_id"`
	FieldName      string       `json:"field_name"`
	DetectedSpans  []string     `json:"detected_sensitive_spans"`
	Confidence     float64      `json:"confidence"`
	Reason         string       `json:"reason"`
	Status         ReviewStatus `json:"status"`
	Created        time.Time    `json:"created"`
	ReviewedAt     *time.Time   `json:"reviewed_at,omitempty"`
	Reviewer       string       `json:"reviewer,omitempty"`
	ReviewerNotes  string       `json:"reviewer_notes,omitempty"`
}

// TransitionRequest asks the review queue to move an item to Target.
// Justification is mandatory for Whitelisted, Confidence for Rejected -> Pending.
type TransitionRequest struct {
	ID            string       `json:"id"`
	Target        ReviewStatus `json:"target"`
	Actor         string       `json:"-"`
	Justification string       `json:"justification,omitempty"`
	Confidence    *float64     `json:"confidence,omitempty"`
}

// Submission is one free-text value offered to the anonymization guard.
type Submission struct {
	SourceRecordID  string
	FieldName       string
	RawText         *string
	AnonymizedText  *string
	Confidence      *float64
	DetectedSpans   []string
	Actor           string
	BypassRequested bool
}

// GuardDecision is the outcome of a guard validation. ReviewItem is set only
// when the confidence fell below the review threshold.
type GuardDecision struct {
	Accepted   bool
	Status     ReviewStatus
	ReviewItem *ReviewItem
}
