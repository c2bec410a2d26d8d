// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package validators

import "errors"

var (
	ErrUnsupportedType = errors.New("unsupported type for validation")
	ErrUnknownField    = errors.New("unknown field for validation")

	ErrInvalidEntityName       = errors.New("invalid entity name")
	ErrInvalidEntityID         = errors.New("invalid entity id")
	ErrActorRequired           = errors.New("actor is required")
	ErrInvalidAction           = errors.New("invalid action")
	ErrNoFields                = errors.New("at least one field must be provided")
	ErrFieldsOnDelete          = errors.New("delete does not take fields")
	ErrInvalidFieldName        = errors.New("invalid field name")
	ErrDuplicateField          = errors.New("duplicate field name")
	ErrUnexpectedAnonymization = errors.New("anonymized text or confidence on a field that is not free text")
	ErrInvalidConfidence       = errors.New("confidence must be a number between 0 and 1")
	ErrFreeTextInsuranceNumber = errors.New("an insurance number cannot be free text")
	ErrInvalidReviewID         = errors.New("invalid review item id")
	ErrInvalidTargetStatus     = errors.New("invalid target status")
	ErrInvalidTimeRange        = errors.New("time range start is after its end")
	ErrLimitTooLarge           = errors.New("limit is too large")
)
