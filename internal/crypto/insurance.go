// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

// Swiss AHV/AVS number, e.g. 756.1234.5678.97.
var insuranceNumberPattern = regexp.MustCompile(`^\d{3}\.\d{4}\.\d{4}\.\d{2}$`)

// HashInsuranceNumber returns the lowercase hex SHA-256 of a Swiss insurance
// number. The hash is a lookup key; the number itself is stored only as an
// encrypted field.
func HashInsuranceNumber(number string) (string, error) {
	number = strings.TrimSpace(number)
	if !insuranceNumberPattern.MatchString(number) {
		return "", ErrInvalidInsuranceNumber
	}

	sum := sha256.Sum256([]byte(number))
	return hex.EncodeToString(sum[:]), nil
}
