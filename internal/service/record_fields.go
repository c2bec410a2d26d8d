// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package service

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/MKhiriev/phi-guard/internal/crypto"
	"github.com/MKhiriev/phi-guard/models"
)

type (
	openFunc func(models.EncryptedField) ([]byte, error)
	sealFunc func([]byte) (models.EncryptedField, error)
)

// withLookupHashes marks every insurance number as sensitive and appends its
// lookup hash as a plaintext field. A null number gets a null hash.
func withLookupHashes(inputs []models.FieldInput) ([]models.FieldInput, error) {
	var lookups []models.FieldInput
	out := make([]models.FieldInput, 0, len(inputs))
	for _, in := range inputs {
		if in.InsuranceNumber {
			in.Sensitive = true
			lookup := models.FieldInput{Name: models.LookupHashFieldName(in.Name)}
			if in.Value != nil {
				hash, err := crypto.HashInsuranceNumber(*in.Value)
				if err != nil {
					return nil, fmt.Errorf("field %q: %w", in.Name, err)
				}
				lookup.Value = &hash
			}
			lookups = append(lookups, lookup)
		}
		out = append(out, in)
	}
	return append(out, lookups...), nil
}

// resealFields opens every sealed value of fields and seals it again. It
// returns new fields and the number of encryptions.
func resealFields(fields []models.StoredField, open openFunc, seal sealFunc) ([]models.StoredField, int64, error) {
	out := make([]models.StoredField, len(fields))
	var n int64

	for i, f := range fields {
		if f.Sensitive && !f.Null {
			sealed, err := reseal(f.Value, open, seal)
			if err != nil {
				return nil, 0, err
			}
			f.Value = sealed
			n++
		}
		if len(f.Anonymized) > 0 {
			sealed, err := reseal(f.Anonymized, open, seal)
			if err != nil {
				return nil, 0, err
			}
			f.Anonymized = sealed
			n++
		}
		out[i] = f
	}

	return out, n, nil
}

func reseal(field []byte, open openFunc, seal sealFunc) ([]byte, error) {
	plaintext, err := open(field)
	if err != nil {
		return nil, err
	}
	defer clear(plaintext)

	return seal(plaintext)
}

// sealInput turns one inbound field into its stored form.
func sealInput(in models.FieldInput, seal sealFunc) (models.StoredField, int64, error) {
	f := models.StoredField{
		Name:      in.Name,
		Sensitive: in.IsSensitive(),
		FreeText:  in.FreeText,
		Null:      in.Value == nil,
	}
	if f.Null {
		return f, 0, nil
	}

	if !f.Sensitive {
		f.Value = []byte(*in.Value)
		return f, 0, nil
	}

	sealed, err := seal([]byte(*in.Value))
	if err != nil {
		return models.StoredField{}, 0, err
	}
	f.Value = sealed
	n := int64(1)

	if in.FreeText && in.AnonymizedText != nil {
		anonymized, err := seal([]byte(*in.AnonymizedText))
		if err != nil {
			return models.StoredField{}, 0, err
		}
		f.Anonymized = anonymized
		n++
	}

	return f, n, nil
}

// openField decrypts a stored field for reading.
func openField(f models.StoredField, open openFunc) (models.PlainField, error) {
	p := models.PlainField{Name: f.Name, Sensitive: f.Sensitive, FreeText: f.FreeText}
	if f.Null {
		return p, nil
	}

	value := f.Value
	if f.Sensitive {
		plaintext, err := open(f.Value)
		if err != nil {
			return models.PlainField{}, err
		}
		value = plaintext
	}
	s := string(value)
	p.Value = &s

	if len(f.Anonymized) > 0 {
		plaintext, err := open(f.Anonymized)
		if err != nil {
			return models.PlainField{}, err
		}
		a := string(plaintext)
		p.AnonymizedText = &a
	}

	return p, nil
}

// sortFields keeps stored fields in name order.
func sortFields(fields []models.StoredField) {
	slices.SortFunc(fields, func(a, b models.StoredField) int {
		return cmp.Compare(a.Name, b.Name)
	})
}
