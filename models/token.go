// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package models

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

// Token wraps a reviewer JWT with convenience accessors.
//
// It embeds [jwt.Token] for low-level token operations (signing, parsing)
// and [jwt.RegisteredClaims] for standard claim access (subject, expiry, etc.).
//
// Actor is the cached "sub" claim. It is the identity written into every
// audit record produced on behalf of the token holder.
type Token struct {
	*jwt.Token `json:"-"`

	jwt.RegisteredClaims

	// SignedString is the compact JWS representation of the token.
	SignedString string `json:"-"`

	// Actor is the reviewer or operator identity extracted from "sub".
	Actor string `json:"-"`
}

// GetActor returns the subject claim of the token. An empty subject is an
// error because audit records must always carry an actor.
func (t *Token) GetActor() (string, error) {
	actor, err := t.GetSubject()
	if err != nil {
		return "", err
	}
	if actor == "" {
		return "", errors.New("token subject is empty")
	}
	return actor, nil
}

// String returns the compact JWS serialization of the token.
func (t *Token) String() string {
	return t.SignedString
}
