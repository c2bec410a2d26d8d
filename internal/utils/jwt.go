// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package utils

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MKhiriev/phi-guard/models"
	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidTokenParams    = errors.New("invalid params for generating JWT token")
	ErrInvalidAuthHeader     = errors.New("invalid authorization header")
	ErrEmptyTokenSubject     = errors.New("empty subject error")
	ErrUnexpectedSigningAlgo = errors.New("unexpected signing method")
)

// GenerateJWTToken creates a signed HMAC-SHA256 JWT for actor.
//
// The token includes the standard claims iss, sub (the actor identity written
// into audit records), iat and exp. All parameters are required.
//
// Example usage:
//
//	token, err := utils.GenerateJWTToken("phi-guard", "reviewer@clinic", time.Hour, "secret")
func GenerateJWTToken(issuer, actor string, tokenDuration time.Duration, signKey string) (models.Token, error) {
	if issuer == "" || actor == "" || tokenDuration == 0 || signKey == "" {
		return models.Token{}, ErrInvalidTokenParams
	}

	now := time.Now()
	claims := &jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   actor,
		ExpiresAt: jwt.NewNumericDate(now.Add(tokenDuration)),
		IssuedAt:  jwt.NewNumericDate(now),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(signKey))
	if err != nil {
		return models.Token{}, fmt.Errorf("error occurred during signing JWT token: %w", err)
	}

	return models.Token{Token: token, RegisteredClaims: *claims, SignedString: tokenString, Actor: actor}, nil
}

// ValidateAndParseJWTToken verifies signature, issuer and expiry of
// tokenString and returns the token with Actor set from the subject claim.
// Only HS256 is accepted.
func ValidateAndParseJWTToken(tokenString, tokenSignKey, tokenIssuer string) (models.Token, error) {
	parsed := &models.Token{}
	token, err := jwt.ParseWithClaims(tokenString, parsed, func(token *jwt.Token) (any, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("%w: %v", ErrUnexpectedSigningAlgo, token.Header["alg"])
		}
		return []byte(tokenSignKey), nil
	}, jwt.WithIssuer(tokenIssuer), jwt.WithExpirationRequired())
	if err != nil {
		return models.Token{}, fmt.Errorf("error occurred validating and parsing token: %w", err)
	}

	parsed.Token = token
	actor, err := parsed.GetActor()
	if err != nil {
		return models.Token{}, fmt.Errorf("%w: %w", ErrEmptyTokenSubject, err)
	}
	parsed.Actor = actor
	parsed.SignedString = tokenString

	return *parsed, nil
}

// ParseBearerToken extracts the token from an "Authorization: Bearer <token>" header.
func ParseBearerToken(authorizationHeader string) (string, error) {
	parts := strings.Fields(authorizationHeader)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", ErrInvalidAuthHeader
	}
	return parts[1], nil
}
