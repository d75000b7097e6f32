// Package jwtauth validates vendor bearer tokens. Sessions are issued by the
// identity collaborator; this service only checks signatures and extracts the
// vendor identity from the subject claim.
package jwtauth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"prequal/internal/platform/middleware"
	id "prequal/pkg/domain"
)

// Validator checks HS256-signed tokens against a shared signing key.
type Validator struct {
	signingKey []byte
}

func New(signingKey string) *Validator {
	return &Validator{signingKey: []byte(signingKey)}
}

// ValidateToken parses and verifies a token, returning the vendor claims.
func (v *Validator) ValidateToken(tokenString string) (*middleware.JWTClaims, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.signingKey, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return nil, fmt.Errorf("token missing subject")
	}
	vendorID, err := id.ParseVendorID(sub)
	if err != nil {
		return nil, fmt.Errorf("token subject is not a vendor id: %w", err)
	}

	return &middleware.JWTClaims{VendorID: vendorID}, nil
}
