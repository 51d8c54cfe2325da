// Package jwtverifier verifies HS256 tokens signed with a shared secret.
// It backs local development and tests; production uses clerkverifier.
package jwtverifier

import (
	"context"
	"time"

	"github.com/BearBump/zapshift/internal/apperr"
	"github.com/BearBump/zapshift/internal/identity"
	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

type Verifier struct {
	secret []byte
	issuer string
}

func New(secret string) *Verifier {
	return &Verifier{secret: []byte(secret), issuer: "zapshift"}
}

func (v *Verifier) Verify(_ context.Context, token string) (identity.Identity, error) {
	t, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(v.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return identity.Identity{}, errors.Wrap(apperr.Unauthorized, err.Error())
	}
	c, ok := t.Claims.(*Claims)
	if !ok || !t.Valid {
		return identity.Identity{}, errors.Wrap(apperr.Unauthorized, "invalid token")
	}
	if c.Email == "" {
		return identity.Identity{}, errors.Wrap(apperr.Unauthorized, "token has no email claim")
	}
	return identity.Identity{Subject: c.Subject, Email: c.Email}, nil
}

// Issue mints a token for subject/email valid for ttl.
func (v *Verifier) Issue(subject, email string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", errors.Wrap(err, "sign token")
	}
	return s, nil
}
