// Package clerkverifier verifies Clerk session tokens and resolves the
// caller's primary email through the Clerk user API.
package clerkverifier

import (
	"context"
	"sync"
	"time"

	"github.com/BearBump/zapshift/internal/apperr"
	"github.com/BearBump/zapshift/internal/identity"
	"github.com/clerk/clerk-sdk-go/v2"
	"github.com/clerk/clerk-sdk-go/v2/jwks"
	"github.com/clerk/clerk-sdk-go/v2/jwt"
	"github.com/clerk/clerk-sdk-go/v2/user"
	"github.com/pkg/errors"
)

type userGetter interface {
	Get(ctx context.Context, id string) (*clerk.User, error)
}

type cachedEmail struct {
	email   string
	expires time.Time
}

type Verifier struct {
	jwks  *jwks.Client
	users userGetter

	verify func(ctx context.Context, token string) (*clerk.SessionClaims, error)

	emailTTL time.Duration

	mu     sync.Mutex
	keys   map[string]*clerk.JSONWebKey
	emails map[string]cachedEmail
}

func New(secretKey string) *Verifier {
	cfg := &clerk.ClientConfig{}
	cfg.Key = clerk.String(secretKey)

	v := &Verifier{
		jwks:     jwks.NewClient(cfg),
		users:    user.NewClient(cfg),
		emailTTL: 5 * time.Minute,
		keys:     make(map[string]*clerk.JSONWebKey),
		emails:   make(map[string]cachedEmail),
	}
	v.verify = v.verifyToken
	return v
}

func (v *Verifier) WithEmailTTL(ttl time.Duration) *Verifier {
	v.emailTTL = ttl
	return v
}

func (v *Verifier) Verify(ctx context.Context, token string) (identity.Identity, error) {
	claims, err := v.verify(ctx, token)
	if err != nil {
		return identity.Identity{}, err
	}
	email, err := v.emailFor(ctx, claims.Subject)
	if err != nil {
		return identity.Identity{}, err
	}
	return identity.Identity{Subject: claims.Subject, Email: email}, nil
}

func (v *Verifier) verifyToken(ctx context.Context, token string) (*clerk.SessionClaims, error) {
	unsafe, err := jwt.Decode(ctx, &jwt.DecodeParams{Token: token})
	if err != nil {
		return nil, errors.Wrap(apperr.Unauthorized, err.Error())
	}
	jwk, err := v.key(ctx, unsafe.KeyID)
	if err != nil {
		return nil, err
	}
	claims, err := jwt.Verify(ctx, &jwt.VerifyParams{Token: token, JWK: jwk})
	if err != nil {
		return nil, errors.Wrap(apperr.Unauthorized, err.Error())
	}
	return claims, nil
}

func (v *Verifier) key(ctx context.Context, keyID string) (*clerk.JSONWebKey, error) {
	v.mu.Lock()
	jwk, ok := v.keys[keyID]
	v.mu.Unlock()
	if ok {
		return jwk, nil
	}

	jwk, err := jwt.GetJSONWebKey(ctx, &jwt.GetJSONWebKeyParams{KeyID: keyID, JWKSClient: v.jwks})
	if err != nil {
		return nil, errors.Wrap(apperr.Unauthorized, err.Error())
	}
	v.mu.Lock()
	v.keys[keyID] = jwk
	v.mu.Unlock()
	return jwk, nil
}

func (v *Verifier) emailFor(ctx context.Context, subject string) (string, error) {
	now := time.Now()
	v.mu.Lock()
	c, ok := v.emails[subject]
	v.mu.Unlock()
	if ok && now.Before(c.expires) {
		return c.email, nil
	}

	u, err := v.users.Get(ctx, subject)
	if err != nil {
		return "", errors.Wrap(apperr.Upstream, "clerk get user: "+err.Error())
	}
	email := primaryEmail(u)
	if email == "" {
		return "", errors.Wrap(apperr.Unauthorized, "user has no email address")
	}

	v.mu.Lock()
	v.emails[subject] = cachedEmail{email: email, expires: now.Add(v.emailTTL)}
	v.mu.Unlock()
	return email, nil
}

func primaryEmail(u *clerk.User) string {
	if u == nil || len(u.EmailAddresses) == 0 {
		return ""
	}
	if u.PrimaryEmailAddressID != nil {
		for _, e := range u.EmailAddresses {
			if e != nil && e.ID == *u.PrimaryEmailAddressID {
				return e.EmailAddress
			}
		}
	}
	if u.EmailAddresses[0] == nil {
		return ""
	}
	return u.EmailAddresses[0].EmailAddress
}
