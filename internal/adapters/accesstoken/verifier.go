package accesstoken

// Package accesstoken verifies implicit-flow access tokens. Tokens signed
// with the shared HS256 secret are verified locally; anything else is handed
// to the fallback verifier (normally the OIDC userinfo endpoint).

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	domainauth "github.com/pdsapp/pds/internal/domain/auth"
	"github.com/pdsapp/pds/internal/ports"
)

var _ ports.AccessTokenVerifier = (*Verifier)(nil)

// ErrNoVerifier is returned when neither a secret nor a fallback is configured.
var ErrNoVerifier = errors.New("access token verification is not configured")

// Claims is the payload of a PDS access token.
type Claims struct {
	Email      string   `json:"email"`
	GivenName  string   `json:"given_name,omitempty"`
	FamilyName string   `json:"family_name,omitempty"`
	Groups     []string `json:"groups,omitempty"`
	Role       string   `json:"pds_role,omitempty"`
	jwt.RegisteredClaims
}

// Config configures a Verifier.
type Config struct {
	Secret   string
	Issuer   string                    // optional; enforced when set
	Fallback ports.AccessTokenVerifier // optional
}

// Verifier implements ports.AccessTokenVerifier.
type Verifier struct {
	secret   []byte
	issuer   string
	fallback ports.AccessTokenVerifier
}

// New builds a Verifier.
func New(cfg Config) *Verifier {
	v := &Verifier{issuer: cfg.Issuer, fallback: cfg.Fallback}
	if cfg.Secret != "" {
		v.secret = []byte(cfg.Secret)
	}
	return v
}

func (v *Verifier) VerifyAccessToken(ctx context.Context, token string) (domainauth.Identity, error) {
	if token == "" {
		return domainauth.Identity{}, errors.New("access token is required")
	}
	if len(v.secret) == 0 {
		return v.delegate(ctx, token)
	}

	claims, err := v.parse(token)
	if err != nil {
		// opaque tokens are not JWTs at all; let the IdP decide
		if errors.Is(err, jwt.ErrTokenMalformed) && v.fallback != nil {
			return v.fallback.VerifyAccessToken(ctx, token)
		}
		return domainauth.Identity{}, fmt.Errorf("verify access token: %w", err)
	}
	return claims.identity(), nil
}

func (v *Verifier) delegate(ctx context.Context, token string) (domainauth.Identity, error) {
	if v.fallback == nil {
		return domainauth.Identity{}, ErrNoVerifier
	}
	return v.fallback.VerifyAccessToken(ctx, token)
}

func (v *Verifier) parse(token string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", jwt.ErrTokenInvalidClaims)
	}
	return claims, nil
}

func (c *Claims) identity() domainauth.Identity {
	raw := map[string]any{"sub": c.Subject, "email": c.Email}
	if c.Role != "" {
		raw["pds_role"] = c.Role
	}
	if len(c.Groups) > 0 {
		groups := make([]any, len(c.Groups))
		for i, g := range c.Groups {
			groups[i] = g
		}
		raw["groups"] = groups
	}
	var exp time.Time
	if c.ExpiresAt != nil {
		exp = c.ExpiresAt.Time
	}
	return domainauth.Identity{
		UserID:    c.Subject,
		FirstName: c.GivenName,
		LastName:  c.FamilyName,
		Email:     c.Email,
		Groups:    append([]string(nil), c.Groups...),
		Claims:    raw,
		ExpiresAt: exp,
	}
}

// Sign issues an HS256 access token for claims. Used by the dev provider and tests.
func Sign(secret, issuer string, ttl time.Duration, claims Claims) (string, error) {
	now := time.Now().UTC()
	claims.Issuer = issuer
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
