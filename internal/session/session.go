// Package session resolves the authenticated caller of a request. The HTTP server
// validates bearer tokens with JWTProvider; the lite MCP server runs as a single
// fixed identity through StaticProvider.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"

	"github.com/nutricheck-server/internal/domain"
)

type contextKey string

const identityKey contextKey = "identity"

// WithIdentity returns a copy of ctx carrying the caller.
func WithIdentity(ctx context.Context, id *domain.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// FromContext returns the caller stored by WithIdentity.
func FromContext(ctx context.Context) (*domain.Identity, bool) {
	id, ok := ctx.Value(identityKey).(*domain.Identity)
	return id, ok && id != nil
}

// Claims is the token payload issued by the identity provider.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

// ProfileSource looks up the practice membership of a user.
type ProfileSource interface {
	GetProfile(ctx context.Context, userID string) (*domain.Profile, error)
	GetPractice(ctx context.Context, id string) (*domain.Practice, error)
}

// JWTProvider validates HS256 bearer tokens and resolves them to identities.
type JWTProvider struct {
	secret   []byte
	issuer   string
	audience string
	profiles ProfileSource
	cache    *expirable.LRU[string, *domain.Identity]
	logger   *logrus.Logger
}

// NewJWTProvider creates a provider from the auth and cache settings.
func NewJWTProvider(auth domain.AuthConfig, cache domain.CacheConfig, profiles ProfileSource, logger *logrus.Logger) (*JWTProvider, error) {
	if auth.JWTSecret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}
	if cache.IdentityTTL == 0 {
		cache.IdentityTTL = 5 * time.Minute
	}
	if cache.IdentityMaxLen == 0 {
		cache.IdentityMaxLen = 1000
	}

	return &JWTProvider{
		secret:   []byte(auth.JWTSecret),
		issuer:   auth.Issuer,
		audience: auth.Audience,
		profiles: profiles,
		cache:    expirable.NewLRU[string, *domain.Identity](cache.IdentityMaxLen, nil, cache.IdentityTTL),
		logger:   logger,
	}, nil
}

// Authenticate validates a raw token and returns the caller it belongs to.
func (p *JWTProvider) Authenticate(ctx context.Context, raw string) (*domain.Identity, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if p.issuer != "" {
		opts = append(opts, jwt.WithIssuer(p.issuer))
	}
	if p.audience != "" {
		opts = append(opts, jwt.WithAudience(p.audience))
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		return p.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnauthenticated, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: token has no subject", domain.ErrUnauthenticated)
	}

	if id, ok := p.cache.Get(claims.Subject); ok {
		return id, nil
	}

	id, err := p.resolve(ctx, claims)
	if err != nil {
		return nil, err
	}
	p.cache.Add(claims.Subject, id)
	return id, nil
}

func (p *JWTProvider) resolve(ctx context.Context, claims *Claims) (*domain.Identity, error) {
	profile, err := p.profiles.GetProfile(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			p.logger.WithField("user_id", claims.Subject).Warn("Authenticated user has no profile")
			return nil, fmt.Errorf("%w: no profile for user", domain.ErrForbidden)
		}
		return nil, fmt.Errorf("loading profile: %w", err)
	}

	id := &domain.Identity{
		UserID: claims.Subject,
		Email:  claims.Email,
		Role:   profile.Role,
	}
	if profile.PracticeID != "" {
		practice, err := p.profiles.GetPractice(ctx, profile.PracticeID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("loading practice: %w", err)
		}
		id.Practice = practice
	}
	return id, nil
}

// ForgetPractice drops every cached identity that belongs to practiceID, so the
// next request of its members sees the changed or deleted practice.
func (p *JWTProvider) ForgetPractice(practiceID string) {
	for _, userID := range p.cache.Keys() {
		if id, ok := p.cache.Peek(userID); ok && id.PracticeID() == practiceID {
			p.cache.Remove(userID)
		}
	}
}

// Current returns the caller stored in ctx by the authentication middleware.
func (p *JWTProvider) Current(ctx context.Context) (*domain.Identity, error) {
	if id, ok := FromContext(ctx); ok {
		return id, nil
	}
	return nil, domain.ErrUnauthenticated
}

// IssueToken signs a token for userID. Used by tooling and tests.
func (p *JWTProvider) IssueToken(userID, email string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    p.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Email: email,
	}
	if p.audience != "" {
		claims.Audience = jwt.ClaimStrings{p.audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
}

// StaticProvider always returns the same identity.
type StaticProvider struct {
	identity *domain.Identity
}

// NewStaticProvider creates a provider for a single-practice deployment.
func NewStaticProvider(practice *domain.Practice) *StaticProvider {
	return &StaticProvider{identity: &domain.Identity{
		UserID:   "local",
		Role:     domain.RoleUser,
		Practice: practice,
	}}
}

// Current returns the caller from ctx if one was set, the static identity otherwise.
func (p *StaticProvider) Current(ctx context.Context) (*domain.Identity, error) {
	if id, ok := FromContext(ctx); ok {
		return id, nil
	}
	return p.identity, nil
}
