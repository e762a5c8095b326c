package admin

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/louisbranch/storefront/internal/platform/errors"
	"github.com/louisbranch/storefront/internal/platform/requestctx"
)

// Env var names for admin token verification.
const (
	EnvTokenIssuer    = "STOREFRONT_ADMIN_TOKEN_ISSUER"
	EnvTokenAudience  = "STOREFRONT_ADMIN_TOKEN_AUDIENCE"
	EnvTokenPublicKey = "STOREFRONT_ADMIN_TOKEN_PUBLIC_KEY"
)

// tokenEnv holds raw env values before post-parse validation.
type tokenEnv struct {
	Issuer    string `env:"STOREFRONT_ADMIN_TOKEN_ISSUER"`
	Audience  string `env:"STOREFRONT_ADMIN_TOKEN_AUDIENCE"`
	PublicKey string `env:"STOREFRONT_ADMIN_TOKEN_PUBLIC_KEY"`
}

// TokenConfig defines how admin bearer tokens are verified.
type TokenConfig struct {
	Issuer   string
	Audience string
	Key      ed25519.PublicKey
	Now      func() time.Time
}

// TokenClaims captures validated admin token claims. Subject is the
// customer ID the token acts as.
type TokenClaims struct {
	Issuer    string
	Audience  []string
	Subject   string
	JWTID     string
	ExpiresAt time.Time
	NotBefore time.Time
	IssuedAt  time.Time
}

// LoadTokenConfigFromEnv reads admin token verification configuration.
func LoadTokenConfigFromEnv(now func() time.Time) (TokenConfig, error) {
	var raw tokenEnv
	if err := env.Parse(&raw); err != nil {
		return TokenConfig{}, fmt.Errorf("parse admin token env: %w", err)
	}
	issuer := strings.TrimSpace(raw.Issuer)
	audience := strings.TrimSpace(raw.Audience)
	publicKey := strings.TrimSpace(raw.PublicKey)
	if issuer == "" {
		return TokenConfig{}, fmt.Errorf("STOREFRONT_ADMIN_TOKEN_ISSUER is required")
	}
	if audience == "" {
		return TokenConfig{}, fmt.Errorf("STOREFRONT_ADMIN_TOKEN_AUDIENCE is required")
	}
	if publicKey == "" {
		return TokenConfig{}, fmt.Errorf("STOREFRONT_ADMIN_TOKEN_PUBLIC_KEY is required")
	}
	keyBytes, err := decodeBase64(publicKey)
	if err != nil {
		return TokenConfig{}, fmt.Errorf("decode admin token public key: %w", err)
	}
	if len(keyBytes) != ed25519.PublicKeySize {
		return TokenConfig{}, fmt.Errorf("admin token public key must be %d bytes", ed25519.PublicKeySize)
	}
	if now == nil {
		now = time.Now
	}
	return TokenConfig{
		Issuer:   issuer,
		Audience: audience,
		Key:      ed25519.PublicKey(keyBytes),
		Now:      now,
	}, nil
}

// VerifyToken checks the signature and claims of an admin bearer token.
func VerifyToken(token string, cfg TokenConfig) (TokenClaims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return TokenClaims{}, apperrors.New(apperrors.CodeAuthRequired, "access token is required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Issuer == "" || cfg.Audience == "" || len(cfg.Key) != ed25519.PublicKeySize {
		return TokenClaims{}, errors.New("admin token verifier is not configured")
	}

	var parsed jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &parsed, func(t *jwt.Token) (any, error) {
		return cfg.Key, nil
	},
		jwt.WithValidMethods([]string{"EdDSA"}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return TokenClaims{}, mapJWTError(err)
	}

	if parsed.Issuer == "" || parsed.Issuer != cfg.Issuer {
		return TokenClaims{}, apperrors.New(apperrors.CodeAuthTokenInvalid, "access token issuer mismatch")
	}
	if !audienceContains(parsed.Audience, cfg.Audience) {
		return TokenClaims{}, apperrors.New(apperrors.CodeAuthTokenInvalid, "access token audience mismatch")
	}
	if parsed.ID == "" {
		return TokenClaims{}, apperrors.New(apperrors.CodeAuthTokenInvalid, "access token jti is required")
	}
	if parsed.ExpiresAt == nil {
		return TokenClaims{}, apperrors.New(apperrors.CodeAuthTokenInvalid, "access token exp is required")
	}

	now := cfg.Now().UTC()
	exp := parsed.ExpiresAt.Time.UTC()
	if !exp.After(now) {
		return TokenClaims{}, apperrors.New(apperrors.CodeAuthTokenInvalid, "access token is expired")
	}
	if parsed.NotBefore != nil {
		nbf := parsed.NotBefore.Time.UTC()
		if now.Before(nbf) {
			return TokenClaims{}, apperrors.New(apperrors.CodeAuthTokenInvalid, "access token not active yet")
		}
	}
	if strings.TrimSpace(parsed.Subject) == "" {
		return TokenClaims{}, apperrors.New(apperrors.CodeAuthTokenInvalid, "access token subject is required")
	}

	claims := TokenClaims{
		Issuer:    parsed.Issuer,
		Audience:  []string(parsed.Audience),
		Subject:   strings.TrimSpace(parsed.Subject),
		JWTID:     parsed.ID,
		ExpiresAt: exp,
	}
	if parsed.NotBefore != nil {
		claims.NotBefore = parsed.NotBefore.Time.UTC()
	}
	if parsed.IssuedAt != nil {
		claims.IssuedAt = parsed.IssuedAt.Time.UTC()
	}
	return claims, nil
}

// requireAuth wraps next with bearer token verification. The verified
// subject is placed on the request context as the acting customer ID.
func requireAuth(next http.Handler, cfg TokenConfig) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := bearerToken(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		claims, err := VerifyToken(token, cfg)
		if err != nil {
			writeError(w, r, err)
			return
		}
		ctx := requestctx.WithCustomerID(r.Context(), claims.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// bearerToken extracts the token from the Authorization header.
func bearerToken(r *http.Request) (string, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", apperrors.New(apperrors.CodeAuthRequired, "authorization header is required")
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", apperrors.New(apperrors.CodeAuthRequired, "authorization header must be a bearer token")
	}
	return strings.TrimSpace(token), nil
}

// mapJWTError translates jwt library errors to application errors.
func mapJWTError(err error) error {
	if errors.Is(err, jwt.ErrTokenSignatureInvalid) || errors.Is(err, jwt.ErrEd25519Verification) {
		return apperrors.New(apperrors.CodeAuthTokenInvalid, "access token signature is invalid")
	}
	if errors.Is(err, jwt.ErrTokenUnverifiable) {
		return apperrors.New(apperrors.CodeAuthTokenInvalid, "access token alg is invalid")
	}
	return apperrors.New(apperrors.CodeAuthTokenInvalid, "access token is invalid")
}

// audienceContains reports whether the audience list contains the given value.
func audienceContains(aud jwt.ClaimStrings, value string) bool {
	for _, item := range aud {
		if item == value {
			return true
		}
	}
	return false
}

func decodeBase64(value string) ([]byte, error) {
	if value == "" {
		return nil, errors.New("empty base64 value")
	}
	decoded, err := base64.RawStdEncoding.DecodeString(value)
	if err == nil {
		return decoded, nil
	}
	return base64.StdEncoding.DecodeString(value)
}
