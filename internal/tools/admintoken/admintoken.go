// Package admintoken generates admin API signing keys and mints bearer
// tokens for operators.
package admintoken

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/golang-jwt/jwt/v5"

	"github.com/louisbranch/storefront/internal/platform/id"
	"github.com/louisbranch/storefront/internal/services/admin"
)

// EnvTokenPrivateKey holds the base64 ed25519 private key used for minting.
// The server side only ever sees the public half.
const EnvTokenPrivateKey = "STOREFRONT_ADMIN_TOKEN_PRIVATE_KEY"

// RunKeygen generates an admin token key pair and writes export lines.
func RunKeygen(out io.Writer, reader io.Reader) error {
	if out == nil {
		return errors.New("output is required")
	}
	if reader == nil {
		reader = rand.Reader
	}
	publicKey, privateKey, err := ed25519.GenerateKey(reader)
	if err != nil {
		return fmt.Errorf("generate admin token key: %w", err)
	}
	if _, err := fmt.Fprintf(out, "export %s=%s\n", EnvTokenPrivateKey, base64.RawStdEncoding.EncodeToString(privateKey)); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(out, "export %s=%s\n", admin.EnvTokenPublicKey, base64.RawStdEncoding.EncodeToString(publicKey)); err != nil {
		return err
	}
	return nil
}

// MintConfig holds the inputs for minting one admin bearer token.
type MintConfig struct {
	Issuer     string
	Audience   string
	Subject    string
	TTL        time.Duration
	PrivateKey string
}

type mintEnv struct {
	Issuer     string `env:"STOREFRONT_ADMIN_TOKEN_ISSUER"`
	Audience   string `env:"STOREFRONT_ADMIN_TOKEN_AUDIENCE"`
	PrivateKey string `env:"STOREFRONT_ADMIN_TOKEN_PRIVATE_KEY"`
}

// ParseMintConfig reads env defaults and flags. The private key only comes
// from the environment so it never lands in shell history.
func ParseMintConfig(fs *flag.FlagSet, args []string) (MintConfig, error) {
	var raw mintEnv
	if err := env.Parse(&raw); err != nil {
		return MintConfig{}, fmt.Errorf("parse admin token env: %w", err)
	}
	cfg := MintConfig{
		Issuer:     strings.TrimSpace(raw.Issuer),
		Audience:   strings.TrimSpace(raw.Audience),
		PrivateKey: strings.TrimSpace(raw.PrivateKey),
		TTL:        time.Hour,
	}
	fs.StringVar(&cfg.Issuer, "issuer", cfg.Issuer, "token issuer (default: "+admin.EnvTokenIssuer+")")
	fs.StringVar(&cfg.Audience, "audience", cfg.Audience, "token audience (default: "+admin.EnvTokenAudience+")")
	fs.StringVar(&cfg.Subject, "subject", "", "customer id the token acts as")
	fs.DurationVar(&cfg.TTL, "ttl", cfg.TTL, "token lifetime (default: 1h)")
	if err := fs.Parse(args); err != nil {
		return MintConfig{}, err
	}
	return cfg, nil
}

// RunMint signs a token for the configured subject and writes it to out.
func RunMint(cfg MintConfig, out io.Writer, now func() time.Time) error {
	if out == nil {
		return errors.New("output is required")
	}
	if strings.TrimSpace(cfg.Subject) == "" {
		return errors.New("subject is required")
	}
	if strings.TrimSpace(cfg.Issuer) == "" {
		return errors.New("issuer is required")
	}
	if strings.TrimSpace(cfg.Audience) == "" {
		return errors.New("audience is required")
	}
	if strings.TrimSpace(cfg.PrivateKey) == "" {
		return fmt.Errorf("%s is required", EnvTokenPrivateKey)
	}
	if cfg.TTL <= 0 {
		return errors.New("ttl must be greater than zero")
	}

	keyBytes, err := decodeBase64(cfg.PrivateKey)
	if err != nil {
		return fmt.Errorf("decode admin token private key: %w", err)
	}
	if len(keyBytes) != ed25519.PrivateKeySize {
		return fmt.Errorf("admin token private key must be %d bytes", ed25519.PrivateKeySize)
	}
	if now == nil {
		now = time.Now
	}

	jti, err := id.NewID()
	if err != nil {
		return fmt.Errorf("token id: %w", err)
	}
	issuedAt := now().UTC()
	claims := jwt.RegisteredClaims{
		Issuer:    strings.TrimSpace(cfg.Issuer),
		Audience:  jwt.ClaimStrings{strings.TrimSpace(cfg.Audience)},
		Subject:   strings.TrimSpace(cfg.Subject),
		ID:        jti,
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		NotBefore: jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(issuedAt.Add(cfg.TTL)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(ed25519.PrivateKey(keyBytes))
	if err != nil {
		return fmt.Errorf("sign admin token: %w", err)
	}
	_, err = fmt.Fprintln(out, signed)
	return err
}

func decodeBase64(value string) ([]byte, error) {
	decoded, err := base64.RawStdEncoding.DecodeString(value)
	if err == nil {
		return decoded, nil
	}
	return base64.StdEncoding.DecodeString(value)
}
