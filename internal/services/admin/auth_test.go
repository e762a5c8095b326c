package admin

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	apperrors "github.com/louisbranch/storefront/internal/platform/errors"
	"github.com/louisbranch/storefront/internal/platform/requestctx"
)

func signAdminToken(t *testing.T, privateKey ed25519.PrivateKey, header, payload map[string]any) string {
	t.Helper()

	headerJSON, err := json.Marshal(header)
	if err != nil {
		t.Fatalf("marshal header: %v", err)
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}

	encodedHeader := base64.RawURLEncoding.EncodeToString(headerJSON)
	encodedPayload := base64.RawURLEncoding.EncodeToString(payloadJSON)
	signingInput := encodedHeader + "." + encodedPayload
	signature := ed25519.Sign(privateKey, []byte(signingInput))
	encodedSig := base64.RawURLEncoding.EncodeToString(signature)
	return signingInput + "." + encodedSig
}

func testClaims(now time.Time) map[string]any {
	return map[string]any{
		"iss": "storefront",
		"aud": "storefront-admin",
		"sub": "customer-1",
		"jti": "jti-1",
		"exp": now.Add(time.Hour).Unix(),
		"iat": now.Add(-time.Minute).Unix(),
	}
}

func testTokenConfig(key ed25519.PublicKey, now time.Time) TokenConfig {
	return TokenConfig{
		Issuer:   "storefront",
		Audience: "storefront-admin",
		Key:      key,
		Now:      func() time.Time { return now },
	}
}

func TestLoadTokenConfigFromEnv(t *testing.T) {
	t.Setenv(EnvTokenIssuer, "")
	t.Setenv(EnvTokenAudience, "")
	t.Setenv(EnvTokenPublicKey, "")

	if _, err := LoadTokenConfigFromEnv(nil); err == nil {
		t.Fatal("expected error when env vars are missing")
	}

	pubKey, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	t.Setenv(EnvTokenIssuer, "storefront")
	t.Setenv(EnvTokenAudience, "storefront-admin")
	t.Setenv(EnvTokenPublicKey, base64.RawStdEncoding.EncodeToString(pubKey))

	cfg, err := LoadTokenConfigFromEnv(nil)
	if err != nil {
		t.Fatalf("load token config: %v", err)
	}
	if cfg.Issuer != "storefront" || cfg.Audience != "storefront-admin" {
		t.Fatal("expected issuer and audience to be loaded")
	}
	if len(cfg.Key) != ed25519.PublicKeySize {
		t.Fatalf("expected public key size %d", ed25519.PublicKeySize)
	}
}

func TestVerifyTokenSuccess(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	token := signAdminToken(t, priv, map[string]any{"alg": "EdDSA", "typ": "JWT"}, testClaims(now))

	claims, err := VerifyToken(token, testTokenConfig(pub, now))
	if err != nil {
		t.Fatalf("verify token: %v", err)
	}
	if claims.Subject != "customer-1" {
		t.Fatalf("Subject = %q, want %q", claims.Subject, "customer-1")
	}
	if claims.JWTID != "jti-1" {
		t.Fatalf("JWTID = %q, want %q", claims.JWTID, "jti-1")
	}
}

func TestVerifyTokenRejectsBadClaims(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

	mutate := func(change func(map[string]any)) string {
		claims := testClaims(now)
		change(claims)
		return signAdminToken(t, priv, map[string]any{"alg": "EdDSA", "typ": "JWT"}, claims)
	}

	tests := []struct {
		name  string
		token string
	}{
		{"expired", mutate(func(c map[string]any) { c["exp"] = now.Add(-time.Minute).Unix() })},
		{"wrong issuer", mutate(func(c map[string]any) { c["iss"] = "someone-else" })},
		{"wrong audience", mutate(func(c map[string]any) { c["aud"] = "other-plane" })},
		{"missing jti", mutate(func(c map[string]any) { delete(c, "jti") })},
		{"missing exp", mutate(func(c map[string]any) { delete(c, "exp") })},
		{"missing subject", mutate(func(c map[string]any) { delete(c, "sub") })},
		{"not yet valid", mutate(func(c map[string]any) { c["nbf"] = now.Add(time.Hour).Unix() })},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := VerifyToken(tc.token, testTokenConfig(pub, now))
			if code := apperrors.CodeOf(err); code != apperrors.CodeAuthTokenInvalid {
				t.Fatalf("CodeOf(err) = %v, want %v (err: %v)", code, apperrors.CodeAuthTokenInvalid, err)
			}
		})
	}
}

func TestVerifyTokenRejectsForeignSignature(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	_, otherPriv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate other key: %v", err)
	}

	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	token := signAdminToken(t, otherPriv, map[string]any{"alg": "EdDSA", "typ": "JWT"}, testClaims(now))

	_, err = VerifyToken(token, testTokenConfig(pub, now))
	if code := apperrors.CodeOf(err); code != apperrors.CodeAuthTokenInvalid {
		t.Fatalf("CodeOf(err) = %v, want %v", code, apperrors.CodeAuthTokenInvalid)
	}
}

func TestVerifyTokenRequiresToken(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	_, err = VerifyToken("  ", testTokenConfig(pub, time.Now()))
	if code := apperrors.CodeOf(err); code != apperrors.CodeAuthRequired {
		t.Fatalf("CodeOf(err) = %v, want %v", code, apperrors.CodeAuthRequired)
	}
}

func TestRequireAuthStampsCustomer(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

	var seen string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = requestctx.CustomerIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	handler := requireAuth(next, testTokenConfig(pub, now))

	request := httptest.NewRequest(http.MethodGet, "/v1/tasks", nil)
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("status without token = %d, want %d", recorder.Code, http.StatusUnauthorized)
	}

	token := signAdminToken(t, priv, map[string]any{"alg": "EdDSA", "typ": "JWT"}, testClaims(now))
	request = httptest.NewRequest(http.MethodGet, "/v1/tasks", nil)
	request.Header.Set("Authorization", "Bearer "+token)
	recorder = httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)
	if recorder.Code != http.StatusOK {
		t.Fatalf("status with token = %d, want %d", recorder.Code, http.StatusOK)
	}
	if seen != "customer-1" {
		t.Fatalf("acting customer = %q, want %q", seen, "customer-1")
	}
}

func TestBearerTokenParsing(t *testing.T) {
	request := httptest.NewRequest(http.MethodGet, "/v1/tasks", nil)
	if _, err := bearerToken(request); apperrors.CodeOf(err) != apperrors.CodeAuthRequired {
		t.Fatalf("missing header should be auth required, got %v", err)
	}

	request.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	if _, err := bearerToken(request); apperrors.CodeOf(err) != apperrors.CodeAuthRequired {
		t.Fatalf("non-bearer scheme should be auth required, got %v", err)
	}

	request.Header.Set("Authorization", "Bearer abc.def.ghi")
	token, err := bearerToken(request)
	if err != nil {
		t.Fatalf("bearer token: %v", err)
	}
	if token != "abc.def.ghi" {
		t.Fatalf("token = %q, want %q", token, "abc.def.ghi")
	}
}
