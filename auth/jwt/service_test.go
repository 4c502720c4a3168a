package jwt

import (
	"errors"
	"strings"
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
)

type testClaims struct {
	gojwt.RegisteredClaims
	Room string `json:"room"`
}

func (c *testClaims) SetDefaults(now time.Time, ttl time.Duration, issuer string) {
	c.Issuer = issuer
	c.NotBefore = gojwt.NewNumericDate(now)
	c.ExpiresAt = gojwt.NewNumericDate(now.Add(ttl))
}

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, cfg Config, now func() time.Time) *Service[*testClaims] {
	t.Helper()
	svc, err := NewService(cfg, func() *testClaims { return &testClaims{} }, WithClock(now))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		cfg    Config
		errMsg string
	}{
		{"valid", Config{Secret: "s"}, ""},
		{"missing secret", Config{}, "secret is required"},
		{"rsa rejected", Config{Secret: "s", Method: "RS256"}, "unsupported signing method"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.cfg.ApplyDefaults()
			err := tc.cfg.Validate()
			if tc.errMsg == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.errMsg) {
				t.Errorf("expected %q, got %v", tc.errMsg, err)
			}
		})
	}
}

func TestIssueAndParse(t *testing.T) {
	svc := newTestService(t, Config{Secret: "secret", Issuer: "key-1"}, func() time.Time { return fixedNow })

	token, err := svc.Issue(&testClaims{Room: "web-agent"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	claims, err := svc.Parse(token)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.Room != "web-agent" || claims.Issuer != "key-1" {
		t.Errorf("unexpected claims %+v", claims)
	}
	if got := claims.ExpiresAt.Sub(claims.NotBefore.Time); got != 15*time.Minute {
		t.Errorf("lifetime = %v", got)
	}
}

func TestParseExpired(t *testing.T) {
	now := fixedNow
	svc := newTestService(t, Config{Secret: "secret", TTL: time.Minute}, func() time.Time { return now })

	token, err := svc.Issue(&testClaims{})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if _, err := svc.Parse(token); !errors.Is(err, gojwt.ErrTokenExpired) {
		t.Errorf("expected expiry error, got %v", err)
	}
}

func TestParseWrongSecret(t *testing.T) {
	clock := func() time.Time { return fixedNow }
	signer := newTestService(t, Config{Secret: "a"}, clock)
	verifier := newTestService(t, Config{Secret: "b"}, clock)

	token, _ := signer.Issue(&testClaims{})
	if _, err := verifier.Parse(token); !errors.Is(err, gojwt.ErrTokenSignatureInvalid) {
		t.Errorf("expected signature error, got %v", err)
	}
}

func TestParseRejectsOtherAlgorithm(t *testing.T) {
	clock := func() time.Time { return fixedNow }
	signer := newTestService(t, Config{Secret: "s", Method: HS512}, clock)
	verifier := newTestService(t, Config{Secret: "s"}, clock)

	token, _ := signer.Issue(&testClaims{})
	if _, err := verifier.Parse(token); err == nil {
		t.Error("expected algorithm mismatch to fail")
	}
}

func TestGenerateLeavesClaimsUntouched(t *testing.T) {
	svc := newTestService(t, Config{Secret: "s", Issuer: "iss"}, func() time.Time { return fixedNow })
	c := &testClaims{}
	if _, err := svc.Generate(c); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if c.Issuer != "" || c.ExpiresAt != nil {
		t.Errorf("Generate should not apply defaults: %+v", c)
	}
}
