package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

var fixedNow = time.Unix(1700000000, 0)

func newService(t *testing.T, secret string, leeway time.Duration) *TokenService {
	t.Helper()
	service, err := NewTokenService(secret, leeway)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	service.WithClock(func() time.Time { return fixedNow })
	return service
}

func TestIssuedTokenVerifies(t *testing.T) {
	service := newService(t, "secret", time.Second)
	token, err := service.Issue("scout-7", time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	claims, err := service.Verify(token)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if claims.Subject != "scout-7" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if !claims.ExpiresAt.Equal(fixedNow.Add(time.Minute)) || !claims.IssuedAt.Equal(fixedNow) {
		t.Fatalf("unexpected token times: %+v", claims)
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	service := newService(t, "secret", 0)
	token := makeToken(t, "secret", "scout-7", Audience, fixedNow.Add(-time.Second))

	if _, err := service.Verify(token); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("expected ErrExpiredToken, got %v", err)
	}

	//1.- The leeway absorbs small clock skew.
	lenient := newService(t, "secret", 2*time.Second)
	if _, err := lenient.Verify(token); err != nil {
		t.Fatalf("expected the leeway to accept the token, got %v", err)
	}
}

func TestVerifyRejectsForeignTokens(t *testing.T) {
	service := newService(t, "secret", time.Second)
	cases := map[string]string{
		"signature": makeToken(t, "other-secret", "scout-7", Audience, fixedNow.Add(time.Minute)),
		"audience":  makeToken(t, "secret", "scout-7", "broker", fixedNow.Add(time.Minute)),
		"subject":   makeToken(t, "secret", " ", Audience, fixedNow.Add(time.Minute)),
		"shape":     "a.b",
	}
	for name, token := range cases {
		if _, err := service.Verify(token); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("%s: expected ErrInvalidToken, got %v", name, err)
		}
	}
	if _, err := service.Verify(""); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("expected ErrMissingToken, got %v", err)
	}
}

func TestIssueValidatesArguments(t *testing.T) {
	service := newService(t, "secret", 0)
	if _, err := service.Issue("", time.Minute); err == nil {
		t.Fatal("expected an empty subject to be rejected")
	}
	if _, err := service.Issue("scout-7", 0); err == nil {
		t.Fatal("expected a zero lifetime to be rejected")
	}
	if _, err := NewTokenService("  ", 0); err == nil {
		t.Fatal("expected a blank secret to be rejected")
	}
}

func TestAuthenticateReadsEveryCarrier(t *testing.T) {
	service := newService(t, "secret", 0)
	token, err := service.Issue("scout-7", time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	bearer := httptest.NewRequest("GET", "/v1/parks", nil)
	bearer.Header.Set("Authorization", "Bearer "+token)
	header := httptest.NewRequest("GET", "/v1/parks", nil)
	header.Header.Set("X-Auth-Token", token)
	query := httptest.NewRequest("GET", "/v1/plays/stream?auth_token="+token, nil)

	for _, r := range []*httptestRequest{{"bearer", bearer}, {"header", header}, {"query", query}} {
		subject, err := service.Authenticate(r.req)
		if err != nil || subject != "scout-7" {
			t.Fatalf("%s: got subject %q err %v", r.name, subject, err)
		}
	}
	if _, err := service.Authenticate(httptest.NewRequest("GET", "/v1/parks", nil)); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("expected ErrMissingToken, got %v", err)
	}
}

type httptestRequest struct {
	name string
	req  *http.Request
}

func makeToken(t *testing.T, secret, subject, audience string, expires time.Time) string {
	t.Helper()
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
	payload := fmt.Sprintf(`{"sub":"%s","exp":%d,"iat":%d,"aud":"%s"}`, subject, expires.Unix(), expires.Add(-time.Minute).Unix(), audience)
	encodedPayload := base64.RawURLEncoding.EncodeToString([]byte(payload))
	signingInput := header + "." + encodedPayload
	mac := hmac.New(sha256.New, []byte(secret))
	if _, err := mac.Write([]byte(signingInput)); err != nil {
		t.Fatalf("mac write: %v", err)
	}
	signature := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
	return signingInput + "." + signature
}
