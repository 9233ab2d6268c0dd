package credential

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dkeye/Consult/internal/core"
	"github.com/dkeye/Consult/internal/domain"
)

var fixedNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func newTestProvider(url string) *Provider {
	return NewProvider(Options{
		Endpoint:  url,
		APIKey:    "key",
		SecretKey: "secret",
		TTL:       time.Hour,
		Timeout:   200 * time.Millisecond,
		Now:       func() time.Time { return fixedNow },
	})
}

func codeOf(t *testing.T, err error) core.CredentialErrorCode {
	t.Helper()
	var ce *core.CredentialError
	if !errors.As(err, &ce) {
		t.Fatalf("error %v is not a CredentialError", err)
	}
	return ce.Code
}

func TestAcquireSendsRequest(t *testing.T) {
	var got tokenRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if auth := r.Header.Get("Authorization"); auth != "key:secret" {
			t.Errorf("authorization = %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"token": "opaque-token"})
	}))
	defer srv.Close()

	cred, err := newTestProvider(srv.URL).Acquire(context.Background(), domain.Scope{domain.PermJoin})
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if cred.Value != "opaque-token" {
		t.Errorf("value = %q", cred.Value)
	}
	if !cred.ExpiresAt.Equal(fixedNow.Add(time.Hour)) {
		t.Errorf("expires = %v", cred.ExpiresAt)
	}
	if got.Expire != fixedNow.Add(time.Hour).Unix() {
		t.Errorf("expire = %d", got.Expire)
	}
	if !slices.Equal(got.Permissions, []string{PermAllowJoin}) {
		t.Errorf("permissions = %v, want join only", got.Permissions)
	}
}

func TestAcquireCreateScope(t *testing.T) {
	var got tokenRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(map[string]string{"token": "t"})
	}))
	defer srv.Close()

	cred, err := newTestProvider(srv.URL).Acquire(context.Background(), domain.Scope{domain.PermCreate})
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if !slices.Equal(got.Permissions, []string{PermAllowJoin, PermAllowMod}) {
		t.Errorf("permissions = %v", got.Permissions)
	}
	if !cred.Scope.Has(domain.PermJoin) || !cred.Scope.Has(domain.PermCreate) {
		t.Errorf("scope = %v", cred.Scope)
	}
}

func TestAcquireReadsJWTExpiry(t *testing.T) {
	exp := fixedNow.Add(10 * time.Minute)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(fixedNow),
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("x"))
	if err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"token": token})
	}))
	defer srv.Close()

	cred, err := newTestProvider(srv.URL).Acquire(context.Background(), nil)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if !cred.ExpiresAt.Equal(exp) {
		t.Errorf("expires = %v, want %v", cred.ExpiresAt, exp)
	}
}

func TestAcquireUpstreamRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "invalid expiry"})
	}))
	defer srv.Close()

	_, err := newTestProvider(srv.URL).Acquire(context.Background(), nil)
	if c := codeOf(t, err); c != core.CredentialUpstreamRejected {
		t.Fatalf("code = %s", c)
	}
	var ce *core.CredentialError
	errors.As(err, &ce)
	if ce.Message != "invalid expiry" {
		t.Errorf("message = %q, want verbatim upstream message", ce.Message)
	}
	if core.Transient(err) {
		t.Error("rejection must not be transient")
	}
}

func TestAcquireUnconfigured(t *testing.T) {
	p := NewProvider(Options{Endpoint: "http://unused"})
	_, err := p.Acquire(context.Background(), nil)
	if c := codeOf(t, err); c != core.CredentialUnconfigured {
		t.Fatalf("code = %s", c)
	}
}

func TestAcquireNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := newTestProvider(url).Acquire(context.Background(), nil)
	if c := codeOf(t, err); c != core.CredentialNetworkFailure {
		t.Fatalf("code = %s", c)
	}
	if !core.Transient(err) {
		t.Error("network failure must be transient")
	}
}

func TestAcquireTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	start := time.Now()
	_, err := newTestProvider(srv.URL).Acquire(context.Background(), nil)
	if c := codeOf(t, err); c != core.CredentialNetworkFailure {
		t.Fatalf("code = %s", c)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("timeout not enforced, took %v", elapsed)
	}
}
