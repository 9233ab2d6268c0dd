// Package credential obtains short-lived access tokens for room operations.
package credential

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Consult/internal/core"
	"github.com/dkeye/Consult/internal/domain"
)

// Wire names of the permissions understood by the issuing service.
const (
	PermAllowJoin = "allow_join"
	PermAllowMod  = "allow_mod"
)

type Options struct {
	Endpoint  string
	APIKey    string
	SecretKey string
	TTL       time.Duration
	Timeout   time.Duration
	Client    *http.Client
	Now       func() time.Time
}

// Provider calls the credential endpoint. It never retries; the caller owns
// the retry policy.
type Provider struct {
	endpoint   string
	apiKey     string
	secretKey  string
	ttl        time.Duration
	timeout    time.Duration
	httpClient *http.Client
	now        func() time.Time
}

func NewProvider(opts Options) *Provider {
	p := &Provider{
		endpoint:   opts.Endpoint,
		apiKey:     opts.APIKey,
		secretKey:  opts.SecretKey,
		ttl:        opts.TTL,
		timeout:    opts.Timeout,
		httpClient: opts.Client,
		now:        opts.Now,
	}
	if p.ttl <= 0 {
		p.ttl = 24 * time.Hour
	}
	if p.timeout <= 0 {
		p.timeout = 10 * time.Second
	}
	if p.httpClient == nil {
		p.httpClient = &http.Client{}
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p
}

type tokenRequest struct {
	Expire      int64    `json:"expire"`
	Permissions []string `json:"permissions"`
}

type tokenResponse struct {
	Token   string `json:"token"`
	Message string `json:"message"`
}

// Permissions maps a scope to the wire permission list. Join is always included.
func Permissions(scope domain.Scope) []string {
	perms := []string{PermAllowJoin}
	if scope.Has(domain.PermCreate) {
		perms = append(perms, PermAllowMod)
	}
	return perms
}

// Acquire requests a credential for scope.
func (p *Provider) Acquire(ctx context.Context, scope domain.Scope) (*domain.Credential, error) {
	if p.endpoint == "" || p.apiKey == "" || p.secretKey == "" {
		return nil, &core.CredentialError{Code: core.CredentialUnconfigured, Message: "api key or secret not set"}
	}
	if !scope.Has(domain.PermJoin) {
		scope = append(domain.Scope{domain.PermJoin}, scope...)
	}

	issued := p.now()
	expires := issued.Add(p.ttl)
	body, err := json.Marshal(tokenRequest{
		Expire:      expires.Unix(),
		Permissions: Permissions(scope),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal token request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &core.CredentialError{Code: core.CredentialNetworkFailure, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", p.apiKey+":"+p.secretKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		log.Warn().Err(err).Str("module", "credential").Msg("token request failed")
		return nil, &core.CredentialError{Code: core.CredentialNetworkFailure, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &core.CredentialError{Code: core.CredentialNetworkFailure, Err: err}
	}

	var tr tokenResponse
	_ = json.Unmarshal(raw, &tr)

	switch {
	case resp.StatusCode == http.StatusBadGateway,
		resp.StatusCode == http.StatusServiceUnavailable,
		resp.StatusCode == http.StatusGatewayTimeout:
		return nil, &core.CredentialError{
			Code: core.CredentialNetworkFailure,
			Err:  fmt.Errorf("upstream status %d", resp.StatusCode),
		}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		msg := tr.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		log.Warn().Str("module", "credential").Int("status", resp.StatusCode).Str("message", msg).Msg("token rejected")
		return nil, &core.CredentialError{Code: core.CredentialUpstreamRejected, Message: msg}
	case tr.Token == "":
		return nil, &core.CredentialError{Code: core.CredentialUpstreamRejected, Message: "empty token"}
	}

	cred := &domain.Credential{
		Value:     tr.Token,
		IssuedAt:  issued,
		ExpiresAt: expires,
		Scope:     scope,
	}
	applyClaims(cred)

	log.Info().
		Str("module", "credential").
		Time("expires_at", cred.ExpiresAt).
		Strs("permissions", Permissions(scope)).
		Msg("credential acquired")
	return cred, nil
}

// applyClaims narrows the validity window to the token's own iat/exp when the
// token is a JWT. Opaque tokens keep the requested window.
func applyClaims(cred *domain.Credential) {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(cred.Value, &claims); err != nil {
		return
	}
	if claims.IssuedAt != nil {
		cred.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil && claims.ExpiresAt.Before(cred.ExpiresAt) {
		cred.ExpiresAt = claims.ExpiresAt.Time
	}
}
