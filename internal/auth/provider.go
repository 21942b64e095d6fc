// Package auth wraps the external identity provider and keeps per-chat sessions.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// apiKeyHeader carries the API key so it never shows up in a request URL or a transport error.
const apiKeyHeader = "X-Goog-Api-Key"

// Identity is the signed-in provider account.
type Identity struct {
	UID          string
	Email        string
	IDToken      string
	RefreshToken string
	ExpiresAt    time.Time
}

// ProviderError is a rejection reported by the identity provider. Message is
// the provider's own text and is meant to be shown to the user as is.
type ProviderError struct {
	Code    int
	Message string
}

func (e *ProviderError) Error() string {
	return e.Message
}

// IdentityProvider is the subset of the provider API sessions rely on.
type IdentityProvider interface {
	SignInWithPassword(ctx context.Context, email, password string) (*Identity, error)
	SignUp(ctx context.Context, email, password string) (*Identity, error)
	SignInWithIdP(ctx context.Context, providerID, idToken string) (*Identity, error)
	Refresh(ctx context.Context, refreshToken string) (*Identity, error)
}

// Provider is an Identity Toolkit REST client (the API behind Firebase Authentication).
type Provider struct {
	apiKey       string
	authBaseURL  string
	tokenBaseURL string
	http         *http.Client
	now          func() time.Time
}

func NewProvider(apiKey, authBaseURL, tokenBaseURL string, httpClient *http.Client) *Provider {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Provider{
		apiKey:       apiKey,
		authBaseURL:  strings.TrimRight(authBaseURL, "/"),
		tokenBaseURL: strings.TrimRight(tokenBaseURL, "/"),
		http:         httpClient,
		now:          time.Now,
	}
}

type accountResponse struct {
	LocalID      string `json:"localId"`
	Email        string `json:"email"`
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
}

type refreshResponse struct {
	UserID       string `json:"user_id"`
	IDToken      string `json:"id_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    string `json:"expires_in"`
}

type errorEnvelope struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (p *Provider) SignInWithPassword(ctx context.Context, email, password string) (*Identity, error) {
	return p.account(ctx, "accounts:signInWithPassword", map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	})
}

func (p *Provider) SignUp(ctx context.Context, email, password string) (*Identity, error) {
	return p.account(ctx, "accounts:signUp", map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	})
}

// SignInWithIdP exchanges a federated credential (e.g. a Google ID token) for a session.
func (p *Provider) SignInWithIdP(ctx context.Context, providerID, idToken string) (*Identity, error) {
	postBody := url.Values{}
	postBody.Set("id_token", idToken)
	postBody.Set("providerId", providerID)
	return p.account(ctx, "accounts:signInWithIdp", map[string]any{
		"postBody":            postBody.Encode(),
		"requestUri":          "http://localhost",
		"returnSecureToken":   true,
		"returnIdpCredential": true,
	})
}

// Refresh trades a refresh token for a new ID token.
func (p *Provider) Refresh(ctx context.Context, refreshToken string) (*Identity, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.tokenBaseURL+"/token", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set(apiKeyHeader, p.apiKey)

	var out refreshResponse
	if err := p.send(req, &out); err != nil {
		return nil, err
	}
	return p.identity(out.UserID, "", out.IDToken, out.RefreshToken, out.ExpiresIn), nil
}

func (p *Provider) account(ctx context.Context, method string, in map[string]any) (*Identity, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("auth api key is not configured")
	}
	payload, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.authBaseURL+"/"+method, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(apiKeyHeader, p.apiKey)

	var out accountResponse
	if err := p.send(req, &out); err != nil {
		return nil, err
	}
	return p.identity(out.LocalID, out.Email, out.IDToken, out.RefreshToken, out.ExpiresIn), nil
}

func (p *Provider) send(req *http.Request, out any) error {
	resp, err := p.http.Do(req)
	if err != nil {
		return fmt.Errorf("identity request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read identity response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var env errorEnvelope
		if json.Unmarshal(body, &env) == nil && env.Error.Message != "" {
			return &ProviderError{Code: resp.StatusCode, Message: env.Error.Message}
		}
		return &ProviderError{Code: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode identity response: %w", err)
	}
	return nil
}

// identity fills gaps in the provider reply from the ID token's own claims.
func (p *Provider) identity(uid, email, idToken, refreshToken, expiresIn string) *Identity {
	id := &Identity{
		UID:          uid,
		Email:        email,
		IDToken:      idToken,
		RefreshToken: refreshToken,
	}
	if secs, err := strconv.Atoi(expiresIn); err == nil && secs > 0 {
		id.ExpiresAt = p.now().Add(time.Duration(secs) * time.Second)
	}

	claims, err := ParseIDToken(idToken)
	if err != nil {
		return id
	}
	if id.UID == "" {
		id.UID = claims.UID()
	}
	if id.Email == "" {
		id.Email = claims.Email
	}
	if id.ExpiresAt.IsZero() && claims.ExpiresAt != nil {
		id.ExpiresAt = claims.ExpiresAt.Time
	}
	return id
}

// IDTokenClaims are the fields read from a provider-issued ID token.
type IDTokenClaims struct {
	Email  string `json:"email"`
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// UID prefers the provider's user_id claim over the subject.
func (c IDTokenClaims) UID() string {
	if c.UserID != "" {
		return c.UserID
	}
	return c.Subject
}

// ParseIDToken decodes the claims of an ID token without verifying its
// signature: the token came straight from the provider over TLS.
func ParseIDToken(token string) (*IDTokenClaims, error) {
	if token == "" {
		return nil, fmt.Errorf("empty id token")
	}
	claims := &IDTokenClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("parse id token: %w", err)
	}
	return claims, nil
}
