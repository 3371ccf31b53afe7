package debrid

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"mediafusion/config"
)

// AuthStrategy yields the bearer token for provider API calls. Token-only
// providers return the configured key as-is; OAuth providers refresh behind
// the scenes; credential providers log in on first use.
type AuthStrategy interface {
	Token(ctx context.Context) (string, error)
}

// staticToken is the token-only strategy (AllDebrid, TorBox, Offcloud,
// EasyDebrid).
type staticToken string

func (t staticToken) Token(context.Context) (string, error) {
	if t == "" {
		return "", fmt.Errorf("%w: no api key configured", ErrAuth)
	}
	return string(t), nil
}

// DeviceCode is one leg of the OAuth device-code flow: the user enters
// UserCode at VerificationURL while the app polls with DeviceCode.
type DeviceCode struct {
	DeviceCode      string `json:"device_code"`
	UserCode        string `json:"user_code"`
	VerificationURL string `json:"verification_url"`
	ExpiresIn       int    `json:"expires_in"`
	Interval        int    `json:"interval"`
}

type oauthToken struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

// deviceCodeAuth drives the OAuth device-code flow (RealDebrid, DebridLink,
// Premiumize). A pre-issued API token short-circuits the flow; otherwise the
// refresh token obtained at pairing time keeps the access token fresh.
type deviceCodeAuth struct {
	name     string
	clientID string
	tokenURL string
	client   *http.Client

	mu           sync.Mutex
	accessToken  string
	refreshToken string
	expiresAt    time.Time
}

func newDeviceCodeAuth(name, tokenURL string, cfg config.DebridProviderSettings, client *http.Client) *deviceCodeAuth {
	return &deviceCodeAuth{
		name:        name,
		clientID:    cfg.ClientID,
		tokenURL:    tokenURL,
		client:      client,
		accessToken: cfg.APIKey,
	}
}

func (a *deviceCodeAuth) Token(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.accessToken != "" && (a.expiresAt.IsZero() || time.Now().Before(a.expiresAt)) {
		return a.accessToken, nil
	}
	if a.refreshToken == "" {
		return "", fmt.Errorf("%w: %s token expired and no refresh token paired", ErrAuth, a.name)
	}

	form := url.Values{}
	form.Set("client_id", a.clientID)
	form.Set("grant_type", "http://oauth.net/grant_type/device/1.0")
	form.Set("code", a.refreshToken)

	var token oauthToken
	if err := postForm(ctx, a.client, a.name, a.tokenURL, "", form, &token); err != nil {
		return "", fmt.Errorf("refresh %s token: %w", a.name, err)
	}
	a.setToken(token)
	return a.accessToken, nil
}

// setToken stores a freshly issued token pair. Callers hold a.mu.
func (a *deviceCodeAuth) setToken(token oauthToken) {
	a.accessToken = token.AccessToken
	if token.RefreshToken != "" {
		a.refreshToken = token.RefreshToken
	}
	if token.ExpiresIn > 0 {
		// Renew one minute early to absorb clock skew.
		a.expiresAt = time.Now().Add(time.Duration(token.ExpiresIn)*time.Second - time.Minute)
	}
}

// Pair completes the device-code flow after the user approved the code,
// exchanging the device code for a token pair.
func (a *deviceCodeAuth) Pair(ctx context.Context, code DeviceCode) error {
	form := url.Values{}
	form.Set("client_id", a.clientID)
	form.Set("grant_type", "http://oauth.net/grant_type/device/1.0")
	form.Set("code", code.DeviceCode)

	var token oauthToken
	if err := postForm(ctx, a.client, a.name, a.tokenURL, "", form, &token); err != nil {
		return fmt.Errorf("pair %s: %w", a.name, err)
	}
	a.mu.Lock()
	a.setToken(token)
	a.mu.Unlock()
	return nil
}

// credentialAuth logs in with username and password on first use (PikPak,
// Seedr) and caches the session token.
type credentialAuth struct {
	name     string
	loginURL string
	username string
	password string
	client   *http.Client

	mu    sync.Mutex
	token string
}

func newCredentialAuth(name, loginURL string, cfg config.DebridProviderSettings, client *http.Client) *credentialAuth {
	return &credentialAuth{
		name:     name,
		loginURL: loginURL,
		username: cfg.Username,
		password: cfg.Password,
		client:   client,
	}
}

func (a *credentialAuth) Token(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.token != "" {
		return a.token, nil
	}
	if a.username == "" || a.password == "" {
		return "", fmt.Errorf("%w: %s needs username and password", ErrAuth, a.name)
	}

	form := url.Values{}
	form.Set("username", a.username)
	form.Set("password", a.password)

	var resp struct {
		AccessToken string `json:"access_token"`
		Token       string `json:"token"`
	}
	if err := postForm(ctx, a.client, a.name, a.loginURL, "", form, &resp); err != nil {
		return "", fmt.Errorf("login to %s: %w", a.name, err)
	}
	a.token = resp.AccessToken
	if a.token == "" {
		a.token = resp.Token
	}
	if a.token == "" {
		return "", fmt.Errorf("%w: %s login returned no token", ErrAuth, a.name)
	}
	return a.token, nil
}

// Invalidate drops the cached session so the next call logs in again.
func (a *credentialAuth) Invalidate() {
	a.mu.Lock()
	a.token = ""
	a.mu.Unlock()
}
