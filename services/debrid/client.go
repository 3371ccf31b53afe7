package debrid

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// classifyProviderStatus folds an HTTP status into the provider error
// classes.
func classifyProviderStatus(status int, name, body string) error {
	body = strings.TrimSpace(body)
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w: %s returned %d: %s", ErrAuth, name, status, body)
	case status == http.StatusTooManyRequests || status == http.StatusPaymentRequired:
		return fmt.Errorf("%w: %s returned %d: %s", ErrQuota, name, status, body)
	case status == http.StatusNotFound || status == http.StatusGone:
		return fmt.Errorf("%w: %s returned %d: %s", ErrContent, name, status, body)
	default:
		return fmt.Errorf("%s returned %d: %s", name, status, body)
	}
}

// apiCall performs a provider API request and decodes the JSON response into
// out. A bearer token is attached when token is non-empty; a non-nil form
// sends an urlencoded POST body.
func apiCall(ctx context.Context, client *http.Client, name, method, endpoint, token string, form url.Values, out interface{}) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("build %s request: %w", name, err)
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		preview, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return classifyProviderStatus(resp.StatusCode, name, string(preview))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", name, err)
	}
	return nil
}

func getAPI(ctx context.Context, client *http.Client, name, endpoint, token string, out interface{}) error {
	return apiCall(ctx, client, name, http.MethodGet, endpoint, token, nil, out)
}

func postForm(ctx context.Context, client *http.Client, name, endpoint, token string, form url.Values, out interface{}) error {
	return apiCall(ctx, client, name, http.MethodPost, endpoint, token, form, out)
}
