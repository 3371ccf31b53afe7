package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// classifyStatus folds an HTTP status into the error taxonomy: 429 and 5xx
// are transient, auth and contract failures are permanent.
func classifyStatus(status int, source, body string) error {
	body = strings.TrimSpace(body)
	switch {
	case status == http.StatusTooManyRequests || status >= 500:
		return fmt.Errorf("%w: %s returned %d: %s", ErrTransient, source, status, body)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w: %s auth rejected (%d): %s", ErrPermanent, source, status, body)
	default:
		return fmt.Errorf("%w: %s returned %d: %s", ErrPermanent, source, status, body)
	}
}

// getJSON fetches a URL and decodes the JSON body into out, classifying
// failures per the error taxonomy.
func getJSON(ctx context.Context, client *http.Client, source, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("%w: build request: %v", ErrPermanent, err)
	}
	addBrowserHeaders(req)

	resp, err := client.Do(req)
	if err != nil {
		// Network and timeout errors may clear up on retry.
		return fmt.Errorf("%w: %s: %v", ErrTransient, source, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		preview, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return classifyStatus(resp.StatusCode, source, string(preview))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s response: %v", ErrPermanent, source, err)
	}
	return nil
}

// getBody fetches a URL and returns the raw body for non-JSON payloads
// (Torznab XML, RSS, HTML pages).
func getBody(ctx context.Context, client *http.Client, source, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrPermanent, err)
	}
	addBrowserHeaders(req)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrTransient, source, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		preview, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, classifyStatus(resp.StatusCode, source, string(preview))
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s body: %v", ErrTransient, source, err)
	}
	return body, nil
}

func addBrowserHeaders(req *http.Request) {
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "application/json,text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Connection", "keep-alive")
}
