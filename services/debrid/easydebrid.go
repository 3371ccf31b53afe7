package debrid

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"mediafusion/config"
)

const easyDebridBaseURL = "https://easydebrid.com/api/v1"

func init() {
	RegisterProvider("easydebrid", func(cfg config.DebridProviderSettings, client *http.Client) (Provider, error) {
		return NewEasyDebrid(cfg, client), nil
	})
}

// EasyDebrid implements the Provider contract against the EasyDebrid API.
// The API takes JSON bodies and resolves directly from a magnet, with no
// persistent cloud state, so Submit is a no-op and ListActive is empty.
type EasyDebrid struct {
	auth   AuthStrategy
	client *http.Client
}

func NewEasyDebrid(cfg config.DebridProviderSettings, client *http.Client) *EasyDebrid {
	return &EasyDebrid{auth: staticToken(strings.TrimSpace(cfg.APIKey)), client: client}
}

func (ed *EasyDebrid) Name() string { return "easydebrid" }

// postJSON sends a JSON body, which EasyDebrid uses instead of form posts.
func (ed *EasyDebrid) postJSON(ctx context.Context, endpoint string, payload, out interface{}) error {
	token, err := ed.auth.Token(ctx)
	if err != nil {
		return err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode easydebrid request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build easydebrid request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := ed.client.Do(req)
	if err != nil {
		return fmt.Errorf("easydebrid request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		preview, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return classifyProviderStatus(resp.StatusCode, ed.Name(), string(preview))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (ed *EasyDebrid) Check(ctx context.Context, hashes []string) (map[string]bool, error) {
	urls := make([]string, len(hashes))
	for i, hash := range hashes {
		urls[i] = "magnet:?xt=urn:btih:" + strings.ToLower(hash)
	}

	var resp struct {
		Cached []bool `json:"cached"`
	}
	if err := ed.postJSON(ctx, easyDebridBaseURL+"/link/lookup", map[string]interface{}{"urls": urls}, &resp); err != nil {
		return nil, err
	}

	result := make(map[string]bool, len(hashes))
	for i, hash := range hashes {
		if i < len(resp.Cached) {
			result[strings.ToLower(hash)] = resp.Cached[i]
		}
	}
	return result, nil
}

// Submit is a no-op: EasyDebrid generates links straight from magnets and
// keeps no per-account torrent list.
func (ed *EasyDebrid) Submit(ctx context.Context, hash, magnet string) (string, error) {
	return strings.ToLower(hash), nil
}

func (ed *EasyDebrid) Resolve(ctx context.Context, hash, fileHint string) (string, error) {
	var resp struct {
		Files []struct {
			Path string `json:"path"`
			Size int64  `json:"size"`
			URL  string `json:"url"`
		} `json:"files"`
		Error string `json:"error,omitempty"`
	}
	payload := map[string]interface{}{"url": "magnet:?xt=urn:btih:" + strings.ToLower(hash)}
	if err := ed.postJSON(ctx, easyDebridBaseURL+"/link/generate", payload, &resp); err != nil {
		return "", err
	}
	if resp.Error != "" {
		return "", fmt.Errorf("%w: easydebrid: %s", ErrContent, resp.Error)
	}
	if len(resp.Files) == 0 {
		return "", fmt.Errorf("%w: no files generated", ErrNotReady)
	}

	best := resp.Files[0]
	for _, f := range resp.Files {
		if fileHint != "" && strings.Contains(f.Path, fileHint) {
			return f.URL, nil
		}
		if f.Size > best.Size {
			best = f
		}
	}
	return best.URL, nil
}

func (ed *EasyDebrid) ListActive(ctx context.Context) ([]ActiveItem, error) {
	return nil, nil
}
