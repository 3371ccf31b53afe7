package debrid

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"mediafusion/config"
)

const (
	premiumizeBaseURL  = "https://www.premiumize.me/api"
	premiumizeOAuthURL = "https://www.premiumize.me/token"
)

func init() {
	RegisterProvider("premiumize", func(cfg config.DebridProviderSettings, client *http.Client) (Provider, error) {
		return NewPremiumize(cfg, client), nil
	})
}

// Premiumize implements the Provider contract against the premiumize.me API.
type Premiumize struct {
	auth   *deviceCodeAuth
	client *http.Client
}

func NewPremiumize(cfg config.DebridProviderSettings, client *http.Client) *Premiumize {
	return &Premiumize{
		auth:   newDeviceCodeAuth("premiumize", premiumizeOAuthURL, cfg, client),
		client: client,
	}
}

func (p *Premiumize) Name() string { return "premiumize" }

type premiumizeStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

func (s premiumizeStatus) err() error {
	if s.Status == "success" {
		return nil
	}
	msg := strings.ToLower(s.Message)
	switch {
	case strings.Contains(msg, "premium"), strings.Contains(msg, "limit"):
		return fmt.Errorf("%w: premiumize: %s", ErrQuota, s.Message)
	case strings.Contains(msg, "token"), strings.Contains(msg, "auth"):
		return fmt.Errorf("%w: premiumize: %s", ErrAuth, s.Message)
	default:
		return fmt.Errorf("premiumize: %s", s.Message)
	}
}

func (p *Premiumize) Check(ctx context.Context, hashes []string) (map[string]bool, error) {
	token, err := p.auth.Token(ctx)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	for _, hash := range hashes {
		params.Add("items[]", hash)
	}
	var resp struct {
		premiumizeStatus
		Response []bool `json:"response"`
	}
	endpoint := fmt.Sprintf("%s/cache/check?%s", premiumizeBaseURL, params.Encode())
	if err := getAPI(ctx, p.client, p.Name(), endpoint, token, &resp); err != nil {
		return nil, err
	}
	if err := resp.err(); err != nil {
		return nil, err
	}

	result := make(map[string]bool, len(hashes))
	for i, hash := range hashes {
		if i < len(resp.Response) {
			result[strings.ToLower(hash)] = resp.Response[i]
		}
	}
	return result, nil
}

func (p *Premiumize) Submit(ctx context.Context, hash, magnet string) (string, error) {
	token, err := p.auth.Token(ctx)
	if err != nil {
		return "", err
	}

	form := url.Values{}
	form.Set("src", magnet)
	var resp struct {
		premiumizeStatus
		ID string `json:"id"`
	}
	if err := postForm(ctx, p.client, p.Name(), premiumizeBaseURL+"/transfer/create", token, form, &resp); err != nil {
		return "", err
	}
	// "duplicate" still reports the transfer id, which keeps submit
	// idempotent.
	if err := resp.err(); err != nil && resp.ID == "" {
		return "", err
	}
	return resp.ID, nil
}

func (p *Premiumize) Resolve(ctx context.Context, hash, fileHint string) (string, error) {
	token, err := p.auth.Token(ctx)
	if err != nil {
		return "", err
	}

	form := url.Values{}
	form.Set("src", fmt.Sprintf("magnet:?xt=urn:btih:%s", hash))
	var resp struct {
		premiumizeStatus
		Content []struct {
			Path string `json:"path"`
			Size int64  `json:"size"`
			Link string `json:"link"`
		} `json:"content"`
	}
	if err := postForm(ctx, p.client, p.Name(), premiumizeBaseURL+"/transfer/directdl", token, form, &resp); err != nil {
		return "", err
	}
	if err := resp.err(); err != nil {
		return "", err
	}
	if len(resp.Content) == 0 {
		return "", fmt.Errorf("%w: no playable content", ErrNotReady)
	}

	// Default to the largest file; a hint overrides.
	best := resp.Content[0]
	for _, c := range resp.Content {
		if fileHint != "" && strings.Contains(c.Path, fileHint) {
			return c.Link, nil
		}
		if c.Size > best.Size {
			best = c
		}
	}
	return best.Link, nil
}

func (p *Premiumize) ListActive(ctx context.Context) ([]ActiveItem, error) {
	token, err := p.auth.Token(ctx)
	if err != nil {
		return nil, err
	}

	var resp struct {
		premiumizeStatus
		Transfers []struct {
			Name     string   `json:"name"`
			Status   string   `json:"status"`
			Progress float64  `json:"progress"`
			Src      string   `json:"src"`
		} `json:"transfers"`
	}
	if err := getAPI(ctx, p.client, p.Name(), premiumizeBaseURL+"/transfer/list", token, &resp); err != nil {
		return nil, err
	}
	if err := resp.err(); err != nil {
		return nil, err
	}

	items := make([]ActiveItem, 0, len(resp.Transfers))
	for _, t := range resp.Transfers {
		items = append(items, ActiveItem{
			Hash:     hashFromMagnet(t.Src),
			Name:     t.Name,
			Status:   premiumizeJobStatus(t.Status),
			Progress: t.Progress * 100,
		})
	}
	return items, nil
}

func premiumizeJobStatus(status string) JobStatus {
	switch status {
	case "finished", "seeding":
		return StatusReady
	case "running":
		return StatusDownloading
	case "error", "deleted", "banned", "timeout":
		return StatusFailed
	default:
		return StatusQueued
	}
}

// hashFromMagnet pulls the btih hash out of a magnet URI, empty when absent.
func hashFromMagnet(src string) string {
	const marker = "urn:btih:"
	idx := strings.Index(strings.ToLower(src), marker)
	if idx < 0 {
		return ""
	}
	rest := src[idx+len(marker):]
	if amp := strings.IndexByte(rest, '&'); amp >= 0 {
		rest = rest[:amp]
	}
	return strings.ToLower(rest)
}
