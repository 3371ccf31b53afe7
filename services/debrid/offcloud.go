package debrid

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"mediafusion/config"
)

const offcloudBaseURL = "https://offcloud.com/api"

func init() {
	RegisterProvider("offcloud", func(cfg config.DebridProviderSettings, client *http.Client) (Provider, error) {
		return NewOffcloud(cfg, client), nil
	})
}

// Offcloud implements the Provider contract against the Offcloud API. The
// API key travels as a query parameter rather than a header.
type Offcloud struct {
	apiKey string
	client *http.Client
}

func NewOffcloud(cfg config.DebridProviderSettings, client *http.Client) *Offcloud {
	return &Offcloud{apiKey: strings.TrimSpace(cfg.APIKey), client: client}
}

func (oc *Offcloud) Name() string { return "offcloud" }

func (oc *Offcloud) endpoint(path string) string {
	return fmt.Sprintf("%s%s?key=%s", offcloudBaseURL, path, url.QueryEscape(oc.apiKey))
}

func (oc *Offcloud) requireKey() error {
	if oc.apiKey == "" {
		return fmt.Errorf("%w: no api key configured", ErrAuth)
	}
	return nil
}

type offcloudItem struct {
	RequestID    string `json:"requestId"`
	FileName     string `json:"fileName"`
	Status       string `json:"status"`
	OriginalLink string `json:"originalLink"`
}

func (oc *Offcloud) Check(ctx context.Context, hashes []string) (map[string]bool, error) {
	if err := oc.requireKey(); err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("hashes", strings.Join(hashes, ","))
	var resp struct {
		CachedItems []string `json:"cachedItems"`
	}
	if err := postForm(ctx, oc.client, oc.Name(), oc.endpoint("/cache"), "", form, &resp); err != nil {
		return nil, err
	}

	result := make(map[string]bool, len(hashes))
	for _, hash := range hashes {
		result[strings.ToLower(hash)] = false
	}
	for _, cached := range resp.CachedItems {
		result[strings.ToLower(cached)] = true
	}
	return result, nil
}

func (oc *Offcloud) Submit(ctx context.Context, hash, magnet string) (string, error) {
	if err := oc.requireKey(); err != nil {
		return "", err
	}

	form := url.Values{}
	form.Set("url", magnet)
	var resp struct {
		RequestID string `json:"requestId"`
		NotOK     string `json:"not_available,omitempty"`
	}
	if err := postForm(ctx, oc.client, oc.Name(), oc.endpoint("/cloud"), "", form, &resp); err != nil {
		return "", err
	}
	if resp.RequestID == "" {
		return "", fmt.Errorf("%w: cloud add rejected: %s", ErrContent, resp.NotOK)
	}
	return resp.RequestID, nil
}

func (oc *Offcloud) Resolve(ctx context.Context, hash, fileHint string) (string, error) {
	if err := oc.requireKey(); err != nil {
		return "", err
	}

	item, err := oc.findItem(ctx, hash)
	if err != nil {
		return "", err
	}
	if offcloudStatus(item.Status) != StatusReady {
		return "", fmt.Errorf("%w: status %s", ErrNotReady, item.Status)
	}

	var files []string
	endpoint := oc.endpoint(fmt.Sprintf("/cloud/explore/%s", url.PathEscape(item.RequestID)))
	if err := getAPI(ctx, oc.client, oc.Name(), endpoint, "", &files); err != nil {
		return "", err
	}
	if len(files) == 0 {
		return "", fmt.Errorf("%w: no files in cloud item", ErrContent)
	}
	if fileHint != "" {
		for _, f := range files {
			if strings.Contains(f, fileHint) {
				return f, nil
			}
		}
	}
	return files[0], nil
}

func (oc *Offcloud) ListActive(ctx context.Context) ([]ActiveItem, error) {
	if err := oc.requireKey(); err != nil {
		return nil, err
	}

	var history []offcloudItem
	if err := getAPI(ctx, oc.client, oc.Name(), oc.endpoint("/cloud/history"), "", &history); err != nil {
		return nil, err
	}

	items := make([]ActiveItem, 0, len(history))
	for _, h := range history {
		progress := 0.0
		status := offcloudStatus(h.Status)
		if status == StatusReady {
			progress = 100
		}
		items = append(items, ActiveItem{
			Hash:     hashFromMagnet(h.OriginalLink),
			Name:     h.FileName,
			Status:   status,
			Progress: progress,
		})
	}
	return items, nil
}

func (oc *Offcloud) findItem(ctx context.Context, hash string) (*offcloudItem, error) {
	var history []offcloudItem
	if err := getAPI(ctx, oc.client, oc.Name(), oc.endpoint("/cloud/history"), "", &history); err != nil {
		return nil, err
	}
	for i := range history {
		if hashFromMagnet(history[i].OriginalLink) == strings.ToLower(hash) {
			return &history[i], nil
		}
	}
	return nil, fmt.Errorf("%w: hash not in account", ErrContent)
}

func offcloudStatus(status string) JobStatus {
	switch status {
	case "downloaded":
		return StatusReady
	case "downloading", "created":
		return StatusDownloading
	case "error", "canceled", "fraud":
		return StatusFailed
	default:
		return StatusQueued
	}
}
