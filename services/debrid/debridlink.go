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
	debridLinkBaseURL  = "https://debrid-link.com/api/v2"
	debridLinkOAuthURL = "https://debrid-link.com/api/oauth/token"
)

func init() {
	RegisterProvider("debridlink", func(cfg config.DebridProviderSettings, client *http.Client) (Provider, error) {
		return NewDebridLink(cfg, client), nil
	})
}

// DebridLink implements the Provider contract against the Debrid-Link v2
// API. Auth runs through the OAuth device-code flow.
type DebridLink struct {
	auth   *deviceCodeAuth
	client *http.Client
}

func NewDebridLink(cfg config.DebridProviderSettings, client *http.Client) *DebridLink {
	return &DebridLink{
		auth:   newDeviceCodeAuth("debridlink", debridLinkOAuthURL, cfg, client),
		client: client,
	}
}

func (dl *DebridLink) Name() string { return "debridlink" }

type debridLinkEnvelope[T any] struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Value   T      `json:"value,omitempty"`
}

func (e debridLinkEnvelope[T]) err() error {
	if e.Success {
		return nil
	}
	switch e.Error {
	case "badToken", "authorization":
		return fmt.Errorf("%w: debridlink: %s", ErrAuth, e.Error)
	case "maxTorrent", "freeServerOverload", "dailyLimit":
		return fmt.Errorf("%w: debridlink: %s", ErrQuota, e.Error)
	case "notFound", "fileNotAvailable":
		return fmt.Errorf("%w: debridlink: %s", ErrContent, e.Error)
	default:
		return fmt.Errorf("debridlink: %s", e.Error)
	}
}

type debridLinkTorrent struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	HashString  string  `json:"hashString"`
	Status      int     `json:"status"`
	PercentDone float64 `json:"downloadPercent"`
	Files       []struct {
		Name        string `json:"name"`
		Size        int64  `json:"size"`
		DownloadURL string `json:"downloadUrl"`
	} `json:"files"`
}

func (dl *DebridLink) Check(ctx context.Context, hashes []string) (map[string]bool, error) {
	token, err := dl.auth.Token(ctx)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("url", strings.Join(hashes, ","))
	var resp debridLinkEnvelope[map[string]struct {
		Name string `json:"name"`
	}]
	endpoint := fmt.Sprintf("%s/seedbox/cached?%s", debridLinkBaseURL, params.Encode())
	if err := getAPI(ctx, dl.client, dl.Name(), endpoint, token, &resp); err != nil {
		return nil, err
	}
	if err := resp.err(); err != nil {
		return nil, err
	}

	result := make(map[string]bool, len(hashes))
	for _, hash := range hashes {
		_, cached := resp.Value[strings.ToLower(hash)]
		result[strings.ToLower(hash)] = cached
	}
	return result, nil
}

func (dl *DebridLink) Submit(ctx context.Context, hash, magnet string) (string, error) {
	token, err := dl.auth.Token(ctx)
	if err != nil {
		return "", err
	}

	form := url.Values{}
	form.Set("url", magnet)
	form.Set("async", "true")
	var resp debridLinkEnvelope[debridLinkTorrent]
	if err := postForm(ctx, dl.client, dl.Name(), debridLinkBaseURL+"/seedbox/add", token, form, &resp); err != nil {
		return "", err
	}
	if err := resp.err(); err != nil {
		return "", err
	}
	return resp.Value.ID, nil
}

func (dl *DebridLink) Resolve(ctx context.Context, hash, fileHint string) (string, error) {
	token, err := dl.auth.Token(ctx)
	if err != nil {
		return "", err
	}

	torrent, err := dl.findTorrent(ctx, token, hash)
	if err != nil {
		return "", err
	}
	if debridLinkStatus(torrent.Status) != StatusReady || len(torrent.Files) == 0 {
		return "", fmt.Errorf("%w: %.0f%% done", ErrNotReady, torrent.PercentDone)
	}

	file := torrent.Files[0]
	for _, f := range torrent.Files {
		if fileHint != "" && strings.Contains(f.Name, fileHint) {
			file = f
			break
		}
		if f.Size > file.Size {
			file = f
		}
	}
	if file.DownloadURL == "" {
		return "", fmt.Errorf("%w: file has no download url", ErrContent)
	}
	return file.DownloadURL, nil
}

func (dl *DebridLink) ListActive(ctx context.Context) ([]ActiveItem, error) {
	token, err := dl.auth.Token(ctx)
	if err != nil {
		return nil, err
	}

	var resp debridLinkEnvelope[[]debridLinkTorrent]
	if err := getAPI(ctx, dl.client, dl.Name(), debridLinkBaseURL+"/seedbox/list", token, &resp); err != nil {
		return nil, err
	}
	if err := resp.err(); err != nil {
		return nil, err
	}

	items := make([]ActiveItem, 0, len(resp.Value))
	for _, t := range resp.Value {
		items = append(items, ActiveItem{
			Hash:     strings.ToLower(t.HashString),
			Name:     t.Name,
			Status:   debridLinkStatus(t.Status),
			Progress: t.PercentDone,
		})
	}
	return items, nil
}

func (dl *DebridLink) findTorrent(ctx context.Context, token, hash string) (*debridLinkTorrent, error) {
	var resp debridLinkEnvelope[[]debridLinkTorrent]
	if err := getAPI(ctx, dl.client, dl.Name(), debridLinkBaseURL+"/seedbox/list", token, &resp); err != nil {
		return nil, err
	}
	if err := resp.err(); err != nil {
		return nil, err
	}
	for i := range resp.Value {
		if strings.EqualFold(resp.Value[i].HashString, hash) {
			return &resp.Value[i], nil
		}
	}
	return nil, fmt.Errorf("%w: hash not in account", ErrContent)
}

// Debrid-Link seedbox statuses: 100 = downloaded, 2/4 = downloading stages,
// negatives are errors.
func debridLinkStatus(status int) JobStatus {
	switch {
	case status == 100:
		return StatusReady
	case status < 0:
		return StatusFailed
	case status >= 2:
		return StatusDownloading
	default:
		return StatusQueued
	}
}
