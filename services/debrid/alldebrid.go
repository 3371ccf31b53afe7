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
	allDebridBaseURL = "https://api.alldebrid.com/v4"
	allDebridAgent   = "mediafusion"
)

func init() {
	RegisterProvider("alldebrid", func(cfg config.DebridProviderSettings, client *http.Client) (Provider, error) {
		return NewAllDebrid(cfg, client), nil
	})
}

// AllDebrid implements the Provider contract against the AllDebrid v4 API.
// Token-only auth; every call carries the agent parameter the API requires.
type AllDebrid struct {
	auth   AuthStrategy
	client *http.Client
}

func NewAllDebrid(cfg config.DebridProviderSettings, client *http.Client) *AllDebrid {
	return &AllDebrid{auth: staticToken(strings.TrimSpace(cfg.APIKey)), client: client}
}

func (ad *AllDebrid) Name() string { return "alldebrid" }

// allDebridEnvelope is the generic status/data/error response wrapper.
type allDebridEnvelope[T any] struct {
	Status string `json:"status"`
	Data   T      `json:"data,omitempty"`
	Error  *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (e allDebridEnvelope[T]) err() error {
	if e.Status == "success" {
		return nil
	}
	if e.Error == nil {
		return fmt.Errorf("alldebrid: unknown error")
	}
	switch {
	case strings.HasPrefix(e.Error.Code, "AUTH_"):
		return fmt.Errorf("%w: alldebrid: %s", ErrAuth, e.Error.Message)
	case e.Error.Code == "MAGNET_MUST_BE_PREMIUM" || strings.Contains(e.Error.Code, "QUOTA"):
		return fmt.Errorf("%w: alldebrid: %s", ErrQuota, e.Error.Message)
	default:
		return fmt.Errorf("alldebrid %s: %s", e.Error.Code, e.Error.Message)
	}
}

type allDebridMagnet struct {
	ID       int     `json:"id"`
	Hash     string  `json:"hash"`
	Filename string  `json:"filename"`
	Status   string  `json:"status"`
	Code     int     `json:"statusCode"`
	Size     int64   `json:"size"`
	Down     int64   `json:"downloaded"`
	Links    []struct {
		Link     string `json:"link"`
		Filename string `json:"filename"`
		Size     int64  `json:"size"`
	} `json:"links,omitempty"`
}

func (ad *AllDebrid) endpoint(path string, extra url.Values) string {
	if extra == nil {
		extra = url.Values{}
	}
	extra.Set("agent", allDebridAgent)
	return fmt.Sprintf("%s%s?%s", allDebridBaseURL, path, extra.Encode())
}

func (ad *AllDebrid) Check(ctx context.Context, hashes []string) (map[string]bool, error) {
	token, err := ad.auth.Token(ctx)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	for _, hash := range hashes {
		params.Add("magnets[]", hash)
	}
	var resp allDebridEnvelope[struct {
		Magnets []struct {
			Hash    string `json:"hash"`
			Instant bool   `json:"instant"`
		} `json:"magnets"`
	}]
	if err := getAPI(ctx, ad.client, ad.Name(), ad.endpoint("/magnet/instant", params), token, &resp); err != nil {
		return nil, err
	}
	if err := resp.err(); err != nil {
		return nil, err
	}

	result := make(map[string]bool, len(hashes))
	for _, m := range resp.Data.Magnets {
		result[strings.ToLower(m.Hash)] = m.Instant
	}
	return result, nil
}

func (ad *AllDebrid) Submit(ctx context.Context, hash, magnet string) (string, error) {
	token, err := ad.auth.Token(ctx)
	if err != nil {
		return "", err
	}

	form := url.Values{}
	form.Set("magnets[]", magnet)
	var resp allDebridEnvelope[struct {
		Magnets []allDebridMagnet `json:"magnets"`
	}]
	if err := postForm(ctx, ad.client, ad.Name(), ad.endpoint("/magnet/upload", nil), token, form, &resp); err != nil {
		return "", err
	}
	if err := resp.err(); err != nil {
		return "", err
	}
	if len(resp.Data.Magnets) == 0 {
		return "", fmt.Errorf("%w: upload returned no magnet", ErrContent)
	}
	return fmt.Sprintf("%d", resp.Data.Magnets[0].ID), nil
}

func (ad *AllDebrid) Resolve(ctx context.Context, hash, fileHint string) (string, error) {
	token, err := ad.auth.Token(ctx)
	if err != nil {
		return "", err
	}

	magnet, err := ad.findMagnet(ctx, token, hash)
	if err != nil {
		return "", err
	}
	if allDebridStatus(magnet.Code) != StatusReady || len(magnet.Links) == 0 {
		return "", fmt.Errorf("%w: status %s", ErrNotReady, magnet.Status)
	}

	link := magnet.Links[0].Link
	if fileHint != "" {
		for _, l := range magnet.Links {
			if strings.EqualFold(l.Filename, fileHint) || strings.Contains(l.Filename, fileHint) {
				link = l.Link
				break
			}
		}
	}

	params := url.Values{}
	params.Set("link", link)
	var resp allDebridEnvelope[struct {
		Link string `json:"link"`
	}]
	if err := getAPI(ctx, ad.client, ad.Name(), ad.endpoint("/link/unlock", params), token, &resp); err != nil {
		return "", err
	}
	if err := resp.err(); err != nil {
		return "", err
	}
	if resp.Data.Link == "" {
		return "", fmt.Errorf("%w: unlock returned no url", ErrContent)
	}
	return resp.Data.Link, nil
}

func (ad *AllDebrid) ListActive(ctx context.Context) ([]ActiveItem, error) {
	token, err := ad.auth.Token(ctx)
	if err != nil {
		return nil, err
	}

	var resp allDebridEnvelope[struct {
		Magnets []allDebridMagnet `json:"magnets"`
	}]
	if err := getAPI(ctx, ad.client, ad.Name(), ad.endpoint("/magnet/status", nil), token, &resp); err != nil {
		return nil, err
	}
	if err := resp.err(); err != nil {
		return nil, err
	}

	items := make([]ActiveItem, 0, len(resp.Data.Magnets))
	for _, m := range resp.Data.Magnets {
		progress := 0.0
		if m.Size > 0 {
			progress = float64(m.Down) / float64(m.Size) * 100
		}
		items = append(items, ActiveItem{
			Hash:     strings.ToLower(m.Hash),
			Name:     m.Filename,
			Status:   allDebridStatus(m.Code),
			Progress: progress,
		})
	}
	return items, nil
}

func (ad *AllDebrid) findMagnet(ctx context.Context, token, hash string) (*allDebridMagnet, error) {
	var resp allDebridEnvelope[struct {
		Magnets []allDebridMagnet `json:"magnets"`
	}]
	if err := getAPI(ctx, ad.client, ad.Name(), ad.endpoint("/magnet/status", nil), token, &resp); err != nil {
		return nil, err
	}
	if err := resp.err(); err != nil {
		return nil, err
	}
	for i := range resp.Data.Magnets {
		if strings.EqualFold(resp.Data.Magnets[i].Hash, hash) {
			return &resp.Data.Magnets[i], nil
		}
	}
	return nil, fmt.Errorf("%w: hash not in account", ErrContent)
}

// AllDebrid magnet status codes: 0-3 processing, 4 ready, 5+ terminal
// failures.
func allDebridStatus(code int) JobStatus {
	switch {
	case code == 4:
		return StatusReady
	case code >= 5:
		return StatusFailed
	case code >= 1:
		return StatusDownloading
	default:
		return StatusQueued
	}
}
