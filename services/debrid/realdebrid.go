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
	realDebridBaseURL  = "https://api.real-debrid.com/rest/1.0"
	realDebridOAuthURL = "https://api.real-debrid.com/oauth/v2/token"
)

func init() {
	RegisterProvider("realdebrid", func(cfg config.DebridProviderSettings, client *http.Client) (Provider, error) {
		return NewRealDebrid(cfg, client), nil
	})
}

// RealDebrid implements the Provider contract against the Real-Debrid REST
// API. Auth runs through the OAuth device-code flow.
type RealDebrid struct {
	auth   *deviceCodeAuth
	client *http.Client
}

func NewRealDebrid(cfg config.DebridProviderSettings, client *http.Client) *RealDebrid {
	return &RealDebrid{
		auth:   newDeviceCodeAuth("realdebrid", realDebridOAuthURL, cfg, client),
		client: client,
	}
}

func (rd *RealDebrid) Name() string { return "realdebrid" }

type realDebridTorrent struct {
	ID       string   `json:"id"`
	Hash     string   `json:"hash"`
	Filename string   `json:"filename"`
	Status   string   `json:"status"`
	Progress float64  `json:"progress"`
	Links    []string `json:"links"`
}

func (rd *RealDebrid) Check(ctx context.Context, hashes []string) (map[string]bool, error) {
	token, err := rd.auth.Token(ctx)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/torrents/instantAvailability/%s", realDebridBaseURL, strings.Join(hashes, "/"))
	var payload map[string]map[string]interface{}
	if err := getAPI(ctx, rd.client, rd.Name(), endpoint, token, &payload); err != nil {
		return nil, err
	}

	result := make(map[string]bool, len(hashes))
	for _, hash := range hashes {
		variants := payload[strings.ToLower(hash)]
		result[strings.ToLower(hash)] = len(variants) > 0
	}
	return result, nil
}

func (rd *RealDebrid) Submit(ctx context.Context, hash, magnet string) (string, error) {
	token, err := rd.auth.Token(ctx)
	if err != nil {
		return "", err
	}

	// Re-adding a known hash returns the existing torrent id, so submit is
	// idempotent without a pre-check.
	form := url.Values{}
	form.Set("magnet", magnet)
	var added struct {
		ID string `json:"id"`
	}
	if err := postForm(ctx, rd.client, rd.Name(), realDebridBaseURL+"/torrents/addMagnet", token, form, &added); err != nil {
		return "", err
	}

	selectForm := url.Values{}
	selectForm.Set("files", "all")
	endpoint := fmt.Sprintf("%s/torrents/selectFiles/%s", realDebridBaseURL, url.PathEscape(added.ID))
	if err := postForm(ctx, rd.client, rd.Name(), endpoint, token, selectForm, nil); err != nil {
		return "", err
	}
	return added.ID, nil
}

func (rd *RealDebrid) Resolve(ctx context.Context, hash, fileHint string) (string, error) {
	token, err := rd.auth.Token(ctx)
	if err != nil {
		return "", err
	}

	torrent, err := rd.findTorrent(ctx, token, hash)
	if err != nil {
		return "", err
	}
	if torrent.Status != "downloaded" || len(torrent.Links) == 0 {
		return "", fmt.Errorf("%w: status %s", ErrNotReady, torrent.Status)
	}

	link := torrent.Links[0]
	if fileHint != "" {
		for _, l := range torrent.Links {
			if strings.Contains(l, fileHint) {
				link = l
				break
			}
		}
	}

	form := url.Values{}
	form.Set("link", link)
	var unrestricted struct {
		Download string `json:"download"`
	}
	if err := postForm(ctx, rd.client, rd.Name(), realDebridBaseURL+"/unrestrict/link", token, form, &unrestricted); err != nil {
		return "", err
	}
	if unrestricted.Download == "" {
		return "", fmt.Errorf("%w: unrestrict returned no url", ErrContent)
	}
	return unrestricted.Download, nil
}

func (rd *RealDebrid) ListActive(ctx context.Context) ([]ActiveItem, error) {
	token, err := rd.auth.Token(ctx)
	if err != nil {
		return nil, err
	}

	var torrents []realDebridTorrent
	if err := getAPI(ctx, rd.client, rd.Name(), realDebridBaseURL+"/torrents", token, &torrents); err != nil {
		return nil, err
	}

	items := make([]ActiveItem, 0, len(torrents))
	for _, t := range torrents {
		items = append(items, ActiveItem{
			Hash:     strings.ToLower(t.Hash),
			Name:     t.Filename,
			Status:   realDebridStatus(t.Status),
			Progress: t.Progress,
		})
	}
	return items, nil
}

func (rd *RealDebrid) findTorrent(ctx context.Context, token, hash string) (*realDebridTorrent, error) {
	var torrents []realDebridTorrent
	if err := getAPI(ctx, rd.client, rd.Name(), realDebridBaseURL+"/torrents", token, &torrents); err != nil {
		return nil, err
	}
	for i := range torrents {
		if strings.EqualFold(torrents[i].Hash, hash) {
			return &torrents[i], nil
		}
	}
	return nil, fmt.Errorf("%w: hash not in account", ErrContent)
}

func realDebridStatus(status string) JobStatus {
	switch status {
	case "downloaded":
		return StatusReady
	case "downloading", "compressing", "uploading":
		return StatusDownloading
	case "magnet_error", "error", "virus", "dead":
		return StatusFailed
	default:
		return StatusQueued
	}
}
