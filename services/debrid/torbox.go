package debrid

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"mediafusion/config"
)

const torboxBaseURL = "https://api.torbox.app/v1/api"

func init() {
	RegisterProvider("torbox", func(cfg config.DebridProviderSettings, client *http.Client) (Provider, error) {
		return NewTorBox(cfg, client), nil
	})
}

// TorBox implements the Provider contract against the TorBox API. Token-only
// auth.
type TorBox struct {
	auth   AuthStrategy
	client *http.Client
}

func NewTorBox(cfg config.DebridProviderSettings, client *http.Client) *TorBox {
	return &TorBox{auth: staticToken(strings.TrimSpace(cfg.APIKey)), client: client}
}

func (tb *TorBox) Name() string { return "torbox" }

type torboxEnvelope[T any] struct {
	Success bool   `json:"success"`
	Detail  string `json:"detail,omitempty"`
	Data    T      `json:"data,omitempty"`
}

func (e torboxEnvelope[T]) err() error {
	if e.Success {
		return nil
	}
	detail := strings.ToLower(e.Detail)
	switch {
	case strings.Contains(detail, "auth"), strings.Contains(detail, "token"):
		return fmt.Errorf("%w: torbox: %s", ErrAuth, e.Detail)
	case strings.Contains(detail, "limit"), strings.Contains(detail, "plan"):
		return fmt.Errorf("%w: torbox: %s", ErrQuota, e.Detail)
	default:
		return fmt.Errorf("torbox: %s", e.Detail)
	}
}

type torboxTorrent struct {
	ID       int     `json:"id"`
	Hash     string  `json:"hash"`
	Name     string  `json:"name"`
	State    string  `json:"download_state"`
	Progress float64 `json:"progress"`
	Finished bool    `json:"download_finished"`
	Files    []struct {
		ID        int    `json:"id"`
		Name      string `json:"name"`
		ShortName string `json:"short_name"`
		Size      int64  `json:"size"`
	} `json:"files"`
}

func (tb *TorBox) Check(ctx context.Context, hashes []string) (map[string]bool, error) {
	token, err := tb.auth.Token(ctx)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("hash", strings.Join(hashes, ","))
	params.Set("format", "list")
	var resp torboxEnvelope[[]struct {
		Hash string `json:"hash"`
	}]
	endpoint := fmt.Sprintf("%s/torrents/checkcached?%s", torboxBaseURL, params.Encode())
	if err := getAPI(ctx, tb.client, tb.Name(), endpoint, token, &resp); err != nil {
		return nil, err
	}
	if err := resp.err(); err != nil {
		return nil, err
	}

	result := make(map[string]bool, len(hashes))
	for _, hash := range hashes {
		result[strings.ToLower(hash)] = false
	}
	for _, cached := range resp.Data {
		result[strings.ToLower(cached.Hash)] = true
	}
	return result, nil
}

func (tb *TorBox) Submit(ctx context.Context, hash, magnet string) (string, error) {
	token, err := tb.auth.Token(ctx)
	if err != nil {
		return "", err
	}

	form := url.Values{}
	form.Set("magnet", magnet)
	var resp torboxEnvelope[struct {
		TorrentID int `json:"torrent_id"`
	}]
	if err := postForm(ctx, tb.client, tb.Name(), torboxBaseURL+"/torrents/createtorrent", token, form, &resp); err != nil {
		return "", err
	}
	if err := resp.err(); err != nil {
		return "", err
	}
	return strconv.Itoa(resp.Data.TorrentID), nil
}

func (tb *TorBox) Resolve(ctx context.Context, hash, fileHint string) (string, error) {
	token, err := tb.auth.Token(ctx)
	if err != nil {
		return "", err
	}

	torrent, err := tb.findTorrent(ctx, token, hash)
	if err != nil {
		return "", err
	}
	if !torrent.Finished || len(torrent.Files) == 0 {
		return "", fmt.Errorf("%w: %s at %.0f%%", ErrNotReady, torrent.State, torrent.Progress*100)
	}

	file := torrent.Files[0]
	for _, f := range torrent.Files {
		if fileHint != "" && (strings.Contains(f.Name, fileHint) || strings.Contains(f.ShortName, fileHint)) {
			file = f
			break
		}
		if f.Size > file.Size {
			file = f
		}
	}

	params := url.Values{}
	params.Set("torrent_id", strconv.Itoa(torrent.ID))
	params.Set("file_id", strconv.Itoa(file.ID))
	var resp torboxEnvelope[string]
	endpoint := fmt.Sprintf("%s/torrents/requestdl?%s", torboxBaseURL, params.Encode())
	if err := getAPI(ctx, tb.client, tb.Name(), endpoint, token, &resp); err != nil {
		return "", err
	}
	if err := resp.err(); err != nil {
		return "", err
	}
	if resp.Data == "" {
		return "", fmt.Errorf("%w: requestdl returned no url", ErrContent)
	}
	return resp.Data, nil
}

func (tb *TorBox) ListActive(ctx context.Context) ([]ActiveItem, error) {
	token, err := tb.auth.Token(ctx)
	if err != nil {
		return nil, err
	}

	var resp torboxEnvelope[[]torboxTorrent]
	if err := getAPI(ctx, tb.client, tb.Name(), torboxBaseURL+"/torrents/mylist", token, &resp); err != nil {
		return nil, err
	}
	if err := resp.err(); err != nil {
		return nil, err
	}

	items := make([]ActiveItem, 0, len(resp.Data))
	for _, t := range resp.Data {
		items = append(items, ActiveItem{
			Hash:     strings.ToLower(t.Hash),
			Name:     t.Name,
			Status:   torboxStatus(t),
			Progress: t.Progress * 100,
		})
	}
	return items, nil
}

func (tb *TorBox) findTorrent(ctx context.Context, token, hash string) (*torboxTorrent, error) {
	var resp torboxEnvelope[[]torboxTorrent]
	if err := getAPI(ctx, tb.client, tb.Name(), torboxBaseURL+"/torrents/mylist", token, &resp); err != nil {
		return nil, err
	}
	if err := resp.err(); err != nil {
		return nil, err
	}
	for i := range resp.Data {
		if strings.EqualFold(resp.Data[i].Hash, hash) {
			return &resp.Data[i], nil
		}
	}
	return nil, fmt.Errorf("%w: hash not in account", ErrContent)
}

func torboxStatus(t torboxTorrent) JobStatus {
	switch {
	case t.Finished:
		return StatusReady
	case t.State == "error" || t.State == "stalled (no seeds)" || t.State == "failed":
		return StatusFailed
	case t.State == "downloading" || t.State == "metaDL" || t.State == "checking":
		return StatusDownloading
	default:
		return StatusQueued
	}
}
