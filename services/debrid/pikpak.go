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

const (
	pikpakBaseURL  = "https://api-drive.mypikpak.com"
	pikpakLoginURL = "https://user.mypikpak.com/v1/auth/signin"
)

func init() {
	RegisterProvider("pikpak", func(cfg config.DebridProviderSettings, client *http.Client) (Provider, error) {
		return NewPikPak(cfg, client), nil
	})
}

// PikPak implements the Provider contract against the PikPak drive API.
// Username/password auth; offline downloads land in the drive and files are
// fetched from there. PikPak has no instant-availability endpoint, so Check
// only reports hashes already present in the drive.
type PikPak struct {
	auth   *credentialAuth
	client *http.Client
}

func NewPikPak(cfg config.DebridProviderSettings, client *http.Client) *PikPak {
	return &PikPak{
		auth:   newCredentialAuth("pikpak", pikpakLoginURL, cfg, client),
		client: client,
	}
}

func (pp *PikPak) Name() string { return "pikpak" }

type pikpakTask struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Phase    string `json:"phase"`
	Progress int    `json:"progress"`
	FileID   string `json:"file_id"`
	Params   struct {
		URL string `json:"url"`
	} `json:"params"`
}

func (pp *PikPak) Check(ctx context.Context, hashes []string) (map[string]bool, error) {
	tasks, err := pp.listTasks(ctx)
	if err != nil {
		return nil, err
	}

	byHash := make(map[string]pikpakTask, len(tasks))
	for _, task := range tasks {
		if h := hashFromMagnet(task.Params.URL); h != "" {
			byHash[h] = task
		}
	}

	result := make(map[string]bool, len(hashes))
	for _, hash := range hashes {
		task, ok := byHash[strings.ToLower(hash)]
		result[strings.ToLower(hash)] = ok && task.Phase == "PHASE_TYPE_COMPLETE"
	}
	return result, nil
}

func (pp *PikPak) Submit(ctx context.Context, hash, magnet string) (string, error) {
	payload := map[string]interface{}{
		"kind":        "drive#file",
		"upload_type": "UPLOAD_TYPE_URL",
		"url":         map[string]string{"url": magnet},
	}
	var resp struct {
		Task pikpakTask `json:"task"`
	}
	if err := pp.postJSON(ctx, pikpakBaseURL+"/drive/v1/files", payload, &resp); err != nil {
		return "", err
	}
	return resp.Task.ID, nil
}

func (pp *PikPak) Resolve(ctx context.Context, hash, fileHint string) (string, error) {
	task, err := pp.findTask(ctx, hash)
	if err != nil {
		return "", err
	}
	if task.Phase != "PHASE_TYPE_COMPLETE" || task.FileID == "" {
		return "", fmt.Errorf("%w: %s at %d%%", ErrNotReady, task.Phase, task.Progress)
	}

	token, err := pp.auth.Token(ctx)
	if err != nil {
		return "", err
	}
	var file struct {
		WebContentLink string `json:"web_content_link"`
		Medias         []struct {
			Link struct {
				URL string `json:"url"`
			} `json:"link"`
		} `json:"medias"`
	}
	endpoint := fmt.Sprintf("%s/drive/v1/files/%s", pikpakBaseURL, task.FileID)
	if err := getAPI(ctx, pp.client, pp.Name(), endpoint, token, &file); err != nil {
		return "", err
	}
	if len(file.Medias) > 0 && file.Medias[0].Link.URL != "" {
		return file.Medias[0].Link.URL, nil
	}
	if file.WebContentLink == "" {
		return "", fmt.Errorf("%w: file has no playback link", ErrContent)
	}
	return file.WebContentLink, nil
}

func (pp *PikPak) ListActive(ctx context.Context) ([]ActiveItem, error) {
	tasks, err := pp.listTasks(ctx)
	if err != nil {
		return nil, err
	}

	items := make([]ActiveItem, 0, len(tasks))
	for _, task := range tasks {
		items = append(items, ActiveItem{
			Hash:     hashFromMagnet(task.Params.URL),
			Name:     task.Name,
			Status:   pikpakStatus(task.Phase),
			Progress: float64(task.Progress),
		})
	}
	return items, nil
}

func (pp *PikPak) listTasks(ctx context.Context) ([]pikpakTask, error) {
	token, err := pp.auth.Token(ctx)
	if err != nil {
		return nil, err
	}
	var resp struct {
		Tasks []pikpakTask `json:"tasks"`
	}
	endpoint := pikpakBaseURL + "/drive/v1/tasks?type=offline"
	if err := getAPI(ctx, pp.client, pp.Name(), endpoint, token, &resp); err != nil {
		return nil, err
	}
	return resp.Tasks, nil
}

func (pp *PikPak) findTask(ctx context.Context, hash string) (*pikpakTask, error) {
	tasks, err := pp.listTasks(ctx)
	if err != nil {
		return nil, err
	}
	for i := range tasks {
		if hashFromMagnet(tasks[i].Params.URL) == strings.ToLower(hash) {
			return &tasks[i], nil
		}
	}
	return nil, fmt.Errorf("%w: hash not in drive", ErrContent)
}

func (pp *PikPak) postJSON(ctx context.Context, endpoint string, payload, out interface{}) error {
	token, err := pp.auth.Token(ctx)
	if err != nil {
		return err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode pikpak request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build pikpak request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := pp.client.Do(req)
	if err != nil {
		return fmt.Errorf("pikpak request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		// Session tokens expire; drop it so the next call logs in again.
		pp.auth.Invalidate()
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		preview, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return classifyProviderStatus(resp.StatusCode, pp.Name(), string(preview))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func pikpakStatus(phase string) JobStatus {
	switch phase {
	case "PHASE_TYPE_COMPLETE":
		return StatusReady
	case "PHASE_TYPE_RUNNING":
		return StatusDownloading
	case "PHASE_TYPE_ERROR":
		return StatusFailed
	default:
		return StatusQueued
	}
}
