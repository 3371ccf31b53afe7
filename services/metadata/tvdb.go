package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"mediafusion/models"
)

const tvdbBaseURL = "https://api4.thetvdb.com/v4"

// tvdbClient speaks the TVDB v4 API. The API key is exchanged for a bearer
// token on first use; tokens last about a month, so one login per process is
// plenty.
type tvdbClient struct {
	apiKey   string
	language string
	httpc    *http.Client

	loginMu sync.Mutex
	token   string
}

func newTVDBClient(apiKey, language string, httpc *http.Client) *tvdbClient {
	return &tvdbClient{
		apiKey:   strings.TrimSpace(apiKey),
		language: language,
		httpc:    httpc,
	}
}

func (c *tvdbClient) isConfigured() bool {
	return c != nil && c.apiKey != ""
}

func (c *tvdbClient) login(ctx context.Context) (string, error) {
	c.loginMu.Lock()
	defer c.loginMu.Unlock()
	if c.token != "" {
		return c.token, nil
	}

	payload := strings.NewReader(fmt.Sprintf(`{"apikey":%q}`, c.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tvdbBaseURL+"/login", payload)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("tvdb login failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("tvdb login returned %s", resp.Status)
	}

	var body struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode tvdb login response: %w", err)
	}
	c.token = body.Data.Token
	return c.token, nil
}

func (c *tvdbClient) doGET(ctx context.Context, endpoint string, v interface{}) error {
	token, err := c.login(ctx)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("tvdb request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("tvdb request returned %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

type tvdbSearchResult struct {
	Data []struct {
		Name         string            `json:"name"`
		Overview     string            `json:"overview"`
		Year         string            `json:"year"`
		ImageURL     string            `json:"image_url"`
		Genres       []string          `json:"genres"`
		Translations map[string]string `json:"translations"`
		Aliases      []string          `json:"aliases"`
	} `json:"data"`
}

// fetch searches TVDB by remote IMDb id. TVDB's strength is series data and
// non-English aliases.
func (c *tvdbClient) fetch(ctx context.Context, kind models.MediaKind, imdbID string) (*providerMeta, error) {
	if !c.isConfigured() {
		return nil, nil
	}

	params := url.Values{}
	params.Set("remote_id", imdbID)
	var result tvdbSearchResult
	endpoint := fmt.Sprintf("%s/search/remoteid/%s?%s", tvdbBaseURL, url.PathEscape(imdbID), params.Encode())
	if err := c.doGET(ctx, endpoint, &result); err != nil {
		return nil, err
	}
	if len(result.Data) == 0 {
		return nil, nil
	}

	entry := result.Data[0]
	meta := &providerMeta{
		Provider:    "tvdb",
		Title:       entry.Name,
		Description: entry.Overview,
		Genres:      entry.Genres,
		AKATitles:   entry.Aliases,
		Images:      map[string]string{},
	}
	if entry.ImageURL != "" {
		meta.Images["poster"] = entry.ImageURL
	}
	if t, err := time.Parse("2006", entry.Year); err == nil {
		meta.Year = t.Year()
	}
	for _, translated := range entry.Translations {
		if translated != "" && translated != entry.Name {
			meta.AKATitles = append(meta.AKATitles, translated)
		}
	}
	return meta, nil
}
