package debrid

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"mediafusion/config"
)

func init() {
	RegisterProvider("p2p", func(cfg config.DebridProviderSettings, client *http.Client) (Provider, error) {
		return &P2P{}, nil
	})
}

// P2P is the no-provider fallback: the magnet itself is handed to the player
// and the client's own BitTorrent support does the rest. Everything is
// "available" since nothing is checked, and resolution is a pass-through.
type P2P struct{}

func (p *P2P) Name() string { return "p2p" }

func (p *P2P) Check(ctx context.Context, hashes []string) (map[string]bool, error) {
	result := make(map[string]bool, len(hashes))
	for _, hash := range hashes {
		result[strings.ToLower(hash)] = true
	}
	return result, nil
}

func (p *P2P) Submit(ctx context.Context, hash, magnet string) (string, error) {
	return strings.ToLower(hash), nil
}

func (p *P2P) Resolve(ctx context.Context, hash, fileHint string) (string, error) {
	if hash == "" {
		return "", fmt.Errorf("%w: no info hash", ErrContent)
	}
	return "magnet:?xt=urn:btih:" + strings.ToLower(hash), nil
}

func (p *P2P) ListActive(ctx context.Context) ([]ActiveItem, error) {
	return nil, nil
}
