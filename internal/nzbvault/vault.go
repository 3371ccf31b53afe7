// Package nzbvault stores uploaded NZB payloads as blobs. Uploads are
// validated before anything touches disk; stored entries are addressed by a
// generated GUID and served back through a configurable public URL prefix.
package nzbvault

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/javi11/nzbparser"
	"github.com/spf13/afero"

	"mediafusion/config"
)

// ErrNotFound is returned when no blob exists for a GUID.
var ErrNotFound = errors.New("nzbvault: not found")

// ErrInvalidPayload marks uploads that are not usable NZB documents.
var ErrInvalidPayload = errors.New("nzbvault: invalid payload")

// Entry describes one stored NZB.
type Entry struct {
	GUID     string `json:"guid"`
	Name     string `json:"name"`
	Size     int64  `json:"size"`     // payload bytes on disk
	Files    int    `json:"files"`    // files inside the NZB
	Segments int    `json:"segments"` // total article segments
	Bytes    int64  `json:"bytes"`    // content size the segments add up to
}

// Vault is the blob store. The filesystem backend is pluggable; local disk in
// production, in-memory in tests.
type Vault struct {
	fs           afero.Fs
	publicPrefix string
}

// New builds a vault from settings. The "local" backend roots an OS
// filesystem at the configured directory; "memory" keeps blobs in process,
// for tests and throwaway setups.
func New(cfg config.NZBVaultSettings) (*Vault, error) {
	prefix := strings.TrimRight(cfg.PublicURLPrefix, "/")
	switch cfg.Backend {
	case "", "local":
		dir := cfg.Directory
		if dir == "" {
			dir = "data/nzb"
		}
		base := afero.NewOsFs()
		if err := base.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create nzb vault directory: %w", err)
		}
		return &Vault{fs: afero.NewBasePathFs(base, dir), publicPrefix: prefix}, nil
	case "memory":
		return &Vault{fs: afero.NewMemMapFs(), publicPrefix: prefix}, nil
	default:
		return nil, fmt.Errorf("unknown nzb vault backend %q", cfg.Backend)
	}
}

// Put validates and stores a payload, returning the entry with its new GUID.
// Rejected payloads never reach the backend.
func (v *Vault) Put(payload []byte, name string) (*Entry, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: empty upload", ErrInvalidPayload)
	}
	if detected := mimetype.Detect(payload); !detected.Is("application/x-nzb") && !detected.Is("text/xml") {
		return nil, fmt.Errorf("%w: got %s, want an NZB document", ErrInvalidPayload, detected)
	}

	parsed, err := nzbparser.Parse(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if len(parsed.Files) == 0 {
		return nil, fmt.Errorf("%w: no files", ErrInvalidPayload)
	}

	entry := &Entry{
		GUID:  uuid.NewString(),
		Name:  sanitizeName(name),
		Size:  int64(len(payload)),
		Files: len(parsed.Files),
	}
	for _, file := range parsed.Files {
		entry.Segments += len(file.Segments)
		for _, segment := range file.Segments {
			entry.Bytes += int64(segment.Bytes)
		}
	}
	if entry.Segments == 0 {
		return nil, fmt.Errorf("%w: no segments", ErrInvalidPayload)
	}

	if err := afero.WriteFile(v.fs, v.blobPath(entry.GUID), payload, 0o640); err != nil {
		return nil, fmt.Errorf("store nzb %s: %w", entry.GUID, err)
	}
	log.Printf("[nzbvault] stored %s name=%q files=%d segments=%d", entry.GUID, entry.Name, entry.Files, entry.Segments)
	return entry, nil
}

// Get returns the stored payload for a GUID.
func (v *Vault) Get(guid string) ([]byte, error) {
	if !validGUID(guid) {
		return nil, ErrNotFound
	}
	data, err := afero.ReadFile(v.fs, v.blobPath(guid))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read nzb %s: %w", guid, err)
	}
	return data, nil
}

// Delete removes a blob. Deleting a missing GUID is not an error.
func (v *Vault) Delete(guid string) error {
	if !validGUID(guid) {
		return nil
	}
	err := v.fs.Remove(v.blobPath(guid))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete nzb %s: %w", guid, err)
	}
	return nil
}

// PublicURL renders the externally reachable URL for a stored blob, or the
// bare vault path when no prefix is configured.
func (v *Vault) PublicURL(guid string) string {
	p := "/nzb/" + guid
	if v.publicPrefix == "" {
		return p
	}
	return v.publicPrefix + p
}

func (v *Vault) blobPath(guid string) string {
	return path.Join("blobs", guid+".nzb")
}

// validGUID keeps path traversal out of the backend.
func validGUID(guid string) bool {
	_, err := uuid.Parse(guid)
	return err == nil
}

// sanitizeName reduces an upload name to a safe release-style filename.
func sanitizeName(name string) string {
	name = strings.TrimSpace(name)
	if strings.HasSuffix(strings.ToLower(name), ".nzb") {
		name = name[:len(name)-len(".nzb")]
	}
	if name == "" {
		return "upload.nzb"
	}
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.' || r == '-' || r == '_':
			return r
		case r == ' ':
			return '.'
		default:
			return -1
		}
	}, name)
	if safe == "" {
		safe = "upload"
	}
	return safe + ".nzb"
}
