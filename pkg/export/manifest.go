package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/eunmann/lasacres/pkg/fileutil"
)

// ManifestVersion is the current manifest format version.
const ManifestVersion = 1

// Manifest describes the artifacts of one exported run.
type Manifest struct {
	Version   int                 `json:"version"`
	RunID     string              `json:"run_id"`
	CreatedAt time.Time           `json:"created_at"`
	Files     map[string]FileInfo `json:"files"`
}

// FileInfo describes a single artifact.
type FileInfo struct {
	Size     int64  `json:"size"`
	Checksum string `json:"checksum"` // SHA-256 hex
}

func buildManifest(dir, runID string, created time.Time, names []string) (*Manifest, error) {
	m := &Manifest{
		Version:   ManifestVersion,
		RunID:     runID,
		CreatedAt: created,
		Files:     make(map[string]FileInfo, len(names)),
	}
	for _, name := range names {
		sum, size, err := fileutil.Checksum(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("checksum %s: %w", name, err)
		}
		m.Files[name] = FileInfo{Size: size, Checksum: sum}
	}
	return m, nil
}

// ReadManifest reads the manifest from an export directory.
func ReadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal manifest: %w", err)
	}
	return &m, nil
}

// VerifyManifest checks that all files match their recorded size and checksum.
func VerifyManifest(dir string, m *Manifest) error {
	for name, info := range m.Files {
		sum, size, err := fileutil.Checksum(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("file %s: %w", name, err)
		}
		if size != info.Size {
			return fmt.Errorf("file %s: size mismatch (got %d, want %d)", name, size, info.Size)
		}
		if sum != info.Checksum {
			return fmt.Errorf("file %s: checksum mismatch", name)
		}
	}
	return nil
}
