package mirror

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hashbeam/librarian"
)

// ManifestName is the state file kept alongside the replicated files in
// every archive directory. It is never replicated itself.
const ManifestName = "manifest.json"

// manifestTmpPrefix names in-progress manifest writes; scan never
// replicates these either.
const manifestTmpPrefix = ManifestName + ".tmp-"

// FileInfo describes one replicated file.
type FileInfo struct {
	Digest string `json:"digest"`
	Size   int64  `json:"size"`
	Layer  string `json:"layer,omitempty"`
}

// Manifest is the persisted archive state: the file set agreed with the
// registry at the last completed sync, and the snapshot root it forms.
type Manifest struct {
	Key      librarian.Key       `json:"key"`
	Root     string              `json:"root,omitempty"`
	Files    map[string]FileInfo `json:"files,omitempty"`
	SyncedAt time.Time           `json:"synced_at,omitzero"`
}

// ReadManifest reads the state of an archive directory.
func ReadManifest(dir string) (*Manifest, error) {
	return loadManifest(dir)
}

func loadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestName))
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse %s: %w", ManifestName, err)
	}
	if m.Files == nil {
		m.Files = make(map[string]FileInfo)
	}
	return &m, nil
}

// save writes the manifest through a temp file in the archive directory
// renamed into place: readers and restarts never observe a partial write.
func (m *Manifest) save(dir string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", ManifestName, err)
	}

	f, err := os.CreateTemp(dir, manifestTmpPrefix)
	if err != nil {
		return fmt.Errorf("write %s: %w", ManifestName, err)
	}
	tmp := f.Name()
	_, err = f.Write(data)
	if err == nil {
		err = f.Chmod(0644)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(tmp, filepath.Join(dir, ManifestName))
	}
	if err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write %s: %w", ManifestName, err)
	}
	return nil
}
