package mirror

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// snapshot is the content of an archive directory at one point in time.
type snapshot struct {
	root  string
	files map[string]FileInfo
	data  map[string][]byte
}

// scan reads every replicated file under dir. File paths are slash
// separated and relative to dir; the manifest and its temp files are
// excluded.
func scan(dir string) (*snapshot, error) {
	files := make(map[string]FileInfo)
	data := make(map[string][]byte)

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel == ManifestName || strings.HasPrefix(rel, manifestTmpPrefix) {
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", rel, err)
		}
		sum := sha256.Sum256(content)
		files[rel] = FileInfo{
			Digest: "sha256:" + hex.EncodeToString(sum[:]),
			Size:   int64(len(content)),
		}
		data[rel] = content
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &snapshot{root: snapshotRoot(files), files: files, data: data}, nil
}

// snapshotRoot hashes a file set into a single comparable root: sha256
// over the sorted path/digest lines. An empty set has no root.
func snapshotRoot(files map[string]FileInfo) string {
	if len(files) == 0 {
		return ""
	}

	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	h := sha256.New()
	for _, p := range paths {
		fmt.Fprintf(h, "%s %s\n", p, files[p].Digest)
	}
	return "sha256:" + hex.EncodeToString(h.Sum(nil))
}

// validPath reports whether a replicated file path is safe to write under
// an archive directory. Absolute paths, traversal and the manifest's
// reserved names are rejected.
func validPath(path string) bool {
	if path == "" || path == "." || path == ManifestName ||
		strings.HasPrefix(path, manifestTmpPrefix) {
		return false
	}
	if strings.HasPrefix(path, "/") {
		return false
	}
	return fs.ValidPath(path)
}

func writeFile(dir, path string, data []byte) error {
	full := filepath.Join(dir, filepath.FromSlash(path))
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(full, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func removeFile(dir, path string) error {
	err := os.Remove(filepath.Join(dir, filepath.FromSlash(path)))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}
