package mirror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/name"
	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/empty"
	"github.com/google/go-containerregistry/pkg/v1/mutate"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	"github.com/google/go-containerregistry/pkg/v1/remote/transport"
	"github.com/sourcegraph/conc/pool"
)

// Config labels carrying the published snapshot.
const (
	rootLabel  = "dev.librarian.root"
	filesLabel = "dev.librarian.files"
)

func (a *archive) fetchImage(ctx context.Context) (v1.Image, error) {
	img, err := retry(ctx, 3, func() (v1.Image, error) {
		return remote.Image(a.ref, a.mirror.remoteOptions(ctx, a.ref)...)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch image: %w", err)
	}
	return img, nil
}

// imageState reads the snapshot a published image carries in its config
// labels.
func imageState(img v1.Image) (string, map[string]FileInfo, error) {
	cfg, err := img.ConfigFile()
	if err != nil {
		return "", nil, fmt.Errorf("get config: %w", err)
	}

	root := cfg.Config.Labels[rootLabel]
	if root == "" {
		return "", nil, fmt.Errorf("missing %s label", rootLabel)
	}

	files := make(map[string]FileInfo)
	if filesJSON := cfg.Config.Labels[filesLabel]; filesJSON != "" {
		if err := json.Unmarshal([]byte(filesJSON), &files); err != nil {
			return "", nil, fmt.Errorf("parse %s label: %w", filesLabel, err)
		}
	}
	return root, files, nil
}

// downloadLayers fetches and unpacks the layers named in needed, in
// parallel.
func (a *archive) downloadLayers(ctx context.Context, img v1.Image, needed map[string]bool) (map[string][]byte, error) {
	layers, err := img.Layers()
	if err != nil {
		return nil, fmt.Errorf("get layers: %w", err)
	}

	var wanted []v1.Layer
	for _, layer := range layers {
		digest, err := layer.Digest()
		if err != nil {
			continue
		}
		if needed[digest.String()] {
			wanted = append(wanted, layer)
		}
	}

	var mu sync.Mutex
	files := make(map[string][]byte)

	p := pool.New().WithMaxGoroutines(a.mirror.concurrency).WithContext(ctx).WithCancelOnError()

	for _, layer := range wanted {
		p.Go(func(ctx context.Context) error {
			rc, err := layer.Uncompressed()
			if err != nil {
				return fmt.Errorf("read layer: %w", err)
			}
			data, err := io.ReadAll(rc)
			if cerr := rc.Close(); cerr != nil {
				return fmt.Errorf("close layer: %w", cerr)
			}
			if err != nil {
				return fmt.Errorf("read layer: %w", err)
			}

			blobs, err := unpackFiles(data)
			if err != nil {
				return fmt.Errorf("unpack layer: %w", err)
			}

			mu.Lock()
			for path, content := range blobs {
				files[path] = content
			}
			mu.Unlock()
			return nil
		})
	}

	if err := p.Wait(); err != nil {
		return nil, err
	}
	return files, nil
}

func buildImage(layers []v1.Layer, root string, files map[string]FileInfo) (v1.Image, error) {
	img := empty.Image

	if len(layers) > 0 {
		var err error
		img, err = mutate.AppendLayers(img, layers...)
		if err != nil {
			return nil, err
		}
	}

	cfg, err := img.ConfigFile()
	if err != nil {
		return nil, err
	}

	filesJSON, err := json.Marshal(files)
	if err != nil {
		return nil, err
	}
	cfg.Config.Labels = map[string]string{
		rootLabel:  root,
		filesLabel: string(filesJSON),
	}

	return mutate.ConfigFile(img, cfg)
}

func (a *archive) writeImage(ctx context.Context, img v1.Image) error {
	options := a.mirror.remoteOptions(ctx, a.ref)
	options = append(options, remote.WithJobs(a.mirror.concurrency))
	_, err := retry(ctx, 3, func() (struct{}, error) {
		return struct{}{}, remote.Write(a.ref, img, options...)
	})
	if err != nil {
		return fmt.Errorf("push image: %w", err)
	}
	return nil
}

func (m *Mirror) remoteOptions(ctx context.Context, ref name.Reference) []remote.Option {
	options := []remote.Option{remote.WithContext(ctx)}
	if m.auth != nil {
		username, password, err := m.auth.Authenticate(ref.Context().RegistryStr())
		if err == nil && username != "" {
			return append(options, remote.WithAuth(&authn.Basic{
				Username: username,
				Password: password,
			}))
		}
	}
	return append(options, remote.WithAuthFromKeychain(authn.DefaultKeychain))
}

func isNotFound(err error) bool {
	var terr *transport.Error
	return errors.As(err, &terr) && terr.StatusCode == http.StatusNotFound
}

func retry[T any](ctx context.Context, maxAttempts int, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error
	for i := range maxAttempts {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		// 4xx answers are definitive, except for rate limiting.
		var terr *transport.Error
		if errors.As(err, &terr) &&
			terr.StatusCode >= 400 && terr.StatusCode < 500 &&
			terr.StatusCode != http.StatusTooManyRequests {
			break
		}

		if i < maxAttempts-1 {
			delay := time.Duration(1<<i) * 500 * time.Millisecond // 500ms, 1s, 2s
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return zero, lastErr
}
