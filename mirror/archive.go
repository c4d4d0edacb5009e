package mirror

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/go-containerregistry/pkg/name"
	v1 "github.com/google/go-containerregistry/pkg/v1"

	"github.com/hashbeam/librarian"
)

// archive is one replicated directory. Join runs the first sync round in
// the caller's context and then keeps syncing in the background until
// Close.
type archive struct {
	mirror *Mirror
	key    librarian.Key
	dir    string
	ref    name.Reference

	// life spans Open to Close; canceling it interrupts in-flight sync
	// I/O and stops the background loop.
	life context.Context
	stop context.CancelFunc

	// roundMu serializes sync rounds; manifest and directory contents are
	// only touched while holding it.
	roundMu  sync.Mutex
	manifest *Manifest

	mu      sync.Mutex
	closed  bool
	started bool
	done    chan struct{}
}

var _ librarian.Archive = (*archive)(nil)

func (a *archive) Key() librarian.Key { return a.key }
func (a *archive) Path() string       { return a.dir }

// Join runs one sync round and, on success, starts the background sync
// loop. The round honors opts: Lookup pulls the published snapshot into
// the directory, Announce publishes the local snapshot.
func (a *archive) Join(ctx context.Context, opts librarian.JoinOptions) error {
	if err := a.syncRound(ctx, opts); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed || a.started {
		return nil
	}
	a.started = true
	go a.syncLoop(a.life, opts)
	return nil
}

func (a *archive) syncLoop(ctx context.Context, opts librarian.JoinOptions) {
	defer close(a.done)

	ticker := time.NewTicker(a.mirror.syncEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := a.syncRound(ctx, opts); err != nil {
				if ctx.Err() != nil {
					return
				}
				a.mirror.log().Warn("sync round failed", "key", a.key, "error", err)
			}
		}
	}
}

// Close interrupts any in-flight sync round, stops the background loop,
// and flushes the manifest. Close is idempotent.
func (a *archive) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	started := a.started
	a.mu.Unlock()

	a.stop()
	if started {
		<-a.done
	}

	a.roundMu.Lock()
	defer a.roundMu.Unlock()
	return a.manifest.save(a.dir)
}

// syncRound scans the directory, applies the published snapshot (Lookup),
// publishes local changes (Announce), and persists the manifest. The round
// aborts when either ctx or the archive's lifetime ends.
func (a *archive) syncRound(ctx context.Context, opts librarian.JoinOptions) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer context.AfterFunc(a.life, cancel)()

	a.roundMu.Lock()
	defer a.roundMu.Unlock()

	a.mu.Lock()
	closed := a.closed
	a.mu.Unlock()
	if closed {
		return ErrClosed
	}

	snap, err := scan(a.dir)
	if err != nil {
		return fmt.Errorf("scan archive: %w", err)
	}

	if opts.Lookup {
		if err := a.pull(ctx, snap); err != nil {
			return fmt.Errorf("pull: %w", err)
		}
	}
	if opts.Announce {
		if err := a.push(ctx, snap); err != nil {
			return fmt.Errorf("push: %w", err)
		}
	}

	a.manifest.SyncedAt = time.Now().UTC()
	return a.manifest.save(a.dir)
}

// pull fetches the published snapshot and applies it to the directory:
// changed files are downloaded, files dropped from the published set are
// removed unless they were modified locally. snap is updated to the
// post-pull state.
func (a *archive) pull(ctx context.Context, snap *snapshot) error {
	img, err := a.fetchImage(ctx)
	if err != nil {
		if isNotFound(err) {
			// Nothing published: clear the synced root so the next
			// announce carries the full snapshot.
			a.manifest.Root = ""
			return nil
		}
		return err
	}

	remoteRoot, remoteFiles, err := imageState(img)
	if err != nil {
		return err
	}

	if remoteRoot != snap.root {
		// Three way diff against the last synced state: the published side
		// wins for paths it changed, the local side wins for paths only it
		// changed.
		needed := make(map[string]bool)
		var changed []string
		for path, remote := range remoteFiles {
			if !validPath(path) {
				return fmt.Errorf("published snapshot names invalid path %q", path)
			}
			local, hasLocal := snap.files[path]
			if hasLocal && local.Digest == remote.Digest {
				continue
			}
			if base, synced := a.manifest.Files[path]; synced && base.Digest == remote.Digest {
				// Unchanged remotely since the last sync; any local edit
				// or deletion stands.
				continue
			}
			changed = append(changed, path)
			needed[remote.Layer] = true
		}

		if len(changed) > 0 {
			blobs, err := a.downloadLayers(ctx, img, needed)
			if err != nil {
				return err
			}
			for _, path := range changed {
				content, ok := blobs[path]
				if !ok {
					return fmt.Errorf("published layers missing %q", path)
				}
				if err := writeFile(a.dir, path, content); err != nil {
					return err
				}
				snap.files[path] = remoteFiles[path]
				snap.data[path] = content
			}
		}

		// Deletions: gone from the published set and unchanged locally
		// since the last sync.
		for path, prev := range a.manifest.Files {
			if _, ok := remoteFiles[path]; ok {
				continue
			}
			local, ok := snap.files[path]
			if !ok || local.Digest != prev.Digest {
				continue
			}
			if err := removeFile(a.dir, path); err != nil {
				return err
			}
			delete(snap.files, path)
			delete(snap.data, path)
		}

		snap.root = snapshotRoot(snap.files)
		a.mirror.log().Debug("pulled snapshot", "key", a.key, "root", remoteRoot, "changed", len(changed))
	}

	a.manifest.Root = remoteRoot
	a.manifest.Files = remoteFiles
	return nil
}

// push publishes the current snapshot when it differs from the last
// synced one. The full file set is packed so the pushed image is
// self-contained; the registry skips blobs it already has.
func (a *archive) push(ctx context.Context, snap *snapshot) error {
	if snap.root == a.manifest.Root || len(snap.files) == 0 {
		return nil
	}

	plan := planLayers(snap.files)
	layers := make([]v1.Layer, 0, len(plan))
	files := make(map[string]FileInfo, len(snap.files))
	for _, group := range plan {
		layer := newFileLayer(packFiles(group, snap.data), a.mirror.encoder)
		digest, err := layer.Digest()
		if err != nil {
			return fmt.Errorf("layer digest: %w", err)
		}
		layers = append(layers, layer)
		for _, path := range group {
			info := snap.files[path]
			info.Layer = digest.String()
			files[path] = info
		}
	}

	img, err := buildImage(layers, snap.root, files)
	if err != nil {
		return fmt.Errorf("build image: %w", err)
	}
	if err := a.writeImage(ctx, img); err != nil {
		return err
	}

	a.manifest.Root = snap.root
	a.manifest.Files = files
	a.mirror.log().Debug("announced snapshot", "key", a.key, "root", snap.root, "layers", len(layers))
	return nil
}
