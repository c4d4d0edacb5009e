package librarian

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/sourcegraph/conc/pool"
	"golang.org/x/sync/singleflight"
)

// Librarian tracks a set of replicated archives: an in-memory cache of open
// handles keyed by archive key, backed by one directory per key under the
// library directory. The network side of every archive (peer discovery and
// replication) is delegated to the configured Backend; the librarian only
// manages lifecycle, caching, and notifications.
type Librarian struct {
	dir      string
	backend  Backend
	resolver Resolver
	joinOpts JoinOptions
	logger   *slog.Logger
	loadConc int

	mu       sync.RWMutex
	archives map[Key]Archive

	locks    *keyLock           // per-key add/remove exclusion
	resolves singleflight.Group // collapses concurrent resolutions per link

	added   observerSet[Archive]
	joined  observerSet[Archive]
	removed observerSet[string]
}

// New creates a Librarian rooted at dir, creating the directory if needed.
// A backend must be configured with WithBackend; everything else has
// defaults.
func New(dir string, opts ...Option) (*Librarian, error) {
	if dir == "" {
		return nil, ErrNoDirectory
	}

	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}
	if options.Backend == nil {
		return nil, ErrNoBackend
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create library directory: %w", err)
	}

	return &Librarian{
		dir:      dir,
		backend:  options.Backend,
		resolver: options.Resolver,
		joinOpts: options.Join,
		logger:   options.Logger,
		loadConc: options.LoadConcurrency,
		archives: make(map[Key]Archive),
		locks:    newKeyLock(),
	}, nil
}

// Dir returns the library directory.
func (l *Librarian) Dir() string { return l.dir }

// ArchivePath returns the directory an archive with the given key occupies
// (or would occupy) inside the library.
func (l *Librarian) ArchivePath(key Key) string {
	return filepath.Join(l.dir, string(key))
}

// Add resolves link and returns the archive for the resolved key, opening
// and caching it first if needed. Add is idempotent: every call for links
// resolving to the same key observes the same handle, and the backend is
// asked to open a key at most once even under concurrent callers.
//
// Add returns as soon as the handle is cached. Network participation is
// started on a background goroutine and reported through OnJoined; a failed
// join is logged and does not undo the add.
func (l *Librarian) Add(ctx context.Context, link string) (Archive, error) {
	key, err := l.resolve(ctx, link)
	if err != nil {
		return nil, err
	}

	archive, opened, err := l.open(ctx, key)
	if err != nil {
		return nil, err
	}
	if opened {
		l.log().Debug("archive added", "key", key)
		l.added.emit(archive)
		go l.join(archive)
	}
	return archive, nil
}

// Get returns the cached archive for link. A link that is literally a
// cached key short-circuits resolution; otherwise the link is resolved
// first. Get never opens an archive: a miss is ErrNotFound.
func (l *Librarian) Get(ctx context.Context, link string) (Archive, error) {
	if key, err := ParseKey(link); err == nil {
		if archive, ok := l.lookup(key); ok {
			return archive, nil
		}
	}

	key, err := l.resolve(ctx, link)
	if err != nil {
		return nil, err
	}
	archive, ok := l.lookup(key)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return archive, nil
}

// Remove resolves link, closes the cached archive, forgets it, and deletes
// its directory. Removing a link whose archive was never added fails with
// ErrNotFound. If deleting the directory fails, the handle stays closed and
// evicted: the files survive on disk but the key is gone from List until a
// later Load or Add.
func (l *Librarian) Remove(ctx context.Context, link string) error {
	key, err := l.resolve(ctx, link)
	if err != nil {
		return err
	}
	if err := l.removeKey(key); err != nil {
		return err
	}
	l.log().Debug("archive removed", "key", key, "link", link)
	l.removed.emit(link)
	return nil
}

// Load recreates handles for every archive directory found in the library:
// directories whose leading 64 characters form a key are re-added using
// their name as the link. Archives load concurrently; the first failure
// cancels the rest and aborts the load.
func (l *Librarian) Load(ctx context.Context) error {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return fmt.Errorf("read library directory: %w", err)
	}

	p := pool.New().WithMaxGoroutines(l.loadConc).WithContext(ctx).WithCancelOnError()

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name := entry.Name()
		if _, ok := leadingKey(name); !ok {
			continue
		}
		p.Go(func(ctx context.Context) error {
			_, err := l.Add(ctx, name)
			return err
		})
	}

	return p.Wait()
}

// List returns a snapshot of the cached archive keys in lexical order.
func (l *Librarian) List() []Key {
	l.mu.RLock()
	defer l.mu.RUnlock()

	keys := make([]Key, 0, len(l.archives))
	for key := range l.archives {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}

// Len returns the number of cached archives.
func (l *Librarian) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.archives)
}

// Close closes every cached handle, for process shutdown. Entries stay
// cached so List still reports them, and directories are untouched: a new
// Librarian pointed at the same directory restores the set with Load.
func (l *Librarian) Close() error {
	l.mu.RLock()
	archives := make([]Archive, 0, len(l.archives))
	for _, archive := range l.archives {
		archives = append(archives, archive)
	}
	l.mu.RUnlock()

	var errs []error
	for _, archive := range archives {
		if err := archive.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close archive %s: %w", archive.Key(), err))
		}
	}
	return errors.Join(errs...)
}

// resolve maps link to a key via the configured resolver, collapsing
// concurrent resolutions of the same link onto one call.
func (l *Librarian) resolve(ctx context.Context, link string) (Key, error) {
	v, err, _ := l.resolves.Do(link, func() (any, error) {
		return l.resolver.Resolve(ctx, link)
	})
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", link, err)
	}
	return v.(Key), nil
}

// open returns the cached handle for key, or opens and caches a new one.
// The per-key lock spans check, open, and insert, so concurrent callers for
// one key collapse onto a single backend open. opened reports whether this
// call created the handle.
func (l *Librarian) open(ctx context.Context, key Key) (_ Archive, opened bool, _ error) {
	l.locks.lock(key)
	defer l.locks.unlock(key)

	if archive, ok := l.lookup(key); ok {
		return archive, false, nil
	}

	archive, err := l.backend.Open(ctx, l.ArchivePath(key), key)
	if err != nil {
		return nil, false, fmt.Errorf("open archive %s: %w", key, err)
	}

	l.mu.Lock()
	l.archives[key] = archive
	l.mu.Unlock()
	return archive, true, nil
}

// removeKey closes, evicts, and deletes under the key lock. The handle is
// closed before its directory is deleted; eviction sits in between so no
// caller can observe a cached-but-closed entry.
func (l *Librarian) removeKey(key Key) error {
	l.locks.lock(key)
	defer l.locks.unlock(key)

	archive, ok := l.lookup(key)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}

	if err := archive.Close(); err != nil {
		return fmt.Errorf("close archive %s: %w", key, err)
	}

	l.mu.Lock()
	delete(l.archives, key)
	l.mu.Unlock()

	if err := os.RemoveAll(l.ArchivePath(key)); err != nil {
		return fmt.Errorf("delete archive %s: %w", key, err)
	}
	return nil
}

// join runs network participation for one archive, detached from the Add
// that triggered it. Closing the archive interrupts it.
func (l *Librarian) join(archive Archive) {
	if err := archive.Join(context.Background(), l.joinOpts); err != nil {
		l.log().Warn("network join failed", "key", archive.Key(), "error", err)
		return
	}
	l.log().Debug("archive joined network", "key", archive.Key())
	l.joined.emit(archive)
}

func (l *Librarian) lookup(key Key) (Archive, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	archive, ok := l.archives[key]
	return archive, ok
}

func (l *Librarian) log() *slog.Logger {
	if l.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return l.logger
}
