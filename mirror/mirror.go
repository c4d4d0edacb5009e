// Package mirror replicates archives through an OCI registry. Each
// archive maps to a repository named by its discovery topic under a
// common prefix; holders of the same key sync against the same
// repository without the key appearing on the wire.
//
// The registry image for an archive carries the snapshot in its config
// labels and the file contents in zstd compressed layers, so unchanged
// content is neither re-uploaded nor re-downloaded.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/go-containerregistry/pkg/name"
	"github.com/klauspost/compress/zstd"

	"github.com/hashbeam/librarian"
)

const (
	DefaultConcurrency  = 4
	DefaultSyncInterval = time.Minute
	DefaultCompression  = 2
)

// ErrClosed is returned when an archive is used after Close.
var ErrClosed = errors.New("mirror: archive closed")

// Mirror is a librarian.Backend backed by an OCI registry.
type Mirror struct {
	prefix      string
	auth        Authenticator
	plainHTTP   bool
	concurrency int
	syncEvery   time.Duration
	compression int
	encoder     *zstd.Encoder
	logger      *slog.Logger
}

var _ librarian.Backend = (*Mirror)(nil)

// Option configures a Mirror.
type Option func(*Mirror)

// WithAuth sets registry credentials. Without it the system keychain is
// consulted, like docker does.
func WithAuth(auth Authenticator) Option {
	return func(m *Mirror) { m.auth = auth }
}

// WithPlainHTTP talks to the registry over plain HTTP, for local test
// registries.
func WithPlainHTTP() Option {
	return func(m *Mirror) { m.plainHTTP = true }
}

// WithConcurrency sets the number of parallel layer transfers.
func WithConcurrency(n int) Option {
	return func(m *Mirror) {
		if n > 0 {
			m.concurrency = n
		}
	}
}

// WithSyncInterval sets the cadence of background sync rounds.
func WithSyncInterval(d time.Duration) Option {
	return func(m *Mirror) {
		if d > 0 {
			m.syncEvery = d
		}
	}
}

// WithCompression sets the zstd level: 1 fastest, 2 default, 3 best.
func WithCompression(level int) Option {
	return func(m *Mirror) { m.compression = level }
}

// WithLogger sets the logger. Without it the mirror is silent.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Mirror) { m.logger = logger }
}

// New creates a Mirror pushing and pulling under the given repository
// prefix, e.g. "ttl.sh/archives" or "localhost:5000/archives".
func New(registry string, opts ...Option) (*Mirror, error) {
	if registry == "" {
		return nil, errors.New("mirror: empty registry prefix")
	}

	m := &Mirror{
		prefix:      strings.TrimSuffix(registry, "/"),
		concurrency: DefaultConcurrency,
		syncEvery:   DefaultSyncInterval,
		compression: DefaultCompression,
	}
	for _, opt := range opts {
		opt(m)
	}

	encoder, err := newEncoder(m.compression)
	if err != nil {
		return nil, fmt.Errorf("mirror: create encoder: %w", err)
	}
	m.encoder = encoder

	// Parse once with a dummy topic so a bad prefix fails here, not in Open.
	if _, err := m.reference(librarian.Key(strings.Repeat("0", librarian.KeyLen))); err != nil {
		return nil, fmt.Errorf("mirror: invalid registry prefix %q: %w", registry, err)
	}
	return m, nil
}

// Open prepares dir as a replica of the archive identified by key. The
// directory is created if needed; existing state is picked up from the
// manifest. Open performs no network I/O, replication starts with Join.
func (m *Mirror) Open(ctx context.Context, dir string, key librarian.Key) (librarian.Archive, error) {
	ref, err := m.reference(key)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create archive directory: %w", err)
	}

	manifest, err := loadManifest(dir)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		manifest = &Manifest{Key: key, Files: make(map[string]FileInfo)}
		if err := manifest.save(dir); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	case manifest.Key != key:
		return nil, fmt.Errorf("mirror: %s holds archive %s, not %s", dir, manifest.Key, key)
	}

	life, stop := context.WithCancel(context.Background())
	return &archive{
		mirror:   m,
		key:      key,
		dir:      dir,
		ref:      ref,
		life:     life,
		stop:     stop,
		manifest: manifest,
		done:     make(chan struct{}),
	}, nil
}

// reference builds the registry reference for a key, tag "latest".
func (m *Mirror) reference(key librarian.Key) (name.Reference, error) {
	topic, err := Topic(key)
	if err != nil {
		return nil, err
	}
	opts := []name.Option{name.WithDefaultTag("latest")}
	if m.plainHTTP {
		opts = append(opts, name.Insecure)
	}
	return name.ParseReference(m.prefix+"/"+topic, opts...)
}

func (m *Mirror) log() *slog.Logger {
	if m.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return m.logger
}
