//go:build integration

package integration

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/hashbeam/librarian"
	"github.com/hashbeam/librarian/mirror"
)

var (
	registryOnce sync.Once
	registryAddr string
	registryErr  error
)

// getRegistry returns the shared registry address, starting the container
// if needed. The container is shared across all tests for performance.
func getRegistry(tb testing.TB) string {
	tb.Helper()

	if os.Getenv("SKIP_DOCKER_TESTS") == "1" {
		tb.Skip("SKIP_DOCKER_TESTS is set")
	}

	registryOnce.Do(func() {
		ctx := context.Background()
		registryAddr, registryErr = startRegistryContainer(ctx)
	})

	if registryErr != nil {
		tb.Fatalf("start registry container: %v", registryErr)
	}

	return registryAddr
}

func startRegistryContainer(ctx context.Context) (string, error) {
	req := testcontainers.ContainerRequest{
		Image:        "registry:2",
		ExposedPorts: []string{"5000/tcp"},
		WaitingFor:   wait.ForHTTP("/v2/").WithPort("5000/tcp").WithStatusCodeMatcher(isOKStatus),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return "", fmt.Errorf("start registry container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return "", fmt.Errorf("resolve registry host: %w", err)
	}

	port, err := container.MappedPort(ctx, "5000/tcp")
	if err != nil {
		return "", fmt.Errorf("resolve registry port: %w", err)
	}

	return fmt.Sprintf("%s:%s", host, port.Port()), nil
}

func isOKStatus(status int) bool {
	return status >= 200 && status < 300
}

// newTestMirror creates a mirror pointed at the shared test registry. Each
// test gets its own repository prefix to avoid collisions.
func newTestMirror(tb testing.TB, opts ...mirror.Option) *mirror.Mirror {
	tb.Helper()

	prefix := fmt.Sprintf("%s/test-%d", getRegistry(tb), time.Now().UnixNano())
	allOpts := append([]mirror.Option{mirror.WithPlainHTTP()}, opts...)

	m, err := mirror.New(prefix, allOpts...)
	require.NoError(tb, err, "create test mirror")
	return m
}

func newTestLibrary(tb testing.TB, backend librarian.Backend) *librarian.Librarian {
	tb.Helper()

	lib, err := librarian.New(tb.TempDir(), librarian.WithBackend(backend))
	require.NoError(tb, err, "create test library")
	tb.Cleanup(func() { lib.Close() })
	return lib
}

func createTestFiles(tb testing.TB, dir string, files map[string][]byte) {
	tb.Helper()
	for path, content := range files {
		fullPath := filepath.Join(dir, path)
		require.NoError(tb, os.MkdirAll(filepath.Dir(fullPath), 0o755))
		require.NoError(tb, os.WriteFile(fullPath, content, 0o644))
	}
}

// assertDirContents verifies that a directory contains the expected files.
func assertDirContents(tb testing.TB, dir string, expected map[string][]byte) {
	tb.Helper()

	for path, expectedContent := range expected {
		fullPath := filepath.Join(dir, path)
		gotContent, err := os.ReadFile(fullPath)
		require.NoError(tb, err, "ReadFile(%q)", fullPath)
		require.Equal(tb, expectedContent, gotContent, "content mismatch for %q", path)
	}
}

// waitJoined registers for join notifications and returns a function that
// blocks until an archive has joined.
func waitJoined(tb testing.TB, lib *librarian.Librarian) func() librarian.Archive {
	tb.Helper()

	joined := make(chan librarian.Archive, 1)
	stop := lib.OnJoined(func(a librarian.Archive) {
		select {
		case joined <- a:
		default:
		}
	})
	tb.Cleanup(stop)

	return func() librarian.Archive {
		select {
		case a := <-joined:
			return a
		case <-time.After(30 * time.Second):
			tb.Fatal("archive never joined")
			return nil
		}
	}
}

// smallArchive is a simple flat archive with 3 small files.
var smallArchive = map[string][]byte{
	"hello.txt":   []byte("Hello, World!"),
	"readme.md":   []byte("# Test Archive\n\nThis is a test."),
	"config.json": []byte(`{"version": 1, "name": "test"}`),
}

// nestedArchive contains nested directories.
var nestedArchive = map[string][]byte{
	"root.txt":        []byte("root file"),
	"dir1/a.txt":      []byte("file a in dir1"),
	"dir1/sub/c.txt":  []byte("file c in dir1/sub"),
	"dir2/deep/y.txt": []byte("file y in dir2/deep"),
}
