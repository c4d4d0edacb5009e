package resolve

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hashbeam/librarian"
)

// fakeTXT serves TXT records from a map and records queried names.
type fakeTXT struct {
	records map[string][]string

	mu      sync.Mutex
	queried []string
}

func (f *fakeTXT) lookup(ctx context.Context, name string) ([]string, error) {
	f.mu.Lock()
	f.queried = append(f.queried, name)
	f.mu.Unlock()

	records, ok := f.records[name]
	if !ok {
		return nil, &net.DNSError{Err: "no such host", Name: name, IsNotFound: true}
	}
	return records, nil
}

func TestDNS_ResolvesArchiveSubdomain(t *testing.T) {
	t.Parallel()

	key := testKey("a")
	txt := &fakeTXT{records: map[string][]string{
		"_archive.example.org": {
			"v=spf1 -all",
			"archivekey=" + string(key),
		},
	}}
	r := DNS(WithLookup(txt.lookup))

	got, err := r.Resolve(context.Background(), "example.org")
	require.NoError(t, err)
	assert.Equal(t, key, got)
	assert.Equal(t, []string{"_archive.example.org"}, txt.queried)
}

func TestDNS_FallsBackToHost(t *testing.T) {
	t.Parallel()

	key := testKey("b")
	txt := &fakeTXT{records: map[string][]string{
		"example.org": {"archivekey=" + string(key)},
	}}
	r := DNS(WithLookup(txt.lookup))

	got, err := r.Resolve(context.Background(), "example.org")
	require.NoError(t, err)
	assert.Equal(t, key, got)
	assert.Equal(t, []string{"_archive.example.org", "example.org"}, txt.queried)
}

func TestDNS_StripsSchemeAndPort(t *testing.T) {
	t.Parallel()

	key := testKey("c")
	txt := &fakeTXT{records: map[string][]string{
		"_archive.example.org": {"archivekey=" + string(key)},
	}}
	r := DNS(WithLookup(txt.lookup))

	got, err := r.Resolve(context.Background(), "archive://example.org:8443/dataset")
	require.NoError(t, err)
	assert.Equal(t, key, got)
}

func TestDNS_NoRecords(t *testing.T) {
	t.Parallel()

	r := DNS(WithLookup((&fakeTXT{}).lookup))

	_, err := r.Resolve(context.Background(), "example.org")
	assert.ErrorIs(t, err, librarian.ErrInvalidLink)
}

func TestDNS_IgnoresMalformedRecords(t *testing.T) {
	t.Parallel()

	txt := &fakeTXT{records: map[string][]string{
		"_archive.example.org": {"archivekey=not-a-key"},
		"example.org":          {"unrelated"},
	}}
	r := DNS(WithLookup(txt.lookup))

	_, err := r.Resolve(context.Background(), "example.org")
	assert.ErrorIs(t, err, librarian.ErrInvalidLink)
}

func TestDNS_LookupFailurePassesThrough(t *testing.T) {
	t.Parallel()

	lookupErr := errors.New("servfail")
	r := DNS(WithLookup(func(ctx context.Context, name string) ([]string, error) {
		return nil, lookupErr
	}))

	_, err := r.Resolve(context.Background(), "example.org")
	assert.ErrorIs(t, err, lookupErr)
	assert.NotErrorIs(t, err, librarian.ErrInvalidLink)
}
