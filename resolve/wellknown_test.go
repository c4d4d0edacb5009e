package resolve

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hashbeam/librarian"
)

func wellKnownServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *WellKnownResolver) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv, WellKnown(WithPlainHTTP(), WithHTTPClient(srv.Client()))
}

func TestWellKnown_Resolves(t *testing.T) {
	t.Parallel()

	key := testKey("a")
	var gotPath string
	srv, r := wellKnownServer(t, func(w http.ResponseWriter, req *http.Request) {
		gotPath = req.URL.Path
		w.Write([]byte("archive://" + string(key) + "\nttl=300\n"))
	})

	got, err := r.Resolve(context.Background(), srv.URL+"/dataset")
	require.NoError(t, err)
	assert.Equal(t, key, got)
	assert.Equal(t, WellKnownPath, gotPath)
}

func TestWellKnown_BareKeyBody(t *testing.T) {
	t.Parallel()

	key := testKey("b")
	srv, r := wellKnownServer(t, func(w http.ResponseWriter, req *http.Request) {
		w.Write([]byte(string(key) + "\n"))
	})

	got, err := r.Resolve(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, key, got)
}

func TestWellKnown_NotPublished(t *testing.T) {
	t.Parallel()

	srv, r := wellKnownServer(t, func(w http.ResponseWriter, req *http.Request) {
		http.NotFound(w, req)
	})

	_, err := r.Resolve(context.Background(), srv.URL)
	assert.ErrorIs(t, err, librarian.ErrInvalidLink)
}

func TestWellKnown_ServerError(t *testing.T) {
	t.Parallel()

	srv, r := wellKnownServer(t, func(w http.ResponseWriter, req *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	_, err := r.Resolve(context.Background(), srv.URL)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, librarian.ErrInvalidLink)
}

func TestWellKnown_GarbageBody(t *testing.T) {
	t.Parallel()

	srv, r := wellKnownServer(t, func(w http.ResponseWriter, req *http.Request) {
		w.Write([]byte("under construction"))
	})

	_, err := r.Resolve(context.Background(), srv.URL)
	assert.ErrorIs(t, err, librarian.ErrInvalidLink)
}
