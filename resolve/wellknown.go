package resolve

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/hashbeam/librarian"
)

// WellKnownPath is the path queried on a link's host.
const WellKnownPath = "/.well-known/archive"

// maxWellKnownBody caps how much of a response is read.
const maxWellKnownBody = 4096

// WellKnownResolver resolves host links by fetching
// https://<host>/.well-known/archive. The response body names the archive
// on its first line, either as a bare key or as archive://<key>; any
// further lines (such as a ttl=<seconds> hint) are ignored.
type WellKnownResolver struct {
	client *http.Client
	scheme string
}

// WellKnownOption configures a WellKnownResolver.
type WellKnownOption func(*WellKnownResolver)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(client *http.Client) WellKnownOption {
	return func(r *WellKnownResolver) {
		if client != nil {
			r.client = client
		}
	}
}

// WithPlainHTTP switches lookups to plain HTTP, for local test servers.
func WithPlainHTTP() WellKnownOption {
	return func(r *WellKnownResolver) {
		r.scheme = "http"
	}
}

// WellKnown returns a well-known HTTPS resolver.
func WellKnown(opts ...WellKnownOption) *WellKnownResolver {
	r := &WellKnownResolver{client: http.DefaultClient, scheme: "https"}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve implements librarian.Resolver.
func (r *WellKnownResolver) Resolve(ctx context.Context, link string) (librarian.Key, error) {
	authority, err := linkAuthority(link)
	if err != nil {
		return "", err
	}
	url := r.scheme + "://" + authority + WellKnownPath

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("well-known lookup: %w", err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("well-known lookup %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", fmt.Errorf("%w: %s not published", librarian.ErrInvalidLink, url)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("well-known lookup %s: unexpected status %s", url, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxWellKnownBody))
	if err != nil {
		return "", fmt.Errorf("well-known lookup %s: read body: %w", url, err)
	}

	line, _, _ := strings.Cut(strings.TrimSpace(string(body)), "\n")
	key, ok := librarian.ExtractKey(strings.TrimSpace(line))
	if !ok {
		return "", fmt.Errorf("%w: %s returned no archive key", librarian.ErrInvalidLink, url)
	}
	return key, nil
}
