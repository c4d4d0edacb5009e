package resolve

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/hashbeam/librarian"
)

// txtPrefix marks TXT records that carry an archive key.
const txtPrefix = "archivekey="

// LookupTXT is the TXT query function used by the DNS resolver. It matches
// the signature of (*net.Resolver).LookupTXT.
type LookupTXT func(ctx context.Context, name string) ([]string, error)

// DNSResolver resolves host links through DNS TXT records. For a link
// naming <host> it queries _archive.<host> and then <host> itself, and
// returns the key of the first record of the form
//
//	archivekey=<64 hex characters>
type DNSResolver struct {
	lookup LookupTXT
}

// DNSOption configures a DNSResolver.
type DNSOption func(*DNSResolver)

// WithLookup replaces the TXT query function, usually with a fake in tests.
func WithLookup(fn LookupTXT) DNSOption {
	return func(r *DNSResolver) {
		if fn != nil {
			r.lookup = fn
		}
	}
}

// DNS returns a TXT record resolver backed by net.DefaultResolver.
func DNS(opts ...DNSOption) *DNSResolver {
	r := &DNSResolver{lookup: net.DefaultResolver.LookupTXT}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve implements librarian.Resolver.
func (r *DNSResolver) Resolve(ctx context.Context, link string) (librarian.Key, error) {
	authority, err := linkAuthority(link)
	if err != nil {
		return "", err
	}
	host := stripPort(authority)

	for _, name := range []string{"_archive." + host, host} {
		records, err := r.lookup(ctx, name)
		if err != nil {
			var dnsErr *net.DNSError
			if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
				continue
			}
			return "", fmt.Errorf("lookup %s: %w", name, err)
		}
		for _, record := range records {
			v, ok := strings.CutPrefix(record, txtPrefix)
			if !ok {
				continue
			}
			key, err := librarian.ParseKey(strings.TrimSpace(v))
			if err != nil {
				continue
			}
			return key, nil
		}
	}
	return "", fmt.Errorf("%w: no archive key in TXT records for %s", librarian.ErrInvalidLink, host)
}
