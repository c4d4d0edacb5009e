// Package resolve provides link resolvers for the librarian: DNS TXT
// records, HTTPS well-known lookups, resolver chaining, and memoization.
//
// All resolvers map a link such as "example.org" or
// "archive://example.org/dataset" to an archive key. They compose with
// the librarian's built-in key extraction:
//
//	lib, _ := librarian.New(dir,
//		librarian.WithBackend(backend),
//		librarian.WithResolver(resolve.Chain(
//			librarian.KeyResolver(),
//			resolve.Memo(resolve.DNS(), time.Minute, 1024),
//			resolve.WellKnown(),
//		)),
//	)
package resolve

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/hashbeam/librarian"
)

// Chain returns a resolver that tries each resolver in order and returns
// the first successful resolution. When every resolver fails the errors
// are joined.
func Chain(resolvers ...librarian.Resolver) librarian.Resolver {
	return librarian.ResolverFunc(func(ctx context.Context, link string) (librarian.Key, error) {
		errs := make([]error, 0, len(resolvers))
		for _, r := range resolvers {
			key, err := r.Resolve(ctx, link)
			if err == nil {
				return key, nil
			}
			errs = append(errs, err)
			if ctx.Err() != nil {
				break
			}
		}
		if len(errs) == 0 {
			return "", fmt.Errorf("%w: empty resolver chain", librarian.ErrInvalidLink)
		}
		return "", errors.Join(errs...)
	})
}

// linkAuthority extracts the host[:port] part of a link, stripping an
// optional scheme and anything after the authority.
func linkAuthority(link string) (string, error) {
	s := link
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}
	if s == "" {
		return "", fmt.Errorf("%w: no host in %q", librarian.ErrInvalidLink, link)
	}
	return s, nil
}

// stripPort removes a trailing port from an authority, if present.
func stripPort(authority string) string {
	host, _, err := net.SplitHostPort(authority)
	if err != nil {
		return authority
	}
	return host
}
