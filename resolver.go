package librarian

import (
	"context"
	"fmt"
)

// Resolver translates a user-supplied link into an archive key. Links may
// be keys themselves or named addresses that need a network lookup; the
// librarian never inspects links beyond handing them to its resolver.
type Resolver interface {
	Resolve(ctx context.Context, link string) (Key, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(ctx context.Context, link string) (Key, error)

func (f ResolverFunc) Resolve(ctx context.Context, link string) (Key, error) {
	return f(ctx, link)
}

// KeyResolver resolves links that already carry their key: bare keys,
// archive directory names, and links with an embedded key. It performs no
// network I/O and fails with ErrInvalidLink for anything else. It is the
// default resolver; the resolve package builds chains that fall back to
// DNS and well-known HTTPS lookups for named addresses.
func KeyResolver() Resolver {
	return ResolverFunc(func(_ context.Context, link string) (Key, error) {
		if key, ok := ExtractKey(link); ok {
			return key, nil
		}
		return "", fmt.Errorf("%w: %q", ErrInvalidLink, link)
	})
}
