package resolve

import (
	"context"
	"sync"
	"time"

	"github.com/hashbeam/librarian"
)

// MemoResolver caches successful resolutions of another resolver for a
// fixed TTL. Failures are never cached. When the cache is full an
// arbitrary entry is evicted.
type MemoResolver struct {
	next librarian.Resolver
	ttl  time.Duration
	max  int

	mu    sync.RWMutex
	items map[string]memoEntry
}

type memoEntry struct {
	key     librarian.Key
	expires time.Time
}

// Memo wraps next with a resolution cache of at most max entries, each
// valid for ttl.
func Memo(next librarian.Resolver, ttl time.Duration, max int) *MemoResolver {
	return &MemoResolver{
		next:  next,
		ttl:   ttl,
		max:   max,
		items: make(map[string]memoEntry),
	}
}

// Resolve implements librarian.Resolver.
func (r *MemoResolver) Resolve(ctx context.Context, link string) (librarian.Key, error) {
	if key, ok := r.get(link); ok {
		return key, nil
	}
	key, err := r.next.Resolve(ctx, link)
	if err != nil {
		return "", err
	}
	r.add(link, key)
	return key, nil
}

// Forget drops the cached resolution for link, forcing the next Resolve
// through to the underlying resolver.
func (r *MemoResolver) Forget(link string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, link)
}

func (r *MemoResolver) get(link string) (librarian.Key, bool) {
	r.mu.RLock()
	entry, ok := r.items[link]
	r.mu.RUnlock()
	if !ok || time.Now().After(entry.expires) {
		return "", false
	}
	return entry.key, true
}

func (r *MemoResolver) add(link string, key librarian.Key) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.items) >= r.max {
		for k := range r.items {
			delete(r.items, k)
			break
		}
	}
	r.items[link] = memoEntry{key: key, expires: time.Now().Add(r.ttl)}
}
