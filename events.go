package librarian

import "sync"

// OnAdded registers fn to run whenever an archive handle enters the cache,
// including handles recreated by Load. The returned function removes the
// registration; calling it more than once is harmless.
func (l *Librarian) OnAdded(fn func(Archive)) (remove func()) {
	return l.added.add(fn)
}

// OnJoined registers fn to run when an archive completes its first network
// discovery round. Joining happens on a background goroutine, so fn runs
// there too, some time after the corresponding OnAdded notification.
func (l *Librarian) OnJoined(fn func(Archive)) (remove func()) {
	return l.joined.add(fn)
}

// OnRemoved registers fn to run after an archive has been closed, evicted,
// and deleted from disk. fn receives the link the caller passed to Remove,
// not the resolved key.
func (l *Librarian) OnRemoved(fn func(link string)) (remove func()) {
	return l.removed.add(fn)
}

// observerSet is a registry of callbacks for one notification kind.
// Callbacks run synchronously on the goroutine that emits, after the state
// transition they describe and outside the librarian's locks.
type observerSet[T any] struct {
	mu   sync.Mutex
	next int
	fns  map[int]func(T)
}

func (o *observerSet[T]) add(fn func(T)) (remove func()) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.fns == nil {
		o.fns = make(map[int]func(T))
	}
	id := o.next
	o.next++
	o.fns[id] = fn
	return func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		delete(o.fns, id)
	}
}

func (o *observerSet[T]) emit(v T) {
	o.mu.Lock()
	fns := make([]func(T), 0, len(o.fns))
	for _, fn := range o.fns {
		fns = append(fns, fn)
	}
	o.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}
