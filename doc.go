// Package librarian manages a library of replicated archives: directories
// that are kept in sync with other holders of the same content over a
// peer-to-peer backend.
//
// Archives are identified by a 64 character hex key. The librarian keeps at
// most one open handle per key, stores each archive under its own directory
// inside the library directory, and survives restarts by reloading handles
// from disk.
//
// Basic usage:
//
//	lib, _ := librarian.New("/var/lib/library",
//		librarian.WithBackend(backend),
//	)
//	defer lib.Close()
//
//	// Recreate handles for archives already on disk.
//	lib.Load(ctx)
//
//	// Add an archive by key or by link.
//	archive, _ := lib.Add(ctx, "4e2874bc...")
//	archive, _ = lib.Add(ctx, "archive://example.org/dataset")
//
//	// Look up a cached archive. Get never opens anything.
//	archive, err := lib.Get(ctx, "4e2874bc...")
//	if errors.Is(err, librarian.ErrNotFound) { ... }
//
//	// Enumerate and drop.
//	for _, key := range lib.List() { ... }
//	lib.Remove(ctx, "4e2874bc...")
//
// Lifecycle notifications:
//
//	stop := lib.OnAdded(func(a librarian.Archive) {
//		log.Println("added", a.Key())
//	})
//	defer stop()
//
//	lib.OnJoined(func(a librarian.Archive) { ... })
//	lib.OnRemoved(func(link string) { ... })
package librarian
