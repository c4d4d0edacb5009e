package librarian

import "context"

// Backend materializes archives on local disk and connects them to their
// replication network. The librarian treats backends as opaque: it hands
// over a directory and a key, and receives a handle it then owns.
//
// Implementations must tolerate Open being called for a directory that
// already holds a previous session's data for the same key.
type Backend interface {
	// Open opens or creates the archive for key, storing its data under
	// dir. The directory may not exist yet; its contents are owned by
	// the backend's storage format.
	Open(ctx context.Context, dir string, key Key) (Archive, error)
}

// Archive is an open handle to one archive: its local storage plus its
// network replication state. Handles are created by a Backend and owned
// by the Librarian that cached them; nothing else should close them.
type Archive interface {
	// Key returns the archive's key.
	Key() Key

	// Path returns the directory holding the archive's data.
	Path() string

	// Join announces the archive to its replication network and blocks
	// until the first discovery round completes. Replication continues
	// in the background until Close; Close interrupts an in-flight Join.
	Join(ctx context.Context, opts JoinOptions) error

	// Close releases the archive's network and file resources. It is
	// idempotent and valid even if Join was never called.
	Close() error
}

// JoinOptions control how an archive participates in its network. They are
// configured once on the Librarian and passed verbatim to every Join.
type JoinOptions struct {
	// Announce offers local state to the network.
	Announce bool

	// Lookup searches the network for remote state.
	Lookup bool
}

// DefaultJoinOptions announce and look up.
func DefaultJoinOptions() JoinOptions {
	return JoinOptions{Announce: true, Lookup: true}
}
