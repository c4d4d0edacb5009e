package librarian

import "log/slog"

// DefaultLoadConcurrency is the number of archives Load opens in parallel.
const DefaultLoadConcurrency = 4

// Options configures a Librarian.
type Options struct {
	Backend         Backend
	Resolver        Resolver
	Join            JoinOptions
	LoadConcurrency int
	Logger          *slog.Logger
}

// Option is a functional option for configuring New.
type Option func(*Options)

func defaultOptions() *Options {
	return &Options{
		Resolver:        KeyResolver(),
		Join:            DefaultJoinOptions(),
		LoadConcurrency: DefaultLoadConcurrency,
	}
}

// WithBackend sets the archive backend. A backend is required.
func WithBackend(backend Backend) Option {
	return func(o *Options) { o.Backend = backend }
}

// WithResolver replaces the default key-literal resolver.
func WithResolver(resolver Resolver) Option {
	return func(o *Options) {
		if resolver != nil {
			o.Resolver = resolver
		}
	}
}

// WithJoinOptions sets the options passed to every network join.
func WithJoinOptions(opts JoinOptions) Option {
	return func(o *Options) { o.Join = opts }
}

// WithLoadConcurrency sets how many archives Load opens in parallel.
func WithLoadConcurrency(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.LoadConcurrency = n
		}
	}
}

// WithLogger sets a logger for lifecycle and background-join events.
// If nil, logging is discarded.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) { o.Logger = logger }
}
