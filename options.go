package canopy

import "log/slog"

// DefaultCacheWeight is the default revision cache budget in bytes.
const DefaultCacheWeight = 16 << 20

// Options configures a NodeStore.
type Options struct {
	// CacheWeight bounds the revision cache by total estimated bytes.
	CacheWeight int64

	// Workspace names the journal this store reads and commits against.
	// The empty name is the shared root workspace.
	Workspace string

	// Observer receives head transition notifications. Defaults to
	// EmptyObserver; replaceable later through SetObserver.
	Observer Observer

	// Logger receives diagnostics, notably swallowed post-commit hook
	// failures. Defaults to slog.Default().
	Logger *slog.Logger
}

// Option is a functional option for configuring New.
type Option func(*Options)

func defaultOptions() *Options {
	return &Options{
		CacheWeight: DefaultCacheWeight,
		Observer:    EmptyObserver,
		Logger:      slog.Default(),
	}
}

// WithCacheWeight sets the revision cache budget in bytes.
func WithCacheWeight(n int64) Option {
	return func(o *Options) {
		if n > 0 {
			o.CacheWeight = n
		}
	}
}

// WithWorkspace binds the store to a named workspace journal.
func WithWorkspace(name string) Option {
	return func(o *Options) { o.Workspace = name }
}

// WithObserver sets the initial head transition observer.
func WithObserver(obs Observer) Option {
	return func(o *Options) {
		if obs != nil {
			o.Observer = obs
		}
	}
}

// WithLogger sets the diagnostic logger.
func WithLogger(log *slog.Logger) Option {
	return func(o *Options) {
		if log != nil {
			o.Logger = log
		}
	}
}
