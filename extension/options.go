package extension

import (
	"log/slog"

	"github.com/xraph/authsome"
	"github.com/xraph/authsome/plugin"
	"github.com/xraph/authsome/store"
)

// ExtOption configures the Authsome Forge extension.
type ExtOption func(*Extension)

// WithStore sets the persistence backend.
func WithStore(s store.Store) ExtOption {
	return func(e *Extension) {
		e.engOpts = append(e.engOpts, authsome.WithStore(s))
	}
}

// WithConfig sets the extension configuration.
func WithConfig(cfg Config) ExtOption {
	return func(e *Extension) {
		e.config = cfg
	}
}

// WithEngineOptions adds engine-level options.
func WithEngineOptions(opts ...authsome.Option) ExtOption {
	return func(e *Extension) {
		e.engOpts = append(e.engOpts, opts...)
	}
}

// WithNotifier sets the token delivery notifier.
func WithNotifier(n authsome.Notifier) ExtOption {
	return func(e *Extension) {
		e.engOpts = append(e.engOpts, authsome.WithNotifier(n))
	}
}

// WithPlugin registers a lifecycle hook plugin.
func WithPlugin(x plugin.Plugin) ExtOption {
	return func(e *Extension) {
		e.plugins = append(e.plugins, x)
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) ExtOption {
	return func(e *Extension) {
		e.logger = l
	}
}

// WithDisableRoutes disables the registration of HTTP routes.
func WithDisableRoutes() ExtOption {
	return func(e *Extension) {
		e.config.DisableRoutes = true
	}
}

// WithDisableMigrate disables auto-migration on start.
func WithDisableMigrate() ExtOption {
	return func(e *Extension) {
		e.config.DisableMigrate = true
	}
}
