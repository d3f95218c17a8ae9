package authsome

import (
	"log/slog"
	"time"

	"github.com/xraph/authsome/credential"
	"github.com/xraph/authsome/plugin"
	"github.com/xraph/authsome/store"
)

// Option is a functional option for the Engine.
type Option func(*Engine)

// WithStore sets the composite store.
func WithStore(s store.Store) Option { return func(e *Engine) { e.store = s } }

// WithCache sets the resolution cache.
func WithCache(c Cache) Option { return func(e *Engine) { e.cache = c } }

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option { return func(e *Engine) { e.logger = l } }

// WithConfig sets the engine configuration.
func WithConfig(c Config) Option { return func(e *Engine) { e.config = c } }

// WithNotifier sets the token delivery notifier.
func WithNotifier(n Notifier) Option { return func(e *Engine) { e.notifier = n } }

// WithHasher sets the password hasher.
func WithHasher(h credential.Hasher) Option { return func(e *Engine) { e.hasher = h } }

// WithClock sets the engine's time source. Used in tests to exercise
// token expiry without sleeping.
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

// WithPlugin registers a plugin with the engine. Plugins are collected
// here and the registry is built once all options have run, so hook
// errors go to the logger the engine ends up with regardless of option
// order.
func WithPlugin(x plugin.Plugin) Option {
	return func(e *Engine) { e.pluginList = append(e.pluginList, x) }
}
