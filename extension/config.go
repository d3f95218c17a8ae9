package extension

import "time"

// Config holds the Authsome extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.authsome" or "authsome" keys).
type Config struct {
	// DisableRoutes prevents HTTP route registration.
	DisableRoutes bool `json:"disable_routes" mapstructure:"disable_routes" yaml:"disable_routes"`

	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// CacheTTL is the lifetime of cached authorization resolutions.
	// Zero disables the in-memory resolution cache.
	CacheTTL time.Duration `json:"cache_ttl" mapstructure:"cache_ttl" yaml:"cache_ttl"`

	// BcryptCost is the cost parameter for the default password hasher.
	// Zero means the bcrypt default.
	BcryptCost int `json:"bcrypt_cost" mapstructure:"bcrypt_cost" yaml:"bcrypt_cost"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		CacheTTL: 5 * time.Minute,
	}
}
