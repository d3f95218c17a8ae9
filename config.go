package authsome

import (
	"time"

	"github.com/xraph/authsome/token"
)

// Config holds configuration for the engine.
type Config struct {
	// CacheTTL is the time-to-live for cached resolutions.
	// Zero means no caching.
	CacheTTL time.Duration `json:"cache_ttl,omitempty"`

	// TokenTTL maps each workflow to its token lifetime. A missing entry
	// falls back to the defaults; only validate-email tokens may live
	// forever (zero lifetime).
	TokenTTL map[token.Type]time.Duration `json:"token_ttl,omitempty"`

	// BcryptCost is the cost parameter for the default password hasher.
	// Zero means the bcrypt default.
	BcryptCost int `json:"bcrypt_cost,omitempty"`
}

// defaultTokenTTL holds the per-workflow token lifetimes. Validate-email
// tokens never expire: a stale validation link is harmless and dead links
// in old mails generate support load.
var defaultTokenTTL = map[token.Type]time.Duration{
	token.TypeInvite:              7 * 24 * time.Hour,
	token.TypeValidateEmail:       0,
	token.TypeAcceptTerms:         30 * 24 * time.Hour,
	token.TypeAcceptPrivacyPolicy: 30 * 24 * time.Hour,
	token.TypeResetPassword:       2 * time.Hour,
	token.TypeChangePassword:      2 * time.Hour,
	token.TypeChangeEmail:         24 * time.Hour,
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	ttl := make(map[token.Type]time.Duration, len(defaultTokenTTL))
	for t, d := range defaultTokenTTL {
		ttl[t] = d
	}
	return Config{TokenTTL: ttl}
}

// ttlFor returns the lifetime for a token type. For combined bitmasks the
// shortest lifetime among the set bits wins, and any expiring bit beats a
// never-expiring one.
func (c Config) ttlFor(typ token.Type) time.Duration {
	shortest := time.Duration(-1)
	for _, bit := range typ.Bits() {
		d, ok := c.TokenTTL[bit]
		if !ok {
			d = defaultTokenTTL[bit]
		}
		if d == 0 && bit == token.TypeValidateEmail {
			continue
		}
		if d <= 0 {
			d = defaultTokenTTL[bit]
		}
		if shortest < 0 || d < shortest {
			shortest = d
		}
	}
	if shortest < 0 {
		return 0
	}
	return shortest
}
