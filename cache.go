package authsome

import "context"

// Cache provides caching for authorization resolutions.
type Cache interface {
	// Get returns a cached resolution, if available.
	Get(ctx context.Context, organisationID string, req *AuthRequest) (*Resolution, bool)

	// Set stores a resolution in the cache.
	Set(ctx context.Context, organisationID string, req *AuthRequest, res *Resolution)

	// InvalidateOrganisation removes all cached resolutions for an
	// organisation.
	InvalidateOrganisation(ctx context.Context, organisationID string)

	// InvalidateAccount removes all cached resolutions for an account.
	InvalidateAccount(ctx context.Context, organisationID, accountID string)
}
