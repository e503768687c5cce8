package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Registry composes the three engine caches behind one surface: identity
// lookups (long TTL, near-immutable bindings), player profiles, and tier
// listings. Each sub-cache keeps its own retention window from configuration.
type Registry struct {
	identity Backend[PlayerIdentity]
	profile  Backend[PlayerProfile]
	listing  Backend[Listing]
}

// RegistryOptions selects the backend and the per-cache TTLs. The zero TTLs
// are rejected so a misconfigured registry cannot silently cache nothing.
type RegistryOptions struct {
	Backend     string
	IdentityTTL time.Duration
	ProfileTTL  time.Duration
	ListingTTL  time.Duration
	Valkey      ValkeyConfig

	// Clock overrides the wall clock for the memory backend. Tests only.
	Clock func() time.Time
}

// Statistics reports active (non-expired) entry counts per sub-cache for the
// diagnostics surface.
type Statistics struct {
	Identity int64 `json:"identity"`
	Profile  int64 `json:"profile"`
	Listing  int64 `json:"listing"`
}

// NewRegistry wires the three sub-caches against the configured backend.
func NewRegistry(opts RegistryOptions) (*Registry, error) {
	if opts.IdentityTTL <= 0 || opts.ProfileTTL <= 0 || opts.ListingTTL <= 0 {
		return nil, errors.New("cache: registry requires positive TTLs")
	}

	backend := strings.TrimSpace(strings.ToLower(opts.Backend))
	switch backend {
	case "", "memory":
		identityOpts := []Option[string, PlayerIdentity]{
			WithKeyNormalizer[string, PlayerIdentity](normalizeIdentityKey),
		}
		profileOpts := []Option[string, PlayerProfile]{}
		listingOpts := []Option[string, Listing]{}
		if opts.Clock != nil {
			identityOpts = append(identityOpts, WithClock[string, PlayerIdentity](opts.Clock))
			profileOpts = append(profileOpts, WithClock[string, PlayerProfile](opts.Clock))
			listingOpts = append(listingOpts, WithClock[string, Listing](opts.Clock))
		}
		return &Registry{
			identity: NewMemory[PlayerIdentity](opts.IdentityTTL, identityOpts...),
			profile:  NewMemory[PlayerProfile](opts.ProfileTTL, profileOpts...),
			listing:  NewMemory[Listing](opts.ListingTTL, listingOpts...),
		}, nil
	case "valkey":
		identity, err := NewValkey[PlayerIdentity](opts.Valkey, "tiertrack:identity", opts.IdentityTTL)
		if err != nil {
			return nil, err
		}
		profile, err := NewValkey[PlayerProfile](opts.Valkey, "tiertrack:profile", opts.ProfileTTL)
		if err != nil {
			_ = identity.Close(context.Background())
			return nil, err
		}
		listing, err := NewValkey[Listing](opts.Valkey, "tiertrack:listing", opts.ListingTTL)
		if err != nil {
			_ = identity.Close(context.Background())
			_ = profile.Close(context.Background())
			return nil, err
		}
		return &Registry{identity: identity, profile: profile, listing: listing}, nil
	default:
		return nil, fmt.Errorf("cache: unsupported backend %q", opts.Backend)
	}
}

// normalizeIdentityKey case-folds player names so lookups are insensitive to
// how the name was typed in chat.
func normalizeIdentityKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// LookupIdentity resolves a cached name→uuid binding.
func (r *Registry) LookupIdentity(ctx context.Context, name string) (PlayerIdentity, bool, error) {
	return r.identity.Lookup(ctx, normalizeIdentityKey(name))
}

// StoreIdentity records a freshly fetched name→uuid binding.
func (r *Registry) StoreIdentity(ctx context.Context, name string, identity PlayerIdentity) error {
	return r.identity.Store(ctx, normalizeIdentityKey(name), identity)
}

// LookupProfile resolves a cached player profile by account id.
func (r *Registry) LookupProfile(ctx context.Context, playerID string) (PlayerProfile, bool, error) {
	return r.profile.Lookup(ctx, playerID)
}

// StoreProfile records a freshly fetched player profile.
func (r *Registry) StoreProfile(ctx context.Context, playerID string, profile PlayerProfile) error {
	return r.profile.Store(ctx, playerID, profile)
}

// LookupListing resolves a cached tier listing by mode or filter name.
func (r *Registry) LookupListing(ctx context.Context, mode string) (Listing, bool, error) {
	return r.listing.Lookup(ctx, mode)
}

// StoreListing records a freshly fetched tier listing.
func (r *Registry) StoreListing(ctx context.Context, mode string, listing Listing) error {
	return r.listing.Store(ctx, mode, listing)
}

// ClearAll empties every sub-cache unconditionally. Backs the manual
// cache-reset action.
func (r *Registry) ClearAll(ctx context.Context) error {
	var errs []error
	for _, clear := range []func(context.Context) error{r.identity.Clear, r.profile.Clear, r.listing.Clear} {
		if err := clear(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Stats collects active-entry counts per sub-cache.
func (r *Registry) Stats(ctx context.Context) (Statistics, error) {
	identity, err := r.identity.ActiveCount(ctx)
	if err != nil {
		return Statistics{}, err
	}
	profile, err := r.profile.ActiveCount(ctx)
	if err != nil {
		return Statistics{}, err
	}
	listing, err := r.listing.ActiveCount(ctx)
	if err != nil {
		return Statistics{}, err
	}
	return Statistics{Identity: identity, Profile: profile, Listing: listing}, nil
}

// Close releases backend resources.
func (r *Registry) Close(ctx context.Context) error {
	var errs []error
	for _, close := range []func(context.Context) error{r.identity.Close, r.profile.Close, r.listing.Close} {
		if err := close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
