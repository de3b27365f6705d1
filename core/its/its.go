// Package its looks up member profiles in the ITS directory.
package its

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/umoorsehhat/sehhat/core"
)

var (
	ErrInvalidITSID    = core.NewValidationError(errors.New("invalid ITS ID"), core.FieldError{Field: "its_id", Error: "ITS ID must be exactly 8 digits"})
	ErrProfileNotFound = core.NewNotFoundError("ITS profile")
)

type (
	Profile struct {
		ITSID         string `json:"its_id"`
		FullName      string `json:"full_name"`
		Prefix        string `json:"prefix"`
		FirstName     string `json:"first_name"`
		LastName      string `json:"last_name"`
		ArabicName    string `json:"arabic_name"`
		Gender        string `json:"gender"`
		Age           int    `json:"age"`
		Email         string `json:"email"`
		Mobile        string `json:"mobile"`
		Address       string `json:"address"`
		City          string `json:"city"`
		Country       string `json:"country"`
		Jamaat        string `json:"jamaat"`
		Jamiat        string `json:"jamiat"`
		Occupation    string `json:"occupation"`
		Qualification string `json:"qualification"`
		Category      string `json:"category"`
	}

	// Provider returns the directory profile of an ITS ID.
	// Implementations return ErrInvalidITSID for malformed IDs and ErrProfileNotFound for unknown ones.
	Provider interface {
		Lookup(ctx context.Context, itsID string) (Profile, error)
	}

	// Cache stores raw profiles between lookups.
	Cache interface {
		Get(ctx context.Context, key string) ([]byte, bool, error)
		Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	}
)

func parseID(itsID string) (int64, error) {
	if !core.IsValidITSID(itsID) {
		return 0, ErrInvalidITSID
	}
	return strconv.ParseInt(itsID, 10, 64)
}

// CachedProvider serves lookups from a Cache, falling back to the wrapped Provider.
type CachedProvider struct {
	provider Provider
	cache    Cache
	ttl      time.Duration
	logger   core.Logger
}

func NewCachedProvider(provider Provider, cache Cache, ttl time.Duration, logger core.Logger) *CachedProvider {
	return &CachedProvider{provider: provider, cache: cache, ttl: ttl, logger: logger}
}

func cacheKey(itsID string) string { return "its:profile:" + itsID }

func (p *CachedProvider) Lookup(ctx context.Context, itsID string) (Profile, error) {
	if _, err := parseID(itsID); err != nil {
		return Profile{}, err
	}

	key := cacheKey(itsID)
	if data, ok, err := p.cache.Get(ctx, key); err != nil {
		p.logger.Warn("reading ITS cache", err)
	} else if ok {
		var profile Profile
		if err = json.Unmarshal(data, &profile); err == nil {
			return profile, nil
		}
		p.logger.Warn("decoding cached ITS profile", err)
	}

	profile, err := p.provider.Lookup(ctx, itsID)
	if err != nil {
		return Profile{}, err
	}
	if data, err := json.Marshal(profile); err == nil {
		if err = p.cache.Set(ctx, key, data, p.ttl); err != nil {
			p.logger.Warn("writing ITS cache", err)
		}
	}
	return profile, nil
}
