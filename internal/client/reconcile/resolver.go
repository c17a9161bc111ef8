package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"golang.org/x/sync/singleflight"

	"github.com/contested-app/contested/internal/client/api"
	"github.com/contested-app/contested/internal/logging"
)

// ProfileType is the resolved kind of profile a user has.
type ProfileType string

const (
	ProfileAthlete  ProfileType = "athlete"
	ProfileBusiness ProfileType = "business"
	// ProfileNone means no profile could be determined. Consumers render
	// a role-neutral view; it is never an error.
	ProfileNone ProfileType = ""
)

// Resolution is the outcome of a profile resolve.
type Resolution struct {
	Type     ProfileType
	Complete bool
}

// ProfileAPI is the slice of the REST API the resolver needs. api.Client
// implements it.
type ProfileAPI interface {
	DetectRole(ctx context.Context, accessToken string) (profileType string, missing bool, err error)
	GetProfile(ctx context.Context, accessToken string) (*api.Profile, error)
	CreateProfile(ctx context.Context, accessToken string, payload api.ProfilePayload) (*api.Profile, error)
	CreateBusinessProfile(ctx context.Context, accessToken string, userID uint64, payload api.ProfilePayload) (*api.Profile, error)
}

// Resolver determines a user's profile type by walking a chain of
// avenues, each a fallback for the previous one:
//
//  1. the server's detect-role endpoint,
//  2. the role recorded on the user plus a direct profile fetch,
//  3. lazily creating a minimal profile for a user whose role is known
//     but whose profile row is missing,
//  4. ProfileNone.
//
// Every avenue failure is logged and degrades to the next; resolution
// never returns an error.
type Resolver struct {
	api   ProfileAPI
	log   logging.Logger
	group singleflight.Group
}

// NewResolver builds a resolver. log may be nil.
func NewResolver(papi ProfileAPI, log logging.Logger) *Resolver {
	if log == nil {
		log = logging.Nop()
	}
	return &Resolver{api: papi, log: log}
}

// Resolve walks the avenue chain for user.
func (rv *Resolver) Resolve(ctx context.Context, user *api.User, accessToken string) Resolution {
	if user == nil || accessToken == "" {
		return Resolution{}
	}

	// Avenue 1: the server figures it out from its own tables.
	pt, missing, err := rv.api.DetectRole(ctx, accessToken)
	if err == nil {
		switch {
		case !missing && (pt == string(ProfileAthlete) || pt == string(ProfileBusiness)):
			complete := rv.completeness(ctx, accessToken)
			return Resolution{Type: ProfileType(pt), Complete: complete}
		case missing && (pt == string(ProfileAthlete) || pt == string(ProfileBusiness)):
			// The role is known but the profile row is absent.
			return rv.lazyCreate(ctx, user, accessToken, ProfileType(pt))
		}
	} else {
		rv.log.Warn(ctx, "detect-role unavailable; falling back to local role", "error", err)
	}

	// Avenue 2: role from the user record, existence from a direct fetch.
	role := userRole(user)
	if role == ProfileAthlete || role == ProfileBusiness {
		prof, perr := rv.api.GetProfile(ctx, accessToken)
		if perr == nil && prof != nil {
			return Resolution{Type: role, Complete: prof.Complete}
		}
		if errors.Is(perr, api.ErrNotFound) {
			// Avenue 3: create the missing profile.
			return rv.lazyCreate(ctx, user, accessToken, role)
		}
		rv.log.Warn(ctx, "profile fetch failed", "role", string(role), "error", perr)
	}

	// Avenue 4: unknown. The caller renders a role-neutral view.
	return Resolution{Type: ProfileNone}
}

// lazyCreate creates a minimal (incomplete) profile for the user's role.
// Concurrent resolves for the same user share one create call.
func (rv *Resolver) lazyCreate(ctx context.Context, user *api.User, accessToken string, role ProfileType) Resolution {
	key := strconv.FormatUint(user.ID, 10)
	_, err, _ := rv.group.Do(key, func() (any, error) {
		switch role {
		case ProfileBusiness:
			_, cerr := rv.api.CreateBusinessProfile(ctx, accessToken, user.ID, api.ProfilePayload{})
			return nil, cerr
		default:
			_, cerr := rv.api.CreateProfile(ctx, accessToken, api.ProfilePayload{})
			return nil, cerr
		}
	})
	if err != nil && !errors.Is(err, api.ErrConflict) {
		// A conflict means another client won the race, which is fine.
		rv.log.Warn(ctx, "lazy profile creation failed", "role", string(role), "error", err)
		return Resolution{Type: ProfileNone}
	}
	return Resolution{Type: role, Complete: false}
}

// completeness fetches the profile purely for its completion flag.
func (rv *Resolver) completeness(ctx context.Context, accessToken string) bool {
	prof, err := rv.api.GetProfile(ctx, accessToken)
	if err != nil || prof == nil {
		return false
	}
	return prof.Complete
}

// userRole extracts the role from the user record, preferring the
// explicit column and falling back to signup metadata.
func userRole(user *api.User) ProfileType {
	role := user.Role
	if role == "" && user.Metadata != nil {
		switch v := user.Metadata["role"].(type) {
		case string:
			role = v
		default:
			role = fmt.Sprint(v)
		}
	}
	switch role {
	case string(ProfileAthlete):
		return ProfileAthlete
	case string(ProfileBusiness):
		return ProfileBusiness
	}
	return ProfileNone
}
