// Package users manages profiles and friendships.
package users

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/travelties/service_layer/internal/app/domain/user"
	"github.com/travelties/service_layer/internal/app/storage"
	"github.com/travelties/service_layer/internal/auth"
	"github.com/travelties/service_layer/internal/cache"
	svcerrors "github.com/travelties/service_layer/internal/errors"
	"github.com/travelties/service_layer/pkg/logger"
)

const (
	// SearchLimit caps user search results.
	SearchLimit    = 20
	maxDisplayName = 60
	maxBio         = 500
	defaultTTL     = 5 * time.Minute
)

var usernamePattern = regexp.MustCompile(`^[a-z0-9_.]{3,30}$`)

// TripCleaner removes the trips a deleted user leaves behind.
type TripCleaner interface {
	ForgetUser(ctx context.Context, userID string) error
}

// Service implements profile and friend operations.
type Service struct {
	store   storage.UserStore
	cache   cache.Cache
	ttl     time.Duration
	cleaner TripCleaner
	log     *logger.Logger
	now     func() time.Time
}

// New creates the service. A nil cache disables profile caching.
func New(store storage.UserStore, c cache.Cache, ttl time.Duration, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("users")
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Service{store: store, cache: c, ttl: ttl, log: log, now: func() time.Time { return time.Now().UTC() }}
}

// SetTripCleaner wires trip cleanup into account deletion.
func (s *Service) SetTripCleaner(c TripCleaner) { s.cleaner = c }

// RegisterInput is the body of POST /users.
type RegisterInput struct {
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl"`
	Bio         string `json:"bio"`
}

// UpdateInput carries optional profile changes.
type UpdateInput struct {
	Username    *string `json:"username"`
	DisplayName *string `json:"displayName"`
	AvatarURL   *string `json:"avatarUrl"`
	Bio         *string `json:"bio"`
}

// NormalizeUsername lowercases and validates a username.
func NormalizeUsername(raw string) (string, error) {
	name := strings.ToLower(strings.TrimSpace(raw))
	if !usernamePattern.MatchString(name) {
		return "", svcerrors.Validation("username must be 3-30 characters of a-z, 0-9, '_' or '.'")
	}
	return name, nil
}

func validateProfile(displayName, bio string) error {
	if len(displayName) > maxDisplayName {
		return svcerrors.Validation("displayName must be at most %d characters", maxDisplayName)
	}
	if len(bio) > maxBio {
		return svcerrors.Validation("bio must be at most %d characters", maxBio)
	}
	return nil
}

// Register creates the caller's profile. When a profile already exists it is
// returned unchanged and created is false.
func (s *Service) Register(ctx context.Context, id auth.Identity, in RegisterInput) (u user.User, created bool, err error) {
	existing, err := s.store.GetUser(ctx, id.UID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return user.User{}, false, svcerrors.Internal("load user", err)
	}

	username, err := NormalizeUsername(in.Username)
	if err != nil {
		return user.User{}, false, err
	}
	displayName := strings.TrimSpace(in.DisplayName)
	if displayName == "" {
		displayName = username
	}
	if err := validateProfile(displayName, in.Bio); err != nil {
		return user.User{}, false, err
	}

	u, err = s.store.CreateUser(ctx, user.User{
		ID:          id.UID,
		Username:    username,
		DisplayName: displayName,
		Email:       id.Email,
		AvatarURL:   strings.TrimSpace(in.AvatarURL),
		Bio:         in.Bio,
		Friends:     []string{},
	})
	if err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return user.User{}, false, svcerrors.Conflict("username is already taken")
		}
		return user.User{}, false, svcerrors.Internal("create user", err)
	}
	s.log.WithField("user_id", u.ID).Info("user registered")
	return u, true, nil
}

func profileKey(id string) string { return "user:" + id }

// Get returns a profile, served from cache when possible.
func (s *Service) Get(ctx context.Context, id string) (user.User, error) {
	if s.cache != nil {
		var u user.User
		if found, err := s.cache.Get(ctx, profileKey(id), &u); err != nil {
			s.log.WithError(err).Warn("read profile cache")
		} else if found {
			return u, nil
		}
	}
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return user.User{}, svcerrors.NotFound("user", id)
		}
		return user.User{}, svcerrors.Internal("load user", err)
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, profileKey(id), u, s.ttl); err != nil {
			s.log.WithError(err).Warn("write profile cache")
		}
	}
	return u, nil
}

// Public returns the public view of another user's profile.
func (s *Service) Public(ctx context.Context, id string) (user.User, error) {
	u, err := s.Get(ctx, id)
	if err != nil {
		return user.User{}, err
	}
	return u.Public(), nil
}

func (s *Service) invalidate(ctx context.Context, ids ...string) {
	if s.cache == nil || len(ids) == 0 {
		return
	}
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, profileKey(id))
	}
	if err := s.cache.Delete(ctx, keys...); err != nil {
		s.log.WithError(err).Warn("invalidate profile cache")
	}
}

// Update applies in to the caller's profile.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (user.User, error) {
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return user.User{}, svcerrors.NotFound("user", id)
		}
		return user.User{}, svcerrors.Internal("load user", err)
	}
	if in.Username != nil {
		name, err := NormalizeUsername(*in.Username)
		if err != nil {
			return user.User{}, err
		}
		u.Username = name
	}
	if in.DisplayName != nil {
		name := strings.TrimSpace(*in.DisplayName)
		if name == "" {
			return user.User{}, svcerrors.Validation("displayName cannot be empty")
		}
		u.DisplayName = name
	}
	if in.AvatarURL != nil {
		u.AvatarURL = strings.TrimSpace(*in.AvatarURL)
	}
	if in.Bio != nil {
		u.Bio = *in.Bio
	}
	if err := validateProfile(u.DisplayName, u.Bio); err != nil {
		return user.User{}, err
	}

	updated, err := s.store.UpdateUser(ctx, u)
	if err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return user.User{}, svcerrors.Conflict("username is already taken")
		}
		return user.User{}, svcerrors.Internal("update user", err)
	}
	s.invalidate(ctx, id)
	return updated, nil
}

// Search returns public profiles whose username or display name starts with
// query, excluding the caller.
func (s *Service) Search(ctx context.Context, callerID, query string) ([]user.User, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []user.User{}, nil
	}
	found, err := s.store.SearchUsers(ctx, query, SearchLimit+1)
	if err != nil {
		return nil, svcerrors.Internal("search users", err)
	}
	out := make([]user.User, 0, len(found))
	for _, u := range found {
		if u.ID == callerID {
			continue
		}
		out = append(out, u.Public())
		if len(out) == SearchLimit {
			break
		}
	}
	return out, nil
}

// Delete removes the caller's profile and cleans up their trips.
func (s *Service) Delete(ctx context.Context, id string) error {
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return svcerrors.NotFound("user", id)
		}
		return svcerrors.Internal("load user", err)
	}
	if s.cleaner != nil {
		if err := s.cleaner.ForgetUser(ctx, id); err != nil {
			return err
		}
	}
	if err := s.store.DeleteUser(ctx, id); err != nil {
		return svcerrors.Internal("delete user", err)
	}
	s.invalidate(ctx, append([]string{id}, u.Friends...)...)
	s.log.WithField("user_id", id).Info("user deleted")
	return nil
}
