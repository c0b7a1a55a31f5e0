package service

import (
	"context"
	"errors"
	"time"

	"github.com/rl1809/redis-cart/internal/core/domain"
	"github.com/rl1809/redis-cart/internal/port"
)

var ErrEmptyName = errors.New("name must not be empty")

type UserService struct {
	profiles port.ProfileRepository
}

func NewUserService(profiles port.ProfileRepository) *UserService {
	return &UserService{profiles: profiles}
}

// Save creates or updates a profile. The join date is set on first save and
// preserved afterwards; the returned profile is read back from the store so
// it reports the stored join date, not the one proposed by this call.
func (s *UserService) Save(ctx context.Context, userID, name, email string) (domain.UserProfile, error) {
	if name == "" {
		return domain.UserProfile{}, ErrEmptyName
	}
	profile := domain.UserProfile{
		UserID:   userID,
		Name:     name,
		Email:    email,
		JoinedAt: time.Now().UTC(),
	}
	if err := s.profiles.SaveProfile(ctx, profile); err != nil {
		return domain.UserProfile{}, err
	}

	stored, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		return domain.UserProfile{}, err
	}
	if stored != nil {
		return *stored, nil
	}
	return profile, nil
}

// Profile returns nil without error for an unknown user.
func (s *UserService) Profile(ctx context.Context, userID string) (*domain.UserProfile, error) {
	return s.profiles.GetProfile(ctx, userID)
}
