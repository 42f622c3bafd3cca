package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"alcyxob/routine-coach/internal/domain"
	"alcyxob/routine-coach/internal/repository"
)

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrInvalidProfile = errors.New("invalid profile")
)

// ProfileView is a user's profile with the values derived from it.
type ProfileView struct {
	User *domain.User
	Age  *int
	BMI  *BMI
}

// ProfileService reads and updates the caller's profile.
type ProfileService interface {
	GetProfile(ctx context.Context, userID string) (*ProfileView, error)
	UpdateProfile(ctx context.Context, userID string, profile domain.Profile) (*ProfileView, error)
}

type profileService struct {
	userRepo repository.UserRepository
	now      func() time.Time
}

func NewProfileService(userRepo repository.UserRepository) ProfileService {
	return &profileService{userRepo: userRepo, now: time.Now}
}

func (s *profileService) GetProfile(ctx context.Context, userID string) (*ProfileView, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	user.PasswordHash = ""

	return &ProfileView{
		User: user,
		Age:  ProfileAge(user.Profile, s.now()),
		BMI:  ProfileBMI(user.Profile),
	}, nil
}

func (s *profileService) UpdateProfile(ctx context.Context, userID string, profile domain.Profile) (*ProfileView, error) {
	profile.FullName = strings.TrimSpace(profile.FullName)
	if err := s.validate(profile); err != nil {
		return nil, err
	}

	if err := s.userRepo.UpdateProfile(ctx, userID, profile); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return s.GetProfile(ctx, userID)
}

func (s *profileService) validate(p domain.Profile) error {
	if p.Birthday != nil && p.Birthday.After(s.now()) {
		return errors.Join(ErrInvalidProfile, errors.New("birthday is in the future"))
	}
	if p.HeightCm != nil && (*p.HeightCm <= 0 || *p.HeightCm > 300) {
		return errors.Join(ErrInvalidProfile, errors.New("height must be between 0 and 300 cm"))
	}
	if p.WeightKg != nil && (*p.WeightKg <= 0 || *p.WeightKg > 700) {
		return errors.Join(ErrInvalidProfile, errors.New("weight must be between 0 and 700 kg"))
	}
	return nil
}
