package service

import (
	"context"

	"github.com/nickruden/diplom-server/internal/domain"
	"github.com/nickruden/diplom-server/internal/repository"
)

// userService implements UserService
type userService struct {
	social repository.SocialRepository
}

// NewUserService creates a new UserService
func NewUserService(social repository.SocialRepository) UserService {
	return &userService{social: social}
}

func (s *userService) Follow(ctx context.Context, organizerID, followerID int64) error {
	if organizerID <= 0 {
		return domain.Validation("organizer id is required")
	}
	if organizerID == followerID {
		return domain.Validation("cannot follow yourself")
	}
	return s.social.Follow(ctx, organizerID, followerID)
}

// Unfollow is a no-op when the follow does not exist
func (s *userService) Unfollow(ctx context.Context, organizerID, followerID int64) error {
	_, err := s.social.Unfollow(ctx, organizerID, followerID)
	return err
}

func (s *userService) ListFollowing(ctx context.Context, followerID int64) ([]int64, error) {
	ids, err := s.social.ListFollowing(ctx, followerID)
	if err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []int64{}
	}
	return ids, nil
}
