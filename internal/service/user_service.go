package service

import (
	"context"

	"github.com/Armin-FalDiS/availability-bot/internal/domain"
	"github.com/Armin-FalDiS/availability-bot/internal/repository"
)

// UserService is the directory of group members.
type UserService struct {
	users repository.UserRepository
}

// NewUserService builds the service.
func NewUserService(users repository.UserRepository) *UserService {
	return &UserService{users: users}
}

// GetOrCreate resolves the identity to its directory record, creating it
// on first contact and refreshing the display name when it changed.
func (s *UserService) GetOrCreate(ctx context.Context, ident domain.Identity) (*domain.User, error) {
	return s.users.GetOrCreate(ctx, ident.ID, ident.DisplayName)
}
