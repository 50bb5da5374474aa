package brandaccess

import (
	"context"
	"fmt"
	"strings"
)

// RepositoryPort abstracts persistence for the service.
type RepositoryPort interface {
	GetUser(ctx context.Context, id int64) (User, error)
	GetUserByUsername(ctx context.Context, username string) (User, error)
	RolePermissions(ctx context.Context, role string) ([]string, error)
	SetUserBrands(ctx context.Context, userID int64, brands []string) error
	ListPermissions(ctx context.Context) ([]Permission, error)
}

// Service resolves user identity, brand scope and permissions.
type Service struct {
	repo RepositoryPort
}

// NewService constructs a Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Resolve returns the user record for a session user id.
func (s *Service) Resolve(ctx context.Context, userID int64) (User, error) {
	u, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return User{}, fmt.Errorf("brandaccess: resolve user %d: %w", userID, err)
	}
	return u, nil
}

// EffectivePermissions returns permission names for the user's role.
// Admins implicitly hold every permission.
func (s *Service) EffectivePermissions(ctx context.Context, userID int64) ([]string, error) {
	u, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(u.Role, AdminRole) {
		all, err := s.repo.ListPermissions(ctx)
		if err != nil {
			return nil, err
		}
		names := make([]string, 0, len(all))
		for _, p := range all {
			names = append(names, p.Name)
		}
		return names, nil
	}
	return s.repo.RolePermissions(ctx, u.Role)
}

// SetBrands replaces a user's brand scope.
func (s *Service) SetBrands(ctx context.Context, userID int64, brands []string) error {
	cleaned := make([]string, 0, len(brands))
	for _, b := range brands {
		b = strings.TrimSpace(b)
		if b != "" {
			cleaned = append(cleaned, b)
		}
	}
	return s.repo.SetUserBrands(ctx, userID, cleaned)
}
