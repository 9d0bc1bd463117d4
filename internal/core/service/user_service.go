package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/rapidrecall/dashboard/internal/core/domain"
	"github.com/rapidrecall/dashboard/internal/core/ports"
)

// UserService runs the user management table's foreground actions.
type UserService struct {
	api ports.UserAPI
	log zerolog.Logger
}

func NewUserService(api ports.UserAPI, log zerolog.Logger) *UserService {
	return &UserService{api: api, log: log}
}

// List returns the users whose email or display name contains search.
func (s *UserService) List(ctx context.Context, caller Caller, search string) ([]domain.UserAccount, error) {
	if _, err := requireIdentity(caller); err != nil {
		return nil, err
	}
	users, err := s.api.ListUsers(ctx, caller.TokenSource(ctx))
	if err != nil {
		return nil, checkUnauthenticated(ctx, caller, fmt.Errorf("list users: %w", err))
	}
	return FilterUsers(users, search), nil
}

// SetRole asks the server to assign role to uid. The caller's cached role is
// deliberately not consulted; the server is the only judge.
func (s *UserService) SetRole(ctx context.Context, caller Caller, uid, role string) error {
	if _, err := requireIdentity(caller); err != nil {
		return err
	}
	r, err := domain.ParseRoleStrict(role)
	if err != nil {
		return err
	}
	if err := s.api.SetRole(ctx, caller.TokenSource(ctx), uid, r); err != nil {
		return checkUnauthenticated(ctx, caller, fmt.Errorf("set role of %s: %w", uid, err))
	}
	s.log.Info().Str("target_uid", uid).Str("role", r.String()).Msg("user role updated")
	return nil
}

// FilterUsers keeps the users whose email or display name contains search,
// ignoring case.
func FilterUsers(users []domain.UserAccount, search string) []domain.UserAccount {
	needle := strings.ToLower(strings.TrimSpace(search))
	if needle == "" {
		return users
	}
	out := make([]domain.UserAccount, 0, len(users))
	for _, u := range users {
		if strings.Contains(strings.ToLower(u.Email), needle) ||
			(u.DisplayName != "" && strings.Contains(strings.ToLower(u.DisplayName), needle)) {
			out = append(out, u)
		}
	}
	return out
}
