package service

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"riasin/backend/internal/domain"
	"riasin/backend/internal/store"
)

// ListStaff lists active accounts, optionally narrowed to one role.
func (s *Service) ListStaff(ctx context.Context, role string) ([]domain.StaffMember, error) {
	if _, err := s.authorize(ctx, AllRoles, "list staff"); err != nil {
		return nil, err
	}
	role = strings.TrimSpace(role)
	if role != "" && !domain.IsKnownRole(role) {
		return nil, fmt.Errorf("%w: unknown role %q", store.ErrValidation, role)
	}

	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}

	staff := make([]domain.StaffMember, 0, len(users))
	for _, user := range users {
		if !user.Active || (role != "" && user.Role != role) {
			continue
		}
		staff = append(staff, StaffFromAccount(user))
	}
	slices.SortFunc(staff, func(a, b domain.StaffMember) int {
		return strings.Compare(a.DisplayName, b.DisplayName)
	})
	return staff, nil
}

func StaffFromAccount(user domain.UserAccount) domain.StaffMember {
	return domain.StaffMember{
		ID:          user.ID,
		Username:    user.Username,
		DisplayName: user.DisplayName,
		Role:        user.Role,
		RoleLabel:   domain.RoleLabel(user.Role),
		Active:      user.Active,
		CreatedAt:   user.CreatedAt,
	}
}
