package services

import (
	"context"
	"strings"

	"scrumboard/backend/internal/models"
	"scrumboard/backend/internal/repositories"
)

// UpdateProfileRequest fields are optional; nil leaves the value unchanged.
type UpdateProfileRequest struct {
	Name            *string  `json:"name"`
	YearsExperience *int     `json:"yearsExperience"`
	Strengths       []string `json:"strengths"`
}

type ProfileService interface {
	Me(ctx context.Context, user *models.User) (*models.User, error)
	Update(ctx context.Context, user *models.User, req UpdateProfileRequest) (*models.User, error)
	AddTechnology(ctx context.Context, user *models.User, technology string) (*models.User, error)
	RemoveTechnology(ctx context.Context, user *models.User, technology string) (*models.User, error)
}

type ProfileServiceImpl struct {
	store repositories.Store
}

func NewProfileService(store repositories.Store) *ProfileServiceImpl {
	return &ProfileServiceImpl{store: store}
}

func (s *ProfileServiceImpl) Me(ctx context.Context, user *models.User) (*models.User, error) {
	fresh, err := s.store.Users().FindByID(ctx, user.ID)
	if err != nil {
		return nil, storeError(err, "user not found")
	}
	return fresh, nil
}

func (s *ProfileServiceImpl) Update(ctx context.Context, user *models.User, req UpdateProfileRequest) (*models.User, error) {
	fresh, err := s.Me(ctx, user)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, NewValidationError("name cannot be empty")
		}
		fresh.Name = name
	}
	if req.YearsExperience != nil {
		if *req.YearsExperience < 0 {
			return nil, NewValidationError("yearsExperience must be zero or greater")
		}
		fresh.DeveloperProfile.YearsExperience = *req.YearsExperience
	}
	if req.Strengths != nil {
		fresh.DeveloperProfile.Strengths = filterStrengths(req.Strengths)
	}

	if err := s.store.Users().Update(ctx, fresh); err != nil {
		return nil, storeError(err, "user not found")
	}
	return fresh, nil
}

func (s *ProfileServiceImpl) AddTechnology(ctx context.Context, user *models.User, technology string) (*models.User, error) {
	fresh, err := s.technologyTarget(ctx, user, technology)
	if err != nil {
		return nil, err
	}
	technology = strings.TrimSpace(technology)
	if !fresh.HasTechnology(technology) {
		fresh.DeveloperProfile.Technologies = append(fresh.DeveloperProfile.Technologies, technology)
		if err := s.store.Users().Update(ctx, fresh); err != nil {
			return nil, storeError(err, "user not found")
		}
	}
	return fresh, nil
}

func (s *ProfileServiceImpl) RemoveTechnology(ctx context.Context, user *models.User, technology string) (*models.User, error) {
	fresh, err := s.technologyTarget(ctx, user, technology)
	if err != nil {
		return nil, err
	}
	technology = strings.TrimSpace(technology)
	if fresh.HasTechnology(technology) {
		kept := make([]string, 0, len(fresh.DeveloperProfile.Technologies))
		for _, t := range fresh.DeveloperProfile.Technologies {
			if t != technology {
				kept = append(kept, t)
			}
		}
		fresh.DeveloperProfile.Technologies = kept
		if err := s.store.Users().Update(ctx, fresh); err != nil {
			return nil, storeError(err, "user not found")
		}
	}
	return fresh, nil
}

func (s *ProfileServiceImpl) technologyTarget(ctx context.Context, user *models.User, technology string) (*models.User, error) {
	if !user.HasRole(models.RoleScrumTeam) {
		return nil, NewAuthorizationError("only Scrum Team members can manage technologies")
	}
	if strings.TrimSpace(technology) == "" {
		return nil, NewValidationError("technology is required")
	}
	return s.Me(ctx, user)
}

// filterStrengths keeps the recognised strengths, dropping duplicates.
func filterStrengths(in []string) []models.Strength {
	out := make([]models.Strength, 0, len(in))
	seen := make(map[models.Strength]bool)
	for _, raw := range in {
		s := models.Strength(raw)
		if _, ok := models.ValidStrengths[s]; !ok || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
