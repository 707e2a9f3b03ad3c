package service

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/shopspring/decimal"

	"riasin/backend/internal/domain"
	"riasin/backend/internal/store"
)

const (
	categoriesKey  = "catalog:categories"
	allServicesKey = "catalog:services:all"
)

func categoryServicesKey(categoryID int64) string {
	return fmt.Sprintf("catalog:services:category:%d", categoryID)
}

// ListCategories lists every category, or those whose name contains keyword.
// Keyword searches bypass the cache.
func (s *Service) ListCategories(ctx context.Context, keyword string) ([]domain.ServiceCategory, error) {
	if _, err := s.authorize(ctx, AllRoles, "read catalog"); err != nil {
		return nil, err
	}

	keyword = strings.ToLower(strings.TrimSpace(keyword))
	if keyword != "" {
		categories, err := s.repo.ListCategories(ctx)
		if err != nil {
			return nil, err
		}
		matched := make([]domain.ServiceCategory, 0, len(categories))
		for _, category := range categories {
			if strings.Contains(strings.ToLower(category.Name), keyword) {
				matched = append(matched, category)
			}
		}
		return matched, nil
	}

	var cached []domain.ServiceCategory
	if found, err := s.cache.Get(ctx, categoriesKey, &cached); err != nil {
		log.Printf("[service] WARN: cache get %s: %v", categoriesKey, err)
	} else if found {
		return cached, nil
	}

	categories, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, categoriesKey, categories, s.cacheTTL); err != nil {
		log.Printf("[service] WARN: cache set %s: %v", categoriesKey, err)
	}
	return categories, nil
}

func (s *Service) CreateCategory(ctx context.Context, req domain.CategoryRequest) (domain.ServiceCategory, error) {
	if _, err := s.authorize(ctx, CatalogWriters, "manage catalog"); err != nil {
		return domain.ServiceCategory{}, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.ServiceCategory{}, fmt.Errorf("%w: category name is required", store.ErrValidation)
	}

	created, err := s.repo.CreateCategory(ctx, domain.ServiceCategory{Name: name})
	if err != nil {
		return domain.ServiceCategory{}, err
	}

	s.logAudit(ctx, "category_create", "category", created.ID, "name="+created.Name)
	s.invalidate(ctx, categoriesKey)
	return *created, nil
}

func (s *Service) UpdateCategory(ctx context.Context, id int64, req domain.CategoryRequest) (domain.ServiceCategory, error) {
	if _, err := s.authorize(ctx, CatalogWriters, "manage catalog"); err != nil {
		return domain.ServiceCategory{}, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.ServiceCategory{}, fmt.Errorf("%w: category name is required", store.ErrValidation)
	}

	saved, err := s.repo.UpdateCategory(ctx, domain.ServiceCategory{ID: id, Name: name})
	if err != nil {
		return domain.ServiceCategory{}, err
	}

	s.logAudit(ctx, "category_update", "category", saved.ID, "name="+saved.Name)
	// service rows carry the category name
	s.invalidate(ctx, categoriesKey, allServicesKey, categoryServicesKey(id))
	return *saved, nil
}

func (s *Service) DeleteCategory(ctx context.Context, id int64) error {
	if _, err := s.authorize(ctx, CatalogWriters, "manage catalog"); err != nil {
		return err
	}
	if err := s.repo.DeleteCategory(ctx, id); err != nil {
		return err
	}

	s.logAudit(ctx, "category_delete", "category", id, "")
	s.invalidate(ctx, categoriesKey, categoryServicesKey(id))
	return nil
}

// ListServices serves unfiltered and per-category lists from the cache.
// Keyword searches always go to the store.
func (s *Service) ListServices(ctx context.Context, filter domain.ServiceFilter) ([]domain.Service, error) {
	if _, err := s.authorize(ctx, AllRoles, "read catalog"); err != nil {
		return nil, err
	}
	filter.Keyword = strings.TrimSpace(filter.Keyword)

	key := ""
	if filter.Keyword == "" {
		key = allServicesKey
		if filter.CategoryID > 0 {
			key = categoryServicesKey(filter.CategoryID)
		}
		var cached []domain.Service
		if found, err := s.cache.Get(ctx, key, &cached); err != nil {
			log.Printf("[service] WARN: cache get %s: %v", key, err)
		} else if found {
			return cached, nil
		}
	}

	services, err := s.repo.ListServices(ctx, filter)
	if err != nil {
		return nil, err
	}
	if key != "" {
		if err := s.cache.Set(ctx, key, services, s.cacheTTL); err != nil {
			log.Printf("[service] WARN: cache set %s: %v", key, err)
		}
	}
	return services, nil
}

func (s *Service) GetService(ctx context.Context, id int64) (domain.Service, error) {
	if _, err := s.authorize(ctx, AllRoles, "read catalog"); err != nil {
		return domain.Service{}, err
	}
	svc, err := s.repo.GetService(ctx, id)
	if err != nil {
		return domain.Service{}, err
	}
	return *svc, nil
}

func (s *Service) CreateService(ctx context.Context, req domain.ServiceRequest) (domain.Service, error) {
	if _, err := s.authorize(ctx, CatalogWriters, "manage catalog"); err != nil {
		return domain.Service{}, err
	}
	svc, err := s.validateService(ctx, req)
	if err != nil {
		return domain.Service{}, err
	}

	created, err := s.repo.CreateService(ctx, svc)
	if err != nil {
		return domain.Service{}, err
	}

	s.logAudit(ctx, "service_create", "service", created.ID, fmt.Sprintf("name=%s,price=%s", created.Name, created.Price))
	s.invalidate(ctx, allServicesKey, categoryServicesKey(created.CategoryID))
	return *created, nil
}

func (s *Service) UpdateService(ctx context.Context, id int64, req domain.ServiceRequest) (domain.Service, error) {
	if _, err := s.authorize(ctx, CatalogWriters, "manage catalog"); err != nil {
		return domain.Service{}, err
	}
	existing, err := s.repo.GetService(ctx, id)
	if err != nil {
		return domain.Service{}, err
	}
	svc, err := s.validateService(ctx, req)
	if err != nil {
		return domain.Service{}, err
	}
	svc.ID = id

	saved, err := s.repo.UpdateService(ctx, svc)
	if err != nil {
		return domain.Service{}, err
	}

	s.logAudit(ctx, "service_update", "service", saved.ID, fmt.Sprintf("name=%s,price=%s", saved.Name, saved.Price))
	s.invalidate(ctx, allServicesKey, categoryServicesKey(existing.CategoryID), categoryServicesKey(saved.CategoryID))
	return *saved, nil
}

func (s *Service) DeleteService(ctx context.Context, id int64) error {
	if _, err := s.authorize(ctx, CatalogWriters, "manage catalog"); err != nil {
		return err
	}
	existing, err := s.repo.GetService(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteService(ctx, id); err != nil {
		return err
	}

	s.logAudit(ctx, "service_delete", "service", id, "name="+existing.Name)
	s.invalidate(ctx, allServicesKey, categoryServicesKey(existing.CategoryID))
	return nil
}

func (s *Service) validateService(ctx context.Context, req domain.ServiceRequest) (domain.Service, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Service{}, fmt.Errorf("%w: service name is required", store.ErrValidation)
	}
	if !req.Price.GreaterThan(decimal.Zero) {
		return domain.Service{}, fmt.Errorf("%w: price must be greater than zero", store.ErrValidation)
	}
	if req.DurationMinutes < 0 {
		return domain.Service{}, fmt.Errorf("%w: duration must not be negative", store.ErrValidation)
	}
	if _, err := s.repo.GetCategory(ctx, req.CategoryID); err != nil {
		return domain.Service{}, notFoundAsValidation(err, fmt.Sprintf("category %d", req.CategoryID))
	}

	return domain.Service{
		CategoryID:      req.CategoryID,
		Name:            name,
		Price:           req.Price.Round(2),
		DurationMinutes: req.DurationMinutes,
		Description:     strings.TrimSpace(req.Description),
	}, nil
}
