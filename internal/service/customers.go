package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"riasin/backend/internal/domain"
	"riasin/backend/internal/store"
)

// NormalizePhone strips spaces and dashes from a phone number.
func NormalizePhone(raw string) string {
	return strings.NewReplacer(" ", "", "-", "").Replace(strings.TrimSpace(raw))
}

// ValidatePhone accepts 10 to 13 digits starting with 08 or 62, after
// normalization.
func ValidatePhone(raw string) error {
	phone := NormalizePhone(raw)
	if len(phone) < 10 || len(phone) > 13 {
		return fmt.Errorf("%w: phone must be 10-13 digits", store.ErrValidation)
	}
	for _, r := range phone {
		if r < '0' || r > '9' {
			return fmt.Errorf("%w: phone must contain digits only", store.ErrValidation)
		}
	}
	if !strings.HasPrefix(phone, "08") && !strings.HasPrefix(phone, "62") {
		return fmt.Errorf("%w: phone must start with 08 or 62", store.ErrValidation)
	}
	return nil
}

func (s *Service) SearchCustomers(ctx context.Context, keyword string) ([]domain.Customer, error) {
	if _, err := s.authorize(ctx, AllRoles, "read customers"); err != nil {
		return nil, err
	}
	return s.repo.ListCustomers(ctx, strings.TrimSpace(keyword))
}

func (s *Service) GetCustomer(ctx context.Context, id int64) (domain.Customer, error) {
	if _, err := s.authorize(ctx, AllRoles, "read customers"); err != nil {
		return domain.Customer{}, err
	}
	customer, err := s.repo.GetCustomer(ctx, id)
	if err != nil {
		return domain.Customer{}, err
	}
	return *customer, nil
}

func (s *Service) CreateCustomer(ctx context.Context, req domain.CustomerRequest) (domain.Customer, error) {
	if _, err := s.authorize(ctx, CustomerWriters, "create customers"); err != nil {
		return domain.Customer{}, err
	}

	customer, err := s.validateCustomer(ctx, 0, req)
	if err != nil {
		return domain.Customer{}, err
	}

	created, err := s.repo.CreateCustomer(ctx, customer)
	if err != nil {
		return domain.Customer{}, err
	}

	s.logAudit(ctx, "customer_create", "customer", created.ID, fmt.Sprintf("name=%s,phone=%s", created.Name, created.Phone))
	s.invalidate(ctx, dashboardKey(s.today()))
	return *created, nil
}

func (s *Service) UpdateCustomer(ctx context.Context, id int64, req domain.CustomerRequest) (domain.Customer, error) {
	if _, err := s.authorize(ctx, CustomerWriters, "update customers"); err != nil {
		return domain.Customer{}, err
	}
	if _, err := s.repo.GetCustomer(ctx, id); err != nil {
		return domain.Customer{}, err
	}

	customer, err := s.validateCustomer(ctx, id, req)
	if err != nil {
		return domain.Customer{}, err
	}
	customer.ID = id

	saved, err := s.repo.UpdateCustomer(ctx, customer)
	if err != nil {
		return domain.Customer{}, err
	}

	s.logAudit(ctx, "customer_update", "customer", saved.ID, fmt.Sprintf("name=%s,phone=%s", saved.Name, saved.Phone))
	return *saved, nil
}

func (s *Service) DeleteCustomer(ctx context.Context, id int64) error {
	if _, err := s.authorize(ctx, CustomerWriters, "delete customers"); err != nil {
		return err
	}
	if err := s.repo.DeleteCustomer(ctx, id); err != nil {
		return err
	}

	s.logAudit(ctx, "customer_delete", "customer", id, "")
	s.invalidate(ctx, dashboardKey(s.today()))
	return nil
}

// validateCustomer checks the request and phone uniqueness. exceptID skips the
// row being edited.
func (s *Service) validateCustomer(ctx context.Context, exceptID int64, req domain.CustomerRequest) (domain.Customer, error) {
	name := strings.TrimSpace(req.Name)
	address := strings.TrimSpace(req.Address)
	if name == "" {
		return domain.Customer{}, fmt.Errorf("%w: name is required", store.ErrValidation)
	}
	if address == "" {
		return domain.Customer{}, fmt.Errorf("%w: address is required", store.ErrValidation)
	}
	if err := ValidatePhone(req.Phone); err != nil {
		return domain.Customer{}, err
	}
	phone := NormalizePhone(req.Phone)

	existing, err := s.repo.FindCustomerByPhone(ctx, phone)
	switch {
	case err == nil && existing.ID != exceptID:
		return domain.Customer{}, fmt.Errorf("%w: phone %s already registered to %s", store.ErrConflict, phone, existing.Name)
	case err != nil && !errors.Is(err, store.ErrNotFound):
		return domain.Customer{}, err
	}

	return domain.Customer{Name: name, Phone: phone, Address: address}, nil
}
