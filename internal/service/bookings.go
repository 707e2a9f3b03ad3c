package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"riasin/backend/internal/domain"
	"riasin/backend/internal/store"
)

func (s *Service) ListBookings(ctx context.Context, filter domain.BookingFilter) ([]domain.Booking, error) {
	if _, err := s.authorize(ctx, AllRoles, "read bookings"); err != nil {
		return nil, err
	}
	if filter.Status != "" {
		status, err := parseBookingStatus(string(filter.Status))
		if err != nil {
			return nil, err
		}
		filter.Status = status
	}
	return s.repo.ListBookings(ctx, filter)
}

// ListLinkableBookings returns the bookings a new sale for the customer may
// reference, in any status.
func (s *Service) ListLinkableBookings(ctx context.Context, customerID int64) ([]domain.Booking, error) {
	if _, err := s.authorize(ctx, SaleComposers, "compose sales"); err != nil {
		return nil, err
	}
	if customerID < 1 {
		return nil, fmt.Errorf("%w: customer is required", store.ErrValidation)
	}
	return s.repo.ListBookings(ctx, domain.BookingFilter{CustomerID: customerID})
}

func (s *Service) GetBooking(ctx context.Context, id int64) (domain.Booking, error) {
	if _, err := s.authorize(ctx, AllRoles, "read bookings"); err != nil {
		return domain.Booking{}, err
	}
	booking, err := s.repo.GetBooking(ctx, id)
	if err != nil {
		return domain.Booking{}, err
	}
	return *booking, nil
}

func (s *Service) CreateBooking(ctx context.Context, req domain.BookingRequest) (domain.Booking, error) {
	if _, err := s.authorize(ctx, BookingWriters, "manage bookings"); err != nil {
		return domain.Booking{}, err
	}
	booking, err := s.validateBooking(ctx, req, nil)
	if err != nil {
		return domain.Booking{}, err
	}

	created, err := s.repo.CreateBooking(ctx, booking)
	if err != nil {
		return domain.Booking{}, err
	}

	s.logAudit(ctx, "booking_create", "booking", created.ID, bookingDetail(*created))
	s.invalidate(ctx, dashboardKey(s.today()))
	return *created, nil
}

func (s *Service) UpdateBooking(ctx context.Context, id int64, req domain.BookingRequest) (domain.Booking, error) {
	if _, err := s.authorize(ctx, BookingWriters, "manage bookings"); err != nil {
		return domain.Booking{}, err
	}
	existing, err := s.repo.GetBooking(ctx, id)
	if err != nil {
		return domain.Booking{}, err
	}
	booking, err := s.validateBooking(ctx, req, existing)
	if err != nil {
		return domain.Booking{}, err
	}
	booking.ID = id

	saved, err := s.repo.UpdateBooking(ctx, booking)
	if err != nil {
		return domain.Booking{}, err
	}

	s.logAudit(ctx, "booking_update", "booking", saved.ID, bookingDetail(*saved))
	s.invalidate(ctx, dashboardKey(s.today()))
	return *saved, nil
}

func (s *Service) DeleteBooking(ctx context.Context, id int64) error {
	if _, err := s.authorize(ctx, BookingWriters, "manage bookings"); err != nil {
		return err
	}
	if err := s.repo.DeleteBooking(ctx, id); err != nil {
		return err
	}

	s.logAudit(ctx, "booking_delete", "booking", id, "")
	s.invalidate(ctx, dashboardKey(s.today()))
	return nil
}

// validateBooking runs every booking rule before any write. existing is the
// row being edited; its date may stay in the past so status can still move.
func (s *Service) validateBooking(ctx context.Context, req domain.BookingRequest, existing *domain.Booking) (domain.Booking, error) {
	dateRaw := strings.TrimSpace(req.Date)
	if dateRaw == "" {
		return domain.Booking{}, fmt.Errorf("%w: date is required", store.ErrValidation)
	}
	date, err := s.parseDate(dateRaw)
	if err != nil {
		return domain.Booking{}, err
	}
	dateChanged := existing == nil || !existing.Date.Equal(date)
	if dateChanged && date.Before(s.today()) {
		return domain.Booking{}, fmt.Errorf("%w: booking date must not be in the past", store.ErrValidation)
	}

	start, err := parseClock(req.StartTime)
	if err != nil {
		return domain.Booking{}, err
	}
	end, err := parseClock(req.EndTime)
	if err != nil {
		return domain.Booking{}, err
	}
	if !end.After(start) {
		return domain.Booking{}, fmt.Errorf("%w: end time must be after start time", store.ErrValidation)
	}

	status := domain.BookingPending
	if strings.TrimSpace(string(req.Status)) != "" {
		status, err = parseBookingStatus(string(req.Status))
		if err != nil {
			return domain.Booking{}, err
		}
	}

	if _, err := s.repo.GetCustomer(ctx, req.CustomerID); err != nil {
		return domain.Booking{}, notFoundAsValidation(err, fmt.Sprintf("customer %d", req.CustomerID))
	}
	staff, err := s.repo.GetUserByID(ctx, req.StaffID)
	if err != nil {
		return domain.Booking{}, notFoundAsValidation(err, fmt.Sprintf("staff %d", req.StaffID))
	}
	if staff.Role != domain.RoleMakeupArtist || !staff.Active {
		return domain.Booking{}, fmt.Errorf("%w: staff %d is not an active makeup artist", store.ErrValidation, req.StaffID)
	}

	return domain.Booking{
		CustomerID: req.CustomerID,
		StaffID:    req.StaffID,
		Date:       date,
		StartTime:  start.Format("15:04"),
		EndTime:    end.Format("15:04"),
		Status:     status,
	}, nil
}

// parseClock accepts HH:MM and HH:MM:SS.
func parseClock(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: time %q must be HH:MM", store.ErrValidation, raw)
}

// parseBookingStatus maps input onto the canonical statuses. "confirmed"
// is a legacy spelling of pending.
func parseBookingStatus(raw string) (domain.BookingStatus, error) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	normalized = strings.ReplaceAll(normalized, " ", "_")
	switch normalized {
	case "confirmed", "menunggu":
		return domain.BookingPending, nil
	case "proses":
		return domain.BookingInProgress, nil
	case "selesai":
		return domain.BookingDone, nil
	}
	status := domain.BookingStatus(normalized)
	if !status.Valid() {
		return "", fmt.Errorf("%w: unknown booking status %q", store.ErrValidation, raw)
	}
	return status, nil
}

func bookingDetail(b domain.Booking) string {
	return fmt.Sprintf("customer=%d,staff=%d,date=%s,%s-%s,status=%s",
		b.CustomerID, b.StaffID, b.Date.Format("2006-01-02"), b.StartTime, b.EndTime, b.Status)
}
