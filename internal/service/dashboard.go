package service

import (
	"context"
	"log"
	"time"

	"riasin/backend/internal/domain"
)

const dashboardTTL = 30 * time.Second

func dashboardKey(day time.Time) string {
	return "dashboard:" + day.Format("2006-01-02")
}

func (s *Service) Dashboard(ctx context.Context) (domain.DashboardStats, error) {
	if _, err := s.authorize(ctx, AllRoles, "view the dashboard"); err != nil {
		return domain.DashboardStats{}, err
	}

	today := s.today()
	key := dashboardKey(today)
	var cached domain.DashboardStats
	if found, err := s.cache.Get(ctx, key, &cached); err != nil {
		log.Printf("[service] WARN: cache get %s: %v", key, err)
	} else if found {
		return cached, nil
	}

	customers, err := s.repo.CountCustomers(ctx)
	if err != nil {
		return domain.DashboardStats{}, err
	}

	monthStart := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
	salesThisMonth, _, err := s.repo.SumSales(ctx, monthStart, monthStart.AddDate(0, 1, 0))
	if err != nil {
		return domain.DashboardStats{}, err
	}
	_, revenueToday, err := s.repo.SumSales(ctx, today, today.AddDate(0, 0, 1))
	if err != nil {
		return domain.DashboardStats{}, err
	}

	bookings, err := s.repo.ListBookings(ctx, domain.BookingFilter{Date: &today})
	if err != nil {
		return domain.DashboardStats{}, err
	}

	stats := domain.DashboardStats{
		Date:           today.Format("2006-01-02"),
		TotalCustomers: customers,
		SalesThisMonth: salesThisMonth,
		RevenueToday:   revenueToday,
		BookingsToday:  len(bookings),
		TodayBookings:  bookings,
	}
	if err := s.cache.Set(ctx, key, stats, dashboardTTL); err != nil {
		log.Printf("[service] WARN: cache set %s: %v", key, err)
	}
	return stats, nil
}
