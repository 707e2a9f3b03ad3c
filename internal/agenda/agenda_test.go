package agenda

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"riasin/backend/internal/domain"
	"riasin/backend/internal/store/memory"
)

func seedBooking(t *testing.T, repo *memory.Store, customerID int64, day time.Time, start, end string) {
	t.Helper()
	if _, err := repo.CreateBooking(context.Background(), domain.Booking{
		CustomerID: customerID,
		StaffID:    2,
		Date:       day,
		StartTime:  start,
		EndTime:    end,
		Status:     domain.BookingPending,
	}); err != nil {
		t.Fatalf("seed booking: %v", err)
	}
}

func TestBuildGroupsBookingsByArtist(t *testing.T) {
	repo := memory.NewSeeded()
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	seedBooking(t, repo, 2, day, "13:00", "14:00")
	seedBooking(t, repo, 1, day, "08:00", "10:00")
	seedBooking(t, repo, 1, day.AddDate(0, 0, 1), "08:00", "10:00")

	digest, err := Build(context.Background(), repo, day)
	if err != nil {
		t.Fatalf("build digest: %v", err)
	}
	if len(digest.Artists) != 1 || digest.Total() != 2 {
		t.Fatalf("expected 2 bookings for one artist, got %+v", digest.Artists)
	}
	artist := digest.Artists[0]
	if artist.StaffName != "Rani Kusuma" || artist.Bookings[0].StartTime != "08:00" {
		t.Fatalf("expected Rani's bookings ordered by start, got %+v", artist)
	}

	lines := digest.Lines()
	if lines[0] != "2026-03-10: 2 bookings for 1 artists" {
		t.Fatalf("unexpected header %q", lines[0])
	}
	if !strings.Contains(lines[2], "Siti Aminah") || !strings.Contains(lines[2], "Menunggu") {
		t.Fatalf("expected first booking line for Siti Aminah, got %q", lines[2])
	}
}

func TestDigestWithoutBookings(t *testing.T) {
	digest, err := Build(context.Background(), memory.NewSeeded(), time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("build digest: %v", err)
	}
	if lines := digest.Lines(); len(lines) != 1 || lines[0] != "2026-03-10: no bookings" {
		t.Fatalf("expected a single empty line, got %v", lines)
	}
}

type failingSource struct{}

func (failingSource) ListBookings(context.Context, domain.BookingFilter) ([]domain.Booking, error) {
	return nil, errors.New("db down")
}

func TestRunDigestUsesBusinessDay(t *testing.T) {
	wib := time.FixedZone("WIB", 7*60*60)
	repo := memory.NewSeeded()
	// 23:30 UTC on the 9th is already the 10th in WIB
	seedBooking(t, repo, 1, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), "09:00", "10:00")

	var logged []string
	s := NewScheduler(repo, wib)
	s.now = func() time.Time { return time.Date(2026, 3, 9, 23, 30, 0, 0, time.UTC) }
	s.logf = func(format string, args ...any) { logged = append(logged, fmt.Sprintf(format, args...)) }

	s.RunDigest()
	if len(logged) == 0 || logged[0] != "[agenda] 2026-03-10: 1 bookings for 1 artists" {
		t.Fatalf("expected digest for 2026-03-10, got %v", logged)
	}

	logged = nil
	s.src = failingSource{}
	s.RunDigest()
	if len(logged) != 1 || !strings.Contains(logged[0], "WARN") {
		t.Fatalf("expected a warning on source failure, got %v", logged)
	}
}

func TestScheduleRejectsInvalidSpec(t *testing.T) {
	s := NewScheduler(memory.NewSeeded(), time.UTC)
	if err := s.ScheduleDigest("not a cron"); err == nil {
		t.Fatalf("expected invalid spec to fail")
	}
	if err := s.ScheduleDigest("0 7 * * *"); err != nil {
		t.Fatalf("expected daily spec to be accepted, got %v", err)
	}
	if err := s.Every(10*time.Minute, func() {}); err != nil {
		t.Fatalf("expected interval job to be accepted, got %v", err)
	}
	if got := len(s.cron.Entries()); got != 2 {
		t.Fatalf("expected 2 jobs, got %d", got)
	}
}
