package agenda

import (
	"cmp"
	"context"
	"fmt"
	"log"
	"slices"
	"time"

	"github.com/robfig/cron/v3"

	"riasin/backend/internal/domain"
)

// BookingSource is the read side the digest needs from the repository.
type BookingSource interface {
	ListBookings(ctx context.Context, filter domain.BookingFilter) ([]domain.Booking, error)
}

type ArtistAgenda struct {
	StaffID   int64
	StaffName string
	Bookings  []domain.Booking
}

// Digest is one day's bookings grouped by makeup artist.
type Digest struct {
	Date    time.Time
	Artists []ArtistAgenda
}

func (d Digest) Total() int {
	n := 0
	for _, a := range d.Artists {
		n += len(a.Bookings)
	}
	return n
}

// Lines renders the digest as log lines, one header per artist.
func (d Digest) Lines() []string {
	day := d.Date.Format("2006-01-02")
	if len(d.Artists) == 0 {
		return []string{fmt.Sprintf("%s: no bookings", day)}
	}

	lines := []string{fmt.Sprintf("%s: %d bookings for %d artists", day, d.Total(), len(d.Artists))}
	for _, artist := range d.Artists {
		lines = append(lines, fmt.Sprintf("%s (%d)", artist.StaffName, len(artist.Bookings)))
		for _, b := range artist.Bookings {
			lines = append(lines, fmt.Sprintf("  %s-%s %s [%s]", b.StartTime, b.EndTime, b.CustomerName, b.Status.Label()))
		}
	}
	return lines
}

// Build collects the bookings dated day. day is a civil date at UTC midnight.
func Build(ctx context.Context, src BookingSource, day time.Time) (Digest, error) {
	bookings, err := src.ListBookings(ctx, domain.BookingFilter{Date: &day})
	if err != nil {
		return Digest{}, err
	}

	byStaff := make(map[int64]*ArtistAgenda)
	for _, b := range bookings {
		entry, ok := byStaff[b.StaffID]
		if !ok {
			entry = &ArtistAgenda{StaffID: b.StaffID, StaffName: b.StaffName}
			byStaff[b.StaffID] = entry
		}
		entry.Bookings = append(entry.Bookings, b)
	}

	digest := Digest{Date: day, Artists: make([]ArtistAgenda, 0, len(byStaff))}
	for _, entry := range byStaff {
		digest.Artists = append(digest.Artists, *entry)
	}
	slices.SortFunc(digest.Artists, func(a, b ArtistAgenda) int {
		return cmp.Or(cmp.Compare(a.StaffName, b.StaffName), cmp.Compare(a.StaffID, b.StaffID))
	})
	return digest, nil
}

// Scheduler runs the daily digest and any housekeeping jobs on a cron
// clock in the business timezone.
type Scheduler struct {
	cron *cron.Cron
	src  BookingSource
	loc  *time.Location
	now  func() time.Time
	logf func(format string, args ...any)
}

func NewScheduler(src BookingSource, loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{
		cron: cron.New(cron.WithLocation(loc)),
		src:  src,
		loc:  loc,
		now:  time.Now,
		logf: log.Printf,
	}
}

// ScheduleDigest registers the digest under a standard five-field spec.
func (s *Scheduler) ScheduleDigest(spec string) error {
	if _, err := s.cron.AddFunc(spec, s.RunDigest); err != nil {
		return fmt.Errorf("agenda schedule %q: %w", spec, err)
	}
	return nil
}

// Every registers a housekeeping job, for example the sale draft sweep.
func (s *Scheduler) Every(interval time.Duration, job func()) error {
	spec := "@every " + interval.String()
	if _, err := s.cron.AddFunc(spec, job); err != nil {
		return fmt.Errorf("agenda schedule %q: %w", spec, err)
	}
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logf("[agenda] scheduler started (%d jobs, tz=%s)", len(s.cron.Entries()), s.loc)
}

// Stop halts the clock and waits for running jobs until ctx ends.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logf("[agenda] WARN: stop timed out waiting for running jobs")
	}
}

// RunDigest logs today's agenda.
func (s *Scheduler) RunDigest() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	local := s.now().In(s.loc)
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
	digest, err := Build(ctx, s.src, day)
	if err != nil {
		s.logf("[agenda] WARN: failed to build digest for %s: %v", day.Format("2006-01-02"), err)
		return
	}
	for _, line := range digest.Lines() {
		s.logf("[agenda] %s", line)
	}
}
