package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"riasin/backend/internal/domain"
	"riasin/backend/internal/store"
	"riasin/backend/internal/xid"
)

const maxLineQuantity = 100

// SaleDraft is an uncommitted sale built line by line on one screen.
type SaleDraft struct {
	mu      sync.Mutex
	svc     *Service
	id      string
	owner   string
	lines   []domain.SaleLine
	touched time.Time
}

func (s *Service) NewSaleDraft() *SaleDraft {
	return &SaleDraft{svc: s, touched: s.now()}
}

func (d *SaleDraft) ID() string {
	return d.id
}

// AddLine prices the service at its current catalog price. Adding a service
// already on the draft merges the quantities at the original unit price.
func (d *SaleDraft) AddLine(ctx context.Context, serviceID int64, qty int) error {
	if _, err := d.svc.authorize(ctx, SaleComposers, "compose sales"); err != nil {
		return err
	}
	if qty < 1 || qty > maxLineQuantity {
		return fmt.Errorf("%w: quantity must be between 1 and %d", store.ErrValidation, maxLineQuantity)
	}

	svc, err := d.svc.repo.GetService(ctx, serviceID)
	if err != nil {
		return notFoundAsValidation(err, fmt.Sprintf("service %d", serviceID))
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.touched = d.svc.now()

	for i := range d.lines {
		line := &d.lines[i]
		if line.ServiceID != serviceID {
			continue
		}
		merged := line.Quantity + qty
		if merged > maxLineQuantity {
			return fmt.Errorf("%w: quantity for %s would exceed %d", store.ErrValidation, line.ServiceName, maxLineQuantity)
		}
		line.Quantity = merged
		line.Subtotal = line.UnitPrice.Mul(decimal.NewFromInt(int64(merged)))
		return nil
	}

	d.lines = append(d.lines, domain.SaleLine{
		ServiceID:   svc.ID,
		ServiceName: svc.Name,
		Quantity:    qty,
		UnitPrice:   svc.Price,
		Subtotal:    svc.Price.Mul(decimal.NewFromInt(int64(qty))),
	})
	return nil
}

func (d *SaleDraft) RemoveLine(index int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if index < 0 || index >= len(d.lines) {
		return fmt.Errorf("%w: line %d does not exist", store.ErrValidation, index)
	}
	d.lines = append(d.lines[:index], d.lines[index+1:]...)
	d.touched = d.svc.now()
	return nil
}

func (d *SaleDraft) Lines() []domain.SaleLine {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]domain.SaleLine, len(d.lines))
	copy(out, d.lines)
	return out
}

func (d *SaleDraft) Total() decimal.Decimal {
	d.mu.Lock()
	defer d.mu.Unlock()
	return sumLines(d.lines)
}

func (d *SaleDraft) Reset() {
	d.mu.Lock()
	d.lines = nil
	d.touched = d.svc.now()
	d.mu.Unlock()
}

func (d *SaleDraft) View() domain.DraftView {
	d.mu.Lock()
	defer d.mu.Unlock()
	lines := make([]domain.SaleLine, len(d.lines))
	copy(lines, d.lines)
	return domain.DraftView{ID: d.id, Lines: lines, Total: sumLines(d.lines)}
}

// Commit persists the draft as one sale and clears it. The draft stays
// intact when any check or the write fails.
func (d *SaleDraft) Commit(ctx context.Context, req domain.SaleCommitRequest) (domain.Sale, error) {
	actor, err := d.svc.authorize(ctx, SaleComposers, "compose sales")
	if err != nil {
		return domain.Sale{}, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if req.CustomerID < 1 {
		return domain.Sale{}, fmt.Errorf("%w: customer is required", store.ErrValidation)
	}
	if len(d.lines) == 0 {
		return domain.Sale{}, fmt.Errorf("%w: add at least one service", store.ErrValidation)
	}
	if _, err := d.svc.repo.GetCustomer(ctx, req.CustomerID); err != nil {
		return domain.Sale{}, notFoundAsValidation(err, fmt.Sprintf("customer %d", req.CustomerID))
	}
	date, err := d.svc.parseDate(req.Date)
	if err != nil {
		return domain.Sale{}, err
	}
	if req.BookingID != nil {
		booking, err := d.svc.repo.GetBooking(ctx, *req.BookingID)
		if err != nil {
			return domain.Sale{}, notFoundAsValidation(err, fmt.Sprintf("booking %d", *req.BookingID))
		}
		if booking.CustomerID != req.CustomerID {
			return domain.Sale{}, fmt.Errorf("%w: booking %d belongs to another customer", store.ErrValidation, booking.ID)
		}
	}

	lines := make([]domain.SaleLine, len(d.lines))
	copy(lines, d.lines)
	created, err := d.svc.repo.CreateSale(ctx, domain.Sale{
		Date:       date,
		CustomerID: req.CustomerID,
		CreatedBy:  actor.UserID,
		BookingID:  req.BookingID,
		Total:      sumLines(lines),
		Lines:      lines,
	})
	if err != nil {
		return domain.Sale{}, err
	}

	d.lines = nil
	d.touched = d.svc.now()

	d.svc.logAudit(ctx, "sale_create", "sale", created.ID, fmt.Sprintf("customer=%d,lines=%d,total=%s", created.CustomerID, len(created.Lines), created.Total))
	d.svc.invalidate(ctx, dashboardKey(d.svc.today()))
	return *created, nil
}

func sumLines(lines []domain.SaleLine) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.Subtotal)
	}
	return total
}

// DraftBook keeps the open drafts of every screen, keyed by an opaque id and
// owned by the username that opened them.
type DraftBook struct {
	mu     sync.Mutex
	drafts map[string]*SaleDraft
	ttl    time.Duration
	now    func() time.Time
}

func NewDraftBook(ttl time.Duration, now func() time.Time) *DraftBook {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	if now == nil {
		now = time.Now
	}
	return &DraftBook{drafts: make(map[string]*SaleDraft), ttl: ttl, now: now}
}

func (b *DraftBook) Open(svc *Service, owner string) *SaleDraft {
	draft := svc.NewSaleDraft()
	draft.id = xid.New("draft")
	draft.owner = owner

	b.mu.Lock()
	b.drafts[draft.id] = draft
	b.mu.Unlock()
	return draft
}

func (b *DraftBook) Get(id string, owner string) (*SaleDraft, error) {
	b.mu.Lock()
	draft, ok := b.drafts[id]
	b.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: draft %s", store.ErrNotFound, id)
	}

	draft.mu.Lock()
	expired := b.now().Sub(draft.touched) > b.ttl
	draft.mu.Unlock()
	if expired {
		b.remove(id)
		return nil, fmt.Errorf("%w: draft %s expired", store.ErrNotFound, id)
	}
	if draft.owner != owner {
		return nil, fmt.Errorf("%w: draft %s", store.ErrNotFound, id)
	}
	return draft, nil
}

func (b *DraftBook) Discard(id string, owner string) error {
	if _, err := b.Get(id, owner); err != nil {
		return err
	}
	b.remove(id)
	return nil
}

// Sweep drops drafts idle for longer than the TTL and reports how many went.
func (b *DraftBook) Sweep() int {
	now := b.now()
	b.mu.Lock()
	defer b.mu.Unlock()

	removed := 0
	for id, draft := range b.drafts {
		draft.mu.Lock()
		idle := now.Sub(draft.touched)
		draft.mu.Unlock()
		if idle > b.ttl {
			delete(b.drafts, id)
			removed++
		}
	}
	return removed
}

func (b *DraftBook) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.drafts)
}

func (b *DraftBook) remove(id string) {
	b.mu.Lock()
	delete(b.drafts, id)
	b.mu.Unlock()
}

func (s *Service) OpenDraft(ctx context.Context) (domain.DraftView, error) {
	actor, err := s.authorize(ctx, SaleComposers, "compose sales")
	if err != nil {
		return domain.DraftView{}, err
	}
	return s.drafts.Open(s, actor.Username).View(), nil
}

func (s *Service) draftFor(ctx context.Context, id string) (*SaleDraft, error) {
	actor, err := s.authorize(ctx, SaleComposers, "compose sales")
	if err != nil {
		return nil, err
	}
	return s.drafts.Get(strings.TrimSpace(id), actor.Username)
}

func (s *Service) GetDraft(ctx context.Context, id string) (domain.DraftView, error) {
	draft, err := s.draftFor(ctx, id)
	if err != nil {
		return domain.DraftView{}, err
	}
	return draft.View(), nil
}

func (s *Service) AddDraftLine(ctx context.Context, id string, req domain.DraftLineRequest) (domain.DraftView, error) {
	draft, err := s.draftFor(ctx, id)
	if err != nil {
		return domain.DraftView{}, err
	}
	if err := draft.AddLine(ctx, req.ServiceID, req.Quantity); err != nil {
		return domain.DraftView{}, err
	}
	return draft.View(), nil
}

func (s *Service) RemoveDraftLine(ctx context.Context, id string, index int) (domain.DraftView, error) {
	draft, err := s.draftFor(ctx, id)
	if err != nil {
		return domain.DraftView{}, err
	}
	if err := draft.RemoveLine(index); err != nil {
		return domain.DraftView{}, err
	}
	return draft.View(), nil
}

func (s *Service) DiscardDraft(ctx context.Context, id string) error {
	actor, err := s.authorize(ctx, SaleComposers, "compose sales")
	if err != nil {
		return err
	}
	return s.drafts.Discard(strings.TrimSpace(id), actor.Username)
}

// CommitDraft commits the draft and closes it on success.
func (s *Service) CommitDraft(ctx context.Context, id string, req domain.SaleCommitRequest) (domain.Sale, error) {
	draft, err := s.draftFor(ctx, id)
	if err != nil {
		return domain.Sale{}, err
	}
	sale, err := draft.Commit(ctx, req)
	if err != nil {
		return domain.Sale{}, err
	}
	s.drafts.remove(draft.id)
	return sale, nil
}

func (s *Service) GetSale(ctx context.Context, id int64) (domain.Sale, error) {
	if _, err := s.authorize(ctx, SaleReaders, "read sales"); err != nil {
		return domain.Sale{}, err
	}
	sale, err := s.repo.GetSale(ctx, id)
	if err != nil {
		return domain.Sale{}, err
	}
	return *sale, nil
}

// ListSales returns sale summaries dated from..to inclusive. Empty bounds
// are open.
func (s *Service) ListSales(ctx context.Context, from string, to string, limit int) ([]domain.SaleSummary, error) {
	if _, err := s.authorize(ctx, SaleReaders, "read sales"); err != nil {
		return nil, err
	}
	filter := domain.SaleFilter{Limit: limit}
	if filter.Limit < 1 || filter.Limit > 500 {
		filter.Limit = 100
	}
	if strings.TrimSpace(from) != "" {
		day, err := s.parseDate(from)
		if err != nil {
			return nil, err
		}
		filter.From = &day
	}
	if strings.TrimSpace(to) != "" {
		day, err := s.parseDate(to)
		if err != nil {
			return nil, err
		}
		end := day.AddDate(0, 0, 1)
		filter.To = &end
	}
	if filter.From != nil && filter.To != nil && !filter.To.After(*filter.From) {
		return nil, fmt.Errorf("%w: range end is before start", store.ErrValidation)
	}
	return s.repo.ListSales(ctx, filter)
}

// SweepDrafts is run periodically to drop idle drafts.
func (s *Service) SweepDrafts() {
	if removed := s.drafts.Sweep(); removed > 0 {
		log.Printf("[service] swept %d idle sale drafts", removed)
	}
}
