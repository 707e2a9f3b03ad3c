package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"strings"
	"time"

	"riasin/backend/internal/cache"
	"riasin/backend/internal/domain"
	"riasin/backend/internal/receipt"
	"riasin/backend/internal/store"
	"riasin/backend/internal/xid"
)

var (
	ErrForbidden           = errors.New("forbidden")
	ErrInsufficientPayment = errors.New("insufficient payment")
	ErrAlreadySettled      = errors.New("sale already settled")
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// Permission is the set of roles allowed to run an operation.
type Permission []string

var (
	AllRoles        = Permission{domain.RoleAdmin, domain.RoleMakeupArtist, domain.RoleCashier, domain.RoleOwner}
	CustomerWriters = Permission{domain.RoleAdmin, domain.RoleCashier, domain.RoleMakeupArtist}
	CatalogWriters  = Permission{domain.RoleAdmin}
	BookingWriters  = Permission{domain.RoleAdmin, domain.RoleMakeupArtist}
	SaleComposers   = Permission{domain.RoleAdmin, domain.RoleCashier}
	SaleReaders     = Permission{domain.RoleAdmin, domain.RoleCashier, domain.RoleOwner}
	PaymentWriters  = Permission{domain.RoleAdmin, domain.RoleCashier}
	PaymentReaders  = Permission{domain.RoleAdmin, domain.RoleCashier, domain.RoleOwner}
	ReceiptReaders  = Permission{domain.RoleAdmin, domain.RoleCashier, domain.RoleOwner}
	AuditReaders    = Permission{domain.RoleAdmin, domain.RoleOwner}
	StaffAdmins     = Permission{domain.RoleAdmin}
)

func (p Permission) Allows(role string) bool {
	return slices.Contains(p, role)
}

type Options struct {
	Cache    cache.JSONCache
	CacheTTL time.Duration
	Location *time.Location
	Business receipt.Business
	Receipts *receipt.Writer
	DraftTTL time.Duration
	Now      func() time.Time
}

type Service struct {
	repo     store.Repository
	cache    cache.JSONCache
	cacheTTL time.Duration
	loc      *time.Location
	business receipt.Business
	receipts *receipt.Writer
	drafts   *DraftBook
	now      func() time.Time
}

func New(repo store.Repository, opts Options) *Service {
	if opts.Cache == nil {
		opts.Cache = cache.NoopCache{}
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = time.Minute
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Receipts == nil {
		opts.Receipts = receipt.NewWriter("")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &Service{
		repo:     repo,
		cache:    opts.Cache,
		cacheTTL: opts.CacheTTL,
		loc:      opts.Location,
		business: opts.Business,
		receipts: opts.Receipts,
		now:      opts.Now,
	}
	s.drafts = NewDraftBook(opts.DraftTTL, opts.Now)
	return s
}

// Drafts exposes the open sale drafts so callers can sweep idle ones.
func (s *Service) Drafts() *DraftBook {
	return s.drafts
}

func (s *Service) Location() *time.Location {
	return s.loc
}

func (s *Service) authorize(ctx context.Context, perm Permission, operation string) (domain.Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return domain.Actor{}, fmt.Errorf("%w: no active session", ErrForbidden)
	}
	if !perm.Allows(actor.Role) {
		return domain.Actor{}, fmt.Errorf("%w: role %s may not %s", ErrForbidden, actor.Role, operation)
	}
	return actor, nil
}

// today is the current civil date in the business timezone, as UTC midnight.
func (s *Service) today() time.Time {
	return civilDate(s.now().In(s.loc))
}

func civilDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// parseDate reads a YYYY-MM-DD value. An empty value means today.
func (s *Service) parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return s.today(), nil
	}
	parsed, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date must be YYYY-MM-DD", store.ErrValidation)
	}
	return parsed, nil
}

func (s *Service) ListAuditLogs(ctx context.Context, date string, limit int) ([]domain.AuditLog, error) {
	if _, err := s.authorize(ctx, AuditReaders, "read audit log"); err != nil {
		return nil, err
	}
	if limit < 1 {
		limit = 100
	}

	from, err := s.parseDate(date)
	if err != nil {
		return nil, err
	}
	// audit rows carry instants; the civil day is bounded in the business zone
	start := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, s.loc)
	return s.repo.ListAuditLogs(ctx, start.UTC(), start.AddDate(0, 0, 1).UTC(), limit)
}

func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID any, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	id := fmt.Sprint(entityID)
	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:            xid.New("audit"),
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      id,
		Detail:        detail,
		CreatedAt:     s.now().UTC(),
	}); err != nil {
		log.Printf("[audit] WARN: failed to write audit log action=%s entity=%s/%s: %v", action, entityType, id, err)
	}
}

func (s *Service) invalidate(ctx context.Context, keys ...string) {
	if err := s.cache.Delete(ctx, keys...); err != nil {
		log.Printf("[service] WARN: cache invalidation failed keys=%v: %v", keys, err)
	}
}

// notFoundAsValidation turns a missing reference into a validation failure.
func notFoundAsValidation(err error, what string) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %s does not exist", store.ErrValidation, what)
	}
	return err
}
