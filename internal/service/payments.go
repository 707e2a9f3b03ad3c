package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"riasin/backend/internal/domain"
	"riasin/backend/internal/store"
)

type ReconcilerState int

const (
	NoActiveSale ReconcilerState = iota
	SaleLoaded
	PaymentRecorded
)

func (s ReconcilerState) String() string {
	switch s {
	case SaleLoaded:
		return "sale_loaded"
	case PaymentRecorded:
		return "payment_recorded"
	default:
		return "no_active_sale"
	}
}

// Reconciler settles one sale at a time: locate it, preview the change for
// a tendered amount, then record the payment.
type Reconciler struct {
	svc     *Service
	state   ReconcilerState
	sale    *domain.Sale
	payment *domain.Payment
}

func (s *Service) NewReconciler() *Reconciler {
	return &Reconciler{svc: s}
}

func (r *Reconciler) State() ReconcilerState {
	return r.state
}

func (r *Reconciler) Sale() (domain.Sale, bool) {
	if r.sale == nil {
		return domain.Sale{}, false
	}
	return *r.sale, true
}

// LocateSale treats an all-digit query as a sale id and anything else as a
// customer name fragment, picking that customer's most recent sale.
func (r *Reconciler) LocateSale(ctx context.Context, query string) (domain.Sale, error) {
	if _, err := r.svc.authorize(ctx, PaymentReaders, "look up sales for payment"); err != nil {
		return domain.Sale{}, err
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return domain.Sale{}, fmt.Errorf("%w: enter a sale id or customer name", store.ErrValidation)
	}

	var (
		sale *domain.Sale
		err  error
	)
	if isDigits(query) {
		id, convErr := strconv.ParseInt(query, 10, 64)
		if convErr != nil {
			return domain.Sale{}, fmt.Errorf("%w: sale id out of range", store.ErrValidation)
		}
		sale, err = r.svc.repo.GetSale(ctx, id)
	} else {
		sale, err = r.svc.repo.FindLatestSaleByCustomerName(ctx, query)
	}
	if err != nil {
		r.Reset()
		return domain.Sale{}, err
	}

	settled, err := r.svc.repo.HasSettledPayment(ctx, sale.ID)
	if err != nil {
		r.Reset()
		return domain.Sale{}, err
	}
	if settled {
		r.Reset()
		return domain.Sale{}, fmt.Errorf("%w: sale %d", ErrAlreadySettled, sale.ID)
	}

	r.sale = sale
	r.payment = nil
	r.state = SaleLoaded
	return *sale, nil
}

// ComputeChange needs a loaded sale; it does not change state.
func (r *Reconciler) ComputeChange(amount decimal.Decimal) (domain.Change, error) {
	if r.sale == nil {
		return domain.Change{}, fmt.Errorf("%w: no sale loaded", store.ErrValidation)
	}
	return ComputeChange(amount, r.sale.Total), nil
}

func (r *Reconciler) RecordPayment(ctx context.Context, req domain.PaymentRequest) (domain.PaymentResult, error) {
	actor, err := r.svc.authorize(ctx, PaymentWriters, "record payments")
	if err != nil {
		return domain.PaymentResult{}, err
	}
	if r.state != SaleLoaded || r.sale == nil {
		return domain.PaymentResult{}, fmt.Errorf("%w: no sale loaded for payment", store.ErrValidation)
	}

	if !req.Amount.GreaterThan(decimal.Zero) {
		return domain.PaymentResult{}, fmt.Errorf("%w: amount must be greater than zero", store.ErrValidation)
	}
	if !req.Method.Valid() {
		return domain.PaymentResult{}, fmt.Errorf("%w: unknown payment method %q", store.ErrValidation, req.Method)
	}
	if !req.Status.Valid() {
		return domain.PaymentResult{}, fmt.Errorf("%w: unknown payment status %q", store.ErrValidation, req.Status)
	}
	date, err := r.svc.parseDate(req.Date)
	if err != nil {
		return domain.PaymentResult{}, err
	}

	change := ComputeChange(req.Amount, r.sale.Total)
	if req.Status == domain.PaymentPaid && change.Shortfall.GreaterThan(decimal.Zero) {
		return domain.PaymentResult{}, fmt.Errorf("%w: short by %s", ErrInsufficientPayment, change.Shortfall)
	}

	payment, err := r.svc.repo.CreatePayment(ctx, domain.Payment{
		SaleID:     r.sale.ID,
		Amount:     req.Amount,
		Method:     req.Method,
		Date:       date,
		Status:     req.Status,
		RecordedBy: actor.UserID,
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			saleID := r.sale.ID
			r.Reset()
			return domain.PaymentResult{}, fmt.Errorf("%w: sale %d", ErrAlreadySettled, saleID)
		}
		return domain.PaymentResult{}, err
	}

	r.payment = payment
	r.state = PaymentRecorded

	r.svc.logAudit(ctx, "payment_record", "payment", payment.ID,
		fmt.Sprintf("sale=%d,amount=%s,method=%s,status=%s", payment.SaleID, payment.Amount, payment.Method, payment.Status))
	return domain.PaymentResult{Payment: *payment, Change: change.Raw}, nil
}

func (r *Reconciler) Reset() {
	r.state = NoActiveSale
	r.sale = nil
	r.payment = nil
}

// ComputeChange splits amount - total into the operator-facing change and
// the shortfall.
func ComputeChange(amount decimal.Decimal, total decimal.Decimal) domain.Change {
	raw := amount.Sub(total)
	return domain.Change{
		Raw:       raw,
		Display:   decimal.Max(raw, decimal.Zero),
		Shortfall: decimal.Max(raw.Neg(), decimal.Zero),
	}
}

func (s *Service) LocatePayableSale(ctx context.Context, query string) (domain.Sale, error) {
	return s.NewReconciler().LocateSale(ctx, query)
}

func (s *Service) PreviewChange(ctx context.Context, saleID int64, amount decimal.Decimal) (domain.Change, error) {
	r := s.NewReconciler()
	if _, err := r.LocateSale(ctx, strconv.FormatInt(saleID, 10)); err != nil {
		return domain.Change{}, err
	}
	return r.ComputeChange(amount)
}

func (s *Service) RecordPayment(ctx context.Context, req domain.PaymentRequest) (domain.PaymentResult, error) {
	if _, err := s.authorize(ctx, PaymentWriters, "record payments"); err != nil {
		return domain.PaymentResult{}, err
	}
	if req.SaleID < 1 {
		return domain.PaymentResult{}, fmt.Errorf("%w: sale is required", store.ErrValidation)
	}

	r := s.NewReconciler()
	if _, err := r.LocateSale(ctx, strconv.FormatInt(req.SaleID, 10)); err != nil {
		return domain.PaymentResult{}, err
	}
	return r.RecordPayment(ctx, req)
}

func (s *Service) ListPayments(ctx context.Context, limit int) ([]domain.Payment, error) {
	if _, err := s.authorize(ctx, PaymentReaders, "read payments"); err != nil {
		return nil, err
	}
	if limit < 1 || limit > 500 {
		limit = 100
	}
	return s.repo.ListPayments(ctx, limit)
}

func (s *Service) ListSalePayments(ctx context.Context, saleID int64) ([]domain.Payment, error) {
	if _, err := s.authorize(ctx, PaymentReaders, "read payments"); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetSale(ctx, saleID); err != nil {
		return nil, err
	}
	return s.repo.ListSalePayments(ctx, saleID)
}

func isDigits(value string) bool {
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return value != ""
}
