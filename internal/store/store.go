package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"riasin/backend/internal/domain"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrValidation = errors.New("validation failed")
	ErrStore      = errors.New("store failure")
)

type Repository interface {
	CreateUser(ctx context.Context, user domain.UserAccount) (*domain.UserAccount, error)
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	GetUserByID(ctx context.Context, id int64) (*domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error

	ListCustomers(ctx context.Context, keyword string) ([]domain.Customer, error)
	GetCustomer(ctx context.Context, id int64) (*domain.Customer, error)
	FindCustomerByPhone(ctx context.Context, phone string) (*domain.Customer, error)
	CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	UpdateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	DeleteCustomer(ctx context.Context, id int64) error
	CountCustomers(ctx context.Context) (int, error)

	ListCategories(ctx context.Context) ([]domain.ServiceCategory, error)
	GetCategory(ctx context.Context, id int64) (*domain.ServiceCategory, error)
	CreateCategory(ctx context.Context, category domain.ServiceCategory) (*domain.ServiceCategory, error)
	UpdateCategory(ctx context.Context, category domain.ServiceCategory) (*domain.ServiceCategory, error)
	DeleteCategory(ctx context.Context, id int64) error

	ListServices(ctx context.Context, filter domain.ServiceFilter) ([]domain.Service, error)
	GetService(ctx context.Context, id int64) (*domain.Service, error)
	CreateService(ctx context.Context, svc domain.Service) (*domain.Service, error)
	UpdateService(ctx context.Context, svc domain.Service) (*domain.Service, error)
	DeleteService(ctx context.Context, id int64) error

	ListBookings(ctx context.Context, filter domain.BookingFilter) ([]domain.Booking, error)
	GetBooking(ctx context.Context, id int64) (*domain.Booking, error)
	CreateBooking(ctx context.Context, booking domain.Booking) (*domain.Booking, error)
	UpdateBooking(ctx context.Context, booking domain.Booking) (*domain.Booking, error)
	DeleteBooking(ctx context.Context, id int64) error

	// CreateSale writes the header and every line in one unit. Either all rows
	// persist or none do.
	CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
	GetSale(ctx context.Context, id int64) (*domain.Sale, error)
	FindLatestSaleByCustomerName(ctx context.Context, keyword string) (*domain.Sale, error)
	ListSales(ctx context.Context, filter domain.SaleFilter) ([]domain.SaleSummary, error)
	SumSales(ctx context.Context, from time.Time, to time.Time) (int, decimal.Decimal, error)

	// CreatePayment rejects a second paid payment for the same sale with ErrConflict.
	CreatePayment(ctx context.Context, payment domain.Payment) (*domain.Payment, error)
	ListSalePayments(ctx context.Context, saleID int64) ([]domain.Payment, error)
	ListPayments(ctx context.Context, limit int) ([]domain.Payment, error)
	HasSettledPayment(ctx context.Context, saleID int64) (bool, error)

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)
}
