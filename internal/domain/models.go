package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	RoleAdmin        = "admin"
	RoleMakeupArtist = "makeup_artist"
	RoleCashier      = "cashier"
	RoleOwner        = "owner"
)

// RoleLabel returns the display name shown next to a signed-in user.
func RoleLabel(role string) string {
	switch role {
	case RoleAdmin:
		return "Administrator"
	case RoleMakeupArtist:
		return "Makeup Artist"
	case RoleCashier:
		return "Kasir"
	case RoleOwner:
		return "Owner"
	default:
		return role
	}
}

func IsKnownRole(role string) bool {
	switch role {
	case RoleAdmin, RoleMakeupArtist, RoleCashier, RoleOwner:
		return true
	default:
		return false
	}
}

type BookingStatus string

const (
	BookingPending    BookingStatus = "pending"
	BookingInProgress BookingStatus = "in_progress"
	BookingDone       BookingStatus = "done"
)

func (s BookingStatus) Valid() bool {
	switch s {
	case BookingPending, BookingInProgress, BookingDone:
		return true
	default:
		return false
	}
}

func (s BookingStatus) Label() string {
	switch s {
	case BookingPending:
		return "Menunggu"
	case BookingInProgress:
		return "Proses"
	case BookingDone:
		return "Selesai"
	default:
		return string(s)
	}
}

type PaymentStatus string

const (
	PaymentPaid        PaymentStatus = "paid"
	PaymentUnpaid      PaymentStatus = "unpaid"
	PaymentDownPayment PaymentStatus = "down_payment"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPaid, PaymentUnpaid, PaymentDownPayment:
		return true
	default:
		return false
	}
}

func (s PaymentStatus) Label() string {
	switch s {
	case PaymentPaid:
		return "Lunas"
	case PaymentUnpaid:
		return "Belum Lunas"
	case PaymentDownPayment:
		return "DP (Down Payment)"
	default:
		return string(s)
	}
}

type PaymentMethod string

const (
	MethodCash         PaymentMethod = "cash"
	MethodBankTransfer PaymentMethod = "bank_transfer"
	MethodEWallet      PaymentMethod = "e_wallet"
	MethodCard         PaymentMethod = "card"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCash, MethodBankTransfer, MethodEWallet, MethodCard:
		return true
	default:
		return false
	}
}

func (m PaymentMethod) Label() string {
	switch m {
	case MethodCash:
		return "Cash"
	case MethodBankTransfer:
		return "Transfer Bank"
	case MethodEWallet:
		return "E-Wallet (GoPay/OVO/Dana)"
	case MethodCard:
		return "Debit/Credit Card"
	default:
		return string(m)
	}
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	UserID      int64  `json:"user_id"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
	RoleLabel   string `json:"role_label"`
	ExpiresAt   string `json:"expires_at"`
}

// Actor is the authenticated principal carried through a request context.
type Actor struct {
	UserID      int64
	Username    string
	DisplayName string
	Role        string
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	ID          int64
	Username    string
	Password    string
	DisplayName string
	Role        string
	Active      bool
	CreatedAt   time.Time
}

type StaffMember struct {
	ID          int64     `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	Role        string    `json:"role"`
	RoleLabel   string    `json:"role_label"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
}

type StaffCreateRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
}

type Customer struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Address   string    `json:"address"`
	CreatedAt time.Time `json:"created_at"`
}

type CustomerRequest struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

type ServiceCategory struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type CategoryRequest struct {
	Name string `json:"name"`
}

type Service struct {
	ID              int64           `json:"id"`
	CategoryID      int64           `json:"category_id"`
	CategoryName    string          `json:"category_name"`
	Name            string          `json:"name"`
	Price           decimal.Decimal `json:"price"`
	DurationMinutes int             `json:"duration_minutes"`
	Description     string          `json:"description,omitempty"`
}

type ServiceRequest struct {
	CategoryID      int64           `json:"category_id"`
	Name            string          `json:"name"`
	Price           decimal.Decimal `json:"price"`
	DurationMinutes int             `json:"duration_minutes"`
	Description     string          `json:"description"`
}

type ServiceFilter struct {
	Keyword    string
	CategoryID int64
}

type Booking struct {
	ID           int64         `json:"id"`
	CustomerID   int64         `json:"customer_id"`
	CustomerName string        `json:"customer_name"`
	StaffID      int64         `json:"staff_id"`
	StaffName    string        `json:"staff_name"`
	Date         time.Time     `json:"date"`
	StartTime    string        `json:"start_time"`
	EndTime      string        `json:"end_time"`
	Status       BookingStatus `json:"status"`
	StatusLabel  string        `json:"status_label"`
	CreatedAt    time.Time     `json:"created_at"`
}

type BookingRequest struct {
	CustomerID int64         `json:"customer_id"`
	StaffID    int64         `json:"staff_id"`
	Date       string        `json:"date"`
	StartTime  string        `json:"start_time"`
	EndTime    string        `json:"end_time"`
	Status     BookingStatus `json:"status"`
}

type BookingFilter struct {
	Status     BookingStatus
	CustomerID int64
	StaffID    int64
	Date       *time.Time
}

type Sale struct {
	ID           int64           `json:"id"`
	Date         time.Time       `json:"date"`
	CustomerID   int64           `json:"customer_id"`
	CustomerName string          `json:"customer_name"`
	CreatedBy    int64           `json:"created_by"`
	CreatorName  string          `json:"creator_name"`
	BookingID    *int64          `json:"booking_id,omitempty"`
	Total        decimal.Decimal `json:"total"`
	CreatedAt    time.Time       `json:"created_at"`
	Lines        []SaleLine      `json:"lines"`
}

type SaleLine struct {
	ID          int64           `json:"id"`
	SaleID      int64           `json:"sale_id"`
	ServiceID   int64           `json:"service_id"`
	ServiceName string          `json:"service_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

type SaleSummary struct {
	ID           int64           `json:"id"`
	Date         time.Time       `json:"date"`
	CustomerID   int64           `json:"customer_id"`
	CustomerName string          `json:"customer_name"`
	Total        decimal.Decimal `json:"total"`
	Paid         decimal.Decimal `json:"paid"`
	Settled      bool            `json:"settled"`
}

type SaleFilter struct {
	From  *time.Time
	To    *time.Time
	Limit int
}

type SaleCommitRequest struct {
	CustomerID int64  `json:"customer_id"`
	Date       string `json:"date"`
	BookingID  *int64 `json:"booking_id,omitempty"`
}

type DraftLineRequest struct {
	ServiceID int64 `json:"service_id"`
	Quantity  int   `json:"quantity"`
}

type DraftView struct {
	ID    string          `json:"id"`
	Lines []SaleLine      `json:"lines"`
	Total decimal.Decimal `json:"total"`
}

type Payment struct {
	ID           int64           `json:"id"`
	SaleID       int64           `json:"sale_id"`
	Amount       decimal.Decimal `json:"amount"`
	Method       PaymentMethod   `json:"method"`
	Date         time.Time       `json:"date"`
	Status       PaymentStatus   `json:"status"`
	RecordedBy   int64           `json:"recorded_by"`
	CreatedAt    time.Time       `json:"created_at"`
	CustomerName string          `json:"customer_name,omitempty"`
	SaleTotal    decimal.Decimal `json:"sale_total"`
}

type PaymentRequest struct {
	SaleID int64           `json:"sale_id"`
	Amount decimal.Decimal `json:"amount"`
	Method PaymentMethod   `json:"method"`
	Status PaymentStatus   `json:"status"`
	Date   string          `json:"date"`
}

type PaymentResult struct {
	Payment Payment         `json:"payment"`
	Change  decimal.Decimal `json:"change"`
}

// Change splits amount minus total into the value shown to the operator and
// the shortfall that still blocks a settling payment.
type Change struct {
	Raw       decimal.Decimal `json:"raw"`
	Display   decimal.Decimal `json:"display"`
	Shortfall decimal.Decimal `json:"shortfall"`
}

type ReceiptFile struct {
	SaleID   int64  `json:"sale_id"`
	Layout   string `json:"layout"`
	FileName string `json:"file_name"`
	Path     string `json:"path"`
	Pages    int    `json:"pages"`
}

type PrinterReceipt struct {
	SaleID       int64  `json:"sale_id"`
	EscposBase64 string `json:"escpos_base64"`
	PreviewText  string `json:"preview_text"`
	FileName     string `json:"file_name"`
}

type DashboardStats struct {
	Date           string          `json:"date"`
	TotalCustomers int             `json:"total_customers"`
	SalesThisMonth int             `json:"sales_this_month"`
	RevenueToday   decimal.Decimal `json:"revenue_today"`
	BookingsToday  int             `json:"bookings_today"`
	TodayBookings  []Booking       `json:"today_bookings"`
}

type AuditLog struct {
	ID            string    `json:"id"`
	ActorUsername string    `json:"actor_username"`
	ActorRole     string    `json:"actor_role"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"created_at"`
}
