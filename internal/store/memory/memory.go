package memory

import (
	"cmp"
	"context"
	"fmt"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"riasin/backend/internal/domain"
	"riasin/backend/internal/store"
)

type Store struct {
	mu         sync.RWMutex
	lastID     map[string]int64
	users      map[int64]domain.UserAccount
	customers  map[int64]domain.Customer
	categories map[int64]domain.ServiceCategory
	services   map[int64]domain.Service
	bookings   map[int64]domain.Booking
	sales      map[int64]domain.Sale
	payments   map[int64]domain.Payment
	auditLogs  []domain.AuditLog
}

func New() *Store {
	return &Store{
		lastID:     make(map[string]int64),
		users:      make(map[int64]domain.UserAccount),
		customers:  make(map[int64]domain.Customer),
		categories: make(map[int64]domain.ServiceCategory),
		services:   make(map[int64]domain.Service),
		bookings:   make(map[int64]domain.Booking),
		sales:      make(map[int64]domain.Sale),
		payments:   make(map[int64]domain.Payment),
		auditLogs:  make([]domain.AuditLog, 0, 128),
	}
}

// seedUsers builds the initial in-memory user accounts for dev/demo mode.
// Credentials are read from SEED_*_PASSWORD environment variables. If unset,
// hardcoded dev defaults are used with a warning. These accounts never exist
// in production, where the backend runs on PostgreSQL.
func seedUsers(now time.Time) []domain.UserAccount {
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_STAFF_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_STAFF_PASSWORD to override.")
	}
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	staffPwd := envOr("SEED_STAFF_PASSWORD", "staff123")

	users := make([]domain.UserAccount, 0, 4)
	for i, u := range []struct {
		username    string
		displayName string
		password    string
		role        string
	}{
		{"admin", "Administrator", adminPwd, domain.RoleAdmin},
		{"rani", "Rani Kusuma", staffPwd, domain.RoleMakeupArtist},
		{"kasir", "Kasir Utama", staffPwd, domain.RoleCashier},
		{"owner", "Pemilik Studio", staffPwd, domain.RoleOwner},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users = append(users, domain.UserAccount{
			ID:          int64(i + 1),
			Username:    u.username,
			Password:    string(hash),
			DisplayName: u.displayName,
			Role:        u.role,
			Active:      true,
			CreatedAt:   now,
		})
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// NewSeeded returns a store with demo staff, catalog and customers.
func NewSeeded() *Store {
	s := New()
	now := time.Now().UTC()

	for _, user := range seedUsers(now) {
		s.users[user.ID] = user
		s.lastID["user"] = user.ID
	}

	for _, category := range []domain.ServiceCategory{
		{ID: 1, Name: "Makeup"},
		{ID: 2, Name: "Perawatan Wajah"},
		{ID: 3, Name: "Hair Do"},
	} {
		s.categories[category.ID] = category
		s.lastID["category"] = category.ID
	}

	for _, svc := range []domain.Service{
		{ID: 1, CategoryID: 1, Name: "Makeup Pengantin", Price: decimal.NewFromInt(2500000), DurationMinutes: 180, Description: "Termasuk trial satu kali"},
		{ID: 2, CategoryID: 1, Name: "Makeup Wisuda", Price: decimal.NewFromInt(350000), DurationMinutes: 90},
		{ID: 3, CategoryID: 2, Name: "Facial", Price: decimal.NewFromInt(150000), DurationMinutes: 60},
		{ID: 4, CategoryID: 3, Name: "Hair Do Modern", Price: decimal.NewFromInt(200000), DurationMinutes: 60},
	} {
		s.services[svc.ID] = svc
		s.lastID["service"] = svc.ID
	}

	for _, customer := range []domain.Customer{
		{ID: 1, Name: "Siti Aminah", Phone: "081234567001", Address: "Jl. Melati No. 5, Bandung", CreatedAt: now},
		{ID: 2, Name: "Dewi Lestari", Phone: "6281234567002", Address: "Jl. Kenanga No. 12, Bandung", CreatedAt: now},
	} {
		s.customers[customer.ID] = customer
		s.lastID["customer"] = customer.ID
	}

	return s
}

func (s *Store) nextID(kind string) int64 {
	s.lastID[kind]++
	return s.lastID[kind]
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) (*domain.UserAccount, error) {
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	if user.Username == "" || strings.TrimSpace(user.Password) == "" {
		return nil, store.ErrValidation
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if existing.Username == user.Username {
			return nil, fmt.Errorf("%w: username %s already exists", store.ErrConflict, user.Username)
		}
	}
	user.ID = s.nextID("user")
	s.users[user.ID] = user

	created := user
	return &created, nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.users))
	for _, user := range s.users {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return strings.Compare(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) GetUserByID(_ context.Context, id int64) (*domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &user, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, user := range s.users {
		if user.Username == username {
			user.Password = password
			s.users[id] = user
			return nil
		}
	}
	return store.ErrNotFound
}

func (s *Store) ListCustomers(_ context.Context, keyword string) ([]domain.Customer, error) {
	needle := strings.ToLower(strings.TrimSpace(keyword))

	s.mu.RLock()
	defer s.mu.RUnlock()

	customers := make([]domain.Customer, 0, len(s.customers))
	for _, customer := range s.customers {
		if needle != "" &&
			!strings.Contains(strings.ToLower(customer.Name), needle) &&
			!strings.Contains(strings.ToLower(customer.Phone), needle) &&
			!strings.Contains(strings.ToLower(customer.Address), needle) {
			continue
		}
		customers = append(customers, customer)
	}
	slices.SortFunc(customers, func(a, b domain.Customer) int {
		return cmp.Or(strings.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
	})
	return customers, nil
}

func (s *Store) GetCustomer(_ context.Context, id int64) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customer, ok := s.customers[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &customer, nil
}

func (s *Store) FindCustomerByPhone(_ context.Context, phone string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, customer := range s.customers {
		if customer.Phone == phone {
			found := customer
			return &found, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) CreateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phoneTakenLocked(customer.Phone, 0) {
		return nil, fmt.Errorf("%w: phone %s already registered", store.ErrConflict, customer.Phone)
	}
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = time.Now().UTC()
	}
	customer.ID = s.nextID("customer")
	s.customers[customer.ID] = customer

	created := customer
	return &created, nil
}

func (s *Store) UpdateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.customers[customer.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if s.phoneTakenLocked(customer.Phone, customer.ID) {
		return nil, fmt.Errorf("%w: phone %s already registered", store.ErrConflict, customer.Phone)
	}
	customer.CreatedAt = existing.CreatedAt
	s.customers[customer.ID] = customer

	updated := customer
	return &updated, nil
}

func (s *Store) DeleteCustomer(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.customers[id]; !ok {
		return store.ErrNotFound
	}
	for _, sale := range s.sales {
		if sale.CustomerID == id {
			return fmt.Errorf("%w: customer %d has sales", store.ErrConflict, id)
		}
	}
	for _, booking := range s.bookings {
		if booking.CustomerID == id {
			return fmt.Errorf("%w: customer %d has bookings", store.ErrConflict, id)
		}
	}
	delete(s.customers, id)
	return nil
}

func (s *Store) CountCustomers(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.customers), nil
}

func (s *Store) phoneTakenLocked(phone string, exceptID int64) bool {
	for id, customer := range s.customers {
		if id != exceptID && customer.Phone == phone {
			return true
		}
	}
	return false
}

func (s *Store) ListCategories(_ context.Context) ([]domain.ServiceCategory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	categories := make([]domain.ServiceCategory, 0, len(s.categories))
	for _, category := range s.categories {
		categories = append(categories, category)
	}
	slices.SortFunc(categories, func(a, b domain.ServiceCategory) int {
		return cmp.Or(strings.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
	})
	return categories, nil
}

func (s *Store) GetCategory(_ context.Context, id int64) (*domain.ServiceCategory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	category, ok := s.categories[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &category, nil
}

func (s *Store) CreateCategory(_ context.Context, category domain.ServiceCategory) (*domain.ServiceCategory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.categoryNameTakenLocked(category.Name, 0) {
		return nil, fmt.Errorf("%w: category %s already exists", store.ErrConflict, category.Name)
	}
	category.ID = s.nextID("category")
	s.categories[category.ID] = category

	created := category
	return &created, nil
}

func (s *Store) UpdateCategory(_ context.Context, category domain.ServiceCategory) (*domain.ServiceCategory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.categories[category.ID]; !ok {
		return nil, store.ErrNotFound
	}
	if s.categoryNameTakenLocked(category.Name, category.ID) {
		return nil, fmt.Errorf("%w: category %s already exists", store.ErrConflict, category.Name)
	}
	s.categories[category.ID] = category

	updated := category
	return &updated, nil
}

func (s *Store) DeleteCategory(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.categories[id]; !ok {
		return store.ErrNotFound
	}
	for _, svc := range s.services {
		if svc.CategoryID == id {
			return fmt.Errorf("%w: category %d still has services", store.ErrConflict, id)
		}
	}
	delete(s.categories, id)
	return nil
}

func (s *Store) categoryNameTakenLocked(name string, exceptID int64) bool {
	for id, category := range s.categories {
		if id != exceptID && strings.EqualFold(category.Name, name) {
			return true
		}
	}
	return false
}

func (s *Store) ListServices(_ context.Context, filter domain.ServiceFilter) ([]domain.Service, error) {
	needle := strings.ToLower(strings.TrimSpace(filter.Keyword))

	s.mu.RLock()
	defer s.mu.RUnlock()

	services := make([]domain.Service, 0, len(s.services))
	for _, svc := range s.services {
		if filter.CategoryID != 0 && svc.CategoryID != filter.CategoryID {
			continue
		}
		if needle != "" &&
			!strings.Contains(strings.ToLower(svc.Name), needle) &&
			!strings.Contains(strings.ToLower(svc.Description), needle) {
			continue
		}
		services = append(services, s.decorateServiceLocked(svc))
	}
	slices.SortFunc(services, func(a, b domain.Service) int {
		return cmp.Or(strings.Compare(a.CategoryName, b.CategoryName), strings.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
	})
	return services, nil
}

func (s *Store) GetService(_ context.Context, id int64) (*domain.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	svc, ok := s.services[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	decorated := s.decorateServiceLocked(svc)
	return &decorated, nil
}

func (s *Store) CreateService(_ context.Context, svc domain.Service) (*domain.Service, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.categories[svc.CategoryID]; !ok {
		return nil, fmt.Errorf("%w: category %d does not exist", store.ErrValidation, svc.CategoryID)
	}
	svc.ID = s.nextID("service")
	svc.CategoryName = ""
	s.services[svc.ID] = svc

	created := s.decorateServiceLocked(svc)
	return &created, nil
}

func (s *Store) UpdateService(_ context.Context, svc domain.Service) (*domain.Service, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.services[svc.ID]; !ok {
		return nil, store.ErrNotFound
	}
	if _, ok := s.categories[svc.CategoryID]; !ok {
		return nil, fmt.Errorf("%w: category %d does not exist", store.ErrValidation, svc.CategoryID)
	}
	svc.CategoryName = ""
	s.services[svc.ID] = svc

	updated := s.decorateServiceLocked(svc)
	return &updated, nil
}

func (s *Store) DeleteService(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.services[id]; !ok {
		return store.ErrNotFound
	}
	for _, sale := range s.sales {
		for _, line := range sale.Lines {
			if line.ServiceID == id {
				return fmt.Errorf("%w: service %d is used by sale %d", store.ErrConflict, id, sale.ID)
			}
		}
	}
	delete(s.services, id)
	return nil
}

func (s *Store) decorateServiceLocked(svc domain.Service) domain.Service {
	if category, ok := s.categories[svc.CategoryID]; ok {
		svc.CategoryName = category.Name
	}
	return svc
}

func (s *Store) ListBookings(_ context.Context, filter domain.BookingFilter) ([]domain.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bookings := make([]domain.Booking, 0, len(s.bookings))
	for _, booking := range s.bookings {
		if filter.Status != "" && booking.Status != filter.Status {
			continue
		}
		if filter.CustomerID != 0 && booking.CustomerID != filter.CustomerID {
			continue
		}
		if filter.StaffID != 0 && booking.StaffID != filter.StaffID {
			continue
		}
		if filter.Date != nil && !booking.Date.Equal(*filter.Date) {
			continue
		}
		bookings = append(bookings, s.decorateBookingLocked(booking))
	}
	slices.SortFunc(bookings, func(a, b domain.Booking) int {
		return cmp.Or(a.Date.Compare(b.Date), strings.Compare(a.StartTime, b.StartTime), cmp.Compare(a.ID, b.ID))
	})
	return bookings, nil
}

func (s *Store) GetBooking(_ context.Context, id int64) (*domain.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	booking, ok := s.bookings[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	decorated := s.decorateBookingLocked(booking)
	return &decorated, nil
}

func (s *Store) CreateBooking(_ context.Context, booking domain.Booking) (*domain.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkBookingRefsLocked(booking); err != nil {
		return nil, err
	}
	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = time.Now().UTC()
	}
	booking.ID = s.nextID("booking")
	s.bookings[booking.ID] = booking

	created := s.decorateBookingLocked(booking)
	return &created, nil
}

func (s *Store) UpdateBooking(_ context.Context, booking domain.Booking) (*domain.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.bookings[booking.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if err := s.checkBookingRefsLocked(booking); err != nil {
		return nil, err
	}
	booking.CreatedAt = existing.CreatedAt
	s.bookings[booking.ID] = booking

	updated := s.decorateBookingLocked(booking)
	return &updated, nil
}

func (s *Store) DeleteBooking(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.bookings[id]; !ok {
		return store.ErrNotFound
	}
	for _, sale := range s.sales {
		if sale.BookingID != nil && *sale.BookingID == id {
			return fmt.Errorf("%w: booking %d is linked to sale %d", store.ErrConflict, id, sale.ID)
		}
	}
	delete(s.bookings, id)
	return nil
}

func (s *Store) checkBookingRefsLocked(booking domain.Booking) error {
	if _, ok := s.customers[booking.CustomerID]; !ok {
		return fmt.Errorf("%w: customer %d does not exist", store.ErrValidation, booking.CustomerID)
	}
	if _, ok := s.users[booking.StaffID]; !ok {
		return fmt.Errorf("%w: staff %d does not exist", store.ErrValidation, booking.StaffID)
	}
	return nil
}

func (s *Store) decorateBookingLocked(booking domain.Booking) domain.Booking {
	booking.CustomerName = s.customers[booking.CustomerID].Name
	booking.StaffName = s.users[booking.StaffID].DisplayName
	booking.StatusLabel = booking.Status.Label()
	return booking
}

func (s *Store) CreateSale(_ context.Context, sale domain.Sale) (*domain.Sale, error) {
	if len(sale.Lines) == 0 {
		return nil, fmt.Errorf("%w: sale has no lines", store.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Every reference is checked before anything is written so a rejected
	// sale leaves no partial rows behind.
	if _, ok := s.customers[sale.CustomerID]; !ok {
		return nil, fmt.Errorf("%w: customer %d does not exist", store.ErrValidation, sale.CustomerID)
	}
	if _, ok := s.users[sale.CreatedBy]; !ok {
		return nil, fmt.Errorf("%w: user %d does not exist", store.ErrValidation, sale.CreatedBy)
	}
	if sale.BookingID != nil {
		if _, ok := s.bookings[*sale.BookingID]; !ok {
			return nil, fmt.Errorf("%w: booking %d does not exist", store.ErrValidation, *sale.BookingID)
		}
	}
	total := decimal.Zero
	for _, line := range sale.Lines {
		if _, ok := s.services[line.ServiceID]; !ok {
			return nil, fmt.Errorf("%w: service %d does not exist", store.ErrValidation, line.ServiceID)
		}
		if line.Quantity < 1 || !line.Subtotal.Equal(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity)))) {
			return nil, fmt.Errorf("%w: inconsistent line for service %d", store.ErrValidation, line.ServiceID)
		}
		total = total.Add(line.Subtotal)
	}
	if !total.Equal(sale.Total) {
		return nil, fmt.Errorf("%w: sale total %s does not match lines %s", store.ErrValidation, sale.Total, total)
	}

	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}
	sale.ID = s.nextID("sale")
	lines := make([]domain.SaleLine, 0, len(sale.Lines))
	for _, line := range sale.Lines {
		line.ID = s.nextID("sale_line")
		line.SaleID = sale.ID
		line.ServiceName = ""
		lines = append(lines, line)
	}
	sale.Lines = lines
	sale.CustomerName = ""
	sale.CreatorName = ""
	s.sales[sale.ID] = sale

	created := s.decorateSaleLocked(sale)
	return &created, nil
}

func (s *Store) GetSale(_ context.Context, id int64) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, ok := s.sales[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	decorated := s.decorateSaleLocked(sale)
	return &decorated, nil
}

func (s *Store) FindLatestSaleByCustomerName(_ context.Context, keyword string) (*domain.Sale, error) {
	needle := strings.ToLower(strings.TrimSpace(keyword))
	if needle == "" {
		return nil, store.ErrNotFound
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *domain.Sale
	for _, sale := range s.sales {
		name := strings.ToLower(s.customers[sale.CustomerID].Name)
		if !strings.Contains(name, needle) {
			continue
		}
		if latest == nil || sale.Date.After(latest.Date) || (sale.Date.Equal(latest.Date) && sale.ID > latest.ID) {
			candidate := sale
			latest = &candidate
		}
	}
	if latest == nil {
		return nil, store.ErrNotFound
	}
	decorated := s.decorateSaleLocked(*latest)
	return &decorated, nil
}

func (s *Store) ListSales(_ context.Context, filter domain.SaleFilter) ([]domain.SaleSummary, error) {
	limit := filter.Limit
	if limit < 1 {
		limit = 100
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	summaries := make([]domain.SaleSummary, 0, len(s.sales))
	for _, sale := range s.sales {
		if filter.From != nil && sale.Date.Before(*filter.From) {
			continue
		}
		if filter.To != nil && !sale.Date.Before(*filter.To) {
			continue
		}
		paid := decimal.Zero
		settled := false
		for _, payment := range s.payments {
			if payment.SaleID != sale.ID {
				continue
			}
			paid = paid.Add(payment.Amount)
			if payment.Status == domain.PaymentPaid {
				settled = true
			}
		}
		summaries = append(summaries, domain.SaleSummary{
			ID:           sale.ID,
			Date:         sale.Date,
			CustomerID:   sale.CustomerID,
			CustomerName: s.customers[sale.CustomerID].Name,
			Total:        sale.Total,
			Paid:         paid,
			Settled:      settled,
		})
	}
	slices.SortFunc(summaries, func(a, b domain.SaleSummary) int {
		return cmp.Or(b.Date.Compare(a.Date), cmp.Compare(b.ID, a.ID))
	})
	if len(summaries) > limit {
		summaries = summaries[:limit]
	}
	return summaries, nil
}

func (s *Store) SumSales(_ context.Context, from time.Time, to time.Time) (int, decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	sum := decimal.Zero
	for _, sale := range s.sales {
		if sale.Date.Before(from) || !sale.Date.Before(to) {
			continue
		}
		count++
		sum = sum.Add(sale.Total)
	}
	return count, sum, nil
}

func (s *Store) decorateSaleLocked(sale domain.Sale) domain.Sale {
	sale.CustomerName = s.customers[sale.CustomerID].Name
	sale.CreatorName = s.users[sale.CreatedBy].DisplayName
	lines := make([]domain.SaleLine, 0, len(sale.Lines))
	for _, line := range sale.Lines {
		line.ServiceName = s.services[line.ServiceID].Name
		lines = append(lines, line)
	}
	sale.Lines = lines
	if sale.BookingID != nil {
		bookingID := *sale.BookingID
		sale.BookingID = &bookingID
	}
	return sale
}

func (s *Store) CreatePayment(_ context.Context, payment domain.Payment) (*domain.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sales[payment.SaleID]; !ok {
		return nil, store.ErrNotFound
	}
	if s.hasSettledPaymentLocked(payment.SaleID) {
		return nil, fmt.Errorf("%w: sale %d is already settled", store.ErrConflict, payment.SaleID)
	}
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = time.Now().UTC()
	}
	payment.ID = s.nextID("payment")
	payment.CustomerName = ""
	payment.SaleTotal = decimal.Zero
	s.payments[payment.ID] = payment

	created := s.decoratePaymentLocked(payment)
	return &created, nil
}

func (s *Store) ListSalePayments(_ context.Context, saleID int64) ([]domain.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	payments := make([]domain.Payment, 0, 2)
	for _, payment := range s.payments {
		if payment.SaleID == saleID {
			payments = append(payments, s.decoratePaymentLocked(payment))
		}
	}
	slices.SortFunc(payments, func(a, b domain.Payment) int {
		return cmp.Or(a.Date.Compare(b.Date), cmp.Compare(a.ID, b.ID))
	})
	return payments, nil
}

func (s *Store) ListPayments(_ context.Context, limit int) ([]domain.Payment, error) {
	if limit < 1 {
		limit = 100
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	payments := make([]domain.Payment, 0, len(s.payments))
	for _, payment := range s.payments {
		payments = append(payments, s.decoratePaymentLocked(payment))
	}
	slices.SortFunc(payments, func(a, b domain.Payment) int {
		return cmp.Or(b.Date.Compare(a.Date), cmp.Compare(b.ID, a.ID))
	})
	if len(payments) > limit {
		payments = payments[:limit]
	}
	return payments, nil
}

func (s *Store) HasSettledPayment(_ context.Context, saleID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hasSettledPaymentLocked(saleID), nil
}

func (s *Store) hasSettledPaymentLocked(saleID int64) bool {
	for _, payment := range s.payments {
		if payment.SaleID == saleID && payment.Status == domain.PaymentPaid {
			return true
		}
	}
	return false
}

func (s *Store) decoratePaymentLocked(payment domain.Payment) domain.Payment {
	sale := s.sales[payment.SaleID]
	payment.SaleTotal = sale.Total
	payment.CustomerName = s.customers[sale.CustomerID].Name
	return payment
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	if entry.ID == "" || entry.Action == "" {
		return store.ErrValidation
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	s.auditLogs = append(s.auditLogs, entry)
	s.mu.Unlock()
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	logs := make([]domain.AuditLog, 0, limit)
	for i := len(s.auditLogs) - 1; i >= 0; i-- {
		entry := s.auditLogs[i]
		if entry.CreatedAt.Before(from) || !entry.CreatedAt.Before(to) {
			continue
		}
		logs = append(logs, entry)
		if len(logs) >= limit {
			break
		}
	}
	return logs, nil
}
