package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"riasin/backend/internal/domain"
	"riasin/backend/internal/store"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// withTx runs fn inside one transaction. The deferred rollback is a no-op
// once Commit has succeeded, so every early return releases the transaction.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return storeErr(err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return storeErr(err)
	}
	return nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) (*domain.UserAccount, error) {
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	if user.Username == "" || strings.TrimSpace(user.Password) == "" {
		return nil, store.ErrValidation
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO app_users (username, password, display_name, role, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,now())
		RETURNING id
	`, user.Username, user.Password, user.DisplayName, user.Role, user.Active, user.CreatedAt).Scan(&user.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: username %s already exists", store.ErrConflict, user.Username)
		}
		return nil, storeErr(err)
	}
	return &user, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, username, password, display_name, role, active, created_at
		FROM app_users
		ORDER BY username ASC
	`)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.ID, &user.Username, &user.Password, &user.DisplayName, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, storeErr(err)
		}
		user.CreatedAt = user.CreatedAt.UTC()
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(err)
	}
	return users, nil
}

func (s *Store) GetUserByID(ctx context.Context, id int64) (*domain.UserAccount, error) {
	var user domain.UserAccount
	err := s.db.QueryRowContext(ctx, `
		SELECT id, username, password, display_name, role, active, created_at
		FROM app_users
		WHERE id = $1
	`, id).Scan(&user.ID, &user.Username, &user.Password, &user.DisplayName, &user.Role, &user.Active, &user.CreatedAt)
	if err != nil {
		return nil, lookupErr(err)
	}
	user.CreatedAt = user.CreatedAt.UTC()
	return &user, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrValidation
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE app_users
		SET password = $2, updated_at = now()
		WHERE username = $1
	`, username, password)
	if err != nil {
		return storeErr(err)
	}
	return expectAffected(res)
}

func (s *Store) ListCustomers(ctx context.Context, keyword string) ([]domain.Customer, error) {
	keyword = strings.TrimSpace(keyword)
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, phone, address, created_at
		FROM customers
		WHERE $1 = '' OR name ILIKE $2 OR phone ILIKE $2 OR address ILIKE $2
		ORDER BY name ASC, id ASC
	`, keyword, likePattern(keyword))
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	customers := make([]domain.Customer, 0, 64)
	for rows.Next() {
		var c domain.Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.Phone, &c.Address, &c.CreatedAt); err != nil {
			return nil, storeErr(err)
		}
		c.CreatedAt = c.CreatedAt.UTC()
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(err)
	}
	return customers, nil
}

func (s *Store) GetCustomer(ctx context.Context, id int64) (*domain.Customer, error) {
	return s.getCustomer(ctx, "id", id)
}

func (s *Store) FindCustomerByPhone(ctx context.Context, phone string) (*domain.Customer, error) {
	return s.getCustomer(ctx, "phone", phone)
}

func (s *Store) getCustomer(ctx context.Context, column string, value any) (*domain.Customer, error) {
	var c domain.Customer
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, phone, address, created_at
		FROM customers
		WHERE `+column+` = $1
	`, value).Scan(&c.ID, &c.Name, &c.Phone, &c.Address, &c.CreatedAt)
	if err != nil {
		return nil, lookupErr(err)
	}
	c.CreatedAt = c.CreatedAt.UTC()
	return &c, nil
}

func (s *Store) CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO customers (name, phone, address, created_at, updated_at)
		VALUES ($1,$2,$3,now(),now())
		RETURNING id, created_at
	`, customer.Name, customer.Phone, customer.Address).Scan(&customer.ID, &customer.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: phone %s already registered", store.ErrConflict, customer.Phone)
		}
		return nil, storeErr(err)
	}
	customer.CreatedAt = customer.CreatedAt.UTC()
	return &customer, nil
}

func (s *Store) UpdateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	err := s.db.QueryRowContext(ctx, `
		UPDATE customers
		SET name = $2, phone = $3, address = $4, updated_at = now()
		WHERE id = $1
		RETURNING created_at
	`, customer.ID, customer.Name, customer.Phone, customer.Address).Scan(&customer.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: phone %s already registered", store.ErrConflict, customer.Phone)
		}
		return nil, lookupErr(err)
	}
	customer.CreatedAt = customer.CreatedAt.UTC()
	return &customer, nil
}

func (s *Store) DeleteCustomer(ctx context.Context, id int64) error {
	referenced, err := s.exists(ctx, `SELECT EXISTS (SELECT 1 FROM sales WHERE customer_id = $1)`, id)
	if err != nil {
		return err
	}
	if referenced {
		return fmt.Errorf("%w: customer %d has sales", store.ErrConflict, id)
	}
	return s.deleteRow(ctx, `DELETE FROM customers WHERE id = $1`, id, "customer")
}

func (s *Store) CountCustomers(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM customers`).Scan(&count); err != nil {
		return 0, storeErr(err)
	}
	return count, nil
}

func (s *Store) ListCategories(ctx context.Context) ([]domain.ServiceCategory, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name
		FROM service_categories
		ORDER BY name ASC, id ASC
	`)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	categories := make([]domain.ServiceCategory, 0, 16)
	for rows.Next() {
		var c domain.ServiceCategory
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, storeErr(err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(err)
	}
	return categories, nil
}

func (s *Store) GetCategory(ctx context.Context, id int64) (*domain.ServiceCategory, error) {
	var c domain.ServiceCategory
	err := s.db.QueryRowContext(ctx, `SELECT id, name FROM service_categories WHERE id = $1`, id).Scan(&c.ID, &c.Name)
	if err != nil {
		return nil, lookupErr(err)
	}
	return &c, nil
}

func (s *Store) CreateCategory(ctx context.Context, category domain.ServiceCategory) (*domain.ServiceCategory, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO service_categories (name, created_at)
		VALUES ($1, now())
		RETURNING id
	`, category.Name).Scan(&category.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: category %s already exists", store.ErrConflict, category.Name)
		}
		return nil, storeErr(err)
	}
	return &category, nil
}

func (s *Store) UpdateCategory(ctx context.Context, category domain.ServiceCategory) (*domain.ServiceCategory, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE service_categories SET name = $2 WHERE id = $1`, category.ID, category.Name)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: category %s already exists", store.ErrConflict, category.Name)
		}
		return nil, storeErr(err)
	}
	if err := expectAffected(res); err != nil {
		return nil, err
	}
	return &category, nil
}

func (s *Store) DeleteCategory(ctx context.Context, id int64) error {
	referenced, err := s.exists(ctx, `SELECT EXISTS (SELECT 1 FROM services WHERE category_id = $1)`, id)
	if err != nil {
		return err
	}
	if referenced {
		return fmt.Errorf("%w: category %d still has services", store.ErrConflict, id)
	}
	return s.deleteRow(ctx, `DELETE FROM service_categories WHERE id = $1`, id, "category")
}

const serviceColumns = `
	s.id, s.category_id, c.name, s.name, s.price, s.duration_minutes, s.description
	FROM services s
	JOIN service_categories c ON c.id = s.category_id
`

func (s *Store) ListServices(ctx context.Context, filter domain.ServiceFilter) ([]domain.Service, error) {
	keyword := strings.TrimSpace(filter.Keyword)
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+serviceColumns+`
		WHERE ($1 = 0 OR s.category_id = $1)
		  AND ($2 = '' OR s.name ILIKE $3 OR s.description ILIKE $3)
		ORDER BY c.name ASC, s.name ASC, s.id ASC
	`, filter.CategoryID, keyword, likePattern(keyword))
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	services := make([]domain.Service, 0, 32)
	for rows.Next() {
		svc, err := scanService(rows)
		if err != nil {
			return nil, storeErr(err)
		}
		services = append(services, svc)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(err)
	}
	return services, nil
}

func (s *Store) GetService(ctx context.Context, id int64) (*domain.Service, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+serviceColumns+` WHERE s.id = $1`, id)
	svc, err := scanService(row)
	if err != nil {
		return nil, lookupErr(err)
	}
	return &svc, nil
}

func (s *Store) CreateService(ctx context.Context, svc domain.Service) (*domain.Service, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO services (category_id, name, price, duration_minutes, description, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,now(),now())
		RETURNING id
	`, svc.CategoryID, svc.Name, svc.Price, svc.DurationMinutes, svc.Description).Scan(&id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, fmt.Errorf("%w: category %d does not exist", store.ErrValidation, svc.CategoryID)
		}
		return nil, storeErr(err)
	}
	return s.GetService(ctx, id)
}

func (s *Store) UpdateService(ctx context.Context, svc domain.Service) (*domain.Service, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE services
		SET category_id = $2, name = $3, price = $4, duration_minutes = $5, description = $6, updated_at = now()
		WHERE id = $1
	`, svc.ID, svc.CategoryID, svc.Name, svc.Price, svc.DurationMinutes, svc.Description)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, fmt.Errorf("%w: category %d does not exist", store.ErrValidation, svc.CategoryID)
		}
		return nil, storeErr(err)
	}
	if err := expectAffected(res); err != nil {
		return nil, err
	}
	return s.GetService(ctx, svc.ID)
}

func (s *Store) DeleteService(ctx context.Context, id int64) error {
	referenced, err := s.exists(ctx, `SELECT EXISTS (SELECT 1 FROM sale_lines WHERE service_id = $1)`, id)
	if err != nil {
		return err
	}
	if referenced {
		return fmt.Errorf("%w: service %d is used by a sale", store.ErrConflict, id)
	}
	return s.deleteRow(ctx, `DELETE FROM services WHERE id = $1`, id, "service")
}

const bookingColumns = `
	b.id, b.customer_id, c.name, b.staff_id, u.display_name, b.booking_date,
	to_char(b.start_time, 'HH24:MI'), to_char(b.end_time, 'HH24:MI'), b.status, b.created_at
	FROM bookings b
	JOIN customers c ON c.id = b.customer_id
	JOIN app_users u ON u.id = b.staff_id
`

func (s *Store) ListBookings(ctx context.Context, filter domain.BookingFilter) ([]domain.Booking, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+bookingColumns+`
		WHERE ($1 = '' OR b.status = $1)
		  AND ($2 = 0 OR b.customer_id = $2)
		  AND ($3 = 0 OR b.staff_id = $3)
		  AND ($4::date IS NULL OR b.booking_date = $4::date)
		ORDER BY b.booking_date ASC, b.start_time ASC, b.id ASC
	`, string(filter.Status), filter.CustomerID, filter.StaffID, nullDate(filter.Date))
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	bookings := make([]domain.Booking, 0, 32)
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, storeErr(err)
		}
		bookings = append(bookings, booking)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(err)
	}
	return bookings, nil
}

func (s *Store) GetBooking(ctx context.Context, id int64) (*domain.Booking, error) {
	booking, err := scanBooking(s.db.QueryRowContext(ctx, `SELECT `+bookingColumns+` WHERE b.id = $1`, id))
	if err != nil {
		return nil, lookupErr(err)
	}
	return &booking, nil
}

func (s *Store) CreateBooking(ctx context.Context, booking domain.Booking) (*domain.Booking, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO bookings (customer_id, staff_id, booking_date, start_time, end_time, status, created_at, updated_at)
		VALUES ($1,$2,$3,$4::time,$5::time,$6,now(),now())
		RETURNING id
	`, booking.CustomerID, booking.StaffID, nowDate(booking.Date), booking.StartTime, booking.EndTime, string(booking.Status)).Scan(&id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, fmt.Errorf("%w: customer or staff does not exist", store.ErrValidation)
		}
		return nil, storeErr(err)
	}
	return s.GetBooking(ctx, id)
}

func (s *Store) UpdateBooking(ctx context.Context, booking domain.Booking) (*domain.Booking, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE bookings
		SET customer_id = $2, staff_id = $3, booking_date = $4, start_time = $5::time, end_time = $6::time,
		    status = $7, updated_at = now()
		WHERE id = $1
	`, booking.ID, booking.CustomerID, booking.StaffID, nowDate(booking.Date), booking.StartTime, booking.EndTime, string(booking.Status))
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, fmt.Errorf("%w: customer or staff does not exist", store.ErrValidation)
		}
		return nil, storeErr(err)
	}
	if err := expectAffected(res); err != nil {
		return nil, err
	}
	return s.GetBooking(ctx, booking.ID)
}

func (s *Store) DeleteBooking(ctx context.Context, id int64) error {
	referenced, err := s.exists(ctx, `SELECT EXISTS (SELECT 1 FROM sales WHERE booking_id = $1)`, id)
	if err != nil {
		return err
	}
	if referenced {
		return fmt.Errorf("%w: booking %d is linked to a sale", store.ErrConflict, id)
	}
	return s.deleteRow(ctx, `DELETE FROM bookings WHERE id = $1`, id, "booking")
}

func (s *Store) CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	if len(sale.Lines) == 0 {
		return nil, fmt.Errorf("%w: sale has no lines", store.ErrValidation)
	}

	var saleID int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
			INSERT INTO sales (sale_date, customer_id, created_by, booking_id, total, created_at)
			VALUES ($1,$2,$3,$4,$5,now())
			RETURNING id
		`, nowDate(sale.Date), sale.CustomerID, sale.CreatedBy, nullInt64(sale.BookingID), sale.Total).Scan(&saleID)
		if err != nil {
			return saleWriteErr(err)
		}

		for _, line := range sale.Lines {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO sale_lines (sale_id, service_id, quantity, unit_price, subtotal)
				VALUES ($1,$2,$3,$4,$5)
			`, saleID, line.ServiceID, line.Quantity, line.UnitPrice, line.Subtotal)
			if err != nil {
				return saleWriteErr(err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.GetSale(ctx, saleID)
}

func (s *Store) GetSale(ctx context.Context, id int64) (*domain.Sale, error) {
	var sale domain.Sale
	var bookingID sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT s.id, s.sale_date, s.customer_id, c.name, s.created_by, u.display_name, s.booking_id, s.total, s.created_at
		FROM sales s
		JOIN customers c ON c.id = s.customer_id
		JOIN app_users u ON u.id = s.created_by
		WHERE s.id = $1
	`, id).Scan(&sale.ID, &sale.Date, &sale.CustomerID, &sale.CustomerName, &sale.CreatedBy, &sale.CreatorName, &bookingID, &sale.Total, &sale.CreatedAt)
	if err != nil {
		return nil, lookupErr(err)
	}
	if bookingID.Valid {
		sale.BookingID = &bookingID.Int64
	}
	sale.CreatedAt = sale.CreatedAt.UTC()

	rows, err := s.db.QueryContext(ctx, `
		SELECT l.id, l.sale_id, l.service_id, v.name, l.quantity, l.unit_price, l.subtotal
		FROM sale_lines l
		JOIN services v ON v.id = l.service_id
		WHERE l.sale_id = $1
		ORDER BY l.id ASC
	`, id)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	sale.Lines = make([]domain.SaleLine, 0, 4)
	for rows.Next() {
		var line domain.SaleLine
		if err := rows.Scan(&line.ID, &line.SaleID, &line.ServiceID, &line.ServiceName, &line.Quantity, &line.UnitPrice, &line.Subtotal); err != nil {
			return nil, storeErr(err)
		}
		sale.Lines = append(sale.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(err)
	}
	return &sale, nil
}

func (s *Store) FindLatestSaleByCustomerName(ctx context.Context, keyword string) (*domain.Sale, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, store.ErrNotFound
	}

	var id int64
	err := s.db.QueryRowContext(ctx, `
		SELECT s.id
		FROM sales s
		JOIN customers c ON c.id = s.customer_id
		WHERE c.name ILIKE $1
		ORDER BY s.sale_date DESC, s.id DESC
		LIMIT 1
	`, likePattern(keyword)).Scan(&id)
	if err != nil {
		return nil, lookupErr(err)
	}
	return s.GetSale(ctx, id)
}

func (s *Store) ListSales(ctx context.Context, filter domain.SaleFilter) ([]domain.SaleSummary, error) {
	limit := filter.Limit
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.sale_date, s.customer_id, c.name, s.total,
		       COALESCE(SUM(p.amount), 0), COALESCE(BOOL_OR(p.status = 'paid'), false)
		FROM sales s
		JOIN customers c ON c.id = s.customer_id
		LEFT JOIN payments p ON p.sale_id = s.id
		WHERE ($1::date IS NULL OR s.sale_date >= $1::date)
		  AND ($2::date IS NULL OR s.sale_date < $2::date)
		GROUP BY s.id, c.name
		ORDER BY s.sale_date DESC, s.id DESC
		LIMIT $3
	`, nullDate(filter.From), nullDate(filter.To), limit)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	summaries := make([]domain.SaleSummary, 0, limit)
	for rows.Next() {
		var summary domain.SaleSummary
		if err := rows.Scan(&summary.ID, &summary.Date, &summary.CustomerID, &summary.CustomerName, &summary.Total, &summary.Paid, &summary.Settled); err != nil {
			return nil, storeErr(err)
		}
		summaries = append(summaries, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(err)
	}
	return summaries, nil
}

func (s *Store) SumSales(ctx context.Context, from time.Time, to time.Time) (int, decimal.Decimal, error) {
	var count int
	var sum decimal.Decimal
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(total), 0)
		FROM sales
		WHERE sale_date >= $1 AND sale_date < $2
	`, nowDate(from), nowDate(to)).Scan(&count, &sum)
	if err != nil {
		return 0, decimal.Zero, storeErr(err)
	}
	return count, sum, nil
}

func (s *Store) CreatePayment(ctx context.Context, payment domain.Payment) (*domain.Payment, error) {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
			SELECT s.total, c.name
			FROM sales s
			JOIN customers c ON c.id = s.customer_id
			WHERE s.id = $1
			FOR UPDATE OF s
		`, payment.SaleID).Scan(&payment.SaleTotal, &payment.CustomerName)
		if err != nil {
			return lookupErr(err)
		}

		var settled bool
		err = tx.QueryRowContext(ctx, `
			SELECT EXISTS (SELECT 1 FROM payments WHERE sale_id = $1 AND status = 'paid')
		`, payment.SaleID).Scan(&settled)
		if err != nil {
			return storeErr(err)
		}
		if settled {
			return fmt.Errorf("%w: sale %d is already settled", store.ErrConflict, payment.SaleID)
		}

		err = tx.QueryRowContext(ctx, `
			INSERT INTO payments (sale_id, amount, method, payment_date, status, recorded_by, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,now())
			RETURNING id, created_at
		`, payment.SaleID, payment.Amount, string(payment.Method), nowDate(payment.Date), string(payment.Status), payment.RecordedBy).
			Scan(&payment.ID, &payment.CreatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: sale %d is already settled", store.ErrConflict, payment.SaleID)
			}
			if isForeignKeyViolation(err) {
				return fmt.Errorf("%w: sale or user does not exist", store.ErrValidation)
			}
			return storeErr(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	payment.CreatedAt = payment.CreatedAt.UTC()
	return &payment, nil
}

const paymentColumns = `
	p.id, p.sale_id, p.amount, p.method, p.payment_date, p.status, p.recorded_by, p.created_at, c.name, s.total
	FROM payments p
	JOIN sales s ON s.id = p.sale_id
	JOIN customers c ON c.id = s.customer_id
`

func (s *Store) ListSalePayments(ctx context.Context, saleID int64) ([]domain.Payment, error) {
	return s.queryPayments(ctx, `SELECT `+paymentColumns+` WHERE p.sale_id = $1 ORDER BY p.payment_date ASC, p.id ASC`, saleID)
}

func (s *Store) ListPayments(ctx context.Context, limit int) ([]domain.Payment, error) {
	if limit < 1 {
		limit = 100
	}
	return s.queryPayments(ctx, `SELECT `+paymentColumns+` ORDER BY p.payment_date DESC, p.id DESC LIMIT $1`, limit)
}

func (s *Store) queryPayments(ctx context.Context, query string, args ...any) ([]domain.Payment, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	payments := make([]domain.Payment, 0, 16)
	for rows.Next() {
		var p domain.Payment
		var method, status string
		if err := rows.Scan(&p.ID, &p.SaleID, &p.Amount, &method, &p.Date, &status, &p.RecordedBy, &p.CreatedAt, &p.CustomerName, &p.SaleTotal); err != nil {
			return nil, storeErr(err)
		}
		p.Method = domain.PaymentMethod(method)
		p.Status = domain.PaymentStatus(status)
		p.CreatedAt = p.CreatedAt.UTC()
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(err)
	}
	return payments, nil
}

func (s *Store) HasSettledPayment(ctx context.Context, saleID int64) (bool, error) {
	return s.exists(ctx, `SELECT EXISTS (SELECT 1 FROM payments WHERE sale_id = $1 AND status = 'paid')`, saleID)
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" || entry.Action == "" {
		return store.ErrValidation
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, entry.ID, entry.ActorUsername, entry.ActorRole, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	if err != nil {
		return storeErr(err)
	}
	return nil
}

func (s *Store) ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY created_at DESC
		LIMIT $3
	`, from, to, limit)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.ActorUsername, &entry.ActorRole, &entry.Action, &entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, storeErr(err)
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(err)
	}
	return logs, nil
}

func (s *Store) exists(ctx context.Context, query string, args ...any) (bool, error) {
	var found bool
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&found); err != nil {
		return false, storeErr(err)
	}
	return found, nil
}

func (s *Store) deleteRow(ctx context.Context, query string, id int64, entity string) error {
	res, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: %s %d is still referenced", store.ErrConflict, entity, id)
		}
		return storeErr(err)
	}
	return expectAffected(res)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanService(row rowScanner) (domain.Service, error) {
	var svc domain.Service
	var description sql.NullString
	err := row.Scan(&svc.ID, &svc.CategoryID, &svc.CategoryName, &svc.Name, &svc.Price, &svc.DurationMinutes, &description)
	svc.Description = description.String
	return svc, err
}

func scanBooking(row rowScanner) (domain.Booking, error) {
	var b domain.Booking
	var status string
	err := row.Scan(&b.ID, &b.CustomerID, &b.CustomerName, &b.StaffID, &b.StaffName, &b.Date, &b.StartTime, &b.EndTime, &status, &b.CreatedAt)
	b.Status = domain.BookingStatus(status)
	b.StatusLabel = b.Status.Label()
	b.CreatedAt = b.CreatedAt.UTC()
	return b, err
}

func saleWriteErr(err error) error {
	if isForeignKeyViolation(err) {
		return fmt.Errorf("%w: sale references a missing customer, user, booking or service", store.ErrValidation)
	}
	return storeErr(err)
}

func expectAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return storeErr(err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func lookupErr(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return storeErr(err)
}

func storeErr(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", store.ErrStore, err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	return false
}

// likePattern escapes LIKE metacharacters so the keyword matches literally.
func likePattern(keyword string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + replacer.Replace(keyword) + "%"
}

func nowDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func nullDate(val *time.Time) any {
	if val == nil {
		return nil
	}
	return nowDate(*val)
}

func nullInt64(val *int64) any {
	if val == nil {
		return nil
	}
	return *val
}
