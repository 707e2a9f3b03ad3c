package httpapi

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"riasin/backend/internal/domain"
	"riasin/backend/internal/service"
	"riasin/backend/internal/store"
)

type API struct {
	service       *service.Service
	auth          *AuthManager
	allowedOrigin string
	loginLimiter  *attemptLimiter
	csrfSecret    []byte
	metrics       *metrics
}

func New(svc *service.Service, auth *AuthManager, allowedOrigin string) *API {
	csrfSecret := make([]byte, 32)
	if _, err := rand.Read(csrfSecret); err != nil {
		csrfSecret = []byte("csrf-fallback-secret-change-me!!")
	}
	return &API{
		service:       svc,
		auth:          auth,
		allowedOrigin: allowedOrigin,
		loginLimiter:  newAttemptLimiter(5, time.Minute),
		csrfSecret:    csrfSecret,
		metrics:       newMetrics(),
	}
}

// csrfTokenForHour is the hex HMAC of one hour bucket (unix seconds).
func (a *API) csrfTokenForHour(hourBucket int64) string {
	h := hmac.New(sha256.New, a.csrfSecret)
	fmt.Fprintf(h, "%d", hourBucket)
	return hex.EncodeToString(h.Sum(nil))
}

func (a *API) generateCSRFToken() string {
	return a.csrfTokenForHour(time.Now().UTC().Truncate(time.Hour).Unix())
}

// validateCSRFToken accepts the current and the previous hour bucket.
func (a *API) validateCSRFToken(token string) bool {
	if token == "" {
		return false
	}
	current := time.Now().UTC().Truncate(time.Hour).Unix()
	return hmac.Equal([]byte(token), []byte(a.csrfTokenForHour(current))) ||
		hmac.Equal([]byte(token), []byte(a.csrfTokenForHour(current-3600)))
}

func clientKey(r *http.Request) string {
	host := strings.TrimSpace(r.RemoteAddr)
	if host == "" {
		return "unknown"
	}
	if addr, err := netip.ParseAddrPort(host); err == nil {
		return addr.Addr().String()
	}
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		return host[:idx]
	}
	return host
}

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()
	route := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, a.metrics.instrument(pattern, h))
	}

	route("GET /healthz", a.handleHealth)
	mux.Handle("GET /metrics", a.metrics.handler())
	route("POST /api/v1/auth/login", a.handleLogin)
	route("GET /api/v1/auth/csrf-token", a.handleCSRFToken)
	route("GET /api/v1/auth/me", a.requireAuth(a.handleMe))

	route("GET /api/v1/dashboard", a.requireAuth(a.handleDashboard))

	route("GET /api/v1/customers", a.requireAuth(a.handleListCustomers))
	route("POST /api/v1/customers", a.requireAuth(a.handleCreateCustomer, service.CustomerWriters...))
	route("GET /api/v1/customers/{id}", a.requireAuth(a.handleGetCustomer))
	route("PUT /api/v1/customers/{id}", a.requireAuth(a.handleUpdateCustomer, service.CustomerWriters...))
	route("DELETE /api/v1/customers/{id}", a.requireAuth(a.handleDeleteCustomer, service.CustomerWriters...))
	route("GET /api/v1/customers/{id}/bookings", a.requireAuth(a.handleLinkableBookings, service.SaleComposers...))

	route("GET /api/v1/categories", a.requireAuth(a.handleListCategories))
	route("POST /api/v1/categories", a.requireAuth(a.handleCreateCategory, service.CatalogWriters...))
	route("PUT /api/v1/categories/{id}", a.requireAuth(a.handleUpdateCategory, service.CatalogWriters...))
	route("DELETE /api/v1/categories/{id}", a.requireAuth(a.handleDeleteCategory, service.CatalogWriters...))

	route("GET /api/v1/services", a.requireAuth(a.handleListServices))
	route("POST /api/v1/services", a.requireAuth(a.handleCreateService, service.CatalogWriters...))
	route("GET /api/v1/services/{id}", a.requireAuth(a.handleGetService))
	route("PUT /api/v1/services/{id}", a.requireAuth(a.handleUpdateService, service.CatalogWriters...))
	route("DELETE /api/v1/services/{id}", a.requireAuth(a.handleDeleteService, service.CatalogWriters...))

	route("GET /api/v1/bookings", a.requireAuth(a.handleListBookings))
	route("POST /api/v1/bookings", a.requireAuth(a.handleCreateBooking, service.BookingWriters...))
	route("GET /api/v1/bookings/{id}", a.requireAuth(a.handleGetBooking))
	route("PUT /api/v1/bookings/{id}", a.requireAuth(a.handleUpdateBooking, service.BookingWriters...))
	route("DELETE /api/v1/bookings/{id}", a.requireAuth(a.handleDeleteBooking, service.BookingWriters...))

	route("POST /api/v1/sale-drafts", a.requireAuth(a.handleOpenDraft, service.SaleComposers...))
	route("GET /api/v1/sale-drafts/{id}", a.requireAuth(a.handleGetDraft, service.SaleComposers...))
	route("DELETE /api/v1/sale-drafts/{id}", a.requireAuth(a.handleDiscardDraft, service.SaleComposers...))
	route("POST /api/v1/sale-drafts/{id}/lines", a.requireAuth(a.handleAddDraftLine, service.SaleComposers...))
	route("DELETE /api/v1/sale-drafts/{id}/lines/{index}", a.requireAuth(a.handleRemoveDraftLine, service.SaleComposers...))
	route("POST /api/v1/sale-drafts/{id}/commit", a.requireAuth(a.handleCommitDraft, service.SaleComposers...))

	route("GET /api/v1/sales", a.requireAuth(a.handleListSales, service.SaleReaders...))
	route("GET /api/v1/sales/{id}", a.requireAuth(a.handleGetSale, service.SaleReaders...))
	route("GET /api/v1/sales/{id}/payments", a.requireAuth(a.handleSalePayments, service.PaymentReaders...))
	route("GET /api/v1/sales/{id}/change", a.requireAuth(a.handlePreviewChange, service.PaymentReaders...))
	route("POST /api/v1/sales/{id}/receipts", a.requireAuth(a.handleRenderReceipt, service.ReceiptReaders...))
	route("GET /api/v1/sales/{id}/receipts/pdf", a.requireAuth(a.handleDownloadReceipt, service.ReceiptReaders...))
	route("POST /api/v1/sales/{id}/receipts/escpos", a.requireAuth(a.handlePrinterReceipt, service.ReceiptReaders...))

	route("GET /api/v1/payments", a.requireAuth(a.handleListPayments, service.PaymentReaders...))
	route("GET /api/v1/payments/lookup", a.requireAuth(a.handleLocateSale, service.PaymentReaders...))
	route("POST /api/v1/payments", a.requireAuth(a.handleRecordPayment, service.PaymentWriters...))

	route("GET /api/v1/staff", a.requireAuth(a.handleListStaff))
	route("POST /api/v1/staff", a.requireAuth(a.handleCreateStaff, service.StaffAdmins...))
	route("GET /api/v1/audit-logs", a.requireAuth(a.handleAuditLogs, service.AuditReaders...))

	return a.withMiddleware(mux)
}

// requireAuth resolves the bearer token into an actor. roles narrows the
// route further; the service still checks its own permission set.
func (a *API) requireAuth(next http.HandlerFunc, roles ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authorization := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}

		token := strings.TrimSpace(authorization[len("Bearer "):])
		actor, err := a.auth.ParseToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}

		if len(roles) > 0 && !isRoleAllowed(actor.Role, roles) {
			writeError(w, http.StatusForbidden, errors.New("forbidden role"))
			return
		}

		next(w, r.WithContext(service.WithActor(r.Context(), actor)))
	}
}

func isRoleAllowed(role string, allowed []string) bool {
	for _, allow := range allowed {
		if role == allow {
			return true
		}
	}
	return false
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !a.loginLimiter.Allow(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many login attempts"))
		return
	}

	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.auth.Login(r.Context(), req)
	if err != nil {
		if errors.Is(err, errInvalidCredentials) || errors.Is(err, errInactiveAccount) {
			writeError(w, http.StatusUnauthorized, err)
			return
		}
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	actor, _ := service.ActorFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":      actor.UserID,
		"username":     actor.Username,
		"display_name": actor.DisplayName,
		"role":         actor.Role,
		"role_label":   domain.RoleLabel(actor.Role),
	})
}

// handleCSRFToken issues the token mutating requests must echo in X-CSRF-Token.
func (a *API) handleCSRFToken(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"csrf_token": a.generateCSRFToken(),
	})
}

var csrfExemptPaths = []string{
	"/api/v1/auth/login",
}

func (a *API) checkCSRF(w http.ResponseWriter, r *http.Request) bool {
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
	default:
		return true
	}
	for _, exempt := range csrfExemptPaths {
		if r.URL.Path == exempt {
			return true
		}
	}
	token := strings.TrimSpace(r.Header.Get("X-CSRF-Token"))
	if !a.validateCSRFToken(token) {
		writeError(w, http.StatusForbidden, errors.New("missing or invalid CSRF token"))
		return false
	}
	return true
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-CSRF-Token")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if (r.Method == http.MethodPost || r.Method == http.MethodPatch || r.Method == http.MethodPut) && strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		if !a.checkCSRF(w, r) {
			return
		}

		startedAt := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(startedAt))
	})
}

// statusFor maps the error taxonomy onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, service.ErrInsufficientPayment):
		return http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrAlreadySettled):
		return http.StatusConflict
	case errors.Is(err, store.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeServiceError(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), err)
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	return nil
}

func pathID(r *http.Request, name string) (int64, error) {
	raw := r.PathValue(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("%w: invalid %s %q", store.ErrValidation, name, raw)
	}
	return id, nil
}

// queryID reads an optional positive id; an empty value is zero.
func queryID(r *http.Request, name string) (int64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("%w: invalid %s %q", store.ErrValidation, name, raw)
	}
	return id, nil
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

func writeError(w http.ResponseWriter, status int, err error) {
	// 5xx details stay in the log.
	msg := err.Error()
	if status >= 500 {
		log.Printf("internal error (status %d): %v", status, err)
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
