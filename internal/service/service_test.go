package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"riasin/backend/internal/cache"
	"riasin/backend/internal/domain"
	"riasin/backend/internal/receipt"
	"riasin/backend/internal/store"
	"riasin/backend/internal/store/memory"
)

var wib = time.FixedZone("WIB", 7*60*60)

// fixedNow is 10 March 2026, 09:00 WIB.
var fixedNow = time.Date(2026, 3, 10, 9, 0, 0, 0, wib)

func newTestService(t *testing.T) *Service {
	t.Helper()
	return New(memory.NewSeeded(), Options{
		Cache:    cache.NewMemoryCache(),
		Location: wib,
		Business: receipt.Business{Name: "Studio Rias Ayu", Address: "Jl. Melati 5", Phone: "0811000111"},
		Receipts: receipt.NewWriter(filepath.Join(t.TempDir(), "pdf")),
		Now:      func() time.Time { return fixedNow },
	})
}

func asAdmin() context.Context {
	return WithActor(context.Background(), domain.Actor{UserID: 1, Username: "admin", DisplayName: "Administrator", Role: domain.RoleAdmin})
}

func asArtist() context.Context {
	return WithActor(context.Background(), domain.Actor{UserID: 2, Username: "rani", DisplayName: "Rani Kusuma", Role: domain.RoleMakeupArtist})
}

func asCashier() context.Context {
	return WithActor(context.Background(), domain.Actor{UserID: 3, Username: "kasir", DisplayName: "Kasir Utama", Role: domain.RoleCashier})
}

func asOwner() context.Context {
	return WithActor(context.Background(), domain.Actor{UserID: 4, Username: "owner", DisplayName: "Pemilik Studio", Role: domain.RoleOwner})
}

func TestValidatePhone(t *testing.T) {
	cases := map[string]bool{
		"08123":          false,
		"0812345678901":  true,
		"628123456789":   true,
		"123456789012":   false,
		"0812-3456-7890": true,
		"0812 3456 789a": false,
		"08123456789012": false,
	}
	for phone, ok := range cases {
		err := ValidatePhone(phone)
		if ok && err != nil {
			t.Fatalf("expected %q to pass, got %v", phone, err)
		}
		if !ok && !errors.Is(err, store.ErrValidation) {
			t.Fatalf("expected %q to fail validation, got %v", phone, err)
		}
	}
	if got := NormalizePhone(" 0812-3456 7890 "); got != "081234567890" {
		t.Fatalf("expected normalized phone, got %q", got)
	}
}

func TestCreateCustomerRejectsDuplicatePhone(t *testing.T) {
	svc := newTestService(t)
	ctx := asCashier()

	created, err := svc.CreateCustomer(ctx, domain.CustomerRequest{Name: "Ani", Phone: "0812-3456-7890", Address: "Jl. Mawar 1"})
	if err != nil {
		t.Fatalf("create customer: %v", err)
	}
	if created.Phone != "081234567890" {
		t.Fatalf("expected stored phone to be normalized, got %s", created.Phone)
	}

	_, err = svc.CreateCustomer(ctx, domain.CustomerRequest{Name: "Ani Lagi", Phone: "081234567890", Address: "Jl. Mawar 2"})
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate phone, got %v", err)
	}

	// editing a customer may keep its own phone
	if _, err := svc.UpdateCustomer(ctx, created.ID, domain.CustomerRequest{Name: "Ani S", Phone: "081234567890", Address: "Jl. Mawar 1"}); err != nil {
		t.Fatalf("update with own phone: %v", err)
	}
	if _, err := svc.UpdateCustomer(ctx, created.ID, domain.CustomerRequest{Name: "Ani S", Phone: "081234567001", Address: "Jl. Mawar 1"}); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict when taking another customer's phone, got %v", err)
	}
}

func TestCustomerWritesRequireRole(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.CreateCustomer(asOwner(), domain.CustomerRequest{Name: "Ani", Phone: "081234567890", Address: "Jl. Mawar"})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected owner to be forbidden, got %v", err)
	}
	if _, err := svc.SearchCustomers(context.Background(), ""); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected missing session to be forbidden, got %v", err)
	}
}

func TestSearchCustomersMatchesAnyField(t *testing.T) {
	svc := newTestService(t)
	ctx := asOwner()

	found, err := svc.SearchCustomers(ctx, "dewi")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(found) != 1 || found[0].Name != "Dewi Lestari" {
		t.Fatalf("expected Dewi Lestari, got %+v", found)
	}

	none, err := svc.SearchCustomers(ctx, "tidak-ada")
	if err != nil {
		t.Fatalf("search miss should not fail: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("expected empty result, got %d", len(none))
	}
}

func TestCatalogDeleteGuardsAndCacheInvalidation(t *testing.T) {
	svc := newTestService(t)
	ctx := asAdmin()

	before, err := svc.ListServices(ctx, domain.ServiceFilter{})
	if err != nil {
		t.Fatalf("list services: %v", err)
	}

	created, err := svc.CreateService(ctx, domain.ServiceRequest{
		CategoryID:      1,
		Name:            "Makeup Lamaran",
		Price:           decimal.NewFromInt(750000),
		DurationMinutes: 120,
	})
	if err != nil {
		t.Fatalf("create service: %v", err)
	}

	after, err := svc.ListServices(ctx, domain.ServiceFilter{})
	if err != nil {
		t.Fatalf("list services: %v", err)
	}
	if len(after) != len(before)+1 {
		t.Fatalf("expected cached list to be refreshed after create, got %d then %d", len(before), len(after))
	}

	if err := svc.DeleteCategory(ctx, 1); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict deleting a category with services, got %v", err)
	}

	_, err = svc.CreateService(ctx, domain.ServiceRequest{CategoryID: 999, Name: "X", Price: decimal.NewFromInt(1), DurationMinutes: 10})
	if !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected ErrValidation for missing category, got %v", err)
	}
	_, err = svc.CreateService(ctx, domain.ServiceRequest{CategoryID: 1, Name: "Gratis", Price: decimal.Zero})
	if !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected ErrValidation for zero price, got %v", err)
	}

	if _, err := svc.CreateService(asCashier(), domain.ServiceRequest{CategoryID: 1, Name: "Y", Price: decimal.NewFromInt(1)}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected cashier to be forbidden from catalog writes, got %v", err)
	}

	if err := svc.DeleteService(ctx, created.ID); err != nil {
		t.Fatalf("delete unused service: %v", err)
	}
}

func TestListCategoriesKeyword(t *testing.T) {
	svc := newTestService(t)
	ctx := asCashier()

	all, err := svc.ListCategories(ctx, "")
	if err != nil {
		t.Fatalf("list categories: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 seeded categories, got %d", len(all))
	}

	matched, err := svc.ListCategories(ctx, "  WAJAH ")
	if err != nil {
		t.Fatalf("search categories: %v", err)
	}
	if len(matched) != 1 || matched[0].Name != "Perawatan Wajah" {
		t.Fatalf("expected only Perawatan Wajah, got %+v", matched)
	}

	none, err := svc.ListCategories(ctx, "kuku")
	if err != nil {
		t.Fatalf("search categories: %v", err)
	}
	if none == nil || len(none) != 0 {
		t.Fatalf("expected empty non-nil result, got %#v", none)
	}

	again, err := svc.ListCategories(ctx, "")
	if err != nil || len(again) != 3 {
		t.Fatalf("expected keyword search to leave the cached list intact, got %d (%v)", len(again), err)
	}
}

func TestBookingValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := asArtist()

	base := domain.BookingRequest{CustomerID: 1, StaffID: 2, Date: "2026-03-12", StartTime: "09:00", EndTime: "11:00"}

	created, err := svc.CreateBooking(ctx, base)
	if err != nil {
		t.Fatalf("create booking: %v", err)
	}
	if created.Status != domain.BookingPending || created.StatusLabel != "Menunggu" {
		t.Fatalf("expected default pending status, got %s/%s", created.Status, created.StatusLabel)
	}

	past := base
	past.Date = "2026-03-09"
	if _, err := svc.CreateBooking(ctx, past); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected past date to fail, got %v", err)
	}

	backwards := base
	backwards.StartTime, backwards.EndTime = "11:00", "09:00"
	if _, err := svc.CreateBooking(ctx, backwards); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected end before start to fail, got %v", err)
	}

	cashierStaff := base
	cashierStaff.StaffID = 3
	if _, err := svc.CreateBooking(ctx, cashierStaff); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected non-artist staff to fail, got %v", err)
	}

	legacy := base
	legacy.Status = "Confirmed"
	booked, err := svc.CreateBooking(ctx, legacy)
	if err != nil {
		t.Fatalf("create with legacy status: %v", err)
	}
	if booked.Status != domain.BookingPending {
		t.Fatalf("expected confirmed to map to pending, got %s", booked.Status)
	}

	unknown := base
	unknown.Status = "cancelled"
	if _, err := svc.CreateBooking(ctx, unknown); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected unknown status to fail, got %v", err)
	}

	if _, err := svc.CreateBooking(asCashier(), base); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected cashier to be forbidden from bookings, got %v", err)
	}
}

func TestBookingListOrderedByDateThenStart(t *testing.T) {
	svc := newTestService(t)
	ctx := asArtist()

	for _, req := range []domain.BookingRequest{
		{CustomerID: 1, StaffID: 2, Date: "2026-03-11", StartTime: "13:00", EndTime: "14:00"},
		{CustomerID: 2, StaffID: 2, Date: "2026-03-10", StartTime: "15:00", EndTime: "16:00"},
		{CustomerID: 1, StaffID: 2, Date: "2026-03-10", StartTime: "08:00", EndTime: "09:30"},
	} {
		if _, err := svc.CreateBooking(ctx, req); err != nil {
			t.Fatalf("create booking: %v", err)
		}
	}

	list, err := svc.ListBookings(ctx, domain.BookingFilter{})
	if err != nil {
		t.Fatalf("list bookings: %v", err)
	}
	got := make([]string, 0, len(list))
	for _, b := range list {
		got = append(got, b.Date.Format("01-02")+" "+b.StartTime)
	}
	want := []string{"03-10 08:00", "03-10 15:00", "03-11 13:00"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, got)
		}
	}
}

func createScenarioSale(t *testing.T, svc *Service) (domain.Customer, domain.Sale) {
	t.Helper()

	ani, err := svc.CreateCustomer(asCashier(), domain.CustomerRequest{Name: "Ani", Phone: "081234567890", Address: "Jl. Mawar 1"})
	if err != nil {
		t.Fatalf("create customer: %v", err)
	}
	makeup, err := svc.CreateService(asAdmin(), domain.ServiceRequest{
		CategoryID:      1,
		Name:            "Makeup",
		Price:           decimal.NewFromInt(300000),
		DurationMinutes: 90,
	})
	if err != nil {
		t.Fatalf("create service: %v", err)
	}

	ctx := asCashier()
	draft := svc.NewSaleDraft()
	if err := draft.AddLine(ctx, 3, 1); err != nil {
		t.Fatalf("add facial: %v", err)
	}
	if err := draft.AddLine(ctx, makeup.ID, 1); err != nil {
		t.Fatalf("add makeup: %v", err)
	}
	if err := draft.AddLine(ctx, 3, 1); err != nil {
		t.Fatalf("add facial again: %v", err)
	}
	if !draft.Total().Equal(decimal.NewFromInt(600000)) {
		t.Fatalf("expected draft total 600000, got %s", draft.Total())
	}
	if lines := draft.Lines(); len(lines) != 2 || lines[0].Quantity != 2 {
		t.Fatalf("expected facial lines merged into qty 2, got %+v", lines)
	}

	sale, err := draft.Commit(ctx, domain.SaleCommitRequest{CustomerID: ani.ID})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	return ani, sale
}

func TestSaleAndPaymentScenario(t *testing.T) {
	svc := newTestService(t)
	ani, sale := createScenarioSale(t, svc)

	if !sale.Total.Equal(decimal.NewFromInt(600000)) || len(sale.Lines) != 2 {
		t.Fatalf("expected total 600000 with 2 lines, got %s with %d", sale.Total, len(sale.Lines))
	}
	if sale.CreatedBy != 3 || sale.CreatorName != "Kasir Utama" {
		t.Fatalf("expected sale created by the session cashier, got %d/%s", sale.CreatedBy, sale.CreatorName)
	}
	if !sale.Date.Equal(time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected sale date to default to today, got %s", sale.Date)
	}

	ctx := asCashier()
	r := svc.NewReconciler()
	if _, err := r.LocateSale(ctx, "ani"); err != nil {
		t.Fatalf("locate by name: %v", err)
	}
	if r.State() != SaleLoaded {
		t.Fatalf("expected SaleLoaded, got %s", r.State())
	}

	change, err := r.ComputeChange(decimal.NewFromInt(500000))
	if err != nil {
		t.Fatalf("compute change: %v", err)
	}
	if !change.Display.IsZero() || !change.Shortfall.Equal(decimal.NewFromInt(100000)) {
		t.Fatalf("expected display 0 shortfall 100000, got %+v", change)
	}

	_, err = r.RecordPayment(ctx, domain.PaymentRequest{Amount: decimal.NewFromInt(500000), Method: domain.MethodCash, Status: domain.PaymentPaid})
	if !errors.Is(err, ErrInsufficientPayment) {
		t.Fatalf("expected ErrInsufficientPayment, got %v", err)
	}

	partial, err := r.RecordPayment(ctx, domain.PaymentRequest{Amount: decimal.NewFromInt(500000), Method: domain.MethodBankTransfer, Status: domain.PaymentUnpaid})
	if err != nil {
		t.Fatalf("partial payment: %v", err)
	}
	if r.State() != PaymentRecorded {
		t.Fatalf("expected PaymentRecorded, got %s", r.State())
	}
	if !partial.Change.Equal(decimal.NewFromInt(-100000)) {
		t.Fatalf("expected raw change -100000, got %s", partial.Change)
	}

	if _, err := r.RecordPayment(ctx, domain.PaymentRequest{Amount: decimal.NewFromInt(1), Method: domain.MethodCash, Status: domain.PaymentUnpaid}); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected ErrValidation recording twice without locating, got %v", err)
	}

	settled, err := svc.RecordPayment(ctx, domain.PaymentRequest{SaleID: sale.ID, Amount: decimal.NewFromInt(600000), Method: domain.MethodCash, Status: domain.PaymentPaid})
	if err != nil {
		t.Fatalf("settling payment: %v", err)
	}
	if !settled.Change.IsZero() {
		t.Fatalf("expected zero change, got %s", settled.Change)
	}

	if _, err := svc.LocatePayableSale(ctx, strconv.FormatInt(sale.ID, 10)); !errors.Is(err, ErrAlreadySettled) {
		t.Fatalf("expected ErrAlreadySettled once paid, got %v", err)
	}
	if _, err := svc.RecordPayment(ctx, domain.PaymentRequest{SaleID: sale.ID, Amount: decimal.NewFromInt(600000), Method: domain.MethodCash, Status: domain.PaymentPaid}); !errors.Is(err, ErrAlreadySettled) {
		t.Fatalf("expected second settlement to fail, got %v", err)
	}

	summaries, err := svc.ListSales(asOwner(), "2026-03-10", "2026-03-10", 10)
	if err != nil {
		t.Fatalf("list sales: %v", err)
	}
	if len(summaries) != 1 || summaries[0].CustomerName != ani.Name || !summaries[0].Settled {
		t.Fatalf("expected one settled sale for Ani, got %+v", summaries)
	}
	if !summaries[0].Paid.Equal(decimal.NewFromInt(1100000)) {
		t.Fatalf("expected paid sum 1100000, got %s", summaries[0].Paid)
	}
}

func TestDraftRules(t *testing.T) {
	svc := newTestService(t)
	ctx := asCashier()
	draft := svc.NewSaleDraft()

	for _, qty := range []int{0, -1, 101} {
		if err := draft.AddLine(ctx, 3, qty); !errors.Is(err, store.ErrValidation) {
			t.Fatalf("expected qty %d to fail, got %v", qty, err)
		}
	}
	if err := draft.AddLine(ctx, 999, 1); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected unknown service to fail, got %v", err)
	}
	if err := draft.RemoveLine(0); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected remove on empty draft to fail, got %v", err)
	}

	if _, err := draft.Commit(ctx, domain.SaleCommitRequest{CustomerID: 1}); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected empty draft commit to fail, got %v", err)
	}
	if err := draft.AddLine(ctx, 3, 1); err != nil {
		t.Fatalf("add line: %v", err)
	}
	if _, err := draft.Commit(ctx, domain.SaleCommitRequest{}); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected missing customer to fail, got %v", err)
	}
	if len(draft.Lines()) != 1 {
		t.Fatalf("expected failed commit to keep the draft")
	}

	if err := draft.AddLine(asArtist(), 3, 1); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected makeup artist to be forbidden from composing sales, got %v", err)
	}

	draft.Reset()
	if !draft.Total().IsZero() {
		t.Fatalf("expected reset draft total 0, got %s", draft.Total())
	}
}

func TestCommitRejectsBookingOfAnotherCustomer(t *testing.T) {
	svc := newTestService(t)
	booking, err := svc.CreateBooking(asArtist(), domain.BookingRequest{CustomerID: 2, StaffID: 2, Date: "2026-03-10", StartTime: "10:00", EndTime: "11:00"})
	if err != nil {
		t.Fatalf("create booking: %v", err)
	}

	ctx := asCashier()
	draft := svc.NewSaleDraft()
	if err := draft.AddLine(ctx, 3, 1); err != nil {
		t.Fatalf("add line: %v", err)
	}
	if _, err := draft.Commit(ctx, domain.SaleCommitRequest{CustomerID: 1, BookingID: &booking.ID}); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected booking of another customer to fail, got %v", err)
	}

	sale, err := draft.Commit(ctx, domain.SaleCommitRequest{CustomerID: 2, BookingID: &booking.ID})
	if err != nil {
		t.Fatalf("commit with own booking: %v", err)
	}
	if sale.BookingID == nil || *sale.BookingID != booking.ID {
		t.Fatalf("expected sale linked to booking %d", booking.ID)
	}

	if err := svc.DeleteBooking(asArtist(), booking.ID); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict deleting a booking linked to a sale, got %v", err)
	}
	if err := svc.DeleteCustomer(ctx, 2); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict deleting a customer with sales, got %v", err)
	}
}

func TestDraftBookOwnershipAndExpiry(t *testing.T) {
	now := fixedNow
	svc := New(memory.NewSeeded(), Options{
		Location: wib,
		DraftTTL: time.Hour,
		Now:      func() time.Time { return now },
	})
	ctx := asCashier()

	view, err := svc.OpenDraft(ctx)
	if err != nil {
		t.Fatalf("open draft: %v", err)
	}
	if _, err := svc.AddDraftLine(ctx, view.ID, domain.DraftLineRequest{ServiceID: 2, Quantity: 2}); err != nil {
		t.Fatalf("add draft line: %v", err)
	}

	if _, err := svc.GetDraft(asAdmin(), view.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected another user's draft to be hidden as not found, got %v", err)
	}
	if err := svc.DiscardDraft(asAdmin(), view.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected discard of another user's draft to fail as not found, got %v", err)
	}

	now = now.Add(2 * time.Hour)
	if removed := svc.Drafts().Sweep(); removed != 1 {
		t.Fatalf("expected one idle draft swept, got %d", removed)
	}
	if _, err := svc.GetDraft(ctx, view.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected swept draft to be gone, got %v", err)
	}
}

func TestCommitDraftClosesDraft(t *testing.T) {
	svc := newTestService(t)
	ctx := asCashier()

	view, err := svc.OpenDraft(ctx)
	if err != nil {
		t.Fatalf("open draft: %v", err)
	}
	if _, err := svc.AddDraftLine(ctx, view.ID, domain.DraftLineRequest{ServiceID: 4, Quantity: 1}); err != nil {
		t.Fatalf("add draft line: %v", err)
	}
	sale, err := svc.CommitDraft(ctx, view.ID, domain.SaleCommitRequest{CustomerID: 1, Date: "2026-03-09"})
	if err != nil {
		t.Fatalf("commit draft: %v", err)
	}
	if sale.Date.Format("2006-01-02") != "2026-03-09" {
		t.Fatalf("expected explicit sale date, got %s", sale.Date)
	}
	if svc.Drafts().Len() != 0 {
		t.Fatalf("expected committed draft to be closed")
	}
}

func TestRenderReceiptUsesLatestPayment(t *testing.T) {
	svc := newTestService(t)
	_, sale := createScenarioSale(t, svc)
	ctx := asCashier()

	if _, err := svc.RenderReceipt(ctx, sale.ID, "standard", 0); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected receipt without payment to fail, got %v", err)
	}

	if _, err := svc.RecordPayment(ctx, domain.PaymentRequest{SaleID: sale.ID, Amount: decimal.NewFromInt(700000), Method: domain.MethodCash, Status: domain.PaymentPaid}); err != nil {
		t.Fatalf("record payment: %v", err)
	}

	file, err := svc.RenderReceipt(asOwner(), sale.ID, "thermal", 0)
	if err != nil {
		t.Fatalf("render receipt: %v", err)
	}
	want := "thermal_" + strconv.FormatInt(sale.ID, 10) + "_20260310_090000.pdf"
	if file.FileName != want {
		t.Fatalf("expected %s, got %s", want, file.FileName)
	}
	if _, err := os.Stat(file.Path); err != nil {
		t.Fatalf("expected receipt file on disk: %v", err)
	}

	printer, err := svc.BuildPrinterReceipt(ctx, sale.ID)
	if err != nil {
		t.Fatalf("printer receipt: %v", err)
	}
	if printer.EscposBase64 == "" || printer.PreviewText == "" {
		t.Fatalf("expected escpos payload and preview")
	}

	if _, err := svc.RenderReceipt(asArtist(), sale.ID, "", 0); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected makeup artist to be forbidden from receipts, got %v", err)
	}
}

func TestReceiptPDFLeavesReceiptDirUntouched(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "pdf")
	svc := New(memory.NewSeeded(), Options{
		Cache:    cache.NewMemoryCache(),
		Location: wib,
		Business: receipt.Business{Name: "Studio Rias Ayu"},
		Receipts: receipt.NewWriter(dir),
		Now:      func() time.Time { return fixedNow },
	})
	_, sale := createScenarioSale(t, svc)
	ctx := asCashier()
	if _, err := svc.RecordPayment(ctx, domain.PaymentRequest{SaleID: sale.ID, Amount: decimal.NewFromInt(600000), Method: domain.MethodCash, Status: domain.PaymentPaid}); err != nil {
		t.Fatalf("record payment: %v", err)
	}

	for i := 0; i < 3; i++ {
		name, content, err := svc.ReceiptPDF(ctx, sale.ID, "standard", 0)
		if err != nil {
			t.Fatalf("receipt pdf: %v", err)
		}
		if want := "struk_" + strconv.FormatInt(sale.ID, 10) + "_20260310_090000.pdf"; name != want {
			t.Fatalf("expected %s, got %s", want, name)
		}
		if len(content) < 4 || string(content[:4]) != "%PDF" {
			t.Fatalf("expected PDF content")
		}
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatalf("expected no receipt files written, stat returned %v", err)
	}
	if _, _, err := svc.ReceiptPDF(asArtist(), sale.ID, "", 0); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected makeup artist to be forbidden, got %v", err)
	}
}

func TestDashboardCountsToday(t *testing.T) {
	svc := newTestService(t)
	createScenarioSale(t, svc)
	if _, err := svc.CreateBooking(asArtist(), domain.BookingRequest{CustomerID: 1, StaffID: 2, Date: "2026-03-10", StartTime: "13:00", EndTime: "15:00"}); err != nil {
		t.Fatalf("create booking: %v", err)
	}

	stats, err := svc.Dashboard(asOwner())
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if stats.TotalCustomers != 3 {
		t.Fatalf("expected 3 customers, got %d", stats.TotalCustomers)
	}
	if stats.SalesThisMonth != 1 || !stats.RevenueToday.Equal(decimal.NewFromInt(600000)) {
		t.Fatalf("expected one sale worth 600000, got %d / %s", stats.SalesThisMonth, stats.RevenueToday)
	}
	if stats.BookingsToday != 1 || stats.TodayBookings[0].StaffName != "Rani Kusuma" {
		t.Fatalf("expected today's booking with staff name, got %+v", stats.TodayBookings)
	}
}

func TestListStaffFiltersByRole(t *testing.T) {
	svc := newTestService(t)

	artists, err := svc.ListStaff(asCashier(), domain.RoleMakeupArtist)
	if err != nil {
		t.Fatalf("list staff: %v", err)
	}
	if len(artists) != 1 || artists[0].Username != "rani" || artists[0].RoleLabel != "Makeup Artist" {
		t.Fatalf("expected rani as the only makeup artist, got %+v", artists)
	}
	if _, err := svc.ListStaff(asCashier(), "janitor"); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected unknown role to fail, got %v", err)
	}
}

func TestAuditLogRecordsMutations(t *testing.T) {
	svc := newTestService(t)
	if _, err := svc.CreateCategory(asAdmin(), domain.CategoryRequest{Name: "Nail Art"}); err != nil {
		t.Fatalf("create category: %v", err)
	}

	logs, err := svc.ListAuditLogs(asOwner(), "", 10)
	if err != nil {
		t.Fatalf("list audit logs: %v", err)
	}
	if len(logs) == 0 || logs[0].Action != "category_create" || logs[0].ActorUsername != "admin" {
		t.Fatalf("expected category_create by admin, got %+v", logs)
	}
	if _, err := svc.ListAuditLogs(asCashier(), "", 10); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected cashier to be forbidden from audit log, got %v", err)
	}
}
