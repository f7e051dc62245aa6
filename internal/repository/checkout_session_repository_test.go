package repository

import (
	"errors"
	"testing"
	"time"

	"github.com/pasaph/internal/constants"
	"github.com/pasaph/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func TestCheckoutSessionRepositoryLifecycle(t *testing.T) {
	repo := NewCheckoutSessionRepository(setupRepositoryTestDB(t, "checkout_session"))

	session := &models.CheckoutSession{
		SessionID:   "cs_test_1",
		BuyerID:     "buyer-1",
		Mode:        constants.CheckoutModeCard,
		Status:      constants.CheckoutStatusPending,
		Currency:    "PHP",
		Amount:      models.NewMoneyFromDecimal(decimal.RequireFromString("1760.00")),
		ProviderRef: "chk_test_1",
		LineItems:   []models.CheckoutLineItem{
			{Title: "Tokyo Banana", Quantity: 2, UnitAmount: models.NewMoneyFromDecimal(decimal.NewFromInt(550))},
		},
	}
	if err := repo.Create(session); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	got, err := repo.GetBySessionID("cs_test_1")
	if err != nil || got == nil {
		t.Fatalf("expected session, got %v err=%v", got, err)
	}
	if len(got.LineItems) != 1 || got.LineItems[0].Title != "Tokyo Banana" || got.LineItems[0].Quantity != 2 {
		t.Fatalf("line items not persisted: %+v", got.LineItems)
	}

	paidAt := time.Now().UTC()
	if err := repo.UpdateStatus("cs_test_1", constants.CheckoutStatusPaid, &paidAt); err != nil {
		t.Fatalf("update status failed: %v", err)
	}
	got, _ = repo.GetBySessionID("cs_test_1")
	if got.Status != constants.CheckoutStatusPaid || got.PaidAt == nil {
		t.Fatalf("unexpected session after update: %+v", got)
	}

	if err := repo.UpdateStatus("cs_test_1", constants.CheckoutStatusExpired, nil); !errors.Is(err, ErrCheckoutSessionPaid) {
		t.Fatalf("expected paid session to be final, got %v", err)
	}
	got, _ = repo.GetBySessionID("cs_test_1")
	if got.Status != constants.CheckoutStatusPaid {
		t.Fatalf("paid session was overwritten: %s", got.Status)
	}

	if err := repo.UpdateStatus("cs_missing", constants.CheckoutStatusPaid, nil); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if byRef, err := repo.GetByProviderRef("chk_test_1"); err != nil || byRef == nil || byRef.SessionID != "cs_test_1" {
		t.Fatalf("expected session by provider ref, got %v err=%v", byRef, err)
	}
	if byRef, err := repo.GetByProviderRef("chk_missing"); err != nil || byRef != nil {
		t.Fatalf("expected nil for missing provider ref, got %v err=%v", byRef, err)
	}
	if missing, err := repo.GetBySessionID("cs_missing"); err != nil || missing != nil {
		t.Fatalf("expected nil for missing session, got %v err=%v", missing, err)
	}
}

func TestCheckoutSessionRepositoryExpirePendingBefore(t *testing.T) {
	db := setupRepositoryTestDB(t, "checkout_session_expire")
	repo := NewCheckoutSessionRepository(db)

	now := time.Now()
	rows := []models.CheckoutSession{
		{SessionID: "cs_old", BuyerID: "b", Mode: constants.CheckoutModeCard, Status: constants.CheckoutStatusPending, Currency: "PHP", CreatedAt: now.Add(-2 * time.Hour)},
		{SessionID: "cs_new", BuyerID: "b", Mode: constants.CheckoutModeCard, Status: constants.CheckoutStatusPending, Currency: "PHP", CreatedAt: now},
		{SessionID: "cod_old", BuyerID: "b", Mode: constants.CheckoutModeCOD, Status: constants.CheckoutStatusPending, Currency: "PHP", CreatedAt: now.Add(-2 * time.Hour)},
		{SessionID: "cs_paid", BuyerID: "b", Mode: constants.CheckoutModeCard, Status: constants.CheckoutStatusPaid, Currency: "PHP", CreatedAt: now.Add(-3 * time.Hour)},
	}
	for i := range rows {
		if err := repo.Create(&rows[i]); err != nil {
			t.Fatalf("create failed: %v", err)
		}
	}

	affected, err := repo.ExpirePendingBefore(constants.CheckoutModeCard, now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("expire failed: %v", err)
	}
	if affected != 1 {
		t.Fatalf("expected 1 expired session, got %d", affected)
	}
	old, _ := repo.GetBySessionID("cs_old")
	fresh, _ := repo.GetBySessionID("cs_new")
	paid, _ := repo.GetBySessionID("cs_paid")
	cod, _ := repo.GetBySessionID("cod_old")
	if old.Status != constants.CheckoutStatusExpired || fresh.Status != constants.CheckoutStatusPending || paid.Status != constants.CheckoutStatusPaid {
		t.Fatalf("unexpected statuses: old=%s new=%s paid=%s", old.Status, fresh.Status, paid.Status)
	}
	if cod.Status != constants.CheckoutStatusPending {
		t.Fatalf("cod sessions should not expire, got %s", cod.Status)
	}
}
