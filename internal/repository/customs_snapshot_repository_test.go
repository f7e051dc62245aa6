package repository

import (
	"testing"
	"time"

	"github.com/pasaph/internal/constants"
	"github.com/pasaph/internal/models"

	"github.com/shopspring/decimal"
)

func TestCustomsSnapshotRepositoryUpsert(t *testing.T) {
	repo := NewCustomsSnapshotRepository(setupRepositoryTestDB(t, "customs_snapshot"))

	missing, err := repo.GetBySeller("seller-a")
	if err != nil || missing != nil {
		t.Fatalf("expected nil snapshot, got %v err=%v", missing, err)
	}

	first := &models.CustomsSnapshot{
		SellerID:   "seller-a",
		Tier:       constants.CustomsTierNormal,
		Percentage: models.NewMoneyFromDecimal(decimal.NewFromInt(20)),
		Total:      models.NewMoneyFromDecimal(decimal.NewFromInt(2000)),
		Threshold:  models.NewMoneyFromDecimal(decimal.NewFromInt(10000)),
		AssessedAt: time.Now().UTC(),
	}
	if err := repo.Upsert(first); err != nil {
		t.Fatalf("upsert first failed: %v", err)
	}

	second := &models.CustomsSnapshot{
		SellerID:   "seller-a",
		Tier:       constants.CustomsTierNear,
		Percentage: models.NewMoneyFromDecimal(decimal.NewFromInt(80)),
		Total:      models.NewMoneyFromDecimal(decimal.NewFromInt(8000)),
		Threshold:  models.NewMoneyFromDecimal(decimal.NewFromInt(10000)),
		AssessedAt: time.Now().UTC(),
	}
	if err := repo.Upsert(second); err != nil {
		t.Fatalf("upsert second failed: %v", err)
	}

	got, err := repo.GetBySeller("seller-a")
	if err != nil || got == nil {
		t.Fatalf("expected snapshot, got %v err=%v", got, err)
	}
	if got.Tier != constants.CustomsTierNear || !got.Total.Equal(decimal.NewFromInt(8000)) {
		t.Fatalf("expected overwritten snapshot, got %+v", got)
	}

	var count int64
	repo.db.Model(&models.CustomsSnapshot{}).Count(&count)
	if count != 1 {
		t.Fatalf("expected one row per seller, got %d", count)
	}
}
