package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/pasaph/internal/cache"
	"github.com/pasaph/internal/constants"
	"github.com/pasaph/internal/fulfillment"
	"github.com/pasaph/internal/models"
	"github.com/pasaph/internal/repository"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

func setupFulfillmentServiceTest(t *testing.T) (*FulfillmentService, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:fulfillment_service_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(
		&models.FulfillmentRecord{},
		&models.CustomsSnapshot{},
		&models.CheckoutSession{},
	); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	models.DB = db
	svc := NewFulfillmentService(
		repository.NewFulfillmentRepository(db),
		repository.NewCustomsSnapshotRepository(db),
		nil,
		fulfillment.DefaultPolicy(),
		FulfillmentOptions{ExportTitle: "Pasabuy Shopping List", CacheTTL: time.Minute},
	)
	svc.now = func() time.Time { return time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC) }
	return svc, db
}

func createTestRecord(t *testing.T, db *gorm.DB, record models.FulfillmentRecord) models.FulfillmentRecord {
	t.Helper()
	if record.SellerID == "" {
		record.SellerID = "seller-1"
	}
	if record.Quantity == 0 {
		record.Quantity = 1
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	if err := db.Create(&record).Error; err != nil {
		t.Fatalf("create record failed: %v", err)
	}
	return record
}

func seedScenario(t *testing.T, db *gorm.DB) {
	t.Helper()
	base := time.Now().Add(-time.Hour)
	createTestRecord(t, db, models.FulfillmentRecord{ID: "r1", BuyerID: "b-maria", BuyerName: "Maria Santos", ItemTitle: "Tokyo Banana", TargetPrice: models.MoneyFromFloat(500), Status: constants.FulfillmentStatusToBuy, CreatedAt: base})
	createTestRecord(t, db, models.FulfillmentRecord{ID: "r2", BuyerID: "b-maria", BuyerName: "Maria Santos", ItemTitle: "Royce Chocolate", TargetPrice: models.MoneyFromFloat(800), Status: "to-buy", CreatedAt: base.Add(time.Minute)})
	createTestRecord(t, db, models.FulfillmentRecord{ID: "r3", BuyerID: "b-maria", BuyerName: "Maria Santos", ItemTitle: "Airism Tee", TargetPrice: models.MoneyFromFloat(300), Status: constants.FulfillmentStatusToBuy, CreatedAt: base.Add(2 * time.Minute)})
	createTestRecord(t, db, models.FulfillmentRecord{ID: "r4", BuyerID: "b-juan", BuyerName: "Juan Cruz", ItemTitle: "Pocky", TargetPrice: models.MoneyFromFloat(100), Status: constants.FulfillmentStatusDelivered, CreatedAt: base.Add(3 * time.Minute)})
	createTestRecord(t, db, models.FulfillmentRecord{ID: "r5", SellerID: "seller-2", BuyerID: "b-maria", BuyerName: "Maria Santos", ItemTitle: "Other seller", TargetPrice: models.MoneyFromFloat(9999), Status: constants.FulfillmentStatusToBuy, CreatedAt: base})
}

func TestFulfillmentViewScenario(t *testing.T) {
	svc, db := setupFulfillmentServiceTest(t)
	seedScenario(t, db)

	view, err := svc.View(context.Background(), "seller-1", ViewQuery{Status: "to_buy", GroupByBuyer: true})
	if err != nil {
		t.Fatalf("view failed: %v", err)
	}
	if view.Count != 3 || len(view.Groups) != 1 || view.Groups[0].Name != "Maria Santos" {
		t.Fatalf("unexpected view: %+v", view)
	}
	if view.Totals.All != 4 || view.Totals.ToBuy != 3 || view.Totals.Delivered != 1 {
		t.Fatalf("totals should use the full record set: %+v", view.Totals)
	}
	if view.Totals.Payout.String() != "1760" {
		t.Fatalf("payout want 1760 got %s", view.Totals.Payout)
	}
	if view.Customs.Tier != constants.CustomsTierNormal {
		t.Fatalf("unexpected tier: %s", view.Customs.Tier)
	}

	searched, err := svc.View(context.Background(), "seller-1", ViewQuery{Search: "royce"})
	if err != nil {
		t.Fatalf("search view failed: %v", err)
	}
	if searched.Count != 1 || searched.Groups[0].Records[0].ID != "r2" {
		t.Fatalf("unexpected search result: %+v", searched.Groups)
	}

	shipping, err := svc.View(context.Background(), "seller-1", ViewQuery{DeliveryMethod: "shipping"})
	if err != nil {
		t.Fatalf("delivery view failed: %v", err)
	}
	if shipping.Count != 0 || shipping.Totals.All != 4 {
		t.Fatalf("records without delivery method should default to meetup: %+v", shipping)
	}

	if _, err := svc.View(context.Background(), " ", ViewQuery{}); !errors.Is(err, ErrSellerRequired) {
		t.Fatalf("expected seller required, got %v", err)
	}
}

func TestFulfillmentUpdateStatusForwardOnly(t *testing.T) {
	svc, db := setupFulfillmentServiceTest(t)
	seedScenario(t, db)
	ctx := context.Background()

	record, err := svc.UpdateStatus(ctx, "seller-1", "r1", "purchased")
	if err != nil {
		t.Fatalf("update status failed: %v", err)
	}
	if record.Status != constants.FulfillmentStatusPurchased || !record.Purchased || record.PurchasedAt == nil {
		t.Fatalf("unexpected record: %+v", record)
	}

	if _, err := svc.UpdateStatus(ctx, "seller-1", "r1", "purchased"); err != nil {
		t.Fatalf("same status should be a no-op, got %v", err)
	}
	if _, err := svc.UpdateStatus(ctx, "seller-1", "r1", "to_buy"); !errors.Is(err, ErrStatusTransitionInvalid) {
		t.Fatalf("expected transition invalid, got %v", err)
	}
	if _, err := svc.UpdateStatus(ctx, "seller-1", "r1", "cancelled"); !errors.Is(err, ErrStatusInvalid) {
		t.Fatalf("expected status invalid for cancelled, got %v", err)
	}
	if _, err := svc.UpdateStatus(ctx, "seller-1", "r1", "shipped"); !errors.Is(err, ErrStatusInvalid) {
		t.Fatalf("expected status invalid, got %v", err)
	}
	if _, err := svc.UpdateStatus(ctx, "seller-1", "r4", "purchased"); !errors.Is(err, ErrRecordClosed) {
		t.Fatalf("expected closed, got %v", err)
	}
	if _, err := svc.UpdateStatus(ctx, "seller-2", "r1", "delivered"); !errors.Is(err, ErrRecordNotFound) {
		t.Fatalf("expected not found across sellers, got %v", err)
	}

	if _, err := svc.UpdateStatus(ctx, "seller-1", "r1", "delivered"); err != nil {
		t.Fatalf("deliver failed: %v", err)
	}
	var stored models.FulfillmentRecord
	if err := db.First(&stored, "id = ?", "r1").Error; err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if stored.Status != constants.FulfillmentStatusDelivered || stored.DeliveredAt == nil || !stored.Purchased {
		t.Fatalf("unexpected stored record: %+v", stored)
	}
}

func TestFulfillmentToggleBought(t *testing.T) {
	svc, db := setupFulfillmentServiceTest(t)
	seedScenario(t, db)
	ctx := context.Background()

	record, err := svc.ToggleBought(ctx, "seller-1", "r2")
	if err != nil {
		t.Fatalf("toggle failed: %v", err)
	}
	if !record.Purchased || record.PurchasedAt == nil || record.Status != constants.FulfillmentStatusToBuy {
		t.Fatalf("toggle should only flip the flag: %+v", record)
	}
	record, err = svc.ToggleBought(ctx, "seller-1", "r2")
	if err != nil {
		t.Fatalf("toggle back failed: %v", err)
	}
	if record.Purchased || record.PurchasedAt != nil {
		t.Fatalf("expected unbought record: %+v", record)
	}
	var stored models.FulfillmentRecord
	_ = db.First(&stored, "id = ?", "r2").Error
	if stored.Purchased || stored.PurchasedAt != nil {
		t.Fatalf("stored record not reset: %+v", stored)
	}

	if _, err := svc.ToggleBought(ctx, "seller-1", "r4"); !errors.Is(err, ErrRecordClosed) {
		t.Fatalf("expected closed, got %v", err)
	}
}

func TestFulfillmentCancelRequiresReason(t *testing.T) {
	svc, db := setupFulfillmentServiceTest(t)
	seedScenario(t, db)
	ctx := context.Background()

	if _, err := svc.Cancel(ctx, "seller-1", "r3", "   "); !errors.Is(err, ErrCancelReasonRequired) {
		t.Fatalf("expected reason required, got %v", err)
	}
	var untouched models.FulfillmentRecord
	_ = db.First(&untouched, "id = ?", "r3").Error
	if untouched.Status != constants.FulfillmentStatusToBuy {
		t.Fatalf("record should not change without a reason: %s", untouched.Status)
	}

	record, err := svc.Cancel(ctx, "seller-1", "r3", " out of stock ")
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if record.Status != constants.FulfillmentStatusCancelled || record.CancelReason != "out of stock" || record.CancelledAt == nil {
		t.Fatalf("unexpected cancelled record: %+v", record)
	}
	if _, err := svc.Cancel(ctx, "seller-1", "r3", "again"); !errors.Is(err, ErrRecordClosed) {
		t.Fatalf("expected closed, got %v", err)
	}

	totals, err := svc.Totals(ctx, "seller-1")
	if err != nil {
		t.Fatalf("totals failed: %v", err)
	}
	if totals.Cancelled != 1 || totals.Payout.String() != "1430" {
		t.Fatalf("unexpected totals after cancel: %+v", totals)
	}
}

func TestFulfillmentMarkAllPurchased(t *testing.T) {
	svc, db := setupFulfillmentServiceTest(t)
	seedScenario(t, db)
	ctx := context.Background()

	result, err := svc.MarkAllPurchased(ctx, "seller-1", "b-maria")
	if err != nil {
		t.Fatalf("mark all failed: %v", err)
	}
	if result.Count != 3 || strings.Join(result.UpdatedIDs, ",") != "r1,r2,r3" {
		t.Fatalf("unexpected result: %+v", result)
	}

	var rows []models.FulfillmentRecord
	_ = db.Where("seller_id = ? AND buyer_id = ?", "seller-1", "b-maria").Find(&rows).Error
	for _, row := range rows {
		if row.Status != constants.FulfillmentStatusPurchased || !row.Purchased {
			t.Fatalf("record %s not purchased: %+v", row.ID, row)
		}
	}
	var other models.FulfillmentRecord
	_ = db.First(&other, "id = ?", "r5").Error
	if other.Status != constants.FulfillmentStatusToBuy {
		t.Fatalf("other seller's record must not change")
	}

	_, err = svc.MarkAllPurchased(ctx, "seller-1", "")
	if !errors.Is(err, ErrBuyerRequired) || err.Error() != "buyer id is required" {
		t.Fatalf("expected buyer required, got %v", err)
	}
}

type failingFulfillmentRepo struct {
	*repository.GormFulfillmentRepository
	failID string
}

func (r *failingFulfillmentRepo) Transaction(fn func(repo repository.FulfillmentRepository) error) error {
	return r.GormFulfillmentRepository.Transaction(func(tx repository.FulfillmentRepository) error {
		return fn(&failingFulfillmentRepo{GormFulfillmentRepository: tx.(*repository.GormFulfillmentRepository), failID: r.failID})
	})
}

func (r *failingFulfillmentRepo) Update(record *models.FulfillmentRecord, fields map[string]interface{}) error {
	if record.ID == r.failID {
		return errors.New("disk full")
	}
	return r.GormFulfillmentRepository.Update(record, fields)
}

func TestFulfillmentMarkAllPurchasedRollsBack(t *testing.T) {
	svc, db := setupFulfillmentServiceTest(t)
	seedScenario(t, db)
	svc.repo = &failingFulfillmentRepo{GormFulfillmentRepository: repository.NewFulfillmentRepository(db), failID: "r2"}

	_, err := svc.MarkAllPurchased(context.Background(), "seller-1", "b-maria")
	if !errors.Is(err, ErrBulkUpdateFailed) {
		t.Fatalf("expected bulk update failure, got %v", err)
	}
	var bulkErr *BulkUpdateError
	if !errors.As(err, &bulkErr) || bulkErr.RecordID != "r2" {
		t.Fatalf("expected failing record r2, got %v", err)
	}

	var first models.FulfillmentRecord
	_ = db.First(&first, "id = ?", "r1").Error
	if first.Status != constants.FulfillmentStatusToBuy || first.Purchased {
		t.Fatalf("r1 should be rolled back, got %+v", first)
	}
}

func TestFulfillmentExport(t *testing.T) {
	svc, db := setupFulfillmentServiceTest(t)
	seedScenario(t, db)
	now := time.Date(2026, 10, 19, 15, 4, 0, 0, time.UTC)

	result, err := svc.Export(context.Background(), "seller-1", ViewQuery{Status: "to_buy", GroupByBuyer: true}, fulfillment.FormatText, now)
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if result.Filename != "pasabuy-list-20261019.txt" || result.ContentType != "text/plain; charset=utf-8" {
		t.Fatalf("unexpected export metadata: %+v", result)
	}
	if !strings.Contains(result.Content, "Maria Santos (3 items)") || !strings.HasSuffix(strings.TrimSpace(result.Content), "Total Items to Buy: 3") {
		t.Fatalf("unexpected export content:\n%s", result.Content)
	}

	html, err := svc.Export(context.Background(), "seller-1", ViewQuery{}, fulfillment.FormatHTML, now)
	if err != nil {
		t.Fatalf("html export failed: %v", err)
	}
	if html.Filename != "pasabuy-list-20261019.html" || !strings.Contains(html.Content, "<!DOCTYPE html>") {
		t.Fatalf("unexpected html export: %+v", html.Filename)
	}

	if _, err := svc.Export(context.Background(), "seller-1", ViewQuery{}, fulfillment.Format("pdf"), now); !errors.Is(err, ErrExportFormatInvalid) {
		t.Fatalf("expected invalid format, got %v", err)
	}
}

func TestFulfillmentRefreshCustomsSnapshot(t *testing.T) {
	svc, db := setupFulfillmentServiceTest(t)
	createTestRecord(t, db, models.FulfillmentRecord{ID: "big", BuyerName: "Ana", ItemTitle: "Switch 2", TargetPrice: models.MoneyFromFloat(8000), ServiceFee: models.MoneyFromFloat(0), Status: constants.FulfillmentStatusToBuy})

	result, err := svc.RefreshCustomsSnapshot(context.Background(), "seller-1")
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if result.Assessment.Tier != constants.CustomsTierNear || !result.Changed || result.PreviousTier != "" {
		t.Fatalf("unexpected first refresh: %+v", result)
	}

	result, err = svc.RefreshCustomsSnapshot(context.Background(), "seller-1")
	if err != nil {
		t.Fatalf("second refresh failed: %v", err)
	}
	if result.Changed || result.PreviousTier != constants.CustomsTierNear {
		t.Fatalf("unchanged tier should not be reported as changed: %+v", result)
	}

	var snapshot models.CustomsSnapshot
	if err := db.First(&snapshot, "seller_id = ?", "seller-1").Error; err != nil {
		t.Fatalf("snapshot not stored: %v", err)
	}
	if snapshot.Tier != constants.CustomsTierNear || snapshot.Percentage.StringFixed(2) != "80.00" {
		t.Fatalf("unexpected snapshot: %+v", snapshot)
	}
}

func TestFulfillmentWritesRefreshSnapshotWithoutQueue(t *testing.T) {
	svc, db := setupFulfillmentServiceTest(t)
	createTestRecord(t, db, models.FulfillmentRecord{ID: "a", BuyerName: "Ana", ItemTitle: "Camera", TargetPrice: models.MoneyFromFloat(11000), ServiceFee: models.MoneyFromFloat(0), Status: constants.FulfillmentStatusToBuy})

	if _, err := svc.ToggleBought(context.Background(), "seller-1", "a"); err != nil {
		t.Fatalf("toggle failed: %v", err)
	}
	var snapshot models.CustomsSnapshot
	if err := db.First(&snapshot, "seller_id = ?", "seller-1").Error; err != nil {
		t.Fatalf("expected inline snapshot refresh: %v", err)
	}
	if snapshot.Tier != constants.CustomsTierOver {
		t.Fatalf("unexpected tier: %s", snapshot.Tier)
	}
}

func setupServiceMiniRedis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	cache.UseClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "test")
	t.Cleanup(func() {
		_ = cache.Close()
	})
	return mr
}

func TestFulfillmentReadThroughCacheInvalidatesOnWrite(t *testing.T) {
	mr := setupServiceMiniRedis(t)
	svc, db := setupFulfillmentServiceTest(t)
	seedScenario(t, db)
	ctx := context.Background()

	if _, err := svc.View(ctx, "seller-1", ViewQuery{}); err != nil {
		t.Fatalf("view failed: %v", err)
	}
	if !mr.Exists("test:fulfillment:seller:seller-1") {
		t.Fatalf("expected cached records, keys=%v", mr.Keys())
	}

	// 绕过服务直接改库，命中缓存时看不到变化
	if err := db.Model(&models.FulfillmentRecord{}).Where("id = ?", "r1").Update("item_title", "Changed").Error; err != nil {
		t.Fatalf("direct update failed: %v", err)
	}
	view, _ := svc.View(ctx, "seller-1", ViewQuery{})
	if viewHasItem(view, "Changed") {
		t.Fatalf("expected cached view to keep the old title")
	}

	events, err := svc.Subscribe(ctx, "seller-1")
	if err != nil || events == nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	if _, err := svc.UpdateStatus(ctx, "seller-1", "r2", "purchased"); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	select {
	case event := <-events:
		if event.Action != ActionStatusUpdated || len(event.RecordIDs) != 1 || event.RecordIDs[0] != "r2" {
			t.Fatalf("unexpected event: %+v", event)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("expected change event")
	}

	view, _ = svc.View(ctx, "seller-1", ViewQuery{})
	if !viewHasItem(view, "Changed") {
		t.Fatalf("expected fresh view after invalidation")
	}
}

func viewHasItem(view *SellerView, title string) bool {
	for _, group := range view.Groups {
		for _, record := range group.Records {
			if record.ItemTitle == title {
				return true
			}
		}
	}
	return false
}

func TestFulfillmentSearchSkipsCache(t *testing.T) {
	setupServiceMiniRedis(t)
	svc, db := setupFulfillmentServiceTest(t)
	seedScenario(t, db)
	ctx := context.Background()

	if _, err := svc.View(ctx, "seller-1", ViewQuery{}); err != nil {
		t.Fatalf("view failed: %v", err)
	}
	if err := db.Model(&models.FulfillmentRecord{}).Where("id = ?", "r1").Update("item_title", "Ube Jam").Error; err != nil {
		t.Fatalf("direct update failed: %v", err)
	}
	view, err := svc.View(ctx, "seller-1", ViewQuery{Search: "ube"})
	if err != nil {
		t.Fatalf("search view failed: %v", err)
	}
	if view.Count != 1 || view.Groups[0].Records[0].ID != "r1" {
		t.Fatalf("expected search to hit the database, got %+v", view.Groups)
	}
	if view.Totals.All != 4 {
		t.Fatalf("totals should still cover every record, got %d", view.Totals.All)
	}
}

func TestFulfillmentListRecordsPaginates(t *testing.T) {
	svc, db := setupFulfillmentServiceTest(t)
	seedScenario(t, db)
	ctx := context.Background()

	page, err := svc.ListRecords(ctx, "seller-1", RecordQuery{Status: "to_buy", Page: 1, PageSize: 2})
	if err != nil {
		t.Fatalf("list records failed: %v", err)
	}
	if page.Total != 3 || len(page.Items) != 2 || page.Items[0].ID != "r1" || page.Items[1].ID != "r2" {
		t.Fatalf("unexpected first page: total=%d items=%+v", page.Total, page.Items)
	}
	if page.Items[1].Status != constants.FulfillmentStatusToBuy {
		t.Fatalf("legacy status should be normalized, got %s", page.Items[1].Status)
	}

	page, err = svc.ListRecords(ctx, "seller-1", RecordQuery{Status: "to-buy", Page: 2, PageSize: 2})
	if err != nil || len(page.Items) != 1 || page.Items[0].ID != "r3" {
		t.Fatalf("unexpected second page: %+v err=%v", page, err)
	}

	page, err = svc.ListRecords(ctx, "seller-1", RecordQuery{BuyerID: "b-juan", Search: "POCKY"})
	if err != nil || page.Total != 1 || page.Items[0].ID != "r4" {
		t.Fatalf("unexpected search page: %+v err=%v", page, err)
	}

	if _, err := svc.ListRecords(ctx, "seller-1", RecordQuery{Status: "lost"}); !errors.Is(err, ErrStatusInvalid) {
		t.Fatalf("expected invalid status, got %v", err)
	}
	if _, err := svc.ListRecords(ctx, " ", RecordQuery{}); !errors.Is(err, ErrSellerRequired) {
		t.Fatalf("expected seller required, got %v", err)
	}
}
