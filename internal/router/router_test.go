package router

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pasaph/internal/cache"
	"github.com/pasaph/internal/config"
	"github.com/pasaph/internal/constants"
	"github.com/pasaph/internal/logger"
	"github.com/pasaph/internal/models"
	"github.com/pasaph/internal/provider"
	"github.com/pasaph/internal/service"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const testAuthSecret = "router-test-secret"

type testEnvelope struct {
	StatusCode int             `json:"status_code"`
	Msg        string          `json:"msg"`
	Data       json.RawMessage `json:"data"`
}

type routerTestEnv struct {
	engine *gin.Engine
	db     *gorm.DB
	cfg    *config.Config
}

func setupRouterTest(t *testing.T, withRedis bool) *routerTestEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger.L = zap.NewNop()

	dsn := fmt.Sprintf("file:router_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.FulfillmentRecord{}, &models.CustomsSnapshot{}, &models.CheckoutSession{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	models.DB = db

	cfg := &config.Config{}
	cfg.Server.Mode = "debug"
	cfg.Auth = config.AuthConfig{SecretKey: testAuthSecret, ExpireHours: 1}
	cfg.Redis.Prefix = "test"
	cfg.Fulfillment.ExportTitle = "Pasabuy Shopping List"
	cfg.Payment.COD = config.CODConfig{Enabled: true, ConfirmURL: "https://pasa.ph/cod/confirm"}
	cfg.Payment.SessionExpireMinutes = 60
	cfg.Security.CheckoutRateLimit = config.RateLimitConfig{WindowSeconds: 60, MaxAttempts: 2}

	container, err := provider.NewContainer(cfg)
	if err != nil {
		t.Fatalf("new container failed: %v", err)
	}
	if withRedis {
		mr := miniredis.RunT(t)
		cache.UseClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "test")
	}
	t.Cleanup(func() { _ = cache.Close() })

	return &routerTestEnv{engine: SetupRouter(cfg, container), db: db, cfg: cfg}
}

func (e *routerTestEnv) token(t *testing.T, userID, role string) string {
	t.Helper()
	token, _, err := service.IssueToken(testAuthSecret, userID, role, time.Hour)
	if err != nil {
		t.Fatalf("issue token failed: %v", err)
	}
	return token
}

func (e *routerTestEnv) do(t *testing.T, method, path, token string, body interface{}) (*httptest.ResponseRecorder, testEnvelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body failed: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)

	var env testEnvelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
			t.Fatalf("unmarshal envelope failed: %v body=%s", err, w.Body.String())
		}
	}
	return w, env
}

func (e *routerTestEnv) seed(t *testing.T) {
	t.Helper()
	base := time.Now().Add(-time.Hour)
	rows := []models.FulfillmentRecord{
		{ID: "r1", SellerID: "seller-1", BuyerID: "b-maria", BuyerName: "Maria Santos", ItemTitle: "Tokyo Banana", Quantity: 1, TargetPrice: models.MoneyFromFloat(500), Status: constants.FulfillmentStatusToBuy, CreatedAt: base},
		{ID: "r2", SellerID: "seller-1", BuyerID: "b-maria", BuyerName: "Maria Santos", ItemTitle: "Royce Chocolate", Quantity: 1, TargetPrice: models.MoneyFromFloat(800), Status: constants.FulfillmentStatusToBuy, CreatedAt: base.Add(time.Minute)},
		{ID: "r3", SellerID: "seller-1", BuyerID: "b-juan", BuyerName: "Juan Cruz", ItemTitle: "Pocky", Quantity: 1, TargetPrice: models.MoneyFromFloat(100), Status: constants.FulfillmentStatusDelivered, CreatedAt: base.Add(2 * time.Minute)},
	}
	for i := range rows {
		if err := e.db.Create(&rows[i]).Error; err != nil {
			t.Fatalf("seed record failed: %v", err)
		}
	}
}

func TestSellerRoutesRequireSellerRole(t *testing.T) {
	env := setupRouterTest(t, false)

	if _, resp := env.do(t, http.MethodGet, "/api/v1/seller/fulfillment", "", nil); resp.StatusCode != 401 {
		t.Fatalf("missing token want 401 got %d", resp.StatusCode)
	}
	buyer := env.token(t, "b-maria", constants.RoleBuyer)
	if _, resp := env.do(t, http.MethodGet, "/api/v1/seller/fulfillment", buyer, nil); resp.StatusCode != 403 {
		t.Fatalf("buyer token want 403 got %d", resp.StatusCode)
	}
}

func TestSellerRecordsPagination(t *testing.T) {
	env := setupRouterTest(t, false)
	env.seed(t)
	seller := env.token(t, "seller-1", constants.RoleSeller)

	w, resp := env.do(t, http.MethodGet, "/api/v1/seller/fulfillment/records?status=to_buy&page=2&page_size=1", seller, nil)
	if resp.StatusCode != 0 {
		t.Fatalf("records failed: %+v", resp)
	}
	var body struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
		Pagination struct {
			Page      int   `json:"page"`
			PageSize  int   `json:"page_size"`
			Total     int64 `json:"total"`
			TotalPage int64 `json:"total_page"`
		} `json:"pagination"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal page failed: %v", err)
	}
	if len(body.Data) != 1 || body.Data[0].ID != "r2" {
		t.Fatalf("unexpected page items: %+v", body.Data)
	}
	if body.Pagination.Page != 2 || body.Pagination.PageSize != 1 || body.Pagination.Total != 2 || body.Pagination.TotalPage != 2 {
		t.Fatalf("unexpected pagination: %+v", body.Pagination)
	}

	w, _ = env.do(t, http.MethodGet, "/api/v1/seller/fulfillment/records?search=pocky", seller, nil)
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal search page failed: %v", err)
	}
	if len(body.Data) != 1 || body.Data[0].ID != "r3" || body.Pagination.PageSize != 20 {
		t.Fatalf("unexpected search page: %+v", body)
	}

	if _, resp := env.do(t, http.MethodGet, "/api/v1/seller/fulfillment/records?page=-1", seller, nil); resp.StatusCode != 400 {
		t.Fatalf("negative page want 400 got %d", resp.StatusCode)
	}
}

func TestSellerFulfillmentFlow(t *testing.T) {
	env := setupRouterTest(t, false)
	env.seed(t)
	seller := env.token(t, "seller-1", constants.RoleSeller)

	_, resp := env.do(t, http.MethodGet, "/api/v1/seller/fulfillment?status=to-buy&group_by_buyer=true", seller, nil)
	if resp.StatusCode != 0 {
		t.Fatalf("list failed: %+v", resp)
	}
	var view struct {
		Count  int `json:"count"`
		Groups []struct {
			Name string `json:"name"`
		} `json:"groups"`
		Totals struct {
			All    int    `json:"all"`
			Payout string `json:"payout"`
		} `json:"totals"`
	}
	if err := json.Unmarshal(resp.Data, &view); err != nil {
		t.Fatalf("unmarshal view failed: %v", err)
	}
	if view.Count != 2 || len(view.Groups) != 1 || view.Groups[0].Name != "Maria Santos" || view.Totals.All != 3 {
		t.Fatalf("unexpected view: %+v", view)
	}
	if view.Totals.Payout != "1430" {
		t.Fatalf("payout want 1430 got %s", view.Totals.Payout)
	}

	if _, resp := env.do(t, http.MethodGet, "/api/v1/seller/fulfillment?status=lost", seller, nil); resp.StatusCode != 400 {
		t.Fatalf("unknown status filter want 400 got %d", resp.StatusCode)
	}

	if _, resp := env.do(t, http.MethodPut, "/api/v1/seller/fulfillment/r1/status", seller, gin.H{"status": "purchased"}); resp.StatusCode != 0 {
		t.Fatalf("update status failed: %+v", resp)
	}
	if _, resp := env.do(t, http.MethodPut, "/api/v1/seller/fulfillment/r1/status", seller, gin.H{"status": "to_buy"}); resp.StatusCode != 409 {
		t.Fatalf("backward move want 409 got %d", resp.StatusCode)
	}
	if _, resp := env.do(t, http.MethodPut, "/api/v1/seller/fulfillment/r1/status", seller, gin.H{"status": "shipped"}); resp.StatusCode != 400 {
		t.Fatalf("unknown status want 400 got %d", resp.StatusCode)
	}
	if _, resp := env.do(t, http.MethodPut, "/api/v1/seller/fulfillment/missing/status", seller, gin.H{"status": "purchased"}); resp.StatusCode != 404 {
		t.Fatalf("missing record want 404 got %d", resp.StatusCode)
	}

	if _, resp := env.do(t, http.MethodPost, "/api/v1/seller/fulfillment/r3/bought", seller, nil); resp.StatusCode != 409 {
		t.Fatalf("toggle on delivered record want 409 got %d", resp.StatusCode)
	}
	if _, resp := env.do(t, http.MethodPost, "/api/v1/seller/fulfillment/r2/cancel", seller, gin.H{"reason": ""}); resp.StatusCode != 400 {
		t.Fatalf("cancel without reason want 400 got %d", resp.StatusCode)
	}

	_, resp = env.do(t, http.MethodPost, "/api/v1/seller/fulfillment/mark-purchased", seller, gin.H{"buyer_id": "b-maria"})
	if resp.StatusCode != 0 {
		t.Fatalf("mark purchased failed: %+v", resp)
	}
	var bulk service.BulkResult
	if err := json.Unmarshal(resp.Data, &bulk); err != nil {
		t.Fatalf("unmarshal bulk failed: %v", err)
	}
	if bulk.Count != 1 || bulk.UpdatedIDs[0] != "r2" {
		t.Fatalf("only r2 was still to_buy: %+v", bulk)
	}

	_, resp = env.do(t, http.MethodGet, "/api/v1/seller/fulfillment/totals", seller, nil)
	var totals struct {
		ToBuy     int `json:"to_buy"`
		Purchased int `json:"purchased"`
	}
	if err := json.Unmarshal(resp.Data, &totals); err != nil {
		t.Fatalf("unmarshal totals failed: %v", err)
	}
	if totals.ToBuy != 0 || totals.Purchased != 2 {
		t.Fatalf("unexpected totals: %+v", totals)
	}

	if _, resp := env.do(t, http.MethodGet, "/api/v1/seller/fulfillment/customs", seller, nil); resp.StatusCode != 0 {
		t.Fatalf("customs failed: %+v", resp)
	}
}

func TestSellerExportIsCompressedAttachment(t *testing.T) {
	env := setupRouterTest(t, false)
	env.seed(t)
	seller := env.token(t, "seller-1", constants.RoleSeller)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/seller/fulfillment/export?format=text&group_by_buyer=true", nil)
	req.Header.Set("Authorization", "Bearer "+seller)
	req.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()
	env.engine.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status want 200 got %d", w.Code)
	}
	if w.Header().Get("Content-Encoding") != "gzip" {
		t.Fatalf("expected gzip encoding, headers=%v", w.Header())
	}
	disposition := w.Header().Get("Content-Disposition")
	if !strings.HasPrefix(disposition, "attachment;") || !strings.Contains(disposition, "pasabuy-list-") {
		t.Fatalf("unexpected disposition: %s", disposition)
	}
	reader, err := gzip.NewReader(w.Body)
	if err != nil {
		t.Fatalf("gzip reader failed: %v", err)
	}
	content, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("read gzip body failed: %v", err)
	}
	if !strings.Contains(string(content), "Tokyo Banana") || !strings.Contains(string(content), "Maria Santos") {
		t.Fatalf("unexpected export content: %s", content)
	}

	if _, resp := env.do(t, http.MethodGet, "/api/v1/seller/fulfillment/export?format=pdf", seller, nil); resp.StatusCode != 400 {
		t.Fatalf("unknown format want 400 got %d", resp.StatusCode)
	}
}

func TestSellerEventsUnavailableWithoutRedis(t *testing.T) {
	env := setupRouterTest(t, false)
	seller := env.token(t, "seller-1", constants.RoleSeller)

	if _, resp := env.do(t, http.MethodGet, "/api/v1/seller/fulfillment/events", seller, nil); resp.StatusCode != 503 {
		t.Fatalf("events without redis want 503 got %d", resp.StatusCode)
	}
}

func TestCheckoutCODSession(t *testing.T) {
	env := setupRouterTest(t, false)
	buyer := env.token(t, "b-maria", constants.RoleBuyer)

	_, resp := env.do(t, http.MethodPost, "/api/v1/checkout/sessions", buyer, gin.H{
		"mode": "cod",
		"items": []gin.H{
			{"title": "Tokyo Banana", "quantity": 2, "unit_amount": "550"},
			{"title": "Royce Chocolate", "quantity": 1, "unit_amount": "880"},
		},
	})
	if resp.StatusCode != 0 {
		t.Fatalf("create checkout failed: %+v", resp)
	}
	var created struct {
		SessionID   string `json:"session_id"`
		RedirectURL string `json:"redirect_url"`
		Amount      string `json:"amount"`
		Status      string `json:"status"`
	}
	if err := json.Unmarshal(resp.Data, &created); err != nil {
		t.Fatalf("unmarshal checkout failed: %v", err)
	}
	if !strings.HasPrefix(created.SessionID, "cod_") || !strings.Contains(created.RedirectURL, "session_id="+created.SessionID) {
		t.Fatalf("unexpected cod session: %+v", created)
	}
	if created.Amount != "1980.00" || created.Status != constants.CheckoutStatusPending {
		t.Fatalf("unexpected amount or status: %+v", created)
	}

	if _, resp := env.do(t, http.MethodGet, "/api/v1/checkout/sessions/"+created.SessionID, buyer, nil); resp.StatusCode != 0 {
		t.Fatalf("get own session failed: %+v", resp)
	}
	other := env.token(t, "b-juan", constants.RoleBuyer)
	if _, resp := env.do(t, http.MethodGet, "/api/v1/checkout/sessions/"+created.SessionID, other, nil); resp.StatusCode != 404 {
		t.Fatalf("other buyer want 404 got %d", resp.StatusCode)
	}
}

func TestCheckoutValidation(t *testing.T) {
	env := setupRouterTest(t, false)
	buyer := env.token(t, "b-maria", constants.RoleBuyer)
	item := []gin.H{{"title": "Pocky", "quantity": 1, "unit_amount": "100"}}

	cases := []struct {
		name string
		body gin.H
		want int
	}{
		{name: "unknown mode", body: gin.H{"mode": "crypto", "items": item}, want: 400},
		{name: "no items", body: gin.H{"mode": "cod", "items": []gin.H{}}, want: 400},
		{name: "zero amount", body: gin.H{"mode": "cod", "items": []gin.H{{"title": "Pocky", "quantity": 1, "unit_amount": "0"}}}, want: 400},
		{name: "card disabled", body: gin.H{"mode": "card", "items": item}, want: 400},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, resp := env.do(t, http.MethodPost, "/api/v1/checkout/sessions", buyer, tc.body); resp.StatusCode != tc.want {
				t.Fatalf("want %d got %d (%s)", tc.want, resp.StatusCode, resp.Msg)
			}
		})
	}
}

func TestCheckoutRateLimited(t *testing.T) {
	env := setupRouterTest(t, true)
	buyer := env.token(t, "b-maria", constants.RoleBuyer)
	body := gin.H{"mode": "cod", "items": []gin.H{{"title": "Pocky", "quantity": 1, "unit_amount": "100"}}}

	for i := 0; i < 2; i++ {
		if _, resp := env.do(t, http.MethodPost, "/api/v1/checkout/sessions", buyer, body); resp.StatusCode != 0 {
			t.Fatalf("attempt %d should pass: %+v", i+1, resp)
		}
	}
	if _, resp := env.do(t, http.MethodPost, "/api/v1/checkout/sessions", buyer, body); resp.StatusCode != 429 {
		t.Fatalf("third attempt want 429 got %d", resp.StatusCode)
	}
}

func TestStripeWebhookWhenCardDisabled(t *testing.T) {
	env := setupRouterTest(t, false)

	w, _ := env.do(t, http.MethodPost, "/api/v1/payments/webhook/stripe", "", gin.H{"type": "checkout.session.completed"})
	if w.Code != http.StatusNotFound {
		t.Fatalf("webhook without stripe config want http 404 got %d", w.Code)
	}
}

func TestHealthzAndMetrics(t *testing.T) {
	env := setupRouterTest(t, false)

	w, _ := env.do(t, http.MethodGet, "/healthz", "", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"status":"ok"`) {
		t.Fatalf("unexpected healthz: %d %s", w.Code, w.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	mw := httptest.NewRecorder()
	env.engine.ServeHTTP(mw, req)
	if mw.Code != http.StatusOK || !strings.Contains(mw.Body.String(), "pasaph_http_request_duration_seconds") {
		t.Fatalf("metrics should expose request histogram, got %d", mw.Code)
	}
}
