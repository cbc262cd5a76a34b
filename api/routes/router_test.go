package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	internalorders "github.com/minhvodev/storefront-backend/internal/orders"
	"github.com/minhvodev/storefront-backend/pkg/config"
	"github.com/minhvodev/storefront-backend/pkg/db/models"
	"github.com/minhvodev/storefront-backend/pkg/enums"
	"github.com/minhvodev/storefront-backend/pkg/logger"
	"github.com/minhvodev/storefront-backend/pkg/types"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type stubPaymentService struct {
	returnURL string
	ack       types.GatewayAck
}

func (s stubPaymentService) CreateGatewayPayment(ctx context.Context, buyerID uuid.UUID, input internalorders.CheckoutInput, clientIP string) (string, error) {
	return "https://gateway.example.com/pay?txn_ref=abc", nil
}

func (s stubPaymentService) HandleReturn(ctx context.Context, params url.Values) string {
	if s.returnURL != "" {
		return s.returnURL
	}
	return "https://shop.example.com/result?status=success"
}

func (s stubPaymentService) HandleIPN(ctx context.Context, params url.Values) types.GatewayAck {
	if s.ack.Code != "" {
		return s.ack
	}
	return types.GatewayAck{Code: "00", Message: "confirm success"}
}

type stubOrderService struct {
	orders []models.Order
}

func (s stubOrderService) CreateCODOrder(ctx context.Context, buyerID uuid.UUID, input internalorders.CheckoutInput) (*models.Order, error) {
	return &models.Order{ID: uuid.New(), BuyerID: buyerID}, nil
}

func (s stubOrderService) GetForBuyer(ctx context.Context, buyerID, orderID uuid.UUID) (*models.Order, error) {
	return &models.Order{ID: orderID, BuyerID: buyerID}, nil
}

func (s stubOrderService) ListForBuyer(ctx context.Context, buyerID uuid.UUID) ([]models.Order, error) {
	return s.orders, nil
}

func (s stubOrderService) Cancel(ctx context.Context, buyerID, orderID uuid.UUID) (*models.Order, error) {
	return &models.Order{ID: orderID, BuyerID: buyerID, Status: enums.OrderStatusCancelled}, nil
}

func (s stubOrderService) ListAll(ctx context.Context, filters internalorders.ListFilters) ([]models.Order, error) {
	return s.orders, nil
}

func (s stubOrderService) UpdateStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus) (*models.Order, error) {
	return &models.Order{ID: orderID, Status: status}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "0"},
		JWT: config.JWTConfig{
			Secret: "secret",
			Issuer: "issuer",
		},
	}
}

func newTestRouter(cfg *config.Config) http.Handler {
	logg := logger.New(logger.Options{ServiceName: "test-routing", Level: logger.ParseLevel("debug"), Output: io.Discard})
	return NewRouter(RouterParams{
		Config:         cfg,
		Logger:         logg,
		DBPinger:       stubPinger{},
		RedisPinger:    stubPinger{},
		PaymentService: stubPaymentService{},
		OrderService:   stubOrderService{},
	})
}

func buildToken(t *testing.T, cfg *config.Config, role enums.UserRole) string {
	t.Helper()
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": uuid.NewString(),
		"role":    string(role),
		"iss":     cfg.JWT.Issuer,
		"iat":     now.Unix(),
		"exp":     now.Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(cfg.JWT.Secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestOrdersGroupRejectsMissingJWT(t *testing.T) {
	router := newTestRouter(testConfig())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token got %d", resp.Code)
	}
}

func TestOrdersGroupSucceedsWithJWT(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.UserRoleBuyer))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for buyer orders got %d", resp.Code)
	}
}

func TestAdminGroupRequiresAdminRole(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)

	buyer := httptest.NewRequest(http.MethodGet, "/api/admin/v1/orders/", nil)
	buyer.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.UserRoleBuyer))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, buyer)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for buyer got %d", resp.Code)
	}

	admin := httptest.NewRequest(http.MethodGet, "/api/admin/v1/orders/", nil)
	admin.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.UserRoleAdmin))
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, admin)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin got %d", resp.Code)
	}
}

func TestGatewayReturnIsPublicAndRedirects(t *testing.T) {
	router := newTestRouter(testConfig())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/payment/gateway/return?txn_ref=abc", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusFound {
		t.Fatalf("expected 302 for return callback got %d", resp.Code)
	}
	if got := resp.Header().Get("Location"); got != "https://shop.example.com/result?status=success" {
		t.Fatalf("unexpected redirect target %q", got)
	}
}

func TestGatewayIPNIsPublicAndAnswers200(t *testing.T) {
	router := newTestRouter(testConfig())
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payment/gateway/ipn?txn_ref=abc", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for ipn callback got %d", resp.Code)
	}
}

func TestGatewayCreateRequiresJWT(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payment/gateway/create", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token got %d", resp.Code)
	}
}

func TestHealthEndpointsArePublic(t *testing.T) {
	router := newTestRouter(testConfig())

	for _, path := range []string{"/health/live", "/health/ready"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		if resp.Code != http.StatusOK {
			t.Fatalf("expected 200 for %s got %d", path, resp.Code)
		}
	}
}

func TestMetricsEndpointIsPublic(t *testing.T) {
	router := newTestRouter(testConfig())
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for metrics got %d", resp.Code)
	}
}
