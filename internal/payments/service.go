package payments

import (
	"context"
	"encoding/json"
	"net/url"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/minhvodev/storefront-backend/internal/catalog"
	"github.com/minhvodev/storefront-backend/internal/orders"
	"github.com/minhvodev/storefront-backend/internal/payments/gateway"
	"github.com/minhvodev/storefront-backend/internal/payments/staging"
	"github.com/minhvodev/storefront-backend/pkg/config"
	"github.com/minhvodev/storefront-backend/pkg/db"
	"github.com/minhvodev/storefront-backend/pkg/db/models"
	"github.com/minhvodev/storefront-backend/pkg/enums"
	pkgerrors "github.com/minhvodev/storefront-backend/pkg/errors"
	"github.com/minhvodev/storefront-backend/pkg/logger"
	"github.com/minhvodev/storefront-backend/pkg/metrics"
	"github.com/minhvodev/storefront-backend/pkg/types"
)

// IPN acknowledgement codes from the gateway's fixed vocabulary. Anything
// other than AckConfirmed makes the gateway retry, except AckOrderNotFound
// and AckAmountInvalid which it treats as terminal.
const (
	AckConfirmed        = "00"
	AckOrderNotFound    = "01"
	AckAmountInvalid    = "04"
	AckSignatureInvalid = "97"
	AckUnknownError     = "99"
)

// Callback channels and dispositions, used as metric labels.
const (
	channelReturn = "return"
	channelIPN    = "ipn"

	outcomeMaterialized = "materialized"
	outcomeDuplicate    = "duplicate"
	outcomeSignature    = "signature_invalid"
	outcomeCancelled    = "cancelled"
	outcomeDeclined     = "gateway_declined"
	outcomeExpired      = "expired"
	outcomeAmount       = "amount_mismatch"
	outcomeError        = "error"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type gatewayClient interface {
	BuildPaymentURL(req gateway.PaymentRequest) (string, error)
	VerifyCallback(params url.Values) (*gateway.Callback, error)
}

// Service reconciles the payment gateway's two callback channels into
// exactly-once order creation.
type Service interface {
	// CreateGatewayPayment stages the checkout and returns the signed URL
	// the buyer's browser should be redirected to.
	CreateGatewayPayment(ctx context.Context, buyerID uuid.UUID, input orders.CheckoutInput, clientIP string) (string, error)
	// HandleReturn resolves a browser Return callback to the URL the buyer
	// is redirected to. It never fails outward: the buyer always lands on
	// a result page.
	HandleReturn(ctx context.Context, params url.Values) string
	// HandleIPN resolves a server IPN callback to the acknowledgement the
	// gateway expects. It never fails outward: the gateway always receives
	// a vocabulary code.
	HandleIPN(ctx context.Context, params url.Values) types.GatewayAck
}

// ServiceParams collects the reconciler's dependencies.
type ServiceParams struct {
	Orders    orders.Repository
	Inventory catalog.Repository
	Stage     staging.Store
	Gateway   gatewayClient
	TxRunner  txRunner
	Logger    *logger.Logger
	Metrics   *metrics.PaymentMetrics
	Config    config.GatewayConfig
	TTL       time.Duration
}

type service struct {
	orders    orders.Repository
	inventory catalog.Repository
	stage     staging.Store
	gateway   gatewayClient
	tx        txRunner
	logg      *logger.Logger
	metrics   *metrics.PaymentMetrics
	cfg       config.GatewayConfig
	ttl       time.Duration
	now       func() time.Time
}

// NewService builds the payment reconciler.
func NewService(params ServiceParams) (Service, error) {
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders repository required")
	}
	if params.Inventory == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "catalog repository required")
	}
	if params.Stage == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "staging store required")
	}
	if params.Gateway == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "gateway client required")
	}
	if params.TxRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	ttl := params.TTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &service{
		orders:    params.Orders,
		inventory: params.Inventory,
		stage:     params.Stage,
		gateway:   params.Gateway,
		tx:        params.TxRunner,
		logg:      params.Logger,
		metrics:   params.Metrics,
		cfg:       params.Config,
		ttl:       ttl,
		now:       time.Now,
	}, nil
}

func (s *service) CreateGatewayPayment(ctx context.Context, buyerID uuid.UUID, input orders.CheckoutInput, clientIP string) (string, error) {
	if buyerID == uuid.Nil {
		return "", pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if err := input.Validate(); err != nil {
		return "", err
	}

	now := s.now()
	temp := &staging.TempOrder{
		Key:       staging.NewKey(),
		BuyerID:   buyerID,
		Checkout:  input,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.stage.Stage(ctx, temp); err != nil {
		return "", err
	}

	payURL, err := s.gateway.BuildPaymentURL(gateway.PaymentRequest{
		StagingKey: temp.Key,
		Amount:     input.AmountDue,
		OrderInfo:  "order payment " + temp.Key,
		ClientIP:   clientIP,
	})
	if err != nil {
		_ = s.stage.Discard(ctx, temp.Key)
		return "", err
	}

	ctx = s.logg.WithStagingKey(ctx, temp.Key)
	s.logg.Info(ctx, "gateway payment staged")
	return payURL, nil
}

func (s *service) HandleReturn(ctx context.Context, params url.Values) string {
	cb, err := s.gateway.VerifyCallback(params)
	if err != nil {
		if pkgerrors.Is(err, pkgerrors.CodeAmount) {
			s.logg.Warn(s.logg.WithField(ctx, "reason", err.Error()), "return callback amount invalid")
			s.metrics.ObserveCallback(channelReturn, outcomeAmount)
			return s.resultURL("error", "")
		}
		// A tampered callback never drives any state change; the staging
		// entry stays until its TTL so a genuine callback can still land.
		s.logg.Warn(s.logg.WithField(ctx, "reason", err.Error()), "return callback rejected")
		s.metrics.ObserveCallback(channelReturn, outcomeSignature)
		return s.resultURL("error", "")
	}

	ctx = s.logg.WithStagingKey(ctx, cb.TxnRef)
	ctx = s.logg.WithTransactionID(ctx, cb.TransactionNo)

	switch {
	case cb.IsCancelled():
		_ = s.stage.Discard(ctx, cb.TxnRef)
		s.logg.Info(ctx, "buyer cancelled on gateway page")
		s.metrics.ObserveCallback(channelReturn, outcomeCancelled)
		return s.cfg.CheckoutURL
	case !cb.IsSuccess():
		_ = s.stage.Discard(ctx, cb.TxnRef)
		s.logg.Info(ctx, "gateway declined payment")
		s.metrics.ObserveCallback(channelReturn, outcomeDeclined)
		return s.resultURL("failed", "")
	}

	temp, err := s.stage.Get(ctx, cb.TxnRef)
	if err != nil {
		// Expected race: either the TTL elapsed or the IPN channel already
		// materialized and discarded the entry. The order lookup tells the
		// two cases apart.
		if existing, findErr := s.orders.FindByGatewayTxnID(ctx, cb.TransactionNo); findErr == nil && existing != nil {
			s.metrics.ObserveCallback(channelReturn, outcomeDuplicate)
			s.metrics.IncDuplicate()
			return s.resultURL("success", existing.ID.String())
		}
		s.logg.Info(ctx, "return callback for expired or unknown staging entry")
		s.metrics.ObserveCallback(channelReturn, outcomeExpired)
		return s.resultURL("expired", "")
	}

	if temp.Checkout.AmountDue != cb.Amount {
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"staged_amount":   temp.Checkout.AmountDue,
			"callback_amount": cb.Amount,
		}), "return callback amount mismatch")
		s.metrics.ObserveCallback(channelReturn, outcomeAmount)
		return s.resultURL("error", "")
	}

	order, created, err := s.materialize(ctx, temp, cb)
	if err != nil {
		// The gateway believes this payment succeeded; staging is kept so
		// the IPN retry can still materialize it within the TTL.
		s.logg.Error(ctx, "materialization failed after confirmed payment", err)
		s.metrics.ObserveCallback(channelReturn, outcomeError)
		return s.resultURL("error", "")
	}
	_ = s.stage.Discard(ctx, cb.TxnRef)
	if created {
		s.metrics.ObserveCallback(channelReturn, outcomeMaterialized)
	} else {
		s.metrics.ObserveCallback(channelReturn, outcomeDuplicate)
		s.metrics.IncDuplicate()
	}
	return s.resultURL("success", order.ID.String())
}

func (s *service) HandleIPN(ctx context.Context, params url.Values) types.GatewayAck {
	cb, err := s.gateway.VerifyCallback(params)
	if err != nil {
		if pkgerrors.Is(err, pkgerrors.CodeAmount) {
			s.metrics.ObserveCallback(channelIPN, outcomeAmount)
			return types.GatewayAck{Code: AckAmountInvalid, Message: "invalid amount"}
		}
		s.logg.Warn(s.logg.WithField(ctx, "reason", err.Error()), "ipn callback rejected")
		s.metrics.ObserveCallback(channelIPN, outcomeSignature)
		return types.GatewayAck{Code: AckSignatureInvalid, Message: "invalid signature"}
	}

	ctx = s.logg.WithStagingKey(ctx, cb.TxnRef)
	ctx = s.logg.WithTransactionID(ctx, cb.TransactionNo)

	// Duplicate delivery fast path. The IPN may fire again after either
	// channel has materialized and discarded the staging entry; confirming
	// instead of reporting not-found is what stops the retry loop.
	if cb.TransactionNo != "" {
		if existing, findErr := s.orders.FindByGatewayTxnID(ctx, cb.TransactionNo); findErr == nil && existing != nil {
			s.metrics.ObserveCallback(channelIPN, outcomeDuplicate)
			s.metrics.IncDuplicate()
			return types.GatewayAck{Code: AckConfirmed, Message: "order already confirmed"}
		}
	}

	temp, err := s.stage.Get(ctx, cb.TxnRef)
	if err != nil {
		s.logg.Info(ctx, "ipn callback for expired or unknown staging entry")
		s.metrics.ObserveCallback(channelIPN, outcomeExpired)
		return types.GatewayAck{Code: AckOrderNotFound, Message: "order not found"}
	}

	if temp.Checkout.AmountDue != cb.Amount {
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"staged_amount":   temp.Checkout.AmountDue,
			"callback_amount": cb.Amount,
		}), "ipn callback amount mismatch")
		s.metrics.ObserveCallback(channelIPN, outcomeAmount)
		return types.GatewayAck{Code: AckAmountInvalid, Message: "invalid amount"}
	}

	if !cb.IsSuccess() {
		_ = s.stage.Discard(ctx, cb.TxnRef)
		s.logg.Info(ctx, "gateway reported payment failure")
		s.metrics.ObserveCallback(channelIPN, outcomeDeclined)
		return types.GatewayAck{Code: AckConfirmed, Message: "payment failure recorded"}
	}

	_, created, err := s.materialize(ctx, temp, cb)
	if err != nil {
		// Staging stays put: the gateway retries on 99, and the retry can
		// still materialize within the TTL once the store recovers.
		s.logg.Error(ctx, "materialization failed after confirmed payment", err)
		s.metrics.ObserveCallback(channelIPN, outcomeError)
		return types.GatewayAck{Code: AckUnknownError, Message: "internal error"}
	}
	_ = s.stage.Discard(ctx, cb.TxnRef)
	if created {
		s.metrics.ObserveCallback(channelIPN, outcomeMaterialized)
		return types.GatewayAck{Code: AckConfirmed, Message: "order confirmed"}
	}
	s.metrics.ObserveCallback(channelIPN, outcomeDuplicate)
	s.metrics.IncDuplicate()
	return types.GatewayAck{Code: AckConfirmed, Message: "order already confirmed"}
}

// materialize turns a staged checkout into a durable order. The order row,
// every detail row and every stock decrement commit or roll back together.
// The unique index on the transaction id is the arbiter when both channels
// insert concurrently: the loser's constraint violation resolves to the
// winner's order instead of an error.
func (s *service) materialize(ctx context.Context, temp *staging.TempOrder, cb *gateway.Callback) (*models.Order, bool, error) {
	if cb.TransactionNo == "" {
		return nil, false, pkgerrors.New(pkgerrors.CodeValidation, "callback transaction id missing")
	}

	raw, err := json.Marshal(cb.Raw)
	if err != nil {
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode gateway response")
	}

	txnID := cb.TransactionNo
	order := &models.Order{
		BuyerID:        temp.BuyerID,
		VoucherID:      temp.Checkout.VoucherID,
		DiscountAmount: temp.Checkout.DiscountAmount,
		Subtotal:       temp.Checkout.Subtotal,
		Total:          temp.Checkout.Total,
		AmountDue:      temp.Checkout.AmountDue,
		ShippingName:   temp.Checkout.ShippingName,
		ShippingPhone:  temp.Checkout.ShippingPhone,
		ShippingAddr:   temp.Checkout.ShippingAddr,
		Note:           temp.Checkout.Note,
		PaymentMethod:  enums.PaymentMethodGateway,
		PaymentStatus:  enums.PaymentStatusCompleted,
		Status:         enums.OrderStatusPackaging,
		GatewayTxnID:   &txnID,
		GatewayRaw:     raw,
	}

	var created *models.Order
	txErr := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var commitErr error
		created, commitErr = orders.CommitOrder(ctx, s.orders.WithTx(tx), s.inventory.WithTx(tx), order, temp.Checkout.Lines)
		return commitErr
	})
	if txErr != nil {
		if db.IsUniqueViolation(txErr, "uq_orders_gateway_txn_id") {
			existing, findErr := s.orders.FindByGatewayTxnID(ctx, txnID)
			if findErr == nil && existing != nil {
				return existing, false, nil
			}
		}
		return nil, false, txErr
	}

	s.metrics.IncMaterialized()
	s.logg.Info(s.logg.WithField(ctx, "order_id", created.ID.String()), "order materialized from gateway payment")
	return created, true, nil
}

func (s *service) resultURL(status, orderID string) string {
	query := url.Values{}
	query.Set("status", status)
	if orderID != "" {
		query.Set("order_id", orderID)
	}
	sep := "?"
	if parsed, err := url.Parse(s.cfg.ResultURL); err == nil && parsed.RawQuery != "" {
		sep = "&"
	}
	return s.cfg.ResultURL + sep + query.Encode()
}

// WithNow overrides the staging clock. Test helper.
func (s *service) WithNow(now func() time.Time) *service {
	s.now = now
	return s
}
