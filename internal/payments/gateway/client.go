package gateway

import (
	"crypto/hmac"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/minhvodev/storefront-backend/pkg/config"
	pkgerrors "github.com/minhvodev/storefront-backend/pkg/errors"
)

// Protocol field names. The gateway echoes the request fields back on both
// callback channels plus its own response fields.
const (
	ParamVersion      = "version"
	ParamCommand      = "command"
	ParamMerchantCode = "merchant_code"
	ParamAmount       = "amount"
	ParamCurrency     = "currency"
	ParamTxnRef       = "txn_ref"
	ParamOrderInfo    = "order_info"
	ParamLocale       = "locale"
	ParamReturnURL    = "return_url"
	ParamIPAddr       = "ip_addr"
	ParamCreateDate   = "create_date"
	ParamSecureHash   = "secure_hash"
	ParamHashType     = "secure_hash_type"
	ParamResponseCode = "response_code"
	ParamTxnNo        = "transaction_no"
)

// Gateway response codes observed on callbacks.
const (
	RespCodeSuccess   = "00"
	RespCodeCancelled = "24"
)

const (
	protocolVersion = "2.1.0"
	commandPay      = "pay"
	createDateFmt   = "20060102150405"
)

// amountMultiplier is imposed by the gateway wire format: amounts travel as
// minor units times one hundred.
var amountMultiplier = decimal.NewFromInt(100)

// Callback is the verified view of an inbound gateway notification, shared
// by the Return and IPN channels.
type Callback struct {
	TxnRef        string
	TransactionNo string
	ResponseCode  string
	Amount        int64
	Raw           url.Values
}

// IsSuccess reports whether the gateway confirmed the payment.
func (c Callback) IsSuccess() bool { return c.ResponseCode == RespCodeSuccess }

// IsCancelled reports whether the buyer backed out on the gateway page.
func (c Callback) IsCancelled() bool { return c.ResponseCode == RespCodeCancelled }

// Client builds signed payment URLs and authenticates callbacks. Both
// directions share one canonicalization: URL-encode every key and value,
// sort by encoded key ascending, join as key=value pairs, HMAC-SHA512 with
// the merchant secret. The gateway rejects on any byte-level divergence.
type Client struct {
	cfg config.GatewayConfig
	now func() time.Time
}

// NewClient builds a gateway client from merchant configuration.
func NewClient(cfg config.GatewayConfig) (*Client, error) {
	if cfg.PayURL == "" || cfg.MerchantCode == "" || cfg.Secret == "" || cfg.ReturnURL == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "gateway configuration incomplete")
	}
	return &Client{cfg: cfg, now: time.Now}, nil
}

// PaymentRequest carries the per-checkout inputs to BuildPaymentURL.
type PaymentRequest struct {
	StagingKey string
	Amount     int64
	OrderInfo  string
	ClientIP   string
}

// BuildPaymentURL assembles the signed redirect URL the buyer's browser is
// sent to. The staging key travels as the transaction reference and comes
// back on every callback.
func (c *Client) BuildPaymentURL(req PaymentRequest) (string, error) {
	if req.StagingKey == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "staging key required")
	}
	if req.Amount <= 0 {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}

	params := url.Values{}
	params.Set(ParamVersion, protocolVersion)
	params.Set(ParamCommand, commandPay)
	params.Set(ParamMerchantCode, c.cfg.MerchantCode)
	params.Set(ParamAmount, scaleAmount(req.Amount))
	params.Set(ParamCurrency, c.cfg.Currency)
	params.Set(ParamTxnRef, req.StagingKey)
	params.Set(ParamOrderInfo, req.OrderInfo)
	params.Set(ParamLocale, c.cfg.Locale)
	params.Set(ParamReturnURL, c.cfg.ReturnURL)
	params.Set(ParamIPAddr, req.ClientIP)
	params.Set(ParamCreateDate, c.now().Format(createDateFmt))

	canonical := canonicalize(params)
	signature := c.sign(canonical)
	return c.cfg.PayURL + "?" + canonical + "&" + ParamSecureHash + "=" + signature, nil
}

// VerifyCallback authenticates an inbound callback and decodes its fields.
// Signature failure is reported as its own error class; a valid signature
// with a non-success response code still verifies, since "gateway says the
// payment failed" is an authenticated fact, not a forgery.
func (c *Client) VerifyCallback(params url.Values) (*Callback, error) {
	provided := params.Get(ParamSecureHash)
	if provided == "" {
		return nil, pkgerrors.New(pkgerrors.CodeSignature, "callback signature missing")
	}

	stripped := url.Values{}
	for key, values := range params {
		if key == ParamSecureHash || key == ParamHashType {
			continue
		}
		for _, value := range values {
			stripped.Add(key, value)
		}
	}

	expected := c.sign(canonicalize(stripped))
	if subtle.ConstantTimeCompare([]byte(expected), []byte(provided)) != 1 {
		return nil, pkgerrors.New(pkgerrors.CodeSignature, "callback signature mismatch")
	}

	amount, err := descaleAmount(params.Get(ParamAmount))
	if err != nil {
		return nil, err
	}

	return &Callback{
		TxnRef:        params.Get(ParamTxnRef),
		TransactionNo: params.Get(ParamTxnNo),
		ResponseCode:  params.Get(ParamResponseCode),
		Amount:        amount,
		Raw:           params,
	}, nil
}

// canonicalize produces the exact byte string both sides sign: every key and
// value URL-encoded, entries sorted ascending by encoded key.
func canonicalize(params url.Values) string {
	type pair struct{ key, value string }
	pairs := make([]pair, 0, len(params))
	for key, values := range params {
		for _, value := range values {
			pairs = append(pairs, pair{url.QueryEscape(key), url.QueryEscape(value)})
		}
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].key < pairs[j].key })

	var b strings.Builder
	for i, p := range pairs {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(p.key)
		b.WriteByte('=')
		b.WriteString(p.value)
	}
	return b.String()
}

func (c *Client) sign(canonical string) string {
	mac := hmac.New(sha512.New, []byte(c.cfg.Secret))
	mac.Write([]byte(canonical))
	return hex.EncodeToString(mac.Sum(nil))
}

func scaleAmount(minor int64) string {
	return decimal.NewFromInt(minor).Mul(amountMultiplier).String()
}

// descaleAmount reverses the wire scaling. A value that is not an exact
// multiple of the scale factor cannot have been produced from a staged total
// and is rejected before any amount comparison happens.
func descaleAmount(raw string) (int64, error) {
	parsed, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, pkgerrors.New(pkgerrors.CodeAmount, "callback amount is not a number")
	}
	minor := parsed.Div(amountMultiplier)
	if !minor.IsInteger() {
		return 0, pkgerrors.New(pkgerrors.CodeAmount, "callback amount has fractional minor units")
	}
	return minor.IntPart(), nil
}

// WithNow overrides the clock used for create_date. Test helper.
func (c *Client) WithNow(now func() time.Time) *Client {
	c.now = now
	return c
}
