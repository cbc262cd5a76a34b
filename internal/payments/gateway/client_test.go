package gateway

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minhvodev/storefront-backend/pkg/config"
	pkgerrors "github.com/minhvodev/storefront-backend/pkg/errors"
)

func testConfig() config.GatewayConfig {
	return config.GatewayConfig{
		PayURL:       "https://pay.example.test/paymentv2",
		MerchantCode: "MERCH01",
		Secret:       "topsecret",
		ReturnURL:    "https://shop.example.test/api/v1/payment/gateway/return",
		Currency:     "VND",
		Locale:       "vn",
		ResultURL:    "https://shop.example.test/result",
		CheckoutURL:  "https://shop.example.test/checkout",
	}
}

func testClient(t *testing.T) *Client {
	t.Helper()
	client, err := NewClient(testConfig())
	require.NoError(t, err)
	return client.WithNow(func() time.Time {
		return time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)
	})
}

// signParams mirrors the counterparty side of the protocol: sign arbitrary
// params the way the gateway would before invoking a callback.
func signParams(params url.Values, secret string) url.Values {
	signed := url.Values{}
	for k, vs := range params {
		for _, v := range vs {
			signed.Add(k, v)
		}
	}
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write([]byte(canonicalize(signed)))
	signed.Set(ParamSecureHash, hex.EncodeToString(mac.Sum(nil)))
	return signed
}

func successCallbackParams(txnRef string, amountMinor int64) url.Values {
	params := url.Values{}
	params.Set(ParamTxnRef, txnRef)
	params.Set(ParamTxnNo, "GW12345678")
	params.Set(ParamResponseCode, RespCodeSuccess)
	params.Set(ParamAmount, scaleAmount(amountMinor))
	params.Set(ParamMerchantCode, "MERCH01")
	return params
}

func TestBuildPaymentURL(t *testing.T) {
	client := testClient(t)

	payURL, err := client.BuildPaymentURL(PaymentRequest{
		StagingKey: "a1b2c3",
		Amount:     150000,
		OrderInfo:  "order payment a1b2c3",
		ClientIP:   "203.0.113.7",
	})
	require.NoError(t, err)

	parsed, err := url.Parse(payURL)
	require.NoError(t, err)
	assert.Equal(t, "pay.example.test", parsed.Host)

	query := parsed.Query()
	assert.Equal(t, "a1b2c3", query.Get(ParamTxnRef))
	assert.Equal(t, "15000000", query.Get(ParamAmount), "wire amount is minor units x100")
	assert.Equal(t, "MERCH01", query.Get(ParamMerchantCode))
	assert.Equal(t, "20250314093000", query.Get(ParamCreateDate))
	assert.NotEmpty(t, query.Get(ParamSecureHash))

	// The URL must verify under the same rules applied to callbacks.
	cb, err := client.VerifyCallback(query)
	require.NoError(t, err)
	assert.Equal(t, "a1b2c3", cb.TxnRef)
	assert.Equal(t, int64(150000), cb.Amount)
}

func TestBuildPaymentURLValidation(t *testing.T) {
	client := testClient(t)

	_, err := client.BuildPaymentURL(PaymentRequest{Amount: 100})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	_, err = client.BuildPaymentURL(PaymentRequest{StagingKey: "k", Amount: 0})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestCanonicalizeOrdersByEncodedKey(t *testing.T) {
	params := url.Values{}
	params.Set("zeta", "1")
	params.Set("alpha", "sp ce")
	params.Set("Beta", "x&y")

	canonical := canonicalize(params)
	assert.Equal(t, "Beta=x%26y&alpha=sp+ce&zeta=1", canonical)
}

func TestVerifyCallback(t *testing.T) {
	client := testClient(t)
	cfg := testConfig()

	t.Run("valid signature", func(t *testing.T) {
		params := signParams(successCallbackParams("ref1", 150000), cfg.Secret)
		cb, err := client.VerifyCallback(params)
		require.NoError(t, err)
		assert.True(t, cb.IsSuccess())
		assert.Equal(t, "GW12345678", cb.TransactionNo)
		assert.Equal(t, int64(150000), cb.Amount)
	})

	t.Run("missing signature", func(t *testing.T) {
		_, err := client.VerifyCallback(successCallbackParams("ref1", 150000))
		assert.True(t, pkgerrors.Is(err, pkgerrors.CodeSignature))
	})

	t.Run("tampered amount", func(t *testing.T) {
		params := signParams(successCallbackParams("ref1", 150000), cfg.Secret)
		params.Set(ParamAmount, scaleAmount(1))
		_, err := client.VerifyCallback(params)
		assert.True(t, pkgerrors.Is(err, pkgerrors.CodeSignature))
	})

	t.Run("wrong secret", func(t *testing.T) {
		params := signParams(successCallbackParams("ref1", 150000), "other-secret")
		_, err := client.VerifyCallback(params)
		assert.True(t, pkgerrors.Is(err, pkgerrors.CodeSignature))
	})

	t.Run("hash type field excluded from signing", func(t *testing.T) {
		params := signParams(successCallbackParams("ref1", 150000), cfg.Secret)
		params.Set(ParamHashType, "HMACSHA512")
		_, err := client.VerifyCallback(params)
		assert.NoError(t, err)
	})

	t.Run("declined code still verifies", func(t *testing.T) {
		raw := successCallbackParams("ref1", 150000)
		raw.Set(ParamResponseCode, "51")
		params := signParams(raw, cfg.Secret)
		cb, err := client.VerifyCallback(params)
		require.NoError(t, err)
		assert.False(t, cb.IsSuccess())
		assert.False(t, cb.IsCancelled())
	})

	t.Run("cancelled code", func(t *testing.T) {
		raw := successCallbackParams("ref1", 150000)
		raw.Set(ParamResponseCode, RespCodeCancelled)
		params := signParams(raw, cfg.Secret)
		cb, err := client.VerifyCallback(params)
		require.NoError(t, err)
		assert.True(t, cb.IsCancelled())
	})
}

func TestDescaleAmount(t *testing.T) {
	minor, err := descaleAmount("15000000")
	require.NoError(t, err)
	assert.Equal(t, int64(150000), minor)

	_, err = descaleAmount("1500001")
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeAmount), "non-multiple of scale factor")

	_, err = descaleAmount("not-a-number")
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeAmount))
}

func TestVerifyCallbackBadAmountAfterValidSignature(t *testing.T) {
	client := testClient(t)
	raw := successCallbackParams("ref1", 150000)
	raw.Set(ParamAmount, "oops")
	params := signParams(raw, testConfig().Secret)

	_, err := client.VerifyCallback(params)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeAmount))
	assert.False(t, strings.Contains(err.Error(), "signature"))
}
