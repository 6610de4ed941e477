package daraja

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	domainErrors "github.com/dmwangi/medsupply/internal/domain/errors"
	"github.com/dmwangi/medsupply/internal/infrastructure/config"
	"github.com/dmwangi/medsupply/internal/infrastructure/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticTokenSource struct {
	token       string
	invalidated bool
}

func (s *staticTokenSource) Token(ctx context.Context) (string, error) { return s.token, nil }
func (s *staticTokenSource) Invalidate()                               { s.invalidated = true }

func testClient(srvURL string, tokens TokenSource) *Client {
	cfg := &config.MpesaConfig{
		APIBaseURL:  srvURL,
		ShortCode:   "174379",
		Passkey:     "test-passkey",
		CallbackURL: "https://medsupply.example.com/api/v1/payments/mpesa/callback",
		HTTPTimeout: 5 * time.Second,
	}
	c := NewClient(cfg, tokens, observability.NewMetrics("test", prometheus.NewRegistry()))
	c.nowFunc = func() time.Time { return time.Date(2026, 1, 15, 14, 30, 22, 0, time.UTC) }
	return c
}

func TestSTKPush_Success(t *testing.T) {
	tokens := &staticTokenSource{token: "tok-1"}
	var got stkPushPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/mpesa/stkpush/v1/processrequest", r.URL.Path)
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{
			"MerchantRequestID":"mr-1",
			"CheckoutRequestID":"ws_CO_150120261430221234",
			"ResponseCode":"0",
			"ResponseDescription":"Success. Request accepted for processing",
			"CustomerMessage":"Success. Request accepted for processing"
		}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL, tokens)
	resp, err := c.STKPush(context.Background(), STKPushRequest{
		Amount:           2500,
		PhoneNumber:      "254712345678",
		AccountReference: "ORD-1",
		Description:      "MedSupply order ORD-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "ws_CO_150120261430221234", resp.CheckoutRequestID)

	assert.Equal(t, "20260115143022", got.Timestamp)
	wantPassword := base64.StdEncoding.EncodeToString([]byte("174379" + "test-passkey" + "20260115143022"))
	assert.Equal(t, wantPassword, got.Password)
	assert.Equal(t, "CustomerPayBillOnline", got.TransactionType)
	assert.Equal(t, int64(2500), got.Amount)
	assert.Equal(t, "254712345678", got.PartyA)
	assert.Equal(t, "174379", got.PartyB)
}

func TestSTKPush_ProviderErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"errorCode":"400.002.02","errorMessage":"Bad Request - Invalid Amount"}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL, &staticTokenSource{token: "tok-1"})
	_, err := c.STKPush(context.Background(), STKPushRequest{Amount: 0, PhoneNumber: "254712345678"})
	assert.ErrorIs(t, err, domainErrors.ErrUpstreamRequest)
}

func TestSTKPush_RejectedResponseCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ResponseCode":"1","ResponseDescription":"rejected","CheckoutRequestID":"x"}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL, &staticTokenSource{token: "tok-1"})
	_, err := c.STKPush(context.Background(), STKPushRequest{Amount: 2500, PhoneNumber: "254712345678"})
	assert.ErrorIs(t, err, domainErrors.ErrUpstreamRequest)
}

func TestSTKPush_UnauthorizedInvalidatesToken(t *testing.T) {
	tokens := &staticTokenSource{token: "stale"}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := testClient(srv.URL, tokens)
	_, err := c.STKPush(context.Background(), STKPushRequest{Amount: 2500, PhoneNumber: "254712345678"})
	assert.ErrorIs(t, err, domainErrors.ErrUpstreamAuth)
	assert.True(t, tokens.invalidated)
}

func TestSTKPush_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := testClient(srv.URL, &staticTokenSource{token: "tok-1"})
	_, err := c.STKPush(context.Background(), STKPushRequest{Amount: 2500, PhoneNumber: "254712345678"})
	assert.ErrorIs(t, err, domainErrors.ErrUpstreamRequest)
}

func TestQueryStatus_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/mpesa/stkpushquery/v1/query", r.URL.Path)
		var payload statusQueryPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "ws_CO_1", payload.CheckoutRequestID)
		w.Write([]byte(`{"ResponseCode":"0","ResultCode":"1032","ResultDesc":"Request cancelled by user"}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL, &staticTokenSource{token: "tok-1"})
	resp, err := c.QueryStatus(context.Background(), "ws_CO_1")
	require.NoError(t, err)
	// The provider sends the result code as a string here.
	assert.Equal(t, 1032, resp.ResultCode)
	assert.Equal(t, "Request cancelled by user", resp.ResultDesc)
}

func TestQueryStatus_NumericResultCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ResponseCode":"0","ResultCode":0,"ResultDesc":"The service request is processed successfully."}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL, &staticTokenSource{token: "tok-1"})
	resp, err := c.QueryStatus(context.Background(), "ws_CO_1")
	require.NoError(t, err)
	assert.Equal(t, 0, resp.ResultCode)
}

func TestQueryStatus_ErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"errorCode":"500.001.1001","errorMessage":"The transaction is being processed"}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL, &staticTokenSource{token: "tok-1"})
	_, err := c.QueryStatus(context.Background(), "ws_CO_1")
	assert.ErrorIs(t, err, domainErrors.ErrUpstreamRequest)
}

func TestParseCallback_SuccessMetadata(t *testing.T) {
	payload := []byte(`{"Body":{"stkCallback":{
		"MerchantRequestID":"mr-1",
		"CheckoutRequestID":"ws_CO_1",
		"ResultCode":0,
		"ResultDesc":"The service request is processed successfully.",
		"CallbackMetadata":{"Item":[
			{"Name":"Amount","Value":2500.00},
			{"Name":"MpesaReceiptNumber","Value":"SGR7TKIQM0"},
			{"Name":"TransactionDate","Value":20260115143022},
			{"Name":"PhoneNumber","Value":254712345678}
		]}
	}}}`)

	data, err := ParseCallback(payload)
	require.NoError(t, err)
	assert.Equal(t, "ws_CO_1", data.CheckoutRequestID)
	assert.Equal(t, 0, data.ResultCode)
	require.NotNil(t, data.ReceiptNumber)
	assert.Equal(t, "SGR7TKIQM0", *data.ReceiptNumber)
	require.NotNil(t, data.AmountCents)
	assert.Equal(t, int64(250000), *data.AmountCents)
	require.NotNil(t, data.PhoneNumber)
	assert.Equal(t, "254712345678", *data.PhoneNumber)
	require.NotNil(t, data.TransactionDate)
	assert.Equal(t, 2026, data.TransactionDate.Year())
}

func TestParseCallback_FailureWithoutMetadata(t *testing.T) {
	payload := []byte(`{"Body":{"stkCallback":{
		"MerchantRequestID":"mr-1",
		"CheckoutRequestID":"ws_CO_1",
		"ResultCode":"1032",
		"ResultDesc":"Request cancelled by user"
	}}}`)

	data, err := ParseCallback(payload)
	require.NoError(t, err)
	assert.Equal(t, 1032, data.ResultCode)
	assert.Nil(t, data.ReceiptNumber)
}

func TestParseCallback_FractionalAmountRounds(t *testing.T) {
	payload := []byte(`{"Body":{"stkCallback":{
		"MerchantRequestID":"mr","CheckoutRequestID":"ws_CO_1",
		"ResultCode":0,"ResultDesc":"ok",
		"CallbackMetadata":{"Item":[{"Name":"Amount","Value":10.15}]}}}}`)

	data, err := ParseCallback(payload)
	require.NoError(t, err)
	require.NotNil(t, data.AmountCents)
	assert.Equal(t, int64(1015), *data.AmountCents)
}

func TestParseCallback_Malformed(t *testing.T) {
	_, err := ParseCallback([]byte("<xml/>"))
	assert.Error(t, err)
}

func TestClient_BreakerOpensAfterRepeatedFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	reg := prometheus.NewRegistry()
	cfg := &config.MpesaConfig{
		APIBaseURL:  srv.URL,
		ShortCode:   "174379",
		Passkey:     "test-passkey",
		HTTPTimeout: 5 * time.Second,
	}
	c := NewClient(cfg, &staticTokenSource{token: "tok-1"}, observability.NewMetrics("test", reg))

	assert.Equal(t, float64(0), breakerGauge(t, reg))

	for i := 0; i < 10; i++ {
		_, err := c.QueryStatus(context.Background(), "ws_CO_x")
		require.Error(t, err)
	}

	// Tripped on the tenth failure; fails fast without reaching the server.
	_, err := c.QueryStatus(context.Background(), "ws_CO_x")
	require.Error(t, err)
	assert.Equal(t, float64(2), breakerGauge(t, reg))
}

func breakerGauge(t *testing.T, reg *prometheus.Registry) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == "test_circuit_breaker_state" {
			return mf.GetMetric()[0].GetGauge().GetValue()
		}
	}
	t.Fatal("circuit breaker gauge not registered")
	return 0
}
