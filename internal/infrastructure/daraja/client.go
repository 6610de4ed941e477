package daraja

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	domainErrors "github.com/dmwangi/medsupply/internal/domain/errors"
	"github.com/dmwangi/medsupply/internal/infrastructure/config"
	"github.com/dmwangi/medsupply/internal/infrastructure/observability"
	"github.com/sony/gobreaker/v2"
)

// API is the outbound surface the payment service depends on.
type API interface {
	// STKPush asks the provider to prompt the payer's handset.
	STKPush(ctx context.Context, req STKPushRequest) (*STKPushResponse, error)
	// QueryStatus asks the provider for the current result of a push.
	QueryStatus(ctx context.Context, checkoutRequestID string) (*StatusResponse, error)
}

// Client talks to the Daraja API. All calls carry a bounded timeout (the
// injected http.Client's) and go through a circuit breaker so a degraded
// provider fails fast instead of hanging requests.
type Client struct {
	cfg        *config.MpesaConfig
	httpClient *http.Client
	tokens     TokenSource
	breaker    *gobreaker.CircuitBreaker[[]byte]
	nowFunc    func() time.Time
}

func NewClient(cfg *config.MpesaConfig, tokens TokenSource, metrics *observability.Metrics) *Client {
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	breaker := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "daraja",
		MaxRequests: 5,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 10 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues(name).Set(breakerStateValue(to))
		},
	})
	metrics.CircuitBreakerState.WithLabelValues("daraja").Set(breakerStateValue(gobreaker.StateClosed))

	return &Client{
		cfg:        cfg,
		httpClient: httpClient,
		tokens:     tokens,
		breaker:    breaker,
		nowFunc:    time.Now,
	}
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateOpen:
		return 2
	case gobreaker.StateHalfOpen:
		return 1
	default:
		return 0
	}
}

// STKPush implements API.
func (c *Client) STKPush(ctx context.Context, req STKPushRequest) (*STKPushResponse, error) {
	timestamp, password := c.credentials()

	payload := stkPushPayload{
		BusinessShortCode: c.cfg.ShortCode,
		Password:          password,
		Timestamp:         timestamp,
		TransactionType:   "CustomerPayBillOnline",
		Amount:            req.Amount,
		PartyA:            req.PhoneNumber,
		PartyB:            c.cfg.ShortCode,
		PhoneNumber:       req.PhoneNumber,
		CallBackURL:       c.cfg.CallbackURL,
		AccountReference:  req.AccountReference,
		TransactionDesc:   req.Description,
	}

	body, err := c.post(ctx, "/mpesa/stkpush/v1/processrequest", payload)
	if err != nil {
		return nil, err
	}

	var result stkPushResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("%w: decode stk push response: %v", domainErrors.ErrUpstreamRequest, err)
	}
	if result.ErrorCode != "" {
		return nil, fmt.Errorf("%w: %s (%s)", domainErrors.ErrUpstreamRequest, result.ErrorMessage, result.ErrorCode)
	}
	if result.ResponseCode != "0" {
		return nil, fmt.Errorf("%w: push rejected: %s", domainErrors.ErrUpstreamRequest, result.ResponseDescription)
	}
	if result.CheckoutRequestID == "" {
		return nil, fmt.Errorf("%w: response missing CheckoutRequestID", domainErrors.ErrUpstreamRequest)
	}

	return &STKPushResponse{
		MerchantRequestID: result.MerchantRequestID,
		CheckoutRequestID: result.CheckoutRequestID,
		ResponseCode:      result.ResponseCode,
		CustomerMessage:   result.CustomerMessage,
	}, nil
}

// QueryStatus implements API.
func (c *Client) QueryStatus(ctx context.Context, checkoutRequestID string) (*StatusResponse, error) {
	timestamp, password := c.credentials()

	payload := statusQueryPayload{
		BusinessShortCode: c.cfg.ShortCode,
		Password:          password,
		Timestamp:         timestamp,
		CheckoutRequestID: checkoutRequestID,
	}

	body, err := c.post(ctx, "/mpesa/stkpushquery/v1/query", payload)
	if err != nil {
		return nil, err
	}

	var result statusQueryResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("%w: decode status response: %v", domainErrors.ErrUpstreamRequest, err)
	}
	if result.ErrorCode != "" {
		return nil, fmt.Errorf("%w: %s (%s)", domainErrors.ErrUpstreamRequest, result.ErrorMessage, result.ErrorCode)
	}

	return &StatusResponse{
		ResultCode: int(result.ResultCode),
		ResultDesc: result.ResultDesc,
	}, nil
}

// credentials derives the request timestamp and the
// base64(shortcode+passkey+timestamp) password Daraja expects.
func (c *Client) credentials() (timestamp, password string) {
	timestamp = c.nowFunc().Format("20060102150405")
	password = base64.StdEncoding.EncodeToString([]byte(c.cfg.ShortCode + c.cfg.Passkey + timestamp))
	return timestamp, password
}

func (c *Client) post(ctx context.Context, path string, payload any) ([]byte, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal daraja payload: %w", err)
	}

	body, err := c.breaker.Execute(func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL()+path, bytes.NewReader(raw))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			// Stale or rejected token. Drop it so the next call re-fetches.
			c.tokens.Invalidate()
			return nil, fmt.Errorf("%w: daraja returned %d", domainErrors.ErrUpstreamAuth, resp.StatusCode)
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return nil, fmt.Errorf("daraja returned %d", resp.StatusCode)
		}

		return b, nil
	})
	if err != nil {
		if errors.Is(err, domainErrors.ErrUpstreamAuth) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domainErrors.ErrUpstreamRequest, err)
	}
	return body, nil
}
