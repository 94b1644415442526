package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/adasoft/payment-system/cinetpay-gateway/internal/models"
	"github.com/adasoft/payment-system/cinetpay-gateway/internal/telemetry"
)

const (
	opCheckStatus   = "check_status"
	opCreatePayment = "create_payment"

	maxResponseBytes   = 1 << 20
	maxBackoffInterval = 5 * time.Second
)

type Config struct {
	APIKey     string
	SiteID     string
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	// InitialBackoff is the first retry delay. Zero means 200ms.
	InitialBackoff time.Duration
}

// Client talks to the CinetPay checkout API. It is safe for concurrent use.
type Client struct {
	cfg     Config
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	group   singleflight.Group
	logger  *zap.Logger
	metrics *telemetry.Metrics
}

func NewClient(cfg Config, logger *zap.Logger, metrics *telemetry.Metrics) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 200 * time.Millisecond
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	logger = logger.Named("gateway")

	c := &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		logger:  logger,
		metrics: metrics,
	}

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "cinetpay",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// Only outages count against the breaker; a rejected request is the caller's problem.
		IsSuccessful: func(err error) bool {
			return err == nil || !IsTransient(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return c
}

// CheckStatus asks the gateway for the authoritative status of a transaction,
// retrying transient failures. Any failure is reported as ErrReconciliation.
func (c *Client) CheckStatus(ctx context.Context, transactionID string) (*models.StatusResult, error) {
	return c.checkStatus(ctx, statusQuery{transactionID: transactionID}, c.cfg.MaxRetries)
}

// CheckStatusByToken looks the payment up by the checkout token issued at creation.
func (c *Client) CheckStatusByToken(ctx context.Context, token string) (*models.StatusResult, error) {
	return c.checkStatus(ctx, statusQuery{token: token}, c.cfg.MaxRetries)
}

// SingleAttempt returns a status checker that makes exactly one round trip.
func (c *Client) SingleAttempt() *SingleAttemptChecker {
	return &SingleAttemptChecker{client: c}
}

type SingleAttemptChecker struct {
	client *Client
}

func (s *SingleAttemptChecker) CheckStatus(ctx context.Context, transactionID string) (*models.StatusResult, error) {
	return s.client.checkStatus(ctx, statusQuery{transactionID: transactionID}, 0)
}

func (s *SingleAttemptChecker) CheckStatusByToken(ctx context.Context, token string) (*models.StatusResult, error) {
	return s.client.checkStatus(ctx, statusQuery{token: token}, 0)
}

// statusQuery identifies a payment by transaction id or by checkout token.
type statusQuery struct {
	transactionID string
	token         string
}

func (q statusQuery) key() string {
	if q.token != "" {
		return "token:" + q.token
	}
	return "id:" + q.transactionID
}

func (c *Client) checkStatus(ctx context.Context, q statusQuery, retries int) (*models.StatusResult, error) {
	if q.transactionID == "" && q.token == "" {
		return nil, fmt.Errorf("%w: empty transaction id", ErrReconciliation)
	}

	ctx, span := telemetry.Tracer.Start(ctx, "gateway.CheckStatus")
	defer span.End()
	span.SetAttributes(
		attribute.String("transaction_id", q.transactionID),
		attribute.Bool("by_token", q.token != ""),
	)

	// Concurrent checks for the same payment share one round trip. The shared call
	// outlives any single caller, so it runs detached and bounded on its own.
	ch := c.group.DoChan(fmt.Sprintf("%s:%d", q.key(), retries), func() (interface{}, error) {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.flightTimeout(retries))
		defer cancel()

		start := time.Now()
		res, err := c.withRetry(callCtx, retries, func() (*models.StatusResult, error) {
			return c.checkOnce(callCtx, q)
		})
		c.metrics.RecordGatewayRequest(opCheckStatus, ClassifyError(err), time.Since(start))
		return res, err
	})

	var (
		v      interface{}
		err    error
		shared bool
	)
	select {
	case r := <-ch:
		v, err, shared = r.Val, r.Err, r.Shared
	case <-ctx.Done():
		err = fmt.Errorf("%w: %w", ErrUnavailable, ctx.Err())
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "status check failed")
		c.logger.Warn("Status check failed",
			zap.String("transaction_id", q.transactionID),
			zap.Bool("by_token", q.token != ""),
			zap.Bool("shared", shared),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %w", ErrReconciliation, err)
	}

	res := *v.(*models.StatusResult)
	span.SetAttributes(
		attribute.String("gateway.code", res.Code),
		attribute.String("gateway.status", string(res.Status)),
	)
	return &res, nil
}

// flightTimeout bounds a shared status check: every attempt plus the longest waits between them.
func (c *Client) flightTimeout(retries int) time.Duration {
	return time.Duration(retries+1)*c.cfg.Timeout + time.Duration(retries)*maxBackoffInterval*3/2
}

func (c *Client) checkOnce(ctx context.Context, q statusQuery) (*models.StatusResult, error) {
	req := checkRequest{
		credentials:   credentials{APIKey: c.cfg.APIKey, SiteID: c.cfg.SiteID},
		TransactionID: q.transactionID,
		Token:         q.token,
	}

	httpStatus, body, err := c.post(ctx, "/payment/check", req)
	if err != nil {
		return nil, err
	}
	if httpStatus >= 500 {
		return nil, fmt.Errorf("%w: status check returned HTTP %d", ErrUnavailable, httpStatus)
	}

	var resp checkResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("%w: %v", ErrMalformedResponse, err))
	}

	res, err := normalizeCheck(q.transactionID, &resp)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	return res, nil
}

// normalizeCheck folds both answer shapes into one result. A nested data.status
// wins over the top-level code when both are present.
func normalizeCheck(transactionID string, resp *checkResponse) (*models.StatusResult, error) {
	code := strings.TrimSpace(string(resp.Code))
	res := &models.StatusResult{
		TransactionID: transactionID,
		Code:          code,
		Message:       resp.Message,
	}

	if requestErrorCodes[code] {
		return nil, fmt.Errorf("%w: code %s: %s", ErrRejected, code, resp.Message)
	}

	var dataStatus string
	if resp.Data != nil {
		dataStatus = normalizeDataStatus(resp.Data.Status)
		res.Currency = strings.ToUpper(strings.TrimSpace(resp.Data.Currency))
		if resp.Data.Amount.Valid {
			if minor, ok := ToMinorUnits(resp.Data.Amount.Decimal, res.Currency); ok {
				res.Amount = minor
				res.AmountReported = true
			}
		}
	}

	switch {
	case dataStatus != "":
		res.StatusDetail = dataStatus
		switch dataStatus {
		case "ACCEPTED":
			res.Status = models.GatewayAccepted
		case "PENDING", "WAITING_CUSTOMER_PAYMENT", "WAITING_CUSTOMER_TO_VALIDATE", "WAITING_CUSTOMER_OTP_CODE":
			res.Status = models.GatewayPending
		default:
			res.Status = models.GatewayRefused
		}
	case code != "":
		res.StatusDetail = resp.Message
		switch {
		case code == codeAccepted:
			res.Status = models.GatewayAccepted
		case pendingCodes[code]:
			res.Status = models.GatewayPending
		default:
			res.Status = models.GatewayRefused
		}
	default:
		return nil, fmt.Errorf("%w: neither code nor data.status present", ErrMalformedResponse)
	}

	return res, nil
}

// CreatePayment requests a checkout link. Only the "201" answer counts as success.
func (c *Client) CreatePayment(ctx context.Context, p models.PaymentRequest) (*models.PaymentLink, error) {
	ctx, span := telemetry.Tracer.Start(ctx, "gateway.CreatePayment")
	defer span.End()
	span.SetAttributes(attribute.String("transaction_id", p.TransactionID))

	channels := p.Channels
	if channels == "" {
		channels = "ALL"
	}
	req := createRequest{
		credentials:     credentials{APIKey: c.cfg.APIKey, SiteID: c.cfg.SiteID},
		TransactionID:   p.TransactionID,
		Amount:          json.Number(FromMinorUnits(p.Amount, p.Currency).String()),
		Currency:        p.Currency,
		Description:     p.Description,
		NotifyURL:       p.NotifyURL,
		ReturnURL:       p.ReturnURL,
		Channels:        channels,
		CustomerName:    p.CustomerName,
		CustomerSurname: p.CustomerSurname,
		CustomerEmail:   p.CustomerEmail,
		Metadata:        p.Metadata,
	}

	start := time.Now()
	link, err := c.withRetryLink(ctx, func() (*models.PaymentLink, error) {
		httpStatus, body, err := c.post(ctx, "/payment", req)
		if err != nil {
			return nil, err
		}
		if httpStatus >= 500 {
			return nil, fmt.Errorf("%w: payment creation returned HTTP %d", ErrUnavailable, httpStatus)
		}

		var resp createResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, backoff.Permanent(fmt.Errorf("%w: %v", ErrMalformedResponse, err))
		}
		if string(resp.Code) != codeCreated || resp.Data == nil {
			msg := resp.Description
			if msg == "" {
				msg = resp.Message
			}
			return nil, backoff.Permanent(fmt.Errorf("%w: code %s: %s", ErrRejected, resp.Code, msg))
		}
		return &models.PaymentLink{
			Token:       resp.Data.PaymentToken,
			CheckoutURL: resp.Data.PaymentURL,
		}, nil
	})
	c.metrics.RecordGatewayRequest(opCreatePayment, ClassifyError(err), time.Since(start))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "payment creation failed")
		return nil, err
	}
	return link, nil
}

func (c *Client) withRetry(ctx context.Context, retries int, op func() (*models.StatusResult, error)) (*models.StatusResult, error) {
	return backoff.RetryWithData(func() (*models.StatusResult, error) {
		return breakerCall(c.breaker, op)
	}, c.backoffPolicy(ctx, retries))
}

func (c *Client) withRetryLink(ctx context.Context, op func() (*models.PaymentLink, error)) (*models.PaymentLink, error) {
	return backoff.RetryWithData(func() (*models.PaymentLink, error) {
		return breakerCall(c.breaker, op)
	}, c.backoffPolicy(ctx, c.cfg.MaxRetries))
}

func (c *Client) backoffPolicy(ctx context.Context, retries int) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.InitialBackoff
	b.MaxInterval = maxBackoffInterval
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)
}

// breakerCall runs op through the breaker. An open breaker stops retrying immediately.
func breakerCall[T any](cb *gobreaker.CircuitBreaker, op func() (T, error)) (T, error) {
	var zero T
	v, err := cb.Execute(func() (interface{}, error) {
		return op()
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, backoff.Permanent(fmt.Errorf("%w: %w", ErrUnavailable, err))
		}
		return zero, err
	}
	return v.(T), nil
}

func (c *Client) post(ctx context.Context, path string, payload interface{}) (int, []byte, error) {
	buf, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, backoff.Permanent(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(buf))
	if err != nil {
		return 0, nil, backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return 0, nil, backoff.Permanent(fmt.Errorf("%w: %w", ErrUnavailable, ctx.Err()))
		}
		return 0, nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return 0, nil, fmt.Errorf("%w: reading body: %v", ErrUnavailable, err)
	}
	return resp.StatusCode, body, nil
}
