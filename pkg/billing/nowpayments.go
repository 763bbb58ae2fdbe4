package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrymomot/creditgate/pkg/logger"
	"github.com/dmitrymomot/creditgate/pkg/resilience"
)

const (
	NowPaymentsBaseURL        = "https://api.nowpayments.io/v1"
	NowPaymentsSandboxBaseURL = "https://api-sandbox.nowpayments.io/v1"

	sandboxKeyPrefix = "sandbox"
	maxResponseBody  = 64 * 1024
)

// NowPaymentsConfig configures the NowPayments invoice client and the IPN
// callback verifier.
type NowPaymentsConfig struct {
	APIKey                string        `env:"NOWPAYMENTS_API_KEY"`
	IPNSecret             string        `env:"NOWPAYMENTS_IPN_SECRET"`
	BaseURL               string        `env:"NOWPAYMENTS_BASE_URL"`
	PayCurrency           string        `env:"NOWPAYMENTS_PAY_CURRENCY" envDefault:"usdttrc20"`
	Timeout               time.Duration `env:"NOWPAYMENTS_TIMEOUT" envDefault:"30s"`
	SignatureHeader       string        `env:"NOWPAYMENTS_SIGNATURE_HEADER" envDefault:"x-nowpayments-sig"`
	AllowInsecureWebhooks bool          `env:"NOWPAYMENTS_ALLOW_INSECURE_WEBHOOKS" envDefault:"false"`
	IPNCallbackURL        string        `env:"NOWPAYMENTS_IPN_CALLBACK_URL"`
	SuccessURL            string        `env:"NOWPAYMENTS_SUCCESS_URL"`
	CancelURL             string        `env:"NOWPAYMENTS_CANCEL_URL"`
}

// ResolvedBaseURL returns BaseURL, or the sandbox API for sandbox keys and
// the production API otherwise.
func (c NowPaymentsConfig) ResolvedBaseURL() string {
	if c.BaseURL != "" {
		return strings.TrimRight(c.BaseURL, "/")
	}
	if strings.HasPrefix(c.APIKey, sandboxKeyPrefix) {
		return NowPaymentsSandboxBaseURL
	}
	return NowPaymentsBaseURL
}

// NowPayments is an InvoiceProvider backed by the NowPayments REST API.
// Invoice creation is not idempotent upstream, so failed calls are never
// retried; a breaker stops hammering the API while it is down.
type NowPayments struct {
	cfg     NowPaymentsConfig
	baseURL string
	client  *http.Client
	breaker *resilience.Breaker
	log     *slog.Logger
}

// NowPaymentsOption configures a NowPayments client.
type NowPaymentsOption func(*NowPayments)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) NowPaymentsOption {
	return func(n *NowPayments) {
		if c != nil {
			n.client = c
		}
	}
}

// WithBreaker replaces the default circuit breaker.
func WithBreaker(b *resilience.Breaker) NowPaymentsOption {
	return func(n *NowPayments) {
		if b != nil {
			n.breaker = b
		}
	}
}

// WithProviderLogger sets the client logger.
func WithProviderLogger(l *slog.Logger) NowPaymentsOption {
	return func(n *NowPayments) {
		if l != nil {
			n.log = l
		}
	}
}

// NewNowPayments creates the client. It fails with ErrProviderNotConfig when
// no API key is set.
func NewNowPayments(cfg NowPaymentsConfig, opts ...NowPaymentsOption) (*NowPayments, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: NOWPAYMENTS_API_KEY is empty", ErrProviderNotConfig)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.PayCurrency == "" {
		cfg.PayCurrency = "usdttrc20"
	}

	n := &NowPayments{
		cfg:     cfg,
		baseURL: cfg.ResolvedBaseURL(),
		client: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		breaker: resilience.NewBreaker(5, 1, 30*time.Second),
		log:     logger.Discard(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

type invoicePayload struct {
	PriceAmount      json.Number `json:"price_amount"`
	PriceCurrency    string      `json:"price_currency"`
	PayCurrency      string      `json:"pay_currency,omitempty"`
	OrderID          string      `json:"order_id"`
	OrderDescription string      `json:"order_description,omitempty"`
	IPNCallbackURL   string      `json:"ipn_callback_url,omitempty"`
	SuccessURL       string      `json:"success_url,omitempty"`
	CancelURL        string      `json:"cancel_url,omitempty"`
}

type invoiceResponse struct {
	ID         FlexString `json:"id"`
	InvoiceURL string     `json:"invoice_url"`
}

// upstreamError carries a non-2xx answer from the API.
type upstreamError struct {
	status int
	body   string
}

func (e *upstreamError) Error() string {
	return fmt.Sprintf("nowpayments returned status %d: %s", e.status, e.body)
}

// CreateInvoice opens a hosted invoice. Provider faults, timeouts and an open
// breaker are reported as ErrProviderUnavailable; 4xx answers as
// ErrProviderRejected.
func (n *NowPayments) CreateInvoice(ctx context.Context, req InvoiceRequest) (Invoice, error) {
	if req.Amount <= 0 || req.OrderID == "" {
		return Invoice{}, fmt.Errorf("%w: amount and order id are required", ErrProviderRejected)
	}

	body, err := json.Marshal(invoicePayload{
		PriceAmount:      json.Number(FormatMinorUnits(req.Amount)),
		PriceCurrency:    strings.ToLower(req.Currency),
		PayCurrency:      n.cfg.PayCurrency,
		OrderID:          req.OrderID,
		OrderDescription: req.Description,
		IPNCallbackURL:   n.cfg.IPNCallbackURL,
		SuccessURL:       n.cfg.SuccessURL,
		CancelURL:        n.cfg.CancelURL,
	})
	if err != nil {
		return Invoice{}, fmt.Errorf("failed to marshal invoice request: %w", err)
	}

	var out invoiceResponse
	err = n.breaker.Do(func() error {
		return n.post(ctx, "/invoice", body, &out)
	}, countsAgainstProvider)

	switch {
	case err == nil:
	case errors.Is(err, resilience.ErrCircuitOpen):
		return Invoice{}, fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
	default:
		var ue *upstreamError
		if errors.As(err, &ue) && ue.status < http.StatusInternalServerError {
			return Invoice{}, fmt.Errorf("%w: %w", ErrProviderRejected, err)
		}
		n.log.ErrorContext(ctx, "invoice creation failed",
			logger.Component("nowpayments"), logger.OrderID(req.OrderID), logger.Error(err))
		return Invoice{}, fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
	}

	if out.ID == "" || out.InvoiceURL == "" {
		return Invoice{}, fmt.Errorf("%w: response without invoice id or url", ErrProviderUnavailable)
	}
	return Invoice{ID: string(out.ID), URL: out.InvoiceURL}, nil
}

func (n *NowPayments) post(ctx context.Context, path string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", n.cfg.APIKey)

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.ReplaceAll(string(data), "\n", " ")
		if len(msg) > 200 {
			msg = msg[:200] + "..."
		}
		return &upstreamError{status: resp.StatusCode, body: msg}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// countsAgainstProvider lets client-side rejections through the breaker
// without tripping it.
func countsAgainstProvider(err error) bool {
	var ue *upstreamError
	if errors.As(err, &ue) {
		return ue.status >= http.StatusInternalServerError || ue.status == http.StatusTooManyRequests
	}
	return true
}

// FormatMinorUnits renders cents as a decimal major-unit amount: 1000 -> "10",
// 1050 -> "10.50".
func FormatMinorUnits(amount int64) string {
	sign := ""
	if amount < 0 {
		sign, amount = "-", -amount
	}
	major, minor := amount/MinorUnitsPerMajor, amount%MinorUnitsPerMajor
	if minor == 0 {
		return sign + strconv.FormatInt(major, 10)
	}
	return fmt.Sprintf("%s%d.%02d", sign, major, minor)
}

// FlexString decodes a JSON string or number into its string form. The
// provider sends ids as either.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*f = ""
		return nil
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	default:
		var num json.Number
		if err := json.Unmarshal(data, &num); err != nil {
			return err
		}
		*f = FlexString(num.String())
		return nil
	}
}

// Callback is the subset of an IPN body the reconciliation flow reads.
type Callback struct {
	PaymentStatus string     `json:"payment_status"`
	InvoiceID     FlexString `json:"invoice_id"`
	PaymentID     FlexString `json:"payment_id"`
	OrderID       string     `json:"order_id"`
	PriceAmount   FlexString `json:"price_amount"`
	PriceCurrency string     `json:"price_currency"`
}

// ParseCallback decodes an IPN body. invoice_id and payment_status are required.
func ParseCallback(payload []byte) (Callback, error) {
	var cb Callback
	if err := json.Unmarshal(payload, &cb); err != nil {
		return Callback{}, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	cb.PaymentStatus = strings.ToLower(strings.TrimSpace(cb.PaymentStatus))
	if cb.InvoiceID == "" {
		return Callback{}, fmt.Errorf("%w: invoice_id is required", ErrInvalidPayload)
	}
	if cb.PaymentStatus == "" {
		return Callback{}, fmt.Errorf("%w: payment_status is required", ErrInvalidPayload)
	}
	return cb, nil
}
