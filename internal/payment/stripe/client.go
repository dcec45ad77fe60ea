// Package stripe creates hosted Stripe Checkout sessions.
package stripe

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/sony/gobreaker/v2"
	stripeapi "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/bytebuy/internal/domain/payment"
)

var _ payment.Provider = (*Client)(nil)

// Config holds Stripe API settings.
type Config struct {
	SecretKey  string
	BaseURL    string
	Currency   string
	SuccessURL string
	CancelURL  string
	Timeout    time.Duration
}

// Option configures a Client.
type Option func(*options)

type options struct {
	transport http.RoundTripper
	tracer    trace.TracerProvider
	meter     metric.MeterProvider
	logger    *zap.Logger
	breaker   gobreaker.Settings
}

// WithTransport sets the base HTTP transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) { o.transport = rt }
}

// WithTracerProvider sets the tracer provider for outgoing requests.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tracer = tp }
}

// WithMeterProvider sets the meter provider for outgoing requests.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) { o.meter = mp }
}

// WithLogger routes the SDK's own request logging to lg.
func WithLogger(lg *zap.Logger) Option {
	return func(o *options) { o.logger = lg }
}

// WithBreakerSettings overrides the circuit breaker configuration.
func WithBreakerSettings(s gobreaker.Settings) Option {
	return func(o *options) { o.breaker = s }
}

// Client implements payment.Provider using the Stripe Checkout Sessions API.
// Requests are not retried; after repeated transport or 5xx failures the
// breaker opens and calls fail fast.
type Client struct {
	cfg      Config
	sessions session.Client
	breaker  *gobreaker.CircuitBreaker[*payment.Session]
}

// NewClient creates a Client for cfg.
func NewClient(cfg Config, opts ...Option) *Client {
	o := options{
		transport: http.DefaultTransport,
		tracer:    otel.GetTracerProvider(),
		meter:     otel.GetMeterProvider(),
		logger:    zap.NewNop(),
		breaker: gobreaker.Settings{
			Name:    "stripe",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 5
			},
		},
	}
	for _, opt := range opts {
		opt(&o)
	}
	// Rejected requests are the caller's fault, not an outage.
	o.breaker.IsSuccessful = func(err error) bool {
		var se *stripeapi.Error
		return err == nil || (errors.As(err, &se) && se.HTTPStatusCode > 0 && se.HTTPStatusCode < http.StatusInternalServerError)
	}

	backendCfg := &stripeapi.BackendConfig{
		HTTPClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: otelhttp.NewTransport(o.transport,
				otelhttp.WithTracerProvider(o.tracer),
				otelhttp.WithMeterProvider(o.meter),
			),
		},
		LeveledLogger:     o.logger.Sugar(),
		MaxNetworkRetries: stripeapi.Int64(0),
	}
	if cfg.BaseURL != "" {
		backendCfg.URL = stripeapi.String(cfg.BaseURL)
	}

	return &Client{
		cfg: cfg,
		sessions: session.Client{
			B:   stripeapi.GetBackendWithConfig(stripeapi.APIBackend, backendCfg),
			Key: cfg.SecretKey,
		},
		breaker: gobreaker.NewCircuitBreaker[*payment.Session](o.breaker),
	}
}

// CreateSession starts a one-off card payment for items and returns the
// session ID and redirect URL.
func (c *Client) CreateSession(ctx context.Context, items []payment.LineItem) (*payment.Session, error) {
	s, err := c.breaker.Execute(func() (*payment.Session, error) {
		return c.createSession(ctx, items)
	})
	switch {
	case err == nil:
		return s, nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return nil, &payment.ProviderError{Message: "payment provider unavailable", Err: err}
	default:
		return nil, providerError(err)
	}
}

func (c *Client) createSession(ctx context.Context, items []payment.LineItem) (*payment.Session, error) {
	params := c.sessionParams(items)
	params.Context = ctx

	cs, err := c.sessions.New(params)
	if err != nil {
		return nil, err
	}
	if cs.ID == "" {
		return nil, &payment.ProviderError{Message: "session id missing in response"}
	}
	return &payment.Session{ID: cs.ID, URL: cs.URL}, nil
}

func (c *Client) sessionParams(items []payment.LineItem) *stripeapi.CheckoutSessionParams {
	params := &stripeapi.CheckoutSessionParams{
		Mode:               stripeapi.String(string(stripeapi.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripeapi.StringSlice([]string{"card"}),
		SuccessURL:         stripeapi.String(c.cfg.SuccessURL),
		CancelURL:          stripeapi.String(c.cfg.CancelURL),
		LineItems:          make([]*stripeapi.CheckoutSessionLineItemParams, len(items)),
	}
	for i, item := range items {
		params.LineItems[i] = &stripeapi.CheckoutSessionLineItemParams{
			PriceData: &stripeapi.CheckoutSessionLineItemPriceDataParams{
				Currency: stripeapi.String(c.cfg.Currency),
				ProductData: &stripeapi.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripeapi.String(item.Name),
				},
				UnitAmount: stripeapi.Int64(item.UnitAmount),
			},
			Quantity: stripeapi.Int64(int64(item.Quantity)),
		}
	}
	return params
}

// providerError keeps the message Stripe reported. Failures without an API
// error body fall back to the HTTP status text when one is known.
func providerError(err error) error {
	var perr *payment.ProviderError
	if errors.As(err, &perr) {
		return perr
	}
	var se *stripeapi.Error
	if errors.As(err, &se) {
		msg := se.Msg
		if msg == "" {
			msg = http.StatusText(se.HTTPStatusCode)
		}
		return &payment.ProviderError{Message: msg, Err: err}
	}
	return &payment.ProviderError{Message: err.Error(), Err: err}
}
