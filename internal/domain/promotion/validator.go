package promotion

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

const instrumentationName = "github.com/xenking/kart-promotions/internal/domain/promotion"

// ValidateRequest is the input of a validation call.
type ValidateRequest struct {
	Code string
	// UserID is empty for anonymous carts.
	UserID    string
	Items     []CartItem
	CartTotal decimal.Decimal
}

// Validator runs the promotion eligibility pipeline: lookup, temporal
// window, usage caps, minimum purchase, conditions, discount.
//
// Validation is read-only. Recording usage is a separate step.
type Validator struct {
	repo   Repository
	usages UsageRepository
	eval   *Evaluator
	now    func() time.Time

	tracer   trace.Tracer
	outcomes metric.Int64Counter
}

// ValidatorOption configures a Validator.
type ValidatorOption func(*validatorOptions)

type validatorOptions struct {
	now            func() time.Time
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// WithClock overrides the validator clock.
func WithClock(now func() time.Time) ValidatorOption {
	return func(o *validatorOptions) { o.now = now }
}

// WithTracerProvider sets the provider used for validation spans.
func WithTracerProvider(tp trace.TracerProvider) ValidatorOption {
	return func(o *validatorOptions) { o.tracerProvider = tp }
}

// WithMeterProvider sets the provider used for the outcome counter.
func WithMeterProvider(mp metric.MeterProvider) ValidatorOption {
	return func(o *validatorOptions) { o.meterProvider = mp }
}

// NewValidator creates a Validator.
func NewValidator(repo Repository, usages UsageRepository, eval *Evaluator, opts ...ValidatorOption) *Validator {
	o := validatorOptions{
		now:            time.Now,
		tracerProvider: tracenoop.NewTracerProvider(),
		meterProvider:  metricnoop.NewMeterProvider(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	outcomes, err := o.meterProvider.Meter(instrumentationName).Int64Counter("promotion.validations",
		metric.WithDescription("Promotion validations by outcome"),
	)
	if err != nil {
		outcomes = metricnoop.Int64Counter{}
	}

	return &Validator{
		repo:     repo,
		usages:   usages,
		eval:     eval,
		now:      o.now,
		tracer:   o.tracerProvider.Tracer(instrumentationName),
		outcomes: outcomes,
	}
}

// Validate checks whether req.Code may be applied to the cart and computes
// the discount. Business-rule failures are returned as *RejectionError.
func (v *Validator) Validate(ctx context.Context, req ValidateRequest) (_ *Decision, rerr error) {
	ctx, span := v.tracer.Start(ctx, "promotion.Validate",
		trace.WithAttributes(attribute.String("promotion.code", req.Code)),
	)
	defer func() {
		outcome := "accepted"
		if rerr != nil {
			outcome = KindName(rerr)
			span.SetStatus(codes.Error, rerr.Error())
			if !IsRejection(rerr) {
				span.RecordError(rerr)
			}
		}
		span.SetAttributes(attribute.String("promotion.outcome", outcome))
		v.outcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
		span.End()
	}()

	if err := checkRequest(req); err != nil {
		return nil, err
	}

	// LOOKUP
	p, err := v.repo.FindActiveByCode(ctx, req.Code)
	if err != nil {
		if errors.Is(err, ErrInvalidCode) {
			return nil, reject(ErrInvalidCode, "Invalid promotion code or promotion is not active")
		}
		return nil, errors.Wrap(err, "lookup promotion")
	}
	if !p.IsActive {
		return nil, reject(ErrInvalidCode, "Invalid promotion code or promotion is not active")
	}

	// TEMPORAL_CHECK
	now := v.now()
	if p.StartDate.After(now) || p.EndDate.Before(now) {
		return nil, reject(ErrInactiveOrExpired, "Promotion is not active at this time")
	}

	// USAGE_CHECK
	if p.UsageLimit != nil {
		n, err := v.usages.Count(ctx, p.ID)
		if err != nil {
			return nil, errors.Wrap(err, "count usages")
		}
		p.UsageCount = n
		if n >= *p.UsageLimit {
			rej := reject(ErrUsageLimitExceeded, "This promotion has reached its usage limit")
			rej.Scope = ScopeGlobal
			return nil, rej
		}
	}
	if p.UsageLimitPerUser != nil && req.UserID != "" {
		n, err := v.usages.CountByUser(ctx, p.ID, req.UserID)
		if err != nil {
			return nil, errors.Wrap(err, "count user usages")
		}
		if n >= *p.UsageLimitPerUser {
			rej := reject(ErrUsageLimitExceeded, "You have already used this promotion the maximum number of times")
			rej.Scope = ScopeUser
			return nil, rej
		}
	}

	// MIN_PURCHASE_CHECK
	if p.MinPurchase != nil && req.CartTotal.LessThan(*p.MinPurchase) {
		return nil, reject(ErrBelowMinimumPurchase,
			"This promotion requires a minimum purchase of %s", p.MinPurchase.String())
	}

	// CONDITIONS_CHECK
	if err := v.eval.EvaluateAll(ctx, Compile(p), EvalContext{
		UserID:    req.UserID,
		Items:     req.Items,
		CartTotal: req.CartTotal,
		Now:       now,
	}); err != nil {
		return nil, err
	}

	// DISCOUNT_COMPUTE
	discount := CalculateDiscount(p, req.CartTotal)

	return &Decision{
		Promotion:      p,
		DiscountAmount: discount,
		FinalTotal:     FinalTotal(req.CartTotal, discount),
	}, nil
}

func checkRequest(req ValidateRequest) error {
	if req.Code == "" {
		return invalidInput("Promotion code is required")
	}
	if req.CartTotal.IsNegative() {
		return invalidInput("Cart total cannot be negative")
	}
	for _, item := range req.Items {
		if item.ProductID == "" {
			return invalidInput("Product ID is required for every cart item")
		}
		if item.Quantity <= 0 {
			return invalidInput("Quantity must be a positive integer")
		}
		if item.Price.IsNegative() {
			return invalidInput("Price cannot be negative")
		}
	}
	return nil
}
