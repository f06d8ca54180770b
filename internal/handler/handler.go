// Package handler exposes the promotion engine, promotion administration and
// checkout over HTTP.
package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/kart-promotions/internal/domain/auth"
	"github.com/xenking/kart-promotions/internal/domain/order"
	"github.com/xenking/kart-promotions/internal/domain/promotion"
	"github.com/xenking/kart-promotions/internal/wire"
)

// maxBodySize bounds request bodies read by the handlers.
const maxBodySize = 1 << 20

// PromotionValidator decides whether a promotion applies to a cart.
type PromotionValidator interface {
	Validate(ctx context.Context, req promotion.ValidateRequest) (*promotion.Decision, error)
}

// UsageRecorder appends promotion usages.
type UsageRecorder interface {
	Record(ctx context.Context, req promotion.RecordRequest) (*promotion.Usage, error)
}

// PromotionAdmin manages promotion definitions.
type PromotionAdmin interface {
	Create(ctx context.Context, in promotion.Input) (*promotion.Promotion, error)
	Get(ctx context.Context, id string) (*promotion.Promotion, error)
	List(ctx context.Context, f promotion.ListFilter) (*promotion.ListResult, error)
	Update(ctx context.Context, id string, patch promotion.Patch) (*promotion.Promotion, error)
	Delete(ctx context.Context, id string) error
}

// OrderPlacer runs checkout.
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, req order.PlaceOrderRequest) (*order.PlaceOrderResult, error)
}

var (
	_ PromotionValidator = (*promotion.Validator)(nil)
	_ UsageRecorder      = (*promotion.Recorder)(nil)
	_ PromotionAdmin     = (*promotion.Admin)(nil)
	_ OrderPlacer        = (*order.Service)(nil)
)

// Handler serves the HTTP API, delegating business logic to the domain
// services.
type Handler struct {
	validator PromotionValidator
	recorder  UsageRecorder
	admin     PromotionAdmin
	orders    OrderPlacer
	security  *SecurityHandler
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	validator PromotionValidator,
	recorder UsageRecorder,
	admin PromotionAdmin,
	orders OrderPlacer,
	security *SecurityHandler,
) *Handler {
	return &Handler{
		validator: validator,
		recorder:  recorder,
		admin:     admin,
		orders:    orders,
		security:  security,
	}
}

// Routes mounts the API under /api on a new router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Route("/promotions", func(r chi.Router) {
			r.Post("/validate", h.ValidatePromotion)

			r.With(h.security.Require(auth.ScopeUsageWrite)).
				Post("/record-usage", h.RecordUsage)

			r.Group(func(r chi.Router) {
				r.Use(h.security.Require(auth.ScopePromotionsAdmin))
				r.Post("/", h.CreatePromotion)
				r.Get("/", h.ListPromotions)
				r.Get("/{id}", h.GetPromotion)
				r.Patch("/{id}", h.UpdatePromotion)
				r.Delete("/{id}", h.DeletePromotion)
			})
		})

		r.With(h.security.Require(auth.ScopeOrdersWrite)).
			Post("/orders", h.PlaceOrder)
	})
	return r
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		return nil, errors.Wrap(err, "read body")
	}
	return body, nil
}

func writeJSON(w http.ResponseWriter, status int, encode func(e *jx.Encoder)) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	encode(e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, kind, message := classify(err)
	if status >= http.StatusInternalServerError {
		zctx.From(r.Context()).Error("Request failed", zap.Error(err))
	}
	writeJSON(w, status, func(e *jx.Encoder) {
		wire.EncodeError(e, status, kind, message)
	})
}
