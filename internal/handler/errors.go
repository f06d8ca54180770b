package handler

import (
	"net/http"

	"github.com/go-faster/errors"

	"github.com/xenking/kart-promotions/internal/domain/order"
	"github.com/xenking/kart-promotions/internal/domain/promotion"
	"github.com/xenking/kart-promotions/internal/wire"
)

var (
	errUnauthorized = errors.New("unauthorized")
	errForbidden    = errors.New("forbidden")
)

// classify maps an error to its HTTP status, wire kind and message.
// Anything unrecognized is an internal error and its text is not exposed.
func classify(err error) (status int, kind, message string) {
	var rej *promotion.RejectionError
	if errors.As(err, &rej) {
		return rejectionStatus(rej), rej.KindName(), rej.Message
	}

	var fe *wire.FieldError
	if errors.As(err, &fe) {
		return http.StatusBadRequest, "invalid_input", fe.Error()
	}

	var iqErr *order.InvalidQuantityError
	if errors.As(err, &iqErr) {
		return http.StatusUnprocessableEntity, "invalid_input", iqErr.Error()
	}

	var pnfErr *order.ProductNotFoundError
	if errors.As(err, &pnfErr) {
		return http.StatusUnprocessableEntity, "product_not_found", pnfErr.Error()
	}

	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, "invalid_input", "request body too large"
	case errors.Is(err, order.ErrEmptyItems), errors.Is(err, order.ErrUserRequired):
		return http.StatusBadRequest, "invalid_input", err.Error()
	case errors.Is(err, errUnauthorized):
		return http.StatusUnauthorized, "unauthorized", "unauthorized"
	case errors.Is(err, errForbidden):
		return http.StatusForbidden, "forbidden", "api key lacks the required scope"
	}

	return http.StatusInternalServerError, "internal", "internal server error"
}

func rejectionStatus(rej *promotion.RejectionError) int {
	switch {
	case errors.Is(rej, promotion.ErrInvalidCode), errors.Is(rej, promotion.ErrPromotionNotFound):
		return http.StatusNotFound
	case errors.Is(rej, promotion.ErrCodeExists):
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}
