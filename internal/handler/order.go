package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/kart-promotions/internal/wire"
)

// PlaceOrder decodes the checkout request, delegates to the order service,
// and writes the placed order.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	req, err := wire.DecodePlaceOrder(body)
	if err != nil {
		writeError(w, r, err)
		return
	}

	result, err := h.orders.PlaceOrder(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { wire.EncodeOrderResult(e, result) })
}
