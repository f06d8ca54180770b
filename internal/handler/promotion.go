package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"

	"github.com/xenking/kart-promotions/internal/domain/promotion"
	"github.com/xenking/kart-promotions/internal/wire"
)

// ValidatePromotion checks a promotion code against the supplied cart.
func (h *Handler) ValidatePromotion(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	req, err := wire.DecodeValidateRequest(body)
	if err != nil {
		writeError(w, r, err)
		return
	}

	dec, err := h.validator.Validate(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { wire.EncodeDecision(e, dec) })
}

// RecordUsage appends a usage row for a previously validated promotion.
func (h *Handler) RecordUsage(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	req, err := wire.DecodeRecordRequest(body)
	if err != nil {
		writeError(w, r, err)
		return
	}

	u, err := h.recorder.Record(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { wire.EncodeUsage(e, u) })
}

func (h *Handler) CreatePromotion(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	in, err := wire.DecodeInput(body)
	if err != nil {
		writeError(w, r, err)
		return
	}

	p, err := h.admin.Create(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { wire.EncodePromotion(e, p) })
}

func (h *Handler) GetPromotion(w http.ResponseWriter, r *http.Request) {
	p, err := h.admin.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { wire.EncodePromotion(e, p) })
}

// ListPromotions serves a page of promotions. Query parameters: active,
// page, limit, sortBy, sortOrder.
func (h *Handler) ListPromotions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := promotion.ListFilter{
		SortBy:    q.Get("sortBy"),
		SortOrder: q.Get("sortOrder"),
	}

	var err error
	if v := q.Get("active"); v != "" {
		if f.ActiveOnly, err = strconv.ParseBool(v); err != nil {
			writeError(w, r, &wire.FieldError{Field: "active", Err: err})
			return
		}
	}
	if v := q.Get("page"); v != "" {
		if f.Page, err = strconv.Atoi(v); err != nil {
			writeError(w, r, &wire.FieldError{Field: "page", Err: err})
			return
		}
	}
	if v := q.Get("limit"); v != "" {
		if f.Limit, err = strconv.Atoi(v); err != nil {
			writeError(w, r, &wire.FieldError{Field: "limit", Err: err})
			return
		}
	}

	res, err := h.admin.List(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { wire.EncodeListResult(e, res) })
}

func (h *Handler) UpdatePromotion(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	patch, err := wire.DecodePatch(body)
	if err != nil {
		writeError(w, r, err)
		return
	}

	p, err := h.admin.Update(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { wire.EncodePromotion(e, p) })
}

func (h *Handler) DeletePromotion(w http.ResponseWriter, r *http.Request) {
	if err := h.admin.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
