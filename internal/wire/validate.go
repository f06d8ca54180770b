package wire

import (
	"github.com/go-faster/jx"

	"github.com/xenking/kart-promotions/internal/domain/promotion"
)

// DecodeValidateRequest decodes {code, userId?, cartItems?, cartTotal?}.
func DecodeValidateRequest(data []byte) (promotion.ValidateRequest, error) {
	var req promotion.ValidateRequest
	err := decodeObject(data, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "code":
			req.Code, err = d.Str()
		case "userId":
			req.UserID, err = decodeOptStr(d)
		case "cartItems":
			req.Items, err = decodeCartItems(d)
		case "cartTotal":
			var v, verr = decodeOptDecimal(d)
			if v != nil {
				req.CartTotal = *v
			}
			err = verr
		default:
			err = d.Skip()
		}
		return fieldErr(key, err)
	})
	return req, err
}

func decodeCartItems(d *jx.Decoder) ([]promotion.CartItem, error) {
	if null, err := isNull(d); null || err != nil {
		return nil, err
	}
	var items []promotion.CartItem
	err := d.Arr(func(d *jx.Decoder) error {
		var it promotion.CartItem
		err := d.Obj(func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "productId":
				it.ProductID, err = d.Str()
			case "quantity":
				it.Quantity, err = d.Int()
			case "price":
				var v, verr = decodeOptDecimal(d)
				if v != nil {
					it.Price = *v
				}
				err = verr
			default:
				err = d.Skip()
			}
			return err
		})
		if err != nil {
			return err
		}
		items = append(items, it)
		return nil
	})
	return items, err
}

// EncodeDecision writes {promotion, discountAmount, finalTotal}.
func EncodeDecision(e *jx.Encoder, dec *promotion.Decision) {
	e.ObjStart()
	e.Field("promotion", func(e *jx.Encoder) { EncodePromotion(e, dec.Promotion) })
	e.Field("discountAmount", func(e *jx.Encoder) { money(e, dec.DiscountAmount) })
	e.Field("finalTotal", func(e *jx.Encoder) { money(e, dec.FinalTotal) })
	e.ObjEnd()
}

// DecodeRecordRequest decodes {promotionId, userId, orderId?}.
func DecodeRecordRequest(data []byte) (promotion.RecordRequest, error) {
	var req promotion.RecordRequest
	err := decodeObject(data, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "promotionId":
			req.PromotionID, err = d.Str()
		case "userId":
			req.UserID, err = d.Str()
		case "orderId":
			req.OrderID, err = decodeOptStr(d)
		default:
			err = d.Skip()
		}
		return fieldErr(key, err)
	})
	return req, err
}

// EncodeUsage writes a usage record. orderId is null when the usage was
// recorded without an order.
func EncodeUsage(e *jx.Encoder, u *promotion.Usage) {
	e.ObjStart()
	e.Field("id", func(e *jx.Encoder) { e.Str(u.ID) })
	e.Field("promotionId", func(e *jx.Encoder) { e.Str(u.PromotionID) })
	e.Field("userId", func(e *jx.Encoder) { e.Str(u.UserID) })
	e.FieldStart("orderId")
	if u.OrderID == "" {
		e.Null()
	} else {
		e.Str(u.OrderID)
	}
	e.Field("usedAt", func(e *jx.Encoder) { timestamp(e, u.UsedAt) })
	e.ObjEnd()
}

// EncodeError writes the error body shared by every endpoint.
func EncodeError(e *jx.Encoder, status int, kind, message string) {
	e.ObjStart()
	e.Field("code", func(e *jx.Encoder) { e.Int(status) })
	e.Field("kind", func(e *jx.Encoder) { e.Str(kind) })
	e.Field("message", func(e *jx.Encoder) { e.Str(message) })
	e.ObjEnd()
}
