package wire

import (
	"github.com/go-faster/jx"

	"github.com/xenking/kart-promotions/internal/domain/order"
	"github.com/xenking/kart-promotions/internal/domain/product"
)

// DecodePlaceOrder decodes {userId, items: [{productId, quantity}], promotionCode?}.
func DecodePlaceOrder(data []byte) (order.PlaceOrderRequest, error) {
	var req order.PlaceOrderRequest
	err := decodeObject(data, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "userId":
			req.UserID, err = d.Str()
		case "promotionCode", "couponCode":
			req.PromotionCode, err = decodeOptStr(d)
		case "items":
			err = d.Arr(func(d *jx.Decoder) error {
				var it order.OrderItem
				if err := d.Obj(func(d *jx.Decoder, key string) error {
					switch key {
					case "productId":
						v, err := d.Str()
						it.ProductID = v
						return err
					case "quantity":
						v, err := d.Int()
						it.Quantity = v
						return err
					default:
						return d.Skip()
					}
				}); err != nil {
					return err
				}
				req.Items = append(req.Items, it)
				return nil
			})
		default:
			err = d.Skip()
		}
		return fieldErr(key, err)
	})
	return req, err
}

// EncodeOrderResult writes a placed order with its priced products.
func EncodeOrderResult(e *jx.Encoder, res *order.PlaceOrderResult) {
	o := res.Order
	e.ObjStart()
	e.Field("id", func(e *jx.Encoder) { e.Str(o.ID) })
	e.Field("userId", func(e *jx.Encoder) { e.Str(o.UserID) })
	e.Field("items", func(e *jx.Encoder) {
		e.ArrStart()
		for _, it := range o.Items {
			e.ObjStart()
			e.Field("productId", func(e *jx.Encoder) { e.Str(it.ProductID) })
			e.Field("quantity", func(e *jx.Encoder) { e.Int(it.Quantity) })
			e.Field("price", func(e *jx.Encoder) { money(e, it.Price) })
			e.ObjEnd()
		}
		e.ArrEnd()
	})
	e.Field("products", func(e *jx.Encoder) {
		e.ArrStart()
		for _, p := range res.Products {
			EncodeProduct(e, p)
		}
		e.ArrEnd()
	})
	e.Field("subtotal", func(e *jx.Encoder) { money(e, o.Subtotal) })
	e.Field("discounts", func(e *jx.Encoder) { money(e, o.Discounts) })
	e.Field("total", func(e *jx.Encoder) { money(e, o.Total) })
	e.FieldStart("promotionCode")
	if o.PromotionID == "" {
		e.Null()
	} else {
		e.Str(o.PromotionCode)
	}
	e.FieldStart("usage")
	if res.Usage == nil {
		e.Null()
	} else {
		EncodeUsage(e, res.Usage)
	}
	e.Field("createdAt", func(e *jx.Encoder) { timestamp(e, o.CreatedAt) })
	e.ObjEnd()
}

// EncodeProduct writes a catalog product.
func EncodeProduct(e *jx.Encoder, p product.Product) {
	e.ObjStart()
	e.Field("id", func(e *jx.Encoder) { e.Str(p.ID) })
	e.Field("name", func(e *jx.Encoder) { e.Str(p.Name) })
	e.Field("price", func(e *jx.Encoder) { money(e, p.Price) })
	e.Field("categoryId", func(e *jx.Encoder) { e.Str(p.CategoryID) })
	e.ObjEnd()
}
