package wire

import (
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/kart-promotions/internal/domain/promotion"
)

// EncodePromotion writes p as a JSON object.
func EncodePromotion(e *jx.Encoder, p *promotion.Promotion) {
	e.ObjStart()
	e.Field("id", func(e *jx.Encoder) { e.Str(p.ID) })
	e.Field("code", func(e *jx.Encoder) { e.Str(p.Code) })
	e.Field("name", func(e *jx.Encoder) { e.Str(p.Name) })
	e.Field("image", func(e *jx.Encoder) { e.Str(p.Image) })
	e.Field("description", func(e *jx.Encoder) { e.Str(p.Description) })
	e.Field("type", func(e *jx.Encoder) { e.Str(string(p.Type)) })
	e.Field("startDate", func(e *jx.Encoder) { timestamp(e, p.StartDate) })
	e.Field("endDate", func(e *jx.Encoder) { timestamp(e, p.EndDate) })
	e.Field("discount", func(e *jx.Encoder) { money(e, p.Discount) })
	e.Field("discountType", func(e *jx.Encoder) { e.Str(string(p.DiscountType)) })
	optMoney(e, "maxDiscount", p.MaxDiscount)
	optInt(e, "usageLimit", p.UsageLimit)
	optInt(e, "usageLimitPerUser", p.UsageLimitPerUser)
	optMoney(e, "minPurchase", p.MinPurchase)
	e.Field("isActive", func(e *jx.Encoder) { e.Bool(p.IsActive) })
	e.Field("usageCount", func(e *jx.Encoder) { e.Int(p.UsageCount) })
	e.Field("createdAt", func(e *jx.Encoder) { timestamp(e, p.CreatedAt) })
	e.Field("updatedAt", func(e *jx.Encoder) { timestamp(e, p.UpdatedAt) })
	e.Field("conditions", func(e *jx.Encoder) {
		e.ArrStart()
		for _, c := range p.Conditions {
			encodeCondition(e, c)
		}
		e.ArrEnd()
	})
	e.Field("productIds", func(e *jx.Encoder) { strs(e, p.ProductIDs) })
	e.Field("categoryIds", func(e *jx.Encoder) { strs(e, p.CategoryIDs) })
	e.ObjEnd()
}

func encodeCondition(e *jx.Encoder, c promotion.ConditionRecord) {
	e.ObjStart()
	e.Field("id", func(e *jx.Encoder) { e.Str(c.ID) })
	e.Field("type", func(e *jx.Encoder) { e.Str(string(c.Type)) })
	e.Field("value", func(e *jx.Encoder) { e.Str(c.Value) })
	e.FieldStart("payload")
	if len(c.Payload) == 0 {
		e.Null()
	} else {
		e.Raw(c.Payload)
	}
	e.Field("isActive", func(e *jx.Encoder) { e.Bool(c.IsActive) })
	e.ObjEnd()
}

// MarshalPromotion encodes p to a standalone JSON document.
func MarshalPromotion(p *promotion.Promotion) []byte {
	var e jx.Encoder
	EncodePromotion(&e, p)
	return e.Bytes()
}

// UnmarshalPromotion is the inverse of MarshalPromotion. Unknown fields are
// skipped.
func UnmarshalPromotion(data []byte) (*promotion.Promotion, error) {
	var p promotion.Promotion
	err := decodeObject(data, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			p.ID, err = d.Str()
		case "code":
			p.Code, err = d.Str()
		case "name":
			p.Name, err = d.Str()
		case "image":
			p.Image, err = d.Str()
		case "description":
			p.Description, err = d.Str()
		case "type":
			var s string
			s, err = d.Str()
			p.Type = promotion.Type(s)
		case "startDate":
			p.StartDate, err = decodeTime(d)
		case "endDate":
			p.EndDate, err = decodeTime(d)
		case "discount":
			p.Discount, err = decodeDecimal(d)
		case "discountType":
			var s string
			s, err = d.Str()
			p.DiscountType = promotion.DiscountType(s)
		case "maxDiscount":
			p.MaxDiscount, err = decodeOptDecimal(d)
		case "usageLimit":
			p.UsageLimit, err = decodeOptInt(d)
		case "usageLimitPerUser":
			p.UsageLimitPerUser, err = decodeOptInt(d)
		case "minPurchase":
			p.MinPurchase, err = decodeOptDecimal(d)
		case "isActive":
			p.IsActive, err = d.Bool()
		case "usageCount":
			p.UsageCount, err = d.Int()
		case "createdAt":
			p.CreatedAt, err = decodeTime(d)
		case "updatedAt":
			p.UpdatedAt, err = decodeTime(d)
		case "conditions":
			err = d.Arr(func(d *jx.Decoder) error {
				c, err := decodeConditionRecord(d)
				if err != nil {
					return err
				}
				p.Conditions = append(p.Conditions, c)
				return nil
			})
		case "productIds":
			p.ProductIDs, err = decodeStrs(d)
		case "categoryIds":
			p.CategoryIDs, err = decodeStrs(d)
		default:
			err = d.Skip()
		}
		return fieldErr(key, err)
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode promotion")
	}
	return &p, nil
}

func decodeConditionRecord(d *jx.Decoder) (promotion.ConditionRecord, error) {
	var c promotion.ConditionRecord
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			c.ID, err = d.Str()
		case "type":
			var s string
			s, err = d.Str()
			c.Type = promotion.ConditionType(s)
		case "value":
			c.Value, err = decodeOptStr(d)
		case "payload":
			c.Payload, err = decodeRawJSON(d)
		case "isActive":
			c.IsActive, err = d.Bool()
		default:
			err = d.Skip()
		}
		return err
	})
	return c, err
}

// DecodeInput decodes a promotion creation request body.
func DecodeInput(data []byte) (promotion.Input, error) {
	var in promotion.Input
	err := decodeObject(data, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "code":
			in.Code, err = d.Str()
		case "name":
			in.Name, err = d.Str()
		case "image":
			in.Image, err = decodeOptStr(d)
		case "description":
			in.Description, err = decodeOptStr(d)
		case "type":
			var s string
			s, err = decodeOptStr(d)
			in.Type = promotion.Type(s)
		case "startDate":
			in.StartDate, err = decodeTime(d)
		case "endDate":
			in.EndDate, err = decodeTime(d)
		case "discount":
			in.Discount, err = decodeDecimal(d)
		case "discountType":
			var s string
			s, err = d.Str()
			in.DiscountType = promotion.DiscountType(s)
		case "maxDiscount":
			in.MaxDiscount, err = decodeOptDecimal(d)
		case "usageLimit":
			in.UsageLimit, err = decodeOptInt(d)
		case "usageLimitPerUser":
			in.UsageLimitPerUser, err = decodeOptInt(d)
		case "minPurchase":
			in.MinPurchase, err = decodeOptDecimal(d)
		case "isActive":
			in.IsActive, err = decodeOptBool(d)
		case "conditions":
			in.Conditions, err = decodeConditionInputs(d)
		case "productIds":
			in.ProductIDs, err = decodeStrs(d)
		case "categoryIds":
			in.CategoryIDs, err = decodeStrs(d)
		default:
			err = d.Skip()
		}
		return fieldErr(key, err)
	})
	return in, err
}

// DecodePatch decodes a partial promotion update. Absent and null fields are
// left unchanged.
func DecodePatch(data []byte) (promotion.Patch, error) {
	var p promotion.Patch
	err := decodeObject(data, func(d *jx.Decoder, key string) error {
		if null, err := isNull(d); null || err != nil {
			return fieldErr(key, err)
		}
		var err error
		switch key {
		case "code":
			p.Code, err = strPtr(d)
		case "name":
			p.Name, err = strPtr(d)
		case "image":
			p.Image, err = strPtr(d)
		case "description":
			p.Description, err = strPtr(d)
		case "type":
			var s *string
			if s, err = strPtr(d); s != nil {
				t := promotion.Type(*s)
				p.Type = &t
			}
		case "startDate":
			t, terr := decodeTime(d)
			p.StartDate, err = &t, terr
		case "endDate":
			t, terr := decodeTime(d)
			p.EndDate, err = &t, terr
		case "discount":
			p.Discount, err = decodeOptDecimal(d)
		case "discountType":
			var s *string
			if s, err = strPtr(d); s != nil {
				t := promotion.DiscountType(*s)
				p.DiscountType = &t
			}
		case "maxDiscount":
			p.MaxDiscount, err = decodeOptDecimal(d)
		case "usageLimit":
			p.UsageLimit, err = decodeOptInt(d)
		case "usageLimitPerUser":
			p.UsageLimitPerUser, err = decodeOptInt(d)
		case "minPurchase":
			p.MinPurchase, err = decodeOptDecimal(d)
		case "isActive":
			p.IsActive, err = decodeOptBool(d)
		case "conditions":
			conds, cerr := decodeConditionInputs(d)
			p.Conditions, err = &conds, cerr
		case "productIds":
			ids, ierr := decodeStrs(d)
			p.ProductIDs, err = &ids, ierr
		case "categoryIds":
			ids, ierr := decodeStrs(d)
			p.CategoryIDs, err = &ids, ierr
		default:
			err = d.Skip()
		}
		return fieldErr(key, err)
	})
	return p, err
}

func decodeConditionInputs(d *jx.Decoder) ([]promotion.ConditionInput, error) {
	if null, err := isNull(d); null || err != nil {
		return nil, err
	}
	out := []promotion.ConditionInput{}
	err := d.Arr(func(d *jx.Decoder) error {
		var c promotion.ConditionInput
		err := d.Obj(func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "type":
				var s string
				s, err = d.Str()
				c.Type = promotion.ConditionType(strings.TrimSpace(s))
			case "value":
				c.Value, err = decodeOptStr(d)
			case "payload":
				c.Payload, err = decodeRawJSON(d)
			case "isActive":
				c.IsActive, err = decodeOptBool(d)
			default:
				err = d.Skip()
			}
			return err
		})
		if err != nil {
			return err
		}
		out = append(out, c)
		return nil
	})
	return out, err
}

func decodeOptBool(d *jx.Decoder) (*bool, error) {
	if null, err := isNull(d); null || err != nil {
		return nil, err
	}
	v, err := d.Bool()
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func strPtr(d *jx.Decoder) (*string, error) {
	s, err := d.Str()
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// EncodeListResult writes a page of promotions with its pagination meta.
func EncodeListResult(e *jx.Encoder, res *promotion.ListResult) {
	e.ObjStart()
	e.Field("data", func(e *jx.Encoder) {
		e.ArrStart()
		for i := range res.Items {
			EncodePromotion(e, &res.Items[i])
		}
		e.ArrEnd()
	})
	e.Field("meta", func(e *jx.Encoder) {
		e.ObjStart()
		e.Field("total", func(e *jx.Encoder) { e.Int(res.Meta.Total) })
		e.Field("page", func(e *jx.Encoder) { e.Int(res.Meta.Page) })
		e.Field("limit", func(e *jx.Encoder) { e.Int(res.Meta.Limit) })
		e.Field("totalPages", func(e *jx.Encoder) { e.Int(res.Meta.TotalPages) })
		e.ObjEnd()
	})
	e.ObjEnd()
}
