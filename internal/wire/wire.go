// Package wire holds the JSON codecs for domain types, shared by the HTTP
// handlers and the promotion cache.
package wire

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

// FieldError reports a request field that could not be decoded.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return "invalid field " + e.Field + ": " + e.Err.Error()
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

func fieldErr(field string, err error) error {
	if err == nil {
		return nil
	}
	var fe *FieldError
	if errors.As(err, &fe) {
		return err
	}
	return &FieldError{Field: field, Err: err}
}

// money writes v as a JSON number with two decimal places.
func money(e *jx.Encoder, v decimal.Decimal) {
	e.RawStr(v.StringFixed(2))
}

func optMoney(e *jx.Encoder, field string, v *decimal.Decimal) {
	e.FieldStart(field)
	if v == nil {
		e.Null()
		return
	}
	money(e, *v)
}

func optInt(e *jx.Encoder, field string, v *int) {
	e.FieldStart(field)
	if v == nil {
		e.Null()
		return
	}
	e.Int(*v)
}

func timestamp(e *jx.Encoder, t time.Time) {
	e.Str(t.UTC().Format(time.RFC3339Nano))
}

func strs(e *jx.Encoder, v []string) {
	e.ArrStart()
	for _, s := range v {
		e.Str(s)
	}
	e.ArrEnd()
}

// isNull consumes a JSON null and reports whether one was present.
func isNull(d *jx.Decoder) (bool, error) {
	if d.Next() != jx.Null {
		return false, nil
	}
	return true, d.Null()
}

// decodeDecimal accepts both JSON numbers and numeric strings.
func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	var raw string
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Decimal{}, err
		}
		raw = s
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Decimal{}, err
		}
		raw = n.String()
	default:
		return decimal.Decimal{}, errors.Errorf("expected number, got %s", d.Next())
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, errors.Wrap(err, "parse decimal")
	}
	return v, nil
}

func decodeOptDecimal(d *jx.Decoder) (*decimal.Decimal, error) {
	if null, err := isNull(d); null || err != nil {
		return nil, err
	}
	v, err := decodeDecimal(d)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func decodeOptInt(d *jx.Decoder) (*int, error) {
	if null, err := isNull(d); null || err != nil {
		return nil, err
	}
	v, err := d.Int()
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func decodeOptStr(d *jx.Decoder) (string, error) {
	if null, err := isNull(d); null || err != nil {
		return "", err
	}
	return d.Str()
}

func decodeTime(d *jx.Decoder) (time.Time, error) {
	s, err := d.Str()
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, errors.Wrap(err, "parse time")
	}
	return t.UTC(), nil
}

func decodeStrs(d *jx.Decoder) ([]string, error) {
	if null, err := isNull(d); null || err != nil {
		return nil, err
	}
	out := []string{}
	err := d.Arr(func(d *jx.Decoder) error {
		s, err := d.Str()
		if err != nil {
			return err
		}
		out = append(out, s)
		return nil
	})
	return out, err
}

// decodeRawJSON returns a copy of the next value, or nil for null.
func decodeRawJSON(d *jx.Decoder) ([]byte, error) {
	if null, err := isNull(d); null || err != nil {
		return nil, err
	}
	raw, err := d.Raw()
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), raw...), nil
}

// decodeObject decodes a top-level object, failing on trailing data. Errors
// are always *FieldError; syntax errors outside a field report "body".
func decodeObject(data []byte, fn func(d *jx.Decoder, key string) error) error {
	d := jx.DecodeBytes(data)
	if err := d.Obj(fn); err != nil {
		return fieldErr("body", err)
	}
	if d.Next() != jx.Invalid {
		return fieldErr("body", errors.New("unexpected data after object"))
	}
	return nil
}
