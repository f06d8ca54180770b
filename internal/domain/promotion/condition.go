package promotion

import (
	"bytes"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// Condition is a compiled eligibility rule. The set of implementations is
// closed; Evaluator rejects anything it does not know.
type Condition interface {
	Kind() ConditionType
	isCondition()
}

// FirstTimePurchase holds for anonymous users and users without orders.
type FirstTimePurchase struct{}

// SpecificProducts holds when the cart contains any of the listed products.
// An empty set holds unconditionally.
type SpecificProducts struct {
	ProductIDs map[string]struct{}
}

// SpecificCategories holds when any cart product belongs to one of the
// listed categories. An empty set holds unconditionally.
type SpecificCategories struct {
	CategoryIDs map[string]struct{}
}

// QuantityThreshold holds when the summed quantity reaches Min.
type QuantityThreshold struct {
	Min int
}

// TotalItems holds when the number of distinct line items reaches Min.
type TotalItems struct {
	Min int
}

// UserRole holds when the user has Role.
type UserRole struct {
	Role string
}

// TimeOfDay holds when the UTC clock is within [Start, End). Both are
// minutes since midnight; Start > End wraps past midnight and Start == End
// covers the whole day.
type TimeOfDay struct {
	Start int
	End   int
}

// DayOfWeek holds on the listed UTC weekdays.
type DayOfWeek struct {
	Days [7]bool
}

// Unconstrained is a condition row without a payload. It always holds.
type Unconstrained struct {
	Type ConditionType
}

// Malformed is a condition row that could not be compiled. It never holds.
type Malformed struct {
	Type ConditionType
	Err  error
}

func (FirstTimePurchase) Kind() ConditionType  { return ConditionFirstTimePurchase }
func (SpecificProducts) Kind() ConditionType   { return ConditionSpecificProducts }
func (SpecificCategories) Kind() ConditionType { return ConditionSpecificCategories }
func (QuantityThreshold) Kind() ConditionType  { return ConditionQuantityThreshold }
func (TotalItems) Kind() ConditionType         { return ConditionTotalItems }
func (UserRole) Kind() ConditionType           { return ConditionUserRole }
func (TimeOfDay) Kind() ConditionType          { return ConditionTimeOfDay }
func (DayOfWeek) Kind() ConditionType          { return ConditionDayOfWeek }
func (c Unconstrained) Kind() ConditionType    { return c.Type }
func (c Malformed) Kind() ConditionType        { return c.Type }

func (FirstTimePurchase) isCondition()  {}
func (SpecificProducts) isCondition()   {}
func (SpecificCategories) isCondition() {}
func (QuantityThreshold) isCondition()  {}
func (TotalItems) isCondition()         {}
func (UserRole) isCondition()           {}
func (TimeOfDay) isCondition()          {}
func (DayOfWeek) isCondition()          {}
func (Unconstrained) isCondition()      {}
func (Malformed) isCondition()          {}

// Compile turns the active condition rows of p into evaluable conditions.
// Product and category conditions without a payload take their ids from the
// promotion's link rows, and hold when there are none. A payload that names
// no ids matches no cart.
func Compile(p *Promotion) []Condition {
	out := make([]Condition, 0, len(p.Conditions))
	for _, rec := range p.Conditions {
		if !rec.IsActive {
			continue
		}
		c, err := compileRecord(rec, p)
		if err != nil {
			out = append(out, Malformed{Type: rec.Type, Err: err})
			continue
		}
		out = append(out, c)
	}
	return out
}

func compileRecord(rec ConditionRecord, p *Promotion) (Condition, error) {
	payload := bytes.TrimSpace(rec.Payload)
	if bytes.Equal(payload, []byte("null")) {
		payload = nil
	}
	value := strings.TrimSpace(rec.Value)

	switch rec.Type {
	case ConditionFirstTimePurchase:
		return FirstTimePurchase{}, nil
	case ConditionSpecificProducts:
		if payload == nil {
			if len(p.ProductIDs) == 0 {
				return Unconstrained{Type: rec.Type}, nil
			}
			return SpecificProducts{ProductIDs: toSet(p.ProductIDs)}, nil
		}
		ids, err := decodeIDList(payload, "productIds")
		if err != nil {
			return nil, err
		}
		return SpecificProducts{ProductIDs: toSet(ids)}, nil
	case ConditionSpecificCategories:
		if payload == nil {
			if len(p.CategoryIDs) == 0 {
				return Unconstrained{Type: rec.Type}, nil
			}
			return SpecificCategories{CategoryIDs: toSet(p.CategoryIDs)}, nil
		}
		ids, err := decodeIDList(payload, "categoryIds")
		if err != nil {
			return nil, err
		}
		return SpecificCategories{CategoryIDs: toSet(ids)}, nil
	case ConditionQuantityThreshold, ConditionTotalItems:
		if value == "" {
			return Unconstrained{Type: rec.Type}, nil
		}
		n, err := strconv.Atoi(value)
		if err != nil {
			return nil, errors.Wrapf(err, "parse %s threshold", rec.Type)
		}
		if n < 0 {
			return nil, errors.Errorf("negative %s threshold %d", rec.Type, n)
		}
		if rec.Type == ConditionTotalItems {
			return TotalItems{Min: n}, nil
		}
		return QuantityThreshold{Min: n}, nil
	case ConditionUserRole:
		if value == "" {
			return Unconstrained{Type: rec.Type}, nil
		}
		return UserRole{Role: value}, nil
	case ConditionTimeOfDay:
		switch {
		case payload != nil:
			return decodeTimeOfDay(payload)
		case value != "":
			start, end, ok := strings.Cut(value, "-")
			if !ok {
				return nil, errors.Errorf("time window %q: want HH:MM-HH:MM", value)
			}
			return newTimeOfDay(start, end)
		default:
			return Unconstrained{Type: rec.Type}, nil
		}
	case ConditionDayOfWeek:
		switch {
		case payload != nil:
			return decodeDayOfWeek(payload)
		case value != "":
			return newDayOfWeek(strings.Split(value, ","))
		default:
			return Unconstrained{Type: rec.Type}, nil
		}
	default:
		return nil, errors.Errorf("unknown condition type %q", rec.Type)
	}
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// decodeIDList reads {"<field>": ["id", ...]}. Unknown keys are ignored.
func decodeIDList(payload []byte, field string) ([]string, error) {
	var ids []string
	d := jx.DecodeBytes(payload)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		if key != field {
			return d.Skip()
		}
		return d.Arr(func(d *jx.Decoder) error {
			id, err := d.Str()
			if err != nil {
				return err
			}
			ids = append(ids, id)
			return nil
		})
	}); err != nil {
		return nil, errors.Wrapf(err, "decode %s", field)
	}
	return ids, nil
}

func decodeTimeOfDay(payload []byte) (Condition, error) {
	var start, end string
	d := jx.DecodeBytes(payload)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "start":
			start, err = d.Str()
		case "end":
			end, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	}); err != nil {
		return nil, errors.Wrap(err, "decode time window")
	}
	return newTimeOfDay(start, end)
}

func newTimeOfDay(start, end string) (Condition, error) {
	s, err := parseClock(start)
	if err != nil {
		return nil, err
	}
	e, err := parseClock(end)
	if err != nil {
		return nil, err
	}
	return TimeOfDay{Start: s, End: e}, nil
}

func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, errors.Wrapf(err, "parse clock %q", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

func decodeDayOfWeek(payload []byte) (Condition, error) {
	var days []string
	d := jx.DecodeBytes(payload)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		if key != "days" {
			return d.Skip()
		}
		return d.Arr(func(d *jx.Decoder) error {
			s, err := d.Str()
			if err != nil {
				return err
			}
			days = append(days, s)
			return nil
		})
	}); err != nil {
		return nil, errors.Wrap(err, "decode days")
	}
	return newDayOfWeek(days)
}

var weekdays = map[string]time.Weekday{
	"sun": time.Sunday, "sunday": time.Sunday,
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
}

func newDayOfWeek(names []string) (Condition, error) {
	if len(names) == 0 {
		return Unconstrained{Type: ConditionDayOfWeek}, nil
	}
	var c DayOfWeek
	for _, name := range names {
		wd, ok := weekdays[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return nil, errors.Errorf("unknown weekday %q", name)
		}
		c.Days[wd] = true
	}
	return c, nil
}
