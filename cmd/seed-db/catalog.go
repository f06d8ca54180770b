package main

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-promotions/internal/domain/product"
	"github.com/xenking/kart-promotions/internal/domain/promotion"
	"github.com/xenking/kart-promotions/internal/domain/user"
	"github.com/xenking/kart-promotions/internal/wire"
)

type category struct {
	ID   string
	Name string
}

// seedData is the decoded contents of the seed catalog file.
type seedData struct {
	Categories []category
	Products   []product.Product
	Users      []user.User
	Promotions []promotion.Input
}

func parseSeed(data []byte) (*seedData, error) {
	var s seedData
	d := jx.DecodeBytes(data)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "categories":
			return d.Arr(func(d *jx.Decoder) error {
				var c category
				if err := decodeStrFields(d, map[string]*string{"id": &c.ID, "name": &c.Name}); err != nil {
					return err
				}
				s.Categories = append(s.Categories, c)
				return nil
			})
		case "products":
			return d.Arr(func(d *jx.Decoder) error {
				p, err := decodeProduct(d)
				if err != nil {
					return err
				}
				s.Products = append(s.Products, p)
				return nil
			})
		case "users":
			return d.Arr(func(d *jx.Decoder) error {
				var u user.User
				if err := decodeStrFields(d, map[string]*string{"id": &u.ID, "role": &u.Role}); err != nil {
					return err
				}
				s.Users = append(s.Users, u)
				return nil
			})
		case "promotions":
			return d.Arr(func(d *jx.Decoder) error {
				raw, err := d.Raw()
				if err != nil {
					return err
				}
				in, err := wire.DecodeInput(raw)
				if err != nil {
					return errors.Wrapf(err, "promotion #%d", len(s.Promotions))
				}
				s.Promotions = append(s.Promotions, in)
				return nil
			})
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return nil, errors.Wrap(err, "parse seed catalog")
	}
	return &s, nil
}

func decodeStrFields(d *jx.Decoder, fields map[string]*string) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		dst, ok := fields[key]
		if !ok {
			return d.Skip()
		}
		v, err := d.Str()
		if err != nil {
			return errors.Wrap(err, key)
		}
		*dst = v
		return nil
	})
}

func decodeProduct(d *jx.Decoder) (product.Product, error) {
	var p product.Product
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			p.ID, err = d.Str()
		case "name":
			p.Name, err = d.Str()
		case "categoryId", "category":
			p.CategoryID, err = d.Str()
		case "price":
			var n jx.Num
			if n, err = d.Num(); err != nil {
				return errors.Wrap(err, "price")
			}
			if p.Price, err = decimal.NewFromString(n.String()); err != nil {
				return errors.Wrap(err, "price")
			}
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return p, err
	}
	if p.ID == "" || p.Name == "" {
		return p, errors.New("product requires id and name")
	}
	return p, nil
}
