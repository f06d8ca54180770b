package promotion

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/xenking/kart-promotions/internal/domain/product"
	"github.com/xenking/kart-promotions/internal/domain/user"
)

type mockRepo struct {
	byCode    map[string]*Promotion
	byID      map[string]*Promotion
	findErr   error
	createErr error
	updateErr error

	created      *Promotion
	updated      *Promotion
	replaced     Replace
	deleted      string
	listFilter   ListFilter
	listItems    []Promotion
	listTotal    int
	findCalls    int
	getByIDCalls int
}

func newMockRepo(promos ...*Promotion) *mockRepo {
	m := &mockRepo{
		byCode: make(map[string]*Promotion),
		byID:   make(map[string]*Promotion),
	}
	for _, p := range promos {
		m.byCode[p.Code] = p
		m.byID[p.ID] = p
	}
	return m
}

func (m *mockRepo) FindActiveByCode(_ context.Context, code string) (*Promotion, error) {
	m.findCalls++
	if m.findErr != nil {
		return nil, m.findErr
	}
	p, ok := m.byCode[code]
	if !ok || !p.IsActive {
		return nil, ErrInvalidCode
	}
	return p, nil
}

func (m *mockRepo) GetByID(_ context.Context, id string) (*Promotion, error) {
	m.getByIDCalls++
	p, ok := m.byID[id]
	if !ok {
		return nil, ErrPromotionNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockRepo) List(_ context.Context, f ListFilter) ([]Promotion, int, error) {
	m.listFilter = f
	return m.listItems, m.listTotal, nil
}

func (m *mockRepo) Create(_ context.Context, p *Promotion) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.created = p
	m.byID[p.ID] = p
	m.byCode[p.Code] = p
	return nil
}

func (m *mockRepo) Update(_ context.Context, p *Promotion, replace Replace) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	m.updated = p
	m.replaced = replace
	m.byID[p.ID] = p
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id string) error {
	m.deleted = id
	delete(m.byID, id)
	return nil
}

type mockUsages struct {
	total   map[string]int
	perUser map[string]int
	err     error
	created []*Usage
}

func (m *mockUsages) Count(_ context.Context, promotionID string) (int, error) {
	if m.err != nil {
		return 0, m.err
	}
	return m.total[promotionID], nil
}

func (m *mockUsages) CountByUser(_ context.Context, promotionID, userID string) (int, error) {
	if m.err != nil {
		return 0, m.err
	}
	return m.perUser[promotionID+"/"+userID], nil
}

func (m *mockUsages) Create(_ context.Context, u *Usage) error {
	if m.err != nil {
		return m.err
	}
	m.created = append(m.created, u)
	return nil
}

type mockOrders struct {
	counts map[string]int
	err    error
}

func (m *mockOrders) CountByUser(_ context.Context, userID string) (int, error) {
	return m.counts[userID], m.err
}

type mockProducts struct {
	byID  map[string]product.Product
	err   error
	calls int
}

func (m *mockProducts) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	var out []product.Product
	for _, id := range ids {
		if p, ok := m.byID[id]; ok {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type mockUsers struct {
	byID map[string]*user.User
	err  error
}

func (m *mockUsers) GetByID(_ context.Context, id string) (*user.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	u, ok := m.byID[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	return u, nil
}

type mockInvalidator struct {
	codes []string
	err   error
}

func (m *mockInvalidator) Invalidate(_ context.Context, codes ...string) error {
	m.codes = append(m.codes, codes...)
	return m.err
}

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func dp(v string) *decimal.Decimal {
	x := d(v)
	return &x
}

func ip(v int) *int {
	return &v
}

func newEvaluator() (*Evaluator, *mockOrders, *mockProducts, *mockUsers) {
	orders := &mockOrders{counts: map[string]int{}}
	products := &mockProducts{byID: map[string]product.Product{}}
	users := &mockUsers{byID: map[string]*user.User{}}
	return NewEvaluator(orders, products, users), orders, products, users
}
