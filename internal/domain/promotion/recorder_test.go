package promotion

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_Record(t *testing.T) {
	p := basePromotion("USED")
	usages := &mockUsages{}
	r := NewRecorder(newMockRepo(p), usages)
	r.now = func() time.Time { return fixedNow }

	u, err := r.Record(context.Background(), RecordRequest{
		PromotionID: p.ID,
		UserID:      "u1",
		OrderID:     "o1",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, u.ID)
	assert.Equal(t, p.ID, u.PromotionID)
	assert.Equal(t, "u1", u.UserID)
	assert.Equal(t, "o1", u.OrderID)
	assert.Equal(t, fixedNow, u.UsedAt)
	require.Len(t, usages.created, 1)
	assert.Same(t, u, usages.created[0])
}

func TestRecorder_Errors(t *testing.T) {
	boom := errors.New("disk full")

	tests := []struct {
		name      string
		req       RecordRequest
		usages    *mockUsages
		wantErr   error
		rejection bool
	}{
		{
			name:      "missing promotion",
			req:       RecordRequest{PromotionID: "gone", UserID: "u1"},
			usages:    &mockUsages{},
			wantErr:   ErrPromotionNotFound,
			rejection: true,
		},
		{
			name:      "missing user",
			req:       RecordRequest{PromotionID: "promo-USED"},
			usages:    &mockUsages{},
			wantErr:   ErrInvalidInput,
			rejection: true,
		},
		{
			name:    "store failure",
			req:     RecordRequest{PromotionID: "promo-USED", UserID: "u1"},
			usages:  &mockUsages{err: boom},
			wantErr: boom,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRecorder(newMockRepo(basePromotion("USED")), tt.usages)
			_, err := r.Record(context.Background(), tt.req)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.rejection, IsRejection(err))
			assert.Empty(t, tt.usages.created)
		})
	}
}
