package promotion

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

// RecordRequest identifies a consumed promotion. OrderID is optional.
type RecordRequest struct {
	PromotionID string
	UserID      string
	OrderID     string
}

// Recorder appends usage rows. It does not re-check eligibility.
type Recorder struct {
	repo   Repository
	usages UsageRepository
	now    func() time.Time
}

// NewRecorder creates a Recorder.
func NewRecorder(repo Repository, usages UsageRepository) *Recorder {
	return &Recorder{repo: repo, usages: usages, now: time.Now}
}

// Record verifies that the promotion still exists and appends a usage row.
func (r *Recorder) Record(ctx context.Context, req RecordRequest) (*Usage, error) {
	if req.PromotionID == "" {
		return nil, invalidInput("Promotion ID is required")
	}
	if req.UserID == "" {
		return nil, invalidInput("User ID is required")
	}

	if _, err := r.repo.GetByID(ctx, req.PromotionID); err != nil {
		if errors.Is(err, ErrPromotionNotFound) {
			return nil, reject(ErrPromotionNotFound, "Promotion not found")
		}
		return nil, errors.Wrap(err, "get promotion")
	}

	u := &Usage{
		ID:          uuid.New().String(),
		PromotionID: req.PromotionID,
		UserID:      req.UserID,
		OrderID:     req.OrderID,
		UsedAt:      r.now().UTC(),
	}
	if err := r.usages.Create(ctx, u); err != nil {
		if errors.Is(err, ErrPromotionNotFound) {
			return nil, reject(ErrPromotionNotFound, "Promotion not found")
		}
		return nil, errors.Wrap(err, "create usage")
	}
	return u, nil
}
