package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Armin-FalDiS/availability-bot/internal/domain"
	"github.com/Armin-FalDiS/availability-bot/internal/repository"
	"github.com/Armin-FalDiS/availability-bot/pkg/util"
)

// RangeCache caches range query results. Implementations must treat every
// failure as a miss; the cache is an optimization, never a dependency.
type RangeCache interface {
	Get(ctx context.Context, startDate, endDate string) ([]domain.AvailabilityEntry, bool)
	Set(ctx context.Context, startDate, endDate string, entries []domain.AvailabilityEntry)
	Invalidate(ctx context.Context)
}

// AvailabilityService owns the slot state machine.
//
// The central rule lives here: red is never stored, it is the absence of a
// row. Writing red translates to a keyed delete and a read miss means red
// by convention.
type AvailabilityService struct {
	users  repository.UserRepository
	slots  repository.AvailabilityRepository
	cache  RangeCache
	logger *zap.Logger
}

// NewAvailabilityService builds the service. cache may be nil.
func NewAvailabilityService(users repository.UserRepository, slots repository.AvailabilityRepository, cache RangeCache, logger *zap.Logger) *AvailabilityService {
	return &AvailabilityService{users: users, slots: slots, cache: cache, logger: logger}
}

// Range returns all stored slots in the inclusive date range, joined with
// display names, ordered by date, hour, display name.
func (s *AvailabilityService) Range(ctx context.Context, startDate, endDate string) ([]domain.AvailabilityEntry, error) {
	details := make(map[string]any)
	if !domain.ValidDate(startDate) {
		details["startDate"] = "must be a valid YYYY-MM-DD calendar date"
	}
	if !domain.ValidDate(endDate) {
		details["endDate"] = "must be a valid YYYY-MM-DD calendar date"
	}
	if len(details) > 0 {
		return nil, util.NewValidationError("invalid date range", details)
	}

	if s.cache != nil {
		if entries, ok := s.cache.Get(ctx, startDate, endDate); ok {
			return entries, nil
		}
	}

	entries, err := s.slots.Range(ctx, startDate, endDate)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.Set(ctx, startDate, endDate, entries)
	}
	return entries, nil
}

// Save applies one slot for the caller. Red deletes the row at the key
// (idempotently) and returns nil; green and yellow upsert and return the
// stored row. The caller's directory record is created or refreshed first.
func (s *AvailabilityService) Save(ctx context.Context, ident domain.Identity, slot domain.SlotInput) (*domain.AvailabilitySlot, error) {
	if errs := slot.Validate(); errs != nil {
		return nil, util.NewValidationError("invalid slot", toDetails(errs))
	}

	if _, err := s.users.GetOrCreate(ctx, ident.ID, ident.DisplayName); err != nil {
		return nil, err
	}

	if slot.Status == domain.StatusRed {
		if err := s.slots.Delete(ctx, ident.ID, slot.Date, slot.Hour); err != nil {
			return nil, err
		}
		s.invalidate(ctx)
		return nil, nil
	}

	saved, err := s.slots.Upsert(ctx, ident.ID, slot)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return saved, nil
}

// SaveBatch applies many slots for the caller in one call: every slot is
// validated before any row is touched, red slots become deletes applied
// first, the rest upsert in input order inside one transaction. The
// returned sequence holds only the materialized rows, in upsert order.
func (s *AvailabilityService) SaveBatch(ctx context.Context, ident domain.Identity, slots []domain.SlotInput) ([]domain.AvailabilitySlot, error) {
	if len(slots) == 0 {
		return nil, util.NewValidationError("slots array is required and must not be empty", nil)
	}
	for i, slot := range slots {
		if errs := slot.Validate(); errs != nil {
			details := make(map[string]any, len(errs))
			for field, msg := range errs {
				details[fmt.Sprintf("slots[%d].%s", i, field)] = msg
			}
			return nil, util.NewValidationError("invalid slot", details)
		}
	}

	if _, err := s.users.GetOrCreate(ctx, ident.ID, ident.DisplayName); err != nil {
		return nil, err
	}

	deletes := make([]domain.SlotInput, 0)
	upserts := make([]domain.SlotInput, 0, len(slots))
	for _, slot := range slots {
		if slot.Status == domain.StatusRed {
			deletes = append(deletes, slot)
		} else {
			upserts = append(upserts, slot)
		}
	}

	saved, err := s.slots.BatchApply(ctx, ident.ID, deletes, upserts)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx)

	s.logger.Debug("batch saved",
		zap.Int64("user_id", ident.ID),
		zap.Int("deleted", len(deletes)),
		zap.Int("saved", len(saved)),
	)
	return saved, nil
}

func (s *AvailabilityService) invalidate(ctx context.Context) {
	if s.cache != nil {
		s.cache.Invalidate(ctx)
	}
}

func toDetails(errs map[string]string) map[string]any {
	details := make(map[string]any, len(errs))
	for field, msg := range errs {
		details[field] = msg
	}
	return details
}
