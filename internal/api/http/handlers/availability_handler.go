package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Armin-FalDiS/availability-bot/internal/api/dto"
	"github.com/Armin-FalDiS/availability-bot/internal/auth"
	"github.com/Armin-FalDiS/availability-bot/internal/domain"
	"github.com/Armin-FalDiS/availability-bot/internal/service"
	"github.com/Armin-FalDiS/availability-bot/pkg/util"
)

// AvailabilityHandler exposes the slot endpoints.
type AvailabilityHandler struct {
	availability *service.AvailabilityService
}

// NewAvailabilityHandler constructs handler.
func NewAvailabilityHandler(availability *service.AvailabilityService) *AvailabilityHandler {
	return &AvailabilityHandler{availability: availability}
}

// List handles GET /api/availability?startDate=..&endDate=..
func (h *AvailabilityHandler) List(c *fiber.Ctx) error {
	startDate := c.Query("startDate")
	endDate := c.Query("endDate")
	if startDate == "" || endDate == "" {
		return util.NewValidationError("startDate and endDate query parameters are required", nil)
	}

	entries, err := h.availability.Range(c.UserContext(), startDate, endDate)
	if err != nil {
		return err
	}
	return c.JSON(entries)
}

// Save handles POST /api/availability with a single slot.
func (h *AvailabilityHandler) Save(c *fiber.Ctx) error {
	ident, ok := auth.IdentityFromContext(c)
	if !ok {
		return util.NewUnauthorized("missing identity")
	}

	var req dto.SaveSlotRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}
	if req.Date == "" || req.Hour == nil || req.Status == "" {
		return util.NewValidationError("date, hour, and status are required", nil)
	}

	slot := domain.SlotInput{Date: req.Date, Hour: *req.Hour, Status: domain.SlotStatus(req.Status)}
	saved, err := h.availability.Save(c.UserContext(), ident, slot)
	if err != nil {
		return err
	}

	// Red saved as a delete: acknowledge with an explicit marker since
	// there is no stored row to return.
	if saved == nil {
		return c.JSON(dto.DeletedSlotResponse{
			UserID:  ident.ID,
			Date:    slot.Date,
			Hour:    slot.Hour,
			Status:  string(domain.StatusRed),
			Deleted: true,
		})
	}
	return c.JSON(saved)
}

// SaveBatch handles POST /api/availability/batch.
func (h *AvailabilityHandler) SaveBatch(c *fiber.Ctx) error {
	ident, ok := auth.IdentityFromContext(c)
	if !ok {
		return util.NewUnauthorized("missing identity")
	}

	var req dto.BatchSaveRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}
	if len(req.Slots) == 0 {
		return util.NewValidationError("slots array is required and must not be empty", nil)
	}

	slots := make([]domain.SlotInput, 0, len(req.Slots))
	for _, s := range req.Slots {
		if s.Date == "" || s.Hour == nil || s.Status == "" {
			return util.NewValidationError("each slot must have date, hour, and status", nil)
		}
		slots = append(slots, domain.SlotInput{Date: s.Date, Hour: *s.Hour, Status: domain.SlotStatus(s.Status)})
	}

	saved, err := h.availability.SaveBatch(c.UserContext(), ident, slots)
	if err != nil {
		return err
	}
	if saved == nil {
		saved = []domain.AvailabilitySlot{}
	}
	return c.JSON(saved)
}
