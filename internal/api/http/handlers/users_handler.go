package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Armin-FalDiS/availability-bot/internal/auth"
	"github.com/Armin-FalDiS/availability-bot/internal/service"
	"github.com/Armin-FalDiS/availability-bot/pkg/util"
)

// UsersHandler exposes the caller's directory record.
type UsersHandler struct {
	users *service.UserService
}

// NewUsersHandler constructs handler.
func NewUsersHandler(users *service.UserService) *UsersHandler {
	return &UsersHandler{users: users}
}

// Me handles GET /api/user: resolve the authenticated identity to its
// directory record, creating it on first contact.
func (h *UsersHandler) Me(c *fiber.Ctx) error {
	ident, ok := auth.IdentityFromContext(c)
	if !ok {
		return util.NewUnauthorized("missing identity")
	}

	user, err := h.users.GetOrCreate(c.UserContext(), ident)
	if err != nil {
		return err
	}
	return c.JSON(user)
}
