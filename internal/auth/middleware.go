package auth

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/Armin-FalDiS/availability-bot/internal/config"
	"github.com/Armin-FalDiS/availability-bot/internal/domain"
	"github.com/Armin-FalDiS/availability-bot/internal/observability"
	"github.com/Armin-FalDiS/availability-bot/pkg/util"
)

const identityKey = "auth_identity"

// Middleware verifies the init-data header, extracts the caller identity
// and applies the allow-list. On success the identity is stored in request
// locals for handlers.
type Middleware struct {
	secret  string
	devMode bool
	allow   *Allowlist
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewMiddleware constructs middleware from startup configuration.
func NewMiddleware(cfg config.AuthConfig, allow *Allowlist, logger *zap.Logger, metrics *observability.Metrics) *Middleware {
	return &Middleware{
		secret:  cfg.BotToken,
		devMode: cfg.DevMode,
		allow:   allow,
		logger:  logger,
		metrics: metrics,
	}
}

// Handle enforces authentication for protected routes.
//
// Denied allow-list checks answer with a bare 404 so a probing caller
// cannot tell a denied id from a route that does not exist.
func (m *Middleware) Handle(c *fiber.Ctx) error {
	raw := c.Get(HeaderInitData)

	if m.devMode && raw == "" {
		ident := PlaceholderIdentity()
		c.Locals(identityKey, ident)
		return c.Next()
	}

	if raw == "" {
		m.metrics.RecordAuthAttempt("rejected")
		return util.NewUnauthorized("missing init data")
	}

	if !m.devMode && !VerifyInitData(raw, m.secret) {
		m.metrics.RecordAuthAttempt("rejected")
		return util.NewUnauthorized("invalid init data")
	}

	ident, err := ExtractIdentity(raw)
	if err != nil {
		m.metrics.RecordAuthAttempt("rejected")
		return util.NewValidationError("invalid user data", nil)
	}

	if !m.allow.Allowed(ident.ID) {
		m.metrics.RecordAuthAttempt("denied")
		m.logger.Warn("user not allow-listed",
			zap.Int64("user_id", ident.ID),
			zap.String("path", c.Path()),
		)
		return util.NewSilentNotFound()
	}

	m.metrics.RecordAuthAttempt("accepted")
	c.Locals(identityKey, *ident)
	return c.Next()
}

// IdentityFromContext retrieves the authenticated caller.
func IdentityFromContext(c *fiber.Ctx) (domain.Identity, bool) {
	ident, ok := c.Locals(identityKey).(domain.Identity)
	return ident, ok
}
