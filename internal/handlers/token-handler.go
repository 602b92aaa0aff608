package handlers

import (
	"log"
	"strconv"

	"permission_service/internal/service"

	"github.com/gofiber/fiber/v3"
)

// TokenHandler issues admin API tokens. The gateway authenticates the
// caller and forwards their identity in X-User-ID; only allowlisted bot
// operators can mint tokens.
type TokenHandler struct {
	manager    *service.PermissionManager
	jwtService *service.JWTService
}

func NewTokenHandler(manager *service.PermissionManager, jwtService *service.JWTService) *TokenHandler {
	return &TokenHandler{
		manager:    manager,
		jwtService: jwtService,
	}
}

func (h *TokenHandler) RegisterRoutes(app *fiber.App) {
	app.Post("/protected/permission/token", h.IssueToken)
}

type issueTokenRequest struct {
	GuildIDs []int64 `json:"guildIds"`
}

func (h *TokenHandler) IssueToken(c fiber.Ctx) error {
	userID, err := strconv.ParseInt(c.Get("X-User-ID"), 10, 64)
	if err != nil || userID == 0 {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Missing user identity",
		})
	}

	level, ok := h.manager.OperatorLevel(userID)
	if !ok {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "You don't have enough permission",
		})
	}

	var request issueTokenRequest
	if err := c.Bind().Body(&request); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	token, err := h.jwtService.GenerateAdminToken(userID, level, request.GuildIDs)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	log.Printf("Issued admin token for operator %d at level %s", userID, level)

	return c.JSON(fiber.Map{
		"token": token,
		"level": level.String(),
	})
}
