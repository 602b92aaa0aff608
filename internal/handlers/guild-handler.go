package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"log"
	"strconv"
	"strings"
	"time"

	"permission_service/internal/config"
	"permission_service/internal/models"
	"permission_service/internal/repository"
	"permission_service/internal/service"

	"github.com/gofiber/fiber/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Counter for guild configuration mutations
	guildMutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "permission_guild_mutations_total",
			Help: "Total number of guild configuration mutations",
		},
		[]string{"action"},
	)

	// Counter for reset confirmations by outcome
	resetOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "permission_reset_outcomes_total",
			Help: "Reset confirmation flow outcomes",
		},
		[]string{"outcome"}, // armed/confirmed/expired
	)
)

// GuildAdminHandler is the operator surface for per-guild permission
// configuration. Every route requires an admin token covering the guild.
type GuildAdminHandler struct {
	manager    *service.PermissionManager
	jwtService *service.JWTService
}

func NewGuildAdminHandler(manager *service.PermissionManager, jwtService *service.JWTService) *GuildAdminHandler {
	return &GuildAdminHandler{
		manager:    manager,
		jwtService: jwtService,
	}
}

func (h *GuildAdminHandler) RegisterRoutes(app *fiber.App) {
	group := app.Group("/protected/permission/guilds/:guildId")

	group.Get("/config", h.GetConfig)
	group.Post("/auto-configure", h.AutoConfigure)
	group.Put("/roles/:roleId/level", h.SetRoleLevel)
	group.Put("/roles/:roleId/type", h.SetRoleType)
	group.Put("/nodes/:node", h.SetNodeRequirement)
	group.Post("/reset", h.Reset)
	group.Get("/audit", h.Audit)
	group.Get("/overrides", h.ListOverrides)
	group.Post("/overrides", h.AddOverride)
	group.Delete("/overrides", h.RemoveOverride)
}

// authorize validates the bearer token and checks it covers the guild at
// ADMIN or above. Returns the claims, or nil after writing the response.
func (h *GuildAdminHandler) authorize(c fiber.Ctx, guildID int64) *models.AdminClaims {
	header := c.Get("Authorization")
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found || token == "" {
		c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Missing bearer token",
		})
		return nil
	}

	claims, err := h.jwtService.ValidateAdminToken(token)
	if err != nil {
		log.Printf("Rejected admin token: %v", err)
		c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid token",
		})
		return nil
	}

	if claims.Level < models.LevelAdmin || !claims.AllowsGuild(guildID) {
		c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "You don't have enough permission",
		})
		return nil
	}
	return claims
}

func guildParam(c fiber.Ctx) (int64, bool) {
	guildID, err := strconv.ParseInt(c.Params("guildId"), 10, 64)
	if err != nil || guildID == 0 {
		c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid guild id",
		})
		return 0, false
	}
	return guildID, true
}

// overrideGuildParam is guildParam for the override routes, where guild 0 is
// valid and addresses the global override bucket. Authorization still runs
// against guild 0, so only tokens without a guild binding reach it.
func overrideGuildParam(c fiber.Ctx) (int64, bool) {
	guildID, err := strconv.ParseInt(c.Params("guildId"), 10, 64)
	if err != nil || guildID < 0 {
		c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid guild id",
		})
		return 0, false
	}
	return guildID, true
}

func (h *GuildAdminHandler) GetConfig(c fiber.Ctx) error {
	guildID, ok := guildParam(c)
	if !ok {
		return nil
	}
	if h.authorize(c, guildID) == nil {
		return nil
	}

	return c.JSON(h.manager.GuildConfig(c.Context(), guildID))
}

type autoConfigureRequest struct {
	Guild *models.GuildSnapshot `json:"guild"`
}

func (h *GuildAdminHandler) AutoConfigure(c fiber.Ctx) error {
	guildID, ok := guildParam(c)
	if !ok {
		return nil
	}
	claims := h.authorize(c, guildID)
	if claims == nil {
		return nil
	}

	var request autoConfigureRequest
	if err := c.Bind().Body(&request); err != nil || request.Guild == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "guild snapshot is required",
		})
	}
	if request.Guild.ID != guildID {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "guild snapshot does not match route",
		})
	}

	analysis, err := h.manager.AutoConfigureGuild(c.Context(), request.Guild, claims.ActorID)
	if err != nil {
		return c.Status(validationStatus(err)).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	guildMutations.WithLabelValues("auto-configure").Inc()

	uncertain := make([]fiber.Map, 0, len(analysis.UncertainRoles))
	for _, role := range analysis.UncertainRoles {
		uncertain = append(uncertain, fiber.Map{"id": role.ID, "name": role.Name})
	}

	return c.JSON(fiber.Map{
		"mappings":        analysis.ConfidentMappings,
		"classifications": analysis.RoleClassifications,
		"uncertainRoles":  uncertain,
	})
}

type setLevelRequest struct {
	Level  string `json:"level"`
	Reason string `json:"reason"`
}

func (h *GuildAdminHandler) SetRoleLevel(c fiber.Ctx) error {
	guildID, ok := guildParam(c)
	if !ok {
		return nil
	}
	claims := h.authorize(c, guildID)
	if claims == nil {
		return nil
	}

	roleID, err := strconv.ParseInt(c.Params("roleId"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid role id",
		})
	}

	var request setLevelRequest
	if err := c.Bind().Body(&request); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	level, err := models.ParsePermissionLevel(request.Level)
	if err != nil {
		return c.Status(validationStatus(err)).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	if err := h.manager.SetRolePermissionLevel(c.Context(), guildID, roleID, level, claims.ActorID, request.Reason); err != nil {
		return c.Status(validationStatus(err)).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	guildMutations.WithLabelValues("role-level").Inc()

	return c.JSON(fiber.Map{
		"roleId": roleID,
		"level":  level.String(),
	})
}

type setTypeRequest struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

func (h *GuildAdminHandler) SetRoleType(c fiber.Ctx) error {
	guildID, ok := guildParam(c)
	if !ok {
		return nil
	}
	claims := h.authorize(c, guildID)
	if claims == nil {
		return nil
	}

	roleID, err := strconv.ParseInt(c.Params("roleId"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid role id",
		})
	}

	var request setTypeRequest
	if err := c.Bind().Body(&request); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	roleType, err := models.ParseRoleType(request.Type)
	if err != nil {
		return c.Status(validationStatus(err)).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	if err := h.manager.SetRoleClassification(c.Context(), guildID, roleID, roleType, claims.ActorID, request.Reason); err != nil {
		return c.Status(validationStatus(err)).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	guildMutations.WithLabelValues("role-type").Inc()

	return c.JSON(fiber.Map{
		"roleId": roleID,
		"type":   string(roleType),
	})
}

func (h *GuildAdminHandler) SetNodeRequirement(c fiber.Ctx) error {
	guildID, ok := guildParam(c)
	if !ok {
		return nil
	}
	claims := h.authorize(c, guildID)
	if claims == nil {
		return nil
	}

	var request setLevelRequest
	if err := c.Bind().Body(&request); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	level, err := models.ParsePermissionLevel(request.Level)
	if err != nil {
		return c.Status(validationStatus(err)).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	node := c.Params("node")
	if err := h.manager.SetCommandRequirement(c.Context(), guildID, node, level, claims.ActorID); err != nil {
		return c.Status(validationStatus(err)).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	guildMutations.WithLabelValues("node-requirement").Inc()

	return c.JSON(fiber.Map{
		"node":  node,
		"level": level.String(),
	})
}

type resetRequest struct {
	Token string `json:"token"`
}

// Reset is confirmation-gated: the first call arms a short-lived token, and
// only a second call presenting that token within the window executes the
// wipe. A lapsed window degenerates to re-arming, never a partial reset.
func (h *GuildAdminHandler) Reset(c fiber.Ctx) error {
	guildID, ok := guildParam(c)
	if !ok {
		return nil
	}
	claims := h.authorize(c, guildID)
	if claims == nil {
		return nil
	}

	var request resetRequest
	if err := c.Bind().Body(&request); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	redisRepo := repository.RedisRepository
	window := time.Duration(config.ServiceConfig.ResetWindowSeconds) * time.Second

	if request.Token == "" {
		token := newResetToken()
		if err := redisRepo.SaveResetToken(c.Context(), guildID, token, window); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		resetOutcomes.WithLabelValues("armed").Inc()
		return c.JSON(fiber.Map{
			"token":         token,
			"expiresInSecs": int(window.Seconds()),
		})
	}

	pending, err := redisRepo.TakeResetToken(c.Context(), guildID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	if pending == "" || pending != request.Token {
		resetOutcomes.WithLabelValues("expired").Inc()
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Confirmation window expired, request a new token",
		})
	}

	if err := h.manager.ResetGuildConfig(c.Context(), guildID, claims.ActorID); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	resetOutcomes.WithLabelValues("confirmed").Inc()
	guildMutations.WithLabelValues("reset").Inc()

	return c.JSON(fiber.Map{
		"guildId": guildID,
		"reset":   true,
	})
}

func (h *GuildAdminHandler) Audit(c fiber.Ctx) error {
	guildID, ok := guildParam(c)
	if !ok {
		return nil
	}
	if h.authorize(c, guildID) == nil {
		return nil
	}

	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	actorID, _ := strconv.ParseInt(c.Query("actor", "0"), 10, 64)

	entries, err := h.manager.AuditEntries(c.Context(), guildID, actorID, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"entries": entries,
	})
}

func (h *GuildAdminHandler) ListOverrides(c fiber.Ctx) error {
	guildID, ok := overrideGuildParam(c)
	if !ok {
		return nil
	}
	if h.authorize(c, guildID) == nil {
		return nil
	}

	return c.JSON(fiber.Map{
		"overrides": h.manager.Overrides(c.Context(), guildID),
	})
}

func (h *GuildAdminHandler) AddOverride(c fiber.Ctx) error {
	guildID, ok := overrideGuildParam(c)
	if !ok {
		return nil
	}
	claims := h.authorize(c, guildID)
	if claims == nil {
		return nil
	}

	var override models.PermissionOverride
	if err := c.Bind().Body(&override); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	override.GrantedBy = claims.ActorID

	if err := h.manager.AddOverride(c.Context(), guildID, &override); err != nil {
		return c.Status(validationStatus(err)).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	guildMutations.WithLabelValues("override-add").Inc()

	return c.Status(fiber.StatusCreated).JSON(&override)
}

type removeOverrideRequest struct {
	TargetType string `json:"targetType"`
	TargetID   int64  `json:"targetId"`
	Node       string `json:"node"`
}

func (h *GuildAdminHandler) RemoveOverride(c fiber.Ctx) error {
	guildID, ok := overrideGuildParam(c)
	if !ok {
		return nil
	}
	claims := h.authorize(c, guildID)
	if claims == nil {
		return nil
	}

	var request removeOverrideRequest
	if err := c.Bind().Body(&request); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if err := h.manager.RemoveOverride(c.Context(), guildID, request.TargetType, request.TargetID, request.Node, claims.ActorID); err != nil {
		return c.Status(validationStatus(err)).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	guildMutations.WithLabelValues("override-remove").Inc()

	return c.JSON(fiber.Map{
		"removed": true,
	})
}

func newResetToken() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return strconv.FormatInt(time.Now().UnixNano(), 16)
	}
	return hex.EncodeToString(buf)
}
