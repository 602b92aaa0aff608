package handlers

import (
	"errors"
	"fmt"
	"log"
	"time"

	"permission_service/internal/models"
	"permission_service/internal/repository"
	"permission_service/internal/service"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Counter for permission checks by outcome
	permissionChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "permission_checks_total",
			Help: "Total number of permission checks",
		},
		[]string{"result"}, // allowed/denied
	)

	// Histogram for check latency
	checkDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "permission_check_duration_seconds",
			Help:    "Time spent resolving permission checks",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"result"},
	)

	// Counter for level resolutions
	levelResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "permission_level_resolutions_total",
			Help: "Total number of user level resolutions",
		},
		[]string{"level"},
	)

	// Gauge for cache hit rate, refreshed on stats reads
	cacheHitRate = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "permission_cache_hit_rate",
			Help: "Fraction of permission checks served from cache",
		},
	)
)

type PermissionHandler struct {
	manager *service.PermissionManager
}

func NewPermissionHandler(manager *service.PermissionManager) *PermissionHandler {
	return &PermissionHandler{manager: manager}
}

func (h *PermissionHandler) RegisterRoutes(app *fiber.App) {
	group := app.Group("/protected/permission")

	group.Post("/check", h.Check)
	group.Post("/level", h.Level)
	group.Post("/analyze", h.Analyze)
	group.Get("/nodes", h.ListNodes)
	group.Get("/stats", h.Stats)

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	app.Get("/health", h.Health)
}

type checkRequest struct {
	Node      string                 `json:"node"`
	ChannelID int64                  `json:"channelId"`
	Member    *models.MemberSnapshot `json:"member"`
	Guild     *models.GuildSnapshot  `json:"guild"`
}

// Check resolves one permission decision for the dispatch collaborator.
func (h *PermissionHandler) Check(c fiber.Ctx) error {
	var request checkRequest
	if err := c.Bind().Body(&request); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if request.Member == nil || request.Node == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "member and node are required",
		})
	}

	timer := prometheus.NewTimer(checkDuration.WithLabelValues("pending"))
	allowed := h.manager.CheckPermission(c.Context(), request.Member, request.Node, request.ChannelID, request.Guild)
	result := "denied"
	if allowed {
		result = "allowed"
	}
	timer.ObserveDuration()
	permissionChecks.WithLabelValues(result).Inc()

	return c.JSON(fiber.Map{
		"node":    request.Node,
		"allowed": allowed,
	})
}

type levelRequest struct {
	Member *models.MemberSnapshot `json:"member"`
	Guild  *models.GuildSnapshot  `json:"guild"`
}

// Level resolves a member's universal permission level.
func (h *PermissionHandler) Level(c fiber.Ctx) error {
	var request levelRequest
	if err := c.Bind().Body(&request); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if request.Member == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "member is required",
		})
	}

	level := h.manager.UserPermissionLevel(c.Context(), request.Member, request.Guild)
	levelResolutions.WithLabelValues(level.String()).Inc()

	return c.JSON(fiber.Map{
		"level": level.String(),
		"value": int(level),
	})
}

type analyzeRequest struct {
	Guild *models.GuildSnapshot `json:"guild"`
}

// Analyze runs role classification without touching guild configuration and
// returns the full per-role analysis plus the text report. Reports are
// cached briefly in redis since analysis scans every role and channel.
func (h *PermissionHandler) Analyze(c fiber.Ctx) error {
	var request analyzeRequest
	if err := c.Bind().Body(&request); err != nil || request.Guild == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "guild snapshot is required",
		})
	}

	cacheKey := fmt.Sprintf("permission:analysis:%d", request.Guild.ID)
	var report string
	if err := repository.RedisRepository.GetStructCached(c.Context(), cacheKey, &report); err == nil {
		return c.JSON(fiber.Map{
			"report": report,
			"cached": true,
		})
	}

	log.Printf("Dry-run analysis requested for guild %d", request.Guild.ID)
	report = h.manager.AnalysisReport(request.Guild)

	if err := repository.RedisRepository.SaveStructCached(c.Context(), cacheKey, report, time.Minute); err != nil {
		log.Printf("Failed to cache analysis report for guild %d: %v", request.Guild.ID, err)
	}

	return c.JSON(fiber.Map{
		"report": report,
	})
}

func (h *PermissionHandler) ListNodes(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"nodes": h.manager.Nodes(),
	})
}

func (h *PermissionHandler) Stats(c fiber.Ctx) error {
	stats := h.manager.CacheStats()
	cacheHitRate.Set(stats.HitRate)
	return c.JSON(stats)
}

func (h *PermissionHandler) Health(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "healthy",
	})
}

// validationStatus maps validation errors to 400 and everything else to 500.
func validationStatus(err error) int {
	var validation *models.ValidationError
	if errors.As(err, &validation) {
		return fiber.StatusBadRequest
	}
	return fiber.StatusInternalServerError
}
