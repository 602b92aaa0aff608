package service

import (
	"context"

	"permission_service/internal/models"
)

// PermissionStore is the persistence contract the manager writes through
// to. Every store error is non-fatal: in-memory state stays authoritative
// for the session and the write is retried on the next mutation. A nil
// store degrades the manager to in-memory-only operation.
type PermissionStore interface {
	SaveGuildConfig(ctx context.Context, config *models.GuildPermissionConfig) error
	LoadGuildConfig(ctx context.Context, guildID int64) (*models.GuildPermissionConfig, error)
	DeleteGuildConfig(ctx context.Context, guildID int64) error

	SaveOverride(ctx context.Context, guildID int64, override *models.PermissionOverride) error
	LoadOverrides(ctx context.Context, guildID int64) ([]*models.PermissionOverride, error)
	DeleteOverride(ctx context.Context, guildID int64, targetType string, targetID int64, node string) error

	SaveAuditEntry(ctx context.Context, entry *models.PermissionAuditEntry) error
	LoadAuditEntries(ctx context.Context, guildID int64, actorID int64, limit int) ([]*models.PermissionAuditEntry, error)

	CleanupExpiredOverrides(ctx context.Context) (int64, error)
	CleanupAuditBefore(ctx context.Context, cutoff int) (int64, error)
}
