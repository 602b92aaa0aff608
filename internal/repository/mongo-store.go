package repository

import (
	"context"

	"permission_service/internal/models"

	"go.mongodb.org/mongo-driver/v2/mongo"
)

// MongoStore is the durable PermissionStore backed by the three permission
// collections.
type MongoStore struct {
	guildConfigs *GuildConfigRepository
	overrides    *OverrideRepository
	audit        *AuditRepository
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		guildConfigs: NewGuildConfigRepository(db),
		overrides:    NewOverrideRepository(db),
		audit:        NewAuditRepository(db),
	}
}

func (s *MongoStore) SaveGuildConfig(ctx context.Context, config *models.GuildPermissionConfig) error {
	return s.guildConfigs.Save(ctx, config)
}

func (s *MongoStore) LoadGuildConfig(ctx context.Context, guildID int64) (*models.GuildPermissionConfig, error) {
	return s.guildConfigs.Load(ctx, guildID)
}

func (s *MongoStore) DeleteGuildConfig(ctx context.Context, guildID int64) error {
	return s.guildConfigs.Delete(ctx, guildID)
}

func (s *MongoStore) SaveOverride(ctx context.Context, guildID int64, override *models.PermissionOverride) error {
	return s.overrides.Save(ctx, guildID, override)
}

func (s *MongoStore) LoadOverrides(ctx context.Context, guildID int64) ([]*models.PermissionOverride, error) {
	return s.overrides.LoadByGuild(ctx, guildID)
}

func (s *MongoStore) DeleteOverride(ctx context.Context, guildID int64, targetType string, targetID int64, node string) error {
	return s.overrides.Delete(ctx, guildID, targetType, targetID, node)
}

func (s *MongoStore) SaveAuditEntry(ctx context.Context, entry *models.PermissionAuditEntry) error {
	return s.audit.Insert(ctx, entry)
}

func (s *MongoStore) LoadAuditEntries(ctx context.Context, guildID int64, actorID int64, limit int) ([]*models.PermissionAuditEntry, error) {
	return s.audit.Find(ctx, guildID, actorID, limit)
}

func (s *MongoStore) CleanupExpiredOverrides(ctx context.Context) (int64, error) {
	return s.overrides.CleanupExpired(ctx)
}

func (s *MongoStore) CleanupAuditBefore(ctx context.Context, cutoff int) (int64, error) {
	return s.audit.CleanupBefore(ctx, cutoff)
}
