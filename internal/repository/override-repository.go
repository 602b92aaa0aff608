package repository

import (
	"context"
	"fmt"
	"time"

	"permission_service/internal/models"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// storedOverride adds the owning guild to the override document. Global
// overrides use guild id 0.
type storedOverride struct {
	GuildID                   int64 `bson:"guildId"`
	models.PermissionOverride `bson:",inline"`
}

type OverrideRepository struct {
	collection *mongo.Collection
}

func NewOverrideRepository(db *mongo.Database) *OverrideRepository {
	return &OverrideRepository{
		collection: db.Collection("PermissionOverride"),
	}
}

func (r *OverrideRepository) Save(ctx context.Context, guildID int64, override *models.PermissionOverride) error {
	filter := bson.M{
		"guildId":    guildID,
		"targetType": override.TargetType,
		"targetId":   override.TargetID,
		"node":       override.Node,
		"scopeType":  override.ScopeType,
		"scopeId":    override.ScopeID,
	}
	doc := storedOverride{GuildID: guildID, PermissionOverride: *override}
	opts := options.UpdateOne().SetUpsert(true)

	_, err := r.collection.UpdateOne(ctx, filter, bson.M{"$set": doc}, opts)
	if err != nil {
		return fmt.Errorf("failed to save override for %s %d on %s: %w",
			override.TargetType, override.TargetID, override.Node, err)
	}
	return nil
}

func (r *OverrideRepository) LoadByGuild(ctx context.Context, guildID int64) ([]*models.PermissionOverride, error) {
	opts := options.Find().SetSort(bson.M{"createdAt": 1})
	cursor, err := r.collection.Find(ctx, bson.M{"guildId": guildID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to load overrides for guild %d: %w", guildID, err)
	}
	defer cursor.Close(ctx)

	var docs []storedOverride
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode overrides for guild %d: %w", guildID, err)
	}

	overrides := make([]*models.PermissionOverride, 0, len(docs))
	for i := range docs {
		overrides = append(overrides, &docs[i].PermissionOverride)
	}
	return overrides, nil
}

func (r *OverrideRepository) Delete(ctx context.Context, guildID int64, targetType string, targetID int64, node string) error {
	filter := bson.M{
		"guildId":    guildID,
		"targetType": targetType,
		"targetId":   targetID,
		"node":       node,
	}
	_, err := r.collection.DeleteMany(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to delete override for %s %d on %s: %w", targetType, targetID, node, err)
	}
	return nil
}

// CleanupExpired removes every override whose expiry has passed. Overrides
// with no expiry (expiresAt 0 or unset) are never touched.
func (r *OverrideRepository) CleanupExpired(ctx context.Context) (int64, error) {
	now := int(time.Now().Unix())
	filter := bson.M{
		"expiresAt": bson.M{"$gt": 0, "$lt": now},
	}
	result, err := r.collection.DeleteMany(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up expired overrides: %w", err)
	}
	return result.DeletedCount, nil
}
