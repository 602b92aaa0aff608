package repository

import (
	"context"
	"fmt"

	"permission_service/internal/models"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type AuditRepository struct {
	collection *mongo.Collection
}

func NewAuditRepository(db *mongo.Database) *AuditRepository {
	return &AuditRepository{
		collection: db.Collection("PermissionAudit"),
	}
}

func (r *AuditRepository) Insert(ctx context.Context, entry *models.PermissionAuditEntry) error {
	_, err := r.collection.InsertOne(ctx, entry)
	if err != nil {
		return fmt.Errorf("failed to insert audit entry %q: %w", entry.Action, err)
	}
	return nil
}

// Find returns entries newest first. Zero guildID or actorID means no filter
// on that field; limit 0 falls back to 100.
func (r *AuditRepository) Find(ctx context.Context, guildID int64, actorID int64, limit int) ([]*models.PermissionAuditEntry, error) {
	filter := bson.M{}
	if guildID != 0 {
		filter["guildId"] = guildID
	}
	if actorID != 0 {
		filter["actorId"] = actorID
	}
	if limit <= 0 {
		limit = 100
	}

	opts := options.Find().SetSort(bson.M{"timestamp": -1}).SetLimit(int64(limit))
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit entries: %w", err)
	}
	defer cursor.Close(ctx)

	var entries []*models.PermissionAuditEntry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode audit entries: %w", err)
	}
	return entries, nil
}

// CleanupBefore deletes entries older than the cutoff unix time.
func (r *AuditRepository) CleanupBefore(ctx context.Context, cutoff int) (int64, error) {
	result, err := r.collection.DeleteMany(ctx, bson.M{"timestamp": bson.M{"$lt": cutoff}})
	if err != nil {
		return 0, fmt.Errorf("failed to clean up audit entries: %w", err)
	}
	return result.DeletedCount, nil
}
