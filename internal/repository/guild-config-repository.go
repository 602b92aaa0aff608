package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"permission_service/internal/models"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

var guildConfigCache = make(map[int64]*models.GuildPermissionConfig)

type GuildConfigRepository struct {
	collection *mongo.Collection
	mu         *sync.Mutex
}

func NewGuildConfigRepository(db *mongo.Database) *GuildConfigRepository {
	return &GuildConfigRepository{
		collection: db.Collection("GuildPermissionConfig"),
		mu:         &sync.Mutex{},
	}
}

func (r *GuildConfigRepository) Save(ctx context.Context, config *models.GuildPermissionConfig) error {
	filter := bson.M{"guildId": config.GuildID}
	opts := options.UpdateOne().SetUpsert(true)

	_, err := r.collection.UpdateOne(ctx, filter, bson.M{"$set": config}, opts)
	if err != nil {
		return fmt.Errorf("failed to save guild config %d: %w", config.GuildID, err)
	}

	r.mu.Lock()
	guildConfigCache[config.GuildID] = config
	r.mu.Unlock()

	return nil
}

func (r *GuildConfigRepository) Load(ctx context.Context, guildID int64) (*models.GuildPermissionConfig, error) {
	r.mu.Lock()
	if cached, ok := guildConfigCache[guildID]; ok {
		r.mu.Unlock()
		return cached, nil
	}
	r.mu.Unlock()

	var config models.GuildPermissionConfig
	err := r.collection.FindOne(ctx, bson.M{"guildId": guildID}).Decode(&config)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load guild config %d: %w", guildID, err)
	}

	r.mu.Lock()
	guildConfigCache[guildID] = &config
	r.mu.Unlock()

	return &config, nil
}

func (r *GuildConfigRepository) Delete(ctx context.Context, guildID int64) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"guildId": guildID})
	if err != nil {
		return fmt.Errorf("failed to delete guild config %d: %w", guildID, err)
	}

	r.mu.Lock()
	delete(guildConfigCache, guildID)
	r.mu.Unlock()

	return nil
}
