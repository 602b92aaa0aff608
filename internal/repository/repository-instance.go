package repository

import "permission_service/internal/database/mongo"

type Repositories struct {
	GuildConfigRepository *GuildConfigRepository
	OverrideRepository    *OverrideRepository
	AuditRepository       *AuditRepository
	RedisRepository       *RedisRepo
	Store                 *MongoStore
}

var Repositories_instance = newRepositories()

func newRepositories() *Repositories {
	guildConfigs := NewGuildConfigRepository(mongo.Mongo_Database)
	overrides := NewOverrideRepository(mongo.Mongo_Database)
	audit := NewAuditRepository(mongo.Mongo_Database)

	return &Repositories{
		GuildConfigRepository: guildConfigs,
		OverrideRepository:    overrides,
		AuditRepository:       audit,
		RedisRepository:       NewRedisRepo(),
		Store: &MongoStore{
			guildConfigs: guildConfigs,
			overrides:    overrides,
			audit:        audit,
		},
	}
}
