package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"permission_service/internal/models"
)

type storedOverrideKey struct {
	targetType string
	targetID   int64
	node       string
	scopeType  models.PermissionScope
	scopeID    int64
}

// MemoryStore keeps everything in process memory. Used in tests and as the
// degraded mode when no database is configured; nothing survives a restart.
type MemoryStore struct {
	mu        sync.Mutex
	configs   map[int64]*models.GuildPermissionConfig
	overrides map[int64]map[storedOverrideKey]*models.PermissionOverride
	audit     []*models.PermissionAuditEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		configs:   make(map[int64]*models.GuildPermissionConfig),
		overrides: make(map[int64]map[storedOverrideKey]*models.PermissionOverride),
	}
}

func (s *MemoryStore) SaveGuildConfig(_ context.Context, config *models.GuildPermissionConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configs[config.GuildID] = config
	return nil
}

func (s *MemoryStore) LoadGuildConfig(_ context.Context, guildID int64) (*models.GuildPermissionConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.configs[guildID], nil
}

func (s *MemoryStore) DeleteGuildConfig(_ context.Context, guildID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.configs, guildID)
	return nil
}

func (s *MemoryStore) SaveOverride(_ context.Context, guildID int64, override *models.PermissionOverride) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := storedOverrideKey{
		targetType: override.TargetType,
		targetID:   override.TargetID,
		node:       override.Node,
		scopeType:  override.ScopeType,
		scopeID:    override.ScopeID,
	}
	if s.overrides[guildID] == nil {
		s.overrides[guildID] = make(map[storedOverrideKey]*models.PermissionOverride)
	}
	s.overrides[guildID][key] = override
	return nil
}

func (s *MemoryStore) LoadOverrides(_ context.Context, guildID int64) ([]*models.PermissionOverride, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []*models.PermissionOverride
	for _, override := range s.overrides[guildID] {
		result = append(result, override)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt < result[j].CreatedAt
	})
	return result, nil
}

func (s *MemoryStore) DeleteOverride(_ context.Context, guildID int64, targetType string, targetID int64, node string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.overrides[guildID] {
		if key.targetType == targetType && key.targetID == targetID && key.node == node {
			delete(s.overrides[guildID], key)
		}
	}
	return nil
}

func (s *MemoryStore) SaveAuditEntry(_ context.Context, entry *models.PermissionAuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = append(s.audit, entry)
	return nil
}

func (s *MemoryStore) LoadAuditEntries(_ context.Context, guildID int64, actorID int64, limit int) ([]*models.PermissionAuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []*models.PermissionAuditEntry
	for i := len(s.audit) - 1; i >= 0; i-- {
		entry := s.audit[i]
		if guildID != 0 && entry.GuildID != guildID {
			continue
		}
		if actorID != 0 && entry.ActorID != actorID {
			continue
		}
		result = append(result, entry)
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

func (s *MemoryStore) CleanupExpiredOverrides(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := int(time.Now().Unix())
	var removed int64
	for guildID, overrides := range s.overrides {
		for key, override := range overrides {
			if override.Expired(now) {
				delete(overrides, key)
				removed++
			}
		}
		if len(overrides) == 0 {
			delete(s.overrides, guildID)
		}
	}
	return removed, nil
}

func (s *MemoryStore) CleanupAuditBefore(_ context.Context, cutoff int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.audit[:0]
	var removed int64
	for _, entry := range s.audit {
		if entry.Timestamp < cutoff {
			removed++
			continue
		}
		kept = append(kept, entry)
	}
	s.audit = kept
	return removed, nil
}
