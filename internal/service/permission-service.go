package service

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"permission_service/internal/classifier"
	"permission_service/internal/models"

	gocache "github.com/patrickmn/go-cache"
)

// EventPublisher pushes permission audit events onto the message bus. A nil
// publisher disables event publishing without affecting anything else.
type EventPublisher interface {
	PublishPermissionEvent(ctx context.Context, routingKey string, event any) error
}

// ManagerConfig tunes the permission manager. The thresholds are empirically
// tuned, so they live here instead of being hard-coded.
type ManagerConfig struct {
	CacheTTL       time.Duration
	AuditRetention time.Duration
	BotOwners      []int64
	BotAdmins      []int64
	Classifier     *classifier.ClassifierConfig
}

func DefaultManagerConfig() *ManagerConfig {
	return &ManagerConfig{
		CacheTTL:       5 * time.Minute,
		AuditRetention: 30 * 24 * time.Hour,
	}
}

// BanNode is the reserved override node: an active deny on it bans the user
// outright, before any other resolution step runs.
const BanNode = "*"

// PermissionManager is the process-wide permission authority: it owns the
// node registry, per-guild configurations, overrides, and both result
// caches. In-memory state is authoritative; the store is written through on
// every mutation and consulted once per guild on first access.
type PermissionManager struct {
	config     *ManagerConfig
	store      PermissionStore
	classifier *classifier.RoleClassifier
	publisher  EventPublisher

	mu           sync.RWMutex
	registry     map[string]*models.PermissionNode
	guildConfigs map[int64]*models.GuildPermissionConfig
	overrides    map[int64][]*models.PermissionOverride
	loadedGuilds map[int64]bool

	userLevelCache *gocache.Cache
	checkCache     *gocache.Cache

	checkCount atomic.Int64
	cacheHits  atomic.Int64

	botOwners map[int64]bool
	botAdmins map[int64]bool
}

// NewPermissionManager creates a manager. A nil config uses the defaults; a
// nil store degrades to in-memory-only operation.
func NewPermissionManager(config *ManagerConfig, store PermissionStore, publisher EventPublisher) *PermissionManager {
	if config == nil {
		config = DefaultManagerConfig()
	}

	m := &PermissionManager{
		config:         config,
		store:          store,
		classifier:     classifier.NewRoleClassifier(config.Classifier),
		publisher:      publisher,
		registry:       make(map[string]*models.PermissionNode),
		guildConfigs:   make(map[int64]*models.GuildPermissionConfig),
		overrides:      make(map[int64][]*models.PermissionOverride),
		loadedGuilds:   make(map[int64]bool),
		userLevelCache: gocache.New(config.CacheTTL, 2*config.CacheTTL),
		checkCache:     gocache.New(config.CacheTTL, 2*config.CacheTTL),
		botOwners:      make(map[int64]bool),
		botAdmins:      make(map[int64]bool),
	}
	for _, id := range config.BotOwners {
		m.botOwners[id] = true
	}
	for _, id := range config.BotAdmins {
		m.botAdmins[id] = true
	}
	return m
}

// OperatorLevel returns the allowlisted level for a bot operator, or false
// for everyone else.
func (m *PermissionManager) OperatorLevel(userID int64) (models.PermissionLevel, bool) {
	if m.botOwners[userID] {
		return models.LevelBotOwner, true
	}
	if m.botAdmins[userID] {
		return models.LevelBotAdmin, true
	}
	return models.LevelEveryone, false
}

// RegisterNode adds a node to the process-wide registry. Node names are
// unique; re-registration is an error because nodes are immutable once
// published.
func (m *PermissionManager) RegisterNode(node *models.PermissionNode) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.registry[node.Name]; exists {
		return fmt.Errorf("permission node %q is already registered", node.Name)
	}
	if node.CreatedAt == 0 {
		node.CreatedAt = int(time.Now().Unix())
	}
	m.registry[node.Name] = node
	return nil
}

// Node returns a registered node by exact name, or nil.
func (m *PermissionManager) Node(name string) *models.PermissionNode {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.registry[name]
}

// Nodes returns every registered node sorted by name.
func (m *PermissionManager) Nodes() []*models.PermissionNode {
	m.mu.RLock()
	defer m.mu.RUnlock()

	nodes := make([]*models.PermissionNode, 0, len(m.registry))
	for _, node := range m.registry {
		nodes = append(nodes, node)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Name < nodes[j].Name })
	return nodes
}

// ResolveNodeName maps operator input to a registered node name. Exact match
// wins; otherwise a unique prefix match resolves, and zero or multiple
// matches come back as a validation error listing the candidates.
func (m *PermissionManager) ResolveNodeName(input string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	lowered := strings.ToLower(strings.TrimSpace(input))
	if _, ok := m.registry[lowered]; ok {
		return lowered, nil
	}

	var matches []string
	for name := range m.registry {
		if strings.HasPrefix(name, lowered) {
			matches = append(matches, name)
		}
	}
	sort.Strings(matches)

	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return "", &models.ValidationError{Field: "node", Value: input}
	default:
		return "", &models.ValidationError{Field: "node", Value: input, Expected: matches}
	}
}

// guildConfig returns the config for a guild, loading it from the store on
// first access and creating an empty one when nothing is persisted.
func (m *PermissionManager) guildConfig(ctx context.Context, guildID int64) *models.GuildPermissionConfig {
	m.mu.RLock()
	config, ok := m.guildConfigs[guildID]
	loaded := m.loadedGuilds[guildID]
	m.mu.RUnlock()
	if ok {
		return config
	}

	if !loaded && m.store != nil {
		stored, err := m.store.LoadGuildConfig(ctx, guildID)
		if err != nil {
			log.Printf("Failed to load config for guild %d, continuing with empty config: %v", guildID, err)
		}
		storedOverrides, err := m.store.LoadOverrides(ctx, guildID)
		if err != nil {
			log.Printf("Failed to load overrides for guild %d: %v", guildID, err)
		}

		m.mu.Lock()
		if existing, ok := m.guildConfigs[guildID]; ok {
			m.mu.Unlock()
			return existing
		}
		if stored == nil {
			stored = models.NewGuildPermissionConfig(guildID)
		}
		m.guildConfigs[guildID] = stored
		if len(storedOverrides) > 0 {
			m.overrides[guildID] = storedOverrides
		}
		m.loadedGuilds[guildID] = true
		m.mu.Unlock()
		return stored
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.guildConfigs[guildID]; ok {
		return existing
	}
	config = models.NewGuildPermissionConfig(guildID)
	m.guildConfigs[guildID] = config
	m.loadedGuilds[guildID] = true
	return config
}

// GuildConfig exposes the (possibly lazily created) config for a guild.
func (m *PermissionManager) GuildConfig(ctx context.Context, guildID int64) *models.GuildPermissionConfig {
	return m.guildConfig(ctx, guildID)
}

// Permission heuristics for members whose roles carry no explicit mapping.
const (
	moderationCapable = models.PermKickMembers | models.PermBanMembers |
		models.PermModerateMembers | models.PermManageMessages | models.PermMuteMembers
	trustedSet = models.PermManageNicknames | models.PermCreatePublicThreads |
		models.PermCreatePrivateThreads | models.PermExternalEmojis | models.PermAttachFiles |
		models.PermEmbedLinks
)

// UserPermissionLevel resolves a member's universal level, cached per
// user+guild for the configured TTL.
func (m *PermissionManager) UserPermissionLevel(ctx context.Context, member *models.MemberSnapshot, guild *models.GuildSnapshot) models.PermissionLevel {
	var guildID int64
	if guild != nil {
		guildID = guild.ID
	}
	cacheKey := fmt.Sprintf("level:%d:%d", member.ID, guildID)

	if cached, found := m.userLevelCache.Get(cacheKey); found {
		return cached.(models.PermissionLevel)
	}

	level := m.computeUserLevel(ctx, member, guild)
	m.userLevelCache.Set(cacheKey, level, gocache.DefaultExpiration)
	return level
}

func (m *PermissionManager) computeUserLevel(ctx context.Context, member *models.MemberSnapshot, guild *models.GuildSnapshot) models.PermissionLevel {
	if m.botOwners[member.ID] {
		return models.LevelBotOwner
	}

	var guildID int64
	if guild != nil {
		guildID = guild.ID
	}
	if m.isBanned(ctx, member, guildID) {
		return models.LevelBanned
	}

	if m.botAdmins[member.ID] {
		return models.LevelBotAdmin
	}

	if guild == nil {
		return models.LevelEveryone
	}

	if guild.OwnerID == member.ID {
		return models.LevelOwner
	}

	config := m.guildConfig(ctx, guildID)

	m.mu.RLock()
	defer m.mu.RUnlock()

	if member.GuildPermissions.Has(models.PermAdministrator) {
		// An administrator whose role is explicitly mapped to exactly
		// LEAD_ADMIN keeps the higher rank.
		for _, roleID := range member.RoleIDs {
			if mapped, ok := config.RoleMappings[roleID]; ok && mapped == models.LevelLeadAdmin {
				return models.LevelLeadAdmin
			}
		}
		return models.LevelAdmin
	}

	best := models.LevelEveryone
	for _, roleID := range member.RoleIDs {
		if mapped, ok := config.RoleMappings[roleID]; ok && mapped > best {
			best = mapped
		}
	}
	if best > models.LevelEveryone {
		return best
	}

	// No mapped roles: fall back to a coarse read of the raw platform
	// permissions.
	if member.GuildPermissions&moderationCapable != 0 {
		return models.LevelModerator
	}
	trusted := 0
	for flag := models.PermissionBits(1); flag <= models.PermSendMessages; flag <<= 1 {
		if trustedSet&flag != 0 && member.GuildPermissions.Has(flag) {
			trusted++
		}
	}
	if trusted >= 2 {
		return models.LevelMember
	}
	return models.LevelEveryone
}

// isBanned reports whether the member has an active deny override on the
// reserved ban node, in this guild or globally.
func (m *PermissionManager) isBanned(ctx context.Context, member *models.MemberSnapshot, guildID int64) bool {
	now := int(time.Now().Unix())
	scopes := []int64{0}
	if guildID != 0 {
		scopes = []int64{guildID, 0}
	}
	for _, scope := range scopes {
		for _, override := range m.guildOverrides(ctx, scope) {
			if override.Node != BanNode || override.Granted || override.Expired(now) {
				continue
			}
			if overrideTargetsMember(override, member) {
				return true
			}
		}
	}
	return false
}

// CheckPermission decides whether a member may use a permission node in a
// channel. Resolution order: unknown node denies, banned denies, the most
// scope-specific active override short-circuits, then level comparison plus
// node scope/role restrictions. Cached per user+node+channel+guild.
func (m *PermissionManager) CheckPermission(ctx context.Context, member *models.MemberSnapshot, nodeName string, channelID int64, guild *models.GuildSnapshot) bool {
	m.checkCount.Add(1)

	var guildID int64
	if guild != nil {
		guildID = guild.ID
	}
	cacheKey := fmt.Sprintf("check:%d:%s:%d:%d", member.ID, nodeName, channelID, guildID)

	if cached, found := m.checkCache.Get(cacheKey); found {
		m.cacheHits.Add(1)
		return cached.(bool)
	}

	allowed := m.computeCheck(ctx, member, nodeName, channelID, guild)
	m.checkCache.Set(cacheKey, allowed, gocache.DefaultExpiration)
	return allowed
}

func (m *PermissionManager) computeCheck(ctx context.Context, member *models.MemberSnapshot, nodeName string, channelID int64, guild *models.GuildSnapshot) bool {
	node := m.Node(nodeName)
	if node == nil {
		log.Printf("Warning: permission check against unknown node %q, denying", nodeName)
		return false
	}

	level := m.UserPermissionLevel(ctx, member, guild)
	if level == models.LevelBanned {
		return false
	}

	var guildID int64
	var categoryID int64
	if guild != nil {
		guildID = guild.ID
		if channel := guild.Channel(channelID); channel != nil {
			categoryID = channel.CategoryID
		}
	}

	if override := m.matchOverride(ctx, member, nodeName, guildID, channelID, categoryID); override != nil {
		return override.Granted
	}

	required := m.guildConfig(ctx, guildID).RequiredLevel(nodeName, m.registrySnapshot())
	if level < required {
		return false
	}

	if len(node.ScopeRestrictions) > 0 {
		if !node.ScopeRestrictions[channelID] && !node.ScopeRestrictions[categoryID] {
			return false
		}
	}
	if len(node.RoleRestrictions) > 0 {
		held := false
		for _, roleID := range member.RoleIDs {
			if node.RoleRestrictions[roleID] {
				held = true
				break
			}
		}
		if !held {
			return false
		}
	}
	return true
}

func (m *PermissionManager) registrySnapshot() map[string]*models.PermissionNode {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snapshot := make(map[string]*models.PermissionNode, len(m.registry))
	for name, node := range m.registry {
		snapshot[name] = node
	}
	return snapshot
}

// overrideSpecificity orders scopes for precedence; higher wins.
var overrideSpecificity = map[models.PermissionScope]int{
	models.ScopeGlobal:   1,
	models.ScopeGuild:    2,
	models.ScopeCategory: 3,
	models.ScopeChannel:  4,
}

// matchOverride returns the most scope-specific active override applying to
// the member for the node, or nil.
func (m *PermissionManager) matchOverride(ctx context.Context, member *models.MemberSnapshot, nodeName string, guildID, channelID, categoryID int64) *models.PermissionOverride {
	now := int(time.Now().Unix())

	var best *models.PermissionOverride
	consider := func(override *models.PermissionOverride) {
		if override.Node != nodeName || override.Expired(now) {
			return
		}
		if !overrideTargetsMember(override, member) {
			return
		}
		switch override.ScopeType {
		case models.ScopeChannel:
			if override.ScopeID != channelID {
				return
			}
		case models.ScopeCategory:
			if categoryID == 0 || override.ScopeID != categoryID {
				return
			}
		case models.ScopeGuild:
			if override.ScopeID != 0 && override.ScopeID != guildID {
				return
			}
		case models.ScopeGlobal:
		default:
			return
		}
		if best == nil || overrideSpecificity[override.ScopeType] > overrideSpecificity[best.ScopeType] {
			best = override
		}
	}

	for _, override := range m.guildOverrides(ctx, guildID) {
		consider(override)
	}
	if guildID != 0 {
		for _, override := range m.guildOverrides(ctx, 0) {
			consider(override)
		}
	}
	return best
}

func overrideTargetsMember(override *models.PermissionOverride, member *models.MemberSnapshot) bool {
	switch override.TargetType {
	case "user":
		return override.TargetID == member.ID
	case "role":
		return member.HasRole(override.TargetID)
	default:
		return false
	}
}

func (m *PermissionManager) guildOverrides(ctx context.Context, guildID int64) []*models.PermissionOverride {
	m.guildConfig(ctx, guildID) // ensures the guild's stored state is loaded
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.overrides[guildID]
}

// AutoConfigureGuild runs full role analysis and replaces the guild's role
// mappings and classifications with the confident results. Uncertain roles
// are returned for manual review, never silently assigned.
func (m *PermissionManager) AutoConfigureGuild(ctx context.Context, guild *models.GuildSnapshot, actorID int64) (*classifier.GuildAnalysis, error) {
	if guild == nil {
		return nil, &models.ValidationError{Field: "guild", Value: "nil"}
	}

	analysis := m.classifier.AnalyzeGuildRoles(guild)

	config := m.guildConfig(ctx, guild.ID)
	m.mu.Lock()
	config.RoleMappings = analysis.ConfidentMappings
	config.RoleClassifications = analysis.RoleClassifications
	config.AutoConfigured = true
	config.ConfiguredBy = actorID
	config.ConfiguredAt = int(time.Now().Unix())
	m.mu.Unlock()

	m.recordMutation(ctx, &models.PermissionAuditEntry{
		Action:     "guild.configured",
		TargetType: "guild",
		TargetID:   fmt.Sprintf("%d", guild.ID),
		Detail: fmt.Sprintf("auto-configured %d role mappings, %d uncertain",
			len(analysis.ConfidentMappings), len(analysis.UncertainRoles)),
		ActorID:   actorID,
		GuildID:   guild.ID,
		Timestamp: int(time.Now().Unix()),
	}, config)

	return analysis, nil
}

// SetRolePermissionLevel pins a role to a level, overriding whatever the
// auto-configuration decided.
func (m *PermissionManager) SetRolePermissionLevel(ctx context.Context, guildID, roleID int64, level models.PermissionLevel, actorID int64, reason string) error {
	config := m.guildConfig(ctx, guildID)
	m.mu.Lock()
	config.RoleMappings[roleID] = level
	m.mu.Unlock()

	m.recordMutation(ctx, &models.PermissionAuditEntry{
		Action:     "role.level.set",
		TargetType: "role",
		TargetID:   fmt.Sprintf("%d", roleID),
		Detail:     fmt.Sprintf("level=%s", level),
		ActorID:    actorID,
		Reason:     reason,
		GuildID:    guildID,
		Timestamp:  int(time.Now().Unix()),
	}, config)
	return nil
}

// SetRoleClassification manually overrides a role's type. Manual overrides
// always win over auto-classification.
func (m *PermissionManager) SetRoleClassification(ctx context.Context, guildID, roleID int64, roleType models.RoleType, actorID int64, reason string) error {
	config := m.guildConfig(ctx, guildID)
	m.mu.Lock()
	config.RoleClassifications[roleID] = roleType
	m.mu.Unlock()

	m.recordMutation(ctx, &models.PermissionAuditEntry{
		Action:     "role.type.set",
		TargetType: "role",
		TargetID:   fmt.Sprintf("%d", roleID),
		Detail:     fmt.Sprintf("type=%s", roleType),
		ActorID:    actorID,
		Reason:     reason,
		GuildID:    guildID,
		Timestamp:  int(time.Now().Unix()),
	}, config)
	return nil
}

// SetCommandRequirement overrides the required level for a node in one
// guild. The node name accepts unique prefixes.
func (m *PermissionManager) SetCommandRequirement(ctx context.Context, guildID int64, nodeInput string, level models.PermissionLevel, actorID int64) error {
	nodeName, err := m.ResolveNodeName(nodeInput)
	if err != nil {
		return err
	}

	config := m.guildConfig(ctx, guildID)
	m.mu.Lock()
	config.NodeOverrides[nodeName] = level
	m.mu.Unlock()

	m.recordMutation(ctx, &models.PermissionAuditEntry{
		Action:     "node.requirement.set",
		TargetType: "node",
		TargetID:   nodeName,
		Detail:     fmt.Sprintf("level=%s", level),
		ActorID:    actorID,
		GuildID:    guildID,
		Timestamp:  int(time.Now().Unix()),
	}, config)
	return nil
}

// ResetGuildConfig wipes a guild back to defaults: mappings,
// classifications, node overrides and permission overrides all go.
func (m *PermissionManager) ResetGuildConfig(ctx context.Context, guildID int64, actorID int64) error {
	m.mu.Lock()
	m.guildConfigs[guildID] = models.NewGuildPermissionConfig(guildID)
	delete(m.overrides, guildID)
	m.loadedGuilds[guildID] = true
	m.mu.Unlock()

	if m.store != nil {
		if err := m.store.DeleteGuildConfig(ctx, guildID); err != nil {
			log.Printf("Failed to delete stored config for guild %d: %v", guildID, err)
		}
	}

	m.recordMutation(ctx, &models.PermissionAuditEntry{
		Action:     "config.reset",
		TargetType: "guild",
		TargetID:   fmt.Sprintf("%d", guildID),
		ActorID:    actorID,
		GuildID:    guildID,
		Timestamp:  int(time.Now().Unix()),
	}, nil)
	return nil
}

// AddOverride installs an explicit grant/deny for a user or role.
func (m *PermissionManager) AddOverride(ctx context.Context, guildID int64, override *models.PermissionOverride) error {
	if override.TargetType != "user" && override.TargetType != "role" {
		return &models.ValidationError{Field: "target_type", Value: override.TargetType, Expected: []string{"user", "role"}}
	}
	if _, ok := overrideSpecificity[override.ScopeType]; !ok {
		return &models.ValidationError{
			Field: "scope_type", Value: string(override.ScopeType),
			Expected: []string{"global", "guild", "category", "channel"},
		}
	}
	if override.CreatedAt == 0 {
		override.CreatedAt = int(time.Now().Unix())
	}

	m.guildConfig(ctx, guildID)
	m.mu.Lock()
	m.overrides[guildID] = append(m.overrides[guildID], override)
	m.mu.Unlock()

	if m.store != nil {
		if err := m.store.SaveOverride(ctx, guildID, override); err != nil {
			log.Printf("Failed to persist override for guild %d: %v", guildID, err)
		}
	}

	m.recordMutation(ctx, &models.PermissionAuditEntry{
		Action:     "override.granted",
		TargetType: override.TargetType,
		TargetID:   fmt.Sprintf("%d", override.TargetID),
		Detail:     fmt.Sprintf("node=%s granted=%t scope=%s", override.Node, override.Granted, override.ScopeType),
		ActorID:    override.GrantedBy,
		Reason:     override.Reason,
		GuildID:    guildID,
		Timestamp:  int(time.Now().Unix()),
	}, nil)
	return nil
}

// RemoveOverride deletes every override for the target+node pair in a guild.
func (m *PermissionManager) RemoveOverride(ctx context.Context, guildID int64, targetType string, targetID int64, node string, actorID int64) error {
	m.guildConfig(ctx, guildID)
	m.mu.Lock()
	kept := m.overrides[guildID][:0]
	for _, override := range m.overrides[guildID] {
		if override.TargetType == targetType && override.TargetID == targetID && override.Node == node {
			continue
		}
		kept = append(kept, override)
	}
	m.overrides[guildID] = kept
	m.mu.Unlock()

	if m.store != nil {
		if err := m.store.DeleteOverride(ctx, guildID, targetType, targetID, node); err != nil {
			log.Printf("Failed to delete stored override for guild %d: %v", guildID, err)
		}
	}

	m.recordMutation(ctx, &models.PermissionAuditEntry{
		Action:     "override.removed",
		TargetType: targetType,
		TargetID:   fmt.Sprintf("%d", targetID),
		Detail:     fmt.Sprintf("node=%s", node),
		ActorID:    actorID,
		GuildID:    guildID,
		Timestamp:  int(time.Now().Unix()),
	}, nil)
	return nil
}

// Overrides lists a guild's overrides, including expired ones not yet swept.
func (m *PermissionManager) Overrides(ctx context.Context, guildID int64) []*models.PermissionOverride {
	overrides := m.guildOverrides(ctx, guildID)
	result := make([]*models.PermissionOverride, len(overrides))
	copy(result, overrides)
	return result
}

// AuditEntries reads back the audit trail, newest first.
func (m *PermissionManager) AuditEntries(ctx context.Context, guildID int64, actorID int64, limit int) ([]*models.PermissionAuditEntry, error) {
	if m.store == nil {
		return nil, nil
	}
	return m.store.LoadAuditEntries(ctx, guildID, actorID, limit)
}

// AnalysisReport renders the operator-facing classification report without
// touching guild configuration.
func (m *PermissionManager) AnalysisReport(guild *models.GuildSnapshot) string {
	return m.classifier.AnalysisReport(guild)
}

// recordMutation applies the shared tail of every mutation: one audit entry,
// full invalidation of both caches, write-through, and the bus event. Store
// failures are logged and never roll back the in-memory change.
func (m *PermissionManager) recordMutation(ctx context.Context, entry *models.PermissionAuditEntry, config *models.GuildPermissionConfig) {
	m.ClearCache()

	if m.store != nil {
		if err := m.store.SaveAuditEntry(ctx, entry); err != nil {
			log.Printf("Failed to persist audit entry %q: %v", entry.Action, err)
		}
		if config != nil {
			if err := m.store.SaveGuildConfig(ctx, config); err != nil {
				log.Printf("Failed to persist config for guild %d: %v", config.GuildID, err)
			}
		}
	}

	if m.publisher != nil {
		if err := m.publisher.PublishPermissionEvent(ctx, entry.Action, entry); err != nil {
			log.Printf("Failed to publish %s event: %v", entry.Action, err)
		}
	}
}

// CacheStats is a point-in-time view of cache effectiveness.
type CacheStats struct {
	CheckCount         int64   `json:"checkCount"`
	CacheHits          int64   `json:"cacheHits"`
	HitRate            float64 `json:"hitRate"`
	UserLevelCacheSize int     `json:"userLevelCacheSize"`
	CheckCacheSize     int     `json:"checkCacheSize"`
}

func (m *PermissionManager) CacheStats() CacheStats {
	checks := m.checkCount.Load()
	hits := m.cacheHits.Load()
	rate := 0.0
	if checks > 0 {
		rate = float64(hits) / float64(checks)
	}
	return CacheStats{
		CheckCount:         checks,
		CacheHits:          hits,
		HitRate:            rate,
		UserLevelCacheSize: m.userLevelCache.ItemCount(),
		CheckCacheSize:     m.checkCache.ItemCount(),
	}
}

// ClearCache drops both caches in full. Invalidation is coarse-grained;
// there is no partial flush.
func (m *PermissionManager) ClearCache() {
	m.userLevelCache.Flush()
	m.checkCache.Flush()
}

// InvalidateGuild drops a guild's in-memory config so the next access
// reloads from the store. Used when role change events arrive from the bus.
func (m *PermissionManager) InvalidateGuild(guildID int64) {
	m.mu.Lock()
	delete(m.guildConfigs, guildID)
	delete(m.loadedGuilds, guildID)
	m.mu.Unlock()
	m.ClearCache()
}

// CleanupExpired sweeps lapsed overrides from memory and the store, and
// trims the audit trail past the retention window. Returns the number of
// overrides removed from the store.
func (m *PermissionManager) CleanupExpired(ctx context.Context) int64 {
	now := int(time.Now().Unix())

	m.mu.Lock()
	for guildID, overrides := range m.overrides {
		kept := overrides[:0]
		for _, override := range overrides {
			if !override.Expired(now) {
				kept = append(kept, override)
			}
		}
		m.overrides[guildID] = kept
	}
	m.mu.Unlock()

	if m.store == nil {
		return 0
	}

	removed, err := m.store.CleanupExpiredOverrides(ctx)
	if err != nil {
		log.Printf("Failed to clean up expired overrides: %v", err)
	}

	if m.config.AuditRetention > 0 {
		cutoff := int(time.Now().Add(-m.config.AuditRetention).Unix())
		if _, err := m.store.CleanupAuditBefore(ctx, cutoff); err != nil {
			log.Printf("Failed to trim audit trail: %v", err)
		}
	}
	return removed
}
