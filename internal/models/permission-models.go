package models

import (
	"fmt"
	"strings"
)

// PermissionLevel is the universal permission hierarchy. Levels work across
// all guilds regardless of how the community named its roles. Comparison is
// by integer value; the gaps between values are reserved for future ranks.
type PermissionLevel int

const (
	LevelBanned    PermissionLevel = -1
	LevelEveryone  PermissionLevel = 0
	LevelMember    PermissionLevel = 10
	LevelModerator PermissionLevel = 50
	LevelLeadMod   PermissionLevel = 65
	LevelAdmin     PermissionLevel = 80
	LevelLeadAdmin PermissionLevel = 90
	LevelOwner     PermissionLevel = 100
	LevelBotAdmin  PermissionLevel = 150
	LevelBotOwner  PermissionLevel = 200
)

var levelNames = map[PermissionLevel]string{
	LevelBanned:    "banned",
	LevelEveryone:  "everyone",
	LevelMember:    "member",
	LevelModerator: "moderator",
	LevelLeadMod:   "lead_mod",
	LevelAdmin:     "admin",
	LevelLeadAdmin: "lead_admin",
	LevelOwner:     "owner",
	LevelBotAdmin:  "bot_admin",
	LevelBotOwner:  "bot_owner",
}

func (l PermissionLevel) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("level(%d)", int(l))
}

// AllLevels returns every defined level in ascending order.
func AllLevels() []PermissionLevel {
	return []PermissionLevel{
		LevelBanned, LevelEveryone, LevelMember, LevelModerator, LevelLeadMod,
		LevelAdmin, LevelLeadAdmin, LevelOwner, LevelBotAdmin, LevelBotOwner,
	}
}

// ParsePermissionLevel resolves a level by name, case-insensitively.
func ParsePermissionLevel(name string) (PermissionLevel, error) {
	lowered := strings.ToLower(strings.TrimSpace(name))
	for level, levelName := range levelNames {
		if levelName == lowered {
			return level, nil
		}
	}
	return LevelEveryone, &ValidationError{
		Field:    "level",
		Value:    name,
		Expected: levelNameList(),
	}
}

func levelNameList() []string {
	names := make([]string, 0, len(levelNames))
	for _, level := range AllLevels() {
		names = append(names, levelNames[level])
	}
	return names
}

// PermissionScope is where a permission override applies.
type PermissionScope string

const (
	ScopeGlobal   PermissionScope = "global"
	ScopeGuild    PermissionScope = "guild"
	ScopeCategory PermissionScope = "category"
	ScopeChannel  PermissionScope = "channel"
	ScopeRole     PermissionScope = "role"
)

// RoleType classifies what a guild role is actually for, so hierarchy
// analysis only touches roles that represent real human rank.
type RoleType string

const (
	RoleAuthority   RoleType = "authority"
	RoleBot         RoleType = "bot"
	RoleIntegration RoleType = "integration"
	RoleCosmetic    RoleType = "cosmetic"
	RoleFunctional  RoleType = "functional"
	RoleTemporary   RoleType = "temporary"
	RoleUnknown     RoleType = "unknown"
)

// AllRoleTypes returns the closed RoleType set.
func AllRoleTypes() []RoleType {
	return []RoleType{
		RoleAuthority, RoleBot, RoleIntegration, RoleCosmetic,
		RoleFunctional, RoleTemporary, RoleUnknown,
	}
}

// ParseRoleType resolves a role type by name, case-insensitively.
func ParseRoleType(name string) (RoleType, error) {
	lowered := strings.ToLower(strings.TrimSpace(name))
	for _, rt := range AllRoleTypes() {
		if string(rt) == lowered {
			return rt, nil
		}
	}
	expected := make([]string, 0, 7)
	for _, rt := range AllRoleTypes() {
		expected = append(expected, string(rt))
	}
	return RoleUnknown, &ValidationError{Field: "role_type", Value: name, Expected: expected}
}

// RoleCategory groups authority roles by function. Informational only; it
// never drives level assignment.
type RoleCategory string

const (
	CategoryAdministrative RoleCategory = "administrative"
	CategoryModeration     RoleCategory = "moderation"
	CategoryTrustedMember  RoleCategory = "trusted_member"
	CategorySpecial        RoleCategory = "special"
	CategoryUnknown        RoleCategory = "unknown"
)

// PermissionNode defines access to a single gated capability, identified by
// a dotted name like "moderation.kick". Nodes are registered once at startup
// and immutable afterwards.
type PermissionNode struct {
	Name              string          `bson:"name" json:"name" validate:"required"`
	DefaultLevel      PermissionLevel `bson:"defaultLevel" json:"defaultLevel"`
	Description       string          `bson:"description,omitempty" json:"description"`
	ScopeRestrictions map[int64]bool  `bson:"scopeRestrictions,omitempty" json:"scopeRestrictions,omitempty"`
	RoleRestrictions  map[int64]bool  `bson:"roleRestrictions,omitempty" json:"roleRestrictions,omitempty"`
	CreatedAt         int             `bson:"createdAt" json:"createdAt"`
}

// PermissionOverride is an explicit grant or deny for a user or role in a
// specific scope, bypassing level-based resolution. Expired overrides are
// inert until a cleanup sweep removes them.
type PermissionOverride struct {
	TargetType string          `bson:"targetType" json:"targetType"` // "user" or "role"
	TargetID   int64           `bson:"targetId" json:"targetId"`
	Node       string          `bson:"node" json:"node"`
	Granted    bool            `bson:"granted" json:"granted"`
	ScopeType  PermissionScope `bson:"scopeType" json:"scopeType"`
	ScopeID    int64           `bson:"scopeId,omitempty" json:"scopeId"`
	Reason     string          `bson:"reason,omitempty" json:"reason"`
	GrantedBy  int64           `bson:"grantedBy,omitempty" json:"grantedBy"`
	ExpiresAt  int             `bson:"expiresAt,omitempty" json:"expiresAt"`
	CreatedAt  int             `bson:"createdAt" json:"createdAt"`
}

// Expired reports whether the override has lapsed at the given unix time.
func (o *PermissionOverride) Expired(now int) bool {
	return o.ExpiresAt > 0 && now > o.ExpiresAt
}

// GuildPermissionConfig is the per-guild customization layer on top of the
// universal hierarchy. Created lazily on first access.
type GuildPermissionConfig struct {
	GuildID             int64                      `bson:"guildId" json:"guildId"`
	RoleMappings        map[int64]PermissionLevel  `bson:"roleMappings" json:"roleMappings"`
	RoleClassifications map[int64]RoleType         `bson:"roleClassifications" json:"roleClassifications"`
	NodeOverrides       map[string]PermissionLevel `bson:"nodeOverrides" json:"nodeOverrides"`
	AutoConfigured      bool                       `bson:"autoConfigured" json:"autoConfigured"`
	ConfiguredBy        int64                      `bson:"configuredBy,omitempty" json:"configuredBy"`
	ConfiguredAt        int                        `bson:"configuredAt,omitempty" json:"configuredAt"`
}

// NewGuildPermissionConfig returns an empty config for a guild.
func NewGuildPermissionConfig(guildID int64) *GuildPermissionConfig {
	return &GuildPermissionConfig{
		GuildID:             guildID,
		RoleMappings:        make(map[int64]PermissionLevel),
		RoleClassifications: make(map[int64]RoleType),
		NodeOverrides:       make(map[string]PermissionLevel),
	}
}

// RequiredLevel returns the level needed for a node in this guild: the guild
// override if present, the registered default otherwise, and OWNER for a node
// nobody registered so unknown nodes fail closed.
func (c *GuildPermissionConfig) RequiredLevel(node string, registry map[string]*PermissionNode) PermissionLevel {
	if level, ok := c.NodeOverrides[node]; ok {
		return level
	}
	if registered, ok := registry[node]; ok {
		return registered.DefaultLevel
	}
	return LevelOwner
}

// PermissionAuditEntry records one mutating action against the permission
// system. Append-only; only the retention sweep removes entries.
type PermissionAuditEntry struct {
	Action     string `bson:"action" json:"action"`
	TargetType string `bson:"targetType" json:"targetType"`
	TargetID   string `bson:"targetId" json:"targetId"`
	Detail     string `bson:"detail" json:"detail"`
	ActorID    int64  `bson:"actorId" json:"actorId"`
	Reason     string `bson:"reason,omitempty" json:"reason"`
	GuildID    int64  `bson:"guildId,omitempty" json:"guildId"`
	Timestamp  int    `bson:"timestamp" json:"timestamp"`
}

// RoleAnalysis is the per-run result of classifying a single role. Never
// persisted; recomputed on demand.
type RoleAnalysis struct {
	RoleID              int64           `json:"roleId"`
	RoleName            string          `json:"roleName"`
	Type                RoleType        `json:"type"`
	Category            RoleCategory    `json:"category"`
	PermissionScore     int             `json:"permissionScore"`
	NameIndicators      []string        `json:"nameIndicators,omitempty"`
	SuggestedLevel      PermissionLevel `json:"suggestedLevel"`
	Confidence          float64         `json:"confidence"`
	MemberCount         int             `json:"memberCount"`
	IsManaged           bool            `json:"isManaged"`
	HasChannelOverrides bool            `json:"hasChannelOverrides"`
	IsOwnerRole         bool            `json:"isOwnerRole"`
}

// ValidationError reports bad operator input (an unknown level name, an
// ambiguous node match) distinctly from internal faults.
type ValidationError struct {
	Field    string   `json:"field"`
	Value    string   `json:"value"`
	Expected []string `json:"expected,omitempty"`
}

func (e *ValidationError) Error() string {
	if len(e.Expected) > 0 {
		return fmt.Sprintf("invalid %s %q, expected one of: %s", e.Field, e.Value, strings.Join(e.Expected, ", "))
	}
	return fmt.Sprintf("invalid %s %q", e.Field, e.Value)
}
