package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"permission_service/internal/models"
)

// recordingStore is an in-memory PermissionStore that remembers every write
// so tests can assert on the write-through behavior.
type recordingStore struct {
	configs   map[int64]*models.GuildPermissionConfig
	overrides map[int64][]*models.PermissionOverride
	audit     []*models.PermissionAuditEntry
}

func newRecordingStore() *recordingStore {
	return &recordingStore{
		configs:   make(map[int64]*models.GuildPermissionConfig),
		overrides: make(map[int64][]*models.PermissionOverride),
	}
}

func (s *recordingStore) SaveGuildConfig(_ context.Context, config *models.GuildPermissionConfig) error {
	s.configs[config.GuildID] = config
	return nil
}

func (s *recordingStore) LoadGuildConfig(_ context.Context, guildID int64) (*models.GuildPermissionConfig, error) {
	return s.configs[guildID], nil
}

func (s *recordingStore) DeleteGuildConfig(_ context.Context, guildID int64) error {
	delete(s.configs, guildID)
	delete(s.overrides, guildID)
	return nil
}

func (s *recordingStore) SaveOverride(_ context.Context, guildID int64, override *models.PermissionOverride) error {
	s.overrides[guildID] = append(s.overrides[guildID], override)
	return nil
}

func (s *recordingStore) LoadOverrides(_ context.Context, guildID int64) ([]*models.PermissionOverride, error) {
	return s.overrides[guildID], nil
}

func (s *recordingStore) DeleteOverride(_ context.Context, guildID int64, targetType string, targetID int64, node string) error {
	kept := s.overrides[guildID][:0]
	for _, override := range s.overrides[guildID] {
		if override.TargetType == targetType && override.TargetID == targetID && override.Node == node {
			continue
		}
		kept = append(kept, override)
	}
	s.overrides[guildID] = kept
	return nil
}

func (s *recordingStore) SaveAuditEntry(_ context.Context, entry *models.PermissionAuditEntry) error {
	s.audit = append(s.audit, entry)
	return nil
}

func (s *recordingStore) LoadAuditEntries(_ context.Context, guildID int64, actorID int64, limit int) ([]*models.PermissionAuditEntry, error) {
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

func (s *recordingStore) CleanupExpiredOverrides(_ context.Context) (int64, error) {
	return 0, nil
}

func (s *recordingStore) CleanupAuditBefore(_ context.Context, _ int) (int64, error) {
	return 0, nil
}

// recordingPublisher captures every routing key handed to the bus.
type recordingPublisher struct {
	keys []string
}

func (p *recordingPublisher) PublishPermissionEvent(_ context.Context, routingKey string, _ any) error {
	p.keys = append(p.keys, routingKey)
	return nil
}

const testGuildID = 500

func testGuild() *models.GuildSnapshot {
	return &models.GuildSnapshot{
		ID:          testGuildID,
		Name:        "testguild",
		OwnerID:     1,
		MemberCount: 100,
		Channels: []*models.ChannelSnapshot{
			{ID: 70, Name: "general"},
			{ID: 71, Name: "staff-chat", CategoryID: 80},
		},
		Categories: []*models.CategorySnapshot{
			{ID: 80, Name: "Staff"},
		},
	}
}

func testManager(store PermissionStore) *PermissionManager {
	config := DefaultManagerConfig()
	config.BotOwners = []int64{900}
	config.BotAdmins = []int64{901}
	m := NewPermissionManager(config, store, nil)
	m.RegisterDefaultNodes()
	return m
}

func TestUserPermissionLevel(t *testing.T) {
	ctx := context.Background()
	m := testManager(nil)
	guild := testGuild()

	// Role 40 maps to MODERATOR, role 41 to LEAD_ADMIN, role 42 to OWNER.
	if err := m.SetRolePermissionLevel(ctx, testGuildID, 40, models.LevelModerator, 1, ""); err != nil {
		t.Fatal(err)
	}
	if err := m.SetRolePermissionLevel(ctx, testGuildID, 41, models.LevelLeadAdmin, 1, ""); err != nil {
		t.Fatal(err)
	}
	if err := m.SetRolePermissionLevel(ctx, testGuildID, 42, models.LevelOwner, 1, ""); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		member *models.MemberSnapshot
		guild  *models.GuildSnapshot
		want   models.PermissionLevel
	}{
		{"bot owner allowlist", &models.MemberSnapshot{ID: 900}, guild, models.LevelBotOwner},
		{"bot admin allowlist", &models.MemberSnapshot{ID: 901}, guild, models.LevelBotAdmin},
		{"no guild context", &models.MemberSnapshot{ID: 2}, nil, models.LevelEveryone},
		{"guild owner", &models.MemberSnapshot{ID: 1}, guild, models.LevelOwner},
		{"administrator flag", &models.MemberSnapshot{
			ID: 3, GuildPermissions: models.PermAdministrator,
		}, guild, models.LevelAdmin},
		{"administrator upgraded by mapping", &models.MemberSnapshot{
			ID: 4, RoleIDs: []int64{41}, GuildPermissions: models.PermAdministrator,
		}, guild, models.LevelLeadAdmin},
		{"administrator with owner-mapped role stays admin", &models.MemberSnapshot{
			ID: 9, RoleIDs: []int64{42}, GuildPermissions: models.PermAdministrator,
		}, guild, models.LevelAdmin},
		{"owner-mapped role without administrator flag", &models.MemberSnapshot{
			ID: 10, RoleIDs: []int64{42},
		}, guild, models.LevelOwner},
		{"highest mapped role wins", &models.MemberSnapshot{
			ID: 5, RoleIDs: []int64{40, 41},
		}, guild, models.LevelLeadAdmin},
		{"moderation-capable heuristic", &models.MemberSnapshot{
			ID: 6, GuildPermissions: models.PermKickMembers,
		}, guild, models.LevelModerator},
		{"trusted permissions heuristic", &models.MemberSnapshot{
			ID: 7, GuildPermissions: models.PermEmbedLinks | models.PermAttachFiles,
		}, guild, models.LevelMember},
		{"no signal at all", &models.MemberSnapshot{ID: 8}, guild, models.LevelEveryone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := m.UserPermissionLevel(ctx, tt.member, tt.guild); got != tt.want {
				t.Errorf("UserPermissionLevel(%s) = %s, want %s", tt.name, got, tt.want)
			}
		})
	}
}

func TestBannedOverrideWinsOverEverything(t *testing.T) {
	ctx := context.Background()
	m := testManager(nil)
	guild := testGuild()

	admin := &models.MemberSnapshot{ID: 10, GuildPermissions: models.PermAdministrator}
	if got := m.UserPermissionLevel(ctx, admin, guild); got != models.LevelAdmin {
		t.Fatalf("pre-ban level = %s, want %s", got, models.LevelAdmin)
	}

	err := m.AddOverride(ctx, testGuildID, &models.PermissionOverride{
		TargetType: "user", TargetID: 10, Node: BanNode, Granted: false, ScopeType: models.ScopeGuild,
	})
	if err != nil {
		t.Fatal(err)
	}

	if got := m.UserPermissionLevel(ctx, admin, guild); got != models.LevelBanned {
		t.Errorf("post-ban level = %s, want %s", got, models.LevelBanned)
	}
	if m.CheckPermission(ctx, admin, "basic.ping", 70, guild) {
		t.Error("banned member passed a permission check")
	}

	// Bot owners are immune to the ban override.
	err = m.AddOverride(ctx, testGuildID, &models.PermissionOverride{
		TargetType: "user", TargetID: 900, Node: BanNode, Granted: false, ScopeType: models.ScopeGuild,
	})
	if err != nil {
		t.Fatal(err)
	}
	botOwner := &models.MemberSnapshot{ID: 900}
	if got := m.UserPermissionLevel(ctx, botOwner, guild); got != models.LevelBotOwner {
		t.Errorf("bot owner level after ban attempt = %s, want %s", got, models.LevelBotOwner)
	}
}

func TestCheckPermission(t *testing.T) {
	ctx := context.Background()
	m := testManager(nil)
	guild := testGuild()

	owner := &models.MemberSnapshot{ID: 1}
	nobody := &models.MemberSnapshot{ID: 20}
	moderator := &models.MemberSnapshot{ID: 21, GuildPermissions: models.PermKickMembers}

	if m.CheckPermission(ctx, owner, "no.such.node", 70, guild) {
		t.Error("unknown node must deny even for the owner")
	}
	if !m.CheckPermission(ctx, owner, "moderation.kick", 70, guild) {
		t.Error("owner denied moderation.kick")
	}
	if m.CheckPermission(ctx, nobody, "moderation.kick", 70, guild) {
		t.Error("everyone-level member passed moderation.kick")
	}
	if !m.CheckPermission(ctx, nobody, "basic.ping", 70, guild) {
		t.Error("everyone-level member denied basic.ping")
	}
	if !m.CheckPermission(ctx, moderator, "moderation.kick", 70, guild) {
		t.Error("moderator denied moderation.kick")
	}

	// A guild override raises the requirement past the moderator's level.
	if err := m.SetCommandRequirement(ctx, testGuildID, "moderation.kick", models.LevelAdmin, 1); err != nil {
		t.Fatal(err)
	}
	if m.CheckPermission(ctx, moderator, "moderation.kick", 70, guild) {
		t.Error("moderator passed moderation.kick after the requirement was raised")
	}
	if !m.CheckPermission(ctx, owner, "moderation.kick", 70, guild) {
		t.Error("owner denied moderation.kick after the requirement was raised")
	}
}

func TestCheckPermissionRestrictions(t *testing.T) {
	ctx := context.Background()
	m := testManager(nil)
	guild := testGuild()
	owner := &models.MemberSnapshot{ID: 1}

	err := m.RegisterNode(&models.PermissionNode{
		Name:              "music.play",
		DefaultLevel:      models.LevelMember,
		ScopeRestrictions: map[int64]bool{70: true},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !m.CheckPermission(ctx, owner, "music.play", 70, guild) {
		t.Error("scope-restricted node denied in its allowed channel")
	}
	if m.CheckPermission(ctx, owner, "music.play", 71, guild) {
		t.Error("scope-restricted node allowed outside its channels")
	}

	err = m.RegisterNode(&models.PermissionNode{
		Name:             "dj.queue",
		DefaultLevel:     models.LevelEveryone,
		RoleRestrictions: map[int64]bool{60: true},
	})
	if err != nil {
		t.Fatal(err)
	}
	holder := &models.MemberSnapshot{ID: 30, RoleIDs: []int64{60}}
	outsider := &models.MemberSnapshot{ID: 31}
	if !m.CheckPermission(ctx, holder, "dj.queue", 70, guild) {
		t.Error("role-restricted node denied to a role holder")
	}
	if m.CheckPermission(ctx, outsider, "dj.queue", 70, guild) {
		t.Error("role-restricted node allowed without the role")
	}
}

func TestOverridePrecedence(t *testing.T) {
	ctx := context.Background()
	m := testManager(nil)
	guild := testGuild()
	member := &models.MemberSnapshot{ID: 40}

	// Guild-wide grant lets an everyone-level member use a moderator node.
	err := m.AddOverride(ctx, testGuildID, &models.PermissionOverride{
		TargetType: "user", TargetID: 40, Node: "moderation.kick",
		Granted: true, ScopeType: models.ScopeGuild,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !m.CheckPermission(ctx, member, "moderation.kick", 70, guild) {
		t.Fatal("guild-scoped grant not applied")
	}

	// A channel-scoped deny is more specific and wins there, and only there.
	err = m.AddOverride(ctx, testGuildID, &models.PermissionOverride{
		TargetType: "user", TargetID: 40, Node: "moderation.kick",
		Granted: false, ScopeType: models.ScopeChannel, ScopeID: 70,
	})
	if err != nil {
		t.Fatal(err)
	}
	if m.CheckPermission(ctx, member, "moderation.kick", 70, guild) {
		t.Error("channel-scoped deny did not beat the guild-scoped grant")
	}
	if !m.CheckPermission(ctx, member, "moderation.kick", 71, guild) {
		t.Error("channel-scoped deny leaked into another channel")
	}

	// An expired override is inert.
	expired := &models.PermissionOverride{
		TargetType: "user", TargetID: 41, Node: "moderation.ban",
		Granted: true, ScopeType: models.ScopeGuild,
		ExpiresAt: int(time.Now().Add(-time.Hour).Unix()),
	}
	if err := m.AddOverride(ctx, testGuildID, expired); err != nil {
		t.Fatal(err)
	}
	other := &models.MemberSnapshot{ID: 41}
	if m.CheckPermission(ctx, other, "moderation.ban", 70, guild) {
		t.Error("expired grant still applied")
	}

	// Role-targeted overrides apply to every holder of the role.
	err = m.AddOverride(ctx, testGuildID, &models.PermissionOverride{
		TargetType: "role", TargetID: 61, Node: "moderation.warn",
		Granted: true, ScopeType: models.ScopeGuild,
	})
	if err != nil {
		t.Fatal(err)
	}
	holder := &models.MemberSnapshot{ID: 42, RoleIDs: []int64{61}}
	if !m.CheckPermission(ctx, holder, "moderation.warn", 70, guild) {
		t.Error("role-targeted grant not applied to a holder")
	}
}

func TestGlobalOverrideBucket(t *testing.T) {
	ctx := context.Background()
	store := newRecordingStore()
	m := testManager(store)
	guild := testGuild()
	member := &models.MemberSnapshot{ID: 45, GuildPermissions: models.PermKickMembers}

	if !m.CheckPermission(ctx, member, "moderation.kick", 70, guild) {
		t.Fatal("moderator denied moderation.kick before the global deny")
	}

	// Global overrides live under guild 0 and follow the member everywhere.
	err := m.AddOverride(ctx, 0, &models.PermissionOverride{
		TargetType: "user", TargetID: 45, Node: "moderation.kick",
		Granted: false, ScopeType: models.ScopeGlobal,
	})
	if err != nil {
		t.Fatal(err)
	}
	if m.CheckPermission(ctx, member, "moderation.kick", 70, guild) {
		t.Error("global deny ignored inside a guild")
	}
	if m.CheckPermission(ctx, member, "moderation.kick", 0, nil) {
		t.Error("global deny ignored outside guild context")
	}

	if got := len(store.overrides[0]); got != 1 {
		t.Errorf("global bucket persisted %d overrides, want 1", got)
	}
	if got := len(m.Overrides(ctx, 0)); got != 1 {
		t.Errorf("Overrides(0) returned %d entries, want 1", got)
	}

	// A guild-scoped grant is more specific and wins inside that guild.
	err = m.AddOverride(ctx, testGuildID, &models.PermissionOverride{
		TargetType: "user", TargetID: 45, Node: "moderation.kick",
		Granted: true, ScopeType: models.ScopeGuild,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !m.CheckPermission(ctx, member, "moderation.kick", 70, guild) {
		t.Error("guild-scoped grant did not beat the global deny")
	}

	if err := m.RemoveOverride(ctx, 0, "user", 45, "moderation.kick", 1); err != nil {
		t.Fatal(err)
	}
	if got := len(m.Overrides(ctx, 0)); got != 0 {
		t.Errorf("Overrides(0) returned %d entries after removal, want 0", got)
	}
}

func TestCheckPermissionCaching(t *testing.T) {
	ctx := context.Background()
	m := testManager(nil)
	guild := testGuild()
	member := &models.MemberSnapshot{ID: 50, GuildPermissions: models.PermKickMembers}

	first := m.CheckPermission(ctx, member, "moderation.kick", 70, guild)
	second := m.CheckPermission(ctx, member, "moderation.kick", 70, guild)
	if first != second {
		t.Fatalf("cached result differs: %t then %t", first, second)
	}

	stats := m.CacheStats()
	if stats.CheckCount != 2 || stats.CacheHits != 1 {
		t.Errorf("stats = %d checks / %d hits, want 2 / 1", stats.CheckCount, stats.CacheHits)
	}

	// A mutation flushes both caches, so the next check recomputes.
	if err := m.SetCommandRequirement(ctx, testGuildID, "moderation.kick", models.LevelAdmin, 1); err != nil {
		t.Fatal(err)
	}
	if m.CheckPermission(ctx, member, "moderation.kick", 70, guild) {
		t.Error("stale cached result survived a mutation")
	}
	stats = m.CacheStats()
	if stats.CheckCount != 3 || stats.CacheHits != 1 {
		t.Errorf("stats after mutation = %d checks / %d hits, want 3 / 1", stats.CheckCount, stats.CacheHits)
	}
}

func TestResolveNodeName(t *testing.T) {
	m := testManager(nil)

	tests := []struct {
		input     string
		want      string
		wantErr   bool
		ambiguous bool
	}{
		{"moderation.kick", "moderation.kick", false, false},
		{"  Moderation.Kick  ", "moderation.kick", false, false},
		{"owner.sh", "owner.shutdown", false, false},
		{"moderation", "", true, true},
		{"nothing.here", "", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := m.ResolveNodeName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ResolveNodeName(%q) error = %v, wantErr %t", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ResolveNodeName(%q) = %q, want %q", tt.input, got, tt.want)
			}
			if tt.wantErr {
				var ve *models.ValidationError
				if !errors.As(err, &ve) {
					t.Fatalf("error type = %T, want *models.ValidationError", err)
				}
				if tt.ambiguous && len(ve.Expected) < 2 {
					t.Errorf("ambiguous match listed %d candidates, want several", len(ve.Expected))
				}
			}
		})
	}
}

func TestRegisterNodeDuplicate(t *testing.T) {
	m := NewPermissionManager(nil, nil, nil)
	node := &models.PermissionNode{Name: "basic.ping", DefaultLevel: models.LevelEveryone}
	if err := m.RegisterNode(node); err != nil {
		t.Fatal(err)
	}
	if err := m.RegisterNode(node); err == nil {
		t.Error("re-registering a node must fail")
	}
}

func TestMutationsWriteThrough(t *testing.T) {
	ctx := context.Background()
	store := newRecordingStore()
	publisher := &recordingPublisher{}

	config := DefaultManagerConfig()
	m := NewPermissionManager(config, store, publisher)
	m.RegisterDefaultNodes()

	if err := m.SetRolePermissionLevel(ctx, testGuildID, 40, models.LevelModerator, 7, "promotion"); err != nil {
		t.Fatal(err)
	}
	if err := m.SetRoleClassification(ctx, testGuildID, 40, models.RoleAuthority, 7, ""); err != nil {
		t.Fatal(err)
	}
	if err := m.SetCommandRequirement(ctx, testGuildID, "moderation.purge", models.LevelAdmin, 7); err != nil {
		t.Fatal(err)
	}
	err := m.AddOverride(ctx, testGuildID, &models.PermissionOverride{
		TargetType: "user", TargetID: 99, Node: "moderation.warn",
		Granted: true, ScopeType: models.ScopeGuild, GrantedBy: 7,
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := m.RemoveOverride(ctx, testGuildID, "user", 99, "moderation.warn", 7); err != nil {
		t.Fatal(err)
	}
	if err := m.ResetGuildConfig(ctx, testGuildID, 7); err != nil {
		t.Fatal(err)
	}

	wantActions := []string{
		"role.level.set", "role.type.set", "node.requirement.set",
		"override.granted", "override.removed", "config.reset",
	}
	if len(store.audit) != len(wantActions) {
		t.Fatalf("got %d audit entries, want %d", len(store.audit), len(wantActions))
	}
	for i, want := range wantActions {
		if store.audit[i].Action != want {
			t.Errorf("audit[%d].Action = %q, want %q", i, store.audit[i].Action, want)
		}
	}
	if publisher.keys[0] != "role.level.set" || len(publisher.keys) != len(wantActions) {
		t.Errorf("published keys = %v, want one per mutation", publisher.keys)
	}

	// Reset removed the stored config again.
	if _, ok := store.configs[testGuildID]; ok {
		t.Error("stored config survived the reset")
	}

	entries, err := m.AuditEntries(ctx, testGuildID, 0, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 || entries[0].Action != "config.reset" {
		t.Errorf("AuditEntries returned %d entries starting with %q, want 3 starting with config.reset",
			len(entries), entries[0].Action)
	}
}

func TestAddOverrideValidation(t *testing.T) {
	ctx := context.Background()
	m := testManager(nil)

	err := m.AddOverride(ctx, testGuildID, &models.PermissionOverride{
		TargetType: "everyone", TargetID: 1, Node: "basic.ping", ScopeType: models.ScopeGuild,
	})
	var ve *models.ValidationError
	if !errors.As(err, &ve) || ve.Field != "target_type" {
		t.Errorf("bad target type error = %v, want target_type validation error", err)
	}

	err = m.AddOverride(ctx, testGuildID, &models.PermissionOverride{
		TargetType: "user", TargetID: 1, Node: "basic.ping", ScopeType: models.ScopeRole,
	})
	if !errors.As(err, &ve) || ve.Field != "scope_type" {
		t.Errorf("bad scope type error = %v, want scope_type validation error", err)
	}
}

func TestAutoConfigureGuild(t *testing.T) {
	ctx := context.Background()
	store := newRecordingStore()
	m := NewPermissionManager(nil, store, nil)
	m.RegisterDefaultNodes()

	guild := testGuild()
	guild.Roles = []*models.RoleSnapshot{
		{ID: 20, Name: "Admin", Position: 3, Permissions: models.PermManageGuild | models.PermBanMembers, MemberIDs: []int64{2, 3}},
		{ID: 21, Name: "Moderator", Position: 2, Permissions: models.PermKickMembers, MemberIDs: []int64{4, 5, 6}},
		{ID: 22, Name: "Red Team", Position: 1, MemberIDs: []int64{7, 8, 9, 10, 11, 12}},
	}

	analysis, err := m.AutoConfigureGuild(ctx, guild, 7)
	if err != nil {
		t.Fatal(err)
	}
	if analysis.ConfidentMappings[20] != models.LevelAdmin {
		t.Errorf("admin role mapped to %s, want %s", analysis.ConfidentMappings[20], models.LevelAdmin)
	}
	if analysis.ConfidentMappings[21] != models.LevelModerator {
		t.Errorf("moderator role mapped to %s, want %s", analysis.ConfidentMappings[21], models.LevelModerator)
	}
	if analysis.RoleClassifications[22] != models.RoleCosmetic {
		t.Errorf("team role classified as %s, want %s", analysis.RoleClassifications[22], models.RoleCosmetic)
	}

	config := m.GuildConfig(ctx, guild.ID)
	if !config.AutoConfigured || config.ConfiguredBy != 7 {
		t.Errorf("config not marked auto-configured by actor 7: %+v", config)
	}
	if stored, ok := store.configs[guild.ID]; !ok || !stored.AutoConfigured {
		t.Error("auto-configured config not written through to the store")
	}

	if _, err := m.AutoConfigureGuild(ctx, nil, 7); err == nil {
		t.Error("nil guild must be rejected")
	}
}

func TestInvalidateGuildReloadsFromStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	m := NewPermissionManager(nil, store, nil)
	m.RegisterDefaultNodes()

	if err := m.SetRolePermissionLevel(ctx, testGuildID, 40, models.LevelAdmin, 1, ""); err != nil {
		t.Fatal(err)
	}

	m.InvalidateGuild(testGuildID)

	config := m.GuildConfig(ctx, testGuildID)
	if config.RoleMappings[40] != models.LevelAdmin {
		t.Errorf("mapping lost across invalidation: %+v", config.RoleMappings)
	}
}

func TestCleanupExpired(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	m := NewPermissionManager(nil, store, nil)
	m.RegisterDefaultNodes()

	active := &models.PermissionOverride{
		TargetType: "user", TargetID: 1, Node: "basic.ping",
		Granted: true, ScopeType: models.ScopeGuild,
	}
	lapsed := &models.PermissionOverride{
		TargetType: "user", TargetID: 2, Node: "basic.ping",
		Granted: true, ScopeType: models.ScopeGuild,
		ExpiresAt: int(time.Now().Add(-time.Minute).Unix()),
	}
	if err := m.AddOverride(ctx, testGuildID, active); err != nil {
		t.Fatal(err)
	}
	if err := m.AddOverride(ctx, testGuildID, lapsed); err != nil {
		t.Fatal(err)
	}

	if removed := m.CleanupExpired(ctx); removed != 1 {
		t.Errorf("CleanupExpired reported %d store removals, want 1", removed)
	}

	remaining := m.Overrides(ctx, testGuildID)
	if len(remaining) != 1 || remaining[0].TargetID != 1 {
		t.Errorf("got %d overrides after sweep, want only the active one", len(remaining))
	}
}

func TestOperatorLevel(t *testing.T) {
	m := testManager(nil)

	if level, ok := m.OperatorLevel(900); !ok || level != models.LevelBotOwner {
		t.Errorf("OperatorLevel(900) = (%s, %t), want (%s, true)", level, ok, models.LevelBotOwner)
	}
	if level, ok := m.OperatorLevel(901); !ok || level != models.LevelBotAdmin {
		t.Errorf("OperatorLevel(901) = (%s, %t), want (%s, true)", level, ok, models.LevelBotAdmin)
	}
	if _, ok := m.OperatorLevel(902); ok {
		t.Error("OperatorLevel(902) allowlisted, want false")
	}
}

func TestAdminTokenRoundTrip(t *testing.T) {
	jwtService := NewJWTService()

	token, err := jwtService.GenerateAdminToken(77, models.LevelBotAdmin, []int64{testGuildID})
	if err != nil {
		t.Fatal(err)
	}

	claims, err := jwtService.ValidateAdminToken(token)
	if err != nil {
		t.Fatal(err)
	}
	if claims.ActorID != 77 || claims.Level != models.LevelBotAdmin {
		t.Errorf("claims = actor %d level %s, want actor 77 level %s", claims.ActorID, claims.Level, models.LevelBotAdmin)
	}
	if !claims.AllowsGuild(testGuildID) {
		t.Error("token does not allow its bound guild")
	}
	if claims.AllowsGuild(999) {
		t.Error("token allows an unbound guild")
	}

	if _, err := jwtService.ValidateAdminToken(token + "x"); err == nil {
		t.Error("tampered token validated")
	}

	unbound, err := jwtService.GenerateAdminToken(77, models.LevelBotOwner, nil)
	if err != nil {
		t.Fatal(err)
	}
	claims, err = jwtService.ValidateAdminToken(unbound)
	if err != nil {
		t.Fatal(err)
	}
	if !claims.AllowsGuild(999) {
		t.Error("guild-unbound token must allow every guild")
	}
}
