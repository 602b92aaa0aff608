package classifier

import (
	"fmt"
	"testing"

	"permission_service/internal/models"
)

func makeRole(id int64, name string, position int, perms models.PermissionBits, members int) *models.RoleSnapshot {
	role := &models.RoleSnapshot{ID: id, Name: name, Position: position, Permissions: perms}
	for i := 0; i < members; i++ {
		role.MemberIDs = append(role.MemberIDs, id*1000+int64(i))
	}
	return role
}

func makeGuild(roles []*models.RoleSnapshot, channels ...*models.ChannelSnapshot) *models.GuildSnapshot {
	return &models.GuildSnapshot{
		ID:          500,
		Name:        "testguild",
		OwnerID:     1,
		MemberCount: 100,
		Roles:       roles,
		Channels:    channels,
	}
}

func overwriteChannel(id int64, name string, roleIDs ...int64) *models.ChannelSnapshot {
	channel := &models.ChannelSnapshot{ID: id, Name: name, OverwriteRoleIDs: make(map[int64]bool)}
	for _, roleID := range roleIDs {
		channel.OverwriteRoleIDs[roleID] = true
	}
	return channel
}

func TestClassifyRoleType(t *testing.T) {
	c := NewRoleClassifier(nil)

	tests := []struct {
		name  string
		setup func() (*models.RoleSnapshot, *models.GuildSnapshot)
		want  models.RoleType
	}{
		{"managed role is bot", func() (*models.RoleSnapshot, *models.GuildSnapshot) {
			role := makeRole(10, "MusicBot", 3, 0, 1)
			role.Managed = true
			return role, makeGuild([]*models.RoleSnapshot{role})
		}, models.RoleBot},

		{"booster name is integration", func() (*models.RoleSnapshot, *models.GuildSnapshot) {
			role := makeRole(10, "Server Booster", 3, 0, 8)
			return role, makeGuild([]*models.RoleSnapshot{role})
		}, models.RoleIntegration},

		{"overwrite without authority signals is functional", func() (*models.RoleSnapshot, *models.GuildSnapshot) {
			role := makeRole(10, "Movie Night", 2, 0, 12)
			filler := makeRole(11, "Quiet Corner", 5, 0, 2)
			guild := makeGuild([]*models.RoleSnapshot{role, filler},
				overwriteChannel(70, "general", 10))
			return role, guild
		}, models.RoleFunctional},

		{"administrator with overwrite stays authority", func() (*models.RoleSnapshot, *models.GuildSnapshot) {
			role := makeRole(10, "Crew", 4, models.PermAdministrator, 2)
			guild := makeGuild([]*models.RoleSnapshot{role, makeRole(11, "filler", 1, 0, 2)},
				overwriteChannel(70, "general", 10))
			return role, guild
		}, models.RoleAuthority},

		{"manage roles with overwrite stays authority", func() (*models.RoleSnapshot, *models.GuildSnapshot) {
			role := makeRole(10, "Crew", 4, models.PermManageRoles, 3)
			guild := makeGuild([]*models.RoleSnapshot{role, makeRole(11, "filler", 1, 0, 2)},
				overwriteChannel(70, "general", 10))
			return role, guild
		}, models.RoleAuthority},

		{"authority keyword without permissions", func() (*models.RoleSnapshot, *models.GuildSnapshot) {
			role := makeRole(10, "Staff", 2, 0, 4)
			return role, makeGuild([]*models.RoleSnapshot{role, makeRole(11, "filler", 5, 0, 2)})
		}, models.RoleAuthority},

		{"verification role", func() (*models.RoleSnapshot, *models.GuildSnapshot) {
			role := makeRole(10, "Member", 1, 0, 50)
			guild := makeGuild([]*models.RoleSnapshot{role, makeRole(11, "filler", 5, 0, 2)},
				overwriteChannel(70, "general", 10))
			return role, guild
		}, models.RoleAuthority},

		{"member role below adoption rate is cosmetic", func() (*models.RoleSnapshot, *models.GuildSnapshot) {
			// 10 of 100 members is under the verification threshold, so the
			// membership-flavored name does not make this an authority role.
			role := makeRole(10, "Member", 1, 0, 10)
			guild := makeGuild([]*models.RoleSnapshot{role, makeRole(11, "filler", 5, 0, 2)},
				overwriteChannel(70, "general", 10))
			return role, guild
		}, models.RoleCosmetic},

		{"verified role below adoption rate is functional", func() (*models.RoleSnapshot, *models.GuildSnapshot) {
			role := makeRole(10, "Verified", 1, 0, 10)
			guild := makeGuild([]*models.RoleSnapshot{role, makeRole(11, "filler", 5, 0, 2)},
				overwriteChannel(70, "general", 10))
			return role, guild
		}, models.RoleFunctional},

		{"single bot holder", func() (*models.RoleSnapshot, *models.GuildSnapshot) {
			role := &models.RoleSnapshot{ID: 10, Name: "Groovy", Position: 2, MemberIDs: []int64{99}}
			guild := makeGuild([]*models.RoleSnapshot{role, makeRole(11, "filler", 5, 0, 2)})
			guild.Members = []*models.MemberSnapshot{{ID: 99, Bot: true}}
			return role, guild
		}, models.RoleBot},

		{"single human holder is cosmetic", func() (*models.RoleSnapshot, *models.GuildSnapshot) {
			role := &models.RoleSnapshot{ID: 10, Name: "Birthday King", Position: 2, MemberIDs: []int64{42}}
			guild := makeGuild([]*models.RoleSnapshot{role, makeRole(11, "filler", 5, 0, 2)})
			guild.Members = []*models.MemberSnapshot{{ID: 42, Bot: false}}
			return role, guild
		}, models.RoleCosmetic},

		{"demographic name is cosmetic", func() (*models.RoleSnapshot, *models.GuildSnapshot) {
			role := makeRole(10, "18+", 2, 0, 3)
			return role, makeGuild([]*models.RoleSnapshot{role, makeRole(11, "filler", 5, 0, 2)})
		}, models.RoleCosmetic},

		{"widely held permissionless role is cosmetic", func() (*models.RoleSnapshot, *models.GuildSnapshot) {
			role := makeRole(10, "Announcement Ping", 2, 0, 20)
			return role, makeGuild([]*models.RoleSnapshot{role, makeRole(11, "filler", 5, 0, 2)})
		}, models.RoleCosmetic},

		{"team color is cosmetic", func() (*models.RoleSnapshot, *models.GuildSnapshot) {
			role := makeRole(10, "Red Team", 2, 0, 2)
			return role, makeGuild([]*models.RoleSnapshot{role, makeRole(11, "filler", 5, 0, 2)})
		}, models.RoleCosmetic},

		{"giveaway role is temporary", func() (*models.RoleSnapshot, *models.GuildSnapshot) {
			role := makeRole(10, "Giveaway Winner", 2, 0, 2)
			return role, makeGuild([]*models.RoleSnapshot{role, makeRole(11, "filler", 5, 0, 2)})
		}, models.RoleTemporary},

		{"symbol-only name is cosmetic", func() (*models.RoleSnapshot, *models.GuildSnapshot) {
			role := makeRole(10, "★★★", 2, 0, 2)
			return role, makeGuild([]*models.RoleSnapshot{role, makeRole(11, "filler", 5, 0, 2)})
		}, models.RoleCosmetic},

		{"nothing fires is unknown", func() (*models.RoleSnapshot, *models.GuildSnapshot) {
			role := makeRole(10, "Quest Log", 2, 0, 3)
			return role, makeGuild([]*models.RoleSnapshot{role, makeRole(11, "filler", 5, 0, 2)})
		}, models.RoleUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			role, guild := tt.setup()
			got := c.ClassifyRoleType(role, guild, nil)
			if got != tt.want {
				t.Errorf("ClassifyRoleType(%q) = %s, want %s", role.Name, got, tt.want)
			}
			// Same snapshot must classify the same way again.
			if again := c.ClassifyRoleType(role, guild, nil); again != got {
				t.Errorf("ClassifyRoleType(%q) not deterministic: %s then %s", role.Name, got, again)
			}
		})
	}
}

func TestIsOwnerRole(t *testing.T) {
	c := NewRoleClassifier(nil)

	tenRoles := func(target *models.RoleSnapshot) *models.GuildSnapshot {
		roles := []*models.RoleSnapshot{target}
		for i := 1; i < 10; i++ {
			roles = append(roles, makeRole(int64(100+i), fmt.Sprintf("filler %d", i), i, 0, 2))
		}
		return makeGuild(roles)
	}

	tests := []struct {
		name string
		role *models.RoleSnapshot
		want bool
	}{
		{"all signals", &models.RoleSnapshot{
			ID: 10, Name: "Boss", Position: 10,
			Permissions: models.PermAdministrator,
			MemberIDs:   []int64{1, 2},
		}, true},
		{"no administrator still passes", &models.RoleSnapshot{
			ID: 10, Name: "Boss", Position: 10,
			MemberIDs: []int64{1, 2},
		}, true},
		{"owner membership alone fails", &models.RoleSnapshot{
			ID: 10, Name: "Boss", Position: 5,
			MemberIDs: []int64{1, 2},
		}, false},
		{"exact threshold fails", &models.RoleSnapshot{
			ID: 10, Name: "Boss", Position: 5,
			Permissions: models.PermAdministrator,
			MemberIDs:   []int64{1, 2, 3, 4},
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			guild := tenRoles(tt.role)
			if got := c.isOwnerRole(tt.role, guild); got != tt.want {
				t.Errorf("isOwnerRole(%q) = %t, want %t", tt.name, got, tt.want)
			}
		})
	}
}

func TestAnalyzeAuthorityName(t *testing.T) {
	c := NewRoleClassifier(nil)

	tests := []struct {
		name           string
		wantLevel      models.PermissionLevel
		wantConfidence float64
	}{
		{"Admin", models.LevelAdmin, 0.90},
		{"Head Admin", models.LevelLeadAdmin, 0.95},
		{"Senior Moderator", models.LevelLeadMod, 0.95},
		{"Moderator", models.LevelModerator, 0.90},
		{"🎀Owner🎀", models.LevelOwner, 0.95},
		{"Senior Mod Owner", models.LevelOwner, 0.95},
		{"Trusted", models.LevelMember, 0.75},
		{"Admin Mod", models.LevelEveryone, 0},
		{"Quest Log", models.LevelEveryone, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level, confidence := c.analyzeAuthorityName(tt.name)
			if level != tt.wantLevel || confidence != tt.wantConfidence {
				t.Errorf("analyzeAuthorityName(%q) = (%s, %.2f), want (%s, %.2f)",
					tt.name, level, confidence, tt.wantLevel, tt.wantConfidence)
			}
		})
	}
}

func TestAnalyzeAuthorityNameTieBreak(t *testing.T) {
	c := NewRoleClassifier(nil)

	// "senior mod owner" matches both the owner pattern and the senior-mod
	// pattern at 0.95. The table is ordered highest level first, so the
	// higher level must win the tie on every run.
	for i := 0; i < 100; i++ {
		level, confidence := c.analyzeAuthorityName("Senior Mod Owner")
		if level != models.LevelOwner || confidence != 0.95 {
			t.Fatalf("iteration %d: analyzeAuthorityName = (%s, %.2f), want (%s, 0.95)",
				i, level, confidence, models.LevelOwner)
		}
	}

	// The same tie must stay stable through full hierarchy assignment.
	role := makeRole(10, "Senior Mod Owner", 2, models.PermManageRoles, 2)
	guild := makeGuild([]*models.RoleSnapshot{role, makeRole(11, "filler", 1, 0, 2)})
	guild.OwnerID = 999
	for i := 0; i < 100; i++ {
		result := c.AnalyzeGuildRoles(guild)
		if got := result.ConfidentMappings[role.ID]; got != models.LevelOwner {
			t.Fatalf("iteration %d: hierarchy assigned %s, want %s", i, got, models.LevelOwner)
		}
	}
}

func TestPositionLevel(t *testing.T) {
	var sorted []*models.RoleSnapshot
	for i := 0; i < 10; i++ {
		sorted = append(sorted, makeRole(int64(10+i), fmt.Sprintf("Rank %d", 10-i), 10-i, models.PermBanMembers, 5))
	}

	wantByIndex := []models.PermissionLevel{
		models.LevelLeadAdmin, models.LevelLeadAdmin,
		models.LevelAdmin, models.LevelAdmin,
		models.LevelLeadMod, models.LevelLeadMod,
		models.LevelModerator, models.LevelModerator,
		models.LevelMember, models.LevelMember,
	}
	for i, role := range sorted {
		level, ok := positionLevel(role, sorted)
		if !ok {
			t.Fatalf("positionLevel(index %d) not resolved", i)
		}
		if level != wantByIndex[i] {
			t.Errorf("positionLevel(index %d) = %s, want %s", i, level, wantByIndex[i])
		}
	}

	t.Run("single authority role is admin", func(t *testing.T) {
		lone := sorted[:1]
		level, ok := positionLevel(lone[0], lone)
		if !ok || level != models.LevelAdmin {
			t.Errorf("positionLevel(lone) = (%s, %t), want (%s, true)", level, ok, models.LevelAdmin)
		}
	})

	t.Run("role outside the set is uncertain", func(t *testing.T) {
		outsider := makeRole(999, "Rank X", 11, models.PermBanMembers, 5)
		if _, ok := positionLevel(outsider, sorted); ok {
			t.Error("positionLevel(outsider) resolved, want uncertain")
		}
	})
}

func TestAnalyzeGuildRoles(t *testing.T) {
	owner := makeRole(20, "Owner", 5, models.PermAdministrator, 0)
	owner.MemberIDs = []int64{1}
	admin := makeRole(21, "Admin", 4, models.PermManageGuild|models.PermBanMembers, 3)
	moderator := makeRole(22, "Moderator", 3, models.PermKickMembers|models.PermManageMessages, 5)
	member := makeRole(23, "Member", 2, 0, 50)
	redTeam := makeRole(24, "Red Team", 1, 0, 20)
	everyone := &models.RoleSnapshot{ID: 25, Name: "@everyone", Position: 0, IsEveryone: true}

	guild := makeGuild(
		[]*models.RoleSnapshot{owner, admin, moderator, member, redTeam, everyone},
		overwriteChannel(70, "general", 23),
	)

	c := NewRoleClassifier(nil)
	result := c.AnalyzeGuildRoles(guild)

	wantMappings := map[int64]models.PermissionLevel{
		20: models.LevelOwner,
		21: models.LevelAdmin,
		22: models.LevelModerator,
		23: models.LevelMember,
	}
	for roleID, want := range wantMappings {
		if got, ok := result.ConfidentMappings[roleID]; !ok || got != want {
			t.Errorf("mapping for role %d = %s (present=%t), want %s", roleID, got, ok, want)
		}
	}
	if len(result.ConfidentMappings) != len(wantMappings) {
		t.Errorf("got %d mappings, want %d", len(result.ConfidentMappings), len(wantMappings))
	}
	if len(result.UncertainRoles) != 0 {
		t.Errorf("got %d uncertain roles, want 0", len(result.UncertainRoles))
	}

	if got := result.RoleClassifications[redTeam.ID]; got != models.RoleCosmetic {
		t.Errorf("red team classified as %s, want %s", got, models.RoleCosmetic)
	}
	if _, ok := result.RoleClassifications[everyone.ID]; ok {
		t.Error("everyone role should be skipped")
	}
}

func TestAnalyzeGuildRolesPositionFallback(t *testing.T) {
	// Ten authority roles whose names say nothing; only rank decides.
	var roles []*models.RoleSnapshot
	for i := 0; i < 10; i++ {
		roles = append(roles, makeRole(int64(30+i), fmt.Sprintf("Rank %d", 10-i), 10-i, models.PermBanMembers, 5))
	}
	guild := makeGuild(roles)
	guild.OwnerID = 999

	c := NewRoleClassifier(nil)
	result := c.AnalyzeGuildRoles(guild)

	checks := map[int64]models.PermissionLevel{
		30: models.LevelLeadAdmin, // top of the hierarchy
		35: models.LevelLeadMod,   // middle
		39: models.LevelMember,    // bottom
	}
	for roleID, want := range checks {
		if got := result.ConfidentMappings[roleID]; got != want {
			t.Errorf("mapping for role %d = %s, want %s", roleID, got, want)
		}
	}
}

func TestCategorizeAuthority(t *testing.T) {
	adminRole := &models.RoleSnapshot{Permissions: models.PermAdministrator}
	plainRole := &models.RoleSnapshot{}

	tests := []struct {
		name           string
		role           *models.RoleSnapshot
		score          int
		nameLevel      models.PermissionLevel
		nameConfidence float64
		want           models.RoleCategory
	}{
		{"administrator flag", adminRole, 100, models.LevelEveryone, 0, models.CategoryAdministrative},
		{"moderation score", plainRole, 20, models.LevelEveryone, 0, models.CategoryModeration},
		{"trusted score", plainRole, 8, models.LevelEveryone, 0, models.CategoryTrustedMember},
		{"member name only", plainRole, 0, models.LevelMember, 0.85, models.CategorySpecial},
		{"no signal", plainRole, 0, models.LevelEveryone, 0, models.CategoryUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := categorizeAuthority(tt.role, tt.score, tt.nameLevel, tt.nameConfidence)
			if got != tt.want {
				t.Errorf("categorizeAuthority(%s) = %s, want %s", tt.name, got, tt.want)
			}
		})
	}
}

func TestChannelsToAnalyze(t *testing.T) {
	var channels []*models.ChannelSnapshot
	channels = append(channels, &models.ChannelSnapshot{ID: 1, Name: "general"})
	channels = append(channels, &models.ChannelSnapshot{ID: 2, Name: "ticket-1234"})
	channels = append(channels, &models.ChannelSnapshot{ID: 3, Name: "archive-2023"})
	channels = append(channels, &models.ChannelSnapshot{ID: 4, Name: "bot-commands"})
	for i := 0; i < 60; i++ {
		channels = append(channels, &models.ChannelSnapshot{ID: int64(100 + i), Name: fmt.Sprintf("room-%d", i)})
	}
	guild := makeGuild(nil, channels...)

	analysis := NewChannelAnalysis(guild, nil)
	analyzed := analysis.ChannelsToAnalyze()

	if len(analyzed) > DefaultClassifierConfig().MaxChannels {
		t.Fatalf("analyzed %d channels, cap is %d", len(analyzed), DefaultClassifierConfig().MaxChannels)
	}
	if analyzed[0].Name != "general" {
		t.Errorf("first analyzed channel = %q, want the core channel first", analyzed[0].Name)
	}
	for _, channel := range analyzed {
		switch channel.ID {
		case 2, 3, 4:
			t.Errorf("channel %q should have been filtered out", channel.Name)
		}
	}
}

func TestHasChannelOverrideCategories(t *testing.T) {
	guild := makeGuild(nil)
	guild.Categories = []*models.CategorySnapshot{
		{ID: 80, Name: "Text Channels", OverwriteRoleIDs: map[int64]bool{55: true}},
	}

	analysis := NewChannelAnalysis(guild, nil)
	if !analysis.HasChannelOverride(55) {
		t.Error("category overwrite not detected")
	}
	if analysis.HasChannelOverride(56) {
		t.Error("override reported for a role with none")
	}
}
