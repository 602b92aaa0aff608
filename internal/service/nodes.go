package service

import (
	"log"

	"permission_service/internal/models"
)

// DefaultNodes is the built-in permission node catalog registered at
// startup. Guilds tune required levels per node; the defaults here are the
// global fallback.
func DefaultNodes() []*models.PermissionNode {
	return []*models.PermissionNode{
		{Name: "basic.ping", DefaultLevel: models.LevelEveryone, Description: "Use ping command"},
		{Name: "basic.info", DefaultLevel: models.LevelEveryone, Description: "View bot information"},
		{Name: "basic.help", DefaultLevel: models.LevelEveryone, Description: "View help system"},
		{Name: "basic.avatar", DefaultLevel: models.LevelEveryone, Description: "View user avatars"},
		{Name: "basic.uptime", DefaultLevel: models.LevelEveryone, Description: "View bot uptime"},

		{Name: "utility.userinfo", DefaultLevel: models.LevelMember, Description: "View user information"},
		{Name: "utility.serverinfo", DefaultLevel: models.LevelMember, Description: "View server information"},
		{Name: "utility.roleinfo", DefaultLevel: models.LevelMember, Description: "View role information"},

		{Name: "moderation.warn", DefaultLevel: models.LevelModerator, Description: "Warn members"},
		{Name: "moderation.mute", DefaultLevel: models.LevelModerator, Description: "Mute members"},
		{Name: "moderation.kick", DefaultLevel: models.LevelModerator, Description: "Kick members"},
		{Name: "moderation.ban", DefaultLevel: models.LevelModerator, Description: "Ban members"},

		{Name: "moderation.mass_ban", DefaultLevel: models.LevelLeadMod, Description: "Mass ban members"},
		{Name: "moderation.lockdown", DefaultLevel: models.LevelLeadMod, Description: "Lock down channels"},
		{Name: "moderation.purge", DefaultLevel: models.LevelLeadMod, Description: "Purge messages"},

		{Name: "admin.settings", DefaultLevel: models.LevelAdmin, Description: "Modify bot settings"},
		{Name: "admin.permissions", DefaultLevel: models.LevelAdmin, Description: "View permissions"},
		{Name: "admin.reload", DefaultLevel: models.LevelAdmin, Description: "Reload bot components"},

		{Name: "admin.server_config", DefaultLevel: models.LevelLeadAdmin, Description: "Configure server settings"},
		{Name: "admin.audit_logs", DefaultLevel: models.LevelLeadAdmin, Description: "View audit logs"},
		{Name: "admin.permission_management", DefaultLevel: models.LevelLeadAdmin, Description: "Manage permission system"},

		{Name: "owner.shutdown", DefaultLevel: models.LevelOwner, Description: "Shutdown the bot"},
		{Name: "owner.eval", DefaultLevel: models.LevelBotOwner, Description: "Execute code"},
	}
}

// RegisterDefaultNodes loads the built-in catalog into the manager.
func (m *PermissionManager) RegisterDefaultNodes() {
	for _, node := range DefaultNodes() {
		if err := m.RegisterNode(node); err != nil {
			log.Printf("Skipping default node %q: %v", node.Name, err)
		}
	}
	log.Printf("Registered %d default permission nodes", len(DefaultNodes()))
}
