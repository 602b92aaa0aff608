package models

// Read-only snapshot of guild state delivered by the platform gateway
// collaborator. The permission core never mutates these; it only reads role
// names, positions, permission bits and channel overwrite tables when
// classifying roles and resolving checks.

// PermissionBits is the platform permission flag set carried by a role or a
// member's aggregate guild permissions.
type PermissionBits uint64

const (
	PermAdministrator PermissionBits = 1 << iota
	PermManageGuild
	PermManageRoles
	PermManageChannels
	PermKickMembers
	PermBanMembers
	PermModerateMembers
	PermManageMessages
	PermManageNicknames
	PermMuteMembers
	PermDeafenMembers
	PermMoveMembers
	PermCreatePrivateThreads
	PermCreatePublicThreads
	PermExternalEmojis
	PermExternalStickers
	PermAttachFiles
	PermEmbedLinks
	PermUseExternalEmojis
	PermChangeNickname
	PermSendMessages
)

// Has reports whether every flag in mask is set.
func (p PermissionBits) Has(mask PermissionBits) bool {
	return p&mask == mask
}

// None reports whether no permission flag is set at all.
func (p PermissionBits) None() bool {
	return p == 0
}

// RoleSnapshot is one guild role as seen by the platform.
type RoleSnapshot struct {
	ID          int64          `json:"id"`
	Name        string         `json:"name"`
	Position    int            `json:"position"`
	Permissions PermissionBits `json:"permissions"`
	MemberIDs   []int64        `json:"memberIds"`
	Managed     bool           `json:"managed"`       // bot-managed flag
	BotTag      bool           `json:"botTag"`        // role tag carries a bot id
	Integration bool           `json:"integration"`   // integration id or premium-subscriber tag
	IsEveryone  bool           `json:"isEveryone"`    // the guild's base @everyone role
}

// MemberCount is the number of members holding the role.
func (r *RoleSnapshot) MemberCount() int {
	return len(r.MemberIDs)
}

// HasMember reports whether the user holds this role.
func (r *RoleSnapshot) HasMember(userID int64) bool {
	for _, id := range r.MemberIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// ChannelSnapshot is one guild channel, with the subset of permission state
// the classifier cares about: which roles have explicit overwrites, and
// whether the default role can still speak in it.
type ChannelSnapshot struct {
	ID                 int64          `json:"id"`
	Name               string         `json:"name"`
	CategoryID         int64          `json:"categoryId,omitempty"` // 0 when uncategorized
	OverwriteRoleIDs   map[int64]bool `json:"overwriteRoleIds,omitempty"`
	ReadOnlyForDefault bool           `json:"readOnlyForDefault"`
}

// CategorySnapshot is a channel category with its own overwrite table.
type CategorySnapshot struct {
	ID               int64          `json:"id"`
	Name             string         `json:"name"`
	Position         int            `json:"position"`
	OverwriteRoleIDs map[int64]bool `json:"overwriteRoleIds,omitempty"`
}

// MemberSnapshot is one guild member with their aggregate permissions.
type MemberSnapshot struct {
	ID               int64          `json:"id"`
	Bot              bool           `json:"bot"`
	RoleIDs          []int64        `json:"roleIds"`
	GuildPermissions PermissionBits `json:"guildPermissions"`
}

// HasRole reports whether the member holds the given role.
func (m *MemberSnapshot) HasRole(roleID int64) bool {
	for _, id := range m.RoleIDs {
		if id == roleID {
			return true
		}
	}
	return false
}

// GuildSnapshot is the full read-only view of a guild at analysis time.
// Categories and the channels within each category keep the guild-defined
// ordering.
type GuildSnapshot struct {
	ID          int64               `json:"id"`
	Name        string              `json:"name"`
	OwnerID     int64               `json:"ownerId"`
	MemberCount int                 `json:"memberCount"`
	Roles       []*RoleSnapshot     `json:"roles"`
	Members     []*MemberSnapshot   `json:"members,omitempty"`
	Channels    []*ChannelSnapshot  `json:"channels"`
	Categories  []*CategorySnapshot `json:"categories"`
}

// Member returns the member with the given id, or nil. Members may be a
// partial list; absence here does not mean absence from the guild.
func (g *GuildSnapshot) Member(userID int64) *MemberSnapshot {
	for _, member := range g.Members {
		if member.ID == userID {
			return member
		}
	}
	return nil
}

// Channel returns the channel with the given id, or nil.
func (g *GuildSnapshot) Channel(channelID int64) *ChannelSnapshot {
	for _, channel := range g.Channels {
		if channel.ID == channelID {
			return channel
		}
	}
	return nil
}

// Role returns the role with the given id, or nil.
func (g *GuildSnapshot) Role(roleID int64) *RoleSnapshot {
	for _, role := range g.Roles {
		if role.ID == roleID {
			return role
		}
	}
	return nil
}

// Category returns the category with the given id, or nil.
func (g *GuildSnapshot) Category(categoryID int64) *CategorySnapshot {
	for _, category := range g.Categories {
		if category.ID == categoryID {
			return category
		}
	}
	return nil
}

// ChannelsIn returns the channels belonging to a category, in guild order.
func (g *GuildSnapshot) ChannelsIn(categoryID int64) []*ChannelSnapshot {
	var channels []*ChannelSnapshot
	for _, channel := range g.Channels {
		if channel.CategoryID == categoryID {
			channels = append(channels, channel)
		}
	}
	return channels
}
