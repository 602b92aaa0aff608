package models

import "github.com/golang-jwt/jwt/v5"

// AdminClaims is the token payload for the permission admin API. Level is
// the actor's universal permission level at issue time; guild ids bound the
// token to the guilds the actor may administer (empty means all).
type AdminClaims struct {
	jwt.RegisteredClaims
	Id       string          `json:"jti,omitempty"`
	ActorID  int64           `json:"actorId"`
	Level    PermissionLevel `json:"level"`
	GuildIDs []int64         `json:"guildIds,omitempty"`
}

// AllowsGuild reports whether the token covers the guild.
func (c *AdminClaims) AllowsGuild(guildID int64) bool {
	if len(c.GuildIDs) == 0 {
		return true
	}
	for _, id := range c.GuildIDs {
		if id == guildID {
			return true
		}
	}
	return false
}
