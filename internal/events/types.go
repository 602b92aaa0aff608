package events

import (
	"encoding/json"
	"time"
)

type EventType string

// Outbound routing keys mirror the audit action names so consumers can bind
// selectively.
const (
	GuildConfigured    EventType = "guild.configured"
	RoleLevelSet       EventType = "role.level.set"
	RoleTypeSet        EventType = "role.type.set"
	NodeRequirementSet EventType = "node.requirement.set"
	OverrideGranted    EventType = "override.granted"
	OverrideRemoved    EventType = "override.removed"
	ConfigReset        EventType = "config.reset"
)

// Inbound guild lifecycle events from the gateway service.
const (
	GuildRolesChanged EventType = "guild.roles.changed"
	GuildDeleted      EventType = "guild.deleted"
)

// PermissionEvent wraps an audit payload for the bus.
type PermissionEvent struct {
	Type      EventType `json:"type"`
	Timestamp int64     `json:"timestamp"`
	Payload   any       `json:"payload"`
}

func NewPermissionEvent(eventType EventType, payload any) *PermissionEvent {
	return &PermissionEvent{
		Type:      eventType,
		Timestamp: time.Now().Unix(),
		Payload:   payload,
	}
}

func (e *PermissionEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// GuildEvent is the inbound gateway notification shape.
type GuildEvent struct {
	Type      EventType `json:"type"`
	GuildID   int64     `json:"guildId"`
	Timestamp int64     `json:"timestamp"`
}

func GuildEventFromJSON(data []byte) (*GuildEvent, error) {
	var event GuildEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, err
	}
	return &event, nil
}
