package events

import (
	"time"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTypeMemberVerified        EventType = "member_verified"
	EventTypeVerificationRejected  EventType = "verification_rejected"
	EventTypeVerificationIgnored   EventType = "verification_ignored"
	EventTypeMessagesPurged        EventType = "messages_purged"
	EventTypeVerifySettingsChanged EventType = "verify_settings_changed"
)

// AllEventTypes lists every event type the bot emits
func AllEventTypes() []EventType {
	return []EventType{
		EventTypeMemberVerified,
		EventTypeVerificationRejected,
		EventTypeVerificationIgnored,
		EventTypeMessagesPurged,
		EventTypeVerifySettingsChanged,
	}
}

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// MemberVerifiedEvent is published once a member passed the gate and was granted the role
type MemberVerifiedEvent struct {
	GuildID     int64     `json:"guild_id,string"`
	ChannelID   int64     `json:"channel_id,string"`
	UserID      int64     `json:"user_id,string"`
	RoleID      int64     `json:"role_id,string"`
	VerifyCount int64     `json:"verify_count"`
	VerifiedAt  time.Time `json:"verified_at"`
}

func (e MemberVerifiedEvent) Type() EventType {
	return EventTypeMemberVerified
}

// VerificationRejectedEvent is published when an eligible message did not match the phrase
type VerificationRejectedEvent struct {
	GuildID   int64 `json:"guild_id,string"`
	ChannelID int64 `json:"channel_id,string"`
	UserID    int64 `json:"user_id,string"`
	Replied   bool  `json:"replied"`
}

func (e VerificationRejectedEvent) Type() EventType {
	return EventTypeVerificationRejected
}

// VerificationIgnoredEvent is published when a message in the verification channel was dropped
// before content matching
type VerificationIgnoredEvent struct {
	GuildID   int64  `json:"guild_id,string"`
	ChannelID int64  `json:"channel_id,string"`
	UserID    int64  `json:"user_id,string"`
	Reason    string `json:"reason"`
}

func (e VerificationIgnoredEvent) Type() EventType {
	return EventTypeVerificationIgnored
}

// MessagesPurgedEvent is published after cleanup ran for a verified member
type MessagesPurgedEvent struct {
	GuildID   int64 `json:"guild_id,string"`
	ChannelID int64 `json:"channel_id,string"`
	UserID    int64 `json:"user_id,string"`
	Deleted   int   `json:"deleted"`
	Forbidden bool  `json:"forbidden"`
}

func (e MessagesPurgedEvent) Type() EventType {
	return EventTypeMessagesPurged
}

// VerifySettingsChangedEvent is published when an admin changes one verification setting
type VerifySettingsChangedEvent struct {
	GuildID   int64  `json:"guild_id,string"`
	Field     string `json:"field"`
	ChangedBy int64  `json:"changed_by,string"`
}

func (e VerifySettingsChangedEvent) Type() EventType {
	return EventTypeVerifySettingsChanged
}
