package models

import (
	"time"
)

// InboundMessage is a chat message as seen by the verification gate.
// Built from the gateway event and never persisted.
type InboundMessage struct {
	ID             int64
	GuildID        int64 // 0 for direct messages
	ChannelID      int64
	AuthorID       int64
	AuthorIsBot    bool
	AuthorIsMember bool      // Author resolved to a guild member
	AuthorJoinedAt time.Time // Zero when the member record is unavailable
	Content        string
	MentionIDs     []int64
}

// IsDirectMessage reports whether the message arrived outside a guild
func (m *InboundMessage) IsDirectMessage() bool {
	return m.GuildID == 0
}

// ChannelMessage is a recent message in a channel, as fetched for cleanup
type ChannelMessage struct {
	ID         int64
	AuthorID   int64
	MentionIDs []int64
	Timestamp  time.Time
}

// Mentions reports whether userID is among the message's user mentions
func (m ChannelMessage) Mentions(userID int64) bool {
	for _, id := range m.MentionIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// RoleRef is a resolved guild role
type RoleRef struct {
	ID   int64
	Name string
}

// ChannelRef is a resolved guild channel
type ChannelRef struct {
	ID   int64
	Name string
}
