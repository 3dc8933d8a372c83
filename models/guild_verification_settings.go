package models

import (
	"math"
	"time"
)

// Defaults applied when a guild is first seen
const (
	DefaultVerifyMessage  = "I agree"
	DefaultVerifyMinTime  = int64(60)
	DefaultVerifyWrongMsg = ""
)

// GuildVerificationSettings represents the per-guild verification gate configuration
type GuildVerificationSettings struct {
	GuildID         int64     `db:"guild_id" json:"guild_id,string"`
	VerifyMessage   string    `db:"verify_message" json:"verify_message"`        // Exact phrase a member must post
	VerifyCount     int64     `db:"verify_count" json:"verify_count"`            // Only ever incremented
	VerifyRoleID    *int64    `db:"verify_role_id" json:"verify_role_id,string"` // Nullable - role granted on success
	VerifyChannelID *int64    `db:"verify_channel_id" json:"verify_channel_id,string"`
	VerifyMinTime   int64     `db:"verify_min_time" json:"verify_min_time"` // Seconds a member must have been in the guild
	VerifyWrongMsg  string    `db:"verify_wrong_msg" json:"verify_wrong_msg"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// NewDefaultGuildVerificationSettings returns an unsaved settings row holding the defaults
func NewDefaultGuildVerificationSettings(guildID int64) *GuildVerificationSettings {
	return &GuildVerificationSettings{
		GuildID:        guildID,
		VerifyMessage:  DefaultVerifyMessage,
		VerifyMinTime:  DefaultVerifyMinTime,
		VerifyWrongMsg: DefaultVerifyWrongMsg,
	}
}

// HasRole reports whether a verification role is configured
func (s *GuildVerificationSettings) HasRole() bool {
	return s.VerifyRoleID != nil
}

// HasChannel reports whether a verification channel is configured
func (s *GuildVerificationSettings) HasChannel() bool {
	return s.VerifyChannelID != nil
}

// IsVerifyChannel reports whether channelID is the configured verification channel.
// An unset channel never matches.
func (s *GuildVerificationSettings) IsVerifyChannel(channelID int64) bool {
	return s.VerifyChannelID != nil && *s.VerifyChannelID == channelID
}

// maxMinTimeSeconds is the largest mintime that fits in a time.Duration
const maxMinTimeSeconds = int64(math.MaxInt64 / int64(time.Second))

// MinTime returns the minimum membership age as a duration.
// Values beyond the range of time.Duration saturate at the maximum.
func (s *GuildVerificationSettings) MinTime() time.Duration {
	if s.VerifyMinTime > maxMinTimeSeconds {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(s.VerifyMinTime) * time.Second
}
