package testutil

import (
	"time"

	"gatekeeper/models"
)

// CreateTestSettings creates verification settings with default values
func CreateTestSettings(guildID int64) *models.GuildVerificationSettings {
	settings := models.NewDefaultGuildVerificationSettings(guildID)
	now := time.Now()
	settings.CreatedAt = now
	settings.UpdatedAt = now
	return settings
}

// CreateConfiguredSettings creates settings with a role and channel assigned
func CreateConfiguredSettings(guildID, roleID, channelID int64, message string) *models.GuildVerificationSettings {
	settings := CreateTestSettings(guildID)
	settings.VerifyRoleID = &roleID
	settings.VerifyChannelID = &channelID
	settings.VerifyMessage = message
	return settings
}
