package common

import (
	"github.com/bwmarrin/discordgo"
)

// adminPermissions grants access to the verify commands
const adminPermissions = discordgo.PermissionManageGuild | discordgo.PermissionAdministrator

// HasAdminAccess reports whether a member may run verify commands: Manage Guild,
// Administrator, or one of the configured admin roles
func HasAdminAccess(permissions int64, memberRoleIDs []string, adminRoleIDs []int64) bool {
	if permissions&adminPermissions != 0 {
		return true
	}
	for _, roleID := range memberRoleIDs {
		id, err := ParseSnowflake(roleID)
		if err != nil {
			continue
		}
		for _, adminRoleID := range adminRoleIDs {
			if id == adminRoleID {
				return true
			}
		}
	}
	return false
}

// GuildPermissions computes a member's guild-wide permissions from the guild's roles.
// Channel overwrites are not applied.
func GuildPermissions(guild *discordgo.Guild, userID string, memberRoleIDs []string) int64 {
	if guild.OwnerID == userID {
		return discordgo.PermissionAll
	}

	held := make(map[string]bool, len(memberRoleIDs)+1)
	held[guild.ID] = true // @everyone
	for _, id := range memberRoleIDs {
		held[id] = true
	}

	var perms int64
	for _, role := range guild.Roles {
		if held[role.ID] {
			perms |= role.Permissions
		}
	}

	if perms&discordgo.PermissionAdministrator != 0 {
		return discordgo.PermissionAll
	}
	return perms
}
