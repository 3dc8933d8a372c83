package verify

import (
	"context"
	"fmt"

	"gatekeeper/bot/common"
	"gatekeeper/models"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

// buildStatusEmbed renders the current configuration. Unset role and channel are omitted,
// deleted ones are shown by ID. The embed is green only when both resolve.
func (h *Handler) buildStatusEmbed(ctx context.Context, settings *models.GuildVerificationSettings) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{Color: common.ColorWarning}
	roleOK, channelOK := false, false

	addField := func(name, value string) {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   name,
			Value:  value,
			Inline: true,
		})
	}

	addField("Verified", fmt.Sprintf("%d users", settings.VerifyCount))

	if settings.VerifyRoleID != nil {
		var label string
		label, roleOK = h.roleLabel(ctx, settings.GuildID, *settings.VerifyRoleID)
		addField("Role", label)
	}
	if settings.VerifyChannelID != nil {
		var label string
		label, channelOK = h.channelLabel(ctx, settings.GuildID, *settings.VerifyChannelID)
		addField("Channel", label)
	}

	addField("Min Time", fmt.Sprintf("%d secs", settings.VerifyMinTime))
	addField("Message", common.InlineCode(settings.VerifyMessage))

	if settings.VerifyWrongMsg != "" {
		addField("Wrong Msg", common.InlineCode(settings.VerifyWrongMsg))
	}

	if roleOK && channelOK {
		embed.Color = common.ColorSuccess
	}
	return embed
}

func (h *Handler) roleLabel(ctx context.Context, guildID, roleID int64) (string, bool) {
	role, err := h.directory.ResolveRole(ctx, guildID, roleID)
	if err != nil {
		log.WithFields(log.Fields{
			"guild_id": guildID,
			"role_id":  roleID,
			"error":    err,
		}).Debug("Verify role could not be resolved for status")
		return fmt.Sprintf("unknown role (%d)", roleID), false
	}
	return "@" + role.Name, true
}

func (h *Handler) channelLabel(ctx context.Context, guildID, channelID int64) (string, bool) {
	channel, err := h.directory.ResolveChannel(ctx, guildID, channelID)
	if err != nil {
		log.WithFields(log.Fields{
			"guild_id":   guildID,
			"channel_id": channelID,
			"error":      err,
		}).Debug("Verify channel could not be resolved for status")
		return fmt.Sprintf("unknown channel (%d)", channelID), false
	}
	return "#" + channel.Name, true
}
