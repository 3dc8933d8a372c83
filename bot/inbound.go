package bot

import (
	"context"
	"fmt"

	"gatekeeper/bot/common"
	"gatekeeper/models"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

// authorMember returns the guild member who wrote m, or nil for DMs, webhooks and departed users
func (b *Bot) authorMember(ctx context.Context, m *discordgo.MessageCreate) *discordgo.Member {
	if m.GuildID == "" || m.WebhookID != "" || m.Author == nil {
		return nil
	}
	// Gateway message events carry a partial member with JoinedAt set
	if m.Member != nil {
		return m.Member
	}

	member, err := b.actions.member(ctx, m.GuildID, m.Author.ID)
	if err != nil {
		log.WithFields(log.Fields{
			"guild_id": m.GuildID,
			"user_id":  m.Author.ID,
		}).WithError(err).Debug("Failed to resolve message author as member")
		return nil
	}
	return member
}

// newInboundMessage converts a gateway message into the gate's view of it.
// member is nil when the author is not a guild member.
func newInboundMessage(m *discordgo.MessageCreate, member *discordgo.Member) (*models.InboundMessage, error) {
	msg := &models.InboundMessage{
		Content:        m.Content,
		AuthorIsMember: member != nil,
		MentionIDs:     mentionIDs(m.Mentions),
	}

	var err error
	if msg.ID, err = common.ParseSnowflake(m.ID); err != nil {
		return nil, fmt.Errorf("invalid message ID %q: %w", m.ID, err)
	}
	if msg.ChannelID, err = common.ParseSnowflake(m.ChannelID); err != nil {
		return nil, fmt.Errorf("invalid channel ID %q: %w", m.ChannelID, err)
	}
	if m.GuildID != "" {
		if msg.GuildID, err = common.ParseSnowflake(m.GuildID); err != nil {
			return nil, fmt.Errorf("invalid guild ID %q: %w", m.GuildID, err)
		}
	}
	if m.Author != nil {
		msg.AuthorIsBot = m.Author.Bot
		if msg.AuthorID, err = common.ParseSnowflake(m.Author.ID); err != nil {
			return nil, fmt.Errorf("invalid author ID %q: %w", m.Author.ID, err)
		}
	}
	if member != nil {
		msg.AuthorJoinedAt = member.JoinedAt
	}

	return msg, nil
}
