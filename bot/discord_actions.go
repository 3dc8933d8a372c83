package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gatekeeper/bot/common"
	"gatekeeper/models"
	"gatekeeper/service"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

// bulkDeleteMaxAge is how old a message may be for the bulk delete endpoint.
// Discord's limit is 14 days; the margin covers clock skew.
const bulkDeleteMaxAge = 14*24*time.Hour - time.Minute

// DiscordActions implements service.GuildActions over a discordgo session.
// Lookups read the gateway state first and fall back to REST.
type DiscordActions struct {
	session *discordgo.Session
	now     func() time.Time
}

// NewDiscordActions creates the Discord adapter for the verification flow
func NewDiscordActions(session *discordgo.Session) *DiscordActions {
	return &DiscordActions{session: session, now: time.Now}
}

var _ service.GuildActions = (*DiscordActions)(nil)

func (a *DiscordActions) botUserID() (string, error) {
	if a.session.State == nil || a.session.State.User == nil {
		return "", errors.New("bot user not ready")
	}
	return a.session.State.User.ID, nil
}

func (a *DiscordActions) guild(ctx context.Context, guildID string) (*discordgo.Guild, error) {
	if g, err := a.session.State.Guild(guildID); err == nil && len(g.Roles) > 0 {
		return g, nil
	}
	g, err := a.session.Guild(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, common.MapDiscordError(err, "failed to fetch guild")
	}
	return g, nil
}

// member returns nil without error when the user is not in the guild
func (a *DiscordActions) member(ctx context.Context, guildID, userID string) (*discordgo.Member, error) {
	if m, err := a.session.State.Member(guildID, userID); err == nil {
		return m, nil
	}
	m, err := a.session.GuildMember(guildID, userID, discordgo.WithContext(ctx))
	if err != nil {
		if common.IsNotFound(err) {
			return nil, nil
		}
		return nil, common.MapDiscordError(err, "failed to fetch guild member")
	}
	return m, nil
}

// BotCanManageRoles reports whether the bot holds Manage Roles guild-wide
func (a *DiscordActions) BotCanManageRoles(ctx context.Context, guildID int64) (bool, error) {
	botID, err := a.botUserID()
	if err != nil {
		return false, err
	}
	perms, _, err := a.permissions(ctx, common.FormatSnowflake(guildID), botID)
	if err != nil {
		return false, err
	}
	return perms&discordgo.PermissionManageRoles != 0, nil
}

// MemberPermissions computes a member's guild-wide permissions and role IDs
func (a *DiscordActions) MemberPermissions(ctx context.Context, guildID, userID int64) (int64, []string, error) {
	return a.permissions(ctx, common.FormatSnowflake(guildID), common.FormatSnowflake(userID))
}

func (a *DiscordActions) permissions(ctx context.Context, guildID, userID string) (int64, []string, error) {
	g, err := a.guild(ctx, guildID)
	if err != nil {
		return 0, nil, err
	}
	m, err := a.member(ctx, guildID, userID)
	if err != nil {
		return 0, nil, err
	}
	if m == nil {
		return 0, nil, nil
	}
	return common.GuildPermissions(g, userID, m.Roles), m.Roles, nil
}

// ResolveRole looks up a role in the guild
func (a *DiscordActions) ResolveRole(ctx context.Context, guildID, roleID int64) (*models.RoleRef, error) {
	gID := common.FormatSnowflake(guildID)
	rID := common.FormatSnowflake(roleID)

	if role, err := a.session.State.Role(gID, rID); err == nil {
		return &models.RoleRef{ID: roleID, Name: role.Name}, nil
	}

	roles, err := a.session.GuildRoles(gID, discordgo.WithContext(ctx))
	if err != nil {
		if common.IsNotFound(err) {
			return nil, service.ErrRoleNotFound
		}
		return nil, common.MapDiscordError(err, "failed to fetch guild roles")
	}
	for _, role := range roles {
		if role.ID == rID {
			return &models.RoleRef{ID: roleID, Name: role.Name}, nil
		}
	}
	return nil, service.ErrRoleNotFound
}

// ResolveChannel looks up a channel and checks it belongs to the guild
func (a *DiscordActions) ResolveChannel(ctx context.Context, guildID, channelID int64) (*models.ChannelRef, error) {
	cID := common.FormatSnowflake(channelID)

	channel, err := a.session.State.Channel(cID)
	if err != nil {
		channel, err = a.session.Channel(cID, discordgo.WithContext(ctx))
		if err != nil {
			if common.IsNotFound(err) || common.IsForbidden(err) {
				return nil, service.ErrChannelNotFound
			}
			return nil, common.MapDiscordError(err, "failed to fetch channel")
		}
	}

	if channel.GuildID != common.FormatSnowflake(guildID) {
		return nil, service.ErrChannelNotFound
	}
	return &models.ChannelRef{ID: channelID, Name: channel.Name}, nil
}

// GrantRole adds roleID to the member
func (a *DiscordActions) GrantRole(ctx context.Context, guildID, userID, roleID int64) error {
	err := a.session.GuildMemberRoleAdd(
		common.FormatSnowflake(guildID),
		common.FormatSnowflake(userID),
		common.FormatSnowflake(roleID),
		discordgo.WithContext(ctx),
	)
	return common.MapDiscordError(err, "failed to add role")
}

// SendMessage posts content, truncated to Discord's message limit
func (a *DiscordActions) SendMessage(ctx context.Context, channelID int64, content string) error {
	if runes := []rune(content); len(runes) > common.MaxMessageLength {
		content = string(runes[:common.MaxMessageLength])
	}
	_, err := a.session.ChannelMessageSend(common.FormatSnowflake(channelID), content, discordgo.WithContext(ctx))
	return common.MapDiscordError(err, "failed to send message")
}

// RecentMessages returns up to limit of the newest messages, newest first
func (a *DiscordActions) RecentMessages(ctx context.Context, channelID int64, limit int) ([]models.ChannelMessage, error) {
	if limit <= 0 || limit > common.MaxFetchMessages {
		limit = common.MaxFetchMessages
	}

	messages, err := a.session.ChannelMessages(common.FormatSnowflake(channelID), limit, "", "", "", discordgo.WithContext(ctx))
	if err != nil {
		return nil, common.MapDiscordError(err, "failed to fetch messages")
	}

	result := make([]models.ChannelMessage, 0, len(messages))
	for _, m := range messages {
		msg, err := newChannelMessage(m)
		if err != nil {
			log.WithError(err).WithField("message_id", m.ID).Debug("Skipping message with unparseable IDs")
			continue
		}
		result = append(result, msg)
	}
	return result, nil
}

// DeleteMessages removes messages, bulk deleting the ones young enough for it
func (a *DiscordActions) DeleteMessages(ctx context.Context, channelID int64, messages []models.ChannelMessage) error {
	cID := common.FormatSnowflake(channelID)
	batches, singles := partitionForDeletion(messages, a.now())

	for _, batch := range batches {
		if err := a.session.ChannelMessagesBulkDelete(cID, batch, discordgo.WithContext(ctx)); err != nil {
			return common.MapDiscordError(err, "failed to bulk delete messages")
		}
	}

	for _, id := range singles {
		err := a.session.ChannelMessageDelete(cID, id, discordgo.WithContext(ctx))
		if err == nil || common.IsNotFound(err) {
			continue
		}
		return common.MapDiscordError(err, "failed to delete message")
	}
	return nil
}

// MemberHasRole reports whether userID is a member holding roleID
func (a *DiscordActions) MemberHasRole(ctx context.Context, guildID, userID, roleID int64) (bool, error) {
	m, err := a.member(ctx, common.FormatSnowflake(guildID), common.FormatSnowflake(userID))
	if err != nil || m == nil {
		return false, err
	}
	rID := common.FormatSnowflake(roleID)
	for _, id := range m.Roles {
		if id == rID {
			return true, nil
		}
	}
	return false, nil
}

// partitionForDeletion splits messages into bulk delete batches of MinBulkDelete to MaxBulkDelete IDs
// and IDs that must be deleted one at a time
func partitionForDeletion(messages []models.ChannelMessage, now time.Time) (batches [][]string, singles []string) {
	var recent []string
	cutoff := now.Add(-bulkDeleteMaxAge)

	for _, m := range messages {
		id := common.FormatSnowflake(m.ID)
		if m.Timestamp.After(cutoff) {
			recent = append(recent, id)
		} else {
			singles = append(singles, id)
		}
	}

	for len(recent) > 0 {
		n := min(len(recent), common.MaxBulkDelete)
		batch := recent[:n]
		recent = recent[n:]
		if len(batch) < common.MinBulkDelete {
			singles = append(singles, batch...)
			continue
		}
		batches = append(batches, batch)
	}
	return batches, singles
}

func newChannelMessage(m *discordgo.Message) (models.ChannelMessage, error) {
	id, err := common.ParseSnowflake(m.ID)
	if err != nil {
		return models.ChannelMessage{}, fmt.Errorf("invalid message ID %q: %w", m.ID, err)
	}

	msg := models.ChannelMessage{ID: id, Timestamp: m.Timestamp}
	if m.Author != nil {
		if msg.AuthorID, err = common.ParseSnowflake(m.Author.ID); err != nil {
			return models.ChannelMessage{}, fmt.Errorf("invalid author ID %q: %w", m.Author.ID, err)
		}
	}
	msg.MentionIDs = mentionIDs(m.Mentions)
	return msg, nil
}

func mentionIDs(users []*discordgo.User) []int64 {
	ids := make([]int64, 0, len(users))
	for _, u := range users {
		if id, err := common.ParseSnowflake(u.ID); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}
