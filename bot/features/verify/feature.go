package verify

import (
	"context"
	"time"

	"gatekeeper/bot/common"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

// PermissionLookup computes a member's guild permissions for the prefix transport
type PermissionLookup interface {
	MemberPermissions(ctx context.Context, guildID, userID int64) (permissions int64, roleIDs []string, err error)
}

// Feature wires the verify admin commands to slash interactions and prefix messages
type Feature struct {
	handler      *Handler
	permissions  PermissionLookup
	prefix       string
	adminRoleIDs []int64
	timeout      time.Duration
}

// NewFeature creates a new verify feature instance
func NewFeature(handler *Handler, permissions PermissionLookup, prefix string, adminRoleIDs []int64, timeout time.Duration) *Feature {
	return &Feature{
		handler:      handler,
		permissions:  permissions,
		prefix:       prefix,
		adminRoleIDs: adminRoleIDs,
		timeout:      timeout,
	}
}

// Command returns the /verify slash command definition
func Command() *discordgo.ApplicationCommand {
	manageGuild := int64(discordgo.PermissionManageGuild)
	dmPermission := false

	return &discordgo.ApplicationCommand{
		Name:                     commandName,
		Description:              "Configure member verification",
		DefaultMemberPermissions: &manageGuild,
		DMPermission:             &dmPermission,
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        SubMessage,
				Description: "Set the exact message members must post",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "text",
						Description: "The verification message",
						Required:    true,
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        SubWrongMsg,
				Description: "Set the reply for a wrong message ({user} mentions the member, empty disables)",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "text",
						Description: "The reply template",
						Required:    false,
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        SubRole,
				Description: "Set the role granted on verification",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionRole,
						Name:        "role",
						Description: "The verified role",
						Required:    true,
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        SubMinTime,
				Description: "Set how long a member must have been in the server",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionInteger,
						Name:        "seconds",
						Description: "Minimum membership time in seconds",
						Required:    true,
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        SubChannel,
				Description: "Set the channel where members verify",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:         discordgo.ApplicationCommandOptionChannel,
						Name:         "channel",
						Description:  "The verification channel",
						Required:     true,
						ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildText},
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        SubStatus,
				Description: "Show the verification configuration and count",
			},
		},
	}
}

// HandleCommand handles the /verify slash command
func (f *Feature) HandleCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
	defer cancel()

	r := common.NewInteractionResponder(s, i)

	if i.GuildID == "" || i.Member == nil || i.Member.User == nil {
		common.HandleError(ctx, r, common.NewUserError("This command can only be used in a server.", "verify used outside a guild"), nil)
		return
	}

	if !common.HasAdminAccess(i.Member.Permissions, i.Member.Roles, f.adminRoleIDs) {
		common.HandleError(ctx, r, common.NewUserError("You need the Manage Server permission to use this command.", "verify denied"), log.Fields{
			"guild_id": i.GuildID,
			"user_id":  i.Member.User.ID,
		})
		return
	}

	req, err := requestFromInteraction(i.ApplicationCommandData())
	if err != nil {
		common.HandleError(ctx, r, err, log.Fields{"guild_id": i.GuildID})
		return
	}

	if req.GuildID, err = common.ParseSnowflake(i.GuildID); err != nil {
		common.HandleError(ctx, r, common.NewSystemError(err, "failed to parse guild ID"), nil)
		return
	}
	if req.ActorID, err = common.ParseSnowflake(i.Member.User.ID); err != nil {
		common.HandleError(ctx, r, common.NewSystemError(err, "failed to parse user ID"), nil)
		return
	}

	f.handler.Execute(ctx, req, r)
}

// requestFromInteraction reads the subcommand and its typed option
func requestFromInteraction(data discordgo.ApplicationCommandInteractionData) (Request, error) {
	if len(data.Options) == 0 {
		return Request{}, common.NewUserError(usage(), "verify interaction without subcommand")
	}

	sub := data.Options[0]
	req := Request{Subcommand: sub.Name}

	for _, opt := range sub.Options {
		switch opt.Name {
		case "text":
			req.Text = opt.StringValue()
		case "seconds":
			req.Seconds = opt.IntValue()
		case "role":
			id, err := common.ParseSnowflake(opt.RoleValue(nil, "").ID)
			if err != nil {
				return Request{}, common.NewUserError("Invalid role selected.", "unparseable role option")
			}
			req.RoleID = id
		case "channel":
			id, err := common.ParseSnowflake(opt.ChannelValue(nil).ID)
			if err != nil {
				return Request{}, common.NewUserError("Invalid channel selected.", "unparseable channel option")
			}
			req.ChannelID = id
		}
	}

	return req, nil
}

// HandleMessage runs a prefix verify command. It reports whether the message was one.
func (f *Feature) HandleMessage(s *discordgo.Session, m *discordgo.MessageCreate) bool {
	if m.Author == nil || m.Author.Bot || !isPrefixCommand(m.Content, f.prefix) {
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
	defer cancel()

	f.handlePrefix(ctx, m.Message, common.NewChannelResponder(s, m.ChannelID))
	return true
}

func (f *Feature) handlePrefix(ctx context.Context, m *discordgo.Message, r common.Responder) {
	fields := log.Fields{
		"guild_id":   m.GuildID,
		"channel_id": m.ChannelID,
		"user_id":    m.Author.ID,
		"message_id": m.ID,
	}

	if m.GuildID == "" {
		// Guild-only command: ignore in DMs
		return
	}

	guildID, err := common.ParseSnowflake(m.GuildID)
	if err != nil {
		log.WithFields(fields).WithError(err).Error("Failed to parse guild ID")
		return
	}
	actorID, err := common.ParseSnowflake(m.Author.ID)
	if err != nil {
		log.WithFields(fields).WithError(err).Error("Failed to parse user ID")
		return
	}

	perms, roles, err := f.permissions.MemberPermissions(ctx, guildID, actorID)
	if err != nil {
		log.WithFields(fields).WithError(err).Warn("Failed to look up member permissions for verify command")
		return
	}
	if !common.HasAdminAccess(perms, roles, f.adminRoleIDs) {
		log.WithFields(fields).Debug("Ignoring verify command from non-admin")
		return
	}

	req, err := parsePrefixRequest(m.Content, f.prefix)
	if err != nil {
		common.HandleError(ctx, r, err, fields)
		return
	}
	req.GuildID = guildID
	req.ActorID = actorID

	f.handler.Execute(ctx, req, r)
}
