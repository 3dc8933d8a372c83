package verify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gatekeeper/bot/common"
	"gatekeeper/models"
	"gatekeeper/service"

	log "github.com/sirupsen/logrus"
)

// Subcommand names shared by the slash and prefix transports
const (
	SubMessage  = "message"
	SubWrongMsg = "wrongmsg"
	SubRole     = "role"
	SubMinTime  = "mintime"
	SubChannel  = "channel"
	SubStatus   = "status"
)

// Confirmation replies
const (
	replyMessageSet     = "Verify message set."
	replyWrongMsgSet    = "Wrong verify message reply message set."
	replyRoleSet        = "Verify role set to `%s`"
	replyMinTimeSet     = "Verify minimum time set to %d seconds"
	replyMinTimeBelow   = "Verify minimum time was below 0 seconds"
	replyChannelSet     = "Verify message channel set to `%s`"
	replyEmbedForbidden = "I need the `Embed links` permission to send a purge status."
)

// Request is one parsed verify subcommand
type Request struct {
	GuildID    int64
	ActorID    int64
	Subcommand string
	Text       string // message and wrongmsg
	RoleID     int64
	ChannelID  int64
	Seconds    int64
}

// GuildDirectory resolves role and channel references for replies
type GuildDirectory interface {
	ResolveRole(ctx context.Context, guildID, roleID int64) (*models.RoleRef, error)
	ResolveChannel(ctx context.Context, guildID, channelID int64) (*models.ChannelRef, error)
}

// CommandRecorder counts handled subcommands
type CommandRecorder interface {
	RecordCommand(subcommand string)
}

// Handler executes verify subcommands independently of the transport they arrived on
type Handler struct {
	settings  service.VerifySettingsService
	directory GuildDirectory
	recorder  CommandRecorder
}

// NewHandler creates a handler. recorder may be nil.
func NewHandler(settings service.VerifySettingsService, directory GuildDirectory, recorder CommandRecorder) *Handler {
	return &Handler{
		settings:  settings,
		directory: directory,
		recorder:  recorder,
	}
}

// Execute applies req and replies through r
func (h *Handler) Execute(ctx context.Context, req Request, r common.Responder) {
	fields := log.Fields{
		"guild_id":   req.GuildID,
		"user_id":    req.ActorID,
		"subcommand": req.Subcommand,
	}

	if h.recorder != nil {
		h.recorder.RecordCommand(req.Subcommand)
	}

	var err error
	switch req.Subcommand {
	case SubMessage:
		err = h.setMessage(ctx, req, r)
	case SubWrongMsg:
		err = h.setWrongMessage(ctx, req, r)
	case SubRole:
		err = h.setRole(ctx, req, r)
	case SubMinTime:
		err = h.setMinTime(ctx, req, r)
	case SubChannel:
		err = h.setChannel(ctx, req, r)
	case SubStatus:
		err = h.status(ctx, req, r)
	default:
		err = common.NewUserError(usage(), fmt.Sprintf("unknown verify subcommand %q", req.Subcommand))
	}

	if err != nil {
		common.HandleError(ctx, r, err, fields)
		return
	}
	log.WithFields(fields).Debug("Verify command handled")
}

func (h *Handler) setMessage(ctx context.Context, req Request, r common.Responder) error {
	if strings.TrimSpace(req.Text) == "" {
		return common.NewUserError("The verify message cannot be empty.", "empty verify message")
	}
	if err := h.settings.SetVerifyMessage(ctx, req.GuildID, req.ActorID, req.Text); err != nil {
		return common.NewSystemError(err, "failed to set verify message")
	}
	return h.reply(ctx, r, replyMessageSet)
}

func (h *Handler) setWrongMessage(ctx context.Context, req Request, r common.Responder) error {
	if err := h.settings.SetWrongMessage(ctx, req.GuildID, req.ActorID, req.Text); err != nil {
		return common.NewSystemError(err, "failed to set wrong verify message")
	}
	return h.reply(ctx, r, replyWrongMsgSet)
}

func (h *Handler) setRole(ctx context.Context, req Request, r common.Responder) error {
	role, err := h.directory.ResolveRole(ctx, req.GuildID, req.RoleID)
	if err != nil {
		if errors.Is(err, service.ErrRoleNotFound) {
			return common.NewUserError(fmt.Sprintf("Role `%d` not found.", req.RoleID), "unknown verify role")
		}
		return common.NewSystemError(err, "failed to resolve verify role")
	}
	if err := h.settings.SetVerifyRole(ctx, req.GuildID, req.ActorID, role.ID); err != nil {
		return common.NewSystemError(err, "failed to set verify role")
	}
	return h.reply(ctx, r, fmt.Sprintf(replyRoleSet, role.Name))
}

func (h *Handler) setMinTime(ctx context.Context, req Request, r common.Responder) error {
	err := h.settings.SetMinTime(ctx, req.GuildID, req.ActorID, req.Seconds)
	if errors.Is(err, service.ErrNegativeMinTime) {
		return h.reply(ctx, r, replyMinTimeBelow)
	}
	if err != nil {
		return common.NewSystemError(err, "failed to set verify minimum time")
	}
	return h.reply(ctx, r, fmt.Sprintf(replyMinTimeSet, req.Seconds))
}

func (h *Handler) setChannel(ctx context.Context, req Request, r common.Responder) error {
	channel, err := h.directory.ResolveChannel(ctx, req.GuildID, req.ChannelID)
	if err != nil {
		if errors.Is(err, service.ErrChannelNotFound) {
			return common.NewUserError(fmt.Sprintf("Channel `%d` not found.", req.ChannelID), "unknown verify channel")
		}
		return common.NewSystemError(err, "failed to resolve verify channel")
	}
	if err := h.settings.SetVerifyChannel(ctx, req.GuildID, req.ActorID, channel.ID); err != nil {
		return common.NewSystemError(err, "failed to set verify channel")
	}
	return h.reply(ctx, r, fmt.Sprintf(replyChannelSet, channel.Name))
}

func (h *Handler) status(ctx context.Context, req Request, r common.Responder) error {
	settings, err := h.settings.GetOrCreateSettings(ctx, req.GuildID)
	if err != nil {
		return common.NewSystemError(err, "failed to load verification settings")
	}

	embed := h.buildStatusEmbed(ctx, settings)
	err = r.ReplyEmbed(ctx, embed)
	if errors.Is(err, service.ErrMissingPermissions) {
		return h.reply(ctx, r, replyEmbedForbidden)
	}
	if err != nil {
		return fmt.Errorf("failed to send status embed: %w", err)
	}
	return nil
}

func (h *Handler) reply(ctx context.Context, r common.Responder, content string) error {
	if err := r.Reply(ctx, content); err != nil {
		return fmt.Errorf("failed to send reply: %w", err)
	}
	return nil
}

func usage() string {
	return "Usage: verify <message|wrongmsg|role|mintime|channel|status> [value]"
}
