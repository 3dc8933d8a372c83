package common

import (
	"context"

	"github.com/bwmarrin/discordgo"
)

// Responder replies to whoever issued a command, over a slash interaction or a channel
type Responder interface {
	Reply(ctx context.Context, content string) error
	ReplyEmbed(ctx context.Context, embed *discordgo.MessageEmbed) error
	ReplyError(ctx context.Context, content string) error
}

// InteractionResponder answers a slash command interaction
type InteractionResponder struct {
	session     *discordgo.Session
	interaction *discordgo.InteractionCreate
}

// NewInteractionResponder creates a responder for one interaction
func NewInteractionResponder(s *discordgo.Session, i *discordgo.InteractionCreate) *InteractionResponder {
	return &InteractionResponder{session: s, interaction: i}
}

func (r *InteractionResponder) respond(ctx context.Context, data *discordgo.InteractionResponseData) error {
	err := r.session.InteractionRespond(r.interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	}, discordgo.WithContext(ctx))
	return MapDiscordError(err, "failed to respond to interaction")
}

// Reply sends a public text response
func (r *InteractionResponder) Reply(ctx context.Context, content string) error {
	return r.respond(ctx, &discordgo.InteractionResponseData{Content: content})
}

// ReplyEmbed sends an embed as an interaction response
func (r *InteractionResponder) ReplyEmbed(ctx context.Context, embed *discordgo.MessageEmbed) error {
	return r.respond(ctx, &discordgo.InteractionResponseData{
		Embeds: []*discordgo.MessageEmbed{embed},
	})
}

// ReplyError sends an ephemeral error response
func (r *InteractionResponder) ReplyError(ctx context.Context, content string) error {
	return r.respond(ctx, &discordgo.InteractionResponseData{
		Content: "❌ " + content,
		Flags:   discordgo.MessageFlagsEphemeral,
	})
}

// ChannelResponder answers a prefix command in the channel it was posted in
type ChannelResponder struct {
	session   *discordgo.Session
	channelID string
}

// NewChannelResponder creates a responder posting to channelID
func NewChannelResponder(s *discordgo.Session, channelID string) *ChannelResponder {
	return &ChannelResponder{session: s, channelID: channelID}
}

// Reply posts a plain message
func (r *ChannelResponder) Reply(ctx context.Context, content string) error {
	_, err := r.session.ChannelMessageSend(r.channelID, content, discordgo.WithContext(ctx))
	return MapDiscordError(err, "failed to send message")
}

// ReplyEmbed posts an embed
func (r *ChannelResponder) ReplyEmbed(ctx context.Context, embed *discordgo.MessageEmbed) error {
	_, err := r.session.ChannelMessageSendEmbed(r.channelID, embed, discordgo.WithContext(ctx))
	return MapDiscordError(err, "failed to send embed")
}

// ReplyError posts an error message
func (r *ChannelResponder) ReplyError(ctx context.Context, content string) error {
	return r.Reply(ctx, "❌ "+content)
}
