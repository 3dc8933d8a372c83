package verify

import (
	"context"

	"gatekeeper/models"
	"gatekeeper/service"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/mock"
)

type mockSettingsService struct {
	mock.Mock
}

func (m *mockSettingsService) GetOrCreateSettings(ctx context.Context, guildID int64) (*models.GuildVerificationSettings, error) {
	args := m.Called(ctx, guildID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.GuildVerificationSettings), args.Error(1)
}

func (m *mockSettingsService) GetSettings(ctx context.Context, guildID int64) (*models.GuildVerificationSettings, error) {
	args := m.Called(ctx, guildID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.GuildVerificationSettings), args.Error(1)
}

func (m *mockSettingsService) SetVerifyMessage(ctx context.Context, guildID, actorID int64, message string) error {
	return m.Called(ctx, guildID, actorID, message).Error(0)
}

func (m *mockSettingsService) SetWrongMessage(ctx context.Context, guildID, actorID int64, message string) error {
	return m.Called(ctx, guildID, actorID, message).Error(0)
}

func (m *mockSettingsService) SetVerifyRole(ctx context.Context, guildID, actorID, roleID int64) error {
	return m.Called(ctx, guildID, actorID, roleID).Error(0)
}

func (m *mockSettingsService) SetMinTime(ctx context.Context, guildID, actorID, seconds int64) error {
	return m.Called(ctx, guildID, actorID, seconds).Error(0)
}

func (m *mockSettingsService) SetVerifyChannel(ctx context.Context, guildID, actorID, channelID int64) error {
	return m.Called(ctx, guildID, actorID, channelID).Error(0)
}

var _ service.VerifySettingsService = (*mockSettingsService)(nil)

type mockDirectory struct {
	mock.Mock
}

func (m *mockDirectory) ResolveRole(ctx context.Context, guildID, roleID int64) (*models.RoleRef, error) {
	args := m.Called(ctx, guildID, roleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RoleRef), args.Error(1)
}

func (m *mockDirectory) ResolveChannel(ctx context.Context, guildID, channelID int64) (*models.ChannelRef, error) {
	args := m.Called(ctx, guildID, channelID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ChannelRef), args.Error(1)
}

type mockPermissions struct {
	mock.Mock
}

func (m *mockPermissions) MemberPermissions(ctx context.Context, guildID, userID int64) (int64, []string, error) {
	args := m.Called(ctx, guildID, userID)
	roles, _ := args.Get(1).([]string)
	return args.Get(0).(int64), roles, args.Error(2)
}

type countingRecorder struct {
	commands []string
}

func (c *countingRecorder) RecordCommand(subcommand string) {
	c.commands = append(c.commands, subcommand)
}

// fakeResponder records replies. embedErr is returned from ReplyEmbed when set.
type fakeResponder struct {
	replies  []string
	errors   []string
	embeds   []*discordgo.MessageEmbed
	embedErr error
}

func (r *fakeResponder) Reply(ctx context.Context, content string) error {
	r.replies = append(r.replies, content)
	return nil
}

func (r *fakeResponder) ReplyEmbed(ctx context.Context, embed *discordgo.MessageEmbed) error {
	if r.embedErr != nil {
		return r.embedErr
	}
	r.embeds = append(r.embeds, embed)
	return nil
}

func (r *fakeResponder) ReplyError(ctx context.Context, content string) error {
	r.errors = append(r.errors, content)
	return nil
}
