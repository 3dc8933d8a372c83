package bot

import (
	"context"
	"fmt"
	"time"

	"gatekeeper/bot/common"
	"gatekeeper/bot/features/verify"
	"gatekeeper/service"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

// Config holds bot configuration
type Config struct {
	Token          string
	CommandPrefix  string
	AdminRoleIDs   []int64
	HandlerTimeout time.Duration
}

// MetricsRecorder receives per-message and per-command counters. Implementations must be nil-safe.
type MetricsRecorder interface {
	RecordMessageEvaluated(decision, reason string)
	RecordCommand(subcommand string)
}

type Bot struct {
	config              Config
	session             *discordgo.Session
	actions             *DiscordActions
	verificationService service.VerificationService
	settingsService     service.VerifySettingsService
	verifyFeature       *verify.Feature
	metrics             MetricsRecorder
}

// NewSession creates the Discord session with the intents the gate needs.
// Message content and guild members are privileged intents and must be enabled for the application.
func NewSession(token string) (*discordgo.Session, error) {
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("error creating discord session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsMessageContent |
		discordgo.IntentsGuildMembers
	dg.SyncEvents = false
	dg.StateEnabled = true
	return dg, nil
}

// New wires the handlers, opens the gateway connection and registers the slash command.
// actions must wrap dg.
func New(config Config, dg *discordgo.Session, actions *DiscordActions, verificationService service.VerificationService, settingsService service.VerifySettingsService, metrics MetricsRecorder) (*Bot, error) {
	if config.HandlerTimeout <= 0 {
		config.HandlerTimeout = 30 * time.Second
	}

	handler := verify.NewHandler(settingsService, actions, metrics)

	bot := &Bot{
		config:              config,
		session:             dg,
		actions:             actions,
		verificationService: verificationService,
		settingsService:     settingsService,
		verifyFeature:       verify.NewFeature(handler, actions, config.CommandPrefix, config.AdminRoleIDs, config.HandlerTimeout),
		metrics:             metrics,
	}

	dg.AddHandler(bot.handleCommands)
	dg.AddHandler(bot.handleMessageCreate)
	dg.AddHandler(bot.handleGuildCreate)

	// Open websocket connection
	if err := dg.Open(); err != nil {
		return nil, fmt.Errorf("error opening connection: %w", err)
	}

	if err := bot.registerCommands(); err != nil {
		dg.Close()
		return nil, fmt.Errorf("error registering commands: %w", err)
	}

	log.WithFields(log.Fields{
		"user":   dg.State.User.Username,
		"prefix": config.CommandPrefix,
	}).Info("Bot connected")

	return bot, nil
}

func (b *Bot) Close() error {
	return b.session.Close()
}

func (b *Bot) registerCommands() error {
	commands := []*discordgo.ApplicationCommand{
		verify.Command(),
	}

	for _, cmd := range commands {
		_, err := b.session.ApplicationCommandCreate(b.session.State.User.ID, "", cmd)
		if err != nil {
			return fmt.Errorf("cannot create '%s' command: %w", cmd.Name, err)
		}
	}

	return nil
}

func (b *Bot) handleCommands(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}

	switch i.ApplicationCommandData().Name {
	case "verify":
		b.verifyFeature.HandleCommand(s, i)
	}
}

// handleGuildCreate makes sure every guild has a settings row as soon as the bot sees it
func (b *Bot) handleGuildCreate(s *discordgo.Session, g *discordgo.GuildCreate) {
	guildID, err := common.ParseSnowflake(g.ID)
	if err != nil {
		log.WithError(err).WithField("guild_id", g.ID).Error("Failed to parse guild ID")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), b.config.HandlerTimeout)
	defer cancel()

	if _, err := b.settingsService.GetOrCreateSettings(ctx, guildID); err != nil {
		log.WithError(err).WithField("guild_id", guildID).Error("Failed to initialize verification settings")
		return
	}
	log.WithFields(log.Fields{
		"guild_id": guildID,
		"name":     g.Name,
	}).Debug("Guild ready")
}

func (b *Bot) handleMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || (s.State.User != nil && m.Author.ID == s.State.User.ID) {
		return
	}

	// Admin commands are also evaluated by the gate below
	b.verifyFeature.HandleMessage(s, m)

	ctx, cancel := context.WithTimeout(context.Background(), b.config.HandlerTimeout)
	defer cancel()

	msg, err := newInboundMessage(m, b.authorMember(ctx, m))
	if err != nil {
		log.WithError(err).WithField("message_id", m.ID).Warn("Failed to read inbound message")
		return
	}

	outcome, err := b.verificationService.HandleMessage(ctx, msg)
	if err != nil {
		log.WithFields(log.Fields{
			"guild_id":   msg.GuildID,
			"channel_id": msg.ChannelID,
			"user_id":    msg.AuthorID,
			"message_id": msg.ID,
		}).WithError(err).Error("Verification failed")
		return
	}

	if b.metrics != nil {
		reason := string(outcome.Decision.Reason)
		if outcome.Unverifiable != nil {
			reason = outcome.Unverifiable.Error()
		}
		b.metrics.RecordMessageEvaluated(outcome.Decision.Kind.String(), reason)
	}
}
