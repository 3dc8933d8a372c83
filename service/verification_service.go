package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gatekeeper/events"
	"gatekeeper/models"

	log "github.com/sirupsen/logrus"
)

// MissingPermissionNotice is posted in the verification channel when the bot cannot manage roles
// and missing-permission notices are enabled
const MissingPermissionNotice = "I need the Manage Roles permission to verify members."

// VerificationOptions tunes the optional behaviour of the verification flow
type VerificationOptions struct {
	NotifyTooSoon           bool
	TooSoonMessage          string // {user} is replaced with the author mention
	NotifyMissingPermission bool
	SerializeMembers        bool
	PurgeLimit              int
	Now                     func() time.Time
}

// VerificationOutcome describes what HandleMessage did
type VerificationOutcome struct {
	Decision    GateDecision
	Replied     bool
	Granted     bool
	VerifyCount int64
	Purge       *PurgeResult

	// Unverifiable is ErrRoleNotConfigured or ErrRoleNotFound when a matching
	// message could not be acted on. It is logged, never shown to members.
	Unverifiable error
}

// verificationService implements the VerificationService interface
type verificationService struct {
	uowFactory UnitOfWorkFactory
	actions    GuildActions
	emitter    EventEmitter
	cleaner    *Cleaner
	opts       VerificationOptions
	locks      *memberLocks
}

// NewVerificationService creates a new verification service. emitter may be nil.
func NewVerificationService(uowFactory UnitOfWorkFactory, actions GuildActions, emitter EventEmitter, opts VerificationOptions) VerificationService {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &verificationService{
		uowFactory: uowFactory,
		actions:    actions,
		emitter:    emitter,
		cleaner:    NewCleaner(actions, opts.PurgeLimit),
		opts:       opts,
	}
	if opts.SerializeMembers {
		s.locks = newMemberLocks()
	}
	return s
}

// HandleMessage runs one message through the gate and applies its side effects
func (s *verificationService) HandleMessage(ctx context.Context, msg *models.InboundMessage) (*VerificationOutcome, error) {
	// DMs and bot messages never touch the store
	if reason := ScreenAuthor(msg); reason != IgnoreNone {
		return &VerificationOutcome{Decision: GateDecision{Kind: DecisionIgnore, Reason: reason}}, nil
	}

	if s.locks != nil {
		unlock := s.locks.Lock(msg.GuildID, msg.AuthorID)
		defer unlock()
	}

	settings, err := s.loadSettings(ctx, msg.GuildID)
	if err != nil {
		return nil, err
	}

	if reason := ScreenMessage(msg, settings); reason != IgnoreNone {
		return &VerificationOutcome{Decision: GateDecision{Kind: DecisionIgnore, Reason: reason}}, nil
	}

	canManageRoles, err := s.actions.BotCanManageRoles(ctx, msg.GuildID)
	if err != nil {
		return nil, fmt.Errorf("failed to check bot permissions: %w", err)
	}

	outcome := &VerificationOutcome{
		Decision: EvaluateMessage(msg, settings, canManageRoles, s.opts.Now()),
	}

	logger := log.WithFields(log.Fields{
		"guild_id":   msg.GuildID,
		"channel_id": msg.ChannelID,
		"user_id":    msg.AuthorID,
		"message_id": msg.ID,
		"decision":   outcome.Decision.Kind.String(),
	})

	switch outcome.Decision.Kind {
	case DecisionIgnore:
		s.handleIgnored(ctx, msg, outcome, logger)
		return outcome, nil
	case DecisionReject:
		return outcome, s.handleRejected(ctx, msg, outcome, logger)
	default:
		return outcome, s.verify(ctx, msg, settings, outcome, logger)
	}
}

func (s *verificationService) loadSettings(ctx context.Context, guildID int64) (*models.GuildVerificationSettings, error) {
	uow := s.uowFactory.CreateForGuild(guildID)
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	settings, err := uow.GuildVerificationSettingsRepository().GetOrCreate(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("failed to get guild settings: %w", err)
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return settings, nil
}

func (s *verificationService) handleIgnored(ctx context.Context, msg *models.InboundMessage, outcome *VerificationOutcome, logger *log.Entry) {
	reason := outcome.Decision.Reason
	logger = logger.WithField("reason", string(reason))

	var notice string
	switch reason {
	case IgnoreMissingPermission:
		logger.Warn("Bot lacks Manage Roles, verification attempt dropped")
		if s.opts.NotifyMissingPermission {
			notice = MissingPermissionNotice
		}
	case IgnoreTooSoon:
		logger.Debug("Member joined too recently to verify")
		if s.opts.NotifyTooSoon {
			notice = RenderUserTemplate(s.opts.TooSoonMessage, msg.AuthorID)
		}
	default:
		return
	}

	if notice != "" {
		if err := s.actions.SendMessage(ctx, msg.ChannelID, notice); err != nil {
			logger.WithError(err).Warn("Failed to send verification notice")
		} else {
			outcome.Replied = true
		}
	}

	s.emit(ctx, events.VerificationIgnoredEvent{
		GuildID:   msg.GuildID,
		ChannelID: msg.ChannelID,
		UserID:    msg.AuthorID,
		Reason:    string(reason),
	})
}

func (s *verificationService) handleRejected(ctx context.Context, msg *models.InboundMessage, outcome *VerificationOutcome, logger *log.Entry) error {
	logger.Debug("Verification message did not match")

	var sendErr error
	if reply := outcome.Decision.Reply; reply != "" {
		if err := s.actions.SendMessage(ctx, msg.ChannelID, reply); err != nil {
			sendErr = fmt.Errorf("failed to send wrong message reply: %w", err)
		} else {
			outcome.Replied = true
		}
	}

	s.emit(ctx, events.VerificationRejectedEvent{
		GuildID:   msg.GuildID,
		ChannelID: msg.ChannelID,
		UserID:    msg.AuthorID,
		Replied:   outcome.Replied,
	})
	return sendErr
}

func (s *verificationService) verify(ctx context.Context, msg *models.InboundMessage, settings *models.GuildVerificationSettings, outcome *VerificationOutcome, logger *log.Entry) error {
	if !settings.HasRole() {
		outcome.Unverifiable = ErrRoleNotConfigured
		logger.Warn("Verification matched but no verify role is configured")
		return nil
	}
	roleID := *settings.VerifyRoleID
	logger = logger.WithField("role_id", roleID)

	if _, err := s.actions.ResolveRole(ctx, msg.GuildID, roleID); err != nil {
		if errors.Is(err, ErrRoleNotFound) {
			outcome.Unverifiable = ErrRoleNotFound
			logger.Warn("Verification matched but the verify role no longer exists")
			return nil
		}
		return fmt.Errorf("failed to resolve verify role: %w", err)
	}

	if err := s.actions.GrantRole(ctx, msg.GuildID, msg.AuthorID, roleID); err != nil {
		return fmt.Errorf("failed to grant verify role: %w", err)
	}
	outcome.Granted = true

	count, err := s.recordVerification(ctx, msg, roleID)
	if err != nil {
		return err
	}
	outcome.VerifyCount = count
	logger.WithField("verify_count", count).Info("Member verified")

	purge, err := s.cleaner.Purge(ctx, PurgeRequest{
		GuildID:        msg.GuildID,
		ChannelID:      msg.ChannelID,
		VerifiedUserID: msg.AuthorID,
		RoleID:         roleID,
	})
	outcome.Purge = purge
	if purge != nil {
		s.emit(ctx, events.MessagesPurgedEvent{
			GuildID:   msg.GuildID,
			ChannelID: msg.ChannelID,
			UserID:    msg.AuthorID,
			Deleted:   purge.Deleted,
			Forbidden: purge.Forbidden,
		})
	}
	if err != nil {
		return fmt.Errorf("verification cleanup failed: %w", err)
	}
	return nil
}

// recordVerification bumps the counter and queues the verified event in one transaction
func (s *verificationService) recordVerification(ctx context.Context, msg *models.InboundMessage, roleID int64) (int64, error) {
	uow := s.uowFactory.CreateForGuild(msg.GuildID)
	if err := uow.Begin(ctx); err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	count, err := uow.GuildVerificationSettingsRepository().IncrementVerifyCount(ctx, msg.GuildID)
	if err != nil {
		return 0, fmt.Errorf("failed to increment verify count: %w", err)
	}

	uow.EventBus().Publish(events.MemberVerifiedEvent{
		GuildID:     msg.GuildID,
		ChannelID:   msg.ChannelID,
		UserID:      msg.AuthorID,
		RoleID:      roleID,
		VerifyCount: count,
		VerifiedAt:  s.opts.Now().UTC(),
	})

	if err := uow.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return count, nil
}

func (s *verificationService) emit(ctx context.Context, event events.Event) {
	if s.emitter != nil {
		s.emitter.Emit(ctx, event)
	}
}
