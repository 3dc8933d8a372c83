package service

import (
	"context"
	"fmt"

	"gatekeeper/events"
	"gatekeeper/models"

	log "github.com/sirupsen/logrus"
)

// Setting names carried by VerifySettingsChangedEvent
const (
	FieldVerifyMessage  = "message"
	FieldVerifyWrongMsg = "wrongmsg"
	FieldVerifyRole     = "role"
	FieldVerifyMinTime  = "mintime"
	FieldVerifyChannel  = "channel"
)

// verifySettingsService implements the VerifySettingsService interface
type verifySettingsService struct {
	uowFactory UnitOfWorkFactory
}

// NewVerifySettingsService creates a new verification settings service
func NewVerifySettingsService(uowFactory UnitOfWorkFactory) VerifySettingsService {
	return &verifySettingsService{
		uowFactory: uowFactory,
	}
}

// GetOrCreateSettings retrieves guild settings or creates default ones if not found
func (s *verifySettingsService) GetOrCreateSettings(ctx context.Context, guildID int64) (*models.GuildVerificationSettings, error) {
	uow := s.uowFactory.CreateForGuild(guildID)
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	settings, err := uow.GuildVerificationSettingsRepository().GetOrCreate(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("failed to get or create guild settings: %w", err)
	}

	// Commit in case the default row was created
	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return settings, nil
}

// GetSettings retrieves guild settings without creating a row for unknown guilds
func (s *verifySettingsService) GetSettings(ctx context.Context, guildID int64) (*models.GuildVerificationSettings, error) {
	uow := s.uowFactory.CreateForGuild(guildID)
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	settings, err := uow.GuildVerificationSettingsRepository().Get(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("failed to get guild settings: %w", err)
	}
	return settings, nil
}

// SetVerifyMessage sets the exact phrase members must post
func (s *verifySettingsService) SetVerifyMessage(ctx context.Context, guildID, actorID int64, message string) error {
	return s.update(ctx, guildID, actorID, FieldVerifyMessage, func(settings *models.GuildVerificationSettings) {
		settings.VerifyMessage = message
	})
}

// SetWrongMessage sets the reply template for mismatched attempts. Empty disables the reply.
func (s *verifySettingsService) SetWrongMessage(ctx context.Context, guildID, actorID int64, message string) error {
	return s.update(ctx, guildID, actorID, FieldVerifyWrongMsg, func(settings *models.GuildVerificationSettings) {
		settings.VerifyWrongMsg = message
	})
}

// SetVerifyRole sets the role granted on success
func (s *verifySettingsService) SetVerifyRole(ctx context.Context, guildID, actorID, roleID int64) error {
	return s.update(ctx, guildID, actorID, FieldVerifyRole, func(settings *models.GuildVerificationSettings) {
		settings.VerifyRoleID = &roleID
	})
}

// SetMinTime sets the minimum membership age in seconds
func (s *verifySettingsService) SetMinTime(ctx context.Context, guildID, actorID, seconds int64) error {
	if seconds < 0 {
		return ErrNegativeMinTime
	}
	return s.update(ctx, guildID, actorID, FieldVerifyMinTime, func(settings *models.GuildVerificationSettings) {
		settings.VerifyMinTime = seconds
	})
}

// SetVerifyChannel sets the only channel where verification attempts are evaluated
func (s *verifySettingsService) SetVerifyChannel(ctx context.Context, guildID, actorID, channelID int64) error {
	return s.update(ctx, guildID, actorID, FieldVerifyChannel, func(settings *models.GuildVerificationSettings) {
		settings.VerifyChannelID = &channelID
	})
}

// update loads the settings row, applies one mutation and writes it back in a single transaction
func (s *verifySettingsService) update(ctx context.Context, guildID, actorID int64, field string, mutate func(*models.GuildVerificationSettings)) error {
	uow := s.uowFactory.CreateForGuild(guildID)
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	repo := uow.GuildVerificationSettingsRepository()
	settings, err := repo.GetOrCreate(ctx, guildID)
	if err != nil {
		return fmt.Errorf("failed to get guild settings: %w", err)
	}

	mutate(settings)

	if err := repo.Update(ctx, settings); err != nil {
		return fmt.Errorf("failed to update guild settings: %w", err)
	}

	uow.EventBus().Publish(events.VerifySettingsChangedEvent{
		GuildID:   guildID,
		Field:     field,
		ChangedBy: actorID,
	})

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"guild_id": guildID,
		"field":    field,
		"actor_id": actorID,
	}).Info("Verification setting updated")

	return nil
}
