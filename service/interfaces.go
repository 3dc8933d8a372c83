package service

import (
	"context"

	"gatekeeper/events"
	"gatekeeper/models"
)

// GuildVerificationSettingsRepository defines the interface for verification settings data access
type GuildVerificationSettingsRepository interface {
	// Get retrieves guild settings, returning nil without error when the guild has no row
	Get(ctx context.Context, guildID int64) (*models.GuildVerificationSettings, error)

	// GetOrCreate retrieves guild settings or creates default ones if not found
	GetOrCreate(ctx context.Context, guildID int64) (*models.GuildVerificationSettings, error)

	// Update writes every mutable setting except the verification counter
	Update(ctx context.Context, settings *models.GuildVerificationSettings) error

	// IncrementVerifyCount atomically adds one to the counter and returns the new value
	IncrementVerifyCount(ctx context.Context, guildID int64) (int64, error)
}

// EventPublisher defines the interface for publishing events inside a unit of work
type EventPublisher interface {
	Publish(event events.Event)
}

// EventEmitter defines the interface for emitting events outside a transaction
type EventEmitter interface {
	Emit(ctx context.Context, event events.Event)
}

// UnitOfWork defines the interface for transactional repository operations
type UnitOfWork interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) error

	// Commit commits the transaction and flushes pending events
	Commit() error

	// Rollback rolls back the transaction, a no-op after Commit
	Rollback() error

	// Repository accessors
	GuildVerificationSettingsRepository() GuildVerificationSettingsRepository
	EventBus() EventPublisher
}

// UnitOfWorkFactory defines the interface for creating UnitOfWork instances
type UnitOfWorkFactory interface {
	// CreateForGuild creates a new UnitOfWork instance scoped to a specific guild
	CreateForGuild(guildID int64) UnitOfWork
}

// GuildActions is the narrow set of Discord operations the verification flow needs.
// Implementations map permission failures to ErrMissingPermissions.
type GuildActions interface {
	// BotCanManageRoles reports whether the bot holds Manage Roles guild-wide
	BotCanManageRoles(ctx context.Context, guildID int64) (bool, error)

	// ResolveRole looks up a role, returning ErrRoleNotFound when it no longer exists
	ResolveRole(ctx context.Context, guildID, roleID int64) (*models.RoleRef, error)

	// ResolveChannel looks up a channel, returning ErrChannelNotFound when it no longer exists
	ResolveChannel(ctx context.Context, guildID, channelID int64) (*models.ChannelRef, error)

	GrantRole(ctx context.Context, guildID, userID, roleID int64) error
	SendMessage(ctx context.Context, channelID int64, content string) error

	// RecentMessages returns up to limit of the newest messages in a channel
	RecentMessages(ctx context.Context, channelID int64, limit int) ([]models.ChannelMessage, error)
	DeleteMessages(ctx context.Context, channelID int64, messages []models.ChannelMessage) error

	// MemberHasRole reports whether userID is a guild member holding roleID.
	// Users who are not members report false.
	MemberHasRole(ctx context.Context, guildID, userID, roleID int64) (bool, error)
}

// VerifySettingsService defines the interface for the admin-facing settings operations
type VerifySettingsService interface {
	// GetOrCreateSettings retrieves guild settings or creates default ones if not found
	GetOrCreateSettings(ctx context.Context, guildID int64) (*models.GuildVerificationSettings, error)

	// GetSettings retrieves guild settings without creating them. Unknown guilds return nil.
	GetSettings(ctx context.Context, guildID int64) (*models.GuildVerificationSettings, error)

	SetVerifyMessage(ctx context.Context, guildID, actorID int64, message string) error
	SetWrongMessage(ctx context.Context, guildID, actorID int64, message string) error
	SetVerifyRole(ctx context.Context, guildID, actorID, roleID int64) error

	// SetMinTime rejects negative values with ErrNegativeMinTime without writing
	SetMinTime(ctx context.Context, guildID, actorID, seconds int64) error
	SetVerifyChannel(ctx context.Context, guildID, actorID, channelID int64) error
}

// VerificationService defines the interface for handling inbound chat messages
type VerificationService interface {
	// HandleMessage runs one message through the gate and applies its side effects
	HandleMessage(ctx context.Context, msg *models.InboundMessage) (*VerificationOutcome, error)
}
