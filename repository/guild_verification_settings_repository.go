package repository

import (
	"context"
	"errors"
	"fmt"

	"gatekeeper/database"
	"gatekeeper/models"

	"github.com/jackc/pgx/v5"
)

const settingsColumns = `guild_id, verify_message, verify_count, verify_role_id, verify_channel_id,
		verify_min_time, verify_wrong_msg, created_at, updated_at`

// GuildVerificationSettingsRepository implements the settings repository on PostgreSQL
type GuildVerificationSettingsRepository struct {
	q Queryable
}

// NewGuildVerificationSettingsRepository creates a repository outside any transaction
func NewGuildVerificationSettingsRepository(db *database.DB) *GuildVerificationSettingsRepository {
	return &GuildVerificationSettingsRepository{q: db.Pool}
}

// newGuildVerificationSettingsRepositoryWithTx creates a repository bound to a transaction
func newGuildVerificationSettingsRepositoryWithTx(tx Queryable) *GuildVerificationSettingsRepository {
	return &GuildVerificationSettingsRepository{q: tx}
}

// Get retrieves guild settings, returning nil when the guild has no row
func (r *GuildVerificationSettingsRepository) Get(ctx context.Context, guildID int64) (*models.GuildVerificationSettings, error) {
	query := `SELECT ` + settingsColumns + ` FROM guild_verification_settings WHERE guild_id = $1`

	settings, err := scanSettings(r.q.QueryRow(ctx, query, guildID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get verification settings for guild %d: %w", guildID, err)
	}
	return settings, nil
}

// GetOrCreate retrieves guild settings or creates default ones if not found
func (r *GuildVerificationSettingsRepository) GetOrCreate(ctx context.Context, guildID int64) (*models.GuildVerificationSettings, error) {
	settings, err := r.Get(ctx, guildID)
	if err != nil {
		return nil, err
	}
	if settings != nil {
		return settings, nil
	}

	// A concurrent insert for the same guild resolves to the existing row
	defaults := models.NewDefaultGuildVerificationSettings(guildID)
	insertQuery := `
		INSERT INTO guild_verification_settings (guild_id, verify_message, verify_min_time, verify_wrong_msg)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (guild_id) DO UPDATE SET guild_id = EXCLUDED.guild_id
		RETURNING ` + settingsColumns

	settings, err = scanSettings(r.q.QueryRow(ctx, insertQuery,
		defaults.GuildID,
		defaults.VerifyMessage,
		defaults.VerifyMinTime,
		defaults.VerifyWrongMsg,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create verification settings for guild %d: %w", guildID, err)
	}

	return settings, nil
}

// Update writes every mutable setting except the verification counter
func (r *GuildVerificationSettingsRepository) Update(ctx context.Context, settings *models.GuildVerificationSettings) error {
	query := `
		UPDATE guild_verification_settings
		SET verify_message = $2,
		    verify_role_id = $3,
		    verify_channel_id = $4,
		    verify_min_time = $5,
		    verify_wrong_msg = $6,
		    updated_at = NOW()
		WHERE guild_id = $1
	`

	result, err := r.q.Exec(ctx, query,
		settings.GuildID,
		settings.VerifyMessage,
		settings.VerifyRoleID,
		settings.VerifyChannelID,
		settings.VerifyMinTime,
		settings.VerifyWrongMsg,
	)
	if err != nil {
		return fmt.Errorf("failed to update verification settings for guild %d: %w", settings.GuildID, err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("verification settings for guild %d not found", settings.GuildID)
	}

	return nil
}

// IncrementVerifyCount atomically adds one to the counter and returns the new value
func (r *GuildVerificationSettingsRepository) IncrementVerifyCount(ctx context.Context, guildID int64) (int64, error) {
	query := `
		UPDATE guild_verification_settings
		SET verify_count = verify_count + 1,
		    updated_at = NOW()
		WHERE guild_id = $1
		RETURNING verify_count
	`

	var count int64
	if err := r.q.QueryRow(ctx, query, guildID).Scan(&count); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("verification settings for guild %d not found", guildID)
		}
		return 0, fmt.Errorf("failed to increment verify count for guild %d: %w", guildID, err)
	}

	return count, nil
}

func scanSettings(row rowScanner) (*models.GuildVerificationSettings, error) {
	var settings models.GuildVerificationSettings
	err := row.Scan(
		&settings.GuildID,
		&settings.VerifyMessage,
		&settings.VerifyCount,
		&settings.VerifyRoleID,
		&settings.VerifyChannelID,
		&settings.VerifyMinTime,
		&settings.VerifyWrongMsg,
		&settings.CreatedAt,
		&settings.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &settings, nil
}
