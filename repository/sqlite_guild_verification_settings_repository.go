package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"gatekeeper/models"
)

// sqlQueryable is satisfied by *sql.DB and *sql.Tx
type sqlQueryable interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLiteGuildVerificationSettingsRepository implements the settings repository on SQLite
type SQLiteGuildVerificationSettingsRepository struct {
	q sqlQueryable
}

func newSQLiteGuildVerificationSettingsRepository(q sqlQueryable) *SQLiteGuildVerificationSettingsRepository {
	return &SQLiteGuildVerificationSettingsRepository{q: q}
}

// Get retrieves guild settings, returning nil when the guild has no row
func (r *SQLiteGuildVerificationSettingsRepository) Get(ctx context.Context, guildID int64) (*models.GuildVerificationSettings, error) {
	query := `SELECT ` + settingsColumns + ` FROM guild_verification_settings WHERE guild_id = ?`
	settings, err := scanSettings(r.q.QueryRowContext(ctx, query, guildID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get verification settings for guild %d: %w", guildID, err)
	}
	return settings, nil
}

// GetOrCreate retrieves guild settings or creates default ones if not found
func (r *SQLiteGuildVerificationSettingsRepository) GetOrCreate(ctx context.Context, guildID int64) (*models.GuildVerificationSettings, error) {
	defaults := models.NewDefaultGuildVerificationSettings(guildID)
	_, err := r.q.ExecContext(ctx, `
		INSERT OR IGNORE INTO guild_verification_settings (guild_id, verify_message, verify_min_time, verify_wrong_msg)
		VALUES (?, ?, ?, ?)`,
		defaults.GuildID,
		defaults.VerifyMessage,
		defaults.VerifyMinTime,
		defaults.VerifyWrongMsg,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create verification settings for guild %d: %w", guildID, err)
	}

	query := `SELECT ` + settingsColumns + ` FROM guild_verification_settings WHERE guild_id = ?`
	settings, err := scanSettings(r.q.QueryRowContext(ctx, query, guildID))
	if err != nil {
		return nil, fmt.Errorf("failed to get verification settings for guild %d: %w", guildID, err)
	}
	return settings, nil
}

// Update writes every mutable setting except the verification counter
func (r *SQLiteGuildVerificationSettingsRepository) Update(ctx context.Context, settings *models.GuildVerificationSettings) error {
	result, err := r.q.ExecContext(ctx, `
		UPDATE guild_verification_settings
		SET verify_message = ?,
		    verify_role_id = ?,
		    verify_channel_id = ?,
		    verify_min_time = ?,
		    verify_wrong_msg = ?,
		    updated_at = CURRENT_TIMESTAMP
		WHERE guild_id = ?`,
		settings.VerifyMessage,
		settings.VerifyRoleID,
		settings.VerifyChannelID,
		settings.VerifyMinTime,
		settings.VerifyWrongMsg,
		settings.GuildID,
	)
	if err != nil {
		return fmt.Errorf("failed to update verification settings for guild %d: %w", settings.GuildID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows for guild %d: %w", settings.GuildID, err)
	}
	if affected == 0 {
		return fmt.Errorf("verification settings for guild %d not found", settings.GuildID)
	}
	return nil
}

// IncrementVerifyCount atomically adds one to the counter and returns the new value
func (r *SQLiteGuildVerificationSettingsRepository) IncrementVerifyCount(ctx context.Context, guildID int64) (int64, error) {
	var count int64
	err := r.q.QueryRowContext(ctx, `
		UPDATE guild_verification_settings
		SET verify_count = verify_count + 1,
		    updated_at = CURRENT_TIMESTAMP
		WHERE guild_id = ?
		RETURNING verify_count`,
		guildID,
	).Scan(&count)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("verification settings for guild %d not found", guildID)
		}
		return 0, fmt.Errorf("failed to increment verify count for guild %d: %w", guildID, err)
	}
	return count, nil
}
