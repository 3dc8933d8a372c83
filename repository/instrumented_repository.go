package repository

import (
	"context"

	"gatekeeper/models"
	"gatekeeper/service"
)

const settingsRepositoryName = "guild_verification_settings"

// instrumentedSettingsRepository records a query metric around each repository call
type instrumentedSettingsRepository struct {
	inner    service.GuildVerificationSettingsRepository
	recorder QueryRecorder
}

func withQueryMetrics(inner service.GuildVerificationSettingsRepository, recorder QueryRecorder) service.GuildVerificationSettingsRepository {
	if recorder == nil {
		return inner
	}
	return &instrumentedSettingsRepository{inner: inner, recorder: recorder}
}

func (r *instrumentedSettingsRepository) Get(ctx context.Context, guildID int64) (*models.GuildVerificationSettings, error) {
	defer r.recorder.MeasureDatabaseQuery(settingsRepositoryName, "Get")()
	return r.inner.Get(ctx, guildID)
}

func (r *instrumentedSettingsRepository) GetOrCreate(ctx context.Context, guildID int64) (*models.GuildVerificationSettings, error) {
	defer r.recorder.MeasureDatabaseQuery(settingsRepositoryName, "GetOrCreate")()
	return r.inner.GetOrCreate(ctx, guildID)
}

func (r *instrumentedSettingsRepository) Update(ctx context.Context, settings *models.GuildVerificationSettings) error {
	defer r.recorder.MeasureDatabaseQuery(settingsRepositoryName, "Update")()
	return r.inner.Update(ctx, settings)
}

func (r *instrumentedSettingsRepository) IncrementVerifyCount(ctx context.Context, guildID int64) (int64, error) {
	defer r.recorder.MeasureDatabaseQuery(settingsRepositoryName, "IncrementVerifyCount")()
	return r.inner.IncrementVerifyCount(ctx, guildID)
}
