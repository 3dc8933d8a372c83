package repository

import (
	"context"
	"errors"
	"fmt"

	"gatekeeper/database"
	"gatekeeper/events"
	"gatekeeper/service"

	"github.com/jackc/pgx/v5"
)

// unitOfWork implements the UnitOfWork interface on PostgreSQL
type unitOfWork struct {
	db               *database.DB
	tx               pgx.Tx
	ctx              context.Context
	guildID          int64
	recorder         QueryRecorder
	transactionalBus *events.TransactionalBus
	settingsRepo     service.GuildVerificationSettingsRepository
}

// FactoryOption configures a unit of work factory
type FactoryOption func(*factoryOptions)

type factoryOptions struct {
	recorder QueryRecorder
}

// WithQueryRecorder instruments every repository created by the factory
func WithQueryRecorder(recorder QueryRecorder) FactoryOption {
	return func(o *factoryOptions) {
		o.recorder = recorder
	}
}

func applyFactoryOptions(opts []FactoryOption) factoryOptions {
	var o factoryOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewUnitOfWorkFactory creates a new UnitOfWork factory over a PostgreSQL pool
func NewUnitOfWorkFactory(db *database.DB, eventBus *events.Bus, opts ...FactoryOption) service.UnitOfWorkFactory {
	return &unitOfWorkFactory{
		db:       db,
		eventBus: eventBus,
		opts:     applyFactoryOptions(opts),
	}
}

type unitOfWorkFactory struct {
	db       *database.DB
	eventBus *events.Bus
	opts     factoryOptions
}

func (f *unitOfWorkFactory) CreateForGuild(guildID int64) service.UnitOfWork {
	return &unitOfWork{
		db:               f.db,
		guildID:          guildID,
		recorder:         f.opts.recorder,
		transactionalBus: events.NewTransactionalBus(f.eventBus),
	}
}

// Begin starts a new transaction
func (u *unitOfWork) Begin(ctx context.Context) error {
	if u.tx != nil {
		return fmt.Errorf("transaction already started")
	}

	tx, err := u.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	u.tx = tx
	u.ctx = ctx
	u.settingsRepo = withQueryMetrics(newGuildVerificationSettingsRepositoryWithTx(tx), u.recorder)

	return nil
}

// Commit commits the transaction and flushes pending events
func (u *unitOfWork) Commit() error {
	if u.tx == nil {
		return fmt.Errorf("no transaction to commit")
	}

	if err := u.tx.Commit(u.ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	u.tx = nil

	u.transactionalBus.Flush(u.ctx)
	return nil
}

// Rollback rolls back the transaction
func (u *unitOfWork) Rollback() error {
	if u.tx == nil {
		return nil
	}

	err := u.tx.Rollback(u.ctx)
	u.tx = nil
	u.transactionalBus.Discard()

	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}
	return nil
}

// GuildVerificationSettingsRepository returns the settings repository for this unit of work
func (u *unitOfWork) GuildVerificationSettingsRepository() service.GuildVerificationSettingsRepository {
	if u.settingsRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.settingsRepo
}

// EventBus returns the transactional event bus for this unit of work
func (u *unitOfWork) EventBus() service.EventPublisher {
	return u.transactionalBus
}
