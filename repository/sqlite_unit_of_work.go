package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"gatekeeper/database"
	"gatekeeper/events"
	"gatekeeper/service"
)

// sqliteUnitOfWork implements the UnitOfWork interface on SQLite
type sqliteUnitOfWork struct {
	db               *database.SQLiteDB
	tx               *sql.Tx
	guildID          int64
	recorder         QueryRecorder
	transactionalBus *events.TransactionalBus
	settingsRepo     service.GuildVerificationSettingsRepository
	ctx              context.Context
}

// NewSQLiteUnitOfWorkFactory creates a new UnitOfWork factory over a SQLite file
func NewSQLiteUnitOfWorkFactory(db *database.SQLiteDB, eventBus *events.Bus, opts ...FactoryOption) service.UnitOfWorkFactory {
	return &sqliteUnitOfWorkFactory{
		db:       db,
		eventBus: eventBus,
		opts:     applyFactoryOptions(opts),
	}
}

type sqliteUnitOfWorkFactory struct {
	db       *database.SQLiteDB
	eventBus *events.Bus
	opts     factoryOptions
}

func (f *sqliteUnitOfWorkFactory) CreateForGuild(guildID int64) service.UnitOfWork {
	return &sqliteUnitOfWork{
		db:               f.db,
		guildID:          guildID,
		recorder:         f.opts.recorder,
		transactionalBus: events.NewTransactionalBus(f.eventBus),
	}
}

// Begin starts a new transaction
func (u *sqliteUnitOfWork) Begin(ctx context.Context) error {
	if u.tx != nil {
		return fmt.Errorf("transaction already started")
	}

	tx, err := u.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	u.tx = tx
	u.ctx = ctx
	u.settingsRepo = withQueryMetrics(newSQLiteGuildVerificationSettingsRepository(tx), u.recorder)
	return nil
}

// Commit commits the transaction and flushes pending events
func (u *sqliteUnitOfWork) Commit() error {
	if u.tx == nil {
		return fmt.Errorf("no transaction to commit")
	}

	if err := u.tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	u.tx = nil

	u.transactionalBus.Flush(u.ctx)
	return nil
}

// Rollback rolls back the transaction
func (u *sqliteUnitOfWork) Rollback() error {
	if u.tx == nil {
		return nil
	}

	err := u.tx.Rollback()
	u.tx = nil
	u.transactionalBus.Discard()

	if err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}
	return nil
}

// GuildVerificationSettingsRepository returns the settings repository for this unit of work
func (u *sqliteUnitOfWork) GuildVerificationSettingsRepository() service.GuildVerificationSettingsRepository {
	if u.settingsRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.settingsRepo
}

// EventBus returns the transactional event bus for this unit of work
func (u *sqliteUnitOfWork) EventBus() service.EventPublisher {
	return u.transactionalBus
}
