package service

import (
	"context"

	"gatekeeper/events"
	"gatekeeper/models"

	"github.com/stretchr/testify/mock"
)

// MockGuildVerificationSettingsRepository is a mock implementation of GuildVerificationSettingsRepository
type MockGuildVerificationSettingsRepository struct {
	mock.Mock
}

func (m *MockGuildVerificationSettingsRepository) Get(ctx context.Context, guildID int64) (*models.GuildVerificationSettings, error) {
	args := m.Called(ctx, guildID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.GuildVerificationSettings), args.Error(1)
}

func (m *MockGuildVerificationSettingsRepository) GetOrCreate(ctx context.Context, guildID int64) (*models.GuildVerificationSettings, error) {
	args := m.Called(ctx, guildID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.GuildVerificationSettings), args.Error(1)
}

func (m *MockGuildVerificationSettingsRepository) Update(ctx context.Context, settings *models.GuildVerificationSettings) error {
	args := m.Called(ctx, settings)
	return args.Error(0)
}

func (m *MockGuildVerificationSettingsRepository) IncrementVerifyCount(ctx context.Context, guildID int64) (int64, error) {
	args := m.Called(ctx, guildID)
	return args.Get(0).(int64), args.Error(1)
}

// MockEventPublisher is a mock implementation of EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(event events.Event) {
	m.Called(event)
}

// MockEventEmitter is a mock implementation of EventEmitter
type MockEventEmitter struct {
	mock.Mock
}

func (m *MockEventEmitter) Emit(ctx context.Context, event events.Event) {
	m.Called(ctx, event)
}

// MockUnitOfWork is a mock implementation of UnitOfWork
type MockUnitOfWork struct {
	mock.Mock
}

func (m *MockUnitOfWork) Begin(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockUnitOfWork) Commit() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) Rollback() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) GuildVerificationSettingsRepository() GuildVerificationSettingsRepository {
	args := m.Called()
	return args.Get(0).(GuildVerificationSettingsRepository)
}

func (m *MockUnitOfWork) EventBus() EventPublisher {
	args := m.Called()
	return args.Get(0).(EventPublisher)
}

// MockUnitOfWorkFactory is a mock implementation of UnitOfWorkFactory
type MockUnitOfWorkFactory struct {
	mock.Mock
}

func (m *MockUnitOfWorkFactory) CreateForGuild(guildID int64) UnitOfWork {
	args := m.Called(guildID)
	return args.Get(0).(UnitOfWork)
}

// MockGuildActions is a mock implementation of GuildActions
type MockGuildActions struct {
	mock.Mock
}

func (m *MockGuildActions) BotCanManageRoles(ctx context.Context, guildID int64) (bool, error) {
	args := m.Called(ctx, guildID)
	return args.Bool(0), args.Error(1)
}

func (m *MockGuildActions) ResolveRole(ctx context.Context, guildID, roleID int64) (*models.RoleRef, error) {
	args := m.Called(ctx, guildID, roleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RoleRef), args.Error(1)
}

func (m *MockGuildActions) ResolveChannel(ctx context.Context, guildID, channelID int64) (*models.ChannelRef, error) {
	args := m.Called(ctx, guildID, channelID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ChannelRef), args.Error(1)
}

func (m *MockGuildActions) GrantRole(ctx context.Context, guildID, userID, roleID int64) error {
	args := m.Called(ctx, guildID, userID, roleID)
	return args.Error(0)
}

func (m *MockGuildActions) SendMessage(ctx context.Context, channelID int64, content string) error {
	args := m.Called(ctx, channelID, content)
	return args.Error(0)
}

func (m *MockGuildActions) RecentMessages(ctx context.Context, channelID int64, limit int) ([]models.ChannelMessage, error) {
	args := m.Called(ctx, channelID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ChannelMessage), args.Error(1)
}

func (m *MockGuildActions) DeleteMessages(ctx context.Context, channelID int64, messages []models.ChannelMessage) error {
	args := m.Called(ctx, channelID, messages)
	return args.Error(0)
}

func (m *MockGuildActions) MemberHasRole(ctx context.Context, guildID, userID, roleID int64) (bool, error) {
	args := m.Called(ctx, guildID, userID, roleID)
	return args.Bool(0), args.Error(1)
}

// NewMockUnitOfWorkWithRepo wires a MockUnitOfWork that begins, commits and rolls back successfully.
// Tests add expectations on the returned repository and publisher.
func NewMockUnitOfWorkWithRepo() (*MockUnitOfWork, *MockGuildVerificationSettingsRepository, *MockEventPublisher) {
	uow := new(MockUnitOfWork)
	repo := new(MockGuildVerificationSettingsRepository)
	publisher := new(MockEventPublisher)

	uow.On("Begin", mock.Anything).Return(nil).Maybe()
	uow.On("Commit").Return(nil).Maybe()
	uow.On("Rollback").Return(nil).Maybe()
	uow.On("GuildVerificationSettingsRepository").Return(repo).Maybe()
	uow.On("EventBus").Return(publisher).Maybe()

	return uow, repo, publisher
}
