package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"gatekeeper/events"
	"gatekeeper/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type verificationFixture struct {
	factory   *MockUnitOfWorkFactory
	uow       *MockUnitOfWork
	repo      *MockGuildVerificationSettingsRepository
	publisher *MockEventPublisher
	actions   *MockGuildActions
	emitter   *MockEventEmitter
}

func newVerificationFixture(settings *models.GuildVerificationSettings) *verificationFixture {
	f := &verificationFixture{
		factory: new(MockUnitOfWorkFactory),
		actions: new(MockGuildActions),
		emitter: new(MockEventEmitter),
	}
	f.uow, f.repo, f.publisher = NewMockUnitOfWorkWithRepo()
	f.factory.On("CreateForGuild", testGuildID).Return(f.uow)
	if settings != nil {
		f.repo.On("GetOrCreate", mock.Anything, testGuildID).Return(settings, nil)
	}
	f.emitter.On("Emit", mock.Anything, mock.Anything).Return().Maybe()
	return f
}

func (f *verificationFixture) service(opts VerificationOptions) VerificationService {
	if opts.Now == nil {
		opts.Now = func() time.Time { return testNow }
	}
	return NewVerificationService(f.factory, f.actions, f.emitter, opts)
}

func (f *verificationFixture) expectSuccessfulGrant(ctx context.Context, newCount int64) {
	f.actions.On("BotCanManageRoles", ctx, testGuildID).Return(true, nil)
	f.actions.On("ResolveRole", ctx, testGuildID, testRoleID).Return(&models.RoleRef{ID: testRoleID, Name: "Verified"}, nil)
	f.actions.On("GrantRole", ctx, testGuildID, testUserID, testRoleID).Return(nil).Once()
	f.repo.On("IncrementVerifyCount", ctx, testGuildID).Return(newCount, nil).Once()
	f.publisher.On("Publish", mock.AnythingOfType("events.MemberVerifiedEvent")).Return().Once()
}

func TestVerificationService_ExactMatchGrantsRoleAndPurges(t *testing.T) {
	ctx := context.Background()
	f := newVerificationFixture(testSettings())
	f.expectSuccessfulGrant(ctx, 8)

	recent := []models.ChannelMessage{
		{ID: 1, AuthorID: testUserID},
		{ID: 2, AuthorID: testUserID},
		{ID: 3, AuthorID: testUserID},
		{ID: 4, AuthorID: bystander, MentionIDs: []int64{testUserID}},
		{ID: 5, AuthorID: bystander, MentionIDs: []int64{testUserID}},
		{ID: 6, AuthorID: bystander, MentionIDs: []int64{testUserID, unverified}},
	}
	f.actions.On("RecentMessages", ctx, testChannelID, DefaultPurgeLimit).Return(recent, nil)
	f.actions.On("MemberHasRole", ctx, testGuildID, unverified, testRoleID).Return(false, nil)
	f.actions.On("DeleteMessages", ctx, testChannelID, mock.Anything).Return(nil)

	outcome, err := f.service(VerificationOptions{}).HandleMessage(ctx, testMessage("I agree"))

	require.NoError(t, err)
	assert.Equal(t, DecisionVerify, outcome.Decision.Kind)
	assert.True(t, outcome.Granted)
	assert.Equal(t, int64(8), outcome.VerifyCount)
	require.NotNil(t, outcome.Purge)
	assert.Equal(t, 5, outcome.Purge.Deleted)

	verified := f.publisher.Calls[0].Arguments.Get(0).(events.MemberVerifiedEvent)
	assert.Equal(t, testUserID, verified.UserID)
	assert.Equal(t, testRoleID, verified.RoleID)
	assert.Equal(t, int64(8), verified.VerifyCount)

	f.emitter.AssertCalled(t, "Emit", mock.Anything, events.MessagesPurgedEvent{
		GuildID:   testGuildID,
		ChannelID: testChannelID,
		UserID:    testUserID,
		Deleted:   5,
	})
	f.actions.AssertNumberOfCalls(t, "GrantRole", 1)
	f.repo.AssertNumberOfCalls(t, "IncrementVerifyCount", 1)
	f.actions.AssertExpectations(t)
}

func TestVerificationService_IgnoredMessagesHaveNoEffects(t *testing.T) {
	tests := []struct {
		name         string
		mutate       func(*models.InboundMessage)
		loadSettings bool
		reason       IgnoreReason
	}{
		{
			name:   "bot author",
			mutate: func(m *models.InboundMessage) { m.AuthorIsBot = true },
			reason: IgnoreNotMember,
		},
		{
			name:   "direct message",
			mutate: func(m *models.InboundMessage) { m.GuildID = 0 },
			reason: IgnoreDirectMessage,
		},
		{
			name:         "other channel",
			mutate:       func(m *models.InboundMessage) { m.ChannelID = 1 },
			loadSettings: true,
			reason:       IgnoreWrongChannel,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			f := newVerificationFixture(testSettings())
			msg := testMessage("I agree")
			tt.mutate(msg)

			outcome, err := f.service(VerificationOptions{}).HandleMessage(ctx, msg)

			require.NoError(t, err)
			assert.Equal(t, DecisionIgnore, outcome.Decision.Kind)
			assert.Equal(t, tt.reason, outcome.Decision.Reason)
			if tt.loadSettings {
				f.repo.AssertCalled(t, "GetOrCreate", mock.Anything, testGuildID)
			} else {
				f.factory.AssertNotCalled(t, "CreateForGuild", mock.Anything)
			}
			// No Discord calls at all, not even the permission check
			assert.Empty(t, f.actions.Calls)
			f.repo.AssertNotCalled(t, "IncrementVerifyCount", mock.Anything, mock.Anything)
			f.repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
			f.emitter.AssertNotCalled(t, "Emit", mock.Anything, mock.Anything)
		})
	}
}

func TestVerificationService_Mismatch(t *testing.T) {
	tests := []struct {
		name      string
		wrongMsg  string
		wantReply string
	}{
		{name: "with template", wrongMsg: "Nope {user}, read the rules", wantReply: "Nope <@4004>, read the rules"},
		{name: "without template", wrongMsg: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			settings := testSettings()
			settings.VerifyWrongMsg = tt.wrongMsg
			f := newVerificationFixture(settings)
			f.actions.On("BotCanManageRoles", ctx, testGuildID).Return(true, nil)
			if tt.wantReply != "" {
				f.actions.On("SendMessage", ctx, testChannelID, tt.wantReply).Return(nil).Once()
			}

			outcome, err := f.service(VerificationOptions{}).HandleMessage(ctx, testMessage("I disagree"))

			require.NoError(t, err)
			assert.Equal(t, DecisionReject, outcome.Decision.Kind)
			assert.Equal(t, tt.wantReply != "", outcome.Replied)
			assert.False(t, outcome.Granted)
			f.actions.AssertNotCalled(t, "GrantRole", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			f.repo.AssertNotCalled(t, "IncrementVerifyCount", mock.Anything, mock.Anything)
			if tt.wantReply == "" {
				f.actions.AssertNotCalled(t, "SendMessage", mock.Anything, mock.Anything, mock.Anything)
			}
			f.actions.AssertExpectations(t)
			f.emitter.AssertCalled(t, "Emit", mock.Anything, events.VerificationRejectedEvent{
				GuildID:   testGuildID,
				ChannelID: testChannelID,
				UserID:    testUserID,
				Replied:   tt.wantReply != "",
			})
		})
	}
}

func TestVerificationService_SilentDropFeedback(t *testing.T) {
	tests := []struct {
		name       string
		canManage  bool
		joinedAgo  time.Duration
		opts       VerificationOptions
		wantReason IgnoreReason
		wantNotice string
	}{
		{
			name:       "missing permission silent by default",
			canManage:  false,
			joinedAgo:  time.Hour,
			wantReason: IgnoreMissingPermission,
		},
		{
			name:       "missing permission notice when enabled",
			canManage:  false,
			joinedAgo:  time.Hour,
			opts:       VerificationOptions{NotifyMissingPermission: true},
			wantReason: IgnoreMissingPermission,
			wantNotice: MissingPermissionNotice,
		},
		{
			name:       "too soon silent by default",
			canManage:  true,
			joinedAgo:  10 * time.Second,
			wantReason: IgnoreTooSoon,
		},
		{
			name:       "too soon reply when enabled",
			canManage:  true,
			joinedAgo:  10 * time.Second,
			opts:       VerificationOptions{NotifyTooSoon: true, TooSoonMessage: "{user} wait a minute"},
			wantReason: IgnoreTooSoon,
			wantNotice: "<@4004> wait a minute",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			f := newVerificationFixture(testSettings())
			f.actions.On("BotCanManageRoles", ctx, testGuildID).Return(tt.canManage, nil)
			if tt.wantNotice != "" {
				f.actions.On("SendMessage", ctx, testChannelID, tt.wantNotice).Return(nil).Once()
			}

			msg := testMessage("I agree")
			msg.AuthorJoinedAt = testNow.Add(-tt.joinedAgo)

			outcome, err := f.service(tt.opts).HandleMessage(ctx, msg)

			require.NoError(t, err)
			assert.Equal(t, DecisionIgnore, outcome.Decision.Kind)
			assert.Equal(t, tt.wantReason, outcome.Decision.Reason)
			assert.Equal(t, tt.wantNotice != "", outcome.Replied)
			if tt.wantNotice == "" {
				f.actions.AssertNotCalled(t, "SendMessage", mock.Anything, mock.Anything, mock.Anything)
			}
			f.actions.AssertNotCalled(t, "GrantRole", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			f.actions.AssertExpectations(t)
		})
	}
}

func TestVerificationService_RoleNotUsable(t *testing.T) {
	tests := []struct {
		name      string
		settings  func() *models.GuildVerificationSettings
		setupMock func(ctx context.Context, actions *MockGuildActions)
		wantErr   error
	}{
		{
			name:    "role unset",
			wantErr: ErrRoleNotConfigured,
			settings: func() *models.GuildVerificationSettings {
				s := testSettings()
				s.VerifyRoleID = nil
				return s
			},
		},
		{
			name:     "role deleted",
			settings: testSettings,
			wantErr:  ErrRoleNotFound,
			setupMock: func(ctx context.Context, actions *MockGuildActions) {
				actions.On("ResolveRole", ctx, testGuildID, testRoleID).Return(nil, ErrRoleNotFound)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			f := newVerificationFixture(tt.settings())
			f.actions.On("BotCanManageRoles", ctx, testGuildID).Return(true, nil)
			if tt.setupMock != nil {
				tt.setupMock(ctx, f.actions)
			}

			outcome, err := f.service(VerificationOptions{}).HandleMessage(ctx, testMessage("I agree"))

			require.NoError(t, err)
			assert.Equal(t, DecisionVerify, outcome.Decision.Kind)
			assert.False(t, outcome.Granted)
			assert.Nil(t, outcome.Purge)
			assert.ErrorIs(t, outcome.Unverifiable, tt.wantErr)
			f.repo.AssertNotCalled(t, "IncrementVerifyCount", mock.Anything, mock.Anything)
			f.actions.AssertNotCalled(t, "GrantRole", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			f.actions.AssertNotCalled(t, "RecentMessages", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestVerificationService_GrantFailureLeavesCountUnchanged(t *testing.T) {
	ctx := context.Background()
	f := newVerificationFixture(testSettings())
	f.actions.On("BotCanManageRoles", ctx, testGuildID).Return(true, nil)
	f.actions.On("ResolveRole", ctx, testGuildID, testRoleID).Return(&models.RoleRef{ID: testRoleID}, nil)
	f.actions.On("GrantRole", ctx, testGuildID, testUserID, testRoleID).Return(ErrMissingPermissions)

	outcome, err := f.service(VerificationOptions{}).HandleMessage(ctx, testMessage("I agree"))

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingPermissions)
	assert.False(t, outcome.Granted)
	f.repo.AssertNotCalled(t, "IncrementVerifyCount", mock.Anything, mock.Anything)
}

func TestVerificationService_CleanupForbiddenStillCounts(t *testing.T) {
	ctx := context.Background()
	f := newVerificationFixture(testSettings())
	f.expectSuccessfulGrant(ctx, 1)
	f.actions.On("RecentMessages", ctx, testChannelID, DefaultPurgeLimit).Return(nil, ErrMissingPermissions)
	f.actions.On("SendMessage", ctx, testChannelID, CleanupForbiddenMessage).Return(nil).Once()

	outcome, err := f.service(VerificationOptions{}).HandleMessage(ctx, testMessage("I agree"))

	require.NoError(t, err)
	assert.True(t, outcome.Granted)
	assert.Equal(t, int64(1), outcome.VerifyCount)
	require.NotNil(t, outcome.Purge)
	assert.True(t, outcome.Purge.Forbidden)
	f.actions.AssertExpectations(t)
}

func TestVerificationService_SettingsLoadFailure(t *testing.T) {
	ctx := context.Background()
	f := newVerificationFixture(nil)
	f.repo.On("GetOrCreate", mock.Anything, testGuildID).Return(nil, errors.New("db down"))

	outcome, err := f.service(VerificationOptions{}).HandleMessage(ctx, testMessage("I agree"))

	require.Error(t, err)
	assert.Nil(t, outcome)
	assert.Empty(t, f.actions.Calls)
}

func TestVerificationService_SerializeMembers(t *testing.T) {
	ctx := context.Background()
	settings := testSettings()
	settings.VerifyWrongMsg = ""
	f := newVerificationFixture(settings)

	var (
		mu        sync.Mutex
		inFlight  int
		maxFlight int
	)
	f.actions.On("BotCanManageRoles", ctx, testGuildID).Run(func(args mock.Arguments) {
		mu.Lock()
		inFlight++
		if inFlight > maxFlight {
			maxFlight = inFlight
		}
		mu.Unlock()

		time.Sleep(20 * time.Millisecond)

		mu.Lock()
		inFlight--
		mu.Unlock()
	}).Return(true, nil)

	svc := f.service(VerificationOptions{SerializeMembers: true})

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.HandleMessage(ctx, testMessage("wrong phrase"))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxFlight)
}
