package infrastructure

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"gatekeeper/events"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockMessagePublisher struct {
	mock.Mock
}

func (m *MockMessagePublisher) Publish(ctx context.Context, subject string, data []byte) error {
	args := m.Called(ctx, subject, data)
	return args.Error(0)
}

func TestSubjectFor(t *testing.T) {
	tests := []struct {
		eventType events.EventType
		expected  string
	}{
		{events.EventTypeMemberVerified, "gatekeeper.member_verified"},
		{events.EventTypeVerificationRejected, "gatekeeper.verification_rejected"},
		{events.EventTypeMessagesPurged, "gatekeeper.messages_purged"},
		{events.EventTypeVerifySettingsChanged, "gatekeeper.verify_settings_changed"},
	}

	for _, tt := range tests {
		t.Run(string(tt.eventType), func(t *testing.T) {
			assert.Equal(t, tt.expected, SubjectFor(tt.eventType))
		})
	}
}

func TestNATSEventForwarder_Forward(t *testing.T) {
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("publishes envelope with payload", func(t *testing.T) {
		publisher := new(MockMessagePublisher)
		forwarder := NewNATSEventForwarder(publisher)
		forwarder.now = func() time.Time { return fixed }

		var published []byte
		publisher.On("Publish", mock.Anything, "gatekeeper.member_verified", mock.Anything).
			Run(func(args mock.Arguments) {
				published = args.Get(2).([]byte)
			}).
			Return(nil)

		event := events.MemberVerifiedEvent{GuildID: 1, ChannelID: 2, UserID: 3, RoleID: 4, VerifyCount: 5}
		require.NoError(t, forwarder.Forward(context.Background(), event))

		var envelope EventEnvelope
		require.NoError(t, json.Unmarshal(published, &envelope))
		assert.Equal(t, "member_verified", envelope.EventType)
		assert.Equal(t, "gatekeeper", envelope.SourceService)
		assert.True(t, fixed.Equal(envelope.Timestamp))
		_, err := uuid.Parse(envelope.EventID)
		assert.NoError(t, err)

		var payload events.MemberVerifiedEvent
		require.NoError(t, json.Unmarshal(envelope.Payload, &payload))
		assert.Equal(t, event.UserID, payload.UserID)
		assert.Equal(t, event.VerifyCount, payload.VerifyCount)
		publisher.AssertExpectations(t)
	})

	t.Run("publish failure is returned", func(t *testing.T) {
		publisher := new(MockMessagePublisher)
		forwarder := NewNATSEventForwarder(publisher)
		publisher.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("no responders"))

		err := forwarder.Forward(context.Background(), events.MessagesPurgedEvent{GuildID: 1})
		assert.Error(t, err)
	})
}

func TestNATSEventForwarder_Register(t *testing.T) {
	publisher := new(MockMessagePublisher)
	forwarder := NewNATSEventForwarder(publisher)
	bus := events.NewBus()
	forwarder.Register(bus)

	done := make(chan struct{})
	publisher.On("Publish", mock.Anything, "gatekeeper.verify_settings_changed", mock.Anything).
		Run(func(args mock.Arguments) { close(done) }).
		Return(nil)

	bus.Emit(context.Background(), events.VerifySettingsChangedEvent{GuildID: 1, Field: "role", ChangedBy: 2})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("event was not forwarded")
	}
}
