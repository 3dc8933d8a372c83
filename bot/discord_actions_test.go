package bot

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"gatekeeper/models"
	"gatekeeper/service"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResponse struct {
	status int
	body   string
}

type recordedRequest struct {
	method string
	path   string
	body   string
}

// fakeDiscord answers REST calls by "METHOD /path" and records every request
type fakeDiscord struct {
	mu        sync.Mutex
	responses map[string]fakeResponse
	requests  []recordedRequest
}

func (f *fakeDiscord) RoundTrip(req *http.Request) (*http.Response, error) {
	var body string
	if req.Body != nil {
		raw, _ := io.ReadAll(req.Body)
		body = string(raw)
	}
	path := strings.TrimPrefix(req.URL.Path, "/api/v"+discordgo.APIVersion)

	f.mu.Lock()
	f.requests = append(f.requests, recordedRequest{method: req.Method, path: path, body: body})
	resp, ok := f.responses[req.Method+" "+path]
	f.mu.Unlock()

	if !ok {
		resp = fakeResponse{status: http.StatusNotFound, body: `{"message":"Unknown","code":10000}`}
	}
	return &http.Response{
		StatusCode: resp.status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(resp.body)),
		Request:    req,
	}, nil
}

func (f *fakeDiscord) recorded() []recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedRequest(nil), f.requests...)
}

func newTestActions(t *testing.T, responses map[string]fakeResponse) (*DiscordActions, *fakeDiscord) {
	t.Helper()
	session, err := discordgo.New("Bot test-token")
	require.NoError(t, err)

	fake := &fakeDiscord{responses: responses}
	session.Client = &http.Client{Transport: fake}
	session.MaxRestRetries = 0

	actions := NewDiscordActions(session)
	return actions, fake
}

func TestPartitionForDeletion(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	recent := func(id int64) models.ChannelMessage {
		return models.ChannelMessage{ID: id, Timestamp: now.Add(-time.Hour)}
	}
	old := func(id int64) models.ChannelMessage {
		return models.ChannelMessage{ID: id, Timestamp: now.Add(-15 * 24 * time.Hour)}
	}

	t.Run("single recent message is deleted alone", func(t *testing.T) {
		batches, singles := partitionForDeletion([]models.ChannelMessage{recent(1)}, now)
		assert.Empty(t, batches)
		assert.Equal(t, []string{"1"}, singles)
	})

	t.Run("recent messages are bulk deleted, old ones singly", func(t *testing.T) {
		batches, singles := partitionForDeletion([]models.ChannelMessage{recent(1), old(2), recent(3)}, now)
		assert.Equal(t, [][]string{{"1", "3"}}, batches)
		assert.Equal(t, []string{"2"}, singles)
	})

	t.Run("batches are capped", func(t *testing.T) {
		var messages []models.ChannelMessage
		for i := int64(1); i <= 101; i++ {
			messages = append(messages, recent(i))
		}
		batches, singles := partitionForDeletion(messages, now)
		require.Len(t, batches, 1)
		assert.Len(t, batches[0], 100)
		assert.Equal(t, []string{"101"}, singles)
	})

	t.Run("empty", func(t *testing.T) {
		batches, singles := partitionForDeletion(nil, now)
		assert.Empty(t, batches)
		assert.Empty(t, singles)
	})
}

func TestNewInboundMessage(t *testing.T) {
	joined := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	m := &discordgo.MessageCreate{Message: &discordgo.Message{
		ID:        "10",
		GuildID:   "20",
		ChannelID: "30",
		Content:   "I agree",
		Author:    &discordgo.User{ID: "40"},
		Mentions:  []*discordgo.User{{ID: "50"}, {ID: "60"}},
	}}

	t.Run("member message", func(t *testing.T) {
		msg, err := newInboundMessage(m, &discordgo.Member{JoinedAt: joined})
		require.NoError(t, err)
		assert.Equal(t, &models.InboundMessage{
			ID:             10,
			GuildID:        20,
			ChannelID:      30,
			AuthorID:       40,
			AuthorIsMember: true,
			AuthorJoinedAt: joined,
			Content:        "I agree",
			MentionIDs:     []int64{50, 60},
		}, msg)
	})

	t.Run("non member", func(t *testing.T) {
		msg, err := newInboundMessage(m, nil)
		require.NoError(t, err)
		assert.False(t, msg.AuthorIsMember)
		assert.True(t, msg.AuthorJoinedAt.IsZero())
	})

	t.Run("direct message has no guild", func(t *testing.T) {
		dm := &discordgo.MessageCreate{Message: &discordgo.Message{
			ID: "10", ChannelID: "30", Author: &discordgo.User{ID: "40", Bot: true},
		}}
		msg, err := newInboundMessage(dm, nil)
		require.NoError(t, err)
		assert.True(t, msg.IsDirectMessage())
		assert.True(t, msg.AuthorIsBot)
	})

	t.Run("bad id", func(t *testing.T) {
		bad := &discordgo.MessageCreate{Message: &discordgo.Message{ID: "x", ChannelID: "30"}}
		_, err := newInboundMessage(bad, nil)
		assert.Error(t, err)
	})
}

func TestDiscordActions_GrantRole(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		actions, fake := newTestActions(t, map[string]fakeResponse{
			"PUT /guilds/1/members/2/roles/3": {status: http.StatusNoContent},
		})
		require.NoError(t, actions.GrantRole(ctx, 1, 2, 3))
		assert.Len(t, fake.recorded(), 1)
	})

	t.Run("forbidden maps to missing permissions", func(t *testing.T) {
		actions, _ := newTestActions(t, map[string]fakeResponse{
			"PUT /guilds/1/members/2/roles/3": {status: http.StatusForbidden, body: `{"message":"Missing Permissions","code":50013}`},
		})
		err := actions.GrantRole(ctx, 1, 2, 3)
		assert.ErrorIs(t, err, service.ErrMissingPermissions)
	})
}

func TestDiscordActions_ResolveRole(t *testing.T) {
	ctx := context.Background()
	actions, _ := newTestActions(t, map[string]fakeResponse{
		"GET /guilds/1/roles": {status: http.StatusOK, body: `[{"id":"3","name":"Verified"},{"id":"4","name":"Mods"}]`},
	})

	role, err := actions.ResolveRole(ctx, 1, 3)
	require.NoError(t, err)
	assert.Equal(t, &models.RoleRef{ID: 3, Name: "Verified"}, role)

	_, err = actions.ResolveRole(ctx, 1, 99)
	assert.ErrorIs(t, err, service.ErrRoleNotFound)
}

func TestDiscordActions_ResolveChannel(t *testing.T) {
	ctx := context.Background()
	actions, _ := newTestActions(t, map[string]fakeResponse{
		"GET /channels/30": {status: http.StatusOK, body: `{"id":"30","guild_id":"1","name":"welcome","type":0}`},
		"GET /channels/31": {status: http.StatusOK, body: `{"id":"31","guild_id":"2","name":"elsewhere","type":0}`},
	})

	channel, err := actions.ResolveChannel(ctx, 1, 30)
	require.NoError(t, err)
	assert.Equal(t, &models.ChannelRef{ID: 30, Name: "welcome"}, channel)

	_, err = actions.ResolveChannel(ctx, 1, 31)
	assert.ErrorIs(t, err, service.ErrChannelNotFound)

	_, err = actions.ResolveChannel(ctx, 1, 32)
	assert.ErrorIs(t, err, service.ErrChannelNotFound)
}

func TestDiscordActions_DeleteMessages(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	actions, fake := newTestActions(t, map[string]fakeResponse{
		"POST /channels/30/messages/bulk-delete": {status: http.StatusNoContent},
		"DELETE /channels/30/messages/3":         {status: http.StatusNoContent},
	})

	err := actions.DeleteMessages(ctx, 30, []models.ChannelMessage{
		{ID: 1, Timestamp: now.Add(-time.Minute)},
		{ID: 2, Timestamp: now.Add(-2 * time.Minute)},
		{ID: 3, Timestamp: now.Add(-20 * 24 * time.Hour)},
	})
	require.NoError(t, err)

	requests := fake.recorded()
	require.Len(t, requests, 2)
	assert.Equal(t, "POST", requests[0].method)

	var payload struct {
		Messages []string `json:"messages"`
	}
	require.NoError(t, json.Unmarshal([]byte(requests[0].body), &payload))
	assert.Equal(t, []string{"1", "2"}, payload.Messages)
	assert.Equal(t, "DELETE", requests[1].method)
	assert.Equal(t, "/channels/30/messages/3", requests[1].path)
}

func TestDiscordActions_DeleteMessagesForbidden(t *testing.T) {
	now := time.Now()
	actions, _ := newTestActions(t, map[string]fakeResponse{
		"POST /channels/30/messages/bulk-delete": {status: http.StatusForbidden, body: `{"message":"Missing Permissions","code":50013}`},
	})

	err := actions.DeleteMessages(context.Background(), 30, []models.ChannelMessage{
		{ID: 1, Timestamp: now},
		{ID: 2, Timestamp: now},
	})
	assert.ErrorIs(t, err, service.ErrMissingPermissions)
}

func TestDiscordActions_RecentMessages(t *testing.T) {
	actions, _ := newTestActions(t, map[string]fakeResponse{
		"GET /channels/30/messages": {status: http.StatusOK, body: `[
			{"id":"5","channel_id":"30","author":{"id":"40"},"mentions":[{"id":"50"}],"timestamp":"2024-06-01T12:00:00+00:00"},
			{"id":"4","channel_id":"30","author":{"id":"41"},"mentions":[],"timestamp":"2024-06-01T11:00:00+00:00"}
		]`},
	})

	messages, err := actions.RecentMessages(context.Background(), 30, 500)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, int64(5), messages[0].ID)
	assert.Equal(t, int64(40), messages[0].AuthorID)
	assert.True(t, messages[0].Mentions(50))
	assert.Equal(t, int64(41), messages[1].AuthorID)
}

func TestDiscordActions_MemberHasRole(t *testing.T) {
	ctx := context.Background()
	actions, _ := newTestActions(t, map[string]fakeResponse{
		"GET /guilds/1/members/40": {status: http.StatusOK, body: `{"user":{"id":"40"},"roles":["3","7"],"joined_at":"2024-01-01T00:00:00+00:00"}`},
	})

	has, err := actions.MemberHasRole(ctx, 1, 40, 3)
	require.NoError(t, err)
	assert.True(t, has)

	has, err = actions.MemberHasRole(ctx, 1, 40, 9)
	require.NoError(t, err)
	assert.False(t, has)

	// Departed users are not members
	has, err = actions.MemberHasRole(ctx, 1, 41, 3)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestDiscordActions_MemberPermissions(t *testing.T) {
	actions, _ := newTestActions(t, map[string]fakeResponse{
		"GET /guilds/1": {status: http.StatusOK, body: `{"id":"1","owner_id":"99","roles":[
			{"id":"1","permissions":"0"},
			{"id":"3","permissions":"32"}
		]}`},
		"GET /guilds/1/members/40": {status: http.StatusOK, body: `{"user":{"id":"40"},"roles":["3"]}`},
	})

	perms, roles, err := actions.MemberPermissions(context.Background(), 1, 40)
	require.NoError(t, err)
	assert.NotZero(t, perms&discordgo.PermissionManageGuild)
	assert.Equal(t, []string{"3"}, roles)
}
