package service

import (
	"context"
	"errors"
	"fmt"

	"gatekeeper/models"

	log "github.com/sirupsen/logrus"
)

// CleanupForbiddenMessage is posted when Discord refuses the purge
const CleanupForbiddenMessage = "I don't have permissions to cleanup!"

// DefaultPurgeLimit is how many recent messages cleanup scans
const DefaultPurgeLimit = 100

// PurgeRequest identifies what cleanup runs for
type PurgeRequest struct {
	GuildID        int64
	ChannelID      int64
	VerifiedUserID int64
	RoleID         int64
}

// PurgeResult summarizes a cleanup run
type PurgeResult struct {
	Scanned   int
	Deleted   int
	Forbidden bool
}

// Cleaner removes chatter related to a member who just verified
type Cleaner struct {
	actions GuildActions
	limit   int
}

// NewCleaner creates a cleaner scanning up to limit messages (DefaultPurgeLimit when limit <= 0)
func NewCleaner(actions GuildActions, limit int) *Cleaner {
	if limit <= 0 {
		limit = DefaultPurgeLimit
	}
	return &Cleaner{actions: actions, limit: limit}
}

// Purge deletes recent messages in the channel that were written by the verified member,
// or that mention the verified member and only mention members holding the role.
// A permission failure posts CleanupForbiddenMessage once and is not returned as an error.
func (c *Cleaner) Purge(ctx context.Context, req PurgeRequest) (*PurgeResult, error) {
	result := &PurgeResult{}

	recent, err := c.actions.RecentMessages(ctx, req.ChannelID, c.limit)
	if err != nil {
		return c.handleFailure(ctx, req, result, fmt.Errorf("failed to fetch recent messages: %w", err))
	}
	result.Scanned = len(recent)

	holders := newRoleHolderCache(c.actions, req)
	var doomed []models.ChannelMessage
	for _, msg := range recent {
		if holders.shouldDelete(ctx, msg) {
			doomed = append(doomed, msg)
		}
	}

	if len(doomed) == 0 {
		return result, nil
	}

	if err := c.actions.DeleteMessages(ctx, req.ChannelID, doomed); err != nil {
		return c.handleFailure(ctx, req, result, fmt.Errorf("failed to delete messages: %w", err))
	}
	result.Deleted = len(doomed)

	log.WithFields(log.Fields{
		"guild_id":   req.GuildID,
		"channel_id": req.ChannelID,
		"user_id":    req.VerifiedUserID,
		"scanned":    result.Scanned,
		"deleted":    result.Deleted,
	}).Debug("Verification cleanup finished")

	return result, nil
}

func (c *Cleaner) handleFailure(ctx context.Context, req PurgeRequest, result *PurgeResult, err error) (*PurgeResult, error) {
	if !errors.Is(err, ErrMissingPermissions) {
		return result, err
	}

	result.Forbidden = true
	log.WithFields(log.Fields{
		"guild_id":   req.GuildID,
		"channel_id": req.ChannelID,
	}).Warn("Missing permissions for verification cleanup")

	if sendErr := c.actions.SendMessage(ctx, req.ChannelID, CleanupForbiddenMessage); sendErr != nil {
		log.WithError(sendErr).WithField("channel_id", req.ChannelID).Warn("Failed to send cleanup permission notice")
	}
	return result, nil
}

// roleHolderCache memoizes role membership lookups for one purge
type roleHolderCache struct {
	actions GuildActions
	req     PurgeRequest
	known   map[int64]bool
}

func newRoleHolderCache(actions GuildActions, req PurgeRequest) *roleHolderCache {
	return &roleHolderCache{
		actions: actions,
		req:     req,
		// The role was just granted, the member cache may not reflect it yet
		known: map[int64]bool{req.VerifiedUserID: true},
	}
}

func (h *roleHolderCache) shouldDelete(ctx context.Context, msg models.ChannelMessage) bool {
	if msg.AuthorID == h.req.VerifiedUserID {
		return true
	}
	if !msg.Mentions(h.req.VerifiedUserID) {
		return false
	}
	for _, userID := range msg.MentionIDs {
		if !h.holdsRole(ctx, userID) {
			return false
		}
	}
	return true
}

func (h *roleHolderCache) holdsRole(ctx context.Context, userID int64) bool {
	if has, ok := h.known[userID]; ok {
		return has
	}

	has, err := h.actions.MemberHasRole(ctx, h.req.GuildID, userID, h.req.RoleID)
	if err != nil {
		log.WithError(err).WithFields(log.Fields{
			"guild_id": h.req.GuildID,
			"user_id":  userID,
		}).Debug("Role lookup failed during cleanup, keeping message")
		has = false
	}
	h.known[userID] = has
	return has
}
