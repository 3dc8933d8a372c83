package service

import (
	"fmt"
	"strings"
	"time"

	"gatekeeper/models"
)

// DecisionKind is the outcome class of a gate evaluation
type DecisionKind int

const (
	DecisionIgnore DecisionKind = iota
	DecisionReject
	DecisionVerify
)

func (k DecisionKind) String() string {
	switch k {
	case DecisionReject:
		return "reject"
	case DecisionVerify:
		return "verify"
	default:
		return "ignore"
	}
}

// IgnoreReason explains why a message was dropped before content matching
type IgnoreReason string

const (
	IgnoreNone              IgnoreReason = ""
	IgnoreDirectMessage     IgnoreReason = "direct_message"
	IgnoreNotMember         IgnoreReason = "not_member"
	IgnoreWrongChannel      IgnoreReason = "wrong_channel"
	IgnoreMissingPermission IgnoreReason = "missing_permission"
	IgnoreTooSoon           IgnoreReason = "too_soon"
)

// GateDecision is the result of evaluating one message
type GateDecision struct {
	Kind   DecisionKind
	Reason IgnoreReason // Set for DecisionIgnore
	Reply  string       // Set for DecisionReject when a wrong-message template is configured
}

// ScreenAuthor applies the filters that need neither settings nor Discord lookups
func ScreenAuthor(msg *models.InboundMessage) IgnoreReason {
	if msg.IsDirectMessage() {
		return IgnoreDirectMessage
	}
	if msg.AuthorIsBot || !msg.AuthorIsMember {
		return IgnoreNotMember
	}
	return IgnoreNone
}

// ScreenMessage applies every filter that can be decided without probing bot permissions
func ScreenMessage(msg *models.InboundMessage, settings *models.GuildVerificationSettings) IgnoreReason {
	if reason := ScreenAuthor(msg); reason != IgnoreNone {
		return reason
	}
	if !settings.IsVerifyChannel(msg.ChannelID) {
		return IgnoreWrongChannel
	}
	return IgnoreNone
}

// JoinedTooRecently reports whether a member who joined at joinedAt is still inside the
// minimum membership window at now. Joining exactly minTime ago is allowed.
func JoinedTooRecently(joinedAt time.Time, minTime time.Duration, now time.Time) bool {
	if joinedAt.IsZero() {
		return minTime > 0
	}
	return joinedAt.After(now.Add(-minTime))
}

// EvaluateMessage decides what to do with a message. It performs no I/O.
// Filters run in order: direct message, author, channel, bot permission, membership age.
func EvaluateMessage(msg *models.InboundMessage, settings *models.GuildVerificationSettings, canManageRoles bool, now time.Time) GateDecision {
	if reason := ScreenMessage(msg, settings); reason != IgnoreNone {
		return GateDecision{Kind: DecisionIgnore, Reason: reason}
	}
	if !canManageRoles {
		return GateDecision{Kind: DecisionIgnore, Reason: IgnoreMissingPermission}
	}
	if JoinedTooRecently(msg.AuthorJoinedAt, settings.MinTime(), now) {
		return GateDecision{Kind: DecisionIgnore, Reason: IgnoreTooSoon}
	}

	if msg.Content != settings.VerifyMessage {
		return GateDecision{
			Kind:  DecisionReject,
			Reply: RenderUserTemplate(settings.VerifyWrongMsg, msg.AuthorID),
		}
	}

	return GateDecision{Kind: DecisionVerify}
}

// RenderUserTemplate replaces every {user} in template with a mention of userID
func RenderUserTemplate(template string, userID int64) string {
	if template == "" {
		return ""
	}
	return strings.ReplaceAll(template, "{user}", UserMention(userID))
}

// UserMention formats a Discord user mention
func UserMention(userID int64) string {
	return fmt.Sprintf("<@%d>", userID)
}
