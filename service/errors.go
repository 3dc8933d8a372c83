package service

import "errors"

var (
	// ErrNegativeMinTime is returned when an admin sets a negative minimum membership time
	ErrNegativeMinTime = errors.New("verify minimum time was below 0 seconds")

	// ErrMissingPermissions is returned by GuildActions when Discord refuses an operation
	ErrMissingPermissions = errors.New("missing discord permissions")

	// ErrRoleNotConfigured marks a matching message in a guild with no verify role set
	ErrRoleNotConfigured = errors.New("verify role is not configured")
	ErrRoleNotFound      = errors.New("role not found")
	ErrChannelNotFound   = errors.New("channel not found")
)
