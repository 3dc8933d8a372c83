package common

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"gatekeeper/service"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

// GenericErrorMessage is shown when a command fails for reasons the user cannot fix
const GenericErrorMessage = "Something went wrong. Please try again later."

// BotError represents a structured error with user-facing and internal messages
type BotError struct {
	UserMessage string // Message shown to Discord user
	LogMessage  string // Internal message for logging
	Ephemeral   bool
	Err         error
}

// Error implements the error interface
func (e *BotError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.LogMessage, e.Err)
	}
	return e.LogMessage
}

// Unwrap returns the underlying error
func (e *BotError) Unwrap() error {
	return e.Err
}

// NewUserError creates an error for user-caused issues (bad arguments, unknown role)
func NewUserError(userMessage string, logMessage string) *BotError {
	return &BotError{
		UserMessage: userMessage,
		LogMessage:  logMessage,
		Ephemeral:   true,
	}
}

// NewSystemError creates an error for system issues (database, Discord outages)
func NewSystemError(err error, logMessage string) *BotError {
	return &BotError{
		UserMessage: GenericErrorMessage,
		LogMessage:  logMessage,
		Ephemeral:   true,
		Err:         err,
	}
}

// HandleError logs err and replies with its user-facing message
func HandleError(ctx context.Context, r Responder, err error, fields log.Fields) {
	var botErr *BotError
	if errors.As(err, &botErr) {
		entry := log.WithFields(fields).WithField("user_message", botErr.UserMessage)
		if botErr.Err != nil {
			entry.WithError(botErr.Err).Error(botErr.LogMessage)
		} else {
			entry.Debug(botErr.LogMessage)
		}
		if replyErr := r.ReplyError(ctx, botErr.UserMessage); replyErr != nil {
			log.WithFields(fields).WithError(replyErr).Error("Error sending error response")
		}
		return
	}

	log.WithFields(fields).WithError(err).Error("Unexpected error in verify command")
	if replyErr := r.ReplyError(ctx, GenericErrorMessage); replyErr != nil {
		log.WithFields(fields).WithError(replyErr).Error("Error sending error response")
	}
}

// IsForbidden reports whether err is a Discord 403 or a missing-permission API error
func IsForbidden(err error) bool {
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) {
		return false
	}
	if restErr.Response != nil && restErr.Response.StatusCode == http.StatusForbidden {
		return true
	}
	return restErr.Message != nil &&
		(restErr.Message.Code == discordgo.ErrCodeMissingPermissions || restErr.Message.Code == discordgo.ErrCodeMissingAccess)
}

// IsNotFound reports whether err is a Discord 404
func IsNotFound(err error) bool {
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) {
		return false
	}
	return restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound
}

// MapDiscordError converts permission failures into service.ErrMissingPermissions
func MapDiscordError(err error, action string) error {
	if err == nil {
		return nil
	}
	if IsForbidden(err) {
		return fmt.Errorf("%s: %w", action, service.ErrMissingPermissions)
	}
	return fmt.Errorf("%s: %w", action, err)
}
