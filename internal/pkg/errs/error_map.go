/*
Package errs provides custom error types and application-level error code constants.

This file maps every error code to its CustomError template.
*/
package errs

import "net/http"

// errorMap stores the CustomError template for every application error code.
var errorMap = map[int]CustomError{
	// 1xxx: General Request Handling Errors
	ErrInvalidParams:        {Code: ErrInvalidParams, Message: "Invalid request parameters."},
	ErrUnsupportedMediaType: {Code: ErrUnsupportedMediaType, Message: "Unsupported request format."},
	ErrInvalidJSONFormat:    {Code: ErrInvalidJSONFormat, Message: "Unsupported request format."},
	ErrExtraContentInBody:   {Code: ErrExtraContentInBody, Message: "Request contains unexpected data."},
	ErrRateLimitExceeded:    {Code: ErrRateLimitExceeded, Message: "Too many requests. Please try again later.", Status: http.StatusTooManyRequests},
	ErrUnknownMessageType:   {Code: ErrUnknownMessageType, Message: "Unsupported message type: %s."},

	// 2xxx: Channel and Content Business Logic Errors
	ErrChannelNotFound:       {Code: ErrChannelNotFound, Message: "Channel not found.", Status: http.StatusNotFound},
	ErrNotJoined:             {Code: ErrNotJoined, Message: "Join the channel first."},
	ErrAlreadyJoined:         {Code: ErrAlreadyJoined, Message: "Already joined this channel."},
	ErrChannelMismatch:       {Code: ErrChannelMismatch, Message: "This connection belongs to another channel."},
	ErrMessageContentTooLong: {Code: ErrMessageContentTooLong, Message: "Message is too long."},
	ErrMessageContentEmpty:   {Code: ErrMessageContentEmpty, Message: "Message is empty."},
	ErrMuted:                 {Code: ErrMuted, Message: "You are muted in this channel."},
	ErrUnknownAction:         {Code: ErrUnknownAction, Message: "Unknown admin action."},
	ErrOwnerRoleImmutable:    {Code: ErrOwnerRoleImmutable, Message: "The channel owner's role cannot be changed."},
	ErrTargetNotPresent:      {Code: ErrTargetNotPresent, Message: "That user is not in this channel."},

	// 3xxx: User, Session, and Security Errors
	ErrBanned:                  {Code: ErrBanned, Message: "You are banned from this channel.", Status: http.StatusForbidden},
	ErrKicked:                  {Code: ErrKicked, Message: "You were removed from this channel."},
	ErrForbidden:               {Code: ErrForbidden, Message: "You do not have permission to do that.", Status: http.StatusForbidden},
	ErrSelfModeration:          {Code: ErrSelfModeration, Message: "You cannot use this action on yourself."},
	ErrIdentityMismatch:        {Code: ErrIdentityMismatch, Message: "Identity does not match your login."},
	ErrChannelPasswordRequired: {Code: ErrChannelPasswordRequired, Message: "This channel requires a password.", Status: http.StatusUnauthorized},
	ErrChannelPasswordInvalid:  {Code: ErrChannelPasswordInvalid, Message: "Incorrect channel password.", Status: http.StatusUnauthorized},
	ErrUnauthorized:            {Code: ErrUnauthorized, Message: "Please sign in to continue.", Status: http.StatusUnauthorized},

	// 5xxx: Internal System Errors
	ErrUnknown:            {Code: ErrUnknown, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
	ErrServiceUnavailable: {Code: ErrServiceUnavailable, Message: "Server is restarting. Please reconnect shortly.", Status: http.StatusServiceUnavailable},
}
