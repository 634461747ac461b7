/*
Package errs provides custom error types and application-level error code constants.

The codes identify business and security failures both inside the server and on the
wire: HTTP responses carry them in the JSON body and WebSocket `error` events carry
them in their payload.
*/
package errs

// 1xxx: General Request Handling Errors
const (
	// ErrInvalidParams indicates that request or message parameter validation failed.
	ErrInvalidParams = 1001

	// ErrUnsupportedMediaType indicates that the request header Content-Type is not supported.
	ErrUnsupportedMediaType = 1002

	// ErrInvalidJSONFormat indicates that the request body or frame is not valid JSON.
	ErrInvalidJSONFormat = 1003

	// ErrExtraContentInBody indicates that the request body contained extra content after valid JSON data.
	ErrExtraContentInBody = 1004

	// ErrRateLimitExceeded indicates that the request rate has exceeded the set limit.
	ErrRateLimitExceeded = 1007

	// ErrUnknownMessageType indicates that a WebSocket frame carried an unsupported type discriminator.
	ErrUnknownMessageType = 1008
)

// 2xxx: Channel and Content Business Logic Errors
const (
	// ErrChannelNotFound indicates that the addressed channel does not exist.
	ErrChannelNotFound = 2103

	// ErrNotJoined indicates that the session sent a chat or admin message before joining.
	ErrNotJoined = 2105

	// ErrAlreadyJoined indicates that the session attempted a second join.
	ErrAlreadyJoined = 2106

	// ErrChannelMismatch indicates that a message named a channel other than the session's room.
	ErrChannelMismatch = 2107

	// ErrMessageContentTooLong indicates that the message content exceeded the maximum length limit.
	ErrMessageContentTooLong = 2201

	// ErrMessageContentEmpty indicates that the message content was empty after trimming.
	ErrMessageContentEmpty = 2202

	// ErrMuted indicates that the sender is muted in this channel.
	ErrMuted = 2203

	// ErrUnknownAction indicates an admin action outside the supported set.
	ErrUnknownAction = 2301

	// ErrOwnerRoleImmutable indicates an attempt to change the channel owner's role.
	ErrOwnerRoleImmutable = 2302

	// ErrTargetNotPresent indicates a kick aimed at an identity with no live session.
	ErrTargetNotPresent = 2303
)

// 3xxx: User, Session, and Security Errors
const (
	// ErrBanned indicates that the identity is banned from the channel.
	ErrBanned = 3005

	// ErrKicked indicates that the session was removed from the channel by a moderator.
	ErrKicked = 3006

	// ErrForbidden indicates that the caller's role does not permit the requested action.
	ErrForbidden = 3007

	// ErrSelfModeration indicates that a moderator attempted to moderate their own identity.
	ErrSelfModeration = 3008

	// ErrIdentityMismatch indicates that the join identity differs from the verified login identity.
	ErrIdentityMismatch = 3009

	// ErrChannelPasswordRequired indicates that the channel requires a valid access token.
	ErrChannelPasswordRequired = 3010

	// ErrChannelPasswordInvalid indicates that the supplied channel password is wrong.
	ErrChannelPasswordInvalid = 3011

	// ErrUnauthorized indicates missing or invalid authentication.
	ErrUnauthorized = 3100
)

// 5xxx: Internal System Errors
const (
	// ErrUnknown represents an unclassified, general server internal error.
	ErrUnknown = 5000

	// ErrServiceUnavailable indicates that the server is shutting down.
	ErrServiceUnavailable = 5003
)
