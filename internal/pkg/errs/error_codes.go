/*
Package errs provides custom error types and application-level error code constants.

These error codes identify specific business or system errors both inside the
server and on the wire toward clients.
*/
package errs

// 1xxx: General Request Handling Errors
const (
	// ErrInvalidParams indicates that request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrBadRequest indicates a structurally valid request with a malformed
	// or missing target (e.g. an interrupt with neither user nor topic).
	ErrBadRequest = 1002

	// ErrRateLimitExceeded indicates that the request rate exceeded the set limit.
	ErrRateLimitExceeded = 1003
)

// 2xxx: Messaging and Topic Errors
const (
	// ErrMessageNotFound indicates an operation referenced an unknown message id.
	ErrMessageNotFound = 2101

	// ErrTopicNotFound indicates an operation referenced an unknown topic id.
	ErrTopicNotFound = 2102

	// ErrMessageContentTooLong indicates message content exceeded the length limit.
	ErrMessageContentTooLong = 2201
)

// 3xxx: Identity and Session Errors
const (
	// ErrUnauthorized indicates that no sender identity could be established.
	ErrUnauthorized = 3001

	// ErrSessionClosed indicates the operation ran against a torn-down session.
	ErrSessionClosed = 3002
)

// 4xxx: Delivery Errors
const (
	// ErrDeliveryFailed indicates a specific connection could not receive a
	// publish. Logged only, never surfaced to the publisher.
	ErrDeliveryFailed = 4001
)

// 5xxx: Internal System Errors
const (
	// ErrUnknown indicates an unclassified internal error.
	ErrUnknown = 5000
)
