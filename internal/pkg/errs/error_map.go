/*
Package errs provides custom error types and application-level error code constants.

This file defines the map from error codes to the CustomError struct, used to
standardize HTTP responses and internal error handling.
*/
package errs

import "net/http"

// errorMap stores the CustomError template for every application error code.
var errorMap = map[int]CustomError{
	// 1xxx: General Request Handling Errors
	ErrInvalidParams:     {Code: ErrInvalidParams, Message: "Invalid request parameters.", Status: http.StatusBadRequest},
	ErrBadRequest:        {Code: ErrBadRequest, Message: "Request target is missing or malformed.", Status: http.StatusBadRequest},
	ErrRateLimitExceeded: {Code: ErrRateLimitExceeded, Message: "Too many requests. Please try again later.", Status: http.StatusTooManyRequests},

	// 2xxx: Messaging and Topic Errors
	ErrMessageNotFound:       {Code: ErrMessageNotFound, Message: "Message not found."},
	ErrTopicNotFound:         {Code: ErrTopicNotFound, Message: "Conversation not found."},
	ErrMessageContentTooLong: {Code: ErrMessageContentTooLong, Message: "Message is too long."},

	// 3xxx: Identity and Session Errors
	ErrUnauthorized:  {Code: ErrUnauthorized, Message: "Please sign in to continue.", Status: http.StatusUnauthorized},
	ErrSessionClosed: {Code: ErrSessionClosed, Message: "Connection is closed."},

	// 4xxx: Delivery Errors
	ErrDeliveryFailed: {Code: ErrDeliveryFailed, Message: "Delivery failed."},

	// 5xxx: Internal System Errors
	ErrUnknown: {Code: ErrUnknown, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
}
