// Package services defines the business logic for meal analysis
// submission and user management. This file centralizes common
// service-level error values so that they can be consistently returned
// by service methods and checked by callers.
//
// These errors are intended for internal use by the service layer and
// translation into user-facing messages or HTTP status codes should be
// performed at the handler layer.
package services

import "errors"

// Submission validation errors, surfaced synchronously to the caller.
var (
	// ErrEmptyImage is returned when a submission contains no image data.
	ErrEmptyImage = errors.New("image is empty")

	// ErrImageTooLarge is returned when a submitted image exceeds the
	// configured maximum size.
	ErrImageTooLarge = errors.New("image exceeds maximum size")

	// ErrUnsupportedImage is returned when the uploaded file does not
	// declare an image content type.
	ErrUnsupportedImage = errors.New("file must be an image")
)

// Lookup errors.
var (
	// ErrUserNotFound indicates the referenced user account does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrEventNotFound indicates the requested analysis event does not exist.
	ErrEventNotFound = errors.New("analysis event not found")

	// ErrDuplicateUser is returned when creating a user with an email
	// that is already registered.
	ErrDuplicateUser = errors.New("user already exists")
)
