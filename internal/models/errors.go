package models

import "errors"

var (
	// ErrNotFound means the referenced conversation does not exist.
	ErrNotFound = errors.New("conversation not found")

	// ErrForbidden means the conversation exists but belongs to
	// another user.
	ErrForbidden = errors.New("conversation not owned by caller")

	// ErrQuotaExceeded means the user's daily request limit is
	// reached; it resets at the next UTC day.
	ErrQuotaExceeded = errors.New("daily request quota exceeded")

	// ErrEmptyContent rejects messages with no text.
	ErrEmptyContent = errors.New("message content is empty")

	// ErrInvalidRole rejects roles other than user or assistant.
	ErrInvalidRole = errors.New("message role must be user or assistant")
)
