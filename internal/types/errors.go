package types

import (
	"errors"
	"fmt"
)

// ErrorKind classifies every failure this system reports at its boundary.
type ErrorKind string

const (
	// KindValidation: a required field is missing or malformed. Rejected
	// before any write.
	KindValidation ErrorKind = "validation"
	// KindNotFound: unknown template or entity id. Not retryable.
	KindNotFound ErrorKind = "not_found"
	// KindPublishConflict: a concurrent publish won the version race. Safe
	// to retry against fresh state.
	KindPublishConflict ErrorKind = "publish_conflict"
	// KindEmptyPublish: no active factory memories to publish.
	KindEmptyPublish ErrorKind = "empty_publish"
	// KindInternal: anything else; classified at the API boundary.
	KindInternal ErrorKind = "internal"
)

// Error is the structured error carried across package boundaries so the
// transport layer can render kind + message directly.
type Error struct {
	Kind    ErrorKind `json:"kind"`
	Field   string    `json:"field,omitempty"`
	Message string    `json:"message"`
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// ValidationError reports a rejected field before any write happens.
func ValidationError(field, format string, args ...any) error {
	return &Error{Kind: KindValidation, Field: field, Message: fmt.Sprintf(format, args...)}
}

// NotFound reports an unknown entity id.
func NotFound(entity, id string) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s %q not found", entity, id)}
}

// PublishConflict reports a lost concurrent publish race.
func PublishConflict(templateID string, expected int) error {
	return &Error{
		Kind:    KindPublishConflict,
		Message: fmt.Sprintf("template %q factory version moved past %d during publish; retry with fresh state", templateID, expected),
	}
}

// EmptyPublish reports a publish attempt with no active factory memories.
func EmptyPublish(templateID string) error {
	return &Error{
		Kind:    KindEmptyPublish,
		Message: fmt.Sprintf("template %q has no active factory memories to publish", templateID),
	}
}

// KindOf extracts the classification of err, unwrapping as needed.
// Unclassified errors report KindInternal.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// BatchError is one per-input failure inside a bulk operation.
type BatchError struct {
	UserID  string `json:"user_id"`
	Message string `json:"message"`
}

// BatchResult reports a bulk assignment outcome. Per-user failures are
// isolated; the batch as a whole never rolls back.
type BatchResult struct {
	Succeeded []Assignment `json:"succeeded"`
	Failed    []BatchError `json:"failed"`
}
