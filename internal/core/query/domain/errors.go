package domain

import (
	"errors"
	"fmt"
)

// Translation errors. They are raised while a query is compiled and are
// never retried.
var (
	// ErrUnsupported is returned for an expression shape that cannot be translated.
	ErrUnsupported = errors.New("unsupported query expression")

	// ErrUnorderedSkip is returned when Skip is applied without an ordering.
	ErrUnorderedSkip = errors.New("skip requires an explicit ordering")

	// ErrTemporalScopeMismatch is returned when set-operation operands carry different temporal scopes.
	ErrTemporalScopeMismatch = errors.New("set operation operands have different temporal scopes")

	// ErrConflictingCollectionType is returned when one collection parameter is compared to columns of different store types.
	ErrConflictingCollectionType = errors.New("collection parameter bound to conflicting store types")

	// ErrInsufficientOuterIdentity is returned when a collection join has no key to identify outer rows.
	ErrInsufficientOuterIdentity = errors.New("insufficient information to identify outer element of a collection join")

	// ErrTemporalNavigation is returned when a navigation is expanded under a non AsOf temporal scope.
	ErrTemporalNavigation = errors.New("navigation expansion is only supported for AsOf temporal queries")

	// ErrNavigationDepth is returned when a navigation path exceeds the configured depth.
	ErrNavigationDepth = errors.New("navigation path exceeds maximum depth")

	// ErrUnknownMember is returned when a member does not exist on the accessed type.
	ErrUnknownMember = errors.New("unknown member")

	// ErrInternal marks a translator bug, such as a column referencing a table outside its select.
	ErrInternal = errors.New("internal translation error")
)

// Runtime errors.
var (
	// ErrConcurrentCursor is returned when a second cursor is opened on a connection that supports only one.
	ErrConcurrentCursor = errors.New("invalid operation: another result set is still open on this connection")

	// ErrDisposed is returned when a closed session is read from.
	ErrDisposed = errors.New("invalid operation: the session has been disposed")

	// ErrSplitQueryOrdering is returned when split-query result sets are not ordered consistently.
	ErrSplitQueryOrdering = errors.New("split query results are not ordered by parent key")

	// ErrUnknownDiscriminator is returned when a row carries a discriminator of no known type.
	ErrUnknownDiscriminator = errors.New("unknown discriminator value")

	// ErrNoElements is returned by First and Single on an empty result.
	ErrNoElements = errors.New("sequence contains no elements")

	// ErrMoreThanOneElement is returned by Single on a result with several rows.
	ErrMoreThanOneElement = errors.New("sequence contains more than one element")
)

// ErrCodeConversion is the provider code of a failed value conversion.
const ErrCodeConversion = 245

// TranslationError describes a failed translation with enough context to
// locate the offending construct.
type TranslationError struct {
	// Kind is a stable identifier logged with translation failures.
	Kind string
	// Construct is the rendered expression or operator that failed.
	Construct string
	// Entity is the entity type involved, if any.
	Entity string
	Cause  error
}

// Error implements the error interface.
func (e *TranslationError) Error() string {
	msg := e.Cause.Error()
	if e.Construct != "" {
		msg = fmt.Sprintf("%s: %s", e.Construct, msg)
	}
	if e.Entity != "" {
		msg = fmt.Sprintf("%s (entity %s)", msg, e.Entity)
	}
	return "translate: " + msg
}

// Unwrap returns the underlying error.
func (e *TranslationError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target.
func (e *TranslationError) Is(target error) bool {
	return errors.Is(e.Cause, target)
}

var kinds = map[error]string{
	ErrUnsupported:               "unsupported",
	ErrUnorderedSkip:             "unordered_skip",
	ErrTemporalScopeMismatch:     "temporal_scope_mismatch",
	ErrConflictingCollectionType: "conflicting_collection_type",
	ErrInsufficientOuterIdentity: "insufficient_outer_identity",
	ErrTemporalNavigation:        "temporal_navigation",
	ErrNavigationDepth:           "navigation_depth",
	ErrUnknownMember:             "unknown_member",
	ErrInternal:                  "internal",
}

// NewTranslationError creates a TranslationError whose kind is derived from the sentinel in cause.
func NewTranslationError(cause error, construct, entity string) *TranslationError {
	var te *TranslationError
	if errors.As(cause, &te) {
		return te
	}
	return &TranslationError{Kind: KindOf(cause), Construct: construct, Entity: entity, Cause: cause}
}

// Errorf formats a translation error wrapping sentinel.
func Errorf(sentinel error, construct, entity, format string, args ...any) *TranslationError {
	cause := sentinel
	if format != "" {
		cause = fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))
	}
	return &TranslationError{Kind: KindOf(sentinel), Construct: construct, Entity: entity, Cause: cause}
}

// KindOf returns the stable kind string of err.
func KindOf(err error) string {
	var te *TranslationError
	if errors.As(err, &te) && te.Kind != "" {
		return te.Kind
	}
	for sentinel, kind := range kinds {
		if errors.Is(err, sentinel) {
			return kind
		}
	}
	return "unsupported"
}

// ProviderError is a runtime failure reported by the store or by value
// conversion. Code is stable and callers may branch on it.
type ProviderError struct {
	Code    int
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider error %d: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// IsTranslationError checks if an error was raised during translation.
func IsTranslationError(err error) bool {
	var te *TranslationError
	return errors.As(err, &te)
}

// ProviderCode returns the code of a ProviderError in err's chain.
func ProviderCode(err error) (int, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Code, true
	}
	return 0, false
}
