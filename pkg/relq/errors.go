package relq

import (
	"errors"

	"github.com/satishbabariya/relq/internal/core/query/domain"
)

// Sentinel errors for common error conditions.
var (
	// ErrUnsupported indicates a query construct that cannot be translated.
	ErrUnsupported = domain.ErrUnsupported

	// ErrUnorderedSkip indicates Skip without an ordering.
	ErrUnorderedSkip = domain.ErrUnorderedSkip

	// ErrConcurrentCursor indicates a second open result set on a connection without multiple cursors.
	ErrConcurrentCursor = domain.ErrConcurrentCursor

	// ErrDisposed indicates use of a closed client.
	ErrDisposed = domain.ErrDisposed

	// ErrNoElements indicates First or Single over an empty result.
	ErrNoElements = domain.ErrNoElements

	// ErrMoreThanOneElement indicates Single over several results.
	ErrMoreThanOneElement = domain.ErrMoreThanOneElement

	// ErrUnknownDriver indicates a driver name no adapter serves.
	ErrUnknownDriver = errors.New("relq: unknown driver")
)

type (
	// TranslationError describes a query that could not be translated.
	TranslationError = domain.TranslationError
	// ProviderError is an error reported by the database.
	ProviderError = domain.ProviderError
)

// IsTranslationError checks if an error comes from query translation.
func IsTranslationError(err error) bool {
	var te *TranslationError
	return errors.As(err, &te)
}

// IsProviderError checks if an error was reported by the database.
func IsProviderError(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}

// IsNoElements checks if an error reports an empty result.
func IsNoElements(err error) bool {
	return errors.Is(err, ErrNoElements)
}

// Kind returns the stable kind of a translation error, or "" for other errors.
func Kind(err error) string {
	if !IsTranslationError(err) {
		return ""
	}
	return domain.KindOf(err)
}
