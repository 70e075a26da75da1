package adapter

import "fmt"

type DuplicateProviderError struct {
	Provider string
}

func (e *DuplicateProviderError) Error() string {
	return fmt.Sprintf("provider %q is already registered", e.Provider)
}

// UnknownProviderError means no adapter exists for the id after alias
// resolution.
type UnknownProviderError struct {
	Provider string
}

func (e *UnknownProviderError) Error() string {
	return fmt.Sprintf("unknown provider %q", e.Provider)
}

// NormalizationError reports a payload that cannot become a canonical
// event at all (not an object, no event id).
type NormalizationError struct {
	Provider string
	Reason   string
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("normalizing %s payload: %s", e.Provider, e.Reason)
}
