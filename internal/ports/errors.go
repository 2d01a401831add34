package ports

import "errors"

// ProviderError carries the identity provider's own error text so it can be
// shown to users. Adapters return it when the IdP rejects a request.
type ProviderError struct {
	Code        string
	Description string
	Cause       error
}

func (e *ProviderError) Error() string {
	if e.Description != "" {
		return e.Description
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return "identity provider error"
}

func (e *ProviderError) Unwrap() error { return e.Cause }

// ErrNotFound is matched (errors.Is) by store-specific not-found errors.
var ErrNotFound = errors.New("not found")
