package service

import (
	"errors"
	"fmt"

	apperrors "github.com/pdsapp/pds/internal/errors"
	"github.com/pdsapp/pds/internal/ports"
)

var (
	// ErrAuthUnavailable is returned by every session read when the identity
	// provider could not be configured.
	ErrAuthUnavailable = apperrors.New(apperrors.ErrCodeUnavailable, "authentication is unavailable")
	// ErrIdentityTimeout is returned when no identity arrives within the wait window.
	ErrIdentityTimeout = apperrors.New(apperrors.ErrCodeTimeout, "timed out waiting for identity")
	// ErrProviderRejected wraps failures reported by the identity provider.
	ErrProviderRejected = apperrors.New(apperrors.ErrCodeUnauthenticated, "identity provider rejected the request")

	errSessionExpired = errors.New("session expired")
)

// ProviderMessage returns the identity provider's own error text carried by
// err, or fallback when there is none.
func ProviderMessage(err error, fallback string) string {
	var pe *ports.ProviderError
	if errors.As(err, &pe) {
		if msg := pe.Error(); msg != "" {
			return msg
		}
	}
	return fallback
}

func providerRejected(err error) error {
	return fmt.Errorf("%w: %w", ErrProviderRejected, err)
}
