package fetch

import (
	"github.com/cockroachdb/errors"

	"github.com/lexfrei/go-fetch/internal/middleware"
)

// Credentials controls whether cookies from the configured jar are sent and
// stored, following the fetch credentials modes.
type Credentials string

const (
	// CredentialsOmit never sends or stores cookies.
	CredentialsOmit Credentials = middleware.CredentialsOmit
	// CredentialsSameOrigin uses cookies only for requests to the client's origin.
	CredentialsSameOrigin Credentials = middleware.CredentialsSameOrigin
	// CredentialsInclude always uses cookies.
	CredentialsInclude Credentials = middleware.CredentialsInclude
)

// ErrInvalidCredentials is returned for an unknown credentials mode.
var ErrInvalidCredentials = errors.New("invalid credentials mode")

// Validate reports whether c is a known mode. The empty value is valid and
// means "inherit".
func (c Credentials) Validate() error {
	switch c {
	case "", CredentialsOmit, CredentialsSameOrigin, CredentialsInclude:
		return nil
	default:
		return errors.Wrapf(ErrInvalidCredentials, "%q", string(c))
	}
}

// resolveCredentials applies call-over-client precedence.
func resolveCredentials(call, client Credentials) Credentials {
	if call != "" {
		return call
	}

	if client != "" {
		return client
	}

	return CredentialsSameOrigin
}
