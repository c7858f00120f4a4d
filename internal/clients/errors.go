package clients

import "github.com/pkg/errors"

var (
	//ErrRateLimited signals the provider rejected the credential used for the
	//current request; the caller rotates to the next one.
	ErrRateLimited = errors.New("provider rate limited")

	//ErrCredentialsExhausted means every rotation attempt was rate limited.
	ErrCredentialsExhausted = errors.New("all credentials exhausted")

	//ErrBlocked is a network-level denial, distinguishable from an ordinary
	//rate limit. Raised by the marketplace provider only.
	ErrBlocked = errors.New("provider access blocked")

	//ErrNoCredentials is returned by the pool when it holds zero credentials.
	ErrNoCredentials = errors.New("no credentials available")
)
