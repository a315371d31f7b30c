package probe

import "errors"

var (
	// ErrInvalidProbe indicates a probe definition that fails validation
	// (missing name, missing URL, non-positive interval).
	ErrInvalidProbe = errors.New("probe: invalid probe configuration")

	// ErrUnreachable indicates the target could not be contacted at all:
	// connection refused, DNS failure, timeout before any response.
	ErrUnreachable = errors.New("probe: target unreachable")

	// ErrUnexpectedStatus indicates an HTTP response arrived but its status
	// code is not in the probe's expected set.
	ErrUnexpectedStatus = errors.New("probe: unexpected status code")

	// ErrBodyMismatch indicates an HTTP response arrived but its body does
	// not contain the expected substring.
	ErrBodyMismatch = errors.New("probe: expected content missing")

	// ErrCertExpiring indicates a TLS certificate that is expired or inside
	// the configured expiry warning window.
	ErrCertExpiring = errors.New("probe: certificate expiring")
)
