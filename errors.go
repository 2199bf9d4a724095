package dhcpd

import "errors"

// Sentinel errors for the configuration and control surfaces. Wrapped with
// fmt.Errorf("...: %w", ...) at each call boundary and safe to compare with
// errors.Is.
var (
	ErrMissingServerID = errors.New("dhcpd: server id not configured")
	ErrAlreadyRunning  = errors.New("dhcpd: server already running")
	ErrInvalidInterface = errors.New("dhcpd: invalid interface")
)
