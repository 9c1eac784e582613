package rollout

import "errors"

var (
	// ErrNoFirmwareFound means nothing is admitted for the device or the
	// requested version is not among the admitted releases.
	ErrNoFirmwareFound = errors.New("no firmware found for this device")
	// ErrVariantUnavailable means a bitcoin-only binary was requested for a
	// release that does not publish one.
	ErrVariantUnavailable = errors.New("firmware variant unavailable")
	// ErrVersionMismatch means the requested version is not the release
	// resolved for the device. Never recoverable.
	ErrVersionMismatch = errors.New("requested version does not match resolved firmware version")

	ErrInvalidVersion = errors.New("invalid version")
	ErrInvalidRollout = errors.New("invalid rollout threshold")
	ErrCatalogOrder   = errors.New("releases are not sorted by descending version")
	ErrUnknownDevice  = errors.New("unknown device model")
	ErrImageTooLarge  = errors.New("firmware image too large")
)
