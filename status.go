package rollout

// Status summarizes a device's firmware state for the update flow.
type Status string

const (
	StatusNone     Status = "none"     // No firmware installed
	StatusUnknown  Status = "unknown"  // Nothing offered, or not enough reported to tell
	StatusRequired Status = "required" // A mandatory update is pending
	StatusOutdated Status = "outdated" // A newer release is available
	StatusValid    Status = "valid"
)

// FirmwareStatus classifies the device given its resolved decision, which
// may be nil. A device in bootloader mode without firmware is always
// StatusNone.
func FirmwareStatus(features DeviceFeatures, d *Decision) Status {
	if features.BootloaderMode && !features.FirmwarePresent {
		return StatusNone
	}
	if d == nil {
		return StatusUnknown
	}
	if required, ok := d.IsRequired.Get(); ok && required {
		return StatusRequired
	}
	newer, ok := d.IsNewer.Get()
	if !ok {
		return StatusUnknown
	}
	if newer {
		return StatusOutdated
	}
	return StatusValid
}
