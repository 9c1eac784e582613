package rollout

import (
	"encoding/json"
	"fmt"
)

// ParseReleases decodes a JSON release catalog and checks that it is sorted
// newest first, as the resolver relies on.
func ParseReleases(data []byte) ([]Release, error) {
	var releases []Release
	if err := json.Unmarshal(data, &releases); err != nil {
		return nil, fmt.Errorf("failed to decode releases: %w", err)
	}
	if err := ValidateReleases(releases); err != nil {
		return nil, err
	}
	return releases, nil
}

// ValidateReleases checks rollout thresholds and catalog order.
func ValidateReleases(releases []Release) error {
	for i, r := range releases {
		if r.Rollout != nil && (*r.Rollout < 0 || *r.Rollout > 1) {
			return fmt.Errorf("%w: release %s has rollout %v", ErrInvalidRollout, r.Version, *r.Rollout)
		}
		if i > 0 && !IsNewer(releases[i-1].Version, r.Version) {
			return fmt.Errorf("%w: %s listed before %s", ErrCatalogOrder, releases[i-1].Version, r.Version)
		}
	}
	return nil
}

// ParseFeatures decodes a JSON device report.
func ParseFeatures(data []byte) (DeviceFeatures, error) {
	var raw RawFeatures
	if err := json.Unmarshal(data, &raw); err != nil {
		return DeviceFeatures{}, fmt.Errorf("failed to decode features: %w", err)
	}
	return NormalizeFeatures(raw)
}

// NormalizeFeatures turns a raw device report into DeviceFeatures. The
// firmware version is kept only when a Model T bootloader reports all
// three components.
func NormalizeFeatures(raw RawFeatures) (DeviceFeatures, error) {
	gen, err := ParseGeneration(raw.MajorVersion)
	if err != nil {
		return DeviceFeatures{}, err
	}
	f := DeviceFeatures{
		Generation:      gen,
		Version:         V(raw.MajorVersion, raw.MinorVersion, raw.PatchVersion),
		BootloaderMode:  raw.BootloaderMode != nil && *raw.BootloaderMode,
		FirmwarePresent: raw.FirmwarePresent != nil && *raw.FirmwarePresent,
	}
	if raw.DeviceID != nil {
		f.DeviceID = *raw.DeviceID
	}
	if f.BootloaderMode && gen == ModelT && raw.FwMajor != nil && raw.FwMinor != nil && raw.FwPatch != nil {
		fw := V(*raw.FwMajor, *raw.FwMinor, *raw.FwPatch)
		f.Firmware = &fw
	}
	return f, nil
}
