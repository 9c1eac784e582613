package rollout

// FilterByFirmware keeps releases installable over the given firmware.
func FilterByFirmware(releases []Release, firmware Version) []Release {
	out := make([]Release, 0, len(releases))
	for _, r := range releases {
		if r.MinFirmwareVersion == nil || IsNewerOrEqual(firmware, *r.MinFirmwareVersion) {
			out = append(out, r)
		}
	}
	return out
}

// FilterByBootloader keeps releases installable from the given bootloader.
// A release whose bundled bootloader is older than the device's would
// downgrade it and is excluded.
func FilterByBootloader(releases []Release, bootloader Version) []Release {
	out := make([]Release, 0, len(releases))
	for _, r := range releases {
		if r.MinBootloaderVersion != nil && !IsNewerOrEqual(bootloader, *r.MinBootloaderVersion) {
			continue
		}
		if r.BootloaderVersion != nil && !IsNewerOrEqual(*r.BootloaderVersion, bootloader) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// SafeReleases returns the releases provably compatible with what the
// device reports about itself, newest first.
func SafeReleases(releases []Release, features DeviceFeatures) []Release {
	p := policyFor(features.Generation)
	if features.BootloaderMode {
		return FilterByBootloader(p.filterSafeInBootloader(releases, features), features.Version)
	}
	return FilterByFirmware(releases, features.Version)
}
