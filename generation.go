package rollout

import "fmt"

// Generation identifies a hardware model by the major version it reports.
type Generation uint32

const (
	ModelOne Generation = 1
	ModelT   Generation = 2
)

func (g Generation) String() string {
	switch g {
	case ModelOne:
		return "Model One"
	case ModelT:
		return "Model T"
	default:
		return fmt.Sprintf("unknown(%d)", uint32(g))
	}
}

// label is the metric label for g. Unrecognized generations share one
// label so hand-built features cannot grow the label set.
func (g Generation) label() string {
	switch g {
	case ModelOne:
		return "model_one"
	case ModelT:
		return "model_t"
	default:
		return "unknown"
	}
}

// ParseGeneration maps a reported major version to a Generation.
func ParseGeneration(major uint32) (Generation, error) {
	switch g := Generation(major); g {
	case ModelOne, ModelT:
		return g, nil
	default:
		return 0, fmt.Errorf("%w: major version %d", ErrUnknownDevice, major)
	}
}

// policy captures what a generation can tell us about its installed
// firmware while it sits in the bootloader.
type policy interface {
	// filterSafeInBootloader narrows releases by the installed firmware
	// when the bootloader reports it; the bootloader filter runs after.
	filterSafeInBootloader(releases []Release, f DeviceFeatures) []Release
	// changelogInBootloader is consulted only when firmware is present.
	changelogInBootloader(releases []Release, f DeviceFeatures) Optional[[]Release]
	isNewer(latest Release, f DeviceFeatures) Optional[bool]
	modifyFirmware(fw []byte, f DeviceFeatures) []byte
}

var policies = map[Generation]policy{
	ModelOne: modelOnePolicy{},
	ModelT:   modelTPolicy{},
}

func policyFor(g Generation) policy {
	if p, ok := policies[g]; ok {
		return p
	}
	return unknownPolicy{}
}

// unknownPolicy serves hand-built DeviceFeatures with an unrecognized
// generation. Its bootloader tells us nothing, so nothing installable from
// it counts as safe.
type unknownPolicy struct{}

func (unknownPolicy) filterSafeInBootloader([]Release, DeviceFeatures) []Release {
	return nil
}

func (unknownPolicy) changelogInBootloader([]Release, DeviceFeatures) Optional[[]Release] {
	return Unknown[[]Release]()
}

func (unknownPolicy) isNewer(Release, DeviceFeatures) Optional[bool] {
	return Unknown[bool]()
}

func (unknownPolicy) modifyFirmware(fw []byte, _ DeviceFeatures) []byte {
	return fw
}

type modelOnePolicy struct{}

// The Model One bootloader does not report the installed firmware, so only
// the bootloader bound applies.
func (modelOnePolicy) filterSafeInBootloader(releases []Release, _ DeviceFeatures) []Release {
	return releases
}

func (modelOnePolicy) changelogInBootloader([]Release, DeviceFeatures) Optional[[]Release] {
	return Unknown[[]Release]()
}

func (modelOnePolicy) isNewer(latest Release, f DeviceFeatures) Optional[bool] {
	if f.BootloaderMode {
		return Unknown[bool]()
	}
	return Known(IsNewer(latest.Version, f.Version))
}

// Bootloader 1.8.0 expects images without the legacy 256 byte header. The
// bootloader version cannot be read from firmware mode; firmware 1.8.1 and
// later ship with bootloader 1.8.0, so the firmware version stands in for it.
// The comparison is against 1.8.0, not 1.8.1.
func (modelOnePolicy) modifyFirmware(fw []byte, f DeviceFeatures) []byte {
	if !IsNewerOrEqual(f.Version, V(1, 8, 0)) {
		return fw
	}
	if hasLegacyHeader(fw) {
		return fw[legacyHeaderSize:]
	}
	return fw
}

type modelTPolicy struct{}

func (modelTPolicy) filterSafeInBootloader(releases []Release, f DeviceFeatures) []Release {
	if f.Firmware == nil {
		return releases
	}
	return FilterByFirmware(releases, *f.Firmware)
}

func (modelTPolicy) changelogInBootloader(releases []Release, f DeviceFeatures) Optional[[]Release] {
	// Firmware is present but the bootloader did not report its version.
	// Treating every release as newer would claim knowledge we lack.
	if f.Firmware == nil {
		return Unknown[[]Release]()
	}
	return Known(newerThan(releases, *f.Firmware))
}

func (modelTPolicy) isNewer(latest Release, f DeviceFeatures) Optional[bool] {
	return Known(IsNewer(latest.Version, f.Version))
}

func (modelTPolicy) modifyFirmware(fw []byte, _ DeviceFeatures) []byte {
	return fw
}

func newerThan(releases []Release, v Version) []Release {
	out := make([]Release, 0, len(releases))
	for _, r := range releases {
		if IsNewer(r.Version, v) {
			out = append(out, r)
		}
	}
	return out
}
