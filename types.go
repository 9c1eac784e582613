package rollout

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Release is a firmware catalog entry.
type Release struct {
	Version              Version  `json:"version" yaml:"version"`
	URL                  string   `json:"url" yaml:"url"`                                           // Path relative to the base URL
	URLBitcoinOnly       string   `json:"url_bitcoinonly,omitempty" yaml:"url_bitcoinonly,omitempty"` // Empty when no bitcoin-only build exists
	Required             bool     `json:"required" yaml:"required"`
	Rollout              *float64 `json:"rollout,omitempty" yaml:"rollout,omitempty"` // Admission threshold in [0,1]; nil admits everyone
	MinBootloaderVersion *Version `json:"min_bootloader_version,omitempty" yaml:"min_bootloader_version,omitempty"`
	MinFirmwareVersion   *Version `json:"min_firmware_version,omitempty" yaml:"min_firmware_version,omitempty"`
	BootloaderVersion    *Version `json:"bootloader_version,omitempty" yaml:"bootloader_version,omitempty"` // Bootloader shipped with this release
	Fingerprint          string   `json:"fingerprint,omitempty" yaml:"fingerprint,omitempty"`
	Changelog            string   `json:"changelog,omitempty" yaml:"changelog,omitempty"`
	ChangelogBitcoinOnly string   `json:"changelog_bitcoinonly,omitempty" yaml:"changelog_bitcoinonly,omitempty"`
	Channel              string   `json:"channel,omitempty" yaml:"channel,omitempty"`
}

// RawFeatures is the device report as decoded from the device, with the
// nullable fields left nullable.
type RawFeatures struct {
	MajorVersion    uint32  `json:"major_version"`
	MinorVersion    uint32  `json:"minor_version"`
	PatchVersion    uint32  `json:"patch_version"`
	BootloaderMode  *bool   `json:"bootloader_mode"`
	FirmwarePresent *bool   `json:"firmware_present"`
	DeviceID        *string `json:"device_id"`
	FwMajor         *uint32 `json:"fw_major"`
	FwMinor         *uint32 `json:"fw_minor"`
	FwPatch         *uint32 `json:"fw_patch"`
}

// DeviceFeatures is the normalized device report.
type DeviceFeatures struct {
	Generation      Generation
	Version         Version // Bootloader version in bootloader mode, firmware version otherwise
	BootloaderMode  bool
	FirmwarePresent bool
	DeviceID        string   // Empty when the device does not report one
	Firmware        *Version // Installed firmware reported by a Model T bootloader; nil otherwise
}

// Decision describes the firmware update available to a device.
type Decision struct {
	Changelog  Optional[[]Release] `json:"changelog" yaml:"changelog"`
	Release    Release             `json:"release" yaml:"release"`
	LatestSafe *Release            `json:"latestSafe,omitempty" yaml:"latestSafe,omitempty"`
	IsSafe     bool                `json:"isSafe" yaml:"isSafe"`
	IsRequired Optional[bool]      `json:"isRequired" yaml:"isRequired"`
	IsNewer    Optional[bool]      `json:"isNewer" yaml:"isNewer"`
}

// Binary is a firmware image ready to upload, paired with the decision it
// was validated against.
type Binary struct {
	Decision *Decision
	Data     []byte
}

// BinaryOptions selects which image ResolveBinary returns.
type BinaryOptions struct {
	Version      *Version // Version to install; required unless Intermediary is set
	BitcoinOnly  bool     // Use the bitcoin-only build
	Intermediary bool     // Fetch the bootloader-upgrade image instead of a release
}

// Fetcher downloads a firmware image.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Config holds resolver configuration.
type Config struct {
	BaseURL    string        // Firmware server URL (e.g., "https://data.trezor.io")
	Fetcher    Fetcher       // Binary source; defaults to an HTTP fetcher
	HTTPClient *http.Client  // Client for the default fetcher
	Timeout    time.Duration // Timeout for the default fetcher's client
	Logger     *slog.Logger  // Defaults to slog.Default()
}

// Resolver validates and fetches firmware binaries.
type Resolver struct {
	config  Config
	fetcher Fetcher
	logger  *slog.Logger
}
