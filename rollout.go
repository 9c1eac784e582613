package rollout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/asaidimu/rollout/internal/metrics"
)

// IntermediaryPath is the bootloader-upgrade image, relative to the base URL.
const IntermediaryPath = "firmware/1/trezor-inter-1.10.0.bin"

// Resolve decides which firmware update, if any, is offered to the device.
// Releases must be sorted newest first. It returns nil when the device's
// rollout cohort is offered nothing.
func Resolve(features DeviceFeatures, releases []Release) *Decision {
	admitted := Admit(releases, features.DeviceID)
	if len(admitted) == 0 {
		return nil
	}
	p := policyFor(features.Generation)
	latest := admitted[0]
	changelog := changelogFor(p, admitted, features)

	d := &Decision{
		Changelog:  changelog,
		Release:    latest,
		IsRequired: isRequired(changelog),
		IsNewer:    p.isNewer(latest, features),
	}
	if safe := SafeReleases(admitted, features); len(safe) > 0 {
		latestSafe := safe[0]
		d.LatestSafe = &latestSafe
		d.IsSafe = IsEqual(latestSafe.Version, latest.Version)
	}
	return d
}

// changelogFor lists the admitted releases newer than what is installed.
func changelogFor(p policy, releases []Release, f DeviceFeatures) Optional[[]Release] {
	if f.BootloaderMode {
		if f.FirmwarePresent {
			return p.changelogInBootloader(releases, f)
		}
		// Fresh device, everything is new.
		return Known(append([]Release(nil), releases...))
	}
	return Known(newerThan(releases, f.Version))
}

func isRequired(changelog Optional[[]Release]) Optional[bool] {
	entries, ok := changelog.Get()
	if !ok || len(entries) == 0 {
		return Unknown[bool]()
	}
	for _, r := range entries {
		if r.Required {
			return Known(true)
		}
	}
	return Known(false)
}

// NewResolver creates a new Resolver instance.
func NewResolver(config Config) (*Resolver, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("missing required configuration: BaseURL must be set")
	}
	fetcher := config.Fetcher
	if fetcher == nil {
		fetcher = NewHTTPFetcher(config.HTTPClient, config.Timeout)
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		config:  config,
		fetcher: fetcher,
		logger:  logger,
	}, nil
}

// CheckForUpdate resolves the update decision for the device and records it.
func (r *Resolver) CheckForUpdate(features DeviceFeatures, releases []Release) *Decision {
	d := Resolve(features, releases)
	outcome := "offered"
	if d == nil {
		outcome = "none"
	}
	metrics.ResolveTotal.WithLabelValues(features.Generation.label(), outcome).Inc()
	r.logger.Debug("resolved firmware update",
		"generation", features.Generation.String(),
		"version", features.Version.String(),
		"bootloader_mode", features.BootloaderMode,
		"outcome", outcome,
	)
	return d
}

// ResolveBinary fetches the firmware image to install on the device after
// checking that the requested version is the one resolved for it. Nothing
// is fetched when a check fails. Fetch errors are returned as is, without
// retry.
func (r *Resolver) ResolveBinary(ctx context.Context, features DeviceFeatures, releases []Release, opts BinaryOptions) (*Binary, error) {
	decision := r.CheckForUpdate(features, releases)

	if opts.Intermediary {
		// The intermediary image is exempt from version matching.
		fw, err := r.fetch(ctx, "intermediary", r.url(IntermediaryPath))
		if err != nil {
			return nil, err
		}
		return &Binary{Decision: decision, Data: ModifyFirmware(fw, features)}, nil
	}

	release, err := r.selectRelease(features, releases, decision, opts)
	if err != nil {
		metrics.BinaryRefusals.WithLabelValues(features.Generation.label(), refusalReason(err)).Inc()
		r.logger.Warn("refusing firmware binary", "generation", features.Generation.String(), "error", err)
		return nil, err
	}

	path := release.URL
	if opts.BitcoinOnly {
		path = release.URLBitcoinOnly
	}
	fw, err := r.fetch(ctx, "release", r.url(path))
	if err != nil {
		return nil, err
	}
	return &Binary{Decision: decision, Data: ModifyFirmware(fw, features)}, nil
}

func (r *Resolver) selectRelease(features DeviceFeatures, releases []Release, decision *Decision, opts BinaryOptions) (Release, error) {
	if decision == nil || opts.Version == nil {
		return Release{}, ErrNoFirmwareFound
	}
	var (
		release Release
		found   bool
	)
	for _, candidate := range Admit(releases, features.DeviceID) {
		if IsEqual(candidate.Version, *opts.Version) {
			release, found = candidate, true
			break
		}
	}
	if !found {
		return Release{}, fmt.Errorf("%w: version %s", ErrNoFirmwareFound, opts.Version)
	}
	if opts.BitcoinOnly && release.URLBitcoinOnly == "" {
		return Release{}, fmt.Errorf("%w: firmware version %s does not exist in btc only variant", ErrVariantUnavailable, release.Version)
	}
	if !IsEqual(release.Version, decision.Release.Version) {
		return Release{}, fmt.Errorf("%w: requested %s, resolved %s", ErrVersionMismatch, release.Version, decision.Release.Version)
	}
	return release, nil
}

func (r *Resolver) fetch(ctx context.Context, kind, url string) ([]byte, error) {
	r.logger.Debug("fetching firmware", "kind", kind, "url", url)
	fw, err := r.fetcher.Fetch(ctx, url)
	if err != nil {
		metrics.FetchTotal.WithLabelValues(kind, "error").Inc()
		return nil, fmt.Errorf("failed to fetch firmware: %w", err)
	}
	metrics.FetchTotal.WithLabelValues(kind, "ok").Inc()
	metrics.FetchBytes.Add(float64(len(fw)))
	return fw, nil
}

func (r *Resolver) url(path string) string {
	return strings.TrimRight(r.config.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")
}

func refusalReason(err error) string {
	switch {
	case errors.Is(err, ErrVersionMismatch):
		return "version_mismatch"
	case errors.Is(err, ErrVariantUnavailable):
		return "variant_unavailable"
	default:
		return "not_found"
	}
}

// FetchReleases downloads and validates a release catalog. location is
// either an absolute URL or a path relative to the base URL.
func (r *Resolver) FetchReleases(ctx context.Context, location string) ([]Release, error) {
	url := location
	if !strings.HasPrefix(location, "http://") && !strings.HasPrefix(location, "https://") {
		url = r.url(location)
	}
	data, err := r.fetcher.Fetch(ctx, url)
	if err != nil {
		metrics.FetchTotal.WithLabelValues("catalog", "error").Inc()
		return nil, fmt.Errorf("failed to fetch releases: %w", err)
	}
	metrics.FetchTotal.WithLabelValues("catalog", "ok").Inc()
	return ParseReleases(data)
}
