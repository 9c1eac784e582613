package rollout

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	mu   sync.Mutex
	urls []string
	data map[string][]byte
	err  error
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.urls = append(f.urls, url)
	if f.err != nil {
		return nil, f.err
	}
	data, ok := f.data[url]
	if !ok {
		return nil, errors.New("not found: " + url)
	}
	return data, nil
}

func (f *fakeFetcher) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.urls)
}

func newTestResolver(t *testing.T, fetcher Fetcher) *Resolver {
	t.Helper()
	r, err := NewResolver(Config{
		BaseURL: "https://fw.example/",
		Fetcher: fetcher,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	return r
}

func modelTCatalog() []Release {
	return []Release{
		{Version: V(2, 4, 0), URL: "firmware/2/trezor-2.4.0.bin", URLBitcoinOnly: "firmware/2/trezor-2.4.0-bitcoinonly.bin"},
		{Version: V(2, 3, 0), URL: "firmware/2/trezor-2.3.0.bin", Required: true},
		{Version: V(2, 2, 0), URL: "firmware/2/trezor-2.2.0.bin"},
	}
}

func changelogVersions(t *testing.T, d *Decision) []Version {
	t.Helper()
	entries, ok := d.Changelog.Get()
	require.True(t, ok, "changelog should be known")
	return versionsOf(entries)
}

func TestResolve_ModelTFirmwareMode(t *testing.T) {
	f := DeviceFeatures{Generation: ModelT, Version: V(2, 3, 0), FirmwarePresent: true}
	d := Resolve(f, modelTCatalog())
	require.NotNil(t, d)

	assert.Equal(t, V(2, 4, 0), d.Release.Version)
	assert.Equal(t, []Version{V(2, 4, 0)}, changelogVersions(t, d))
	assert.Equal(t, Known(true), d.IsNewer)
	assert.Equal(t, Known(false), d.IsRequired)
	require.NotNil(t, d.LatestSafe)
	assert.Equal(t, V(2, 4, 0), d.LatestSafe.Version)
	assert.True(t, d.IsSafe)
}

func TestResolve_RequiredInChangelog(t *testing.T) {
	f := DeviceFeatures{Generation: ModelT, Version: V(2, 2, 0), FirmwarePresent: true}
	d := Resolve(f, modelTCatalog())
	require.NotNil(t, d)
	assert.Equal(t, []Version{V(2, 4, 0), V(2, 3, 0)}, changelogVersions(t, d))
	assert.Equal(t, Known(true), d.IsRequired)
}

func TestResolve_UpToDateHasUnknownRequired(t *testing.T) {
	f := DeviceFeatures{Generation: ModelT, Version: V(2, 4, 0), FirmwarePresent: true}
	d := Resolve(f, modelTCatalog())
	require.NotNil(t, d)
	assert.Empty(t, changelogVersions(t, d))
	assert.False(t, d.IsRequired.IsKnown())
	assert.Equal(t, Known(false), d.IsNewer)
}

func TestResolve_ModelOneBootloaderChangelogUnknown(t *testing.T) {
	f := DeviceFeatures{Generation: ModelOne, Version: V(1, 8, 0), BootloaderMode: true, FirmwarePresent: true}
	d := Resolve(f, modelOneCatalog())
	require.NotNil(t, d)

	assert.False(t, d.Changelog.IsKnown())
	assert.False(t, d.IsRequired.IsKnown())
	assert.False(t, d.IsNewer.IsKnown())
	assert.Equal(t, V(1, 10, 0), d.Release.Version)
	require.NotNil(t, d.LatestSafe)
	assert.True(t, d.IsSafe)
}

func TestResolve_ModelTBootloaderUsesFirmwareFields(t *testing.T) {
	releases := []Release{{Version: V(2, 4, 0)}, {Version: V(2, 3, 0)}}
	f := DeviceFeatures{Generation: ModelT, Version: V(2, 0, 3), BootloaderMode: true, FirmwarePresent: true, Firmware: ver(V(2, 3, 0))}
	d := Resolve(f, releases)
	require.NotNil(t, d)

	assert.Equal(t, []Version{V(2, 4, 0)}, changelogVersions(t, d))
	// isNewer compares against the bootloader triple the device reports.
	assert.Equal(t, Known(true), d.IsNewer)
}

func TestResolve_FreshDeviceGetsEverything(t *testing.T) {
	f := DeviceFeatures{Generation: ModelOne, Version: V(1, 8, 0), BootloaderMode: true}
	d := Resolve(f, modelOneCatalog())
	require.NotNil(t, d)
	assert.Equal(t, versionsOf(modelOneCatalog()), changelogVersions(t, d))
}

func TestResolve_UnsafeLatest(t *testing.T) {
	// Bootloader 1.5.0 cannot take 1.10.0 directly.
	f := DeviceFeatures{Generation: ModelOne, Version: V(1, 5, 0), BootloaderMode: true, FirmwarePresent: true}
	d := Resolve(f, modelOneCatalog())
	require.NotNil(t, d)
	assert.Equal(t, V(1, 10, 0), d.Release.Version)
	require.NotNil(t, d.LatestSafe)
	assert.Equal(t, V(1, 9, 0), d.LatestSafe.Version)
	assert.False(t, d.IsSafe)
}

func TestResolve_NothingSafe(t *testing.T) {
	f := DeviceFeatures{Generation: ModelOne, Version: V(1, 2, 0), BootloaderMode: true, FirmwarePresent: true}
	d := Resolve(f, modelOneCatalog())
	require.NotNil(t, d)
	assert.Nil(t, d.LatestSafe)
	assert.False(t, d.IsSafe)
}

func TestResolve_NothingAdmitted(t *testing.T) {
	const id = "device-1"
	releases := []Release{{Version: V(2, 4, 0), Rollout: rolloutOf(Score(id) / 2)}}
	f := DeviceFeatures{Generation: ModelT, Version: V(2, 3, 0), DeviceID: id}
	assert.Nil(t, Resolve(f, releases))
	assert.Nil(t, Resolve(f, nil))
}

func TestResolve_Idempotent(t *testing.T) {
	f := DeviceFeatures{Generation: ModelT, Version: V(2, 2, 0), FirmwarePresent: true, DeviceID: "device-1"}
	assert.Equal(t, Resolve(f, modelTCatalog()), Resolve(f, modelTCatalog()))
}

func TestNewResolver_RequiresBaseURL(t *testing.T) {
	_, err := NewResolver(Config{})
	assert.Error(t, err)

	r, err := NewResolver(Config{BaseURL: "https://fw.example"})
	require.NoError(t, err)
	assert.IsType(t, &HTTPFetcher{}, r.fetcher)
}

func TestResolveBinary_Release(t *testing.T) {
	fw := []byte("firmware-2.4.0")
	fetcher := &fakeFetcher{data: map[string][]byte{
		"https://fw.example/firmware/2/trezor-2.4.0.bin": fw,
	}}
	r := newTestResolver(t, fetcher)
	f := DeviceFeatures{Generation: ModelT, Version: V(2, 3, 0), FirmwarePresent: true}

	bin, err := r.ResolveBinary(context.Background(), f, modelTCatalog(), BinaryOptions{Version: ver(V(2, 4, 0))})
	require.NoError(t, err)
	assert.Equal(t, fw, bin.Data)
	require.NotNil(t, bin.Decision)
	assert.Equal(t, V(2, 4, 0), bin.Decision.Release.Version)
}

func TestResolveBinary_BitcoinOnly(t *testing.T) {
	fetcher := &fakeFetcher{data: map[string][]byte{
		"https://fw.example/firmware/2/trezor-2.4.0-bitcoinonly.bin": []byte("btc"),
	}}
	r := newTestResolver(t, fetcher)
	f := DeviceFeatures{Generation: ModelT, Version: V(2, 3, 0), FirmwarePresent: true}

	bin, err := r.ResolveBinary(context.Background(), f, modelTCatalog(), BinaryOptions{Version: ver(V(2, 4, 0)), BitcoinOnly: true})
	require.NoError(t, err)
	assert.Equal(t, []byte("btc"), bin.Data)
}

func TestResolveBinary_ModelOneStripsHeader(t *testing.T) {
	fw := legacyImage(1024)
	releases := []Release{{Version: V(1, 9, 0), URL: "firmware/1/trezor-1.9.0.bin"}}
	fetcher := &fakeFetcher{data: map[string][]byte{"https://fw.example/firmware/1/trezor-1.9.0.bin": fw}}
	r := newTestResolver(t, fetcher)
	f := DeviceFeatures{Generation: ModelOne, Version: V(1, 8, 1), FirmwarePresent: true}

	bin, err := r.ResolveBinary(context.Background(), f, releases, BinaryOptions{Version: ver(V(1, 9, 0))})
	require.NoError(t, err)
	assert.Equal(t, fw[256:], bin.Data)
}

func TestResolveBinary_NotAdmitted(t *testing.T) {
	const id = "device-1"
	releases := modelTCatalog()
	releases[0].Rollout = rolloutOf(Score(id) / 2)
	fetcher := &fakeFetcher{}
	r := newTestResolver(t, fetcher)
	f := DeviceFeatures{Generation: ModelT, Version: V(2, 2, 0), FirmwarePresent: true, DeviceID: id}

	_, err := r.ResolveBinary(context.Background(), f, releases, BinaryOptions{Version: ver(V(2, 4, 0))})
	assert.ErrorIs(t, err, ErrNoFirmwareFound)
	assert.Zero(t, fetcher.calls())
}

func TestResolveBinary_NoDecision(t *testing.T) {
	fetcher := &fakeFetcher{}
	r := newTestResolver(t, fetcher)
	f := DeviceFeatures{Generation: ModelT, Version: V(2, 2, 0)}

	_, err := r.ResolveBinary(context.Background(), f, nil, BinaryOptions{Version: ver(V(2, 4, 0))})
	assert.ErrorIs(t, err, ErrNoFirmwareFound)

	_, err = r.ResolveBinary(context.Background(), f, modelTCatalog(), BinaryOptions{})
	assert.ErrorIs(t, err, ErrNoFirmwareFound)

	_, err = r.ResolveBinary(context.Background(), f, modelTCatalog(), BinaryOptions{Version: ver(V(2, 9, 0))})
	assert.ErrorIs(t, err, ErrNoFirmwareFound)
	assert.Zero(t, fetcher.calls())
}

func TestResolveBinary_VariantUnavailable(t *testing.T) {
	releases := []Release{{Version: V(2, 4, 0), URL: "firmware/2/trezor-2.4.0.bin"}}
	fetcher := &fakeFetcher{}
	r := newTestResolver(t, fetcher)
	f := DeviceFeatures{Generation: ModelT, Version: V(2, 3, 0), FirmwarePresent: true}

	_, err := r.ResolveBinary(context.Background(), f, releases, BinaryOptions{Version: ver(V(2, 4, 0)), BitcoinOnly: true})
	assert.ErrorIs(t, err, ErrVariantUnavailable)
	assert.Zero(t, fetcher.calls())
}

func TestResolveBinary_VersionMismatch(t *testing.T) {
	fetcher := &fakeFetcher{}
	r := newTestResolver(t, fetcher)
	f := DeviceFeatures{Generation: ModelT, Version: V(2, 2, 0), FirmwarePresent: true}

	// 2.3.0 is in the catalog but 2.4.0 is what the device resolves to.
	_, err := r.ResolveBinary(context.Background(), f, modelTCatalog(), BinaryOptions{Version: ver(V(2, 3, 0))})
	assert.ErrorIs(t, err, ErrVersionMismatch)
	assert.Zero(t, fetcher.calls())
}

func TestResolveBinary_Intermediary(t *testing.T) {
	fw := legacyImage(600)
	fetcher := &fakeFetcher{data: map[string][]byte{
		"https://fw.example/firmware/1/trezor-inter-1.10.0.bin": fw,
	}}
	r := newTestResolver(t, fetcher)
	f := DeviceFeatures{Generation: ModelOne, Version: V(1, 8, 0), BootloaderMode: true, FirmwarePresent: true}

	// No catalog and no version: the intermediary skips matching.
	bin, err := r.ResolveBinary(context.Background(), f, nil, BinaryOptions{Intermediary: true})
	require.NoError(t, err)
	assert.Nil(t, bin.Decision)
	assert.Equal(t, fw[256:], bin.Data)
}

func TestResolveBinary_FetchErrorPropagates(t *testing.T) {
	boom := errors.New("connection reset")
	fetcher := &fakeFetcher{err: boom}
	r := newTestResolver(t, fetcher)
	f := DeviceFeatures{Generation: ModelT, Version: V(2, 3, 0), FirmwarePresent: true}

	_, err := r.ResolveBinary(context.Background(), f, modelTCatalog(), BinaryOptions{Version: ver(V(2, 4, 0))})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, fetcher.calls())
}

func TestFetchReleases(t *testing.T) {
	fetcher := &fakeFetcher{data: map[string][]byte{
		"https://fw.example/firmware/2/releases.json": []byte(catalogJSON),
		"https://other.example/releases.json":         []byte(`[{"version":[1,9,0]}]`),
	}}
	r := newTestResolver(t, fetcher)

	releases, err := r.FetchReleases(context.Background(), "firmware/2/releases.json")
	require.NoError(t, err)
	assert.Len(t, releases, 2)

	releases, err = r.FetchReleases(context.Background(), "https://other.example/releases.json")
	require.NoError(t, err)
	assert.Equal(t, []Version{V(1, 9, 0)}, versionsOf(releases))
}
