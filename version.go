package rollout

import (
	"encoding/json"
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// Version is a firmware or bootloader version triple.
type Version struct {
	Major uint32
	Minor uint32
	Patch uint32
}

// V is shorthand for building a Version.
func V(major, minor, patch uint32) Version {
	return Version{Major: major, Minor: minor, Patch: patch}
}

// ParseVersion parses a dotted "major.minor.patch" string.
func ParseVersion(s string) (Version, error) {
	sv, err := semver.StrictNewVersion(s)
	if err != nil {
		return Version{}, fmt.Errorf("%w %q: %v", ErrInvalidVersion, s, err)
	}
	if sv.Prerelease() != "" || sv.Metadata() != "" {
		return Version{}, fmt.Errorf("%w %q: pre-release and build metadata are not allowed", ErrInvalidVersion, s)
	}
	if sv.Major() > 0xffffffff || sv.Minor() > 0xffffffff || sv.Patch() > 0xffffffff {
		return Version{}, fmt.Errorf("%w %q: component out of range", ErrInvalidVersion, s)
	}
	return V(uint32(sv.Major()), uint32(sv.Minor()), uint32(sv.Patch())), nil
}

// Semver returns v as a semver.Version.
func (v Version) Semver() *semver.Version {
	return semver.New(uint64(v.Major), uint64(v.Minor), uint64(v.Patch), "", "")
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// MarshalJSON encodes v as a [major, minor, patch] array.
func (v Version) MarshalJSON() ([]byte, error) {
	return json.Marshal([3]uint32{v.Major, v.Minor, v.Patch})
}

// UnmarshalJSON decodes a [major, minor, patch] array.
func (v *Version) UnmarshalJSON(data []byte) error {
	var parts []uint32
	if err := json.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidVersion, err)
	}
	if len(parts) != 3 {
		return fmt.Errorf("%w: expected 3 components, got %d", ErrInvalidVersion, len(parts))
	}
	*v = V(parts[0], parts[1], parts[2])
	return nil
}

// MarshalYAML encodes v the same way as JSON.
func (v Version) MarshalYAML() (any, error) {
	return []uint32{v.Major, v.Minor, v.Patch}, nil
}

// IsNewer reports whether a is strictly greater than b.
func IsNewer(a, b Version) bool {
	return a.Semver().GreaterThan(b.Semver())
}

// IsNewerOrEqual reports whether a is greater than or equal to b.
func IsNewerOrEqual(a, b Version) bool {
	return a.Semver().Compare(b.Semver()) >= 0
}

// IsEqual reports whether a and b are the same version.
func IsEqual(a, b Version) bool {
	return a == b
}
