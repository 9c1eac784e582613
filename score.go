package rollout

import (
	"crypto/sha256"
	"encoding/binary"
)

// Score maps a device identifier to a stable value in [0,1). The same
// identifier always yields the same score.
func Score(deviceID string) float64 {
	sum := sha256.Sum256([]byte(deviceID))
	return float64(binary.BigEndian.Uint32(sum[:4])) / (1 << 32)
}

// Admit returns the releases the device's rollout cohort may see. Without a
// device identifier no gating is possible and releases are returned as is.
func Admit(releases []Release, deviceID string) []Release {
	if deviceID == "" {
		return releases
	}
	score := Score(deviceID)
	admitted := make([]Release, 0, len(releases))
	for _, r := range releases {
		if r.Rollout == nil || *r.Rollout >= score {
			admitted = append(admitted, r)
		}
	}
	return admitted
}
