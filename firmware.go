package rollout

import "bytes"

const legacyHeaderSize = 256

var (
	legacyHeaderMagic   = []byte("TRZR")
	legacyFirmwareMagic = []byte("TRZF")
)

// ModifyFirmware returns the image as it must be uploaded to the device.
// The input is never modified; a stripped image shares its backing array.
func ModifyFirmware(fw []byte, features DeviceFeatures) []byte {
	return policyFor(features.Generation).modifyFirmware(fw, features)
}

// hasLegacyHeader reports whether fw starts with a "TRZR" header followed
// by a "TRZF" firmware image at offset 256.
func hasLegacyHeader(fw []byte) bool {
	if len(fw) < legacyHeaderSize+len(legacyFirmwareMagic) {
		return false
	}
	return bytes.HasPrefix(fw, legacyHeaderMagic) &&
		bytes.HasPrefix(fw[legacyHeaderSize:], legacyFirmwareMagic)
}
