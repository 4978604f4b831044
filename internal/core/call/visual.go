package call

// Blob scale constants for the assistant's speaking indicator.
const (
	DefaultVolumeMultiplier = 2.0
	blobBaseScale           = 0.8
	blobScaleMultiplier     = 0.2
	blobDefaultScale        = 1.0
)

// NormalizeVolume scales a raw provider volume sample and clamps it to [0,1].
func NormalizeVolume(volume, multiplier float64) float64 {
	v := volume * multiplier
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// CalculateBlobScale derives the visual scale of the speaking indicator.
// The blob tracks volume only while the call is active and the assistant is
// speaking; otherwise it rests at its default size.
func CalculateBlobScale(status Status, isSpeaking bool, volumeLevel float64) float64 {
	if status == StatusActive && isSpeaking {
		return blobBaseScale + volumeLevel*blobScaleMultiplier
	}
	return blobDefaultScale
}
