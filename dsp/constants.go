// SPDX-License-Identifier: EPL-2.0

package dsp

const (
	// BufferSize is the maximum number of frames processed per mixing block.
	BufferSize = 1024

	// FractionBits is the sub-sample phase precision of the resamplers.
	FractionBits = 12
	FractionOne  = 1 << FractionBits
	FractionMask = FractionOne - 1

	// MaxPitch is the maximum number of source frames consumed per output
	// frame.
	MaxPitch = 255

	// GainMixMax is the hard cap applied to any computed gain before mixing.
	GainMixMax = 16.0

	// GainSilenceThreshold is the gain below which a path is treated as
	// silent (-60dB).
	GainSilenceThreshold = 0.00001

	// SpeedOfSoundMetresPerSec is the reference speed of sound used by the
	// Doppler and near-field calculations.
	SpeedOfSoundMetresPerSec = 343.3

	// AirAbsorbGainHF is the default high-frequency air absorption per meter
	// (-0.05dB).
	AirAbsorbGainHF = 0.99426

	// ReverbDecayGain is the reverb decay target (-60dB) used by the
	// per-send distance decay transform.
	ReverbDecayGain = 0.001

	MaxAmbiOrder  = 3
	MaxAmbiCoeffs = (MaxAmbiOrder + 1) * (MaxAmbiOrder + 1)

	MaxOutputChannels = 16
	MaxSends          = 4
)
