// SPDX-License-Identifier: EPL-2.0

// Package render implements the post-process stages that turn the device's
// ambisonic mix buses into real output channel feeds: the band-split
// ambisonic decoder, the first-order up-sampler, the UHJ stereo encoder, the
// bs2b headphone crossfeed, the front-image stabilizer, and HRTF storage and
// convolution.
//
// The package is deliberately free of any device or voice types; every stage
// operates on plain sample buffers and precomputed gain matrices, and the
// mixing core wires them together at device initialization.
package render
