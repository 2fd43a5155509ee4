// SPDX-License-Identifier: EPL-2.0

package mixer

import "errors"

var (
	ErrInvalidSampleRate = errors.New("sample rate must be positive")
	ErrInvalidLayout     = errors.New("unsupported output channel layout")
	ErrInvalidSampleType = errors.New("unsupported output sample type")
	ErrTooManySends      = errors.New("auxiliary send count exceeds MaxSends")
	ErrVoicePoolFull     = errors.New("no free voice in the context pool")
	ErrVoiceActive       = errors.New("voice is still playing")
	ErrNoHrtf            = errors.New("no HRTF dataset available for the device rate")
	ErrDisconnected      = errors.New("device is disconnected")
)
