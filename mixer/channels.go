// SPDX-License-Identifier: EPL-2.0

package mixer

// Channel names a physical or logical output speaker position.
type Channel int

const (
	FrontLeft Channel = iota
	FrontRight
	FrontCenter
	LFE
	BackLeft
	BackRight
	BackCenter
	SideLeft
	SideRight

	// Aux0.. name ambisonic bus components and other unaddressed outputs.
	Aux0
	Aux1
	Aux2
	Aux3
	Aux4
	Aux5
	Aux6
	Aux7
	Aux8
	Aux9
	Aux10
	Aux11
	Aux12
	Aux13
	Aux14
	Aux15

	InvalidChannel Channel = -1
)

// DevFmtChannels is the device output channel layout.
type DevFmtChannels int

const (
	DevMono DevFmtChannels = iota
	DevStereo
	DevQuad
	DevX51
	DevX51Rear
	DevX61
	DevX71
	DevAmbi3D
)

// ChannelCount returns the number of physical output channels for the
// layout; ambisonic layouts need the device order to size themselves.
func (c DevFmtChannels) ChannelCount(ambiOrder int) int {
	switch c {
	case DevMono:
		return 1
	case DevStereo:
		return 2
	case DevQuad:
		return 4
	case DevX51, DevX51Rear:
		return 6
	case DevX61:
		return 7
	case DevX71:
		return 8
	case DevAmbi3D:
		return (ambiOrder + 1) * (ambiOrder + 1)
	}
	return 0
}

// Names returns the speaker name of every channel in the layout.
func (c DevFmtChannels) Names(ambiOrder int) []Channel {
	switch c {
	case DevMono:
		return []Channel{FrontCenter}
	case DevStereo:
		return []Channel{FrontLeft, FrontRight}
	case DevQuad:
		return []Channel{FrontLeft, FrontRight, BackLeft, BackRight}
	case DevX51:
		return []Channel{FrontLeft, FrontRight, FrontCenter, LFE, SideLeft, SideRight}
	case DevX51Rear:
		return []Channel{FrontLeft, FrontRight, FrontCenter, LFE, BackLeft, BackRight}
	case DevX61:
		return []Channel{FrontLeft, FrontRight, FrontCenter, LFE, BackCenter, SideLeft, SideRight}
	case DevX71:
		return []Channel{FrontLeft, FrontRight, FrontCenter, LFE, BackLeft, BackRight, SideLeft, SideRight}
	case DevAmbi3D:
		names := make([]Channel, c.ChannelCount(ambiOrder))
		for i := range names {
			names[i] = Aux0 + Channel(i)
		}
		return names
	}
	return nil
}

// SampleType is the device output sample encoding.
type SampleType int

const (
	SampleInt8 SampleType = iota
	SampleUInt8
	SampleInt16
	SampleUInt16
	SampleInt32
	SampleUInt32
	SampleFloat32
)

// Size returns the byte size of one sample.
func (t SampleType) Size() int {
	switch t {
	case SampleInt8, SampleUInt8:
		return 1
	case SampleInt16, SampleUInt16:
		return 2
	case SampleInt32, SampleUInt32, SampleFloat32:
		return 4
	}
	return 0
}

// BufferChannels describes the channel content of a source sample buffer.
type BufferChannels int

const (
	FmtMono BufferChannels = iota
	FmtStereo
	FmtRear
	FmtQuad
	FmtX51
	FmtX61
	FmtX71
	FmtBFormat2D
	FmtBFormat3D
)

// Count returns the number of interleaved channels in the format.
func (f BufferChannels) Count() int {
	switch f {
	case FmtMono:
		return 1
	case FmtStereo, FmtRear:
		return 2
	case FmtQuad:
		return 4
	case FmtX51:
		return 6
	case FmtX61:
		return 7
	case FmtX71:
		return 8
	case FmtBFormat2D:
		return 3
	case FmtBFormat3D:
		return 4
	}
	return 0
}
