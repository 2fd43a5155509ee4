// SPDX-License-Identifier: EPL-2.0

package mixer

import "testing"

func TestDevFmtChannels_ChannelCount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		fmt   DevFmtChannels
		order int
		want  int
	}{
		{DevMono, 0, 1},
		{DevStereo, 0, 2},
		{DevQuad, 0, 4},
		{DevX51, 0, 6},
		{DevX51Rear, 0, 6},
		{DevX61, 0, 7},
		{DevX71, 0, 8},
		{DevAmbi3D, 1, 4},
		{DevAmbi3D, 2, 9},
		{DevAmbi3D, 3, 16},
	}
	for _, tt := range tests {
		if got := tt.fmt.ChannelCount(tt.order); got != tt.want {
			t.Errorf("ChannelCount(%d, order %d) = %d, want %d", tt.fmt, tt.order, got, tt.want)
		}
	}
}

func TestDevFmtChannels_Names(t *testing.T) {
	t.Parallel()

	for fmt := DevMono; fmt <= DevAmbi3D; fmt++ {
		names := fmt.Names(2)
		if len(names) != fmt.ChannelCount(2) {
			t.Errorf("%d: Names() has %d entries, ChannelCount is %d",
				fmt, len(names), fmt.ChannelCount(2))
		}
	}

	names := DevX71.Names(0)
	if names[0] != FrontLeft || names[7] != SideRight {
		t.Errorf("7.1 names = %v", names)
	}
	ambi := DevAmbi3D.Names(1)
	if ambi[0] != Aux0 || ambi[3] != Aux3 {
		t.Errorf("ambisonic names = %v", ambi)
	}
}

func TestSampleType_Size(t *testing.T) {
	t.Parallel()

	tests := []struct {
		fmt  SampleType
		want int
	}{
		{SampleInt8, 1},
		{SampleUInt8, 1},
		{SampleInt16, 2},
		{SampleUInt16, 2},
		{SampleInt32, 4},
		{SampleUInt32, 4},
		{SampleFloat32, 4},
	}
	for _, tt := range tests {
		if got := tt.fmt.Size(); got != tt.want {
			t.Errorf("Size(%d) = %d, want %d", tt.fmt, got, tt.want)
		}
	}
}

func TestBufferChannels_Count(t *testing.T) {
	t.Parallel()

	tests := []struct {
		fmt  BufferChannels
		want int
	}{
		{FmtMono, 1},
		{FmtStereo, 2},
		{FmtRear, 2},
		{FmtQuad, 4},
		{FmtX51, 6},
		{FmtX61, 7},
		{FmtX71, 8},
		{FmtBFormat2D, 3},
		{FmtBFormat3D, 4},
	}
	for _, tt := range tests {
		if got := tt.fmt.Count(); got != tt.want {
			t.Errorf("Count(%d) = %d, want %d", tt.fmt, got, tt.want)
		}
	}
}
