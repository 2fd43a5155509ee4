// SPDX-License-Identifier: EPL-2.0

/*
Package backends connects a mixer device to an output sink.

A backend owns the render loop: it pulls blocks of mixed audio from the
device with MixData and delivers them to a destination. Three sinks are
provided:

  - OtoBackend plays through the operating system's audio output using
    github.com/ebitengine/oto. The player pulls audio on demand, so no
    pacing loop is needed.
  - WaveBackend renders into a RIFF/WAVE stream, optionally paced
    against the wall clock.
  - NullBackend discards the rendered audio while keeping the device
    clock and event delivery running.

# System Output

	dev, err := mixer.NewDevice(mixer.DeviceConfig{
		SampleRate: 48000,
		Channels:   mixer.DevStereo,
		SampleType: mixer.SampleInt16,
		UpdateSize: 1024,
	})
	if err != nil {
		log.Fatal(err)
	}

	backend, err := backends.NewOtoBackend(dev)
	if err != nil {
		log.Fatal(err)
	}
	defer backend.Close()

	if err := backend.Start(); err != nil {
		log.Fatal(err)
	}

Only one OtoBackend can exist per process; the platform audio context
it opens is global and stays open after Close.

# Offline Rendering

WaveBackend with realtime false renders as fast as the host allows,
which suits bouncing a scene to disk:

	f, _ := os.Create("out.wav")
	backend, err := backends.NewWaveBackend(dev, f, false)
	if err != nil {
		log.Fatal(err)
	}
	backend.Start()
	time.Sleep(time.Second)
	backend.Close()
	f.Close()

Close patches the container sizes, so the file is valid once both the
backend and the file are closed.

# Latency

ClockLatency reports the device clock together with the sink's current
output delay. For the system output this includes the frames queued in
the platform player; for file and null sinks it is one update block
plus the device's post-process delay.
*/
package backends
