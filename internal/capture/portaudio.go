//go:build whisper

package capture

import (
	"errors"
	"fmt"
	"strings"

	"twopass/internal/audio"

	"github.com/gordonklaus/portaudio"
	"github.com/sirupsen/logrus"
)

// micSource reads 16-bit mono PCM from a PortAudio input stream.
type micSource struct {
	stream *portaudio.Stream
	buf    []int16
	rate   int
	logger *logrus.Logger
	closed bool
}

func openMicrophone(opts Options, logger *logrus.Logger) (Source, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("%w: portaudio init: %v", ErrPermissionDenied, err)
	}
	dev, err := selectDevice(opts.Device)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}
	m := &micSource{
		buf:    make([]int16, opts.BlockSamples),
		rate:   opts.SampleRate,
		logger: logger,
	}
	stream, err := portaudio.OpenStream(portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: 1,
			Latency:  dev.DefaultLowInputLatency,
		},
		SampleRate:      float64(opts.SampleRate),
		FramesPerBuffer: opts.BlockSamples,
	}, &m.buf)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("%w: open stream: %v", ErrPermissionDenied, err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		portaudio.Terminate()
		return nil, fmt.Errorf("%w: start stream: %v", ErrPermissionDenied, err)
	}
	m.stream = stream
	logger.Infof("listening on mic: %s @ %d Hz", dev.Name, opts.SampleRate)
	return m, nil
}

func (m *micSource) Read() (audio.Block, error) {
	if err := m.stream.Read(); err != nil {
		if !errors.Is(err, portaudio.InputOverflowed) {
			return audio.Block{}, fmt.Errorf("stream read: %w", err)
		}
		// Samples arriving while a refinement blocked the loop were dropped
		// by the device buffer; the block read now is still valid.
		m.logger.Warn("input overflow")
	}
	return audio.NewBlock(m.buf, m.rate), nil
}

func (m *micSource) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true
	stopErr := m.stream.Stop()
	closeErr := m.stream.Close()
	portaudio.Terminate()
	return errors.Join(stopErr, closeErr)
}

func selectDevice(preferred string) (*portaudio.DeviceInfo, error) {
	devs, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	if preferred != "" {
		for _, d := range devs {
			if d.MaxInputChannels > 0 && strings.Contains(strings.ToLower(d.Name), strings.ToLower(preferred)) {
				return d, nil
			}
		}
	}
	if def, err := portaudio.DefaultInputDevice(); err == nil && def != nil {
		return def, nil
	}
	for _, d := range devs {
		if d.MaxInputChannels > 0 {
			return d, nil
		}
	}
	return nil, fmt.Errorf("no input devices found")
}

// ListDevices enumerates input-capable devices.
func ListDevices() ([]Device, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio init: %w", err)
	}
	defer portaudio.Terminate()

	devs, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	def, _ := portaudio.DefaultInputDevice()
	out := []Device{}
	for i, d := range devs {
		if d.MaxInputChannels < 1 {
			continue
		}
		out = append(out, Device{
			Index:     i,
			Name:      d.Name,
			Channels:  d.MaxInputChannels,
			LatencyMs: d.DefaultLowInputLatency.Seconds() * 1000,
			Default:   def != nil && d.Name == def.Name,
		})
	}
	return out, nil
}

// Probe checks that PortAudio can initialise.
func Probe() error {
	if err := portaudio.Initialize(); err != nil {
		return err
	}
	return portaudio.Terminate()
}
