//go:build !whisper

package capture

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

var errNoPortAudio = errors.New("microphone capture not compiled in; build with '-tags whisper' (PortAudio required)")

func openMicrophone(Options, *logrus.Logger) (Source, error) {
	return nil, fmt.Errorf("%w: %v", ErrPermissionDenied, errNoPortAudio)
}

// ListDevices enumerates input-capable devices.
func ListDevices() ([]Device, error) {
	return nil, errNoPortAudio
}

// Probe checks that PortAudio can initialise.
func Probe() error {
	return errNoPortAudio
}
