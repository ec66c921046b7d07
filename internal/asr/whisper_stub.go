//go:build !whisper

package asr

import (
	"errors"

	"twopass/internal/config"

	"github.com/sirupsen/logrus"
)

var errNoWhisper = errors.New("whisper engine not compiled in; build with '-tags whisper'")

func newWhisperOfflineEngine(*config.Config, *logrus.Logger) (OfflineEngine, error) {
	return nil, errNoWhisper
}

func newWhisperStreamingEngine(*config.Config, *logrus.Logger) (StreamingEngine, error) {
	return nil, errNoWhisper
}
