//go:build !vosk

package asr

import (
	"errors"

	"twopass/internal/config"

	"github.com/sirupsen/logrus"
)

func newVoskStreamingEngine(*config.Config, *logrus.Logger) (StreamingEngine, error) {
	return nil, errors.New("vosk engine not compiled in; build with '-tags vosk'")
}
