//go:build darwin

package usb

import (
	"github.com/rs/zerolog"
	"go.bug.st/serial/enumerator"
)

func newPlatformDetector(log zerolog.Logger) (Detector, error) {
	return &darwinDetector{
		log:       log,
		run:       runCommand,
		listPorts: enumerator.GetDetailedPortsList,
	}, nil
}
