//go:build !linux && !darwin && !windows

package usb

import "github.com/rs/zerolog"

func newPlatformDetector(_ zerolog.Logger) (Detector, error) {
	return nil, unknownOS()
}
