// Package usb finds USB mass-storage devices attached to the host. Each
// supported OS has its own back end; NewDetector picks one at runtime.
package usb

import (
	"context"
	"fmt"
	"runtime"

	"github.com/rs/zerolog"

	"github.com/ARMmbed/mbedtools/internal/models"
)

// Detector enumerates candidate devices. A malformed or unmounted device is
// logged and skipped; an error means the enumeration itself failed.
type Detector interface {
	FindCandidates(ctx context.Context) ([]models.CandidateDevice, error)
}

// UnknownOSError is returned by NewDetector on an operating system without a
// detector back end.
type UnknownOSError struct {
	GOOS string
}

func (e *UnknownOSError) Error() string {
	return fmt.Sprintf("device detection is not supported on %q (supported: linux, darwin, windows)", e.GOOS)
}

func NewDetector(log zerolog.Logger) (Detector, error) {
	return newPlatformDetector(log)
}

func unknownOS() error {
	return &UnknownOSError{GOOS: runtime.GOOS}
}
