package devices

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ARMmbed/mbedtools/internal/models"
)

//go:generate mockgen -destination=mocks_test.go -package=devices . CandidateDetector,BoardDatabase

// CandidateDetector finds USB mass-storage devices. usb.Detector satisfies it.
type CandidateDetector interface {
	FindCandidates(ctx context.Context) ([]models.CandidateDevice, error)
}

// Service turns detected candidates into devices with a board identity.
type Service struct {
	detector CandidateDetector
	db       BoardDatabase
	log      zerolog.Logger
	readFile func(mountPoints []string, log zerolog.Logger) DeviceFileInfo
}

func NewService(detector CandidateDetector, db BoardDatabase, log zerolog.Logger) *Service {
	return &Service{
		detector: detector,
		db:       db,
		log:      log,
		readFile: ReadDeviceFiles,
	}
}

// DeviceFromCandidate reads the device files on the candidate's drive and
// resolves its board.
func (s *Service) DeviceFromCandidate(ctx context.Context, candidate models.CandidateDevice) (Device, error) {
	info := s.readFile(candidate.MountPoints(), s.log)

	device := Device{
		SerialNumber: candidate.SerialNumber(),
		SerialPort:   candidate.SerialPort(),
		MountPoints:  candidate.MountPoints(),
		Interface:    info.Interface,
	}

	board, err := ResolveBoard(ctx, s.db, info.ProductCode, info.OnlineID, candidate.SerialNumber(), s.log)
	switch {
	case err == nil:
		device.MbedBoard = board
		device.MbedEnabled = true
	case errors.Is(err, ErrNoBoardForCandidate):
		s.log.Info().
			Str("serial_number", candidate.SerialNumber()).
			Str("id", candidate.GetIDString()).
			Msg("Device is not a known Mbed board")
	default:
		return Device{}, err
	}

	return device, nil
}

// GetConnectedDevices runs a full detection pass. Nothing is cached between
// calls.
func (s *Service) GetConnectedDevices(ctx context.Context) (ConnectedDevices, error) {
	candidates, err := s.detector.FindCandidates(ctx)
	if err != nil {
		return ConnectedDevices{}, fmt.Errorf("failed to detect devices: %w", err)
	}

	var connected ConnectedDevices
	for _, candidate := range candidates {
		device, err := s.DeviceFromCandidate(ctx, candidate)
		if err != nil {
			return ConnectedDevices{}, err
		}
		connected.AddDevice(device)
	}

	s.log.Debug().
		Int("identified", len(connected.IdentifiedDevices)).
		Int("unidentified", len(connected.UnidentifiedDevices)).
		Msg("Detection pass complete")

	return connected, nil
}

// FindConnectedDevice returns the single identified device whose board type
// is targetName. With identifier set it picks that index among the matches.
// Anything else is a *DeviceLookupFailedError.
func (s *Service) FindConnectedDevice(ctx context.Context, targetName string, identifier *int) (Device, error) {
	connected, matches, err := s.findMatches(ctx, targetName)
	if err != nil {
		return Device{}, err
	}

	if identifier != nil {
		if *identifier < 0 || *identifier >= len(matches) {
			return Device{}, &DeviceLookupFailedError{
				Reason:  fmt.Sprintf("no %s device with identifier %d, %d connected", targetName, *identifier, len(matches)),
				Devices: connected,
			}
		}
		return matches[*identifier], nil
	}

	if len(matches) > 1 {
		return Device{}, &DeviceLookupFailedError{
			Reason:  fmt.Sprintf("found %d connected %s devices, pass an identifier to pick one", len(matches), targetName),
			Devices: connected,
		}
	}

	return matches[0], nil
}

// FindAllConnectedDevices returns every identified device of the given board
// type.
func (s *Service) FindAllConnectedDevices(ctx context.Context, targetName string) ([]Device, error) {
	_, matches, err := s.findMatches(ctx, targetName)
	return matches, err
}

func (s *Service) findMatches(ctx context.Context, targetName string) (ConnectedDevices, []Device, error) {
	connected, err := s.GetConnectedDevices(ctx)
	if err != nil {
		return ConnectedDevices{}, nil, &DeviceLookupFailedError{
			Reason: "unable to detect connected devices",
			Err:    err,
		}
	}

	var matches []Device
	for _, d := range connected.IdentifiedDevices {
		if strings.EqualFold(d.MbedBoard.BoardType, targetName) {
			matches = append(matches, d)
		}
	}

	if len(matches) == 0 {
		return connected, nil, &DeviceLookupFailedError{
			Reason:  fmt.Sprintf("no connected device matches target %q", targetName),
			Devices: connected,
		}
	}

	return connected, matches, nil
}
