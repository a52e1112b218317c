package cmd

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ARMmbed/mbedtools/internal/boards"
	"github.com/ARMmbed/mbedtools/internal/devices"
	"github.com/ARMmbed/mbedtools/internal/logger"
	"github.com/ARMmbed/mbedtools/internal/models"
)

type stubDetector struct {
	candidates []models.CandidateDevice
	err        error
}

func (d stubDetector) FindCandidates(context.Context) ([]models.CandidateDevice, error) {
	return d.candidates, d.err
}

func daplinkCandidate(t *testing.T) models.CandidateDevice {
	t.Helper()

	mount := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(mount, "MBED.HTM"), []byte(`?code=0240000034544E45`), 0o644))

	c, err := models.NewCandidateDevice("0204", "0d28", "0240000034544E45", []string{mount}, "/dev/ttyACM0")
	require.NoError(t, err)

	return c
}

func newDatabase(t *testing.T, mode boards.Mode, apiURL string) *boards.Database {
	t.Helper()

	db, err := boards.NewDatabase(boards.Options{Mode: mode, APIURL: apiURL, Logger: logger.NewTestLogger()})
	require.NoError(t, err)

	return db
}

func TestDetectDevices_Table(t *testing.T) {
	service := devices.NewService(
		stubDetector{candidates: []models.CandidateDevice{daplinkCandidate(t)}},
		newDatabase(t, boards.ModeOffline, ""),
		logger.NewTestLogger(),
	)

	var out bytes.Buffer
	require.NoError(t, detectDevices(context.Background(), service, &out))

	assert.Contains(t, out.String(), "K64F")
	assert.Contains(t, out.String(), "[0240000034544E45]")
	assert.Contains(t, out.String(), "/dev/ttyACM0")
}

func TestDetectDevices_DetectorFailureWrappedOnce(t *testing.T) {
	service := devices.NewService(
		stubDetector{err: errors.New("wmi unavailable")},
		newDatabase(t, boards.ModeOffline, ""),
		logger.NewTestLogger(),
	)

	err := detectDevices(context.Background(), service, &bytes.Buffer{})
	require.Error(t, err)
	assert.Equal(t, "failed to detect devices: wmi unavailable", err.Error())
}

func TestDetectDevices_TracebackAtHighVerbosity(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer api.Close()

	service := devices.NewService(
		stubDetector{candidates: []models.CandidateDevice{daplinkCandidate(t)}},
		newDatabase(t, boards.ModeOnline, api.URL),
		logger.NewTestLogger(),
	)

	err := detectDevices(context.Background(), service, &bytes.Buffer{})

	var resolveErr *devices.ResolveBoardError
	require.ErrorAs(t, err, &resolveErr)

	quiet := errorReport(err, 1)
	assert.Equal(t, 1, strings.Count(quiet, "\n"))
	assert.Contains(t, quiet, "returned status 500")
	assert.NotContains(t, quiet, "Traceback")

	verbose := errorReport(err, tracebackVerbosity)
	assert.True(t, strings.HasPrefix(verbose, quiet))
	assert.Contains(t, verbose, "Traceback:")
	assert.Contains(t, verbose, "internal/boards/online.go:")
}

func TestErrorReport_InnermostStack(t *testing.T) {
	inner := pkgerrors.WithStack(errors.New("boom"))
	outer := pkgerrors.WithStack(&devices.ResolveBoardError{SerialNumber: "0240", Err: inner})

	assert.Equal(t, inner, innermostStack(outer))
	assert.Nil(t, innermostStack(errors.New("plain")))

	report := errorReport(outer, tracebackVerbosity)
	assert.Contains(t, report, "Error: failed to resolve board for device 0240: boom\n")
	assert.Contains(t, report, "detect_test.go:")
	assert.Equal(t, "Error: plain\n", errorReport(errors.New("plain"), tracebackVerbosity))
}
