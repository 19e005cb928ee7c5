package gps

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDeviceReport_PermissionDenied(t *testing.T) {
	report := DeviceReport{Granted: false, Latitude: 6.45, Longitude: 3.39}

	_, err := report.Current(context.Background())
	require.ErrorIs(t, err, ErrPermissionDenied)
}

func TestDeviceReport_ValidFix(t *testing.T) {
	capturedAt := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	report := DeviceReport{Granted: true, Latitude: 6.45, Longitude: 3.39, CapturedAt: capturedAt}

	fix, err := report.Current(context.Background())
	require.NoError(t, err)
	require.Equal(t, 6.45, fix.Latitude)
	require.Equal(t, 3.39, fix.Longitude)
	require.Equal(t, capturedAt, fix.CapturedAt)
}

func TestDeviceReport_OutOfRange(t *testing.T) {
	report := DeviceReport{Granted: true, Latitude: 123.0, Longitude: 3.39}

	_, err := report.Current(context.Background())
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestDeviceReport_MissingTimestampDefaultsToNow(t *testing.T) {
	report := DeviceReport{Granted: true, Latitude: 6.45, Longitude: 3.39}

	fix, err := report.Current(context.Background())
	require.NoError(t, err)
	require.WithinDuration(t, time.Now(), fix.CapturedAt, time.Minute)
}

func TestDeviceReport_ExpiredContextFailsClosed(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := DeviceReport{Granted: true, Latitude: 6.45, Longitude: 3.39}

	_, err := report.Current(ctx)
	require.ErrorIs(t, err, ErrUnavailable)
}
