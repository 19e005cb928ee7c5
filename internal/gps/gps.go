// Package gps abstracts the one-shot, permission-gated geolocation read the
// verification flow needs. The API process never talks to location hardware
// itself; the recipient's device reports a fix (or a denial) and the HTTP
// boundary wraps that report in a Provider.
package gps

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrPermissionDenied means the user did not grant location access.
	// The capture flow halts rather than proceeding with stale evidence.
	ErrPermissionDenied = errors.New("location permission denied")

	// ErrUnavailable means no usable fix could be produced.
	ErrUnavailable = errors.New("location unavailable")
)

// Fix is a single geolocation capture.
type Fix struct {
	Latitude   float64
	Longitude  float64
	CapturedAt time.Time
}

func (f Fix) InRange() bool {
	return f.Latitude >= -90 && f.Latitude <= 90 && f.Longitude >= -180 && f.Longitude <= 180
}

type Provider interface {
	// Current returns the current fix. Implementations must respect ctx
	// so the capture step fails closed instead of hanging.
	Current(ctx context.Context) (Fix, error)
}

// DeviceReport is a Provider built from what the recipient's device sent
// with the verification submission. Granted=false models a declined
// permission prompt.
type DeviceReport struct {
	Granted    bool
	Latitude   float64
	Longitude  float64
	CapturedAt time.Time
}

func (r DeviceReport) Current(ctx context.Context) (Fix, error) {
	if err := ctx.Err(); err != nil {
		return Fix{}, ErrUnavailable
	}

	if !r.Granted {
		return Fix{}, ErrPermissionDenied
	}

	fix := Fix{
		Latitude:   r.Latitude,
		Longitude:  r.Longitude,
		CapturedAt: r.CapturedAt,
	}

	if !fix.InRange() {
		return Fix{}, ErrUnavailable
	}

	if fix.CapturedAt.IsZero() {
		fix.CapturedAt = time.Now()
	}

	return fix, nil
}
