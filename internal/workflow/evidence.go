package workflow

import "time"

// Evidence is the selfie + geolocation pair a recipient supplies before a
// pending request may become verified. It is persisted in the same statement
// as the status write; there is never a verified request without evidence.
type Evidence struct {
	SelfieURL  string
	Latitude   float64
	Longitude  float64
	CapturedAt time.Time
}

// Complete reports whether both evidence items are present. Latitude and
// longitude zero are legitimate coordinates, so the capture timestamp is the
// presence marker for the location fix.
func (e Evidence) Complete() bool {
	return e.SelfieURL != "" && !e.CapturedAt.IsZero()
}
