package helper

import (
	"fmt"
	"net/http"
	"sync"
)

// Reporter receives errors raised by background tasks. errHandler satisfies
// this; tests substitute a recorder.
type Reporter interface {
	ReportServerError(r *http.Request, err error)
}

type HelperRepository struct {
	baseUrl  *string
	WG       *sync.WaitGroup
	reporter Reporter
}

func New(baseUrl *string, wg *sync.WaitGroup, reporter Reporter) *HelperRepository {
	return &HelperRepository{
		baseUrl:  baseUrl,
		WG:       wg,
		reporter: reporter,
	}
}

// SetReporter breaks the construction cycle between the helper and the
// error handler: the helper is built first, the error handler needs it for
// email data, and reporting is attached afterwards.
func (h *HelperRepository) SetReporter(reporter Reporter) {
	h.reporter = reporter
}

func (h *HelperRepository) NewEmailData() map[string]any {
	data := map[string]any{
		"BaseURL": h.baseUrl,
	}

	return data
}

// BackgroundTask runs fn on its own goroutine, recovering panics and
// reporting errors so a failed notification can never take a request down.
func (h *HelperRepository) BackgroundTask(r *http.Request, fn func() error) {
	h.WG.Add(1)

	go func() {
		defer h.WG.Done()

		defer func() {
			err := recover()
			if err != nil && h.reporter != nil {
				h.reporter.ReportServerError(r, fmt.Errorf("%s", err))
			}
		}()

		err := fn()
		if err != nil && h.reporter != nil {
			h.reporter.ReportServerError(r, err)
		}
	}()
}
