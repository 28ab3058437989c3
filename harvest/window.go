package harvest

import (
	"context"
	"time"

	"github.com/araddon/dateparse"
)

// windowLayout is how window bounds are serialized into payloads.
const windowLayout = "2006-01-02T15:04:05"

// Window bounds an enumeration. Nil bounds are open.
type Window struct {
	From  *time.Time
	Until *time.Time
}

// ParseTime parses a window bound in any common notation.
func ParseTime(s string) (time.Time, error) {
	return dateparse.ParseStrict(s)
}

// timeWindow computes the enumeration window for a job: explicit overrides
// win; otherwise the previous finished job's start time becomes the lower
// bound, so consecutive jobs cover the stream without gaps.
func (h *Harvester) timeWindow(ctx context.Context, job *Job) (Window, error) {
	var w Window
	if h.WindowFrom != "" {
		t, err := ParseTime(h.WindowFrom)
		if err != nil {
			return w, &ConfigError{Key: "from", Reason: err.Error()}
		}
		w.From = &t
	}
	if h.WindowUntil != "" {
		t, err := ParseTime(h.WindowUntil)
		if err != nil {
			return w, &ConfigError{Key: "until", Reason: err.Error()}
		}
		w.Until = &t
	}
	if w.From == nil && w.Until == nil {
		prev, err := h.Store.PreviousJob(ctx, job)
		if err != nil {
			return w, err
		}
		if prev != nil {
			t := prev.Started
			w.From = &t
		}
	}
	return w, nil
}
