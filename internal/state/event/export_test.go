package event

import "time"

// SetNow overrides the emitter clock in tests.
func SetNow(e *Emitter, now func() time.Time) {
	e.now = now
}
