package engine

import (
	"time"

	"github.com/large-farva/mitplan-engine/internal/combat"
)

// inboxScheduler arms real timers but delivers their expiry through the
// engine inbox, so the machine only ever runs on the engine goroutine. A
// stale expiry that loses the race with Stop is discarded by the machine's
// generation check.
type inboxScheduler struct {
	e     *Engine
	inner combat.Scheduler
}

func (s inboxScheduler) AfterFunc(d time.Duration, fn func()) combat.Timer {
	return s.inner.AfterFunc(d, func() {
		s.e.post(expiryMsg{fn: fn})
	})
}
