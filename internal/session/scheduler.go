package session

import "time"

// scheduleDelivery runs deliver after cue plus the configured pad, as a
// detached task. Unlike the debounce timer it is never cancelled by newer
// input: once a turn has committed to a reply, the cue only postpones
// delivery. New messages start their own buffering cycle in parallel.
func (o *Orchestrator) scheduleDelivery(cue time.Duration, deliver func()) {
	go func() {
		time.Sleep(cue + o.cfg.CuePad)
		deliver()
	}()
}
