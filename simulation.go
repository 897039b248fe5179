package main

import (
	"time"
)

// RunSimulation drives the fixed-rate tick loop until the stop channel
// closes. Each tick advances AI, movement, and every action queue, then
// broadcasts the resulting lifecycle events and state snapshot.
func (h *Hub) RunSimulation(stop <-chan struct{}) {
	ticker := time.NewTicker(time.Second / tickRate)
	defer ticker.Stop()

	var tick uint64
	last := time.Now()
	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			dt := now.Sub(last).Seconds()
			if dt <= 0 || dt > maxTickDelta {
				dt = 1.0 / float64(tickRate)
			}
			last = now
			tick++

			events, entities, _ := h.advance(tick, now, dt)
			h.broadcast(events, entities, tick)
		}
	}
}
