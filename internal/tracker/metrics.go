package tracker

import (
	"time"

	"github.com/stealthsense/behaviortrace-agent/internal/models"
)

// Metrics aggregates the session without mutating any state. Counts are
// lifetime; the means are computed lazily over the current windows, so the
// cost is bounded by the window capacities.
func (t *Tracker) Metrics() models.SessionMetrics {
	t.mu.Lock()
	defer t.mu.Unlock()

	m := models.SessionMetrics{
		SessionDuration: time.Since(t.startedAt).Milliseconds(),
		MouseEvents:     t.mouse.total(),
		ClickEvents:     t.clicks.total(),
		KeystrokeEvents: t.keys.total(),
		ScrollEvents:    t.scroll.total(),
		AttentionEvents: t.attention.total(),
	}

	moves := t.mouse.snapshot(t.mouse.len())
	var velSum float64
	var velN int
	for _, mv := range moves {
		if mv.Velocity > 0 {
			velSum += mv.Velocity
			velN++
		}
	}
	if velN > 0 {
		m.AvgMouseVelocity = velSum / float64(velN)
	}

	clicks := t.clicks.snapshot(t.clicks.len())
	m.AvgClickInterval = meanInterval(clicks, func(c models.ClickEvent) int64 { return c.Timestamp })

	var downs []models.KeystrokeEvent
	for _, k := range t.keys.snapshot(t.keys.len()) {
		if k.Kind == "down" {
			downs = append(downs, k)
		}
	}
	m.AvgKeystrokeInterval = meanInterval(downs, func(k models.KeystrokeEvent) int64 { return k.Timestamp })

	return m
}

func meanInterval[T any](events []T, ts func(T) int64) float64 {
	if len(events) < 2 {
		return 0
	}
	var sum int64
	for i := 1; i < len(events); i++ {
		sum += ts(events[i]) - ts(events[i-1])
	}
	return float64(sum) / float64(len(events)-1)
}
