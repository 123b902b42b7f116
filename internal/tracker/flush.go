package tracker

import (
	"context"
	"log"
	"time"

	"github.com/stealthsense/behaviortrace-agent/internal/models"
)

func (t *Tracker) flushLoop(done <-chan struct{}) {
	ticker := time.NewTicker(t.cfg.FlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			t.Flush(context.Background())
		}
	}
}

// Flush snapshots every window, posts the collection payload and, on success,
// shrinks each window to the retain tail. Counters are never touched. Any
// failure leaves the windows exactly as they were; the next tick resends the
// then-current windows. A success that completes after Stop is discarded.
func (t *Tracker) Flush(ctx context.Context) {
	t.mu.Lock()
	if !t.active {
		t.mu.Unlock()
		return
	}
	payload := t.collectionPayloadLocked()
	t.mu.Unlock()

	if _, err := t.client.PostBehavior(ctx, payload); err != nil {
		log.Printf("Flush failed, windows retained: %v", err)
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.active {
		return
	}
	tail := t.cfg.RetainTail
	t.mouse.retain(tail)
	t.clicks.retain(tail)
	t.keys.retain(tail)
	t.scroll.retain(tail)
}

func (t *Tracker) collectionPayloadLocked() models.CollectionPayload {
	return models.CollectionPayload{
		SessionID:         t.sessionID,
		MouseMovements:    t.mouse.snapshot(t.mouse.len()),
		ClickPatterns:     t.clicks.snapshot(t.clicks.len()),
		KeystrokePatterns: t.keys.snapshot(t.keys.len()),
		ScrollPatterns:    t.scroll.snapshot(t.scroll.len()),
		DeviceFingerprint: t.fp,
		Timestamp:         time.Now().UnixMilli(),
	}
}
