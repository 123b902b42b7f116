package tracker

import "github.com/stealthsense/behaviortrace-agent/internal/models"

// Handle normalizes one raw host event and records it. Calls on a stopped
// tracker are silent no-ops; unknown event types are dropped. Handling is
// O(1) per event.
func (t *Tracker) Handle(raw models.RawEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.active {
		return
	}

	switch raw.Type {
	case "mousemove", "touchmove":
		m := models.MouseMovement{X: raw.X, Y: raw.Y, Timestamp: raw.Timestamp}
		t.der.deriveMove(&m)
		t.mouse.record(m)

	case "click":
		t.clicks.record(models.ClickEvent{
			X: raw.X, Y: raw.Y, Timestamp: raw.Timestamp,
			Button: raw.Button, Kind: "click", Target: raw.Target,
		})

	case "mousedown", "touchstart":
		t.der.noteDown(pressID(raw), raw.Timestamp)
		kind := "down"
		if raw.Type == "touchstart" {
			kind = "touchstart"
		}
		t.clicks.record(models.ClickEvent{
			X: raw.X, Y: raw.Y, Timestamp: raw.Timestamp,
			Button: raw.Button, Kind: kind, Target: raw.Target,
		})

	case "mouseup", "touchend":
		duration := t.der.resolveUp(pressID(raw), raw.Timestamp)
		kind := "up"
		if raw.Type == "touchend" {
			kind = "touchend"
		}
		t.clicks.record(models.ClickEvent{
			X: raw.X, Y: raw.Y, Timestamp: raw.Timestamp,
			Button: raw.Button, Kind: kind, Duration: duration, Target: raw.Target,
		})

	case "keydown":
		t.der.noteDown("key:"+raw.Key, raw.Timestamp)
		t.keys.record(models.KeystrokeEvent{
			Key: anonymizeKey(raw.Key), Kind: "down", Timestamp: raw.Timestamp,
			Ctrl: raw.Ctrl, Alt: raw.Alt, Shift: raw.Shift, Meta: raw.Meta,
		})

	case "keyup":
		duration := t.der.resolveUp("key:"+raw.Key, raw.Timestamp)
		t.keys.record(models.KeystrokeEvent{
			Key: anonymizeKey(raw.Key), Kind: "up", Timestamp: raw.Timestamp,
			Duration: duration,
			Ctrl:     raw.Ctrl, Alt: raw.Alt, Shift: raw.Shift, Meta: raw.Meta,
		})

	case "scroll", "wheel":
		t.scroll.record(models.ScrollEvent{
			DeltaX: raw.DeltaX, DeltaY: raw.DeltaY, Timestamp: raw.Timestamp,
		})

	case "focus", "blur":
		t.attention.record(models.AttentionEvent{
			Kind: raw.Type, Timestamp: raw.Timestamp, Visible: raw.Type == "focus",
		})

	case "visibilitychange":
		visible := raw.Visible != nil && *raw.Visible
		t.attention.record(models.AttentionEvent{
			Kind: raw.Type, Timestamp: raw.Timestamp, Visible: visible,
		})
	}
}
