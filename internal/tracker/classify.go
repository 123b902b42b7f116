package tracker

import (
	"context"
	"errors"
	"time"

	"github.com/stealthsense/behaviortrace-agent/internal/models"
)

// ErrNoSession is returned by Classify before any network round-trip when the
// tracker has no session identifier to correlate against.
var ErrNoSession = errors.New("no session identifier")

// Classify builds a payload from the current windows, independent of the
// flush schedule, and posts it to the classification endpoint. It completes
// exactly once: either with the decoded verdict or with an error.
func (t *Tracker) Classify(ctx context.Context) (*models.DetectionResult, error) {
	t.mu.Lock()
	if t.sessionID == "" {
		t.mu.Unlock()
		return nil, ErrNoSession
	}
	payload := models.ClassificationPayload{
		SessionID:         t.sessionID,
		PageURL:           t.cfg.PageURL,
		ActionType:        t.cfg.ActionType,
		MouseMovements:    t.mouse.snapshot(t.mouse.len()),
		ClickPatterns:     t.clicks.snapshot(t.clicks.len()),
		KeystrokePatterns: t.keys.snapshot(t.keys.len()),
		ScrollPatterns:    t.scroll.snapshot(t.scroll.len()),
		DeviceFingerprint: t.fp,
		Timestamp:         time.Now().UnixMilli(),
	}
	t.mu.Unlock()

	return t.client.Classify(ctx, payload)
}
