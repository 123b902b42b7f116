package tracker

import (
	"context"
	"sync"
	"time"

	"github.com/stealthsense/behaviortrace-agent/internal/models"
)

// Submitter posts telemetry to the backend. Satisfied by *transport.Client.
type Submitter interface {
	PostBehavior(ctx context.Context, p models.CollectionPayload) (*models.CollectResponse, error)
	Classify(ctx context.Context, p models.ClassificationPayload) (*models.DetectionResult, error)
}

// Config bounds the rolling windows and drives the flush schedule.
type Config struct {
	MouseWindow     int
	ClickWindow     int
	KeystrokeWindow int
	ScrollWindow    int
	FlushInterval   time.Duration
	RetainTail      int // entries kept per window after a successful flush
	PageURL         string
	ActionType      string
}

func DefaultConfig() Config {
	return Config{
		MouseWindow:     500,
		ClickWindow:     100,
		KeystrokeWindow: 200,
		ScrollWindow:    200,
		FlushInterval:   5 * time.Second,
		RetainTail:      10,
		ActionType:      "task_completion",
	}
}

// Tracker is the behavioral telemetry collector: it normalizes raw host
// events, derives kinematics, keeps bounded per-category windows next to
// monotonic lifetime counters, and periodically flushes the windows to the
// collection endpoint. One instance per tracked page; all state lives here,
// nothing is package-global.
type Tracker struct {
	mu sync.Mutex

	cfg       Config
	sessionID string
	fp        models.DeviceFingerprint
	client    Submitter
	startedAt time.Time

	mouse     window[models.MouseMovement]
	clicks    window[models.ClickEvent]
	keys      window[models.KeystrokeEvent]
	scroll    window[models.ScrollEvent]
	attention window[models.AttentionEvent]

	der *deriver

	active bool // capture accepts events
	armed  bool // flush loop running
	done   chan struct{}
}

func New(cfg Config, sessionID string, fp models.DeviceFingerprint, client Submitter) *Tracker {
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultConfig().FlushInterval
	}
	if cfg.RetainTail <= 0 {
		cfg.RetainTail = DefaultConfig().RetainTail
	}
	return &Tracker{
		cfg:       cfg,
		sessionID: sessionID,
		fp:        fp,
		client:    client,
		startedAt: time.Now(),
		mouse:     newWindow[models.MouseMovement](cfg.MouseWindow),
		clicks:    newWindow[models.ClickEvent](cfg.ClickWindow),
		keys:      newWindow[models.KeystrokeEvent](cfg.KeystrokeWindow),
		scroll:    newWindow[models.ScrollEvent](cfg.ScrollWindow),
		attention: newWindow[models.AttentionEvent](0),
		der:       newDeriver(),
	}
}

// Start activates capture and arms the periodic flush. Calling it on an
// already-armed tracker is a no-op.
func (t *Tracker) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.active = true
	if t.armed {
		return
	}
	t.armed = true
	t.done = make(chan struct{})
	go t.flushLoop(t.done)
}

// Stop cancels the flush schedule and deactivates capture. Events delivered
// after Stop returns are dropped silently; in-flight flush completions do not
// mutate the windows.
func (t *Tracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.active = false
	if !t.armed {
		return
	}
	t.armed = false
	close(t.done)
}

func (t *Tracker) SessionID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sessionID
}

// BufferSnapshot is a debug view of the current windows. Consumers wanting
// aggregates should use Metrics instead.
type BufferSnapshot struct {
	MouseMovements    []models.MouseMovement
	ClickPatterns     []models.ClickEvent
	KeystrokePatterns []models.KeystrokeEvent
	ScrollPatterns    []models.ScrollEvent
}

func (t *Tracker) Buffers() BufferSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return BufferSnapshot{
		MouseMovements:    t.mouse.snapshot(t.mouse.len()),
		ClickPatterns:     t.clicks.snapshot(t.clicks.len()),
		KeystrokePatterns: t.keys.snapshot(t.keys.len()),
		ScrollPatterns:    t.scroll.snapshot(t.scroll.len()),
	}
}
