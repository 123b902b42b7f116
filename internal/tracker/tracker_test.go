package tracker

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stealthsense/behaviortrace-agent/internal/models"
)

type stubSubmitter struct {
	behaviorCalls int
	classifyCalls int
	failBehavior  bool
	onBehavior    func()
	lastBehavior  models.CollectionPayload
	lastClassify  models.ClassificationPayload
	verdict       *models.DetectionResult
	classifyErr   error
}

func (s *stubSubmitter) PostBehavior(_ context.Context, p models.CollectionPayload) (*models.CollectResponse, error) {
	s.behaviorCalls++
	s.lastBehavior = p
	if s.onBehavior != nil {
		s.onBehavior()
	}
	if s.failBehavior {
		return nil, errors.New("forced transport failure")
	}
	return &models.CollectResponse{Status: "success", DataID: "test"}, nil
}

func (s *stubSubmitter) Classify(_ context.Context, p models.ClassificationPayload) (*models.DetectionResult, error) {
	s.classifyCalls++
	s.lastClassify = p
	if s.classifyErr != nil {
		return nil, s.classifyErr
	}
	return s.verdict, nil
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.ClickWindow = 3
	cfg.RetainTail = 2
	cfg.FlushInterval = time.Hour // never ticks during tests
	cfg.PageURL = "https://example.com/task"
	return cfg
}

func setupTracker(t *testing.T) (*Tracker, *stubSubmitter) {
	t.Helper()
	stub := &stubSubmitter{verdict: &models.DetectionResult{Prediction: "human", Confidence: 0.85, IsHuman: true}}
	tr := New(testConfig(), "session-1", models.DeviceFingerprint{Platform: "test"}, stub)
	tr.Start()
	t.Cleanup(tr.Stop)
	return tr, stub
}

func click(ts int64) models.RawEvent {
	return models.RawEvent{Type: "click", Timestamp: ts, X: 10, Y: 20, Button: 0}
}

func TestHandleRecordsEveryCategory(t *testing.T) {
	tr, _ := setupTracker(t)

	visible := true
	events := []models.RawEvent{
		{Type: "mousemove", Timestamp: 1000, X: 0, Y: 0},
		{Type: "mousemove", Timestamp: 1100, X: 30, Y: 40},
		{Type: "click", Timestamp: 1200, X: 30, Y: 40},
		{Type: "mousedown", Timestamp: 1300, X: 30, Y: 40, Target: "btn"},
		{Type: "mouseup", Timestamp: 1500, X: 30, Y: 40, Target: "btn"},
		{Type: "keydown", Timestamp: 1600, Key: "a"},
		{Type: "keyup", Timestamp: 1700, Key: "a"},
		{Type: "scroll", Timestamp: 1800, DeltaY: 120},
		{Type: "wheel", Timestamp: 1900, DeltaY: -120},
		{Type: "focus", Timestamp: 2000},
		{Type: "blur", Timestamp: 2100},
		{Type: "visibilitychange", Timestamp: 2200, Visible: &visible},
	}
	for _, e := range events {
		tr.Handle(e)
	}

	m := tr.Metrics()
	if m.MouseEvents != 2 {
		t.Errorf("Expected 2 mouse events, got %d", m.MouseEvents)
	}
	if m.ClickEvents != 3 {
		t.Errorf("Expected 3 click events, got %d", m.ClickEvents)
	}
	if m.KeystrokeEvents != 2 {
		t.Errorf("Expected 2 keystroke events, got %d", m.KeystrokeEvents)
	}
	if m.ScrollEvents != 2 {
		t.Errorf("Expected 2 scroll events, got %d", m.ScrollEvents)
	}
	if m.AttentionEvents != 3 {
		t.Errorf("Expected 3 attention events, got %d", m.AttentionEvents)
	}

	buffers := tr.Buffers()
	if len(buffers.MouseMovements) != 2 {
		t.Fatalf("Expected 2 buffered movements, got %d", len(buffers.MouseMovements))
	}
	if math.Abs(buffers.MouseMovements[1].Velocity-0.5) > 1e-9 {
		t.Errorf("Expected derived velocity 0.5, got %f", buffers.MouseMovements[1].Velocity)
	}

	// The mouseup paired with the mousedown on the same target.
	var up *models.ClickEvent
	for i := range buffers.ClickPatterns {
		if buffers.ClickPatterns[i].Kind == "up" {
			up = &buffers.ClickPatterns[i]
		}
	}
	if up == nil {
		t.Fatal("Expected an up click event in the buffer")
	}
	if up.Duration != 200 {
		t.Errorf("Expected press duration 200, got %d", up.Duration)
	}

	// Printable key anonymized, duration paired.
	if len(buffers.KeystrokePatterns) != 2 {
		t.Fatalf("Expected 2 buffered keystrokes, got %d", len(buffers.KeystrokePatterns))
	}
	for _, k := range buffers.KeystrokePatterns {
		if k.Key != keyPlaceholder {
			t.Errorf("Expected anonymized key %q, got %q", keyPlaceholder, k.Key)
		}
	}
	if buffers.KeystrokePatterns[1].Duration != 100 {
		t.Errorf("Expected key duration 100, got %d", buffers.KeystrokePatterns[1].Duration)
	}
}

func TestWindowEvictionKeepsCounters(t *testing.T) {
	tr, _ := setupTracker(t) // click window capacity 3

	for i := 0; i < 5; i++ {
		tr.Handle(click(int64(1000 + i*100)))
	}

	m := tr.Metrics()
	if m.ClickEvents != 5 {
		t.Errorf("Expected lifetime click count 5, got %d", m.ClickEvents)
	}
	buffers := tr.Buffers()
	if len(buffers.ClickPatterns) != 3 {
		t.Fatalf("Expected 3 buffered clicks, got %d", len(buffers.ClickPatterns))
	}
	if buffers.ClickPatterns[0].Timestamp != 1200 {
		t.Errorf("Expected oldest surviving click at 1200, got %d", buffers.ClickPatterns[0].Timestamp)
	}
	if buffers.ClickPatterns[2].Timestamp != 1400 {
		t.Errorf("Expected newest click at 1400, got %d", buffers.ClickPatterns[2].Timestamp)
	}
}

func TestStopMakesCaptureInert(t *testing.T) {
	tr, _ := setupTracker(t)

	tr.Handle(click(1000))
	tr.Stop()
	tr.Handle(click(1100))
	tr.Handle(models.RawEvent{Type: "keydown", Timestamp: 1200, Key: "a"})

	m := tr.Metrics()
	if m.ClickEvents != 1 {
		t.Errorf("Expected click count frozen at 1 after Stop, got %d", m.ClickEvents)
	}
	if m.KeystrokeEvents != 0 {
		t.Errorf("Expected no keystrokes after Stop, got %d", m.KeystrokeEvents)
	}
	if got := len(tr.Buffers().ClickPatterns); got != 1 {
		t.Errorf("Expected 1 buffered click after Stop, got %d", got)
	}
}

func TestStartIsIdempotentAndRestartable(t *testing.T) {
	stub := &stubSubmitter{}
	tr := New(testConfig(), "session-1", models.DeviceFingerprint{}, stub)

	tr.Start()
	tr.Start() // must not double-arm
	tr.Handle(click(1000))
	tr.Stop()
	tr.Stop() // must not panic

	tr.Start()
	defer tr.Stop()
	tr.Handle(click(1100))

	if m := tr.Metrics(); m.ClickEvents != 2 {
		t.Errorf("Expected 2 clicks across restart, got %d", m.ClickEvents)
	}
}

func TestFlushFailureLeavesWindowsUntouched(t *testing.T) {
	tr, stub := setupTracker(t)
	for i := 0; i < 5; i++ {
		tr.Handle(click(int64(1000 + i*100)))
		tr.Handle(models.RawEvent{Type: "scroll", Timestamp: int64(1000 + i*100), DeltaY: 10})
	}

	stub.failBehavior = true
	tr.Flush(context.Background())

	if stub.behaviorCalls != 1 {
		t.Fatalf("Expected 1 transmission attempt, got %d", stub.behaviorCalls)
	}
	m := tr.Metrics()
	if m.ClickEvents != 5 || m.ScrollEvents != 5 {
		t.Errorf("Expected counters 5/5 after failed flush, got %d/%d", m.ClickEvents, m.ScrollEvents)
	}
	buffers := tr.Buffers()
	if len(buffers.ClickPatterns) != 3 {
		t.Errorf("Expected click window still full at 3 after failed flush, got %d", len(buffers.ClickPatterns))
	}
	if len(buffers.ScrollPatterns) != 5 {
		t.Errorf("Expected scroll window untouched at 5 after failed flush, got %d", len(buffers.ScrollPatterns))
	}

	// The next flush succeeds and applies the retain tail.
	stub.failBehavior = false
	tr.Flush(context.Background())

	buffers = tr.Buffers()
	if len(buffers.ClickPatterns) != 2 {
		t.Errorf("Expected click window retained to 2, got %d", len(buffers.ClickPatterns))
	}
	if len(buffers.ScrollPatterns) != 2 {
		t.Errorf("Expected scroll window retained to 2, got %d", len(buffers.ScrollPatterns))
	}
	m = tr.Metrics()
	if m.ClickEvents != 5 || m.ScrollEvents != 5 {
		t.Errorf("Expected counters 5/5 after successful flush, got %d/%d", m.ClickEvents, m.ScrollEvents)
	}
}

func TestFlushPayloadShape(t *testing.T) {
	tr, stub := setupTracker(t)
	tr.Handle(click(1000))

	tr.Flush(context.Background())

	p := stub.lastBehavior
	if p.SessionID != "session-1" {
		t.Errorf("Expected sessionId session-1, got %s", p.SessionID)
	}
	if p.DeviceFingerprint.Platform != "test" {
		t.Errorf("Expected fingerprint to ride along, got %+v", p.DeviceFingerprint)
	}
	if len(p.ClickPatterns) != 1 {
		t.Errorf("Expected 1 click in payload, got %d", len(p.ClickPatterns))
	}
	if p.Timestamp <= 0 {
		t.Errorf("Expected positive payload timestamp, got %d", p.Timestamp)
	}
}

func TestFlushAfterStopDoesNothing(t *testing.T) {
	tr, stub := setupTracker(t)
	tr.Handle(click(1000))
	tr.Stop()

	tr.Flush(context.Background())

	if stub.behaviorCalls != 0 {
		t.Errorf("Expected no transmission after Stop, got %d calls", stub.behaviorCalls)
	}
}

func TestStopDuringInFlightFlushSuppressesRetain(t *testing.T) {
	tr, stub := setupTracker(t)
	for i := 0; i < 5; i++ {
		tr.Handle(click(int64(1000 + i*100)))
	}

	// The tracker is torn down while the request is in flight; the success
	// completion must not revive the session by trimming windows.
	stub.onBehavior = tr.Stop
	tr.Flush(context.Background())

	if stub.behaviorCalls != 1 {
		t.Fatalf("Expected the in-flight transmission to complete, got %d calls", stub.behaviorCalls)
	}
	if got := len(tr.Buffers().ClickPatterns); got != 3 {
		t.Errorf("Expected window untouched at 3 after post-stop completion, got %d", got)
	}
}

func TestClassifyWithoutSession(t *testing.T) {
	stub := &stubSubmitter{}
	tr := New(testConfig(), "", models.DeviceFingerprint{}, stub)
	tr.Start()
	defer tr.Stop()

	_, err := tr.Classify(context.Background())
	if !errors.Is(err, ErrNoSession) {
		t.Errorf("Expected ErrNoSession, got %v", err)
	}
	if stub.classifyCalls != 0 {
		t.Errorf("Expected zero network requests, got %d", stub.classifyCalls)
	}
}

func TestClassifyReturnsVerdict(t *testing.T) {
	tr, stub := setupTracker(t)
	tr.Handle(click(1000))

	result, err := tr.Classify(context.Background())
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if result.Prediction != "human" || !result.IsHuman {
		t.Errorf("Expected human verdict, got %+v", result)
	}
	if stub.classifyCalls != 1 {
		t.Errorf("Expected exactly one classification request, got %d", stub.classifyCalls)
	}

	p := stub.lastClassify
	if p.SessionID != "session-1" {
		t.Errorf("Expected sessionId session-1, got %s", p.SessionID)
	}
	if p.PageURL != "https://example.com/task" {
		t.Errorf("Expected page_url from config, got %s", p.PageURL)
	}
	if p.ActionType != "task_completion" {
		t.Errorf("Expected action_type task_completion, got %s", p.ActionType)
	}
	if len(p.ClickPatterns) != 1 {
		t.Errorf("Expected current click window in payload, got %d entries", len(p.ClickPatterns))
	}
}

func TestClassifySurfacesTransportError(t *testing.T) {
	tr, stub := setupTracker(t)
	stub.classifyErr = errors.New("upstream down")

	_, err := tr.Classify(context.Background())
	if err == nil {
		t.Fatal("Expected an error from Classify")
	}
	if stub.classifyCalls != 1 {
		t.Errorf("Expected exactly one classification request, got %d", stub.classifyCalls)
	}
}

func TestMetricsMeans(t *testing.T) {
	tr, _ := setupTracker(t)

	// Two movements 100ms apart, distance 50: only the second carries a
	// velocity (0.5), so the mean is 0.5.
	tr.Handle(models.RawEvent{Type: "mousemove", Timestamp: 1000, X: 0, Y: 0})
	tr.Handle(models.RawEvent{Type: "mousemove", Timestamp: 1100, X: 30, Y: 40})

	// Clicks at 1000/1200/1400: mean interval 200ms.
	tr.Handle(click(1000))
	tr.Handle(click(1200))
	tr.Handle(click(1400))

	// Key downs at 2000/2150 (ups excluded from the interval).
	tr.Handle(models.RawEvent{Type: "keydown", Timestamp: 2000, Key: "a"})
	tr.Handle(models.RawEvent{Type: "keyup", Timestamp: 2100, Key: "a"})
	tr.Handle(models.RawEvent{Type: "keydown", Timestamp: 2150, Key: "b"})

	m := tr.Metrics()
	if math.Abs(m.AvgMouseVelocity-0.5) > 1e-9 {
		t.Errorf("Expected mean velocity 0.5, got %f", m.AvgMouseVelocity)
	}
	if math.Abs(m.AvgClickInterval-200) > 1e-9 {
		t.Errorf("Expected mean click interval 200, got %f", m.AvgClickInterval)
	}
	if math.Abs(m.AvgKeystrokeInterval-150) > 1e-9 {
		t.Errorf("Expected mean keystroke interval 150, got %f", m.AvgKeystrokeInterval)
	}
	if m.SessionDuration < 0 {
		t.Errorf("Expected non-negative session duration, got %d", m.SessionDuration)
	}
}
