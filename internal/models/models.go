package models

// RawEvent is one native input event as delivered by the instrumented host
// page, before normalization.
type RawEvent struct {
	Type      string  `json:"type"` // mousemove|click|mousedown|mouseup|keydown|keyup|scroll|wheel|touchstart|touchmove|touchend|focus|blur|visibilitychange
	Timestamp int64   `json:"timestamp"`
	X         float64 `json:"x,omitempty"`
	Y         float64 `json:"y,omitempty"`
	Button    int     `json:"button,omitempty"`
	Key       string  `json:"key,omitempty"`
	Ctrl      bool    `json:"ctrl,omitempty"`
	Alt       bool    `json:"alt,omitempty"`
	Shift     bool    `json:"shift,omitempty"`
	Meta      bool    `json:"meta,omitempty"`
	DeltaX    float64 `json:"deltaX,omitempty"`
	DeltaY    float64 `json:"deltaY,omitempty"`
	Target    string  `json:"target,omitempty"`
	Visible   *bool   `json:"visible,omitempty"` // visibilitychange only
}

type RawBatch struct {
	Events []RawEvent `json:"events"`
}

// MouseMovement carries the derived kinematics alongside the position.
// Velocity is px/ms against the immediately previous movement.
type MouseMovement struct {
	X            float64 `json:"x"`
	Y            float64 `json:"y"`
	Timestamp    int64   `json:"timestamp"`
	Velocity     float64 `json:"velocity"`
	Acceleration float64 `json:"acceleration"`
}

type ClickEvent struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Timestamp int64   `json:"timestamp"`
	Button    int     `json:"button"`
	Kind      string  `json:"kind"` // click|down|up|touchstart|touchend
	Duration  int64   `json:"duration,omitempty"`
	Target    string  `json:"target,omitempty"`
}

// KeystrokeEvent never carries the literal character; printable keys are
// replaced with a placeholder class before recording.
type KeystrokeEvent struct {
	Key       string `json:"key"`
	Kind      string `json:"kind"` // down|up
	Timestamp int64  `json:"timestamp"`
	Duration  int64  `json:"duration"`
	Ctrl      bool   `json:"ctrl,omitempty"`
	Alt       bool   `json:"alt,omitempty"`
	Shift     bool   `json:"shift,omitempty"`
	Meta      bool   `json:"meta,omitempty"`
}

type ScrollEvent struct {
	DeltaX    float64 `json:"deltaX"`
	DeltaY    float64 `json:"deltaY"`
	Timestamp int64   `json:"timestamp"`
}

// AttentionEvent covers focus, blur and visibility changes. Counted but not
// transmitted.
type AttentionEvent struct {
	Kind      string `json:"kind"` // focus|blur|visibilitychange
	Timestamp int64  `json:"timestamp"`
	Visible   bool   `json:"visible"`
}

type DeviceFingerprint struct {
	UserAgent      string `json:"userAgent"`
	ScreenWidth    int    `json:"screenWidth"`
	ScreenHeight   int    `json:"screenHeight"`
	Timezone       string `json:"timezone"`
	Language       string `json:"language"`
	Platform       string `json:"platform"`
	CookiesEnabled bool   `json:"cookiesEnabled"`
	DoNotTrack     bool   `json:"doNotTrack"`
	Online         bool   `json:"online"`
	TouchSupport   bool   `json:"touchSupport"`
}

// CollectionPayload is the periodic flush body.
type CollectionPayload struct {
	SessionID         string            `json:"sessionId"`
	MouseMovements    []MouseMovement   `json:"mouseMovements"`
	ClickPatterns     []ClickEvent      `json:"clickPatterns"`
	KeystrokePatterns []KeystrokeEvent  `json:"keystrokePatterns"`
	ScrollPatterns    []ScrollEvent     `json:"scrollPatterns"`
	DeviceFingerprint DeviceFingerprint `json:"deviceFingerprint"`
	Timestamp         int64             `json:"timestamp"`
}

// ClassificationPayload is the on-demand classification body.
type ClassificationPayload struct {
	SessionID         string            `json:"sessionId"`
	PageURL           string            `json:"page_url"`
	ActionType        string            `json:"action_type"`
	MouseMovements    []MouseMovement   `json:"mouseMovements"`
	ClickPatterns     []ClickEvent      `json:"clickPatterns"`
	KeystrokePatterns []KeystrokeEvent  `json:"keystrokePatterns"`
	ScrollPatterns    []ScrollEvent     `json:"scrollPatterns"`
	DeviceFingerprint DeviceFingerprint `json:"deviceFingerprint"`
	Timestamp         int64             `json:"timestamp"`
}

type CollectResponse struct {
	Status string `json:"status"`
	DataID string `json:"data_id"`
}

type DetectionResult struct {
	Prediction string  `json:"prediction"`
	Confidence float64 `json:"confidence"`
	IsHuman    bool    `json:"is_human"`
}

// DetectionRecord is one classification verdict persisted for stats.
type DetectionRecord struct {
	SessionID    string
	Prediction   string
	Confidence   float64
	ActionType   string
	PageURL      string
	ProcessingMS int64
	CreatedUTC   int64 // unix seconds
}

// SessionMetrics is the read-only aggregate exposed by the tracker. Means are
// computed over the current windows only; counts are lifetime.
type SessionMetrics struct {
	SessionDuration      int64   `json:"sessionDuration"` // ms
	MouseEvents          int64   `json:"mouseEvents"`
	ClickEvents          int64   `json:"clickEvents"`
	KeystrokeEvents      int64   `json:"keystrokeEvents"`
	ScrollEvents         int64   `json:"scrollEvents"`
	AttentionEvents      int64   `json:"attentionEvents"`
	AvgMouseVelocity     float64 `json:"avgMouseVelocity"`
	AvgClickInterval     float64 `json:"avgClickInterval"`     // ms
	AvgKeystrokeInterval float64 `json:"avgKeystrokeInterval"` // ms, key-down only
}

type HourlyBucket struct {
	Human int `json:"human"`
	Bot   int `json:"bot"`
}

// StatsResponse is the aggregate document consumed by the dashboard.
type StatsResponse struct {
	TotalDetections int                     `json:"total_detections"`
	HumanDetections int                     `json:"human_detections"`
	BotDetections   int                     `json:"bot_detections"`
	HourlyData      map[string]HourlyBucket `json:"hourly_data"` // key "0".."23"
}
