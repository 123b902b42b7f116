package tracker

import (
	"math"
	"strconv"
	"unicode"
	"unicode/utf8"

	"github.com/stealthsense/behaviortrace-agent/internal/models"
)

// keyPlaceholder replaces any single printable character so that literal
// keystrokes are never captured; timing and rhythm survive.
const keyPlaceholder = "char"

// deriver holds the O(1) state for kinematic derivation: the previous mouse
// movement and a pairing map for down/up durations. The pairing map is keyed
// by the raw key name or press target, which never leaves the deriver.
type deriver struct {
	lastMove    *models.MouseMovement
	lastHasVel  bool
	pendingDown map[string]int64
}

func newDeriver() *deriver {
	return &deriver{pendingDown: make(map[string]int64)}
}

// deriveMove fills Velocity and Acceleration on m against the immediately
// previous movement. Zero or negative elapsed time yields zero velocity;
// acceleration needs the previous movement to carry a velocity of its own.
func (d *deriver) deriveMove(m *models.MouseMovement) {
	prev := d.lastMove
	if prev != nil {
		elapsed := float64(m.Timestamp - prev.Timestamp)
		if elapsed > 0 {
			m.Velocity = math.Hypot(m.X-prev.X, m.Y-prev.Y) / elapsed
			if d.lastHasVel {
				m.Acceleration = (m.Velocity - prev.Velocity) / elapsed
			}
		}
		d.lastHasVel = true
	}
	cp := *m
	d.lastMove = &cp
}

func (d *deriver) noteDown(id string, ts int64) {
	d.pendingDown[id] = ts
}

// resolveUp returns the duration since the matching down event, or 0 when no
// down was recorded for this id.
func (d *deriver) resolveUp(id string, ts int64) int64 {
	down, ok := d.pendingDown[id]
	if !ok {
		return 0
	}
	delete(d.pendingDown, id)
	if ts < down {
		return 0
	}
	return ts - down
}

// pressID derives a stable pairing id for a button or touch press.
func pressID(raw models.RawEvent) string {
	if raw.Target != "" {
		return "press:" + raw.Target
	}
	return "press:button:" + strconv.Itoa(raw.Button)
}

func anonymizeKey(key string) string {
	if utf8.RuneCountInString(key) != 1 {
		return key // named key (Enter, Backspace, ArrowLeft, ...)
	}
	r, _ := utf8.DecodeRuneInString(key)
	if unicode.IsPrint(r) {
		return keyPlaceholder
	}
	return key
}
