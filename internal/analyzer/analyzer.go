// Package analyzer derives summary metrics from submitted pattern windows.
// The metrics describe the data; they do not classify it.
package analyzer

import (
	"math"

	"github.com/stealthsense/behaviortrace-agent/internal/models"
)

// PatternMetrics is the fixed set of per-submission summary statistics stored
// alongside the raw patterns.
type PatternMetrics struct {
	MouseVelocityAvg          float64 `json:"mouse_velocity_avg"`
	MouseVelocityStd          float64 `json:"mouse_velocity_std"`
	MouseTrajectorySmoothness float64 `json:"mouse_trajectory_smoothness"`
	MousePauseFrequency       float64 `json:"mouse_pause_frequency"`

	ClickFrequency           float64 `json:"click_frequency"`
	ClickRhythmConsistency   float64 `json:"click_rhythm_consistency"`
	ClickSpatialDistribution float64 `json:"click_spatial_distribution"`

	TypingRhythmConsistency float64 `json:"typing_rhythm_consistency"`
	TypingSpeed             float64 `json:"typing_speed"`
	KeyDwellVariance        float64 `json:"key_dwell_variance"`

	ScrollSmoothness           float64 `json:"scroll_smoothness"`
	ScrollSpeedVariance        float64 `json:"scroll_speed_variance"`
	ScrollDirectionConsistency float64 `json:"scroll_direction_consistency"`
}

// Analyze computes every metric family over the given windows. Families with
// fewer than two samples yield zeros rather than errors.
func Analyze(moves []models.MouseMovement, clicks []models.ClickEvent, keys []models.KeystrokeEvent, scrolls []models.ScrollEvent) PatternMetrics {
	var m PatternMetrics
	analyzeMouse(&m, moves)
	analyzeClicks(&m, clicks)
	analyzeKeystrokes(&m, keys)
	analyzeScrolls(&m, scrolls)
	return m
}

// analyzeMouse works in px/s over positive time deltas. A velocity under
// 10 px/s counts as a pause; a turn over 45 degrees counts as a direction
// change.
func analyzeMouse(m *PatternMetrics, moves []models.MouseMovement) {
	if len(moves) < 2 {
		return
	}

	var velocities []float64
	directionChanges := 0
	pauses := 0

	for i := 1; i < len(moves); i++ {
		prev, curr := moves[i-1], moves[i]
		dt := float64(curr.Timestamp-prev.Timestamp) / 1000.0
		if dt <= 0 {
			continue
		}
		velocity := math.Hypot(curr.X-prev.X, curr.Y-prev.Y) / dt
		velocities = append(velocities, velocity)
		if velocity < 10 {
			pauses++
		}
		if i >= 2 {
			prevPrev := moves[i-2]
			angle1 := math.Atan2(prev.Y-prevPrev.Y, prev.X-prevPrev.X)
			angle2 := math.Atan2(curr.Y-prev.Y, curr.X-prev.X)
			diff := math.Abs(angle2 - angle1)
			if diff > math.Pi {
				diff = 2*math.Pi - diff
			}
			if diff > math.Pi/4 {
				directionChanges++
			}
		}
	}

	m.MouseVelocityAvg = mean(velocities)
	m.MouseVelocityStd = std(velocities)
	m.MouseTrajectorySmoothness = 1.0 - float64(directionChanges)/float64(len(moves))
	m.MousePauseFrequency = float64(pauses) / float64(len(moves))
}

func analyzeClicks(m *PatternMetrics, clicks []models.ClickEvent) {
	if len(clicks) < 2 {
		return
	}

	var intervals []float64
	var xs, ys []float64
	for i := 1; i < len(clicks); i++ {
		intervals = append(intervals, float64(clicks[i].Timestamp-clicks[i-1].Timestamp)/1000.0)
		xs = append(xs, clicks[i].X)
		ys = append(ys, clicks[i].Y)
	}

	totalTime := float64(clicks[len(clicks)-1].Timestamp-clicks[0].Timestamp) / 1000.0
	if totalTime > 0 {
		m.ClickFrequency = float64(len(clicks)) / totalTime
	}
	m.ClickRhythmConsistency = 1.0 / (1.0 + std(intervals))
	m.ClickSpatialDistribution = math.Min(1.0, (std(xs)+std(ys))/1000.0)
}

func analyzeKeystrokes(m *PatternMetrics, keys []models.KeystrokeEvent) {
	if len(keys) < 2 {
		return
	}

	var dwells, flights []float64
	for _, k := range keys {
		dwells = append(dwells, float64(k.Duration))
	}
	for i := 1; i < len(keys); i++ {
		flights = append(flights, float64(keys[i].Timestamp-keys[i-1].Timestamp))
	}

	totalMinutes := float64(keys[len(keys)-1].Timestamp-keys[0].Timestamp) / 1000.0 / 60.0
	if totalMinutes > 0 {
		m.TypingSpeed = float64(len(keys)) / totalMinutes
	}
	m.TypingRhythmConsistency = 1.0 / (1.0 + std(flights))
	m.KeyDwellVariance = std(dwells)
}

func analyzeScrolls(m *PatternMetrics, scrolls []models.ScrollEvent) {
	if len(scrolls) == 0 {
		return
	}

	var speeds []float64
	var directions []int
	for _, s := range scrolls {
		speeds = append(speeds, math.Abs(s.DeltaY))
		switch {
		case s.DeltaY > 0:
			directions = append(directions, 1)
		case s.DeltaY < 0:
			directions = append(directions, -1)
		default:
			directions = append(directions, 0)
		}
	}

	variance := std(speeds)
	m.ScrollSpeedVariance = variance

	directionChanges := 0
	for i := 1; i < len(directions); i++ {
		if directions[i] != directions[i-1] {
			directionChanges++
		}
	}
	m.ScrollDirectionConsistency = 1.0 - float64(directionChanges)/float64(len(directions))

	if variance > 0 {
		m.ScrollSmoothness = 1.0 / (1.0 + variance/100.0)
	} else {
		m.ScrollSmoothness = 1.0
	}
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// std is the population standard deviation.
func std(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	avg := mean(values)
	var sum float64
	for _, v := range values {
		d := v - avg
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)))
}
